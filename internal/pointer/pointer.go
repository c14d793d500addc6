// Package pointer is the pointer-device drag channel. It moves and resizes
// widgets with the mouse or touch, independently of the gesture channel, and
// commits through the same layout store.
package pointer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mirror/internal/drag"
	"github.com/ayusman/mirror/internal/layout"
)

// ErrNoTarget is returned when a press lands on empty space.
var ErrNoTarget = errors.New("no widget under pointer")

// Controller owns the pointer channel's single drag session.
type Controller struct {
	board *layout.Board

	mu    sync.Mutex
	drags *drag.Manager
}

// New creates a Controller.
func New(board *layout.Board, store *layout.Store, log logrus.FieldLogger) *Controller {
	return &Controller{
		board: board,
		drags: drag.NewManager(board, store, layout.SourcePointer, log),
	}
}

// Down presses on a widget and starts moving it. An empty widgetID picks the
// topmost widget under p.
func (c *Controller) Down(ctx context.Context, widgetID string, p layout.Point) (drag.Session, error) {
	w, err := c.target(widgetID, p)
	if err != nil {
		return drag.Session{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drags.Begin(ctx, w, p), nil
}

// ResizeDown presses on a widget's resize handle.
func (c *Controller) ResizeDown(ctx context.Context, widgetID string, p layout.Point) (drag.Session, error) {
	w, err := c.target(widgetID, p)
	if err != nil {
		return drag.Session{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drags.BeginResize(ctx, w, p), nil
}

// Move follows the pointer. It reports false when nothing is held.
func (c *Controller) Move(p layout.Point, container layout.Size) (layout.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drags.Update(p, container)
}

// Up releases the pointer and commits the held widget.
func (c *Controller) Up(ctx context.Context) (drag.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drags.End(ctx)
}

// Active returns the pointer channel's session, if any.
func (c *Controller) Active() (drag.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drags.Active()
}

func (c *Controller) target(widgetID string, p layout.Point) (layout.Widget, error) {
	if widgetID == "" {
		w, ok := c.board.HitTest(p)
		if !ok {
			return layout.Widget{}, ErrNoTarget
		}
		return w, nil
	}
	w, ok := c.board.Widget(widgetID)
	if !ok {
		return layout.Widget{}, fmt.Errorf("pointer down on %q: %w", widgetID, layout.ErrUnknownWidget)
	}
	return w, nil
}
