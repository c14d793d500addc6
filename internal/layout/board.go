package layout

import (
	"context"
	"sort"
	"sync"
)

// Board is the live render-surface view of every widget: the position shown
// right now, which may run ahead of the store while a drag is in progress.
type Board struct {
	mu       sync.RWMutex
	widgets  []Widget
	dragging map[string]int
	bounds   Size

	cancel func()
}

// NewBoard creates a board for the catalog widgets, positioned from the store,
// and keeps it in sync with every committed change.
func NewBoard(ctx context.Context, store *Store, catalog []Widget) *Board {
	b := &Board{
		widgets:  make([]Widget, 0, len(catalog)),
		dragging: make(map[string]int),
	}
	for _, w := range catalog {
		if e, err := store.Get(ctx, w.ID); err == nil {
			w.Position, w.Size = e.Position, e.Size
		}
		b.widgets = append(b.widgets, w)
	}
	b.cancel = store.Subscribe(func(c Change) {
		b.Place(c.WidgetID, c.Entry)
	})
	return b
}

// Close stops following the store.
func (b *Board) Close() {
	if b.cancel != nil {
		b.cancel()
	}
}

// Widgets returns a snapshot of every widget in insertion order.
func (b *Board) Widgets() []Widget {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Widget(nil), b.widgets...)
}

// Widget returns the widget with the given id.
func (b *Board) Widget(id string) (Widget, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i := b.index(id); i >= 0 {
		return b.widgets[i], true
	}
	return Widget{}, false
}

// HitTest returns the topmost widget under p.
func (b *Board) HitTest(p Point) (Widget, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return HitTest(b.widgets, p)
}

// Place sets the live position and size of a widget. Once bounds are set
// the widget is kept inside them, whichever channel placed it.
func (b *Board) Place(id string, e Entry) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.index(id)
	if i < 0 {
		return false
	}
	b.widgets[i].Position, b.widgets[i].Size = b.clamp(e.Position, e.Size), e.Size
	return true
}

// SetBounds sets the display size and pulls every widget back inside it.
// Non-positive sizes are ignored.
func (b *Board) SetBounds(display Size) {
	if display.Width <= 0 || display.Height <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bounds = display
	for i := range b.widgets {
		b.widgets[i].Position = b.clamp(b.widgets[i].Position, b.widgets[i].Size)
	}
}

// Bounds returns the display size, if one has been set.
func (b *Board) Bounds() (Size, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bounds, b.bounds.Width > 0
}

// Fit returns e with its position clamped to the board bounds.
func (b *Board) Fit(e Entry) Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e.Position = b.clamp(e.Position, e.Size)
	return e
}

// SetDragging marks or clears a widget as being dragged. Marks are counted
// per channel, so the widget stays marked until every channel releases it.
func (b *Board) SetDragging(id string, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if on {
		b.dragging[id]++
		return
	}
	if b.dragging[id] <= 1 {
		delete(b.dragging, id)
		return
	}
	b.dragging[id]--
}

// IsDragging reports whether any channel is dragging the widget.
func (b *Board) IsDragging(id string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dragging[id] > 0
}

// Dragging returns the ids of widgets currently being dragged, sorted.
func (b *Board) Dragging() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.dragging))
	for id := range b.dragging {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (b *Board) clamp(pos Point, size Size) Point {
	if b.bounds.Width <= 0 {
		return pos
	}
	return ClampPosition(pos, size, b.bounds)
}

func (b *Board) index(id string) int {
	for i := range b.widgets {
		if b.widgets[i].ID == id {
			return i
		}
	}
	return -1
}
