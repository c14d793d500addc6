// Package drag manages drag sessions: the anchor captured when a widget is
// grabbed, the clamped live position while it moves and the commit on release.
package drag

import (
	"time"

	"github.com/ayusman/mirror/internal/layout"
)

// Mode is what a session changes.
type Mode string

const (
	ModeMove   Mode = "move"
	ModeResize Mode = "resize"
)

// Minimum widget size when resizing.
const (
	MinWidth  = 150.0
	MinHeight = 100.0
)

// Session is one in-progress drag.
type Session struct {
	ID             string        `json:"id"`
	WidgetID       string        `json:"widgetId"`
	Mode           Mode          `json:"mode"`
	Source         layout.Source `json:"source"`
	AnchorCursor   layout.Point  `json:"anchorCursor"`
	AnchorPosition layout.Point  `json:"anchorPosition"`
	AnchorSize     layout.Size   `json:"anchorSize"`
	Current        layout.Point  `json:"current"`
	CurrentSize    layout.Size   `json:"currentSize"`
	StartedAt      time.Time     `json:"startedAt"`
}

// Entry is the layout the session would commit now.
func (s Session) Entry() layout.Entry {
	return layout.Entry{Position: s.Current, Size: s.CurrentSize}
}

// step computes the next layout for a cursor position inside container.
func (s *Session) step(cursor layout.Point, container layout.Size) {
	delta := cursor.Sub(s.AnchorCursor)

	switch s.Mode {
	case ModeResize:
		maxW := container.Width - s.AnchorPosition.X
		maxH := container.Height - s.AnchorPosition.Y
		s.CurrentSize = layout.Size{
			Width:  bound(s.AnchorSize.Width+delta.X, MinWidth, maxW),
			Height: bound(s.AnchorSize.Height+delta.Y, MinHeight, maxH),
		}
		s.Current = layout.ClampPosition(s.AnchorPosition, s.CurrentSize, container)
	default:
		s.Current = layout.ClampPosition(s.AnchorPosition.Add(delta), s.AnchorSize, container)
	}
}

// bound clamps v to [lo, hi]; lo wins when the range is empty.
func bound(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
