// Package layout holds widget geometry, hit-testing, the live board and the
// layout store shared by every input channel.
package layout

import "math"

// Point is a position in render-surface pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Size is a width and height in render-surface pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Entry is the persisted layout of one widget.
type Entry struct {
	Position Point `json:"position"`
	Size     Size  `json:"size"`
}

// Widget is a movable rectangle on the board.
type Widget struct {
	ID       string `json:"id"`
	Position Point  `json:"position"`
	Size     Size   `json:"size"`
	ZOrder   int    `json:"zOrder"`
}

// Entry returns the persisted part of the widget.
func (w Widget) Entry() Entry {
	return Entry{Position: w.Position, Size: w.Size}
}

// Contains reports whether p lies inside the widget. Edges are inclusive.
func (w Widget) Contains(p Point) bool {
	return p.X >= w.Position.X && p.X <= w.Position.X+w.Size.Width &&
		p.Y >= w.Position.Y && p.Y <= w.Position.Y+w.Size.Height
}

// ClampPosition keeps a rectangle of the given size inside the container.
// Each axis is clamped to [0, container - size]; a rectangle larger than the
// container is pinned to 0.
func ClampPosition(pos Point, size Size, container Size) Point {
	return Point{
		X: clampAxis(pos.X, container.Width-size.Width),
		Y: clampAxis(pos.Y, container.Height-size.Height),
	}
}

func clampAxis(v, max float64) float64 {
	return math.Max(0, math.Min(v, max))
}
