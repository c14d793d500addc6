// Package cursor turns hand landmark frames into an on-screen cursor and a
// scale-invariant pinch metric.
package cursor

import (
	"math"

	"github.com/ayusman/mirror/internal/detector"
)

// Pinch calibration constants.
const (
	// PinchOffsetPx is subtracted from the raw fingertip distance so that
	// touching fingertips read as fully closed.
	PinchOffsetPx = 10.0
	// PinchScale multiplies the mean bone length to get the distance that
	// reads as fully open.
	PinchScale = 4.5
)

// Pinch sensitivity bounds.
const (
	DefaultPinchThreshold = 0.2
	MinPinchThreshold     = 0.05
	MaxPinchThreshold     = 0.5
)

// Viewport is the pixel size of the render surface the cursor lives on.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the viewport has no area.
func (v Viewport) Empty() bool {
	return v.Width <= 0 || v.Height <= 0
}

// State is the cursor derived from one frame.
type State struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Detected      bool    `json:"detected"`
	IsPinching    bool    `json:"isPinching"`
	PinchStrength float64 `json:"pinchStrength"`
	PinchDistance float64 `json:"pinchDistance"`
}

// Lost is the state emitted when no hand is detected.
var Lost = State{}

// Metric converts a fingertip distance and a hand scale reference, both in
// pixels, into the normalized pinch distance, the pinch strength and whether
// the hand counts as pinching for the given threshold.
func Metric(distancePx, scaleRef, threshold float64) (normalized, strength float64, pinching bool) {
	if scaleRef <= 0 {
		normalized = 1
	} else {
		normalized = clamp((distancePx-PinchOffsetPx)/(scaleRef*PinchScale), 0, 1)
	}
	strength = clamp(1-normalized/threshold, 0, 1)
	pinching = normalized < threshold
	return normalized, strength, pinching
}

// Normalizer maps landmark frames to cursor states.
type Normalizer struct {
	threshold   float64
	sensitivity float64
	filter      Filter
}

// NewNormalizer creates a Normalizer. A nil filter means passthrough.
// Out-of-range thresholds fall back to DefaultPinchThreshold and a
// non-positive sensitivity falls back to 1.
func NewNormalizer(threshold, sensitivity float64, filter Filter) *Normalizer {
	n := &Normalizer{filter: filter}
	n.SetThreshold(threshold)
	n.SetSensitivity(sensitivity)
	if n.filter == nil {
		n.filter = Passthrough{}
	}
	return n
}

// SetThreshold updates the pinch threshold.
func (n *Normalizer) SetThreshold(threshold float64) {
	if threshold < MinPinchThreshold || threshold > MaxPinchThreshold {
		threshold = DefaultPinchThreshold
	}
	n.threshold = threshold
}

// Threshold returns the active pinch threshold.
func (n *Normalizer) Threshold() float64 {
	return n.threshold
}

// SetSensitivity updates the cursor gain around the viewport centre.
func (n *Normalizer) SetSensitivity(sensitivity float64) {
	if sensitivity <= 0 {
		sensitivity = 1
	}
	n.sensitivity = sensitivity
}

// SetFilter swaps the cursor filter. A nil filter means passthrough.
func (n *Normalizer) SetFilter(filter Filter) {
	if filter == nil {
		filter = Passthrough{}
	}
	n.filter = filter
}

// Normalize derives the cursor state for one frame. A nil or malformed hand
// yields Lost and resets the cursor filter.
func (n *Normalizer) Normalize(hand *detector.HandLandmarks, vp Viewport) State {
	if !hand.Valid() || vp.Empty() {
		n.filter.Reset()
		return Lost
	}

	thumb, index := hand.Tips()

	// Pinch geometry in viewport pixels.
	tx, ty := thumb.X*vp.Width, thumb.Y*vp.Height
	ix, iy := index.X*vp.Width, index.Y*vp.Height
	pinchPx := math.Hypot(tx-ix, ty-iy)

	normalized, strength, pinching := Metric(pinchPx, scaleReference(hand, vp), n.threshold)

	// Camera is front-facing: mirror x so the cursor follows the user.
	x := ((1 - thumb.X) + (1 - index.X)) / 2 * vp.Width
	y := (thumb.Y + index.Y) / 2 * vp.Height

	if n.sensitivity != 1 {
		x = vp.Width/2 + (x-vp.Width/2)*n.sensitivity
		y = vp.Height/2 + (y-vp.Height/2)*n.sensitivity
	}
	x, y = n.filter.Apply(x, y)

	return State{
		X:             clamp(x, 0, vp.Width),
		Y:             clamp(y, 0, vp.Height),
		Detected:      true,
		IsPinching:    pinching,
		PinchStrength: strength,
		PinchDistance: normalized,
	}
}

// scaleReference is the mean bone length of the hand in viewport pixels.
func scaleReference(hand *detector.HandLandmarks, vp Viewport) float64 {
	var total float64
	for _, b := range detector.HandBones {
		a, c := hand.Points[b[0]], hand.Points[b[1]]
		total += math.Hypot((a.X-c.X)*vp.Width, (a.Y-c.Y)*vp.Height)
	}
	return total / float64(len(detector.HandBones))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
