// Package engine runs the per-frame gesture pipeline: normalize the landmark
// frame, step the pinch machine, resolve hover focus and drive the drag
// session for the gesture channel.
package engine

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mirror/internal/cursor"
	"github.com/ayusman/mirror/internal/detector"
	"github.com/ayusman/mirror/internal/drag"
	"github.com/ayusman/mirror/internal/gesture"
	"github.com/ayusman/mirror/internal/layout"
)

// Config holds the gesture channel settings.
type Config struct {
	Enabled        bool
	PinchThreshold float64
	Sensitivity    float64
	Smoothing      float64
	Filter         string
}

// DefaultConfig returns the stock gesture settings.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		PinchThreshold: cursor.DefaultPinchThreshold,
		Sensitivity:    1.0,
		Smoothing:      0.8,
		Filter:         cursor.FilterNone,
	}
}

// State is the engine's owned per-frame state.
type State struct {
	Gesture         gesture.State `json:"gesture"`
	Session         *drag.Session `json:"session,omitempty"`
	FocusedWidgetID string        `json:"focusedWidgetId,omitempty"`
}

// Snapshot is what the render surface sees after a frame.
type Snapshot struct {
	Frame    uint64         `json:"frame"`
	Enabled  bool           `json:"enabled"`
	Cursor   cursor.State   `json:"cursor"`
	Gesture  gesture.State  `json:"gesture"`
	Focus    string         `json:"focus,omitempty"`
	Dragging *layout.Widget `json:"dragging,omitempty"`
}

// Engine processes one frame at a time for the gesture channel.
type Engine struct {
	board *layout.Board
	log   logrus.FieldLogger

	mu         sync.Mutex
	enabled    bool
	normalizer *cursor.Normalizer
	filter     string
	machine    *gesture.Machine
	drags      *drag.Manager
	focus      string
	frame      uint64
	last       Snapshot
	listeners  []func(Snapshot)
}

// New creates an Engine drawing widgets from board and committing to store.
func New(board *layout.Board, store *layout.Store, cfg Config, log logrus.FieldLogger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "engine")

	e := &Engine{
		board:   board,
		log:     log,
		enabled: cfg.Enabled,
		normalizer: cursor.NewNormalizer(
			cfg.PinchThreshold,
			cfg.Sensitivity,
			cursor.NewFilter(cfg.Filter, cfg.Smoothing),
		),
		filter:  cfg.Filter,
		machine: gesture.NewMachine(),
		drags:   drag.NewManager(board, store, layout.SourceGesture, log),
	}
	e.last = Snapshot{Enabled: e.enabled, Gesture: gesture.StateIdle}
	return e
}

// OnSnapshot registers fn to receive every snapshot. Listeners run on the
// frame goroutine after the frame completes.
func (e *Engine) OnSnapshot(fn func(Snapshot)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// ProcessFrame runs the full pipeline for one landmark frame. A nil or
// malformed hand is processed as "no hand".
func (e *Engine) ProcessFrame(ctx context.Context, hand *detector.HandLandmarks, vp cursor.Viewport) Snapshot {
	e.mu.Lock()
	if hand != nil && !hand.Valid() {
		e.log.WithField("points", len(hand.Points)).Debug("malformed landmark frame")
	}
	var cs cursor.State
	if e.enabled {
		cs = e.normalizer.Normalize(hand, vp)
	}
	snap := e.step(ctx, cs, vp)
	listeners := e.listeners
	e.mu.Unlock()

	notify(listeners, snap)
	return snap
}

// Step runs the pipeline from an already normalized cursor state.
func (e *Engine) Step(ctx context.Context, cs cursor.State, vp cursor.Viewport) Snapshot {
	e.mu.Lock()
	snap := e.step(ctx, cs, vp)
	listeners := e.listeners
	e.mu.Unlock()

	notify(listeners, snap)
	return snap
}

func (e *Engine) step(ctx context.Context, cs cursor.State, vp cursor.Viewport) Snapshot {
	e.frame++
	if !e.enabled {
		e.last = Snapshot{Frame: e.frame, Gesture: e.machine.State()}
		return e.last
	}

	p := layout.Point{X: cs.X, Y: cs.Y}
	container := layout.Size{Width: vp.Width, Height: vp.Height}

	var (
		hover layout.Widget
		over  bool
	)
	if cs.Detected {
		hover, over = e.board.HitTest(p)
	}
	e.focus = ""
	if over {
		e.focus = hover.ID
	}

	switch e.machine.Step(gesture.Input{Detected: cs.Detected, Pinching: cs.IsPinching, OverWidget: over}) {
	case gesture.Started:
		e.drags.Begin(ctx, hover, p)
		e.drags.Update(p, container)
	case gesture.Ended:
		e.drags.End(ctx)
		e.focus = ""
		if !cs.Detected {
			e.log.Debug("hand lost while dragging")
		}
	default:
		if e.machine.State() == gesture.StateDragging {
			e.drags.Update(p, container)
		}
	}

	e.last = e.snapshot(cs)
	return e.last
}

func (e *Engine) snapshot(cs cursor.State) Snapshot {
	snap := Snapshot{
		Frame:   e.frame,
		Enabled: e.enabled,
		Cursor:  cs,
		Gesture: e.machine.State(),
		Focus:   e.focus,
	}
	if s, ok := e.drags.Active(); ok {
		if w, ok := e.board.Widget(s.WidgetID); ok {
			snap.Dragging = &w
		}
	}
	return snap
}

// SetEnabled turns the gesture channel on or off. Disabling ends any drag in
// progress with a commit before returning.
func (e *Engine) SetEnabled(ctx context.Context, enabled bool) {
	e.mu.Lock()
	if e.enabled == enabled {
		e.mu.Unlock()
		return
	}
	e.enabled = enabled
	if !enabled {
		if e.machine.Reset() {
			e.drags.End(ctx)
		}
		e.focus = ""
		e.normalizer.Normalize(nil, cursor.Viewport{})
	}
	e.log.WithField("enabled", enabled).Info("gesture control toggled")
	e.last = e.snapshot(cursor.Lost)
	snap := e.last
	listeners := e.listeners
	e.mu.Unlock()

	notify(listeners, snap)
}

// Enabled reports whether the gesture channel is on.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetPinchSensitivity changes the pinch threshold. Values outside the
// recognized range reset it to the default.
func (e *Engine) SetPinchSensitivity(threshold float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.normalizer.SetThreshold(threshold)
}

// PinchSensitivity returns the active pinch threshold.
func (e *Engine) PinchSensitivity() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.normalizer.Threshold()
}

// SetSensitivity changes the cursor gain. Non-positive values reset it to 1.
func (e *Engine) SetSensitivity(sensitivity float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.normalizer.SetSensitivity(sensitivity)
}

// SetSmoothing rebuilds the cursor filter with a new smoothing factor.
func (e *Engine) SetSmoothing(smoothing float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.normalizer.SetFilter(cursor.NewFilter(e.filter, smoothing))
}

// State returns a copy of the engine state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := State{Gesture: e.machine.State(), FocusedWidgetID: e.focus}
	if s, ok := e.drags.Active(); ok {
		st.Session = &s
	}
	return st
}

// Last returns the most recent snapshot.
func (e *Engine) Last() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func notify(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}
