package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mirror/internal/cursor"
	"github.com/ayusman/mirror/internal/detector"
	"github.com/ayusman/mirror/internal/gesture"
	"github.com/ayusman/mirror/internal/layout"
	"github.com/ayusman/mirror/internal/pointer"
)

var viewport = cursor.Viewport{Width: 1280, Height: 720}

type harness struct {
	engine  *Engine
	store   *layout.Store
	board   *layout.Board
	backend *layout.MemoryBackend
	hook    *test.Hook
}

func newHarness(t *testing.T, widgets ...layout.Widget) *harness {
	t.Helper()
	if len(widgets) == 0 {
		widgets = layout.DefaultCatalog()
	}
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	backend := layout.NewMemoryBackend()
	store := layout.NewStore(backend, widgets, log)
	board := layout.NewBoard(context.Background(), store, widgets)
	t.Cleanup(board.Close)

	return &harness{
		engine:  New(board, store, DefaultConfig(), log),
		store:   store,
		board:   board,
		backend: backend,
		hook:    hook,
	}
}

// at is a detected cursor with the given normalized pinch distance.
func at(x, y, distance float64) cursor.State {
	return cursor.State{
		X:             x,
		Y:             y,
		Detected:      true,
		PinchDistance: distance,
		IsPinching:    distance < cursor.DefaultPinchThreshold,
	}
}

func (h *harness) stored(t *testing.T, id string) layout.Entry {
	t.Helper()
	e, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return e
}

func (h *harness) live(t *testing.T, id string) layout.Widget {
	t.Helper()
	w, ok := h.board.Widget(id)
	require.True(t, ok)
	return w
}

var w = layout.Widget{ID: "w", Position: layout.Point{X: 100, Y: 100}, Size: layout.Size{Width: 200, Height: 100}, ZOrder: 1}

func TestScenarioA_NoHand(t *testing.T) {
	h := newHarness(t, w)

	snap := h.engine.ProcessFrame(context.Background(), nil, viewport)

	assert.False(t, snap.Cursor.Detected)
	assert.Empty(t, snap.Focus)
	assert.Nil(t, snap.Dragging)
	st := h.engine.State()
	assert.Equal(t, gesture.StateIdle, st.Gesture)
	assert.Nil(t, st.Session)
}

func TestScenarioB_HoverPrefersHigherZ(t *testing.T) {
	v := layout.Widget{ID: "v", Position: layout.Point{X: 150, Y: 120}, Size: layout.Size{Width: 100, Height: 100}, ZOrder: 2}
	h := newHarness(t, w, v)

	snap := h.engine.Step(context.Background(), at(160, 150, 0.6), viewport)
	assert.Equal(t, "v", snap.Focus)
	assert.Equal(t, "v", h.engine.State().FocusedWidgetID)

	snap = h.engine.Step(context.Background(), at(110, 110, 0.6), viewport)
	assert.Equal(t, "w", snap.Focus)

	snap = h.engine.Step(context.Background(), at(900, 600, 0.6), viewport)
	assert.Empty(t, snap.Focus, "focus clears outside every widget")
}

func TestScenarioC_PinchDragRelease(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, w)

	for _, d := range []float64{0.5, 0.3} {
		h.engine.Step(ctx, at(150, 150, d), viewport)
		assert.Nil(t, h.engine.State().Session, "distance %v must not start a drag", d)
	}

	h.engine.Step(ctx, at(150, 150, 0.1), viewport)
	st := h.engine.State()
	require.NotNil(t, st.Session)
	assert.Equal(t, gesture.StateDragging, st.Gesture)
	assert.Equal(t, "w", st.Session.WidgetID)
	assert.Equal(t, w.Position, st.Session.AnchorPosition)

	snap := h.engine.Step(ctx, at(200, 180, 0.1), viewport)
	want := layout.Point{X: 150, Y: 130}
	assert.Equal(t, want, h.live(t, "w").Position)
	require.NotNil(t, snap.Dragging)
	assert.Equal(t, want, snap.Dragging.Position)
	assert.Equal(t, w.Position, h.stored(t, "w").Position, "not committed mid-drag")

	snap = h.engine.Step(ctx, at(200, 180, 0.3), viewport)
	assert.Equal(t, gesture.StateIdle, snap.Gesture)
	assert.Empty(t, snap.Focus, "focus clears on release")
	assert.Nil(t, h.engine.State().Session)
	assert.Equal(t, layout.Entry{Position: want, Size: w.Size}, h.stored(t, "w"))
	assert.False(t, h.board.IsDragging("w"))
}

func TestScenarioD_FullOverlap(t *testing.T) {
	low := layout.Widget{ID: "low", Position: layout.Point{X: 300, Y: 300}, Size: layout.Size{Width: 200, Height: 200}, ZOrder: 3}
	high := low
	high.ID, high.ZOrder = "high", 5
	h := newHarness(t, high, low)
	ctx := context.Background()

	for _, d := range []float64{0.6, 0.6, 0.1, 0.1} {
		snap := h.engine.Step(ctx, at(400, 400, d), viewport)
		assert.Equal(t, "high", snap.Focus)
	}

	require.NotNil(t, h.engine.State().Session)
	assert.Equal(t, "high", h.engine.State().Session.WidgetID)
}

func TestHandLossCommitsSameFrame(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, w)

	h.engine.Step(ctx, at(150, 150, 0.05), viewport)
	h.engine.Step(ctx, at(170, 140, 0.05), viewport)

	snap := h.engine.Step(ctx, cursor.Lost, viewport)

	assert.Equal(t, gesture.StateIdle, snap.Gesture)
	assert.Nil(t, h.engine.State().Session)
	assert.Equal(t, layout.Point{X: 120, Y: 90}, h.stored(t, "w").Position,
		"last computed position is committed, not the anchor")
}

func TestPinchOverEmptySpaceNeverDrags(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, w)

	h.engine.Step(ctx, at(800, 500, 0.05), viewport)
	for _, x := range []float64{400, 250, 150} {
		snap := h.engine.Step(ctx, at(x, 150, 0.05), viewport)
		assert.Nil(t, snap.Dragging)
	}

	assert.Nil(t, h.engine.State().Session)
	assert.Equal(t, "w", h.engine.State().FocusedWidgetID, "hover still tracks the cursor")
	assert.Equal(t, 0, h.backend.Saves())
}

func TestUnmovedSessionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, w)
	before := h.stored(t, "w")

	h.engine.Step(ctx, at(150, 150, 0.05), viewport)
	h.engine.Step(ctx, at(150, 150, 0.05), viewport)
	h.engine.Step(ctx, at(150, 150, 0.6), viewport)

	assert.Equal(t, before, h.stored(t, "w"))
	assert.Equal(t, 1, h.backend.Saves())
}

func TestClampingEveryFrame(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, w)

	h.engine.Step(ctx, at(150, 150, 0.05), viewport)
	path := [][2]float64{{0, 0}, {-500, 300}, {1280, 720}, {3000, -40}, {640, 5000}, {1, 1}}
	for _, p := range path {
		h.engine.Step(ctx, at(p[0], p[1], 0.05), viewport)
		pos := h.live(t, "w").Position
		assert.GreaterOrEqual(t, pos.X, 0.0)
		assert.GreaterOrEqual(t, pos.Y, 0.0)
		assert.LessOrEqual(t, pos.X, viewport.Width-w.Size.Width)
		assert.LessOrEqual(t, pos.Y, viewport.Height-w.Size.Height)
	}

	h.engine.Step(ctx, cursor.Lost, viewport)
	pos := h.stored(t, "w").Position
	assert.GreaterOrEqual(t, pos.X, 0.0)
	assert.LessOrEqual(t, pos.X, viewport.Width-w.Size.Width)
}

func TestDisableWhileDraggingCommits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, w)

	var last Snapshot
	h.engine.OnSnapshot(func(s Snapshot) { last = s })

	h.engine.Step(ctx, at(150, 150, 0.05), viewport)
	h.engine.Step(ctx, at(160, 150, 0.05), viewport)

	h.engine.SetEnabled(ctx, false)

	assert.False(t, h.engine.Enabled())
	assert.Nil(t, h.engine.State().Session)
	assert.Equal(t, gesture.StateIdle, h.engine.State().Gesture)
	assert.Equal(t, layout.Point{X: 110, Y: 100}, h.stored(t, "w").Position)
	assert.False(t, last.Enabled)
	assert.False(t, last.Cursor.Detected)

	snap := h.engine.Step(ctx, at(150, 150, 0.05), viewport)
	assert.Nil(t, snap.Dragging, "frames are ignored while disabled")

	h.engine.SetEnabled(ctx, true)
	h.engine.Step(ctx, at(170, 150, 0.05), viewport)
	assert.NotNil(t, h.engine.State().Session)
}

func TestStoreFailureKeepsLivePosition(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, w)
	h.backend.SetError(errors.New("storage unavailable"))

	h.engine.Step(ctx, at(150, 150, 0.05), viewport)
	h.engine.Step(ctx, at(250, 250, 0.05), viewport)
	h.engine.Step(ctx, at(250, 250, 0.6), viewport)

	want := layout.Point{X: 200, Y: 200}
	assert.Equal(t, want, h.live(t, "w").Position)
	assert.Equal(t, want, h.stored(t, "w").Position, "memory keeps the value")

	var logged bool
	for _, e := range h.hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Data["widget"] == "w" && e.Data["session"] != nil {
			logged = true
		}
	}
	assert.True(t, logged, "commit failure is logged with widget and session")
}

func TestCrossChannelVisibility(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	log, _ := test.NewNullLogger()
	mouse := pointer.New(h.board, h.store, log)

	// Gesture drags the clock; the pointer channel sees it at the new spot.
	h.engine.Step(ctx, at(300, 100, 0.05), viewport)
	h.engine.Step(ctx, at(700, 500, 0.05), viewport)
	h.engine.Step(ctx, at(700, 500, 0.6), viewport)

	s, err := mouse.Down(ctx, "", layout.Point{X: 700, Y: 500})
	require.NoError(t, err)
	assert.Equal(t, layout.ClockID, s.WidgetID)
	mouse.Up(ctx)

	// Pointer moves the date widget; the gesture channel hovers it there.
	_, err = mouse.Down(ctx, layout.DateID, layout.Point{X: 100, Y: 220})
	require.NoError(t, err)
	mouse.Move(layout.Point{X: 1000, Y: 320}, layout.Size{Width: viewport.Width, Height: viewport.Height})
	mouse.Up(ctx)

	assert.Equal(t, layout.Point{X: 950, Y: 300}, h.stored(t, layout.DateID).Position)
	snap := h.engine.Step(ctx, at(1000, 320, 0.6), viewport)
	assert.Equal(t, layout.DateID, snap.Focus)
}

func TestProcessFrameLandmarks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, w)
	square := cursor.Viewport{Width: 1000, Height: 1000}

	open := detector.PinchLandmarks(0.8, 0.15, 0.3)
	snap := h.engine.ProcessFrame(ctx, &open, square)
	require.True(t, snap.Cursor.Detected)
	assert.False(t, snap.Cursor.IsPinching)
	assert.Equal(t, "w", snap.Focus)

	closed := detector.PinchLandmarks(0.8, 0.15, 0)
	h.engine.ProcessFrame(ctx, &closed, square)
	require.NotNil(t, h.engine.State().Session)

	moved := detector.PinchLandmarks(0.75, 0.2, 0)
	h.engine.ProcessFrame(ctx, &moved, square)
	assert.InDelta(t, 150, h.live(t, "w").Position.X, 1e-6)
	assert.InDelta(t, 150, h.live(t, "w").Position.Y, 1e-6)

	malformed := detector.HandLandmarks{Points: closed.Points[:5]}
	snap = h.engine.ProcessFrame(ctx, &malformed, square)
	assert.False(t, snap.Cursor.Detected)
	assert.Equal(t, gesture.StateIdle, snap.Gesture)
	assert.InDelta(t, 150, h.stored(t, "w").Position.X, 1e-6)
}

func TestSetPinchSensitivity(t *testing.T) {
	h := newHarness(t, w)

	h.engine.SetPinchSensitivity(0.4)
	assert.Equal(t, 0.4, h.engine.PinchSensitivity())

	h.engine.SetPinchSensitivity(2)
	assert.Equal(t, cursor.DefaultPinchThreshold, h.engine.PinchSensitivity())
}

func TestSnapshotFrameCounter(t *testing.T) {
	h := newHarness(t, w)
	var frames []uint64
	h.engine.OnSnapshot(func(s Snapshot) { frames = append(frames, s.Frame) })

	for i := 0; i < 3; i++ {
		h.engine.ProcessFrame(context.Background(), nil, viewport)
	}
	assert.Equal(t, []uint64{1, 2, 3}, frames)
	assert.Equal(t, uint64(3), h.engine.Last().Frame)
}

func TestSetSensitivity(t *testing.T) {
	h := newHarness(t, w)
	square := cursor.Viewport{Width: 1000, Height: 1000}
	hand := detector.PinchLandmarks(0.4, 0.45, 0.3)

	snap := h.engine.ProcessFrame(context.Background(), &hand, square)
	assert.InDelta(t, 600, snap.Cursor.X, 1e-6)
	assert.InDelta(t, 450, snap.Cursor.Y, 1e-6)

	h.engine.SetSensitivity(2)
	snap = h.engine.ProcessFrame(context.Background(), &hand, square)
	assert.InDelta(t, 700, snap.Cursor.X, 1e-6)
	assert.InDelta(t, 400, snap.Cursor.Y, 1e-6)
}

func TestSetSmoothing(t *testing.T) {
	log, _ := test.NewNullLogger()
	store := layout.NewStore(nil, []layout.Widget{w}, log)
	board := layout.NewBoard(context.Background(), store, []layout.Widget{w})
	t.Cleanup(board.Close)

	cfg := DefaultConfig()
	cfg.Filter = cursor.FilterEMA
	cfg.Smoothing = 0.5
	e := New(board, store, cfg, log)
	square := cursor.Viewport{Width: 1000, Height: 1000}

	first := detector.PinchLandmarks(0.4, 0.5, 0.3)
	second := detector.PinchLandmarks(0.2, 0.5, 0.3)

	e.ProcessFrame(context.Background(), &first, square)
	snap := e.ProcessFrame(context.Background(), &second, square)
	assert.InDelta(t, 700, snap.Cursor.X, 1e-6, "halfway between 600 and 800")

	e.SetSmoothing(0)
	snap = e.ProcessFrame(context.Background(), &first, square)
	assert.InDelta(t, 600, snap.Cursor.X, 1e-6)
}
