package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	queue [][]HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// Queue appends per-call results. Queued results are returned one per
// Detect call before falling back to the hands set with SetHands.
func (m *MockDetector) Queue(frames ...[]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, frames...)
}

// Pending returns how many queued results are left.
func (m *MockDetector) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		return next, nil
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// OpenPalmLandmarks returns a preset HandLandmarks representing an open palm.
// All fingers are extended and the thumb points away from the index finger.
func OpenPalmLandmarks() HandLandmarks {
	return HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
		Points: []Point3D{
			Wrist: {X: 0.5, Y: 0.8, Z: 0.0},

			ThumbCMC: {X: 0.55, Y: 0.75, Z: 0.02},
			ThumbMCP: {X: 0.62, Y: 0.70, Z: 0.03},
			ThumbIP:  {X: 0.68, Y: 0.65, Z: 0.03},
			ThumbTip: {X: 0.73, Y: 0.60, Z: 0.03},

			IndexMCP: {X: 0.55, Y: 0.68, Z: 0.0},
			IndexPIP: {X: 0.57, Y: 0.55, Z: 0.0},
			IndexDIP: {X: 0.58, Y: 0.45, Z: 0.0},
			IndexTip: {X: 0.58, Y: 0.35, Z: 0.0},

			MiddleMCP: {X: 0.50, Y: 0.66, Z: 0.0},
			MiddlePIP: {X: 0.50, Y: 0.52, Z: 0.0},
			MiddleDIP: {X: 0.50, Y: 0.40, Z: 0.0},
			MiddleTip: {X: 0.50, Y: 0.28, Z: 0.0},

			RingMCP: {X: 0.45, Y: 0.68, Z: 0.0},
			RingPIP: {X: 0.43, Y: 0.55, Z: 0.0},
			RingDIP: {X: 0.42, Y: 0.45, Z: 0.0},
			RingTip: {X: 0.42, Y: 0.35, Z: 0.0},

			PinkyMCP: {X: 0.40, Y: 0.70, Z: 0.0},
			PinkyPIP: {X: 0.37, Y: 0.60, Z: 0.0},
			PinkyDIP: {X: 0.35, Y: 0.50, Z: 0.0},
			PinkyTip: {X: 0.34, Y: 0.42, Z: 0.0},
		},
	}
}

// PinchLandmarks returns an open palm translated so the midpoint between the
// thumb tip and index fingertip sits at (cx, cy) in camera space, with the two
// tips gap apart horizontally. A gap of 0 is a closed pinch.
func PinchLandmarks(cx, cy, gap float64) HandLandmarks {
	hand := OpenPalmLandmarks()

	thumb, index := hand.Tips()
	dx := cx - (thumb.X+index.X)/2
	dy := cy - (thumb.Y+index.Y)/2
	for i := range hand.Points {
		hand.Points[i].X += dx
		hand.Points[i].Y += dy
	}

	hand.Points[ThumbTip] = Point3D{X: cx - gap/2, Y: cy, Z: 0.03}
	hand.Points[IndexTip] = Point3D{X: cx + gap/2, Y: cy, Z: 0.0}

	return hand
}
