// Package gesture provides the pinch state machine that turns per-frame cursor
// observations into drag start and end edges.
package gesture

// State is the discrete gesture state.
type State string

const (
	// StateIdle means no drag is in progress.
	StateIdle State = "idle"
	// StateDragging means a pinch is holding a widget.
	StateDragging State = "dragging"
)

// Transition is the edge produced by a single Step.
type Transition int

const (
	// None means the state did not change.
	None Transition = iota
	// Started means the machine moved from Idle to Dragging.
	Started
	// Ended means the machine moved from Dragging to Idle.
	Ended
)

func (t Transition) String() string {
	switch t {
	case Started:
		return "started"
	case Ended:
		return "ended"
	default:
		return "none"
	}
}

// Input is one frame's worth of observations.
type Input struct {
	Detected   bool
	Pinching   bool
	OverWidget bool
}

// Machine is the two-state pinch machine. It is not safe for concurrent use;
// the engine serializes access.
type Machine struct {
	state       State
	wasPinching bool
}

// NewMachine creates a Machine in the Idle state.
func NewMachine() *Machine {
	return &Machine{state: StateIdle}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Step advances the machine by one frame.
//
// A drag starts only on the frame where the pinch rises while a widget is
// under the cursor. Holding a pinch that began elsewhere never starts one.
func (m *Machine) Step(in Input) Transition {
	pinching := in.Detected && in.Pinching
	rising := pinching && !m.wasPinching
	m.wasPinching = pinching

	switch m.state {
	case StateIdle:
		if rising && in.OverWidget {
			m.state = StateDragging
			return Started
		}
	case StateDragging:
		if !pinching {
			m.state = StateIdle
			return Ended
		}
	}
	return None
}

// Reset forces the machine to Idle and reports whether a drag was active.
func (m *Machine) Reset() bool {
	active := m.state == StateDragging
	m.state = StateIdle
	m.wasPinching = false
	return active
}
