package gesture

import "testing"

func TestMachine_Step(t *testing.T) {
	var (
		lost      = Input{}
		open      = Input{Detected: true}
		openOver  = Input{Detected: true, OverWidget: true}
		pinch     = Input{Detected: true, Pinching: true}
		pinchOver = Input{Detected: true, Pinching: true, OverWidget: true}
	)

	tests := []struct {
		name   string
		inputs []Input
		want   []Transition
		final  State
	}{
		{
			name:   "pinch over widget starts drag",
			inputs: []Input{openOver, pinchOver},
			want:   []Transition{None, Started},
			final:  StateDragging,
		},
		{
			name:   "first frame pinch over widget starts drag",
			inputs: []Input{pinchOver},
			want:   []Transition{Started},
			final:  StateDragging,
		},
		{
			name:   "release ends drag",
			inputs: []Input{pinchOver, pinch, open},
			want:   []Transition{Started, None, Ended},
			final:  StateIdle,
		},
		{
			name:   "hand loss ends drag",
			inputs: []Input{pinchOver, lost},
			want:   []Transition{Started, Ended},
			final:  StateIdle,
		},
		{
			name:   "pinch over empty space never drags",
			inputs: []Input{pinch, pinchOver, pinchOver},
			want:   []Transition{None, None, None},
			final:  StateIdle,
		},
		{
			name:   "re-pinch after release starts again",
			inputs: []Input{pinch, pinchOver, openOver, pinchOver},
			want:   []Transition{None, None, None, Started},
			final:  StateDragging,
		},
		{
			name:   "pinch after hand loss is a new rising edge",
			inputs: []Input{pinch, lost, pinchOver},
			want:   []Transition{None, None, Started},
			final:  StateDragging,
		},
		{
			name:   "pinching flag without detection is ignored",
			inputs: []Input{{Pinching: true, OverWidget: true}},
			want:   []Transition{None},
			final:  StateIdle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			for i, in := range tt.inputs {
				if got := m.Step(in); got != tt.want[i] {
					t.Errorf("frame %d: got %v, want %v", i, got, tt.want[i])
				}
			}
			if m.State() != tt.final {
				t.Errorf("final state: got %q, want %q", m.State(), tt.final)
			}
		})
	}
}

func TestMachine_Reset(t *testing.T) {
	m := NewMachine()
	if m.Reset() {
		t.Error("Reset on idle machine reported an active drag")
	}

	m.Step(Input{Detected: true, Pinching: true, OverWidget: true})
	if !m.Reset() {
		t.Error("Reset while dragging should report an active drag")
	}
	if m.State() != StateIdle {
		t.Errorf("got %q, want %q", m.State(), StateIdle)
	}

	// The held pinch no longer counts as already pinching after a reset.
	if got := m.Step(Input{Detected: true, Pinching: true, OverWidget: true}); got != Started {
		t.Errorf("got %v, want %v", got, Started)
	}
}

func TestTransition_String(t *testing.T) {
	for tr, want := range map[Transition]string{None: "none", Started: "started", Ended: "ended"} {
		if got := tr.String(); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	}
}
