package cursor

// Filter smooths successive cursor positions.
type Filter interface {
	Apply(x, y float64) (float64, float64)
	Reset()
}

// Filter names accepted in configuration.
const (
	FilterNone = "none"
	FilterEMA  = "ema"
)

// NewFilter returns the filter registered under name.
// Unknown names fall back to passthrough.
func NewFilter(name string, smoothing float64) Filter {
	if name == FilterEMA {
		return NewEMA(smoothing)
	}
	return Passthrough{}
}

// Passthrough returns positions unchanged.
type Passthrough struct{}

func (Passthrough) Apply(x, y float64) (float64, float64) { return x, y }
func (Passthrough) Reset()                                {}

// EMA is an exponential moving average. Smoothing is the weight kept from the
// previous output: 0 follows the hand exactly, values near 1 lag heavily.
type EMA struct {
	smoothing float64
	x, y      float64
	primed    bool
}

// NewEMA creates an EMA filter. Smoothing is clamped to [0, 0.99].
func NewEMA(smoothing float64) *EMA {
	return &EMA{smoothing: clamp(smoothing, 0, 0.99)}
}

// Apply feeds one position through the filter.
func (e *EMA) Apply(x, y float64) (float64, float64) {
	if !e.primed {
		e.x, e.y, e.primed = x, y, true
		return x, y
	}
	e.x = e.smoothing*e.x + (1-e.smoothing)*x
	e.y = e.smoothing*e.y + (1-e.smoothing)*y
	return e.x, e.y
}

// Reset forgets the history so the next position is taken as-is.
func (e *EMA) Reset() {
	e.primed = false
}
