package swuart

// Level is the state of a serial line.
type Level uint8

// Line levels. The idle line and stop bits are Mark, the start bit is Space.
const (
	Space Level = 0
	Mark  Level = 1
)

func levelOf(high bool) Level {
	if high {
		return Mark
	}
	return Space
}

// String implements fmt.Stringer.
func (l Level) String() string {
	if l == Mark {
		return "mark"
	}
	return "space"
}

// LineSetter drives a transmission line.
type LineSetter interface {
	SetLine(Level)
}

// SetLineFunc is func form of LineSetter.
type SetLineFunc func(Level)

// SetLine implements LineSetter.
func (f SetLineFunc) SetLine(l Level) {
	f(l)
}

// LineGetter reads a reception line.
type LineGetter interface {
	GetLine() Level
}

// GetLineFunc is func form of LineGetter.
type GetLineFunc func() Level

// GetLine implements LineGetter.
func (f GetLineFunc) GetLine() Level {
	return f()
}

// Wire is an in-memory line connecting a Transmitter to a Receiver.
type Wire struct {
	level Level
	// Transitions counts level changes.
	Transitions int
}

// NewWire creates a Wire in the idle (mark) state.
func NewWire() *Wire {
	return &Wire{level: Mark}
}

// SetLine implements LineSetter.
func (w *Wire) SetLine(l Level) {
	if l != w.level {
		w.Transitions++
	}
	w.level = l
}

// GetLine implements LineGetter.
func (w *Wire) GetLine() Level {
	return w.level
}
