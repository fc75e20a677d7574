package swuart

// FIFO size limits, in bits (size is 1<<bits).
const (
	DefaultFIFOBits = 4
	MaxFIFOBits     = 8
)

// NoUnit is returned by the sentinel accessors when there is no unit;
// valid units never exceed MaxDataBits bits.
const NoUnit uint16 = 0xffff

// FIFO is a fixed-capacity circular queue of received units.
// When full, pushing evicts the oldest unit.
type FIFO struct {
	buf   []uint16
	mask  int
	read  int
	write int
	empty bool
}

// NewFIFO creates a FIFO holding 1<<sizeBits units.
// sizeBits is capped at MaxFIFOBits.
func NewFIFO(sizeBits uint) *FIFO {
	if sizeBits > MaxFIFOBits {
		sizeBits = MaxFIFOBits
	}
	size := 1 << sizeBits
	return &FIFO{buf: make([]uint16, size), mask: size - 1, empty: true}
}

// Cap returns the capacity.
func (f *FIFO) Cap() int {
	return len(f.buf)
}

// Len returns the number of queued units.
func (f *FIFO) Len() int {
	if f.empty {
		return 0
	}
	n := f.write - f.read
	if n <= 0 {
		n += len(f.buf)
	}
	return n
}

// Push appends a unit. It reports an overrun if the oldest unit was evicted.
func (f *FIFO) Push(unit uint16) (overrun bool) {
	next := (f.write + 1) & f.mask
	f.buf[f.write] = unit
	if !f.empty && f.write == f.read {
		overrun = true
		f.read = next
	}
	f.write = next
	f.empty = false
	return
}

// Pull removes and returns the oldest unit.
func (f *FIFO) Pull() (uint16, bool) {
	if f.empty {
		return 0, false
	}
	unit := f.buf[f.read]
	f.read = (f.read + 1) & f.mask
	if f.read == f.write {
		f.Flush()
	}
	return unit, true
}

// Peek returns the oldest unit without removing it.
func (f *FIFO) Peek() (uint16, bool) {
	return f.PeekAt(0)
}

// PeekAt returns the n-th oldest unit (0 is the oldest) without removing it.
func (f *FIFO) PeekAt(n int) (uint16, bool) {
	if n < 0 || n >= f.Len() {
		return 0, false
	}
	return f.buf[(f.read+n)&f.mask], true
}

// Flush empties the FIFO.
func (f *FIFO) Flush() {
	f.read, f.write = 0, 0
	f.empty = true
}
