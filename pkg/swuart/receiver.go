package swuart

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/swuart/pkg/gtimer"
)

type rxState int

const (
	rxIdle rxState = iota
	rxStart
	rxData
	rxParity
	rxStop1
	rxStop2
)

// Receiver decodes units from a line into a FIFO.
// ScanForStart must be polled often enough to catch the start bit edge;
// sampling then proceeds in timer callbacks.
type Receiver struct {
	pool  *gtimer.Pool
	cfg   *Config
	timer gtimer.ID
	line  LineGetter
	fifo  *FIFO

	state      rxState
	inProgress bool
	dontStore  bool
	shift      uint16
	bitIndex   uint8
	setBits    uint8
	scanPos    uint8
	scanVotes  uint8
	errors     ErrorFlags
}

// NewReceiver creates a Receiver using timers from pool, with a FIFO of
// 1<<DefaultFIFOBits units.
func NewReceiver(pool *gtimer.Pool) *Receiver {
	return &Receiver{pool: pool, timer: gtimer.NoTimer, fifo: NewFIFO(DefaultFIFOBits)}
}

// WithFIFO replaces the receive FIFO. Units queued in the old FIFO are lost.
func (r *Receiver) WithFIFO(f *FIFO) *Receiver {
	if f != nil {
		r.fifo = f
	}
	return r
}

// Init binds the receiver to cfg, a reserved timer and the input line.
// The FIFO is emptied and errors are cleared.
func (r *Receiver) Init(cfg *Config, timer gtimer.ID, line LineGetter) error {
	if cfg == nil {
		return ErrNoConfig
	}
	if line == nil {
		return ErrNoLine
	}
	// half (or quarter) bit delays must not go below the minimum timer count
	granularity := uint16(2 * 2)
	if cfg.TripleScan {
		granularity = 2 * 4
	}
	if cfg.BitWidth == 0 || cfg.BitWidth&(granularity-1) != 0 {
		return &ConfigError{Field: "BitWidth", Reason: fmt.Sprintf("%d not a multiple of %d", cfg.BitWidth, granularity)}
	}
	if err := cfg.validateFraming(); err != nil {
		return err
	}
	if !r.pool.InUse(timer) {
		return ErrNoTimer
	}
	r.cfg, r.timer, r.line = cfg, timer, line
	r.inProgress = false
	r.state = rxIdle
	r.errors = 0
	r.fifo.Flush()
	r.pool.Freeze(timer)
	r.pool.SetCallback(timer, r, 0, nil)
	return nil
}

// ScanForStart checks the line for a start bit while idle and, if found,
// starts sampling. It reports whether a reception was started by this call.
// Nothing is started if the timer was released since Init.
func (r *Receiver) ScanForStart() bool {
	if r.cfg == nil || r.inProgress || !r.pool.InUse(r.timer) || r.line.GetLine() != Space {
		return false
	}
	r.inProgress = true
	r.state = rxStart
	r.scanPos, r.scanVotes = 0, 0
	shift := uint(1)
	if r.cfg.TripleScan {
		shift = 2
	}
	r.pool.Start(r.timer, uint32(r.cfg.BitWidth>>shift), false)
	return true
}

// Receiving tells whether a frame is being decoded.
func (r *Receiver) Receiving() bool {
	return r.inProgress
}

// FIFO returns the receive FIFO.
func (r *Receiver) FIFO() *FIFO {
	return r.fifo
}

// Pull removes and returns the oldest received unit.
func (r *Receiver) Pull() (uint16, bool) {
	return r.fifo.Pull()
}

// PullUnit is Pull returning NoUnit when the FIFO is empty.
func (r *Receiver) PullUnit() uint16 {
	if u, ok := r.fifo.Pull(); ok {
		return u
	}
	return NoUnit
}

// PeekUnitAt is PeekAt returning NoUnit when n is out of range.
func (r *Receiver) PeekUnitAt(n int) uint16 {
	if u, ok := r.fifo.PeekAt(n); ok {
		return u
	}
	return NoUnit
}

// Peek returns the oldest received unit without removing it.
func (r *Receiver) Peek() (uint16, bool) {
	return r.fifo.Peek()
}

// PeekAt returns the n-th oldest received unit without removing it.
func (r *Receiver) PeekAt(n int) (uint16, bool) {
	return r.fifo.PeekAt(n)
}

// Pending returns the number of received units in the FIFO.
func (r *Receiver) Pending() int {
	return r.fifo.Len()
}

// Flush drops all received units.
func (r *Receiver) Flush() {
	r.fifo.Flush()
}

// Errors returns the sticky error flags, clearing them if clear is set.
func (r *Receiver) Errors(clear bool) ErrorFlags {
	errs := r.errors
	if clear {
		r.errors = 0
	}
	return errs
}

// TimerExpired implements gtimer.Callback.
func (r *Receiver) TimerExpired(gtimer.ID, uint32) uint32 {
	if r.state == rxIdle {
		return 0
	}
	var level Level
	var reload uint32
	if r.cfg.TripleScan {
		if r.line.GetLine() == Mark {
			r.scanVotes++
		}
		if r.scanPos++; r.scanPos < 3 {
			r.pool.Start(r.timer, uint32(r.cfg.BitWidth>>2), false)
			return 0
		}
		level = levelOf(r.scanVotes > 1)
		r.scanPos, r.scanVotes = 0, 0
		reload = uint32(r.cfg.BitWidth >> 1)
	} else {
		level = r.line.GetLine()
		reload = uint32(r.cfg.BitWidth)
	}

	switch r.state {
	case rxStart:
		if level != Space {
			r.errors |= FramingError
			glog.V(4).Info("swuart: start bit not held, reception aborted")
			r.stop()
			return 0
		}
		r.state = rxData
		r.dontStore = false
		r.bitIndex, r.setBits, r.shift = 0, 0, 0
	case rxData:
		if level == Mark {
			r.setBits++
			r.shift |= 1 << r.bitIndex
		}
		if r.bitIndex++; r.bitIndex >= r.cfg.DataBits {
			if r.cfg.Parity == ParityNone {
				r.state = rxStop1
			} else {
				r.state = rxParity
			}
		}
	case rxParity:
		if level != r.cfg.Parity.Level(r.setBits) {
			r.errors |= ParityError
			r.dontStore = true
		}
		r.state = rxStop1
	case rxStop1:
		r.checkStop(level)
		if r.cfg.Stop != Stop2 {
			r.store()
			return 0
		}
		r.state = rxStop2
	case rxStop2:
		r.checkStop(level)
		r.store()
		return 0
	}
	r.pool.Start(r.timer, reload, false)
	return 0
}

func (r *Receiver) checkStop(level Level) {
	if level != Mark {
		r.errors |= FramingError
		r.dontStore = true
	}
}

func (r *Receiver) store() {
	if !r.dontStore {
		if r.fifo.Push(r.shift) {
			r.errors |= OverrunError
			glog.V(4).Info("swuart: receive FIFO overrun")
		}
	}
	r.stop()
}

func (r *Receiver) stop() {
	r.inProgress = false
	r.state = rxIdle
}
