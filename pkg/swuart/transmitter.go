package swuart

import (
	"github.com/robotalks/swuart/pkg/gtimer"
)

type txState int

const (
	txIdle     txState = iota
	txSettling         // one bit of mark before the start bit
	txStart
	txData
	txParity
	txStop1
	txStop2
)

// Transmitter serializes units onto a line, one bit per timer expiry.
type Transmitter struct {
	pool  *gtimer.Pool
	cfg   *Config
	timer gtimer.ID
	line  LineSetter

	state    txState
	shift    uint16
	bitIndex uint8
	setBits  uint8
	busy     bool
}

// NewTransmitter creates a Transmitter using timers from pool.
func NewTransmitter(pool *gtimer.Pool) *Transmitter {
	return &Transmitter{pool: pool, timer: gtimer.NoTimer}
}

// Init binds the transmitter to cfg, a reserved timer and the output line,
// and sets the line to mark. Any transmission in progress is abandoned.
func (t *Transmitter) Init(cfg *Config, timer gtimer.ID, line LineSetter) error {
	if cfg == nil {
		return ErrNoConfig
	}
	if line == nil {
		return ErrNoLine
	}
	if cfg.BitWidth < uint16(gtimer.MinCount) {
		return &ConfigError{Field: "BitWidth", Reason: "less than 2 ticks"}
	}
	if err := cfg.validateFraming(); err != nil {
		return err
	}
	if !t.pool.InUse(timer) {
		return ErrNoTimer
	}
	t.cfg, t.timer, t.line = cfg, timer, line
	t.state, t.busy = txIdle, false
	line.SetLine(Mark)
	t.pool.Freeze(timer)
	t.pool.SetCallback(timer, t, 0, nil)
	return nil
}

// IsBusy tells whether a unit is being transmitted.
func (t *Transmitter) IsBusy() bool {
	return t.busy
}

// SendUnit starts transmitting one unit. Bits above DataBits are ignored.
// It fails with ErrNoTimer if the timer was released since Init.
func (t *Transmitter) SendUnit(unit uint16) error {
	if t.cfg == nil {
		return ErrNotInitialized
	}
	if t.busy {
		return ErrBusy
	}
	if !t.pool.InUse(t.timer) {
		return ErrNoTimer
	}
	t.busy = true
	t.shift = unit
	t.state = txSettling
	t.pool.Start(t.timer, uint32(t.cfg.BitWidth), false)
	return nil
}

// SendStream sends units one at a time, using *pos as the progress cursor.
// It must be polled; each call starts the next unit if the transmitter is
// idle. It returns true once every unit has been sent (the caller resets
// *pos to send again) or if the transmitter, its timer or pos is unusable.
func (t *Transmitter) SendStream(units []uint16, pos *int) bool {
	if t.cfg == nil || pos == nil {
		return true
	}
	if t.busy {
		return false
	}
	if *pos >= len(units) {
		return true
	}
	if t.SendUnit(units[*pos]) != nil {
		return true
	}
	*pos++
	return false
}

// SendBytes is SendStream for units not wider than a byte.
func (t *Transmitter) SendBytes(data []byte, pos *int) bool {
	if t.cfg == nil || pos == nil {
		return true
	}
	if t.busy {
		return false
	}
	if *pos >= len(data) {
		return true
	}
	if t.SendUnit(uint16(data[*pos])) != nil {
		return true
	}
	*pos++
	return false
}

// TimerExpired implements gtimer.Callback.
// Reaching a state means the previous bit time has elapsed, so the line is
// set for the next bit when the state is entered.
func (t *Transmitter) TimerExpired(gtimer.ID, uint32) uint32 {
	switch t.state {
	case txIdle:
		return 0
	case txSettling:
		t.line.SetLine(Space)
		t.state = txStart
	case txStart:
		t.state = txData
		t.bitIndex, t.setBits = 0, 0
		t.emitBit()
	case txData:
		if t.bitIndex < t.cfg.DataBits {
			t.emitBit()
			break
		}
		if t.cfg.Parity == ParityNone {
			t.state = txStop1
			t.line.SetLine(Mark)
			break
		}
		t.line.SetLine(t.cfg.Parity.Level(t.setBits))
		t.state = txParity
	case txParity:
		t.state = txStop1
		t.line.SetLine(Mark)
	case txStop1:
		if t.cfg.Stop == Stop2 {
			t.state = txStop2
			break
		}
		t.finish()
		return 0
	case txStop2:
		t.finish()
		return 0
	}
	t.pool.Restart(t.timer)
	return 0
}

func (t *Transmitter) emitBit() {
	if t.shift&1 != 0 {
		t.line.SetLine(Mark)
		t.setBits++
	} else {
		t.line.SetLine(Space)
	}
	t.shift >>= 1
	t.bitIndex++
}

func (t *Transmitter) finish() {
	t.busy = false
	t.state = txIdle
}
