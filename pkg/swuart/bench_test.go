package swuart

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/swuart/pkg/gtimer"
)

// bench connects a Transmitter to a Receiver through a Wire.
// The transmitter runs on timer 0 and the receiver on timer 1, so within a
// tick the line is updated before it is sampled.
type bench struct {
	pool *gtimer.Pool
	wire *Wire
	tx   *Transmitter
	rx   *Receiver
	tick int
	// glitch, if set, may alter the level seen by the receiver.
	glitch func(tick int, l Level) Level
}

func newBench(t *testing.T, cfg *Config) *bench {
	b := &bench{pool: gtimer.NewPool(2), wire: NewWire()}
	require.Equal(t, gtimer.ID(0), b.pool.Reserve(0))
	require.Equal(t, gtimer.ID(1), b.pool.Reserve(1))
	b.tx = NewTransmitter(b.pool)
	b.rx = NewReceiver(b.pool)
	require.NoError(t, b.tx.Init(cfg, 0, b.wire))
	require.NoError(t, b.rx.Init(cfg, 1, GetLineFunc(b.rxLine)))
	return b
}

func (b *bench) rxLine() Level {
	l := b.wire.GetLine()
	if b.glitch != nil {
		l = b.glitch(b.tick, l)
	}
	return l
}

func (b *bench) step() {
	b.tick++
	b.pool.OnTick()
	b.rx.ScanForStart()
}

func (b *bench) run(n int) {
	for i := 0; i < n; i++ {
		b.step()
	}
}

// send transmits units and runs until both sides are idle.
func (b *bench) send(t *testing.T, units ...uint16) {
	pos := 0
	for limit := 0; ; limit++ {
		require.Less(t, limit, 1<<20, "transmission never completed")
		if b.tx.SendStream(units, &pos) && !b.rx.Receiving() {
			return
		}
		b.step()
	}
}

func (b *bench) pullAll() []uint16 {
	var units []uint16
	for {
		u, ok := b.rx.Pull()
		if !ok {
			return units
		}
		units = append(units, u)
	}
}

// frameLine replays levels, one per bit time of width ticks, starting at
// tick start. The line is mark outside the frame.
func frameLine(tick *int, start, width int, bits ...Level) LineGetter {
	return GetLineFunc(func() Level {
		if *tick < start {
			return Mark
		}
		if n := (*tick - start) / width; n < len(bits) {
			return bits[n]
		}
		return Mark
	})
}

// dataBits expands a unit into n line levels, LSB first.
func dataBits(unit uint16, n int) []Level {
	levels := make([]Level, n)
	for i := range levels {
		levels[i] = levelOf(unit&(1<<uint(i)) != 0)
	}
	return levels
}

// allConfigs enumerates every framing with the given bit width.
func allConfigs(width uint16, tripleScan bool) []*Config {
	var cfgs []*Config
	for bits := uint8(MinDataBits); bits <= MaxDataBits; bits++ {
		for _, parity := range []Parity{ParityNone, ParityOdd, ParityEven} {
			for _, stop := range []StopBits{Stop1, Stop2} {
				cfgs = append(cfgs, &Config{
					BitWidth:   width,
					DataBits:   bits,
					Parity:     parity,
					Stop:       stop,
					TripleScan: tripleScan,
				})
			}
		}
	}
	return cfgs
}
