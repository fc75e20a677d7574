package swuart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/swuart/pkg/gtimer"
)

func TestReceiverInit(t *testing.T) {
	pool := gtimer.NewPool(1)
	rx := NewReceiver(pool)
	wire := NewWire()

	assert.False(t, rx.ScanForStart())
	assert.Equal(t, ErrNoConfig, rx.Init(nil, 0, wire))
	assert.Equal(t, ErrNoLine, rx.Init(&Config{BitWidth: 4, DataBits: 8, Stop: Stop1}, 0, nil))

	var cfgErr *ConfigError
	for _, cfg := range []*Config{
		{BitWidth: 0, DataBits: 8, Stop: Stop1},
		{BitWidth: 6, DataBits: 8, Stop: Stop1},
		{BitWidth: 12, DataBits: 8, Stop: Stop1, TripleScan: true},
		{BitWidth: 8, DataBits: 11, Stop: Stop1},
		{BitWidth: 8, DataBits: 8, Stop: 3},
	} {
		require.ErrorAs(t, rx.Init(cfg, 0, wire), &cfgErr)
	}

	cfg := &Config{BitWidth: 8, DataBits: 8, Stop: Stop1, TripleScan: true}
	assert.Equal(t, ErrNoTimer, rx.Init(cfg, 0, wire))
	pool.Reserve(0)
	require.NoError(t, rx.Init(cfg, 0, wire))
	require.NoError(t, rx.Init(&Config{BitWidth: 4, DataBits: 8, Stop: Stop1}, 0, wire))
	assert.False(t, rx.Receiving())
	assert.Equal(t, 0, rx.Pending())
}

func TestRoundTrip(t *testing.T) {
	for _, tripleScan := range []bool{false, true} {
		for _, cfg := range allConfigs(8, tripleScan) {
			b := newBench(t, cfg)
			mask := cfg.UnitMask()
			units := []uint16{0, mask, 0x155 & mask, 0x2aa & mask, 1, mask >> 1}
			b.send(t, units...)
			assert.Equal(t, units, b.pullAll(), "%s triple=%v", cfg, tripleScan)
			assert.Equal(t, ErrorFlags(0), b.rx.Errors(true), "%s triple=%v", cfg, tripleScan)
			assert.False(t, b.rx.Receiving())
		}
	}
}

func TestReceiverIgnoresExtraBits(t *testing.T) {
	cfg := &Config{BitWidth: 4, DataBits: 5, Stop: Stop1}
	b := newBench(t, cfg)
	b.send(t, 0xffe1)
	assert.Equal(t, []uint16{0x01}, b.pullAll())
}

func TestParityError(t *testing.T) {
	cfg := &Config{BitWidth: 4, DataBits: 7, Parity: ParityEven, Stop: Stop2}
	pool := gtimer.NewPool(1)
	pool.Reserve(0)
	tick := 0
	// 0x0b has three bits set, so even parity requires mark
	bits := append([]Level{Space}, dataBits(0x0b, 7)...)
	bits = append(bits, Space, Mark, Mark)
	rx := NewReceiver(pool)
	require.NoError(t, rx.Init(cfg, 0, frameLine(&tick, 4, 4, bits...)))

	for ; tick < 60; tick++ {
		pool.OnTick()
		rx.ScanForStart()
	}
	assert.False(t, rx.Receiving())
	assert.Equal(t, 0, rx.Pending())
	assert.Equal(t, ParityError, rx.Errors(false))
	assert.Equal(t, ParityError, rx.Errors(true))
	assert.Equal(t, ErrorFlags(0), rx.Errors(false))
}

func TestParityAccepted(t *testing.T) {
	cfg := &Config{BitWidth: 4, DataBits: 7, Parity: ParityOdd, Stop: Stop2}
	pool := gtimer.NewPool(1)
	pool.Reserve(0)
	tick := 0
	bits := append([]Level{Space}, dataBits(0x0b, 7)...)
	bits = append(bits, Space, Mark, Mark)
	rx := NewReceiver(pool)
	require.NoError(t, rx.Init(cfg, 0, frameLine(&tick, 4, 4, bits...)))
	for ; tick < 60; tick++ {
		pool.OnTick()
		rx.ScanForStart()
	}
	u, ok := rx.Pull()
	require.True(t, ok)
	assert.Equal(t, uint16(0x0b), u)
	assert.Equal(t, ErrorFlags(0), rx.Errors(true))
}

func TestStopBitFramingError(t *testing.T) {
	for _, stop := range []StopBits{Stop1, Stop2} {
		cfg := &Config{BitWidth: 4, DataBits: 8, Parity: ParityNone, Stop: stop}
		pool := gtimer.NewPool(1)
		pool.Reserve(0)
		tick := 0
		bits := append([]Level{Space}, dataBits(0x5a, 8)...)
		if stop == Stop2 {
			bits = append(bits, Mark)
		}
		bits = append(bits, Space)
		rx := NewReceiver(pool)
		require.NoError(t, rx.Init(cfg, 0, frameLine(&tick, 4, 4, bits...)))
		for ; tick < 80; tick++ {
			pool.OnTick()
			rx.ScanForStart()
		}
		assert.Equal(t, 0, rx.Pending(), "stop %d", stop)
		assert.NotZero(t, rx.Errors(true)&FramingError, "stop %d", stop)
	}
}

func TestStartBitAbort(t *testing.T) {
	cfg := &Config{BitWidth: 4, DataBits: 8, Parity: ParityNone, Stop: Stop1}
	pool := gtimer.NewPool(1)
	pool.Reserve(0)
	tick := 0
	// a space pulse shorter than half a bit
	rx := NewReceiver(pool)
	require.NoError(t, rx.Init(cfg, 0, GetLineFunc(func() Level {
		return levelOf(tick != 4)
	})))
	for ; tick < 6; tick++ {
		pool.OnTick()
		rx.ScanForStart()
	}
	assert.True(t, rx.Receiving())
	for ; tick < 60; tick++ {
		pool.OnTick()
		rx.ScanForStart()
	}
	assert.False(t, rx.Receiving())
	assert.Equal(t, 0, rx.Pending())
	assert.Equal(t, FramingError, rx.Errors(true))
}

func TestReceiverOverrun(t *testing.T) {
	cfg := &Config{BitWidth: 4, DataBits: 8, Parity: ParityEven, Stop: Stop1}
	b := newBench(t, cfg)
	b.rx.WithFIFO(NewFIFO(1))
	b.send(t, 1, 2, 3)
	assert.Equal(t, 2, b.rx.Pending())
	u, ok := b.rx.Peek()
	require.True(t, ok)
	assert.Equal(t, uint16(2), u)
	u, ok = b.rx.PeekAt(1)
	require.True(t, ok)
	assert.Equal(t, uint16(3), u)
	assert.Equal(t, OverrunError, b.rx.Errors(true))

	b.rx.Flush()
	assert.Equal(t, 0, b.rx.Pending())
	_, ok = b.rx.Pull()
	assert.False(t, ok)
}

func TestSentinelAccessors(t *testing.T) {
	cfg := &Config{BitWidth: 4, DataBits: 10, Parity: ParityNone, Stop: Stop1}
	b := newBench(t, cfg)
	assert.Equal(t, NoUnit, b.rx.PullUnit())
	assert.Equal(t, NoUnit, b.rx.PeekUnitAt(0))

	b.send(t, 0x3ff, 0x155)
	assert.Equal(t, uint16(0x155), b.rx.PeekUnitAt(1))
	assert.Equal(t, NoUnit, b.rx.PeekUnitAt(2))
	assert.Equal(t, NoUnit, b.rx.PeekUnitAt(-1))
	assert.Equal(t, uint16(0x3ff), b.rx.PullUnit())
	assert.Equal(t, uint16(0x155), b.rx.PullUnit())
	assert.Equal(t, NoUnit, b.rx.PullUnit())
}

func TestTripleScanRejectsGlitches(t *testing.T) {
	glitch := func(tick int, l Level) Level {
		if tick >= 8 && tick < 88 && tick%8 == 4 {
			return l ^ 1
		}
		return l
	}

	cfg := &Config{BitWidth: 8, DataBits: 8, Parity: ParityNone, Stop: Stop1, TripleScan: true}
	b := newBench(t, cfg)
	b.glitch = glitch
	b.send(t, 0xa5)
	assert.Equal(t, []uint16{0xa5}, b.pullAll())
	assert.Equal(t, ErrorFlags(0), b.rx.Errors(true))

	cfg = &Config{BitWidth: 8, DataBits: 8, Parity: ParityNone, Stop: Stop1}
	b = newBench(t, cfg)
	b.glitch = glitch
	b.send(t, 0xa5)
	b.run(40)
	assert.NotZero(t, b.rx.Errors(true)&FramingError)
}
