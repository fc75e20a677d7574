package link

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/swuart/pkg/framework"
	"github.com/robotalks/swuart/pkg/link/msgs"
	"github.com/robotalks/swuart/pkg/swuart"
)

type frameCollector struct {
	frames []*Frame
}

func (c *frameCollector) HandleFrame(_ context.Context, f *Frame) {
	c.frames = append(c.frames, f)
}

func (c *frameCollector) units() []uint16 {
	var units []uint16
	for _, f := range c.frames {
		units = append(units, f.Units...)
	}
	return units
}

func newLink(t *testing.T, opts Options) (*Link, *frameCollector) {
	l, err := New(opts)
	require.NoError(t, err)
	c := &frameCollector{}
	l.Handler = c
	return l, c
}

func TestLoopback(t *testing.T) {
	for _, format := range []string{"8N1", "7E2", "10O1", "5N2"} {
		t.Run(format, func(t *testing.T) {
			opts := DefaultOptions()
			cfg, err := swuart.ParseFormat(format)
			require.NoError(t, err)
			cfg.BitWidth = 8
			opts.Config = cfg
			l, c := newLink(t, opts)

			units := []uint16{0, 1, 0x15, cfg.UnitMask()}
			l.Send(units...)
			assert.Equal(t, len(units), l.Queued())
			ticks := l.Run(context.Background(), 10000)
			assert.Less(t, ticks, 10000)
			assert.True(t, l.Idle())
			assert.Equal(t, units, c.units())

			stats := l.Stats()
			assert.Equal(t, uint64(len(units)), stats.UnitsSent)
			assert.Equal(t, uint64(len(units)), stats.UnitsReceived)
			assert.Equal(t, uint64(ticks), stats.Ticks)
			assert.Zero(t, stats.FramingErrors+stats.ParityErrors+stats.OverrunErrors)
		})
	}
}

func TestDelimitedFrames(t *testing.T) {
	opts := DefaultOptions()
	opts.Delimiter = '\n'
	l, c := newLink(t, opts)
	l.SendString("Hello world!\nbye\n")
	l.Run(context.Background(), 100000)
	require.Len(t, c.frames, 2)
	assert.Equal(t, []byte("Hello world!\n"), c.frames[0].Bytes())
	assert.Equal(t, []byte("bye\n"), c.frames[1].Bytes())
	assert.Equal(t, uint64(2), l.Stats().Frames)
}

func TestDelimiterOnFullFIFO(t *testing.T) {
	opts := DefaultOptions()
	opts.Delimiter = '\n'
	opts.FIFOBits = 2
	l, c := newLink(t, opts)
	l.SendString("abcdef")
	l.Run(context.Background(), 100000)
	require.Len(t, c.frames, 1)
	assert.Equal(t, []byte("abcd"), c.frames[0].Bytes())
	assert.Equal(t, 2, l.Receiver().Pending())
	assert.Zero(t, l.Stats().OverrunErrors)
}

func TestManualDrain(t *testing.T) {
	l, c := newLink(t, DefaultOptions())
	l.AutoDrain = false
	l.SendString("ab")
	l.Run(context.Background(), 10000)
	assert.Empty(t, c.frames)
	assert.Equal(t, 2, l.Receiver().Pending())
	l.Drain(context.Background())
	require.Len(t, c.frames, 1)
	assert.Equal(t, []byte("ab"), c.frames[0].Bytes())
}

func TestSendMasksUnits(t *testing.T) {
	opts := DefaultOptions()
	opts.Config.DataBits = 5
	l, c := newLink(t, opts)
	l.Send(0xffff)
	l.Run(context.Background(), 10000)
	assert.Equal(t, []uint16{0x1f}, c.units())
}

func TestNoiseErrors(t *testing.T) {
	opts := DefaultOptions()
	opts.NoiseRate = 1
	l, _ := newLink(t, opts)
	var notified swuart.ErrorFlags
	l.Notifier = ReceiveErrorsFunc(func(_ context.Context, errs swuart.ErrorFlags) {
		notified |= errs
	})
	l.SendString("x")
	for n := 0; n < 200; n++ {
		l.Step(context.Background())
	}
	assert.NotZero(t, notified&swuart.FramingError)
	assert.NotZero(t, l.Stats().FramingErrors)
	assert.NotZero(t, l.Noise().Flips())
	assert.Equal(t, swuart.ErrorFlags(0), l.Receiver().Errors(false))
	assert.NotZero(t, l.Errors(true)&swuart.FramingError)
	assert.Equal(t, swuart.ErrorFlags(0), l.Errors(false))
}

func TestInvalidConfig(t *testing.T) {
	opts := DefaultOptions()
	opts.Config.BitWidth = 6
	_, err := New(opts)
	var cfgErr *swuart.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "BitWidth", cfgErr.Field)

	opts = DefaultOptions()
	opts.Config.DataBits = 12
	_, err = New(opts)
	require.ErrorAs(t, err, &cfgErr)
}

func TestInLoop(t *testing.T) {
	opts := DefaultOptions()
	opts.TickPeriod = 0
	l, c := newLink(t, opts)
	var mux FrameMux
	var count int
	mux.Add(c, HandleFrameFunc(func(context.Context, *Frame) { count++ }))
	l.Handler = &mux

	loop := fx.NewLoop().Add(l)
	ctx := context.Background()
	loop.PostMessage(SendMsgFrom(&msgs.Send{Units: []uint32{'o', 'k'}}))

	// iterations without a signaled tick don't advance the link
	loop.Step(ctx)
	assert.Equal(t, uint64(0), l.Stats().Ticks)
	assert.Equal(t, 2, l.Queued())

	for n := 0; n < 10000 && !l.Idle(); n++ {
		l.Pool().Signal()
		loop.Step(ctx)
	}
	assert.Equal(t, []byte("ok"), (&Frame{Units: c.units()}).Bytes())
	assert.Equal(t, len(c.frames), count)

	var status *msgs.Status
	loop.PostMessage(&StatusRequest{Reply: func(s *msgs.Status) { status = s }})
	loop.Step(ctx)
	require.NotNil(t, status)
	assert.Equal(t, "8N1", status.Format)
	assert.Equal(t, uint32(8), status.BitWidth)
	assert.Equal(t, uint64(2), status.UnitsReceived)
	assert.Equal(t, uint32(0), status.Queued)
}

func TestFrameMessage(t *testing.T) {
	f := &Frame{Units: []uint16{1, 0x3ff}, Errors: swuart.ParityError, Tick: 9}
	m := f.Message()
	assert.Equal(t, []uint32{1, 0x3ff}, m.Units)
	assert.Equal(t, uint32(swuart.ParityError), m.Errors)
	assert.Equal(t, uint64(9), m.Tick)
}

func TestNoisyLineRate(t *testing.T) {
	n := NewNoisyLine(swuart.NewWire(), 2, 1)
	assert.Equal(t, 1.0, n.Rate())
	assert.Equal(t, swuart.Space, n.GetLine())
	n.SetRate(-1)
	assert.Equal(t, 0.0, n.Rate())
	assert.Equal(t, swuart.Mark, n.GetLine())
	assert.Equal(t, uint64(1), n.Flips())
}

func TestNoisyLineConcurrentAccess(t *testing.T) {
	n := NewNoisyLine(swuart.NewWire(), 1, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			n.SetRate(1)
			n.Flips()
		}
	}()
	for i := 0; i < 1000; i++ {
		n.GetLine()
	}
	<-done
	assert.Equal(t, uint64(1000), n.Flips())
}
