package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/swuart/pkg/framework"
	"github.com/robotalks/swuart/pkg/gtimer"
	"github.com/robotalks/swuart/pkg/link/msgs"
	"github.com/robotalks/swuart/pkg/swuart"
)

// NoDelimiter disables delimited framing.
const NoDelimiter = -1

// PoolSize is the number of timers in the pool of a link.
const PoolSize = 4

// ErrNoTimer indicates the pool has no timer left.
var ErrNoTimer = errors.New("no timer available")

// Options configures a Link.
type Options struct {
	Config swuart.Config
	// FIFOBits is the receive FIFO size in bits.
	FIFOBits uint
	// Delimiter, if not NoDelimiter, makes received units be held until the
	// delimiter unit arrives, and a frame includes the delimiter.
	Delimiter int
	// NoiseRate is the probability of a receiver read being inverted.
	NoiseRate float64
	// NoiseSeed seeds the noise source.
	NoiseSeed int64
	// TickPeriod is the real time of a tick when run in a loop.
	TickPeriod time.Duration
}

// DefaultOptions returns 8N1 with 8 ticks per bit.
func DefaultOptions() Options {
	return Options{
		Config: swuart.Config{
			BitWidth: 8,
			DataBits: 8,
			Parity:   swuart.ParityNone,
			Stop:     swuart.Stop1,
		},
		FIFOBits:   swuart.DefaultFIFOBits,
		Delimiter:  NoDelimiter,
		TickPeriod: 100 * time.Microsecond,
	}
}

// Link is a transmitter and a receiver connected by a wire.
// It is not safe for concurrent use: it is driven either by Step or by
// the loop it is added to. Other goroutines use SendMsg and StatusRequest.
type Link struct {
	// Handler receives frames. Frames are dropped if nil.
	Handler FrameHandler
	// Notifier is told about cleared reception errors.
	Notifier ErrorNotifier
	// AutoDrain moves received units into frames on every step.
	// Without it, units stay in the receiver until Drain is called.
	AutoDrain bool

	opts    Options
	cfg     *swuart.Config
	pool    *gtimer.Pool
	txTimer gtimer.ID
	rxTimer gtimer.ID
	wire    *swuart.Wire
	noise   *NoisyLine
	tx      *swuart.Transmitter
	rx      *swuart.Receiver

	queue    []uint16
	sending  []uint16
	sendPos  int
	rxErrors swuart.ErrorFlags
	stats    Stats
}

// New creates a Link.
func New(opts Options) (*Link, error) {
	l := &Link{
		AutoDrain: true,
		opts:      opts,
		pool:      gtimer.NewPool(PoolSize),
		wire:      swuart.NewWire(),
	}
	cfg := opts.Config
	l.cfg = &cfg
	l.noise = NewNoisyLine(l.wire, opts.NoiseRate, opts.NoiseSeed)
	l.pool.Init()
	if l.txTimer = l.pool.ReserveAny(); l.txTimer == gtimer.NoTimer {
		return nil, ErrNoTimer
	}
	if l.rxTimer = l.pool.ReserveAny(); l.rxTimer == gtimer.NoTimer {
		return nil, ErrNoTimer
	}
	l.tx = swuart.NewTransmitter(l.pool)
	if err := l.tx.Init(l.cfg, l.txTimer, l.wire); err != nil {
		return nil, fmt.Errorf("transmitter: %w", err)
	}
	l.rx = swuart.NewReceiver(l.pool).WithFIFO(swuart.NewFIFO(opts.FIFOBits))
	if err := l.rx.Init(l.cfg, l.rxTimer, l.noise); err != nil {
		return nil, fmt.Errorf("receiver: %w", err)
	}
	return l, nil
}

// Config returns the framing in use.
func (l *Link) Config() swuart.Config {
	return *l.cfg
}

// Options returns the options the link was created with.
func (l *Link) Options() Options {
	return l.opts
}

// Pool returns the timer pool.
func (l *Link) Pool() *gtimer.Pool {
	return l.pool
}

// Receiver returns the receiver.
func (l *Link) Receiver() *swuart.Receiver {
	return l.rx
}

// Transmitter returns the transmitter.
func (l *Link) Transmitter() *swuart.Transmitter {
	return l.tx
}

// Wire returns the line driven by the transmitter.
func (l *Link) Wire() *swuart.Wire {
	return l.wire
}

// Noise returns the noisy line read by the receiver.
func (l *Link) Noise() *NoisyLine {
	return l.noise
}

// Stats returns the counters.
func (l *Link) Stats() Stats {
	return l.stats
}

// Send queues units for transmission. Bits above the data bits are dropped.
func (l *Link) Send(units ...uint16) {
	mask := l.cfg.UnitMask()
	for _, u := range units {
		l.queue = append(l.queue, u&mask)
	}
}

// SendString queues the bytes of s.
func (l *Link) SendString(s string) {
	for n := 0; n < len(s); n++ {
		l.Send(uint16(s[n]))
	}
}

// Queued returns the number of units not yet fully transmitted.
func (l *Link) Queued() int {
	n := len(l.queue) + len(l.sending) - l.sendPos
	if l.tx.IsBusy() {
		n++
	}
	return n
}

// Idle tells whether nothing is being sent or received.
func (l *Link) Idle() bool {
	return l.Queued() == 0 && !l.rx.Receiving()
}

// Step runs one tick and services the link.
func (l *Link) Step(ctx context.Context) {
	l.tick()
	l.service(ctx)
}

// Run steps until the link is idle or ctx is done, at most maxTicks.
// It returns the number of ticks run.
func (l *Link) Run(ctx context.Context, maxTicks int) int {
	n := 0
	for ; n < maxTicks && ctx.Err() == nil; n++ {
		if l.Idle() {
			break
		}
		l.Step(ctx)
	}
	return n
}

func (l *Link) tick() {
	l.pool.OnTick()
	l.stats.Ticks++
}

func (l *Link) service(ctx context.Context) {
	l.scan()
	l.feed()
	if l.AutoDrain {
		l.Drain(ctx)
	}
	l.pollErrors(ctx)
}

func (l *Link) scan() {
	l.rx.ScanForStart()
}

func (l *Link) feed() {
	if l.sendPos >= len(l.sending) && !l.tx.IsBusy() {
		if len(l.queue) == 0 {
			return
		}
		l.sending, l.queue, l.sendPos = l.queue, nil, 0
	}
	before := l.sendPos
	l.tx.SendStream(l.sending, &l.sendPos)
	l.stats.UnitsSent += uint64(l.sendPos - before)
}

// Drain moves received units into frames. With a delimiter, only complete
// frames are taken, unless the receiver is full.
func (l *Link) Drain(ctx context.Context) {
	for {
		n := l.frameLen()
		if n == 0 {
			return
		}
		frame := &Frame{Units: make([]uint16, 0, n), Errors: l.rxErrors, Tick: l.stats.Ticks}
		for ; n > 0; n-- {
			u, _ := l.rx.Pull()
			frame.Units = append(frame.Units, u)
		}
		l.rxErrors = 0
		l.stats.Frames++
		l.stats.UnitsReceived += uint64(len(frame.Units))
		if glog.V(3) {
			glog.Infof("frame %d units, errors %s", len(frame.Units), frame.Errors)
		}
		if l.Handler != nil {
			l.Handler.HandleFrame(ctx, frame)
		}
	}
}

// frameLen returns the number of units of the next complete frame.
func (l *Link) frameLen() int {
	pending := l.rx.Pending()
	if l.opts.Delimiter < 0 || pending == 0 {
		return pending
	}
	delim := uint16(l.opts.Delimiter)
	for n := 0; n < pending; n++ {
		if u, _ := l.rx.PeekAt(n); u == delim {
			return n + 1
		}
	}
	if pending == l.rx.FIFO().Cap() {
		return pending
	}
	return 0
}

func (l *Link) pollErrors(ctx context.Context) {
	if l.rx.Errors(false) == 0 {
		return
	}
	errs := l.rx.Errors(true)
	l.rxErrors |= errs
	l.stats.countErrors(errs)
	glog.V(3).Infof("receive errors: %s", errs)
	if l.Notifier != nil {
		l.Notifier.ReceiveErrors(ctx, errs)
	}
}

// Errors returns the reception errors to be reported with the next frame,
// clearing them if clear is set.
func (l *Link) Errors(clear bool) swuart.ErrorFlags {
	errs := l.rxErrors
	if clear {
		l.rxErrors = 0
	}
	return errs
}

// Status reports the configuration and counters.
func (l *Link) Status() *msgs.Status {
	return &msgs.Status{
		Format:        l.cfg.String(),
		BitWidth:      uint32(l.cfg.BitWidth),
		TripleScan:    l.cfg.TripleScan,
		Ticks:         l.stats.Ticks,
		UnitsSent:     l.stats.UnitsSent,
		UnitsReceived: l.stats.UnitsReceived,
		Frames:        l.stats.Frames,
		FramingErrors: l.stats.FramingErrors,
		ParityErrors:  l.stats.ParityErrors,
		OverrunErrors: l.stats.OverrunErrors,
		Pending:       uint32(l.rx.Pending()),
		Queued:        uint32(l.Queued()),
		Busy:          l.tx.IsBusy(),
	}
}

// AddToLoop implements LoopAdder.
// Each signaled tick runs the pool once. A Ticker paced by TickPeriod
// signals ticks and triggers loop iterations.
func (l *Link) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvTick, fx.ControlFunc(l.controlTick))
	loop.AddController(fx.PrLvScan, fx.ControlFunc(l.controlScan))
	loop.AddController(fx.PrLvFeed, fx.ControlFunc(l.controlFeed))
	loop.AddController(fx.PrLvDrain, fx.ControlFunc(l.controlDrain))
	if l.opts.TickPeriod > 0 {
		loop.AddRunnable(fx.NamedRun("ticker", &gtimer.Ticker{
			Pool:   l.pool,
			Period: l.opts.TickPeriod,
			Notify: loop.TriggerNext,
		}))
	}
}

func (l *Link) controlTick(fx.ControlContext) error {
	if l.pool.Pending() {
		l.tick()
	}
	return nil
}

func (l *Link) controlScan(fx.ControlContext) error {
	l.scan()
	return nil
}

func (l *Link) controlFeed(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		switch m := mc.CurrentMessage().(type) {
		case *SendMsg:
			l.Send(m.Units...)
			mc.MessageTaken()
		case *StatusRequest:
			if m.Reply != nil {
				m.Reply(l.Status())
			}
			mc.MessageTaken()
		}
	}))
	l.feed()
	return nil
}

func (l *Link) controlDrain(cc fx.ControlContext) error {
	if l.AutoDrain {
		l.Drain(cc.Context())
	}
	l.pollErrors(cc.Context())
	return nil
}
