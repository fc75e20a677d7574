package gtimer

import (
	"sync/atomic"

	"github.com/golang/glog"
)

// ID identifies a timer slot in a Pool.
type ID int

// NoTimer is returned when no timer could be reserved or released.
const NoTimer ID = -1

// MinCount is the smallest effective countdown value.
const MinCount uint32 = 2

// Callback is notified when a timer expires.
// The returned value is stored in the output slot registered with SetCallback.
type Callback interface {
	TimerExpired(id ID, in uint32) uint32
}

// CallbackFunc is func form of Callback.
type CallbackFunc func(id ID, in uint32) uint32

// TimerExpired implements Callback.
func (f CallbackFunc) TimerExpired(id ID, in uint32) uint32 {
	return f(id, in)
}

type timer struct {
	inUse      bool
	running    bool
	timedOut   bool
	autoReload bool
	count      uint32
	reload     uint32

	callback Callback
	in       uint32
	out      *uint32
}

// Pool is a fixed-size arena of software timers.
type Pool struct {
	timers  []timer
	pending atomic.Bool
}

// NewPool creates a Pool with size timers, all released.
func NewPool(size int) *Pool {
	if size < 0 {
		size = 0
	}
	return &Pool{timers: make([]timer, size)}
}

// Size returns the number of timer slots.
func (p *Pool) Size() int {
	return len(p.timers)
}

// Init releases all timers.
func (p *Pool) Init() {
	for n := range p.timers {
		p.timers[n] = timer{}
	}
	p.pending.Store(false)
}

func (p *Pool) slot(id ID) *timer {
	if id < 0 || int(id) >= len(p.timers) {
		return nil
	}
	return &p.timers[id]
}

// reserved returns the slot of id only if it is reserved.
func (p *Pool) reserved(id ID) *timer {
	if t := p.slot(id); t != nil && t.inUse {
		return t
	}
	return nil
}

// ReserveAny reserves the first free timer.
// It returns NoTimer if the pool is exhausted.
func (p *Pool) ReserveAny() ID {
	for n := range p.timers {
		if !p.timers[n].inUse {
			p.timers[n].inUse = true
			return ID(n)
		}
	}
	glog.V(3).Infof("timer pool exhausted (%d timers)", len(p.timers))
	return NoTimer
}

// Reserve reserves a specific timer.
// It returns NoTimer if id is out of range or already in use.
func (p *Pool) Reserve(id ID) ID {
	t := p.slot(id)
	if t == nil || t.inUse {
		return NoTimer
	}
	t.inUse = true
	return id
}

// Release puts a timer back to the free state.
// It returns NoTimer if id is out of range.
func (p *Pool) Release(id ID) ID {
	t := p.slot(id)
	if t == nil {
		return NoTimer
	}
	*t = timer{}
	return id
}

// InUse tells whether the timer is reserved.
func (p *Pool) InUse(id ID) bool {
	t := p.slot(id)
	return t != nil && t.inUse
}

// Start starts (or restarts) a reserved timer for count ticks.
// Counts below MinCount are raised to MinCount. Any timeout latch is cleared.
func (p *Pool) Start(id ID, count uint32, autoReload bool) {
	t := p.slot(id)
	if t == nil || !t.inUse {
		return
	}
	if count < MinCount {
		count = MinCount
	}
	t.count, t.reload = count, count
	t.autoReload = autoReload
	t.timedOut = false
	t.running = true
}

// Restart starts the timer again with the count and mode of the last Start.
func (p *Pool) Restart(id ID) {
	if t := p.reserved(id); t != nil {
		p.Start(id, t.reload, t.autoReload)
	}
}

// Freeze stops decrementing a reserved timer, leaving its count intact.
func (p *Pool) Freeze(id ID) {
	if t := p.reserved(id); t != nil {
		t.running = false
	}
}

// Resume continues counting after Freeze. It only applies to reserved timers.
// An expired one-shot timer is reloaded, so resuming it starts a new cycle.
func (p *Pool) Resume(id ID) {
	t := p.slot(id)
	if t == nil || !t.inUse {
		return
	}
	if !t.autoReload && t.timedOut && t.count == 0 {
		t.count = t.reload
		t.timedOut = false
	}
	t.running = true
}

// FastForward makes the timer expire on the next tick.
func (p *Pool) FastForward(id ID) {
	if t := p.slot(id); t != nil && (t.inUse || t.running) {
		t.count = 1
	}
}

// IsRunning tells whether the timer is counting.
// An expired one-shot timer is no longer running.
func (p *Pool) IsRunning(id ID) bool {
	t := p.slot(id)
	return t != nil && t.running
}

// TimeToGo returns the number of ticks before the timer expires.
func (p *Pool) TimeToGo(id ID) uint32 {
	if t := p.slot(id); t != nil {
		return t.count
	}
	return 0
}

// TimedOut reads the timeout latch.
// For auto-reload timers the latch is cleared by reading it, so it reports
// true once per cycle. One-shot timers keep reporting true until restarted.
func (p *Pool) TimedOut(id ID) bool {
	t := p.slot(id)
	if t == nil {
		return false
	}
	timedOut := t.timedOut
	if t.autoReload {
		t.timedOut = false
	}
	return timedOut
}

// SetCallback attaches a callback to a reserved timer, invoked on expiry
// with input value in.
// If out is not nil, the callback result is written to it.
func (p *Pool) SetCallback(id ID, cb Callback, in uint32, out *uint32) {
	if t := p.reserved(id); t != nil {
		t.callback, t.in, t.out = cb, in, out
	}
}

// SetCallbackInput updates the input value passed to the callback.
func (p *Pool) SetCallbackInput(id ID, in uint32) {
	if t := p.reserved(id); t != nil {
		t.in = in
	}
}

// ClearCallback detaches the callback.
func (p *Pool) ClearCallback(id ID) {
	if t := p.reserved(id); t != nil {
		t.callback, t.in, t.out = nil, 0, nil
	}
}

// Signal marks a tick as pending. It is safe to call from any goroutine.
func (p *Pool) Signal() {
	p.pending.Store(true)
}

// Pending tells whether a tick has been signaled but not yet processed.
func (p *Pool) Pending() bool {
	return p.pending.Load()
}

// Service runs OnTick if a tick is pending and reports whether it did.
func (p *Pool) Service() bool {
	if !p.pending.Load() {
		return false
	}
	p.OnTick()
	return true
}

// OnTick advances all running timers by one tick, in slot order.
// A timer reaching zero latches its timeout, reloads (auto-reload) or
// stops (one-shot), then runs its callback. The callback may restart
// its own timer.
func (p *Pool) OnTick() {
	p.pending.Store(false)
	for n := range p.timers {
		t := &p.timers[n]
		if !t.running || t.count == 0 {
			continue
		}
		if t.count--; t.count != 0 {
			continue
		}
		t.timedOut = true
		if t.autoReload {
			t.count = t.reload
		} else {
			t.running = false
		}
		if cb := t.callback; cb != nil {
			out := cb.TimerExpired(ID(n), t.in)
			if t.out != nil {
				*t.out = out
			}
		}
	}
}
