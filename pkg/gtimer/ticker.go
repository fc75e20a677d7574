package gtimer

import (
	"context"
	"time"
)

// TicksIn converts a duration into a number of ticks of the given period,
// truncating partial ticks.
func TicksIn(d, period time.Duration) uint32 {
	if period <= 0 || d <= 0 {
		return 0
	}
	return uint32(d / period)
}

// DurationOf converts a number of ticks of the given period into a duration.
func DurationOf(ticks uint32, period time.Duration) time.Duration {
	return time.Duration(ticks) * period
}

// Ticker is a tick source signaling a Pool at a fixed period.
// It plays the role of the hardware timer interrupt: it only sets the
// pending flag, and the owner of the pool calls Service.
type Ticker struct {
	Pool   *Pool
	Period time.Duration
	// Notify is called after each signal, e.g. to wake up the servicing loop.
	Notify func()
}

// Run implements Runnable.
func (t *Ticker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Pool.Signal()
			if fn := t.Notify; fn != nil {
				fn()
			}
		}
	}
}
