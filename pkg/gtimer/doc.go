// Package gtimer provides a pool of cooperative software timers.
package gtimer

// A Pool holds a fixed number of countdown timers addressed by ID.
// Timers are reserved from the pool, started as one-shot or auto-reload,
// and decremented by OnTick which must be called once per external tick.
// When a timer reaches zero its timeout latch is set and its callback,
// if any, runs synchronously inside OnTick.
//
// Nothing in this package is safe for concurrent use except Pool.Signal,
// which may be called from another goroutine (the interrupt analogue) to
// mark a tick as pending. OnTick, Service and every other method must run
// in a single goroutine, and callbacks must not call OnTick.
