// Package swuart implements a software (bit-banged) UART on top of gtimer.
package swuart

// A Transmitter and a Receiver are purely reactive state machines: each
// owns no goroutine and advances one state per expiry of its dedicated
// timer, inside gtimer.Pool.OnTick. The application drives them by:
//
//   - calling Pool.OnTick once per tick,
//   - polling Receiver.ScanForStart often enough not to miss a start bit,
//   - calling Transmitter.SendUnit (or SendStream) when not busy,
//   - pulling decoded units and error flags from the Receiver.
//
// Frames are LSB first: one start bit (space), 3 to 10 data bits,
// an optional parity bit and one or two stop bits (mark).
//
// None of the types here are safe for concurrent use. OnTick and the
// Receiver FIFO accessors must be called from the same goroutine.
