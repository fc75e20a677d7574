// Package link runs a software UART transmitter and receiver over a
// shared in-memory line, all timed by a single timer pool.
//
// Units queued with Send are serialized onto the line and decoded back by
// the receiver, optionally through a noisy line. Received units are
// grouped into Frames, either per service step or up to a delimiter, and
// handed to a FrameHandler. A Link is driven either by calling Step once
// per tick or by adding it to a framework.Loop.
package link
