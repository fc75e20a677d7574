package link

import (
	"context"

	fx "github.com/robotalks/swuart/pkg/framework"
	"github.com/robotalks/swuart/pkg/link/msgs"
	"github.com/robotalks/swuart/pkg/swuart"
)

// Frame is a group of received units.
type Frame struct {
	Units []uint16
	// Errors are the reception errors seen since the previous frame.
	Errors swuart.ErrorFlags
	// Tick is the link tick when the frame was completed.
	Tick uint64
}

// Bytes returns the units truncated to bytes.
func (f *Frame) Bytes() []byte {
	data := make([]byte, len(f.Units))
	for n, u := range f.Units {
		data[n] = byte(u)
	}
	return data
}

// Message converts the frame to the wire message.
func (f *Frame) Message() *msgs.Frame {
	m := &msgs.Frame{Units: make([]uint32, len(f.Units)), Errors: uint32(f.Errors), Tick: f.Tick}
	for n, u := range f.Units {
		m.Units[n] = uint32(u)
	}
	return m
}

// FrameHandler receives frames from a link.
// It is called on the goroutine driving the link and must not block.
type FrameHandler interface {
	HandleFrame(context.Context, *Frame)
}

// HandleFrameFunc is func form of FrameHandler.
type HandleFrameFunc func(context.Context, *Frame)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, frame *Frame) {
	f(ctx, frame)
}

// ErrorNotifier is told about reception errors when they are cleared.
type ErrorNotifier interface {
	ReceiveErrors(context.Context, swuart.ErrorFlags)
}

// ReceiveErrorsFunc is func form of ErrorNotifier.
type ReceiveErrorsFunc func(context.Context, swuart.ErrorFlags)

// ReceiveErrors implements ErrorNotifier.
func (f ReceiveErrorsFunc) ReceiveErrors(ctx context.Context, errs swuart.ErrorFlags) {
	f(ctx, errs)
}

// FrameMux dispatches frames to multiple handlers.
type FrameMux struct {
	Handlers []FrameHandler
}

// Add appends handlers.
func (m *FrameMux) Add(handlers ...FrameHandler) *FrameMux {
	m.Handlers = append(m.Handlers, handlers...)
	return m
}

// HandleFrame implements FrameHandler.
func (m *FrameMux) HandleFrame(ctx context.Context, frame *Frame) {
	for _, h := range m.Handlers {
		h.HandleFrame(ctx, frame)
	}
}

// SendMsg asks the link to transmit units. It is posted to the loop by
// components running on other goroutines.
type SendMsg struct {
	Units []uint16
}

// NewMessage implements Message.
func (m *SendMsg) NewMessage() fx.Message { return &SendMsg{} }

// SendMsgFrom converts the wire message.
func SendMsgFrom(m *msgs.Send) *SendMsg {
	units := make([]uint16, len(m.Units))
	for n, u := range m.Units {
		units[n] = uint16(u)
	}
	return &SendMsg{Units: units}
}

// StatusRequest asks the link to report its status from the loop.
type StatusRequest struct {
	Reply func(*msgs.Status)
}

// NewMessage implements Message.
func (m *StatusRequest) NewMessage() fx.Message { return &StatusRequest{} }

// Stats are the counters of a link.
type Stats struct {
	Ticks         uint64
	UnitsSent     uint64
	UnitsReceived uint64
	Frames        uint64
	FramingErrors uint64
	ParityErrors  uint64
	OverrunErrors uint64
}

func (s *Stats) countErrors(errs swuart.ErrorFlags) {
	if errs&swuart.FramingError != 0 {
		s.FramingErrors++
	}
	if errs&swuart.ParityError != 0 {
		s.ParityErrors++
	}
	if errs&swuart.OverrunError != 0 {
		s.OverrunErrors++
	}
}
