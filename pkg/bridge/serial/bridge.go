// Package serial bridges a host serial port to a link: bytes read from
// the port are transmitted on the link and received frames are written
// back to the port.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang/glog"
	"github.com/tarm/serial"

	fx "github.com/robotalks/swuart/pkg/framework"
	"github.com/robotalks/swuart/pkg/link"
	"github.com/robotalks/swuart/pkg/swuart"
)

// WriteQueueSize is the number of frames buffered for writing.
const WriteQueueSize = 64

// ErrUnsupportedFraming indicates the framing can't be set on a host port.
var ErrUnsupportedFraming = errors.New("framing not supported by host port")

// PortConfig maps the framing of a link to a host port configuration.
// Host ports only support 5 to 8 data bits.
func PortConfig(device string, baud int, cfg swuart.Config) (*serial.Config, error) {
	if cfg.DataBits < 5 || cfg.DataBits > 8 {
		return nil, fmt.Errorf("%w: %d data bits", ErrUnsupportedFraming, cfg.DataBits)
	}
	pc := &serial.Config{
		Name:        device,
		Baud:        baud,
		ReadTimeout: 100 * time.Millisecond,
		Size:        cfg.DataBits,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
	}
	switch cfg.Parity {
	case swuart.ParityOdd:
		pc.Parity = serial.ParityOdd
	case swuart.ParityEven:
		pc.Parity = serial.ParityEven
	}
	if cfg.Stop == swuart.Stop2 {
		pc.StopBits = serial.Stop2
	}
	return pc, nil
}

// Bridge copies between a port and a link.
type Bridge struct {
	Port io.ReadWriteCloser

	frames chan []byte
}

// New creates a Bridge over an open port.
func New(port io.ReadWriteCloser) *Bridge {
	return &Bridge{Port: port, frames: make(chan []byte, WriteQueueSize)}
}

// Open opens a host serial port with the framing of cfg.
func Open(device string, baud int, cfg swuart.Config) (*Bridge, error) {
	pc, err := PortConfig(device, baud, cfg)
	if err != nil {
		return nil, err
	}
	port, err := serial.OpenPort(pc)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	glog.Infof("serial %s opened at %d baud, %s", device, baud, cfg)
	return New(port), nil
}

// HandleFrame implements link.FrameHandler. Frames are dropped when the
// port can't keep up.
func (b *Bridge) HandleFrame(_ context.Context, frame *link.Frame) {
	select {
	case b.frames <- frame.Bytes():
	default:
		glog.Warningf("serial write queue full, %d bytes dropped", len(frame.Units))
	}
}

// AddToLoop implements LoopAdder.
func (b *Bridge) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(fx.NamedRun("serial", b))
}

// Run implements Runnable. The port is closed when ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	loop := fx.LoopCtlFrom(ctx)
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go b.writeFrames(writeCtx)
	return fx.RunWithContextCloser(ctx, b.Port, func() error {
		buf := make([]byte, 256)
		for {
			n, err := b.Port.Read(buf)
			if n > 0 {
				msg := &link.SendMsg{Units: make([]uint16, n)}
				for i, c := range buf[:n] {
					msg.Units[i] = uint16(c)
				}
				loop.PostMessage(msg)
				loop.TriggerNext()
			}
			// read timeouts show up as empty reads or io.EOF
			if err != nil && err != io.EOF {
				return err
			}
		}
	})
}

func (b *Bridge) writeFrames(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-b.frames:
			if _, err := b.Port.Write(data); err != nil {
				glog.Errorf("serial write error: %v", err)
			}
		}
	}
}
