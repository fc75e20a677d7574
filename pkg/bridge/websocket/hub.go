// Package websocket streams frames of a link to websocket clients.
//
// Each received frame is sent to every client as a JSON text message.
// Text sent by a client is queued for transmission on the link.
package websocket

import (
	"context"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/swuart/pkg/framework"
	"github.com/robotalks/swuart/pkg/link"
	"github.com/robotalks/swuart/pkg/link/msgs"
)

// ClientQueueSize is the number of frames buffered per client. Frames are
// dropped for clients falling further behind.
const ClientQueueSize = 64

// Hub serves websocket clients at Path on Addr.
type Hub struct {
	Addr string
	Path string

	lock    sync.Mutex
	clients map[*client]struct{}
	loop    fx.LoopControl
}

type client struct {
	conn   *websocket.Conn
	frames chan *msgs.Frame
}

// NewHub creates a Hub listening on addr.
func NewHub(addr string) *Hub {
	return &Hub{Addr: addr, Path: "/ws", clients: make(map[*client]struct{})}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// HandleFrame implements link.FrameHandler.
func (h *Hub) HandleFrame(_ context.Context, frame *link.Frame) {
	msg := frame.Message()
	h.lock.Lock()
	defer h.lock.Unlock()
	for c := range h.clients {
		select {
		case c.frames <- msg:
		default:
			glog.V(3).Infof("websocket client %s too slow, frame dropped", c.conn.Request().RemoteAddr)
		}
	}
}

// Handler returns the http.Handler serving websocket clients.
func (h *Hub) Handler() http.Handler {
	return websocket.Handler(h.serveConn)
}

// AddToLoop implements LoopAdder.
func (h *Hub) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(fx.NamedRun("websocket", h))
}

// Run implements Runnable.
func (h *Hub) Run(ctx context.Context) error {
	h.lock.Lock()
	h.loop = fx.LoopCtlFrom(ctx)
	h.lock.Unlock()
	mux := http.NewServeMux()
	mux.Handle(h.Path, h.Handler())
	server := &http.Server{Addr: h.Addr, Handler: mux}
	glog.Infof("websocket listening on %s%s", h.Addr, h.Path)
	return fx.RunWithContextCloser(ctx, server, server.ListenAndServe)
}

func (h *Hub) serveConn(conn *websocket.Conn) {
	c := &client{conn: conn, frames: make(chan *msgs.Frame, ClientQueueSize)}
	h.lock.Lock()
	h.clients[c] = struct{}{}
	loop := h.loop
	h.lock.Unlock()
	glog.Infof("websocket client %s connected", conn.Request().RemoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for frame := range c.frames {
			if err := websocket.JSON.Send(conn, frame); err != nil {
				glog.V(3).Infof("websocket send error: %v", err)
				conn.Close()
				for range c.frames {
				}
				return
			}
		}
	}()

	for {
		var text string
		if err := websocket.Message.Receive(conn, &text); err != nil {
			break
		}
		if loop != nil && text != "" {
			msg := &link.SendMsg{Units: make([]uint16, len(text))}
			for n := 0; n < len(text); n++ {
				msg.Units[n] = uint16(text[n])
			}
			loop.PostMessage(msg)
			loop.TriggerNext()
		}
	}

	h.lock.Lock()
	delete(h.clients, c)
	close(c.frames)
	h.lock.Unlock()
	<-done
	glog.Infof("websocket client %s disconnected", conn.Request().RemoteAddr)
}
