package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/swuart/pkg/framework"
	"github.com/robotalks/swuart/pkg/link"
	"github.com/robotalks/swuart/pkg/link/msgs"
	"github.com/robotalks/swuart/pkg/swuart"
)

// TopicRoot is the first topic level of every link.
const TopicRoot = "swuart"

// Topic suffixes under TopicRoot/node.
const (
	TopicRx     = "rx"
	TopicTx     = "tx"
	TopicStatus = "status"
	TopicMeta   = "meta"
)

// Meta describes a node. It is published retained as JSON.
type Meta struct {
	Node       string            `json:"node"`
	Format     string            `json:"format"`
	BitWidth   uint16            `json:"bit_width"`
	TripleScan bool              `json:"triple_scan,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`
}

// Bridge publishes frames and status of a link and accepts send requests.
type Bridge struct {
	Queue *Queue
	Meta  Meta
	// Link, if set, has its status published when reception errors occur.
	Link *link.Link
	// StatusInterval, if positive, publishes the link status periodically.
	StatusInterval time.Duration

	prefix     string
	metaJSON   []byte
	statusDue  bool
	lastStatus time.Time
}

// NodeTopic returns the topic of a node for suffix.
func NodeTopic(node, suffix string) string {
	return TopicRoot + "/" + node + "/" + suffix
}

// NewBridge creates a Bridge connecting to brokerURL. The retained meta is
// cleared by the broker if the connection is lost.
func NewBridge(brokerURL string, meta Meta) (*Bridge, error) {
	if meta.Node == "" {
		return nil, fmt.Errorf("node name required")
	}
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		return nil, err
	}
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	b := &Bridge{Meta: meta, prefix: TopicRoot + "/" + meta.Node + "/", metaJSON: metaJSON}
	opts.SetBinaryWill(prefix+b.prefix+TopicMeta, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("swuart:" + meta.Node)
	}
	b.Queue = NewQueue(opts, prefix)
	b.Queue.OnConnect = func(q *Queue) {
		q.PubWith(b.prefix+TopicMeta, b.metaJSON, 1, true)
	}
	return b, nil
}

// MetaOf describes a link.
func MetaOf(node string, cfg swuart.Config) Meta {
	return Meta{
		Node:       node,
		Format:     cfg.String(),
		BitWidth:   cfg.BitWidth,
		TripleScan: cfg.TripleScan,
	}
}

// HandleFrame implements link.FrameHandler.
func (b *Bridge) HandleFrame(_ context.Context, frame *link.Frame) {
	b.publish(TopicRx, frame.Message())
}

// ReceiveErrors implements link.ErrorNotifier. The error counters are
// published with the link status, once per loop iteration at PrLvReport.
func (b *Bridge) ReceiveErrors(ctx context.Context, errs swuart.ErrorFlags) {
	glog.V(3).Infof("%s: receive errors %s", b.Meta.Node, errs)
	if b.Link == nil {
		return
	}
	if fx.CtlCtxFrom(ctx) != nil {
		b.statusDue = true
		return
	}
	b.PublishStatus(b.Link.Status())
}

// PublishStatus publishes the status of the link.
func (b *Bridge) PublishStatus(status *msgs.Status) {
	b.publish(TopicStatus, status)
}

func (b *Bridge) publish(suffix string, msg fx.Message) {
	data, err := msgs.Encode(msg)
	if err != nil {
		glog.Errorf("encode %s error: %v", suffix, err)
		return
	}
	b.Queue.Pub(b.prefix+suffix, data)
}

// AddToLoop implements LoopAdder.
func (b *Bridge) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvReport, fx.ControlFunc(b.reportStatus))
	loop.AddRunnable(fx.NamedRun("mqtt", b))
}

func (b *Bridge) reportStatus(cc fx.ControlContext) error {
	if b.Link == nil {
		return nil
	}
	now := cc.Time()
	if !b.statusDue && (b.StatusInterval <= 0 || now.Sub(b.lastStatus) < b.StatusInterval) {
		return nil
	}
	b.statusDue, b.lastStatus = false, now
	b.PublishStatus(b.Link.Status())
	return nil
}

// Run implements Runnable. It connects and forwards commands received on
// the tx topic to the loop until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	loop := fx.LoopCtlFrom(ctx)
	sub := b.Queue.Sub(b.prefix+TopicTx, func(_ string, payload []byte) {
		msg, err := msgs.DecodeMessage(payload)
		if err != nil {
			glog.Warningf("bad command: %v", err)
			return
		}
		switch m := msg.(type) {
		case *msgs.Send:
			loop.PostMessage(link.SendMsgFrom(m))
		case *msgs.StatusQuery:
			loop.PostMessage(&link.StatusRequest{Reply: b.PublishStatus})
		default:
			glog.Warningf("unsupported command %x", m.(msgs.SerializableMessage).TypeID())
			return
		}
		loop.TriggerNext()
	})
	defer sub.Close()
	if token := b.Queue.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	<-ctx.Done()
	b.Queue.PubWith(b.prefix+TopicMeta, nil, 1, true).Wait()
	b.Queue.Close()
	return ctx.Err()
}
