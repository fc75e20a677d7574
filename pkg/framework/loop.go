package framework

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is the iteration interval when Loop.Interval is not set.
const DefaultInterval = 10 * time.Millisecond

// Loop runs controllers by priority level, once per iteration.
// Iterations happen every Interval, or earlier when TriggerNext is called.
// All controllers run on the loop goroutine, so state shared only between
// controllers needs no locking.
type Loop struct {
	Interval time.Duration

	levels  [PriorityLevels]controllerList
	workers []Runnable

	inbox     messageList
	inboxLock sync.Mutex

	iterations atomic.Uint64
	wakeUpCh   chan struct{}
}

// LoopAdder installs components into a loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type iteration struct {
	*Loop
	ctx      context.Context
	seq      uint64
	time     time.Time
	level    int
	messages messageList
}

type messageItem struct {
	msg  Message
	next *messageItem
}

type messageList struct {
	head, tail *messageItem
}

func (l *messageList) push(item *messageItem) {
	if l.head == nil {
		l.head = item
	} else {
		l.tail.next = item
	}
	l.tail = item
}

// take moves all items from src into l, replacing l.
func (l *messageList) take(src *messageList) {
	l.head, l.tail = src.head, src.tail
	src.head, src.tail = nil, nil
}

func (l *messageList) join(other *messageList) {
	if other.head == nil {
		return
	}
	if l.head == nil {
		l.head = other.head
	} else {
		l.tail.next = other.head
	}
	l.tail = other.tail
}

type controllerList struct {
	lock        sync.Mutex
	preHooks    []Controller
	controllers []Controller
	postHooks   []Controller
}

type ctxKey struct{}

// LoopCtlFrom gets LoopControl from a context passed to loop workers
// or controllers.
func LoopCtlFrom(ctx context.Context) LoopControl {
	return ctx.Value(ctxKey{}).(LoopControl)
}

// CtlCtxFrom gets the ControlContext from a context passed to controllers.
// It returns nil outside of a loop iteration.
func CtlCtxFrom(ctx context.Context) ControlContext {
	cc, _ := ctx.Value(ctxKey{}).(ControlContext)
	return cc
}

// NewLoop creates a Loop with DefaultInterval.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval, wakeUpCh: make(chan struct{}, 1)}
}

// Add installs LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers at a priority level.
// Controllers which are also Runnable are started with the loop.
func (l *Loop) AddController(priorityLevel int, ctls ...Controller) *Loop {
	lst := &l.levels[priorityLevel]
	lst.lock.Lock()
	lst.controllers = append(lst.controllers, ctls...)
	lst.lock.Unlock()
	for _, ctl := range ctls {
		if worker, ok := ctl.(Runnable); ok {
			l.workers = append(l.workers, worker)
		}
	}
	return l
}

// AddRunnable registers background workers started with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.workers = append(l.workers, runnables...)
	return l
}

// Iterations returns the number of iterations run so far.
func (l *Loop) Iterations() uint64 {
	return l.iterations.Load()
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	l.ensureWakeUp()
	runner := NewRunnerWith(context.WithValue(ctx, ctxKey{}, LoopControl(l)))
	runner.Go(l.workers...)
	defer func() {
		if err := runner.Wait(); err != nil {
			glog.Errorf("loop worker error: %v", err)
		}
	}()

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-l.wakeUpCh:
		}
		l.Step(ctx)
	}
}

// RunOrFail runs the loop until SIGINT or SIGTERM, exiting the process
// on failure. It is meant to be called from main.
func (l *Loop) RunOrFail() {
	runner := NewRunner().HandleSignals()
	runner.Go(NamedRun("loop", l))
	if err := runner.Wait(); err != nil {
		glog.Fatalf("loop: %v", err)
	}
}

// Step runs a single iteration on the calling goroutine.
// It is used instead of Run when the caller drives the loop itself.
func (l *Loop) Step(ctx context.Context) {
	iter := &iteration{Loop: l, seq: l.iterations.Add(1), time: time.Now()}
	l.inboxLock.Lock()
	iter.messages.take(&l.inbox)
	l.inboxLock.Unlock()
	iter.ctx = context.WithValue(ctx, ctxKey{}, ControlContext(iter))
	for lv := range l.levels {
		iter.level = lv
		l.levels[lv].run(iter)
	}
}

// PreRunAt implements LoopControl.
func (l *Loop) PreRunAt(priorityLevel int, hooks ...Controller) {
	lst := &l.levels[priorityLevel]
	lst.lock.Lock()
	lst.preHooks = append(lst.preHooks, hooks...)
	lst.lock.Unlock()
}

// PostRunAt implements LoopControl.
func (l *Loop) PostRunAt(priorityLevel int, hooks ...Controller) {
	lst := &l.levels[priorityLevel]
	lst.lock.Lock()
	lst.postHooks = append(lst.postHooks, hooks...)
	lst.lock.Unlock()
}

// PostMessage implements LoopControl.
func (l *Loop) PostMessage(msg Message) {
	l.inboxLock.Lock()
	l.inbox.push(&messageItem{msg: msg})
	l.inboxLock.Unlock()
}

// TriggerNext implements LoopControl. It is safe to call from any goroutine.
func (l *Loop) TriggerNext() {
	l.ensureWakeUp()
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

func (l *Loop) ensureWakeUp() {
	// loops created without NewLoop are set up before being shared
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}
}

func (t *iteration) Context() context.Context { return t.ctx }
func (t *iteration) Iteration() uint64        { return t.seq }
func (t *iteration) Time() time.Time          { return t.time }
func (t *iteration) PriorityLevel() int       { return t.level }
func (t *iteration) Messages() MessageStore   { return t }

func (t *iteration) PostRun(hooks ...Controller) {
	t.PostRunAt(t.level, hooks...)
}

type messageContext struct {
	iter  *iteration
	item  *messageItem
	taken bool
	stop  bool
}

func (c *messageContext) CurrentMessage() Message     { return c.item.msg }
func (c *messageContext) MessageTaken()               { c.taken = true }
func (c *messageContext) StopProcessing()             { c.stop = true }
func (c *messageContext) AddMessages(msgs ...Message) { c.iter.AddMessages(msgs...) }

// ProcessMessages implements MessageStore.
// Messages added while processing are kept after the remaining ones.
func (t *iteration) ProcessMessages(proc MessageProcessor) {
	var pending, kept messageList
	pending.take(&t.messages)
	for pending.head != nil && proc != nil {
		mc := &messageContext{iter: t, item: pending.head}
		pending.head = mc.item.next
		mc.item.next = nil
		proc.ProcessMessage(mc)
		if !mc.taken {
			kept.push(mc.item)
		}
		if mc.stop {
			break
		}
	}
	if pending.head == nil {
		pending.tail = nil
	}
	kept.join(&pending)
	kept.join(&t.messages)
	t.messages = kept
}

// AddMessages implements MessageAppender.
func (t *iteration) AddMessages(msgs ...Message) {
	for _, msg := range msgs {
		t.messages.push(&messageItem{msg: msg})
	}
}

func (c *controllerList) run(iter *iteration) {
	c.lock.Lock()
	hooks := c.preHooks
	c.preHooks = nil
	ctls := c.controllers
	c.lock.Unlock()
	runControllers(iter, hooks)
	runControllers(iter, ctls)
	c.lock.Lock()
	hooks, c.postHooks = c.postHooks, nil
	c.lock.Unlock()
	runControllers(iter, hooks)
}

func runControllers(iter *iteration, ctls []Controller) {
	for _, ctl := range ctls {
		if err := ctl.Control(iter); err != nil {
			glog.Errorf("controller error at level %d: %v", iter.level, err)
		}
	}
}
