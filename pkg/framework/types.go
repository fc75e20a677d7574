package framework

import (
	"context"
	"time"
)

// Named is implemented by things with a name.
type Named interface {
	Name() string
}

// Runnable is a background worker stopped by canceling its context.
type Runnable interface {
	Run(context.Context) error
}

// Message is an item posted to the loop and consumed by controllers
// during the next iteration.
type Message interface {
	// NewMessage creates an empty message of the same kind.
	NewMessage() Message
}

// MessageHandler processes a message.
type MessageHandler interface {
	HandleMessage(context.Context, Message)
}

// HandleMessageFunc is the func form of MessageHandler.
type HandleMessageFunc func(context.Context, Message)

// HandleMessage implements MessageHandler.
func (f HandleMessageFunc) HandleMessage(ctx context.Context, msg Message) {
	f(ctx, msg)
}

// Controller is run once per loop iteration at its priority level.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc ControlContext) error {
	return f(cc)
}

// IterationSource identifies the current iteration.
type IterationSource interface {
	// Iteration is the sequence number of the iteration, starting from 1.
	Iteration() uint64
	// Time is the wall clock time when the iteration started.
	Time() time.Time
}

// ControlContext is passed to controllers in an iteration.
type ControlContext interface {
	IterationSource
	// Context retrieves context.Context.
	Context() context.Context
	// PriorityLevel gets the current priority level.
	PriorityLevel() int
	// Messages retrieves the messages posted before this iteration started.
	Messages() MessageStore
	// PostRun installs one-shot hooks at the current priority level.
	// Hooks installed from a post-run hook run in the next iteration.
	PostRun(hooks ...Controller)

	LoopControl
}

// PriorityLevels is the number of priority levels.
const PriorityLevels int = 8

// Priority levels, run in increasing order within an iteration.
const (
	// PrLvTick advances timer pools.
	PrLvTick int = 0
	// PrLvScan polls receivers for start conditions.
	PrLvScan int = 1
	// PrLvFeed consumes outgoing messages and feeds transmitters.
	PrLvFeed int = 2
	// PrLvDrain moves received units out of receivers.
	PrLvDrain int = 3
	// PrLvReport publishes status and errors.
	PrLvReport int = 6
	// PrLvIdle is the last level.
	PrLvIdle int = PriorityLevels - 1
)

// LoopControl exposes access to the loop.
type LoopControl interface {
	// PreRunAt installs one-shot hooks run before the controllers at
	// the specified priority level.
	PreRunAt(priorityLevel int, controllers ...Controller)
	// PostRunAt installs one-shot hooks run after the controllers at
	// the specified priority level.
	PostRunAt(priorityLevel int, controllers ...Controller)
	// PostMessage enqueues a message for the next iteration.
	PostMessage(Message)
	// TriggerNext requests another iteration without waiting for
	// the interval.
	TriggerNext()
}

// MessageStore provides access to the messages of an iteration.
type MessageStore interface {
	// ProcessMessages walks through the messages with a processor.
	ProcessMessages(MessageProcessor)

	MessageAppender
}

// MessageAppender appends messages to a store.
type MessageAppender interface {
	// AddMessages appends messages visible to later processors.
	AddMessages(msgs ...Message)
}

// MessageProcessor processes messages from a MessageStore.
type MessageProcessor interface {
	ProcessMessage(MessageProcessingContext)
}

// ProcessMessageFunc is the func form of MessageProcessor.
type ProcessMessageFunc func(MessageProcessingContext)

// ProcessMessage implements MessageProcessor.
func (f ProcessMessageFunc) ProcessMessage(mc MessageProcessingContext) {
	f(mc)
}

// MessageProcessingContext is the state of processing one message.
type MessageProcessingContext interface {
	// CurrentMessage gets the message being processed.
	CurrentMessage() Message
	// MessageTaken removes the message from the store.
	MessageTaken()
	// StopProcessing skips the remaining messages.
	StopProcessing()

	MessageAppender
}
