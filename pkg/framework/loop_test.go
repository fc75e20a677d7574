package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMsg struct {
	n int
}

func (m *testMsg) NewMessage() Message { return &testMsg{} }

func TestStepRunsLevelsInOrder(t *testing.T) {
	l := NewLoop()
	var order []int
	record := func(cc ControlContext) error {
		order = append(order, cc.PriorityLevel())
		return nil
	}
	l.AddController(PrLvDrain, ControlFunc(record))
	l.AddController(PrLvTick, ControlFunc(record))
	l.AddController(PrLvIdle, ControlFunc(record), ControlFunc(func(ControlContext) error {
		return errors.New("ignored")
	}))
	l.AddController(PrLvScan, ControlFunc(record))

	l.Step(context.Background())
	assert.Equal(t, []int{PrLvTick, PrLvScan, PrLvDrain, PrLvIdle}, order)
	assert.Equal(t, uint64(1), l.Iterations())
}

func TestMessages(t *testing.T) {
	l := NewLoop()
	var got []int
	l.AddController(PrLvFeed, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			if m, ok := mc.CurrentMessage().(*testMsg); ok && m.n%2 == 0 {
				got = append(got, m.n)
				mc.MessageTaken()
			}
		}))
		return nil
	}))
	var left []int
	l.AddController(PrLvIdle, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			left = append(left, mc.CurrentMessage().(*testMsg).n)
		}))
		return nil
	}))

	for n := 1; n <= 4; n++ {
		l.PostMessage(&testMsg{n: n})
	}
	l.Step(context.Background())
	assert.Equal(t, []int{2, 4}, got)
	assert.Equal(t, []int{1, 3}, left)

	// messages don't survive the iteration
	got, left = nil, nil
	l.Step(context.Background())
	assert.Empty(t, got)
	assert.Empty(t, left)
}

func TestStopProcessing(t *testing.T) {
	l := NewLoop()
	var first, all []int
	l.AddController(PrLvFeed, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			first = append(first, mc.CurrentMessage().(*testMsg).n)
			mc.MessageTaken()
			mc.AddMessages(&testMsg{n: 10})
			mc.StopProcessing()
		}))
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mc MessageProcessingContext) {
			all = append(all, mc.CurrentMessage().(*testMsg).n)
		}))
		return nil
	}))
	l.PostMessage(&testMsg{n: 1})
	l.PostMessage(&testMsg{n: 2})
	l.Step(context.Background())
	assert.Equal(t, []int{1}, first)
	assert.Equal(t, []int{2, 10}, all)
}

func TestHooks(t *testing.T) {
	l := NewLoop()
	var calls []string
	l.AddController(PrLvScan, ControlFunc(func(cc ControlContext) error {
		calls = append(calls, "ctl")
		if cc.Iteration() == 1 {
			cc.PostRun(ControlFunc(func(ControlContext) error {
				calls = append(calls, "post")
				return nil
			}))
		}
		return nil
	}))
	l.PreRunAt(PrLvScan, ControlFunc(func(ControlContext) error {
		calls = append(calls, "pre")
		return nil
	}))
	l.Step(context.Background())
	l.Step(context.Background())
	assert.Equal(t, []string{"pre", "ctl", "post", "ctl"}, calls)
}

func TestRunTriggerNext(t *testing.T) {
	l := NewLoop()
	l.Interval = time.Hour
	done := make(chan struct{})
	l.AddController(PrLvIdle, ControlFunc(func(cc ControlContext) error {
		if cc.Iteration() < 3 {
			cc.TriggerNext()
		} else if cc.Iteration() == 3 {
			close(done)
		}
		return nil
	}))
	l.AddRunnable(RunFunc(func(ctx context.Context) error {
		LoopCtlFrom(ctx).TriggerNext()
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("loop didn't iterate")
	}
	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunnerAggregatesErrors(t *testing.T) {
	errA := errors.New("a")
	r := NewRunner()
	r.Go(
		RunFunc(func(context.Context) error { return errA }),
		NamedRun("ok", RunFunc(func(context.Context) error { return nil })),
		RunFunc(func(context.Context) error { return context.Canceled }),
	)
	err := r.Wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.Equal(t, "a", err.Error())

	var agg AggregatedError
	assert.NoError(t, agg.Aggregate())
	agg.Add(nil, errA, errors.New("b"))
	assert.Equal(t, "multiple errors:\n  a\n  b", agg.Error())
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestRunWithContextCloser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	unblock := make(chan struct{})
	closed := 0
	closer := closerFunc(func() error {
		closed++
		close(unblock)
		return nil
	})
	go cancel()
	err := RunWithContextCloser(ctx, closer, func() error {
		<-unblock
		return errors.New("closed")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, closed)

	closed = 0
	unblock = make(chan struct{})
	err = RunWithContextCloser(context.Background(), closer, func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, 1, closed)
}
