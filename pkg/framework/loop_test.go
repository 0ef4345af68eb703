package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopStagesInOrder(t *testing.T) {
	var order []Stage
	record := ControlFunc(func(cc ControlContext) error {
		order = append(order, cc.Stage())
		return nil
	})
	l := NewLoop()
	l.AddController(StagePost, record)
	l.AddController(StageActuate, record)
	l.AddController(StageSense, record)
	l.AddController(StageControl, record)
	require.NoError(t, l.RunIteration(context.Background(), time.Now()))
	require.Equal(t, []Stage{StageSense, StageControl, StageActuate, StagePost}, order)
}

func TestLoopMessages(t *testing.T) {
	var seen []Message
	l := NewLoop()
	l.AddController(StageSense, ControlFunc(func(cc ControlContext) error {
		cc.ProcessMessages(func(msg Message) bool {
			// take ints only.
			_, ok := msg.(int)
			return ok
		})
		return nil
	}))
	l.AddController(StageControl, ControlFunc(func(cc ControlContext) error {
		cc.ProcessMessages(func(msg Message) bool {
			seen = append(seen, msg)
			return true
		})
		return nil
	}))
	l.PostMessage(1)
	l.PostMessage("a")
	l.PostMessage(2)
	l.PostMessage("b")
	require.NoError(t, l.RunIteration(context.Background(), time.Now()))
	require.Equal(t, []Message{"a", "b"}, seen)

	seen = nil
	require.NoError(t, l.RunIteration(context.Background(), time.Now()))
	require.Empty(t, seen)
}

func TestLoopAbort(t *testing.T) {
	errBoom := errors.New("boom")
	var actuated bool
	l := NewLoop()
	l.Interval = time.Millisecond
	l.AddController(StageControl, ControlFunc(func(cc ControlContext) error {
		cc.Abort(errBoom)
		return nil
	}))
	l.AddController(StageActuate, ControlFunc(func(cc ControlContext) error {
		actuated = true
		return nil
	}))
	require.Equal(t, errBoom, l.Run(context.Background()))
	require.False(t, actuated)
}

func TestLoopRunnableFailure(t *testing.T) {
	errBoom := errors.New("boom")
	l := NewLoop()
	l.Interval = time.Hour
	l.AddRunnable(RunFunc(func(ctx context.Context) error {
		return errBoom
	}))
	require.Equal(t, errBoom, l.Run(context.Background()))
}

func TestLoopCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := NewLoop()
	l.Interval = time.Millisecond
	ticks := 0
	l.AddController(StageActuate, ControlFunc(func(cc ControlContext) error {
		if ticks++; ticks == 3 {
			cancel()
		}
		return nil
	}))
	l.AddRunnable(RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	require.Equal(t, context.Canceled, l.Run(ctx))
	require.True(t, ticks >= 3)
}

func TestLoopPostFromRunnable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLoop()
	l.Interval = time.Hour
	got := make(chan Message, 1)
	l.AddController(StageSense, ControlFunc(func(cc ControlContext) error {
		cc.ProcessMessages(func(msg Message) bool {
			got <- msg
			cancel()
			return true
		})
		return nil
	}))
	l.AddRunnable(RunFunc(func(ctx context.Context) error {
		lc := LoopCtlFrom(ctx)
		lc.PostMessage("hello")
		lc.TriggerNext()
		<-ctx.Done()
		return ctx.Err()
	}))
	require.Equal(t, context.Canceled, l.Run(ctx))
	require.Equal(t, "hello", <-got)
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	errs.Add(errors.New("a"))
	require.EqualError(t, errs.Aggregate(), "a")
	errs.Add(nil, errors.New("b"))
	require.EqualError(t, errs.Aggregate(), "2 errors: a; b")
}

func TestRunWithContextCloser(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	closer := &countingCloser{ch: make(chan struct{})}
	go cancel()
	err := RunWithContextCloser(ctx, closer, func() error {
		<-closer.ch
		return nil
	})
	require.Equal(t, context.Canceled, err)
	require.Equal(t, 1, closer.count)

	closer = &countingCloser{ch: make(chan struct{})}
	err = RunWithContextCloser(context.Background(), closer, func() error {
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, closer.count)
}

type countingCloser struct {
	ch    chan struct{}
	count int
}

func (c *countingCloser) Close() error {
	c.count++
	if c.count == 1 {
		close(c.ch)
	}
	return nil
}
