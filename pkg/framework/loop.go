package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultInterval is used when Loop.Interval is not set.
const DefaultInterval = 100 * time.Millisecond

// Loop runs controllers periodically, stage by stage, on a single
// goroutine. Runnables added to the loop run in the background and
// communicate with controllers only through posted messages.
type Loop struct {
	Interval time.Duration

	stages  [numStages][]Controller
	runners []Runnable

	pending []Message
	lock    sync.Mutex

	wakeUpCh chan struct{}
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopCtlKey struct{}

// LoopCtlFrom gets LoopControl from the context passed to Runnables.
func LoopCtlFrom(ctx context.Context) LoopControl {
	return ctx.Value(loopCtlKey{}).(LoopControl)
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Interval: DefaultInterval, wakeUpCh: make(chan struct{}, 1)}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers at the stage.
func (l *Loop) AddController(stage Stage, ctls ...Controller) *Loop {
	l.stages[stage] = append(l.stages[stage], ctls...)
	return l
}

// AddRunnable adds background Runnables started by Run.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Run implements Runnable. It returns when ctx is done or any
// Runnable of the loop stops with an error.
func (l *Loop) Run(ctx context.Context) error {
	if l.wakeUpCh == nil {
		l.wakeUpCh = make(chan struct{}, 1)
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runner := NewRunnerWith(context.WithValue(subCtx, loopCtlKey{}, l))
	runner.Go(l.runners...)

	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var err error
	for err == nil {
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case err = <-runner.Failed():
		case <-ticker.C:
			err = l.RunIteration(ctx, time.Now())
		case <-l.wakeUpCh:
			err = l.RunIteration(ctx, time.Now())
		}
	}
	cancel()
	if werr := runner.Wait(); werr != nil {
		glog.Errorf("loop runners: %v", werr)
	}
	return err
}

// PostMessage implements LoopControl.
func (l *Loop) PostMessage(msg Message) {
	l.lock.Lock()
	l.pending = append(l.pending, msg)
	l.lock.Unlock()
}

// TriggerNext implements LoopControl.
func (l *Loop) TriggerNext() {
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

// RunIteration executes all stages once. It's called by Run on every
// tick, and is exported for driving the loop step by step. The returned
// error is the one passed to ControlContext.Abort, if any.
func (l *Loop) RunIteration(ctx context.Context, now time.Time) error {
	l.lock.Lock()
	msgs := l.pending
	l.pending = nil
	l.lock.Unlock()

	iter := &iteration{loop: l, ctx: ctx, time: now, messages: msgs}
	for stage := StageSense; stage < numStages && iter.abortErr == nil; stage++ {
		iter.stage = stage
		for _, ctl := range l.stages[stage] {
			if err := ctl.Control(iter); err != nil {
				glog.Errorf("controller error at %s: %v", stage, err)
			}
			if iter.abortErr != nil {
				break
			}
		}
	}
	if len(iter.messages) > 0 {
		glog.V(3).Infof("%d unprocessed messages dropped", len(iter.messages))
	}
	return iter.abortErr
}

type iteration struct {
	loop     *Loop
	ctx      context.Context
	time     time.Time
	stage    Stage
	messages []Message
	abortErr error
}

func (t *iteration) Context() context.Context { return t.ctx }
func (t *iteration) Time() time.Time          { return t.time }
func (t *iteration) Stage() Stage             { return t.stage }
func (t *iteration) PostMessage(msg Message)  { t.loop.PostMessage(msg) }
func (t *iteration) TriggerNext()             { t.loop.TriggerNext() }

func (t *iteration) Abort(err error) {
	if t.abortErr == nil {
		t.abortErr = err
	}
}

func (t *iteration) ProcessMessages(fn func(Message) bool) {
	remains := t.messages[:0]
	for _, msg := range t.messages {
		if !fn(msg) {
			remains = append(remains, msg)
		}
	}
	t.messages = remains
}
