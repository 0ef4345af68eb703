package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Message is anything posted to the loop from outside of an iteration,
// e.g. input events delivered by a background Runnable.
type Message interface{}

// Controller defines the logic executed once per iteration.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc defines the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc ControlContext) error {
	return f(cc)
}

// Stage orders controllers within one iteration.
type Stage int

// Stages executed in order in every iteration.
const (
	// StageSense consumes input messages and updates state.
	StageSense Stage = iota
	// StageControl derives commands from state.
	StageControl
	// StageActuate talks to the hardware.
	StageActuate
	// StagePost runs after actuation, e.g. for reporting.
	StagePost

	numStages
)

// String returns the name of the stage.
func (s Stage) String() string {
	switch s {
	case StageSense:
		return "sense"
	case StageControl:
		return "control"
	case StageActuate:
		return "actuate"
	case StagePost:
		return "post"
	}
	return "unknown"
}

// ControlContext provides the context of the current iteration.
type ControlContext interface {
	// Context retrieves context.Context.
	Context() context.Context
	// Time is when the iteration started.
	Time() time.Time
	// Stage is the stage being executed.
	Stage() Stage
	// ProcessMessages visits the pending messages in posting order.
	// Messages for which fn returns true are consumed, the others
	// remain visible to later controllers of the same iteration.
	ProcessMessages(fn func(Message) bool)
	// Abort skips the rest of the iteration and stops the loop with err.
	Abort(err error)

	LoopControl
}

// LoopControl exposes access to the running loop.
type LoopControl interface {
	// PostMessage enqueues a message for the next iteration.
	PostMessage(Message)
	// TriggerNext schedules the next iteration immediately.
	TriggerNext()
}
