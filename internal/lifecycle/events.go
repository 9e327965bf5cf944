package lifecycle

import "context"

// Event is one sub-event of a transition.
type Event string

const (
	EventPreStart  Event = "preStart"
	EventStart     Event = "start"
	EventPostStart Event = "postStart"
	EventPreStop   Event = "preStop"
	EventStop      Event = "stop"
	EventPostStop  Event = "postStop"
)

// Transition is a start or stop pass over all groups.
type Transition int

const (
	TransitionStart Transition = iota
	TransitionStop
)

func (t Transition) String() string {
	if t == TransitionStop {
		return "stop"
	}
	return "start"
}

// Events returns the sub-events of the transition in the order they run.
// Stop keeps the pre/main/post order; only the group order is reversed.
func (t Transition) Events() []Event {
	if t == TransitionStop {
		return []Event{EventPreStop, EventStop, EventPostStop}
	}
	return []Event{EventPreStart, EventStart, EventPostStart}
}

// Components opt into sub-events by implementing any of these interfaces.
// A component lacking the method for the current sub-event is skipped.
type (
	PreStarter interface {
		PreStart(ctx context.Context) error
	}
	Starter interface {
		Start(ctx context.Context) error
	}
	PostStarter interface {
		PostStart(ctx context.Context) error
	}
	PreStopper interface {
		PreStop(ctx context.Context) error
	}
	Stopper interface {
		Stop(ctx context.Context) error
	}
	PostStopper interface {
		PostStop(ctx context.Context) error
	}
)

// Component is the common case of a service with a start and a stop step.
type Component interface {
	Starter
	Stopper
}

// bind returns the instance's method for the event, or nil.
func (e Event) bind(instance any) func(context.Context) error {
	switch e {
	case EventPreStart:
		if c, ok := instance.(PreStarter); ok {
			return c.PreStart
		}
	case EventStart:
		if c, ok := instance.(Starter); ok {
			return c.Start
		}
	case EventPostStart:
		if c, ok := instance.(PostStarter); ok {
			return c.PostStart
		}
	case EventPreStop:
		if c, ok := instance.(PreStopper); ok {
			return c.PreStop
		}
	case EventStop:
		if c, ok := instance.(Stopper); ok {
			return c.Stop
		}
	case EventPostStop:
		if c, ok := instance.(PostStopper); ok {
			return c.PostStop
		}
	}
	return nil
}
