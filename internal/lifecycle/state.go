package lifecycle

// State is the notifier's position in the start/stop cycle.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateStarted
	StateStopping
	StateStopped
	// StateFailed is entered when a transition aborts on its first error.
	// Readiness of the components is undefined afterwards.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateStarted:
		return "started"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (t Transition) activeState() State {
	if t == TransitionStop {
		return StateStopping
	}
	return StateStarting
}

func (t Transition) doneState() State {
	if t == TransitionStop {
		return StateStopped
	}
	return StateStarted
}
