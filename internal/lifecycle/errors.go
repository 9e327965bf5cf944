package lifecycle

import "fmt"

// InvocationError reports that a component's sub-event method returned an
// error.
type InvocationError struct {
	Key   string
	Group string
	Event Event
	Err   error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s of component %q (group %q) failed: %v", e.Event, e.Key, e.Group, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
