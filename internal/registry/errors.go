package registry

import (
	"errors"
	"fmt"
)

// ErrNotRegistered is wrapped by ResolutionError when the handle's key is
// unknown to the container.
var ErrNotRegistered = errors.New("component not registered")

// ResolutionError reports that the registry could not produce an instance.
type ResolutionError struct {
	Key string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve component %q: %v", e.Key, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
