package emotion

import (
	"errors"
	"fmt"
)

var (
	// ErrMotionUnavailable is returned when no candidate action could be played.
	ErrMotionUnavailable = errors.New("emotion: no playable motion")

	// ErrUnknownLabel is returned when a binding names an unknown label.
	ErrUnknownLabel = errors.New("emotion: unknown label")
)

// PlayError records why one candidate could not be played.
type PlayError struct {
	Action ActionID
	Err    error
}

func (e *PlayError) Error() string {
	return fmt.Sprintf("emotion: play %s: %v", e.Action, e.Err)
}

func (e *PlayError) Unwrap() error { return e.Err }
