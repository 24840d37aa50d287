package conversation

import (
	"errors"
	"fmt"
)

// Sentinel errors for the conversation package.
var (
	// ErrBusy is returned when a submission arrives while another is in flight.
	ErrBusy = errors.New("conversation: pipeline busy")

	// ErrEmptyTranscript indicates speech-to-text heard nothing usable.
	ErrEmptyTranscript = errors.New("conversation: empty transcript")

	// ErrNoBackend indicates the pipeline was built without a backend.
	ErrNoBackend = errors.New("conversation: no backend")
)

// Stage names a pipeline step.
type Stage string

const (
	StageTranscribe Stage = "transcribe"
	StageChat       Stage = "chat"
)

// AbortError is the reason a turn was aborted.
type AbortError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface.
func (e *AbortError) Error() string {
	return fmt.Sprintf("conversation: %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *AbortError) Unwrap() error {
	return e.Err
}

// IsSilent reports whether an abort should return to idle without a
// user-visible notice. A Busy rejection means another turn owns the
// pipeline, so there is nothing to tell the user.
func IsSilent(err error) bool {
	return errors.Is(err, ErrEmptyTranscript) || errors.Is(err, ErrBusy)
}

// IsBusy reports whether err is a Busy rejection.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

// StageOf returns the stage that aborted, or "" if err is not an abort.
func StageOf(err error) Stage {
	var ae *AbortError
	if errors.As(err, &ae) {
		return ae.Stage
	}
	return ""
}
