package speech

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotReady is returned when a provider reports it cannot speak yet.
	ErrNotReady = errors.New("speech: provider not ready")

	// ErrAllProvidersExhausted is reported when every provider failed.
	ErrAllProvidersExhausted = errors.New("speech: all providers exhausted")

	// ErrNoProviders is returned when Speak is given an empty provider list.
	ErrNoProviders = errors.New("speech: no providers")
)

// ProviderError wraps an error with provider and attempt context.
type ProviderError struct {
	Provider string
	Attempt  int
	Err      error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("speech [%s] attempt %d: %v", e.Provider, e.Attempt, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ExhaustedError is the Failed event error. It lists the last error of
// each provider.
type ExhaustedError struct {
	Errors []error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%v: %v", ErrAllProvidersExhausted, errors.Join(e.Errors...))
}

// Is matches ErrAllProvidersExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrAllProvidersExhausted
}

// Unwrap exposes the per-provider errors.
func (e *ExhaustedError) Unwrap() []error {
	return e.Errors
}

// IsNotReady reports whether err is a not-ready condition.
func IsNotReady(err error) bool {
	return errors.Is(err, ErrNotReady)
}
