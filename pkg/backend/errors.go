package backend

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNetwork wraps transport failures: refused connections, resets,
	// timeouts.
	ErrNetwork = errors.New("backend: network failure")

	// ErrNoBaseURL is returned when the client has no base address.
	ErrNoBaseURL = errors.New("backend: base URL required")

	// ErrBadResponse is returned when a success response cannot be decoded.
	ErrBadResponse = errors.New("backend: malformed response")
)

// ServerError is a non-success HTTP status from the backend.
type ServerError struct {
	// Endpoint is the path that failed.
	Endpoint string

	// StatusCode is the HTTP status code.
	StatusCode int

	// Body is the start of the response body.
	Body string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("backend: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("backend: %s returned %d", e.Endpoint, e.StatusCode)
}

// IsServerSide reports a 5xx status.
func (e *ServerError) IsServerSide() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsUnauthorized reports a 401 or 403.
func (e *ServerError) IsUnauthorized() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	return errors.Is(err, ErrNetwork)
}

// IsServer reports whether err is a non-success status.
func IsServer(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}
