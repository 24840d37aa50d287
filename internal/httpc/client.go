// Package httpc provides HTTP clients with explicit timeouts.
// Use this instead of http.DefaultClient so no request can hang forever.
package httpc

import (
	"errors"
	"net"
	"net/http"
	"time"
)

// Default timeouts for backend calls. Server-side speech processing is
// slow, so read and write are generous.
const (
	DefaultConnectTimeout  = 60 * time.Second
	DefaultReadTimeout     = 120 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
)

// Timeouts bounds the phases of a request.
type Timeouts struct {
	Connect time.Duration `yaml:"connect"`
	Read    time.Duration `yaml:"read"`
	Write   time.Duration `yaml:"write"`
}

// DefaultTimeouts returns 60s connect and 120s read/write.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect: DefaultConnectTimeout,
		Read:    DefaultReadTimeout,
		Write:   DefaultWriteTimeout,
	}
}

// Total is the overall per-request bound used as http.Client.Timeout.
func (t Timeouts) Total() time.Duration {
	return t.Connect + t.Read + t.Write
}

// NewTransport returns a transport whose dial and response-header waits
// follow t.
func NewTransport(t Timeouts) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   t.Connect,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: t.Write + t.Read,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// NewClient creates a client with the given overall timeout and default
// connect behaviour.
func NewClient(timeout time.Duration) *http.Client {
	t := DefaultTimeouts()
	t.Read = timeout
	return &http.Client{
		Timeout:   timeout,
		Transport: &ReconnectTransport{Base: NewTransport(t)},
	}
}

// NewClientWithTimeouts creates a client whose transport reconnects once
// when the connection could not be established. A non-nil wrap receives the
// reconnecting transport and returns the outermost round tripper, for
// example an oauth2.Transport.
func NewClientWithTimeouts(t Timeouts, wrap func(http.RoundTripper) http.RoundTripper) *http.Client {
	var rt http.RoundTripper = &ReconnectTransport{Base: NewTransport(t)}
	if wrap != nil {
		rt = wrap(rt)
	}
	return &http.Client{
		Timeout:   t.Total(),
		Transport: rt,
	}
}

// ReconnectTransport re-issues a request when the underlying connection
// failed to open. It never retries once a request reached the server.
type ReconnectTransport struct {
	Base http.RoundTripper
	// Retries is the number of reconnect attempts. Zero means one.
	Retries int
}

// RoundTrip implements http.RoundTripper.
func (t *ReconnectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	retries := t.Retries
	if retries <= 0 {
		retries = 1
	}

	resp, err := base.RoundTrip(req)
	for attempt := 0; err != nil && attempt < retries && IsConnectError(err); attempt++ {
		if req.Context().Err() != nil {
			break
		}
		next, cerr := rewind(req)
		if cerr != nil {
			break
		}
		resp, err = base.RoundTrip(next)
	}
	return resp, err
}

func rewind(req *http.Request) (*http.Request, error) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, nil
	}
	if req.GetBody == nil {
		return nil, errors.New("httpc: request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	next.Body = body
	return next, nil
}

// IsConnectError reports whether err happened while dialing.
func IsConnectError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
