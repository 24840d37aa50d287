package speech

import (
	"context"
	"sync"
)

// Mock implements Provider for testing.
// All methods can be customized via function fields.
type Mock struct {
	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// ReadyFunc is called when Ready is invoked. If nil, returns true.
	ReadyFunc func(ctx context.Context) bool

	// SpeakFunc is called when Speak is invoked. If nil, returns nil.
	SpeakFunc func(ctx context.Context, text, locale string) error

	// Completion is returned by SignalsCompletion.
	Completion bool

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Text   string
	Locale string
}

// NewMock creates a ready mock that signals completion.
func NewMock(name string) *Mock {
	return &Mock{ProviderName: name, Completion: true}
}

// NeverReady returns a mock whose Ready always reports false.
func NeverReady(name string) *Mock {
	m := NewMock(name)
	m.ReadyFunc = func(context.Context) bool { return false }
	return m
}

// Name returns ProviderName.
func (m *Mock) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// Ready calls ReadyFunc and records the call.
func (m *Mock) Ready(ctx context.Context) bool {
	m.record(MockCall{Method: "Ready"})
	if m.ReadyFunc != nil {
		return m.ReadyFunc(ctx)
	}
	return true
}

// Speak calls SpeakFunc and records the call.
func (m *Mock) Speak(ctx context.Context, text, locale string) error {
	m.record(MockCall{Method: "Speak", Text: text, Locale: locale})
	if m.SpeakFunc != nil {
		return m.SpeakFunc(ctx, text, locale)
	}
	return nil
}

// SignalsCompletion returns Completion.
func (m *Mock) SignalsCompletion() bool { return m.Completion }

// Stop records the call.
func (m *Mock) Stop(ctx context.Context) error {
	m.record(MockCall{Method: "Stop"})
	return nil
}

func (m *Mock) record(c MockCall) {
	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of calls to method.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	m.calls = nil
	m.mu.Unlock()
}

var (
	_ Provider = (*Mock)(nil)
	_ Stopper  = (*Mock)(nil)
)
