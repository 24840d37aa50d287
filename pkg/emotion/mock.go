package emotion

import (
	"context"
	"errors"
	"sync"
)

// MockMotion implements Motion for testing. Actions listed in Missing fail.
type MockMotion struct {
	Missing map[ActionID]bool

	mu     sync.Mutex
	played []ActionID
	stops  int
}

// NewMockMotion creates a motion surface where the given actions fail.
func NewMockMotion(missing ...ActionID) *MockMotion {
	m := &MockMotion{Missing: make(map[ActionID]bool)}
	for _, id := range missing {
		m.Missing[id] = true
	}
	return m
}

// Play records the attempt and fails for missing actions.
func (m *MockMotion) Play(ctx context.Context, id ActionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.played = append(m.played, id)
	if m.Missing[id] {
		return errors.New("motion not installed")
	}
	return nil
}

// Stop records the call.
func (m *MockMotion) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.stops++
	m.mu.Unlock()
	return nil
}

// Attempts returns every Play call in order.
func (m *MockMotion) Attempts() []ActionID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ActionID(nil), m.played...)
}

// StopCount returns the number of Stop calls.
func (m *MockMotion) StopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// Reset clears recorded calls.
func (m *MockMotion) Reset() {
	m.mu.Lock()
	m.played = nil
	m.stops = 0
	m.mu.Unlock()
}

var _ Motion = (*MockMotion)(nil)
