package journal

import (
	"context"
	"sync"
)

// Memory keeps the most recent entries in a ring.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
	closed  bool
}

// NewMemory keeps up to limit entries. A limit below 1 means 100.
func NewMemory(limit int) *Memory {
	if limit < 1 {
		limit = 100
	}
	return &Memory{limit: limit}
}

// Record appends e, dropping the oldest entry when full.
func (m *Memory) Record(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if len(m.entries) == m.limit {
		copy(m.entries, m.entries[1:])
		m.entries = m.entries[:len(m.entries)-1]
	}
	m.entries = append(m.entries, e)
	return nil
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (m *Memory) Recent(ctx context.Context, n int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.entries) {
		n = len(m.entries)
	}
	out := make([]Entry, 0, n)
	for i := len(m.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close stops accepting entries. Stored entries stay readable.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

var (
	_ Journal = (*Memory)(nil)
	_ Reader  = (*Memory)(nil)
)
