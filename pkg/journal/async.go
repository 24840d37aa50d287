package journal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-voicebot/pkg/session"
)

// Async writes entries on a background goroutine so callers never block.
// When the buffer is full new entries are dropped.
type Async struct {
	next    Journal
	ch      chan Entry
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	dropped atomic.Int64
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
}

// AsyncOption configures an Async journal.
type AsyncOption func(*Async)

// WithBuffer sets the queue length.
func WithBuffer(n int) AsyncOption {
	return func(a *Async) {
		if n > 0 {
			a.ch = make(chan Entry, n)
		}
	}
}

// WithWriteTimeout bounds each write to the underlying journal.
func WithWriteTimeout(d time.Duration) AsyncOption {
	return func(a *Async) { a.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) AsyncOption {
	return func(a *Async) { a.logger = logger }
}

// WithNow sets the time source for entries.
func WithNow(now func() time.Time) AsyncOption {
	return func(a *Async) { a.now = now }
}

// NewAsync starts the background writer.
func NewAsync(next Journal, opts ...AsyncOption) *Async {
	a := &Async{
		next:    next,
		ch:      make(chan Entry, 64),
		timeout: 2 * time.Second,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	a.logger = a.logger.With("component", "journal.async")
	go a.run()
	return a
}

// Record queues e without blocking.
func (a *Async) Record(ctx context.Context, e Entry) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.ch <- e:
	default:
		n := a.dropped.Add(1)
		a.logger.Warn("journal full, entry dropped", "entry_id", e.ID, "dropped", n)
	}
	return nil
}

// RecordTurn implements session.TurnSink.
func (a *Async) RecordTurn(rec session.TurnRecord) {
	_ = a.Record(context.Background(), NewEntry(rec, a.now()))
}

// Dropped returns the number of entries lost to a full buffer.
func (a *Async) Dropped() int64 { return a.dropped.Load() }

// Close flushes queued entries and closes the underlying journal.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return nil
	}
	a.closed = true
	close(a.ch)
	a.mu.Unlock()

	<-a.done
	return a.next.Close()
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.ch {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := a.next.Record(ctx, e); err != nil {
			a.logger.Warn("journal write failed", "entry_id", e.ID, "turn_id", e.Turn.TurnID, "error", err)
		}
		cancel()
	}
}

var (
	_ Journal          = (*Async)(nil)
	_ session.TurnSink = (*Async)(nil)
)
