package session

import (
	"sync"
	"time"

	"github.com/teslashibe/go-voicebot/internal/clock"
	"github.com/teslashibe/go-voicebot/pkg/conversation"
	"github.com/teslashibe/go-voicebot/pkg/speech"
)

// Events handled by the loop.
type (
	startEvent    struct{}
	tapEvent      struct{}
	completeEvent struct{}
	serviceEvent  struct{ ready bool }
	shutdownEvent struct{}
	turnDoneEvent struct{ out conversation.Outcome }
	speechEvent   struct{ ev speech.Event }
	callbackEvent struct{ fn func() }

	sampleEvent struct {
		epoch uint64
		at    time.Time
	}
	idleEvent struct{ epoch uint64 }
)

// queue is an unbounded FIFO. Producers never block.
type queue struct {
	mu     sync.Mutex
	items  []any
	signal chan struct{}
	closed bool
}

func newQueue() *queue {
	return &queue{signal: make(chan struct{}, 1)}
}

func (q *queue) push(ev any) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

func (q *queue) pop() (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	ev := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return ev, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.items = nil
	q.mu.Unlock()
}

// loopClock delivers timer callbacks through the queue so they run on the
// event loop.
type loopClock struct {
	base clock.Clock
	q    *queue
}

func (l loopClock) Now() time.Time { return l.base.Now() }

func (l loopClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	return l.base.AfterFunc(d, func() { l.q.push(callbackEvent{fn: f}) })
}

// serial runs calls one at a time in submission order through run, which
// may execute them on another goroutine. Calls to one robot surface must
// not overtake each other: a stop issued before a speak has to land first.
type serial struct {
	run func(func())

	mu      sync.Mutex
	pending []func()
	busy    bool
}

func (s *serial) do(f func()) {
	s.mu.Lock()
	s.pending = append(s.pending, f)
	if s.busy {
		s.mu.Unlock()
		return
	}
	s.busy = true
	s.mu.Unlock()
	s.run(s.drain)
}

func (s *serial) drain() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.busy = false
			s.mu.Unlock()
			return
		}
		f := s.pending[0]
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.mu.Unlock()
		f()
	}
}
