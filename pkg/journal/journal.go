// Package journal keeps a record of conversation turns.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-voicebot/pkg/session"
)

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("journal: closed")

// Entry is one journaled turn.
type Entry struct {
	ID   string             `json:"id"`
	Time time.Time          `json:"time"`
	Turn session.TurnRecord `json:"turn"`
}

// NewEntry wraps a turn record with a fresh id.
func NewEntry(rec session.TurnRecord, now time.Time) Entry {
	return Entry{ID: uuid.NewString(), Time: now.UTC(), Turn: rec}
}

// Journal stores entries.
type Journal interface {
	Record(ctx context.Context, e Entry) error
	Close() error
}

// Reader lists recent entries, newest first.
type Reader interface {
	Recent(ctx context.Context, n int) ([]Entry, error)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
func (Nop) Close() error                        { return nil }

var _ Journal = Nop{}
