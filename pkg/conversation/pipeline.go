// Package conversation runs one conversational turn against the backend:
// captured audio is transcribed, the transcript is sent to the dialogue
// service, and the reply comes back with an emotion.
//
// The Pipeline performs no retries and allows one submission at a time.
// A second submission while one is in flight is rejected with ErrBusy.
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-voicebot/pkg/capture"
)

// Reply is the dialogue service's answer.
type Reply struct {
	Text string
	// Emotion is the raw emotion string, normalized later.
	Emotion string
}

// Backend is the speech-to-text and dialogue service.
type Backend interface {
	Transcribe(ctx context.Context, audio capture.AudioHandle) (string, error)
	Chat(ctx context.Context, text string) (Reply, error)
}

// Outcome is the single result of a turn. Err is nil for TurnCompleted and
// an *AbortError for TurnAborted.
type Outcome struct {
	TurnID     string
	Transcript string
	Reply      Reply
	Err        error

	Started     time.Time
	Transcribed time.Time
	Replied     time.Time
}

// Completed reports whether the turn produced a reply.
func (o Outcome) Completed() bool { return o.Err == nil }

// TranscribeLatency is the time spent in speech-to-text.
func (o Outcome) TranscribeLatency() time.Duration {
	if o.Transcribed.IsZero() {
		return 0
	}
	return o.Transcribed.Sub(o.Started)
}

// ChatLatency is the time spent waiting for the reply.
func (o Outcome) ChatLatency() time.Duration {
	if o.Replied.IsZero() || o.Transcribed.IsZero() {
		return 0
	}
	return o.Replied.Sub(o.Transcribed)
}

// Pipeline sequences the two backend calls.
type Pipeline struct {
	backend Backend
	busy    atomic.Bool
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithNow overrides the time source used for latencies.
func WithNow(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline over backend.
func NewPipeline(backend Backend, opts ...Option) *Pipeline {
	p := &Pipeline{
		backend: backend,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "conversation.pipeline")
	return p
}

// Busy reports whether a submission is in flight.
func (p *Pipeline) Busy() bool { return p.busy.Load() }

// SubmitAudio transcribes audio. Empty transcripts are ErrEmptyTranscript.
func (p *Pipeline) SubmitAudio(ctx context.Context, audio capture.AudioHandle) (string, error) {
	if !p.acquire() {
		return "", ErrBusy
	}
	defer p.release()
	return p.transcribe(ctx, audio)
}

// SubmitText sends text to the dialogue service.
func (p *Pipeline) SubmitText(ctx context.Context, text string) (Reply, error) {
	if !p.acquire() {
		return Reply{}, ErrBusy
	}
	defer p.release()
	return p.chat(ctx, text)
}

// RunTurn runs both stages under one Busy guard. A failed transcription
// short-circuits the turn; chat is never called.
func (p *Pipeline) RunTurn(ctx context.Context, turnID string, audio capture.AudioHandle) Outcome {
	out := Outcome{TurnID: turnID, Started: p.now()}
	if !p.acquire() {
		out.Err = &AbortError{Stage: StageTranscribe, Err: ErrBusy}
		return out
	}
	defer p.release()

	logger := p.logger.With("turn_id", turnID)

	transcript, err := p.transcribe(ctx, audio)
	if err != nil {
		out.Err = &AbortError{Stage: StageTranscribe, Err: err}
		logger.Info("turn aborted", "stage", StageTranscribe, "error", err)
		return out
	}
	out.Transcript = transcript
	out.Transcribed = p.now()

	reply, err := p.chat(ctx, transcript)
	if err != nil {
		out.Err = &AbortError{Stage: StageChat, Err: err}
		logger.Info("turn aborted", "stage", StageChat, "error", err)
		return out
	}
	out.Reply = reply
	out.Replied = p.now()

	logger.Info("turn completed",
		"transcript_chars", len([]rune(transcript)),
		"reply_chars", len([]rune(reply.Text)),
		"emotion", reply.Emotion,
		"stt_ms", out.TranscribeLatency().Milliseconds(),
		"chat_ms", out.ChatLatency().Milliseconds(),
	)
	return out
}

func (p *Pipeline) acquire() bool {
	return p.busy.CompareAndSwap(false, true)
}

func (p *Pipeline) release() {
	p.busy.Store(false)
}

func (p *Pipeline) transcribe(ctx context.Context, audio capture.AudioHandle) (string, error) {
	if p.backend == nil {
		return "", ErrNoBackend
	}
	text, err := p.backend.Transcribe(ctx, audio)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

func (p *Pipeline) chat(ctx context.Context, text string) (Reply, error) {
	if p.backend == nil {
		return Reply{}, ErrNoBackend
	}
	return p.backend.Chat(ctx, text)
}
