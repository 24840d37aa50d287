package session

import (
	"context"
	"time"

	"github.com/teslashibe/go-voicebot/pkg/capture"
	"github.com/teslashibe/go-voicebot/pkg/conversation"
	"github.com/teslashibe/go-voicebot/pkg/emotion"
)

// Display renders the session for people near the robot.
type Display interface {
	// ShowState is called on every state change with the text to show.
	ShowState(state State, prompt string)
	// ShowNotice shows a short-lived message, usually after a failed turn.
	ShowNotice(notice string)
}

// Face is the robot's face. Implementations may treat any call as a no-op.
type Face interface {
	Show(ctx context.Context) error
	MouthOn(ctx context.Context) error
	MouthOff(ctx context.Context) error
}

// TurnRunner runs one conversational turn. *conversation.Pipeline
// satisfies it.
type TurnRunner interface {
	RunTurn(ctx context.Context, turnID string, audio capture.AudioHandle) conversation.Outcome
}

// Gestures plays an expressive action for a reply. *emotion.Resolver
// satisfies it.
type Gestures interface {
	Resolve(ctx context.Context, raw string) (emotion.ActionID, bool)
	Stop(ctx context.Context) error
}

// TurnRecord describes a finished turn.
type TurnRecord struct {
	TurnID     string             `json:"turn_id"`
	Transcript string             `json:"transcript,omitempty"`
	Reply      string             `json:"reply,omitempty"`
	RawEmotion string             `json:"raw_emotion,omitempty"`
	Emotion    emotion.Label      `json:"emotion,omitempty"`
	Action     emotion.ActionID   `json:"action,omitempty"`
	Stage      conversation.Stage `json:"stage,omitempty"`
	Error      string             `json:"error,omitempty"`

	StartedAt         time.Time     `json:"started_at"`
	TranscribeLatency time.Duration `json:"transcribe_latency"`
	ChatLatency       time.Duration `json:"chat_latency"`
}

// Completed reports whether the turn produced a reply.
func (r TurnRecord) Completed() bool { return r.Error == "" }

// TurnSink receives turn records. Calls are made from the event loop and
// must not block.
type TurnSink interface {
	RecordTurn(rec TurnRecord)
}

// Status is a snapshot of the controller.
type Status struct {
	State      State     `json:"state"`
	TurnID     string    `json:"turn_id,omitempty"`
	Turns      int       `json:"turns"`
	TotalTurns int       `json:"total_turns"`
	Since      time.Time `json:"since"`
}

type nopDisplay struct{}

func (nopDisplay) ShowState(State, string) {}
func (nopDisplay) ShowNotice(string)       {}

type nopFace struct{}

func (nopFace) Show(context.Context) error     { return nil }
func (nopFace) MouthOn(context.Context) error  { return nil }
func (nopFace) MouthOff(context.Context) error { return nil }

type nopGestures struct{}

func (nopGestures) Resolve(context.Context, string) (emotion.ActionID, bool) { return "", false }
func (nopGestures) Stop(context.Context) error                              { return nil }

// multiDisplay fans out to several displays.
type multiDisplay []Display

func (m multiDisplay) ShowState(state State, prompt string) {
	for _, d := range m {
		d.ShowState(state, prompt)
	}
}

func (m multiDisplay) ShowNotice(notice string) {
	for _, d := range m {
		d.ShowNotice(notice)
	}
}

// Displays combines displays into one. Nil entries are skipped.
func Displays(ds ...Display) Display {
	var m multiDisplay
	for _, d := range ds {
		if d != nil {
			m = append(m, d)
		}
	}
	if len(m) == 1 {
		return m[0]
	}
	return m
}

// TurnSinks combines sinks into one. Nil entries are skipped.
func TurnSinks(ss ...TurnSink) TurnSink {
	var out turnSinks
	for _, s := range ss {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type turnSinks []TurnSink

func (t turnSinks) RecordTurn(rec TurnRecord) {
	for _, s := range t {
		s.RecordTurn(rec)
	}
}
