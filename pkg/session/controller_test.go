package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-voicebot/internal/clock"
	"github.com/teslashibe/go-voicebot/internal/log"
	"github.com/teslashibe/go-voicebot/pkg/capture"
	"github.com/teslashibe/go-voicebot/pkg/conversation"
	"github.com/teslashibe/go-voicebot/pkg/emotion"
	"github.com/teslashibe/go-voicebot/pkg/endpoint"
	"github.com/teslashibe/go-voicebot/pkg/speech"
)

const tick = 100 * time.Millisecond

type recordingDisplay struct {
	mu      sync.Mutex
	states  []State
	prompts []string
	notices []string
}

func (d *recordingDisplay) ShowState(s State, prompt string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states = append(d.states, s)
	d.prompts = append(d.prompts, prompt)
}

func (d *recordingDisplay) ShowNotice(n string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notices = append(d.notices, n)
}

func (d *recordingDisplay) lastPrompt() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.prompts) == 0 {
		return ""
	}
	return d.prompts[len(d.prompts)-1]
}

func (d *recordingDisplay) noticeList() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.notices...)
}

type recordingSink struct {
	mu   sync.Mutex
	recs []TurnRecord
}

func (s *recordingSink) RecordTurn(r TurnRecord) {
	s.mu.Lock()
	s.recs = append(s.recs, r)
	s.mu.Unlock()
}

func (s *recordingSink) records() []TurnRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TurnRecord(nil), s.recs...)
}

type trackedProvider struct {
	*speech.Mock
	ready  atomic.Bool
	closed atomic.Bool
}

func (p *trackedProvider) SetServiceReady(ready bool) { p.ready.Store(ready) }

func (p *trackedProvider) Close() error {
	p.closed.Store(true)
	return nil
}

type harness struct {
	t        *testing.T
	clk      *clock.Fake
	dev      *capture.MockDevice
	backend  *conversation.MockBackend
	motion   *emotion.MockMotion
	primary  *speech.Mock
	fallback *speech.Mock
	display  *recordingDisplay
	turns    *recordingSink
	c        *Controller
}

func newHarness(t *testing.T, mutate func(*Config, *Deps)) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		clk:      clock.NewFake(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)),
		dev:      capture.NewMockDevice(),
		backend:  &conversation.MockBackend{},
		motion:   emotion.NewMockMotion(),
		primary:  speech.NewMock("robot"),
		fallback: speech.NewMock("device"),
		display:  &recordingDisplay{},
		turns:    &recordingSink{},
	}

	cfg := DefaultConfig()
	cfg.AudioDir = t.TempDir()
	cfg.Logger = log.Discard()
	cfg.VAD = endpoint.Config{
		AmplitudeThreshold: 1000,
		MinSustainedStart:  300 * time.Millisecond,
		SilenceEnd:         500 * time.Millisecond,
		ListenTimeout:      5 * time.Second,
		SampleInterval:     tick,
	}

	n := 0
	deps := Deps{
		Clock:     h.clk,
		Device:    h.dev,
		Runner:    conversation.NewPipeline(h.backend, conversation.WithLogger(log.Discard())),
		Gestures:  emotion.NewResolver(emotion.DefaultBinding(), h.motion, emotion.WithLogger(log.Discard())),
		Providers: []speech.Provider{h.primary, h.fallback},
		Display:   h.display,
		Turns:     h.turns,
		Go:        func(f func()) { f() },
		Calls:     func(f func()) { f() },
		NewID: func() string {
			n++
			return fmt.Sprintf("turn-%d", n)
		},
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}

	c, err := NewController(cfg, deps)
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	h.c = c
	return h
}

func (h *harness) start() {
	h.t.Helper()
	h.c.Start()
	h.c.Drain()
	h.primary.Reset()
	h.fallback.Reset()
}

func (h *harness) step(n int) {
	for i := 0; i < n; i++ {
		h.clk.Advance(tick)
		h.c.Drain()
	}
}

func (h *harness) stepUntil(want State, max int) {
	h.t.Helper()
	for i := 0; i < max && h.c.State() != want; i++ {
		h.step(1)
	}
	if got := h.c.State(); got != want {
		h.t.Fatalf("state = %v, want %v", got, want)
	}
}

func (h *harness) tap() {
	h.c.Tap()
	h.c.Drain()
}

// utter makes loud noise until speech is confirmed, then goes quiet until
// the listener leaves Listening.
func (h *harness) utter() {
	h.t.Helper()
	h.dev.SetLevel(3000)
	h.step(5)
	h.dev.SetLevel(0)
	for i := 0; i < 20 && h.c.State() == Listening; i++ {
		h.step(1)
	}
	if h.c.State() == Listening {
		h.t.Fatal("still listening after silence")
	}
}

func TestNewControllerRequiresDeps(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name string
		deps Deps
	}{
		{"no device", Deps{Runner: &conversation.Pipeline{}, Providers: []speech.Provider{speech.NewMock("a")}}},
		{"no runner", Deps{Device: capture.NewMockDevice(), Providers: []speech.Provider{speech.NewMock("a")}}},
		{"no providers", Deps{Device: capture.NewMockDevice(), Runner: &conversation.Pipeline{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewController(cfg, tt.deps); err == nil {
				t.Error("NewController() should fail")
			}
		})
	}
}

func TestStartAnnouncesPrompt(t *testing.T) {
	h := newHarness(t, nil)
	h.c.Start()
	h.c.Drain()

	if h.c.State() != IdlePrompt {
		t.Errorf("state = %v, want IdlePrompt", h.c.State())
	}
	calls := h.primary.Calls()
	if h.primary.CallCount("Speak") != 1 || calls[len(calls)-1].Text != DefaultPrompts().IdleSpeech {
		t.Errorf("primary calls = %+v, want idle prompt spoken", calls)
	}
	if h.display.lastPrompt() != DefaultPrompts().Idle {
		t.Errorf("display prompt = %q", h.display.lastPrompt())
	}
}

func TestIdlePromptRepeats(t *testing.T) {
	h := newHarness(t, nil)
	h.start()

	h.clk.Advance(29 * time.Second)
	h.c.Drain()
	if n := h.primary.CallCount("Speak"); n != 0 {
		t.Fatalf("Speak calls before interval = %d", n)
	}

	h.clk.Advance(time.Second)
	h.c.Drain()
	if n := h.primary.CallCount("Speak"); n != 1 {
		t.Fatalf("Speak calls after 30s = %d, want 1", n)
	}

	h.clk.Advance(30 * time.Second)
	h.c.Drain()
	if n := h.primary.CallCount("Speak"); n != 2 {
		t.Errorf("Speak calls after 60s = %d, want 2", n)
	}
	if h.c.State() != IdlePrompt {
		t.Errorf("state = %v", h.c.State())
	}
}

func TestFullTurn(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.ChatFunc = func(ctx context.Context, text string) (conversation.Reply, error) {
		return conversation.Reply{Text: "今天很開心", Emotion: "Happy"}, nil
	}
	h.start()

	h.tap()
	if h.c.State() != Listening {
		t.Fatalf("state after tap = %v, want Listening", h.c.State())
	}
	if h.primary.CallCount("Stop") != 1 {
		t.Errorf("tap should cancel the idle prompt")
	}
	if !h.dev.Recording() {
		t.Fatal("recorder not started")
	}

	h.utter()
	if h.c.State() != Speaking {
		t.Fatalf("state after utterance = %v, want Speaking", h.c.State())
	}
	if h.dev.Recording() {
		t.Error("recorder still running while speaking")
	}
	if got := h.motion.Attempts(); len(got) != 1 || got[0] != "666_PE_PlayGuitar" {
		t.Errorf("motion attempts = %v", got)
	}
	calls := h.primary.Calls()
	if last := calls[len(calls)-1]; last.Method != "Speak" || last.Text != "今天很開心" {
		t.Errorf("last primary call = %+v", last)
	}
	if h.display.lastPrompt() != "今天很開心" {
		t.Errorf("display = %q", h.display.lastPrompt())
	}

	h.c.SpeechComplete()
	h.c.Drain()
	if h.c.State() != Listening {
		t.Fatalf("state after speech = %v, want Listening", h.c.State())
	}
	if h.dev.Starts() != 2 {
		t.Errorf("recordings started = %d, want 2", h.dev.Starts())
	}
	if h.motion.StopCount() == 0 {
		t.Error("motion not stopped after speaking")
	}

	recs := h.turns.records()
	if len(recs) != 1 {
		t.Fatalf("turn records = %d, want 1", len(recs))
	}
	r := recs[0]
	if r.TurnID != "turn-1" || r.Transcript != "hello" || r.Emotion != emotion.Happy || r.Action != "666_PE_PlayGuitar" || !r.Completed() {
		t.Errorf("record = %+v", r)
	}
	st := h.c.Status()
	if st.Turns != 1 || st.TotalTurns != 1 || st.TurnID != "turn-2" {
		t.Errorf("status = %+v", st)
	}
}

func TestListenTimeout(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	h.tap()

	h.step(49)
	if h.c.State() != Listening {
		t.Fatalf("state before timeout = %v", h.c.State())
	}
	h.step(1)
	if h.c.State() != IdlePrompt {
		t.Fatalf("state after timeout = %v, want IdlePrompt", h.c.State())
	}
	if h.dev.Recording() {
		t.Error("recorder not stopped")
	}
	if h.backend.TranscribeCount() != 0 {
		t.Error("timeout should not upload")
	}
	if len(h.display.noticeList()) != 0 {
		t.Errorf("notices = %v", h.display.noticeList())
	}
}

func TestAbortedTurns(t *testing.T) {
	tests := []struct {
		name       string
		transcribe func(context.Context, capture.AudioHandle) (string, error)
		chat       func(context.Context, string) (conversation.Reply, error)
		wantNotice bool
		wantStage  conversation.Stage
		wantChats  int
	}{
		{
			name:       "empty transcript",
			transcribe: func(context.Context, capture.AudioHandle) (string, error) { return "  ", nil },
			wantStage:  conversation.StageTranscribe,
		},
		{
			name:       "transcribe error",
			transcribe: func(context.Context, capture.AudioHandle) (string, error) { return "", errors.New("down") },
			wantNotice: true,
			wantStage:  conversation.StageTranscribe,
		},
		{
			name:       "chat error",
			chat:       func(context.Context, string) (conversation.Reply, error) { return conversation.Reply{}, errors.New("500") },
			wantNotice: true,
			wantStage:  conversation.StageChat,
			wantChats:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.backend.TranscribeFunc = tt.transcribe
			h.backend.ChatFunc = tt.chat
			h.start()
			h.tap()
			h.utter()

			if h.c.State() != IdlePrompt {
				t.Fatalf("state = %v, want IdlePrompt", h.c.State())
			}
			if n := len(h.backend.ChatTexts()); n != tt.wantChats {
				t.Errorf("chat calls = %d, want %d", n, tt.wantChats)
			}
			if n := h.primary.CallCount("Speak") + h.fallback.CallCount("Speak"); n != 0 {
				t.Errorf("speak calls = %d, want 0", n)
			}
			if n := len(h.motion.Attempts()); n != 0 {
				t.Errorf("motion attempts = %d, want 0", n)
			}
			notices := h.display.noticeList()
			if tt.wantNotice && (len(notices) != 1 || notices[0] != DefaultPrompts().NetworkError) {
				t.Errorf("notices = %v, want network error", notices)
			}
			if !tt.wantNotice && len(notices) != 0 {
				t.Errorf("notices = %v, want none", notices)
			}
			recs := h.turns.records()
			if len(recs) != 1 || recs[0].Stage != tt.wantStage || recs[0].Completed() {
				t.Errorf("records = %+v", recs)
			}
		})
	}
}

func TestSpeechFailureReturnsToIdle(t *testing.T) {
	h := newHarness(t, nil)
	h.primary.ReadyFunc = func(context.Context) bool { return false }
	h.fallback.SpeakFunc = func(context.Context, string, string) error { return errors.New("no engine") }
	h.start()
	h.tap()
	h.utter()

	if h.c.State() != Speaking {
		t.Fatalf("state = %v, want Speaking while retrying", h.c.State())
	}
	h.stepUntil(IdlePrompt, 30)

	if n := h.primary.CallCount("Ready"); n != 4 {
		t.Errorf("primary attempts = %d, want 4", n)
	}
	if n := h.fallback.CallCount("Speak"); n != 1 {
		t.Errorf("fallback attempts = %d, want 1", n)
	}
	if len(h.motion.Attempts()) != 1 {
		t.Error("gesture should be played before speaking")
	}
	if h.motion.StopCount() == 0 {
		t.Error("gesture not stopped")
	}
	notices := h.display.noticeList()
	if len(notices) != 1 || notices[0] != DefaultPrompts().SpeechError {
		t.Errorf("notices = %v", notices)
	}
}

func TestFallbackWithoutCompletionSignal(t *testing.T) {
	h := newHarness(t, nil)
	h.primary.ReadyFunc = func(context.Context) bool { return false }
	h.fallback.Completion = false
	h.start()
	h.tap()
	h.utter()

	// 1.5s of retries, then the synthesized finish of at least 800ms.
	h.stepUntil(Listening, 40)
	if n := h.fallback.CallCount("Speak"); n != 1 {
		t.Errorf("fallback Speak calls = %d", n)
	}
	if h.dev.Starts() != 2 {
		t.Errorf("recordings = %d, want 2", h.dev.Starts())
	}
}

func TestMaxTurns(t *testing.T) {
	h := newHarness(t, func(c *Config, _ *Deps) { c.MaxTurns = 1 })
	h.start()
	h.tap()
	h.utter()
	h.c.SpeechComplete()
	h.c.Drain()

	if h.c.State() != IdlePrompt {
		t.Fatalf("state = %v, want IdlePrompt after turn limit", h.c.State())
	}
	if h.dev.Starts() != 1 {
		t.Errorf("recordings = %d, want 1", h.dev.Starts())
	}
	if st := h.c.Status(); st.Turns != 0 || st.TotalTurns != 1 {
		t.Errorf("status = %+v", st)
	}
}

func TestTapIgnoredOutsideIdle(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	h.tap()
	h.tap()
	if h.dev.Starts() != 1 {
		t.Errorf("recordings = %d, want 1", h.dev.Starts())
	}

	h.utter()
	h.tap()
	if h.c.State() != Speaking {
		t.Errorf("tap while speaking changed state to %v", h.c.State())
	}
}

func TestStaleOutcomeDiscarded(t *testing.T) {
	var pending []func()
	h := newHarness(t, func(_ *Config, d *Deps) {
		d.Go = func(f func()) { pending = append(pending, f) }
	})
	h.start()
	h.tap()
	h.utter()
	if h.c.State() != Uploading {
		t.Fatalf("state = %v, want Uploading", h.c.State())
	}

	h.c.q.push(turnDoneEvent{out: conversation.Outcome{
		TurnID: "turn-0",
		Reply:  conversation.Reply{Text: "old", Emotion: "sad"},
	}})
	h.c.Drain()
	if h.c.State() != Uploading {
		t.Fatalf("stale outcome moved state to %v", h.c.State())
	}
	if h.primary.CallCount("Speak") != 0 || len(h.motion.Attempts()) != 0 {
		t.Fatal("stale outcome produced output")
	}

	if len(pending) != 1 {
		t.Fatalf("pending work = %d", len(pending))
	}
	pending[0]()
	h.c.Drain()
	if h.c.State() != Speaking {
		t.Errorf("state = %v, want Speaking", h.c.State())
	}
}

func TestFinishedForOtherUtteranceIgnored(t *testing.T) {
	h := newHarness(t, nil)
	h.start()
	h.tap()
	h.utter()

	h.c.q.push(speechEvent{ev: speech.Event{Kind: speech.Finished, Utterance: 999}})
	h.c.Drain()
	if h.c.State() != Speaking {
		t.Errorf("state = %v, want Speaking", h.c.State())
	}

	// A completion signal before anything is spoken does nothing.
	h2 := newHarness(t, nil)
	h2.c.SpeechComplete()
	h2.c.Drain()
	if h2.c.State() != IdlePrompt {
		t.Errorf("state = %v", h2.c.State())
	}
}

func TestServiceStateForwarded(t *testing.T) {
	p := &trackedProvider{Mock: speech.NewMock("robot")}
	h := newHarness(t, func(_ *Config, d *Deps) {
		d.Providers = []speech.Provider{p}
	})

	h.c.ServiceState(true)
	h.c.Drain()
	if !p.ready.Load() {
		t.Error("ready not forwarded")
	}
	h.c.ServiceState(false)
	h.c.Drain()
	if p.ready.Load() {
		t.Error("lost not forwarded")
	}
}

func TestStartCaptureFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.dev.StartErr = errors.New("busy")
	h.start()
	h.tap()

	if h.c.State() != IdlePrompt {
		t.Fatalf("state = %v", h.c.State())
	}
	notices := h.display.noticeList()
	if len(notices) != 1 || notices[0] != DefaultPrompts().MicrophoneError {
		t.Errorf("notices = %v", notices)
	}
}

func TestShutdown(t *testing.T) {
	p := &trackedProvider{Mock: speech.NewMock("robot")}
	h := newHarness(t, func(_ *Config, d *Deps) {
		d.Providers = []speech.Provider{p}
	})
	h.start()
	h.tap()

	h.c.Shutdown()
	if !h.c.Drain() {
		t.Fatal("Drain() should report termination")
	}
	if h.c.State() != Terminated {
		t.Errorf("state = %v", h.c.State())
	}
	if h.dev.Recording() {
		t.Error("recorder still running")
	}
	if !p.closed.Load() {
		t.Error("provider not closed")
	}
	select {
	case <-h.c.Done():
	default:
		t.Error("Done not closed")
	}
	if h.clk.Pending() != 0 {
		t.Errorf("pending timers = %d", h.clk.Pending())
	}

	h.c.Tap()
	h.c.Drain()
	if h.dev.Starts() != 1 {
		t.Error("tap after shutdown started a recording")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.c.Run(ctx) }()

	h.c.Tap()
	deadline := time.After(2 * time.Second)
	for h.c.State() != Listening {
		select {
		case <-deadline:
			t.Fatal("tap never handled")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if h.c.State() != Terminated {
		t.Errorf("state = %v", h.c.State())
	}
}

func TestStateText(t *testing.T) {
	for _, s := range []State{IdlePrompt, Listening, Uploading, Speaking, Terminated} {
		b, _ := s.MarshalText()
		var got State
		if err := got.UnmarshalText(b); err != nil || got != s {
			t.Errorf("round trip %v: got %v, err %v", s, got, err)
		}
	}
	var s State
	if err := s.UnmarshalText([]byte("dancing")); err == nil {
		t.Error("unknown state should fail")
	}
}

// sequence records calls across several collaborators in order.
type sequence struct {
	mu    sync.Mutex
	calls []string
}

func (s *sequence) add(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *sequence) index(call string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.calls {
		if c == call {
			return i
		}
	}
	return -1
}

type sequenceMotion struct{ seq *sequence }

func (m sequenceMotion) Play(_ context.Context, id emotion.ActionID) error {
	m.seq.add("play:" + string(id))
	return nil
}

func (m sequenceMotion) Stop(context.Context) error { return nil }

type sequenceDisplay struct{ seq *sequence }

func (d sequenceDisplay) ShowState(s State, _ string) { d.seq.add("state:" + s.String()) }
func (d sequenceDisplay) ShowNotice(string)           {}

func TestGesturePlaysBeforeSpeaking(t *testing.T) {
	seq := &sequence{}
	h := newHarness(t, func(_ *Config, d *Deps) {
		d.Gestures = emotion.NewResolver(emotion.DefaultBinding(), sequenceMotion{seq}, emotion.WithLogger(log.Discard()))
		d.Display = sequenceDisplay{seq}
	})
	h.backend.ChatFunc = func(ctx context.Context, text string) (conversation.Reply, error) {
		return conversation.Reply{Text: "好開心", Emotion: "Happy"}, nil
	}
	h.primary.SpeakFunc = func(_ context.Context, text, _ string) error {
		seq.add("speak:" + text)
		return nil
	}
	h.start()
	h.tap()
	h.utter()
	h.c.SpeechComplete()
	h.c.Drain()

	if h.c.State() != Listening {
		t.Fatalf("state = %v, want Listening", h.c.State())
	}
	play := seq.index("play:666_PE_PlayGuitar")
	speaking := seq.index("state:speaking")
	speak := seq.index("speak:好開心")
	if play < 0 || speaking < 0 || speak < 0 {
		t.Fatalf("missing calls in %v", seq.calls)
	}
	if !(play < speaking && speaking < speak) {
		t.Errorf("order = play %d, speaking %d, speak %d; want play first", play, speaking, speak)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestBlockedSpeechProviderDoesNotStallLoop(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, func(_ *Config, d *Deps) {
		d.Calls = func(f func()) { go f() }
	})
	h.primary.ReadyFunc = func(context.Context) bool {
		<-release
		return true
	}

	h.c.Start()
	h.c.Drain()
	waitFor(t, "idle prompt Ready call", func() bool { return h.primary.CallCount("Ready") == 1 })

	h.tap()
	if h.c.State() != Listening {
		close(release)
		t.Fatalf("tap not handled while provider blocked: state = %v", h.c.State())
	}
	if h.primary.CallCount("Speak") != 0 {
		t.Error("Speak ran before Ready returned")
	}

	close(release)
	waitFor(t, "late result", func() bool { return h.c.q.len() > 0 })
	h.c.Drain()
	if h.c.State() != Listening {
		t.Errorf("late prompt result changed state to %v", h.c.State())
	}
	waitFor(t, "late prompt stopped", func() bool { return h.primary.CallCount("Stop") == 1 })
}

func TestShutdownWhileSpeechProviderBlocked(t *testing.T) {
	release := make(chan struct{})
	p := &trackedProvider{Mock: speech.NewMock("robot")}
	p.ReadyFunc = func(context.Context) bool {
		<-release
		return false
	}
	h := newHarness(t, func(_ *Config, d *Deps) {
		d.Providers = []speech.Provider{p}
		d.Calls = func(f func()) { go f() }
	})

	h.c.Start()
	h.c.Drain()
	waitFor(t, "Ready call", func() bool { return p.CallCount("Ready") == 1 })

	h.c.Shutdown()
	if !h.c.Drain() {
		close(release)
		t.Fatal("shutdown not handled while provider blocked")
	}
	if h.c.State() != Terminated {
		t.Errorf("state = %v", h.c.State())
	}

	close(release)
	waitFor(t, "provider closed", p.closed.Load)
}

type runnerFunc func(ctx context.Context, id string, audio capture.AudioHandle) conversation.Outcome

func (f runnerFunc) RunTurn(ctx context.Context, id string, audio capture.AudioHandle) conversation.Outcome {
	return f(ctx, id, audio)
}

func TestBusyPipelineReturnsToIdleSilently(t *testing.T) {
	h := newHarness(t, func(_ *Config, d *Deps) {
		d.Runner = runnerFunc(func(_ context.Context, id string, _ capture.AudioHandle) conversation.Outcome {
			return conversation.Outcome{
				TurnID: id,
				Err:    &conversation.AbortError{Stage: conversation.StageTranscribe, Err: conversation.ErrBusy},
			}
		})
	})
	h.start()
	h.tap()
	h.utter()

	if h.c.State() != IdlePrompt {
		t.Fatalf("state = %v, want IdlePrompt", h.c.State())
	}
	if notices := h.display.noticeList(); len(notices) != 0 {
		t.Errorf("notices = %v, want none", notices)
	}
}
