// Package session runs the voice interaction state machine.
//
// The Controller owns every piece of session state and mutates it only
// from its event loop. Taps, backend results, speech events and timers
// are all posted to one FIFO queue and handled in order.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-voicebot/internal/clock"
	"github.com/teslashibe/go-voicebot/pkg/capture"
	"github.com/teslashibe/go-voicebot/pkg/conversation"
	"github.com/teslashibe/go-voicebot/pkg/emotion"
	"github.com/teslashibe/go-voicebot/pkg/endpoint"
	"github.com/teslashibe/go-voicebot/pkg/speech"
)

// ErrTerminated is returned by Run after the session has shut down.
var ErrTerminated = errors.New("session: terminated")

// Deps are the collaborators of a Controller. Device, Runner and
// Providers are required.
type Deps struct {
	Clock     clock.Clock
	Device    capture.Device
	Runner    TurnRunner
	Gestures  Gestures
	Providers []speech.Provider
	Display   Display
	Face      Face
	Turns     TurnSink

	// Go runs blocking work off the loop. Defaults to a goroutine.
	Go func(func())

	// Calls runs speech and face calls to the robot off the loop, one
	// surface at a time. Defaults to Go.
	Calls func(func())

	// NewID returns turn ids. Defaults to uuid.NewString.
	NewID func() string
}

// Controller is the session state machine.
type Controller struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	q        *queue
	clock    clock.Clock
	voice    *serial
	face     *serial
	detector *endpoint.Detector
	orch     *speech.Orchestrator

	ctx    context.Context
	cancel context.CancelFunc

	// Loop-owned state.
	state      State
	since      time.Time
	turnID     string
	audio      capture.AudioHandle
	recorder   capture.Recorder
	utterance  uint64
	turns      int
	totalTurns int

	sampleEpoch uint64
	sampleTimer clock.Timer
	idleEpoch   uint64
	idleTimer   clock.Timer

	status   atomic.Pointer[Status]
	done     chan struct{}
	doneOnce sync.Once
}

// NewController creates a controller in the IdlePrompt state. Nothing
// happens until Run or Start is called.
func NewController(cfg Config, deps Deps) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Device == nil {
		return nil, errors.New("session: capture device is required")
	}
	if deps.Runner == nil {
		return nil, errors.New("session: turn runner is required")
	}
	if len(deps.Providers) == 0 {
		return nil, speech.ErrNoProviders
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Gestures == nil {
		deps.Gestures = nopGestures{}
	}
	if deps.Display == nil {
		deps.Display = nopDisplay{}
	}
	if deps.Face == nil {
		deps.Face = nopFace{}
	}
	if deps.Turns == nil {
		deps.Turns = turnSinks(nil)
	}
	if deps.Go == nil {
		deps.Go = func(f func()) { go f() }
	}
	if deps.Calls == nil {
		deps.Calls = deps.Go
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		cfg:      cfg,
		deps:     deps,
		logger:   logger.With("component", "session.controller"),
		q:        newQueue(),
		detector: endpoint.New(cfg.VAD),
		state:    IdlePrompt,
		done:     make(chan struct{}),
	}
	c.clock = loopClock{base: deps.Clock, q: c.q}
	c.voice = &serial{run: deps.Calls}
	c.face = &serial{run: deps.Calls}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	speechCfg := cfg.Speech
	if speechCfg.Logger == nil {
		speechCfg.Logger = logger
	}
	c.orch = speech.NewOrchestrator(c.clock, c.onSpeech,
		func(sc *speech.Config) { *sc = speechCfg },
		speech.WithAsync(c.voice.do, c.post),
	)

	c.since = deps.Clock.Now()
	c.publish()
	return c, nil
}

// Tap reports a touch on the robot.
func (c *Controller) Tap() { c.q.push(tapEvent{}) }

// SpeechComplete reports that the robot finished speaking.
func (c *Controller) SpeechComplete() { c.q.push(completeEvent{}) }

// ServiceState reports the robot's speech service coming up or going away.
func (c *Controller) ServiceState(ready bool) { c.q.push(serviceEvent{ready: ready}) }

// Start enters IdlePrompt and begins prompting.
func (c *Controller) Start() { c.q.push(startEvent{}) }

// Shutdown asks the loop to stop. It returns immediately; Done is closed
// once teardown has run.
func (c *Controller) Shutdown() { c.q.push(shutdownEvent{}) }

// Done is closed when the session has terminated.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Status returns a snapshot of the session. Safe for concurrent use.
func (c *Controller) Status() Status { return *c.status.Load() }

// State returns the current state. Safe for concurrent use.
func (c *Controller) State() State { return c.Status().State }

// Run starts the session and processes events until ctx is cancelled or
// Shutdown is called.
func (c *Controller) Run(ctx context.Context) error {
	c.Start()
	for {
		if c.Drain() {
			return nil
		}
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-c.q.signal:
		}
	}
}

// Drain handles queued events until the queue is empty and reports
// whether the session has terminated. Run calls it; tests may call it
// directly instead of running the loop.
func (c *Controller) Drain() bool {
	for {
		if c.state == Terminated {
			return true
		}
		ev, ok := c.q.pop()
		if !ok {
			return false
		}
		c.handle(ev)
		c.publish()
	}
}

func (c *Controller) handle(ev any) {
	switch e := ev.(type) {
	case startEvent:
		c.onStart()
	case tapEvent:
		c.onTap()
	case completeEvent:
		c.orch.Complete()
	case serviceEvent:
		c.onService(e.ready)
	case sampleEvent:
		c.onSample(e.epoch, e.at)
	case idleEvent:
		c.onIdleTimer(e.epoch)
	case turnDoneEvent:
		c.onTurnDone(e.out)
	case speechEvent:
		c.onSpeechEvent(e.ev)
	case callbackEvent:
		e.fn()
	case shutdownEvent:
		c.shutdown()
	default:
		c.logger.Warn("unknown event", "type", fmt.Sprintf("%T", ev))
	}
}

// post runs f on the loop.
func (c *Controller) post(f func()) { c.q.push(callbackEvent{fn: f}) }

func (c *Controller) onSpeech(ev speech.Event) {
	c.q.push(speechEvent{ev: ev})
}

func (c *Controller) onStart() {
	if c.state != IdlePrompt {
		return
	}
	c.enterIdle("")
	if c.cfg.AnnounceOnStart {
		c.speakPrompt()
	}
}

func (c *Controller) onTap() {
	if c.state != IdlePrompt {
		c.logger.Debug("tap ignored", "state", c.state)
		return
	}
	c.stopIdle()
	c.orch.Cancel()
	c.startListening()
}

func (c *Controller) onService(ready bool) {
	c.logger.Info("speech service", "ready", ready)
	for _, p := range c.deps.Providers {
		if t, ok := p.(speech.ServiceTracker); ok {
			t.SetServiceReady(ready)
		}
	}
}

// Idle

func (c *Controller) enterIdle(notice string) {
	c.setState(IdlePrompt)
	c.turnID = ""
	c.turns = 0
	c.deps.Display.ShowState(IdlePrompt, c.cfg.Prompts.Idle)
	if notice != "" {
		c.deps.Display.ShowNotice(notice)
	}
	c.faceCall("mouth off", c.deps.Face.MouthOff)
	c.armIdle()
}

func (c *Controller) armIdle() {
	c.stopIdle()
	epoch := c.idleEpoch
	c.idleTimer = c.deps.Clock.AfterFunc(c.cfg.IdlePromptInterval, func() {
		c.q.push(idleEvent{epoch: epoch})
	})
}

func (c *Controller) stopIdle() {
	c.idleEpoch++
	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}
}

func (c *Controller) onIdleTimer(epoch uint64) {
	if epoch != c.idleEpoch || c.state != IdlePrompt {
		return
	}
	c.idleTimer = nil
	c.speakPrompt()
	c.armIdle()
}

func (c *Controller) speakPrompt() {
	if c.cfg.Prompts.IdleSpeech == "" {
		return
	}
	c.orch.Speak(c.cfg.Prompts.IdleSpeech, c.deps.Providers, c.cfg.Speech.MaxRetries, c.cfg.Speech.RetryDelay)
}

// Listening

func (c *Controller) startListening() {
	id := c.deps.NewID()
	audio := capture.NewHandle(c.audioDir(), id)
	rec, err := c.deps.Device.StartCapture(audio)
	if err != nil {
		c.logger.Error("start capture failed", "turn", id, "error", err)
		c.enterIdle(c.cfg.Prompts.MicrophoneError)
		return
	}

	c.turnID = id
	c.audio = audio
	c.recorder = rec
	c.setState(Listening)
	c.deps.Display.ShowState(Listening, c.cfg.Prompts.Listening)
	c.faceCall("show", c.deps.Face.Show)

	c.detector.Start(c.deps.Clock.Now())
	c.sampleEpoch++
	c.armSample()
	c.logger.Info("listening", "turn", id)
}

func (c *Controller) armSample() {
	epoch := c.sampleEpoch
	c.sampleTimer = c.deps.Clock.AfterFunc(c.cfg.VAD.SampleInterval, func() {
		c.q.push(sampleEvent{epoch: epoch, at: c.deps.Clock.Now()})
	})
}

func (c *Controller) onSample(epoch uint64, at time.Time) {
	if epoch != c.sampleEpoch || c.state != Listening || c.recorder == nil {
		return
	}
	c.sampleTimer = nil

	switch r := c.detector.SampleSource(c.recorder, at); r {
	case endpoint.Continue:
		c.armSample()
	case endpoint.SpeechStarted:
		c.logger.Debug("speech started", "turn", c.turnID)
		c.armSample()
	case endpoint.SpeechEnded:
		c.stopRecording()
		c.upload()
	case endpoint.TimedOut:
		c.logger.Info("listen timed out", "turn", c.turnID)
		c.stopRecording()
		c.discardAudio(c.audio)
		c.enterIdle("")
	}
}

func (c *Controller) stopRecording() {
	c.detector.Stop()
	c.sampleEpoch++
	if c.sampleTimer != nil {
		c.sampleTimer.Stop()
		c.sampleTimer = nil
	}
	if c.recorder != nil {
		if err := c.recorder.Stop(); err != nil {
			c.logger.Warn("stop recorder", "turn", c.turnID, "error", err)
		}
		c.recorder = nil
	}
}

// Uploading

func (c *Controller) upload() {
	c.setState(Uploading)
	c.deps.Display.ShowState(Uploading, c.cfg.Prompts.Uploading)

	ctx, id, audio := c.ctx, c.turnID, c.audio
	runner := c.deps.Runner
	c.deps.Go(func() {
		out := runner.RunTurn(ctx, id, audio)
		c.q.push(turnDoneEvent{out: out})
	})
}

func (c *Controller) onTurnDone(out conversation.Outcome) {
	if c.state != Uploading || out.TurnID != c.turnID {
		c.logger.Debug("stale turn outcome discarded", "turn", out.TurnID, "current", c.turnID, "state", c.state)
		return
	}
	c.discardAudio(c.audio)

	rec := TurnRecord{
		TurnID:            out.TurnID,
		Transcript:        out.Transcript,
		StartedAt:         out.Started,
		TranscribeLatency: out.TranscribeLatency(),
		ChatLatency:       out.ChatLatency(),
	}

	if out.Err != nil {
		rec.Stage = conversation.StageOf(out.Err)
		rec.Error = out.Err.Error()
		c.deps.Turns.RecordTurn(rec)
		if conversation.IsSilent(out.Err) {
			c.logger.Info("nothing heard", "turn", out.TurnID)
			c.enterIdle("")
			return
		}
		c.logger.Warn("turn aborted", "turn", out.TurnID, "error", out.Err)
		c.enterIdle(c.cfg.Prompts.NetworkError)
		return
	}

	rec.Reply = out.Reply.Text
	rec.RawEmotion = out.Reply.Emotion
	rec.Emotion = emotion.Normalize(out.Reply.Emotion)
	if action, ok := c.deps.Gestures.Resolve(c.ctx, out.Reply.Emotion); ok {
		rec.Action = action
	}
	c.deps.Turns.RecordTurn(rec)

	c.setState(Speaking)
	c.deps.Display.ShowState(Speaking, out.Reply.Text)
	c.faceCall("mouth on", c.deps.Face.MouthOn)

	id, ok := c.orch.Speak(out.Reply.Text, c.deps.Providers, c.cfg.Speech.MaxRetries, c.cfg.Speech.RetryDelay)
	if !ok {
		c.finishSpeaking()
		return
	}
	c.utterance = id
}

// Speaking

func (c *Controller) onSpeechEvent(ev speech.Event) {
	current := c.state == Speaking && ev.Utterance == c.utterance
	switch ev.Kind {
	case speech.Started:
		c.logger.Debug("speech started", "utterance", ev.Utterance, "provider", ev.Provider, "reply", current)
	case speech.Finished:
		if current {
			c.finishSpeaking()
		}
	case speech.Failed:
		c.logger.Warn("speech failed", "utterance", ev.Utterance, "reply", current, "error", ev.Err)
		if current {
			c.stopGesture()
			c.enterIdle(c.cfg.Prompts.SpeechError)
		}
	}
}

func (c *Controller) finishSpeaking() {
	c.utterance = 0
	c.stopGesture()
	c.faceCall("mouth off", c.deps.Face.MouthOff)
	c.turns++
	c.totalTurns++

	if c.cfg.MaxTurns > 0 && c.turns >= c.cfg.MaxTurns {
		c.logger.Info("conversation turn limit reached", "turns", c.turns)
		c.enterIdle("")
		return
	}
	c.startListening()
}

func (c *Controller) stopGesture() {
	if err := c.deps.Gestures.Stop(c.ctx); err != nil {
		c.logger.Debug("stop gesture", "error", err)
	}
}

// Shutdown

func (c *Controller) shutdown() {
	if c.state == Terminated {
		return
	}
	c.logger.Info("shutting down", "state", c.state)
	c.stopIdle()
	c.stopRecording()
	c.orch.Cancel()
	c.stopGesture()
	c.faceCall("mouth off", c.deps.Face.MouthOff)
	c.cancel()

	providers, logger := c.deps.Providers, c.logger
	c.voice.do(func() {
		for _, p := range providers {
			if cl, ok := p.(io.Closer); ok {
				if err := cl.Close(); err != nil {
					logger.Warn("close provider", "provider", p.Name(), "error", err)
				}
			}
		}
	})

	c.setState(Terminated)
	c.deps.Display.ShowState(Terminated, "")
	c.q.close()
	c.publish()
	c.doneOnce.Do(func() { close(c.done) })
}

// helpers

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	c.logger.Debug("state", "from", c.state, "to", s)
	c.state = s
	c.since = c.deps.Clock.Now()
}

func (c *Controller) publish() {
	c.status.Store(&Status{
		State:      c.state,
		TurnID:     c.turnID,
		Turns:      c.turns,
		TotalTurns: c.totalTurns,
		Since:      c.since,
	})
}

// faceCall issues a face call off the loop. Calls keep their order and
// outlive shutdown so the final mouth off still lands.
func (c *Controller) faceCall(what string, f func(context.Context) error) {
	timeout := c.cfg.Speech.CallTimeout
	c.face.do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := f(ctx); err != nil {
			c.logger.Debug("face", "call", what, "error", err)
		}
	})
}

func (c *Controller) audioDir() string {
	if c.cfg.AudioDir != "" {
		return c.cfg.AudioDir
	}
	return os.TempDir()
}

func (c *Controller) discardAudio(h capture.AudioHandle) {
	if c.cfg.KeepAudio || h.Path == "" {
		return
	}
	if err := os.Remove(h.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Debug("remove audio", "path", h.Path, "error", err)
	}
}
