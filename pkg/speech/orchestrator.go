package speech

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/teslashibe/go-voicebot/internal/clock"
)

// Orchestrator drives one utterance at a time through a provider list.
//
// It is not safe for concurrent use. All calls, including the callbacks
// of timers created through its clock, must happen on the owner's event
// loop; the session controller passes a clock that posts callbacks back
// onto that loop. With WithAsync, provider calls run through the
// configured executor and their results are posted back, so the loop
// never waits on a provider.
type Orchestrator struct {
	cfg    Config
	clock  clock.Clock
	emit   func(Event)
	logger *slog.Logger

	next   uint64
	active *utterance
}

type utterance struct {
	id         uint64
	text       string
	providers  []Provider
	maxRetries int
	retryDelay time.Duration

	idx      int
	attempts int
	errs     []error

	speaking Provider
	timer    clock.Timer
}

// NewOrchestrator creates an orchestrator that reports through emit.
func NewOrchestrator(clk clock.Clock, emit func(Event), opts ...Option) *Orchestrator {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if emit == nil {
		emit = func(Event) {}
	}
	return &Orchestrator{
		cfg:    cfg,
		clock:  clk,
		emit:   emit,
		logger: logger.With("component", "speech.orchestrator"),
	}
}

// Speak starts an utterance and returns its id. Blank text is a no-op and
// returns ok=false. A previous utterance still in progress is cancelled
// without an event.
//
// The first provider gets maxRetries attempts separated by retryDelay.
// Each remaining provider gets exactly one attempt.
func (o *Orchestrator) Speak(text string, providers []Provider, maxRetries int, retryDelay time.Duration) (id uint64, ok bool) {
	if strings.TrimSpace(text) == "" {
		return 0, false
	}
	o.Cancel()

	if maxRetries < 1 {
		maxRetries = 1
	}
	o.next++
	u := &utterance{
		id:         o.next,
		text:       text,
		providers:  providers,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
	o.active = u

	if len(providers) == 0 {
		o.fail(u, ErrNoProviders)
		return u.id, true
	}
	o.attempt(u)
	return u.id, true
}

// Complete delivers a completion signal from a provider. It finishes the
// active utterance if that utterance is being spoken by a provider that
// signals completion.
func (o *Orchestrator) Complete() {
	u := o.active
	if u == nil || u.speaking == nil || !u.speaking.SignalsCompletion() {
		return
	}
	o.finish(u, false)
}

// Cancel abandons the active utterance, stopping playback if the
// provider supports it. No event is emitted.
func (o *Orchestrator) Cancel() {
	u := o.active
	if u == nil {
		return
	}
	o.active = nil
	if u.timer != nil {
		u.timer.Stop()
	}
	o.stop(u.speaking)
}

// Active returns the id of the utterance in progress.
func (o *Orchestrator) Active() (uint64, bool) {
	if o.active == nil {
		return 0, false
	}
	return o.active.id, true
}

// Estimate returns the synthesized playback length for text.
func (o *Orchestrator) Estimate(text string) time.Duration {
	d := time.Duration(utf8.RuneCountInString(text)) * o.cfg.FinishPerRune
	if d < o.cfg.FinishFloor {
		return o.cfg.FinishFloor
	}
	return d
}

func (o *Orchestrator) attempt(u *utterance) {
	if o.active != u {
		return
	}
	u.timer = nil
	p := u.providers[u.idx]
	u.attempts++

	if o.cfg.Run == nil || o.cfg.Post == nil {
		o.attempted(u, p, o.try(p, u.text))
		return
	}
	text := u.text
	o.cfg.Run(func() {
		err := o.try(p, text)
		o.cfg.Post(func() { o.attempted(u, p, err) })
	})
}

// attempted handles the result of one provider call. A result for an
// utterance that is no longer active is dropped, and a provider that
// started speaking for it is stopped.
func (o *Orchestrator) attempted(u *utterance, p Provider, err error) {
	if o.active != u {
		if err == nil {
			o.logger.Debug("late start after cancel", "utterance", u.id, "provider", p.Name())
			o.stop(p)
		}
		return
	}
	if err == nil {
		o.started(u, p)
		return
	}

	perr := &ProviderError{Provider: p.Name(), Attempt: u.attempts, Err: err}
	o.logger.Warn("speak attempt failed",
		"utterance", u.id,
		"provider", p.Name(),
		"attempt", u.attempts,
		"error", err,
	)

	if u.idx == 0 && u.attempts < u.maxRetries {
		u.timer = o.clock.AfterFunc(u.retryDelay, func() { o.attempt(u) })
		return
	}

	u.errs = append(u.errs, perr)
	u.idx++
	u.attempts = 0
	if u.idx < len(u.providers) {
		o.logger.Info("falling back", "utterance", u.id, "provider", u.providers[u.idx].Name())
		o.attempt(u)
		return
	}
	o.fail(u, &ExhaustedError{Errors: u.errs})
}

func (o *Orchestrator) try(p Provider, text string) error {
	ctx, cancel := o.callContext()
	defer cancel()
	if !p.Ready(ctx) {
		return ErrNotReady
	}
	return p.Speak(ctx, text, o.cfg.Locale)
}

func (o *Orchestrator) stop(p Provider) {
	s, ok := p.(Stopper)
	if !ok {
		return
	}
	call := func() {
		ctx, cancel := o.callContext()
		defer cancel()
		if err := s.Stop(ctx); err != nil {
			o.logger.Debug("stop failed", "provider", p.Name(), "error", err)
		}
	}
	if o.cfg.Run != nil {
		o.cfg.Run(call)
		return
	}
	call()
}

func (o *Orchestrator) started(u *utterance, p Provider) {
	u.speaking = p
	o.logger.Debug("speaking", "utterance", u.id, "provider", p.Name(), "chars", utf8.RuneCountInString(u.text))
	o.emit(Event{Kind: Started, Utterance: u.id, Provider: p.Name()})

	if !p.SignalsCompletion() && o.active == u {
		u.timer = o.clock.AfterFunc(o.Estimate(u.text), func() { o.finish(u, true) })
	}
}

func (o *Orchestrator) finish(u *utterance, synthesized bool) {
	if o.active != u {
		return
	}
	o.active = nil
	if u.timer != nil {
		u.timer.Stop()
	}
	o.emit(Event{
		Kind:        Finished,
		Utterance:   u.id,
		Provider:    u.speaking.Name(),
		Synthesized: synthesized,
	})
}

func (o *Orchestrator) fail(u *utterance, err error) {
	if o.active != u {
		return
	}
	o.active = nil
	o.logger.Error("speech failed", "utterance", u.id, "error", err)
	o.emit(Event{Kind: Failed, Utterance: u.id, Err: err})
}

func (o *Orchestrator) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), o.cfg.CallTimeout)
}
