package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/teslashibe/go-voicebot/pkg/capability"
)

// Call shapes the robot agent may expose. Which ones exist depends on the
// firmware generation, so every call negotiates among them.
type (
	// ReadinessQuerier can be asked whether the speech service is up.
	ReadinessQuerier interface {
		ServiceReady(ctx context.Context) (bool, error)
	}

	// LocaleSpeaker speaks text in an explicit locale.
	LocaleSpeaker interface {
		StartTTSLocale(ctx context.Context, text, locale string) error
	}

	// PlainSpeaker speaks text in the agent's configured locale.
	PlainSpeaker interface {
		StartTTS(ctx context.Context, text string) error
	}

	// TTSStopper interrupts agent speech.
	TTSStopper interface {
		StopTTS(ctx context.Context) error
	}

	restartingSpeaker interface {
		PlainSpeaker
		TTSStopper
	}
)

// Shape names reported by EmbodiedEngine.Capabilities.
const (
	ShapeServiceReady = "serviceReady()"
	ShapeTrackedReady = "tracked service events"
	ShapeSpeakLocale  = "startTTS(text, locale)"
	ShapeSpeakRestart = "stopTTS() + startTTS(text)"
	ShapeStopTTS      = "stopTTS()"
)

// EmbodiedEngine speaks through the robot agent's own TTS. The agent
// reports the end of playback through the event bridge, so the engine
// signals completion.
type EmbodiedEngine struct {
	agent   any
	tracked atomic.Bool
	logger  *slog.Logger
}

// NewEmbodiedEngine wraps an agent handle.
func NewEmbodiedEngine(agent any, logger *slog.Logger) *EmbodiedEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbodiedEngine{
		agent:  agent,
		logger: logger.With("component", "speech.embodied"),
	}
}

// Name implements Provider.
func (e *EmbodiedEngine) Name() string { return "embodied" }

// SignalsCompletion implements Provider.
func (e *EmbodiedEngine) SignalsCompletion() bool { return true }

// SetServiceReady records an agent service lifecycle event. The value is
// used when the agent cannot be queried directly.
func (e *EmbodiedEngine) SetServiceReady(ready bool) {
	e.tracked.Store(ready)
}

// Ready queries the agent if it exposes a readiness call and falls back
// to the last service lifecycle event otherwise.
func (e *EmbodiedEngine) Ready(ctx context.Context) bool {
	var ready bool
	_, err := capability.Negotiate(e.agent,
		capability.For(ShapeServiceReady, func(q ReadinessQuerier) error {
			r, err := q.ServiceReady(ctx)
			ready = r
			return err
		}),
	)
	if err != nil {
		if !errors.Is(err, capability.ErrNoShape) {
			e.logger.Debug("readiness query failed", "error", err)
		}
		return e.tracked.Load()
	}
	return ready
}

// Speak implements Provider.
func (e *EmbodiedEngine) Speak(ctx context.Context, text, locale string) error {
	shape, err := capability.Negotiate(e.agent, e.speakShapes(ctx, text, locale)...)
	if err != nil {
		return err
	}
	e.logger.Debug("speak accepted", "shape", shape)
	return nil
}

// Stop implements Stopper.
func (e *EmbodiedEngine) Stop(ctx context.Context) error {
	_, err := capability.Negotiate(e.agent,
		capability.For(ShapeStopTTS, func(s TTSStopper) error { return s.StopTTS(ctx) }),
	)
	return err
}

// Capabilities lists the call shapes the agent exposes.
func (e *EmbodiedEngine) Capabilities() []string {
	shapes := []capability.Shape{
		capability.For(ShapeServiceReady, func(ReadinessQuerier) error { return nil }),
	}
	shapes = append(shapes, e.speakShapes(context.Background(), "", "")...)
	shapes = append(shapes, capability.For(ShapeStopTTS, func(TTSStopper) error { return nil }))

	names := capability.Supported(e.agent, shapes...)
	if len(names) == 0 || names[0] != ShapeServiceReady {
		names = append([]string{ShapeTrackedReady}, names...)
	}
	return names
}

func (e *EmbodiedEngine) speakShapes(ctx context.Context, text, locale string) []capability.Shape {
	return []capability.Shape{
		capability.For(ShapeSpeakLocale, func(s LocaleSpeaker) error {
			return s.StartTTSLocale(ctx, text, locale)
		}),
		capability.For(ShapeSpeakRestart, func(s restartingSpeaker) error {
			if err := s.StopTTS(ctx); err != nil {
				e.logger.Debug("stop before speak failed", "error", err)
			}
			return s.StartTTS(ctx, text)
		}),
	}
}

var (
	_ Provider       = (*EmbodiedEngine)(nil)
	_ Stopper        = (*EmbodiedEngine)(nil)
	_ ServiceTracker = (*EmbodiedEngine)(nil)
)
