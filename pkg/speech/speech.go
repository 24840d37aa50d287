// Package speech speaks reply text through a prioritised list of
// providers.
//
// The first provider is the robot's embodied agent engine; it is retried a
// bounded number of times while it reports not ready. Later providers are
// fallbacks tried once each. The Orchestrator reports Started when a
// provider accepts the text and Finished when it is done, synthesising the
// finish for providers that never signal completion.
package speech

import (
	"context"
	"fmt"
)

// Provider speaks text on some output engine.
type Provider interface {
	// Name identifies the provider in logs and events.
	Name() string

	// Ready reports whether the engine can accept text right now.
	Ready(ctx context.Context) bool

	// Speak starts speaking. It returns once the engine accepted the text,
	// not when playback ends.
	Speak(ctx context.Context, text, locale string) error

	// SignalsCompletion reports whether the engine delivers an end of
	// playback notification (routed to Orchestrator.Complete).
	SignalsCompletion() bool
}

// Stopper is implemented by providers that can interrupt playback.
type Stopper interface {
	Stop(ctx context.Context) error
}

// ServiceTracker is implemented by providers that track agent service
// lifecycle events.
type ServiceTracker interface {
	SetServiceReady(ready bool)
}

// EventKind distinguishes orchestrator events.
type EventKind int

const (
	Started EventKind = iota + 1
	Finished
	Failed
)

func (k EventKind) String() string {
	switch k {
	case Started:
		return "started"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is emitted by the Orchestrator for an utterance.
type Event struct {
	Kind      EventKind
	Utterance uint64
	Provider  string

	// Synthesized is set on a Finished event produced by the estimate timer.
	Synthesized bool

	// Err is set on Failed events.
	Err error
}
