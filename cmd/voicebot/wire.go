package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/teslashibe/go-voicebot/internal/config"
	"github.com/teslashibe/go-voicebot/pkg/backend"
	"github.com/teslashibe/go-voicebot/pkg/bridge"
	"github.com/teslashibe/go-voicebot/pkg/capture"
	"github.com/teslashibe/go-voicebot/pkg/conversation"
	"github.com/teslashibe/go-voicebot/pkg/emotion"
	"github.com/teslashibe/go-voicebot/pkg/endpoint"
	"github.com/teslashibe/go-voicebot/pkg/journal"
	"github.com/teslashibe/go-voicebot/pkg/robot"
	"github.com/teslashibe/go-voicebot/pkg/session"
	"github.com/teslashibe/go-voicebot/pkg/speech"
	"github.com/teslashibe/go-voicebot/pkg/web"
)

// app holds the assembled process.
type app struct {
	cfg    config.Config
	logger *slog.Logger

	controller *session.Controller
	web        *web.Server
	bridge     *bridge.Bridge
	journal    *journal.Async

	closers []func() error
}

// Tap implements web.Tapper.
func (a *app) Tap() { a.controller.Tap() }

// Status implements web.StatusSource.
func (a *app) Status() session.Status { return a.controller.Status() }

// build wires every component from cfg. In mock mode no robot or backend
// is contacted.
func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	store, history, err := openJournal(ctx, cfg.Journal)
	if err != nil {
		return nil, err
	}
	a.journal = journal.NewAsync(store, journal.WithBuffer(cfg.Journal.Buffer), journal.WithLogger(logger))
	a.closers = append(a.closers, a.journal.Close)

	webOpts := []web.Option{web.WithLogger(logger), web.WithTapper(a), web.WithStatusSource(a)}
	if history != nil {
		webOpts = append(webOpts, web.WithHistory(history))
	}
	a.web = web.NewServer(cfg.Web, webOpts...)

	binding, err := emotion.BindingFromConfig(cfg.Motion.Candidates, cfg.Motion.Preferred)
	if err != nil {
		return nil, err
	}
	resolverOpts := []emotion.ResolverOption{emotion.WithLogger(logger)}
	if cfg.Motion.PlayTimeout > 0 {
		resolverOpts = append(resolverOpts, emotion.WithPlayTimeout(cfg.Motion.PlayTimeout))
	}

	var (
		device    capture.Device
		dialogue  conversation.Backend
		providers []speech.Provider
		motion    emotion.Motion
		face      session.Face
	)

	if cfg.Mock {
		logger.Warn("mock mode: no robot or backend")
		mic := capture.NewMockDevice()
		mic.Script = mockUtterance(cfg.VAD)
		device = mic
		dialogue = &conversation.MockBackend{}
		voice := speech.NewMock("mock")
		voice.Completion = false
		providers = []speech.Provider{voice}
		motion = emotion.NewMockMotion()
	} else {
		agent, err := robot.Dial(ctx, cfg.Robot)
		if err != nil {
			return nil, fmt.Errorf("dial robot: %w", err)
		}
		logger.Info("robot agent", "base_url", agent.BaseURL(), "generation", agent.Generation())

		embodied := speech.NewEmbodiedEngine(agent, logger)
		fallback := speech.NewDeviceEngine(cfg.Speech.Device, logger)
		providers = []speech.Provider{embodied, fallback}
		motion = robot.NewMotionSurface(agent)
		face = robot.NewFace(agent, cfg.Robot.MouthSpeed, logger)

		client, err := backend.New(ctx, cfg.Backend, backend.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("backend: %w", err)
		}
		dialogue = client

		device, err = a.openDevice(ctx, cfg.Capture)
		if err != nil {
			return nil, err
		}
	}

	scfg := cfg.SessionConfig()
	scfg.Logger = logger
	if scfg.AudioDir != "" {
		if err := os.MkdirAll(scfg.AudioDir, 0o755); err != nil {
			return nil, fmt.Errorf("audio dir: %w", err)
		}
	}

	a.controller, err = session.NewController(scfg, session.Deps{
		Device:    device,
		Runner:    conversation.NewPipeline(dialogue, conversation.WithLogger(logger)),
		Gestures:  emotion.NewResolver(binding, motion, resolverOpts...),
		Providers: providers,
		Display:   a.web,
		Face:      face,
		Turns:     session.TurnSinks(a.web, a.journal),
	})
	if err != nil {
		return nil, err
	}

	a.bridge = bridge.New(a.controller, bridge.WithLogger(logger))
	a.bridge.RegisterRoutes(a.web.App())
	a.bridge.RegisterAPIRoutes(a.web.App().Group("/api"))
	return a, nil
}

func (a *app) openDevice(ctx context.Context, cfg capture.Config) (capture.Device, error) {
	switch cfg.Backend {
	case "webrtc":
		d := capture.NewWebRTCDevice(cfg.WebRTC, a.logger)
		if err := d.Connect(ctx); err != nil {
			d.Close()
			return nil, fmt.Errorf("robot microphone: %w", err)
		}
		a.closers = append(a.closers, d.Close)
		return d, nil
	case "command":
		return capture.NewCommandDevice(cfg.Command, a.logger), nil
	case "mock":
		return capture.NewMockDevice(), nil
	default:
		return nil, fmt.Errorf("unknown capture backend %q", cfg.Backend)
	}
}

// mockUtterance is a burst loud and long enough to be confirmed as speech.
// Quiet follows, so every mock listen cycle ends in a turn.
func mockUtterance(vad endpoint.Config) []int {
	if vad.SampleInterval <= 0 {
		return nil
	}
	quiet := 3
	loud := int(vad.MinSustainedStart/vad.SampleInterval) + 6
	script := make([]int, 0, quiet+loud)
	for i := 0; i < quiet; i++ {
		script = append(script, 0)
	}
	for i := 0; i < loud; i++ {
		script = append(script, vad.AmplitudeThreshold*2)
	}
	return script
}

func openJournal(ctx context.Context, cfg config.JournalConfig) (journal.Journal, journal.Reader, error) {
	switch cfg.Backend {
	case config.JournalRedis:
		r, err := journal.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return r, r, nil
	case config.JournalMemory:
		m := journal.NewMemory(cfg.MemorySize)
		return m, m, nil
	default:
		return journal.Nop{}, nil, nil
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
