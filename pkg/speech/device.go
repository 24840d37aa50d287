package speech

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// DeviceConfig describes the local command used as the fallback engine.
// Args may contain the placeholders {text}, {locale} and {voice}.
type DeviceConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Voices  map[string]string `yaml:"voices"`
}

// DefaultDeviceConfig uses espeak-ng.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Command: "espeak-ng",
		Args:    []string{"-v", "{voice}", "{text}"},
		Voices: map[string]string{
			"zh-TW": "cmn",
			"zh-CN": "cmn",
			"en-US": "en-us",
		},
	}
}

// ExpandArgs substitutes the placeholders in c.Args.
func (c DeviceConfig) ExpandArgs(text, locale string) []string {
	voice := c.Voices[locale]
	if voice == "" {
		voice = locale
	}
	r := strings.NewReplacer("{text}", text, "{locale}", locale, "{voice}", voice)
	out := make([]string, len(c.Args))
	for i, a := range c.Args {
		out[i] = r.Replace(a)
	}
	return out
}

// DeviceEngine speaks by running a local text-to-speech command. It has
// no completion signal; the orchestrator estimates the playback length.
type DeviceEngine struct {
	cfg    DeviceConfig
	logger *slog.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewDeviceEngine creates the fallback engine.
func NewDeviceEngine(cfg DeviceConfig, logger *slog.Logger) *DeviceEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceEngine{
		cfg:    cfg,
		logger: logger.With("component", "speech.device"),
	}
}

// Name implements Provider.
func (d *DeviceEngine) Name() string { return "device" }

// SignalsCompletion implements Provider.
func (d *DeviceEngine) SignalsCompletion() bool { return false }

// Ready reports whether the command is installed.
func (d *DeviceEngine) Ready(ctx context.Context) bool {
	if d.cfg.Command == "" {
		return false
	}
	_, err := exec.LookPath(d.cfg.Command)
	return err == nil
}

// Speak starts the command and returns without waiting for it.
func (d *DeviceEngine) Speak(ctx context.Context, text, locale string) error {
	if d.cfg.Command == "" {
		return errors.New("speech: device engine has no command")
	}
	d.Stop(ctx)

	cmd := exec.Command(d.cfg.Command, d.cfg.ExpandArgs(text, locale)...)
	if err := cmd.Start(); err != nil {
		return err
	}

	d.mu.Lock()
	d.cmd = cmd
	d.mu.Unlock()

	go func() {
		err := cmd.Wait()
		d.mu.Lock()
		if d.cmd == cmd {
			d.cmd = nil
		}
		d.mu.Unlock()
		if err != nil {
			d.logger.Debug("speech command exited", "error", err)
		}
	}()
	return nil
}

// Stop kills a running command.
func (d *DeviceEngine) Stop(ctx context.Context) error {
	d.mu.Lock()
	cmd := d.cmd
	d.cmd = nil
	d.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Close stops playback.
func (d *DeviceEngine) Close() error {
	return d.Stop(context.Background())
}

var (
	_ Provider = (*DeviceEngine)(nil)
	_ Stopper  = (*DeviceEngine)(nil)
)
