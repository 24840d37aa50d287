// Package capture records the user's utterance from the robot microphone.
//
// A Device starts a Recorder per listening cycle. The Recorder writes the
// audio to the handle's path and exposes the peak amplitude since the last
// read, which drives endpoint detection.
package capture

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// ErrRecorderStopped is returned by a Recorder after Stop.
var ErrRecorderStopped = errors.New("capture: recorder stopped")

// ErrDeviceClosed is returned by StartCapture after Close.
var ErrDeviceClosed = errors.New("capture: device closed")

// AudioHandle locates a captured clip.
type AudioHandle struct {
	Path        string
	ContentType string
}

// Filename is the base name used when uploading.
func (h AudioHandle) Filename() string {
	return filepath.Base(h.Path)
}

// NewHandle returns a WAV handle for id inside dir.
func NewHandle(dir, id string) AudioHandle {
	return AudioHandle{
		Path:        filepath.Join(dir, id+".wav"),
		ContentType: "audio/wav",
	}
}

// Device starts recordings.
type Device interface {
	StartCapture(h AudioHandle) (Recorder, error)
}

// Recorder is one active recording.
type Recorder interface {
	// CurrentAmplitude returns the peak absolute sample since the
	// previous call.
	CurrentAmplitude() (int, error)
	// Stop ends the recording and finalizes the file.
	Stop() error
}

// Config selects and tunes the capture device.
type Config struct {
	// Backend is "webrtc", "command" or "mock".
	Backend string `yaml:"backend"`

	// Dir receives one file per turn.
	Dir string `yaml:"dir"`

	// KeepFiles keeps clips after upload.
	KeepFiles bool `yaml:"keep_files"`

	WebRTC  WebRTCConfig  `yaml:"webrtc"`
	Command CommandConfig `yaml:"command"`
}

// DefaultConfig records from the robot over WebRTC.
func DefaultConfig() Config {
	return Config{
		Backend: "webrtc",
		Dir:     filepath.Join(os.TempDir(), "voicebot"),
		WebRTC:  DefaultWebRTCConfig(),
		Command: DefaultCommandConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Backend {
	case "webrtc", "command", "mock":
	default:
		return errors.New("capture: backend must be webrtc, command or mock")
	}
	if c.Dir == "" {
		return errors.New("capture: dir is required")
	}
	if c.Backend == "webrtc" && c.WebRTC.SignallingURL == "" {
		return errors.New("capture: webrtc signalling url is required")
	}
	return nil
}

// WebRTCConfig configures the robot microphone stream.
type WebRTCConfig struct {
	SignallingURL    string        `yaml:"signalling_url"`
	Producer         string        `yaml:"producer"`
	SampleRate       int           `yaml:"sample_rate"`
	Channels         int           `yaml:"channels"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	TrackTimeout     time.Duration `yaml:"track_timeout"`
}

// DefaultWebRTCConfig returns settings for the robot's signalling server.
func DefaultWebRTCConfig() WebRTCConfig {
	return WebRTCConfig{
		Producer:         "robot",
		SampleRate:       48000,
		Channels:         1,
		HandshakeTimeout: 10 * time.Second,
		TrackTimeout:     15 * time.Second,
	}
}

// CommandConfig configures a local recorder that writes raw PCM16 to stdout.
type CommandConfig struct {
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args"`
	SampleRate int      `yaml:"sample_rate"`
	Channels   int      `yaml:"channels"`
}

// DefaultCommandConfig uses ALSA's arecord.
func DefaultCommandConfig() CommandConfig {
	return CommandConfig{
		Command:    "arecord",
		Args:       []string{"-q", "-f", "S16_LE", "-r", "16000", "-c", "1", "-t", "raw"},
		SampleRate: 16000,
		Channels:   1,
	}
}
