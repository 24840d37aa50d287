package session

import (
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/go-voicebot/pkg/endpoint"
	"github.com/teslashibe/go-voicebot/pkg/speech"
)

// Prompts are the texts shown and spoken by the controller.
type Prompts struct {
	// Idle is shown while waiting for a tap.
	Idle string `yaml:"idle"`
	// IdleSpeech is spoken periodically while idle.
	IdleSpeech string `yaml:"idle_speech"`
	Listening  string `yaml:"listening"`
	Uploading  string `yaml:"uploading"`

	// Notices for failed turns.
	NetworkError    string `yaml:"network_error"`
	SpeechError     string `yaml:"speech_error"`
	MicrophoneError string `yaml:"microphone_error"`
}

// DefaultPrompts returns the stock prompts.
func DefaultPrompts() Prompts {
	return Prompts{
		Idle:            "摸摸我的頭，我們來聊天吧",
		IdleSpeech:      "想聊天的話，請摸摸我的頭",
		Listening:       "我在聽，請說",
		Uploading:       "讓我想一想",
		NetworkError:    "網路好像有點問題，請再試一次",
		SpeechError:     "我現在說不出話來",
		MicrophoneError: "麥克風無法使用",
	}
}

// Config tunes the controller.
type Config struct {
	// IdlePromptInterval separates spoken idle prompts.
	IdlePromptInterval time.Duration `yaml:"idle_prompt_interval"`

	// AnnounceOnStart speaks the idle prompt as soon as the session starts.
	AnnounceOnStart bool `yaml:"announce_on_start"`

	// MaxTurns ends a continuous conversation after that many replies and
	// returns to idle. Zero means no limit.
	MaxTurns int `yaml:"max_turns"`

	// AudioDir receives one clip per turn.
	AudioDir string `yaml:"audio_dir"`

	// KeepAudio keeps clips after the turn.
	KeepAudio bool `yaml:"keep_audio"`

	Prompts Prompts         `yaml:"prompts"`
	VAD     endpoint.Config `yaml:"-"`
	Speech  speech.Config   `yaml:"-"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the controller defaults.
func DefaultConfig() Config {
	return Config{
		IdlePromptInterval: 30 * time.Second,
		AnnounceOnStart:    true,
		Prompts:            DefaultPrompts(),
		VAD:                endpoint.DefaultConfig(),
		Speech:             speech.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.IdlePromptInterval <= 0 {
		return errors.New("session: idle prompt interval must be positive")
	}
	if c.MaxTurns < 0 {
		return errors.New("session: max turns must not be negative")
	}
	if err := c.VAD.Validate(); err != nil {
		return err
	}
	return c.Speech.Validate()
}
