package speech

import (
	"errors"
	"log/slog"
	"time"
)

// Config holds speech output settings.
type Config struct {
	// Locale passed to providers that accept one.
	Locale string `yaml:"locale"`

	// MaxRetries is the total number of attempts on the primary provider.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay separates attempts on the primary provider.
	RetryDelay time.Duration `yaml:"retry_delay"`

	// FinishPerRune and FinishFloor estimate playback length for
	// providers without a completion signal.
	FinishPerRune time.Duration `yaml:"finish_per_rune"`
	FinishFloor   time.Duration `yaml:"finish_floor"`

	// CallTimeout bounds a single Ready or Speak call.
	CallTimeout time.Duration `yaml:"call_timeout"`

	// Device configures the on-device fallback engine.
	Device DeviceConfig `yaml:"device"`

	// Logger for speech events. Not loaded from YAML.
	Logger *slog.Logger `yaml:"-"`

	// Run executes provider calls and Post hands their results back to
	// the owner's loop. Both nil means provider calls run inline.
	Run  func(func()) `yaml:"-"`
	Post func(func()) `yaml:"-"`
}

// DefaultConfig returns the settings used on the robot.
func DefaultConfig() Config {
	return Config{
		Locale:        "zh-TW",
		MaxRetries:    4,
		RetryDelay:    500 * time.Millisecond,
		FinishPerRune: 120 * time.Millisecond,
		FinishFloor:   800 * time.Millisecond,
		CallTimeout:   5 * time.Second,
		Device:        DefaultDeviceConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxRetries < 1 {
		return errors.New("speech: max retries must be at least 1")
	}
	if c.RetryDelay < 0 {
		return errors.New("speech: retry delay must not be negative")
	}
	if c.FinishFloor <= 0 {
		return errors.New("speech: finish floor must be positive")
	}
	if c.CallTimeout <= 0 {
		return errors.New("speech: call timeout must be positive")
	}
	return nil
}

// Option configures an Orchestrator.
type Option func(*Config)

// WithLocale sets the locale.
func WithLocale(locale string) Option {
	return func(c *Config) { c.Locale = locale }
}

// WithFinishEstimate sets the synthesized finish estimate.
func WithFinishEstimate(perRune, floor time.Duration) Option {
	return func(c *Config) {
		c.FinishPerRune = perRune
		c.FinishFloor = floor
	}
}

// WithCallTimeout bounds individual provider calls.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Config) { c.CallTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// WithAsync moves Ready, Speak and Stop calls off the caller. run executes
// a call; post must deliver the result back on the goroutine that owns
// the Orchestrator.
func WithAsync(run, post func(func())) Option {
	return func(c *Config) {
		c.Run = run
		c.Post = post
	}
}

// Apply applies options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
