// Package config loads the voicebot configuration: YAML file first, then
// environment overrides, then validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/teslashibe/go-voicebot/pkg/backend"
	"github.com/teslashibe/go-voicebot/pkg/capture"
	"github.com/teslashibe/go-voicebot/pkg/endpoint"
	"github.com/teslashibe/go-voicebot/pkg/journal"
	"github.com/teslashibe/go-voicebot/pkg/robot"
	"github.com/teslashibe/go-voicebot/pkg/session"
	"github.com/teslashibe/go-voicebot/pkg/speech"
	"github.com/teslashibe/go-voicebot/pkg/web"
)

// Default robot ports.
const (
	DefaultSignallingPort = "8443"
)

// Journal backends.
const (
	JournalNone   = "none"
	JournalMemory = "memory"
	JournalRedis  = "redis"
)

// Config is the whole process configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	Env      string `yaml:"env"`

	// Mock runs without a robot or backend.
	Mock bool `yaml:"mock"`

	Robot   robot.Config    `yaml:"robot"`
	Capture capture.Config  `yaml:"capture"`
	VAD     endpoint.Config `yaml:"vad"`
	Speech  speech.Config   `yaml:"speech"`
	Motion  MotionConfig    `yaml:"motion"`
	Backend backend.Config  `yaml:"backend"`
	Session session.Config  `yaml:"session"`
	Web     web.Config      `yaml:"web"`
	Journal JournalConfig   `yaml:"journal"`
}

// MotionConfig holds the emotion to motion table.
type MotionConfig struct {
	// Candidates maps an emotion label to motion names, tried in order.
	// Empty means the built-in table.
	Candidates map[string][]string `yaml:"candidates"`
	// Preferred seeds the last-known-good motion per label.
	Preferred   map[string]string `yaml:"preferred"`
	PlayTimeout time.Duration     `yaml:"play_timeout"`
}

// JournalConfig selects where turns are journaled.
type JournalConfig struct {
	Backend    string              `yaml:"backend"`
	MemorySize int                 `yaml:"memory_size"`
	Buffer     int                 `yaml:"buffer"`
	Redis      journal.RedisConfig `yaml:"redis"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Env:      "development",
		Robot:    robot.DefaultConfig(),
		Capture:  capture.DefaultConfig(),
		VAD:      endpoint.DefaultConfig(),
		Speech:   speech.DefaultConfig(),
		Motion:   MotionConfig{PlayTimeout: 3 * time.Second},
		Backend:  backend.DefaultConfig(),
		Session:  session.DefaultConfig(),
		Web:      web.DefaultConfig(),
		Journal: JournalConfig{
			Backend:    JournalMemory,
			MemorySize: 200,
			Buffer:     64,
			Redis:      journal.RedisConfig{Stream: journal.DefaultStream, MaxLen: 10000},
		},
	}
}

// Load reads path over the defaults and applies the process environment.
// An empty path skips the file.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with a custom environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file %s not found", path)
			}
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(lookup)
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if ip, ok := get("ROBOT_IP"); ok {
		c.Robot.BaseURL = robot.BaseURLFromIP(ip)
		if c.Capture.WebRTC.SignallingURL == "" {
			c.Capture.WebRTC.SignallingURL = fmt.Sprintf("ws://%s:%s", ip, DefaultSignallingPort)
		}
	}
	if u, ok := get("BACKEND_URL"); ok {
		c.Backend.BaseURL = u
	}
	if tok, ok := get("BACKEND_TOKEN"); ok {
		c.Backend.Auth.Mode = backend.AuthBearer
		c.Backend.Auth.Token = tok
	}
	if u, ok := get("REDIS_URL"); ok {
		c.Journal.Backend = JournalRedis
		c.Journal.Redis.URL = u
	}
	if lvl, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = lvl
	}
	if env, ok := get("GO_ENV"); ok {
		c.Env = env
	}
}

// Validate checks every section. In mock mode the robot and backend are
// not required.
func (c Config) Validate() error {
	var errs []error
	if !c.Mock {
		if err := c.Robot.Validate(); err != nil {
			errs = append(errs, err)
		}
		if err := c.Backend.Validate(); err != nil {
			errs = append(errs, err)
		}
		if err := c.Capture.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.VAD.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Speech.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.SessionConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Web.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Journal.Backend {
	case JournalNone, JournalMemory:
	case JournalRedis:
		if c.Journal.Redis.URL == "" {
			errs = append(errs, errors.New("config: journal redis url is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown journal backend %q", c.Journal.Backend))
	}
	return errors.Join(errs...)
}

// SessionConfig returns the session settings with the shared sections
// filled in.
func (c Config) SessionConfig() session.Config {
	s := c.Session
	s.VAD = c.VAD
	s.Speech = c.Speech
	if s.AudioDir == "" {
		s.AudioDir = c.Capture.Dir
	}
	s.KeepAudio = s.KeepAudio || c.Capture.KeepFiles
	return s
}

// Production reports whether the process runs in production.
func (c Config) Production() bool {
	return c.Env == "production"
}

// Marshal renders c as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
