package robot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-voicebot/internal/httpc"
)

// ErrUnsupportedGeneration is returned by Dial for unknown firmware.
var ErrUnsupportedGeneration = errors.New("robot: unsupported firmware generation")

// StatusError is a non-success response from the agent.
type StatusError struct {
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("robot: %s returned %d", e.Path, e.StatusCode)
}

// Config holds agent connection settings.
type Config struct {
	// BaseURL of the agent service, e.g. "http://192.168.1.20:8000".
	BaseURL string `yaml:"base_url"`

	// Generation forces a firmware generation. Zero probes /api/version.
	Generation int `yaml:"generation"`

	// Timeout bounds each call. Agent calls are local and short.
	Timeout time.Duration `yaml:"timeout"`

	// MouthSpeed is the talking animation speed.
	MouthSpeed int `yaml:"mouth_speed"`
}

// DefaultConfig returns the agent defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:    2 * time.Second,
		MouthSpeed: 200,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("robot: base URL required")
	}
	if c.Generation != 0 && c.Generation != 1 && c.Generation != 2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedGeneration, c.Generation)
	}
	if c.Timeout <= 0 {
		return errors.New("robot: timeout must be positive")
	}
	return nil
}

// BaseURLFromIP returns the agent URL for a robot on the default port.
func BaseURLFromIP(ip string) string {
	return fmt.Sprintf("http://%s:8000", ip)
}

// transport is the HTTP plumbing shared by both generations.
type transport struct {
	baseURL string
	client  *http.Client
}

func newTransport(cfg Config) transport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return transport{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  httpc.NewClient(timeout),
	}
}

func (t transport) post(ctx context.Context, path string, payload any) error {
	var body io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("robot: marshal %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req, path, nil)
}

func (t transport) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return err
	}
	return t.do(req, path, out)
}

func (t transport) do(req *http.Request, path string, out any) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("robot: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Path: path, StatusCode: resp.StatusCode}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("robot: decode %s: %w", path, err)
	}
	return nil
}

// Dial returns the client for the robot's firmware generation.
func Dial(ctx context.Context, cfg Config) (Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	gen := cfg.Generation
	if gen == 0 {
		var err error
		gen, err = probeGeneration(ctx, newTransport(cfg))
		if err != nil {
			return nil, err
		}
	}
	switch gen {
	case 2:
		return NewAgentV2(cfg), nil
	case 1:
		return NewAgentV1(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedGeneration, gen)
	}
}

// probeGeneration reads /api/version. Firmware without the endpoint is
// generation 1.
func probeGeneration(ctx context.Context, t transport) (int, error) {
	var v struct {
		Generation int    `json:"generation"`
		Firmware   string `json:"firmware"`
	}
	err := t.get(ctx, "/api/version", &v)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if v.Generation == 0 {
		return 1, nil
	}
	return v.Generation, nil
}
