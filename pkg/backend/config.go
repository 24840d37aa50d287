package backend

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/teslashibe/go-voicebot/internal/httpc"
)

// Auth modes.
const (
	AuthNone              = "none"
	AuthBearer            = "bearer"
	AuthClientCredentials = "client_credentials"
	AuthGoogleIDToken     = "google_id_token"
)

// Config holds backend client settings.
type Config struct {
	// BaseURL is the service root, e.g. "https://bot.example.com/".
	BaseURL string `yaml:"base_url"`

	// STTPath and ChatPath are resolved against BaseURL.
	STTPath  string `yaml:"stt_path"`
	ChatPath string `yaml:"chat_path"`

	// FileField is the multipart field carrying the audio.
	FileField string `yaml:"file_field"`

	// NoReplyText replaces an empty chat reply.
	NoReplyText string `yaml:"no_reply_text"`

	Timeouts httpc.Timeouts `yaml:"timeouts"`
	Auth     AuthConfig     `yaml:"auth"`
}

// AuthConfig selects how requests are authorized.
type AuthConfig struct {
	Mode string `yaml:"mode"`

	// Token is the static bearer token.
	Token string `yaml:"token"`

	// Client credentials grant.
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	TokenURL     string   `yaml:"token_url"`
	Scopes       []string `yaml:"scopes"`

	// Google-signed ID token for services behind IAM.
	Audience        string `yaml:"audience"`
	CredentialsFile string `yaml:"credentials_file"`
}

// DefaultConfig returns the standard endpoint layout.
func DefaultConfig() Config {
	return Config{
		STTPath:     "api/stt/",
		ChatPath:    "api/chat/",
		FileField:   "file",
		NoReplyText: "（沒有回應）",
		Timeouts:    httpc.DefaultTimeouts(),
		Auth:        AuthConfig{Mode: AuthNone},
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return ErrNoBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend: invalid base URL %q", c.BaseURL)
	}
	if c.Timeouts.Connect <= 0 || c.Timeouts.Read <= 0 || c.Timeouts.Write <= 0 {
		return errors.New("backend: timeouts must be positive")
	}
	return c.Auth.Validate()
}

// Validate checks that the selected mode has what it needs.
func (a AuthConfig) Validate() error {
	switch a.Mode {
	case "", AuthNone:
		return nil
	case AuthBearer:
		if a.Token == "" {
			return errors.New("backend: bearer auth requires a token")
		}
	case AuthClientCredentials:
		if a.ClientID == "" || a.TokenURL == "" {
			return errors.New("backend: client credentials require client_id and token_url")
		}
	case AuthGoogleIDToken:
		if a.Audience == "" {
			return errors.New("backend: google id token requires an audience")
		}
	default:
		return fmt.Errorf("backend: unknown auth mode %q", a.Mode)
	}
	return nil
}

// baseURL returns BaseURL with a trailing slash so relative paths resolve
// beneath it.
func (c Config) baseURL() (*url.URL, error) {
	raw := strings.TrimSpace(c.BaseURL)
	if raw == "" {
		return nil, ErrNoBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	return url.Parse(raw)
}
