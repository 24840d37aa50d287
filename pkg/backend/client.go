// Package backend is the HTTP client for the speech-to-text and dialogue
// service.
//
// Two calls are made per turn: the recorded clip is uploaded as a
// multipart form and the transcript comes back as JSON; the transcript is
// then posted as plain text and the reply comes back with emotion labels.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/teslashibe/go-voicebot/internal/httpc"
	"github.com/teslashibe/go-voicebot/pkg/capture"
	"github.com/teslashibe/go-voicebot/pkg/conversation"
)

const maxErrorBody = 512

// Client talks to the backend.
type Client struct {
	cfg        Config
	base       *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, bypassing Timeouts and Auth.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client. ctx is used to set up token sources.
func New(ctx context.Context, cfg Config, opts ...Option) (*Client, error) {
	base, err := cfg.baseURL()
	if err != nil {
		return nil, err
	}
	c := &Client{cfg: cfg, base: base, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "backend.client")

	if c.httpClient == nil {
		ts, err := TokenSource(ctx, cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("backend: auth: %w", err)
		}
		c.httpClient = httpc.NewClientWithTimeouts(cfg.Timeouts, authorize(ts))
	}
	return c, nil
}

// Transcribe uploads audio and returns the transcript. An empty
// transcript is returned as "" with no error.
func (c *Client) Transcribe(ctx context.Context, audio capture.AudioHandle) (string, error) {
	data, err := os.ReadFile(audio.Path)
	if err != nil {
		return "", fmt.Errorf("backend: read audio: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, c.cfg.FileField, audio.Filename()))
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var resp struct {
		Text       string `json:"text"`
		Transcript string `json:"transcript"`
	}
	start := time.Now()
	if err := c.post(ctx, c.cfg.STTPath, mw.FormDataContentType(), body.Bytes(), &resp); err != nil {
		return "", err
	}
	text := resp.Text
	if text == "" {
		text = resp.Transcript
	}
	c.logger.Debug("transcribed",
		"bytes", len(data),
		"chars", len([]rune(text)),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// Chat sends the utterance and returns the reply. The reply's emotion is
// the first non-empty of final, text and audio emotion.
func (c *Client) Chat(ctx context.Context, text string) (conversation.Reply, error) {
	var resp struct {
		Reply        string `json:"reply"`
		Emotion      string `json:"emotion"`
		FinalEmotion string `json:"final_emotion"`
		TextEmotion  string `json:"text_emotion"`
		AudioEmotion string `json:"audio_emotion"`
	}
	start := time.Now()
	if err := c.post(ctx, c.cfg.ChatPath, "text/plain; charset=utf-8", []byte(text), &resp); err != nil {
		return conversation.Reply{}, err
	}

	reply := conversation.Reply{
		Text:    strings.TrimSpace(resp.Reply),
		Emotion: firstNonEmpty(resp.FinalEmotion, resp.TextEmotion, resp.AudioEmotion, resp.Emotion),
	}
	if reply.Text == "" {
		reply.Text = c.cfg.NoReplyText
	}
	c.logger.Debug("chat reply",
		"chars", len([]rune(reply.Text)),
		"emotion", reply.Emotion,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return reply, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body []byte, out any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("backend: bad path %q: %w", path, err)
	}
	endpoint := c.base.ResolveReference(ref)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNetwork, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ServerError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNetwork, path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBadResponse, path, err)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

var _ conversation.Backend = (*Client)(nil)
