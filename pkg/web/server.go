// Package web serves the on-screen interface: the current prompt, a tap
// button and the recent conversation.
package web

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-voicebot/pkg/hub"
	"github.com/teslashibe/go-voicebot/pkg/journal"
	"github.com/teslashibe/go-voicebot/pkg/session"
)

// Config configures the server.
type Config struct {
	Addr string `yaml:"addr"`
	// StaticDir is served at / when set.
	StaticDir string `yaml:"static_dir"`
	// ConversationSize is how many turns /api/conversation keeps.
	ConversationSize int `yaml:"conversation_size"`
	// NoticeTTL is how long a notice stays in the view.
	NoticeTTL time.Duration `yaml:"notice_ttl"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Addr:             ":8080",
		ConversationSize: 100,
		NoticeTTL:        5 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("web: addr is required")
	}
	if c.ConversationSize < 1 {
		return errors.New("web: conversation size must be positive")
	}
	return nil
}

// Tapper accepts taps from the screen.
type Tapper interface {
	Tap()
}

// StatusSource reports the session status.
type StatusSource interface {
	Status() session.Status
}

// View is what the screen shows.
type View struct {
	State     session.State `json:"state"`
	Prompt    string        `json:"prompt"`
	Notice    string        `json:"notice,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ConversationEntry is one line of the conversation log.
type ConversationEntry struct {
	Time    time.Time `json:"time"`
	TurnID  string    `json:"turn_id"`
	Role    string    `json:"role"` // user, robot
	Message string    `json:"message"`
	Emotion string    `json:"emotion,omitempty"`
}

// Server is the web interface.
type Server struct {
	cfg    Config
	app    *fiber.App
	logger *slog.Logger
	now    func() time.Time

	statusHub *hub.Hub

	tapper  Tapper
	source  StatusSource
	history journal.Reader

	mu       sync.RWMutex
	view     View
	noticeAt time.Time

	convMu       sync.RWMutex
	conversation []ConversationEntry
}

// Option configures a Server.
type Option func(*Server)

// WithTapper routes POST /api/tap.
func WithTapper(t Tapper) Option { return func(s *Server) { s.tapper = t } }

// WithStatusSource adds session status to /api/status.
func WithStatusSource(src StatusSource) Option { return func(s *Server) { s.source = src } }

// WithHistory serves /api/journal from r.
func WithHistory(r journal.Reader) Option { return func(s *Server) { s.history = r } }

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option { return func(s *Server) { s.logger = logger } }

// NewServer builds the fiber app and routes.
func NewServer(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:          cfg,
		now:          time.Now,
		conversation: make([]ConversationEntry, 0, cfg.ConversationSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "web.server")
	s.statusHub = hub.New("status", s.logger)
	s.view = View{State: session.IdlePrompt, UpdatedAt: s.now()}

	app := fiber.New(fiber.Config{
		AppName:               "voicebot",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/tap", s.handleTap)
	api.Get("/conversation", s.handleConversation)
	api.Get("/journal", s.handleJournal)

	app.Use("/ws/status", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// App returns the fiber app so other packages can mount routes.
func (s *Server) App() *fiber.App { return s.app }

// Hub returns the status hub.
func (s *Server) Hub() *hub.Hub { return s.statusHub }

// Start runs the status hub and listens until Shutdown. ctx stops the hub.
func (s *Server) Start(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	s.logger.Info("web interface listening", "addr", s.cfg.Addr)
	return s.app.Listen(s.cfg.Addr)
}

// Shutdown stops the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// ShowState implements session.Display.
func (s *Server) ShowState(state session.State, prompt string) {
	s.mu.Lock()
	s.view.State = state
	s.view.Prompt = prompt
	s.view.UpdatedAt = s.now()
	if s.view.Notice != "" && s.view.UpdatedAt.Sub(s.noticeAt) >= s.cfg.NoticeTTL {
		s.view.Notice = ""
	}
	v := s.view
	s.mu.Unlock()
	s.broadcast(v)
}

// ShowNotice implements session.Display.
func (s *Server) ShowNotice(notice string) {
	s.mu.Lock()
	s.view.Notice = notice
	s.noticeAt = s.now()
	s.view.UpdatedAt = s.noticeAt
	v := s.view
	s.mu.Unlock()
	s.broadcast(v)
}

// RecordTurn implements session.TurnSink.
func (s *Server) RecordTurn(rec session.TurnRecord) {
	now := s.now()
	var entries []ConversationEntry
	if rec.Transcript != "" {
		entries = append(entries, ConversationEntry{Time: now, TurnID: rec.TurnID, Role: "user", Message: rec.Transcript})
	}
	if rec.Completed() {
		entries = append(entries, ConversationEntry{
			Time:    now,
			TurnID:  rec.TurnID,
			Role:    "robot",
			Message: rec.Reply,
			Emotion: string(rec.Emotion),
		})
	}
	if len(entries) == 0 {
		return
	}

	s.convMu.Lock()
	s.conversation = append(s.conversation, entries...)
	if over := len(s.conversation) - s.cfg.ConversationSize; over > 0 {
		s.conversation = append(s.conversation[:0], s.conversation[over:]...)
	}
	s.convMu.Unlock()
}

// View returns what the screen currently shows.
func (s *Server) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

func (s *Server) broadcast(v View) {
	if err := s.statusHub.BroadcastJSON(v); err != nil {
		s.logger.Warn("broadcast view", "error", err)
	}
}

var (
	_ session.Display  = (*Server)(nil)
	_ session.TurnSink = (*Server)(nil)
)
