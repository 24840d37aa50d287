package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-voicebot/pkg/hub"
	"github.com/teslashibe/go-voicebot/pkg/session"
)

// statusResponse is the body of GET /api/status
type statusResponse struct {
	View    View            `json:"view"`
	Session *session.Status `json:"session,omitempty"`
	Clients int             `json:"clients"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := statusResponse{View: s.View(), Clients: s.statusHub.ClientCount()}
	if s.source != nil {
		st := s.source.Status()
		resp.Session = &st
	}
	return c.JSON(resp)
}

func (s *Server) handleTap(c *fiber.Ctx) error {
	if s.tapper == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "tap input not configured",
		})
	}
	s.tapper.Tap()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

func (s *Server) handleConversation(c *fiber.Ctx) error {
	s.convMu.RLock()
	out := make([]ConversationEntry, len(s.conversation))
	copy(out, s.conversation)
	s.convMu.RUnlock()
	return c.JSON(out)
}

func (s *Server) handleJournal(c *fiber.Ctx) error {
	if s.history == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "journal not configured",
		})
	}
	n := c.QueryInt("n", 20)
	entries, err := s.history.Recent(c.UserContext(), n)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(entries)
}

func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	client.Run()
}
