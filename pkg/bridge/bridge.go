// Package bridge accepts the robot's event websocket and turns touch and
// speech service messages into session input.
package bridge

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-voicebot/pkg/protocol"
)

// EventSink receives robot events. *session.Controller satisfies it.
type EventSink interface {
	Tap()
	SpeechComplete()
	ServiceState(ready bool)
}

// RobotConnection is a connected robot
type RobotConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send writes a message to the robot
func (r *RobotConnection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Conn.WriteMessage(websocket.TextMessage, data)
}

func (r *RobotConnection) touch(now time.Time) {
	r.mu.Lock()
	r.LastSeen = now
	r.mu.Unlock()
}

// Bridge manages robot event connections
type Bridge struct {
	sink   EventSink
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	robots map[string]*RobotConnection
	seq    atomic.Uint64

	received atomic.Uint64
	taps     atomic.Uint64
	ignored  atomic.Uint64
}

// Option configures a Bridge
type Option func(*Bridge)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// New creates a bridge that forwards events to sink
func New(sink EventSink, opts ...Option) *Bridge {
	b := &Bridge{
		sink:   sink,
		now:    time.Now,
		robots: make(map[string]*RobotConnection),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	b.logger = b.logger.With("component", "bridge.bridge")
	return b
}

// RegisterRoutes mounts /ws/robot on r
func (b *Bridge) RegisterRoutes(r fiber.Router) {
	r.Use("/ws/robot", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	r.Get("/ws/robot", websocket.New(b.handleRobot))
	r.Get("/ws/robot/:id", websocket.New(b.handleRobot))
}

func (b *Bridge) handleRobot(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = "robot-" + time.Now().Format("150405") + "-" + strconv.FormatUint(b.seq.Add(1), 10)
	}

	now := b.now()
	robot := &RobotConnection{ID: id, Conn: c, Connected: now, LastSeen: now}

	b.mu.Lock()
	b.robots[id] = robot
	count := len(b.robots)
	b.mu.Unlock()
	b.logger.Info("robot connected", "robot_id", id, "robots", count)

	defer func() {
		b.mu.Lock()
		if b.robots[id] == robot {
			delete(b.robots, id)
		}
		count := len(b.robots)
		b.mu.Unlock()
		b.logger.Info("robot disconnected", "robot_id", id, "robots", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			b.logger.Debug("robot read ended", "robot_id", id, "error", err)
			return
		}
		robot.touch(b.now())
		b.received.Add(1)

		msg, err := protocol.ParseMessage(data)
		if err != nil {
			b.ignored.Add(1)
			b.logger.Warn("bad robot message", "robot_id", id, "error", err)
			continue
		}
		if reply := b.Dispatch(msg); reply != nil {
			if err := robot.Send(reply); err != nil {
				b.logger.Debug("reply failed", "robot_id", id, "error", err)
			}
		}
	}
}

// Dispatch forwards msg to the sink and returns a reply for the robot,
// if any.
func (b *Bridge) Dispatch(msg *protocol.Message) *protocol.Message {
	switch msg.Type {
	case protocol.TypeTap, protocol.TypeLongPress:
		b.tap()

	case protocol.TypeRawTouch:
		d, err := msg.GetRawTouchData()
		if err != nil {
			b.ignored.Add(1)
			return nil
		}
		if d.IsPress() {
			b.tap()
		}

	case protocol.TypeTTSComplete:
		if d, err := msg.GetTTSCompleteData(); err == nil && d.Error != "" {
			b.logger.Warn("robot speech ended with error", "error", d.Error)
		}
		b.sink.SpeechComplete()

	case protocol.TypeService:
		d, err := msg.GetServiceData()
		if err != nil {
			b.ignored.Add(1)
			return nil
		}
		b.logger.Info("speech service", "state", d.State)
		b.sink.ServiceState(d.Ready())

	case protocol.TypePing:
		var id string
		if d, err := msg.GetPingData(); err == nil {
			id = d.ID
		}
		pong, err := protocol.NewPongMessage(id, msg.Timestamp, b.now().UnixMilli())
		if err != nil {
			return nil
		}
		return pong

	default:
		b.ignored.Add(1)
		b.logger.Debug("unhandled robot message", "type", msg.Type)
	}
	return nil
}

func (b *Bridge) tap() {
	b.taps.Add(1)
	b.sink.Tap()
}

// RobotCount returns the number of connected robots
func (b *Bridge) RobotCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.robots)
}

// Stats contains bridge counters
type Stats struct {
	RobotCount       int    `json:"robot_count"`
	MessagesReceived uint64 `json:"messages_received"`
	Taps             uint64 `json:"taps"`
	Ignored          uint64 `json:"ignored"`
}

// GetStats returns bridge counters
func (b *Bridge) GetStats() Stats {
	return Stats{
		RobotCount:       b.RobotCount(),
		MessagesReceived: b.received.Load(),
		Taps:             b.taps.Load(),
		Ignored:          b.ignored.Load(),
	}
}

// RobotInfo describes a connected robot
type RobotInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// GetRobotInfos returns all connected robots
func (b *Bridge) GetRobotInfos() []RobotInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	infos := make([]RobotInfo, 0, len(b.robots))
	for _, r := range b.robots {
		r.mu.Lock()
		infos = append(infos, RobotInfo{ID: r.ID, Connected: r.Connected, LastSeen: r.LastSeen})
		r.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes mounts GET /robots and /robots/stats on api
func (b *Bridge) RegisterAPIRoutes(api fiber.Router) {
	robots := api.Group("/robots")
	robots.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"robots": b.GetRobotInfos(),
			"count":  b.RobotCount(),
		})
	})
	robots.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(b.GetStats())
	})
}
