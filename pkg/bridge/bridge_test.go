package bridge

import (
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-voicebot/internal/log"
	"github.com/teslashibe/go-voicebot/pkg/protocol"
)

type recordingSink struct {
	taps      atomic.Int32
	completes atomic.Int32

	mu      sync.Mutex
	service []bool
}

func (s *recordingSink) Tap()            { s.taps.Add(1) }
func (s *recordingSink) SpeechComplete() { s.completes.Add(1) }

func (s *recordingSink) ServiceState(ready bool) {
	s.mu.Lock()
	s.service = append(s.service, ready)
	s.mu.Unlock()
}

func (s *recordingSink) serviceStates() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.service...)
}

func parse(t *testing.T, raw string) *protocol.Message {
	t.Helper()
	msg, err := protocol.ParseMessage([]byte(raw))
	if err != nil {
		t.Fatalf("ParseMessage(%s) error = %v", raw, err)
	}
	return msg
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantTaps      int32
		wantCompletes int32
		wantService   []bool
		wantReply     bool
	}{
		{name: "tap", raw: `{"type":"tap"}`, wantTaps: 1},
		{name: "long press", raw: `{"type":"long_press"}`, wantTaps: 1},
		{name: "touch down", raw: `{"type":"raw_touch","data":{"action":0}}`, wantTaps: 1},
		{name: "touch up", raw: `{"type":"raw_touch","data":{"action":1}}`},
		{name: "touch move", raw: `{"type":"raw_touch","data":{"action":2,"sensor":"head"}}`},
		{name: "tts complete", raw: `{"type":"tts_complete"}`, wantCompletes: 1},
		{name: "tts complete with error", raw: `{"type":"tts_complete","data":{"error":"interrupted"}}`, wantCompletes: 1},
		{name: "service started", raw: `{"type":"service","data":{"state":"started"}}`, wantService: []bool{true}},
		{name: "service crashed", raw: `{"type":"service","data":{"state":"crashed"}}`, wantService: []bool{false}},
		{name: "service recovered", raw: `{"type":"service","data":{"state":"recovered"}}`, wantService: []bool{true}},
		{name: "ping", raw: `{"type":"ping","ts":1000,"data":{"id":"p"}}`, wantReply: true},
		{name: "unknown", raw: `{"type":"frame"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			b := New(sink, WithLogger(log.Discard()))

			reply := b.Dispatch(parse(t, tt.raw))

			if got := sink.taps.Load(); got != tt.wantTaps {
				t.Errorf("taps = %d, want %d", got, tt.wantTaps)
			}
			if got := sink.completes.Load(); got != tt.wantCompletes {
				t.Errorf("completes = %d, want %d", got, tt.wantCompletes)
			}
			got := sink.serviceStates()
			if len(got) != len(tt.wantService) || (len(got) == 1 && got[0] != tt.wantService[0]) {
				t.Errorf("service = %v, want %v", got, tt.wantService)
			}
			if (reply != nil) != tt.wantReply {
				t.Errorf("reply = %v, wantReply %v", reply, tt.wantReply)
			}
		})
	}
}

func TestDispatchPong(t *testing.T) {
	b := New(&recordingSink{}, WithLogger(log.Discard()))
	b.now = func() time.Time { return time.UnixMilli(1250) }

	reply := b.Dispatch(parse(t, `{"type":"ping","ts":1000,"data":{"id":"abc","ts":1000}}`))
	if reply == nil || reply.Type != protocol.TypePong {
		t.Fatalf("reply = %+v", reply)
	}
	var pong protocol.PongData
	if err := reply.ParseData(&pong); err != nil {
		t.Fatal(err)
	}
	if pong.ID != "abc" || pong.LatencyMs != 250 {
		t.Errorf("pong = %+v", pong)
	}
}

func TestStatsCountIgnored(t *testing.T) {
	b := New(&recordingSink{}, WithLogger(log.Discard()))
	b.Dispatch(parse(t, `{"type":"tap"}`))
	b.Dispatch(parse(t, `{"type":"frame"}`))
	b.Dispatch(parse(t, `{"type":"raw_touch","data":"bad"}`))

	s := b.GetStats()
	if s.Taps != 1 || s.Ignored != 2 || s.RobotCount != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestAPIRoutes(t *testing.T) {
	b := New(&recordingSink{}, WithLogger(log.Discard()))
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	b.RegisterAPIRoutes(app.Group("/api"))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/robots/stats", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	var s Stats
	if err := json.Unmarshal(body, &s); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
}

func TestUpgradeRequired(t *testing.T) {
	b := New(&recordingSink{}, WithLogger(log.Discard()))
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	b.RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/ws/robot", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("status = %d, want 426", resp.StatusCode)
	}
}

func TestRobotWebSocket(t *testing.T) {
	sink := &recordingSink{}
	b := New(sink, WithLogger(log.Discard()))
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	b.RegisterRoutes(app)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go app.Listener(ln)
	defer app.Shutdown()

	url := "ws://" + ln.Addr().String() + "/ws/robot/test-robot"
	var ws *websocket.Conn
	for i := 0; i < 50; i++ {
		ws, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	for _, raw := range []string{
		`{"type":"tap"}`,
		`{"type":"service","data":{"state":"started"}}`,
		`{"type":"tts_complete"}`,
		`{"type":"ping","ts":1,"data":{"id":"x"}}`,
	} {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read pong: %v", err)
	}
	pong, err := protocol.ParseMessage(data)
	if err != nil || pong.Type != protocol.TypePong {
		t.Fatalf("reply = %s, %v", data, err)
	}

	// Messages are handled in order, so the pong means all were dispatched.
	if sink.taps.Load() != 1 || sink.completes.Load() != 1 {
		t.Errorf("taps = %d, completes = %d", sink.taps.Load(), sink.completes.Load())
	}
	if got := sink.serviceStates(); len(got) != 1 || !got[0] {
		t.Errorf("service = %v", got)
	}
	if b.RobotCount() != 1 {
		t.Errorf("RobotCount() = %d", b.RobotCount())
	}
	infos := b.GetRobotInfos()
	if len(infos) != 1 || infos[0].ID != "test-robot" {
		t.Errorf("infos = %+v", infos)
	}
}
