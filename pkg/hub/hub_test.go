package hub

import (
	"context"
	"testing"
	"time"

	"github.com/teslashibe/go-voicebot/internal/log"
)

func recv(t *testing.T, ch chan Message) (Message, bool) {
	t.Helper()
	select {
	case m, ok := <-ch:
		return m, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}, false
	}
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

func TestBroadcast(t *testing.T) {
	h, _ := startHub(t)
	a := &Client{hub: h, send: make(chan Message, 4)}
	b := &Client{hub: h, send: make(chan Message, 4)}
	h.register <- a
	h.register <- b

	if err := h.BroadcastJSON(map[string]string{"state": "listening"}); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*Client{a, b} {
		m, ok := recv(t, c.send)
		if !ok || string(m.Data) != `{"state":"listening"}` || m.Type != JSONMessage {
			t.Errorf("message = %+v, ok %v", m, ok)
		}
	}
	if n := h.ClientCount(); n != 2 {
		t.Errorf("ClientCount() = %d", n)
	}
}

func TestNewClientGetsLastMessage(t *testing.T) {
	h, _ := startHub(t)
	h.BroadcastJSON("first")
	h.BroadcastJSON("second")

	c := &Client{hub: h, send: make(chan Message, 4)}
	h.register <- c
	m, _ := recv(t, c.send)
	if string(m.Data) != `"second"` {
		t.Errorf("replayed %s, want second", m.Data)
	}
}

func TestSlowClientDropped(t *testing.T) {
	h, _ := startHub(t)
	slow := &Client{hub: h, send: make(chan Message)}
	h.register <- slow

	h.BroadcastJSON(1)
	if _, ok := recv(t, slow.send); ok {
		t.Error("slow client channel should be closed")
	}
	if n := h.ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d, want 0", n)
	}
}

func TestUnregister(t *testing.T) {
	h, _ := startHub(t)
	c := &Client{hub: h, send: make(chan Message, 1)}
	h.register <- c
	h.unregister <- c
	if _, ok := recv(t, c.send); ok {
		t.Error("channel should be closed after unregister")
	}
}

func TestStopClosesClients(t *testing.T) {
	h, cancel := startHub(t)
	c := &Client{hub: h, send: make(chan Message, 1)}
	h.register <- c

	cancel()
	if _, ok := recv(t, c.send); ok {
		t.Error("channel should be closed on stop")
	}
	select {
	case <-h.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	if h.IsRunning() {
		t.Error("IsRunning() after stop")
	}

	late := NewClient(h, nil)
	if _, ok := <-late.send; ok {
		t.Error("client of a stopped hub should be closed")
	}
}
