package conversation

import (
	"context"
	"sync"

	"github.com/teslashibe/go-voicebot/pkg/capture"
)

// MockBackend implements Backend for testing.
// All methods can be customized via function fields.
type MockBackend struct {
	// TranscribeFunc is called when Transcribe is invoked.
	// If nil, returns "hello".
	TranscribeFunc func(ctx context.Context, audio capture.AudioHandle) (string, error)

	// ChatFunc is called when Chat is invoked.
	// If nil, echoes the text with a neutral emotion.
	ChatFunc func(ctx context.Context, text string) (Reply, error)

	mu          sync.Mutex
	transcribes []capture.AudioHandle
	chats       []string
}

// Transcribe calls TranscribeFunc and records the call.
func (m *MockBackend) Transcribe(ctx context.Context, audio capture.AudioHandle) (string, error) {
	m.mu.Lock()
	m.transcribes = append(m.transcribes, audio)
	m.mu.Unlock()
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, audio)
	}
	return "hello", nil
}

// Chat calls ChatFunc and records the call.
func (m *MockBackend) Chat(ctx context.Context, text string) (Reply, error) {
	m.mu.Lock()
	m.chats = append(m.chats, text)
	m.mu.Unlock()
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, text)
	}
	return Reply{Text: text, Emotion: "neutral"}, nil
}

// TranscribeCount returns the number of Transcribe calls.
func (m *MockBackend) TranscribeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transcribes)
}

// ChatTexts returns the texts sent to Chat.
func (m *MockBackend) ChatTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.chats...)
}

var _ Backend = (*MockBackend)(nil)
