// Package protocol defines the websocket messages the robot sends to the
// voice front-end.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of websocket message
type MessageType string

const (
	// Touch input
	TypeTap       MessageType = "tap"
	TypeLongPress MessageType = "long_press"
	TypeRawTouch  MessageType = "raw_touch"

	// Speech service
	TypeTTSComplete MessageType = "tts_complete"
	TypeService     MessageType = "service"

	// Health check
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the wrapper for all websocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a message stamped with the current time
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal %s data: %w", msgType, err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into v. Missing data leaves v unchanged.
func (m *Message) ParseData(v interface{}) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("protocol: parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("protocol: message has no type")
	}
	return &msg, nil
}

// Touch actions reported in RawTouchData.
const (
	ActionDown   = 0
	ActionUp     = 1
	ActionMove   = 2
	ActionCancel = 3
)

// RawTouchData is an unprocessed touch sensor event
type RawTouchData struct {
	Action int    `json:"action"`
	Sensor string `json:"sensor,omitempty"` // "head", "chin", ...
}

// IsPress reports whether the event starts a touch.
func (d RawTouchData) IsPress() bool { return d.Action == ActionDown }

// TTSCompleteData reports the end of on-robot speech
type TTSCompleteData struct {
	Error string `json:"error,omitempty"`
}

// Speech service lifecycle states.
const (
	ServiceStarted   = "started"
	ServiceStopped   = "stopped"
	ServiceCrashed   = "crashed"
	ServiceRecovered = "recovered"
)

// ServiceData reports the speech service lifecycle
type ServiceData struct {
	State string `json:"state"`
}

// Ready reports whether the state means the service can take requests.
func (d ServiceData) Ready() bool {
	return d.State == ServiceStarted || d.State == ServiceRecovered
}

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains the pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
