package protocol

import "fmt"

// NewTapMessage creates a tap message
func NewTapMessage() (*Message, error) {
	return NewMessage(TypeTap, nil)
}

// NewRawTouchMessage creates a raw touch message
func NewRawTouchMessage(action int, sensor string) (*Message, error) {
	return NewMessage(TypeRawTouch, RawTouchData{Action: action, Sensor: sensor})
}

// NewTTSCompleteMessage creates a speech completion message
func NewTTSCompleteMessage(errText string) (*Message, error) {
	return NewMessage(TypeTTSComplete, TTSCompleteData{Error: errText})
}

// NewServiceMessage creates a service lifecycle message
func NewServiceMessage(state string) (*Message, error) {
	return NewMessage(TypeService, ServiceData{State: state})
}

// NewPongMessage answers a ping
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

func (m *Message) expect(t MessageType) error {
	if m.Type != t {
		return fmt.Errorf("protocol: expected %s message, got %s", t, m.Type)
	}
	return nil
}

// GetRawTouchData extracts raw touch data
func (m *Message) GetRawTouchData() (*RawTouchData, error) {
	if err := m.expect(TypeRawTouch); err != nil {
		return nil, err
	}
	var d RawTouchData
	if err := m.ParseData(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetTTSCompleteData extracts speech completion data
func (m *Message) GetTTSCompleteData() (*TTSCompleteData, error) {
	if err := m.expect(TypeTTSComplete); err != nil {
		return nil, err
	}
	var d TTSCompleteData
	if err := m.ParseData(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetServiceData extracts service lifecycle data
func (m *Message) GetServiceData() (*ServiceData, error) {
	if err := m.expect(TypeService); err != nil {
		return nil, err
	}
	var d ServiceData
	if err := m.ParseData(&d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetPingData extracts ping data
func (m *Message) GetPingData() (*PingData, error) {
	if err := m.expect(TypePing); err != nil {
		return nil, err
	}
	var d PingData
	if err := m.ParseData(&d); err != nil {
		return nil, err
	}
	return &d, nil
}
