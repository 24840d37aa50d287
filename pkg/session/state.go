package session

import (
	"fmt"
	"strings"
)

// State is the controller's session state.
type State int

const (
	IdlePrompt State = iota
	Listening
	Uploading
	Speaking
	Terminated
)

func (s State) String() string {
	switch s {
	case IdlePrompt:
		return "idle_prompt"
	case Listening:
		return "listening"
	case Uploading:
		return "uploading"
	case Speaking:
		return "speaking"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "idle_prompt":
		*s = IdlePrompt
	case "listening":
		*s = Listening
	case "uploading":
		*s = Uploading
	case "speaking":
		*s = Speaking
	case "terminated":
		*s = Terminated
	default:
		return fmt.Errorf("session: unknown state %q", b)
	}
	return nil
}
