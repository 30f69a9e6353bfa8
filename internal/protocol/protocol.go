// Package protocol defines the messages exchanged over the control API's
// event stream.
package protocol

import "encoding/json"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeState is sent by the server with the full status after every change
	TypeState MessageType = "state"

	// TypeLog carries one encoded log line
	TypeLog MessageType = "log"

	// TypeAction is sent by a client to toggle an action
	TypeAction MessageType = "action"

	// TypeSelectProfile is sent by a client to select or step the profile
	TypeSelectProfile MessageType = "select_profile"

	// TypeError reports a rejected client message
	TypeError MessageType = "error"

	// TypePing can be used for application-level heartbeats if needed
	TypePing MessageType = "ping"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload into a Message.
func NewMessage(t MessageType, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: raw}, nil
}

// Status is the payload for TypeState and the body of GET /api/status
type Status struct {
	FireEnabled      bool              `json:"fire_enabled"`
	FlashMode        bool              `json:"flash_mode"`
	AutoClickEnabled bool              `json:"auto_click_enabled"`
	PressKeyEnabled  bool              `json:"press_key_enabled"`
	PressKeyChar     string            `json:"press_key_char"`
	ClickDelay       int               `json:"click_delay"`
	ClickRand        int               `json:"click_rand"`
	KeyBindings      map[string]string `json:"key_bindings"`
	CurrentWeapon    string            `json:"current_weapon"`
	Profiles         []string          `json:"profiles"`
	Shooting         bool              `json:"shooting"`
	Clicking         bool              `json:"clicking"`
	LeftHeld         bool              `json:"left_held"`
	RightHeld        bool              `json:"right_held"`
	Backend          string            `json:"backend"`
}

// ActionPayload is the payload for TypeAction. A nil Enabled toggles.
type ActionPayload struct {
	Action  string `json:"action"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// SelectProfilePayload is the payload for TypeSelectProfile. Name wins over
// Index, which wins over Delta.
type SelectProfilePayload struct {
	Name  string `json:"name,omitempty"`
	Index *int   `json:"index,omitempty"`
	Delta int    `json:"delta,omitempty"`
}

// ErrorPayload is the payload for TypeError
type ErrorPayload struct {
	Error string `json:"error"`
}
