package ws

import "encoding/json"

// Inbound messages all carry a type discriminator; the hub decodes the rest
// per type. Clients identify once with hello, then issue session ops.
type baseMessage struct {
	Type string `json:"type"`
}

type HelloMessage struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

type CreateMessage struct {
	Type       string          `json:"type"`
	Mode       string          `json:"mode"`
	ScenarioID string          `json:"scenario_id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Capacity   int             `json:"capacity,omitempty"`
	Settings   json.RawMessage `json:"settings,omitempty"`
}

type JoinMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type ReadyMessage struct {
	Type  string `json:"type"`
	Ready bool   `json:"ready"`
}

type KickMessage struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

type SettingsMessage struct {
	Type     string          `json:"type"`
	Settings json.RawMessage `json:"settings"`
}

type ActionMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type ChatMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// OpResult acknowledges one inbound op. Error carries the rejection code on
// failure; Data the op's result (snapshot, action outcome, lobby list).
type OpResult struct {
	Type  string `json:"type"`
	Op    string `json:"op"`
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// Event is the shared-fanout frame: coordinator broadcasts and chat.
type Event struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Data      any    `json:"data,omitempty"`
}

type ChatEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Text      string `json:"text"`
	SentAtMS  int64  `json:"sent_at_ms"`
}
