package chat

import "encoding/json"

// Inbound event kinds.
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"
	EventTyping      = "typing"
	EventPing        = "ping"
	EventDisconnect  = "disconnect"
)

// Outbound event kinds.
const (
	EventUserJoined = "user-joined"
	EventUserLeft   = "user-left"
	EventNewMessage = "new-message"
	EventUserTyping = "user-typing"
	EventError      = "error"
	EventPong       = "pong"
)

// Event is the outbound envelope written to a connection.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Inbound is one decoded client frame. user_id is never trusted; the
// connection's authenticated user is used instead.
type Inbound struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"room_id,omitempty"`
	Content  string          `json:"content,omitempty"`
	IsTyping bool            `json:"is_typing,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type PresencePayload struct {
	UserID string `json:"user_id"`
	ConnID string `json:"conn_id"`
	RoomID string `json:"room_id"`
}

type TypingPayload struct {
	RoomID   string `json:"room_id"`
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

type ErrorPayload struct {
	Reason string `json:"reason"`
}
