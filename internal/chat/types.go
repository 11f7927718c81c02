package chat

import (
	"context"
	"time"
)

// UserRef is the display snapshot denormalized onto every message.
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Message is immutable once the durable store has assigned its id.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	User      UserRef   `json:"user"`
}

type NewMessage struct {
	RoomID  string
	UserID  string
	Content string
}

// RoomSession binds one live connection to a user and a room.
type RoomSession struct {
	ConnID   string
	UserID   string
	RoomID   string
	JoinedAt time.Time
}

// MessageStore is the durable, authoritative message history.
type MessageStore interface {
	Append(ctx context.Context, m NewMessage) (Message, error)
	// Recent returns up to limit messages of a room, newest first.
	Recent(ctx context.Context, roomID string, limit int) ([]Message, error)
}

// RecencyCache is a bounded newest-first buffer per room. It is never
// authoritative and may be empty at any time.
type RecencyCache interface {
	// Push puts msg at the head of the room's buffer and trims it to capacity.
	Push(ctx context.Context, roomID string, msg Message) error
	// Newest returns up to n entries starting at the head (newest first).
	Newest(ctx context.Context, roomID string, n int) ([]Message, error)
	// Backfill appends history below the current tail. msgs is newest first;
	// only entries strictly older than the current tail are kept, so nothing
	// pushed concurrently is overwritten or duplicated.
	Backfill(ctx context.Context, roomID string, msgs []Message) error
	// Invalidate drops the room's buffer so the next read goes to the store.
	Invalidate(ctx context.Context, roomID string) error
}

// RoomDirectory answers whether a room exists. Room CRUD lives outside the core.
type RoomDirectory interface {
	RoomExists(ctx context.Context, roomID string) (bool, error)
}

// Deliverer pushes one encoded frame to one live connection.
type Deliverer interface {
	Deliver(connID string, frame []byte) error
}

// Older reports whether a precedes b in append order. Ids are ULIDs, whose
// string order is their creation order.
func Older(a, b Message) bool {
	return a.ID < b.ID
}
