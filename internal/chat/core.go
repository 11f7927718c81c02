package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

// Conn identifies the connection an inbound event arrived on.
type Conn struct {
	ID     string
	UserID string
}

type Options struct {
	// AnnounceRoomSwitch emits user-left to the old room when a connection
	// joins a different room without leaving first.
	AnnounceRoomSwitch bool
	// TypingTTL > 0 expires a typing=true that never got its false.
	TypingTTL time.Duration
	// Rooms, when set, rejects joins to rooms it does not know.
	Rooms RoomDirectory
}

type handlerFunc func(ctx context.Context, conn Conn, in Inbound) error

// Core wires the registry, message log, broadcaster and typing notifier
// behind one dispatch table. Events from one connection must be dispatched
// sequentially by the caller; different connections may dispatch in parallel.
type Core struct {
	registry *Registry
	messages *MessageLog
	bc       *Broadcaster
	typing   *TypingNotifier
	opts     Options

	handlers map[string]handlerFunc
	now      func() time.Time
}

func New(registry *Registry, messages *MessageLog, out Deliverer, opts Options) *Core {
	bc := NewBroadcaster(registry, out)
	c := &Core{
		registry: registry,
		messages: messages,
		bc:       bc,
		typing:   NewTypingNotifier(bc, opts.TypingTTL),
		opts:     opts,
		now:      time.Now,
	}
	c.handlers = map[string]handlerFunc{
		EventJoinRoom: func(ctx context.Context, conn Conn, in Inbound) error {
			return c.Join(ctx, conn, in.RoomID)
		},
		EventLeaveRoom: func(_ context.Context, conn Conn, _ Inbound) error {
			c.Leave(conn)
			return nil
		},
		EventSendMessage: func(ctx context.Context, conn Conn, in Inbound) error {
			_, err := c.Send(ctx, conn, in.RoomID, in.Content)
			return err
		},
		EventTyping: func(_ context.Context, conn Conn, in Inbound) error {
			return c.SetTyping(conn, in.RoomID, in.IsTyping)
		},
		EventPing: c.ping,
		EventDisconnect: func(_ context.Context, conn Conn, _ Inbound) error {
			c.Disconnect(conn)
			return nil
		},
	}
	return c
}

// Dispatch routes one inbound event. Validation and storage failures are
// reported to the originating connection as an error event and returned.
func (c *Core) Dispatch(ctx context.Context, conn Conn, in Inbound) error {
	h, ok := c.handlers[in.Type]
	if !ok {
		err := invalid("unknown event %q", in.Type)
		c.reportError(conn, err)
		return err
	}
	err := h(ctx, conn, in)
	if err != nil {
		c.reportError(conn, err)
	}
	return err
}

func (c *Core) reportError(conn Conn, err error) {
	reason, ok := clientReason(err)
	if !ok {
		return
	}
	if derr := c.bc.SendTo(conn.ID, Event{Type: EventError, Data: ErrorPayload{Reason: reason}}); derr != nil {
		log.Debug().Err(derr).Str("conn_id", conn.ID).Msg("report error")
	}
}

// Join puts the connection in roomID and announces it to the other members.
func (c *Core) Join(ctx context.Context, conn Conn, roomID string) error {
	if roomID == "" {
		return invalid("missing room id")
	}
	if c.opts.Rooms != nil {
		ok, err := c.opts.Rooms.RoomExists(ctx, roomID)
		if err != nil {
			return &StorageError{Op: "room lookup", Err: err}
		}
		if !ok {
			return invalid("room not found")
		}
	}

	res, err := c.registry.Join(conn.ID, conn.UserID, roomID)
	if err != nil {
		return err
	}
	if !res.Joined {
		return nil
	}
	if prev := res.Previous; prev != nil {
		c.typing.ClearConn(conn.ID)
		if c.opts.AnnounceRoomSwitch {
			c.bc.Broadcast(prev.RoomID, presenceEvent(EventUserLeft, *prev), conn.ID)
		}
	}
	log.Debug().Str("conn_id", conn.ID).Str("user_id", conn.UserID).Str("room_id", roomID).Msg("joined room")
	c.bc.Broadcast(roomID, presenceEvent(EventUserJoined, res.Session), conn.ID)
	return nil
}

// Leave removes the connection from its room. It is a no-op without a session.
func (c *Core) Leave(conn Conn) {
	c.typing.ClearConn(conn.ID)
	s, ok := c.registry.Leave(conn.ID)
	if !ok {
		return
	}
	log.Debug().Str("conn_id", conn.ID).Str("user_id", s.UserID).Str("room_id", s.RoomID).Msg("left room")
	c.bc.Broadcast(s.RoomID, presenceEvent(EventUserLeft, s), conn.ID)
}

// Disconnect releases everything the connection held. The session is gone
// before Disconnect returns, so later broadcasts cannot reach it.
func (c *Core) Disconnect(conn Conn) {
	c.Leave(conn)
}

// Send stores a message and echoes it to the whole room, sender included.
func (c *Core) Send(ctx context.Context, conn Conn, roomID, content string) (Message, error) {
	roomID = c.roomFor(conn, roomID)
	msg, err := c.messages.Send(ctx, roomID, conn.UserID, content)
	if err != nil {
		return Message{}, err
	}
	c.bc.BroadcastAll(msg.RoomID, Event{Type: EventNewMessage, Data: msg})
	return msg, nil
}

// SetTyping forwards a typing transition to the rest of the room.
func (c *Core) SetTyping(conn Conn, roomID string, isTyping bool) error {
	roomID = c.roomFor(conn, roomID)
	if roomID == "" {
		return invalid("missing room id")
	}
	c.typing.SetTyping(conn.ID, roomID, conn.UserID, isTyping)
	return nil
}

// History is the chronological recent history of a room.
func (c *Core) History(ctx context.Context, roomID string) ([]Message, error) {
	return c.messages.RecentHistory(ctx, roomID)
}

func (c *Core) Online(roomID string) int { return c.registry.Online(roomID) }

func (c *Core) Close() { c.typing.Close() }

func (c *Core) ping(_ context.Context, conn Conn, in Inbound) error {
	data := map[string]any{}
	if len(in.Data) > 0 {
		// Non-object payloads are echoed under "data".
		if err := json.Unmarshal(in.Data, &data); err != nil {
			data = map[string]any{"data": in.Data}
		}
	}
	if data == nil {
		data = map[string]any{}
	}
	data["server_time"] = c.now().UnixMilli()
	return c.bc.SendTo(conn.ID, Event{Type: EventPong, Data: data})
}

// roomFor defaults an empty room id to the connection's current room.
func (c *Core) roomFor(conn Conn, roomID string) string {
	if roomID != "" {
		return roomID
	}
	if s, ok := c.registry.Session(conn.ID); ok {
		return s.RoomID
	}
	return ""
}

func presenceEvent(kind string, s RoomSession) Event {
	return Event{Type: kind, Data: PresencePayload{UserID: s.UserID, ConnID: s.ConnID, RoomID: s.RoomID}}
}
