package chat

import (
	"sync"
	"time"

	"github.com/asmorodws/chatapp-nextjs/internal/metrics"
)

type typingKey struct {
	roomID string
	userID string
}

type typingEntry struct {
	connID string
	timer  *time.Timer
}

// TypingNotifier forwards typing transitions. With a zero ttl it keeps no
// state at all. With a positive ttl it remembers each pending typing=true per
// (room, user) and sends the matching false itself if the client never does.
type TypingNotifier struct {
	bc  *Broadcaster
	ttl time.Duration

	mu      sync.Mutex
	pending map[typingKey]*typingEntry
}

func NewTypingNotifier(bc *Broadcaster, ttl time.Duration) *TypingNotifier {
	return &TypingNotifier{bc: bc, ttl: ttl, pending: make(map[typingKey]*typingEntry)}
}

func (n *TypingNotifier) SetTyping(connID, roomID, userID string, isTyping bool) {
	metrics.TypingEvents.Inc()
	n.bc.Broadcast(roomID, typingEvent(roomID, userID, isTyping), connID)
	if n.ttl <= 0 {
		return
	}

	key := typingKey{roomID: roomID, userID: userID}
	n.mu.Lock()
	defer n.mu.Unlock()
	if e, ok := n.pending[key]; ok {
		e.timer.Stop()
		delete(n.pending, key)
	}
	if !isTyping {
		return
	}
	e := &typingEntry{connID: connID}
	e.timer = time.AfterFunc(n.ttl, func() { n.expire(key, e) })
	n.pending[key] = e
}

func (n *TypingNotifier) expire(key typingKey, e *typingEntry) {
	n.mu.Lock()
	if n.pending[key] != e {
		n.mu.Unlock()
		return
	}
	delete(n.pending, key)
	n.mu.Unlock()
	n.bc.Broadcast(key.roomID, typingEvent(key.roomID, key.userID, false), e.connID)
}

// ClearConn stops tracking typing state started by connID and tells the
// room it stopped. Only meaningful when a ttl is configured.
func (n *TypingNotifier) ClearConn(connID string) {
	n.mu.Lock()
	var cleared []typingKey
	for key, e := range n.pending {
		if e.connID == connID {
			e.timer.Stop()
			delete(n.pending, key)
			cleared = append(cleared, key)
		}
	}
	n.mu.Unlock()
	for _, key := range cleared {
		n.bc.Broadcast(key.roomID, typingEvent(key.roomID, key.userID, false), connID)
	}
}

// Pending is the number of typing=true states awaiting their false.
func (n *TypingNotifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}

func (n *TypingNotifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for key, e := range n.pending {
		e.timer.Stop()
		delete(n.pending, key)
	}
}

func typingEvent(roomID, userID string, isTyping bool) Event {
	return Event{Type: EventUserTyping, Data: TypingPayload{RoomID: roomID, UserID: userID, IsTyping: isTyping}}
}
