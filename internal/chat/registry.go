package chat

import (
	"sync"
	"time"

	"github.com/asmorodws/chatapp-nextjs/internal/metrics"
)

// Registry is the single owner of live room membership. A connection is in
// at most one room; the per-room index is kept in step with the sessions
// under one lock so readers never see the two disagree.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]RoomSession
	rooms    map[string]map[string]struct{}
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]RoomSession),
		rooms:    make(map[string]map[string]struct{}),
		now:      time.Now,
	}
}

// JoinResult describes what a Join changed.
type JoinResult struct {
	Session RoomSession
	// Previous is set when the connection was moved out of another room.
	Previous *RoomSession
	// Joined is false when the connection was already in the room.
	Joined bool
}

func (r *Registry) Join(connID, userID, roomID string) (JoinResult, error) {
	if connID == "" {
		return JoinResult{}, invalid("missing connection id")
	}
	if roomID == "" {
		return JoinResult{}, invalid("missing room id")
	}
	if userID == "" {
		return JoinResult{}, invalid("missing user id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var res JoinResult
	if cur, ok := r.sessions[connID]; ok {
		if cur.RoomID == roomID {
			cur.UserID = userID
			r.sessions[connID] = cur
			return JoinResult{Session: cur}, nil
		}
		r.removeLocked(cur)
		prev := cur
		res.Previous = &prev
	}

	s := RoomSession{ConnID: connID, UserID: userID, RoomID: roomID, JoinedAt: r.now()}
	r.sessions[connID] = s
	members := r.rooms[roomID]
	if members == nil {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	members[connID] = struct{}{}
	metrics.RoomSessions.Set(float64(len(r.sessions)))

	res.Session = s
	res.Joined = true
	return res, nil
}

// Leave drops the connection's session. ok is false if it had none.
func (r *Registry) Leave(connID string) (RoomSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return RoomSession{}, false
	}
	r.removeLocked(s)
	metrics.RoomSessions.Set(float64(len(r.sessions)))
	return s, true
}

func (r *Registry) removeLocked(s RoomSession) {
	delete(r.sessions, s.ConnID)
	if members := r.rooms[s.RoomID]; members != nil {
		delete(members, s.ConnID)
		if len(members) == 0 {
			delete(r.rooms, s.RoomID)
		}
	}
}

// MembersOf returns a snapshot of the connections joined to roomID.
func (r *Registry) MembersOf(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.rooms[roomID]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

func (r *Registry) Session(connID string) (RoomSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	return s, ok
}

// Online is the number of live connections in roomID.
func (r *Registry) Online(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}
