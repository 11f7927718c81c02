package cache

import (
	"context"
	"sync"

	"github.com/asmorodws/chatapp-nextjs/internal/chat"
)

// Memory is an in-process recency cache for single-node setups and tests.
type Memory struct {
	mu       sync.Mutex
	rooms    map[string][]chat.Message
	capacity int
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{rooms: make(map[string][]chat.Message), capacity: capacity}
}

var _ chat.RecencyCache = (*Memory)(nil)

func (c *Memory) Push(_ context.Context, roomID string, msg chat.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.rooms[roomID]
	next := make([]chat.Message, 0, min(len(cur)+1, c.capacity))
	next = append(next, msg)
	next = append(next, cur...)
	c.rooms[roomID] = trim(next, c.capacity)
	return nil
}

func (c *Memory) Newest(_ context.Context, roomID string, n int) ([]chat.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.rooms[roomID]
	if n > len(cur) {
		n = len(cur)
	}
	out := make([]chat.Message, n)
	copy(out, cur[:n])
	return out, nil
}

func (c *Memory) Backfill(_ context.Context, roomID string, msgs []chat.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.rooms[roomID]
	var tail *chat.Message
	if len(cur) > 0 {
		tail = &cur[len(cur)-1]
	}
	older := belowTail(msgs, tail)
	if len(older) == 0 {
		return nil
	}
	next := make([]chat.Message, 0, len(cur)+len(older))
	next = append(next, cur...)
	next = append(next, older...)
	c.rooms[roomID] = trim(next, c.capacity)
	return nil
}

func (c *Memory) Invalidate(_ context.Context, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, roomID)
	return nil
}

// Len reports the number of cached entries for a room.
func (c *Memory) Len(roomID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rooms[roomID])
}

func trim(msgs []chat.Message, capacity int) []chat.Message {
	if len(msgs) > capacity {
		return msgs[:capacity]
	}
	return msgs
}

// belowTail keeps the entries of a newest-first slice that are strictly
// older than tail. A nil tail keeps everything.
func belowTail(newestFirst []chat.Message, tail *chat.Message) []chat.Message {
	if tail == nil {
		return newestFirst
	}
	out := make([]chat.Message, 0, len(newestFirst))
	for _, m := range newestFirst {
		if chat.Older(m, *tail) {
			out = append(out, m)
		}
	}
	return out
}
