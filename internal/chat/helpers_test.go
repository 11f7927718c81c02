package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asmorodws/chatapp-nextjs/internal/cache"
	"github.com/asmorodws/chatapp-nextjs/internal/chat"
)

// memStore is a durable store double with ordered ids.
type memStore struct {
	mu          sync.Mutex
	seq         int
	msgs        []chat.Message
	appendErr   error
	recentErr   error
	recentCalls int
	appends     int
}

func (s *memStore) Append(_ context.Context, m chat.NewMessage) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return chat.Message{}, s.appendErr
	}
	s.seq++
	s.appends++
	msg := chat.Message{
		ID:        fmt.Sprintf("m%06d", s.seq),
		RoomID:    m.RoomID,
		UserID:    m.UserID,
		Content:   m.Content,
		CreatedAt: time.Unix(int64(s.seq), 0).UTC(),
		User:      chat.UserRef{ID: m.UserID, Username: "name-" + m.UserID},
	}
	s.msgs = append(s.msgs, msg)
	return msg, nil
}

func (s *memStore) Recent(_ context.Context, roomID string, limit int) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recentCalls++
	if s.recentErr != nil {
		return nil, s.recentErr
	}
	var out []chat.Message
	for i := len(s.msgs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.msgs[i].RoomID == roomID {
			out = append(out, s.msgs[i])
		}
	}
	return out, nil
}

func (s *memStore) calls() (appends, recent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends, s.recentCalls
}

// flakyCache wraps the in-process cache with switchable failures.
type flakyCache struct {
	*cache.Memory
	mu      sync.Mutex
	pushErr error
	readErr error
	dropErr error
}

func (c *flakyCache) fail(push, read error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushErr, c.readErr = push, read
}

// failInvalidate makes Invalidate fail as well, like a cache that is fully down.
func (c *flakyCache) failInvalidate(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropErr = err
}

func (c *flakyCache) Invalidate(ctx context.Context, roomID string) error {
	c.mu.Lock()
	err := c.dropErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.Memory.Invalidate(ctx, roomID)
}

func (c *flakyCache) Push(ctx context.Context, roomID string, m chat.Message) error {
	c.mu.Lock()
	err := c.pushErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.Memory.Push(ctx, roomID, m)
}

func (c *flakyCache) Newest(ctx context.Context, roomID string, n int) ([]chat.Message, error) {
	c.mu.Lock()
	err := c.readErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.Memory.Newest(ctx, roomID, n)
}

var errDown = errors.New("backend down")

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// recorder is a Deliverer that keeps every frame per connection.
type recorder struct {
	mu     sync.Mutex
	frames map[string][]frame
	broken map[string]bool
}

func newRecorder() *recorder {
	return &recorder{frames: map[string][]frame{}, broken: map[string]bool{}}
}

func (r *recorder) Deliver(connID string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broken[connID] {
		return chat.ErrConnGone
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	r.frames[connID] = append(r.frames[connID], f)
	return nil
}

func (r *recorder) breakConn(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broken[connID] = true
}

func (r *recorder) of(connID string) []frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]frame(nil), r.frames[connID]...)
}

func (r *recorder) types(connID string) []string {
	var out []string
	for _, f := range r.of(connID) {
		out = append(out, f.Type)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = map[string][]frame{}
}

type fixture struct {
	core  *chat.Core
	log   *chat.MessageLog
	store *memStore
	cache *flakyCache
	out   *recorder
}

func newFixture(opts chat.Options) *fixture {
	store := &memStore{}
	c := &flakyCache{Memory: cache.NewMemory(101)}
	ml := chat.NewMessageLog(store, c, 50)
	out := newRecorder()
	core := chat.New(chat.NewRegistry(), ml, out, opts)
	return &fixture{core: core, log: ml, store: store, cache: c, out: out}
}
