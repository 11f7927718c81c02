package chat

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/asmorodws/chatapp-nextjs/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultHistoryWindow = 50
	MaxContentLength     = 4000
)

// MessageLog is the read/write path for room history. The durable store is
// the truth; the recency cache is a best-effort newest-first prefix of it.
//
// Sends to one room are serialized from append through cache push, so the
// cache sees messages in the same order the store accepted them.
type MessageLog struct {
	store  MessageStore
	cache  RecencyCache
	window int

	locks *roomLocks
	sf    singleflight.Group

	// dirty holds rooms whose cache could be neither updated nor dropped.
	// Marks are set and cleared under the room lock.
	dirtyMu sync.Mutex
	dirty   map[string]struct{}
}

func NewMessageLog(store MessageStore, cache RecencyCache, window int) *MessageLog {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	return &MessageLog{store: store, cache: cache, window: window, locks: newRoomLocks(), dirty: make(map[string]struct{})}
}

// Send validates, persists, then caches a message. Only a failed append
// fails the call; a cache failure is logged and the stored message returned.
func (l *MessageLog) Send(ctx context.Context, roomID, userID, content string) (Message, error) {
	if roomID == "" {
		return Message{}, invalid("missing room id")
	}
	if userID == "" {
		return Message{}, invalid("missing user id")
	}
	if strings.TrimSpace(content) == "" {
		return Message{}, invalid("message content is empty")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return Message{}, invalid("message content is too long")
	}

	unlock := l.locks.lock(roomID)
	defer unlock()

	// Once started the append runs to completion even if the caller goes away.
	msg, err := l.store.Append(context.WithoutCancel(ctx), NewMessage{RoomID: roomID, UserID: userID, Content: content})
	if err != nil {
		return Message{}, &StorageError{Op: "append", Err: err}
	}
	switch {
	case l.isDirty(roomID):
		// The cached list may be missing earlier messages. Drop it and let
		// the next read repopulate from the store instead of pushing on top.
		l.settle(ctx, roomID)
	default:
		if err := l.cache.Push(ctx, roomID, msg); err != nil {
			cerr := &CacheError{Op: "push", Err: err}
			log.Warn().Err(cerr).Str("room_id", roomID).Str("message_id", msg.ID).Msg("cache write skipped")
			// A missing head would leave a gap; better an empty cache than a wrong one.
			if err := l.cache.Invalidate(ctx, roomID); err != nil {
				log.Warn().Err(&CacheError{Op: "invalidate", Err: err}).Str("room_id", roomID).Msg("cache marked dirty")
				l.markDirty(roomID)
			}
		}
	}
	metrics.WsMessagesTotal.Inc()
	return msg, nil
}

// RecentHistory returns up to the window size of the newest messages in
// chronological order. A non-empty cache answers alone; otherwise the store
// is read and the cache backfilled from it.
func (l *MessageLog) RecentHistory(ctx context.Context, roomID string) ([]Message, error) {
	if roomID == "" {
		return nil, invalid("missing room id")
	}

	var cached []Message
	var err error
	if !l.isDirty(roomID) {
		cached, err = l.cache.Newest(ctx, roomID, l.window)
	}
	switch {
	case err != nil:
		metrics.HistoryCache.WithLabelValues("error").Inc()
		log.Warn().Err(&CacheError{Op: "read", Err: err}).Str("room_id", roomID).Msg("history falls back to store")
	case len(cached) > 0:
		metrics.HistoryCache.WithLabelValues("hit").Inc()
		return chronological(cached), nil
	default:
		metrics.HistoryCache.WithLabelValues("miss").Inc()
	}

	v, err, _ := l.sf.Do(roomID, func() (any, error) {
		// The flight is shared; no single caller's cancel applies to it.
		ctx := context.WithoutCancel(ctx)
		msgs, err := l.store.Recent(ctx, roomID, l.window)
		if err != nil {
			return nil, &StorageError{Op: "recent", Err: err}
		}
		if len(msgs) > 0 {
			l.backfill(ctx, roomID, msgs)
		}
		return msgs, nil
	})
	if err != nil {
		return nil, err
	}
	return chronological(v.([]Message)), nil
}

// backfill holds the room lock so a send whose append the read already saw
// has finished its cache push before the backfill looks at the tail.
func (l *MessageLog) backfill(ctx context.Context, roomID string, newestFirst []Message) {
	unlock := l.locks.lock(roomID)
	defer unlock()
	if l.isDirty(roomID) && !l.settle(ctx, roomID) {
		return
	}
	if err := l.cache.Backfill(ctx, roomID, newestFirst); err != nil {
		log.Warn().Err(&CacheError{Op: "backfill", Err: err}).Str("room_id", roomID).Msg("cache repopulation skipped")
	}
}

// settle retries dropping a dirty room's cache and clears the mark on
// success. Callers hold the room lock.
func (l *MessageLog) settle(ctx context.Context, roomID string) bool {
	if err := l.cache.Invalidate(ctx, roomID); err != nil {
		log.Warn().Err(&CacheError{Op: "invalidate", Err: err}).Str("room_id", roomID).Msg("cache still dirty")
		return false
	}
	l.dirtyMu.Lock()
	delete(l.dirty, roomID)
	l.dirtyMu.Unlock()
	return true
}

func (l *MessageLog) markDirty(roomID string) {
	l.dirtyMu.Lock()
	l.dirty[roomID] = struct{}{}
	l.dirtyMu.Unlock()
}

func (l *MessageLog) isDirty(roomID string) bool {
	l.dirtyMu.Lock()
	defer l.dirtyMu.Unlock()
	_, ok := l.dirty[roomID]
	return ok
}

// chronological returns a reversed copy of a newest-first slice. Callers of
// a shared singleflight result must not see each other's mutations.
func chronological(newestFirst []Message) []Message {
	out := make([]Message, len(newestFirst))
	for i, m := range newestFirst {
		out[len(newestFirst)-1-i] = m
	}
	return out
}
