package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/asmorodws/chatapp-nextjs/internal/chat"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultCapacity = 101
	backfillRetries = 5
)

// Redis keeps each room's recent messages as a JSON list at
// <prefix>room:<id>:messages, newest at index 0.
type Redis struct {
	client   *redis.Client
	prefix   string
	capacity int
}

// Connect parses a redis:// URL and checks the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func NewRedis(client *redis.Client, prefix string, capacity int) *Redis {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Redis{client: client, prefix: prefix, capacity: capacity}
}

var _ chat.RecencyCache = (*Redis)(nil)

func (c *Redis) key(roomID string) string {
	return fmt.Sprintf("%sroom:%s:messages", c.prefix, roomID)
}

// Push runs LPUSH and LTRIM in one MULTI so no reader sees an untrimmed list.
func (c *Redis) Push(ctx context.Context, roomID string, msg chat.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	key := c.key(roomID)
	_, err = c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, key, data)
		p.LTrim(ctx, key, 0, int64(c.capacity-1))
		return nil
	})
	return err
}

func (c *Redis) Newest(ctx context.Context, roomID string, n int) ([]chat.Message, error) {
	if n <= 0 {
		return nil, nil
	}
	vals, err := c.client.LRange(ctx, c.key(roomID), 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	return decodeAll(vals)
}

// Backfill appends older history under the current tail. The tail is read
// under WATCH so a concurrent Push makes the transaction retry instead of
// racing it.
func (c *Redis) Backfill(ctx context.Context, roomID string, msgs []chat.Message) error {
	key := c.key(roomID)
	txf := func(tx *redis.Tx) error {
		var tail *chat.Message
		raw, err := tx.LIndex(ctx, key, -1).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var m chat.Message
			if err := json.Unmarshal([]byte(raw), &m); err != nil {
				return fmt.Errorf("decode tail: %w", err)
			}
			tail = &m
		}

		older := belowTail(msgs, tail)
		if len(older) == 0 {
			return nil
		}
		vals := make([]any, 0, len(older))
		for _, m := range older {
			data, err := json.Marshal(m)
			if err != nil {
				return fmt.Errorf("encode message: %w", err)
			}
			vals = append(vals, data)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.RPush(ctx, key, vals...)
			p.LTrim(ctx, key, 0, int64(c.capacity-1))
			return nil
		})
		return err
	}

	for i := 0; i < backfillRetries; i++ {
		err := c.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return redis.TxFailedErr
}

func (c *Redis) Invalidate(ctx context.Context, roomID string) error {
	return c.client.Del(ctx, c.key(roomID)).Err()
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func decodeAll(vals []string) ([]chat.Message, error) {
	out := make([]chat.Message, 0, len(vals))
	for i, v := range vals {
		var m chat.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("decode entry %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}
