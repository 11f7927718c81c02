package service

import (
	"context"

	"github.com/asmorodws/chatapp-nextjs/internal/chat"
)

type historyReader interface {
	History(ctx context.Context, roomID string) ([]chat.Message, error)
}

type pageReader interface {
	Before(ctx context.Context, roomID, beforeID string, limit int) ([]chat.Message, error)
}

// MessageService 提供房间历史消息读取：最近一页走缓存，更早的分页直接查库。
type MessageService struct {
	recent historyReader
	pages  pageReader
}

func NewMessageService(recent historyReader, pages pageReader) *MessageService {
	return &MessageService{recent: recent, pages: pages}
}

// ListByRoom 返回按时间升序的消息。beforeID 为空时返回最近窗口内的最多 limit 条。
func (s *MessageService) ListByRoom(ctx context.Context, roomID string, limit int, beforeID string) ([]chat.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if beforeID == "" {
		msgs, err := s.recent.History(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if len(msgs) > limit {
			msgs = msgs[len(msgs)-limit:]
		}
		return nonNil(msgs), nil
	}

	msgs, err := s.pages.Before(ctx, roomID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	// 反转为升序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return nonNil(msgs), nil
}

// nonNil 保证 JSON 输出为 [] 而不是 null。
func nonNil(msgs []chat.Message) []chat.Message {
	if msgs == nil {
		return []chat.Message{}
	}
	return msgs
}
