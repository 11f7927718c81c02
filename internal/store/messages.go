package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/asmorodws/chatapp-nextjs/internal/chat"
	"github.com/asmorodws/chatapp-nextjs/internal/models"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// ErrUnknownUser is returned by Append when the author does not exist.
var ErrUnknownUser = errors.New("unknown user")

// Messages 是基于 gorm 的持久化消息存储，按房间追加、按时间倒序读取。
type Messages struct {
	db *gorm.DB
}

func NewMessages(db *gorm.DB) *Messages {
	return &Messages{db: db}
}

var _ chat.MessageStore = (*Messages)(nil)

// Append stores a message and returns it with its id, timestamp and the
// author's display snapshot.
func (s *Messages) Append(ctx context.Context, m chat.NewMessage) (chat.Message, error) {
	var row models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id", "username").First(&user, "id = ?", m.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w %s", ErrUnknownUser, m.UserID)
			}
			return err
		}
		row = models.Message{
			ID:      ulid.Make().String(),
			RoomID:  m.RoomID,
			UserID:  m.UserID,
			Content: m.Content,
		}
		if err := tx.Omit("User").Create(&row).Error; err != nil {
			return err
		}
		row.User = user
		return nil
	})
	if err != nil {
		return chat.Message{}, err
	}
	return toChat(row), nil
}

// Recent returns the newest limit messages of a room, newest first.
func (s *Messages) Recent(ctx context.Context, roomID string, limit int) ([]chat.Message, error) {
	return s.page(ctx, roomID, "", limit)
}

// Before returns up to limit messages older than beforeID, newest first.
func (s *Messages) Before(ctx context.Context, roomID, beforeID string, limit int) ([]chat.Message, error) {
	return s.page(ctx, roomID, beforeID, limit)
}

func (s *Messages) page(ctx context.Context, roomID, beforeID string, limit int) ([]chat.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	q := s.db.WithContext(ctx).Preload("User", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "username")
	}).Where("room_id = ?", roomID)
	if beforeID != "" {
		q = q.Where("id < ?", beforeID)
	}
	var rows []models.Message
	if err := q.Order("id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, toChat(r))
	}
	return out, nil
}

func toChat(r models.Message) chat.Message {
	return chat.Message{
		ID:        r.ID,
		RoomID:    r.RoomID,
		UserID:    r.UserID,
		Content:   r.Content,
		CreatedAt: r.CreatedAt,
		User:      chat.UserRef{ID: r.User.ID, Username: r.User.Username},
	}
}
