package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/asmorodws/chatapp-nextjs/internal/chat"
	"github.com/asmorodws/chatapp-nextjs/internal/db"
	"github.com/asmorodws/chatapp-nextjs/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect("sqlite", filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

func createUser(t *testing.T, gdb *gorm.DB, name string) models.User {
	t.Helper()
	u := models.User{Username: name, PasswordHash: "x"}
	require.NoError(t, gdb.Create(&u).Error)
	return u
}

func TestMessages_AppendResolvesUser(t *testing.T) {
	req := require.New(t)
	gdb := setupDB(t)
	alice := createUser(t, gdb, "alice")
	s := NewMessages(gdb)

	msg, err := s.Append(context.Background(), chat.NewMessage{RoomID: "r1", UserID: alice.ID, Content: "hi"})
	req.NoError(err)
	req.NotEmpty(msg.ID)
	req.False(msg.CreatedAt.IsZero())
	req.Equal("r1", msg.RoomID)
	req.Equal(chat.UserRef{ID: alice.ID, Username: "alice"}, msg.User)
}

func TestMessages_AppendUnknownUser(t *testing.T) {
	gdb := setupDB(t)
	s := NewMessages(gdb)

	_, err := s.Append(context.Background(), chat.NewMessage{RoomID: "r1", UserID: "nobody", Content: "hi"})
	require.True(t, errors.Is(err, ErrUnknownUser), "got %v", err)

	var count int64
	gdb.Model(&models.Message{}).Count(&count)
	require.Zero(t, count)
}

func TestMessages_RecentNewestFirst(t *testing.T) {
	req := require.New(t)
	gdb := setupDB(t)
	alice := createUser(t, gdb, "alice")
	s := NewMessages(gdb)
	ctx := context.Background()

	var ids []string
	for _, content := range []string{"m1", "m2", "m3", "m4"} {
		m, err := s.Append(ctx, chat.NewMessage{RoomID: "r1", UserID: alice.ID, Content: content})
		req.NoError(err)
		ids = append(ids, m.ID)
	}
	_, err := s.Append(ctx, chat.NewMessage{RoomID: "other", UserID: alice.ID, Content: "elsewhere"})
	req.NoError(err)

	got, err := s.Recent(ctx, "r1", 3)
	req.NoError(err)
	req.Len(got, 3)
	req.Equal([]string{"m4", "m3", "m2"}, contents(got))
	req.Equal("alice", got[0].User.Username)

	older, err := s.Before(ctx, "r1", ids[2], 10)
	req.NoError(err)
	req.Equal([]string{"m2", "m1"}, contents(older))
}

func TestMessages_RecentEmptyRoom(t *testing.T) {
	s := NewMessages(setupDB(t))
	got, err := s.Recent(context.Background(), "empty", 50)
	require.NoError(t, err)
	require.Empty(t, got)
}

func contents(msgs []chat.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}
