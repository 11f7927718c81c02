package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

type Room struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"uniqueIndex;size:128;not null"`
	OwnerID   string `gorm:"size:36;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Room) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// RoomMember records that a user belongs to a room. It is directory data and
// has nothing to do with live presence.
type RoomMember struct {
	UserID   string `gorm:"primaryKey;size:36"`
	RoomID   string `gorm:"primaryKey;size:36"`
	JoinedAt time.Time
	User     User `gorm:"foreignKey:UserID"`
}

// Message ids are ULIDs assigned by the store, so ordering by id is ordering
// by append time.
type Message struct {
	ID        string `gorm:"primaryKey;size:26"`
	RoomID    string `gorm:"index:idx_msg_room_id;size:36;not null"`
	UserID    string `gorm:"index;size:36;not null"`
	Content   string `gorm:"type:text;not null"`
	CreatedAt time.Time
	User      User `gorm:"foreignKey:UserID"`
}

type RefreshToken struct {
	ID        uint       `gorm:"primaryKey"`
	UserID    string     `gorm:"index;size:36;not null"`
	Token     string     `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time  `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}
