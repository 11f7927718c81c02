package service

import (
	"context"
	"errors"
	"time"

	"github.com/asmorodws/chatapp-nextjs/internal/chat"
	"github.com/asmorodws/chatapp-nextjs/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type onlineCounter interface {
	Online(roomID string) int
}

// RoomService 封装房间目录与成员关系，在线人数来自会话注册表。
type RoomService struct {
	db     *gorm.DB
	online onlineCounter
}

func NewRoomService(db *gorm.DB, online onlineCounter) *RoomService {
	return &RoomService{db: db, online: online}
}

var _ chat.RoomDirectory = (*RoomService)(nil)

// RoomDTO 是对外输出的房间数据。
type RoomDTO struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Online int    `json:"online"`
}

// MemberDTO 是房间成员关系。
type MemberDTO struct {
	RoomID   string       `json:"room_id"`
	User     chat.UserRef `json:"user"`
	JoinedAt time.Time    `json:"joined_at"`
}

// Create 创建新房间，创建者自动成为成员。
func (s *RoomService) Create(name, ownerID string) (*RoomDTO, error) {
	room := models.Room{Name: name, OwnerID: ownerID}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Room{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrRoomNameTaken
		}
		if err := tx.Create(&room).Error; err != nil {
			return err
		}
		return tx.Omit("User").Create(&models.RoomMember{UserID: ownerID, RoomID: room.ID, JoinedAt: time.Now()}).Error
	})
	if err != nil {
		return nil, err
	}
	return &RoomDTO{ID: room.ID, Name: room.Name, Online: 0}, nil
}

// List 返回房间列表，附带各房间的在线连接数。
func (s *RoomService) List(limit int) ([]RoomDTO, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	var rooms []models.Room
	if err := s.db.Order("created_at desc").Limit(limit).Find(&rooms).Error; err != nil {
		return nil, err
	}
	out := make([]RoomDTO, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomDTO{ID: r.ID, Name: r.Name, Online: s.online.Online(r.ID)})
	}
	return out, nil
}

// Exists 检查房间是否存在。
func (s *RoomService) Exists(roomID string) (*models.Room, error) {
	var room models.Room
	if err := s.db.Where("id = ?", roomID).First(&room).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// RoomExists 供聊天核心在 join-room 时校验房间。
func (s *RoomService) RoomExists(ctx context.Context, roomID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Room{}).Where("id = ?", roomID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddMember 记录用户为房间成员。已是成员时返回现有记录，created 为 false。
func (s *RoomService) AddMember(roomID, userID string) (*MemberDTO, bool, error) {
	if _, err := s.Exists(roomID); err != nil {
		return nil, false, err
	}
	var user models.User
	if err := s.db.Select("id", "username").Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrUserNotFound
		}
		return nil, false, err
	}

	m := models.RoomMember{UserID: userID, RoomID: roomID, JoinedAt: time.Now()}
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Omit("User").Create(&m)
	if res.Error != nil {
		return nil, false, res.Error
	}
	created := res.RowsAffected > 0
	if !created {
		if err := s.db.Where("user_id = ? AND room_id = ?", userID, roomID).First(&m).Error; err != nil {
			return nil, false, err
		}
	}
	return &MemberDTO{RoomID: roomID, User: userRef(user), JoinedAt: m.JoinedAt}, created, nil
}

// Members 按加入时间返回房间成员。
func (s *RoomService) Members(roomID string) ([]MemberDTO, error) {
	if _, err := s.Exists(roomID); err != nil {
		return nil, err
	}
	var rows []models.RoomMember
	err := s.db.Preload("User", func(db *gorm.DB) *gorm.DB {
		return db.Select("id", "username")
	}).Where("room_id = ?", roomID).Order("joined_at asc").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]MemberDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, MemberDTO{RoomID: r.RoomID, User: userRef(r.User), JoinedAt: r.JoinedAt})
	}
	return out, nil
}
