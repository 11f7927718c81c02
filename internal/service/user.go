package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/asmorodws/chatapp-nextjs/internal/auth"
	"github.com/asmorodws/chatapp-nextjs/internal/chat"
	"github.com/asmorodws/chatapp-nextjs/internal/config"
	"github.com/asmorodws/chatapp-nextjs/internal/models"

	"gorm.io/gorm"
)

// UserService 是用户目录：注册、登录与 token 轮换。消息上的用户快照也以它为准。
type UserService struct {
	db  *gorm.DB
	cfg config.Config
}

func NewUserService(db *gorm.DB, cfg config.Config) *UserService {
	return &UserService{db: db, cfg: cfg}
}

// Session 是登录或刷新后下发的 token 对及对应用户。
type Session struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         chat.UserRef `json:"user"`
}

// NormalizeUsername 去掉首尾空白并校验长度。
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 2 || n > 64 {
		return "", ErrInvalidUsername
	}
	return name, nil
}

func checkPassword(pw string) error {
	if len(pw) < 4 || len(pw) > 72 {
		return ErrInvalidPassword
	}
	return nil
}

// Register 创建用户，返回其展示快照。
func (s *UserService) Register(ctx context.Context, username, password string) (chat.UserRef, error) {
	username, err := NormalizeUsername(username)
	if err != nil {
		return chat.UserRef{}, err
	}
	if err := checkPassword(password); err != nil {
		return chat.UserRef{}, err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return chat.UserRef{}, err
	}
	user := models.User{Username: username, PasswordHash: hash}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUsernameTaken
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return chat.UserRef{}, err
	}
	return userRef(user), nil
}

// Login 校验用户名密码并签发 token 对。
func (s *UserService) Login(ctx context.Context, username, password string) (*Session, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(s.db.WithContext(ctx), userRef(user))
}

// RefreshTokens 验证旧 refresh token 并签发新 token 对（旋转刷新）。
func (s *UserService) RefreshTokens(ctx context.Context, oldRT string) (*Session, error) {
	var sess *Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := auth.ValidateRefreshToken(tx, oldRT)
		if err != nil {
			return err
		}
		if err := auth.RevokeRefreshToken(tx, oldRT); err != nil {
			return err
		}
		var user models.User
		if err := tx.Select("id", "username").Where("id = ?", rec.UserID).First(&user).Error; err != nil {
			return err
		}
		sess, err = s.issue(tx, userRef(user))
		return err
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Profile 返回用户的展示快照。
func (s *UserService) Profile(ctx context.Context, userID string) (chat.UserRef, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "username").Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.UserRef{}, ErrUserNotFound
		}
		return chat.UserRef{}, err
	}
	return userRef(user), nil
}

func (s *UserService) issue(tx *gorm.DB, user chat.UserRef) (*Session, error) {
	at, err := auth.GenerateAccessToken(user.ID, s.cfg.JWTSecret, s.cfg.AccessTokenTTLMinutes)
	if err != nil {
		return nil, err
	}
	rt, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	exp := time.Now().Add(time.Duration(s.cfg.RefreshTokenTTLDays) * 24 * time.Hour)
	if err := auth.SaveRefreshToken(tx, user.ID, rt, exp); err != nil {
		return nil, err
	}
	return &Session{AccessToken: at, RefreshToken: rt, User: user}, nil
}

func userRef(u models.User) chat.UserRef {
	return chat.UserRef{ID: u.ID, Username: u.Username}
}
