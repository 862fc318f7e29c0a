package user

import (
	"time"
)

type UserModel struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)"`
	FullName     string     `gorm:"size:128;not null"`
	Email        string     `gorm:"size:255;not null"`
	Address      string     `gorm:"size:255;not null"`
	Mobile       string     `gorm:"size:32;not null"`
	Username     string     `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string     `gorm:"size:100;not null"`
	Role         string     `gorm:"size:16;not null;default:user"`
	LastLogin    *time.Time `gorm:"index"`

	Sessions []SessionModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string { return "users" }

// SessionModel 登录/登出流水，只追加
type SessionModel struct {
	ID     string    `gorm:"primaryKey;type:varchar(36)"`
	UserID string    `gorm:"index:idx_session_user_kind;type:varchar(36);not null"`
	Kind   string    `gorm:"index:idx_session_user_kind;size:8;not null"`
	At     time.Time `gorm:"not null"`
}

func (SessionModel) TableName() string { return "user_sessions" }

// Models AutoMigrate 用
func Models() []any { return []any{&UserModel{}, &SessionModel{}} }
