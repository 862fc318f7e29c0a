package domain

import (
	"context"
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID           string      `json:"_id"`
	FullName     string      `json:"fullName"`
	Email        string      `json:"email"`
	Address      string      `json:"address"`
	Mobile       string      `json:"mobile"`
	Username     string      `json:"username"`
	PasswordHash string      `json:"-"`
	Role         string      `json:"role"`
	LastLogin    *time.Time  `json:"lastLogin"`
	LoginTimes   []time.Time `json:"loginTimes"`
	LogoutTimes  []time.Time `json:"logoutTimes"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Registration register 的入参；Role 为空时按邮箱域名推断
type Registration struct {
	FullName string `json:"fullName" validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
	Address  string `json:"address"  validate:"required"`
	Mobile   string `json:"mobile"   validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"     validate:"omitempty,oneof=user admin"`
}

type Session struct {
	UserID    string
	Username  string
	Role      string
	LoginTime time.Time
}

type SessionKind string

const (
	SessionLogin  SessionKind = "login"
	SessionLogout SessionKind = "logout"
)

type UserRepository interface {
	Transaction(ctx context.Context, fn func(r UserRepository) error) error

	// Create 用户名重复时返回 ErrValidation
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Rename(ctx context.Context, id, username string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	AppendSession(ctx context.Context, id string, kind SessionKind, at time.Time) error
	// Delete 返回是否删除了记录
	Delete(ctx context.Context, id string) (bool, error)
}

// UserUpdate PUT /users/:id；非空的时间戳追加到对应序列
type UserUpdate struct {
	Username   string
	LoginTime  *time.Time
	LogoutTime *time.Time
}
