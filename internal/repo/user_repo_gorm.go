package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"gin-gorm-bookstore/internal/domain"
	"gin-gorm-bookstore/internal/feature/user"
	"gin-gorm-bookstore/pkg/utils"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Transaction(ctx context.Context, fn func(domain.UserRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&UserRepo{db: tx})
	})
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = utils.NewID()
	}
	m := user.UserModel{
		ID:           u.ID,
		FullName:     u.FullName,
		Email:        u.Email,
		Address:      u.Address,
		Mobile:       u.Mobile,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isDupKey(err) {
			return fmt.Errorf("%w: username %q already exists", domain.ErrValidation, u.Username)
		}
		return dbErr("create user", err)
	}
	u.CreatedAt = m.CreatedAt
	u.LoginTimes, u.LogoutTimes = []time.Time{}, []time.Time{}
	return nil
}

func (r *UserRepo) withSessions(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Sessions", func(db *gorm.DB) *gorm.DB { return db.Order("id") })
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

func (r *UserRepo) findOne(ctx context.Context, cond string, arg any) (*domain.User, error) {
	var us []user.UserModel
	if err := r.withSessions(ctx).Where(cond, arg).Limit(1).Find(&us).Error; err != nil {
		return nil, dbErr("find user", err)
	}
	if len(us) == 0 {
		return nil, nil
	}
	u := toUser(&us[0])
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	var us []user.UserModel
	if err := r.withSessions(ctx).Order("id").Find(&us).Error; err != nil {
		return nil, dbErr("list users", err)
	}
	out := make([]domain.User, 0, len(us))
	for i := range us {
		out = append(out, toUser(&us[i]))
	}
	return out, nil
}

func (r *UserRepo) Rename(ctx context.Context, id, username string) error {
	err := r.db.WithContext(ctx).Model(&user.UserModel{}).Where("id = ?", id).Update("username", username).Error
	if err != nil {
		if isDupKey(err) {
			return fmt.Errorf("%w: username %q already exists", domain.ErrValidation, username)
		}
		return dbErr("rename user", err)
	}
	return nil
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&user.UserModel{}).Where("id = ?", id).Update("last_login", at).Error
	return dbErr("touch last login", err)
}

func (r *UserRepo) AppendSession(ctx context.Context, id string, kind domain.SessionKind, at time.Time) error {
	s := user.SessionModel{ID: utils.NewID(), UserID: id, Kind: string(kind), At: at}
	return dbErr("append session", r.db.WithContext(ctx).Create(&s).Error)
}

func (r *UserRepo) Delete(ctx context.Context, id string) (bool, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&user.SessionModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&user.UserModel{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, dbErr("delete user", err)
	}
	return affected > 0, nil
}

func toUser(m *user.UserModel) domain.User {
	u := domain.User{
		ID:           m.ID,
		FullName:     m.FullName,
		Email:        m.Email,
		Address:      m.Address,
		Mobile:       m.Mobile,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Role:         m.Role,
		LastLogin:    m.LastLogin,
		LoginTimes:   []time.Time{},
		LogoutTimes:  []time.Time{},
		CreatedAt:    m.CreatedAt,
	}
	for _, s := range m.Sessions {
		switch domain.SessionKind(s.Kind) {
		case domain.SessionLogin:
			u.LoginTimes = append(u.LoginTimes, s.At)
		case domain.SessionLogout:
			u.LogoutTimes = append(u.LogoutTimes, s.At)
		}
	}
	return u
}
