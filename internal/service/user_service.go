package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"gin-gorm-bookstore/internal/domain"
	"gin-gorm-bookstore/pkg/utils"
)

var errUserNotFound = fmt.Errorf("user %w", domain.ErrNotFound)

type UserOptions struct {
	AdminDomains []string // 邮箱属于这些域名且未指定角色时自动为 admin
	BcryptCost   int
	Logger       *zap.Logger
	Now          func() time.Time
}

type UserService struct {
	repo         domain.UserRepository
	adminDomains []string
	cost         int
	log          *zap.Logger
	now          func() time.Time
	validate     *validator.Validate
	dummyHash    string
}

func NewUserService(repo domain.UserRepository, o UserOptions) (*UserService, error) {
	s := &UserService{
		repo:     repo,
		cost:     o.BcryptCost,
		log:      o.Logger,
		now:      o.Now,
		validate: newValidator(),
	}
	for _, d := range o.AdminDomains {
		if d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@")); d != "" {
			s.adminDomains = append(s.adminDomains, d)
		}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	// 用户不存在时也做一次比较，避免通过耗时探测用户名
	h, err := utils.HashPassword("dummy-password", s.cost)
	if err != nil {
		return nil, err
	}
	s.dummyHash = h
	return s, nil
}

// ResolveRole 显式角色优先；否则按邮箱域名推断
func (s *UserService) ResolveRole(email, role string) string {
	if role != "" {
		return role
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, d := range s.adminDomains {
		if strings.HasSuffix(email, "@"+d) {
			return domain.RoleAdmin
		}
	}
	return domain.RoleUser
}

func (s *UserService) Register(ctx context.Context, in domain.Registration) (*domain.User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Address = strings.TrimSpace(in.Address)
	in.Mobile = strings.TrimSpace(in.Mobile)
	in.Username = strings.TrimSpace(in.Username)
	in.Role = strings.TrimSpace(in.Role)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(fieldMessages(err)...)
	}

	hash, err := utils.HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, validationError("password cannot be hashed: " + err.Error())
	}
	u := &domain.User{
		FullName:     in.FullName,
		Email:        in.Email,
		Address:      in.Address,
		Mobile:       in.Mobile,
		Username:     in.Username,
		PasswordHash: hash,
		Role:         s.ResolveRole(in.Email, in.Role),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user registered", zap.String("user_id", u.ID), zap.String("role", u.Role))
	return u, nil
}

// Authenticate 校验成功后记录 lastLogin 与登录流水
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*domain.Session, error) {
	u, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if u == nil {
		utils.CheckPassword(password, s.dummyHash)
		return nil, domain.ErrInvalidCredentials
	}
	if !utils.CheckPassword(password, u.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	at := s.now().UTC()
	err = s.repo.Transaction(ctx, func(tx domain.UserRepository) error {
		if err := tx.TouchLastLogin(ctx, u.ID, at); err != nil {
			return err
		}
		return tx.AppendSession(ctx, u.ID, domain.SessionLogin, at)
	})
	if err != nil {
		return nil, err
	}
	return &domain.Session{Role: u.Role, LoginTime: at, UserID: u.ID, Username: u.Username}, nil
}

func (s *UserService) Logout(ctx context.Context, username string) (time.Time, error) {
	u, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return time.Time{}, err
	}
	if u == nil {
		return time.Time{}, errUserNotFound
	}
	at := s.now().UTC()
	if err := s.repo.AppendSession(ctx, u.ID, domain.SessionLogout, at); err != nil {
		return time.Time{}, err
	}
	return at, nil
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errUserNotFound
	}
	return u, nil
}

func (s *UserService) Update(ctx context.Context, id string, in domain.UserUpdate) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return nil, validationError("username is required")
	}
	err := s.repo.Transaction(ctx, func(tx domain.UserRepository) error {
		u, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if u == nil {
			return errUserNotFound
		}
		if in.Username != u.Username {
			if err := tx.Rename(ctx, id, in.Username); err != nil {
				return err
			}
		}
		if in.LoginTime != nil {
			if err := tx.AppendSession(ctx, id, domain.SessionLogin, in.LoginTime.UTC()); err != nil {
				return err
			}
		}
		if in.LogoutTime != nil {
			if err := tx.AppendSession(ctx, id, domain.SessionLogout, in.LogoutTime.UTC()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	ok, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return errUserNotFound
	}
	s.log.Info("user deleted", zap.String("user_id", id))
	return nil
}
