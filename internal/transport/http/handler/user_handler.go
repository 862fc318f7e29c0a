package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gin-gorm-bookstore/internal/domain"
	httpez "gin-gorm-bookstore/internal/transport/http/ez"
	resp "gin-gorm-bookstore/internal/transport/http/response"
)

// UserService 由 *service.UserService 实现
type UserService interface {
	Register(ctx context.Context, in domain.Registration) (*domain.User, error)
	Authenticate(ctx context.Context, username, password string) (*domain.Session, error)
	Logout(ctx context.Context, username string) (time.Time, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, id string, in domain.UserUpdate) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}

// TokenIssuer 由 *auth.JWTer 实现
type TokenIssuer interface {
	Issue(uid, username, role string) (string, time.Time, error)
}

type UserHandler struct {
	svc    UserService
	tokens TokenIssuer
	// 登录接口额外挂载的中间件（按 IP 限速等）
	loginMiddlewares []gin.HandlerFunc
}

func NewUserHandler(svc UserService, tokens TokenIssuer, loginMiddlewares ...gin.HandlerFunc) *UserHandler {
	return &UserHandler{svc: svc, tokens: tokens, loginMiddlewares: loginMiddlewares}
}

type registerOut struct {
	Message string       `json:"message"`
	User    *domain.User `json:"user"`
}

type loginIn struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginOut struct {
	Redirect  string    `json:"redirect"`
	LoginTime time.Time `json:"loginTime"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type logoutIn struct {
	Username string `json:"username"`
}

type logoutOut struct {
	Message    string    `json:"message"`
	LogoutTime time.Time `json:"logoutTime"`
}

type userIDIn struct {
	ID string `uri:"id"`
}

type updateUserIn struct {
	ID         string    `uri:"id" json:"-"`
	Username   string    `json:"username"`
	LoginTime  Timestamp `json:"loginTime"`
	LogoutTime Timestamp `json:"logoutTime"`
}

type userOut struct {
	Message string       `json:"message"`
	User    *domain.User `json:"user"`
}

func dashboardFor(role string) string {
	if role == domain.RoleAdmin {
		return "/admin-dashboard"
	}
	return "/user-dashboard"
}

func (h *UserHandler) MountAPI(g *gin.RouterGroup) {
	ez := httpez.New(g)

	httpez.RegisterAction(ez, httpez.Action[domain.Registration, registerOut]{
		Method: http.MethodPost,
		Path:   "/register",
		Binder: httpez.BindJSON,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *domain.Registration) (registerOut, error) {
			u, err := h.svc.Register(c.Request.Context(), *in)
			if err != nil {
				return registerOut{}, err
			}
			return registerOut{Message: "User registered successfully", User: u}, nil
		},
	})

	httpez.RegisterAction(ez, httpez.Action[loginIn, loginOut]{
		Method:      http.MethodPost,
		Path:        "/login",
		Binder:      httpez.BindJSON,
		Middlewares: h.loginMiddlewares,
		Handler: func(c *gin.Context, in *loginIn) (loginOut, error) {
			s, err := h.svc.Authenticate(c.Request.Context(), in.Username, in.Password)
			if err != nil {
				return loginOut{}, err
			}
			tok, exp, err := h.tokens.Issue(s.UserID, s.Username, s.Role)
			if err != nil {
				return loginOut{}, httpez.Internal("issue token failed", err)
			}
			return loginOut{
				Redirect:  dashboardFor(s.Role),
				LoginTime: s.LoginTime,
				Token:     tok,
				ExpiresAt: exp,
			}, nil
		},
	})

	httpez.RegisterAction(ez, httpez.Action[logoutIn, logoutOut]{
		Method: http.MethodPost,
		Path:   "/logout",
		Binder: httpez.BindJSON,
		Handler: func(c *gin.Context, in *logoutIn) (logoutOut, error) {
			at, err := h.svc.Logout(c.Request.Context(), in.Username)
			if err != nil {
				return logoutOut{}, err
			}
			return logoutOut{Message: "Logged out", LogoutTime: at}, nil
		},
	})

	h.mountUserAdmin(ez, false)

	httpez.RegisterAction(ez, httpez.Action[updateUserIn, userOut]{
		Method: http.MethodPut,
		Path:   "/users/:id",
		Binder: httpez.BindURIJSON,
		Handler: func(c *gin.Context, in *updateUserIn) (userOut, error) {
			u, err := h.svc.Update(c.Request.Context(), in.ID, domain.UserUpdate{
				Username:   in.Username,
				LoginTime:  in.LoginTime.Ptr(),
				LogoutTime: in.LogoutTime.Ptr(),
			})
			if err != nil {
				return userOut{}, err
			}
			return userOut{Message: "User updated successfully", User: u}, nil
		},
	})
}

// MountAdmin 管理端：用户列表与删除
func (h *UserHandler) MountAdmin(g *gin.RouterGroup) {
	h.mountUserAdmin(httpez.New(g), true)
}

// mountUserAdmin GET /users 与 DELETE /users/:id，两个引擎共用
func (h *UserHandler) mountUserAdmin(ez httpez.EZ, adminOnly bool) {
	var roles []string
	if adminOnly {
		roles = []string{domain.RoleAdmin}
	}

	httpez.RegisterAction(ez, httpez.Action[struct{}, []domain.User]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: httpez.BindNone,
		Auth:   adminOnly,
		Roles:  roles,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.User, error) {
			return h.svc.List(c.Request.Context())
		},
	})

	httpez.RegisterAction(ez, httpez.Action[userIDIn, resp.Msg]{
		Method: http.MethodDelete,
		Path:   "/users/:id",
		Binder: httpez.BindURI,
		Auth:   adminOnly,
		Roles:  roles,
		Handler: func(c *gin.Context, in *userIDIn) (resp.Msg, error) {
			if err := h.svc.Delete(c.Request.Context(), in.ID); err != nil {
				return resp.Msg{}, err
			}
			return resp.Message("User deleted successfully"), nil
		},
	})
}

func (h *UserHandler) Priority() int { return 10 }
