package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gin-gorm-bookstore/internal/core/auth"
	"gin-gorm-bookstore/internal/core/server"
	"gin-gorm-bookstore/internal/transport/http/handler"
	mdw "gin-gorm-bookstore/internal/transport/http/middleware"
)

// Deps 两个引擎共用的依赖
type Deps struct {
	Logger  *zap.Logger
	Catalog handler.CatalogService
	Users   handler.UserService
	JWT     *auth.JWTer

	Mode           string
	CORSOrigins    []string
	RequestTimeout time.Duration
	LoginRPS       float64
	LoginBurst     int
}

func (d Deps) timeout() time.Duration {
	if d.RequestTimeout <= 0 {
		return 10 * time.Second
	}
	return d.RequestTimeout
}

func newBase(d Deps) *gin.Engine {
	r := server.NewRouter(d.Logger, server.Options{Mode: d.Mode, CORSOrigins: d.CORSOrigins})

	// 中间件
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(16<<20),
		mdw.Timeout(d.timeout()),
		mdw.Metrics(),
		mdw.AccessLog(d.Logger),
	)

	// 健康检查 / 指标
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", mdw.MetricsHandler())
	return r
}

// NewAPIEngine 用户端：/api/auth
func NewAPIEngine(d Deps) *gin.Engine {
	r := newBase(d)

	var loginMW []gin.HandlerFunc
	if d.LoginRPS > 0 {
		burst := d.LoginBurst
		if burst <= 0 {
			burst = 1
		}
		loginMW = append(loginMW, mdw.RateLimitPerIP(rate.Limit(d.LoginRPS), burst, 10*time.Minute))
	}

	reg := &Registry{}
	reg.Register(
		handler.NewUserHandler(d.Users, d.JWT, loginMW...),
		handler.NewCatalogHandler(d.Catalog),
	)
	reg.MountAllAPI(r.Group("/api/auth"))
	return r
}
