// Package app 两个二进制共用的装配逻辑：配置 -> 日志/DB/缓存/追踪 -> 仓储 -> 服务
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"gin-gorm-bookstore/internal/core/auth"
	"gin-gorm-bookstore/internal/core/cache"
	"gin-gorm-bookstore/internal/core/config"
	"gin-gorm-bookstore/internal/core/database"
	"gin-gorm-bookstore/internal/core/logger"
	"gin-gorm-bookstore/internal/core/server"
	"gin-gorm-bookstore/internal/core/tracing"
	"gin-gorm-bookstore/internal/feature/catalog"
	"gin-gorm-bookstore/internal/feature/user"
	"gin-gorm-bookstore/internal/repo"
	"gin-gorm-bookstore/internal/service"
	"gin-gorm-bookstore/internal/transport/http/router"
)

const devSecret = "dev-only-secret-change-me"

type App struct {
	Config  *config.Config
	Log     *zap.Logger
	DB      *gorm.DB
	Cache   *cache.Cache // 未配置 redis 时为 nil
	JWT     *auth.JWTer
	Catalog *service.CatalogService
	Users   *service.UserService

	closers []func(context.Context) error
}

// NewLogger 按配置构造 logger，component 区分 api / admin 进程
func NewLogger(cfg *config.Config, component string) (*zap.Logger, func()) {
	opt := logger.Options{
		Level:   cfg.Log.Level,
		JSON:    cfg.Log.JSON,
		Service: cfg.App.Name + "-" + component,
		Env:     cfg.App.Env,
		Sampling: logger.Sampling{
			Initial:    cfg.Log.Sampling.Initial,
			Thereafter: cfg.Log.Sampling.Thereafter,
		},
	}
	if f := cfg.Log.File; f.Enable {
		opt.File = logger.File{
			Filename:   f.Filename,
			MaxSizeMB:  f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAgeDays: f.MaxAgeDays,
			Compress:   f.Compress,
		}
	}
	return logger.New(opt)
}

// Build 打开所有依赖；出错时已打开的资源会被关闭
func Build(ctx context.Context, cfg *config.Config, l *zap.Logger) (a *App, err error) {
	a = &App{Config: cfg, Log: l}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
			a = nil
		}
	}()

	gormLog, err := logger.ToStdLogger(l.Named("gorm"), zapcore.WarnLevel)
	if err != nil {
		return nil, err
	}
	a.DB, err = database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Logger:             gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return database.Close(a.DB) })
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))

	// 自动迁移
	if cfg.DB.AutoMigrate {
		models := append(catalog.Models(), user.Models()...)
		if err := a.DB.WithContext(ctx).AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("automigrate: %w", err)
		}
		l.Info("automigrate done")
	}

	if cfg.Redis.Addr != "" {
		c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		c.Prefix = cfg.App.Name + ":"
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		perr := c.Ping(pctx)
		cancel()
		if perr != nil {
			// 缓存只是加速，redis 不可用时直接读库
			l.Warn("redis unavailable, catalog cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(perr))
			_ = c.Close()
		} else {
			a.Cache = c
			a.closers = append(a.closers, func(context.Context) error { return c.Close() })
			l.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
		}
	}

	shutdownTracing, err := tracing.Setup(ctx, tracing.Opts{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	secret := cfg.JWT.Secret
	if secret == "" {
		if cfg.App.Env != "local" && cfg.App.Env != "test" {
			return nil, errors.New("jwt.secret is required outside local env")
		}
		l.Warn("jwt.secret not set, using development secret")
		secret = devSecret
	}
	a.JWT = &auth.JWTer{
		Secret: []byte(secret),
		Issuer: cfg.JWT.Issuer,
		TTL:    time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
	}

	a.Catalog = service.NewCatalogService(repo.NewCatalogRepo(a.DB), service.CatalogOptions{
		Cache:    a.Cache,
		CacheTTL: time.Duration(cfg.Catalog.CacheTTLSec) * time.Second,
		Logger:   l.Named("catalog"),
		Tracer:   otel.Tracer("gin-gorm-bookstore/catalog"),
	})
	a.Users, err = service.NewUserService(repo.NewUserRepo(a.DB), service.UserOptions{
		AdminDomains: cfg.Auth.AdminDomains,
		BcryptCost:   cfg.Auth.BcryptCost,
		Logger:       l.Named("user"),
	})
	if err != nil {
		return nil, fmt.Errorf("user service: %w", err)
	}
	return a, nil
}

// Deps 给 router 的依赖
func (a *App) Deps(mode string) router.Deps {
	h := a.Config.App.HTTP
	return router.Deps{
		Logger:         a.Log,
		Catalog:        a.Catalog,
		Users:          a.Users,
		JWT:            a.JWT,
		Mode:           mode,
		CORSOrigins:    h.CORSOrigins,
		RequestTimeout: time.Duration(h.RequestTimeoutSec) * time.Second,
		LoginRPS:       a.Config.Auth.LoginRPS,
		LoginBurst:     a.Config.Auth.LoginBurst,
	}
}

// GinMode 按 app.env 选择 gin 模式
func (a *App) GinMode() string {
	switch a.Config.App.Env {
	case "prod", "production":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}

// Close 逆序释放资源
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Serve 启动并阻塞到 SIGINT/SIGTERM，然后优雅关闭
func Serve(name string, srv *http.Server, l *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.StartHTTP(srv, l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	l.Info(name+" started", zap.String("addr", srv.Addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("%s start failed: %w", name, err)
		}
		return nil
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown: %w", name, err)
	}
	l.Info(name + " stopped gracefully")
	return nil
}
