package main

import (
	"context"
	"fmt"
	"os"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gin-gorm-bookstore/internal/app"
	"gin-gorm-bookstore/internal/core/config"
	"gin-gorm-bookstore/internal/core/logger"
	"gin-gorm-bookstore/internal/core/server"
	"gin-gorm-bookstore/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := app.NewLogger(cfg, "admin")
	defer cleanup()
	log = log.With(zap.String("component", "admin"))
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()
	gin.DefaultWriter = logger.ToWriter(log.Named("gin"), zapcore.DebugLevel)
	gin.DefaultErrorWriter = logger.ToWriter(log.Named("gin"), zapcore.ErrorLevel)

	a, err := app.Build(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			log.Warn("close resources", zap.Error(err))
		}
	}()

	// 路由（管理端，需 admin token）
	r := router.NewAdminEngine(a.Deps(a.GinMode()))

	h := cfg.App.HTTP
	errLog, _ := logger.ToStdLogger(log.Named("http"), zapcore.ErrorLevel)
	addr := server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(h.ReadTimeoutSec)*time.Second,
		time.Duration(h.WriteTimeoutSec)*time.Second,
		time.Duration(h.IdleTimeoutSec)*time.Second,
		errLog,
	)

	log.Info("bookstore admin starting",
		zap.String("addr", addr),
		zap.String("admin", fmt.Sprintf("http://%s/admin/v1", addr)),
	)

	if err := app.Serve("bookstore admin", srv, log); err != nil {
		log.Error("server exited", zap.Error(err))
	}
}
