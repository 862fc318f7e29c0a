package logger

import (
	"io"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// File 文件输出 + 切割，Filename 为空时不写文件
type File struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Sampling 每秒同一条消息前 Initial 条全部输出，之后每 Thereafter 条输出一条。
// Initial <= 0 关闭采样。
type Sampling struct {
	Initial    int
	Thereafter int
}

type Options struct {
	Level    string // debug / info / warn / error
	JSON     bool
	Service  string // 写入每条日志的 service 字段
	Env      string // 写入每条日志的 env 字段
	Sampling Sampling
	File     File
}

// New 构造 stdout（可选再加文件）的 logger，返回的函数负责 Sync
func New(opt Options) (*zap.Logger, func()) {
	lvl, err := zapcore.ParseLevel(opt.Level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	enc := encoder(opt.JSON)

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.Lock(os.Stdout), lvl)}
	if opt.File.Filename != "" {
		rot := &lumberjack.Logger{
			Filename:   opt.File.Filename,
			MaxSize:    max(1, opt.File.MaxSizeMB),
			MaxBackups: max(0, opt.File.MaxBackups),
			MaxAge:     max(0, opt.File.MaxAgeDays),
			Compress:   opt.File.Compress,
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(rot), lvl))
	}

	core := zapcore.NewTee(cores...)
	if s := opt.Sampling; s.Initial > 0 {
		core = zapcore.NewSamplerWithOptions(core, time.Second, s.Initial, max(1, s.Thereafter))
	}

	zo := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if !opt.JSON {
		zo = append(zo, zap.Development())
	}
	var fields []zap.Field
	if opt.Service != "" {
		fields = append(fields, zap.String("service", opt.Service))
	}
	if opt.Env != "" {
		fields = append(fields, zap.String("env", opt.Env))
	}
	if len(fields) > 0 {
		zo = append(zo, zap.Fields(fields...))
	}

	l := zap.New(core, zo...)
	return l, func() { _ = l.Sync() }
}

func encoder(json bool) zapcore.Encoder {
	if json {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "ts"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeCaller = zapcore.ShortCallerEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

// gin 调试输出自带的前缀
var ginPrefixes = []string{"[GIN-debug] ", "[GIN] ", "[WARNING] "}

type lineWriter struct {
	l     *zap.Logger
	level zapcore.Level
}

// Write 按行拆分，每行一条日志
func (w *lineWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimRight(line, "\r")
		for _, pre := range ginPrefixes {
			line = strings.TrimPrefix(line, pre)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if ce := w.l.Check(w.level, line); ce != nil {
			ce.Write()
		}
	}
	return len(p), nil
}

// ToWriter 适配为 io.Writer，给 gin.DefaultWriter / DefaultErrorWriter 用
func ToWriter(l *zap.Logger, level zapcore.Level) io.Writer {
	return &lineWriter{l: l, level: level}
}

// ToStdLogger 给 http.Server.ErrorLog / gorm logger 用
func ToStdLogger(l *zap.Logger, level zapcore.Level) (*log.Logger, error) {
	return zap.NewStdLogAt(l, level)
}

func RedirectStdLog(l *zap.Logger, level zapcore.Level) func() {
	undo, err := zap.RedirectStdLogAt(l, level)
	if err != nil {
		return func() {}
	}
	return undo
}
