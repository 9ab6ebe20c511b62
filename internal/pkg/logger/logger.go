package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOption 日志初始化参数
type LogOption struct {
	Format   string // "console" 或 "json"
	LogDir   string // 为空时只输出到 stdout
	Level    string // debug / info / warn / error
	Compress bool   // 是否压缩轮转后的旧日志
}

const (
	defaultLogFile    = "app.log"
	defaultMaxSizeMB  = 200
	defaultMaxBackups = 10
	defaultMaxAgeDays = 7
)

var current atomic.Pointer[zap.SugaredLogger]

func init() {
	current.Store(newSugared(LogOption{Format: "console", Level: "info"}, nil))
}

// Init 按配置重建全局 logger，可重复调用（后一次覆盖前一次）
func Init(opt LogOption) error {
	var fileWriter zapcore.WriteSyncer
	if opt.LogDir != "" {
		if err := os.MkdirAll(opt.LogDir, 0o755); err != nil {
			return fmt.Errorf("create log dir %s: %w", opt.LogDir, err)
		}
		fileWriter = zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(opt.LogDir, defaultLogFile),
			MaxSize:    defaultMaxSizeMB,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAgeDays,
			Compress:   opt.Compress,
			LocalTime:  true,
		})
	}
	old := current.Swap(newSugared(opt, fileWriter))
	if old != nil {
		_ = old.Sync()
	}
	return nil
}

func newSugared(opt LogOption, fileWriter zapcore.WriteSyncer) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var encoder zapcore.Encoder
	if strings.EqualFold(opt.Format, "json") {
		encoder = zapcore.NewJSONEncoder(encCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encCfg)
	}

	level := parseLevel(opt.Level)
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}
	if fileWriter != nil {
		cores = append(cores, zapcore.NewCore(encoder, fileWriter, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func Debugf(format string, args ...any) { current.Load().Debugf(format, args...) }
func Infof(format string, args ...any)  { current.Load().Infof(format, args...) }
func Warnf(format string, args ...any)  { current.Load().Warnf(format, args...) }
func Errorf(format string, args ...any) { current.Load().Errorf(format, args...) }

// Sync 刷新缓冲区，进程退出前调用
func Sync() {
	_ = current.Load().Sync()
}
