// Package logging provides the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	global   *zap.Logger
	globalMu sync.RWMutex
)

func init() {
	global, _ = zap.NewProduction()
}

// Config selects level and output for a logger built by New.
type Config struct {
	Level  string // debug, info, warn, error
	Output string // stdout, stderr, or a file path
}

// New builds a zap logger from Config. When Output names a file, the
// returned io.Closer must be closed on shutdown to flush rotated logs;
// for stdout/stderr it is nil.
func New(cfg Config) (*zap.Logger, io.Closer, error) {
	var lvl zapcore.Level
	switch cfg.Level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encCfg)

	var ws zapcore.WriteSyncer
	var closer io.Closer

	switch cfg.Output {
	case "", "stdout":
		ws = zapcore.AddSync(os.Stdout)
	case "stderr":
		ws = zapcore.AddSync(os.Stderr)
	default:
		lj := &lumberjack.Logger{Filename: cfg.Output, MaxSize: 100, MaxBackups: 5, MaxAge: 14, Compress: true}
		ws = zapcore.AddSync(lj)
		closer = lj
	}

	core := zapcore.NewCore(encoder, ws, lvl)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)), closer, nil
}

// Global returns the process-wide logger.
func Global() *zap.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// SetGlobal installs a new process-wide logger.
func SetGlobal(l *zap.Logger) {
	globalMu.Lock()
	global = l
	globalMu.Unlock()
}

func Info(msg string, fields ...zap.Field)  { Global().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Global().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Global().Error(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { Global().Debug(msg, fields...) }

// With returns a child logger carrying the given fields, e.g. the
// per-request correlation id.
func With(fields ...zap.Field) *zap.Logger { return Global().With(fields...) }

// Sync flushes buffered log entries.
func Sync() { _ = Global().Sync() }
