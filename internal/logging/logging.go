// Package logging wraps zap with a process-wide sugared logger so packages
// can log without threading a logger through every constructor.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop().Sugar()
)

// Init configures the global logger. Call once at startup; before Init all
// logging is a no-op, which keeps tests quiet by default.
func Init(debug bool) error {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}

	mu.Lock()
	logger = l.Sugar()
	mu.Unlock()
	return nil
}

// L returns the current sugared logger.
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Sync flushes buffered log entries. Safe to call on shutdown.
func Sync() {
	_ = L().Sync()
}

func Debugf(format string, args ...interface{}) { L().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { L().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { L().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { L().Errorf(format, args...) }
