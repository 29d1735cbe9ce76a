package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a logr.Logger backed by zap, at the requested level
// ("debug", "info", "warn", "error"). This is the logger type threaded
// through Calculator and TaskManager, matching the go-logr
// convention kubernaut itself depends on.
func NewLogger(level string) (logr.Logger, error) {
	var zc zapcore.Level
	if err := zc.UnmarshalText([]byte(level)); err != nil {
		zc = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zc)
	zl, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zl), nil
}

// WithFields attaches a Fields set to a logr.Logger as key/value pairs.
func WithFields(log logr.Logger, f Fields) logr.Logger {
	kv := make([]interface{}, 0, len(f)*2)
	for k, v := range f {
		kv = append(kv, k, v)
	}
	return log.WithValues(kv...)
}
