// Package obs contains observability utilities such as logging and tracing.
package obs

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the global structured logger used by the service.
//
// It is a no-op logger until InitLogger is called.
var Logger = zap.NewNop()

// NewLogger builds a production JSON logger at the given level
// ("debug", "info", "warn", "error").
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	return cfg.Build()
}

// InitLogger initializes the global Logger and replaces zap's globals.
// An unparsable level falls back to info.
func InitLogger(level string) *zap.Logger {
	l, err := NewLogger(level)
	if err != nil {
		l, err = NewLogger("info")
		if err != nil {
			panic(err)
		}
	}
	Logger = l
	zap.ReplaceGlobals(l)
	return l
}

// Named returns a child logger with the provided component name.
func Named(base *zap.Logger, component string) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.Named(component)
}
