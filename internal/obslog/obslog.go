// Package obslog constructs the single *zap.Logger each subsystem is
// handed at construction time. There is no package-level logger: every
// component takes a *zap.Logger argument, so tests can inject a fresh,
// captured logger per test instead of reaching into a shared singleton.
package obslog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level controls verbosity; string values match zapcore's.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// New builds a production-shaped JSON logger at the given level. component
// is attached as a static field so every line can be filtered by
// subsystem (session, wait, recovery, ...).
func New(level Level, component string) (*zap.Logger, error) {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		zl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("component", component)), nil
}

// NewNop returns a logger that discards everything, used as a safe
// default when a caller does not supply one.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
