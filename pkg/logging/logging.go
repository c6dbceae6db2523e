package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds logging configuration.
type Config struct {
	Level  string
	Format string // "json" or "console"
}

// New creates a zap logger for the given level and format.
func New(cfg Config) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = parseLevel(cfg.Level)
	if cfg.Format != "" {
		zapConfig.Encoding = cfg.Format
	}
	zapConfig.DisableStacktrace = true
	return zapConfig.Build()
}

// Nop returns a logger that discards everything. Used in tests and as a
// default when a component is constructed without a logger.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func parseLevel(level string) zap.AtomicLevel {
	switch level {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}

// WithStage tags a logger with the pipeline stage it serves.
func WithStage(l *zap.Logger, stage string) *zap.Logger {
	return l.With(zap.String("stage", stage))
}
