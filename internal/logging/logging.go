package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger. format is "json" (default) or "console".
func New(level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(levelFromString(level))
	return cfg.Build()
}

func levelFromString(value string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(value))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
