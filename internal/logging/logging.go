// Package logging builds the service's zap logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/example/intake/internal/config"
)

// New builds a logger from configuration. The json format uses zap's
// production config; console uses the development config.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	var zc zap.Config
	switch cfg.Format {
	case "console":
		zc = zap.NewDevelopmentConfig()
	default:
		zc = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Named("intake"), nil
}

// Ref is the standard field for an instruction reference.
func Ref(ref string) zap.Field {
	return zap.String("instruction_ref", ref)
}
