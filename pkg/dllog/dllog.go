// Package dllog builds the single zap.Logger instance the CLI
// constructs at startup and threads through every executor component.
package dllog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger's verbosity and encoding.
type Config struct {
	// Development enables human-readable console output with stack
	// traces on Warn+; false selects JSON production encoding.
	Development bool
	// Level is one of debug, info, warn, error. Empty defaults to info.
	Level string
}

// New builds a *zap.Logger per cfg. Callers own the returned logger and
// should defer logger.Sync() at shutdown.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, err
		}
	}

	var zcfg zap.Config
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}

// Nop returns a logger that discards everything, for tests and for any
// component constructed without an explicit logger.
func Nop() *zap.Logger {
	return zap.NewNop()
}
