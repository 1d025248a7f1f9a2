// Package logger provides the process-wide structured logger: a single
// package-level *zap.Logger initialized at boot, with gin-middlewares used
// to derive request-scoped child loggers.
package logger

import (
	"context"

	gmw "github.com/Laisky/gin-middlewares/v7"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
)

// Logger is the process-wide structured logger. It is replaced by Init at
// boot; code that runs before Init (flag parsing, env loading) must not log.
var Logger *zap.Logger = zap.NewNop()

// Init builds the process logger from the given level ("debug", "info",
// "warn", "error") and encoding ("json" or "console").
func Init(level, encoding string) error {
	cfg := zap.NewProductionConfig()
	if encoding == "console" {
		cfg = zap.NewDevelopmentConfig()
	}

	var zapLevel zap.AtomicLevel
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = zapLevel

	built, err := cfg.Build()
	if err != nil {
		return err
	}
	Logger = built
	return nil
}

// FromContext returns the request-scoped logger attached by gin-middlewares
// when ctx carries an embedded gin.Context, falling back to the global logger.
func FromContext(ctx context.Context) *zap.Logger {
	if ginCtx, ok := gmw.GetGinCtxFromStdCtx(ctx); ok {
		return gmw.GetLogger(ginCtx)
	}
	return Logger
}

// FromGin returns the request-scoped logger for c, falling back to the global logger.
func FromGin(c *gin.Context) *zap.Logger {
	if c == nil {
		return Logger
	}
	return gmw.GetLogger(c)
}
