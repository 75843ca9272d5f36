package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isdmx/codecheck/config"
)

// Field keys shared by every component that logs request-scoped events.
const (
	FieldRequestID = "request_id"
	FieldScope     = "scope"
	FieldLanguage  = "language"
)

// NewFromConfig builds the application logger from the logging section
func NewFromConfig(cfg *config.Config) (*zap.Logger, error) {
	return New(cfg.Logging.Mode, cfg.Logging.Level)
}

// New creates a new logger instance based on configuration
func New(mode, level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch mode {
	case "development":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "production":
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("invalid logging mode: %s, must be 'production' or 'development'", mode)
	}

	logLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging level: %s, must be one of 'debug', 'info', 'warn', 'error', 'dpanic', 'panic', 'fatal'", level)
	}
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	return cfg.Build()
}

// ForRequest returns a child logger tagged with the request correlation id.
// A nil base yields a no-op logger so callers never have to guard.
func ForRequest(base *zap.Logger, requestID string) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	if requestID == "" {
		return base
	}
	return base.With(zap.String(FieldRequestID, requestID))
}
