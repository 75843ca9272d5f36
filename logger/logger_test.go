package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/isdmx/codecheck/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		level   string
		enabled zapcore.Level
		wantErr string
	}{
		{name: "DevelopmentDebug", mode: "development", level: "debug", enabled: zapcore.DebugLevel},
		{name: "ProductionInfo", mode: "production", level: "info", enabled: zapcore.InfoLevel},
		{name: "ProductionError", mode: "production", level: "error", enabled: zapcore.ErrorLevel},
		{name: "UnknownMode", mode: "verbose", level: "info", wantErr: "invalid logging mode"},
		{name: "UnknownLevel", mode: "production", level: "loud", wantErr: "invalid logging level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.mode, tt.level)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.enabled))
			if tt.enabled > zapcore.DebugLevel {
				assert.False(t, log.Core().Enabled(tt.enabled-1))
			}
			_ = log.Sync()
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	t.Run("UsesLoggingSection", func(t *testing.T) {
		cfg := &config.Config{Logging: config.LoggingConfig{Mode: "production", Level: "warn"}}

		log, err := NewFromConfig(cfg)
		require.NoError(t, err)
		assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
		assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("RejectsBadMode", func(t *testing.T) {
		cfg := &config.Config{Logging: config.LoggingConfig{Mode: "invalid_mode", Level: "info"}}

		_, err := NewFromConfig(cfg)
		require.Error(t, err)
	})
}

func TestForRequest(t *testing.T) {
	t.Run("TagsRequestID", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		ForRequest(zap.New(core), "req-42").Info("hello")

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "req-42", logs.All()[0].ContextMap()[FieldRequestID])
	})

	t.Run("EmptyIDReturnsBase", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		base := zap.New(core)

		assert.Same(t, base, ForRequest(base, ""))
		ForRequest(base, "").Info("plain")
		require.Equal(t, 1, logs.Len())
		assert.NotContains(t, logs.All()[0].ContextMap(), FieldRequestID)
	})

	t.Run("ChildFieldsAccumulate", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		log := ForRequest(zap.New(core), "req-7").With(
			zap.String(FieldLanguage, "python"),
			zap.String(FieldScope, "req-7-1"),
		)
		log.Debug("validated")

		fields := logs.All()[0].ContextMap()
		assert.Equal(t, "req-7", fields[FieldRequestID])
		assert.Equal(t, "python", fields[FieldLanguage])
		assert.Equal(t, "req-7-1", fields[FieldScope])
	})

	t.Run("NilBase", func(t *testing.T) {
		assert.NotPanics(t, func() {
			ForRequest(nil, "req-1").Info("dropped")
			ForRequest(nil, "").Info("dropped")
		})
	})
}
