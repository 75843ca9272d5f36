package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:       8080,
			APIKeyHeader:   "X-API-Key",
			MaxSourceBytes: 1 << 20,
		},
		Sandbox: SandboxConfig{
			Backend:            "docker",
			MemoryMB:           256,
			ValidateTimeoutSec: 10,
			BuildTimeoutSec:    30,
			RunTimeoutSec:      10,
		},
		Janitor: JanitorConfig{
			Root:             "/tmp/codecheck",
			SweepIntervalSec: 300,
			RetentionSec:     900,
		},
		Toolchain: ToolchainConfig{
			CPPStandards: []string{"c++20", "c++17"},
		},
		Logging: LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
		Languages: map[string]Language{
			"python": {
				Image: "python:3.11-slim",
			},
		},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		err := validConfig().validate()
		require.NoError(t, err)
	})

	t.Run("InvalidHTTPPort", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.HTTPPort = 70000

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server.http_port")
	})

	t.Run("InvalidMaxSourceBytes", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.MaxSourceBytes = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.max_source_bytes must be positive")
	})

	t.Run("InvalidMCPTransport", func(t *testing.T) {
		cfg := validConfig()
		cfg.MCP = MCPConfig{Enabled: true, Transport: "grpc"}

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid mcp.transport")
	})

	t.Run("DisabledMCPIgnoresTransport", func(t *testing.T) {
		cfg := validConfig()
		cfg.MCP = MCPConfig{Enabled: false, Transport: "grpc"}

		require.NoError(t, cfg.validate())
	})

	t.Run("InvalidRunTimeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.RunTimeoutSec = 0 // Invalid: must be positive

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox.run_timeout_sec must be positive")
	})

	t.Run("InvalidSandboxMemory", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.MemoryMB = 0

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sandbox.memory_mb must be positive")
	})

	t.Run("InvalidRetention", func(t *testing.T) {
		cfg := validConfig()
		cfg.Janitor.RetentionSec = -1

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "janitor.retention_sec must be positive")
	})

	t.Run("RetentionShorterThanRequestLifetime", func(t *testing.T) {
		cfg := validConfig()
		cfg.Janitor.RetentionSec = cfg.Sandbox.ValidateTimeoutSec + cfg.Sandbox.BuildTimeoutSec + cfg.Sandbox.RunTimeoutSec

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "janitor.retention_sec (50) must exceed")
	})

	t.Run("RetentionJustLongEnough", func(t *testing.T) {
		cfg := validConfig()
		cfg.Janitor.RetentionSec = 51

		require.NoError(t, cfg.validate())
	})

	t.Run("EmptyCPPStandards", func(t *testing.T) {
		cfg := validConfig()
		cfg.Toolchain.CPPStandards = nil

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "toolchain.cpp_standards")
	})

	t.Run("InvalidLoggingMode", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Mode = "invalid_mode"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging.mode")
	})

	t.Run("InvalidLogLevel", func(t *testing.T) {
		cfg := validConfig()
		cfg.Logging.Level = "invalid_level"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid logging.level")
	})

	t.Run("ValidBackendWhenLocalEnabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.Backend = "local"
		cfg.Sandbox.EnableLocalBackend = true

		require.NoError(t, cfg.validate())
	})

	t.Run("InvalidBackendWhenLocalNotEnabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Sandbox.Backend = "local"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported sandbox.backend")
	})
}

func TestConfigNew(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := New()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.HTTPPort)
		assert.Equal(t, 1<<20, cfg.Server.MaxSourceBytes)
		assert.Equal(t, "docker", cfg.Sandbox.Backend)
		assert.Equal(t, []string{"c++20", "c++17", "c++14", "c++11"}, cfg.Toolchain.CPPStandards)
		assert.Equal(t, "gcc:13", cfg.Languages["cpp"].Image)
		assert.Equal(t, "{binary}", cfg.Languages["c"].RunCmd)
		assert.Equal(t, 10*time.Second, cfg.RunTimeout())
		assert.Equal(t, 15*time.Minute, cfg.Retention())
	})

	t.Run("FileOverrides", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)

		yaml := []byte(`
sandbox:
  backend: local
  enable_local_backend: true
  run_timeout_sec: 3
toolchain:
  cpp_standards: ["c++17", "c++11"]
logging:
  mode: development
  level: debug
`)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

		cfg, err := New()
		require.NoError(t, err)

		assert.Equal(t, "local", cfg.Sandbox.Backend)
		assert.Equal(t, 3*time.Second, cfg.RunTimeout())
		assert.Equal(t, []string{"c++17", "c++11"}, cfg.Toolchain.CPPStandards)
		assert.Equal(t, "development", cfg.Logging.Mode)
	})

	t.Run("EnvironmentOverride", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("CODECHECK_SERVER_HTTP_PORT", "9090")

		cfg, err := New()
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.Server.HTTPPort)
	})

	t.Run("EnvironmentRetentionTooShort", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("CODECHECK_JANITOR_RETENTION_SEC", "30")

		_, err := New()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "janitor.retention_sec")
	})

	t.Run("InvalidFileRejected", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("sandbox:\n  backend: kubernetes\n"), 0o600))

		_, err := New()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported sandbox.backend")
	})
}
