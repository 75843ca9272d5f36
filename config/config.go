package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	MCP       MCPConfig           `mapstructure:"mcp"`
	Sandbox   SandboxConfig       `mapstructure:"sandbox"`
	Janitor   JanitorConfig       `mapstructure:"janitor"`
	Toolchain ToolchainConfig     `mapstructure:"toolchain"`
	Languages map[string]Language `mapstructure:"languages"`
	Logging   LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig holds HTTP API configuration
type ServerConfig struct {
	HTTPPort           int    `mapstructure:"http_port"`
	APIKeyHeader       string `mapstructure:"api_key_header"`
	MaxSourceBytes     int    `mapstructure:"max_source_bytes"`
	ReadTimeoutSec     int    `mapstructure:"read_timeout_sec"`
	WriteTimeoutSec    int    `mapstructure:"write_timeout_sec"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_sec"`
}

// MCPConfig holds the optional MCP tool server configuration
type MCPConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	Backend            string  `mapstructure:"backend"`
	EnableLocalBackend bool    `mapstructure:"enable_local_backend"`
	LocalNamespaces    bool    `mapstructure:"local_namespaces"`
	MemoryMB           int     `mapstructure:"memory_mb"`
	CPUs               float64 `mapstructure:"cpus"`
	PidsLimit          int     `mapstructure:"pids_limit"`
	NetworkEnabled     bool    `mapstructure:"network_enabled"`
	ValidateTimeoutSec int     `mapstructure:"validate_timeout_sec"`
	BuildTimeoutSec    int     `mapstructure:"build_timeout_sec"`
	RunTimeoutSec      int     `mapstructure:"run_timeout_sec"`
	MaxOutputBytes     int     `mapstructure:"max_output_bytes"`
}

// JanitorConfig controls the ephemeral storage root and its orphan sweep
type JanitorConfig struct {
	Root             string `mapstructure:"root"`
	SweepIntervalSec int    `mapstructure:"sweep_interval_sec"`
	RetentionSec     int    `mapstructure:"retention_sec"`
}

// ToolchainConfig names the host binaries used for syntax validation
type ToolchainConfig struct {
	Python          string   `mapstructure:"python"`
	Node            string   `mapstructure:"node"`
	Javac           string   `mapstructure:"javac"`
	Java            string   `mapstructure:"java"`
	GXX             string   `mapstructure:"gxx"`
	GCC             string   `mapstructure:"gcc"`
	CPPStandards    []string `mapstructure:"cpp_standards"`
	CStandard       string   `mapstructure:"c_standard"`
	BabelParserPath string   `mapstructure:"babel_parser_path"`
}

// Language holds the sandbox image and command templates for one canonical language.
// Templates are split shell-style and may reference {source}, {binary}, {class},
// {dialect} and {workdir}.
type Language struct {
	Image       string            `mapstructure:"image"`
	BuildCmd    string            `mapstructure:"build_cmd"`
	RunCmd      string            `mapstructure:"run_cmd"`
	Environment map[string]string `mapstructure:"environment"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("CODECHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.api_key_header", "X-API-Key")
	v.SetDefault("server.max_source_bytes", 1<<20)
	v.SetDefault("server.read_timeout_sec", 15)
	v.SetDefault("server.write_timeout_sec", 90)
	v.SetDefault("server.shutdown_timeout_sec", 15)

	v.SetDefault("mcp.enabled", false)
	v.SetDefault("mcp.transport", "stdio")
	v.SetDefault("mcp.http_port", 8081)

	v.SetDefault("sandbox.backend", "docker")
	v.SetDefault("sandbox.enable_local_backend", false)
	v.SetDefault("sandbox.local_namespaces", true)
	v.SetDefault("sandbox.memory_mb", 256)
	v.SetDefault("sandbox.cpus", 1.0)
	v.SetDefault("sandbox.pids_limit", 64)
	v.SetDefault("sandbox.network_enabled", false)
	v.SetDefault("sandbox.validate_timeout_sec", 10)
	v.SetDefault("sandbox.build_timeout_sec", 30)
	v.SetDefault("sandbox.run_timeout_sec", 10)
	v.SetDefault("sandbox.max_output_bytes", 64*1024)

	v.SetDefault("janitor.root", filepath.Join(os.TempDir(), "codecheck"))
	v.SetDefault("janitor.sweep_interval_sec", 300)
	v.SetDefault("janitor.retention_sec", 900)

	v.SetDefault("toolchain.python", "python3")
	v.SetDefault("toolchain.node", "node")
	v.SetDefault("toolchain.javac", "javac")
	v.SetDefault("toolchain.java", "java")
	v.SetDefault("toolchain.gxx", "g++")
	v.SetDefault("toolchain.gcc", "gcc")
	v.SetDefault("toolchain.cpp_standards", []string{"c++20", "c++17", "c++14", "c++11"})
	v.SetDefault("toolchain.c_standard", "c11")
	v.SetDefault("toolchain.babel_parser_path", "@babel/parser")

	v.SetDefault("languages.python.image", "python:3.11-slim")
	v.SetDefault("languages.python.run_cmd", "python3 {source}")

	v.SetDefault("languages.javascript.image", "node:20-alpine")
	v.SetDefault("languages.javascript.run_cmd", "node {source}")

	v.SetDefault("languages.java.image", "eclipse-temurin:21-jdk")
	v.SetDefault("languages.java.build_cmd", "javac -d {workdir}/classes {source}")
	v.SetDefault("languages.java.run_cmd", "java -cp {workdir}/classes {class}")

	v.SetDefault("languages.cpp.image", "gcc:13")
	v.SetDefault("languages.cpp.build_cmd", "g++ -std={dialect} -O2 -o {binary} {source}")
	v.SetDefault("languages.cpp.run_cmd", "{binary}")

	v.SetDefault("languages.c.image", "gcc:13")
	v.SetDefault("languages.c.build_cmd", "gcc -std={dialect} -O2 -o {binary} {source} -lm")
	v.SetDefault("languages.c.run_cmd", "{binary}")

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.Server.MaxSourceBytes <= 0 {
		return fmt.Errorf("server.max_source_bytes must be positive, got: %d", c.Server.MaxSourceBytes)
	}

	if c.MCP.Enabled && c.MCP.Transport != "stdio" && c.MCP.Transport != "http" {
		return fmt.Errorf("invalid mcp.transport: %s, must be 'stdio' or 'http'", c.MCP.Transport)
	}

	if c.Sandbox.ValidateTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.validate_timeout_sec must be positive, got: %d", c.Sandbox.ValidateTimeoutSec)
	}

	if c.Sandbox.BuildTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.build_timeout_sec must be positive, got: %d", c.Sandbox.BuildTimeoutSec)
	}

	if c.Sandbox.RunTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.run_timeout_sec must be positive, got: %d", c.Sandbox.RunTimeoutSec)
	}

	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", c.Sandbox.MemoryMB)
	}

	supportedBackends := map[string]bool{
		"docker":     true,
		"docker-cli": true,
		"podman":     true,
		"local":      c.Sandbox.EnableLocalBackend, // local only enabled if specifically allowed
	}

	if !supportedBackends[c.Sandbox.Backend] {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if c.Janitor.SweepIntervalSec <= 0 {
		return fmt.Errorf("janitor.sweep_interval_sec must be positive, got: %d", c.Janitor.SweepIntervalSec)
	}

	if c.Janitor.RetentionSec <= 0 {
		return fmt.Errorf("janitor.retention_sec must be positive, got: %d", c.Janitor.RetentionSec)
	}

	if busy := c.Sandbox.ValidateTimeoutSec + c.Sandbox.BuildTimeoutSec + c.Sandbox.RunTimeoutSec; c.Janitor.RetentionSec <= busy {
		return fmt.Errorf("janitor.retention_sec (%d) must exceed the longest request lifetime of %ds (validate + build + run timeouts)",
			c.Janitor.RetentionSec, busy)
	}

	if len(c.Toolchain.CPPStandards) == 0 {
		return fmt.Errorf("toolchain.cpp_standards must list at least one standard")
	}

	switch c.Logging.Mode {
	case "production", "development":
	default:
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// ValidateTimeout returns the syntax validation budget
func (c *Config) ValidateTimeout() time.Duration {
	return time.Duration(c.Sandbox.ValidateTimeoutSec) * time.Second
}

// BuildTimeout returns the sandbox build step deadline
func (c *Config) BuildTimeout() time.Duration {
	return time.Duration(c.Sandbox.BuildTimeoutSec) * time.Second
}

// RunTimeout returns the sandbox run step deadline
func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.Sandbox.RunTimeoutSec) * time.Second
}

// SweepInterval returns how often the janitor scans the ephemeral root
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Janitor.SweepIntervalSec) * time.Second
}

// Retention returns the age after which orphaned ephemeral entries are removed
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Janitor.RetentionSec) * time.Second
}
