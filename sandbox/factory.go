package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/codecheck/config"
	"github.com/isdmx/codecheck/process"
)

// NewExecutor creates the executor for the configured backend
func NewExecutor(cfg *config.Config, runner process.Runner, logger *zap.Logger) (Executor, error) {
	if runner == nil {
		runner = process.RealRunner{}
	}

	switch cfg.Sandbox.Backend {
	case "docker":
		executor, err := NewDockerExecutor(logger, cfg.Sandbox)
		if err != nil {
			return nil, err
		}
		return executor, nil
	case "docker-cli":
		return NewCLIExecutor(logger, cfg.Sandbox, "docker", WithCLIRunner(runner)), nil
	case "podman":
		return NewCLIExecutor(logger, cfg.Sandbox, "podman", WithCLIRunner(runner)), nil
	case "local":
		if !cfg.Sandbox.EnableLocalBackend {
			return nil, fmt.Errorf("local backend is disabled")
		}
		return NewLocalExecutor(logger,
			WithLocalRunner(runner),
			WithLocalNamespaces(cfg.Sandbox.LocalNamespaces),
		), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}
}
