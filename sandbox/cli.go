package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/codecheck/config"
	"github.com/isdmx/codecheck/janitor"
	"github.com/isdmx/codecheck/process"
)

// CLIExecutor implements Executor by shelling out to a docker-compatible CLI
// (docker or podman)
type CLIExecutor struct {
	logger *zap.Logger
	config config.SandboxConfig
	binary string
	runner process.Runner
}

// CLIExecutorOption defines a functional option for CLIExecutor
type CLIExecutorOption func(*CLIExecutor)

// WithCLIRunner sets the process runner for CLIExecutor
func WithCLIRunner(runner process.Runner) CLIExecutorOption {
	return func(c *CLIExecutor) {
		c.runner = runner
	}
}

// NewCLIExecutor creates a CLIExecutor for binary ("docker" or "podman")
func NewCLIExecutor(logger *zap.Logger, cfg config.SandboxConfig, binary string, opts ...CLIExecutorOption) *CLIExecutor {
	executor := &CLIExecutor{
		logger: logger,
		config: cfg,
		binary: binary,
		runner: process.RealRunner{},
	}
	for _, opt := range opts {
		opt(executor)
	}
	return executor
}

// Workdir returns the container mount point of the scope directory
func (*CLIExecutor) Workdir(*janitor.Scope) string {
	return Workspace
}

// Run executes step with "<binary> run" and kills the container on deadline
func (c *CLIExecutor) Run(ctx context.Context, scope *janitor.Scope, step Step) (StepResult, error) {
	name := containerName(scope, step)
	handle := &cliHandle{binary: c.binary, name: name, runner: c.runner}
	if err := scope.TrackHandle(handle); err != nil {
		return StepResult{}, err
	}

	stepCtx, cancel := context.WithTimeout(ctx, step.Timeout)
	defer cancel()

	res, err := c.runner.Run(stepCtx, process.Spec{
		Args:           c.runArgs(scope, step, name),
		Stdin:          step.Stdin,
		InheritEnv:     true,
		MaxOutputBytes: step.MaxOutputBytes,
	})
	if err != nil {
		c.kill(ctx, name)
		return StepResult{}, fmt.Errorf("%s run: %w", c.binary, err)
	}

	if res.TimedOut {
		// Killing the CLI client does not stop the container.
		c.kill(ctx, name)
		c.logger.Info("Container exceeded its deadline",
			zap.String("container", name), zap.Duration("timeout", step.Timeout))
	}

	return StepResult{
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
		TimedOut: res.TimedOut,
		Duration: res.Duration,
	}, nil
}

func (c *CLIExecutor) runArgs(scope *janitor.Scope, step Step, name string) []string {
	args := []string{
		c.binary, "run",
		"--name", name,
		"--rm",
		"-v", fmt.Sprintf("%s:%s", scope.Dir(), Workspace),
		"--workdir", Workspace,
		"--memory", fmt.Sprintf("%dm", c.config.MemoryMB),
		"--user", containerUser(),
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"--read-only",
		"--tmpfs", "/tmp:" + tmpfsSize,
		"--label", "codecheck.scope=" + scope.Token(),
		"-e", "HOME=/tmp",
	}
	if c.config.NetworkEnabled {
		args = append(args, "--network", "bridge")
	} else {
		args = append(args, "--network", "none")
	}
	if c.config.CPUs > 0 {
		args = append(args, "--cpus", fmt.Sprintf("%g", c.config.CPUs))
	}
	if c.config.PidsLimit > 0 {
		args = append(args, "--pids-limit", fmt.Sprintf("%d", c.config.PidsLimit))
	}
	if step.Stdin != "" {
		args = append(args, "-i")
	}
	for _, kv := range envList(step.Env) {
		args = append(args, "-e", kv)
	}

	args = append(args, step.Image)
	return append(args, step.Args...)
}

func (c *CLIExecutor) kill(ctx context.Context, name string) {
	killCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	res, err := c.runner.Run(killCtx, process.Spec{Args: []string{c.binary, "kill", name}, InheritEnv: true})
	if err != nil {
		c.logger.Warn("Failed to kill container", zap.String("container", name), zap.Error(err))
		return
	}
	if res.ExitCode != 0 && !isMissingContainer(res.Stderr) {
		c.logger.Warn("Failed to kill container",
			zap.String("container", name), zap.String("stderr", strings.TrimSpace(res.Stderr)))
	}
}

// cliHandle force-removes a named container through the CLI
type cliHandle struct {
	binary string
	name   string
	runner process.Runner
}

func (h *cliHandle) ID() string {
	return h.name
}

func (h *cliHandle) Destroy(ctx context.Context) error {
	res, err := h.runner.Run(ctx, process.Spec{Args: []string{h.binary, "rm", "-f", h.name}, InheritEnv: true})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 && !isMissingContainer(res.Stderr) {
		return fmt.Errorf("%s rm -f %s: %s", h.binary, h.name, strings.TrimSpace(res.Stderr))
	}
	return nil
}

func isMissingContainer(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "no such container") || strings.Contains(s, "is not running") ||
		strings.Contains(s, "no container with name")
}
