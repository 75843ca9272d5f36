package sandbox

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/codecheck/janitor"
	"github.com/isdmx/codecheck/process"
)

// LocalExecutor implements Executor on the host (for development only).
// Steps run in their own process group with a minimal environment and, on
// Linux, in fresh user, network, mount and PID namespaces.
type LocalExecutor struct {
	logger     *zap.Logger
	runner     process.Runner
	namespaces bool
}

// LocalExecutorOption defines a functional option for LocalExecutor
type LocalExecutorOption func(*LocalExecutor)

// WithLocalRunner sets the process runner for LocalExecutor
func WithLocalRunner(runner process.Runner) LocalExecutorOption {
	return func(l *LocalExecutor) {
		l.runner = runner
	}
}

// WithLocalNamespaces toggles namespace isolation for LocalExecutor
func WithLocalNamespaces(enabled bool) LocalExecutorOption {
	return func(l *LocalExecutor) {
		l.namespaces = enabled
	}
}

// NewLocalExecutor creates a new LocalExecutor
func NewLocalExecutor(logger *zap.Logger, opts ...LocalExecutorOption) *LocalExecutor {
	executor := &LocalExecutor{
		logger:     logger,
		runner:     process.RealRunner{},
		namespaces: true,
	}
	for _, opt := range opts {
		opt(executor)
	}
	return executor
}

// Workdir returns the host path of the scope directory
func (*LocalExecutor) Workdir(scope *janitor.Scope) string {
	return scope.Dir()
}

// Run executes step on the host inside the scope directory
func (l *LocalExecutor) Run(ctx context.Context, scope *janitor.Scope, step Step) (StepResult, error) {
	stepCtx, cancel := context.WithTimeout(ctx, step.Timeout)
	defer cancel()

	res, err := l.runner.Run(stepCtx, process.Spec{
		Args:           step.Args,
		Dir:            scope.Dir(),
		Env:            envList(step.Env),
		Stdin:          step.Stdin,
		Isolate:        l.namespaces,
		MaxOutputBytes: step.MaxOutputBytes,
	})
	if err != nil {
		return StepResult{}, fmt.Errorf("local %s step: %w", step.Name, err)
	}
	if res.TimedOut {
		l.logger.Info("Local step exceeded its deadline",
			zap.String("scope", scope.Token()),
			zap.String("step", step.Name),
			zap.Duration("timeout", step.Timeout))
	}

	return StepResult{
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
		TimedOut: res.TimedOut,
		Duration: res.Duration,
	}, nil
}
