package sandbox

import (
	"context"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/codecheck/process"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestLocalExecutor(t *testing.T) {
	t.Run("PassesStepToRunner", func(t *testing.T) {
		runner := &MockRunner{RunFunc: func(context.Context, process.Spec) (process.Result, error) {
			return process.Result{Stdout: "out", ExitCode: 2}, nil
		}}
		executor := NewLocalExecutor(zaptest.NewLogger(t), WithLocalRunner(runner))
		scope := newScope(t)
		assert.Equal(t, scope.Dir(), executor.Workdir(scope))

		res, err := executor.Run(context.Background(), scope, Step{
			Name:           "run",
			Args:           []string{"python3", "main.py"},
			Env:            map[string]string{"K": "V"},
			Stdin:          "in",
			Timeout:        time.Second,
			MaxOutputBytes: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, "out", res.Stdout)
		assert.Equal(t, 2, res.ExitCode)

		spec := runner.Calls[0]
		assert.Equal(t, scope.Dir(), spec.Dir)
		assert.Equal(t, []string{"K=V"}, spec.Env)
		assert.Equal(t, "in", spec.Stdin)
		assert.True(t, spec.Isolate)
		assert.False(t, spec.InheritEnv)
		assert.Equal(t, 10, spec.MaxOutputBytes)
	})

	t.Run("RealProcess", func(t *testing.T) {
		requireShell(t)
		executor := NewLocalExecutor(zaptest.NewLogger(t), WithLocalNamespaces(false))

		res, err := executor.Run(context.Background(), newScope(t), Step{
			Name:    "run",
			Args:    []string{"sh", "-c", "pwd; echo err >&2"},
			Timeout: 5 * time.Second,
		})
		require.NoError(t, err)
		assert.Contains(t, res.Stdout, "sandbox-test")
		assert.Equal(t, "err\n", res.Stderr)
	})

	t.Run("DeadlineKillsProcess", func(t *testing.T) {
		requireShell(t)
		executor := NewLocalExecutor(zaptest.NewLogger(t), WithLocalNamespaces(false))

		started := time.Now()
		res, err := executor.Run(context.Background(), newScope(t), Step{
			Name:    "run",
			Args:    []string{"sh", "-c", "sleep 30 & sleep 30"},
			Timeout: 100 * time.Millisecond,
		})
		require.NoError(t, err)
		assert.True(t, res.TimedOut)
		assert.Less(t, time.Since(started), 10*time.Second)
	})
}

func TestNewExecutor(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("Docker", func(t *testing.T) {
		executor, err := NewExecutor(testConfig(), nil, logger)
		require.NoError(t, err)
		assert.IsType(t, &DockerExecutor{}, executor)
	})

	t.Run("DockerCLI", func(t *testing.T) {
		cfg := testConfig()
		cfg.Sandbox.Backend = "docker-cli"
		executor, err := NewExecutor(cfg, nil, logger)
		require.NoError(t, err)
		require.IsType(t, &CLIExecutor{}, executor)
		assert.Equal(t, "docker", executor.(*CLIExecutor).binary)
	})

	t.Run("Podman", func(t *testing.T) {
		cfg := testConfig()
		cfg.Sandbox.Backend = "podman"
		executor, err := NewExecutor(cfg, nil, logger)
		require.NoError(t, err)
		assert.Equal(t, "podman", executor.(*CLIExecutor).binary)
	})

	t.Run("LocalRequiresOptIn", func(t *testing.T) {
		cfg := testConfig()
		cfg.Sandbox.Backend = "local"
		_, err := NewExecutor(cfg, nil, logger)
		require.Error(t, err)

		cfg.Sandbox.EnableLocalBackend = true
		executor, err := NewExecutor(cfg, nil, logger)
		require.NoError(t, err)
		assert.IsType(t, &LocalExecutor{}, executor)
	})

	t.Run("Unknown", func(t *testing.T) {
		cfg := testConfig()
		cfg.Sandbox.Backend = "kubernetes"
		_, err := NewExecutor(cfg, nil, logger)
		require.Error(t, err)
	})
}
