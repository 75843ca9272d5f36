package sandbox

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/codecheck/config"
	"github.com/isdmx/codecheck/janitor"
	"github.com/isdmx/codecheck/process"
)

// MockRunner implements process.Runner for testing
type MockRunner struct {
	mu      sync.Mutex
	Calls   []process.Spec
	RunFunc func(ctx context.Context, spec process.Spec) (process.Result, error)
}

func (m *MockRunner) Run(ctx context.Context, spec process.Spec) (process.Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, spec)
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, spec)
	}
	return process.Result{}, nil
}

func (m *MockRunner) argsOf(sub string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]string
	for _, c := range m.Calls {
		if len(c.Args) > 1 && c.Args[1] == sub {
			out = append(out, c.Args)
		}
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Sandbox: config.SandboxConfig{
			Backend:        "docker",
			MemoryMB:       256,
			CPUs:           1,
			PidsLimit:      64,
			MaxOutputBytes: 1024,
		},
		Toolchain: config.ToolchainConfig{
			CPPStandards: []string{"c++20", "c++17", "c++14", "c++11"},
			CStandard:    "c11",
		},
		Languages: map[string]config.Language{
			"python":     {Image: "python:3.11-slim", RunCmd: "python3 {source}", Environment: map[string]string{"PYTHONUNBUFFERED": "1"}},
			"javascript": {Image: "node:20-alpine", RunCmd: "node {source}"},
			"java": {
				Image:    "eclipse-temurin:21-jdk",
				BuildCmd: "javac -d {workdir}/classes {source}",
				RunCmd:   "java -cp {workdir}/classes {class}",
			},
			"cpp": {Image: "gcc:13", BuildCmd: "g++ -std={dialect} -O2 -o {binary} {source}", RunCmd: "{binary}"},
			"c":   {Image: "gcc:13", BuildCmd: "gcc -std={dialect} -O2 -o {binary} {source} -lm", RunCmd: "{binary}"},
		},
	}
}

func newScope(t *testing.T) *janitor.Scope {
	t.Helper()
	j, err := janitor.New(filepath.Join(t.TempDir(), "root"), time.Hour, time.Hour, zaptest.NewLogger(t))
	require.NoError(t, err)
	scope, err := j.Allocate("sandbox-test")
	require.NoError(t, err)
	t.Cleanup(func() { scope.Release(context.Background()) })
	return scope
}
