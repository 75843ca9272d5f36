package sandbox

import (
	"context"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/isdmx/codecheck/janitor"
)

// Workspace is where the scope directory is mounted inside a container
const Workspace = "/workspace"

// Step is one bounded command inside the sandbox
type Step struct {
	Name           string
	Image          string
	Args           []string
	Env            map[string]string
	Stdin          string
	Timeout        time.Duration
	MaxOutputBytes int
}

// StepResult is the outcome of a step that ran
type StepResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Executor runs steps with the scope directory as the only writable view.
// Run must not return while the step's process or container is still running.
type Executor interface {
	Run(ctx context.Context, scope *janitor.Scope, step Step) (StepResult, error)
	// Workdir is the path under which a step sees the scope directory.
	Workdir(scope *janitor.Scope) string
}

// File permission constants
const (
	DirPermission  = 0o777
	FilePermission = 0o644
)

// containerUser is the uid:gid containers run as. Running as the server's
// own uid keeps every file they create removable by the janitor; a root
// server runs containers as nobody instead.
func containerUser() string {
	uid, gid := os.Getuid(), os.Getgid()
	if uid <= 0 {
		return "65534:65534"
	}
	return fmt.Sprintf("%d:%d", uid, gid)
}

func envList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	slices.Sort(out)
	return out
}
