package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// ErrNotFound is returned when the command's executable cannot be resolved
var ErrNotFound = errors.New("executable not found")

// ErrIsolationUnsupported is returned when namespace isolation is requested on a platform without it
var ErrIsolationUnsupported = errors.New("process isolation is only supported on linux")

// DefaultWaitDelay bounds how long Wait blocks on I/O after the process is killed
const DefaultWaitDelay = 2 * time.Second

const truncatedMarker = "\n...[truncated]"

// Spec describes one command invocation
type Spec struct {
	Args       []string
	Dir        string
	Env        []string
	InheritEnv bool
	Stdin      string
	// Isolate starts the command in fresh namespaces with no network.
	Isolate bool
	// MaxOutputBytes caps each of stdout and stderr; zero means unlimited.
	MaxOutputBytes int
}

// Result is the outcome of a command that ran
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// Runner executes commands
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// RealRunner implements Runner using os/exec
type RealRunner struct{}

// Run executes spec. A deadline expiry is reported through Result.TimedOut,
// not as an error; cancellation of ctx for any other reason is returned.
func (RealRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	if len(spec.Args) < 1 {
		return Result{}, fmt.Errorf("no command provided")
	}

	path, err := exec.LookPath(spec.Args[0])
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, spec.Args[0])
	}

	cmd := exec.CommandContext(ctx, path, spec.Args[1:]...) //nolint:gosec // Command comes from server configuration
	cmd.Dir = spec.Dir
	cmd.Env = buildEnv(spec)
	cmd.WaitDelay = DefaultWaitDelay
	if spec.Stdin != "" {
		cmd.Stdin = bytes.NewReader([]byte(spec.Stdin))
	}

	if err := configure(cmd, spec.Isolate); err != nil {
		return Result{}, err
	}

	stdout := NewCappedBuffer(spec.MaxOutputBytes)
	stderr := NewCappedBuffer(spec.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	started := time.Now()
	runErr := cmd.Run()
	reap(cmd)

	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			result.TimedOut = true
			result.ExitCode = -1
			return result, nil
		}
		return result, ctxErr
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("run %s: %w", spec.Args[0], runErr)
	}

	return result, nil
}

func buildEnv(spec Spec) []string {
	var env []string
	if spec.InheritEnv {
		env = os.Environ()
	} else {
		env = []string{
			"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
			"LANG=C.UTF-8",
		}
		if spec.Dir != "" {
			env = append(env, "HOME="+spec.Dir, "TMPDIR="+spec.Dir)
		}
	}
	return append(env, spec.Env...)
}

// CappedBuffer keeps at most limit bytes and silently discards the rest so a
// chatty process never blocks on a full pipe. A limit of zero keeps everything.
type CappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

// NewCappedBuffer returns a buffer that keeps at most limit bytes
func NewCappedBuffer(limit int) *CappedBuffer {
	return &CappedBuffer{limit: limit}
}

func (b *CappedBuffer) Write(p []byte) (int, error) {
	if b.limit <= 0 {
		return b.buf.Write(p)
	}
	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

// String returns the kept bytes, followed by a marker when output was dropped
func (b *CappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + truncatedMarker
	}
	return b.buf.String()
}

// Truncate caps s at limit bytes using the same marker as command output
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + truncatedMarker
}
