package sandbox

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/shlex"
	"go.uber.org/zap"

	"github.com/isdmx/codecheck/apperr"
	"github.com/isdmx/codecheck/config"
	"github.com/isdmx/codecheck/janitor"
	"github.com/isdmx/codecheck/language"
	"github.com/isdmx/codecheck/prepare"
)

// FailureReason classifies an unsuccessful execution
type FailureReason string

// Failure reasons
const (
	FailureNone         FailureReason = "none"
	FailureTimeout      FailureReason = "timeout"
	FailureRuntimeError FailureReason = "runtimeError"
)

// BinaryName is the build output of compiled languages inside the workdir
const BinaryName = "main"

// RunOptions bounds and feeds one execution
type RunOptions struct {
	Build time.Duration
	Run   time.Duration
	Stdin string
}

// ExecutionResult is the outcome of running a validated unit
type ExecutionResult struct {
	Succeeded     bool
	Stdout        string
	Stderr        string
	ExitCode      int
	FailureReason FailureReason
	// FailedStep names the step that failed: "build" or "run".
	FailedStep string
}

// Supervisor executes prepared units through an Executor
type Supervisor struct {
	executor  Executor
	languages map[string]config.Language
	defaults  map[language.Code]string
	maxOutput int
	logger    *zap.Logger
}

// NewSupervisor creates a Supervisor
func NewSupervisor(cfg *config.Config, executor Executor, logger *zap.Logger) *Supervisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := map[language.Code]string{language.C: cfg.Toolchain.CStandard}
	if len(cfg.Toolchain.CPPStandards) > 0 {
		defaults[language.CPP] = cfg.Toolchain.CPPStandards[0]
	}
	return &Supervisor{
		executor:  executor,
		languages: cfg.Languages,
		defaults:  defaults,
		maxOutput: cfg.Sandbox.MaxOutputBytes,
		logger:    logger,
	}
}

// Execute runs unit inside the sandbox. Interpreted languages run in a single
// step; compiled languages build then run, each under its own deadline.
// Timeouts and non-zero exits are reported in the result.
func (s *Supervisor) Execute(ctx context.Context, scope *janitor.Scope, unit prepare.Unit, dialect string, opts RunOptions) (ExecutionResult, error) {
	lang, ok := s.languages[unit.Language.String()]
	if !ok || lang.RunCmd == "" {
		return ExecutionResult{}, apperr.Newf(apperr.Internal, "no sandbox configuration for %s", unit.Language)
	}
	if dialect == "" {
		dialect = s.defaults[unit.Language]
	}

	// Validation usually staged the source already; write it again so Execute
	// does not depend on that.
	if _, err := scope.WriteFile(unit.FileName, unit.Source); err != nil {
		return ExecutionResult{}, apperr.Wrapf(err, apperr.Internal, "failed to stage source")
	}
	if unit.Language == language.Java {
		if _, err := scope.Mkdir("classes"); err != nil {
			return ExecutionResult{}, apperr.Wrapf(err, apperr.Internal, "failed to create class output directory")
		}
	}

	workdir := s.executor.Workdir(scope)
	vars := strings.NewReplacer(
		"{source}", path.Join(workdir, unit.FileName),
		"{binary}", path.Join(workdir, BinaryName),
		"{class}", unit.ClassName,
		"{dialect}", dialect,
		"{workdir}", workdir,
	)

	log := s.logger.With(zap.String("scope", scope.Token()), zap.String("language", unit.Language.String()))

	if lang.BuildCmd != "" {
		step, err := s.step("build", lang, lang.BuildCmd, vars, opts.Build, "")
		if err != nil {
			return ExecutionResult{}, err
		}
		res, err := s.executor.Run(ctx, scope, step)
		if err != nil {
			return ExecutionResult{}, apperr.Wrapf(err, apperr.Internal, "sandbox build failed")
		}
		log.Debug("Build step finished",
			zap.Int("exit_code", res.ExitCode),
			zap.Bool("timed_out", res.TimedOut),
			zap.Duration("duration", res.Duration))
		if res.TimedOut || res.ExitCode != 0 {
			return failed("build", res, opts.Build), nil
		}
	}

	step, err := s.step("run", lang, lang.RunCmd, vars, opts.Run, opts.Stdin)
	if err != nil {
		return ExecutionResult{}, err
	}
	res, err := s.executor.Run(ctx, scope, step)
	if err != nil {
		return ExecutionResult{}, apperr.Wrapf(err, apperr.Internal, "sandbox run failed")
	}
	log.Debug("Run step finished",
		zap.Int("exit_code", res.ExitCode),
		zap.Bool("timed_out", res.TimedOut),
		zap.Duration("duration", res.Duration))

	if res.TimedOut || res.ExitCode != 0 {
		return failed("run", res, opts.Run), nil
	}

	return ExecutionResult{
		Succeeded:     true,
		Stdout:        res.Stdout,
		Stderr:        res.Stderr,
		FailureReason: FailureNone,
	}, nil
}

func (s *Supervisor) step(name string, lang config.Language, template string, vars *strings.Replacer, timeout time.Duration, stdin string) (Step, error) {
	args, err := expand(template, vars)
	if err != nil {
		return Step{}, apperr.Wrapf(err, apperr.Internal, "invalid %s command template", name)
	}
	return Step{
		Name:           name,
		Image:          lang.Image,
		Args:           args,
		Env:            lang.Environment,
		Stdin:          stdin,
		Timeout:        timeout,
		MaxOutputBytes: s.maxOutput,
	}, nil
}

// expand splits a command template shell-style and substitutes placeholders per word
func expand(template string, vars *strings.Replacer) ([]string, error) {
	words, err := shlex.Split(template)
	if err != nil {
		return nil, fmt.Errorf("split %q: %w", template, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty command template")
	}
	for i, w := range words {
		words[i] = vars.Replace(w)
	}
	return words, nil
}

func failed(step string, res StepResult, timeout time.Duration) ExecutionResult {
	out := ExecutionResult{
		Stdout:        res.Stdout,
		Stderr:        res.Stderr,
		ExitCode:      res.ExitCode,
		FailureReason: FailureRuntimeError,
		FailedStep:    step,
	}
	if res.TimedOut {
		out.FailureReason = FailureTimeout
		note := fmt.Sprintf("%s step exceeded its %s deadline and was terminated", step, timeout)
		if out.Stderr == "" {
			out.Stderr = note
		} else {
			out.Stderr = strings.TrimRight(out.Stderr, "\n") + "\n" + note
		}
	}
	return out
}
