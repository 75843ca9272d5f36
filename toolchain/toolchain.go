package toolchain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/codecheck/apperr"
	"github.com/isdmx/codecheck/config"
	"github.com/isdmx/codecheck/diagnostic"
	"github.com/isdmx/codecheck/janitor"
	"github.com/isdmx/codecheck/language"
	"github.com/isdmx/codecheck/prepare"
	"github.com/isdmx/codecheck/process"
)

// SyntaxResult is the terminal artifact of validation
type SyntaxResult struct {
	Valid        bool
	Dialect      string
	Diagnostics  []diagnostic.Diagnostic
	PrimaryError string
	Attempts     []CompileAttempt
}

// Driver dispatches validation to the toolchain of each language
type Driver struct {
	runner process.Runner
	tools  config.ToolchainConfig
	logger *zap.Logger
}

// NewDriver creates a toolchain driver
func NewDriver(cfg *config.Config, runner process.Runner, logger *zap.Logger) *Driver {
	if runner == nil {
		runner = process.RealRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		runner: runner,
		tools:  cfg.Toolchain,
		logger: logger,
	}
}

// Validate writes unit into scope and checks it within budget. Compile
// failures and timeouts are reported in the result; only internal faults are
// returned as errors.
func (d *Driver) Validate(ctx context.Context, scope *janitor.Scope, unit prepare.Unit, budget time.Duration) (SyntaxResult, error) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	source, err := scope.WriteFile(unit.FileName, unit.Source)
	if err != nil {
		return SyntaxResult{}, apperr.Wrapf(err, apperr.Internal, "failed to stage source")
	}

	d.logger.Debug("Validating unit",
		zap.String("language", unit.Language.String()),
		zap.String("file", unit.FileName),
		zap.Int("offset", unit.Offset))

	var result SyntaxResult
	switch unit.Language {
	case language.Python:
		result, err = d.validatePython(ctx, scope, unit, source)
	case language.JavaScript:
		result, err = d.validateJavaScript(ctx, scope, unit, source)
	case language.Java:
		result, err = d.validateJava(ctx, scope, unit, source)
	case language.CPP:
		result, err = d.validateCPP(ctx, scope, unit, source)
	case language.C:
		result, err = d.validateC(ctx, scope, unit, source)
	default:
		return SyntaxResult{}, apperr.Wrap(fmt.Errorf("%w: %s", language.ErrNotSupported, unit.Language), apperr.UnsupportedLanguage)
	}
	if err != nil {
		return SyntaxResult{}, err
	}

	result.PrimaryError = diagnostic.Primary(result.Diagnostics)
	return result, nil
}

func (d *Driver) validatePython(ctx context.Context, scope *janitor.Scope, unit prepare.Unit, source string) (SyntaxResult, error) {
	res, err := d.run(ctx, scope, []string{d.tools.Python, "-m", "py_compile", source},
		"PYTHONPYCACHEPREFIX="+scope.Dir()+"/pycache")
	if err != nil {
		return SyntaxResult{}, err
	}
	return d.single(res, "", diagnostic.FormatPython, unit.Offset), nil
}

func (d *Driver) validateJava(ctx context.Context, scope *janitor.Scope, unit prepare.Unit, source string) (SyntaxResult, error) {
	classes, err := scope.Mkdir("classes")
	if err != nil {
		return SyntaxResult{}, apperr.Wrapf(err, apperr.Internal, "failed to create class output directory")
	}

	res, err := d.run(ctx, scope, []string{d.tools.Javac, "-Xlint:none", "-d", classes, source})
	if err != nil {
		return SyntaxResult{}, err
	}
	return d.single(res, "", diagnostic.FormatJavac, unit.Offset), nil
}

func (d *Driver) validateC(ctx context.Context, scope *janitor.Scope, unit prepare.Unit, source string) (SyntaxResult, error) {
	args := []string{d.tools.GCC, "-std=" + d.tools.CStandard, "-fsyntax-only", "-Wall", "-Wextra",
		"-fno-diagnostics-color", source}
	res, err := d.run(ctx, scope, args)
	if err != nil {
		return SyntaxResult{}, err
	}

	result := d.single(res, d.tools.CStandard, diagnostic.FormatCompiler, unit.Offset)
	// Warnings are reported but never invalidate C.
	result.Valid = !res.TimedOut && !diagnostic.HasErrors(result.Diagnostics)
	return result, nil
}

func (d *Driver) validateCPP(ctx context.Context, scope *janitor.Scope, unit prepare.Unit, source string) (SyntaxResult, error) {
	chosen, attempts, err := SearchDialects(ctx, d.tools.CPPStandards, func(ctx context.Context, dialect string) (CompileAttempt, error) {
		args := []string{d.tools.GXX, "-std=" + dialect, "-fsyntax-only", "-fno-diagnostics-color", source}
		res, err := d.run(ctx, scope, args)
		if err != nil {
			return CompileAttempt{}, err
		}
		d.logger.Debug("C++ dialect attempt",
			zap.String("dialect", dialect),
			zap.Int("exit_code", res.ExitCode),
			zap.Bool("timed_out", res.TimedOut))
		return CompileAttempt{
			Stderr:    res.Stderr,
			Succeeded: res.ExitCode == 0 && !res.TimedOut,
			TimedOut:  res.TimedOut,
		}, nil
	})
	if err != nil {
		return SyntaxResult{}, err
	}

	result := SyntaxResult{
		Valid:    chosen.Succeeded,
		Dialect:  chosen.Dialect,
		Attempts: attempts,
	}
	switch {
	case chosen.TimedOut:
		result.Diagnostics = []diagnostic.Diagnostic{timeoutDiagnostic()}
	default:
		result.Diagnostics = extractOrFallback(diagnostic.FormatCompiler, chosen.Stderr, unit.Offset, chosen.Succeeded)
	}
	return result, nil
}

// single builds the result of a toolchain that runs exactly once
func (d *Driver) single(res process.Result, dialect string, format diagnostic.Format, offset int) SyntaxResult {
	attempt := CompileAttempt{
		Dialect:   dialect,
		Stderr:    res.Stderr + res.Stdout,
		Succeeded: res.ExitCode == 0 && !res.TimedOut,
		TimedOut:  res.TimedOut,
	}
	result := SyntaxResult{
		Valid:    attempt.Succeeded,
		Dialect:  dialect,
		Attempts: []CompileAttempt{attempt},
	}
	if res.TimedOut {
		result.Diagnostics = []diagnostic.Diagnostic{timeoutDiagnostic()}
		return result
	}
	result.Diagnostics = extractOrFallback(format, attempt.Stderr, offset, attempt.Succeeded)
	return result
}

// run invokes a toolchain binary inside the scope directory
func (d *Driver) run(ctx context.Context, scope *janitor.Scope, args []string, env ...string) (process.Result, error) {
	res, err := d.runner.Run(ctx, process.Spec{
		Args:       args,
		Dir:        scope.Dir(),
		Env:        env,
		InheritEnv: true,
	})
	if err != nil {
		if errors.Is(err, process.ErrNotFound) {
			return process.Result{}, apperr.Wrap(err, apperr.ToolchainMissing).WithDetail("binary", args[0])
		}
		return process.Result{}, apperr.Wrapf(err, apperr.Internal, "failed to run %s", args[0])
	}
	return res, nil
}

// extractOrFallback parses raw and, when a failed run yields no error
// diagnostic, reports its first output line as an error at line 1.
func extractOrFallback(format diagnostic.Format, raw string, offset int, succeeded bool) []diagnostic.Diagnostic {
	diags := diagnostic.Extract(format, raw, offset)
	if succeeded || diagnostic.HasErrors(diags) {
		return diags
	}

	message := "the toolchain rejected the code without a diagnostic"
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			message = line
			break
		}
	}
	return append(diags, diagnostic.Diagnostic{
		Line:       1,
		Severity:   diagnostic.SeverityError,
		Message:    message,
		Suggestion: diagnostic.Suggest(message),
	})
}

// TimeoutMessage is the diagnostic reported when validation runs out of time
const TimeoutMessage = "validation exceeded its time budget; the toolchain was stopped"

func timeoutDiagnostic() diagnostic.Diagnostic {
	message := TimeoutMessage
	return diagnostic.Diagnostic{
		Line:       1,
		Severity:   diagnostic.SeverityError,
		Message:    message,
		Suggestion: diagnostic.Suggest(message),
	}
}
