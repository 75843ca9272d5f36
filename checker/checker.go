package checker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/codecheck/apperr"
	"github.com/isdmx/codecheck/config"
	"github.com/isdmx/codecheck/diagnostic"
	"github.com/isdmx/codecheck/janitor"
	"github.com/isdmx/codecheck/language"
	"github.com/isdmx/codecheck/logger"
	"github.com/isdmx/codecheck/prepare"
	"github.com/isdmx/codecheck/sandbox"
	"github.com/isdmx/codecheck/toolchain"
)

// Response messages
const (
	MessageValid   = "Code is valid"
	MessageInvalid = "Syntax errors found"
)

// Request is one check of a code fragment
type Request struct {
	Language   string `json:"language"`
	Code       string `json:"code"`
	Execute    *bool  `json:"execute,omitempty"`
	Prewrapped bool   `json:"prewrapped,omitempty"`
	Stdin      string `json:"stdin,omitempty"`
	// RequestID correlates logs and names the ephemeral scope.
	RequestID string `json:"-"`
}

// ShouldExecute reports whether a valid fragment is run. Execution is on unless disabled.
func (r Request) ShouldExecute() bool {
	return r.Execute == nil || *r.Execute
}

// Response is the result of a check
type Response struct {
	Valid     bool                    `json:"valid"`
	Message   string                  `json:"message,omitempty"`
	Error     string                  `json:"error,omitempty"`
	Details   []diagnostic.Diagnostic `json:"details,omitempty"`
	Standard  string                  `json:"standard,omitempty"`
	Execution *Execution              `json:"execution,omitempty"`
	Language  LanguageInfo            `json:"language"`
}

// Execution reports how the sandbox run went. Output and Error are null when absent.
type Execution struct {
	Success       bool    `json:"success"`
	Output        *string `json:"output"`
	Error         *string `json:"error"`
	FailureReason string  `json:"failureReason,omitempty"`
}

// LanguageInfo echoes the requested identifier and its canonical code
type LanguageInfo struct {
	Requested  string `json:"requested"`
	Normalized string `json:"normalized"`
}

// Allocator hands out per-request ephemeral scopes
type Allocator interface {
	Allocate(correlationID string) (*janitor.Scope, error)
}

// Validator checks a prepared unit's syntax
type Validator interface {
	Validate(ctx context.Context, scope *janitor.Scope, unit prepare.Unit, budget time.Duration) (toolchain.SyntaxResult, error)
}

// Executor runs a validated unit
type Executor interface {
	Execute(ctx context.Context, scope *janitor.Scope, unit prepare.Unit, dialect string, opts sandbox.RunOptions) (sandbox.ExecutionResult, error)
}

// Checker wires the pipeline stages together
type Checker struct {
	allocator Allocator
	validator Validator
	executor  Executor
	logger    *zap.Logger

	maxSourceBytes  int
	validateTimeout time.Duration
	buildTimeout    time.Duration
	runTimeout      time.Duration
}

// New creates a Checker
func New(cfg *config.Config, allocator Allocator, validator Validator, executor Executor, log *zap.Logger) *Checker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Checker{
		allocator:       allocator,
		validator:       validator,
		executor:        executor,
		logger:          log,
		maxSourceBytes:  cfg.Server.MaxSourceBytes,
		validateTimeout: cfg.ValidateTimeout(),
		buildTimeout:    cfg.BuildTimeout(),
		runTimeout:      cfg.RunTimeout(),
	}
}

// MaxSourceBytes is the largest accepted code payload
func (c *Checker) MaxSourceBytes() int {
	return c.maxSourceBytes
}

// Check runs the pipeline for req. Compile failures and sandbox failures are
// reported in the Response; the returned error is always an *apperr.Error and
// is either a client error or an internal fault.
func (c *Checker) Check(ctx context.Context, req Request) (resp Response, err error) {
	log := logger.ForRequest(c.logger, req.RequestID)

	lang, err := c.admit(req)
	if err != nil {
		log.Debug("Rejected request", zap.Error(err))
		return Response{}, err
	}
	log = log.With(zap.String(logger.FieldLanguage, lang.String()))

	scope, err := c.allocator.Allocate(req.RequestID)
	if err != nil {
		return Response{}, apperr.Wrapf(err, apperr.Internal, "failed to allocate ephemeral scope")
	}
	log = log.With(zap.String(logger.FieldScope, scope.Token()))

	defer scope.Release(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Pipeline panicked", zap.Any("panic", r), zap.Stack("stack"))
			resp, err = Response{}, apperr.Newf(apperr.Internal, "pipeline panic: %v", r)
		}
	}()

	resp, err = c.run(ctx, log, scope, lang, req)
	if err != nil {
		log.Error("Check failed", zap.Error(err))
		return Response{}, apperr.Wrap(err, apperr.Internal)
	}
	return resp, nil
}

// admit validates the request without touching any resource
func (c *Checker) admit(req Request) (language.Code, error) {
	if strings.TrimSpace(req.Language) == "" {
		return "", apperr.Newf(apperr.InvalidParams, "language is required")
	}
	if strings.TrimSpace(req.Code) == "" {
		return "", apperr.Newf(apperr.InvalidParams, "code is required")
	}
	if c.maxSourceBytes > 0 && len(req.Code) > c.maxSourceBytes {
		return "", apperr.Newf(apperr.PayloadTooLarge, "code exceeds the %d byte limit", c.maxSourceBytes).
			WithDetail("limit", c.maxSourceBytes).
			WithDetail("size", len(req.Code))
	}

	lang, err := language.Normalize(req.Language)
	if err != nil {
		return "", apperr.Newf(apperr.UnsupportedLanguage, "unsupported language %q", req.Language).
			WithDetail("supported", language.SupportedAliases())
	}
	return lang, nil
}

func (c *Checker) run(ctx context.Context, log *zap.Logger, scope *janitor.Scope, lang language.Code, req Request) (Response, error) {
	unit, err := prepare.Prepare(req.Code, lang, prepare.Options{
		Token:         scope.Token(),
		Prewrapped:    req.Prewrapped,
		PythonImports: true,
	})
	if err != nil {
		return Response{}, fmt.Errorf("prepare: %w", err)
	}

	syntax, err := c.validator.Validate(ctx, scope, unit, c.validateTimeout)
	if err != nil {
		return Response{}, err
	}

	resp := Response{
		Valid:    syntax.Valid,
		Details:  syntax.Diagnostics,
		Language: LanguageInfo{Requested: req.Language, Normalized: lang.String()},
	}
	if lang == language.CPP || lang == language.C {
		resp.Standard = syntax.Dialect
	}

	log.Info("Validated code",
		zap.Bool("valid", syntax.Valid),
		zap.String("dialect", syntax.Dialect),
		zap.Int("diagnostics", len(syntax.Diagnostics)),
		zap.Int("attempts", len(syntax.Attempts)))

	if !syntax.Valid {
		resp.Message = MessageInvalid
		resp.Error = syntax.PrimaryError
		return resp, nil
	}
	resp.Message = MessageValid

	if !req.ShouldExecute() {
		return resp, nil
	}

	result, err := c.executor.Execute(ctx, scope, unit, syntax.Dialect, sandbox.RunOptions{
		Build: c.buildTimeout,
		Run:   c.runTimeout,
		Stdin: req.Stdin,
	})
	if err != nil {
		return Response{}, err
	}

	log.Info("Executed code",
		zap.Bool("success", result.Succeeded),
		zap.String("failure_reason", string(result.FailureReason)),
		zap.Int("exit_code", result.ExitCode))

	resp.Execution = executionOf(result)
	return resp, nil
}

func executionOf(result sandbox.ExecutionResult) *Execution {
	out := &Execution{
		Success: result.Succeeded,
		Output:  &result.Stdout,
	}
	if result.Stderr != "" {
		out.Error = &result.Stderr
	}
	if result.FailureReason != sandbox.FailureNone && result.FailureReason != "" {
		out.FailureReason = string(result.FailureReason)
	}
	return out
}
