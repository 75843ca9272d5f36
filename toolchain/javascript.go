package toolchain

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/isdmx/codecheck/apperr"
	"github.com/isdmx/codecheck/diagnostic"
	"github.com/isdmx/codecheck/janitor"
	"github.com/isdmx/codecheck/prepare"
)

//go:embed parse_check.js
var parseCheckScript string

const parseCheckFile = "parse-check.cjs"

const parserBabel = "babel"

// parseAttempt is one parse of the JS helper
type parseAttempt struct {
	Mode       string `json:"mode"`
	OK         bool   `json:"ok"`
	Message    string `json:"message"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	ReasonCode string `json:"reasonCode"`
}

type parseReport struct {
	Parser   string         `json:"parser"`
	Attempts []parseAttempt `json:"attempts"`
}

// specificity ranks how much structure a parse failure carries
func (a parseAttempt) specificity() int {
	score := 0
	if a.ReasonCode != "" {
		score += 2
	}
	if a.Line > 0 {
		score++
	}
	return score
}

func (d *Driver) validateJavaScript(ctx context.Context, scope *janitor.Scope, unit prepare.Unit, source string) (SyntaxResult, error) {
	helper, err := scope.WriteFile(parseCheckFile, parseCheckScript)
	if err != nil {
		return SyntaxResult{}, apperr.Wrapf(err, apperr.Internal, "failed to stage parse helper")
	}

	res, err := d.run(ctx, scope, []string{d.tools.Node, helper, source, d.tools.BabelParserPath})
	if err != nil {
		return SyntaxResult{}, err
	}
	if res.TimedOut {
		return SyntaxResult{
			Diagnostics: []diagnostic.Diagnostic{timeoutDiagnostic()},
			Attempts:    []CompileAttempt{{Dialect: "module", TimedOut: true}},
		}, nil
	}

	var report parseReport
	if err := json.Unmarshal([]byte(strings.TrimSpace(res.Stdout)), &report); err != nil || len(report.Attempts) == 0 {
		return SyntaxResult{}, apperr.Newf(apperr.Internal, "unreadable parse helper output").
			WithDetail("stderr", res.Stderr)
	}
	if report.Parser != parserBabel {
		d.logger.Warn("Babel parser unavailable, JavaScript checked with node's built-in parser; TypeScript and JSX will be reported as syntax errors",
			zap.String("babel_parser_path", d.tools.BabelParserPath),
			zap.String("parser", report.Parser))
	}

	attempts := make([]CompileAttempt, 0, len(report.Attempts))
	for _, a := range report.Attempts {
		attempts = append(attempts, CompileAttempt{
			Dialect:   a.Mode,
			Stderr:    a.compilerLine(unit.FileName),
			Succeeded: a.OK,
		})
		if a.OK {
			return SyntaxResult{Valid: true, Dialect: a.Mode, Attempts: attempts}, nil
		}
	}

	best := mostSpecific(report.Attempts)
	return SyntaxResult{
		Dialect:     best.Mode,
		Diagnostics: extractOrFallback(diagnostic.FormatCompiler, best.compilerLine(unit.FileName), unit.Offset, false),
		Attempts:    attempts,
	}, nil
}

// mostSpecific picks the failure carrying the most parser detail; ties go to
// the earlier (module) attempt.
func mostSpecific(attempts []parseAttempt) parseAttempt {
	best := attempts[0]
	for _, a := range attempts[1:] {
		if a.specificity() > best.specificity() {
			best = a
		}
	}
	return best
}

// compilerLine renders a failure in the file:line:column shape the extractor reads
func (a parseAttempt) compilerLine(file string) string {
	if a.OK {
		return ""
	}
	line := max(a.Line, 1)
	message := strings.Join(strings.Fields(a.Message), " ")
	return fmt.Sprintf("%s:%d:%d: error: %s\n", file, line, a.Column, message)
}
