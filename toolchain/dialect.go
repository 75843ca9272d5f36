package toolchain

import (
	"context"
	"fmt"
	"regexp"
)

// CompileAttempt is one toolchain invocation under a specific dialect
type CompileAttempt struct {
	Dialect   string
	Stderr    string
	Succeeded bool
	TimedOut  bool
}

// AttemptFunc compiles the unit under one dialect
type AttemptFunc func(ctx context.Context, dialect string) (CompileAttempt, error)

// A failure counts as a standard-compatibility complaint only when it names a
// standard level or flag, not merely the word "standard".
var dialectComplaintPatterns = []*regexp.Regexp{
	regexp.MustCompile(`-std=`),
	regexp.MustCompile(`(?i)\bISO C\+\+\s*(?:\d{2}|[0-9][a-z])?\s*(?:does not|forbids|requires)`),
	regexp.MustCompile(`(?i)\bC\+\+\s?(?:\d{2}|[0-9][a-z])\s+(?:extension|feature)`),
	regexp.MustCompile(`(?i)\b(?:only available|available only) (?:with|in|since) (?:-std=)?(?:c|gnu)\+\+\d{2}`),
	regexp.MustCompile(`(?i)\b(?:removed|deprecated|incompatible) in C\+\+\s?\d{2}`),
	regexp.MustCompile(`(?i)\bis a C\+\+\d{2} (?:extension|feature)`),
	regexp.MustCompile(`(?i)\bstandard (?:level|version)\b`),
}

// IsDialectComplaint reports whether stderr rejects code because of the selected standard level
func IsDialectComplaint(stderr string) bool {
	for _, re := range dialectComplaintPatterns {
		if re.MatchString(stderr) {
			return true
		}
	}
	return false
}

// SearchDialects tries dialects in order and stops at the first success or at
// the first failure that does not complain about the standard level. If every
// dialect is rejected for its standard, the last attempt is returned. The
// search makes at most len(dialects) attempts.
func SearchDialects(ctx context.Context, dialects []string, attempt AttemptFunc) (CompileAttempt, []CompileAttempt, error) {
	if len(dialects) == 0 {
		return CompileAttempt{}, nil, fmt.Errorf("no dialects to search")
	}

	attempts := make([]CompileAttempt, 0, len(dialects))
	for _, dialect := range dialects {
		if err := ctx.Err(); err != nil && len(attempts) > 0 {
			return attempts[len(attempts)-1], attempts, nil
		}

		a, err := attempt(ctx, dialect)
		if err != nil {
			return CompileAttempt{}, attempts, err
		}
		a.Dialect = dialect
		attempts = append(attempts, a)

		if a.Succeeded || a.TimedOut || !IsDialectComplaint(a.Stderr) {
			return a, attempts, nil
		}
	}

	return attempts[len(attempts)-1], attempts, nil
}
