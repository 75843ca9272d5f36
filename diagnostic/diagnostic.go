package diagnostic

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// Severity of a diagnostic
type Severity string

// Severities
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Format selects the line shape of a toolchain's error stream
type Format int

// Toolchain output families
const (
	FormatCompiler Format = iota // gcc, g++, clang, the JS parse helper
	FormatJavac
	FormatPython
)

// Diagnostic is one remapped compiler or parser message
type Diagnostic struct {
	Line       int      `json:"line"`
	Column     int      `json:"column"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

var (
	compilerPattern     = regexp.MustCompile(`^(.+?):(\d+):(\d+): (fatal error|error|warning): (.*)$`)
	compilerLinePattern = regexp.MustCompile(`^(.+?):(\d+): (fatal error|error|warning): (.*)$`)
	javacPattern        = regexp.MustCompile(`^(.+\.java):(\d+): (error|warning): (.*)$`)
	pythonFilePattern   = regexp.MustCompile(`^\s*File "(.+)", line (\d+)`)
	pythonErrorPattern  = regexp.MustCompile(`^([A-Za-z_][\w.]*(?:Error|Warning|Exception)):?\s?(.*)$`)
	caretPattern        = regexp.MustCompile(`^\s*\^`)
)

// pythonEchoIndent is the indentation python uses when echoing the offending line
const pythonEchoIndent = 4

// Extract parses raw with the family's line pattern and remaps every line by offset
func Extract(format Format, raw string, offset int) []Diagnostic {
	lines := splitLines(raw)

	var out []Diagnostic
	switch format {
	case FormatJavac:
		out = extractJavac(lines)
	case FormatPython:
		out = extractPython(lines)
	default:
		out = extractCompiler(lines)
	}

	for i := range out {
		out[i].Line = Remap(out[i].Line, offset)
		out[i].Suggestion = Suggest(out[i].Message)
	}
	return out
}

// Remap converts a wrapped-file line into the user-visible line
func Remap(rawLine, offset int) int {
	return max(1, rawLine-offset)
}

// Primary returns the message of the first error-severity diagnostic
func Primary(diags []Diagnostic) string {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return d.Message
		}
	}
	return ""
}

// HasErrors reports whether any diagnostic has error severity
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func extractCompiler(lines []string) []Diagnostic {
	var out []Diagnostic
	for _, line := range lines {
		if m := compilerPattern.FindStringSubmatch(line); m != nil {
			out = append(out, Diagnostic{
				Line:     atoi(m[2]),
				Column:   atoi(m[3]),
				Severity: severityOf(m[4]),
				Message:  strings.TrimSpace(m[5]),
			})
			continue
		}
		if m := compilerLinePattern.FindStringSubmatch(line); m != nil {
			out = append(out, Diagnostic{
				Line:     atoi(m[2]),
				Severity: severityOf(m[3]),
				Message:  strings.TrimSpace(m[4]),
			})
		}
	}
	return out
}

func extractJavac(lines []string) []Diagnostic {
	var out []Diagnostic
	for i, line := range lines {
		m := javacPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		d := Diagnostic{
			Line:     atoi(m[2]),
			Severity: severityOf(m[3]),
			Message:  strings.TrimSpace(m[4]),
		}
		// javac echoes the source line, then a caret under the column
		for j := i + 1; j < len(lines) && j <= i+2; j++ {
			if caretPattern.MatchString(lines[j]) {
				d.Column = strings.Index(lines[j], "^") + 1
				break
			}
		}
		out = append(out, d)
	}
	return out
}

func extractPython(lines []string) []Diagnostic {
	var out []Diagnostic
	var pending *Diagnostic

	for _, line := range lines {
		if m := pythonFilePattern.FindStringSubmatch(line); m != nil {
			pending = &Diagnostic{Line: atoi(m[2]), Severity: SeverityError}
			continue
		}
		if pending == nil {
			continue
		}
		if caretPattern.MatchString(line) {
			if col := strings.Index(line, "^") - pythonEchoIndent + 1; col > 0 {
				pending.Column = col
			}
			continue
		}
		if m := pythonErrorPattern.FindStringSubmatch(strings.TrimPrefix(line, "Sorry: ")); m != nil {
			name := m[1]
			pending.Message = name
			if detail := strings.TrimSpace(m[2]); detail != "" {
				pending.Message = name + ": " + detail
			}
			if strings.HasSuffix(name, "Warning") {
				pending.Severity = SeverityWarning
			}
			out = append(out, *pending)
			pending = nil
		}
	}
	return out
}

func severityOf(s string) Severity {
	if s == "warning" {
		return SeverityWarning
	}
	return SeverityError
}

func splitLines(raw string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	return lines
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
