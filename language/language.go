package language

import (
	"errors"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Code is a canonical language identifier
type Code string

// Canonical language codes
const (
	JavaScript Code = "javascript"
	Python     Code = "python"
	Java       Code = "java"
	CPP        Code = "cpp"
	C          Code = "c"
)

// ErrNotSupported is returned for identifiers outside the alias table
var ErrNotSupported = errors.New("language not supported")

var aliases = map[Code][]string{
	JavaScript: {"javascript", "js", "node", "nodejs", "ts", "typescript", "jsx", "tsx", "mjs", "cjs", "ecmascript"},
	Python:     {"python", "py", "py3", "python3"},
	Java:       {"java", "jdk"},
	CPP:        {"cpp", "c++", "cplusplus", "cxx", "cc", "c++11", "c++14", "c++17", "c++20", "g++"},
	C:          {"c", "c89", "c99", "c11", "c17", "gcc"},
}

var lookup = buildLookup()

var folder = cases.Fold()

func buildLookup() map[string]Code {
	m := make(map[string]Code)
	for code, names := range aliases {
		for _, name := range names {
			m[name] = code
		}
	}
	return m
}

// Normalize resolves identifier case-insensitively against the alias table
func Normalize(identifier string) (Code, error) {
	key := folder.String(strings.TrimSpace(identifier))
	if code, ok := lookup[key]; ok {
		return code, nil
	}
	return "", ErrNotSupported
}

// Codes returns the canonical codes in a stable order
func Codes() []Code {
	return []Code{JavaScript, Python, Java, CPP, C}
}

// Aliases returns a copy of the alias table
func Aliases() map[Code][]string {
	out := make(map[Code][]string, len(aliases))
	for code, names := range aliases {
		out[code] = append([]string(nil), names...)
	}
	return out
}

// SupportedAliases returns every accepted identifier, sorted
func SupportedAliases() []string {
	out := make([]string, 0, len(lookup))
	for name := range lookup {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Compiled reports whether the language needs a build step before running
func (c Code) Compiled() bool {
	return c == Java || c == CPP || c == C
}

func (c Code) String() string {
	return string(c)
}
