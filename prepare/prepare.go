package prepare

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/isdmx/codecheck/language"
)

// Unit is a prepared, immutable compilation unit
type Unit struct {
	Language  language.Code
	Source    string
	Offset    int    // synthetic lines before the first user line
	ClassName string // Java only: public class the file must be named after
	FileName  string
}

// Options tune the wrapping decision for one request
type Options struct {
	// Token is the request-scoped unique token. Synthesized names derive from it.
	Token string
	// Prewrapped passes C++ input through without the header preamble.
	Prewrapped bool
	// PythonImports prepends the common import block to Python fragments.
	PythonImports bool
}

const cppPreamble = `#include <algorithm>
#include <cmath>
#include <iostream>
#include <map>
#include <memory>
#include <set>
#include <string>
#include <unordered_map>
#include <vector>
using namespace std;
`

const cPreamble = `#include <math.h>
#include <stdio.h>
#include <stdlib.h>
#include <string.h>

int main(void) {
`

const cEpilogue = `
    return 0;
}
`

const javaImports = `import java.io.*;
import java.util.*;
import java.util.stream.*;
`

const pythonImports = `import json
import math
import os
import re
import sys
`

var (
	entryPointPattern = regexp.MustCompile(`\bmain\s*\(`)
	javaTypePattern   = regexp.MustCompile(`(?m)^[ \t]*((?:(?:public|protected|private|final|abstract|static|sealed|non-sealed|strictfp)\s+)*)(?:class|interface|enum|record)\s+([A-Za-z_$][\w$]*)`)
	tokenCleaner      = regexp.MustCompile(`[^A-Za-z0-9]`)
	futureImport      = regexp.MustCompile(`(?m)^from[ \t]+__future__[ \t]+import\b`)
	javaPackageDecl   = regexp.MustCompile(`(?m)^[ \t]*package[ \t]+[\w.]+[ \t]*;[ \t]*$`)
)

// Prepare wraps code for lang. The same code, language and options always
// produce the same source and offset.
func Prepare(code string, lang language.Code, opts Options) (Unit, error) {
	body := Dedent(code)

	switch lang {
	case language.JavaScript:
		return Unit{Language: lang, Source: ensureTrailingNewline(body), FileName: "main.js"}, nil
	case language.Python:
		return preparePython(body, opts), nil
	case language.Java:
		return prepareJava(body, opts), nil
	case language.CPP:
		return prepareCPP(body, opts), nil
	case language.C:
		return prepareC(body), nil
	default:
		return Unit{}, fmt.Errorf("prepare: %w: %s", language.ErrNotSupported, lang)
	}
}

func preparePython(body string, opts Options) Unit {
	unit := Unit{Language: language.Python, FileName: "main.py"}
	// __future__ imports must open the file
	if !opts.PythonImports || futureImport.MatchString(body) {
		unit.Source = ensureTrailingNewline(body)
		return unit
	}
	unit.Source = pythonImports + ensureTrailingNewline(body)
	unit.Offset = lineCount(pythonImports)
	return unit
}

func prepareCPP(body string, opts Options) Unit {
	unit := Unit{Language: language.CPP, FileName: "main.cpp"}
	if opts.Prewrapped {
		unit.Source = ensureTrailingNewline(body)
		return unit
	}
	unit.Source = cppPreamble + ensureTrailingNewline(body)
	unit.Offset = lineCount(cppPreamble)
	return unit
}

func prepareC(body string) Unit {
	unit := Unit{Language: language.C, FileName: "main.c"}
	if HasEntryPoint(body) {
		unit.Source = ensureTrailingNewline(body)
		return unit
	}
	unit.Source = cPreamble + strings.TrimRight(body, "\n") + cEpilogue
	unit.Offset = lineCount(cPreamble)
	return unit
}

func prepareJava(body string, opts Options) Unit {
	body = dropPackage(body)
	if name, ok := JavaClassName(body); ok {
		return Unit{
			Language:  language.Java,
			Source:    javaImports + ensureTrailingNewline(body),
			Offset:    lineCount(javaImports),
			ClassName: name,
			FileName:  name + ".java",
		}
	}

	name := SyntheticClassName(opts.Token)
	header := fmt.Sprintf("public class %s {\npublic static void main(String[] args) throws Exception {\n", name)
	return Unit{
		Language:  language.Java,
		Source:    javaImports + header + strings.TrimRight(body, "\n") + "\n}\n}\n",
		Offset:    lineCount(javaImports) + lineCount(header),
		ClassName: name,
		FileName:  name + ".java",
	}
}

// dropPackage blanks the package declaration so the class compiles into the
// default package. The line stays so user line numbers do not move.
func dropPackage(body string) string {
	loc := javaPackageDecl.FindStringIndex(body)
	if loc == nil {
		return body
	}
	return body[:loc[0]] + body[loc[1]:]
}

// HasEntryPoint reports whether a C/C++ fragment defines main
func HasEntryPoint(code string) bool {
	return entryPointPattern.MatchString(code)
}

// JavaClassName returns the type the file must be named after: the public
// top-level type if there is one, otherwise the first declared type.
func JavaClassName(code string) (string, bool) {
	matches := javaTypePattern.FindAllStringSubmatch(code, -1)
	if len(matches) == 0 {
		return "", false
	}
	for _, m := range matches {
		if strings.Contains(m[1], "public") {
			return m[2], true
		}
	}
	return matches[0][2], true
}

// SyntheticClassName derives a Java identifier from the request token
func SyntheticClassName(token string) string {
	cleaned := tokenCleaner.ReplaceAllString(token, "")
	// the tail carries the per-request counter
	if len(cleaned) > 24 {
		cleaned = cleaned[len(cleaned)-24:]
	}
	if cleaned == "" {
		return "Snippet"
	}
	return "Snippet_" + cleaned
}

// Dedent strips the leading whitespace shared by every non-blank line.
// Line count is preserved so user line numbers stay stable.
func Dedent(code string) string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	lines := strings.Split(code, "\n")

	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix = indent
			first = false
			continue
		}
		prefix = commonPrefix(prefix, indent)
		if prefix == "" {
			break
		}
	}

	if prefix == "" {
		return code
	}

	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, prefix)
		if strings.TrimSpace(lines[i]) == "" {
			lines[i] = strings.TrimLeft(lines[i], " \t")
		}
	}
	return strings.Join(lines, "\n")
}

func commonPrefix(a, b string) string {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}

func ensureTrailingNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func lineCount(block string) int {
	return strings.Count(block, "\n")
}
