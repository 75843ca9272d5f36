// Package diagnostic converts raw toolchain error streams into structured,
// line-remapped diagnostics.
//
// Each toolchain family has its own line shape: compiler style
// (file:line:column: severity: message), javac style (file:line: severity:
// message followed by a caret line) and interpreter style (File "x", line N).
// Lines that do not match the family's shape are dropped. Every reported line
// is shifted back by the wrapper offset and floored at 1.
package diagnostic
