// Package prepare turns a bare source fragment into a unit a toolchain can
// compile or run, recording how many synthetic lines were injected ahead of
// the user's first line so diagnostics can be mapped back.
package prepare
