// Package apperr defines the coded error type shared by the HTTP and MCP
// surfaces.
//
// Only two classes of failure are ever returned as errors from the check
// pipeline: client errors (bad, oversized or unsupported input) and internal
// faults. Compiler diagnostics and sandbox failures are part of a successful
// response and never surface here.
package apperr
