// Package main is the entry point for the codecheck server.
//
// The server accepts a code fragment in one of several languages, checks its
// syntax with the host toolchain (retrying C++ across language standards),
// and runs valid code in an isolated sandbox. Results, structured compiler
// diagnostics and sandbox output are returned as JSON over HTTP, and
// optionally through an MCP tool.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
