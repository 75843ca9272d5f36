// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the check pipeline as the check_code tool
// using the mark3labs/mcp-go library. A tool call carries a language, the
// code and an optional execute flag, and returns the same JSON document the
// HTTP API answers with. Client errors and internal faults are reported as
// tool errors; internal faults only with a generic message.
//
// The server runs on stdio or streamable HTTP as configured in the mcp section.
//
// Usage:
//
//	server, err := mcpserver.New(cfg, logger, checker)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = server.Start(ctx)
package mcpserver
