package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/codecheck/apperr"
	"github.com/isdmx/codecheck/checker"
	"github.com/isdmx/codecheck/config"
	"github.com/isdmx/codecheck/language"
	"github.com/isdmx/codecheck/logger"
)

// ToolName is the name the check tool is registered under
const ToolName = "check_code"

// Checker runs the check pipeline
type Checker interface {
	Check(ctx context.Context, req checker.Request) (checker.Response, error)
}

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	checker   Checker
	mcpServer *server.MCPServer

	mu     sync.Mutex
	cancel context.CancelFunc
	http   *http.Server
	done   chan struct{}
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, chk Checker) (*MCPServer, error) {
	if chk == nil {
		return nil, errors.New("mcpserver: checker is required")
	}
	s := &MCPServer{
		config:  cfg,
		logger:  logger,
		checker: chk,
	}

	s.mcpServer = server.NewMCPServer("codecheck", "1.0.0", server.WithToolCapabilities(false))
	s.registerCheckCodeTool()

	return s, nil
}

// registerCheckCodeTool registers the check_code tool
func (s *MCPServer) registerCheckCodeTool() {
	tool := mcp.Tool{
		Name:        ToolName,
		Description: "Validate the syntax of a code fragment and, when valid, run it in a sandbox",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"language": map[string]any{
					"type":        "string",
					"description": "Language name or alias",
					"enum":        language.SupportedAliases(),
				},
				"code": map[string]any{
					"type":        "string",
					"description": "Source code fragment",
				},
				"execute": map[string]any{
					"type":        "boolean",
					"description": "Run the code after a successful syntax check (default true)",
				},
			},
			Required: []string{"language", "code"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleCheckCode)
}

// handleCheckCode handles the check_code tool
func (s *MCPServer) handleCheckCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	requestID := uuid.NewString()
	log := logger.ForRequest(s.logger, requestID)

	lang, err := request.RequireString("language")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("language parameter is required: %v", err)), nil
	}
	code, err := request.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("code parameter is required: %v", err)), nil
	}
	execute := request.GetBool("execute", true)

	log.Info("Check requested over MCP", zap.String(logger.FieldLanguage, lang), zap.Bool("execute", execute))

	resp, err := s.checker.Check(ctx, checker.Request{
		Language:  lang,
		Code:      code,
		Execute:   &execute,
		RequestID: requestID,
	})
	if err != nil {
		if !apperr.CodeOf(err).IsClient() {
			log.Error("Check failed", zap.Error(err))
		}
		return mcp.NewToolResultError(apperr.PublicMessage(err)), nil
	}

	body, err := json.Marshal(resp)
	if err != nil {
		log.Error("Failed to encode check response", zap.Error(err))
		return mcp.NewToolResultError(apperr.Internal.Message()), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

// Start serves the configured transport in the background
func (s *MCPServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	switch s.config.MCP.Transport {
	case "stdio":
		s.logger.Info("Starting MCP server on stdio")
		stdio := server.NewStdioServer(s.mcpServer)
		go func() {
			defer close(done)
			if err := stdio.Listen(runCtx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("MCP stdio server stopped", zap.Error(err))
			}
		}()
	case "http":
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.MCP.HTTPPort))
		if err != nil {
			cancel()
			s.done = nil
			return fmt.Errorf("failed to listen for MCP: %w", err)
		}
		s.logger.Info("Starting MCP server on HTTP", zap.String("addr", ln.Addr().String()))
		srv := &http.Server{
			Handler:           server.NewStreamableHTTPServer(s.mcpServer),
			ReadHeaderTimeout: 10 * time.Second,
		}
		s.http = srv
		go func() {
			defer close(done)
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("MCP HTTP server stopped", zap.Error(err))
			}
		}()
	default:
		cancel()
		s.done = nil
		return fmt.Errorf("unsupported mcp transport: %s", s.config.MCP.Transport)
	}
	return nil
}

// Stop shuts the transport down and waits for it to exit
func (s *MCPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return nil
	}

	s.cancel()
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}

	select {
	case <-s.done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	s.done = nil
	s.http = nil
	return err
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
