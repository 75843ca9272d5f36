package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/isdmx/codecheck/config"
)

// Server owns the HTTP listener for the API
type Server struct {
	httpServer      *http.Server
	logger          *zap.Logger
	shutdownTimeout time.Duration
}

// NewServer creates a Server for the router built from cfg and chk
func NewServer(cfg *config.Config, chk Checker, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Logging.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
			Handler:           NewRouter(cfg, chk, log),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		},
		logger:          log,
		shutdownTimeout: time.Duration(cfg.Server.ShutdownTimeoutSec) * time.Second,
	}
}

// Handler returns the underlying router
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.logger.Info("Starting HTTP API", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP API stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	s.logger.Info("Stopping HTTP API")
	return s.httpServer.Shutdown(ctx)
}
