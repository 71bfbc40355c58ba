package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/statepage/internal/config"
)

const defaultShutdownTimeout = 30 * time.Second

// Server runs the HTTP listener until the context ends or a stop is
// requested through Globals.
type Server struct {
	cfg     config.ServerConfig
	http    *http.Server
	globals *Globals
	logger  *zap.Logger
}

// New returns a Server for handler.
func New(cfg config.ServerConfig, handler http.Handler, globals *Globals, logger *zap.Logger) *Server {
	return &Server{
		cfg: cfg,
		http: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
			ErrorLog:     zap.NewStdLog(logger.Named("http")),
		},
		globals: globals,
		logger:  logger,
	}
}

// Run listens on the configured address and serves until shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done or a stop is requested, then drains
// in-flight requests within the shutdown timeout. It returns nil after a
// clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("server started", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown initiated", zap.String("reason", "signal"))
	case <-s.globals.Stopped():
		s.logger.Info("shutdown initiated", zap.String("reason", "stop requested"))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout == 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
