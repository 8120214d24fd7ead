package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"hchttp/gateway/pkg/config"
	"hchttp/gateway/pkg/proxy"
	"hchttp/gateway/pkg/proxy/handlers"
	"hchttp/gateway/pkg/proxy/middleware"
	"hchttp/gateway/pkg/telemetry/health"
	"hchttp/gateway/pkg/telemetry/metrics"
)

// Server is the HTTP front of the gateway.
type Server struct {
	config       *config.GatewayConfig
	metrics      *config.MetricsConfig
	payloadLimit int

	dispatcher handlers.Dispatcher
	checker    *health.Checker
	collector  *metrics.Collector

	httpServer   *http.Server
	listener     net.Listener
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a new server. checker and collector may be nil, in which
// case /ready always reports ready and metrics are neither recorded nor served.
func NewServer(cfg *config.Config, d handlers.Dispatcher, checker *health.Checker, collector *metrics.Collector) *Server {
	if checker == nil {
		checker = health.New(0)
	}
	return &Server{
		config:       &cfg.Gateway,
		metrics:      &cfg.Telemetry.Metrics,
		payloadLimit: cfg.Limits.PayloadLimitBytes,
		dispatcher:   d,
		checker:      checker,
		collector:    collector,
		shutdownChan: make(chan struct{}),
	}
}

// Start binds the listener and serves until ctx is canceled, Stop is called
// or the server fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	listener, err := net.Listen("tcp", s.config.ListenAddress())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress(), err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:        s.setupRoutes(),
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		slog.Info("starting gateway server", "address", listener.Addr().String())
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	case <-s.shutdownChan:
		slog.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Stop asks a running Start to shut down.
func (s *Server) Stop() {
	select {
	case <-s.shutdownChan:
	default:
		close(s.shutdownChan)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		slog.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		slog.Info("gateway server stopped")
	})

	return shutdownErr
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures HTTP routes and middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /health", handlers.NewHealthHandler())
	mux.Handle("GET /ready", s.checker.ReadinessHandler())
	if s.collector != nil && s.metrics.Enabled {
		mux.Handle("GET "+s.metrics.Path, s.collector.Handler())
	}

	mux.Handle("GET "+proxy.ZomeCallPattern, handlers.NewZomeCallHandler(s.dispatcher, s.payloadLimit))
	mux.Handle(proxy.ZomeCallPattern, handlers.MethodNotAllowedHandler{})

	var handler http.Handler = mux

	if s.collector != nil {
		handler = middleware.MetricsMiddleware(s.collector)(handler)
	}

	handler = middleware.LoggingMiddleware(handler)

	handler = middleware.RequestIDMiddleware(handler)

	// Recovery middleware (outermost)
	handler = middleware.RecoveryMiddleware(handler)

	return handler
}
