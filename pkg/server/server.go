package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"aidr-hq/bastion/pkg/api/handlers"
	"aidr-hq/bastion/pkg/api/middleware"
	"aidr-hq/bastion/pkg/config"
	"aidr-hq/bastion/pkg/telemetry/health"
	"aidr-hq/bastion/pkg/telemetry/metrics"
	"aidr-hq/bastion/pkg/telemetry/tracing"
)

// API routes.
const (
	RouteRunPipeline = "/api/v1/run_pipeline"
	RouteFlows       = "/api/v1/flows"
	RouteVerdicts    = "/api/v1/verdicts"
)

// Server is the Bastion HTTP API server.
type Server struct {
	config        *config.ServerConfig
	metricsConfig *config.MetricsConfig
	handlers      *handlers.Handlers
	checker       *health.Checker
	collector     *metrics.Collector
	tracer        *tracing.Tracer
	logger        *slog.Logger

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         string
}

// New creates a server. checker, collector and tracer may be nil.
func New(cfg *config.ServerConfig, metricsCfg *config.MetricsConfig, h *handlers.Handlers, checker *health.Checker, collector *metrics.Collector, tracer *tracing.Tracer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if metricsCfg == nil {
		metricsCfg = &config.MetricsConfig{}
	}
	return &Server{
		config:        cfg,
		metricsConfig: metricsCfg,
		handlers:      h,
		checker:       checker,
		collector:     collector,
		tracer:        tracer,
		logger:        logger.With("component", "server"),
	}
}

// Start serves until ctx is cancelled, SIGINT or SIGTERM arrives, or the
// listener fails, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	if s.config.TLS.Enabled {
		tlsConfig, err := configureTLS(s.config.TLS)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.addr = ln.Addr().String()
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "address", s.addr, "tls_enabled", s.config.TLS.Enabled)

		var err error
		if s.config.TLS.Enabled {
			err = s.httpServer.ServeTLS(ln, s.config.TLS.CertFile, s.config.TLS.KeyFile)
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}
	return s.Shutdown(context.Background())
}

// Shutdown stops accepting connections and waits for in-flight requests
// up to the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		s.logger.Info("API server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the bound listen address once the server has started.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the routed handler wrapped in the middleware chain:
// recovery, request ID, access log, tracing, CORS and request timeout,
// outermost first.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+RouteRunPipeline, s.handlers.RunPipeline)
	mux.HandleFunc("GET "+RouteFlows, s.handlers.ListFlows)
	mux.HandleFunc("GET "+RouteVerdicts, s.handlers.ListVerdicts)
	if s.checker != nil {
		s.checker.Register(mux)
	}
	if s.metricsConfig.IsEnabled() && s.collector != nil {
		mux.Handle("GET "+s.metricsConfig.Path, s.collector.Handler())
	}

	return middleware.Chain(mux,
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger, s.collector, s.routes()),
		tracing.HTTPMiddleware(s.tracer),
		middleware.CORS(s.config.CORS),
		middleware.Timeout(s.config.RequestTimeout),
	)
}

func (s *Server) routes() []string {
	routes := []string{RouteRunPipeline, RouteFlows, RouteVerdicts, "/health", "/ready"}
	if s.metricsConfig.Path != "" {
		routes = append(routes, s.metricsConfig.Path)
	}
	return routes
}

func configureTLS(cfg config.TLSConfig) (*tls.Config, error) {
	if _, err := os.Stat(cfg.CertFile); err != nil {
		return nil, fmt.Errorf("TLS cert file: %w", err)
	}
	if _, err := os.Stat(cfg.KeyFile); err != nil {
		return nil, fmt.Errorf("TLS key file: %w", err)
	}
	return &tls.Config{MinVersion: tls.VersionTLS12}, nil
}
