// Package server exposes the broker over HTTP: form-encoded POST routes, a
// JSON {code, message, data} envelope, health and Prometheus endpoints.
package server

import (
	"context"
	"net/http"

	"github.com/ajitpratap0/sfbridge/pkg/clients"
	"github.com/ajitpratap0/sfbridge/pkg/config"
	"github.com/ajitpratap0/sfbridge/pkg/errors"
	"github.com/ajitpratap0/sfbridge/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server serves the broker routes
type Server struct {
	service  Service
	config   config.ServerConfig
	engine   *gin.Engine
	metrics  http.Handler
	upstream UpstreamStats
	logger   *zap.Logger
}

// UpstreamStats reports counters of the outbound HTTP client
type UpstreamStats interface {
	GetStats() clients.HTTPStats
}

// Option configures a Server
type Option func(*Server)

// WithUpstreamStats adds the outbound client's counters to /healthz
func WithUpstreamStats(stats UpstreamStats) Option {
	return func(s *Server) {
		s.upstream = stats
	}
}

// New builds the gin engine and routes
func New(service Service, cfg config.ServerConfig, log *zap.Logger, opts ...Option) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	s := &Server{
		service: service,
		config:  cfg,
		metrics: metrics.Handler(),
		logger:  log.With(zap.String("component", "http_server")),
	}
	for _, opt := range opts {
		opt(s)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestID())
	engine.Use(accessLog(s.logger))
	s.register(engine)
	s.engine = engine

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address(),
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server starting",
			zap.String("addr", srv.Addr),
			zap.Bool("tls", s.config.TLSEnabled()))

		var err error
		if s.config.TLSEnabled() {
			err = srv.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown requested")
	case err, open := <-errCh:
		if open && err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "http server failed")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "graceful shutdown failed")
	}
	s.logger.Info("http server stopped")
	return nil
}
