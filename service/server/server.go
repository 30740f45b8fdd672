package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/walletlens/service/config"
	"github.com/brojonat/walletlens/service/logging"
	"github.com/brojonat/walletlens/service/metrics"
	"github.com/brojonat/walletlens/service/temporal"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestIDHeader carries the request id assigned by requestIDMiddleware.
const RequestIDHeader = "X-Request-ID"

// Server represents the HTTP server for walletlens.
type Server struct {
	addr       string
	cfg        *config.Config
	dashboards DashboardService
	scheduler  temporal.Scheduler
	stream     DashboardStream
	ring       *logging.Ring
	metrics    *metrics.Metrics
	logger     *slog.Logger
	server     *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The scheduler is optional - if nil, watch endpoints won't be available.
// The stream is optional - if nil, SSE endpoints won't be available.
// The ring is optional - if nil, the diagnostics log endpoint won't be available.
// The metrics is optional - if nil, metrics endpoints won't be available.
func New(
	addr string,
	cfg *config.Config,
	dashboards DashboardService,
	scheduler temporal.Scheduler,
	stream DashboardStream,
	ring *logging.Ring,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	return &Server{
		addr:       addr,
		cfg:        cfg,
		dashboards: dashboards,
		scheduler:  scheduler,
		stream:     stream,
		ring:       ring,
		metrics:    m,
		logger:     logger,
	}
}

// Handler builds the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, pattern)(h))
	}

	// Wallet routes
	route("GET /api/v1/wallets/{address}/dashboard", handleDashboard(s.dashboards, s.logger))
	route("GET /api/v1/wallets/{address}/transactions", handleTransactions(s.dashboards, s.logger))
	route("GET /api/v1/wallets/{address}/portfolio", handlePortfolio(s.dashboards, s.logger))
	route("GET /api/v1/wallets/{address}/trades", handleTrades(s.dashboards, s.logger))
	route("GET /api/v1/prices/{id}", handlePrice(s.dashboards, s.logger))

	// Watch routes (if scheduler is configured)
	if s.scheduler != nil {
		route("POST /api/v1/watches", handleCreateWatch(s.scheduler, s.cfg.DefaultRefreshInterval, s.cfg.MinRefreshInterval, s.logger))
		route("DELETE /api/v1/watches/{address}", handleDeleteWatch(s.scheduler, s.logger))
	} else {
		s.logger.Warn("scheduler not configured, watch endpoints disabled")
	}

	// SSE streaming endpoint (if stream is configured)
	if s.stream != nil {
		route("GET /api/v1/stream/dashboards/{address}", handleStreamDashboards(s.stream, s.metrics, s.logger))
	} else {
		s.logger.Warn("dashboard stream not configured, streaming endpoint disabled")
	}

	// Diagnostics
	if s.ring != nil {
		route("GET /api/v1/logs", handleLogs(s.ring))
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return requestIDMiddleware(corsMiddleware(mux))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // covers a full dashboard load
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+RequestIDHeader)
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestIDMiddleware echoes the caller's request id or assigns a new one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}
