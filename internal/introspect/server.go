// Package introspect implements the optional HTTP server a gomy
// DataSource can expose for operational visibility: /healthz, /stats,
// and /metrics. This library manages one pool, not a fleet of them, so
// there is no tenant CRUD surface or admin dashboard here.
package introspect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gomy/gomy/pool"
)

// StatsSource is satisfied by *pool.Pool; accepting an interface makes the
// handlers testable against a fake.
type StatsSource interface {
	Stats() pool.Stats
}

// Server is the introspection HTTP server for one DataSource.
type Server struct {
	bind       string
	pool       StatsSource
	registry   http.Handler
	logger     *slog.Logger
	startTime  time.Time
	httpServer *http.Server
	listener   net.Listener
}

// Addr returns the bound address, valid only after Start returns nil.
// Useful when bind ends in ":0" and the kernel picked the port.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// New builds a Server bound to addr (host:port, or host:0 to let the
// kernel choose a port). metricsHandler is normally promhttp.HandlerFor
// wrapping the DataSource's private prometheus registry.
func New(bind string, p StatsSource, metricsHandler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		bind:      bind,
		pool:      p,
		registry:  metricsHandler,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Start begins serving in the background. It returns once the listener
// is bound, so callers can immediately read Addr() for an ephemeral port.
func (s *Server) Start() error {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthHandler).Methods("GET")
	r.HandleFunc("/stats", s.statsHandler).Methods("GET")
	if s.registry != nil {
		r.Handle("/metrics", s.registry)
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	s.httpServer = &http.Server{
		Addr:         s.bind,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("introspect: binding %s: %w", s.bind, err)
	}
	s.listener = ln

	s.logger.Info("introspect server listening", "addr", ln.Addr().String())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("introspect server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := s.pool.Stats()
	status := http.StatusOK
	body := map[string]any{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"pool":           stats,
	}
	if stats.Total == 0 {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
	}
	writeJSON(w, status, body)
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]any{
		"pool":           s.pool.Stats(),
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"memory_mb":      float64(mem.Alloc) / 1024 / 1024,
		"go_version":     runtime.Version(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
