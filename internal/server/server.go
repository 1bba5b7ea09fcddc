// Package server exposes the derived tables, the map and the run diagnostics
// over HTTP for a dashboard front end.
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/paveg/olist-eda/internal/errors"
	"github.com/paveg/olist-eda/internal/mapview"
	"github.com/paveg/olist-eda/internal/model"
	"github.com/paveg/olist-eda/internal/monitoring"
	"github.com/paveg/olist-eda/internal/table"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// APIPrefix is the path prefix of the table and map endpoints.
const APIPrefix = "/api"

// Server serves one computed Result. The Result is never modified, so
// handlers share it without locking.
type Server struct {
	result  *model.Result
	maps    *mapview.Cache
	metrics *monitoring.MetricsCollector
	logger  *zap.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics sets the collector served at /metrics
func WithMetrics(collector *monitoring.MetricsCollector) Option {
	return func(s *Server) { s.metrics = collector }
}

// WithMapCache replaces the map cache built from the result's sample
func WithMapCache(cache *mapview.Cache) Option {
	return func(s *Server) { s.maps = cache }
}

// New creates a server over result.
func New(result *model.Result, opts ...Option) *Server {
	s := &Server{
		result: result,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = monitoring.NewMetricsCollector(false)
	}
	if s.maps == nil {
		sample := result.Sample
		s.maps = mapview.NewCache(func() (*mapview.Map, error) {
			return mapview.Build(sample)
		})
	}
	return s
}

// NewRouter returns a router with every endpoint registered.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.withLogging)

	r.HandleFunc("/health", monitoring.HealthHandler(s.metrics)).Methods(http.MethodGet)
	r.HandleFunc("/metrics", monitoring.MetricsHandler(s.metrics)).Methods(http.MethodGet)
	r.HandleFunc("/dashboard", monitoring.DashboardHandler(s.metrics)).Methods(http.MethodGet)

	// Registered on the root router: a subrouter reports a method mismatch as 404
	routes := []struct {
		path    string
		handler http.HandlerFunc
	}{
		{"/products", tableHandler(s.result.Products)},
		{"/categories", tableHandler(s.result.Categories)},
		{"/customers", tableHandler(s.result.Customers)},
		{"/customers/sample", tableHandler(s.result.Sample)},
		{"/regions", tableHandler(s.result.Regions)},
		{"/orders/daily", tableHandler(s.result.Daily)},
		{"/growth", tableHandler(s.result.Growth)},
		{"/map", s.handleMap},
		{"/diagnostics", s.handleDiagnostics},
	}
	for _, route := range routes {
		r.HandleFunc(APIPrefix+route.path, route.handler).Methods(http.MethodGet)
	}

	return r
}

// Handler returns the router wrapped for cross-origin access. CORS sits
// outside the router so preflight requests never reach method matching.
func (s *Server) Handler() http.Handler {
	return withCORS(s.NewRouter())
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second, //nolint:mnd // Standard timeout value
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// tableHandler serves a table as a JSON array, truncated by ?limit=n.
func tableHandler[T any](t table.Table[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := parseLimit(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, t.Head(limit))
	}
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, stderrors.New("limit must be a non-negative integer")
	}
	return n, nil
}

func (s *Server) handleMap(w http.ResponseWriter, _ *http.Request) {
	m, err := s.maps.Get()
	if err != nil {
		if stderrors.Is(err, errors.ErrEmptyGroup) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("building map", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build map")
		return
	}

	body, err := m.GeoJSON()
	if err != nil {
		s.logger.Error("encoding map", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to encode map")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.result.Diagnostics)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// withCORS allows read-only cross-origin access for a separately hosted front end.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodOptions)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}
