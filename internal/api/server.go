// Package api provides the thin HTTP search surface for chatvault.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/chatvault/chatvault/internal/query"
	"github.com/chatvault/chatvault/internal/scheduler"
)

// SearchEngine defines the query operations the API needs.
type SearchEngine interface {
	Search(ctx context.Context, queryText string, opts query.Options) (*query.Result, error)
}

// IndexStats defines the index store operations the API needs.
type IndexStats interface {
	Count() (int64, error)
	Cursor() (int64, error)
}

// IndexScheduler defines the scheduler operations the API needs.
type IndexScheduler interface {
	Status() scheduler.Status
}

// Server represents the HTTP API server.
type Server struct {
	port      int
	engine    SearchEngine
	stats     IndexStats
	scheduler IndexScheduler
	logger    *slog.Logger
	router    chi.Router
	server    *http.Server
}

// NewServer creates a new API server. scheduler may be nil when the
// server runs without background indexing.
func NewServer(port int, engine SearchEngine, stats IndexStats, sched IndexScheduler, logger *slog.Logger) *Server {
	s := &Server{
		port:      port,
		engine:    engine,
		stats:     stats,
		scheduler: sched,
		logger:    logger,
	}
	s.router = s.setupRouter()
	return s
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(s.loggerMiddleware)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/stats", s.handleStats)
	})

	return r
}

// Start begins listening for HTTP requests on localhost.
func (s *Server) Start() error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(s.port))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.logger.Info("starting API server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down API server")
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// loggerMiddleware logs HTTP requests.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
