// Package server exposes the orchestration engine over HTTP: a buffered
// query endpoint, an SSE stream, the analysis endpoint, and datasource
// management.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/talkdata-labs/talkdata/internal/analysis"
	"github.com/talkdata-labs/talkdata/internal/datasource"
	"github.com/talkdata-labs/talkdata/internal/engine"
)

// QueryRunner is the engine capability the server consumes.
type QueryRunner interface {
	Run(ctx context.Context, req engine.Request) *engine.RunResult
	Stream(ctx context.Context, req engine.Request) <-chan engine.Event
}

// Analyzer produces chart recommendations.
type Analyzer interface {
	Analyze(ctx context.Context, records []analysis.Record, question string) (*analysis.Result, error)
}

// Config holds server wiring.
type Config struct {
	Runner   QueryRunner
	Analyzer Analyzer
	Sources  *datasource.Manager

	// OnSwap runs after a successful datasource swap (cache invalidation).
	OnSwap func()

	Host        string
	Port        int
	CORSOrigins []string
	Logger      *slog.Logger
}

// Server is the HTTP front of the engine.
type Server struct {
	runner   QueryRunner
	analyzer Analyzer
	sources  *datasource.Manager
	onSwap   func()
	host     string
	port     int
	origins  []string
	logger   *slog.Logger
}

// NewServer creates a server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		runner:   cfg.Runner,
		analyzer: cfg.Analyzer,
		sources:  cfg.Sources,
		onSwap:   cfg.OnSwap,
		host:     cfg.Host,
		port:     cfg.Port,
		origins:  cfg.CORSOrigins,
		logger:   logger,
	}
}

// Routes builds the router. Split out so tests can drive handlers without a
// listener.
func (s *Server) Routes() chi.Router {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		s.cors,
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/query", s.handleQuery)
		r.Post("/query/stream", s.handleQueryStream)
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/datasource", s.handleDatasourceSwap)
		r.Post("/datasource/upload", s.handleCSVUpload)
	})

	return r
}

// Serve starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.logger.Info("starting server", "addr", addr)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// cors allows the configured origins. Streaming responses need the headers
// up front, so this runs before any handler writes.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, o := range s.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
