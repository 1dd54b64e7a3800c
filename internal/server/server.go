// Package server exposes the survey pipeline and similarity store over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sitewise-ai/sitewise/internal/config"
	"github.com/sitewise-ai/sitewise/internal/store"
	"github.com/sitewise-ai/sitewise/internal/survey"
)

// Analyzer runs one survey analysis end to end. Satisfied by
// *survey.Pipeline and by the Temporal-backed client.
type Analyzer interface {
	Run(ctx context.Context, images [][]byte, textNotes, surveyID string) (*survey.Result, error)
}

// Server is the sitewise HTTP API.
type Server struct {
	cfg      config.ServerConfig
	analyzer Analyzer
	store    store.Store
	metrics  http.Handler
	health   *healthRegistry
	log      *slog.Logger
	version  string

	httpServer *http.Server
}

// Options carries the optional collaborators for New.
type Options struct {
	// Metrics serves GET /metrics. Omitting it disables the endpoint.
	Metrics http.Handler
	Version string
	Logger  *slog.Logger
}

// New assembles the API server. analyzer and st are required.
func New(cfg config.ServerConfig, analyzer Analyzer, st store.Store, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		analyzer: analyzer,
		store:    st,
		metrics:  opts.Metrics,
		health:   newHealthRegistry(opts.Version),
		log:      log,
		version:  opts.Version,
	}
	s.health.register("store", StoreHealthChecker(func(ctx context.Context) error {
		_, err := st.Stats(ctx)
		return err
	}))
	return s
}

// RegisterHealthCheck adds a dependency probe to the /health endpoint.
func (s *Server) RegisterHealthCheck(name string, checker HealthChecker) {
	s.health.register(name, checker)
}

// Handler builds the route table with logging, recovery and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.health.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("POST /analyze-survey", s.handleAnalyze)
	mux.HandleFunc("GET /survey/{id}", s.handleGetSurvey)
	mux.HandleFunc("DELETE /survey/{id}", s.handleDeleteSurvey)
	mux.HandleFunc("GET /similar-surveys/{id}", s.handleSimilarSurveys)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return s.withRecovery(s.withLogging(withCORS(mux)))
}

// Run serves the API until ctx is cancelled or a shutdown signal arrives,
// then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdown := NewShutdownHandler(s.cfg.ShutdownTimeout, s.log)
	shutdown.RegisterHook("http-server", 10, func(ctx context.Context) error {
		s.health.setReady(false)
		return s.httpServer.Shutdown(ctx)
	})
	shutdown.Start()

	go func() {
		select {
		case <-ctx.Done():
			shutdown.Shutdown()
		case <-shutdown.ShutdownCh():
		}
	}()

	s.health.setReady(true)
	s.log.Info("api server listening", "addr", s.cfg.Addr())

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		shutdown.Shutdown()
		shutdown.Wait()
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
