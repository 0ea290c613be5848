// Package server exposes the ingestion and query services over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tgruber/sourceqa/internal/metrics"
	"github.com/tgruber/sourceqa/internal/service"
	"github.com/tgruber/sourceqa/internal/store"
)

// Ingestor is the slice of the ingestion service the handlers need.
type Ingestor interface {
	Ingest(ctx context.Context, url, description string) (*store.Source, error)
	Delete(ctx context.Context, url string) error
	Sources(ctx context.Context) ([]store.Source, error)
}

// Querier answers questions.
type Querier interface {
	Answer(ctx context.Context, question string) (service.QueryResult, error)
}

// Server is the HTTP front of the application.
type Server struct {
	http     *http.Server
	ingestor Ingestor
	querier  Querier
	stats    *metrics.Collector
	log      *slog.Logger
}

// New creates a Server listening on addr.
func New(addr string, ingestor Ingestor, querier Querier, stats *metrics.Collector, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if stats == nil {
		stats = metrics.NewCollector()
	}
	s := &Server{
		ingestor: ingestor,
		querier:  querier,
		stats:    stats,
		log:      log,
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logging(s.log))

	r.Post("/sources", s.handleAddSource)
	r.Get("/sources", s.handleListSources)
	r.Delete("/sources/{url}", s.handleDeleteSource)
	r.Post("/query", s.handleQuery)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("http server shutting down")
	return s.http.Shutdown(shutdownCtx)
}

type addSourceRequest struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req addSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if _, err := url.ParseRequestURI(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, "url is not valid")
		return
	}

	src, err := s.ingestor.Ingest(r.Context(), req.URL, req.Description)
	if err != nil {
		if src != nil {
			// The record tells the caller what failed.
			writeJSON(w, http.StatusBadGateway, src)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, src)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.ingestor.Sources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sources == nil {
		sources = []store.Source{}
	}
	writeJSON(w, http.StatusOK, sources)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "url")
	target, err := url.PathUnescape(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "url is not valid")
		return
	}
	if err := s.ingestor.Delete(r.Context(), target); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": target})
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := s.querier.Answer(r.Context(), req.Query)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
