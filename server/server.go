// Package server exposes the generation pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/dottxt/models"
	"github.com/aluiziolira/dottxt/pipeline"
	"github.com/aluiziolira/dottxt/scraper"
)

// Generator runs one document generation.
type Generator interface {
	Preflight() error
	Run(ctx context.Context, rawURL string, fullVersion bool, report models.Reporter) (*models.CrawlResult, error)
}

type crawlReq struct {
	URL         string `json:"url"`
	FullVersion bool   `json:"fullVersion"`
}

// Server routes /api/crawl and /health.
type Server struct {
	gen            Generator
	metrics        *scraper.Metrics
	requestTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics counts served requests.
func WithMetrics(m *scraper.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRequestTimeout bounds each generation. Zero disables the bound.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.requestTimeout = d }
}

// New builds a server around gen.
func New(gen Generator, opts ...Option) *Server {
	s := &Server{gen: gen}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed, logged handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/api/crawl", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.handleStream(w, r)
		case http.MethodGet:
			s.handleDirect(w, r)
		default:
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		}
	})
	return logRequest(s.metrics, mux)
}

// POST /api/crawl {"url": "...", "fullVersion": false} -> NDJSON progress stream
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var req crawlReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "URL is required"})
		return
	}
	if err := s.gen.Preflight(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	pipeline.SetStreamHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	stream := pipeline.NewStreamWriter(w)

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	result, err := s.gen.Run(ctx, req.URL, req.FullVersion, stream.Reporter())
	if err != nil {
		_ = stream.Fail(err)
	} else {
		_ = stream.Complete(result)
	}
	if err := stream.Err(); err != nil {
		slog.Debug("stream write failed", slog.String("url", req.URL), slog.Any("error", err))
	}
}

// GET /api/crawl?url=...&full=true -> text/plain document
func (s *Server) handleDirect(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	url := query.Get("url")
	if url == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "URL parameter is required"})
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	result, err := s.gen.Run(ctx, url, query.Get("full") == "true", nil)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": pipeline.ErrorMessage(err, "An error occurred")})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(result.Content))
}

func (s *Server) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.requestTimeout)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
