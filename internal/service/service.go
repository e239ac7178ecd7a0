// Package service exposes the text layer embedding engine over HTTP:
// a single document endpoint plus health, readiness and metrics routes.
package service

import (
	"net/http"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/semaphore"

	"github.com/lucidpdf/textlayer/internal/config"
	"github.com/lucidpdf/textlayer/observability"
	"github.com/lucidpdf/textlayer/ocr"
	"github.com/lucidpdf/textlayer/overlay"
)

type Server struct {
	cfg      config.Service
	engine   *overlay.Engine
	provider ocr.Provider
	log      observability.Logger
	metrics  *metrics
	sem      *semaphore.Weighted

	// per-IP rate limiters
	limiters sync.Map

	handler http.Handler
}

// New assembles the HTTP surface around an engine and an OCR provider.
// A nil logger disables logging; a nil engine gets default settings.
func New(cfg config.Service, engine *overlay.Engine, provider ocr.Provider, log observability.Logger) *Server {
	if log == nil {
		log = observability.NopLogger{}
	}
	if engine == nil {
		engine = overlay.NewEngine(overlay.Config{Logger: log})
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	s := &Server{
		cfg:      cfg,
		engine:   engine,
		provider: provider,
		log:      log.With(observability.String("component", "http")),
		metrics:  newMetrics(),
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/v1/documents",
		s.withMetrics("/v1/documents",
			s.withAuth(
				s.withRateLimit(
					withMethod(http.MethodPost,
						s.withConcurrency(s.handleDocuments))))))

	return withRequestID(s.withLogging(s.withRecovery(mux)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleReady reports degraded when no OCR provider key is configured,
// since every document request would fail at the extraction step.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSpace(s.cfg.ProviderKey) == "" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"reason": "OCR provider key is not configured",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"code":    code,
		"error":   message,
	})
}
