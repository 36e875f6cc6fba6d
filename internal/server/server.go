// Package server implements the HTTP API that fronts the ragd question
// answering agent: per-user chat, admin corpus management, worker control,
// health/readiness probes, and Prometheus metrics.
// The server is started by the `ragd serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ragd-io/ragd/internal/logging"
)

// maxUploadBytes bounds the admin upload payload to keep a bad client from
// exhausting memory.
const maxUploadBytes = 32 << 20

// New constructs a Server from the provided dependencies and config.
// sessions is required; ingest and worker may be nil, which disables the
// corresponding admin endpoints with 503.
func New(sessions sessionRegistry, ingest ingestor, worker feedWorker, cfg *Config) (*Server, error) {
	if sessions == nil {
		return nil, fmt.Errorf("server: sessions must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full agent round trip including tool calls.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	s := &Server{
		sessions: sessions,
		ingest:   ingest,
		worker:   worker,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(cfg.MetricsRegistry),
		baseCtx:  context.Background(),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		log.Warn("server: RAGD_API_KEY not set — API authentication disabled")
	}

	protect := func(name string, h http.HandlerFunc) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(s.instrument(name, h)))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", protect("chat", s.handleChat))
	mux.Handle("POST /api/admin/upload_json", protect("upload_json", s.handleUpload))
	mux.Handle("POST /api/admin/worker/start", protect("worker_start", s.handleWorkerStart))
	mux.Handle("POST /api/admin/worker/stop", protect("worker_stop", s.handleWorkerStop))
	mux.Handle("POST /api/admin/worker/flush", protect("worker_flush", s.handleWorkerFlush))
	mux.Handle("GET /api/admin/worker/status", protect("worker_status", s.handleWorkerStatus))
	mux.Handle("POST /api/admin/model", protect("model_set", s.handleModelSet))
	mux.Handle("GET /api/admin/model", protect("model_get", s.handleModelGet))
	mux.Handle("GET /api/health", s.instrument("health", s.handleHealth))
	mux.Handle("GET /api/ready", s.instrument("ready", s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	// Admin-started workers must survive individual requests but die with the server.
	s.baseCtx = ctx

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		if s.worker != nil && s.worker.Running() {
			s.worker.StopWorker()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// instrument wraps a handler with the per-endpoint request counter and
// latency histogram. name is the logical endpoint label, not the URL path.
func (s *Server) instrument(name string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		start := time.Now()
		next(rw, r)
		elapsed := time.Since(start)

		s.metrics.httpRequestsTotal.WithLabelValues(
			r.Method, name, fmt.Sprintf("%d", rw.status),
		).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).
			Observe(elapsed.Seconds())
	})
}

// handleChat handles POST /api/chat. It routes the query to the caller's
// per-user agent session and returns the structured result as JSON.
// Agent-level failures are delivered in-band via the result's error field
// with HTTP 200; only transport and session construction problems surface
// as HTTP errors.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.UserUUID == "" {
		writeError(w, http.StatusBadRequest, "user_uuid is required")
		return
	}

	s.metrics.chatActiveRequests.Inc()
	defer s.metrics.chatActiveRequests.Dec()
	start := time.Now()

	sess, err := s.sessions.Get(r.Context(), req.UserUUID)
	if err != nil {
		log.Error("chat: session construction failed", slog.Any("error", err))
		s.observeChat("error", start)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	result := sess.Query(r.Context(), req.UserUUID, req.Query)

	outcome := "ok"
	if result.IsError() {
		outcome = "error"
	}
	s.observeChat(outcome, start)

	writeJSON(w, http.StatusOK, result)
}

// handleUpload handles POST /api/admin/upload_json. The request body is the
// raw JSON payload to ingest — either an object keyed by document ID or an
// array of documents.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.ingest == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion is not configured")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "request body is empty")
		return
	}

	n, err := s.ingest.Ingest(r.Context(), data)
	if err != nil {
		log.Error("upload: ingestion failed",
			slog.Int("ingested", n),
			slog.Any("error", err),
		)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Info("upload: ingestion complete", slog.Int("ingested", n))
	writeJSON(w, http.StatusOK, uploadResponse{Ingested: n})
}

// handleWorkerStart handles POST /api/admin/worker/start.
// The worker runs on the server's base context so it outlives this request.
func (s *Server) handleWorkerStart(w http.ResponseWriter, r *http.Request) {
	if s.worker == nil {
		writeError(w, http.StatusServiceUnavailable, "worker is not configured")
		return
	}
	if err := s.worker.RunWorker(s.baseCtx); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeWorkerStatus(w, r)
}

// handleWorkerStop handles POST /api/admin/worker/stop.
func (s *Server) handleWorkerStop(w http.ResponseWriter, r *http.Request) {
	if s.worker == nil {
		writeError(w, http.StatusServiceUnavailable, "worker is not configured")
		return
	}
	s.worker.StopWorker()
	s.writeWorkerStatus(w, r)
}

// handleWorkerFlush handles POST /api/admin/worker/flush: an immediate
// migration of all short-term records to archival storage.
func (s *Server) handleWorkerFlush(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.worker == nil {
		writeError(w, http.StatusServiceUnavailable, "worker is not configured")
		return
	}
	if err := s.worker.FlushToLongTerm(r.Context()); err != nil {
		log.Error("worker: manual flush failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeWorkerStatus(w, r)
}

// handleWorkerStatus handles GET /api/admin/worker/status.
func (s *Server) handleWorkerStatus(w http.ResponseWriter, r *http.Request) {
	if s.worker == nil {
		writeError(w, http.StatusServiceUnavailable, "worker is not configured")
		return
	}
	s.writeWorkerStatus(w, r)
}

// writeWorkerStatus writes the current worker state as JSON. A failed count
// is reported as zero rather than failing the whole status call.
func (s *Server) writeWorkerStatus(w http.ResponseWriter, r *http.Request) {
	resp := workerStatusResponse{Running: s.worker.Running()}
	if n, err := s.worker.Count(r.Context()); err == nil {
		resp.Count = n
	} else {
		logging.FromContext(r.Context()).Warn("worker: status count failed", slog.Any("error", err))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleModelSet handles POST /api/admin/model. Existing sessions are rebuilt
// lazily on their next request.
func (s *Server) handleModelSet(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req modelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.sessions.SetModel(req.Model); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	log.Info("model switched", slog.String("model", req.Model))
	s.writeModel(w)
}

// handleModelGet handles GET /api/admin/model.
func (s *Server) handleModelGet(w http.ResponseWriter, _ *http.Request) {
	s.writeModel(w)
}

// writeModel writes the active model and session count as JSON.
func (s *Server) writeModel(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, modelResponse{
		Model:    s.sessions.Model(),
		Sessions: s.sessions.Len(),
	})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// observeChat records one completed chat request.
func (s *Server) observeChat(outcome string, start time.Time) {
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
