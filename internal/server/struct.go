package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ragd-io/ragd/internal/agent"
	"github.com/ragd-io/ragd/internal/session"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	// Must be long enough for a full agent round trip including tool calls.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives all Prometheus metric registrations.
	// Defaults to prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// chatSession is a per-user conversation that can answer one query.
// *agent.Agent satisfies it; tests inject a fake.
type chatSession interface {
	Query(ctx context.Context, userID, userMessage string) agent.Result
}

// sessionRegistry hands out per-user chat sessions and controls the active
// model. *Sessions (wrapping *session.Manager) satisfies it in production.
type sessionRegistry interface {
	// Get returns the session for userID, creating one if needed.
	Get(ctx context.Context, userID string) (chatSession, error)
	// SetModel switches the model used for all future sessions.
	SetModel(model string) error
	// Model returns the model name currently in use.
	Model() string
	// Len returns the number of live sessions.
	Len() int
}

// Sessions adapts a *session.Manager to the sessionRegistry interface.
type Sessions struct {
	// Manager is the underlying per-user session manager.
	Manager *session.Manager
}

// Get returns the agent session for userID.
func (s Sessions) Get(ctx context.Context, userID string) (chatSession, error) {
	return s.Manager.Get(ctx, userID)
}

// SetModel switches the active model on the underlying manager.
func (s Sessions) SetModel(model string) error { return s.Manager.SetModel(model) }

// Model returns the active model name.
func (s Sessions) Model() string { return s.Manager.Model() }

// Len returns the number of live sessions.
func (s Sessions) Len() int { return s.Manager.Len() }

// ingestor accepts a raw JSON payload and stores its entries.
// *longterm.Store satisfies it.
type ingestor interface {
	// Ingest parses data and stores one chunked document per entry.
	// Returns the number of entries successfully stored.
	Ingest(ctx context.Context, data []byte) (int, error)
}

// feedWorker controls the short-term ingestion worker.
// *shortterm.Store satisfies it.
type feedWorker interface {
	// RunWorker starts the background polling loop. Idempotent.
	RunWorker(ctx context.Context) error
	// StopWorker stops the loop and waits for it to exit.
	StopWorker()
	// Running reports whether the loop is active.
	Running() bool
	// Count returns the number of records currently held short-term.
	Count(ctx context.Context) (uint64, error)
	// FlushToLongTerm migrates all short-term records to archival storage.
	FlushToLongTerm(ctx context.Context) error
}

// Server is the HTTP server that fronts the QA agent and its stores.
type Server struct {
	// sessions hands out per-user agent sessions for /api/chat.
	sessions sessionRegistry
	// ingest receives admin document uploads. Nil disables the endpoint.
	ingest ingestor
	// worker is the short-term feed worker. Nil disables the worker endpoints.
	worker feedWorker
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds all Prometheus metrics owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// baseCtx outlives individual requests; the admin-started worker runs on it.
	baseCtx context.Context
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Query is the user's natural language question.
	Query string `json:"query"`
	// UserUUID identifies the conversation session.
	UserUUID string `json:"user_uuid"`
}

// uploadResponse is the JSON response for POST /api/admin/upload_json.
type uploadResponse struct {
	// Ingested is the number of entries successfully stored.
	Ingested int `json:"ingested"`
}

// workerStatusResponse is the JSON response for the worker endpoints.
type workerStatusResponse struct {
	// Running reports whether the polling loop is active.
	Running bool `json:"running"`
	// Count is the number of records currently held short-term.
	Count uint64 `json:"count"`
}

// modelRequest is the JSON body for POST /api/admin/model.
type modelRequest struct {
	// Model is the model name or deployment to switch to.
	Model string `json:"model"`
}

// modelResponse is the JSON response for the model endpoints.
type modelResponse struct {
	// Model is the model name currently in use.
	Model string `json:"model"`
	// Sessions is the number of live user sessions.
	Sessions int `json:"sessions"`
}

// errorResponse is the JSON error body for all endpoints.
type errorResponse struct {
	// Error is the human-readable failure reason.
	Error string `json:"error"`
}
