// Package server exposes the bill extraction pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MeKo-Tech/billparse/internal/billpipe"
)

// Processor runs one document through the extraction pipeline.
// *billpipe.Pipeline satisfies it.
type Processor interface {
	ProcessURL(ctx context.Context, url string, obs billpipe.Observer) (*billpipe.Result, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	processor        Processor
	corsOrigin       string
	timeout          time.Duration
	metricsEnabled   bool
	websocketEnabled bool
	logger           *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Host             string
	Port             int
	CORSOrigin       string
	TimeoutSec       int
	MetricsEnabled   bool
	WebSocketEnabled bool
	Logger           *slog.Logger
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Commit  string `json:"commit,omitempty"`
	Time    string `json:"time"`
}

// ExtractRequest is the body of POST /extract-bill-data and of WebSocket requests.
type ExtractRequest struct {
	Document string `json:"document"`
}

// ErrorResponse is written for every failed request.
type ErrorResponse struct {
	IsSuccess bool   `json:"is_success"`
	Message   string `json:"message"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// NewServer creates a server around processor.
func NewServer(config Config, processor Processor) (*Server, error) {
	if processor == nil {
		return nil, errors.New("server: processor is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	corsOrigin := config.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	return &Server{
		processor:        processor,
		corsOrigin:       corsOrigin,
		timeout:          time.Duration(config.TimeoutSec) * time.Second,
		metricsEnabled:   config.MetricsEnabled,
		websocketEnabled: config.WebSocketEnabled,
		logger:           logger,
	}, nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.wrap(s.healthHandler))
	mux.HandleFunc("/extract-bill-data", s.wrap(s.extractHandler))
	if s.websocketEnabled {
		mux.HandleFunc("/ws/extract", s.wrap(s.extractWebSocketHandler))
	}
	if s.metricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
	}
}

// Handler returns a mux with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

func (s *Server) wrap(h http.HandlerFunc) http.HandlerFunc {
	return s.requestIDMiddleware(s.corsMiddleware(h))
}
