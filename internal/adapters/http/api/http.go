// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
	"github.com/sheldongordon4/coherence-engine/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Evaluator
	Ingestor
	HistoryProvider
}

// Server wires HTTP routes for the coherence API.
type Server struct {
	healthHandler       *HealthHandler
	statusHandler       *StatusHandler
	metricsHandler      *MetricsHandler
	historyHandler      *HistoryHandler
	observationsHandler *ObservationsHandler
	streamHandler       *StreamHandler

	corsOrigins []string
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, status StatusProvider, stream StreamUpgrader, opts ...Option) *Server {
	s := &settings{
		version:       defaultVersion,
		defaultWindow: defaultWindowSpan,
		defaultSignal: defaultSignalID,
		historyLimit:  defaultHistoryLimit,
		includeLegacy: true,
		corsOrigins:   []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}

	return &Server{
		healthHandler:       NewHealthHandler(s.version),
		statusHandler:       NewStatusHandler(status),
		metricsHandler:      NewMetricsHandler(deps, s.defaultWindow, s.defaultSignal, s.includeLegacy),
		historyHandler:      NewHistoryHandler(deps, s.historyLimit),
		observationsHandler: NewObservationsHandler(deps),
		streamHandler:       NewStreamHandler(stream),
		corsOrigins:         s.corsOrigins,
	}
}

// Register attaches all HTTP routes to router.
func (s *Server) Register(_ context.Context, router *mux.Router) {
	router.Use(RequestIDMiddleware, LoggingMiddleware, MetricsMiddleware)

	router.HandleFunc("/health", s.healthHandler.HandleHealth).Methods(http.MethodGet)
	router.HandleFunc("/status", s.statusHandler.HandleStatus).Methods(http.MethodGet)
	router.HandleFunc("/observations", s.observationsHandler.HandlePostObservations).Methods(http.MethodPost)
	router.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	coherence := router.PathPrefix("/coherence").Subrouter()
	coherence.HandleFunc("/metrics", s.metricsHandler.HandleGetMetrics).Methods(http.MethodGet)
	coherence.HandleFunc("/history", s.historyHandler.HandleGetHistory).Methods(http.MethodGet)
	coherence.HandleFunc("/stream", s.streamHandler.HandleStream).Methods(http.MethodGet)
}

// Handler wraps an already registered router with the cross-origin policy
// browser dashboards need.
func (s *Server) Handler(router *mux.Router) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         corsMaxAgeSeconds,
	})
	return c.Handler(router)
}

// observationRequest mirrors the OpenAPI schema for POST /observations.
type observationRequest struct {
	Signal    string   `json:"signal"`
	SignalID  string   `json:"signal_id"`
	Timestamp string   `json:"timestamp"`
	Value     *float64 `json:"value"`
}

func (o observationRequest) validate() error {
	switch {
	case strings.TrimSpace(o.Signal) == "" && strings.TrimSpace(o.SignalID) == "":
		return errors.New("missing signal_id")
	case strings.TrimSpace(o.Timestamp) == "":
		return errors.New("missing timestamp")
	case o.Value == nil:
		return errors.New("missing value")
	}
	if _, err := time.Parse(time.RFC3339, o.Timestamp); err != nil {
		return errors.New("invalid timestamp; must be RFC3339")
	}
	return nil
}

// observation converts a validated request into the domain shape.
func (o observationRequest) observation() model.Observation {
	signal := strings.TrimSpace(o.Signal)
	if signal == "" {
		signal = strings.TrimSpace(o.SignalID)
	}
	ts, _ := time.Parse(time.RFC3339, o.Timestamp)
	return model.Observation{Signal: signal, TS: ts.UTC(), Value: *o.Value}
}

type ackResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
