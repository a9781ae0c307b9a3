// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sheldongordon4/coherence-engine/internal/domain/coherence"
	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
)

// Evaluator computes coherence metrics over a rolling window.
type Evaluator interface {
	// Evaluate returns the snapshot for signal across the window span
	// ending now, together with its interpretation. The request id is
	// threaded into the history row the evaluation leaves behind.
	Evaluate(ctx context.Context, signal, span, requestID string) (model.Snapshot, coherence.Interpretation, error)
}

// MetricsHandler handles coherence metric requests.
type MetricsHandler struct {
	evaluator     Evaluator
	defaultWindow string
	defaultSignal string
	includeLegacy bool
}

// NewMetricsHandler creates a new metrics handler.
func NewMetricsHandler(evaluator Evaluator, defaultWindow, defaultSignal string, includeLegacy bool) *MetricsHandler {
	return &MetricsHandler{
		evaluator:     evaluator,
		defaultWindow: defaultWindow,
		defaultSignal: defaultSignal,
		includeLegacy: includeLegacy,
	}
}

// HandleGetMetrics handles GET /coherence/metrics requests.
func (h *MetricsHandler) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	span := stringParam(r, "window", h.defaultWindow)
	signal := stringParam(r, "signal", h.defaultSignal)
	includeLegacy := boolParam(r, "include_legacy", h.includeLegacy)

	snap, interp, err := h.evaluator.Evaluate(r.Context(), signal, span, RequestIDFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, model.ErrInvalidWindow) {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	writeJSON(w, http.StatusOK, coherence.Present(snap, interp, includeLegacy))
}
