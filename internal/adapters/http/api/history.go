// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sheldongordon4/coherence-engine/internal/adapters/history"
)

// HistoryProvider returns previously computed evaluation rows.
type HistoryProvider interface {
	// History returns up to limit of the most recent rows, oldest first.
	History(ctx context.Context, limit int) ([]history.Row, error)
}

// HistoryHandler handles evaluation history requests.
type HistoryHandler struct {
	provider HistoryProvider
	maxLimit int
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(provider HistoryProvider, maxLimit int) *HistoryHandler {
	return &HistoryHandler{provider: provider, maxLimit: maxLimit}
}

type historyResponse struct {
	Items []history.Row `json:"items"`
	Count int           `json:"count"`
}

// HandleGetHistory handles GET /coherence/history requests.
func (h *HistoryHandler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", h.maxLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if limit > h.maxLimit {
		limit = h.maxLimit
	}

	rows, err := h.provider.History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	if rows == nil {
		rows = []history.Row{}
	}

	writeJSON(w, http.StatusOK, historyResponse{Items: rows, Count: len(rows)})
}
