// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
)

// StreamUpgrader upgrades metric stream requests to websocket subscriptions.
type StreamUpgrader interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// StreamHandler handles websocket subscription requests.
type StreamHandler struct {
	upgrader StreamUpgrader
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(upgrader StreamUpgrader) *StreamHandler {
	return &StreamHandler{upgrader: upgrader}
}

// HandleStream handles GET /coherence/stream requests.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	if h.upgrader == nil {
		writeError(w, http.StatusServiceUnavailable, "stream_unavailable", nil)
		return
	}
	h.upgrader.ServeWS(w, r)
}
