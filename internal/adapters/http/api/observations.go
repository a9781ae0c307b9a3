// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
)

// maxObservationBody bounds how much of a POST /observations payload is read.
const maxObservationBody = 1 << 20

// Ingestor accepts observations for asynchronous processing.
type Ingestor interface {
	// Enqueue pushes an observation for async processing. Returns false on
	// backpressure.
	Enqueue(ctx context.Context, obs model.Observation) bool
}

// ObservationsHandler handles observation submissions.
type ObservationsHandler struct {
	ingestor Ingestor
}

// NewObservationsHandler creates a new observations handler.
func NewObservationsHandler(ingestor Ingestor) *ObservationsHandler {
	return &ObservationsHandler{ingestor: ingestor}
}

// HandlePostObservations handles POST /observations requests. The body is
// either a single record or an array of records; a batch is validated as a
// whole before anything is enqueued.
func (h *ObservationsHandler) HandlePostObservations(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxObservationBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	requests, err := decodeObservations(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	observations := make([]model.Observation, 0, len(requests))
	for i, req := range requests {
		if err := req.validate(); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request",
				fmt.Errorf("%w: record %d: %v", ErrBadRequest, i, err))
			return
		}
		observations = append(observations, req.observation())
	}

	for i, obs := range observations {
		if ok := h.ingestor.Enqueue(r.Context(), obs); !ok {
			writeError(w, http.StatusServiceUnavailable, "queue_full",
				fmt.Errorf("%w: queue full after %d of %d records", ErrBackpressure, i, len(observations)))
			return
		}
	}

	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Count: len(observations)})
}

// decodeObservations accepts a bare record or a JSON array of records.
func decodeObservations(body []byte) ([]observationRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty body")
	}

	if trimmed[0] == '[' {
		var batch []observationRequest
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, fmt.Errorf("malformed batch: %v", err)
		}
		if len(batch) == 0 {
			return nil, errors.New("empty batch")
		}
		return batch, nil
	}

	var single observationRequest
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, fmt.Errorf("malformed record: %v", err)
	}
	return []observationRequest{single}, nil
}
