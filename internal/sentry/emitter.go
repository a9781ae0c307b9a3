package sentry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
	"github.com/sheldongordon4/coherence-engine/pkg/logger"
)

// Artifact naming and permission constants.
const (
	artifactTimeLayout  = "20060102T150405Z"
	artifactIDLength    = 8
	artifactPermission  = 0o644
	directoryPermission = 0o750
)

// Emitter persists incidents as write-once JSON artifacts named
// incident_<timestamp>_<window>_<id>.json. Files are opened with O_EXCL
// so an existing artifact is never overwritten.
type Emitter struct {
	dir   string
	now   func() time.Time
	newID func() string
	log   logger.Logger
}

// EmitterOption applies a configuration option to the Emitter.
type EmitterOption func(*Emitter)

// WithEmitterClock overrides the time source used in artifact names.
func WithEmitterClock(now func() time.Time) EmitterOption {
	return func(e *Emitter) {
		if now != nil {
			e.now = now
		}
	}
}

// WithArtifactID overrides the identifier suffix source. Tests pin it to
// exercise the write-once guarantee.
func WithArtifactID(fn func() string) EmitterOption {
	return func(e *Emitter) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEmitter creates an emitter writing into dir. The directory is
// created on first write, not here, so dry runs leave no trace.
func NewEmitter(dir string, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		dir:   dir,
		now:   time.Now,
		newID: func() string { return uuid.NewString()[:artifactIDLength] },
		log:   logger.Get().Named("emitter"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Write persists the incident and returns the artifact path.
func (e *Emitter) Write(ctx context.Context, incident model.Incident) (string, error) {
	if err := os.MkdirAll(e.dir, directoryPermission); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	name := fmt.Sprintf("incident_%s_%s_%s.json",
		e.now().UTC().Format(artifactTimeLayout), incident.Window, e.newID())
	path := filepath.Join(e.dir, name)

	payload, err := json.MarshalIndent(incident, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode incident: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, artifactPermission)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("artifact %s: %w", name, ErrArtifactExists)
		}
		return "", fmt.Errorf("create artifact: %w", err)
	}

	if _, err := file.Write(payload); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}

	e.log.Debug(ctx, "artifact written", logger.String("path", path))
	return path, nil
}
