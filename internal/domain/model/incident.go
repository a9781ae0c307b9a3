package model

import (
	"math"
	"time"
)

// Incident envelope constants.
const (
	IncidentKind   = "drift_incident"
	AutomationName = "drift_sentry"
)

// AssessmentEntry is the persisted form of a Finding.
type AssessmentEntry struct {
	Signal string  `json:"signal"`
	Metric string  `json:"metric"`
	Value  float64 `json:"value"`
	Level  string  `json:"level"`
}

// Automation identifies the process that emitted an incident.
type Automation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Trace carries the incident's provenance: the emitting system and the
// upstream the evaluated series came from.
type Trace struct {
	Source   string `json:"source"`
	Upstream string `json:"upstream"`
}

// Incident is the immutable audit record written by a sentry run.
// Write-once; the artifact identifier must be unique per emission.
type Incident struct {
	Kind       string            `json:"kind"`
	CreatedAt  time.Time         `json:"created_at"`
	Window     string            `json:"window"`
	Assessment []AssessmentEntry `json:"assessment"`
	Automation Automation        `json:"automation"`
	Trace      Trace             `json:"trace"`
}

// Entry converts a finding into its persisted form. Values are rounded to
// four decimals, levels spelled upper-case.
func (f Finding) Entry() AssessmentEntry {
	return AssessmentEntry{
		Signal: f.Signal,
		Metric: string(f.Metric),
		Value:  Round4(f.Value),
		Level:  f.Level.Upper(),
	}
}

// NewIncident assembles an incident from ordered findings. createdAt is
// normalized to UTC so the persisted timestamp always carries a Z suffix.
func NewIncident(window string, findings []Finding, version, source, upstream string, createdAt time.Time) Incident {
	entries := make([]AssessmentEntry, 0, len(findings))
	for _, f := range findings {
		entries = append(entries, f.Entry())
	}
	return Incident{
		Kind:       IncidentKind,
		CreatedAt:  createdAt.UTC(),
		Window:     window,
		Assessment: entries,
		Automation: Automation{Name: AutomationName, Version: version},
		Trace:      Trace{Source: source, Upstream: upstream},
	}
}

// Round4 rounds v to four decimal places, the precision persisted in
// artifacts and wire payloads.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
