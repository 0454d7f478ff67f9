package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run outcomes reported to operators.
const (
	ReasonOK                   = "ok"
	ReasonNoProductsFound      = "no_products_found"
	ReasonNoCandidatesApproved = "no_candidates_approved"
	ReasonStorageUnavailable   = "storage_unavailable"
	ReasonCancelled            = "cancelled"
)

// Trigger names.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerStartup  = "startup"
)

// RunReport summarizes one discovery cycle.
type RunReport struct {
	RunID      uuid.UUID `json:"run_id"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Found       int `json:"found"`
	Unique      int `json:"unique"`
	Ranked      int `json:"ranked"`
	Attempted   int `json:"attempted"`
	Approved    int `json:"approved"`
	Rejected    int `json:"rejected"`
	Unavailable int `json:"unavailable"`
	Persisted   int `json:"persisted"`
	Deactivated int `json:"deactivated"`
	Announced   int `json:"announced"`

	// SourceErrors maps a source name to the error that excluded it.
	SourceErrors map[string]string `json:"source_errors,omitempty"`

	Forwarded bool   `json:"forwarded"`
	Reason    string `json:"reason"`
	Error     string `json:"error,omitempty"`
}

// NewRunReport starts a report for a run fired by trigger.
func NewRunReport(trigger string, now time.Time) *RunReport {
	return &RunReport{
		RunID:        uuid.New(),
		Trigger:      trigger,
		StartedAt:    now,
		SourceErrors: make(map[string]string),
	}
}

// Duration is zero until the run finished.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
