package dto

import (
	"time"

	"github.com/spec-kit/onboarding-service/internal/service"
)

// TicketFailure response.
type TicketFailure struct {
	IncidentID string         `json:"incident_id"`
	Stage      string         `json:"stage"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
}

// RunSummary response.
type RunSummary struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	DurationMs int64           `json:"duration_ms"`
	Fetched    int             `json:"fetched"`
	Eligible   int             `json:"eligible"`
	Invalid    int             `json:"invalid"`
	NotDue     int             `json:"not_due"`
	Duplicate  int             `json:"duplicate"`
	Completed  int             `json:"completed"`
	Failed     int             `json:"failed"`
	Failures   []TicketFailure `json:"failures"`
}

// NewRunSummary maps a service summary to its response shape.
func NewRunSummary(s *service.RunSummary) RunSummary {
	failures := make([]TicketFailure, 0, len(s.Failures))
	for _, f := range s.Failures {
		failures = append(failures, TicketFailure{
			IncidentID: f.IncidentID,
			Stage:      string(f.Stage),
			Code:       f.Code,
			Message:    f.Message,
			Details:    f.Details,
		})
	}
	return RunSummary{
		RunID:      s.RunID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		DurationMs: s.FinishedAt.Sub(s.StartedAt).Milliseconds(),
		Fetched:    s.Fetched,
		Eligible:   s.Eligible,
		Invalid:    s.Invalid,
		NotDue:     s.NotDue,
		Duplicate:  s.Duplicate,
		Completed:  s.Completed,
		Failed:     s.Failed,
		Failures:   failures,
	}
}
