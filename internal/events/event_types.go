package events

import (
	"time"

	"github.com/spec-kit/onboarding-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIncidentAdmitted  EventType = "incident_admitted"
	EventIncidentCompleted EventType = "incident_completed"
	EventIncidentFailed    EventType = "incident_failed"
	EventIncidentSkipped   EventType = "incident_skipped"
	EventRunFinished       EventType = "run_finished"
)

// Event represents something that happened during a run.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	RunID      string      `json:"run_id"`
	IncidentID string      `json:"incident_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// IncidentAdmittedPayload payload.
type IncidentAdmittedPayload struct {
	CostCenter string `json:"cost_center"`
	StartDate  string `json:"start_date"`
}

// IncidentCompletedPayload payload.
type IncidentCompletedPayload struct {
	WorkEmail  string `json:"work_email"`
	CostCenter string `json:"cost_center"`
	Department string `json:"department"`
}

// IncidentFailedPayload payload. Outcome separates rejected tickets
// ("invalid") from admitted ones that failed ("failed").
type IncidentFailedPayload struct {
	Outcome   string       `json:"outcome"`
	Stage     domain.Stage `json:"stage"`
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Retryable bool         `json:"retryable"`
}

// IncidentSkippedPayload payload. Reason is one of the skip outcomes such as
// "not_due", "duplicate" or "invalid".
type IncidentSkippedPayload struct {
	Reason string `json:"reason"`
	Code   string `json:"code,omitempty"`
}

// RunFinishedPayload payload.
type RunFinishedPayload struct {
	Fetched   int           `json:"fetched"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}
