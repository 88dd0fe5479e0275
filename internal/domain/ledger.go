package domain

import "time"

// LedgerStatus tracks how far an admitted incident got.
type LedgerStatus string

const (
	LedgerStatusPending   LedgerStatus = "PENDING"
	LedgerStatusCompleted LedgerStatus = "COMPLETED"
	LedgerStatusFailed    LedgerStatus = "FAILED"
)

// Stage names a step of processing an admitted incident.
type Stage string

const (
	StageProfile    Stage = "profile"
	StageIdentity   Stage = "identity"
	StageActivation Stage = "activation"
	StageChat       Stage = "chat"
	StageCloud      Stage = "cloud"
	StageNotify     Stage = "notify"
)

// Retryable reports whether a failure at this stage left no external account
// behind, so the incident may be admitted again.
func (s Stage) Retryable() bool {
	return s == StageProfile
}

// LedgerEntry records that an incident was admitted for processing.
type LedgerEntry struct {
	IncidentID  string
	Info        map[string]any
	Status      LedgerStatus
	FailedStage Stage
	Retryable   bool
	Attempts    int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
