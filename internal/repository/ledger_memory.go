package repository

import (
	"context"
	"sync"

	"code.cloudfoundry.org/clock"

	"github.com/spec-kit/onboarding-service/internal/domain"
)

type memoryLedger struct {
	mu          sync.Mutex
	entries     map[string]*domain.LedgerEntry
	retryFailed bool
	clock       clock.Clock
}

// NewMemoryLedger builds a process-local ledger for development runs.
func NewMemoryLedger(clk clock.Clock, retryFailed bool) LedgerRepository {
	return &memoryLedger{
		entries:     make(map[string]*domain.LedgerEntry),
		retryFailed: retryFailed,
		clock:       clk,
	}
}

func (l *memoryLedger) TryInsert(ctx context.Context, incidentID string, info map[string]any) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	existing, ok := l.entries[incidentID]
	if !ok {
		l.entries[incidentID] = &domain.LedgerEntry{
			IncidentID: incidentID,
			Info:       SanitizeMap(info),
			Status:     domain.LedgerStatusPending,
			Attempts:   1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return false, nil
	}
	if l.retryFailed && existing.Status == domain.LedgerStatusFailed && existing.Retryable {
		existing.Status = domain.LedgerStatusPending
		existing.Info = SanitizeMap(info)
		existing.Attempts++
		existing.FailedStage = ""
		existing.Retryable = false
		existing.LastError = ""
		existing.UpdatedAt = now
		return false, nil
	}
	return true, nil
}

func (l *memoryLedger) MarkCompleted(ctx context.Context, incidentID string) error {
	return l.update(incidentID, func(e *domain.LedgerEntry) {
		e.Status = domain.LedgerStatusCompleted
	})
}

func (l *memoryLedger) MarkFailed(ctx context.Context, incidentID string, stage domain.Stage, cause error) error {
	return l.update(incidentID, func(e *domain.LedgerEntry) {
		e.Status = domain.LedgerStatusFailed
		e.FailedStage = stage
		e.Retryable = stage.Retryable()
		e.LastError = errorText(cause)
	})
}

func (l *memoryLedger) update(incidentID string, apply func(*domain.LedgerEntry)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[incidentID]
	if !ok {
		return ErrEntryNotFound
	}
	apply(entry)
	entry.UpdatedAt = l.clock.Now()
	return nil
}

func (l *memoryLedger) Get(ctx context.Context, incidentID string) (*domain.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[incidentID]
	if !ok {
		return nil, ErrEntryNotFound
	}
	cp := *entry
	return &cp, nil
}

func (l *memoryLedger) Ping(ctx context.Context) error {
	return nil
}
