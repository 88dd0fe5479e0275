package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/onboarding-service/internal/domain"
)

// ErrEntryNotFound is returned by Get when no entry exists for an incident.
var ErrEntryNotFound = errors.New("ledger entry not found")

// LedgerRepository records which incidents were admitted for processing.
//
// TryInsert is a single conditional write: it returns duplicate=false when the
// entry did not exist and is now durably recorded, and duplicate=true when an
// entry already existed. With retry enabled, a FAILED entry whose failure was
// retryable is reclaimed by the same write and reported as admitted.
type LedgerRepository interface {
	TryInsert(ctx context.Context, incidentID string, info map[string]any) (duplicate bool, err error)
	MarkCompleted(ctx context.Context, incidentID string) error
	MarkFailed(ctx context.Context, incidentID string, stage domain.Stage, cause error) error
	Get(ctx context.Context, incidentID string) (*domain.LedgerEntry, error)
	Ping(ctx context.Context) error
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 1024 {
		msg = msg[:1024]
	}
	return msg
}

// parseTimestamps decodes the stored RFC 3339 created/updated pair.
func parseTimestamps(entry *domain.LedgerEntry, created, updated string) error {
	var err error
	if entry.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return fmt.Errorf("decode created_at: %w", err)
	}
	if entry.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return fmt.Errorf("decode updated_at: %w", err)
	}
	return nil
}
