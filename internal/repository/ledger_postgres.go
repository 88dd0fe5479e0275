package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/onboarding-service/internal/domain"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

// PgxPool is the subset of *pgxpool.Pool used by the ledger.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

type postgresLedger struct {
	pool        PgxPool
	retryFailed bool
}

// NewPostgresLedger instantiates the ledger over the onboarding_incidents table.
func NewPostgresLedger(pool PgxPool, retryFailed bool) LedgerRepository {
	return &postgresLedger{pool: pool, retryFailed: retryFailed}
}

func (r *postgresLedger) TryInsert(ctx context.Context, incidentID string, info map[string]any) (bool, error) {
	const query = `
        INSERT INTO onboarding_incidents (incident_id, incident_info, status, attempts)
        VALUES ($1, $2, 'PENDING', 1)
        ON CONFLICT (incident_id) DO UPDATE
            SET status='PENDING', attempts=onboarding_incidents.attempts+1, incident_info=EXCLUDED.incident_info,
                failed_stage=NULL, retryable=FALSE, last_error=NULL, updated_at=NOW()
            WHERE $3::boolean AND onboarding_incidents.status='FAILED' AND onboarding_incidents.retryable
        RETURNING attempts`
	var attempts int
	err := r.pool.QueryRow(ctx, query, incidentID, SanitizeMap(info), r.retryFailed).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, apperrors.NewStorageUnavailable("insert", err)
	}
	return false, nil
}

func (r *postgresLedger) MarkCompleted(ctx context.Context, incidentID string) error {
	const query = `
        UPDATE onboarding_incidents SET status='COMPLETED', updated_at=NOW()
        WHERE incident_id=$1`
	return r.exec(ctx, "mark completed", query, incidentID)
}

func (r *postgresLedger) MarkFailed(ctx context.Context, incidentID string, stage domain.Stage, cause error) error {
	const query = `
        UPDATE onboarding_incidents SET status='FAILED', failed_stage=$2, retryable=$3, last_error=$4, updated_at=NOW()
        WHERE incident_id=$1`
	return r.exec(ctx, "mark failed", query, incidentID, string(stage), stage.Retryable(), errorText(cause))
}

func (r *postgresLedger) exec(ctx context.Context, op, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return apperrors.NewStorageUnavailable(op, err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *postgresLedger) Get(ctx context.Context, incidentID string) (*domain.LedgerEntry, error) {
	const query = `
        SELECT incident_id, incident_info, status, COALESCE(failed_stage, ''), retryable, attempts,
               COALESCE(last_error, ''), created_at, updated_at
        FROM onboarding_incidents WHERE incident_id=$1`
	var (
		entry  domain.LedgerEntry
		status string
		stage  string
	)
	err := r.pool.QueryRow(ctx, query, incidentID).Scan(
		&entry.IncidentID,
		&entry.Info,
		&status,
		&stage,
		&entry.Retryable,
		&entry.Attempts,
		&entry.LastError,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, apperrors.NewStorageUnavailable("get", err)
	}
	entry.Status = domain.LedgerStatus(status)
	entry.FailedStage = domain.Stage(stage)
	return &entry, nil
}

func (r *postgresLedger) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
