package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/onboarding-service/internal/domain"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

// tryInsertScript creates the entry when absent, or reclaims a retryable
// FAILED entry when ARGV[3] is "1". Returns 1 when admitted.
var tryInsertScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  redis.call('HSET', KEYS[1], 'status', 'PENDING', 'info', ARGV[1], 'attempts', 1,
    'retryable', '0', 'created_at', ARGV[2], 'updated_at', ARGV[2])
  return 1
end
if ARGV[3] == '1' and status == 'FAILED' and redis.call('HGET', KEYS[1], 'retryable') == '1' then
  redis.call('HSET', KEYS[1], 'status', 'PENDING', 'info', ARGV[1], 'retryable', '0', 'updated_at', ARGV[2])
  redis.call('HINCRBY', KEYS[1], 'attempts', 1)
  redis.call('HDEL', KEYS[1], 'failed_stage', 'last_error')
  return 1
end
return 0
`)

// updateScript applies field updates only to an existing entry.
var updateScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1
`)

type redisLedger struct {
	client      redis.UniversalClient
	prefix      string
	retryFailed bool
	clock       clock.Clock
}

// NewRedisLedger stores one hash per incident under prefix+"incident:"+id.
// The Redis deployment must persist writes (AOF) for the ledger to be durable.
func NewRedisLedger(client redis.UniversalClient, prefix string, clk clock.Clock, retryFailed bool) LedgerRepository {
	return &redisLedger{client: client, prefix: prefix, retryFailed: retryFailed, clock: clk}
}

func (r *redisLedger) key(incidentID string) string {
	return r.prefix + "incident:" + incidentID
}

func (r *redisLedger) TryInsert(ctx context.Context, incidentID string, info map[string]any) (bool, error) {
	payload, err := json.Marshal(SanitizeMap(info))
	if err != nil {
		return false, fmt.Errorf("encode incident info: %w", err)
	}
	retry := "0"
	if r.retryFailed {
		retry = "1"
	}
	admitted, err := tryInsertScript.Run(ctx, r.client, []string{r.key(incidentID)},
		string(payload), r.now(), retry).Int()
	if err != nil {
		return false, apperrors.NewStorageUnavailable("insert", err)
	}
	return admitted == 0, nil
}

func (r *redisLedger) MarkCompleted(ctx context.Context, incidentID string) error {
	return r.update(ctx, "mark completed", incidentID,
		"status", string(domain.LedgerStatusCompleted),
		"updated_at", r.now())
}

func (r *redisLedger) MarkFailed(ctx context.Context, incidentID string, stage domain.Stage, cause error) error {
	retryable := "0"
	if stage.Retryable() {
		retryable = "1"
	}
	return r.update(ctx, "mark failed", incidentID,
		"status", string(domain.LedgerStatusFailed),
		"failed_stage", string(stage),
		"retryable", retryable,
		"last_error", errorText(cause),
		"updated_at", r.now())
}

func (r *redisLedger) update(ctx context.Context, op, incidentID string, fields ...any) error {
	updated, err := updateScript.Run(ctx, r.client, []string{r.key(incidentID)}, fields...).Int()
	if err != nil {
		return apperrors.NewStorageUnavailable(op, err)
	}
	if updated == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *redisLedger) Get(ctx context.Context, incidentID string) (*domain.LedgerEntry, error) {
	fields, err := r.client.HGetAll(ctx, r.key(incidentID)).Result()
	if err != nil {
		return nil, apperrors.NewStorageUnavailable("get", err)
	}
	if len(fields) == 0 {
		return nil, ErrEntryNotFound
	}

	entry := &domain.LedgerEntry{
		IncidentID:  incidentID,
		Status:      domain.LedgerStatus(fields["status"]),
		FailedStage: domain.Stage(fields["failed_stage"]),
		Retryable:   fields["retryable"] == "1",
		LastError:   fields["last_error"],
	}
	if raw := fields["info"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &entry.Info); err != nil {
			return nil, fmt.Errorf("decode incident info: %w", err)
		}
	}
	if entry.Attempts, err = strconv.Atoi(fields["attempts"]); err != nil {
		return nil, fmt.Errorf("decode attempts: %w", err)
	}
	if err := parseTimestamps(entry, fields["created_at"], fields["updated_at"]); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *redisLedger) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisLedger) now() string {
	return r.clock.Now().UTC().Format(time.RFC3339Nano)
}
