package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/onboarding-service/internal/domain"
	"github.com/spec-kit/onboarding-service/internal/events"
	"github.com/spec-kit/onboarding-service/internal/repository"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

// Steps that happen before an incident is admitted. They are never recorded
// in the ledger.
const (
	stageExtract domain.Stage = "extract"
	stageDue     domain.Stage = "due"
	stageAdmit   domain.Stage = "admit"
)

// Outcome is what happened to one incident during a run.
type Outcome string

const (
	OutcomeInvalid   Outcome = "invalid"
	OutcomeNotDue    Outcome = "not_due"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// TicketFailure describes an incident that could not be processed.
type TicketFailure struct {
	IncidentID string         `json:"incident_id"`
	Stage      domain.Stage   `json:"stage"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
}

// RunSummary counts the outcomes of one pass over the ticket queue.
type RunSummary struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Fetched    int             `json:"fetched"`
	Eligible   int             `json:"eligible"`
	Invalid    int             `json:"invalid"`
	NotDue     int             `json:"not_due"`
	Duplicate  int             `json:"duplicate"`
	Completed  int             `json:"completed"`
	Failed     int             `json:"failed"`
	Failures   []TicketFailure `json:"failures"`
}

func (s *RunSummary) record(outcome Outcome) {
	switch outcome {
	case OutcomeInvalid:
		s.Invalid++
	case OutcomeNotDue:
		s.NotDue++
	case OutcomeDuplicate:
		s.Duplicate++
	case OutcomeCompleted:
		s.Completed++
	case OutcomeFailed:
		s.Failed++
	}
}

// Processor provisions an admitted incident.
type Processor interface {
	Process(ctx context.Context, built *BuiltProfile, managerEmail string) error
}

// RunnerDependencies bundles the collaborators of a Runner.
type RunnerDependencies struct {
	Tickets        TicketSource
	Extractor      *Extractor
	Builder        *ProfileBuilder
	Orchestrator   Processor
	Ledger         repository.LedgerRepository
	Dispatcher     events.Dispatcher
	Clock          clock.Clock
	Logger         *zap.Logger
	OnboardingType string
	WindowDays     int
	CallTimeout    time.Duration
}

// Runner performs processing passes over the ticket queue.
type Runner struct {
	tickets        TicketSource
	extractor      *Extractor
	builder        *ProfileBuilder
	orchestrator   Processor
	ledger         repository.LedgerRepository
	dispatcher     events.Dispatcher
	clock          clock.Clock
	logger         *zap.Logger
	onboardingType string
	windowDays     int
	timeout        time.Duration
}

// NewRunner creates a runner.
func NewRunner(deps RunnerDependencies) *Runner {
	clk := deps.Clock
	if clk == nil {
		clk = clock.NewClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		tickets:        deps.Tickets,
		extractor:      deps.Extractor,
		builder:        deps.Builder,
		orchestrator:   deps.Orchestrator,
		ledger:         deps.Ledger,
		dispatcher:     deps.Dispatcher,
		clock:          clk,
		logger:         logger,
		onboardingType: deps.OnboardingType,
		windowDays:     deps.WindowDays,
		timeout:        deps.CallTimeout,
	}
}

// Run fetches the queue once and processes every incident. Only a failed
// fetch fails the run; per-incident failures are logged and counted.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: r.clock.Now(),
		Failures:  []TicketFailure{},
	}
	logger := r.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("run started")

	incidents, err := r.tickets.ListIncidents(ctx)
	if err != nil {
		logger.Error("fetching incidents failed", zap.Error(err))
		return nil, fmt.Errorf("fetch incidents: %w", err)
	}
	summary.Fetched = len(incidents)

	for _, incident := range incidents {
		if ctx.Err() != nil {
			logger.Warn("run interrupted", zap.Error(ctx.Err()))
			break
		}
		if incident.Name != r.onboardingType {
			continue
		}
		summary.Eligible++

		// A started incident runs to the end so its ledger entry is never
		// left PENDING; cancellation is honored between incidents only.
		ictx := context.WithoutCancel(ctx)
		ilog := logger.With(zap.String("incident_id", incident.ID.String()))
		outcome, stage, err := r.processIncident(ictx, summary.RunID, incident, ilog)
		summary.record(outcome)
		if err != nil {
			failure := r.reportFailure(ilog, incident.ID.String(), outcome, stage, err)
			summary.Failures = append(summary.Failures, failure)
			r.publish(ictx, summary.RunID, incident.ID.String(), events.EventIncidentFailed, events.IncidentFailedPayload{
				Outcome:   string(outcome),
				Stage:     stage,
				Code:      failure.Code,
				Message:   failure.Message,
				Retryable: stage.Retryable(),
			})
			continue
		}
		if outcome == OutcomeNotDue || outcome == OutcomeDuplicate {
			skipped := events.IncidentSkippedPayload{Reason: string(outcome)}
			if outcome == OutcomeDuplicate {
				skipped.Code = apperrors.CodeDuplicateTicket
			}
			r.publish(ictx, summary.RunID, incident.ID.String(), events.EventIncidentSkipped, skipped)
		}
	}

	summary.FinishedAt = r.clock.Now()
	logger.Info("run finished",
		zap.Int("fetched", summary.Fetched),
		zap.Int("eligible", summary.Eligible),
		zap.Int("invalid", summary.Invalid),
		zap.Int("not_due", summary.NotDue),
		zap.Int("duplicate", summary.Duplicate),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
	)
	r.publish(context.WithoutCancel(ctx), summary.RunID, "", events.EventRunFinished, events.RunFinishedPayload{
		Fetched:   summary.Fetched,
		Completed: summary.Completed,
		Failed:    summary.Failed,
		Duration:  summary.FinishedAt.Sub(summary.StartedAt),
	})
	return summary, nil
}

// processIncident is the per-incident error boundary; panics are converted
// into INTERNAL_ERROR failures.
func (r *Runner) processIncident(ctx context.Context, runID string, incident domain.Incident, logger *zap.Logger) (outcome Outcome, stage domain.Stage, err error) {
	id := incident.ID.String()
	admitted := false
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic while processing incident", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
			err = apperrors.NewInternalError(fmt.Errorf("panic: %v", rec))
			if admitted {
				r.markFailed(ctx, logger, id, stage, err)
			}
			outcome = OutcomeFailed
		}
	}()

	stage = stageExtract
	extraction, err := r.extractor.Extract(ctx, incident.Variables)
	if err != nil {
		return OutcomeInvalid, stage, err
	}

	stage = stageDue
	due, err := IsDue(extraction.User.StartDate, r.clock.Now(), r.windowDays)
	if err != nil {
		return OutcomeInvalid, stage, err
	}
	if !due {
		logger.Debug("start date outside window", zap.String("start_date", extraction.User.StartDate))
		return OutcomeNotDue, stage, nil
	}

	stage = stageAdmit
	duplicate, err := call(ctx, r.timeout, "ledger insert", func(ctx context.Context) (bool, error) {
		return r.ledger.TryInsert(ctx, id, incident.Raw)
	})
	if err != nil {
		return OutcomeFailed, stage, err
	}
	if duplicate {
		logger.Debug("incident already in ledger", zap.String("code", apperrors.CodeDuplicateTicket))
		return OutcomeDuplicate, stage, nil
	}
	admitted = true
	r.publish(ctx, runID, id, events.EventIncidentAdmitted, events.IncidentAdmittedPayload{
		CostCenter: extraction.User.CostCenter,
		StartDate:  extraction.User.StartDate,
	})

	stage = domain.StageProfile
	built, err := r.builder.Build(ctx, incident, extraction.User)
	if err != nil {
		r.markFailed(ctx, logger, id, stage, err)
		return OutcomeFailed, stage, err
	}

	stage = domain.StageIdentity
	if err := r.orchestrator.Process(ctx, built, extraction.ManagerEmail); err != nil {
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			stage = stageErr.Stage
		}
		r.markFailed(ctx, logger, id, stage, err)
		return OutcomeFailed, stage, err
	}

	err = callErr(ctx, r.timeout, "ledger mark completed", func(ctx context.Context) error {
		return r.ledger.MarkCompleted(ctx, id)
	})
	if err != nil {
		logger.Error("recording completion failed", zap.Error(err))
	}
	logger.Info("incident onboarded", zap.String("work_email", built.Profile.Profile.Email))
	r.publish(ctx, runID, id, events.EventIncidentCompleted, events.IncidentCompletedPayload{
		WorkEmail:  built.Profile.Profile.Email,
		CostCenter: built.Profile.Profile.CostCenter,
		Department: built.Department,
	})
	return OutcomeCompleted, stage, nil
}

func (r *Runner) markFailed(ctx context.Context, logger *zap.Logger, id string, stage domain.Stage, cause error) {
	err := callErr(ctx, r.timeout, "ledger mark failed", func(ctx context.Context) error {
		return r.ledger.MarkFailed(ctx, id, stage, cause)
	})
	if err != nil {
		logger.Error("recording failure failed", zap.String("stage", string(stage)), zap.Error(err))
	}
}

func (r *Runner) reportFailure(logger *zap.Logger, id string, outcome Outcome, stage domain.Stage, err error) TicketFailure {
	domainErr := apperrors.ToDomainError(err)
	failure := TicketFailure{
		IncidentID: id,
		Stage:      stage,
		Code:       domainErr.Code,
		Message:    err.Error(),
		Details:    domainErr.Details,
	}
	fields := []zap.Field{
		zap.String("outcome", string(outcome)),
		zap.String("stage", string(stage)),
		zap.String("code", failure.Code),
		zap.Any("details", failure.Details),
		zap.Error(err),
	}
	if outcome == OutcomeInvalid {
		logger.Warn("incident rejected", fields...)
	} else {
		logger.Error("incident failed", fields...)
	}
	return failure
}

func (r *Runner) publish(ctx context.Context, runID, incidentID string, eventType events.EventType, payload interface{}) {
	if r.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		RunID:      runID,
		IncidentID: incidentID,
		Timestamp:  r.clock.Now(),
		Payload:    payload,
	}
	if err := r.dispatcher.Publish(ctx, event); err != nil {
		r.logger.Warn("event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}
