package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/onboarding-service/internal/events"
	"github.com/spec-kit/onboarding-service/internal/observability"
)

// AuditService turns run events into audit log lines and outcome metrics.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
		metrics:    metrics,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventIncidentAdmitted, a.handleIncidentAdmitted)
	a.dispatcher.Subscribe(events.EventIncidentCompleted, a.handleIncidentCompleted)
	a.dispatcher.Subscribe(events.EventIncidentFailed, a.handleIncidentFailed)
	a.dispatcher.Subscribe(events.EventIncidentSkipped, a.handleIncidentSkipped)
	a.dispatcher.Subscribe(events.EventRunFinished, a.handleRunFinished)
}

func (a *AuditService) handleIncidentAdmitted(_ context.Context, event events.Event) error {
	a.logger.Info("IncidentAdmitted", eventFields(event)...)
	return nil
}

func (a *AuditService) handleIncidentCompleted(_ context.Context, event events.Event) error {
	a.logger.Info("IncidentCompleted", eventFields(event)...)
	a.metrics.RecordOutcome(string(OutcomeCompleted), "")
	return nil
}

func (a *AuditService) handleIncidentFailed(_ context.Context, event events.Event) error {
	a.logger.Info("IncidentFailed", eventFields(event)...)
	if payload, ok := event.Payload.(events.IncidentFailedPayload); ok {
		a.metrics.RecordOutcome(payload.Outcome, payload.Code)
	}
	return nil
}

func (a *AuditService) handleIncidentSkipped(_ context.Context, event events.Event) error {
	a.logger.Debug("IncidentSkipped", eventFields(event)...)
	if payload, ok := event.Payload.(events.IncidentSkippedPayload); ok {
		a.metrics.RecordOutcome(payload.Reason, payload.Code)
	}
	return nil
}

func (a *AuditService) handleRunFinished(_ context.Context, event events.Event) error {
	a.logger.Info("RunFinished", eventFields(event)...)
	if payload, ok := event.Payload.(events.RunFinishedPayload); ok {
		a.metrics.RecordRun(event.Timestamp, payload.Duration)
	}
	return nil
}

func eventFields(event events.Event) []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("run_id", event.RunID),
		zap.Any("payload", event.Payload),
	}
	if event.IncidentID != "" {
		fields = append(fields, zap.String("incident_id", event.IncidentID))
	}
	return fields
}
