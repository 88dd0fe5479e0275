package worker

import (
	"context"
	"time"

	"code.cloudfoundry.org/clock"
	"go.uber.org/zap"

	"github.com/spec-kit/onboarding-service/internal/service"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

// Trigger starts a processing pass unless one is already running.
type Trigger interface {
	TryRun(ctx context.Context, trigger string) (*service.RunSummary, error)
}

// Scheduler triggers a pass on a fixed interval while serving.
type Scheduler struct {
	trigger  Trigger
	clock    clock.Clock
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler builds a scheduler. A non-positive interval disables it.
func NewScheduler(trigger Trigger, clk clock.Clock, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		trigger:  trigger,
		clock:    clk,
		interval: interval,
		logger:   logger.Named("scheduler"),
	}
}

// Run blocks until ctx is done, triggering a pass on every tick.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("interval scheduling disabled")
		return
	}
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("interval scheduling started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("interval scheduling stopped")
			return
		case <-ticker.C():
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	summary, err := s.trigger.TryRun(ctx, "interval")
	switch {
	case apperrors.HasCode(err, apperrors.CodeConflict):
		// previous pass still running
	case err != nil:
		s.logger.Error("scheduled run failed", zap.Error(err))
	default:
		s.logger.Info("scheduled run finished",
			zap.String("run_id", summary.RunID),
			zap.Int("completed", summary.Completed),
			zap.Int("failed", summary.Failed))
	}
}
