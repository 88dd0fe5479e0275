package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

// RunExecutor performs one processing pass.
type RunExecutor interface {
	Run(ctx context.Context) (*RunSummary, error)
}

// RunCoordinator lets only one pass run at a time within the process.
type RunCoordinator struct {
	mu     sync.Mutex
	runner RunExecutor
	logger *zap.Logger
}

// NewRunCoordinator creates a coordinator around runner.
func NewRunCoordinator(runner RunExecutor, logger *zap.Logger) *RunCoordinator {
	return &RunCoordinator{runner: runner, logger: logger}
}

// TryRun starts a pass unless one is already running, in which case it
// returns a CONFLICT error without waiting.
func (c *RunCoordinator) TryRun(ctx context.Context, trigger string) (*RunSummary, error) {
	if !c.mu.TryLock() {
		c.logger.Info("run skipped, another run is in progress", zap.String("trigger", trigger))
		return nil, apperrors.NewConflict("a run is already in progress", map[string]any{"trigger": trigger})
	}
	defer c.mu.Unlock()

	c.logger.Info("run triggered", zap.String("trigger", trigger))
	return c.runner.Run(ctx)
}
