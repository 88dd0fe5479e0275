package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/onboarding-service/internal/api/dto"
	"github.com/spec-kit/onboarding-service/internal/auth"
	"github.com/spec-kit/onboarding-service/internal/service"
	apperrors "github.com/spec-kit/onboarding-service/pkg/util/errorutil"
)

// RunsHandler starts processing passes on demand.
type RunsHandler struct {
	coordinator *service.RunCoordinator
}

// NewRunsHandler constructs handler.
func NewRunsHandler(coordinator *service.RunCoordinator) *RunsHandler {
	return &RunsHandler{coordinator: coordinator}
}

// Trigger POST /runs. Runs one pass synchronously and returns its summary.
func (h *RunsHandler) Trigger(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("trigger token required")
	}
	summary, err := h.coordinator.TryRun(c.UserContext(), "http:"+principal.Subject)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewRunSummary(summary)})
}
