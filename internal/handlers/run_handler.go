package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"alfredoptarigan/policy-analyzer/internal/models"
	"alfredoptarigan/policy-analyzer/internal/repositories"
)

// RunHandler serves the audit trail. It is only mounted when auditing is
// enabled.
type RunHandler struct {
	runRepo repositories.AnalysisRunRepository
}

func NewRunHandler(runRepo repositories.AnalysisRunRepository) *RunHandler {
	return &RunHandler{
		runRepo: runRepo,
	}
}

// HandleGetRun handles GET /runs/:id
func (h *RunHandler) HandleGetRun(c *fiber.Ctx) error {
	runID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "Invalid run ID format",
		})
	}

	run, err := h.runRepo.FindByID(runID)
	if err != nil {
		if errors.Is(err, repositories.ErrRunNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
				Error: "Run not found",
			})
		}
		return respondError(c, err)
	}

	return c.JSON(run)
}

// HandleListRuns handles GET /runs?limit=n
func (h *RunHandler) HandleListRuns(c *fiber.Ctx) error {
	runs, err := h.runRepo.ListRecent(c.QueryInt("limit", 20))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"runs":  runs,
		"count": len(runs),
	})
}
