package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"cloudesk/internal/models"
	"cloudesk/internal/pipeline"
)

// CaseHandler accepts support cases over HTTP and runs them through the
// decision pipeline.
type CaseHandler struct {
	pipeline *pipeline.Pipeline
}

// NewCaseHandler creates a new case handler
func NewCaseHandler(p *pipeline.Pipeline) *CaseHandler {
	return &CaseHandler{pipeline: p}
}

// Handle processes POST /api/cases.
func (h *CaseHandler) Handle(c *fiber.Ctx) error {
	var input models.CaseInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body: " + err.Error(),
		})
	}

	// A missing case id is autogenerated rather than rejected; only the
	// query itself is truly required.
	if input.CaseID == "" {
		input.CaseID = "case-" + uuid.New().String()
	}

	result, err := h.pipeline.ProcessCase(c.Context(), &input)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": verr.Error(),
				"field": verr.Field,
			})
		}
		// The pipeline absorbs everything but validation; reaching this
		// is a bug, not an expected runtime state.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal error",
		})
	}

	return c.JSON(result)
}
