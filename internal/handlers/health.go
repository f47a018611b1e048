package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"cloudesk/internal/knowledge"
	"cloudesk/internal/llm"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	store *knowledge.Store
	usage *llm.UsageCounter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store *knowledge.Store, usage *llm.UsageCounter) *HealthHandler {
	return &HealthHandler{store: store, usage: usage}
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	resp := fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if h.store != nil {
		resp["knowledge_entries"] = h.store.Index().Len()
	}
	if h.usage != nil {
		usage, calls := h.usage.Snapshot()
		resp["model_calls"] = calls
		resp["tokens"] = fiber.Map{
			"prompt":     usage.Prompt,
			"completion": usage.Completion,
			"total":      usage.Total(),
		}
	}
	return c.JSON(resp)
}
