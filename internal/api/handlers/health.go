package handlers

import (
	"github.com/amaumene/storarr/internal/gate"
	"github.com/amaumene/storarr/internal/models"
	"github.com/gofiber/fiber/v2"
)

// HealthResponse reports liveness and what the gate is busy with
type HealthResponse struct {
	Status string `json:"status"`
	Busy   string `json:"busy,omitempty"`
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db   *models.Database
	gate *gate.Gate
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *models.Database, g *gate.Gate) *HealthHandler {
	return &HealthHandler{db: db, gate: g}
}

// Health answers GET /health. The store must be readable.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	if _, err := h.db.GetSettings(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(HealthResponse{Status: "unavailable"})
	}
	return c.JSON(HealthResponse{Status: "ok", Busy: h.gate.Holder()})
}
