package handlers

import (
	"context"

	"github.com/amaumene/storarr/internal/controllers"
	"github.com/amaumene/storarr/internal/gate"
	"github.com/amaumene/storarr/internal/models"
	"github.com/gofiber/fiber/v2"
)

// ActivityLimit caps the audit entries returned per item
const ActivityLimit = 100

// TransitionHandler serves the transition preview and the manual sweep
type TransitionHandler struct {
	transitions *controllers.TransitionController
	gate        *gate.Gate
}

// NewTransitionHandler creates a new transition handler
func NewTransitionHandler(transitions *controllers.TransitionController, g *gate.Gate) *TransitionHandler {
	return &TransitionHandler{transitions: transitions, gate: g}
}

// Upcoming answers GET /api/v1/transitions/upcoming?limit=N
func (h *TransitionHandler) Upcoming(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", controllers.DefaultUpcomingLimit)
	upcoming, err := h.transitions.GetUpcomingTransitions(c.UserContext(), limit)
	if err != nil {
		return err
	}
	if upcoming == nil {
		upcoming = []controllers.UpcomingTransition{}
	}
	return c.JSON(upcoming)
}

// Process answers POST /api/v1/transitions/process by running one sweep
func (h *TransitionHandler) Process(c *fiber.Ctx) error {
	var result *controllers.SweepResult
	err := h.gate.Run(c.UserContext(), "api.transitions", func(ctx context.Context) error {
		var err error
		result, err = h.transitions.CheckAndProcessTransitions(ctx)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// MediaHandler serves per-item operations
type MediaHandler struct {
	db          *models.Database
	transitions *controllers.TransitionController
	gate        *gate.Gate
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(db *models.Database, transitions *controllers.TransitionController, g *gate.Gate) *MediaHandler {
	return &MediaHandler{db: db, transitions: transitions, gate: g}
}

// ForceDownload answers POST /api/v1/media/:id/force-download
func (h *MediaHandler) ForceDownload(c *fiber.Ctx) error {
	return h.force(c, models.StateMkv)
}

// ForceSymlink answers POST /api/v1/media/:id/force-symlink
func (h *MediaHandler) ForceSymlink(c *fiber.Ctx) error {
	return h.force(c, models.StateSymlink)
}

func (h *MediaHandler) force(c *fiber.Ctx, target models.FileState) error {
	id, err := mediaID(c)
	if err != nil {
		return err
	}

	var item *models.MediaItem
	err = h.gate.Run(c.UserContext(), "api.force", func(ctx context.Context) error {
		var err error
		item, err = h.transitions.ForceTransition(ctx, id, target)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(item)
}

type excludeRequest struct {
	Excluded *bool `json:"excluded"`
}

// SetExcluded answers PUT /api/v1/media/:id/exclude
func (h *MediaHandler) SetExcluded(c *fiber.Ctx) error {
	id, err := mediaID(c)
	if err != nil {
		return err
	}
	var req excludeRequest
	if err := c.BodyParser(&req); err != nil || req.Excluded == nil {
		return fiber.NewError(fiber.StatusBadRequest, `body must be {"excluded": bool}`)
	}

	var item *models.MediaItem
	err = h.gate.Run(c.UserContext(), "api.exclude", func(ctx context.Context) error {
		var err error
		item, err = h.db.SetExcluded(ctx, id, *req.Excluded)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(item)
}

// Activity answers GET /api/v1/media/:id/activity
func (h *MediaHandler) Activity(c *fiber.Ctx) error {
	id, err := mediaID(c)
	if err != nil {
		return err
	}
	if _, err := h.db.GetMediaItem(c.UserContext(), id); err != nil {
		return err
	}
	logs, err := h.db.ListActivity(c.UserContext(), id, ActivityLimit)
	if err != nil {
		return err
	}
	if logs == nil {
		logs = []models.ActivityLog{}
	}
	return c.JSON(logs)
}
