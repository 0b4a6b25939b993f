package handlers

import (
	"context"

	"github.com/amaumene/storarr/internal/controllers"
	"github.com/amaumene/storarr/internal/gate"
	"github.com/amaumene/storarr/internal/services/jellyseerr"
	"github.com/amaumene/storarr/internal/services/radarr"
	"github.com/amaumene/storarr/internal/services/sonarr"
	"github.com/amaumene/storarr/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// WebhookResponse acknowledges a notification
type WebhookResponse struct {
	Status  string `json:"status"`
	Updated int    `json:"updated"`
}

// WebhookHandler handles Jellyseerr, Sonarr and Radarr notifications
type WebhookHandler struct {
	transitions *controllers.TransitionController
	downloads   *controllers.DownloadController
	gate        *gate.Gate
	logger      zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(transitions *controllers.TransitionController, downloads *controllers.DownloadController, g *gate.Gate, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		transitions: transitions,
		downloads:   downloads,
		gate:        g,
		logger:      utils.WithComponent(logger, "webhook"),
	}
}

// Jellyseerr answers POST /api/v1/webhooks/jellyseerr. Availability events
// move pending items back to placeholders; other events are only logged.
func (h *WebhookHandler) Jellyseerr(c *fiber.Ctx) error {
	var payload jellyseerr.WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.logger.Error().Err(err).Msg("Failed to decode Jellyseerr webhook")
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}

	event := payload.Event()
	switch event {
	case jellyseerr.EventRequestAvailable, jellyseerr.EventMediaAvailable:
	case jellyseerr.EventRequestAdded, jellyseerr.EventRequestApproved:
		h.logger.Info().Str("event", event).Str("subject", payload.Subject).Msg("Received Jellyseerr request notification")
		return h.recordRequest(c, &payload)
	default:
		h.logger.Debug().Str("event", event).Msg("Ignoring Jellyseerr event")
		return c.JSON(WebhookResponse{Status: "ignored"})
	}

	if payload.Media == nil || payload.Media.TmdbID <= 0 {
		h.logger.Warn().Str("event", event).Str("subject", payload.Subject).Msg("Availability notification without TMDB id")
		return c.JSON(WebhookResponse{Status: "ignored"})
	}
	tmdbID := int(payload.Media.TmdbID)
	types := payload.Media.MediaTypes()
	if types == nil {
		h.logger.Warn().Int("tmdb_id", tmdbID).Str("media_type", payload.Media.Kind()).Msg("Availability notification without a known media type, matching any kind")
	}

	var updated int
	err := h.gate.Run(c.UserContext(), "webhook.jellyseerr", func(ctx context.Context) error {
		var err error
		updated, err = h.transitions.MarkRequestAvailable(ctx, tmdbID, types...)
		return err
	})
	if err != nil {
		return err
	}

	h.logger.Info().Int("tmdb_id", tmdbID).Str("media_type", payload.Media.Kind()).Int("updated", updated).Msg("Request available")
	return c.JSON(WebhookResponse{Status: "ok", Updated: updated})
}

// recordRequest attaches the request id to pending items of the same title
func (h *WebhookHandler) recordRequest(c *fiber.Ctx, payload *jellyseerr.WebhookPayload) error {
	if payload.Media == nil || payload.Media.TmdbID <= 0 || payload.Request == nil || payload.Request.ID() <= 0 {
		return c.JSON(WebhookResponse{Status: "ignored"})
	}
	tmdbID, requestID := int(payload.Media.TmdbID), payload.Request.ID()

	var updated int
	err := h.gate.Run(c.UserContext(), "webhook.jellyseerr", func(ctx context.Context) error {
		var err error
		updated, err = h.transitions.RecordRequest(ctx, tmdbID, requestID, payload.Media.MediaTypes()...)
		return err
	})
	if err != nil {
		return err
	}
	return c.JSON(WebhookResponse{Status: "ok", Updated: updated})
}

// Sonarr answers POST /api/v1/webhooks/sonarr
func (h *WebhookHandler) Sonarr(c *fiber.Ctx) error {
	var payload sonarr.WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.logger.Error().Err(err).Msg("Failed to decode Sonarr webhook")
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if !payload.IsImport() {
		h.logger.Debug().Str("event", payload.EventType).Msg("Ignoring Sonarr event")
		return c.JSON(WebhookResponse{Status: "ignored"})
	}
	return h.complete(c, "webhook.sonarr", payload.EpisodeFile.Path, payload.EpisodeFile.ID)
}

// Radarr answers POST /api/v1/webhooks/radarr
func (h *WebhookHandler) Radarr(c *fiber.Ctx) error {
	var payload radarr.WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.logger.Error().Err(err).Msg("Failed to decode Radarr webhook")
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	if !payload.IsImport() {
		h.logger.Debug().Str("event", payload.EventType).Msg("Ignoring Radarr event")
		return c.JSON(WebhookResponse{Status: "ignored"})
	}
	return h.complete(c, "webhook.radarr", payload.MovieFile.Path, payload.MovieFile.ID)
}

func (h *WebhookHandler) complete(c *fiber.Ctx, name, path string, fileID int) error {
	var done bool
	err := h.gate.Run(c.UserContext(), name, func(ctx context.Context) error {
		var err error
		done, err = h.downloads.CompleteFromImport(ctx, path, fileID)
		return err
	})
	if err != nil {
		return err
	}

	resp := WebhookResponse{Status: "ok"}
	if done {
		resp.Updated = 1
	}
	h.logger.Info().Str("source", name).Str("path", path).Bool("completed", done).Msg("Import notification")
	return c.JSON(resp)
}
