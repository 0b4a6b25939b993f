package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amaumene/storarr/internal/api/handlers"
	"github.com/amaumene/storarr/internal/api/middleware"
	"github.com/amaumene/storarr/internal/config"
	"github.com/amaumene/storarr/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// ShutdownTimeout bounds how long open connections get to finish
const ShutdownTimeout = 10 * time.Second

// Server represents the HTTP server
type Server struct {
	app    *fiber.App
	addr   string
	logger zerolog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, h *handlers.Set, logger zerolog.Logger) *Server {
	logger = utils.WithComponent(logger, "api")
	s := &Server{
		addr:   ":" + cfg.ServerPort,
		logger: logger,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "Storarr",
		DisableStartupMessage: true,
		ReadTimeout:           15 * time.Second,
		IdleTimeout:           60 * time.Second,
		ErrorHandler:          handlers.ErrorHandler(logger),
	})
	s.app.Use(middleware.Logging(logger))
	s.app.Use(recover.New())
	s.setupRoutes(h)

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(h *handlers.Set) {
	s.app.Get("/health", h.Health.Health)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := s.app.Group("/api/v1")
	v1.Get("/dashboard", h.Dashboard.Dashboard)
	v1.Get("/events", h.Events.Stream)

	v1.Get("/transitions/upcoming", h.Transitions.Upcoming)
	v1.Post("/transitions/process", h.Transitions.Process)

	media := v1.Group("/media/:id")
	media.Post("/force-download", h.Media.ForceDownload)
	media.Post("/force-symlink", h.Media.ForceSymlink)
	media.Put("/exclude", h.Media.SetExcluded)
	media.Get("/activity", h.Media.Activity)

	v1.Get("/queue", h.Queue.Arr)
	v1.Get("/queue/clients", h.Queue.Clients)
	v1.Get("/status/connections", h.Status.Connections)

	hooks := v1.Group("/webhooks")
	hooks.Post("/jellyseerr", h.Webhooks.Jellyseerr)
	hooks.Post("/sonarr", h.Webhooks.Sonarr)
	hooks.Post("/radarr", h.Webhooks.Radarr)
}

// App exposes the fiber app, mainly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Start serves until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Str("addr", s.addr).Msg("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.app.Listen(s.addr); err != nil {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")
	timeout := ShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := s.app.ShutdownWithTimeout(timeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
