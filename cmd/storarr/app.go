package main

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/storarr/internal/api"
	"github.com/amaumene/storarr/internal/config"
	"github.com/amaumene/storarr/internal/controllers"
	"github.com/amaumene/storarr/internal/models"
	"github.com/amaumene/storarr/internal/notify"
	"github.com/amaumene/storarr/internal/scheduler"
	"github.com/amaumene/storarr/internal/services/downloadclient"
	"github.com/amaumene/storarr/internal/services/jellyfin"
	"github.com/amaumene/storarr/internal/services/jellyseerr"
	"github.com/amaumene/storarr/internal/services/radarr"
	"github.com/amaumene/storarr/internal/services/sonarr"
	"github.com/rs/zerolog"
)

// App holds the long-lived components of a running process
type App struct {
	DB        *models.Database
	Hub       *notify.Hub
	Scheduler *scheduler.Scheduler
	Server    *api.Server
}

// provideDatabase opens the store and seeds the settings row on first boot
func provideDatabase(cfg *config.Config, logger zerolog.Logger) (*models.Database, func(), error) {
	db, err := models.NewDatabase(cfg.DatabaseFile, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close database")
		}
	}

	defaults, err := defaultSettings(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	settings, err := db.EnsureSettings(context.Background(), defaults)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialize settings: %w", err)
	}
	logger.Info().
		Str("mode", string(settings.LibraryMode)).
		Str("library", settings.MediaLibraryPath).
		Msg("Settings loaded")
	return db, cleanup, nil
}

func defaultSettings(cfg *config.Config) (models.Settings, error) {
	mode, ok := models.ParseLibraryMode(cfg.LibraryMode)
	if !ok {
		return models.Settings{}, fmt.Errorf("unknown LIBRARY_MODE %q", cfg.LibraryMode)
	}
	toMkv, ok := models.ParseTimeUnit(cfg.SymlinkToMkvUnit)
	if !ok {
		return models.Settings{}, fmt.Errorf("unknown SYMLINK_TO_MKV_UNIT %q", cfg.SymlinkToMkvUnit)
	}
	toSymlink, ok := models.ParseTimeUnit(cfg.MkvToSymlinkUnit)
	if !ok {
		return models.Settings{}, fmt.Errorf("unknown MKV_TO_SYMLINK_UNIT %q", cfg.MkvToSymlinkUnit)
	}
	return models.Settings{
		LibraryMode:       mode,
		SymlinkToMkvValue: cfg.SymlinkToMkvValue,
		SymlinkToMkvUnit:  toMkv,
		MkvToSymlinkValue: cfg.MkvToSymlinkValue,
		MkvToSymlinkUnit:  toSymlink,
		MediaLibraryPath:  cfg.MediaLibraryPath,
	}, nil
}

func providePendingTimeout(cfg *config.Config) time.Duration {
	return cfg.PendingSymlinkTimeout
}

// provideHub returns the notification hub; closing it ends open event streams
func provideHub(logger zerolog.Logger) (*notify.Hub, func()) {
	hub := notify.NewHub(logger)
	return hub, hub.Close
}

// provideUpstreams names every upstream the status endpoint pings
func provideUpstreams(
	series *sonarr.Client,
	movies *radarr.Client,
	server *jellyfin.Client,
	requests *jellyseerr.Client,
	clients []downloadclient.Client,
) map[string]controllers.Pinger {
	upstreams := make(map[string]controllers.Pinger)
	if series.Configured() {
		upstreams["sonarr"] = series
	}
	if movies.Configured() {
		upstreams["radarr"] = movies
	}
	if server.Configured() {
		upstreams["jellyfin"] = server
	}
	if requests.Configured() {
		upstreams["jellyseerr"] = requests
	}
	for _, c := range clients {
		upstreams[c.Name()] = c
	}
	return upstreams
}
