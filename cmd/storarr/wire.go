//go:build wireinject
// +build wireinject

package main

import (
	"github.com/amaumene/storarr/internal/api"
	"github.com/amaumene/storarr/internal/api/handlers"
	"github.com/amaumene/storarr/internal/config"
	"github.com/amaumene/storarr/internal/controllers"
	"github.com/amaumene/storarr/internal/gate"
	"github.com/amaumene/storarr/internal/notify"
	"github.com/amaumene/storarr/internal/scheduler"
	"github.com/amaumene/storarr/internal/services/downloadclient"
	"github.com/amaumene/storarr/internal/services/jellyfin"
	"github.com/amaumene/storarr/internal/services/jellyseerr"
	"github.com/amaumene/storarr/internal/services/radarr"
	"github.com/amaumene/storarr/internal/services/sonarr"
	"github.com/google/wire"
	"github.com/rs/zerolog"
)

var serviceSet = wire.NewSet(
	sonarr.NewClient,
	radarr.NewClient,
	jellyfin.NewClient,
	jellyseerr.NewClient,
	downloadclient.NewAll,
	wire.Bind(new(controllers.SeriesService), new(*sonarr.Client)),
	wire.Bind(new(controllers.MovieService), new(*radarr.Client)),
	wire.Bind(new(controllers.MediaServer), new(*jellyfin.Client)),
	wire.Bind(new(controllers.RequestService), new(*jellyseerr.Client)),
)

var controllerSet = wire.NewSet(
	providePendingTimeout,
	provideUpstreams,
	provideHub,
	wire.Bind(new(controllers.Notifier), new(*notify.Hub)),
	controllers.NewLibraryController,
	controllers.NewDownloadController,
	controllers.NewWatchController,
	controllers.NewTransitionController,
	controllers.NewQueueController,
	controllers.NewStatusController,
	controllers.NewDashboardController,
)

var handlerSet = wire.NewSet(
	handlers.NewHealthHandler,
	handlers.NewStatusHandler,
	handlers.NewDashboardHandler,
	handlers.NewQueueHandler,
	handlers.NewTransitionHandler,
	handlers.NewMediaHandler,
	handlers.NewWebhookHandler,
	handlers.NewEventsHandler,
	wire.Struct(new(handlers.Set), "*"),
)

func initializeApp(cfg *config.Config, logger zerolog.Logger) (*App, func(), error) {
	wire.Build(
		provideDatabase,
		gate.New,
		serviceSet,
		controllerSet,
		handlerSet,
		scheduler.NewScheduler,
		api.NewServer,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
