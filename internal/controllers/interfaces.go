package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/amaumene/storarr/internal/models"
	"github.com/amaumene/storarr/internal/services/jellyfin"
	"github.com/amaumene/storarr/internal/services/jellyseerr"
	"github.com/amaumene/storarr/internal/services/radarr"
	"github.com/amaumene/storarr/internal/services/sonarr"
)

var (
	// ErrInvalidState is returned when an item is not in a state the operation accepts
	ErrInvalidState = errors.New("invalid state for transition")
	// ErrMissingExternalID is returned when a transition needs a catalog id the item lacks
	ErrMissingExternalID = errors.New("missing external catalog id")
	// ErrSearchFailed is returned when the upstream search could not be triggered
	ErrSearchFailed = errors.New("search trigger failed")
	// ErrRequestFailed is returned when the re-acquisition request could not be created
	ErrRequestFailed = errors.New("request creation failed")
)

// SeriesService is the episodic catalog (Sonarr)
type SeriesService interface {
	Configured() bool
	ListSeries(ctx context.Context) ([]sonarr.Series, error)
	FindEpisodeFileByPath(ctx context.Context, seriesID int, path string) (*sonarr.EpisodeFile, error)
	FindEpisodeID(ctx context.Context, seriesID, season, episode int) (int, error)
	TriggerSearch(ctx context.Context, seriesID int, episodeIDs []int) error
	DeleteEpisodeFile(ctx context.Context, id int) error
	Queue(ctx context.Context) ([]sonarr.QueueItem, error)
}

// MovieService is the movie catalog (Radarr)
type MovieService interface {
	Configured() bool
	ListMovies(ctx context.Context) ([]radarr.Movie, error)
	FindMovieFileByPath(ctx context.Context, movieID int, path string) (*radarr.MovieFile, error)
	TriggerSearch(ctx context.Context, movieID int) error
	DeleteMovieFile(ctx context.Context, id int) error
	Queue(ctx context.Context) ([]radarr.QueueItem, error)
}

// MediaServer is the playback catalog (Jellyfin)
type MediaServer interface {
	Configured() bool
	Snapshot(ctx context.Context) (*jellyfin.Catalog, error)
}

// RequestService creates re-acquisition requests (Jellyseerr)
type RequestService interface {
	Configured() bool
	CreateRequest(ctx context.Context, tmdbID int, mediaType models.MediaType, tvdbID *int) (*jellyseerr.Request, error)
}

// Notifier receives a fire-and-forget event after every committed state change
type Notifier interface {
	MediaUpdated(id uint, state models.FileState)
}

// Pinger is anything whose connectivity can be checked
type Pinger interface {
	Ping(ctx context.Context) error
}

func utcNow() time.Time {
	return time.Now().UTC()
}
