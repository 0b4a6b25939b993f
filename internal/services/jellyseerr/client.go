package jellyseerr

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/storarr/internal/config"
	"github.com/amaumene/storarr/internal/models"
	"github.com/amaumene/storarr/internal/services/httpapi"
	"github.com/amaumene/storarr/internal/utils"
	"github.com/rs/zerolog"
)

// Request is a media request as returned by Jellyseerr
type Request struct {
	ID        int       `json:"id"`
	Status    FlexInt   `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	Media     *struct {
		ID     int `json:"id"`
		TmdbID int `json:"tmdbId"`
	} `json:"media"`
}

type createRequest struct {
	MediaType string      `json:"mediaType"`
	MediaID   int         `json:"mediaId"`
	TvdbID    *int        `json:"tvdbId,omitempty"`
	Seasons   interface{} `json:"seasons,omitempty"`
}

// Client creates requests through the Jellyseerr API
type Client struct {
	api    *httpapi.Client
	logger zerolog.Logger
}

// NewClient creates a new Jellyseerr client
func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		api: httpapi.New(httpapi.Options{
			Name:              "jellyseerr",
			BaseURL:           cfg.JellyseerrURL,
			Headers:           map[string]string{"X-Api-Key": cfg.JellyseerrAPIKey},
			Timeout:           cfg.HTTPTimeout,
			MaxRetries:        cfg.HTTPMaxRetries,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, logger),
		logger: utils.WithComponent(logger, "jellyseerr"),
	}
}

// Configured reports whether a Jellyseerr URL is set
func (c *Client) Configured() bool {
	return c.api.Configured()
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.api.Get(ctx, "api/v1/status", nil, nil)
}

// CreateRequest asks Jellyseerr to make the title available again.
// Episodic kinds request every season.
func (c *Client) CreateRequest(ctx context.Context, tmdbID int, mediaType models.MediaType, tvdbID *int) (*Request, error) {
	body := createRequest{MediaType: "movie", MediaID: tmdbID}
	if mediaType.IsEpisodic() {
		body.MediaType = "tv"
		body.TvdbID = tvdbID
		body.Seasons = "all"
	}

	var req Request
	if err := c.api.Post(ctx, "api/v1/request", body, &req); err != nil {
		return nil, fmt.Errorf("failed to create request for TMDB %d: %w", tmdbID, err)
	}
	c.logger.Info().Int("tmdb_id", tmdbID).Int("request_id", req.ID).Str("media_type", body.MediaType).Msg("Created request")
	return &req, nil
}
