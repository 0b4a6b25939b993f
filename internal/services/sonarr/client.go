package sonarr

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/amaumene/storarr/internal/config"
	"github.com/amaumene/storarr/internal/services/httpapi"
	"github.com/amaumene/storarr/internal/utils"
	"github.com/rs/zerolog"
)

// Series is a series tracked by Sonarr
type Series struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	TvdbID int    `json:"tvdbId"`
	TmdbID int    `json:"tmdbId"`
	Path   string `json:"path"`
}

// Episode is one episode of a series
type Episode struct {
	ID            int  `json:"id"`
	SeriesID      int  `json:"seriesId"`
	SeasonNumber  int  `json:"seasonNumber"`
	EpisodeNumber int  `json:"episodeNumber"`
	EpisodeFileID int  `json:"episodeFileId"`
	HasFile       bool `json:"hasFile"`
}

// EpisodeFile is a file record owned by Sonarr
type EpisodeFile struct {
	ID           int    `json:"id"`
	SeriesID     int    `json:"seriesId"`
	SeasonNumber int    `json:"seasonNumber"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
}

// QueueItem is one active download in Sonarr's queue
type QueueItem struct {
	DownloadID   string  `json:"downloadId"`
	SeriesID     int     `json:"seriesId"`
	EpisodeID    int     `json:"episodeId"`
	Title        string  `json:"title"`
	Status       string  `json:"status"`
	Size         float64 `json:"size"`
	SizeLeft     float64 `json:"sizeleft"`
	ErrorMessage string  `json:"errorMessage"`
}

type queuePage struct {
	Page         int         `json:"page"`
	PageSize     int         `json:"pageSize"`
	TotalRecords int         `json:"totalRecords"`
	Records      []QueueItem `json:"records"`
}

const queuePageSize = 250

// Client talks to the Sonarr v3 API
type Client struct {
	api    *httpapi.Client
	logger zerolog.Logger
}

// NewClient creates a new Sonarr client. An empty URL yields an unconfigured client.
func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		api: httpapi.New(httpapi.Options{
			Name:              "sonarr",
			BaseURL:           cfg.SonarrURL,
			Headers:           map[string]string{"X-Api-Key": cfg.SonarrAPIKey},
			Timeout:           cfg.HTTPTimeout,
			MaxRetries:        cfg.HTTPMaxRetries,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, logger),
		logger: utils.WithComponent(logger, "sonarr"),
	}
}

// Configured reports whether a Sonarr URL is set
func (c *Client) Configured() bool {
	return c.api.Configured()
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.api.Get(ctx, "api/v3/system/status", nil, nil)
}

// ListSeries returns every tracked series
func (c *Client) ListSeries(ctx context.Context) ([]Series, error) {
	var series []Series
	if err := c.api.Get(ctx, "api/v3/series", nil, &series); err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	return series, nil
}

// ListEpisodes returns every episode of a series
func (c *Client) ListEpisodes(ctx context.Context, seriesID int) ([]Episode, error) {
	var episodes []Episode
	query := url.Values{"seriesId": {strconv.Itoa(seriesID)}}
	if err := c.api.Get(ctx, "api/v3/episode", query, &episodes); err != nil {
		return nil, fmt.Errorf("failed to list episodes for series %d: %w", seriesID, err)
	}
	return episodes, nil
}

// ListEpisodeFiles returns every file record of a series
func (c *Client) ListEpisodeFiles(ctx context.Context, seriesID int) ([]EpisodeFile, error) {
	var files []EpisodeFile
	query := url.Values{"seriesId": {strconv.Itoa(seriesID)}}
	if err := c.api.Get(ctx, "api/v3/episodefile", query, &files); err != nil {
		return nil, fmt.Errorf("failed to list episode files for series %d: %w", seriesID, err)
	}
	return files, nil
}

// FindEpisodeFileByPath locates the file record for path, matching the full
// path first and the file name second. It returns nil when nothing matches.
func (c *Client) FindEpisodeFileByPath(ctx context.Context, seriesID int, path string) (*EpisodeFile, error) {
	files, err := c.ListEpisodeFiles(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	for i := range files {
		if utils.SamePath(files[i].Path, path) {
			return &files[i], nil
		}
	}
	for i := range files {
		if utils.SameFileName(files[i].Path, path) {
			c.logger.Debug().Int("file_id", files[i].ID).Str("path", path).Msg("Matched episode file by name")
			return &files[i], nil
		}
	}
	return nil, nil
}

// FindEpisodeID returns the id of one episode, or 0 when the series has no such episode
func (c *Client) FindEpisodeID(ctx context.Context, seriesID, season, episode int) (int, error) {
	episodes, err := c.ListEpisodes(ctx, seriesID)
	if err != nil {
		return 0, err
	}
	for _, e := range episodes {
		if e.SeasonNumber == season && e.EpisodeNumber == episode {
			return e.ID, nil
		}
	}
	return 0, nil
}

// TriggerSearch queues an episode search, or a whole-series search when no episode ids are given
func (c *Client) TriggerSearch(ctx context.Context, seriesID int, episodeIDs []int) error {
	var body interface{}
	if len(episodeIDs) > 0 {
		body = map[string]interface{}{"name": "EpisodeSearch", "episodeIds": episodeIDs}
	} else {
		body = map[string]interface{}{"name": "SeriesSearch", "seriesId": seriesID}
	}
	if err := c.api.Post(ctx, "api/v3/command", body, nil); err != nil {
		return fmt.Errorf("failed to trigger search for series %d: %w", seriesID, err)
	}
	c.logger.Info().Int("series_id", seriesID).Ints("episode_ids", episodeIDs).Msg("Triggered search")
	return nil
}

// DeleteEpisodeFile deletes a file record and its file
func (c *Client) DeleteEpisodeFile(ctx context.Context, id int) error {
	if err := c.api.Delete(ctx, fmt.Sprintf("api/v3/episodefile/%d", id), nil); err != nil {
		return fmt.Errorf("failed to delete episode file %d: %w", id, err)
	}
	return nil
}

// Queue returns every active download, following pagination
func (c *Client) Queue(ctx context.Context) ([]QueueItem, error) {
	var items []QueueItem
	for page := 1; ; page++ {
		var resp queuePage
		query := url.Values{
			"page":     {strconv.Itoa(page)},
			"pageSize": {strconv.Itoa(queuePageSize)},
		}
		if err := c.api.Get(ctx, "api/v3/queue", query, &resp); err != nil {
			return nil, fmt.Errorf("failed to get queue: %w", err)
		}
		items = append(items, resp.Records...)
		if len(resp.Records) == 0 || len(items) >= resp.TotalRecords {
			return items, nil
		}
	}
}
