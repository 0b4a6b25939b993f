package radarr

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

// Movie is a movie tracked by Radarr
type Movie struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	TmdbID      int    `json:"tmdbId"`
	Path        string `json:"path"`
	HasFile     bool   `json:"hasFile"`
	MovieFileID int    `json:"movieFileId"`
}

// MovieFile is a file record owned by Radarr
type MovieFile struct {
	ID      int    `json:"id"`
	MovieID int    `json:"movieId"`
	Path    string `json:"path"`
	Size    int64  `json:"size"`
}

// QueueItem is one active download in Radarr's queue
type QueueItem struct {
	DownloadID   string  `json:"downloadId"`
	MovieID      int     `json:"movieId"`
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

// Client talks to the Radarr v3 API
type Client struct {
	api    *httpapi.Client
	logger zerolog.Logger
}

// NewClient creates a new Radarr client. An empty URL yields an unconfigured client.
func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		api: httpapi.New(httpapi.Options{
			Name:              "radarr",
			BaseURL:           cfg.RadarrURL,
			Headers:           map[string]string{"X-Api-Key": cfg.RadarrAPIKey},
			Timeout:           cfg.HTTPTimeout,
			MaxRetries:        cfg.HTTPMaxRetries,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, logger),
		logger: utils.WithComponent(logger, "radarr"),
	}
}

// Configured reports whether a Radarr URL is set
func (c *Client) Configured() bool {
	return c.api.Configured()
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.api.Get(ctx, "api/v3/system/status", nil, nil)
}

// ListMovies returns every tracked movie
func (c *Client) ListMovies(ctx context.Context) ([]Movie, error) {
	var movies []Movie
	if err := c.api.Get(ctx, "api/v3/movie", nil, &movies); err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	return movies, nil
}

// GetMovie returns one movie
func (c *Client) GetMovie(ctx context.Context, id int) (*Movie, error) {
	var movie Movie
	if err := c.api.Get(ctx, fmt.Sprintf("api/v3/movie/%d", id), nil, &movie); err != nil {
		return nil, fmt.Errorf("failed to get movie %d: %w", id, err)
	}
	return &movie, nil
}

// ListMovieFiles returns the file records of a movie
func (c *Client) ListMovieFiles(ctx context.Context, movieID int) ([]MovieFile, error) {
	var files []MovieFile
	query := url.Values{"movieId": {strconv.Itoa(movieID)}}
	if err := c.api.Get(ctx, "api/v3/moviefile", query, &files); err != nil {
		return nil, fmt.Errorf("failed to list movie files for movie %d: %w", movieID, err)
	}
	return files, nil
}

// FindMovieFileByPath locates the file record for path, matching the full
// path first and the file name second. It returns nil when nothing matches.
func (c *Client) FindMovieFileByPath(ctx context.Context, movieID int, path string) (*MovieFile, error) {
	files, err := c.ListMovieFiles(ctx, movieID)
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
			c.logger.Debug().Int("file_id", files[i].ID).Str("path", path).Msg("Matched movie file by name")
			return &files[i], nil
		}
	}
	return nil, nil
}

// TriggerSearch queues a search for one movie
func (c *Client) TriggerSearch(ctx context.Context, movieID int) error {
	body := map[string]interface{}{"name": "MoviesSearch", "movieIds": []int{movieID}}
	if err := c.api.Post(ctx, "api/v3/command", body, nil); err != nil {
		return fmt.Errorf("failed to trigger search for movie %d: %w", movieID, err)
	}
	c.logger.Info().Int("movie_id", movieID).Msg("Triggered search")
	return nil
}

// DeleteMovieFile deletes a file record and its file
func (c *Client) DeleteMovieFile(ctx context.Context, id int) error {
	if err := c.api.Delete(ctx, fmt.Sprintf("api/v3/moviefile/%d", id), nil); err != nil {
		return fmt.Errorf("failed to delete movie file %d: %w", id, err)
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
