package controllers

import (
	"context"
	"sync"

	"github.com/amaumene/storarr/internal/services/downloadclient"
	"github.com/amaumene/storarr/internal/utils"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ArrQueueItem is one entry of the Sonarr or Radarr download queue
type ArrQueueItem struct {
	Source        string  `json:"source"`
	CatalogID     int     `json:"catalogId"`
	Title         string  `json:"title"`
	Status        string  `json:"status"`
	Size          int64   `json:"size"`
	SizeRemaining int64   `json:"sizeRemaining"`
	Progress      float64 `json:"progress"`
	ErrorMessage  string  `json:"errorMessage,omitempty"`
}

// QueueView is a combined queue; sources that failed are listed in Errors
type QueueView[T any] struct {
	Items  []T               `json:"items"`
	Errors map[string]string `json:"errors,omitempty"`
}

// QueueController aggregates the queues of the catalogs and download clients
type QueueController struct {
	series  SeriesService
	movies  MovieService
	clients []downloadclient.Client
	logger  zerolog.Logger
}

// NewQueueController creates a new queue controller
func NewQueueController(series SeriesService, movies MovieService, clients []downloadclient.Client, logger zerolog.Logger) *QueueController {
	return &QueueController{
		series:  series,
		movies:  movies,
		clients: clients,
		logger:  utils.WithComponent(logger, "queue"),
	}
}

// ArrQueue returns the Sonarr and Radarr queues. One failing source does not
// hide the other.
func (c *QueueController) ArrQueue(ctx context.Context) *QueueView[ArrQueueItem] {
	view := &QueueView[ArrQueueItem]{Items: []ArrQueueItem{}}
	var mu sync.Mutex
	collect := func(source string, items []ArrQueueItem, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			c.logger.Warn().Err(err).Str("source", source).Msg("Failed to fetch queue")
			if view.Errors == nil {
				view.Errors = make(map[string]string)
			}
			view.Errors[source] = err.Error()
			return
		}
		view.Items = append(view.Items, items...)
	}

	var g errgroup.Group
	if c.series != nil && c.series.Configured() {
		g.Go(func() error {
			queue, err := c.series.Queue(ctx)
			items := make([]ArrQueueItem, 0, len(queue))
			for _, q := range queue {
				items = append(items, arrItem("sonarr", q.SeriesID, q.Title, q.Status, q.Size, q.SizeLeft, q.ErrorMessage))
			}
			collect("sonarr", items, err)
			return nil
		})
	}
	if c.movies != nil && c.movies.Configured() {
		g.Go(func() error {
			queue, err := c.movies.Queue(ctx)
			items := make([]ArrQueueItem, 0, len(queue))
			for _, q := range queue {
				items = append(items, arrItem("radarr", q.MovieID, q.Title, q.Status, q.Size, q.SizeLeft, q.ErrorMessage))
			}
			collect("radarr", items, err)
			return nil
		})
	}
	_ = g.Wait()
	return view
}

func arrItem(source string, id int, title, status string, size, left float64, errMsg string) ArrQueueItem {
	item := ArrQueueItem{
		Source:        source,
		CatalogID:     id,
		Title:         title,
		Status:        status,
		Size:          int64(size),
		SizeRemaining: int64(left),
		ErrorMessage:  errMsg,
	}
	if size > 0 {
		item.Progress = (size - left) / size * 100
	}
	return item
}

// ClientQueues returns the incomplete downloads of every configured download client
func (c *QueueController) ClientQueues(ctx context.Context) *QueueView[downloadclient.QueueItem] {
	view := &QueueView[downloadclient.QueueItem]{Items: []downloadclient.QueueItem{}}
	results := make([][]downloadclient.QueueItem, len(c.clients))
	errs := make([]error, len(c.clients))

	var g errgroup.Group
	for i, client := range c.clients {
		g.Go(func() error {
			results[i], errs[i] = client.Queue(ctx)
			return nil
		})
	}
	_ = g.Wait()

	for i, client := range c.clients {
		if errs[i] != nil {
			c.logger.Warn().Err(errs[i]).Str("client", client.Name()).Msg("Failed to fetch download client queue")
			if view.Errors == nil {
				view.Errors = make(map[string]string)
			}
			view.Errors[client.Name()] = errs[i].Error()
			continue
		}
		view.Items = append(view.Items, results[i]...)
	}
	return view
}
