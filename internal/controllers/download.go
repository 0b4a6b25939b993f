package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amaumene/storarr/internal/filesystem"
	"github.com/amaumene/storarr/internal/metrics"
	"github.com/amaumene/storarr/internal/models"
	"github.com/amaumene/storarr/internal/tracing"
	"github.com/amaumene/storarr/internal/utils"
	"github.com/rs/zerolog"
)

// DownloadResult summarizes one detector cycle
type DownloadResult struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
}

// DownloadController closes the loop on downloads triggered by TransitionToMkv
type DownloadController struct {
	db       *models.Database
	catalogs catalogs
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

// NewDownloadController creates a new download controller
func NewDownloadController(db *models.Database, series SeriesService, movies MovieService, notifier Notifier, logger zerolog.Logger) *DownloadController {
	logger = utils.WithComponent(logger, "download")
	return &DownloadController{
		db:       db,
		catalogs: newCatalogs(series, movies, logger),
		notifier: notifier,
		logger:   logger,
		now:      utcNow,
	}
}

type queueState struct {
	active map[int]struct{}
	err    error
}

// CheckCompletedDownloads finalizes every Downloading item that is absent from
// its catalog's queue and present on disk. Both conditions are required.
func (c *DownloadController) CheckCompletedDownloads(ctx context.Context) (*DownloadResult, error) {
	ctx, span := tracing.StartSpan(ctx, "download.check")
	defer span.End()

	result := &DownloadResult{}

	items, err := c.db.ListMediaItemsByState(ctx, models.StateDownloading)
	if err != nil {
		return nil, fmt.Errorf("failed to load downloading items: %w", err)
	}
	if len(items) == 0 {
		c.logger.Debug().Msg("No downloads in progress")
		return result, nil
	}

	settings, err := c.db.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	lib, err := filesystem.New(settings.MediaLibraryPath, c.logger)
	if err != nil {
		return nil, err
	}

	// each queue is fetched at most once per cycle
	queues := make(map[string]*queueState)

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		cat := c.catalogs.forType(item.Type)
		id, linked := cat.linkedID(item)
		if !linked || !cat.configured() {
			c.logger.Info().Uint("media_id", item.ID).Str("title", item.Title).Msg("No catalog linkage, cannot confirm completion")
			result.Skipped++
			continue
		}

		q, ok := queues[cat.name()]
		if !ok {
			active, err := cat.activeIDs(ctx)
			q = &queueState{active: active, err: err}
			queues[cat.name()] = q
			if err != nil {
				c.logger.Warn().Err(err).Str("catalog", cat.name()).Msg("Failed to fetch queue, skipping its items this cycle")
			}
		}
		if q.err != nil {
			result.Skipped++
			continue
		}
		if _, downloading := q.active[id]; downloading {
			continue
		}

		exists, err := lib.Exists(item.FilePath)
		if err != nil {
			c.logger.Warn().Err(err).Uint("media_id", item.ID).Msg("Failed to check file")
			result.Skipped++
			continue
		}
		if !exists {
			c.logger.Debug().Uint("media_id", item.ID).Msg("Not in queue but not on disk yet")
			continue
		}

		if err := c.finalize(ctx, lib, item, models.ActionDownloadComplete, fmt.Sprintf("Left %s queue", cat.name())); err != nil {
			c.logger.Error().Err(err).Uint("media_id", item.ID).Msg("Failed to finalize download")
			result.Skipped++
			continue
		}
		result.Completed++
	}

	if result.Completed > 0 {
		c.logger.Info().Int("completed", result.Completed).Int("checked", result.Checked).Msg("Download check complete")
	}
	return result, nil
}

// CompleteFromImport finalizes the Downloading item at path after an import
// notification from Sonarr or Radarr. It reports whether an item was finalized.
func (c *DownloadController) CompleteFromImport(ctx context.Context, path string, fileID int) (bool, error) {
	item, err := c.db.GetMediaItemByPath(ctx, path)
	if errors.Is(err, models.ErrNotFound) {
		c.logger.Debug().Str("path", path).Msg("Imported file is not tracked")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if item.CurrentState != models.StateDownloading {
		c.logger.Debug().Uint("media_id", item.ID).Str("state", string(item.CurrentState)).Msg("Imported file is not downloading, ignoring")
		return false, nil
	}

	settings, err := c.db.GetSettings(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load settings: %w", err)
	}
	lib, err := filesystem.New(settings.MediaLibraryPath, c.logger)
	if err != nil {
		return false, err
	}
	exists, err := lib.Exists(item.FilePath)
	if err != nil {
		return false, err
	}
	if !exists {
		c.logger.Warn().Uint("media_id", item.ID).Str("path", item.FilePath).Msg("Import reported but file not on disk")
		return false, nil
	}

	if fileID > 0 {
		c.catalogs.forType(item.Type).setFileID(item, fileID)
	}
	if err := c.finalize(ctx, lib, item, models.ActionDownloadCompleteWebhook, "Imported: "+path); err != nil {
		return false, err
	}
	return true, nil
}

// finalize records the on-disk representation of a completed download
func (c *DownloadController) finalize(ctx context.Context, lib *filesystem.Library, item *models.MediaItem, action, details string) error {
	isLink, err := lib.IsSymlink(item.FilePath)
	if err != nil {
		return err
	}
	size, err := lib.Size(item.FilePath)
	if err != nil {
		return err
	}

	to := models.StateMkv
	if isLink {
		to = models.StateSymlink
	}
	item.FileSize = &size

	err = c.db.Batch(ctx, func(tx *models.Tx) error {
		return tx.ChangeState(item, to, action, details, c.now())
	})
	if err != nil {
		metrics.TransitionsTotal.WithLabelValues("download_complete", metrics.ResultError).Inc()
		return err
	}
	metrics.TransitionsTotal.WithLabelValues("download_complete", metrics.ResultSuccess).Inc()

	c.logger.Info().
		Uint("media_id", item.ID).
		Str("title", item.Title).
		Str("state", string(to)).
		Int64("size", size).
		Msg("Download complete")
	c.notifier.MediaUpdated(item.ID, to)
	return nil
}
