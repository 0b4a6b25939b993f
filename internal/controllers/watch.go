package controllers

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/storarr/internal/models"
	"github.com/amaumene/storarr/internal/tracing"
	"github.com/amaumene/storarr/internal/utils"
	"github.com/rs/zerolog"
)

// WatchResult summarizes one collector cycle
type WatchResult struct {
	Checked int `json:"checked"`
	Linked  int `json:"linked"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// WatchController refreshes per-item watch recency from the media server
type WatchController struct {
	db     *models.Database
	server MediaServer
	logger zerolog.Logger
}

// NewWatchController creates a new watch controller
func NewWatchController(db *models.Database, server MediaServer, logger zerolog.Logger) *WatchController {
	return &WatchController{
		db:     db,
		server: server,
		logger: utils.WithComponent(logger, "watch"),
	}
}

// CollectWatchActivity updates lastWatchedAt for every item the media server
// knows about. Older or missing upstream values never move it backwards.
// The catalog is loaded once per cycle; if that fails the cycle ends without changes.
func (c *WatchController) CollectWatchActivity(ctx context.Context) (*WatchResult, error) {
	result := &WatchResult{}
	if !c.server.Configured() {
		c.logger.Debug().Msg("Media server not configured, skipping")
		return result, nil
	}

	ctx, span := tracing.StartSpan(ctx, "watch.collect")
	defer span.End()

	items, err := c.db.ListMediaItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load media items: %w", err)
	}
	if len(items) == 0 {
		return result, nil
	}

	remoteCatalog, err := c.server.Snapshot(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Int("items", len(items)).Msg("Media server unavailable, skipping watch cycle")
		tracing.SetSpanError(span, err)
		result.Failed = len(items)
		return result, nil
	}

	var changed []*models.MediaItem
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		remote := remoteCatalog.Lookup(item.FilePath)
		if remote == nil {
			continue
		}

		dirty := false
		if item.JellyfinID == nil || *item.JellyfinID != remote.ID {
			id := remote.ID
			item.JellyfinID = &id
			result.Linked++
			dirty = true
		}
		if played := remote.LastPlayed(); played != nil && advanceWatched(item, *played) {
			result.Updated++
			dirty = true
		}
		if dirty {
			changed = append(changed, item)
		}
	}

	if len(changed) > 0 {
		err := c.db.Batch(ctx, func(tx *models.Tx) error {
			for _, item := range changed {
				if err := tx.SaveMediaItem(item); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			tracing.SetSpanError(span, err)
			return nil, fmt.Errorf("failed to save watch activity: %w", err)
		}
	}

	c.logger.Debug().
		Int("checked", result.Checked).
		Int("linked", result.Linked).
		Int("updated", result.Updated).
		Msg("Watch activity collected")
	return result, nil
}

// advanceWatched moves lastWatchedAt forward to played. It reports whether it moved.
func advanceWatched(item *models.MediaItem, played time.Time) bool {
	played = played.UTC()
	if item.LastWatchedAt != nil && !played.After(*item.LastWatchedAt) {
		return false
	}
	item.LastWatchedAt = &played
	return true
}
