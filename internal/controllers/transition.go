package controllers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/amaumene/storarr/internal/filesystem"
	"github.com/amaumene/storarr/internal/metrics"
	"github.com/amaumene/storarr/internal/models"
	"github.com/amaumene/storarr/internal/tracing"
	"github.com/amaumene/storarr/internal/utils"
	"github.com/rs/zerolog"
)

const (
	// PreviewWindow bounds how far ahead GetUpcomingTransitions looks
	PreviewWindow = 7 * 24 * time.Hour
	// DefaultUpcomingLimit is used when no limit is given
	DefaultUpcomingLimit = 10
)

// Delete outcome recorded in the activity details
const (
	detailsDeletedViaAPI  = "Deleted via Arr API"
	detailsDeletedOnDisk  = "Deleted from disk"
	detailsNothingDeleted = "No file to delete"
)

// UpcomingTransition is one entry of the transition preview
type UpcomingTransition struct {
	MediaItemID         uint             `json:"mediaItemId"`
	Title               string           `json:"title"`
	Type                models.MediaType `json:"type"`
	CurrentState        models.FileState `json:"currentState"`
	TargetState         models.FileState `json:"targetState"`
	DaysUntilTransition int              `json:"daysUntilTransition"`
	DueAt               time.Time        `json:"dueAt"`
}

// SweepResult summarizes one automatic sweep
type SweepResult struct {
	Mode         models.LibraryMode `json:"mode"`
	Skipped      bool               `json:"skipped"`
	Evaluated    int                `json:"evaluated"`
	Transitioned int                `json:"transitioned"`
	Failed       int                `json:"failed"`
	Resolved     int                `json:"resolved"`
}

// TransitionController owns the representation state machine
type TransitionController struct {
	db             *models.Database
	catalogs       catalogs
	requests       RequestService
	notifier       Notifier
	pendingTimeout time.Duration
	logger         zerolog.Logger
	now            func() time.Time
}

// NewTransitionController creates a new transition controller. A zero
// pendingTimeout disables stale PendingSymlink resolution.
func NewTransitionController(
	db *models.Database,
	series SeriesService,
	movies MovieService,
	requests RequestService,
	notifier Notifier,
	pendingTimeout time.Duration,
	logger zerolog.Logger,
) *TransitionController {
	logger = utils.WithComponent(logger, "transition")
	return &TransitionController{
		db:             db,
		catalogs:       newCatalogs(series, movies, logger),
		requests:       requests,
		notifier:       notifier,
		pendingTimeout: pendingTimeout,
		logger:         logger,
		now:            utcNow,
	}
}

// isDue reports whether threshold has fully elapsed since anchor
func isDue(now, anchor time.Time, threshold time.Duration) bool {
	return now.Sub(anchor) >= threshold
}

func (c *TransitionController) library(ctx context.Context) (*filesystem.Library, error) {
	settings, err := c.db.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return filesystem.New(settings.MediaLibraryPath, c.logger)
}

// TransitionToMkv replaces a placeholder with a local copy: the search is
// triggered first, and only then is the placeholder deleted.
func (c *TransitionController) TransitionToMkv(ctx context.Context, item *models.MediaItem) (err error) {
	ctx, span := tracing.StartSpan(ctx, "transition.to_mkv", tracing.MediaItemAttrs(item.ID, item.Title, string(item.CurrentState))...)
	defer func() {
		tracing.SetSpanError(span, err)
		span.End()
		recordTransition("to_mkv", err)
	}()

	if item.CurrentState != models.StateSymlink && item.CurrentState != models.StatePendingSymlink {
		return fmt.Errorf("media item %d is %s: %w", item.ID, item.CurrentState, ErrInvalidState)
	}

	lib, err := c.library(ctx)
	if err != nil {
		return err
	}
	if _, err := lib.Resolve(item.FilePath); err != nil {
		return err
	}

	c.logger.Info().Uint("media_id", item.ID).Str("title", item.Title).Msg("Transitioning symlink to MKV")

	cat := c.catalogs.forType(item.Type)
	id, linked := cat.linkedID(item)
	if linked && cat.configured() {
		if err := cat.search(ctx, item, id); err != nil {
			c.logger.Error().Err(err).Uint("media_id", item.ID).Str("catalog", cat.name()).Msg("Search failed, aborting deletion")
			return fmt.Errorf("%w: %w", ErrSearchFailed, err)
		}
	} else {
		c.logger.Warn().Uint("media_id", item.ID).Str("title", item.Title).Msg("No catalog linkage, proceeding with deletion anyway")
	}

	details, err := c.deleteFile(ctx, lib, item, cat)
	if err != nil {
		return err
	}

	err = c.db.Batch(ctx, func(tx *models.Tx) error {
		return tx.ChangeState(item, models.StateDownloading, models.ActionTransitionToMkv, details, c.now())
	})
	if err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}

	c.logger.Info().Uint("media_id", item.ID).Str("title", item.Title).Str("details", details).Msg("Transitioned to Downloading")
	c.notifier.MediaUpdated(item.ID, item.CurrentState)
	return nil
}

// TransitionToSymlink releases a local copy. It requires a TMDB id, and the
// re-acquisition request must succeed before anything is deleted.
func (c *TransitionController) TransitionToSymlink(ctx context.Context, item *models.MediaItem) (err error) {
	ctx, span := tracing.StartSpan(ctx, "transition.to_symlink", tracing.MediaItemAttrs(item.ID, item.Title, string(item.CurrentState))...)
	defer func() {
		tracing.SetSpanError(span, err)
		span.End()
		recordTransition("to_symlink", err)
	}()

	if item.CurrentState != models.StateMkv && item.CurrentState != models.StateDownloading {
		return fmt.Errorf("media item %d is %s: %w", item.ID, item.CurrentState, ErrInvalidState)
	}
	if item.TmdbID == nil {
		c.logger.Warn().Uint("media_id", item.ID).Str("title", item.Title).Msg("No TMDB id, refusing to delete without a way to recreate")
		return fmt.Errorf("media item %d: %w", item.ID, ErrMissingExternalID)
	}

	lib, err := c.library(ctx)
	if err != nil {
		return err
	}
	if _, err := lib.Resolve(item.FilePath); err != nil {
		return err
	}

	c.logger.Info().Uint("media_id", item.ID).Str("title", item.Title).Msg("Transitioning MKV to symlink")

	req, err := c.requests.CreateRequest(ctx, *item.TmdbID, item.Type, item.TvdbID)
	if err != nil {
		c.logger.Error().Err(err).Uint("media_id", item.ID).Int("tmdb_id", *item.TmdbID).Msg("Request failed, aborting deletion")
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	if req != nil && req.ID > 0 {
		requestID := req.ID
		item.JellyseerrRequestID = &requestID
	}

	details, err := c.deleteFile(ctx, lib, item, c.catalogs.forType(item.Type))
	if err != nil {
		return err
	}

	err = c.db.Batch(ctx, func(tx *models.Tx) error {
		return tx.ChangeState(item, models.StatePendingSymlink, models.ActionTransitionToSymlink, details, c.now())
	})
	if err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}

	c.logger.Info().Uint("media_id", item.ID).Str("title", item.Title).Str("details", details).Msg("Transitioned to PendingSymlink")
	c.notifier.MediaUpdated(item.ID, item.CurrentState)
	return nil
}

// deleteFile removes the item's file through its catalog when possible and
// from disk when the file is still there afterwards.
func (c *TransitionController) deleteFile(ctx context.Context, lib *filesystem.Library, item *models.MediaItem, cat catalog) (string, error) {
	apiDeleted := false
	if id, linked := cat.linkedID(item); linked && cat.configured() {
		fileID, err := cat.deleteFile(ctx, item, id)
		switch {
		case err != nil:
			c.logger.Warn().Err(err).Uint("media_id", item.ID).Str("catalog", cat.name()).Msg("Catalog deletion failed, falling back to disk")
		case fileID > 0:
			apiDeleted = true
			c.logger.Debug().Uint("media_id", item.ID).Int("file_id", fileID).Msg("Deleted file record")
		}
	}

	exists, err := lib.Exists(item.FilePath)
	if err != nil {
		return "", err
	}
	if exists {
		if err := lib.Delete(item.FilePath); err != nil {
			return "", fmt.Errorf("failed to delete %s: %w", item.FilePath, err)
		}
		if !apiDeleted {
			return detailsDeletedOnDisk, nil
		}
	}
	if apiDeleted {
		return detailsDeletedViaAPI, nil
	}
	return detailsNothingDeleted, nil
}

// CheckAndProcessTransitions runs the automatic sweep. Only FullAutomation
// transitions anything; a failure on one item never stops the others.
func (c *TransitionController) CheckAndProcessTransitions(ctx context.Context) (*SweepResult, error) {
	settings, err := c.db.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	result := &SweepResult{Mode: settings.LibraryMode}

	resolved, err := c.ResolveStalePending(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to resolve stale pending items")
	}
	result.Resolved = resolved

	if !settings.AutomationEnabled() {
		c.logger.Debug().Str("mode", string(settings.LibraryMode)).Msg("Automatic transitions disabled in this library mode")
		result.Skipped = true
		return result, nil
	}

	ctx, span := tracing.StartSpan(ctx, "transition.sweep")
	defer span.End()

	now := c.now()
	sweeps := []struct {
		state     models.FileState
		threshold time.Duration
		anchor    func(*models.MediaItem) time.Time
		apply     func(context.Context, *models.MediaItem) error
	}{
		{models.StateSymlink, settings.SymlinkToMkv().Duration(), (*models.MediaItem).SymlinkAnchor, c.TransitionToMkv},
		{models.StateMkv, settings.MkvToSymlink().Duration(), (*models.MediaItem).MkvAnchor, c.TransitionToSymlink},
	}

	for _, sweep := range sweeps {
		items, err := c.db.ListTransitionCandidates(ctx, sweep.state, 0)
		if err != nil {
			return result, fmt.Errorf("failed to load %s candidates: %w", sweep.state, err)
		}
		c.logger.Debug().Int("count", len(items)).Str("state", string(sweep.state)).Msg("Checking candidates")

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Evaluated++
			anchor := sweep.anchor(item)
			if !isDue(now, anchor, sweep.threshold) {
				continue
			}

			c.logger.Info().
				Uint("media_id", item.ID).
				Str("title", item.Title).
				Str("state", string(item.CurrentState)).
				Dur("idle", now.Sub(anchor)).
				Msg("Item due for transition")

			err := sweep.apply(ctx, item)
			switch {
			case err == nil:
				result.Transitioned++
			case errors.Is(err, ErrMissingExternalID):
				// logged by the transition; not a failure
			default:
				result.Failed++
				c.logger.Error().Err(err).Uint("media_id", item.ID).Msg("Automatic transition failed")
			}
		}
	}

	c.logger.Info().
		Int("evaluated", result.Evaluated).
		Int("transitioned", result.Transitioned).
		Int("failed", result.Failed).
		Msg("Transition sweep complete")
	return result, nil
}

// GetUpcomingTransitions previews the next automatic transitions within
// PreviewWindow, soonest first. Overdue items have negative days.
func (c *TransitionController) GetUpcomingTransitions(ctx context.Context, limit int) ([]UpcomingTransition, error) {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	settings, err := c.db.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	now := c.now()

	var upcoming []UpcomingTransition
	add := func(state, target models.FileState, threshold time.Duration, anchor func(*models.MediaItem) time.Time) error {
		items, err := c.db.ListTransitionCandidates(ctx, state, limit)
		if err != nil {
			return fmt.Errorf("failed to load %s candidates: %w", state, err)
		}
		for _, item := range items {
			due := anchor(item).Add(threshold)
			remaining := due.Sub(now)
			if remaining > PreviewWindow {
				continue
			}
			upcoming = append(upcoming, UpcomingTransition{
				MediaItemID:         item.ID,
				Title:               item.Title,
				Type:                item.Type,
				CurrentState:        state,
				TargetState:         target,
				DaysUntilTransition: daysUntil(remaining),
				DueAt:               due,
			})
		}
		return nil
	}

	if err := add(models.StateSymlink, models.StateMkv, settings.SymlinkToMkv().Duration(), (*models.MediaItem).SymlinkAnchor); err != nil {
		return nil, err
	}
	if err := add(models.StateMkv, models.StateSymlink, settings.MkvToSymlink().Duration(), (*models.MediaItem).MkvAnchor); err != nil {
		return nil, err
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].DaysUntilTransition < upcoming[j].DaysUntilTransition
	})
	if len(upcoming) > limit {
		upcoming = upcoming[:limit]
	}
	return upcoming, nil
}

// daysUntil rounds remaining up to whole days
func daysUntil(remaining time.Duration) int {
	return int(math.Ceil(remaining.Hours() / 24))
}

// MarkRequestAvailable moves every PendingSymlink item sharing tmdbID to
// Symlink. TMDB numbers movies and shows separately, so types narrows the
// match to the announced kind; none means any kind.
func (c *TransitionController) MarkRequestAvailable(ctx context.Context, tmdbID int, types ...models.MediaType) (int, error) {
	items, err := c.db.ListPendingByTmdbID(ctx, tmdbID, types...)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending items: %w", err)
	}
	if len(items) == 0 {
		c.logger.Debug().Int("tmdb_id", tmdbID).Msg("No pending items for available request")
		return 0, nil
	}

	now := c.now()
	err = c.db.Batch(ctx, func(tx *models.Tx) error {
		for _, item := range items {
			if err := tx.ChangeState(item, models.StateSymlink, models.ActionRequestAvailable, fmt.Sprintf("TMDB %d available", tmdbID), now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to mark items available: %w", err)
	}

	for _, item := range items {
		c.logger.Info().Uint("media_id", item.ID).Str("title", item.Title).Msg("Now available as symlink")
		c.notifier.MediaUpdated(item.ID, item.CurrentState)
	}
	return len(items), nil
}

// RecordRequest stores requestID on PendingSymlink items sharing tmdbID that
// do not carry a request id yet. It is not a state change.
func (c *TransitionController) RecordRequest(ctx context.Context, tmdbID, requestID int, types ...models.MediaType) (int, error) {
	items, err := c.db.ListPendingByTmdbID(ctx, tmdbID, types...)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending items: %w", err)
	}

	var linked []*models.MediaItem
	for _, item := range items {
		if item.JellyseerrRequestID == nil {
			id := requestID
			item.JellyseerrRequestID = &id
			linked = append(linked, item)
		}
	}
	if len(linked) == 0 {
		return 0, nil
	}

	err = c.db.Batch(ctx, func(tx *models.Tx) error {
		for _, item := range linked {
			if err := tx.SaveMediaItem(item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record request: %w", err)
	}
	for _, item := range linked {
		c.logger.Info().Uint("media_id", item.ID).Int("request_id", requestID).Msg("Linked request")
	}
	return len(linked), nil
}

// ForceTransition runs a manual transition toward target. It works in every
// library mode and ignores the exclusion flag.
func (c *TransitionController) ForceTransition(ctx context.Context, id uint, target models.FileState) (*models.MediaItem, error) {
	item, err := c.db.GetMediaItem(ctx, id)
	if err != nil {
		return nil, err
	}

	switch target {
	case models.StateMkv:
		err = c.TransitionToMkv(ctx, item)
	case models.StateSymlink:
		err = c.TransitionToSymlink(ctx, item)
	default:
		err = fmt.Errorf("cannot force media item %d to %s: %w", id, target, ErrInvalidState)
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ResolveStalePending settles PendingSymlink items older than the pending
// timeout whose file is back on disk, so a lost availability notification
// cannot strand them. Items still missing are only logged.
func (c *TransitionController) ResolveStalePending(ctx context.Context) (int, error) {
	if c.pendingTimeout <= 0 {
		return 0, nil
	}
	items, err := c.db.ListMediaItemsByState(ctx, models.StatePendingSymlink)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending items: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}
	lib, err := c.library(ctx)
	if err != nil {
		return 0, err
	}

	now := c.now()
	type resolution struct {
		item *models.MediaItem
		to   models.FileState
		size int64
	}
	var resolved []resolution
	stale := 0

	for _, item := range items {
		anchor := item.CreatedAt
		if item.StateChangedAt != nil {
			anchor = *item.StateChangedAt
		}
		if !isDue(now, anchor, c.pendingTimeout) {
			continue
		}

		exists, err := lib.Exists(item.FilePath)
		if err != nil {
			c.logger.Warn().Err(err).Uint("media_id", item.ID).Msg("Failed to check pending file")
			continue
		}
		if !exists {
			stale++
			continue
		}
		isLink, err := lib.IsSymlink(item.FilePath)
		if err != nil {
			c.logger.Warn().Err(err).Uint("media_id", item.ID).Msg("Failed to inspect pending file")
			continue
		}
		size, err := lib.Size(item.FilePath)
		if err != nil {
			c.logger.Warn().Err(err).Uint("media_id", item.ID).Msg("Failed to size pending file")
			continue
		}
		to := models.StateMkv
		if isLink {
			to = models.StateSymlink
		}
		resolved = append(resolved, resolution{item: item, to: to, size: size})
	}

	if stale > 0 {
		c.logger.Warn().Int("count", stale).Dur("timeout", c.pendingTimeout).Msg("Items pending recreation past timeout with no file on disk")
	}
	if len(resolved) == 0 {
		return 0, nil
	}

	err = c.db.Batch(ctx, func(tx *models.Tx) error {
		for _, r := range resolved {
			size := r.size
			r.item.FileSize = &size
			if err := tx.ChangeState(r.item, r.to, models.ActionPendingResolved, fmt.Sprintf("Found %s on disk after %s", r.to, c.pendingTimeout), now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to resolve pending items: %w", err)
	}

	for _, r := range resolved {
		c.logger.Info().Uint("media_id", r.item.ID).Str("title", r.item.Title).Str("state", string(r.to)).Msg("Resolved stale pending item")
		c.notifier.MediaUpdated(r.item.ID, r.to)
	}
	return len(resolved), nil
}

func recordTransition(name string, err error) {
	switch {
	case err == nil:
		metrics.TransitionsTotal.WithLabelValues(name, metrics.ResultSuccess).Inc()
	case errors.Is(err, ErrMissingExternalID), errors.Is(err, ErrInvalidState):
		metrics.TransitionsTotal.WithLabelValues(name, metrics.ResultSkipped).Inc()
	default:
		metrics.TransitionsTotal.WithLabelValues(name, metrics.ResultError).Inc()
	}
}
