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
	"go.opentelemetry.io/otel/attribute"
)

// ScanResult summarizes one reconciliation pass
type ScanResult struct {
	Files       int `json:"files"`
	Discovered  int `json:"discovered"`
	Corrected   int `json:"corrected"`
	Linked      int `json:"linked"`
	Interrupted int `json:"interrupted"`
	Missing     int `json:"missing"`
	Failed      int `json:"failed"`
}

// LibraryController reconciles the tracked inventory with the media library
type LibraryController struct {
	db       *models.Database
	catalogs catalogs
	notifier Notifier
	logger   zerolog.Logger
	now      func() time.Time
}

// NewLibraryController creates a new library controller
func NewLibraryController(db *models.Database, series SeriesService, movies MovieService, notifier Notifier, logger zerolog.Logger) *LibraryController {
	logger = utils.WithComponent(logger, "library")
	return &LibraryController{
		db:       db,
		catalogs: newCatalogs(series, movies, logger),
		notifier: notifier,
		logger:   logger,
		now:      utcNow,
	}
}

// pendingWrite is one change to persist at the end of the pass
type pendingWrite struct {
	item    *models.MediaItem
	create  bool
	from    models.FileState
	action  string // empty when the state did not change
	details string
}

// Scan walks the library, diffs it against tracked items and persists every
// change in one batch. Catalog failures degrade linkage; they never abort the scan.
func (c *LibraryController) Scan(ctx context.Context) (*ScanResult, error) {
	ctx, span := tracing.StartSpan(ctx, "library.scan")
	defer span.End()

	result := &ScanResult{}

	settings, err := c.db.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	lib, err := filesystem.New(settings.MediaLibraryPath, c.logger)
	if errors.Is(err, filesystem.ErrNotConfigured) {
		c.logger.Debug().Msg("Media library path not configured")
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	c.logger.Info().Str("path", lib.Root()).Msg("Scanning media library")

	index := c.buildIndex(ctx, lib.Root())

	files, err := lib.Scan(ctx)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, fmt.Errorf("failed to scan library: %w", err)
	}
	result.Files = len(files)

	tracked, err := c.db.ListMediaItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load media items: %w", err)
	}
	byPath := make(map[string]*models.MediaItem, len(tracked))
	for _, item := range tracked {
		byPath[utils.FoldPath(item.FilePath)] = item
	}

	now := c.now()
	var writes []pendingWrite
	seen := make(map[string]struct{}, len(files))

	for _, file := range files {
		key := utils.FoldPath(file.Path)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if item, ok := byPath[key]; ok {
			if w, changed := c.reconcile(item, file, lib.Root(), index, now, result); changed {
				writes = append(writes, w)
			}
			continue
		}

		item := c.discover(file, lib.Root(), index, now)
		writes = append(writes, pendingWrite{
			item:    item,
			create:  true,
			action:  models.ActionDiscovered,
			details: file.Path,
		})
	}

	for _, item := range tracked {
		if _, ok := seen[utils.FoldPath(item.FilePath)]; ok {
			continue
		}
		result.Missing++
		if item.CurrentState != models.StateDownloading {
			c.logger.Warn().Uint("media_id", item.ID).Str("path", item.FilePath).Msg("Media file no longer exists")
			continue
		}
		c.logger.Warn().Uint("media_id", item.ID).Str("title", item.Title).Msg("File missing while downloading, awaiting recreation")
		result.Interrupted++
		writes = append(writes, pendingWrite{
			item:    item,
			from:    item.CurrentState,
			action:  models.ActionDownloadInterrupted,
			details: "File missing while downloading",
		})
	}

	committed, err := c.persist(ctx, writes, now, result)
	if err != nil {
		tracing.SetSpanError(span, err)
		return nil, err
	}

	for _, w := range committed {
		if w.action != "" {
			c.notifier.MediaUpdated(w.item.ID, w.item.CurrentState)
		}
	}
	c.refreshGauge(ctx)

	span.SetAttributes(
		attribute.Int("library.files", result.Files),
		attribute.Int("library.discovered", result.Discovered),
	)
	c.logger.Info().
		Int("files", result.Files).
		Int("discovered", result.Discovered).
		Int("corrected", result.Corrected).
		Int("linked", result.Linked).
		Int("missing", result.Missing).
		Int("interrupted", result.Interrupted).
		Int("failed", result.Failed).
		Msg("Library scan complete")
	return result, nil
}

// buildIndex fetches both catalogs. A failing or unconfigured catalog contributes no entries.
func (c *LibraryController) buildIndex(ctx context.Context, root string) *catalogIndex {
	var entries []catalogEntry
	for _, cat := range c.catalogs.all() {
		if !cat.configured() {
			continue
		}
		list, err := cat.entries(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Str("catalog", cat.name()).Msg("Failed to fetch catalog, continuing without linkage")
			continue
		}
		c.logger.Debug().Int("count", len(list)).Str("catalog", cat.name()).Msg("Loaded catalog")
		entries = append(entries, list...)
	}
	return newCatalogIndex(root, entries)
}

func (c *LibraryController) discover(file filesystem.Entry, root string, index *catalogIndex, now time.Time) *models.MediaItem {
	rel := utils.RelativeLibraryPath(file.Path, root)

	state := models.StateMkv
	if file.IsSymlink {
		state = models.StateSymlink
	}
	size := file.Size

	item := &models.MediaItem{
		Title:          utils.TitleFromPath(file.Path),
		Type:           utils.DetectMediaType(rel),
		CurrentState:   state,
		FilePath:       file.Path,
		FileSize:       &size,
		CreatedAt:      now,
		StateChangedAt: &now,
	}
	if entry := index.match(rel, item.Type); entry != nil {
		entry.linkTo(item)
	}
	if item.Type.IsEpisodic() {
		item.SeasonNumber, item.EpisodeNumber = utils.ParseEpisode(file.Path)
	}
	return item
}

// reconcile compares a still-present item with its file. A scan never
// overrides an in-flight transition.
func (c *LibraryController) reconcile(item *models.MediaItem, file filesystem.Entry, root string, index *catalogIndex, now time.Time, result *ScanResult) (pendingWrite, bool) {
	w := pendingWrite{item: item, from: item.CurrentState}
	changed := false

	expected := models.StateMkv
	if file.IsSymlink {
		expected = models.StateSymlink
	}
	if item.CurrentState != expected &&
		item.CurrentState != models.StateDownloading &&
		item.CurrentState != models.StatePendingSymlink {
		c.logger.Info().
			Uint("media_id", item.ID).
			Str("title", item.Title).
			Str("from", string(item.CurrentState)).
			Str("to", string(expected)).
			Msg("Representation changed on disk")
		w.action = models.ActionStateCorrected
		w.details = fmt.Sprintf("Found %s on disk", expected)
		item.CurrentState = expected
		item.StateChangedAt = &now
		result.Corrected++
		changed = true
	}

	if !item.IsLinked() {
		if entry := index.match(utils.RelativeLibraryPath(file.Path, root), item.Type); entry != nil {
			entry.linkTo(item)
			if item.Type.IsEpisodic() && item.SeasonNumber == nil {
				item.SeasonNumber, item.EpisodeNumber = utils.ParseEpisode(file.Path)
			}
			c.logger.Info().Uint("media_id", item.ID).Str("title", item.Title).Str("type", string(item.Type)).Msg("Linked existing item to catalog")
			result.Linked++
			changed = true
		}
	}

	if item.FileSize == nil || *item.FileSize != file.Size {
		size := file.Size
		item.FileSize = &size
		changed = true
	}
	return w, changed
}

// persist writes all changes in one transaction. Each item runs in its own
// savepoint so a single bad row is skipped instead of failing the pass.
func (c *LibraryController) persist(ctx context.Context, writes []pendingWrite, now time.Time, result *ScanResult) ([]pendingWrite, error) {
	if len(writes) == 0 {
		return nil, nil
	}

	var committed []pendingWrite
	err := c.db.Batch(ctx, func(tx *models.Tx) error {
		committed = committed[:0]
		for _, w := range writes {
			err := tx.Nested(func(tx *models.Tx) error {
				return c.write(tx, w, now)
			})
			if err != nil {
				c.logger.Error().Err(err).Str("path", w.item.FilePath).Msg("Failed to persist media item, skipping")
				result.Failed++
				continue
			}
			if w.create {
				result.Discovered++
			}
			committed = append(committed, w)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist library changes: %w", err)
	}
	return committed, nil
}

func (c *LibraryController) write(tx *models.Tx, w pendingWrite, now time.Time) error {
	if w.create {
		if err := tx.CreateMediaItem(w.item); err != nil {
			return err
		}
		c.logger.Info().
			Uint("media_id", w.item.ID).
			Str("title", w.item.Title).
			Str("type", string(w.item.Type)).
			Str("state", string(w.item.CurrentState)).
			Msg("Added new media item")
		details := w.details
		return tx.AppendActivity(&models.ActivityLog{
			MediaItemID: w.item.ID,
			Action:      w.action,
			ToState:     string(w.item.CurrentState),
			Details:     &details,
			Timestamp:   now,
		})
	}

	switch w.action {
	case "":
		return tx.SaveMediaItem(w.item)
	case models.ActionDownloadInterrupted:
		return tx.ChangeState(w.item, models.StatePendingSymlink, w.action, w.details, now)
	default:
		// state and stateChangedAt were already moved by reconcile
		if err := tx.SaveMediaItem(w.item); err != nil {
			return err
		}
		details := w.details
		return tx.AppendActivity(&models.ActivityLog{
			MediaItemID: w.item.ID,
			Action:      w.action,
			FromState:   string(w.from),
			ToState:     string(w.item.CurrentState),
			Details:     &details,
			Timestamp:   now,
		})
	}
}

func (c *LibraryController) refreshGauge(ctx context.Context) {
	counts, err := c.db.CountByState(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to refresh item gauge")
		return
	}
	for state, count := range counts {
		metrics.MediaItems.WithLabelValues(string(state)).Set(float64(count.Count))
	}
}
