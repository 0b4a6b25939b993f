package controllers

import (
	"context"

	"github.com/amaumene/storarr/internal/models"
	"github.com/rs/zerolog"
)

// catalog is the per-kind view of the upstream service that owns an item.
// The engine and the detector dispatch through it and never branch on the media type.
type catalog interface {
	name() string
	configured() bool
	// linkedID returns the item's id in this catalog
	linkedID(item *models.MediaItem) (int, bool)
	// entries lists every catalog entry with a known on-disk path
	entries(ctx context.Context) ([]catalogEntry, error)
	// activeIDs returns the catalog ids that currently have a queued download
	activeIDs(ctx context.Context) (map[int]struct{}, error)
	search(ctx context.Context, item *models.MediaItem, id int) error
	// deleteFile removes the item's file record and returns its id, or 0 when none was found
	deleteFile(ctx context.Context, item *models.MediaItem, id int) (int, error)
	setFileID(item *models.MediaItem, fileID int)
}

type catalogs struct {
	series catalog
	movies catalog
}

func newCatalogs(series SeriesService, movies MovieService, logger zerolog.Logger) catalogs {
	return catalogs{
		series: &seriesCatalog{svc: series, logger: logger},
		movies: &movieCatalog{svc: movies},
	}
}

func (c catalogs) forType(t models.MediaType) catalog {
	if t.IsEpisodic() {
		return c.series
	}
	return c.movies
}

func (c catalogs) all() []catalog {
	return []catalog{c.series, c.movies}
}

type seriesCatalog struct {
	svc    SeriesService
	logger zerolog.Logger
}

func (c *seriesCatalog) name() string { return "sonarr" }

func (c *seriesCatalog) configured() bool { return c.svc != nil && c.svc.Configured() }

func (c *seriesCatalog) linkedID(item *models.MediaItem) (int, bool) {
	if item.SonarrID == nil {
		return 0, false
	}
	return *item.SonarrID, true
}

func (c *seriesCatalog) entries(ctx context.Context) ([]catalogEntry, error) {
	series, err := c.svc.ListSeries(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]catalogEntry, 0, len(series))
	for _, s := range series {
		if s.Path == "" {
			continue
		}
		entries = append(entries, catalogEntry{
			kind:   models.MediaTypeSeries,
			id:     s.ID,
			title:  s.Title,
			tvdbID: s.TvdbID,
			tmdbID: s.TmdbID,
			path:   s.Path,
		})
	}
	return entries, nil
}

func (c *seriesCatalog) activeIDs(ctx context.Context) (map[int]struct{}, error) {
	queue, err := c.svc.Queue(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[int]struct{}, len(queue))
	for _, q := range queue {
		ids[q.SeriesID] = struct{}{}
	}
	return ids, nil
}

// search asks for the single episode when its position is known, else the whole series
func (c *seriesCatalog) search(ctx context.Context, item *models.MediaItem, id int) error {
	var episodeIDs []int
	if item.SeasonNumber != nil && item.EpisodeNumber != nil {
		episodeID, err := c.svc.FindEpisodeID(ctx, id, *item.SeasonNumber, *item.EpisodeNumber)
		if err != nil {
			return err
		}
		if episodeID > 0 {
			episodeIDs = []int{episodeID}
		} else {
			c.logger.Debug().Uint("media_id", item.ID).Msg("Episode not found in series, searching whole series")
		}
	}
	return c.svc.TriggerSearch(ctx, id, episodeIDs)
}

func (c *seriesCatalog) deleteFile(ctx context.Context, item *models.MediaItem, id int) (int, error) {
	file, err := c.svc.FindEpisodeFileByPath(ctx, id, item.FilePath)
	if err != nil {
		return 0, err
	}
	fileID := 0
	if file != nil {
		fileID = file.ID
	} else if item.EpisodeFileID != nil {
		fileID = *item.EpisodeFileID
	}
	if fileID == 0 {
		return 0, nil
	}
	if err := c.svc.DeleteEpisodeFile(ctx, fileID); err != nil {
		return 0, err
	}
	return fileID, nil
}

func (c *seriesCatalog) setFileID(item *models.MediaItem, fileID int) {
	item.EpisodeFileID = &fileID
}

type movieCatalog struct {
	svc MovieService
}

func (c *movieCatalog) name() string { return "radarr" }

func (c *movieCatalog) configured() bool { return c.svc != nil && c.svc.Configured() }

func (c *movieCatalog) linkedID(item *models.MediaItem) (int, bool) {
	if item.RadarrID == nil {
		return 0, false
	}
	return *item.RadarrID, true
}

func (c *movieCatalog) entries(ctx context.Context) ([]catalogEntry, error) {
	movies, err := c.svc.ListMovies(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]catalogEntry, 0, len(movies))
	for _, m := range movies {
		if m.Path == "" {
			continue
		}
		entries = append(entries, catalogEntry{
			kind:   models.MediaTypeMovie,
			id:     m.ID,
			title:  m.Title,
			tmdbID: m.TmdbID,
			path:   m.Path,
		})
	}
	return entries, nil
}

func (c *movieCatalog) activeIDs(ctx context.Context) (map[int]struct{}, error) {
	queue, err := c.svc.Queue(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[int]struct{}, len(queue))
	for _, q := range queue {
		ids[q.MovieID] = struct{}{}
	}
	return ids, nil
}

func (c *movieCatalog) search(ctx context.Context, _ *models.MediaItem, id int) error {
	return c.svc.TriggerSearch(ctx, id)
}

func (c *movieCatalog) deleteFile(ctx context.Context, item *models.MediaItem, id int) (int, error) {
	file, err := c.svc.FindMovieFileByPath(ctx, id, item.FilePath)
	if err != nil {
		return 0, err
	}
	fileID := 0
	if file != nil {
		fileID = file.ID
	} else if item.MovieFileID != nil {
		fileID = *item.MovieFileID
	}
	if fileID == 0 {
		return 0, nil
	}
	if err := c.svc.DeleteMovieFile(ctx, fileID); err != nil {
		return 0, err
	}
	return fileID, nil
}

func (c *movieCatalog) setFileID(item *models.MediaItem, fileID int) {
	item.MovieFileID = &fileID
}
