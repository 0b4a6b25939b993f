package controllers

import (
	"context"
	"testing"

	"github.com/amaumene/storarr/internal/models"
	"github.com/amaumene/storarr/internal/services/radarr"
	"github.com/amaumene/storarr/internal/services/sonarr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLibrary(e *env, series *fakeSeries, movies *fakeMovies, n *recordingNotifier) *LibraryController {
	c := NewLibraryController(e.db, series, movies, n, zerolog.Nop())
	c.now = fixedNow
	return c
}

func TestScanDiscoversNewEpisode(t *testing.T) {
	e := newEnv(t, models.LibraryModeNewContentOnly)
	path := e.writeFile(t, "TV/Show Name/Season 1/Show Name - S01E02.mkv", 2048)

	series := &fakeSeries{series: []sonarr.Series{{ID: 5, Title: "Show Name", TvdbID: 77, TmdbID: 88, Path: e.path("TV/Show Name")}}}
	n := &recordingNotifier{}
	c := newLibrary(e, series, &fakeMovies{}, n)

	result, err := c.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Files)
	assert.Equal(t, 1, result.Discovered)

	item, err := e.db.GetMediaItemByPath(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, models.MediaTypeSeries, item.Type)
	assert.Equal(t, models.StateMkv, item.CurrentState)
	assert.Equal(t, "Show Name", item.Title)
	require.NotNil(t, item.SonarrID)
	assert.Equal(t, 5, *item.SonarrID)
	require.NotNil(t, item.TvdbID)
	assert.Equal(t, 77, *item.TvdbID)
	require.NotNil(t, item.TmdbID)
	assert.Equal(t, 88, *item.TmdbID)
	require.NotNil(t, item.SeasonNumber)
	require.NotNil(t, item.EpisodeNumber)
	assert.Equal(t, 1, *item.SeasonNumber)
	assert.Equal(t, 2, *item.EpisodeNumber)
	require.NotNil(t, item.FileSize)
	assert.Equal(t, int64(2048), *item.FileSize)

	logs := e.activity(t, item.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionDiscovered, logs[0].Action)
	assert.Equal(t, 1, n.count())
}

func TestScanIsIdempotent(t *testing.T) {
	e := newEnv(t, models.LibraryModeNewContentOnly)
	e.writeFile(t, "Movies/Film (2020)/Film.mkv", 100)
	e.writeLink(t, "Movies/Other (2021)/Other.mkv")

	n := &recordingNotifier{}
	c := newLibrary(e, &fakeSeries{}, &fakeMovies{}, n)

	_, err := c.Scan(context.Background())
	require.NoError(t, err)
	before, err := e.db.ListActivity(context.Background(), 0, 0)
	require.NoError(t, err)
	notified := n.count()

	result, err := c.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Discovered)
	assert.Equal(t, 0, result.Corrected)

	after, err := e.db.ListActivity(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
	assert.Equal(t, notified, n.count())

	items, err := e.db.ListMediaItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestScanCorrectsRepresentation(t *testing.T) {
	e := newEnv(t, models.LibraryModeNewContentOnly)
	path := e.writeLink(t, "Movies/Film/Film.mkv")
	item := e.create(t, &models.MediaItem{Title: "Film", Type: models.MediaTypeMovie, CurrentState: models.StateMkv, FilePath: path})

	result, err := newLibrary(e, &fakeSeries{}, &fakeMovies{}, &recordingNotifier{}).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Corrected)

	got := e.reload(t, item.ID)
	assert.Equal(t, models.StateSymlink, got.CurrentState)
	logs := e.activity(t, item.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActionStateCorrected, logs[0].Action)
	assert.Equal(t, string(models.StateMkv), logs[0].FromState)
}

func TestScanLeavesInFlightTransitionsAlone(t *testing.T) {
	e := newEnv(t, models.LibraryModeNewContentOnly)
	path := e.writeLink(t, "Movies/Film/Film.mkv")
	item := e.create(t, &models.MediaItem{Title: "Film", Type: models.MediaTypeMovie, CurrentState: models.StatePendingSymlink, FilePath: path})

	_, err := newLibrary(e, &fakeSeries{}, &fakeMovies{}, &recordingNotifier{}).Scan(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.StatePendingSymlink, e.reload(t, item.ID).CurrentState)
	assert.Empty(t, e.activity(t, item.ID))
}

func TestScanMarksInterruptedDownload(t *testing.T) {
	e := newEnv(t, models.LibraryModeNewContentOnly)
	e.writeFile(t, "Movies/Keep/Keep.mkv", 10)
	gone := e.create(t, &models.MediaItem{Title: "Gone", Type: models.MediaTypeMovie, CurrentState: models.StateDownloading, FilePath: e.path("Movies/Gone/Gone.mkv")})
	stale := e.create(t, &models.MediaItem{Title: "Stale", Type: models.MediaTypeMovie, CurrentState: models.StateMkv, FilePath: e.path("Movies/Stale/Stale.mkv")})

	result, err := newLibrary(e, &fakeSeries{}, &fakeMovies{}, &recordingNotifier{}).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Missing)
	assert.Equal(t, 1, result.Interrupted)

	assert.Equal(t, models.StatePendingSymlink, e.reload(t, gone.ID).CurrentState)
	assert.Equal(t, models.StateMkv, e.reload(t, stale.ID).CurrentState, "missing non-downloading items are only logged")
}

func TestScanAdoptsOtherCatalogKind(t *testing.T) {
	e := newEnv(t, models.LibraryModeNewContentOnly)
	path := e.writeFile(t, "Movies/Mini Series/Mini Series - S01E01.mkv", 10)

	series := &fakeSeries{series: []sonarr.Series{{ID: 9, Title: "Mini Series", Path: e.path("Movies/Mini Series")}}}
	_, err := newLibrary(e, series, &fakeMovies{}, &recordingNotifier{}).Scan(context.Background())
	require.NoError(t, err)

	item, err := e.db.GetMediaItemByPath(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, models.MediaTypeSeries, item.Type)
	require.NotNil(t, item.SonarrID)
	assert.Equal(t, 9, *item.SonarrID)
	assert.Nil(t, item.RadarrID)
}

func TestScanFuzzyLinkage(t *testing.T) {
	e := newEnv(t, models.LibraryModeNewContentOnly)
	path := e.writeFile(t, "Movies/The Matrix (1999)/The Matrix.mkv", 10)

	// catalog rooted on another mount with a one-letter typo in the folder
	movies := &fakeMovies{movies: []radarr.Movie{{ID: 42, Title: "The Matrix", TmdbID: 603, Path: "/remote/Movies/The Matrx (1999)"}}}
	_, err := newLibrary(e, &fakeSeries{}, movies, &recordingNotifier{}).Scan(context.Background())
	require.NoError(t, err)

	item, err := e.db.GetMediaItemByPath(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, item.RadarrID)
	assert.Equal(t, 42, *item.RadarrID)
	require.NotNil(t, item.TmdbID)
	assert.Equal(t, 603, *item.TmdbID)
}

func TestScanLinksExistingItemsLater(t *testing.T) {
	e := newEnv(t, models.LibraryModeNewContentOnly)
	path := e.writeFile(t, "Movies/Film (2020)/Film.mkv", 10)

	movies := &fakeMovies{}
	c := newLibrary(e, &fakeSeries{}, movies, &recordingNotifier{})
	_, err := c.Scan(context.Background())
	require.NoError(t, err)

	movies.movies = []radarr.Movie{{ID: 3, Title: "Film", TmdbID: 30, Path: e.path("Movies/Film (2020)")}}
	result, err := c.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Linked)

	item, err := e.db.GetMediaItemByPath(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, item.RadarrID)
	assert.Equal(t, 3, *item.RadarrID)
	assert.Len(t, e.activity(t, item.ID), 1, "linkage alone is not a state change")
}

func TestScanSurvivesCatalogFailure(t *testing.T) {
	e := newEnv(t, models.LibraryModeNewContentOnly)
	e.writeFile(t, "TV/Show/S01E01.mkv", 10)

	result, err := newLibrary(e, &fakeSeries{listErr: errUpstream}, &fakeMovies{}, &recordingNotifier{}).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Discovered)
}

func TestCatalogIndexPrefixNeedsBoundary(t *testing.T) {
	idx := newCatalogIndex("/media", []catalogEntry{
		{kind: models.MediaTypeSeries, id: 1, path: "/media/tv/show"},
		{kind: models.MediaTypeSeries, id: 2, path: "/media/tv/show 2"},
	})

	got := idx.match("tv/show 2/s01e01.mkv", models.MediaTypeSeries)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.id)

	got = idx.match("tv/show/s01e01.mkv", models.MediaTypeSeries)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.id)
}

func TestCatalogIndexFuzzyRequiresUniqueMatch(t *testing.T) {
	idx := newCatalogIndex("/media", []catalogEntry{
		{kind: models.MediaTypeMovie, id: 1, path: "/media/movies/foobar1"},
		{kind: models.MediaTypeMovie, id: 2, path: "/media/movies/foobar2"},
	})
	assert.Nil(t, idx.match("other/foobar3/file.mkv", models.MediaTypeMovie))

	short := newCatalogIndex("/media", []catalogEntry{{kind: models.MediaTypeMovie, id: 1, path: "/media/movies/abc"}})
	assert.Nil(t, short.match("other/abd/file.mkv", models.MediaTypeMovie))
}
