package controllers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amaumene/storarr/internal/models"
	"github.com/amaumene/storarr/internal/services/jellyfin"
	"github.com/amaumene/storarr/internal/services/jellyseerr"
	"github.com/amaumene/storarr/internal/services/radarr"
	"github.com/amaumene/storarr/internal/services/sonarr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unavailable")

// testNow is the fixed clock used by controller tests
var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

type env struct {
	db   *models.Database
	root string
}

func newEnv(t *testing.T, mode models.LibraryMode) *env {
	t.Helper()
	db, err := models.NewDatabase(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	root := t.TempDir()
	_, err = db.EnsureSettings(context.Background(), models.Settings{
		LibraryMode:       mode,
		SymlinkToMkvValue: 7, SymlinkToMkvUnit: models.UnitDays,
		MkvToSymlinkValue: 30, MkvToSymlinkUnit: models.UnitDays,
		MediaLibraryPath: root,
	})
	require.NoError(t, err)
	return &env{db: db, root: root}
}

func (e *env) path(rel string) string {
	return filepath.Join(e.root, filepath.FromSlash(rel))
}

// writeFile creates a regular file of size bytes at rel
func (e *env) writeFile(t *testing.T, rel string, size int) string {
	t.Helper()
	p := e.path(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0644))
	return p
}

// writeLink creates a symlink at rel pointing outside the library
func (e *env) writeLink(t *testing.T, rel string) string {
	t.Helper()
	target := filepath.Join(t.TempDir(), "remote.mkv")
	require.NoError(t, os.WriteFile(target, make([]byte, 64), 0644))
	p := e.path(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.Symlink(target, p))
	return p
}

func (e *env) create(t *testing.T, item *models.MediaItem) *models.MediaItem {
	t.Helper()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = testNow
	}
	require.NoError(t, e.db.Batch(context.Background(), func(tx *models.Tx) error {
		return tx.CreateMediaItem(item)
	}))
	return item
}

func (e *env) reload(t *testing.T, id uint) *models.MediaItem {
	t.Helper()
	item, err := e.db.GetMediaItem(context.Background(), id)
	require.NoError(t, err)
	return item
}

func (e *env) activity(t *testing.T, id uint) []models.ActivityLog {
	t.Helper()
	logs, err := e.db.ListActivity(context.Background(), id, 0)
	require.NoError(t, err)
	return logs
}

func (e *env) setMode(t *testing.T, mode models.LibraryMode) {
	t.Helper()
	settings, err := e.db.GetSettings(context.Background())
	require.NoError(t, err)
	settings.LibraryMode = mode
	require.NoError(t, e.db.SaveSettings(context.Background(), settings))
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func exists(t *testing.T, p string) bool {
	t.Helper()
	_, err := os.Lstat(p)
	if os.IsNotExist(err) {
		return false
	}
	require.NoError(t, err)
	return true
}

type fakeSeries struct {
	mu         sync.Mutex
	series     []sonarr.Series
	listErr    error
	files      map[int]*sonarr.EpisodeFile // keyed by series id
	episodeIDs map[[3]int]int              // series, season, episode
	queue      []sonarr.QueueItem
	queueErr   error
	searchErr  error
	searches   [][]int
	deleted    []int
}

func (f *fakeSeries) Configured() bool { return true }

func (f *fakeSeries) ListSeries(context.Context) ([]sonarr.Series, error) {
	return f.series, f.listErr
}

func (f *fakeSeries) FindEpisodeFileByPath(_ context.Context, seriesID int, _ string) (*sonarr.EpisodeFile, error) {
	return f.files[seriesID], nil
}

func (f *fakeSeries) FindEpisodeID(_ context.Context, seriesID, season, episode int) (int, error) {
	return f.episodeIDs[[3]int{seriesID, season, episode}], nil
}

func (f *fakeSeries) TriggerSearch(_ context.Context, seriesID int, episodeIDs []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return f.searchErr
	}
	f.searches = append(f.searches, append([]int{seriesID}, episodeIDs...))
	return nil
}

func (f *fakeSeries) DeleteEpisodeFile(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeSeries) Queue(context.Context) ([]sonarr.QueueItem, error) {
	return f.queue, f.queueErr
}

type fakeMovies struct {
	mu        sync.Mutex
	movies    []radarr.Movie
	files     map[int]*radarr.MovieFile
	queue     []radarr.QueueItem
	queueErr  error
	searchErr error
	deleteErr error
	searches  []int
	deleted   []int
}

func (f *fakeMovies) Configured() bool { return true }

func (f *fakeMovies) ListMovies(context.Context) ([]radarr.Movie, error) {
	return f.movies, nil
}

func (f *fakeMovies) FindMovieFileByPath(_ context.Context, movieID int, _ string) (*radarr.MovieFile, error) {
	return f.files[movieID], nil
}

func (f *fakeMovies) TriggerSearch(_ context.Context, movieID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return f.searchErr
	}
	f.searches = append(f.searches, movieID)
	return nil
}

func (f *fakeMovies) DeleteMovieFile(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeMovies) Queue(context.Context) ([]radarr.QueueItem, error) {
	return f.queue, f.queueErr
}

type requestCall struct {
	tmdbID    int
	mediaType models.MediaType
	tvdbID    *int
}

type fakeRequests struct {
	err   error
	calls []requestCall
	next  int
}

func (f *fakeRequests) Configured() bool { return true }

func (f *fakeRequests) CreateRequest(_ context.Context, tmdbID int, mediaType models.MediaType, tvdbID *int) (*jellyseerr.Request, error) {
	f.calls = append(f.calls, requestCall{tmdbID: tmdbID, mediaType: mediaType, tvdbID: tvdbID})
	if f.err != nil {
		return nil, f.err
	}
	f.next++
	return &jellyseerr.Request{ID: 100 + f.next}, nil
}

type fakeServer struct {
	items map[string]*jellyfin.Item
	err   error
	calls int
}

func (f *fakeServer) Configured() bool { return true }

func (f *fakeServer) Snapshot(context.Context) (*jellyfin.Catalog, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	items := make([]jellyfin.Item, 0, len(f.items))
	for path, item := range f.items {
		it := *item
		it.Path = path
		items = append(items, it)
	}
	return jellyfin.NewCatalog(items), nil
}

type notification struct {
	id    uint
	state models.FileState
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *recordingNotifier) MediaUpdated(id uint, state models.FileState) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{id: id, state: state})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }
