package controllers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amaumene/storarr/internal/config"
	"github.com/amaumene/storarr/internal/models"
	"github.com/amaumene/storarr/internal/services/jellyfin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectWatchActivityIsMonotonic(t *testing.T) {
	e := newEnv(t, models.LibraryModeNewContentOnly)
	newer := e.create(t, &models.MediaItem{Title: "Newer", Type: models.MediaTypeMovie, CurrentState: models.StateMkv, FilePath: e.path("Movies/N/N.mkv"), LastWatchedAt: timePtr(testNow.Add(-10 * day))})
	older := e.create(t, &models.MediaItem{Title: "Older", Type: models.MediaTypeMovie, CurrentState: models.StateMkv, FilePath: e.path("Movies/O/O.mkv"), LastWatchedAt: timePtr(testNow.Add(-day))})
	never := e.create(t, &models.MediaItem{Title: "Never", Type: models.MediaTypeMovie, CurrentState: models.StateMkv, FilePath: e.path("Movies/X/X.mkv")})

	played := testNow.Add(-2 * day).In(time.FixedZone("CET", 3600))
	stale := testNow.Add(-5 * day)
	server := &fakeServer{items: map[string]*jellyfin.Item{
		newer.FilePath: {ID: "n1", UserData: &jellyfin.UserData{LastPlayedDate: &played}},
		older.FilePath: {ID: "o1", LastPlayedDate: &stale},
		never.FilePath: {ID: "x1"},
	}}

	result, err := NewWatchController(e.db, server, zerolog.Nop()).CollectWatchActivity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Checked)
	assert.Equal(t, 3, result.Linked)
	assert.Equal(t, 1, result.Updated)

	got := e.reload(t, newer.ID)
	require.NotNil(t, got.LastWatchedAt)
	assert.True(t, got.LastWatchedAt.Equal(played))
	require.NotNil(t, got.JellyfinID)
	assert.Equal(t, "n1", *got.JellyfinID)

	got = e.reload(t, older.ID)
	assert.True(t, got.LastWatchedAt.Equal(testNow.Add(-day)), "an older upstream value never moves lastWatchedAt back")

	assert.Nil(t, e.reload(t, never.ID).LastWatchedAt)

	for _, id := range []uint{newer.ID, older.ID, never.ID} {
		assert.Empty(t, e.activity(t, id), "watch updates are not state changes")
	}
}

func TestCollectWatchActivityEndsCycleWhenCatalogFails(t *testing.T) {
	e := newEnv(t, models.LibraryModeNewContentOnly)
	watched := testNow.Add(-day)
	a := e.create(t, &models.MediaItem{Title: "A", Type: models.MediaTypeMovie, CurrentState: models.StateMkv, FilePath: e.path("Movies/A/A.mkv"), LastWatchedAt: &watched})
	e.create(t, &models.MediaItem{Title: "B", Type: models.MediaTypeMovie, CurrentState: models.StateMkv, FilePath: e.path("Movies/B/B.mkv")})

	server := &fakeServer{err: errUpstream}
	result, err := NewWatchController(e.db, server, zerolog.Nop()).CollectWatchActivity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, server.calls, "one catalog load per cycle")
	assert.Equal(t, 2, result.Failed)
	assert.Zero(t, result.Updated)
	assert.True(t, e.reload(t, a.ID).LastWatchedAt.Equal(watched))
}

func TestCollectWatchActivityBoundsUpstreamCallsWhenServerIsDown(t *testing.T) {
	e := newEnv(t, models.LibraryModeNewContentOnly)
	for i := 0; i < 20; i++ {
		e.create(t, &models.MediaItem{Title: "M", Type: models.MediaTypeMovie, CurrentState: models.StateMkv, FilePath: e.path(fmt.Sprintf("Movies/M%d/M%d.mkv", i, i))})
	}

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	const maxRetries = 1
	server := jellyfin.NewClient(&config.Config{
		JellyfinURL:    srv.URL,
		HTTPTimeout:    time.Second,
		HTTPMaxRetries: maxRetries,
	}, zerolog.Nop())

	result, err := NewWatchController(e.db, server, zerolog.Nop()).CollectWatchActivity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, result.Failed)
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(1+maxRetries))
}

func TestAdvanceWatched(t *testing.T) {
	item := &models.MediaItem{}
	assert.True(t, advanceWatched(item, testNow))
	assert.False(t, advanceWatched(item, testNow), "equal is not newer")
	assert.False(t, advanceWatched(item, testNow.Add(-time.Hour)))
	assert.True(t, advanceWatched(item, testNow.Add(time.Hour)))
	assert.True(t, item.LastWatchedAt.Equal(testNow.Add(time.Hour)))

	assert.True(t, advanceWatched(item, testNow.Add(3*time.Hour).In(time.FixedZone("CET", 3600))))
	assert.Equal(t, time.UTC, item.LastWatchedAt.Location())
}
