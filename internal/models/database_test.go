package models

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createItem(t *testing.T, db *Database, item *MediaItem) *MediaItem {
	t.Helper()
	require.NoError(t, db.Batch(context.Background(), func(tx *Tx) error {
		return tx.CreateMediaItem(item)
	}))
	return item
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestEnsureSettingsCreatesOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, err := db.EnsureSettings(ctx, Settings{
		LibraryMode:       LibraryModeTrackExisting,
		SymlinkToMkvValue: 7, SymlinkToMkvUnit: UnitDays,
		MkvToSymlinkValue: 30, MkvToSymlinkUnit: UnitDays,
		MediaLibraryPath: "/media",
	})
	require.NoError(t, err)
	assert.Equal(t, LibraryModeTrackExisting, first.LibraryMode)

	second, err := db.EnsureSettings(ctx, Settings{LibraryMode: LibraryModeFullAutomation})
	require.NoError(t, err)
	assert.Equal(t, LibraryModeTrackExisting, second.LibraryMode, "existing settings must not be overwritten")
	assert.Equal(t, "/media", second.MediaLibraryPath)
}

func TestFilePathIsUniqueIgnoringCase(t *testing.T) {
	db := newTestDB(t)
	createItem(t, db, &MediaItem{Title: "a", Type: MediaTypeMovie, CurrentState: StateMkv, FilePath: "/media/Movies/A.mkv"})

	err := db.Batch(context.Background(), func(tx *Tx) error {
		return tx.CreateMediaItem(&MediaItem{Title: "a", Type: MediaTypeMovie, CurrentState: StateMkv, FilePath: "/media/movies/a.mkv"})
	})
	assert.Error(t, err)

	item, err := db.GetMediaItemByPath(context.Background(), "/MEDIA/movies/a.MKV")
	require.NoError(t, err)
	assert.Equal(t, "/media/Movies/A.mkv", item.FilePath)
}

func TestGetMediaItemNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetMediaItem(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChangeStateWritesActivity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	item := createItem(t, db, &MediaItem{Title: "a", Type: MediaTypeMovie, CurrentState: StateSymlink, FilePath: "/m/a.mkv"})

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, db.Batch(ctx, func(tx *Tx) error {
		return tx.ChangeState(item, StateDownloading, ActionTransitionToMkv, "Deleted from disk", at)
	}))

	stored, err := db.GetMediaItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, StateDownloading, stored.CurrentState)
	require.NotNil(t, stored.StateChangedAt)
	assert.True(t, at.Equal(*stored.StateChangedAt))

	logs, err := db.ListActivity(ctx, item.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, ActionTransitionToMkv, logs[0].Action)
	assert.Equal(t, "Symlink", logs[0].FromState)
	assert.Equal(t, "Downloading", logs[0].ToState)
	require.NotNil(t, logs[0].Details)
	assert.Equal(t, "Deleted from disk", *logs[0].Details)
}

func TestBatchRollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.Batch(ctx, func(tx *Tx) error {
		if err := tx.CreateMediaItem(&MediaItem{Title: "a", Type: MediaTypeMovie, CurrentState: StateMkv, FilePath: "/m/a.mkv"}); err != nil {
			return err
		}
		return tx.CreateMediaItem(&MediaItem{Title: "b", Type: MediaTypeMovie, CurrentState: StateMkv, FilePath: "/m/A.mkv"})
	})
	require.Error(t, err)

	items, err := db.ListMediaItems(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListTransitionCandidatesOrdersByRecency(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	createItem(t, db, &MediaItem{Title: "recent", Type: MediaTypeMovie, CurrentState: StateSymlink, FilePath: "/m/recent.strm",
		CreatedAt: now.Add(-48 * time.Hour), LastWatchedAt: ptrTime(now.Add(-time.Hour))})
	createItem(t, db, &MediaItem{Title: "old", Type: MediaTypeMovie, CurrentState: StateSymlink, FilePath: "/m/old.strm",
		CreatedAt: now.Add(-10 * 24 * time.Hour)})
	createItem(t, db, &MediaItem{Title: "excluded", Type: MediaTypeMovie, CurrentState: StateSymlink, FilePath: "/m/excluded.strm",
		CreatedAt: now.Add(-100 * 24 * time.Hour), IsExcluded: true})
	createItem(t, db, &MediaItem{Title: "mkv", Type: MediaTypeMovie, CurrentState: StateMkv, FilePath: "/m/mkv.mkv",
		CreatedAt: now.Add(-100 * 24 * time.Hour)})

	items, err := db.ListTransitionCandidates(ctx, StateSymlink, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "old", items[0].Title)
	assert.Equal(t, "recent", items[1].Title)

	items, err = db.ListTransitionCandidates(ctx, StateSymlink, 1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "old", items[0].Title)
}

func TestCountByState(t *testing.T) {
	db := newTestDB(t)
	size := int64(100)
	createItem(t, db, &MediaItem{Title: "a", Type: MediaTypeMovie, CurrentState: StateMkv, FilePath: "/m/a.mkv", FileSize: &size})
	createItem(t, db, &MediaItem{Title: "b", Type: MediaTypeMovie, CurrentState: StateMkv, FilePath: "/m/b.mkv", FileSize: &size})
	createItem(t, db, &MediaItem{Title: "c", Type: MediaTypeMovie, CurrentState: StateSymlink, FilePath: "/m/c.strm"})

	counts, err := db.CountByState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[StateMkv].Count)
	assert.Equal(t, int64(200), counts[StateMkv].TotalSize)
	assert.Equal(t, int64(1), counts[StateSymlink].Count)
	assert.Equal(t, int64(0), counts[StateDownloading].Count)
}

func TestSetExcluded(t *testing.T) {
	db := newTestDB(t)
	item := createItem(t, db, &MediaItem{Title: "a", Type: MediaTypeMovie, CurrentState: StateMkv, FilePath: "/m/a.mkv"})

	updated, err := db.SetExcluded(context.Background(), item.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsExcluded)

	_, err = db.SetExcluded(context.Background(), 999, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestThresholdDuration(t *testing.T) {
	tests := []struct {
		threshold Threshold
		want      time.Duration
	}{
		{Threshold{90, UnitMinutes}, 90 * time.Minute},
		{Threshold{2, UnitHours}, 2 * time.Hour},
		{Threshold{7, UnitDays}, 7 * 24 * time.Hour},
		{Threshold{2, UnitWeeks}, 14 * 24 * time.Hour},
		{Threshold{1, UnitMonths}, 30 * 24 * time.Hour},
		{Threshold{3, "Fortnights"}, 3 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(string(tt.threshold.Unit), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.threshold.Duration())
		})
	}
}

func TestMkvAnchorFallbacks(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	changed := created.Add(24 * time.Hour)
	watched := created.Add(48 * time.Hour)

	item := &MediaItem{CreatedAt: created}
	assert.Equal(t, created, item.MkvAnchor())
	item.StateChangedAt = &changed
	assert.Equal(t, changed, item.MkvAnchor())
	assert.Equal(t, created, item.SymlinkAnchor())
	item.LastWatchedAt = &watched
	assert.Equal(t, watched, item.MkvAnchor())
	assert.Equal(t, watched, item.SymlinkAnchor())
}
