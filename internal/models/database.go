package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// Database wraps the gorm connection
type Database struct {
	db *gorm.DB
}

// NewDatabase opens (or creates) the sqlite database at path and migrates the schema.
// ":memory:" opens a private in-memory database.
func NewDatabase(path string, logger zerolog.Logger) (*Database, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(gormWriter{logger: logger}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// sqlite has a single writer; one connection also keeps :memory: databases coherent
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&MediaItem{}, &ActivityLog{}, &Settings{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Settings operations

// EnsureSettings creates the settings singleton from defaults if it does not exist yet
func (d *Database) EnsureSettings(ctx context.Context, defaults Settings) (*Settings, error) {
	settings, err := d.GetSettings(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	defaults.ID = SettingsID
	if err := d.db.WithContext(ctx).Create(&defaults).Error; err != nil {
		return nil, fmt.Errorf("failed to create settings: %w", err)
	}
	return &defaults, nil
}

// GetSettings loads the settings singleton
func (d *Database) GetSettings(ctx context.Context) (*Settings, error) {
	var settings Settings
	if err := d.db.WithContext(ctx).First(&settings, SettingsID).Error; err != nil {
		return nil, wrapNotFound(err, "settings")
	}
	return &settings, nil
}

// SaveSettings persists the settings singleton
func (d *Database) SaveSettings(ctx context.Context, settings *Settings) error {
	settings.ID = SettingsID
	return d.db.WithContext(ctx).Save(settings).Error
}

// Media item operations

// ListMediaItems retrieves every tracked item
func (d *Database) ListMediaItems(ctx context.Context) ([]*MediaItem, error) {
	var items []*MediaItem
	err := d.db.WithContext(ctx).Order("id").Find(&items).Error
	return items, err
}

// GetMediaItem retrieves a media item by ID
func (d *Database) GetMediaItem(ctx context.Context, id uint) (*MediaItem, error) {
	var item MediaItem
	if err := d.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, wrapNotFound(err, fmt.Sprintf("media item %d", id))
	}
	return &item, nil
}

// GetMediaItemByPath retrieves a media item by file path, ignoring case
func (d *Database) GetMediaItemByPath(ctx context.Context, path string) (*MediaItem, error) {
	var item MediaItem
	if err := d.db.WithContext(ctx).Where("file_path = ?", path).First(&item).Error; err != nil {
		return nil, wrapNotFound(err, "media item "+path)
	}
	return &item, nil
}

// ListMediaItemsByState retrieves all items in the given state
func (d *Database) ListMediaItemsByState(ctx context.Context, state FileState) ([]*MediaItem, error) {
	var items []*MediaItem
	err := d.db.WithContext(ctx).Where("current_state = ?", state).Order("id").Find(&items).Error
	return items, err
}

// ListTransitionCandidates retrieves non-excluded items in state, least recently
// active first. A limit of zero returns every candidate.
func (d *Database) ListTransitionCandidates(ctx context.Context, state FileState, limit int) ([]*MediaItem, error) {
	order := "COALESCE(last_watched_at, created_at) ASC, id ASC"
	if state == StateMkv {
		order = "COALESCE(last_watched_at, state_changed_at, created_at) ASC, id ASC"
	}

	q := d.db.WithContext(ctx).
		Where("current_state = ? AND is_excluded = ?", state, false).
		Order(order)
	if limit > 0 {
		q = q.Limit(limit)
	}

	var items []*MediaItem
	err := q.Find(&items).Error
	return items, err
}

// ListPendingByTmdbID retrieves items waiting for a placeholder that share a
// TMDB id. With types set, only items of those types match.
func (d *Database) ListPendingByTmdbID(ctx context.Context, tmdbID int, types ...MediaType) ([]*MediaItem, error) {
	q := d.db.WithContext(ctx).
		Where("tmdb_id = ? AND current_state = ?", tmdbID, StatePendingSymlink)
	if len(types) > 0 {
		q = q.Where("type IN ?", types)
	}
	var items []*MediaItem
	err := q.Order("id").Find(&items).Error
	return items, err
}

// StateCount is the number of items and their combined size in one state
type StateCount struct {
	CurrentState FileState
	Count        int64
	TotalSize    int64
}

// CountByState groups tracked items by state
func (d *Database) CountByState(ctx context.Context) (map[FileState]StateCount, error) {
	var rows []StateCount
	err := d.db.WithContext(ctx).
		Model(&MediaItem{}).
		Select("current_state, COUNT(*) AS count, COALESCE(SUM(file_size), 0) AS total_size").
		Group("current_state").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count media items: %w", err)
	}

	counts := make(map[FileState]StateCount, len(AllStates))
	for _, state := range AllStates {
		counts[state] = StateCount{CurrentState: state}
	}
	for _, row := range rows {
		counts[row.CurrentState] = row
	}
	return counts, nil
}

// SetExcluded toggles the exclusion flag without touching any other column
func (d *Database) SetExcluded(ctx context.Context, id uint, excluded bool) (*MediaItem, error) {
	res := d.db.WithContext(ctx).Model(&MediaItem{}).Where("id = ?", id).Update("is_excluded", excluded)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update exclusion: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("media item %d: %w", id, ErrNotFound)
	}
	return d.GetMediaItem(ctx, id)
}

// Activity operations

// ListActivity retrieves the newest audit entries, optionally for one item
func (d *Database) ListActivity(ctx context.Context, mediaItemID uint, limit int) ([]ActivityLog, error) {
	q := d.db.WithContext(ctx).Order("timestamp DESC, id DESC")
	if mediaItemID != 0 {
		q = q.Where("media_item_id = ?", mediaItemID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var logs []ActivityLog
	err := q.Find(&logs).Error
	return logs, err
}

// Batch runs fn inside a single transaction
func (d *Database) Batch(ctx context.Context, fn func(tx *Tx) error) error {
	return d.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&Tx{db: db})
	})
}

// Tx is a write handle valid for the duration of one Batch
type Tx struct {
	db *gorm.DB
}

// Nested runs fn in a savepoint. A failure rolls back only fn's writes and
// leaves the enclosing batch usable.
func (tx *Tx) Nested(fn func(tx *Tx) error) error {
	return tx.db.Transaction(func(db *gorm.DB) error {
		return fn(&Tx{db: db})
	})
}

// CreateMediaItem inserts a new item
func (tx *Tx) CreateMediaItem(item *MediaItem) error {
	if err := tx.db.Omit(clause.Associations).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create media item %s: %w", item.FilePath, err)
	}
	return nil
}

// SaveMediaItem writes every column of an existing item
func (tx *Tx) SaveMediaItem(item *MediaItem) error {
	if err := tx.db.Omit(clause.Associations).Save(item).Error; err != nil {
		return fmt.Errorf("failed to save media item %d: %w", item.ID, err)
	}
	return nil
}

// AppendActivity inserts one audit entry
func (tx *Tx) AppendActivity(entry *ActivityLog) error {
	if err := tx.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append activity for media item %d: %w", entry.MediaItemID, err)
	}
	return nil
}

// ChangeState moves item to a new state, stamps stateChangedAt, saves the item
// and appends the matching audit entry.
func (tx *Tx) ChangeState(item *MediaItem, to FileState, action, details string, at time.Time) error {
	from := item.CurrentState
	item.CurrentState = to
	item.StateChangedAt = &at

	if err := tx.SaveMediaItem(item); err != nil {
		return err
	}

	entry := &ActivityLog{
		MediaItemID: item.ID,
		Action:      action,
		FromState:   string(from),
		ToState:     string(to),
		Timestamp:   at,
	}
	if details != "" {
		entry.Details = &details
	}
	return tx.AppendActivity(entry)
}

func wrapNotFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

// gormWriter routes gorm's warnings through zerolog
type gormWriter struct {
	logger zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.logger.Warn().Str("component", "gorm").Msgf(format, args...)
}
