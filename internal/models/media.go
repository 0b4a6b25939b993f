package models

import "time"

// MediaItem represents one tracked file in the library
type MediaItem struct {
	ID    uint      `gorm:"primaryKey" json:"id"`
	Title string    `gorm:"not null" json:"title"`
	Type  MediaType `gorm:"not null;index" json:"type"`

	CurrentState FileState `gorm:"not null;index" json:"currentState"`

	// FilePath is unique regardless of case
	FilePath string `gorm:"type:text collate nocase;not null;uniqueIndex" json:"filePath"`
	FileSize *int64 `json:"fileSize,omitempty"`

	// Upstream linkage, set opportunistically
	JellyfinID          *string `gorm:"index" json:"jellyfinId,omitempty"`
	SonarrID            *int    `gorm:"index" json:"sonarrId,omitempty"`
	TvdbID              *int    `json:"tvdbId,omitempty"`
	RadarrID            *int    `gorm:"index" json:"radarrId,omitempty"`
	TmdbID              *int    `gorm:"index" json:"tmdbId,omitempty"`
	EpisodeFileID       *int    `json:"episodeFileId,omitempty"`
	MovieFileID         *int    `json:"movieFileId,omitempty"`
	JellyseerrRequestID *int    `json:"jellyseerrRequestId,omitempty"`

	// Episodic position
	SeasonNumber  *int `json:"seasonNumber,omitempty"`
	EpisodeNumber *int `json:"episodeNumber,omitempty"`

	CreatedAt      time.Time  `json:"createdAt"`
	LastWatchedAt  *time.Time `json:"lastWatchedAt,omitempty"`
	StateChangedAt *time.Time `json:"stateChangedAt,omitempty"`

	IsExcluded bool `gorm:"not null;default:false;index" json:"isExcluded"`

	ActivityLogs []ActivityLog `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// IsLinked reports whether the item is linked to the catalog that owns its type
func (m *MediaItem) IsLinked() bool {
	if m.Type.IsEpisodic() {
		return m.SonarrID != nil
	}
	return m.RadarrID != nil
}

// SymlinkAnchor is the moment the Symlink→Mkv threshold counts from
func (m *MediaItem) SymlinkAnchor() time.Time {
	if m.LastWatchedAt != nil {
		return *m.LastWatchedAt
	}
	return m.CreatedAt
}

// MkvAnchor is the moment the Mkv→Symlink threshold counts from
func (m *MediaItem) MkvAnchor() time.Time {
	if m.LastWatchedAt != nil {
		return *m.LastWatchedAt
	}
	if m.StateChangedAt != nil {
		return *m.StateChangedAt
	}
	return m.CreatedAt
}
