package models

import (
	"strings"
	"time"
)

// MediaType represents the kind of media a tracked file belongs to
type MediaType string

const (
	MediaTypeMovie  MediaType = "Movie"
	MediaTypeSeries MediaType = "Series"
	MediaTypeAnime  MediaType = "Anime"
)

// IsEpisodic reports whether the media type is handled by the episodic catalog
func (t MediaType) IsEpisodic() bool {
	return t == MediaTypeSeries || t == MediaTypeAnime
}

// FileState represents the physical representation of a tracked file
type FileState string

const (
	StateSymlink        FileState = "Symlink"        // Placeholder streamed on demand
	StateMkv            FileState = "Mkv"            // Fully materialized local file
	StateDownloading    FileState = "Downloading"    // Placeholder deleted, local copy being fetched
	StatePendingSymlink FileState = "PendingSymlink" // Local copy deleted, placeholder requested
)

// AllStates lists every state in display order
var AllStates = []FileState{StateSymlink, StateMkv, StateDownloading, StatePendingSymlink}

// LibraryMode gates whether automatic transitions run
type LibraryMode string

const (
	LibraryModeNewContentOnly LibraryMode = "NewContentOnly"
	LibraryModeTrackExisting  LibraryMode = "TrackExisting"
	LibraryModeFullAutomation LibraryMode = "FullAutomation"
)

// ParseLibraryMode parses a mode name case-insensitively
func ParseLibraryMode(s string) (LibraryMode, bool) {
	for _, m := range []LibraryMode{LibraryModeNewContentOnly, LibraryModeTrackExisting, LibraryModeFullAutomation} {
		if strings.EqualFold(s, string(m)) {
			return m, true
		}
	}
	return "", false
}

// TimeUnit is the unit of a transition threshold
type TimeUnit string

const (
	UnitMinutes TimeUnit = "Minutes"
	UnitHours   TimeUnit = "Hours"
	UnitDays    TimeUnit = "Days"
	UnitWeeks   TimeUnit = "Weeks"
	UnitMonths  TimeUnit = "Months" // 30 days
)

// ParseTimeUnit parses a unit name case-insensitively
func ParseTimeUnit(s string) (TimeUnit, bool) {
	for _, u := range []TimeUnit{UnitMinutes, UnitHours, UnitDays, UnitWeeks, UnitMonths} {
		if strings.EqualFold(s, string(u)) {
			return u, true
		}
	}
	return "", false
}

// Threshold is an amount of time after which an item becomes due for transition
type Threshold struct {
	Value int
	Unit  TimeUnit
}

// Duration converts the threshold to a time.Duration. Unknown units count as days.
func (t Threshold) Duration() time.Duration {
	v := time.Duration(t.Value)
	switch t.Unit {
	case UnitMinutes:
		return v * time.Minute
	case UnitHours:
		return v * time.Hour
	case UnitWeeks:
		return v * 7 * 24 * time.Hour
	case UnitMonths:
		return v * 30 * 24 * time.Hour
	default:
		return v * 24 * time.Hour
	}
}
