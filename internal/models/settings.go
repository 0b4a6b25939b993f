package models

import "time"

// SettingsID is the primary key of the settings singleton
const SettingsID = 1

// Settings is the process-wide policy row, created once at first boot
type Settings struct {
	ID uint `gorm:"primaryKey" json:"-"`

	LibraryMode LibraryMode `gorm:"not null" json:"libraryMode"`

	SymlinkToMkvValue int      `gorm:"not null" json:"symlinkToMkvValue"`
	SymlinkToMkvUnit  TimeUnit `gorm:"not null" json:"symlinkToMkvUnit"`
	MkvToSymlinkValue int      `gorm:"not null" json:"mkvToSymlinkValue"`
	MkvToSymlinkUnit  TimeUnit `gorm:"not null" json:"mkvToSymlinkUnit"`

	MediaLibraryPath string `json:"mediaLibraryPath"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// SymlinkToMkv returns the threshold after which an unwatched placeholder is materialized
func (s *Settings) SymlinkToMkv() Threshold {
	return Threshold{Value: s.SymlinkToMkvValue, Unit: s.SymlinkToMkvUnit}
}

// MkvToSymlink returns the threshold after which an unwatched local file is released
func (s *Settings) MkvToSymlink() Threshold {
	return Threshold{Value: s.MkvToSymlinkValue, Unit: s.MkvToSymlinkUnit}
}

// AutomationEnabled reports whether the auto-sweep may run
func (s *Settings) AutomationEnabled() bool {
	return s.LibraryMode == LibraryModeFullAutomation
}
