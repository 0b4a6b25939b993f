package models

import "time"

// Activity actions recorded in the audit trail
const (
	ActionDiscovered              = "Discovered"
	ActionStateCorrected          = "StateCorrected"
	ActionDownloadInterrupted     = "DownloadInterrupted"
	ActionDownloadComplete        = "DownloadComplete"
	ActionDownloadCompleteWebhook = "DownloadCompleteWebhook"
	ActionTransitionToMkv         = "TransitionToMkv"
	ActionTransitionToSymlink     = "TransitionToSymlink"
	ActionRequestAvailable        = "RequestAvailable"
	ActionPendingResolved         = "PendingResolved"
)

// ActivityLog is an append-only audit entry for one mutation of a media item
type ActivityLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MediaItemID uint      `gorm:"not null;index" json:"mediaItemId"`
	Action      string    `gorm:"not null" json:"action"`
	FromState   string    `json:"fromState"`
	ToState     string    `json:"toState"`
	Details     *string   `json:"details,omitempty"`
	Timestamp   time.Time `gorm:"not null;index" json:"timestamp"`
}
