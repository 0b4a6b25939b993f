package radarr

import "strings"

// WebhookPayload is the body of a Radarr connection notification
type WebhookPayload struct {
	EventType string `json:"eventType"`
	Movie     *struct {
		ID     int    `json:"id"`
		Title  string `json:"title"`
		TmdbID int    `json:"tmdbId"`
	} `json:"movie"`
	MovieFile *struct {
		ID   int    `json:"id"`
		Path string `json:"path"`
		Size int64  `json:"size"`
	} `json:"movieFile"`
}

// IsImport reports whether the notification announces an imported file
func (p *WebhookPayload) IsImport() bool {
	return strings.EqualFold(p.EventType, "Download") && p.MovieFile != nil && p.MovieFile.Path != ""
}
