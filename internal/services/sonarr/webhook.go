package sonarr

import "strings"

// WebhookPayload is the body of a Sonarr connection notification
type WebhookPayload struct {
	EventType string `json:"eventType"`
	Series    *struct {
		ID     int    `json:"id"`
		Title  string `json:"title"`
		TvdbID int    `json:"tvdbId"`
		Path   string `json:"path"`
	} `json:"series"`
	Episodes []struct {
		ID            int `json:"id"`
		SeasonNumber  int `json:"seasonNumber"`
		EpisodeNumber int `json:"episodeNumber"`
	} `json:"episodes"`
	EpisodeFile *struct {
		ID   int    `json:"id"`
		Path string `json:"path"`
		Size int64  `json:"size"`
	} `json:"episodeFile"`
}

// IsImport reports whether the notification announces an imported file
func (p *WebhookPayload) IsImport() bool {
	return strings.EqualFold(p.EventType, "Download") && p.EpisodeFile != nil && p.EpisodeFile.Path != ""
}
