package jellyseerr

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/amaumene/storarr/internal/models"
)

// Webhook event types handled by Storarr
const (
	EventRequestAdded     = "request_added"
	EventRequestApproved  = "request_approved"
	EventRequestAvailable = "request_available"
	EventMediaAvailable   = "media_available"
)

// FlexInt decodes a JSON number or a numeric string. Jellyseerr's
// notification templates render ids as strings.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*f = FlexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}

// WebhookMedia describes the title a notification is about
type WebhookMedia struct {
	TmdbID       FlexInt `json:"tmdbId"`
	TvdbID       FlexInt `json:"tvdbId"`
	MediaType    string  `json:"mediaType"`
	MediaTypeAlt string  `json:"media_type"`
	Title        string  `json:"title"`
}

// Kind returns the media type in either spelling
func (m *WebhookMedia) Kind() string {
	if m.MediaType != "" {
		return strings.ToLower(m.MediaType)
	}
	return strings.ToLower(m.MediaTypeAlt)
}

// MediaTypes returns the tracked media types the notification can refer to,
// or nil when the kind is missing or unknown
func (m *WebhookMedia) MediaTypes() []models.MediaType {
	switch m.Kind() {
	case "movie":
		return []models.MediaType{models.MediaTypeMovie}
	case "tv":
		return []models.MediaType{models.MediaTypeSeries, models.MediaTypeAnime}
	default:
		return nil
	}
}

// WebhookRequest identifies the request a notification is about
type WebhookRequest struct {
	RequestID    FlexInt `json:"requestId"`
	RequestIDAlt FlexInt `json:"request_id"`
}

// ID returns the request id in either spelling
func (r *WebhookRequest) ID() int {
	if r.RequestID != 0 {
		return int(r.RequestID)
	}
	return int(r.RequestIDAlt)
}

// WebhookPayload is the body of a Jellyseerr notification
type WebhookPayload struct {
	EventType        string          `json:"eventType"`
	NotificationType string          `json:"notification_type"`
	Subject          string          `json:"subject"`
	Media            *WebhookMedia   `json:"media"`
	Request          *WebhookRequest `json:"request"`
}

// Event returns the lowercased event type, whichever field carried it
func (p *WebhookPayload) Event() string {
	if p.EventType != "" {
		return strings.ToLower(p.EventType)
	}
	return strings.ToLower(p.NotificationType)
}
