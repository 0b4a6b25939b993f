package downloadclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/amaumene/storarr/internal/services/httpapi"
	"github.com/rs/zerolog"
)

// number accepts 45, 45.5 or "45"
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*n = number(f)
	return nil
}

type sabSlot struct {
	NzoID      string `json:"nzo_id"`
	Filename   string `json:"filename"`
	Size       string `json:"size"`
	Percentage number `json:"percentage"`
	Status     string `json:"status"`
}

type sabResponse struct {
	Queue struct {
		Slots []sabSlot `json:"slots"`
	} `json:"queue"`
	Error string `json:"error"`
}

type sabnzbd struct {
	name   string
	apiKey string
	api    *httpapi.Client
	logger zerolog.Logger
}

func newSABnzbd(name, apiKey string, api *httpapi.Client, logger zerolog.Logger) *sabnzbd {
	return &sabnzbd{name: name, apiKey: apiKey, api: api, logger: logger}
}

func (s *sabnzbd) Name() string { return s.name }
func (s *sabnzbd) Type() string { return TypeSABnzbd }

func (s *sabnzbd) query(mode string) url.Values {
	return url.Values{"mode": {mode}, "output": {"json"}, "apikey": {s.apiKey}}
}

func (s *sabnzbd) Ping(ctx context.Context) error {
	var resp sabResponse
	if err := s.api.Get(ctx, "api", s.query("server_stats"), &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	return nil
}

func (s *sabnzbd) Queue(ctx context.Context) ([]QueueItem, error) {
	var resp sabResponse
	if err := s.api.Get(ctx, "api", s.query("queue"), &resp); err != nil {
		return nil, fmt.Errorf("failed to get queue: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("failed to get queue: %s", resp.Error)
	}

	items := make([]QueueItem, 0, len(resp.Queue.Slots))
	for _, slot := range resp.Queue.Slots {
		size := ParseSize(slot.Size)
		pct := float64(slot.Percentage)
		items = append(items, QueueItem{
			ID:            slot.NzoID,
			Name:          slot.Filename,
			Size:          size,
			SizeRemaining: int64(float64(size) * (100 - pct) / 100),
			Progress:      pct,
			Status:        slot.Status,
			ClientType:    TypeSABnzbd,
			ClientName:    s.name,
		})
	}
	return items, nil
}
