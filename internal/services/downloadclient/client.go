// Package downloadclient reads the active queue of the torrent and usenet
// clients that feed Sonarr and Radarr.
package downloadclient

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/amaumene/storarr/internal/config"
	"github.com/amaumene/storarr/internal/services/httpapi"
	"github.com/rs/zerolog"
)

// Supported client types
const (
	TypeQBittorrent  = "qbittorrent"
	TypeTransmission = "transmission"
	TypeSABnzbd      = "sabnzbd"
)

// Normalized queue statuses
const (
	StatusDownloading = "Downloading"
	StatusStalled     = "Stalled"
	StatusQueued      = "Queued"
	StatusPaused      = "Paused"
	StatusSeeding     = "Seeding"
	StatusError       = "Error"
	StatusUnknown     = "Unknown"
)

// QueueItem is one incomplete download
type QueueItem struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Size          int64   `json:"size"`
	SizeRemaining int64   `json:"sizeRemaining"`
	Progress      float64 `json:"progress"` // percent
	Status        string  `json:"status"`
	ErrorMessage  string  `json:"errorMessage,omitempty"`
	ClientType    string  `json:"clientType"`
	ClientName    string  `json:"clientName"`
}

// Client is a download client that can report its queue
type Client interface {
	Name() string
	Type() string
	Queue(ctx context.Context) ([]QueueItem, error)
	Ping(ctx context.Context) error
}

// New builds the client for one configured slot
func New(dc config.DownloadClientConfig, cfg *config.Config, logger zerolog.Logger) (Client, error) {
	name := fmt.Sprintf("%s-%d", dc.Type, dc.Slot)
	opts := httpapi.Options{
		Name:              name,
		BaseURL:           dc.URL,
		Timeout:           cfg.HTTPTimeout,
		MaxRetries:        cfg.HTTPMaxRetries,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}
	logger = logger.With().Str("component", "downloadclient").Str("client", name).Logger()

	switch dc.Type {
	case TypeQBittorrent:
		opts.Cookies = true
		return newQBittorrent(name, dc, httpapi.New(opts, logger), logger), nil
	case TypeTransmission:
		opts.Username = dc.Username
		opts.Password = dc.Password
		return newTransmission(name, httpapi.New(opts, logger), logger), nil
	case TypeSABnzbd:
		return newSABnzbd(name, dc.APIKey, httpapi.New(opts, logger), logger), nil
	default:
		return nil, fmt.Errorf("unsupported download client type %q", dc.Type)
	}
}

// NewAll builds every enabled client. Slots with an unknown type are logged and skipped.
func NewAll(cfg *config.Config, logger zerolog.Logger) []Client {
	var clients []Client
	for _, dc := range cfg.DownloadClients {
		if !dc.Enabled {
			continue
		}
		client, err := New(dc, cfg, logger)
		if err != nil {
			logger.Warn().Err(err).Int("slot", dc.Slot).Msg("Skipping download client")
			continue
		}
		clients = append(clients, client)
	}
	return clients
}

var sizeRegex = regexp.MustCompile(`(?i)([\d.]+)\s*([KMGT]?B?)`)

// ParseSize converts "1.2 GB"-style sizes to bytes using 1024-based units.
// Plain integers are taken as bytes; unparseable input yields 0.
func ParseSize(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}

	m := sizeRegex.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}

	switch strings.ToUpper(m[2]) {
	case "KB":
		value *= 1 << 10
	case "MB":
		value *= 1 << 20
	case "GB":
		value *= 1 << 30
	case "TB":
		value *= 1 << 40
	}
	return int64(value)
}
