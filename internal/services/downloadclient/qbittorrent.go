package downloadclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/amaumene/storarr/internal/config"
	"github.com/amaumene/storarr/internal/services/httpapi"
	"github.com/rs/zerolog"
)

type qbTorrent struct {
	Hash     string  `json:"hash"`
	Name     string  `json:"name"`
	Size     int64   `json:"size"`
	Progress float64 `json:"progress"`
	State    string  `json:"state"`
}

type qBittorrent struct {
	name     string
	username string
	password string
	api      *httpapi.Client
	logger   zerolog.Logger
}

func newQBittorrent(name string, dc config.DownloadClientConfig, api *httpapi.Client, logger zerolog.Logger) *qBittorrent {
	username := dc.Username
	if username == "" {
		username = "admin"
	}
	return &qBittorrent{name: name, username: username, password: dc.Password, api: api, logger: logger}
}

func (q *qBittorrent) Name() string { return q.name }
func (q *qBittorrent) Type() string { return TypeQBittorrent }

// login stores the session cookie in the client's jar
func (q *qBittorrent) login(ctx context.Context) error {
	form := url.Values{"username": {q.username}, "password": {q.password}}
	var reply string
	if err := q.api.Post(ctx, "api/v2/auth/login", form, &reply); err != nil {
		return fmt.Errorf("failed to log in: %w", err)
	}
	if strings.TrimSpace(reply) == "Fails." {
		return fmt.Errorf("failed to log in: invalid credentials")
	}
	return nil
}

func (q *qBittorrent) Ping(ctx context.Context) error {
	return q.login(ctx)
}

func (q *qBittorrent) Queue(ctx context.Context) ([]QueueItem, error) {
	torrents, err := q.torrents(ctx)
	if httpapi.IsStatus(err, http.StatusForbidden) {
		if err := q.login(ctx); err != nil {
			return nil, err
		}
		torrents, err = q.torrents(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list torrents: %w", err)
	}

	var items []QueueItem
	for _, t := range torrents {
		if t.Progress >= 1 {
			continue
		}
		items = append(items, QueueItem{
			ID:            t.Hash,
			Name:          t.Name,
			Size:          t.Size,
			SizeRemaining: int64(float64(t.Size) * (1 - t.Progress)),
			Progress:      t.Progress * 100,
			Status:        qbStatus(t.State),
			ClientType:    TypeQBittorrent,
			ClientName:    q.name,
		})
	}
	return items, nil
}

func (q *qBittorrent) torrents(ctx context.Context) ([]qbTorrent, error) {
	var torrents []qbTorrent
	err := q.api.Get(ctx, "api/v2/torrents/info", nil, &torrents)
	return torrents, err
}

func qbStatus(state string) string {
	switch strings.ToLower(state) {
	case "downloading":
		return StatusDownloading
	case "stalleddl":
		return StatusStalled
	case "queueddl":
		return StatusQueued
	case "pauseddl":
		return StatusPaused
	case "error":
		return StatusError
	default:
		return StatusUnknown
	}
}
