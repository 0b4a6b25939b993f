package jellyfin

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/amaumene/storarr/internal/config"
	"github.com/amaumene/storarr/internal/services/httpapi"
	"github.com/amaumene/storarr/internal/utils"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	// CacheTTL is how long the item catalog is reused before it is fetched again
	CacheTTL = 5 * time.Minute

	itemsKey = "items"
)

// UserData holds per-user playback state
type UserData struct {
	LastPlayedDate *time.Time `json:"LastPlayedDate"`
	Played         bool       `json:"Played"`
	PlayCount      int        `json:"PlayCount"`
}

// Item is one playable item in the Jellyfin catalog
type Item struct {
	ID             string     `json:"Id"`
	Name           string     `json:"Name"`
	Path           string     `json:"Path"`
	Type           string     `json:"Type"`
	UserData       *UserData  `json:"UserData"`
	LastPlayedDate *time.Time `json:"LastPlayedDate"`
}

// LastPlayed returns the most recent playback moment known for the item
func (i Item) LastPlayed() *time.Time {
	if i.UserData != nil && i.UserData.LastPlayedDate != nil {
		return i.UserData.LastPlayedDate
	}
	return i.LastPlayedDate
}

type itemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

// Catalog is a snapshot of every item, keyed by folded path
type Catalog struct {
	byPath map[string]*Item
}

// NewCatalog indexes items by path. Items without a path are dropped.
func NewCatalog(items []Item) *Catalog {
	cat := &Catalog{byPath: make(map[string]*Item, len(items))}
	for i := range items {
		if items[i].Path != "" {
			cat.byPath[utils.FoldPath(items[i].Path)] = &items[i]
		}
	}
	return cat
}

// Lookup returns the item stored at path, or nil
func (c *Catalog) Lookup(path string) *Item {
	return c.byPath[utils.FoldPath(path)]
}

// Len returns the number of indexed items
func (c *Catalog) Len() int {
	return len(c.byPath)
}

// Client reads the Jellyfin catalog and playback history
type Client struct {
	api    *httpapi.Client
	userID string
	cache  *cache.Cache
	group  singleflight.Group
	logger zerolog.Logger
}

// NewClient creates a new Jellyfin client
func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		api: httpapi.New(httpapi.Options{
			Name:              "jellyfin",
			BaseURL:           cfg.JellyfinURL,
			Headers:           map[string]string{"X-Emby-Token": cfg.JellyfinAPIKey},
			Timeout:           cfg.HTTPTimeout,
			MaxRetries:        cfg.HTTPMaxRetries,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, logger),
		userID: cfg.JellyfinUserID,
		cache:  cache.New(CacheTTL, 2*CacheTTL),
		logger: utils.WithComponent(logger, "jellyfin"),
	}
}

// Configured reports whether a Jellyfin URL is set
func (c *Client) Configured() bool {
	return c.api.Configured()
}

// Ping checks connectivity
func (c *Client) Ping(ctx context.Context) error {
	return c.api.Get(ctx, "System/Info", nil, nil)
}

// ItemByPath returns the catalog item stored at path, or nil
func (c *Client) ItemByPath(ctx context.Context, path string) (*Item, error) {
	cat, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return cat.Lookup(path), nil
}

// Snapshot returns the whole catalog, served from cache when fresh.
// Concurrent refreshes share one upstream call.
func (c *Client) Snapshot(ctx context.Context) (*Catalog, error) {
	if cached, ok := c.cache.Get(itemsKey); ok {
		return cached.(*Catalog), nil
	}

	v, err, shared := c.group.Do(itemsKey, func() (interface{}, error) {
		items, err := c.fetch(ctx)
		if err != nil {
			return nil, err
		}
		cat := NewCatalog(items)
		c.cache.SetDefault(itemsKey, cat)
		return cat, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug().Msg("Shared in-flight catalog refresh")
	}
	return v.(*Catalog), nil
}

func (c *Client) fetch(ctx context.Context) ([]Item, error) {
	path := "Items"
	if c.userID != "" {
		path = fmt.Sprintf("Users/%s/Items", url.PathEscape(c.userID))
	}
	query := url.Values{
		"Recursive":        {"true"},
		"IncludeItemTypes": {"Movie,Episode"},
		"Fields":           {"Path"},
	}

	var resp itemsResponse
	if err := c.api.Get(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch items: %w", err)
	}
	c.logger.Debug().Int("count", len(resp.Items)).Msg("Fetched catalog")
	return resp.Items, nil
}
