package controllers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/amaumene/storarr/internal/utils"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Connection is the reachability of one upstream
type Connection struct {
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// StatusController checks connectivity to every configured upstream
type StatusController struct {
	upstreams map[string]Pinger
	logger    zerolog.Logger
}

// NewStatusController creates a new status controller. Only configured
// upstreams should be passed in.
func NewStatusController(upstreams map[string]Pinger, logger zerolog.Logger) *StatusController {
	return &StatusController{
		upstreams: upstreams,
		logger:    utils.WithComponent(logger, "status"),
	}
}

// Connections pings every upstream concurrently, sorted by name
func (c *StatusController) Connections(ctx context.Context) []Connection {
	var (
		mu    sync.Mutex
		conns = make([]Connection, 0, len(c.upstreams))
		g     errgroup.Group
	)
	for name, upstream := range c.upstreams {
		g.Go(func() error {
			start := time.Now()
			err := upstream.Ping(ctx)
			conn := Connection{Name: name, Connected: err == nil, LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				conn.Error = err.Error()
				c.logger.Debug().Err(err).Str("upstream", name).Msg("Upstream unreachable")
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(conns, func(i, j int) bool { return conns[i].Name < conns[j].Name })
	return conns
}
