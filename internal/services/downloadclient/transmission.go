package downloadclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/amaumene/storarr/internal/services/httpapi"
	"github.com/rs/zerolog"
)

const sessionHeader = "X-Transmission-Session-Id"

var torrentFields = []string{"id", "name", "totalSize", "leftUntilDone", "percentDone", "status", "errorString"}

type rpcRequest struct {
	Method    string      `json:"method"`
	Arguments interface{} `json:"arguments,omitempty"`
}

type rpcTorrent struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	TotalSize     int64   `json:"totalSize"`
	LeftUntilDone int64   `json:"leftUntilDone"`
	PercentDone   float64 `json:"percentDone"`
	Status        int     `json:"status"`
	ErrorString   string  `json:"errorString"`
}

type rpcResponse struct {
	Result    string `json:"result"`
	Arguments struct {
		Torrents []rpcTorrent `json:"torrents"`
	} `json:"arguments"`
}

type transmission struct {
	name   string
	api    *httpapi.Client
	logger zerolog.Logger
}

func newTransmission(name string, api *httpapi.Client, logger zerolog.Logger) *transmission {
	return &transmission{name: name, api: api, logger: logger}
}

func (t *transmission) Name() string { return t.name }
func (t *transmission) Type() string { return TypeTransmission }

// call performs one RPC, answering the session-id challenge once
func (t *transmission) call(ctx context.Context, req rpcRequest) (*rpcResponse, error) {
	var resp rpcResponse
	err := t.api.Post(ctx, "rpc", req, &resp)

	var statusErr *httpapi.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
		t.api.SetHeader(sessionHeader, statusErr.Header.Get(sessionHeader))
		t.logger.Debug().Msg("Refreshed transmission session id")
		err = t.api.Post(ctx, "rpc", req, &resp)
	}
	if err != nil {
		return nil, fmt.Errorf("rpc %s failed: %w", req.Method, err)
	}
	if resp.Result != "" && resp.Result != "success" {
		return nil, fmt.Errorf("rpc %s failed: %s", req.Method, resp.Result)
	}
	return &resp, nil
}

func (t *transmission) Ping(ctx context.Context) error {
	_, err := t.call(ctx, rpcRequest{Method: "session-get"})
	return err
}

func (t *transmission) Queue(ctx context.Context) ([]QueueItem, error) {
	resp, err := t.call(ctx, rpcRequest{
		Method:    "torrent-get",
		Arguments: map[string]interface{}{"fields": torrentFields},
	})
	if err != nil {
		return nil, err
	}

	var items []QueueItem
	for _, tr := range resp.Arguments.Torrents {
		if tr.PercentDone >= 1 {
			continue
		}
		items = append(items, QueueItem{
			ID:            strconv.Itoa(tr.ID),
			Name:          tr.Name,
			Size:          tr.TotalSize,
			SizeRemaining: tr.LeftUntilDone,
			Progress:      tr.PercentDone * 100,
			Status:        transmissionStatus(tr.Status),
			ErrorMessage:  tr.ErrorString,
			ClientType:    TypeTransmission,
			ClientName:    t.name,
		})
	}
	return items, nil
}

func transmissionStatus(status int) string {
	switch status {
	case 0:
		return StatusPaused
	case 1:
		return StatusQueued
	case 2, 3:
		return StatusDownloading
	case 4, 5:
		return StatusSeeding
	case 6:
		return StatusError
	default:
		return StatusUnknown
	}
}
