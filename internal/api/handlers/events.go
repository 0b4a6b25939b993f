package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amaumene/storarr/internal/notify"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// KeepAliveInterval is how often an idle event stream gets a comment line
const KeepAliveInterval = 30 * time.Second

// EventsHandler streams media updates as server-sent events
type EventsHandler struct {
	hub *notify.Hub
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hub *notify.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream answers GET /api/v1/events. The stream ends when the client goes
// away or the hub is closed.
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	events, cancel := h.hub.Subscribe()
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		ticker := time.NewTicker(KeepAliveInterval)
		defer ticker.Stop()

		fmt.Fprint(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			case <-ticker.C:
				fmt.Fprint(w, ": keep-alive\n\n")
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))
	return nil
}
