package handlers

import (
	"github.com/amaumene/storarr/internal/controllers"
	"github.com/gofiber/fiber/v2"
)

// StatusHandler reports upstream connectivity
type StatusHandler struct {
	status *controllers.StatusController
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(status *controllers.StatusController) *StatusHandler {
	return &StatusHandler{status: status}
}

// Connections answers GET /api/v1/status/connections
func (h *StatusHandler) Connections(c *fiber.Ctx) error {
	return c.JSON(h.status.Connections(c.UserContext()))
}

// DashboardHandler serves the library overview
type DashboardHandler struct {
	dashboard *controllers.DashboardController
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboard *controllers.DashboardController) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Dashboard answers GET /api/v1/dashboard
func (h *DashboardHandler) Dashboard(c *fiber.Ctx) error {
	dash, err := h.dashboard.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dash)
}

// QueueHandler serves the catalog and download client queues
type QueueHandler struct {
	queue *controllers.QueueController
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(queue *controllers.QueueController) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// Arr answers GET /api/v1/queue
func (h *QueueHandler) Arr(c *fiber.Ctx) error {
	return c.JSON(h.queue.ArrQueue(c.UserContext()))
}

// Clients answers GET /api/v1/queue/clients
func (h *QueueHandler) Clients(c *fiber.Ctx) error {
	return c.JSON(h.queue.ClientQueues(c.UserContext()))
}
