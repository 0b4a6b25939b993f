package handlers

// Set groups every handler the server routes to
type Set struct {
	Health      *HealthHandler
	Status      *StatusHandler
	Dashboard   *DashboardHandler
	Queue       *QueueHandler
	Transitions *TransitionHandler
	Media       *MediaHandler
	Webhooks    *WebhookHandler
	Events      *EventsHandler
}
