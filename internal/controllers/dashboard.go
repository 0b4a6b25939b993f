package controllers

import (
	"context"
	"fmt"

	"github.com/amaumene/storarr/internal/models"
)

// StateSummary is the number of items and bytes in one state
type StateSummary struct {
	State     models.FileState `json:"state"`
	Count     int64            `json:"count"`
	TotalSize int64            `json:"totalSize"`
}

// Dashboard is the library overview
type Dashboard struct {
	LibraryMode models.LibraryMode   `json:"libraryMode"`
	TotalItems  int64                `json:"totalItems"`
	TotalSize   int64                `json:"totalSize"`
	States      []StateSummary       `json:"states"`
	Upcoming    []UpcomingTransition `json:"upcoming"`
}

// DashboardController builds the overview from the store and the transition preview
type DashboardController struct {
	db          *models.Database
	transitions *TransitionController
}

// NewDashboardController creates a new dashboard controller
func NewDashboardController(db *models.Database, transitions *TransitionController) *DashboardController {
	return &DashboardController{db: db, transitions: transitions}
}

// Dashboard returns per-state counts and the next DefaultUpcomingLimit transitions
func (c *DashboardController) Dashboard(ctx context.Context) (*Dashboard, error) {
	settings, err := c.db.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	counts, err := c.db.CountByState(ctx)
	if err != nil {
		return nil, err
	}
	upcoming, err := c.transitions.GetUpcomingTransitions(ctx, DefaultUpcomingLimit)
	if err != nil {
		return nil, err
	}

	dash := &Dashboard{LibraryMode: settings.LibraryMode, Upcoming: upcoming}
	if dash.Upcoming == nil {
		dash.Upcoming = []UpcomingTransition{}
	}
	for _, state := range models.AllStates {
		sc := counts[state]
		dash.States = append(dash.States, StateSummary{State: state, Count: sc.Count, TotalSize: sc.TotalSize})
		dash.TotalItems += sc.Count
		dash.TotalSize += sc.TotalSize
	}
	return dash, nil
}
