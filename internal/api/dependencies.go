// Package api provides the bridge's own HTTP surface: health, status, and
// manual trigger endpoints.
package api

import (
	"context"
	"time"

	"github.com/wai/pbxbridge/internal/models"
)

// Trigger runs one cycle of a scheduled job out-of-band.
type Trigger interface {
	RunPollCycle(ctx context.Context) error
	RunAlertCheck(ctx context.Context) error
}

// PollerStatus exposes poller introspection and operational reset.
type PollerStatus interface {
	LastProcessedID() int64
	ResetLastProcessedID()
	TestConnection(ctx context.Context) bool
}

// HoursStatus reports the current business-hours state.
type HoursStatus interface {
	InBusinessHours(at time.Time) bool
}

// MonitorStatus exposes monitor introspection and reset.
type MonitorStatus interface {
	MonitoredGroups() []models.MonitoredGroup
	ClearActiveAlerts()
}

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	Bridge  Trigger
	Poller  PollerStatus
	Hours   HoursStatus
	Monitor MonitorStatus
}
