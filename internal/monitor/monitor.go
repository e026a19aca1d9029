// Package monitor watches configured call groups for missing staffing during
// business hours and raises backend alerts exactly once per outage.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wai/pbxbridge/internal/models"
	"github.com/wai/pbxbridge/internal/state"
)

// AlertAPI is the slice of the backend client the monitor uses.
type AlertAPI interface {
	SubmitCallGroupAlert(ctx context.Context, req models.CallGroupAlertRequest) (*models.CallGroupAlert, error)
	ActiveAlerts(ctx context.Context) ([]models.CallGroupAlert, error)
}

// BusinessHours reports whether a point in time is within business hours.
type BusinessHours interface {
	InBusinessHours(at time.Time) bool
}

// StaffingProvider answers how many operators are currently assigned to a
// call group.
type StaffingProvider interface {
	GroupStaffing(ctx context.Context, groupID string) (int, error)
}

// Monitor tracks per-group alert state and sweeps all monitored groups on
// each check. Alert flags live in the injected state store.
type Monitor struct {
	groups   []models.MonitoredGroup
	hours    BusinessHours
	api      AlertAPI
	staffing StaffingProvider
	store    state.Store
}

// New creates a Monitor over the configured groups.
func New(groups []models.MonitoredGroup, hours BusinessHours, api AlertAPI,
	staffing StaffingProvider, store state.Store) *Monitor {

	slog.Info("Call group monitor initialized", "monitored_groups", len(groups))
	return &Monitor{
		groups:   groups,
		hours:    hours,
		api:      api,
		staffing: staffing,
		store:    store,
	}
}

// CheckCallGroups sweeps every monitored group. Outside business hours the
// sweep is a no-op and existing alert state is left untouched; alerts are
// only resolved when a check runs during hours again. Per-group failures are
// logged and do not abort the sweep.
func (m *Monitor) CheckCallGroups(ctx context.Context) {
	slog.Info("Starting call group check")

	if !m.hours.InBusinessHours(time.Time{}) {
		slog.Debug("Outside business hours, skipping call group alerts")
		return
	}

	for _, group := range m.groups {
		if err := m.checkGroup(ctx, group); err != nil {
			slog.Error("Error checking call group",
				"group_id", group.ID, "group_name", group.Name, "error", err)
		}
	}

	slog.Info("Call group check completed")
}

func (m *Monitor) checkGroup(ctx context.Context, group models.MonitoredGroup) error {
	slog.Debug("Checking call group", "group_id", group.ID, "group_name", group.Name)

	staffed, err := m.staffing.GroupStaffing(ctx, group.ID)
	if err != nil {
		return fmt.Errorf("query staffing: %w", err)
	}

	if staffed > 0 {
		if m.store.AlertActive(group.ID) {
			slog.Info("Call group now has users, clearing alert",
				"group_id", group.ID, "group_name", group.Name)
			m.store.SetAlertActive(group.ID, false)
		}
		return nil
	}

	// At most one active alert per group
	if m.store.AlertActive(group.ID) {
		slog.Debug("Alert already active for call group", "group_id", group.ID)
		return nil
	}

	slog.Warn("Call group has no assigned users during business hours",
		"group_id", group.ID, "group_name", group.Name)

	req := models.CallGroupAlertRequest{
		CallGroupID:   group.ID,
		CallGroupName: group.Name,
		AlertType:     models.AlertTypeNoAssignedUsers,
		AlertMessage:  fmt.Sprintf("Call group %q has no assigned users during business hours", group.Name),
	}

	if _, err := m.api.SubmitCallGroupAlert(ctx, req); err != nil {
		return fmt.Errorf("submit alert: %w", err)
	}
	m.store.SetAlertActive(group.ID, true)

	slog.Info("Call group alert submitted", "group_id", group.ID, "group_name", group.Name)
	return nil
}

// SyncActiveAlerts seeds local alert flags from the backend's active alert
// list so a restart does not re-fire alerts the backend already holds.
func (m *Monitor) SyncActiveAlerts(ctx context.Context) error {
	alerts, err := m.api.ActiveAlerts(ctx)
	if err != nil {
		return fmt.Errorf("fetch active alerts: %w", err)
	}

	monitored := make(map[string]bool, len(m.groups))
	for _, g := range m.groups {
		monitored[g.ID] = true
	}

	seeded := 0
	for _, alert := range alerts {
		if alert.IsActive && monitored[alert.CallGroupID] {
			m.store.SetAlertActive(alert.CallGroupID, true)
			seeded++
		}
	}

	slog.Info("Seeded alert state from backend", "active_alerts", seeded)
	return nil
}

// ClearActiveAlerts resets all alert flags. Operator action; the next check
// may re-submit alerts for still-unstaffed groups.
func (m *Monitor) ClearActiveAlerts() {
	slog.Info("Clearing all active alerts")
	m.store.ClearAlerts()
}

// AlertActive reports whether a group currently has an active alert.
func (m *Monitor) AlertActive(groupID string) bool {
	return m.store.AlertActive(groupID)
}

// MonitoredGroups returns the configured groups.
func (m *Monitor) MonitoredGroups() []models.MonitoredGroup {
	return m.groups
}
