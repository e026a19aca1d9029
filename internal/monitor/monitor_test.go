package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wai/pbxbridge/internal/models"
	"github.com/wai/pbxbridge/internal/state"
)

// MockAlertAPI is a mock backend API for monitor tests.
type MockAlertAPI struct {
	SubmitFunc       func(ctx context.Context, req models.CallGroupAlertRequest) (*models.CallGroupAlert, error)
	ActiveAlertsFunc func(ctx context.Context) ([]models.CallGroupAlert, error)

	Submitted []models.CallGroupAlertRequest
}

func (m *MockAlertAPI) SubmitCallGroupAlert(ctx context.Context, req models.CallGroupAlertRequest) (*models.CallGroupAlert, error) {
	m.Submitted = append(m.Submitted, req)
	if m.SubmitFunc != nil {
		return m.SubmitFunc(ctx, req)
	}
	return &models.CallGroupAlert{ID: "alert-1", IsActive: true}, nil
}

func (m *MockAlertAPI) ActiveAlerts(ctx context.Context) ([]models.CallGroupAlert, error) {
	if m.ActiveAlertsFunc != nil {
		return m.ActiveAlertsFunc(ctx)
	}
	return nil, nil
}

// fixedHours reports a constant business-hours answer.
type fixedHours bool

func (f fixedHours) InBusinessHours(time.Time) bool { return bool(f) }

// MockStaffing serves per-group counts and optional errors.
type MockStaffing struct {
	Counts map[string]int
	Errs   map[string]error
}

func (m *MockStaffing) GroupStaffing(_ context.Context, groupID string) (int, error) {
	if err := m.Errs[groupID]; err != nil {
		return 0, err
	}
	return m.Counts[groupID], nil
}

func testGroups() []models.MonitoredGroup {
	return []models.MonitoredGroup{
		{ID: "700", Name: "Support"},
		{ID: "701", Name: "Sales"},
	}
}

func TestCheckCallGroups_AlertOncePerOutage(t *testing.T) {
	api := &MockAlertAPI{}
	staffing := &MockStaffing{Counts: map[string]int{"700": 0, "701": 2}}
	m := New(testGroups(), fixedHours(true), api, staffing, state.NewMemoryStore())

	ctx := context.Background()

	m.CheckCallGroups(ctx)
	m.CheckCallGroups(ctx)

	if len(api.Submitted) != 1 {
		t.Fatalf("Expected exactly one alert for repeated zero staffing, got %d", len(api.Submitted))
	}
	alert := api.Submitted[0]
	if alert.CallGroupID != "700" || alert.AlertType != models.AlertTypeNoAssignedUsers {
		t.Errorf("Unexpected alert: %+v", alert)
	}
	if !m.AlertActive("700") {
		t.Error("Expected alert flag active for group 700")
	}
	if m.AlertActive("701") {
		t.Error("Expected no alert flag for staffed group 701")
	}
}

func TestCheckCallGroups_RecoveryClearsAndRealerts(t *testing.T) {
	api := &MockAlertAPI{}
	staffing := &MockStaffing{Counts: map[string]int{"700": 0, "701": 1}}
	m := New(testGroups(), fixedHours(true), api, staffing, state.NewMemoryStore())

	ctx := context.Background()

	m.CheckCallGroups(ctx)
	if !m.AlertActive("700") {
		t.Fatal("Expected alert after first zero-staffing check")
	}

	// Staffing recovers: the local flag clears with no backend call
	staffing.Counts["700"] = 3
	m.CheckCallGroups(ctx)
	if m.AlertActive("700") {
		t.Error("Expected alert flag cleared after recovery")
	}
	if len(api.Submitted) != 1 {
		t.Errorf("Recovery must not submit, got %d submissions", len(api.Submitted))
	}

	// A later outage submits exactly one new alert
	staffing.Counts["700"] = 0
	m.CheckCallGroups(ctx)
	if len(api.Submitted) != 2 {
		t.Errorf("Expected a new alert after a fresh outage, got %d submissions", len(api.Submitted))
	}
}

func TestCheckCallGroups_OutsideBusinessHours(t *testing.T) {
	api := &MockAlertAPI{}
	staffing := &MockStaffing{Counts: map[string]int{"700": 0}}
	store := state.NewMemoryStore()
	store.SetAlertActive("700", true)

	m := New(testGroups(), fixedHours(false), api, staffing, store)
	m.CheckCallGroups(context.Background())

	if len(api.Submitted) != 0 {
		t.Errorf("Expected no submissions outside business hours, got %d", len(api.Submitted))
	}
	// Existing alert state persists silently outside hours
	if !m.AlertActive("700") {
		t.Error("Expected alert state untouched outside business hours")
	}
}

func TestCheckCallGroups_PerGroupFailureIsolated(t *testing.T) {
	api := &MockAlertAPI{}
	staffing := &MockStaffing{
		Counts: map[string]int{"701": 0},
		Errs:   map[string]error{"700": errors.New("pbx unreachable")},
	}
	m := New(testGroups(), fixedHours(true), api, staffing, state.NewMemoryStore())

	m.CheckCallGroups(context.Background())

	// Group 700 failed, group 701 still got its alert
	if len(api.Submitted) != 1 || api.Submitted[0].CallGroupID != "701" {
		t.Errorf("Expected the sweep to continue past a failing group, got %+v", api.Submitted)
	}
}

func TestCheckCallGroups_UnconfiguredStaffingNeverAlerts(t *testing.T) {
	api := &MockAlertAPI{}
	m := New(testGroups(), fixedHours(true), api, &StaticStaffingProvider{},
		state.NewMemoryStore())

	m.CheckCallGroups(context.Background())
	m.CheckCallGroups(context.Background())

	if len(api.Submitted) != 0 {
		t.Errorf("Expected no alerts without staffing data, got %+v", api.Submitted)
	}
	if m.AlertActive("700") || m.AlertActive("701") {
		t.Error("Expected no alert flags without staffing data")
	}
}

func TestCheckCallGroups_SubmitFailureDoesNotMarkActive(t *testing.T) {
	api := &MockAlertAPI{
		SubmitFunc: func(context.Context, models.CallGroupAlertRequest) (*models.CallGroupAlert, error) {
			return nil, errors.New("backend down")
		},
	}
	staffing := &MockStaffing{Counts: map[string]int{"700": 0, "701": 1}}
	m := New(testGroups(), fixedHours(true), api, staffing, state.NewMemoryStore())

	m.CheckCallGroups(context.Background())

	if m.AlertActive("700") {
		t.Error("Expected no active flag when alert submission failed")
	}

	// The next sweep retries the submission
	api.SubmitFunc = nil
	m.CheckCallGroups(context.Background())
	if !m.AlertActive("700") {
		t.Error("Expected alert flag after successful retry")
	}
}

func TestSyncActiveAlerts(t *testing.T) {
	api := &MockAlertAPI{
		ActiveAlertsFunc: func(context.Context) ([]models.CallGroupAlert, error) {
			return []models.CallGroupAlert{
				{ID: "a1", CallGroupID: "700", IsActive: true},
				{ID: "a2", CallGroupID: "999", IsActive: true}, // not monitored
				{ID: "a3", CallGroupID: "701", IsActive: false},
			}, nil
		},
	}
	m := New(testGroups(), fixedHours(true), api, &MockStaffing{}, state.NewMemoryStore())

	if err := m.SyncActiveAlerts(context.Background()); err != nil {
		t.Fatalf("SyncActiveAlerts failed: %v", err)
	}

	if !m.AlertActive("700") {
		t.Error("Expected backend-active alert to seed the local flag")
	}
	if m.AlertActive("999") {
		t.Error("Unmonitored groups must not be seeded")
	}
	if m.AlertActive("701") {
		t.Error("Inactive backend alerts must not be seeded")
	}
}

func TestClearActiveAlerts(t *testing.T) {
	api := &MockAlertAPI{}
	staffing := &MockStaffing{Counts: map[string]int{"700": 0, "701": 0}}
	m := New(testGroups(), fixedHours(true), api, staffing, state.NewMemoryStore())

	m.CheckCallGroups(context.Background())
	m.ClearActiveAlerts()

	if m.AlertActive("700") || m.AlertActive("701") {
		t.Error("Expected all alert flags cleared")
	}
}

func TestMonitoredGroups(t *testing.T) {
	m := New(testGroups(), fixedHours(true), &MockAlertAPI{}, &MockStaffing{}, state.NewMemoryStore())

	groups := m.MonitoredGroups()
	if len(groups) != 2 || groups[0].ID != "700" {
		t.Errorf("Unexpected monitored groups: %+v", groups)
	}
}
