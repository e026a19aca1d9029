package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wai/pbxbridge/internal/config"
)

// PbxStaffingProvider queries the 3CX management API for the members of a
// call group and counts the ones currently logged in.
type PbxStaffingProvider struct {
	http *resty.Client
}

// groupMember is the subset of the PBX member representation we read.
type groupMember struct {
	Number   string `json:"number"`
	LoggedIn bool   `json:"loggedIn"`
}

// NewPbxStaffingProvider creates a provider against the PBX management API.
func NewPbxStaffingProvider(cfg config.PbxAPIConfig) *PbxStaffingProvider {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)
	if cfg.Token != "" {
		http.SetAuthToken(cfg.Token)
	}

	slog.Info("PBX staffing provider configured", "base_url", cfg.BaseURL)
	return &PbxStaffingProvider{http: http}
}

// GroupStaffing returns the number of logged-in members of a call group.
func (p *PbxStaffingProvider) GroupStaffing(ctx context.Context, groupID string) (int, error) {
	var members []groupMember
	resp, err := p.http.R().
		SetContext(ctx).
		SetResult(&members).
		Get(fmt.Sprintf("/callcontrol/groups/%s/members", groupID))
	if err != nil {
		return 0, fmt.Errorf("pbx api request failed: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("pbx api returned status %d: %s", resp.StatusCode(), resp.String())
	}

	count := 0
	for _, m := range members {
		if m.LoggedIn {
			count++
		}
	}
	return count, nil
}

// StaticStaffingProvider serves fixed staffing counts. It stands in when no
// PBX management API is configured and in tests. A group without a configured
// count is an error, not zero staff, so an unconfigured deployment cannot
// raise false no-staff alerts.
type StaticStaffingProvider struct {
	Counts map[string]int
}

// GroupStaffing returns the configured count for a group.
func (p *StaticStaffingProvider) GroupStaffing(_ context.Context, groupID string) (int, error) {
	count, ok := p.Counts[groupID]
	if !ok {
		return 0, fmt.Errorf("no staffing configured for group %s", groupID)
	}
	return count, nil
}
