package api

import (
	"net/http"
	"time"
)

// HealthHandler serves the health and status endpoints.
type HealthHandler struct {
	deps      *Dependencies
	startTime time.Time
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(deps *Dependencies) *HealthHandler {
	return &HealthHandler{deps: deps, startTime: time.Now()}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	LastProcessedCdrID int64    `json:"lastProcessedCdrId"`
	BusinessHours      bool     `json:"businessHours"`
	MonitoredGroups    int      `json:"monitoredGroups"`
	Uptime             string   `json:"uptime"`
	MonitoredGroupIDs  []string `json:"monitoredGroupIds,omitempty"`
}

// Health returns a basic health check response.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	cdrStatus := "connected"
	if !h.deps.Poller.TestConnection(r.Context()) {
		cdrStatus = "disconnected"
	}

	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services: map[string]string{
			"cdrPoller": cdrStatus,
			"apiClient": "ok",
		},
	})
}

// Status returns bridge runtime state.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	groups := h.deps.Monitor.MonitoredGroups()
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}

	WriteJSON(w, http.StatusOK, StatusResponse{
		LastProcessedCdrID: h.deps.Poller.LastProcessedID(),
		BusinessHours:      h.deps.Hours.InBusinessHours(time.Time{}),
		MonitoredGroups:    len(groups),
		Uptime:             time.Since(h.startTime).Round(time.Second).String(),
		MonitoredGroupIDs:  ids,
	})
}
