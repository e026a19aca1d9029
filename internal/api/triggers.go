package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/wai/pbxbridge/internal/bridge"
)

// TriggerHandler runs scheduled cycles out-of-band and exposes operational
// resets.
type TriggerHandler struct {
	deps *Dependencies
}

// NewTriggerHandler creates a TriggerHandler.
func NewTriggerHandler(deps *Dependencies) *TriggerHandler {
	return &TriggerHandler{deps: deps}
}

// Poll runs one CDR poll+submit cycle synchronously.
func (h *TriggerHandler) Poll(w http.ResponseWriter, r *http.Request) {
	slog.Info("Manual poll triggered")

	if err := h.deps.Bridge.RunPollCycle(r.Context()); err != nil {
		if errors.Is(err, bridge.ErrBusy) {
			WriteTriggerError(w, http.StatusConflict, err)
			return
		}
		slog.Error("Manual poll failed", "error", err)
		WriteTriggerError(w, http.StatusInternalServerError, err)
		return
	}

	WriteJSON(w, http.StatusOK, TriggerResponse{Success: true, Message: "Poll completed"})
}

// Alerts runs one call group check synchronously.
func (h *TriggerHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	slog.Info("Manual alert check triggered")

	if err := h.deps.Bridge.RunAlertCheck(r.Context()); err != nil {
		if errors.Is(err, bridge.ErrBusy) {
			WriteTriggerError(w, http.StatusConflict, err)
			return
		}
		slog.Error("Manual alert check failed", "error", err)
		WriteTriggerError(w, http.StatusInternalServerError, err)
		return
	}

	WriteJSON(w, http.StatusOK, TriggerResponse{Success: true, Message: "Alert check completed"})
}

// ResetCursor clears the poll cursor so the next poll re-fetches the newest
// batch. May produce duplicate submissions downstream.
func (h *TriggerHandler) ResetCursor(w http.ResponseWriter, r *http.Request) {
	slog.Warn("Manual cursor reset triggered")
	h.deps.Poller.ResetLastProcessedID()
	WriteJSON(w, http.StatusOK, TriggerResponse{Success: true, Message: "Cursor reset"})
}

// ClearAlerts resets all in-memory alert flags.
func (h *TriggerHandler) ClearAlerts(w http.ResponseWriter, r *http.Request) {
	slog.Warn("Manual alert state reset triggered")
	h.deps.Monitor.ClearActiveAlerts()
	WriteJSON(w, http.StatusOK, TriggerResponse{Success: true, Message: "Alert state cleared"})
}
