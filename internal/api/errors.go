package api

import (
	"encoding/json"
	"net/http"
)

// TriggerResponse is returned by the manual trigger endpoints.
type TriggerResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// WriteTriggerError writes a failed trigger response.
func WriteTriggerError(w http.ResponseWriter, statusCode int, err error) {
	WriteJSON(w, statusCode, TriggerResponse{Success: false, Error: err.Error()})
}
