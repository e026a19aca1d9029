// Package state provides progress-tracking storage for the bridge: the CDR
// poll cursor and the per-group alert-active flags. The default store keeps
// state in process memory; the SQLite store survives restarts.
package state

// Store tracks poller progress and active alert flags.
type Store interface {
	// Cursor returns the id of the last processed CDR record. ok is false
	// when no record has been processed yet.
	Cursor() (id int64, ok bool)
	// SetCursor advances the cursor.
	SetCursor(id int64)
	// ClearCursor resets the cursor so the next poll re-fetches the newest
	// batch regardless of history.
	ClearCursor()

	// AlertActive reports whether an alert is currently active for a group.
	AlertActive(groupID string) bool
	// SetAlertActive marks or clears a group's alert flag.
	SetAlertActive(groupID string, active bool)
	// ClearAlerts clears all alert flags.
	ClearAlerts()
}
