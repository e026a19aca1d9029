package state

import "sync"

// MemoryStore keeps bridge state in process memory. A restart clears it, so
// the next poll re-fetches the newest batch and relies on the backend's
// pbxCallId dedup.
type MemoryStore struct {
	mu        sync.RWMutex
	cursor    int64
	cursorSet bool
	alerts    map[string]bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{alerts: make(map[string]bool)}
}

func (s *MemoryStore) Cursor() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor, s.cursorSet
}

func (s *MemoryStore) SetCursor(id int64) {
	s.mu.Lock()
	s.cursor = id
	s.cursorSet = true
	s.mu.Unlock()
}

func (s *MemoryStore) ClearCursor() {
	s.mu.Lock()
	s.cursor = 0
	s.cursorSet = false
	s.mu.Unlock()
}

func (s *MemoryStore) AlertActive(groupID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alerts[groupID]
}

func (s *MemoryStore) SetAlertActive(groupID string, active bool) {
	s.mu.Lock()
	if active {
		s.alerts[groupID] = true
	} else {
		delete(s.alerts, groupID)
	}
	s.mu.Unlock()
}

func (s *MemoryStore) ClearAlerts() {
	s.mu.Lock()
	s.alerts = make(map[string]bool)
	s.mu.Unlock()
}
