// Package extensions maps PBX extension numbers to operator email addresses
package extensions

import (
	"log/slog"
	"sync"
)

// Mapper is a static extension → email lookup table. The table is replaced
// wholesale on reload, never merged, and lookups may race a reload.
type Mapper struct {
	mu      sync.RWMutex
	mapping map[string]string
}

// NewMapper creates a Mapper from the configured table.
func NewMapper(mapping map[string]string) *Mapper {
	if mapping == nil {
		mapping = map[string]string{}
	}
	slog.Info("Extension mapper initialized", "mapped_extensions", len(mapping))
	return &Mapper{mapping: mapping}
}

// Email returns the email mapped to an extension. The second return value is
// false when no mapping exists.
func (m *Mapper) Email(extension string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	email, ok := m.mapping[extension]
	if !ok {
		slog.Warn("No email mapping found for extension", "extension", extension)
	}
	return email, ok
}

// HasMapping reports whether an extension has a mapping.
func (m *Mapper) HasMapping(extension string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.mapping[extension]
	return ok
}

// Extensions returns all mapped extension numbers.
func (m *Mapper) Extensions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exts := make([]string, 0, len(m.mapping))
	for ext := range m.mapping {
		exts = append(exts, ext)
	}
	return exts
}

// Emails returns all mapped email addresses.
func (m *Mapper) Emails() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emails := make([]string, 0, len(m.mapping))
	for _, email := range m.mapping {
		emails = append(emails, email)
	}
	return emails
}

// Update atomically replaces the whole table.
func (m *Mapper) Update(mapping map[string]string) {
	if mapping == nil {
		mapping = map[string]string{}
	}

	m.mu.Lock()
	m.mapping = mapping
	m.mu.Unlock()

	slog.Info("Extension mapping updated", "mapped_extensions", len(mapping))
}
