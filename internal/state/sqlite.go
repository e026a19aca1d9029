package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists bridge state to a local SQLite file so a restart
// resumes from the last processed CDR id instead of re-fetching the newest
// batch. Reads are served from memory; writes go through to the database.
type SQLiteStore struct {
	*MemoryStore
	conn *sql.DB
}

// NewSQLiteStore opens (or creates) the state database at path and loads any
// persisted cursor and alert flags.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", path)

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// SQLite handles one writer at a time
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping state database: %w", err)
	}

	s := &SQLiteStore{MemoryStore: NewMemoryStore(), conn: conn}

	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.load(); err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS poll_cursor (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			last_processed_id INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS active_alerts (
			group_id TEXT PRIMARY KEY,
			raised_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to migrate state database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) load() error {
	var cursor int64
	err := s.conn.QueryRow(`SELECT last_processed_id FROM poll_cursor WHERE id = 1`).Scan(&cursor)
	switch {
	case err == sql.ErrNoRows:
		// fresh database
	case err != nil:
		return fmt.Errorf("failed to load cursor: %w", err)
	default:
		s.MemoryStore.SetCursor(cursor)
	}

	rows, err := s.conn.Query(`SELECT group_id FROM active_alerts`)
	if err != nil {
		return fmt.Errorf("failed to load alert flags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var groupID string
		if err := rows.Scan(&groupID); err != nil {
			return err
		}
		s.MemoryStore.SetAlertActive(groupID, true)
	}
	return rows.Err()
}

func (s *SQLiteStore) SetCursor(id int64) {
	s.MemoryStore.SetCursor(id)
	if _, err := s.conn.Exec(`
		INSERT INTO poll_cursor (id, last_processed_id) VALUES (1, ?)
		ON CONFLICT (id) DO UPDATE SET last_processed_id = excluded.last_processed_id,
			updated_at = CURRENT_TIMESTAMP
	`, id); err != nil {
		slog.Error("Failed to persist poll cursor", "id", id, "error", err)
	}
}

func (s *SQLiteStore) ClearCursor() {
	s.MemoryStore.ClearCursor()
	if _, err := s.conn.Exec(`DELETE FROM poll_cursor`); err != nil {
		slog.Error("Failed to clear persisted poll cursor", "error", err)
	}
}

func (s *SQLiteStore) SetAlertActive(groupID string, active bool) {
	s.MemoryStore.SetAlertActive(groupID, active)

	var err error
	if active {
		_, err = s.conn.Exec(`
			INSERT INTO active_alerts (group_id) VALUES (?)
			ON CONFLICT (group_id) DO NOTHING
		`, groupID)
	} else {
		_, err = s.conn.Exec(`DELETE FROM active_alerts WHERE group_id = ?`, groupID)
	}
	if err != nil {
		slog.Error("Failed to persist alert flag", "group_id", groupID, "active", active, "error", err)
	}
}

func (s *SQLiteStore) ClearAlerts() {
	s.MemoryStore.ClearAlerts()
	if _, err := s.conn.Exec(`DELETE FROM active_alerts`); err != nil {
		slog.Error("Failed to clear persisted alert flags", "error", err)
	}
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
