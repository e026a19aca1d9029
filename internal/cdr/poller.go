// Package cdr polls the 3CX call-detail-record store for new call segments
package cdr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wai/pbxbridge/internal/config"
	"github.com/wai/pbxbridge/internal/models"
	"github.com/wai/pbxbridge/internal/state"
)

// ErrNotConnected is returned when Poll is called before Connect.
var ErrNotConnected = errors.New("cdr store not connected")

// QueryError is a retryable failure while fetching CDR rows. The caller
// should retry at the next scheduled tick; the cursor is not advanced.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string { return fmt.Sprintf("cdr query failed: %v", e.Err) }
func (e *QueryError) Unwrap() error { return e.Err }

// dbPool is the subset of pgxpool.Pool the poller needs. pgxmock satisfies it
// in tests.
type dbPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// extensionPattern matches short internal numbers (3-4 digits). Deployments
// with a different numbering plan inject their own predicate.
var extensionPattern = regexp.MustCompile(`^\d{3,4}$`)

// DefaultInternalNumber reports whether a number looks like an internal
// extension under the default 3-4 digit numbering plan.
func DefaultInternalNumber(number string) bool {
	return extensionPattern.MatchString(number)
}

// Poller reads new rows from the CDR store, tracking a monotonic cursor in
// the injected state store so only rows newer than the last processed id are
// fetched.
type Poller struct {
	cfg   config.DatabaseConfig
	pool  dbPool
	store state.Store

	// internalNumber classifies a caller-side number as an internal
	// extension for the direction fallback heuristic.
	internalNumber func(string) bool
}

// New creates a Poller. Connect must be called before polling.
func New(cfg config.DatabaseConfig, store state.Store) *Poller {
	slog.Info("CDR poller initialized", "host", cfg.Host, "database", cfg.Database)
	return &Poller{
		cfg:            cfg,
		store:          store,
		internalNumber: DefaultInternalNumber,
	}
}

// SetInternalNumberFunc replaces the internal-extension heuristic used for
// the call-direction fallback.
func (p *Poller) SetInternalNumberFunc(fn func(string) bool) {
	if fn != nil {
		p.internalNumber = fn
	}
}

// Connect opens a pooled connection to the CDR store.
func (p *Poller) Connect(ctx context.Context) error {
	slog.Info("Connecting to CDR store...")

	poolCfg, err := pgxpool.ParseConfig(p.cfg.DSN())
	if err != nil {
		return fmt.Errorf("parse cdr dsn: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MaxConnLifetime = 30 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return fmt.Errorf("connect to cdr store: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return fmt.Errorf("ping cdr store: %w", err)
	}

	p.pool = pool
	slog.Info("Connected to CDR store")
	return nil
}

// TestConnection issues a trivial query. It never returns an error; any
// failure reports false.
func (p *Poller) TestConnection(ctx context.Context) bool {
	if p.pool == nil {
		return false
	}
	if err := p.pool.Ping(ctx); err != nil {
		slog.Error("CDR store connection test failed", "error", err)
		return false
	}
	return true
}

// Disconnect releases the pool. It is idempotent and safe to call when the
// poller never connected.
func (p *Poller) Disconnect() {
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
		slog.Info("Disconnected from CDR store")
	}
}

// Poll fetches up to the configured batch size of completed call rows newer
// than the cursor (or the newest batch when the cursor is unset), in id
// order, and advances the cursor to the last row's id. A store failure
// returns a *QueryError without advancing the cursor.
func (p *Poller) Poll(ctx context.Context) ([]models.CdrRecord, error) {
	if p.pool == nil {
		return nil, &QueryError{Err: ErrNotConnected}
	}

	cursor, haveCursor := p.store.Cursor()
	slog.Debug("Polling for new CDR records", "cursor", cursor, "cursor_set", haveCursor)

	query := `
		SELECT id, call_id, start_time, end_time, duration,
		       caller_number, dest_number, extension, call_type,
		       answered, hangup_cause
		FROM calllog
		WHERE `
	var args []any
	if haveCursor {
		query += `id > $1 AND `
		args = append(args, cursor)
	}
	query += `end_time IS NOT NULL AND duration > 0
		ORDER BY id ASC
		LIMIT ` + strconv.Itoa(config.CdrBatchSize)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	defer rows.Close()

	var records []models.CdrRecord
	for rows.Next() {
		var (
			id          int64
			callID      *string
			startTime   time.Time
			endTime     time.Time
			duration    int
			caller      *string
			dest        *string
			extension   *string
			callType    *int
			answered    bool
			hangupCause *string
		)
		if err := rows.Scan(&id, &callID, &startTime, &endTime, &duration,
			&caller, &dest, &extension, &callType, &answered, &hangupCause); err != nil {
			return nil, &QueryError{Err: err}
		}
		records = append(records, p.mapRecord(id, callID, startTime, endTime, duration,
			caller, dest, extension, callType, answered, hangupCause))
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Err: err}
	}

	if len(records) > 0 {
		p.store.SetCursor(records[len(records)-1].ID)
		slog.Info("Found new CDR records", "count", len(records))
	} else {
		slog.Debug("No new CDR records found")
	}

	return records, nil
}

// LastProcessedID returns the current cursor, or 0 when unset.
func (p *Poller) LastProcessedID() int64 {
	id, _ := p.store.Cursor()
	return id
}

// ResetLastProcessedID clears the cursor so the next poll re-fetches the
// newest batch. Downstream submissions may be duplicated; the backend dedupes
// on pbxCallId.
func (p *Poller) ResetLastProcessedID() {
	slog.Warn("Resetting last processed CDR id")
	p.store.ClearCursor()
}

func (p *Poller) mapRecord(id int64, callID *string, startTime, endTime time.Time,
	duration int, caller, dest, extension *string, callType *int,
	answered bool, hangupCause *string) models.CdrRecord {

	direction := p.determineDirection(callType, deref(caller))

	// Caller's number for inbound calls, dialed number for outbound
	phone := deref(caller)
	if direction == models.DirectionOutbound {
		phone = deref(dest)
	}

	rec := models.CdrRecord{
		ID:          id,
		CallID:      deref(callID),
		StartTime:   startTime,
		EndTime:     endTime,
		Duration:    duration,
		PhoneNumber: NormalizePhoneNumber(phone),
		Extension:   deref(extension),
		Direction:   direction,
		Answered:    answered,
		HangupCause: deref(hangupCause),
	}
	if rec.CallID == "" {
		rec.CallID = strconv.FormatInt(id, 10)
	}
	return rec
}

// determineDirection derives the call direction from the 3CX call-type code
// (0 = inbound, 1 = outbound). Other codes fall back to a numbering-plan
// heuristic: an external caller implies an inbound call.
func (p *Poller) determineDirection(callType *int, caller string) string {
	if callType != nil {
		switch *callType {
		case 0:
			return models.DirectionInbound
		case 1:
			return models.DirectionOutbound
		}
	}

	if !p.internalNumber(caller) {
		return models.DirectionInbound
	}
	return models.DirectionOutbound
}

// NormalizePhoneNumber strips a leading + and all non-digit characters.
func NormalizePhoneNumber(number string) string {
	number = strings.TrimPrefix(number, "+")
	var b strings.Builder
	for _, r := range number {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
