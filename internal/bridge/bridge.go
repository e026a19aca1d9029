// Package bridge runs the core forwarding loops: CDR polling with submission
// to the backend API, and periodic call group staffing checks.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/wai/pbxbridge/internal/models"
)

// ErrBusy is returned when a cycle is requested while the same cycle is
// already in flight. Each loop admits one execution at a time so a manual
// trigger cannot interleave with a scheduled tick over the shared cursor.
var ErrBusy = errors.New("cycle already running")

// CdrSource polls the CDR store for new records.
type CdrSource interface {
	Poll(ctx context.Context) ([]models.CdrRecord, error)
}

// CallAPI submits forwarded calls to the backend.
type CallAPI interface {
	SubmitPbxCall(ctx context.Context, req models.PbxCallRequest) (*models.CallEntry, error)
}

// EmailLookup resolves a PBX extension to its owner's email.
type EmailLookup interface {
	Email(extension string) (string, bool)
}

// GroupChecker sweeps the monitored call groups.
type GroupChecker interface {
	CheckCallGroups(ctx context.Context)
}

// Service owns the two periodic loops and the record transform between them.
type Service struct {
	poller  CdrSource
	api     CallAPI
	mapper  EmailLookup
	monitor GroupChecker

	pollInterval  time.Duration
	alertInterval time.Duration

	pollMu  sync.Mutex
	alertMu sync.Mutex
}

// New creates the bridge service.
func New(poller CdrSource, api CallAPI, mapper EmailLookup, monitor GroupChecker,
	pollInterval, alertInterval time.Duration) *Service {

	return &Service{
		poller:        poller,
		api:           api,
		mapper:        mapper,
		monitor:       monitor,
		pollInterval:  pollInterval,
		alertInterval: alertInterval,
	}
}

// Start launches the CDR polling and alert check loops. Both stop when ctx is
// cancelled; in-flight work is not cancelled beyond transport timeouts.
func (s *Service) Start(ctx context.Context) {
	slog.Info("Starting scheduled jobs",
		"poll_interval", s.pollInterval, "alert_interval", s.alertInterval)

	go s.runLoop(ctx, "cdr poll", s.pollInterval, s.RunPollCycle)
	go s.runLoop(ctx, "call group check", s.alertInterval, s.RunAlertCheck)
}

// runLoop ticks until ctx is cancelled. Errors are logged and swallowed; the
// loop must keep running indefinitely.
func (s *Service) runLoop(ctx context.Context, name string, interval time.Duration,
	fn func(context.Context) error) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduled job stopped", "job", name)
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				if errors.Is(err, ErrBusy) {
					slog.Debug("Previous cycle still running, skipping tick", "job", name)
					continue
				}
				slog.Error("Scheduled job failed", "job", name, "error", err)
			}
		}
	}
}

// RunPollCycle polls the CDR store once and forwards each new record. A store
// query failure aborts the cycle without advancing the cursor; per-record
// failures are logged and skipped.
func (s *Service) RunPollCycle(ctx context.Context) error {
	if !s.pollMu.TryLock() {
		return ErrBusy
	}
	defer s.pollMu.Unlock()

	records, err := s.poller.Poll(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	slog.Info("Processing new CDR records", "count", len(records))
	for _, record := range records {
		s.processRecord(ctx, record)
	}
	return nil
}

// processRecord forwards a single answered record with a resolvable owner.
// Best effort: failures drop the record, there is no requeue.
func (s *Service) processRecord(ctx context.Context, record models.CdrRecord) {
	if !record.Answered {
		slog.Debug("Skipping unanswered call", "call_id", record.CallID)
		return
	}

	email, ok := s.mapper.Email(record.Extension)
	if !ok {
		slog.Warn("No email mapping for extension, skipping call",
			"extension", record.Extension, "call_id", record.CallID)
		return
	}

	if _, err := s.api.SubmitPbxCall(ctx, buildCallRequest(record, email)); err != nil {
		slog.Error("Failed to submit CDR record",
			"call_id", record.CallID, "error", err)
		return
	}

	slog.Info("CDR record forwarded",
		"call_id", record.CallID, "extension", record.Extension, "email", email)
}

// RunAlertCheck runs one call group sweep.
func (s *Service) RunAlertCheck(ctx context.Context) error {
	if !s.alertMu.TryLock() {
		return ErrBusy
	}
	defer s.alertMu.Unlock()

	s.monitor.CheckCallGroups(ctx)
	return nil
}

// buildCallRequest maps an answered CDR record with a resolved email into the
// backend payload.
func buildCallRequest(record models.CdrRecord, email string) models.PbxCallRequest {
	callID := record.CallID
	if callID == "" {
		callID = strconv.FormatInt(record.ID, 10)
	}

	return models.PbxCallRequest{
		PhoneNumber:        record.PhoneNumber,
		CallDuration:       record.Duration,
		CallOwnerExtension: record.Extension,
		CallOwnerEmail:     email,
		CallDirection:      record.Direction,
		CallGroupID:        record.CallGroupID,
		Timestamp:          record.EndTime.UTC().Format(time.RFC3339),
		PbxCallID:          callID,
	}
}
