package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wai/pbxbridge/internal/models"
)

// MockPoller implements CdrSource.
type MockPoller struct {
	Records []models.CdrRecord
	Err     error
	Calls   atomic.Int64

	// Block holds Poll open until released, for concurrency tests.
	Block chan struct{}
}

func (m *MockPoller) Poll(ctx context.Context) ([]models.CdrRecord, error) {
	m.Calls.Add(1)
	if m.Block != nil {
		<-m.Block
	}
	return m.Records, m.Err
}

// MockAPI implements CallAPI and records every submission.
type MockAPI struct {
	Submitted []models.PbxCallRequest
	Err       error
}

func (m *MockAPI) SubmitPbxCall(ctx context.Context, req models.PbxCallRequest) (*models.CallEntry, error) {
	m.Submitted = append(m.Submitted, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return &models.CallEntry{ID: "entry-1", PhoneNumber: req.PhoneNumber}, nil
}

// MockMapper implements EmailLookup.
type MockMapper struct {
	Mapping map[string]string
}

func (m *MockMapper) Email(extension string) (string, bool) {
	email, ok := m.Mapping[extension]
	return email, ok
}

// MockMonitor implements GroupChecker.
type MockMonitor struct {
	Checks atomic.Int64
	Block  chan struct{}
}

func (m *MockMonitor) CheckCallGroups(ctx context.Context) {
	m.Checks.Add(1)
	if m.Block != nil {
		<-m.Block
	}
}

func setupService(poller *MockPoller, api *MockAPI, mapper *MockMapper) (*Service, *MockMonitor) {
	if mapper == nil {
		mapper = &MockMapper{Mapping: map[string]string{"101": "tech@example.com"}}
	}
	monitor := &MockMonitor{}
	return New(poller, api, mapper, monitor, time.Minute, time.Minute), monitor
}

func TestRunPollCycle_ForwardsAnsweredRecord(t *testing.T) {
	endTime := time.Date(2025, 1, 6, 19, 32, 5, 0, time.UTC)
	poller := &MockPoller{Records: []models.CdrRecord{{
		ID:          42,
		CallID:      "000123",
		StartTime:   endTime.Add(-125 * time.Second),
		EndTime:     endTime,
		Duration:    125,
		PhoneNumber: "19075551234",
		Extension:   "101",
		Direction:   models.DirectionInbound,
		Answered:    true,
	}}}
	api := &MockAPI{}
	svc, _ := setupService(poller, api, nil)

	if err := svc.RunPollCycle(context.Background()); err != nil {
		t.Fatalf("RunPollCycle returned error: %v", err)
	}

	if len(api.Submitted) != 1 {
		t.Fatalf("Expected 1 submission, got %d", len(api.Submitted))
	}
	got := api.Submitted[0]
	want := models.PbxCallRequest{
		PhoneNumber:        "19075551234",
		CallDuration:       125,
		CallOwnerExtension: "101",
		CallOwnerEmail:     "tech@example.com",
		CallDirection:      models.DirectionInbound,
		Timestamp:          "2025-01-06T19:32:05Z",
		PbxCallID:          "000123",
	}
	if got != want {
		t.Errorf("Submitted request = %+v, want %+v", got, want)
	}
}

func TestRunPollCycle_SkipsUnansweredCall(t *testing.T) {
	poller := &MockPoller{Records: []models.CdrRecord{{
		ID:        43,
		CallID:    "000124",
		Extension: "101",
		Answered:  false,
	}}}
	api := &MockAPI{}
	svc, _ := setupService(poller, api, nil)

	if err := svc.RunPollCycle(context.Background()); err != nil {
		t.Fatalf("RunPollCycle returned error: %v", err)
	}
	if len(api.Submitted) != 0 {
		t.Errorf("Expected no submissions, got %d", len(api.Submitted))
	}
}

func TestRunPollCycle_SkipsUnmappedExtension(t *testing.T) {
	poller := &MockPoller{Records: []models.CdrRecord{
		{ID: 44, CallID: "000125", Extension: "999", Answered: true, EndTime: time.Now()},
		{ID: 45, CallID: "000126", Extension: "101", Answered: true, EndTime: time.Now()},
	}}
	api := &MockAPI{}
	svc, _ := setupService(poller, api, nil)

	if err := svc.RunPollCycle(context.Background()); err != nil {
		t.Fatalf("RunPollCycle returned error: %v", err)
	}
	if len(api.Submitted) != 1 {
		t.Fatalf("Expected 1 submission, got %d", len(api.Submitted))
	}
	if api.Submitted[0].CallOwnerExtension != "101" {
		t.Errorf("Submitted extension = %q, want 101", api.Submitted[0].CallOwnerExtension)
	}
}

func TestRunPollCycle_ContinuesAfterSubmissionFailure(t *testing.T) {
	poller := &MockPoller{Records: []models.CdrRecord{
		{ID: 46, CallID: "a", Extension: "101", Answered: true, EndTime: time.Now()},
		{ID: 47, CallID: "b", Extension: "101", Answered: true, EndTime: time.Now()},
	}}
	api := &MockAPI{Err: errors.New("backend unavailable")}
	svc, _ := setupService(poller, api, nil)

	if err := svc.RunPollCycle(context.Background()); err != nil {
		t.Fatalf("RunPollCycle returned error: %v", err)
	}
	if len(api.Submitted) != 2 {
		t.Errorf("Expected both records attempted, got %d", len(api.Submitted))
	}
}

func TestRunPollCycle_PropagatesPollError(t *testing.T) {
	pollErr := errors.New("connection refused")
	poller := &MockPoller{Err: pollErr}
	svc, _ := setupService(poller, &MockAPI{}, nil)

	if err := svc.RunPollCycle(context.Background()); !errors.Is(err, pollErr) {
		t.Errorf("RunPollCycle error = %v, want %v", err, pollErr)
	}
}

func TestRunPollCycle_BusyGuard(t *testing.T) {
	poller := &MockPoller{Block: make(chan struct{})}
	svc, _ := setupService(poller, &MockAPI{}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.RunPollCycle(context.Background())
	}()

	// Wait until the first cycle is inside Poll.
	for i := 0; poller.Calls.Load() == 0 && i < 100; i++ {
		time.Sleep(time.Millisecond)
	}

	if err := svc.RunPollCycle(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Concurrent RunPollCycle error = %v, want ErrBusy", err)
	}

	close(poller.Block)
	wg.Wait()

	if err := svc.RunPollCycle(context.Background()); err != nil {
		t.Errorf("RunPollCycle after release returned error: %v", err)
	}
}

func TestRunAlertCheck(t *testing.T) {
	svc, monitor := setupService(&MockPoller{}, &MockAPI{}, nil)

	if err := svc.RunAlertCheck(context.Background()); err != nil {
		t.Fatalf("RunAlertCheck returned error: %v", err)
	}
	if got := monitor.Checks.Load(); got != 1 {
		t.Errorf("Checks = %d, want 1", got)
	}
}

func TestRunAlertCheck_BusyGuard(t *testing.T) {
	svc, monitor := setupService(&MockPoller{}, &MockAPI{}, nil)
	monitor.Block = make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.RunAlertCheck(context.Background())
	}()

	for i := 0; monitor.Checks.Load() == 0 && i < 100; i++ {
		time.Sleep(time.Millisecond)
	}

	if err := svc.RunAlertCheck(context.Background()); !errors.Is(err, ErrBusy) {
		t.Errorf("Concurrent RunAlertCheck error = %v, want ErrBusy", err)
	}

	close(monitor.Block)
	wg.Wait()
}

func TestBuildCallRequest_CallIDFallback(t *testing.T) {
	record := models.CdrRecord{
		ID:       77,
		Duration: 30,
		EndTime:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	req := buildCallRequest(record, "owner@example.com")
	if req.PbxCallID != "77" {
		t.Errorf("PbxCallID = %q, want 77", req.PbxCallID)
	}
	if req.Timestamp != "2025-03-01T12:00:00Z" {
		t.Errorf("Timestamp = %q", req.Timestamp)
	}
}

func TestStart_LoopsRunAndStopOnCancel(t *testing.T) {
	poller := &MockPoller{}
	api := &MockAPI{}
	mapper := &MockMapper{Mapping: map[string]string{}}
	monitor := &MockMonitor{}
	svc := New(poller, api, mapper, monitor, 10*time.Millisecond, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	if poller.Calls.Load() == 0 {
		t.Error("Expected poll loop to have ticked")
	}
	if monitor.Checks.Load() == 0 {
		t.Error("Expected alert loop to have ticked")
	}
}
