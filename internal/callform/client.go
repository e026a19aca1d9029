// Package callform is the outbound client for the call-tracking backend API.
// It owns the retry/backoff policy and classifies failures as retryable or
// terminal.
package callform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wai/pbxbridge/internal/config"
	"github.com/wai/pbxbridge/internal/models"
)

// ClientError is a terminal 4xx response from the backend. Retrying cannot
// help; the request itself is malformed or rejected.
type ClientError struct {
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("backend rejected request: status %d: %s", e.StatusCode, e.Body)
}

// RetriesExhaustedError wraps the last failure after all retry attempts.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("backend call failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }

// Client talks to the backend call-tracking API with exponential backoff.
type Client struct {
	http          *resty.Client
	retryAttempts int

	// sleep is swapped out in tests to observe backoff delays.
	sleep func(time.Duration)
}

// NewClient creates a backend API client from configuration.
func NewClient(cfg config.APIConfig) *Client {
	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second).
		SetHeader("Content-Type", "application/json")

	slog.Info("Backend API client configured",
		"base_url", cfg.BaseURL,
		"timeout_seconds", cfg.TimeoutSeconds,
		"retry_attempts", cfg.RetryAttempts)

	return &Client{
		http:          http,
		retryAttempts: cfg.RetryAttempts,
		sleep:         time.Sleep,
	}
}

// SubmitPbxCall posts a PBX call payload to /calls/from-pbx.
func (c *Client) SubmitPbxCall(ctx context.Context, req models.PbxCallRequest) (*models.CallEntry, error) {
	slog.Info("Submitting PBX call to backend", "pbx_call_id", req.PbxCallID)

	var entry models.CallEntry
	err := c.withRetry(ctx, "submit pbx call", func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&entry).
			Post("/calls/from-pbx")
		return classify(resp, err)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("PBX call submitted", "pbx_call_id", req.PbxCallID, "call_entry_id", entry.ID)
	return &entry, nil
}

// SubmitCallGroupAlert posts an alert to /alerts/call-groups.
func (c *Client) SubmitCallGroupAlert(ctx context.Context, req models.CallGroupAlertRequest) (*models.CallGroupAlert, error) {
	slog.Info("Submitting call group alert to backend",
		"call_group_id", req.CallGroupID, "alert_type", req.AlertType)

	var alert models.CallGroupAlert
	err := c.withRetry(ctx, "submit call group alert", func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			SetResult(&alert).
			Post("/alerts/call-groups")
		return classify(resp, err)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Call group alert submitted", "call_group_id", req.CallGroupID, "alert_id", alert.ID)
	return &alert, nil
}

// ActiveAlerts fetches currently active call group alerts.
func (c *Client) ActiveAlerts(ctx context.Context) ([]models.CallGroupAlert, error) {
	var alerts []models.CallGroupAlert
	err := c.withRetry(ctx, "fetch active alerts", func() error {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParam("active", "true").
			SetResult(&alerts).
			Get("/alerts/call-groups")
		return classify(resp, err)
	})
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

// HealthCheck probes the backend health endpoint. It never returns an error;
// an unreachable backend simply reports unhealthy.
func (c *Client) HealthCheck(ctx context.Context) bool {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		slog.Error("Backend health check failed", "error", err)
		return false
	}
	if resp.IsError() {
		slog.Error("Backend health check failed", "status", resp.StatusCode())
		return false
	}
	return true
}

// classify turns a resty response into nil, a terminal *ClientError, or a
// retryable error.
func classify(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	status := resp.StatusCode()
	if status >= 400 && status < 500 {
		return &ClientError{StatusCode: status, Body: resp.String()}
	}
	if resp.IsError() {
		return fmt.Errorf("backend returned status %d: %s", status, resp.String())
	}
	return nil
}

// withRetry runs fn up to the configured attempt count with exponential
// backoff: 1s, 2s, 4s, 8s, capped at 10s. A *ClientError is surfaced
// immediately without retrying.
func (c *Client) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var clientErr *ClientError
		if errors.As(lastErr, &clientErr) {
			slog.Error("Client error, not retrying",
				"operation", op, "status", clientErr.StatusCode)
			return lastErr
		}

		if attempt < c.retryAttempts {
			delay := backoffDelay(attempt)
			slog.Warn("Backend call failed, retrying",
				"operation", op,
				"attempt", attempt,
				"max_attempts", c.retryAttempts,
				"delay", delay,
				"error", lastErr)
			c.sleep(delay)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	slog.Error("Backend call failed after all retry attempts",
		"operation", op, "attempts", c.retryAttempts, "error", lastErr)
	return &RetriesExhaustedError{Attempts: c.retryAttempts, Last: lastErr}
}

// backoffDelay computes the delay before the attempt+1-th try. The shift is
// clamped so a large configured attempt count cannot overflow the duration.
func backoffDelay(attempt int) time.Duration {
	shift := uint(attempt - 1)
	if shift > 16 {
		return config.RetryBackoffCap
	}
	delay := config.RetryBackoffBase << shift
	if delay > config.RetryBackoffCap {
		delay = config.RetryBackoffCap
	}
	return delay
}
