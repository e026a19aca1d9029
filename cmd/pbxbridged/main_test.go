// Package main is the entry point for the PBX bridge daemon
package main

import (
	"testing"
	"time"

	"github.com/wai/pbxbridge/internal/config"
)

// TestDefaultIntervals verifies the scheduling defaults used at startup.
func TestDefaultIntervals(t *testing.T) {
	pollInterval := time.Duration(config.DefaultPollingIntervalSeconds) * time.Second
	alertInterval := time.Duration(config.DefaultAlertCheckIntervalMinutes) * time.Minute

	if pollInterval < time.Second {
		t.Error("Poll interval too short")
	}
	if alertInterval < time.Minute {
		t.Error("Alert check interval too short")
	}
	if config.ShutdownGracePeriod < 10*time.Second {
		t.Error("Shutdown grace period too short")
	}

	t.Logf("Intervals - poll: %v, alert check: %v", pollInterval, alertInterval)
}

// TestRetryDefaults verifies the backend retry policy constants.
func TestRetryDefaults(t *testing.T) {
	if config.DefaultRetryAttempts < 1 {
		t.Error("Retry attempts must allow at least one attempt")
	}
	if config.RetryBackoffBase <= 0 {
		t.Error("Backoff base must be positive")
	}
	if config.RetryBackoffCap < config.RetryBackoffBase {
		t.Error("Backoff cap below backoff base")
	}
}

// TestBatchSize verifies the CDR fetch batch size stays bounded.
func TestBatchSize(t *testing.T) {
	if config.CdrBatchSize < 1 || config.CdrBatchSize > 1000 {
		t.Errorf("CDR batch size %d out of expected range", config.CdrBatchSize)
	}
}
