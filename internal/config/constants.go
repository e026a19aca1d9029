// Package config provides configuration constants and defaults for the PBX bridge
package config

import "time"

// Scheduling defaults
const (
	DefaultPollingIntervalSeconds    = 30
	DefaultAlertCheckIntervalMinutes = 5
)

// Backend API retry settings
const (
	DefaultRetryAttempts     = 3
	DefaultAPITimeoutSeconds = 10
	RetryBackoffBase         = 1 * time.Second
	RetryBackoffCap          = 10 * time.Second
)

// CDR polling settings
const (
	CdrBatchSize   = 100
	DefaultCdrPort = 5432
)

// HTTP server defaults
const (
	DefaultListenAddr   = ":3000"
	DefaultConfigPath   = "./config/pbxbridge.yml"
	ShutdownGracePeriod = 30 * time.Second
)
