// Package config provides runtime configuration for the PBX bridge
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wai/pbxbridge/internal/models"
)

// DatabaseConfig holds connection settings for the 3CX CDR store.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN renders the config as a pgx connection string.
func (d DatabaseConfig) DSN() string {
	port := d.Port
	if port == 0 {
		port = DefaultCdrPort
	}
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, port, d.Database, sslmode)
}

// APIConfig holds settings for the backend call-tracking API.
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryAttempts  int    `yaml:"retry_attempts"`
}

// PbxAPIConfig holds settings for the optional 3CX management API used to
// query call group staffing. When BaseURL is empty, staffing falls back to
// the static provider.
type PbxAPIConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// BusinessHoursConfig is the weekly schedule. A nil day is a non-business day.
type BusinessHoursConfig struct {
	Timezone  string            `yaml:"timezone"`
	Monday    *models.DayWindow `yaml:"monday"`
	Tuesday   *models.DayWindow `yaml:"tuesday"`
	Wednesday *models.DayWindow `yaml:"wednesday"`
	Thursday  *models.DayWindow `yaml:"thursday"`
	Friday    *models.DayWindow `yaml:"friday"`
	Saturday  *models.DayWindow `yaml:"saturday"`
	Sunday    *models.DayWindow `yaml:"sunday"`
}

// CallGroupsConfig lists the monitored ring groups and the check cadence.
type CallGroupsConfig struct {
	AlertCheckIntervalMinutes int                     `yaml:"alert_check_interval_minutes"`
	MonitoredGroups           []models.MonitoredGroup `yaml:"monitored_groups"`
}

// StateConfig selects the poll-cursor/alert-state store. An empty Path keeps
// state in process memory only.
type StateConfig struct {
	Path string `yaml:"path"`
}

// Config is the full runtime configuration, loaded from a YAML file with
// environment variable substitution.
type Config struct {
	ListenAddr             string              `yaml:"listen_addr"`
	PollingIntervalSeconds int                 `yaml:"polling_interval_seconds"`
	CdrDatabase            DatabaseConfig      `yaml:"cdr_database"`
	API                    APIConfig           `yaml:"api"`
	PbxAPI                 PbxAPIConfig        `yaml:"pbx_api"`
	BusinessHours          BusinessHoursConfig `yaml:"business_hours"`
	CallGroups             CallGroupsConfig    `yaml:"call_groups"`
	ExtensionMapping       map[string]string   `yaml:"extension_mapping"`
	State                  StateConfig         `yaml:"state"`
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// substituteEnv expands ${VAR} and ${VAR:-default} references against the
// process environment. Unset variables without a default are left verbatim.
func substituteEnv(raw string) string {
	return envVarPattern.ReplaceAllStringFunc(raw, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		if strings.Contains(match, ":-") {
			return parts[2]
		}
		return match
	})
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(substituteEnv(string(raw))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.PollingIntervalSeconds <= 0 {
		c.PollingIntervalSeconds = DefaultPollingIntervalSeconds
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = DefaultAPITimeoutSeconds
	}
	if c.API.RetryAttempts <= 0 {
		c.API.RetryAttempts = DefaultRetryAttempts
	}
	if c.PbxAPI.TimeoutSeconds <= 0 {
		c.PbxAPI.TimeoutSeconds = DefaultAPITimeoutSeconds
	}
	if c.CallGroups.AlertCheckIntervalMinutes <= 0 {
		c.CallGroups.AlertCheckIntervalMinutes = DefaultAlertCheckIntervalMinutes
	}
	if c.ExtensionMapping == nil {
		c.ExtensionMapping = map[string]string{}
	}
}

func (c *Config) validate() error {
	var errs []string

	if c.CdrDatabase.Host == "" {
		errs = append(errs, "missing cdr_database.host")
	}
	if c.CdrDatabase.Database == "" {
		errs = append(errs, "missing cdr_database.database")
	}
	if c.CdrDatabase.Username == "" {
		errs = append(errs, "missing cdr_database.username")
	}
	if c.CdrDatabase.Password == "" {
		errs = append(errs, "missing cdr_database.password")
	}
	if c.API.BaseURL == "" {
		errs = append(errs, "missing api.base_url")
	}
	if c.BusinessHours.Timezone == "" {
		errs = append(errs, "missing business_hours.timezone")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
