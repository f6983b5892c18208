package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"crm/internal/core"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	DataBackend  string
	SQLiteDBPath string
	MySQLDSN     string

	// Redis (optional): alert cache, billing claims, event dedupe
	RedisURL string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Billing
	DefaultHourlyRate core.Money
	ProjectRates      map[int64]core.Money
	DueDays           int
	AutoRun           bool
	ClaimTTL          time.Duration

	// Alerts
	UpcomingDays       int
	InactivityDays     int
	ContractWindowDays int
	StaleUnbilledDays  int
	SuggestionRules    []string // empty selects the default rule set
	AlertsPollInterval time.Duration
	AlertsCacheTTL     time.Duration

	// Worker
	SweepInterval time.Duration
	DedupeTTL     time.Duration

	// Google Sheets ledger
	GoogleSpreadsheetID   string
	GoogleLedgerSheetName string

	LogLevel   string
	ConfigFile string

	// problems found while loading, reported by Validate
	problems []string
}

// fileConfig is the layout of the optional YAML file named by CRM_CONFIG_FILE.
type fileConfig struct {
	Billing struct {
		DefaultHourlyRate string           `yaml:"default_hourly_rate"`
		ProjectRates      map[int64]string `yaml:"project_rates"`
		DueDays           *int             `yaml:"due_days"`
		AutoRun           *bool            `yaml:"auto_run"`
	} `yaml:"billing"`
	Alerts struct {
		UpcomingDays       *int     `yaml:"upcoming_days"`
		InactivityDays     *int     `yaml:"inactivity_days"`
		ContractWindowDays *int     `yaml:"contract_window_days"`
		StaleUnbilledDays  *int     `yaml:"stale_unbilled_days"`
		Rules              []string `yaml:"rules"`
	} `yaml:"alerts"`
}

// Load builds the configuration from defaults, then the YAML file named by
// CRM_CONFIG_FILE, then environment variables. Malformed values are reported
// by Validate.
func Load() *Config {
	cfg := &Config{
		Port:         "8081",
		DataBackend:  "sqlite",
		SQLiteDBPath: "./data/crm.db",

		AMQPExchange: "crm",
		AMQPQueue:    "invoice_events",

		ProjectRates: map[int64]core.Money{},
		DueDays:      30,
		ClaimTTL:     2 * time.Minute,

		UpcomingDays:       7,
		InactivityDays:     14,
		ContractWindowDays: 30,
		StaleUnbilledDays:  30,
		AlertsPollInterval: 5 * time.Minute,
		AlertsCacheTTL:     10 * time.Minute,

		SweepInterval: time.Hour,
		DedupeTTL:     72 * time.Hour,

		LogLevel: "info",
	}

	cfg.ConfigFile = getEnv("CRM_CONFIG_FILE", "")
	if cfg.ConfigFile != "" {
		if err := cfg.applyFile(cfg.ConfigFile); err != nil {
			cfg.problems = append(cfg.problems, err.Error())
		}
	}
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file '%s': %v", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse config file '%s': %v", path, err)
	}

	if fc.Billing.DefaultHourlyRate != "" {
		c.DefaultHourlyRate = c.parseMoney("billing.default_hourly_rate", fc.Billing.DefaultHourlyRate)
	}
	for id, raw := range fc.Billing.ProjectRates {
		c.ProjectRates[id] = c.parseMoney(fmt.Sprintf("billing.project_rates[%d]", id), raw)
	}
	setIfPresent(&c.DueDays, fc.Billing.DueDays)
	if fc.Billing.AutoRun != nil {
		c.AutoRun = *fc.Billing.AutoRun
	}

	setIfPresent(&c.UpcomingDays, fc.Alerts.UpcomingDays)
	setIfPresent(&c.InactivityDays, fc.Alerts.InactivityDays)
	setIfPresent(&c.ContractWindowDays, fc.Alerts.ContractWindowDays)
	setIfPresent(&c.StaleUnbilledDays, fc.Alerts.StaleUnbilledDays)
	if len(fc.Alerts.Rules) > 0 {
		c.SuggestionRules = fc.Alerts.Rules
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.DataBackend = getEnv("DATA_BACKEND", c.DataBackend)
	c.SQLiteDBPath = getEnv("SQLITE_DB_PATH", c.SQLiteDBPath)
	c.MySQLDSN = getEnv("MYSQL_DSN", c.MySQLDSN)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)

	c.AMQPURL = getEnv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getEnv("AMQP_EXCHANGE", c.AMQPExchange)
	c.AMQPQueue = getEnv("AMQP_QUEUE", c.AMQPQueue)

	if v := os.Getenv("BILLING_DEFAULT_HOURLY_RATE"); v != "" {
		c.DefaultHourlyRate = c.parseMoney("BILLING_DEFAULT_HOURLY_RATE", v)
	}
	if v := os.Getenv("BILLING_PROJECT_RATES"); v != "" {
		rates, err := ParseProjectRates(v)
		if err != nil {
			c.problems = append(c.problems, fmt.Sprintf("invalid BILLING_PROJECT_RATES: %v", err))
		}
		for id, r := range rates {
			c.ProjectRates[id] = r
		}
	}
	c.DueDays = getEnvInt("BILLING_DUE_DAYS", c.DueDays)
	c.AutoRun = getEnvBool("BILLING_AUTO_RUN", c.AutoRun)
	c.ClaimTTL = getEnvDuration("BILLING_CLAIM_TTL", c.ClaimTTL)

	c.UpcomingDays = getEnvInt("ALERTS_UPCOMING_DAYS", c.UpcomingDays)
	c.InactivityDays = getEnvInt("ALERTS_INACTIVITY_DAYS", c.InactivityDays)
	c.ContractWindowDays = getEnvInt("ALERTS_CONTRACT_WINDOW_DAYS", c.ContractWindowDays)
	c.StaleUnbilledDays = getEnvInt("ALERTS_STALE_UNBILLED_DAYS", c.StaleUnbilledDays)
	if v := os.Getenv("ALERTS_RULES"); v != "" {
		c.SuggestionRules = splitList(v)
	}
	c.AlertsPollInterval = getEnvDuration("ALERTS_POLL_INTERVAL", c.AlertsPollInterval)
	c.AlertsCacheTTL = getEnvDuration("ALERTS_CACHE_TTL", c.AlertsCacheTTL)

	c.SweepInterval = getEnvDuration("WORKER_SWEEP_INTERVAL", c.SweepInterval)
	c.DedupeTTL = getEnvDuration("WORKER_DEDUPE_TTL", c.DedupeTTL)

	c.GoogleSpreadsheetID = getEnv("GOOGLE_SPREADSHEET_ID", c.GoogleSpreadsheetID)
	c.GoogleLedgerSheetName = getEnv("GOOGLE_LEDGER_SHEET_NAME", c.GoogleLedgerSheetName)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
}

func (c *Config) parseMoney(key, raw string) core.Money {
	m, err := core.ParseMoney(raw)
	if err != nil {
		c.problems = append(c.problems, fmt.Sprintf("invalid %s '%s': %v", key, raw, err))
		return core.Money{}
	}
	return m
}

// ParseProjectRates parses "projectID=rate" pairs separated by commas,
// e.g. "1=80.00,2=50".
func ParseProjectRates(s string) (map[int64]core.Money, error) {
	rates := map[int64]core.Money{}
	for _, pair := range splitList(s) {
		rawID, rawRate, ok := strings.Cut(pair, "=")
		if !ok {
			return rates, fmt.Errorf("expected id=rate, got '%s'", pair)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
		if err != nil || id <= 0 {
			return rates, fmt.Errorf("invalid project id '%s'", rawID)
		}
		rate, err := core.ParseMoney(strings.TrimSpace(rawRate))
		if err != nil {
			return rates, fmt.Errorf("invalid rate for project %d: %v", id, err)
		}
		rates[id] = rate
	}
	return rates, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	errors := slices.Clone(c.problems)

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"sqlite", "mysql"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "mysql":
		if c.MySQLDSN == "" {
			errors = append(errors, "MYSQL_DSN is required when using mysql backend")
		}
	}

	if c.RedisURL != "" {
		if _, err := redis.ParseURL(c.RedisURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid Redis URL: %v", err))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Billing
	if c.DefaultHourlyRate.Cents <= 0 {
		errors = append(errors, "BILLING_DEFAULT_HOURLY_RATE is required: projects without their own rate are billed at the default")
	}
	if c.DueDays < 0 || c.DueDays > 365 {
		errors = append(errors, fmt.Sprintf("invalid billing due days %d: must be between 0 and 365", c.DueDays))
	}
	if c.ClaimTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid billing claim TTL %v: must be at least 1 second", c.ClaimTTL))
	}

	// Alerts
	for _, f := range []struct {
		name string
		v    int
	}{
		{"upcoming days", c.UpcomingDays},
		{"inactivity days", c.InactivityDays},
		{"contract window days", c.ContractWindowDays},
		{"stale unbilled days", c.StaleUnbilledDays},
	} {
		if f.v < 0 {
			errors = append(errors, fmt.Sprintf("invalid alerts %s %d: must not be negative", f.name, f.v))
		}
	}
	if c.AlertsPollInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid alerts poll interval %v: must be at least 1 second", c.AlertsPollInterval))
	}
	if c.AlertsCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid alerts cache TTL %v: must not be negative", c.AlertsCacheTTL))
	}

	// Worker
	if c.SweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sweep interval %v: must be at least 1 second", c.SweepInterval))
	} else if c.SweepInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sweep interval %v: must be at most 24 hours", c.SweepInterval))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func setIfPresent(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
