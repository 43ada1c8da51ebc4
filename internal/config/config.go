// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/buzzwatch.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Table names
// --------------------------------------------------------------------------

const (
	DefaultYahooTable      = "yahoo_buzz"
	DefaultYahooAlertTable = "yahoo_alerts"
	DefaultESPNTable       = "espn_free_agents"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	LogLevel slog.Level

	// Local files
	DataDir       string
	ScreenshotDir string

	// Yahoo buzz index
	YahooBuzzURL       string
	YahooStoreURL      string
	YahooTable         string
	YahooAlertAdds     float64
	YahooAlertStoreURL string
	YahooAlertTable    string
	RequestsPerMinute  int

	// ESPN free agents
	ESPNLeagueID          string
	ESPNUsername          string
	ESPNPassword          string
	ESPNStoreURL          string
	ESPNTable             string
	ESPNRosteredThreshold float64
	ESPNPageWait          time.Duration
	ChromePath            string
	ChromeHeadless        bool

	// Alerts
	NotifyCooldown time.Duration
	AlertRecipient string
	SMTPHost       string
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	SMTPFrom       string

	// Change detection
	CompareMode string // position or key

	// Scheduling
	ScheduleStartHour   int
	ScheduleEndHour     int
	ScheduleStepMinutes int
	ESPNSchedule        string
	ScheduleLocation    *time.Location

	// Database pools (postgres and mysql stores)
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Cache
	CacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	level, err := parseLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	loc := time.Local
	if tz := envOr("SCHEDULE_TIMEZONE", ""); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("SCHEDULE_TIMEZONE: %w", err)
		}
	}

	dataDir := envOr("DATA_DIR", "data")

	cfg := &Config{
		LogLevel: level,

		DataDir:       dataDir,
		ScreenshotDir: envOr("SCREENSHOT_DIR", "screenshots"),

		YahooBuzzURL:       envOr("YAHOO_BUZZ_URL", "https://basketball.fantasysports.yahoo.com/nba/buzzindex"),
		YahooStoreURL:      envOr("YAHOO_STORE_URL", "csv://"+filepath.Join(dataDir, DefaultYahooTable+".csv")),
		YahooTable:         envOr("YAHOO_TABLE", DefaultYahooTable),
		YahooAlertAdds:     envFloat("YAHOO_ALERT_ADDS", 0),
		YahooAlertStoreURL: envOr("YAHOO_ALERT_STORE_URL", "csv://"+filepath.Join(dataDir, DefaultYahooAlertTable+".csv")),
		YahooAlertTable:    envOr("YAHOO_ALERT_TABLE", DefaultYahooAlertTable),
		RequestsPerMinute:  envInt("FETCH_REQUESTS_PER_MINUTE", 6),

		ESPNLeagueID:          envOr("ESPN_LEAGUE_ID", "1079777210"),
		ESPNUsername:          envOr("ESPN_USERNAME", ""),
		ESPNPassword:          envOr("ESPN_PASSWORD", ""),
		ESPNStoreURL:          envOr("ESPN_STORE_URL", "csv://"+filepath.Join(dataDir, DefaultESPNTable+".csv")),
		ESPNTable:             envOr("ESPN_TABLE", DefaultESPNTable),
		ESPNRosteredThreshold: envFloat("ESPN_ROSTERED_THRESHOLD", 30),
		ESPNPageWait:          time.Duration(envInt("ESPN_PAGE_WAIT_SECONDS", 5)) * time.Second,
		ChromePath:            envOr("CHROME_PATH", ""),
		ChromeHeadless:        envBool("CHROME_HEADLESS", true),

		NotifyCooldown: time.Duration(envInt("NOTIFY_COOLDOWN_DAYS", 7)) * 24 * time.Hour,
		AlertRecipient: envOr("ALERT_RECIPIENT", ""),
		SMTPHost:       envOr("SMTP_HOST", ""),
		SMTPPort:       envInt("SMTP_PORT", 587),
		SMTPUsername:   envOr("SMTP_USERNAME", ""),
		SMTPPassword:   envOr("SMTP_PASSWORD", ""),
		SMTPFrom:       envOr("SMTP_FROM", ""),

		CompareMode: envOr("DETECT_COMPARE_MODE", "position"),

		ScheduleStartHour:   envInt("SCHEDULE_START_HOUR", 5),
		ScheduleEndHour:     envInt("SCHEDULE_END_HOUR", 23),
		ScheduleStepMinutes: envInt("SCHEDULE_STEP_MINUTES", 5),
		ESPNSchedule:        envOr("ESPN_SCHEDULE", "@7:00,17:00"),
		ScheduleLocation:    loc,

		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 5),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CacheEnabled: envBool("CACHE_ENABLED", true),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CompareMode {
	case "position", "key":
	default:
		return fmt.Errorf("DETECT_COMPARE_MODE must be position or key, got %q", c.CompareMode)
	}
	if c.ScheduleStartHour < 0 || c.ScheduleEndHour > 23 || c.ScheduleStartHour > c.ScheduleEndHour {
		return fmt.Errorf("schedule hours out of range: %d-%d", c.ScheduleStartHour, c.ScheduleEndHour)
	}
	if c.ScheduleStepMinutes < 1 || c.ScheduleStepMinutes > 60 {
		return fmt.Errorf("SCHEDULE_STEP_MINUTES must be 1-60, got %d", c.ScheduleStepMinutes)
	}
	if c.NotifyCooldown <= 0 {
		return fmt.Errorf("NOTIFY_COOLDOWN_DAYS must be at least 1")
	}
	return nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// NewLogger builds the process logger at the configured level.
func (c *Config) NewLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: c.LogLevel}))
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
