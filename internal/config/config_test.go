package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "csv://"+filepath.Join("data", "yahoo_buzz.csv"), cfg.YahooStoreURL)
	assert.Equal(t, DefaultESPNTable, cfg.ESPNTable)
	assert.Equal(t, 30.0, cfg.ESPNRosteredThreshold)
	assert.Equal(t, 7*24*time.Hour, cfg.NotifyCooldown)
	assert.Equal(t, "position", cfg.CompareMode)
	assert.Equal(t, "@7:00,17:00", cfg.ESPNSchedule)
	assert.Equal(t, 5, cfg.ScheduleStartHour)
	assert.Equal(t, 23, cfg.ScheduleEndHour)
	assert.Equal(t, "1079777210", cfg.ESPNLeagueID)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATA_DIR", "/var/lib/buzzwatch")
	t.Setenv("ESPN_STORE_URL", "sqlite:///tmp/espn.db")
	t.Setenv("ESPN_ROSTERED_THRESHOLD", "42.5")
	t.Setenv("NOTIFY_COOLDOWN_DAYS", "3")
	t.Setenv("DETECT_COMPARE_MODE", "key")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("SCHEDULE_TIMEZONE", "America/New_York")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "csv:///var/lib/buzzwatch/yahoo_buzz.csv", cfg.YahooStoreURL)
	assert.Equal(t, "sqlite:///tmp/espn.db", cfg.ESPNStoreURL)
	assert.Equal(t, 42.5, cfg.ESPNRosteredThreshold)
	assert.Equal(t, 3*24*time.Hour, cfg.NotifyCooldown)
	assert.Equal(t, "key", cfg.CompareMode)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)
	assert.Equal(t, "America/New_York", cfg.ScheduleLocation.String())
	assert.False(t, cfg.RateLimitEnabled)
}

func TestLoadInvalid(t *testing.T) {
	cases := map[string]string{
		"LOG_LEVEL":             "loud",
		"DETECT_COMPARE_MODE":   "fuzzy",
		"SCHEDULE_END_HOUR":     "24",
		"SCHEDULE_STEP_MINUTES": "0",
		"SCHEDULE_TIMEZONE":     "Mars/Olympus",
		"NOTIFY_COOLDOWN_DAYS":  "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestEnvHelpersIgnoreGarbage(t *testing.T) {
	t.Setenv("BUZZWATCH_TEST_INT", "abc")
	t.Setenv("BUZZWATCH_TEST_FLOAT", "1,5")
	t.Setenv("BUZZWATCH_TEST_BOOL", "maybe")
	assert.Equal(t, 7, envInt("BUZZWATCH_TEST_INT", 7))
	assert.Equal(t, 2.5, envFloat("BUZZWATCH_TEST_FLOAT", 2.5))
	assert.True(t, envBool("BUZZWATCH_TEST_BOOL", true))
}
