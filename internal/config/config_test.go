package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-data-generator/internal/store"
	"github.com/i474232898/weather-data-generator/internal/weather"
)

var envKeys = []string{
	"PORT", "LOG_LEVEL", "LOG_FORMAT", "AUTO_START",
	"STORE_DRIVER", "MEMORY_MAX_HISTORY",
	"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD", "DB_PASSWORD_FILE", "DB_SSLMODE", "DB_AUTO_MIGRATE",
	"BACKFILL_DURATION", "BACKFILL_INTERVAL", "BACKFILL_START", "BACKFILL_BATCH_SIZE",
	"LIVE_TICK", "TIMEZONE", "RETENTION", "PRUNE_INTERVAL",
	"STORE_MAX_RETRIES", "STORE_RETRY_INITIAL", "STORE_RETRY_MAX",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func setDB(t *testing.T) {
	t.Helper()
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_NAME", "PostgreSQL_IoT_Weather_DB")
	t.Setenv("DB_USER", "iot")
	t.Setenv("DB_PASSWORD", "secret")
}

func requireConfigError(t *testing.T, err error, key string) {
	t.Helper()
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, key, cerr.Key)
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	setDB(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.False(t, cfg.AutoStart)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, "disable", cfg.DB.SSLMode)
	assert.Equal(t, weather.DefaultBackfillDuration, cfg.BackfillDuration)
	assert.Equal(t, weather.DefaultBackfillInterval, cfg.BackfillInterval)
	assert.Nil(t, cfg.BackfillStart)
	assert.Equal(t, weather.DefaultBatchSize, cfg.BackfillBatchSize)
	assert.Equal(t, time.Second, cfg.LiveTick)
	assert.Equal(t, time.Duration(0), cfg.Retention)
	assert.Equal(t, time.Hour, cfg.PruneInterval)
	assert.Equal(t, store.DefaultBackoff, cfg.StoreRetry)
	require.NotNil(t, cfg.Location)
}

func TestFromEnv_Overrides(t *testing.T) {
	start := time.Now().Add(-2 * time.Hour).UTC().Truncate(time.Second)
	clearEnv(t)
	setDB(t)
	t.Setenv("PORT", "9090")
	t.Setenv("AUTO_START", "true")
	t.Setenv("BACKFILL_DURATION", "1h")
	t.Setenv("BACKFILL_INTERVAL", "1m")
	t.Setenv("BACKFILL_START", start.Format(time.RFC3339))
	t.Setenv("LIVE_TICK", "500ms")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("RETENTION", "720h")
	t.Setenv("STORE_MAX_RETRIES", "5")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.AutoStart)
	assert.Equal(t, time.Hour, cfg.BackfillDuration)
	assert.Equal(t, time.Minute, cfg.BackfillInterval)
	require.NotNil(t, cfg.BackfillStart)
	assert.True(t, cfg.BackfillStart.Equal(start))
	assert.Equal(t, 500*time.Millisecond, cfg.LiveTick)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 720*time.Hour, cfg.Retention)
	assert.Equal(t, 5, cfg.StoreRetry.MaxRetries)
}

func TestFromEnv_MemoryDriverNeedsNoDatabase(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
}

func TestFromEnv_PostgresRequiresHost(t *testing.T) {
	clearEnv(t)
	setDB(t)
	t.Setenv("DB_HOST", "")

	_, err := FromEnv()
	requireConfigError(t, err, "DB_HOST")
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"STORE_DRIVER", "sqlite"},
		{"DB_PORT", "not-a-port"},
		{"DB_PORT", "70000"},
		{"BACKFILL_INTERVAL", "0s"},
		{"BACKFILL_INTERVAL", "soon"},
		{"BACKFILL_DURATION", "-1h"},
		{"BACKFILL_START", "yesterday"},
		{"BACKFILL_BATCH_SIZE", "0"},
		{"LIVE_TICK", "0s"},
		{"TIMEZONE", "Mars/Olympus_Mons"},
		{"LOG_FORMAT", "xml"},
		{"AUTO_START", "maybe"},
		{"PORT", "http"},
		{"STORE_MAX_RETRIES", "-1"},
		{"RETENTION", "24h"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			setDB(t)
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()
			requireConfigError(t, err, tt.key)
		})
	}
}

func TestFromEnv_RetentionCoversBackfill(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("RETENTION", "168h")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, cfg.BackfillDuration, cfg.Retention)

	t.Setenv("BACKFILL_DURATION", "1h")
	t.Setenv("RETENTION", "24h")
	t.Setenv("BACKFILL_START", time.Now().Add(-48*time.Hour).UTC().Format(time.RFC3339))

	_, err = FromEnv()
	requireConfigError(t, err, "RETENTION")
}

func TestFromEnv_PasswordFile(t *testing.T) {
	clearEnv(t)
	setDB(t)
	path := filepath.Join(t.TempDir(), "db_password")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))
	t.Setenv("DB_PASSWORD_FILE", path)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.DB.Password)
	assert.Equal(t, "from-file", cfg.Postgres().Password)
}

func TestFromEnv_MissingPasswordFile(t *testing.T) {
	clearEnv(t)
	setDB(t)
	t.Setenv("DB_PASSWORD_FILE", filepath.Join(t.TempDir(), "missing"))

	_, err := FromEnv()
	requireConfigError(t, err, "DB_PASSWORD_FILE")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWindow(t *testing.T) {
	now := time.Date(2024, 6, 8, 12, 0, 0, 0, time.UTC)
	cfg := &AppConfig{BackfillDuration: 24 * time.Hour, BackfillInterval: time.Minute}

	w := cfg.Window(now)
	assert.True(t, w.Start.Equal(now.Add(-24*time.Hour)))
	assert.True(t, w.End().Equal(now))
	assert.Equal(t, 1440, w.Steps())

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg.BackfillStart = &start
	w = cfg.Window(now)
	assert.True(t, w.Start.Equal(start))
}

func TestParseTime(t *testing.T) {
	ts, err := parseTime("1700000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts.Unix())

	_, err = parseTime("")
	assert.Error(t, err)
}
