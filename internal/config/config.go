package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-data-generator/internal/store"
	"github.com/i474232898/weather-data-generator/internal/weather"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// ConfigError reports missing or malformed configuration. It is fatal: the
// generator never starts.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// DBConfig holds the database connection settings.
type DBConfig struct {
	Host        string `env:"DB_HOST" validate:"required"`
	Port        int    `env:"DB_PORT" validate:"min=1,max=65535"`
	Name        string `env:"DB_NAME" validate:"required"`
	User        string `env:"DB_USER" validate:"required"`
	Password    string `env:"DB_PASSWORD"`
	SSLMode     string `env:"DB_SSLMODE" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE"`
}

type AppConfig struct {
	Port      string `env:"PORT" validate:"required,numeric"`
	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT" validate:"omitempty,oneof=text json"`

	// AutoStart starts generation when the process comes up.
	AutoStart bool `env:"AUTO_START"`

	StoreDriver string   `env:"STORE_DRIVER" validate:"oneof=postgres memory"`
	DB          DBConfig `validate:"-"`

	// MemoryMaxHistory caps the memory driver (0 = unlimited).
	MemoryMaxHistory int `env:"MEMORY_MAX_HISTORY" validate:"min=0"`

	// Historical backfill. A nil BackfillStart means "BackfillDuration before
	// the generator starts".
	BackfillDuration  time.Duration `env:"BACKFILL_DURATION" validate:"min=0"`
	BackfillInterval  time.Duration `env:"BACKFILL_INTERVAL" validate:"gt=0"`
	BackfillStart     *time.Time    `env:"BACKFILL_START"`
	BackfillBatchSize int           `env:"BACKFILL_BATCH_SIZE" validate:"min=1"`

	LiveTick time.Duration  `env:"LIVE_TICK" validate:"gt=0"`
	Location *time.Location `env:"TIMEZONE" validate:"-"`

	// Retention prunes samples older than this (0 = keep everything).
	Retention     time.Duration `env:"RETENTION" validate:"min=0"`
	PruneInterval time.Duration `env:"PRUNE_INTERVAL" validate:"gt=0"`

	StoreRetry store.BackoffConfig `validate:"-"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("env"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.Port = getenvDefault("PORT", "8081")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "text")
	if cfg.AutoStart, err = getenvBool("AUTO_START", false); err != nil {
		return nil, err
	}

	cfg.StoreDriver = strings.ToLower(getenvDefault("STORE_DRIVER", DriverPostgres))
	if cfg.MemoryMaxHistory, err = getenvInt("MEMORY_MAX_HISTORY", 0); err != nil {
		return nil, err
	}
	if cfg.DB, err = loadDB(); err != nil {
		return nil, err
	}

	// Backfill window: default one week at one-second granularity.
	if cfg.BackfillDuration, err = getenvDuration("BACKFILL_DURATION", weather.DefaultBackfillDuration); err != nil {
		return nil, err
	}
	if cfg.BackfillInterval, err = getenvDuration("BACKFILL_INTERVAL", weather.DefaultBackfillInterval); err != nil {
		return nil, err
	}
	if v := os.Getenv("BACKFILL_START"); v != "" {
		start, err := parseTime(v)
		if err != nil {
			return nil, &ConfigError{Key: "BACKFILL_START", Err: err}
		}
		cfg.BackfillStart = &start
	}
	if cfg.BackfillBatchSize, err = getenvInt("BACKFILL_BATCH_SIZE", weather.DefaultBatchSize); err != nil {
		return nil, err
	}
	if cfg.LiveTick, err = getenvDuration("LIVE_TICK", time.Second); err != nil {
		return nil, err
	}

	tz := getenvDefault("TIMEZONE", "Local")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, &ConfigError{Key: "TIMEZONE", Err: err}
	}

	if cfg.Retention, err = getenvDuration("RETENTION", 0); err != nil {
		return nil, err
	}
	if cfg.PruneInterval, err = getenvDuration("PRUNE_INTERVAL", time.Hour); err != nil {
		return nil, err
	}

	cfg.StoreRetry = store.DefaultBackoff
	if cfg.StoreRetry.MaxRetries, err = getenvInt("STORE_MAX_RETRIES", store.DefaultBackoff.MaxRetries); err != nil {
		return nil, err
	}
	if cfg.StoreRetry.InitialInterval, err = getenvDuration("STORE_RETRY_INITIAL", store.DefaultBackoff.InitialInterval); err != nil {
		return nil, err
	}
	if cfg.StoreRetry.MaxInterval, err = getenvDuration("STORE_RETRY_MAX", store.DefaultBackoff.MaxInterval); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDB() (DBConfig, error) {
	db := DBConfig{
		Host:     os.Getenv("DB_HOST"),
		Name:     os.Getenv("DB_NAME"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		SSLMode:  getenvDefault("DB_SSLMODE", "disable"),
	}
	var err error
	if db.Port, err = getenvInt("DB_PORT", 5432); err != nil {
		return db, err
	}
	if db.AutoMigrate, err = getenvBool("DB_AUTO_MIGRATE", false); err != nil {
		return db, err
	}

	// A password file (e.g. a mounted secret) wins over DB_PASSWORD.
	if path := os.Getenv("DB_PASSWORD_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return db, &ConfigError{Key: "DB_PASSWORD_FILE", Err: err}
		}
		db.Password = strings.TrimRight(string(b), "\r\n")
	}
	return db, nil
}

// Validate checks the configuration. Database settings are only required by
// the postgres driver.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return toConfigError(err)
	}
	if c.StoreDriver == DriverPostgres {
		if err := validate.Struct(c.DB); err != nil {
			return toConfigError(err)
		}
	}
	if c.StoreRetry.MaxRetries < 0 {
		return &ConfigError{Key: "STORE_MAX_RETRIES", Err: errors.New("must not be negative")}
	}
	if c.StoreRetry.InitialInterval <= 0 {
		return &ConfigError{Key: "STORE_RETRY_INITIAL", Err: errors.New("must be positive")}
	}

	// Pruning must not eat the backfilled window.
	if c.Retention > 0 {
		if c.Retention < c.BackfillDuration {
			return &ConfigError{Key: "RETENTION", Err: fmt.Errorf("%s is shorter than the %s backfill window", c.Retention, c.BackfillDuration)}
		}
		if c.BackfillStart != nil && c.BackfillStart.Before(time.Now().Add(-c.Retention)) {
			return &ConfigError{Key: "RETENTION", Err: fmt.Errorf("backfill start %s is older than %s", c.BackfillStart.Format(time.RFC3339), c.Retention)}
		}
	}
	return nil
}

// Window returns the backfill window for a generator started at now.
func (c *AppConfig) Window(now time.Time) weather.Window {
	start := now.Add(-c.BackfillDuration)
	if c.BackfillStart != nil {
		start = *c.BackfillStart
	}
	return weather.Window{
		Start:    start,
		Duration: c.BackfillDuration,
		Interval: c.BackfillInterval,
	}
}

// Postgres returns the store settings for the postgres driver.
func (c *AppConfig) Postgres() store.PostgresConfig {
	return store.PostgresConfig{
		Host:           c.DB.Host,
		Port:           c.DB.Port,
		User:           c.DB.User,
		Password:       c.DB.Password,
		Name:           c.DB.Name,
		SSLMode:        c.DB.SSLMode,
		ConnectTimeout: 10 * time.Second,
		AutoMigrate:    c.DB.AutoMigrate,
		Backoff:        c.StoreRetry,
	}
}

func toConfigError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fmt.Sprintf("failed %q validation", fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("failed %q validation (%s)", fe.Tag(), fe.Param())
		}
		if fe.Tag() == "required" {
			msg = "is required"
		}
		return &ConfigError{Key: fe.Field(), Err: errors.New(msg)}
	}
	return &ConfigError{Key: "config", Err: err}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &ConfigError{Key: key, Err: err}
	}
	return n, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &ConfigError{Key: key, Err: err}
	}
	return b, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &ConfigError{Key: key, Err: err}
	}
	return d, nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
