package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/i474232898/weather-data-generator/internal/weather"
)

// Table describes where one weather variable is stored. Every table is an
// append-only series of (time_recorded, value) rows.
type Table struct {
	Name        string
	ValueColumn string
	Unit        string
}

var tables = map[weather.Field]Table{
	weather.Temperature:    {Name: "temperature_data", ValueColumn: "value_fahr", Unit: "°F"},
	weather.Humidity:       {Name: "humidity_data", ValueColumn: "value_svp_perc", Unit: "% SVP"},
	weather.Pressure:       {Name: "air_pressure_data", ValueColumn: "value_hpa", Unit: "hPa"},
	weather.WindSpeed:      {Name: "wind_speed_data", ValueColumn: "value_mph", Unit: "mph"},
	weather.WindDirection:  {Name: "wind_direction_data", ValueColumn: "value_deg", Unit: "°"},
	weather.SolarRadiation: {Name: "solar_radiation_data", ValueColumn: "value_w_m2", Unit: "W/m²"},
	weather.UVIndex:        {Name: "uv_index_data", ValueColumn: "value_uvi", Unit: "UVI"},
	weather.Precipitation:  {Name: "precipitation_data", ValueColumn: "value_nm_s", Unit: "nm/s"},
}

// TableFor returns the table field f is stored in.
func TableFor(f weather.Field) Table {
	return tables[f]
}

// PostgresConfig holds the connection settings of the sample database.
type PostgresConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Name           string
	SSLMode        string
	ConnectTimeout time.Duration
	AutoMigrate    bool
	Backoff        BackoffConfig
}

// DSN returns a lib/pq key/value connection string.
func (c PostgresConfig) DSN() string {
	parts := []string{
		"host=" + quoteDSN(c.Host),
		fmt.Sprintf("port=%d", c.Port),
		"user=" + quoteDSN(c.User),
		"password=" + quoteDSN(c.Password),
		"dbname=" + quoteDSN(c.Name),
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	parts = append(parts, "sslmode="+quoteDSN(sslMode))
	if c.ConnectTimeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(c.ConnectTimeout.Seconds())))
	}
	return strings.Join(parts, " ")
}

func quoteDSN(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresStore writes samples to one table per variable. Each field is a
// separate autocommitted insert; there is no transaction across fields or
// samples.
type PostgresStore struct {
	db      *sqlx.DB
	exec    execer
	retrier *Retrier
	inserts map[weather.Field]string
}

// OpenPostgres connects to the database described by cfg. The store uses a
// single connection, owned by whoever opened it.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	if err != nil {
		return nil, &weather.StorageError{Op: "connect", Err: err}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	backoff := cfg.Backoff
	if backoff == (BackoffConfig{}) {
		backoff = DefaultBackoff
	}
	s := newPostgresStore(db, NewRetrier("postgres", backoff))
	s.db = db

	if cfg.AutoMigrate {
		if err := s.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewPostgresOpener returns an Opener connecting a fresh store per run.
func NewPostgresOpener(cfg PostgresConfig) weather.Opener {
	return func(ctx context.Context) (weather.Store, error) {
		return OpenPostgres(ctx, cfg)
	}
}

// NewPostgresPruner returns a Pruner that opens its own connection for each
// prune run.
func NewPostgresPruner(cfg PostgresConfig) weather.Pruner {
	return postgresPruner{cfg: cfg}
}

type postgresPruner struct {
	cfg PostgresConfig
}

func (p postgresPruner) Prune(ctx context.Context, before time.Time) (int64, error) {
	s, err := OpenPostgres(ctx, p.cfg)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return s.Prune(ctx, before)
}

func newPostgresStore(exec execer, retrier *Retrier) *PostgresStore {
	inserts := make(map[weather.Field]string, len(tables))
	for f, t := range tables {
		inserts[f] = fmt.Sprintf("INSERT INTO %s (time_recorded, %s) VALUES ($1, $2)", t.Name, t.ValueColumn)
	}
	return &PostgresStore{exec: exec, retrier: retrier, inserts: inserts}
}

// Insert writes every field of state stamped ts, in field order. A failure
// leaves the fields written so far in place.
func (s *PostgresStore) Insert(ctx context.Context, ts time.Time, state weather.State) error {
	ts = ts.UTC()
	for _, f := range weather.Fields {
		query := s.inserts[f]
		value := state.Get(f)
		err := s.retrier.Do(ctx, func(ctx context.Context) error {
			_, err := s.exec.ExecContext(ctx, query, ts, value)
			return err
		})
		if err != nil {
			return &weather.StorageError{Op: "insert", Field: f.String(), Err: err}
		}
	}
	return nil
}

// Prune deletes rows recorded before the cutoff from every table.
func (s *PostgresStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	var removed int64
	for _, f := range weather.Fields {
		t := tables[f]
		res, err := s.exec.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE time_recorded < $1", t.Name), before.UTC())
		if err != nil {
			return removed, &weather.StorageError{Op: "prune", Field: f.String(), Err: err}
		}
		n, err := res.RowsAffected()
		if err != nil {
			return removed, &weather.StorageError{Op: "prune", Field: f.String(), Err: fmt.Errorf("failed to check rows affected: %w", err)}
		}
		removed += n
	}
	return removed, nil
}

// EnsureSchema creates the sample tables and their time indexes if missing,
// and records each value column's unit as its comment.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, f := range weather.Fields {
		t := tables[f]
		stmts := []string{
			fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (time_recorded TIMESTAMPTZ NOT NULL, %s DOUBLE PRECISION NOT NULL)", t.Name, t.ValueColumn),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_time_recorded_idx ON %s (time_recorded)", t.Name, t.Name),
			fmt.Sprintf("COMMENT ON COLUMN %s.%s IS '%s'", t.Name, t.ValueColumn, strings.ReplaceAll(t.Unit, "'", "''")),
		}
		for _, stmt := range stmts {
			if _, err := s.exec.ExecContext(ctx, stmt); err != nil {
				return &weather.StorageError{Op: "migrate", Field: f.String(), Err: err}
			}
		}
	}
	return nil
}

// Close releases the connection.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
