// Package store persists tenants, API keys, rate-limit counters, audit rows
// and CRM records. It speaks SQLite, PostgreSQL and MySQL through sqlx.
package store

import (
	"context"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type dialect struct {
	name       string
	driverName string
	goose      string
}

var dialects = map[string]dialect{
	DriverSQLite:   {name: DriverSQLite, driverName: "sqlite", goose: "sqlite3"},
	DriverPostgres: {name: DriverPostgres, driverName: "pgx", goose: "postgres"},
	DriverMySQL:    {name: DriverMySQL, driverName: "mysql", goose: "mysql"},
}

//go:embed migrations
var migrations embed.FS

// goose keeps its dialect and base FS in package globals.
var migrateMu sync.Mutex

// Store is the gateway's persistence layer.
type Store struct {
	db      *sqlx.DB
	dialect dialect
}

// Open connects to the database, applies pending migrations and returns a
// ready store. An empty SQLite DSN opens a private in-memory database.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = ":memory:"
		}
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		dsn = cfg.FormatDSN()
	}

	db, err := sqlx.ConnectContext(ctx, d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		// One connection serializes writers and keeps an in-memory database
		// alive for the life of the store.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set busy timeout: %w", err)
		}
	}

	s := &Store{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// NewMemory opens an in-memory SQLite store.
func NewMemory() (*Store, error) {
	return Open(context.Background(), DriverSQLite, "")
}

func (s *Store) migrate(ctx context.Context) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(s.dialect.goose); err != nil {
		return err
	}
	return goose.UpContext(ctx, s.db.DB, "migrations/"+s.dialect.goose)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.dialect.name
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func now() time.Time {
	return time.Now().UTC()
}
