package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cabinrent/internal/config"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Drivers are registered by the lib/pq and go-sqlite3 imports in errors.go.

// DB wraps a sqlx handle. Queries are written with "?" placeholders and rebound per driver.
type DB struct {
	*sqlx.DB
	driver string
	path   string
	logger *zerolog.Logger
}

// NewDB opens (and migrates) a sqlite database at path. ":memory:" is accepted.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	return Open(config.DatabaseConfig{Driver: DriverSQLite, Path: path}, logger)
}

// Open connects to the configured driver and applies the schema.
func Open(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	var (
		conn *sqlx.DB
		err  error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		conn, err = openSQLite(cfg.Path)
	case DriverPostgres:
		conn, err = openPostgres(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	db := &DB{DB: conn, driver: conn.DriverName(), path: cfg.Path, logger: logger}
	if err := db.Migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("driver", db.driver).Str("path", cfg.Path).Msg("Database initialized")
	return db, nil
}

func openSQLite(path string) (*sqlx.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sqlx.Open(DriverSQLite, path+"?_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// single writer; also keeps ":memory:" on one shared connection
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

func openPostgres(cfg config.PostgresConfig) (*sqlx.DB, error) {
	conn, err := sqlx.Open(DriverPostgres, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxConnections > 0 {
		conn.SetMaxOpenConns(cfg.MaxConnections)
		conn.SetMaxIdleConns(cfg.MaxConnections)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}

// Driver returns the sql driver name in use.
func (db *DB) Driver() string {
	return db.driver
}

// Path returns the sqlite file path (empty for postgres).
func (db *DB) Path() string {
	return db.path
}

// Migrate creates missing tables and indexes. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	statements := sqliteSchema
	if db.driver == DriverPostgres {
		statements = postgresSchema
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("error executing query %s: %w", stmt, err)
		}
	}
	return nil
}

func (db *DB) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// insertID runs an INSERT ... RETURNING id on either driver.
func (db *DB) insertID(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (int64, error) {
	var id int64
	if err := q.QueryRowxContext(ctx, db.Rebind(query+` RETURNING id`), args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// forUpdate appends a row lock on postgres. sqlite serializes writers already.
func (db *DB) forUpdate(query string) string {
	if db.driver == DriverPostgres {
		return query + ` FOR UPDATE`
	}
	return query
}

func (db *DB) Close() error {
	return db.DB.Close()
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS cabins (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL CHECK (capacity > 0),
		price_per_night REAL NOT NULL CHECK (price_per_night > 0),
		is_active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS guests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		document_id TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		last_login_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cabin_id INTEGER NOT NULL REFERENCES cabins(id) ON DELETE RESTRICT,
		guest_id INTEGER NOT NULL REFERENCES guests(id) ON DELETE RESTRICT,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		guests_count INTEGER NOT NULL CHECK (guests_count > 0),
		total_price REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'reserved',
		notes TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		CHECK (end_date > start_date)
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		reservation_id INTEGER NOT NULL REFERENCES reservations(id) ON DELETE CASCADE,
		amount REAL NOT NULL CHECK (amount > 0),
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		paid_at DATE NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS booking_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cabin_id INTEGER NOT NULL REFERENCES cabins(id) ON DELETE RESTRICT,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		guests_count INTEGER NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		reservation_id INTEGER REFERENCES reservations(id) ON DELETE SET NULL,
		decision_note TEXT NOT NULL DEFAULT '',
		decided_by INTEGER REFERENCES users(id) ON DELETE SET NULL,
		decided_at DATETIME,
		created_at DATETIME NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_guests_email ON guests(email) WHERE email <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_cabin_dates ON reservations(cabin_id, start_date, end_date)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_guest_id ON reservations(guest_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_reservation_id ON payments(reservation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_paid_at ON payments(paid_at)`,
	`CREATE INDEX IF NOT EXISTS idx_booking_requests_status ON booking_requests(status)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS cabins (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		capacity INTEGER NOT NULL CHECK (capacity > 0),
		price_per_night NUMERIC(12,2) NOT NULL CHECK (price_per_night > 0),
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS guests (
		id BIGSERIAL PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		document_id TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		last_login_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id BIGSERIAL PRIMARY KEY,
		cabin_id BIGINT NOT NULL REFERENCES cabins(id) ON DELETE RESTRICT,
		guest_id BIGINT NOT NULL REFERENCES guests(id) ON DELETE RESTRICT,
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		guests_count INTEGER NOT NULL CHECK (guests_count > 0),
		total_price NUMERIC(12,2) NOT NULL,
		status TEXT NOT NULL DEFAULT 'reserved',
		notes TEXT NOT NULL DEFAULT '',
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (end_date > start_date)
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id BIGSERIAL PRIMARY KEY,
		reservation_id BIGINT NOT NULL REFERENCES reservations(id) ON DELETE CASCADE,
		amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		reference TEXT NOT NULL DEFAULT '',
		paid_at DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS booking_requests (
		id BIGSERIAL PRIMARY KEY,
		cabin_id BIGINT NOT NULL REFERENCES cabins(id) ON DELETE RESTRICT,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		guests_count INTEGER NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		reservation_id BIGINT REFERENCES reservations(id) ON DELETE SET NULL,
		decision_note TEXT NOT NULL DEFAULT '',
		decided_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
		decided_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_guests_email ON guests(email) WHERE email <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_cabin_dates ON reservations(cabin_id, start_date, end_date)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_guest_id ON reservations(guest_id)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_reservation_id ON payments(reservation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_paid_at ON payments(paid_at)`,
	`CREATE INDEX IF NOT EXISTS idx_booking_requests_status ON booking_requests(status)`,
}
