package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps the sqlite connection. All timestamps are bound as time.Time
// and stored in UTC by the driver, so range comparisons in SQL are
// chronologically correct.
type DB struct {
	*sql.DB
	logger zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer at a time; a single pooled connection
	// keeps concurrent conditional updates queued instead of failing
	// with busy errors.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "database").Logger()
	}
	l.Info().Str("path", path).Msg("database initialized")

	return &DB{DB: db, logger: l}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            reference TEXT UNIQUE NOT NULL,
            event_date TEXT NOT NULL,
            couple_count INTEGER NOT NULL DEFAULT 0,
            girls_count INTEGER NOT NULL DEFAULT 0,
            boys_count INTEGER NOT NULL DEFAULT 0,
            state TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS attendees (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER UNIQUE NOT NULL,
            name TEXT NOT NULL,
            email TEXT NOT NULL,
            phone TEXT NOT NULL,
            created_at DATETIME NOT NULL,
            FOREIGN KEY (booking_id) REFERENCES bookings(id)
        )`,
		`CREATE TABLE IF NOT EXISTS payment_orders (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL,
            gateway_order_id TEXT UNIQUE NOT NULL,
            payment_id TEXT NOT NULL DEFAULT '',
            amount_paise INTEGER NOT NULL,
            currency TEXT NOT NULL,
            receipt TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'created',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            FOREIGN KEY (booking_id) REFERENCES bookings(id)
        )`,
		`CREATE TABLE IF NOT EXISTS tickets (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL,
            ticket_number INTEGER NOT NULL,
            total_tickets INTEGER NOT NULL,
            pass_kind TEXT NOT NULL,
            qr_payload TEXT NOT NULL,
            expiry DATETIME NOT NULL,
            is_used BOOLEAN NOT NULL DEFAULT 0,
            used_at DATETIME,
            created_at DATETIME NOT NULL,
            UNIQUE (booking_id, ticket_number),
            FOREIGN KEY (booking_id) REFERENCES bookings(id)
        )`,
		`CREATE TABLE IF NOT EXISTS notify_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            booking_id INTEGER NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_event_date ON bookings(event_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_state ON bookings(state)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_orders_booking_id ON payment_orders(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_booking_id ON tickets(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_expiry ON tickets(expiry, is_used)`,
		`CREATE INDEX IF NOT EXISTS idx_notify_queue_status ON notify_queue(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
