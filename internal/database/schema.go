package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// tables lists the schema in dependency order. %PK% and %MONEY% are replaced
// per driver; everything else is portable between MySQL and SQLite.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS branches (
		id %PK%,
		code VARCHAR(32) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS room_classes (
		id %PK%,
		name VARCHAR(64) NOT NULL,
		nightly_rate %MONEY% NOT NULL,
		capacity INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id %PK%,
		branch_id BIGINT NOT NULL,
		room_class_id BIGINT NOT NULL,
		number VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'available',
		locked_until DATETIME NULL,
		version BIGINT NOT NULL DEFAULT 0,
		UNIQUE (branch_id, number)
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id %PK%,
		full_name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL UNIQUE,
		phone VARCHAR(32) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS promotions (
		id %PK%,
		code VARCHAR(64) NOT NULL UNIQUE,
		kind VARCHAR(16) NOT NULL,
		value %MONEY% NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		valid_from DATETIME NULL,
		valid_to DATETIME NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sequences (
		name VARCHAR(32) NOT NULL PRIMARY KEY,
		value BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id %PK%,
		code VARCHAR(16) NOT NULL UNIQUE,
		branch_id BIGINT NOT NULL,
		staff_id BIGINT NULL,
		customer_id BIGINT NOT NULL,
		status VARCHAR(16) NOT NULL,
		payment_status VARCHAR(24) NOT NULL,
		base_price %MONEY% NOT NULL,
		seasonal_surcharge %MONEY% NOT NULL,
		guest_surcharge %MONEY% NOT NULL,
		vat_amount %MONEY% NOT NULL,
		discount %MONEY% NOT NULL,
		total_amount %MONEY% NOT NULL,
		promotion_code VARCHAR(64) NULL,
		hold_expires_at DATETIME NOT NULL,
		payment_expires_at DATETIME NULL,
		verification_code_hash VARCHAR(255) NULL,
		verification_expires_at DATETIME NULL,
		verified BOOLEAN NOT NULL DEFAULT 0,
		payment_method VARCHAR(32) NULL,
		payment_ref VARCHAR(128) NULL,
		paid_amount %MONEY% NULL,
		paid_at DATETIME NULL,
		hidden BOOLEAN NOT NULL DEFAULT 0,
		version BIGINT NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS booking_lines (
		id %PK%,
		booking_id BIGINT NOT NULL,
		room_id BIGINT NOT NULL,
		check_in DATETIME NOT NULL,
		check_out DATETIME NOT NULL,
		adults INT NOT NULL,
		children INT NOT NULL DEFAULT 0,
		unit_price %MONEY% NOT NULL,
		line_total %MONEY% NOT NULL,
		status VARCHAR(16) NOT NULL,
		checked_in_at DATETIME NULL,
		checked_out_at DATETIME NULL
	)`,
	`CREATE TABLE IF NOT EXISTS revenues (
		id %PK%,
		booking_id BIGINT NOT NULL UNIQUE,
		branch_id BIGINT NOT NULL,
		amount %MONEY% NOT NULL,
		method VARCHAR(32) NOT NULL,
		recorded_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id %PK%,
		booking_id BIGINT NOT NULL UNIQUE,
		invoice_no VARCHAR(32) NOT NULL UNIQUE,
		amount %MONEY% NOT NULL,
		issued_at DATETIME NOT NULL
	)`,
}

var indexes = []string{
	`CREATE INDEX idx_booking_lines_room ON booking_lines (room_id, check_in, check_out)`,
	`CREATE INDEX idx_booking_lines_booking ON booking_lines (booking_id)`,
	`CREATE INDEX idx_bookings_sweep ON bookings (status, payment_status, hold_expires_at)`,
	`CREATE INDEX idx_rooms_locked ON rooms (locked_until)`,
}

// Migrate creates missing tables and indexes and seeds the booking code
// sequence. It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	pk, money := "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY", "DECIMAL(18,4)"
	if driver == DriverSQLite {
		pk, money = "INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT"
	}
	r := strings.NewReplacer("%PK%", pk, "%MONEY%", money)
	for _, stmt := range tables {
		if _, err := db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	for _, stmt := range indexes {
		if driver == DriverSQLite {
			stmt = strings.Replace(stmt, "CREATE INDEX", "CREATE INDEX IF NOT EXISTS", 1)
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil && !isDuplicateIndex(err) {
			return fmt.Errorf("migrate index: %w", err)
		}
	}
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sequences WHERE name = 'booking'`).Scan(&n); err != nil {
		return fmt.Errorf("migrate sequences: %w", err)
	}
	if n == 0 {
		if _, err := db.ExecContext(ctx, `INSERT INTO sequences (name, value) VALUES ('booking', 0)`); err != nil {
			return fmt.Errorf("migrate sequences: %w", err)
		}
	}
	return nil
}

// MySQL has no CREATE INDEX IF NOT EXISTS; error 1061 means it is already there.
func isDuplicateIndex(err error) bool {
	s := err.Error()
	return strings.Contains(s, "1061") || strings.Contains(strings.ToLower(s), "already exists")
}
