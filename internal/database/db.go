package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Open connects using the named driver. For mysql the connection fields are
// used; for sqlite only path is.
func Open(driver, user, pass, host, port, name, path string) (*sql.DB, error) {
	switch driver {
	case "", DriverMySQL:
		return OpenMySQL(user, pass, host, port, name)
	case DriverSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}
}

// OpenMySQL connects to MySQL and verifies the connection.
func OpenMySQL(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ping(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens a SQLite database file or a "file:...?mode=memory" URI.
// SQLite allows a single writer, so the pool is capped at one connection and
// transactions queue behind each other.
func OpenSQLite(path string) (*sql.DB, error) {
	if path == "" {
		path = "homestay.db"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	// sqlite time format keeps DATETIME text sortable
	dsn := path + sep + "_time_format=sqlite&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := ping(db); err != nil {
		return nil, err
	}
	return db, nil
}

func ping(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	return nil
}
