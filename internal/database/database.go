package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/digkill/guincho-facil/internal/config"
)

// Dialect names the SQL flavour behind a *sql.DB. Repositories only need it for the
// handful of statements MySQL and SQLite spell differently.
type Dialect string

const (
	MySQL  Dialect = "mysql"
	SQLite Dialect = "sqlite"
)

// InsertIgnore returns the statement prefix that inserts a row unless a unique key
// already holds it.
func (d Dialect) InsertIgnore() string {
	if d == SQLite {
		return "INSERT OR IGNORE"
	}
	return "INSERT IGNORE"
}

// ForUpdate returns the clause that row-locks a SELECT inside a transaction. SQLite
// locks the whole database on write, so it needs none.
func (d Dialect) ForUpdate() string {
	if d == SQLite {
		return ""
	}
	return " FOR UPDATE"
}

// Connect opens the configured database with sensible pooling defaults.
func Connect(cfg config.Config) (*sql.DB, Dialect, error) {
	switch Dialect(cfg.DatabaseDriver) {
	case SQLite:
		db, err := OpenSQLite(cfg.DatabaseDSN)
		if err != nil {
			return nil, "", err
		}
		return db, SQLite, nil
	case MySQL:
		db, err := openMySQL(cfg.DatabaseDSN)
		if err != nil {
			return nil, "", err
		}
		return db, MySQL, nil
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
}

func openMySQL(dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	db.SetConnMaxLifetime(time.Minute * 5)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database file. SQLite serialises writers, so
// the pool is pinned to one connection and callers must not use the *sql.DB while
// holding a transaction on it.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(5000)",
			"journal_mode(WAL)",
			"foreign_keys(1)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// Migrate runs the bootstrap schema to ensure required tables exist.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	statements := mysqlSchema
	if dialect == SQLite {
		statements = sqliteSchema
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
