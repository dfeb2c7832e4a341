package database

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/noah-isme/attendance-core/pkg/config"
)

// NewSQLite opens the single-file store, creating its directory when needed.
// Foreign keys are enforced per connection and write transactions take the
// lock up front so concurrent writers queue on busy_timeout instead of failing.
func NewSQLite(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", strconv.FormatInt(cfg.BusyTimeout.Milliseconds(), 10))
	params.Set("_txlock", "immediate")
	dsn := "file:" + cfg.Path + "?" + params.Encode()

	db, err := sqlx.Open(config.DriverSQLite, dsn)
	if err != nil {
		return nil, err
	}

	applyPool(db, cfg)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	var result string
	if err := db.Get(&result, "PRAGMA quick_check"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("check database integrity: %w", err)
	}
	if result != "ok" {
		_ = db.Close()
		return nil, fmt.Errorf("database integrity check failed: %s", result)
	}

	return db, nil
}
