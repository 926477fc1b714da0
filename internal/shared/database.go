package shared

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// NewDatabase opens the SQLite database at path with foreign keys enabled.
// The path can be ":memory:" for an in-memory database.
func NewDatabase(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to :memory: is a separate database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// ConfigureDatabase applies pool limits from [DatabaseConfig]. Zero values leave the driver defaults.
func ConfigureDatabase(db *sqlx.DB, cfg DatabaseConfig) {
	if cfg.MaxOpenConns > 0 && cfg.Path != ":memory:" {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
}

// OpenDatabase opens, configures and migrates the database described by cfg.
func OpenDatabase(cfg DatabaseConfig) (*sqlx.DB, error) {
	db, err := NewDatabase(cfg.Path)
	if err != nil {
		return nil, err
	}
	ConfigureDatabase(db, cfg)

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
