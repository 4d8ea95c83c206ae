// Package db persists mesh update history in SQLite.
package db

import (
	"database/sql"
	"fmt"

	"github.com/banshee-data/depthmesh/internal/monitoring"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite handle holding sessions and update outcomes.
type DB struct {
	*sql.DB
}

// NewDB opens (or creates) the database at path and migrates it to the
// latest schema. Use ":memory:" for a throwaway database.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared and serialises
	// writers.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{sqlDB}
	if err := db.applyPragmas(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	version, _, err := db.MigrateVersion()
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	monitoring.Logf("[DB] opened %s at schema version %d", path, version)
	return db, nil
}

func (db *DB) applyPragmas() error {
	for _, p := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}
