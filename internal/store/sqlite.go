// Package store persists the local mirror: collection metadata, delta
// cursors, record summaries, and downloaded bodies, all in one SQLite
// database. It implements the sync package's Cache, TokenStore, and
// ContentCache interfaces.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/graphmirror/internal/logger"
)

// ErrDatabaseInit indicates the database could not be opened or migrated.
var ErrDatabaseInit = errors.New("store: database initialization failed")

// Store is the SQLite-backed local mirror.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and applies any
// pending schema migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("%w: create directory: %w", ErrDatabaseInit, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", ErrDatabaseInit, err)
	}

	// Pragmas are per-connection; a single connection keeps them in force
	// and serialises writers, which SQLite wants anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: set pragma: %w", ErrDatabaseInit, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate applies schema migrations beyond the database's current
// user_version.
func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("%w: read schema version: %w", ErrDatabaseInit, err)
	}

	for ; version < len(migrations); version++ {
		if _, err := s.db.Exec(migrations[version]); err != nil {
			return fmt.Errorf("%w: apply migration %d: %w", ErrDatabaseInit, version+1, err)
		}
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", version+1)); err != nil {
			return fmt.Errorf("%w: bump schema version: %w", ErrDatabaseInit, err)
		}
		logger.Debug("store: applied schema migration %d", version+1)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
