// Package journal records content updates before they touch the store so an
// interrupted update can be finished or undone on the next start.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/quill/internal/config"
	_ "modernc.org/sqlite"
)

// FileName is the journal database inside the base directory.
const FileName = "journal.db"

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// Init opens (creating if needed) the journal database at baseDir/journal.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.quill.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the connection string apply to every pooled connection
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: pending update records
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS pending_updates (
		  id          INTEGER PRIMARY KEY AUTOINCREMENT,
		  prompt_id   TEXT NOT NULL,
		  snapshot_id TEXT NOT NULL,
		  created_at  INTEGER NOT NULL,
		  resolved_at INTEGER,
		  state       TEXT NOT NULL DEFAULT 'pending'
		);

		CREATE INDEX IF NOT EXISTS idx_pending_updates_state
		ON pending_updates(state, id);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: hash of the written content, per-prompt lookup
	if version < 2 {
		schema := `
		ALTER TABLE pending_updates ADD COLUMN content_hash TEXT NOT NULL DEFAULT '';

		CREATE INDEX IF NOT EXISTS idx_pending_updates_prompt
		ON pending_updates(prompt_id, state, id);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
