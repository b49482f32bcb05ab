package database

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
	logger *zap.Logger
}

func New(storagePath string, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("sqlite", storagePath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &DB{
		DB:     db,
		logger: logger,
	}

	if err := database.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database connection established", zap.String("path", storagePath))
	return database, nil
}

func (db *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		// One row per tracked session; counters are add-only, scroll_depth
		// is a high-water mark.
		`CREATE TABLE IF NOT EXISTS audit_sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL,
			page_title TEXT NOT NULL DEFAULT '',
			resource_title TEXT,
			device TEXT NOT NULL DEFAULT 'Desktop',
			total_seconds INTEGER NOT NULL DEFAULT 0,
			active_seconds INTEGER NOT NULL DEFAULT 0,
			video_time INTEGER NOT NULL DEFAULT 0,
			audio_time INTEGER NOT NULL DEFAULT 0,
			scroll_depth INTEGER NOT NULL DEFAULT 0,
			mouse_clicks INTEGER NOT NULL DEFAULT 0,
			keypresses INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_sessions_user ON audit_sessions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_sessions_created ON audit_sessions(created_at)`,
		// Append-only event log, ordered per session by seq.
		`CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES audit_sessions(id),
			seq INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			metadata TEXT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_audit_events_session_seq ON audit_events(session_id, seq)`,
		// One row per applied flush, so a replayed delta is a no-op.
		`CREATE TABLE IF NOT EXISTS applied_flushes (
			idempotency_key TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	db.logger.Info("Database migrations completed")
	return nil
}

func (db *DB) Close() error {
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.logger.Info("Database connection closed")
	return nil
}
