// Package storage keeps translation history and performance metrics in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	dbFile = "aityping.db"

	DefaultHistoryLimit    = 500
	DefaultMetricRetention = 90 * 24 * time.Hour
)

type DB struct {
	conn         *sql.DB
	historyLimit int
	now          func() time.Time
}

// Option configures a DB
type Option func(*DB)

// WithHistoryLimit caps the number of translations kept. Zero disables cleanup.
func WithHistoryLimit(n int) Option {
	return func(db *DB) { db.historyLimit = n }
}

// WithClock overrides the time source used for timestamps and periods
func WithClock(now func() time.Time) Option {
	return func(db *DB) { db.now = now }
}

// Open opens the database in dataDir and initializes the schema
func Open(dataDir string, opts ...Option) (*DB, error) {
	dbPath := filepath.Join(dataDir, dbFile)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets the dashboard read while a run is being recorded
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db := &DB{conn: conn, historyLimit: DefaultHistoryLimit, now: time.Now}
	for _, opt := range opts {
		opt(db)
	}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the database schema
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS translations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		original_text TEXT NOT NULL,
		translated_text TEXT NOT NULL,
		source_lang TEXT,
		target_lang TEXT NOT NULL,
		mode TEXT NOT NULL,
		success BOOLEAN NOT NULL DEFAULT 1,
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_translations_timestamp ON translations(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_translations_lang ON translations(target_lang, source_lang);

	CREATE TABLE IF NOT EXISTS metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		operation_type TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		success BOOLEAN NOT NULL,
		error_type TEXT,
		char_count INTEGER NOT NULL,

		-- Unknown when the provider reports no usage
		tokens INTEGER,
		tokens_per_second REAL
	);

	CREATE INDEX IF NOT EXISTS idx_metrics_timestamp ON metrics(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_metrics_operation ON metrics(operation_type);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Maintain trims history to the configured limit and drops expired metrics
func (db *DB) Maintain(ctx context.Context) error {
	if _, err := db.CleanupHistory(ctx, db.historyLimit); err != nil {
		return err
	}
	_, err := db.CleanupMetrics(ctx, DefaultMetricRetention)
	return err
}
