// Package store provides persistent gateway state backed by an embedded
// SQLite database. It owns the database lifecycle and exposes the
// operations the dispatcher, rate limiter, and tools rely on.
//
// Migration design: SQL statements are kept in the [migrations] slice as
// ordered strings. Each is applied exactly once; the applied version is
// tracked in the schema_migrations table. To add a migration, append a new
// string — never edit or reorder existing entries.
package store

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"
)

// migrations holds the ordered list of DDL statements that bring the schema
// up to date. Index i corresponds to version i+1.
var migrations = []string{
	// v1 — settings key/value store
	`CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	// v2–v3 — connection log
	`CREATE TABLE IF NOT EXISTS connections (
		id                 INTEGER PRIMARY KEY AUTOINCREMENT,
		callsign           TEXT NOT NULL,
		transport          TEXT NOT NULL DEFAULT 'telnet',
		connected_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		disconnected_at    DATETIME,
		duration_seconds   INTEGER,
		packets_sent       INTEGER NOT NULL DEFAULT 0,
		packets_received   INTEGER NOT NULL DEFAULT 0,
		created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_connections_callsign ON connections(callsign)`,
	// v4–v6 — query log, backbone of rate limiting
	`CREATE TABLE IF NOT EXISTS queries (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		connection_id   INTEGER REFERENCES connections(id),
		callsign        TEXT NOT NULL,
		query           TEXT NOT NULL,
		response        TEXT,
		tokens_used     INTEGER,
		response_time_ms INTEGER,
		error           TEXT,
		timestamp       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queries_callsign ON queries(callsign)`,
	`CREATE INDEX IF NOT EXISTS idx_queries_timestamp ON queries(timestamp)`,
	// v7–v8 — rate limit window snapshots (audit trail; decisions read queries directly)
	`CREATE TABLE IF NOT EXISTS rate_limits (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		callsign    TEXT NOT NULL,
		query_count INTEGER NOT NULL DEFAULT 0,
		window_start DATETIME NOT NULL,
		window_end   DATETIME NOT NULL,
		last_query   DATETIME,
		created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rate_limits_callsign ON rate_limits(callsign)`,
	// v9–v10 — error log
	`CREATE TABLE IF NOT EXISTS errors (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		callsign    TEXT,
		error_type  TEXT NOT NULL,
		error_message TEXT NOT NULL,
		context     TEXT,
		timestamp   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_errors_timestamp ON errors(timestamp)`,
	// v11–v14 — mail
	`CREATE TABLE IF NOT EXISTS messages (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		from_callsign TEXT NOT NULL,
		to_callsign   TEXT NOT NULL,
		subject       TEXT NOT NULL DEFAULT '',
		body          TEXT NOT NULL DEFAULT '',
		is_read       INTEGER NOT NULL DEFAULT 0,
		in_reply_to   INTEGER REFERENCES messages(id),
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		read_at       DATETIME,
		deleted_at    DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_to ON messages(to_callsign)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_from ON messages(from_callsign)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at)`,
	// v15–v20 — files + shares
	`CREATE TABLE IF NOT EXISTS files (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		filename       TEXT NOT NULL,
		disk_path      TEXT NOT NULL,
		size           INTEGER NOT NULL,
		mime_type      TEXT NOT NULL DEFAULT 'application/octet-stream',
		checksum       TEXT NOT NULL,
		owner_callsign TEXT NOT NULL,
		access_level   TEXT NOT NULL DEFAULT 'private',
		description    TEXT NOT NULL DEFAULT '',
		uploaded_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		download_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_files_owner ON files(owner_callsign)`,
	`CREATE INDEX IF NOT EXISTS idx_files_access ON files(access_level)`,
	`CREATE TABLE IF NOT EXISTS file_shares (
		id                   INTEGER PRIMARY KEY AUTOINCREMENT,
		file_id              INTEGER NOT NULL REFERENCES files(id) ON DELETE CASCADE,
		shared_with_callsign TEXT NOT NULL,
		shared_by_callsign   TEXT NOT NULL,
		shared_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(file_id, shared_with_callsign)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_file_shares_file ON file_shares(file_id)`,
	`CREATE INDEX IF NOT EXISTS idx_file_shares_with ON file_shares(shared_with_callsign)`,
	// v21–v24 — chat
	`CREATE TABLE IF NOT EXISTS channels (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL UNIQUE,
		topic      TEXT NOT NULL DEFAULT '',
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		callsign   TEXT NOT NULL,
		body       TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_channel ON chat_messages(channel_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS channel_presence (
		channel_id INTEGER NOT NULL REFERENCES channels(id) ON DELETE CASCADE,
		callsign   TEXT NOT NULL,
		joined_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (channel_id, callsign)
	)`,
	// v25 — WAL mode
	`PRAGMA journal_mode=WAL`,
}

// Store wraps a SQLite database and exposes gateway persistence operations.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at path and applies any
// pending migrations. Use ":memory:" for ephemeral in-process storage
// (tests).
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Allow multiple read connections but serialize writes.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		log.Printf("[store] WAL mode: %v (non-fatal)", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		log.Printf("[store] busy_timeout: %v (non-fatal)", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema_migrations table (if absent) and applies any
// migrations whose version number exceeds the current maximum.
func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`,
	).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i, stmt := range migrations {
		v := i + 1
		if v <= current {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", v, err)
		}
		if _, err := s.db.Exec(
			`INSERT INTO schema_migrations(version) VALUES(?)`, v,
		); err != nil {
			return fmt.Errorf("record migration %d: %w", v, err)
		}
		log.Printf("[store] applied migration v%d", v)
	}
	return nil
}

// GetSetting returns the value stored under key. The second return value is
// false when the key does not exist; an error is only returned for real I/O
// failures.
func (s *Store) GetSetting(key string) (string, bool, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetSetting upserts key -> value in the settings table.
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// GetAllSettings returns every stored setting.
func (s *Store) GetAllSettings() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Backup writes a consistent snapshot of the database to destPath.
func (s *Store) Backup(destPath string) error {
	_, err := s.db.Exec(`VACUUM INTO ?`, destPath)
	return err
}

// Optimize runs SQLite's query-planner statistics refresh; safe to call
// periodically on a live database.
func (s *Store) Optimize() error {
	_, err := s.db.Exec(`PRAGMA optimize`)
	return err
}
