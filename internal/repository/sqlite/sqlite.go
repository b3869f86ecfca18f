// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// IN-MEMORY BY DEFAULT:
// The API keeps its records for the lifetime of the process only. Opening
// SQLite with the ":memory:" DSN gives exactly that: the database lives in
// RAM and vanishes when the connection closes, while keeping real SQL,
// constraints and transactions. Point DB_PATH at a file to keep data between
// restarts during development.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo (calls C code from Go), which means you need a C compiler
// installed and cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code. No C compiler needed, works everywhere Go works.
//
// ONE CONNECTION:
// Every new connection to ":memory:" gets its OWN empty database. sql.DB is a
// pool, so we pin it to a single connection; otherwise a second concurrent
// query would silently see no tables. SQLite serialises writers anyway, so
// nothing is lost. The consequence for this package: never run a query on
// db.conn while a *sql.Rows or *sql.Tx is still open; it would wait forever
// for the one connection.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	// BLANK IMPORT:
	// The sqlite package's init() registers a database/sql driver named "sqlite".
	_ "modernc.org/sqlite"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// DB wraps a sql.DB connection pool and implements the Post, User and
// Student repositories from repository.go.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection, runs migrations and seeds
// the fixed student roster.
//
// dbPath examples:
//   - ":memory:"         → in-memory database (the default; lost on close)
//   - "data/lessons.db"  → file-based database (persistent)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// Ping verifies the connection actually works.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed during a write on file databases.
	// For ":memory:" SQLite answers "memory" and carries on.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}
	if err := db.seedStudents(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: seeding students: %w", err)
	}

	return db, nil
}

// Close closes the database. For ":memory:" this discards every record.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the tables. CREATE TABLE IF NOT EXISTS is idempotent, so
// reopening a file database is safe.
func (db *DB) migrate() error {
	// image_file is indexed: every image reclamation asks "who else uses this file?"
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			content    TEXT NOT NULL,
			author     TEXT NOT NULL,
			image_url  TEXT,
			image_file TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
		CREATE INDEX IF NOT EXISTS idx_posts_image_file ON posts(image_file);
	`)
	if err != nil {
		return fmt.Errorf("creating posts table: %w", err)
	}

	// AUTOINCREMENT (not just INTEGER PRIMARY KEY) so a deleted user's id is
	// never handed out again.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			name  TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			id     INTEGER PRIMARY KEY,
			name   TEXT NOT NULL,
			attend TEXT NOT NULL DEFAULT 'none'
			       CHECK (attend IN ('none', 'late', 'present')),
			grade  INTEGER NOT NULL DEFAULT 0 CHECK (grade BETWEEN 0 AND 12),
			online INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return fmt.Errorf("creating students table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE constraint.
// modernc.org/sqlite reports constraint failures only through the message text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
