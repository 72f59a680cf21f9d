// Package sqlite implements the repository interfaces on SQLite using the
// pure-Go modernc.org/sqlite driver (no cgo).
//
// One *DB owns the connection pool; Users, Projects, Resume and OAuthStates
// hand out typed views over it so that method names stay short.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/portfolio.db": file database
//   - ":memory:": private in-memory database, pinned to one connection
//
// Pragmas go in the DSN so that every pooled connection gets them, not just
// the first one.
func New(dbPath string) (*DB, error) {
	memory := dbPath == ":memory:"

	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	var dsn string
	if memory {
		dsn = "file::memory:?" + pragmas
	} else {
		dsn = "file:" + dbPath + "?" + pragmas + "&_pragma=journal_mode(WAL)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if memory {
		// Every new connection to ":memory:" is a fresh empty database.
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// migrate creates the schema. Statements are idempotent so it runs on every
// start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id                 TEXT PRIMARY KEY,
			github_id          INTEGER NOT NULL UNIQUE,
			github_username    TEXT NOT NULL UNIQUE,
			portfolio_username TEXT NOT NULL UNIQUE,
			avatar_url         TEXT NOT NULL DEFAULT '',
			profile_url        TEXT NOT NULL DEFAULT '',
			bio                TEXT NOT NULL DEFAULT '',
			location           TEXT NOT NULL DEFAULT '',
			email              TEXT NOT NULL DEFAULT '',
			is_public          INTEGER NOT NULL DEFAULT 1,
			access_token       TEXT NOT NULL DEFAULT '',
			created_at         DATETIME NOT NULL,
			updated_at         DATETIME NOT NULL,
			last_sync          DATETIME
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// languages is a JSON object {"Go": 1234}.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS projects (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			github_id         INTEGER NOT NULL,
			name              TEXT NOT NULL,
			description       TEXT NOT NULL DEFAULT '',
			url               TEXT NOT NULL DEFAULT '',
			homepage          TEXT NOT NULL DEFAULT '',
			readme_content    TEXT NOT NULL DEFAULT '',
			languages         TEXT NOT NULL DEFAULT '{}',
			stars             INTEGER NOT NULL DEFAULT 0,
			forks             INTEGER NOT NULL DEFAULT 0,
			watchers          INTEGER NOT NULL DEFAULT 0,
			status            TEXT NOT NULL DEFAULT 'code_only',
			deployed_url      TEXT NOT NULL DEFAULT '',
			is_visible        INTEGER NOT NULL DEFAULT 1,
			is_archived       INTEGER NOT NULL DEFAULT 0,
			is_fork           INTEGER NOT NULL DEFAULT 0,
			created_at        DATETIME NOT NULL,
			updated_at        DATETIME NOT NULL,
			github_updated_at DATETIME,
			last_seen_at      DATETIME NOT NULL,
			UNIQUE (user_id, github_id)
		);
		CREATE INDEX IF NOT EXISTS idx_projects_user_status ON projects(user_id, status);
	`)
	if err != nil {
		return fmt.Errorf("creating projects table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS experiences (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			title       TEXT NOT NULL,
			company     TEXT NOT NULL,
			location    TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			start_date  DATETIME NOT NULL,
			end_date    DATETIME,
			is_current  INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_experiences_user_id ON experiences(user_id);

		CREATE TABLE IF NOT EXISTS education (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			school         TEXT NOT NULL,
			degree         TEXT NOT NULL,
			field_of_study TEXT NOT NULL DEFAULT '',
			description    TEXT NOT NULL DEFAULT '',
			start_date     DATETIME NOT NULL,
			end_date       DATETIME,
			is_current     INTEGER NOT NULL DEFAULT 0,
			created_at     DATETIME NOT NULL,
			updated_at     DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_education_user_id ON education(user_id);

		CREATE TABLE IF NOT EXISTS skills (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name        TEXT NOT NULL,
			proficiency TEXT NOT NULL DEFAULT '',
			category    TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_skills_user_id ON skills(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating resume tables: %w", err)
	}

	// expires_at is unix seconds so the expiry check is an integer compare.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS oauth_states (
			state      TEXT PRIMARY KEY,
			expires_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_oauth_states_expires_at ON oauth_states(expires_at);
	`)
	if err != nil {
		return fmt.Errorf("creating oauth_states table: %w", err)
	}

	// Databases created before the archived/fork flags existed.
	for _, col := range []struct{ name, def string }{
		{"is_archived", "INTEGER NOT NULL DEFAULT 0"},
		{"is_fork", "INTEGER NOT NULL DEFAULT 0"},
	} {
		if err := db.addColumnIfNotExists("projects", col.name, col.def); err != nil {
			return fmt.Errorf("adding %s to projects: %w", col.name, err)
		}
	}

	return nil
}

// addColumnIfNotExists makes ALTER TABLE ADD COLUMN idempotent.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint
// failure.
func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// nullTime maps a nil pointer to SQL NULL.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// clampLimit applies the page-size default and ceiling.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 100:
		return 100
	}
	return limit
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
