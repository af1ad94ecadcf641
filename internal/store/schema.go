package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pages (
	identifier        TEXT PRIMARY KEY,
	filename          TEXT NOT NULL UNIQUE,
	name              TEXT,
	html_content      TEXT NOT NULL,
	md_content        TEXT NOT NULL,
	md_content_hash   TEXT NOT NULL,
	tags              TEXT,
	created_datetime  DATETIME,
	modified_datetime DATETIME
);

CREATE TABLE IF NOT EXISTS page_links (
	source   TEXT NOT NULL REFERENCES pages(identifier) ON DELETE CASCADE ON UPDATE CASCADE,
	target   TEXT NOT NULL,
	resolved INTEGER NOT NULL DEFAULT 0,
	ref      TEXT NOT NULL DEFAULT '',
	UNIQUE(source, target, ref)
);

CREATE INDEX IF NOT EXISTS idx_page_links_target ON page_links(target);
`

// SQLite is a Repository backed by a SQLite database file.
type SQLite struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Ping reports whether the database is reachable.
func (s *SQLite) Ping() error {
	return s.conn.Ping()
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}
