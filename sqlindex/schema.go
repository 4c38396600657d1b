// Package sqlindex is the server-side projection of substrate history into a
// SQLite database, queryable concurrently by the HTTP API. Unlike the
// in-memory client index it is crash-atomic per block: sync opens one
// transaction per unhandled block so a block is either fully projected or
// not projected at all.
package sqlindex

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Store is a SQLite-backed projection of substrate block history.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS handled_blocks (
	hash BLOB PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS v1_posts (
	message_hash BLOB PRIMARY KEY,
	block_hash   BLOB NOT NULL,
	content      TEXT NOT NULL,
	timestamp    INTEGER NOT NULL,
	author       BLOB NOT NULL,
	FOREIGN KEY (block_hash) REFERENCES handled_blocks(hash) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS v1_post_tags (
	message_hash BLOB NOT NULL,
	tag          TEXT NOT NULL,
	FOREIGN KEY (message_hash) REFERENCES v1_posts(message_hash) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_post_tags_message ON v1_post_tags(message_hash);

CREATE TABLE IF NOT EXISTS v1_comments (
	message_hash BLOB PRIMARY KEY,
	block_hash   BLOB NOT NULL,
	ref          BLOB NOT NULL,
	content      TEXT NOT NULL,
	timestamp    INTEGER NOT NULL,
	author       BLOB NOT NULL,
	FOREIGN KEY (block_hash) REFERENCES handled_blocks(hash) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_comments_ref ON v1_comments(ref);

CREATE TABLE IF NOT EXISTS v1_reactions (
	message_hash BLOB PRIMARY KEY,
	block_hash   BLOB NOT NULL,
	ref          BLOB NOT NULL,
	name         TEXT NOT NULL,
	timestamp    INTEGER NOT NULL,
	author       BLOB NOT NULL,
	FOREIGN KEY (block_hash) REFERENCES handled_blocks(hash) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_reactions_ref ON v1_reactions(ref);
`

// Open opens (creating if absent) a server index database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlindex: create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("sqlindex: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlindex: ping database: %w", err)
	}
	// SQLite serializes writers anyway; pin the pool to one connection so
	// BEGIN/COMMIT pairs from concurrent goroutines cannot interleave.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlindex: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
