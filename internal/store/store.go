package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the symbol graph.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for ad-hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// QueryReadOnly runs query on a connection with PRAGMA query_only set, so
// any statement that would modify the database fails, including statements
// trailing a SELECT in the same string. fn consumes the rows before the
// connection goes back to the pool.
func (s *Store) QueryReadOnly(ctx context.Context, query string, args []any, fn func(*sql.Rows) error) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("read-only query: conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		return fmt.Errorf("read-only query: %w", err)
	}
	defer func() {
		if _, rerr := conn.ExecContext(context.Background(), "PRAGMA query_only = OFF"); rerr != nil {
			// A connection stuck in query_only mode must not be reused.
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
			if err == nil {
				err = fmt.Errorf("read-only query: reset: %w", rerr)
			}
		}
	}()

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	if err := fn(rows); err != nil {
		return err
	}
	return rows.Err()
}

// Migrate creates all tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS files (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  language        TEXT NOT NULL,
  hash            TEXT,
  line_count      INTEGER DEFAULT 0,
  last_indexed    TIMESTAMP
);

-- One row per declaration identity. usr is the stable key the collector
-- resolves targets by; rows are created on first reference and filled in
-- with a location once the definition is seen.
CREATE TABLE IF NOT EXISTS nodes (
  id              INTEGER PRIMARY KEY,
  usr             TEXT NOT NULL UNIQUE,
  name            TEXT NOT NULL,
  qualified_name  TEXT,
  kind            TEXT NOT NULL,
  scope           TEXT,
  file_id         INTEGER REFERENCES files(id),
  start_line      INTEGER,
  start_col       INTEGER,
  end_line        INTEGER,
  end_col         INTEGER,
  defined         BOOLEAN DEFAULT FALSE
);

-- Relation edges are a multiset: the same (source, target, kind) may appear
-- once per occurrence.
CREATE TABLE IF NOT EXISTS edges (
  id              INTEGER PRIMARY KEY,
  source_id       INTEGER NOT NULL REFERENCES nodes(id),
  target_id       INTEGER NOT NULL REFERENCES nodes(id),
  kind            TEXT NOT NULL,
  file_id         INTEGER REFERENCES files(id),
  line            INTEGER,
  col             INTEGER
);

CREATE TABLE IF NOT EXISTS metadata (
  key             TEXT PRIMARY KEY,
  value           TEXT
);

CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name);
CREATE INDEX IF NOT EXISTS idx_nodes_qualified ON nodes(qualified_name);
CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(kind);
CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(file_id);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
CREATE INDEX IF NOT EXISTS idx_edges_kind ON edges(kind);
CREATE INDEX IF NOT EXISTS idx_edges_file ON edges(file_id);
`

// deleteOrphansSQL drops undefined nodes that no edge touches anymore.
const deleteOrphansSQL = `DELETE FROM nodes WHERE defined = FALSE
  AND id NOT IN (SELECT source_id FROM edges)
  AND id NOT IN (SELECT target_id FROM edges)`

// DeleteFileData transactionally removes everything a file contributed:
// its edges, the definitions located in it and the file record itself.
// Nodes that other files still point at survive as undefined placeholders.
func (s *Store) DeleteFileData(fileID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM edges WHERE file_id = ?",
		`UPDATE nodes SET file_id = NULL, defined = FALSE,
		   start_line = 0, start_col = 0, end_line = 0, end_col = 0
		 WHERE file_id = ?`,
		"DELETE FROM files WHERE id = ?",
	} {
		if _, err := tx.Exec(q, fileID); err != nil {
			return fmt.Errorf("delete file data: %w", err)
		}
	}
	if _, err := tx.Exec(deleteOrphansSQL); err != nil {
		return fmt.Errorf("delete orphan nodes: %w", err)
	}
	return tx.Commit()
}

// SetMetadata stores a key/value pair, replacing any previous value.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set metadata %s: %w", key, err)
	}
	return nil
}

// GetMetadata returns the value for key, or "" if it is not set.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get metadata %s: %w", key, err)
	}
	return value, nil
}
