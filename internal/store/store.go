package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer: an index registry plus the vertex
// and edge tables every ingested graph lands in.
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

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the schema. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
-- Index registry. One row per ingestion attempt; the state column is the
-- visibility switch queries check.

CREATE TABLE IF NOT EXISTS indexes (
  id            TEXT PRIMARY KEY,
  state         TEXT NOT NULL DEFAULT 'ingesting',
  repo          TEXT NOT NULL DEFAULT '',
  rev           TEXT NOT NULL DEFAULT '',
  project_root  TEXT NOT NULL DEFAULT '',
  tool_name     TEXT NOT NULL DEFAULT '',
  tool_version  TEXT NOT NULL DEFAULT '',
  vertex_count  INTEGER NOT NULL DEFAULT 0,
  edge_count    INTEGER NOT NULL DEFAULT 0,
  created_at    TIMESTAMP NOT NULL,
  sealed_at     TIMESTAMP
);

-- Graph tables. Vertices of every label share one table; the nullable
-- columns carry the label-specific payloads. The composite primary key
-- enforces id uniqueness per index.

CREATE TABLE IF NOT EXISTS vertices (
  index_id    TEXT NOT NULL REFERENCES indexes(id) ON DELETE CASCADE,
  id          TEXT NOT NULL,
  label       TEXT NOT NULL,
  seq         INTEGER NOT NULL,
  uri         TEXT,
  language    TEXT,
  start_line  INTEGER,
  start_char  INTEGER,
  end_line    INTEGER,
  end_char    INTEGER,
  scheme      TEXT,
  identifier  TEXT,
  kind        TEXT,
  hover       TEXT,
  PRIMARY KEY (index_id, id)
);

-- A multi-target edge element is stored as one row per target, sharing the
-- element's id. Edge ids carry no identity, so they are not constrained.

CREATE TABLE IF NOT EXISTS edges (
  index_id  TEXT NOT NULL REFERENCES indexes(id) ON DELETE CASCADE,
  id        TEXT NOT NULL DEFAULT '',
  label     TEXT NOT NULL,
  out_v     TEXT NOT NULL,
  in_v      TEXT NOT NULL,
  property  TEXT,
  seq       INTEGER NOT NULL
);

-- Indexes: adjacency in both directions, plus the document, label, and
-- moniker identifier lookups the query paths hit.

CREATE INDEX IF NOT EXISTS idx_edges_out ON edges(index_id, out_v, label);
CREATE INDEX IF NOT EXISTS idx_edges_in ON edges(index_id, in_v, label);
CREATE INDEX IF NOT EXISTS idx_vertices_label ON vertices(index_id, label);
CREATE INDEX IF NOT EXISTS idx_vertices_uri ON vertices(index_id, uri);
CREATE INDEX IF NOT EXISTS idx_vertices_identifier ON vertices(index_id, identifier);
`
