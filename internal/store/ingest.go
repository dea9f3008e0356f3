package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Ingestion is a single-use write handle for loading one index. The registry
// row is committed up front so the identifier is visible as ingesting; every
// graph row lands in one transaction that Seal commits. Until then queries
// see nothing of the new index, and Abort leaves nothing behind but the
// aborted registry row.
type Ingestion struct {
	store    *Store
	tx       *sql.Tx
	indexID  string
	seq      int64
	vertices int64
	edges    int64
	done     bool
}

// BeginIngestion registers id in the ingesting state and opens the graph
// transaction. The caller must finish with exactly one of Seal or Abort.
func (s *Store) BeginIngestion(id string, meta IndexMeta) (*Ingestion, error) {
	_, err := s.db.Exec(
		"INSERT INTO indexes (id, state, repo, rev, created_at) VALUES (?, ?, ?, ?, ?)",
		id, StateIngesting, meta.Repo, meta.Rev, time.Now().UTC(),
	)
	if err != nil {
		return nil, translateError("register index", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		s.markAborted(id)
		return nil, translateError("begin ingestion", err)
	}
	return &Ingestion{store: s, tx: tx, indexID: id}, nil
}

// IndexID returns the identifier this ingestion writes under.
func (in *Ingestion) IndexID() string { return in.indexID }

// Vertices returns how many vertices have been inserted so far.
func (in *Ingestion) Vertices() int64 { return in.vertices }

// Edges returns how many edge elements have been inserted so far.
func (in *Ingestion) Edges() int64 { return in.edges }

func (in *Ingestion) nextSeq() int64 {
	in.seq++
	return in.seq
}

func (in *Ingestion) vertexErr(label, id string, err error) error {
	if err == nil {
		in.vertices++
		return nil
	}
	if isConstraint(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateVertex, id)
	}
	return &StorageError{Op: "insert " + label, Err: err}
}

// --- Vertex inserts ---

func (in *Ingestion) InsertDocument(id, uri, language string) error {
	_, err := in.tx.Exec(
		"INSERT INTO vertices (index_id, id, label, seq, uri, language) VALUES (?, ?, 'document', ?, ?, ?)",
		in.indexID, id, in.nextSeq(), uri, language,
	)
	return in.vertexErr("document", id, err)
}

func (in *Ingestion) InsertRange(id string, startLine, startChar, endLine, endChar int) error {
	_, err := in.tx.Exec(
		"INSERT INTO vertices (index_id, id, label, seq, start_line, start_char, end_line, end_char) VALUES (?, ?, 'range', ?, ?, ?, ?, ?)",
		in.indexID, id, in.nextSeq(), startLine, startChar, endLine, endChar,
	)
	return in.vertexErr("range", id, err)
}

func (in *Ingestion) InsertResultSet(id string) error {
	_, err := in.tx.Exec(
		"INSERT INTO vertices (index_id, id, label, seq) VALUES (?, ?, 'resultSet', ?)",
		in.indexID, id, in.nextSeq(),
	)
	return in.vertexErr("resultSet", id, err)
}

func (in *Ingestion) InsertDefinitionResult(id string) error {
	_, err := in.tx.Exec(
		"INSERT INTO vertices (index_id, id, label, seq) VALUES (?, ?, 'definitionResult', ?)",
		in.indexID, id, in.nextSeq(),
	)
	return in.vertexErr("definitionResult", id, err)
}

func (in *Ingestion) InsertReferenceResult(id string) error {
	_, err := in.tx.Exec(
		"INSERT INTO vertices (index_id, id, label, seq) VALUES (?, ?, 'referenceResult', ?)",
		in.indexID, id, in.nextSeq(),
	)
	return in.vertexErr("referenceResult", id, err)
}

func (in *Ingestion) InsertMoniker(id, scheme, identifier, kind string) error {
	_, err := in.tx.Exec(
		"INSERT INTO vertices (index_id, id, label, seq, scheme, identifier, kind) VALUES (?, ?, 'moniker', ?, ?, ?, ?)",
		in.indexID, id, in.nextSeq(), scheme, identifier, kind,
	)
	return in.vertexErr("moniker", id, err)
}

func (in *Ingestion) InsertHoverResult(id, contents string) error {
	_, err := in.tx.Exec(
		"INSERT INTO vertices (index_id, id, label, seq, hover) VALUES (?, ?, 'hoverResult', ?, ?)",
		in.indexID, id, in.nextSeq(), contents,
	)
	return in.vertexErr("hoverResult", id, err)
}

// InsertMetaData stores the dump header. The vertex row keeps the metaData id
// inside the per-index uniqueness check; the tool fields land on the registry
// row, where they become visible once the index seals.
func (in *Ingestion) InsertMetaData(id, projectRoot, toolName, toolVersion string) error {
	_, err := in.tx.Exec(
		"INSERT INTO vertices (index_id, id, label, seq) VALUES (?, ?, 'metaData', ?)",
		in.indexID, id, in.nextSeq(),
	)
	if err := in.vertexErr("metaData", id, err); err != nil {
		return err
	}
	_, err = in.tx.Exec(
		"UPDATE indexes SET project_root = ?, tool_name = ?, tool_version = ? WHERE id = ?",
		projectRoot, toolName, toolVersion, in.indexID,
	)
	return translateError("record metadata", err)
}

// --- Edge inserts ---

// InsertEdge stores one edge element, one row per target vertex. Endpoints
// are not checked against the vertex table; adjacency joins at query time
// simply skip rows whose endpoints never arrived.
func (in *Ingestion) InsertEdge(id, label, outV string, inVs []string, property string) error {
	for _, inV := range inVs {
		_, err := in.tx.Exec(
			"INSERT INTO edges (index_id, id, label, out_v, in_v, property, seq) VALUES (?, ?, ?, ?, ?, ?, ?)",
			in.indexID, id, label, outV, inV, nullString(property), in.nextSeq(),
		)
		if err != nil {
			return &StorageError{Op: "insert edge " + label, Err: err}
		}
	}
	in.edges++
	return nil
}

// --- Lifecycle ---

// Seal flips the registry row to sealed and commits the graph in the same
// transaction, so the index becomes visible to queries all at once.
func (in *Ingestion) Seal() error {
	if in.done {
		return errors.New("ingestion already finished")
	}
	in.done = true

	_, err := in.tx.Exec(
		"UPDATE indexes SET state = ?, vertex_count = ?, edge_count = ?, sealed_at = ? WHERE id = ?",
		StateSealed, in.vertices, in.edges, time.Now().UTC(), in.indexID,
	)
	if err != nil {
		in.tx.Rollback()
		in.store.markAborted(in.indexID)
		return &StorageError{Op: "seal index", Err: err}
	}
	if err := in.tx.Commit(); err != nil {
		in.store.markAborted(in.indexID)
		return &StorageError{Op: "commit index", Err: err}
	}
	return nil
}

// Abort rolls the graph transaction back and marks the registry row aborted.
// Safe to call more than once.
func (in *Ingestion) Abort() {
	if in.done {
		return
	}
	in.done = true
	_ = in.tx.Rollback()
	in.store.markAborted(in.indexID)
}
