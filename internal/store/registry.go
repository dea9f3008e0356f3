package store

import (
	"database/sql"
	"fmt"
)

// IndexCols is the standard column list for scanning IndexInfo rows.
const IndexCols = "id, state, repo, rev, project_root, tool_name, tool_version, vertex_count, edge_count, created_at, sealed_at"

func scanIndexInfo(scanner interface{ Scan(dest ...any) error }) (*IndexInfo, error) {
	info := &IndexInfo{}
	var sealedAt sql.NullTime
	err := scanner.Scan(
		&info.ID, &info.State, &info.Repo, &info.Rev, &info.ProjectRoot,
		&info.ToolName, &info.ToolVersion, &info.VertexCount, &info.EdgeCount,
		&info.CreatedAt, &sealedAt,
	)
	if err != nil {
		return nil, err
	}
	if sealedAt.Valid {
		t := sealedAt.Time
		info.SealedAt = &t
	}
	return info, nil
}

// --- Registry operations ---

// IndexState returns the registry state for id.
func (s *Store) IndexState(id string) (string, error) {
	var state string
	err := s.db.QueryRow("SELECT state FROM indexes WHERE id = ?", id).Scan(&state)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", ErrIndexNotFound, id)
	}
	if err != nil {
		return "", translateError("index state", err)
	}
	return state, nil
}

// IndexByID returns the registry row for id regardless of state.
func (s *Store) IndexByID(id string) (*IndexInfo, error) {
	row := s.db.QueryRow("SELECT "+IndexCols+" FROM indexes WHERE id = ?", id)
	info, err := scanIndexInfo(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, id)
	}
	if err != nil {
		return nil, translateError("index by id", err)
	}
	return info, nil
}

// ListIndexes returns all registry rows, oldest first.
func (s *Store) ListIndexes() ([]*IndexInfo, error) {
	rows, err := s.db.Query("SELECT " + IndexCols + " FROM indexes ORDER BY created_at, id")
	if err != nil {
		return nil, translateError("list indexes", err)
	}
	defer rows.Close()

	var infos []*IndexInfo
	for rows.Next() {
		info, err := scanIndexInfo(rows)
		if err != nil {
			return nil, translateError("scan index", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list indexes", err)
	}
	return infos, nil
}

// DeleteIndex removes the registry row for id; the graph rows go with it via
// cascade. The single DELETE keeps removal atomic.
func (s *Store) DeleteIndex(id string) error {
	res, err := s.db.Exec("DELETE FROM indexes WHERE id = ?", id)
	if err != nil {
		return translateError("delete index", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translateError("delete index", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, id)
	}
	return nil
}

// markAborted downgrades a registry row after its ingestion failed. Best
// effort: the graph rows were already rolled back with the transaction.
func (s *Store) markAborted(id string) {
	_, _ = s.db.Exec("UPDATE indexes SET state = ? WHERE id = ? AND state = ?",
		StateAborted, id, StateIngesting)
}

// LabelCounts tallies an index's stored rows by vertex and edge label.
func (s *Store) LabelCounts(id string) (*IndexStats, error) {
	state, err := s.IndexState(id)
	if err != nil {
		return nil, err
	}
	stats := &IndexStats{
		IndexID:  id,
		State:    state,
		Vertices: make(map[string]int64),
		Edges:    make(map[string]int64),
	}
	for _, q := range []struct {
		sql  string
		into map[string]int64
	}{
		{"SELECT label, COUNT(*) FROM vertices WHERE index_id = ? GROUP BY label", stats.Vertices},
		{"SELECT label, COUNT(*) FROM edges WHERE index_id = ? GROUP BY label", stats.Edges},
	} {
		if err := s.countLabels(q.sql, id, q.into); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (s *Store) countLabels(query, id string, into map[string]int64) error {
	rows, err := s.db.Query(query, id)
	if err != nil {
		return translateError("label counts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var label string
		var n int64
		if err := rows.Scan(&label, &n); err != nil {
			return translateError("scan label count", err)
		}
		into[label] = n
	}
	if err := rows.Err(); err != nil {
		return translateError("label counts", err)
	}
	return nil
}
