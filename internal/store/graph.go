package store

import (
	"database/sql"
)

func scanRange(scanner interface{ Scan(dest ...any) error }) (*RangeInfo, error) {
	r := &RangeInfo{}
	err := scanner.Scan(&r.ID, &r.StartLine, &r.StartChar, &r.EndLine, &r.EndChar, &r.Seq)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func scanMoniker(scanner interface{ Scan(dest ...any) error }) (*MonikerInfo, error) {
	m := &MonikerInfo{}
	var kind sql.NullString
	err := scanner.Scan(&m.ID, &m.Scheme, &m.Identifier, &kind, &m.Seq)
	if err != nil {
		return nil, err
	}
	m.Kind = kind.String
	return m, nil
}

// --- Graph traversal operations ---

// RangeContaining returns the innermost range of the document at uri covering
// the zero-based (line, character) position, endpoints inclusive. Nesting
// ties break toward the smaller character span, then toward the
// earlier-ingested range. Returns nil when no range covers the position.
func (s *Store) RangeContaining(indexID, uri string, line, character int) (*RangeInfo, error) {
	row := s.db.QueryRow(`
		SELECT r.id, r.start_line, r.start_char, r.end_line, r.end_char, r.seq
		FROM vertices d
		JOIN edges c ON c.index_id = d.index_id AND c.out_v = d.id AND c.label = 'contains'
		JOIN vertices r ON r.index_id = c.index_id AND r.id = c.in_v AND r.label = 'range'
		WHERE d.index_id = ? AND d.label = 'document' AND d.uri = ?
		  AND r.start_line <= ? AND r.end_line >= ?
		  AND (r.start_line < ? OR (r.start_line = ? AND r.start_char <= ?))
		  AND (r.end_line > ? OR (r.end_line = ? AND r.end_char >= ?))
		ORDER BY (r.end_line - r.start_line), (r.end_char - r.start_char), r.seq
		LIMIT 1`,
		indexID, uri, line, line, line, line, character, line, line, character,
	)
	r, err := scanRange(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translateError("range containing", err)
	}
	return r, nil
}

// FollowOut returns the vertices reached over label edges leaving vertexID,
// in edge arrival order. Edges whose target vertex never arrived are skipped.
func (s *Store) FollowOut(indexID, vertexID, label string) ([]*VertexRef, error) {
	return s.adjacent("follow out "+label, `
		SELECT v.id, v.label, v.seq
		FROM edges e
		JOIN vertices v ON v.index_id = e.index_id AND v.id = e.in_v
		WHERE e.index_id = ? AND e.out_v = ? AND e.label = ?
		ORDER BY e.seq`,
		indexID, vertexID, label)
}

// FollowIn returns the vertices with label edges arriving at vertexID, in
// edge arrival order.
func (s *Store) FollowIn(indexID, vertexID, label string) ([]*VertexRef, error) {
	return s.adjacent("follow in "+label, `
		SELECT v.id, v.label, v.seq
		FROM edges e
		JOIN vertices v ON v.index_id = e.index_id AND v.id = e.out_v
		WHERE e.index_id = ? AND e.in_v = ? AND e.label = ?
		ORDER BY e.seq`,
		indexID, vertexID, label)
}

func (s *Store) adjacent(op, query string, args ...any) ([]*VertexRef, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, translateError(op, err)
	}
	defer rows.Close()

	var refs []*VertexRef
	for rows.Next() {
		ref := &VertexRef{}
		if err := rows.Scan(&ref.ID, &ref.Label, &ref.Seq); err != nil {
			return nil, translateError(op, err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(op, err)
	}
	return refs, nil
}

// ItemsOf returns the target ranges of item edges leaving resultID that carry
// property, in edge arrival order.
func (s *Store) ItemsOf(indexID, resultID, property string) ([]*RangeInfo, error) {
	rows, err := s.db.Query(`
		SELECT r.id, r.start_line, r.start_char, r.end_line, r.end_char, r.seq
		FROM edges e
		JOIN vertices r ON r.index_id = e.index_id AND r.id = e.in_v AND r.label = 'range'
		WHERE e.index_id = ? AND e.out_v = ? AND e.label = 'item' AND e.property = ?
		ORDER BY e.seq`,
		indexID, resultID, property,
	)
	if err != nil {
		return nil, translateError("items of", err)
	}
	defer rows.Close()

	var ranges []*RangeInfo
	for rows.Next() {
		r, err := scanRange(rows)
		if err != nil {
			return nil, translateError("scan item range", err)
		}
		ranges = append(ranges, r)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("items of", err)
	}
	return ranges, nil
}

// DocumentsOf maps each given range id to the uri of its containing document.
// Ranges no contains edge points at are absent from the result.
func (s *Store) DocumentsOf(indexID string, rangeIDs []string) (map[string]string, error) {
	uris := make(map[string]string, len(rangeIDs))
	if len(rangeIDs) == 0 {
		return uris, nil
	}
	args := append([]any{indexID}, stringsToArgs(rangeIDs)...)
	rows, err := s.db.Query(`
		SELECT c.in_v, d.uri
		FROM edges c
		JOIN vertices d ON d.index_id = c.index_id AND d.id = c.out_v AND d.label = 'document'
		WHERE c.index_id = ? AND c.label = 'contains' AND c.in_v IN (`+placeholderList(len(rangeIDs))+`)`,
		args...,
	)
	if err != nil {
		return nil, translateError("documents of", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rangeID, uri string
		if err := rows.Scan(&rangeID, &uri); err != nil {
			return nil, translateError("scan document uri", err)
		}
		uris[rangeID] = uri
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("documents of", err)
	}
	return uris, nil
}

// --- Moniker and hover lookups ---

// Moniker returns the moniker vertex with the given id, or nil when the id
// does not name a moniker.
func (s *Store) Moniker(indexID, vertexID string) (*MonikerInfo, error) {
	row := s.db.QueryRow(
		"SELECT id, scheme, identifier, kind, seq FROM vertices WHERE index_id = ? AND id = ? AND label = 'moniker'",
		indexID, vertexID,
	)
	m, err := scanMoniker(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, translateError("moniker", err)
	}
	return m, nil
}

// MonikersByIdentifier returns every moniker vertex sharing the given
// (scheme, identifier) pair, in ingestion order.
func (s *Store) MonikersByIdentifier(indexID, scheme, identifier string) ([]*MonikerInfo, error) {
	return s.monikerQuery("monikers by identifier",
		"SELECT id, scheme, identifier, kind, seq FROM vertices WHERE index_id = ? AND label = 'moniker' AND scheme = ? AND identifier = ? ORDER BY seq",
		indexID, scheme, identifier)
}

// Monikers returns every moniker vertex of the index, in ingestion order.
func (s *Store) Monikers(indexID string) ([]*MonikerInfo, error) {
	return s.monikerQuery("monikers",
		"SELECT id, scheme, identifier, kind, seq FROM vertices WHERE index_id = ? AND label = 'moniker' ORDER BY seq",
		indexID)
}

func (s *Store) monikerQuery(op, query string, args ...any) ([]*MonikerInfo, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, translateError(op, err)
	}
	defer rows.Close()

	var monikers []*MonikerInfo
	for rows.Next() {
		m, err := scanMoniker(rows)
		if err != nil {
			return nil, translateError("scan moniker", err)
		}
		monikers = append(monikers, m)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(op, err)
	}
	return monikers, nil
}

// HoverContent returns the stored markup of a hoverResult vertex, or "" when
// the id does not name one.
func (s *Store) HoverContent(indexID, vertexID string) (string, error) {
	var contents sql.NullString
	err := s.db.QueryRow(
		"SELECT hover FROM vertices WHERE index_id = ? AND id = ? AND label = 'hoverResult'",
		indexID, vertexID,
	).Scan(&contents)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", translateError("hover content", err)
	}
	return contents.String, nil
}
