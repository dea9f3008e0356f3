package trellis

import (
	"fmt"

	"github.com/jward/trellis/internal/lsif"
	"github.com/jward/trellis/internal/store"
)

// QueryBuilder answers position and symbol queries against sealed indexes.
type QueryBuilder struct {
	store *store.Store
}

// Position is a zero-based line/character offset within a document.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Range is a document span. Both endpoints are inclusive for position
// containment.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location is a range within a named document.
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// requireSealed gates every query: only sealed indexes are visible. Missing,
// ingesting, and aborted indexes all answer with ErrIndexNotFound.
func (q *QueryBuilder) requireSealed(indexID string) error {
	state, err := q.store.IndexState(indexID)
	if err != nil {
		return err
	}
	if state != store.StateSealed {
		return fmt.Errorf("%w: %s is %s", store.ErrIndexNotFound, indexID, state)
	}
	return nil
}

// DefinitionAt returns the definition locations for the symbol at the given
// position, or no locations when the position hits no range or the range has
// no definition. Results are deduplicated and keep graph traversal order.
func (q *QueryBuilder) DefinitionAt(indexID, uri string, line, character int) ([]Location, error) {
	if err := q.requireSealed(indexID); err != nil {
		return nil, err
	}
	r, err := q.store.RangeContaining(indexID, uri, line, character)
	if err != nil {
		return nil, fmt.Errorf("definition at: %w", err)
	}
	if r == nil {
		return nil, nil
	}

	_, terminals, err := q.resultChain(indexID, r.ID)
	if err != nil {
		return nil, fmt.Errorf("definition at: %w", err)
	}

	seen := make(map[string]bool)
	var ordered []*store.RangeInfo
	for _, t := range terminals {
		results, err := q.store.FollowOut(indexID, t, lsif.EdgeDefinition)
		if err != nil {
			return nil, fmt.Errorf("definition at: %w", err)
		}
		for _, dr := range results {
			items, err := q.store.ItemsOf(indexID, dr.ID, lsif.PropertyDefinitions)
			if err != nil {
				return nil, fmt.Errorf("definition at: %w", err)
			}
			for _, item := range items {
				if !seen[item.ID] {
					seen[item.ID] = true
					ordered = append(ordered, item)
				}
			}
		}
	}
	return q.locations(indexID, ordered)
}

// ReferencesAt returns every location that references the symbol at the
// given position. Vertices sharing a moniker identity with the hit range
// contribute their reference results too, so references recorded against a
// re-exported or aliased symbol are found. When includeDeclaration is set,
// ranges recorded under the definitions property are included as well.
func (q *QueryBuilder) ReferencesAt(indexID, uri string, line, character int, includeDeclaration bool) ([]Location, error) {
	if err := q.requireSealed(indexID); err != nil {
		return nil, err
	}
	r, err := q.store.RangeContaining(indexID, uri, line, character)
	if err != nil {
		return nil, fmt.Errorf("references at: %w", err)
	}
	if r == nil {
		return nil, nil
	}

	chain, _, err := q.resultChain(indexID, r.ID)
	if err != nil {
		return nil, fmt.Errorf("references at: %w", err)
	}
	chain, err = q.expandMonikers(indexID, chain)
	if err != nil {
		return nil, fmt.Errorf("references at: %w", err)
	}

	seenResult := make(map[string]bool)
	var resultIDs []string
	for _, v := range chain {
		refs, err := q.store.FollowOut(indexID, v, lsif.EdgeReferences)
		if err != nil {
			return nil, fmt.Errorf("references at: %w", err)
		}
		for _, rr := range refs {
			if !seenResult[rr.ID] {
				seenResult[rr.ID] = true
				resultIDs = append(resultIDs, rr.ID)
			}
		}
	}

	properties := []string{lsif.PropertyReferences}
	if includeDeclaration {
		properties = append(properties, lsif.PropertyDefinitions)
	}

	seen := make(map[string]bool)
	var ordered []*store.RangeInfo
	for _, resultID := range resultIDs {
		for _, property := range properties {
			items, err := q.store.ItemsOf(indexID, resultID, property)
			if err != nil {
				return nil, fmt.Errorf("references at: %w", err)
			}
			for _, item := range items {
				if !seen[item.ID] {
					seen[item.ID] = true
					ordered = append(ordered, item)
				}
			}
		}
	}
	return q.locations(indexID, ordered)
}

// HoverAt returns the hover markup for the symbol at the given position, or
// "" when the position hits no range or nothing along its chain carries a
// hover result.
func (q *QueryBuilder) HoverAt(indexID, uri string, line, character int) (string, error) {
	if err := q.requireSealed(indexID); err != nil {
		return "", err
	}
	r, err := q.store.RangeContaining(indexID, uri, line, character)
	if err != nil {
		return "", fmt.Errorf("hover at: %w", err)
	}
	if r == nil {
		return "", nil
	}

	chain, _, err := q.resultChain(indexID, r.ID)
	if err != nil {
		return "", fmt.Errorf("hover at: %w", err)
	}
	for _, v := range chain {
		hovers, err := q.store.FollowOut(indexID, v, lsif.EdgeHover)
		if err != nil {
			return "", fmt.Errorf("hover at: %w", err)
		}
		if len(hovers) == 0 {
			continue
		}
		contents, err := q.store.HoverContent(indexID, hovers[0].ID)
		if err != nil {
			return "", fmt.Errorf("hover at: %w", err)
		}
		return contents, nil
	}
	return "", nil
}

// resultChain walks next edges breadth-first from startID. It returns every
// vertex visited, startID first, plus the subset with no outgoing next edge.
// A visited set keeps malformed cyclic chains from looping.
func (q *QueryBuilder) resultChain(indexID, startID string) (visited, terminals []string, err error) {
	seen := map[string]bool{startID: true}
	visited = []string{startID}
	for i := 0; i < len(visited); i++ {
		id := visited[i]
		nexts, err := q.store.FollowOut(indexID, id, lsif.EdgeNext)
		if err != nil {
			return nil, nil, err
		}
		if len(nexts) == 0 {
			terminals = append(terminals, id)
			continue
		}
		for _, n := range nexts {
			if !seen[n.ID] {
				seen[n.ID] = true
				visited = append(visited, n.ID)
			}
		}
	}
	return visited, terminals, nil
}

// expandMonikers widens a next-edge chain with every vertex that shares a
// moniker identity with it, including those vertices' own chains. The input
// order is preserved; expansion appends in moniker order.
func (q *QueryBuilder) expandMonikers(indexID string, chain []string) ([]string, error) {
	all := append([]string(nil), chain...)
	seen := make(map[string]bool, len(chain))
	for _, id := range chain {
		seen[id] = true
	}

	type identity struct{ scheme, identifier string }
	seenIdent := make(map[identity]bool)
	var idents []identity
	for _, v := range chain {
		attached, err := q.store.FollowOut(indexID, v, lsif.EdgeMoniker)
		if err != nil {
			return nil, err
		}
		for _, m := range attached {
			info, err := q.store.Moniker(indexID, m.ID)
			if err != nil {
				return nil, err
			}
			if info == nil {
				continue
			}
			key := identity{info.Scheme, info.Identifier}
			if !seenIdent[key] {
				seenIdent[key] = true
				idents = append(idents, key)
			}
		}
	}

	for _, key := range idents {
		monikers, err := q.store.MonikersByIdentifier(indexID, key.scheme, key.identifier)
		if err != nil {
			return nil, err
		}
		for _, m := range monikers {
			owners, err := q.store.FollowIn(indexID, m.ID, lsif.EdgeMoniker)
			if err != nil {
				return nil, err
			}
			for _, owner := range owners {
				if seen[owner.ID] {
					continue
				}
				visited, _, err := q.resultChain(indexID, owner.ID)
				if err != nil {
					return nil, err
				}
				for _, v := range visited {
					if !seen[v] {
						seen[v] = true
						all = append(all, v)
					}
				}
			}
		}
	}
	return all, nil
}

// locations maps ranges to their owning documents. Ranges without a contains
// edge are dropped.
func (q *QueryBuilder) locations(indexID string, ranges []*store.RangeInfo) ([]Location, error) {
	if len(ranges) == 0 {
		return nil, nil
	}
	ids := make([]string, len(ranges))
	for i, r := range ranges {
		ids[i] = r.ID
	}
	uris, err := q.store.DocumentsOf(indexID, ids)
	if err != nil {
		return nil, err
	}

	var locs []Location
	for _, r := range ranges {
		uri, ok := uris[r.ID]
		if !ok {
			continue
		}
		locs = append(locs, Location{
			URI: uri,
			Range: Range{
				Start: Position{Line: r.StartLine, Character: r.StartChar},
				End:   Position{Line: r.EndLine, Character: r.EndChar},
			},
		})
	}
	return locs, nil
}
