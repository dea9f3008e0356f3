package trellis

import (
	"fmt"
	"sort"
	"strings"
)

// SymbolMatch is one SearchSymbols hit.
type SymbolMatch struct {
	Scheme     string `json:"scheme"`
	Identifier string `json:"identifier"`
	Kind       string `json:"kind,omitempty"`
	Score      int    `json:"score"`
}

// SearchSymbols matches the index's moniker identifiers against query,
// case-insensitively. Matches rank by kind: 0=exact, 1=prefix, 2=contains,
// 3=fuzzy (edit distance below 3). Equal ranks keep ingestion order. A
// non-positive limit returns all matches; an empty query matches nothing.
func (q *QueryBuilder) SearchSymbols(indexID, query string, limit int) ([]SymbolMatch, error) {
	if err := q.requireSealed(indexID); err != nil {
		return nil, err
	}
	if query == "" {
		return nil, nil
	}

	monikers, err := q.store.Monikers(indexID)
	if err != nil {
		return nil, fmt.Errorf("search symbols: %w", err)
	}

	queryLower := strings.ToLower(query)
	var matches []SymbolMatch
	for _, m := range monikers {
		identLower := strings.ToLower(m.Identifier)
		score := -1

		// Check match types in priority order.
		if identLower == queryLower {
			score = 0 // Exact match
		} else if strings.HasPrefix(identLower, queryLower) {
			score = 1 // Prefix match
		} else if strings.Contains(identLower, queryLower) {
			score = 2 // Contains
		} else if levenshteinDistance(identLower, queryLower) < 3 {
			score = 3 // Fuzzy match
		}

		if score >= 0 {
			matches = append(matches, SymbolMatch{
				Scheme:     m.Scheme,
				Identifier: m.Identifier,
				Kind:       m.Kind,
				Score:      score,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score < matches[j].Score
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// levenshteinDistance calculates the edit distance between two strings,
// counted in runes so multi-byte identifiers are not over-penalized.
// This is a simple implementation for fuzzy matching.
func levenshteinDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Use two rows instead of full matrix for memory efficiency
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}
