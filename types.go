package trellis

import "github.com/jward/trellis/internal/store"

// Aliases for the internal store types that surface through the Engine API,
// so callers never import internal packages.

type Store = store.Store
type IndexMeta = store.IndexMeta
type IndexInfo = store.IndexInfo
type IndexStats = store.IndexStats

// Index states reported by IndexInfo.State.
const (
	StateIngesting = store.StateIngesting
	StateSealed    = store.StateSealed
	StateAborted   = store.StateAborted
)
