package trellis

import (
	"github.com/jward/trellis/internal/lsif"
	"github.com/jward/trellis/internal/store"
)

// Sentinel errors surfaced by the Engine and QueryBuilder. Use errors.Is to
// test for them through the wrapping added by each operation.
var (
	// ErrIndexNotFound means the identifier does not name a sealed index:
	// unknown, still ingesting, aborted, or deleted.
	ErrIndexNotFound = store.ErrIndexNotFound

	// ErrDuplicateVertex means a dump reused a vertex id within one index.
	// The ingestion that hit it was aborted.
	ErrDuplicateVertex = store.ErrDuplicateVertex
)

// MalformedElementError reports the dump record that made an ingestion
// abort. Retrieve it with errors.As.
type MalformedElementError = lsif.MalformedElementError

// StorageError reports a failure of the underlying database.
type StorageError = store.StorageError
