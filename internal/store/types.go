package store

import "time"

// Index states. An index answers queries only once sealed.
const (
	StateIngesting = "ingesting"
	StateSealed    = "sealed"
	StateAborted   = "aborted"
)

// IndexMeta is the caller-supplied identity recorded when an ingestion
// starts. All fields are optional.
type IndexMeta struct {
	Repo string
	Rev  string
}

// IndexInfo is one registry row.
type IndexInfo struct {
	ID          string
	State       string
	Repo        string
	Rev         string
	ProjectRoot string
	ToolName    string
	ToolVersion string
	VertexCount int64
	EdgeCount   int64
	CreatedAt   time.Time
	SealedAt    *time.Time
}

// VertexRef is a lightweight vertex handle returned by adjacency lookups.
// Seq is the vertex's ingestion ordinal within its index.
type VertexRef struct {
	ID    string
	Label string
	Seq   int64
}

// RangeInfo is a range vertex with its document span.
type RangeInfo struct {
	ID        string
	StartLine int
	StartChar int
	EndLine   int
	EndChar   int
	Seq       int64
}

// MonikerInfo is a moniker vertex.
type MonikerInfo struct {
	ID         string
	Scheme     string
	Identifier string
	Kind       string
	Seq        int64
}

// IndexStats breaks an index down by vertex and edge label.
type IndexStats struct {
	IndexID  string
	State    string
	Vertices map[string]int64
	Edges    map[string]int64
}
