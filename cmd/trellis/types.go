package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLILocation is a flattened location for easy consumption.
type CLILocation struct {
	URI       string `json:"uri"`
	StartLine int    `json:"start_line"`
	StartChar int    `json:"start_char"`
	EndLine   int    `json:"end_line"`
	EndChar   int    `json:"end_char"`
}

// CLIHover carries hover markup. Contents is empty when the position has no
// hover.
type CLIHover struct {
	Contents string `json:"contents"`
}

// CLISymbolMatch is one symbol search hit.
type CLISymbolMatch struct {
	Scheme     string `json:"scheme"`
	Identifier string `json:"identifier"`
	Kind       string `json:"kind,omitempty"`
	Score      int    `json:"score"`
}

// CLIIndex is a JSON-friendly registry row.
type CLIIndex struct {
	ID          string  `json:"id"`
	State       string  `json:"state"`
	Repo        string  `json:"repo,omitempty"`
	Rev         string  `json:"rev,omitempty"`
	ProjectRoot string  `json:"project_root,omitempty"`
	Tool        string  `json:"tool,omitempty"`
	ToolVersion string  `json:"tool_version,omitempty"`
	Vertices    int64   `json:"vertices"`
	Edges       int64   `json:"edges"`
	CreatedAt   string  `json:"created_at"`
	SealedAt    *string `json:"sealed_at,omitempty"`
}

// CLIStats is a per-label breakdown of one index's graph.
type CLIStats struct {
	IndexID     string           `json:"index_id"`
	State       string           `json:"state"`
	Vertices    map[string]int64 `json:"vertices"`
	Edges       map[string]int64 `json:"edges"`
	VertexTotal int64            `json:"vertex_total"`
	EdgeTotal   int64            `json:"edge_total"`
}

// CLIIngest reports one dump's ingestion outcome.
type CLIIngest struct {
	Path    string `json:"path"`
	IndexID string `json:"index_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CLIDeleted acknowledges an index deletion.
type CLIDeleted struct {
	IndexID string `json:"index_id"`
}
