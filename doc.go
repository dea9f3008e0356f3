// Package trellis is a graph-backed code intelligence index. It ingests
// newline-delimited dumps of graph elements in the shape LSIF-style indexers
// emit, persists them in SQLite, and answers the editor-facing queries:
// go-to-definition, find-references, hover, and symbol search.
//
// # Data model
//
// A dump is a stream of vertices (documents, ranges, result sets, monikers,
// definition/reference/hover results) and edges (contains, next, moniker,
// textDocument/definition, textDocument/references, textDocument/hover,
// item). Trellis stores the graph as-is: edges are kept as adjacency rows
// and walked at query time rather than being resolved into flat tables
// during ingestion.
//
// # Snapshots
//
// Every ingestion produces a fresh index named by an opaque identifier, so
// several snapshots of the same codebase can coexist in one database. An
// index is invisible to queries until the whole dump has loaded and the
// index seals; a malformed record or duplicate vertex id aborts the
// ingestion and leaves no graph data behind. Deleting an index removes it
// and its data in one atomic step.
//
// # Usage
//
// Create an Engine, ingest a dump, and query:
//
//	e, err := trellis.New("trellis.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	id, err := e.IngestFile(ctx, "dump.lsif", trellis.IndexMeta{Repo: "example/repo"})
//
//	q := e.Query()
//	locs, err := q.DefinitionAt(id, "file:///main.go", 10, 5)
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] provides four operations:
//
//   - [QueryBuilder.DefinitionAt] answers go-to-definition: where the symbol
//     at a position is defined.
//   - [QueryBuilder.ReferencesAt] answers find-references: every location
//     that references the symbol at a position, optionally including the
//     declaration itself.
//   - [QueryBuilder.HoverAt] returns hover markup for the symbol at a
//     position.
//   - [QueryBuilder.SearchSymbols] runs a ranked moniker search across an
//     index.
//
// All four operate on a single index, named explicitly on every call, and
// answer [ErrIndexNotFound] unless that index is sealed.
//
// # Dumps
//
// [Engine.IngestStream] accepts plain, gzip, and zstd encoded input,
// detected by magic bytes. [Engine.IngestPaths] loads several dump files
// concurrently, each into its own index; one bad dump does not disturb the
// others.
package trellis
