package trellis

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/google/uuid"

	"github.com/jward/trellis/internal/lsif"
	"github.com/jward/trellis/internal/store"
)

// Engine owns the SQLite store and orchestrates dump ingestion, index
// lifecycle, and query access.
type Engine struct {
	store    *store.Store
	log      *Logger
	parallel int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Engines log nothing by default.
func WithLogger(l *Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithParallel bounds how many dumps IngestPaths loads concurrently.
// Defaults to the number of CPUs.
func WithParallel(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallel = n
		}
	}
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("trellis: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("trellis: migrate: %w", err)
	}

	e := &Engine{
		store:    s,
		log:      NoopLogger(),
		parallel: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return &QueryBuilder{store: e.store}
}

// IngestStream loads one dump from r into a fresh index and returns its
// identifier. The dump may be plain, gzip, or zstd encoded.
//
// The new index becomes visible to queries only if the whole stream loads
// cleanly; a malformed record, a duplicate vertex id, or a cancelled context
// aborts the ingestion and leaves no graph data behind. Elements with an
// unsupported type/label pair are skipped with a warning. The identifier of
// an aborted ingestion is never reused.
func (e *Engine) IngestStream(ctx context.Context, r io.Reader, meta IndexMeta) (string, error) {
	rd, err := lsif.NewReader(r)
	if err != nil {
		return "", fmt.Errorf("trellis: open dump: %w", err)
	}
	defer rd.Close()

	id := uuid.NewString()
	ing, err := e.store.BeginIngestion(id, meta)
	if err != nil {
		return "", fmt.Errorf("trellis: ingest: %w", err)
	}

	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			ing.Abort()
			e.log.LogIngest(ctx, id, ing.Vertices(), ing.Edges(), skipped, err)
			return "", fmt.Errorf("trellis: ingest: %w", err)
		}

		el, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			ing.Abort()
			e.log.LogIngest(ctx, id, ing.Vertices(), ing.Edges(), skipped, err)
			return "", fmt.Errorf("trellis: ingest: %w", err)
		}

		if !el.Known() {
			skipped++
			e.log.LogSkippedElement(ctx, id, el.Type, el.Label, rd.Count())
			continue
		}

		if err := writeElement(ing, el); err != nil {
			ing.Abort()
			e.log.LogIngest(ctx, id, ing.Vertices(), ing.Edges(), skipped, err)
			return "", fmt.Errorf("trellis: ingest element %d: %w", rd.Count(), err)
		}
	}

	if err := ing.Seal(); err != nil {
		e.log.LogIngest(ctx, id, ing.Vertices(), ing.Edges(), skipped, err)
		return "", fmt.Errorf("trellis: ingest: %w", err)
	}
	e.log.LogIngest(ctx, id, ing.Vertices(), ing.Edges(), skipped, nil)
	return id, nil
}

// writeElement maps one decoded element onto the matching store insert.
func writeElement(ing *store.Ingestion, el *lsif.Element) error {
	switch el.Type {
	case lsif.VertexElement:
		switch el.Label {
		case lsif.LabelDocument:
			return ing.InsertDocument(el.ID, el.Document.URI, el.Document.LanguageID)
		case lsif.LabelRange:
			r := el.Range
			return ing.InsertRange(el.ID, r.Start.Line, r.Start.Character, r.End.Line, r.End.Character)
		case lsif.LabelResultSet:
			return ing.InsertResultSet(el.ID)
		case lsif.LabelDefinitionResult:
			return ing.InsertDefinitionResult(el.ID)
		case lsif.LabelReferenceResult:
			return ing.InsertReferenceResult(el.ID)
		case lsif.LabelMoniker:
			m := el.Moniker
			return ing.InsertMoniker(el.ID, m.Scheme, m.Identifier, m.Kind)
		case lsif.LabelHoverResult:
			return ing.InsertHoverResult(el.ID, el.Hover.Contents)
		case lsif.LabelMetaData:
			md := el.Meta
			return ing.InsertMetaData(el.ID, md.ProjectRoot, md.ToolName, md.ToolVersion)
		}
	case lsif.EdgeElement:
		return ing.InsertEdge(el.ID, el.Label, el.Edge.OutV, el.Edge.InVs, el.Edge.Property)
	}
	return nil
}

// IngestFile ingests the dump at path. See IngestStream.
func (e *Engine) IngestFile(ctx context.Context, path string, meta IndexMeta) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("trellis: open %s: %w", path, err)
	}
	defer f.Close()
	return e.IngestStream(ctx, f, meta)
}

// DeleteIndex removes an index and all of its graph data in one atomic step.
// Returns ErrIndexNotFound when the identifier is unknown.
func (e *Engine) DeleteIndex(ctx context.Context, id string) error {
	err := e.store.DeleteIndex(id)
	e.log.LogDelete(ctx, id, err)
	return err
}

// Indexes returns the registry rows for every known index, oldest first,
// including those still ingesting or aborted.
func (e *Engine) Indexes() ([]*IndexInfo, error) {
	return e.store.ListIndexes()
}

// Index returns the registry row for one index, regardless of state.
func (e *Engine) Index(id string) (*IndexInfo, error) {
	return e.store.IndexByID(id)
}

// IndexStats tallies an index's stored graph rows by label.
func (e *Engine) IndexStats(id string) (*IndexStats, error) {
	return e.store.LabelCounts(id)
}
