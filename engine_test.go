package trellis

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDump is a complete dump for one exported symbol, NewPerson: defined in
// person.go at [0:5,0:14], called from main.go at [2:8,2:17]. Both ranges
// share a resultSet carrying definition, reference, hover, and moniker data.
const testDump = `{"id":1,"type":"vertex","label":"metaData","version":"0.4.3","projectRoot":"file:///project","toolInfo":{"name":"lsif-go","version":"1.9.3"}}
{"id":2,"type":"vertex","label":"document","uri":"file:///project/person.go","languageId":"go"}
{"id":3,"type":"vertex","label":"document","uri":"file:///project/main.go","languageId":"go"}
{"id":4,"type":"vertex","label":"range","start":{"line":0,"character":5},"end":{"line":0,"character":14}}
{"id":5,"type":"vertex","label":"range","start":{"line":2,"character":8},"end":{"line":2,"character":17}}
{"id":6,"type":"vertex","label":"resultSet"}
{"id":7,"type":"vertex","label":"definitionResult"}
{"id":8,"type":"vertex","label":"referenceResult"}
{"id":9,"type":"vertex","label":"hoverResult","result":{"contents":{"kind":"markdown","value":"func NewPerson(name string) *Person"}}}
{"id":10,"type":"vertex","label":"moniker","scheme":"gomod","identifier":"example.com/demo:NewPerson","kind":"export"}
{"id":11,"type":"edge","label":"contains","outV":2,"inVs":[4]}
{"id":12,"type":"edge","label":"contains","outV":3,"inVs":[5]}
{"id":13,"type":"edge","label":"next","outV":4,"inV":6}
{"id":14,"type":"edge","label":"next","outV":5,"inV":6}
{"id":15,"type":"edge","label":"textDocument/definition","outV":6,"inV":7}
{"id":16,"type":"edge","label":"item","outV":7,"inVs":[4],"property":"definitions"}
{"id":17,"type":"edge","label":"textDocument/references","outV":6,"inV":8}
{"id":18,"type":"edge","label":"item","outV":8,"inVs":[5],"property":"references"}
{"id":19,"type":"edge","label":"item","outV":8,"inVs":[4],"property":"definitions"}
{"id":20,"type":"edge","label":"textDocument/hover","outV":6,"inV":9}
{"id":21,"type":"edge","label":"moniker","outV":6,"inV":10}
`

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	e, err := New(dbPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func ingestTestDump(t *testing.T, e *Engine) string {
	t.Helper()
	id, err := e.IngestStream(context.Background(), strings.NewReader(testDump), IndexMeta{Repo: "example/demo", Rev: "deadbeef"})
	require.NoError(t, err)
	return id
}

func writeDumpFile(t *testing.T, dir, name, dump string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(dump), 0644))
	return path
}

func TestNew_CreatesStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	e, err := New(dbPath)
	require.NoError(t, err)
	defer e.Close()

	require.NotNil(t, e.Store())

	// Verify the DB is usable (migration ran).
	infos, err := e.Indexes()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestNew_InvalidPath(t *testing.T) {
	_, err := New("/nonexistent/dir/db.sqlite")
	require.Error(t, err)
}

func TestClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	e, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, e.Close())
}

func TestQuery_ReturnsQueryBuilder(t *testing.T) {
	e := newTestEngine(t)
	require.NotNil(t, e.Query())
}

func TestWithParallel(t *testing.T) {
	e := newTestEngine(t, WithParallel(2))
	assert.Equal(t, 2, e.parallel)

	// Non-positive values keep the default.
	d := newTestEngine(t, WithParallel(0))
	assert.Positive(t, d.parallel)
}

// --- IngestStream tests ---

func TestIngestStream_SealsIndex(t *testing.T) {
	e := newTestEngine(t)
	id := ingestTestDump(t, e)

	_, err := uuid.Parse(id)
	require.NoError(t, err, "index identifiers are UUIDs")

	info, err := e.Index(id)
	require.NoError(t, err)
	assert.Equal(t, StateSealed, info.State)
	assert.Equal(t, "example/demo", info.Repo)
	assert.Equal(t, "deadbeef", info.Rev)
	assert.Equal(t, int64(10), info.VertexCount)
	assert.Equal(t, int64(11), info.EdgeCount)
	require.NotNil(t, info.SealedAt)

	// The metaData vertex lands on the registry row.
	assert.Equal(t, "file:///project", info.ProjectRoot)
	assert.Equal(t, "lsif-go", info.ToolName)
	assert.Equal(t, "1.9.3", info.ToolVersion)
}

func TestIngestStream_GeneratesFreshIdentifiers(t *testing.T) {
	e := newTestEngine(t)
	id1 := ingestTestDump(t, e)
	id2 := ingestTestDump(t, e)
	assert.NotEqual(t, id1, id2, "every ingestion gets its own identifier")

	infos, err := e.Indexes()
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestIngestStream_MalformedRecordAborts(t *testing.T) {
	e := newTestEngine(t)
	dump := `{"id":1,"type":"vertex","label":"resultSet"}
{"id":2,"type":"vertex","label":"document"}
`
	_, err := e.IngestStream(context.Background(), strings.NewReader(dump), IndexMeta{})
	require.Error(t, err)

	var malformed *MalformedElementError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 2, malformed.Element)

	// The registry keeps the aborted row; the graph keeps nothing.
	infos, err := e.Indexes()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, StateAborted, infos[0].State)

	stats, err := e.IndexStats(infos[0].ID)
	require.NoError(t, err)
	assert.Empty(t, stats.Vertices)
	assert.Empty(t, stats.Edges)
}

func TestIngestStream_DuplicateVertexAborts(t *testing.T) {
	e := newTestEngine(t)
	dump := `{"id":1,"type":"vertex","label":"document","uri":"file:///a.go"}
{"id":1,"type":"vertex","label":"document","uri":"file:///b.go"}
`
	_, err := e.IngestStream(context.Background(), strings.NewReader(dump), IndexMeta{})
	require.ErrorIs(t, err, ErrDuplicateVertex)

	infos, err := e.Indexes()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, StateAborted, infos[0].State)
}

func TestIngestStream_SkipsUnknownElements(t *testing.T) {
	var logBuf bytes.Buffer
	e := newTestEngine(t, WithLogger(NewLogger(slog.NewTextHandler(&logBuf, nil))))

	dump := `{"id":1,"type":"vertex","label":"resultSet"}
{"id":2,"type":"vertex","label":"packageInformation","name":"demo","manager":"gomod"}
{"id":3,"type":"edge","label":"textDocument/implementation","outV":1,"inV":1}
`
	id, err := e.IngestStream(context.Background(), strings.NewReader(dump), IndexMeta{})
	require.NoError(t, err)

	// Skipped elements count toward neither total.
	info, err := e.Index(id)
	require.NoError(t, err)
	assert.Equal(t, StateSealed, info.State)
	assert.Equal(t, int64(1), info.VertexCount)
	assert.Equal(t, int64(0), info.EdgeCount)

	logs := logBuf.String()
	assert.Contains(t, logs, "skipping unsupported element")
	assert.Contains(t, logs, "packageInformation")
	assert.Contains(t, logs, "textDocument/implementation")
}

func TestIngestStream_AbortedIdentifierNotReused(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.IngestStream(context.Background(), strings.NewReader("not json\n"), IndexMeta{})
	require.Error(t, err)

	id := ingestTestDump(t, e)

	infos, err := e.Indexes()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, StateAborted, infos[0].State)
	assert.Equal(t, StateSealed, infos[1].State)
	assert.Equal(t, id, infos[1].ID)
	assert.NotEqual(t, infos[0].ID, infos[1].ID)
}

func TestIngestStream_ContextCancelled(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.IngestStream(ctx, strings.NewReader(testDump), IndexMeta{})
	require.ErrorIs(t, err, context.Canceled)

	infos, err := e.Indexes()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, StateAborted, infos[0].State)
}

// --- IngestFile tests ---

func TestIngestFile(t *testing.T) {
	e := newTestEngine(t)
	path := writeDumpFile(t, t.TempDir(), "dump.lsif", testDump)

	id, err := e.IngestFile(context.Background(), path, IndexMeta{Repo: "example/demo"})
	require.NoError(t, err)

	info, err := e.Index(id)
	require.NoError(t, err)
	assert.Equal(t, StateSealed, info.State)
}

func TestIngestFile_Missing(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.IngestFile(context.Background(), "/nonexistent/dump.lsif", IndexMeta{})
	require.Error(t, err)

	// Nothing was registered.
	infos, err := e.Indexes()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

// --- IngestPaths tests ---

func TestIngestPaths_AllSucceed(t *testing.T) {
	e := newTestEngine(t, WithParallel(2))
	dir := t.TempDir()
	paths := []string{
		writeDumpFile(t, dir, "a.lsif", testDump),
		writeDumpFile(t, dir, "b.lsif", testDump),
		writeDumpFile(t, dir, "c.lsif", testDump),
	}

	results, err := e.IngestPaths(context.Background(), paths, IndexMeta{Repo: "example/demo"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	seen := make(map[string]bool)
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path, "results keep input order")
		require.NoError(t, r.Err)
		require.NotEmpty(t, r.IndexID)
		assert.False(t, seen[r.IndexID], "each dump gets its own index")
		seen[r.IndexID] = true

		info, err := e.Index(r.IndexID)
		require.NoError(t, err)
		assert.Equal(t, StateSealed, info.State)
	}
}

func TestIngestPaths_FailedDumpDoesNotBlockOthers(t *testing.T) {
	e := newTestEngine(t, WithParallel(2))
	dir := t.TempDir()
	bad := writeDumpFile(t, dir, "bad.lsif", "{\"id\":1,\"type\":\"vertex\",\"label\":\"document\"}\n")
	paths := []string{
		writeDumpFile(t, dir, "a.lsif", testDump),
		bad,
		writeDumpFile(t, dir, "c.lsif", testDump),
	}

	results, err := e.IngestPaths(context.Background(), paths, IndexMeta{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 error(s)")
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	assert.Empty(t, results[1].IndexID)
	require.NoError(t, results[2].Err)

	// The sealed siblings stay queryable.
	for _, i := range []int{0, 2} {
		locs, err := e.Query().DefinitionAt(results[i].IndexID, "file:///project/main.go", 2, 10)
		require.NoError(t, err)
		assert.Len(t, locs, 1)
	}
}

// --- Index lifecycle tests ---

func TestDeleteIndex(t *testing.T) {
	e := newTestEngine(t)
	id := ingestTestDump(t, e)

	require.NoError(t, e.DeleteIndex(context.Background(), id))

	_, err := e.Index(id)
	require.ErrorIs(t, err, ErrIndexNotFound)

	err = e.DeleteIndex(context.Background(), id)
	require.ErrorIs(t, err, ErrIndexNotFound)
}

func TestDeleteIndex_LeavesOthersQueryable(t *testing.T) {
	e := newTestEngine(t)
	id1 := ingestTestDump(t, e)
	id2 := ingestTestDump(t, e)

	require.NoError(t, e.DeleteIndex(context.Background(), id1))

	locs, err := e.Query().DefinitionAt(id2, "file:///project/main.go", 2, 10)
	require.NoError(t, err)
	assert.Len(t, locs, 1)
}

func TestIndexStats_CountsByLabel(t *testing.T) {
	e := newTestEngine(t)
	id := ingestTestDump(t, e)

	stats, err := e.IndexStats(id)
	require.NoError(t, err)
	assert.Equal(t, StateSealed, stats.State)
	assert.Equal(t, int64(2), stats.Vertices["document"])
	assert.Equal(t, int64(2), stats.Vertices["range"])
	assert.Equal(t, int64(1), stats.Vertices["resultSet"])
	assert.Equal(t, int64(2), stats.Edges["contains"])
	assert.Equal(t, int64(2), stats.Edges["next"])
	assert.Equal(t, int64(3), stats.Edges["item"])
}

func TestIndexStats_Unknown(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.IndexStats("no-such-index")
	require.ErrorIs(t, err, ErrIndexNotFound)
}
