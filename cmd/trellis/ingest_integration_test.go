package main_test

import (
	"database/sql"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleDump covers one exported symbol with definition, reference, hover,
// and moniker data across two documents.
const sampleDump = `{"id":1,"type":"vertex","label":"metaData","version":"0.4.3","projectRoot":"file:///project","toolInfo":{"name":"lsif-go","version":"1.9.3"}}
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

// buildBinary compiles the trellis binary and returns the path.
// The binary is placed in t.TempDir() so it's cleaned up automatically.
func buildBinary(t *testing.T) string {
	t.Helper()
	binName := "trellis"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Dir = filepath.Join(projectRoot(t), "cmd", "trellis")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(out))
	return bin
}

// projectRoot returns the root of the trellis project by walking up from
// the test file's directory to find go.mod.
func projectRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, parent, dir, "could not find project root")
		dir = parent
	}
}

// createDumpFixture creates a temporary directory with a .git dir and a dump
// file. Returns the directory and the dump path.
func createDumpFixture(t *testing.T) (dir, dumpPath string) {
	t.Helper()
	dir = t.TempDir()

	// Create .git so findRepoRoot anchors the default DB path here.
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	dumpPath = filepath.Join(dir, "dump.lsif")
	require.NoError(t, os.WriteFile(dumpPath, []byte(sampleDump), 0o644))
	return dir, dumpPath
}

// runCLI executes the binary in dir and returns stdout plus the exit error.
// Error cases still produce a JSON envelope on stdout.
func runCLI(t *testing.T, bin, dir string, args ...string) ([]byte, error) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	stdout, err := cmd.Output()
	if err != nil && len(stdout) == 0 {
		if exitErr, ok := err.(*exec.ExitError); ok {
			t.Fatalf("command %v failed with no output: %v\nstderr: %s", args, err, exitErr.Stderr)
		}
		t.Fatalf("command %v failed with no output: %v", args, err)
	}
	return stdout, err
}

// parseEnvelope unmarshals a CLIResult JSON envelope.
func parseEnvelope(t *testing.T, stdout []byte) map[string]any {
	t.Helper()
	var result map[string]any
	require.NoError(t, json.Unmarshal(stdout, &result), "invalid JSON output: %s", string(stdout))
	return result
}

// ingestFixture builds the binary, creates a fixture, and ingests its dump.
// Returns the binary path, fixture dir, and the sealed index identifier.
func ingestFixture(t *testing.T) (bin, dir, indexID string) {
	t.Helper()
	bin = buildBinary(t)
	dir, dumpPath := createDumpFixture(t)

	stdout, err := runCLI(t, bin, dir, "ingest", "--repo", "example/demo", dumpPath)
	require.NoError(t, err, "ingest failed: %s", string(stdout))

	result := parseEnvelope(t, stdout)
	results, ok := result["results"].([]any)
	require.True(t, ok, "results should be an array")
	require.Len(t, results, 1)
	entry := results[0].(map[string]any)
	indexID, _ = entry["index_id"].(string)
	require.NotEmpty(t, indexID)
	return bin, dir, indexID
}

// openDB opens the SQLite database at the given path for verification.
func openDB(t *testing.T, dbPath string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var count int
	require.NoError(t, db.QueryRow(query, args...).Scan(&count))
	return count
}

func TestIngest_CreatesDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	_, dir, indexID := ingestFixture(t)

	dbPath := filepath.Join(dir, ".trellis", "index.db")
	require.FileExists(t, dbPath)

	db := openDB(t, dbPath)
	var state string
	require.NoError(t, db.QueryRow("SELECT state FROM indexes WHERE id = ?", indexID).Scan(&state))
	assert.Equal(t, "sealed", state)
	assert.Equal(t, 10, countRows(t, db, "SELECT COUNT(*) FROM vertices WHERE index_id = ?", indexID))
	assert.Equal(t, 11, countRows(t, db, "SELECT COUNT(*) FROM edges WHERE index_id = ?", indexID))
}

func TestIngest_CustomDBPath(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	dir, dumpPath := createDumpFixture(t)
	customDB := filepath.Join(t.TempDir(), "custom.db")

	stdout, err := runCLI(t, bin, dir, "ingest", "--db", customDB, dumpPath)
	require.NoError(t, err, "ingest failed: %s", string(stdout))

	require.FileExists(t, customDB)
	_, err = os.Stat(filepath.Join(dir, ".trellis", "index.db"))
	assert.True(t, os.IsNotExist(err), "default DB should not be created when --db is set")
}

func TestIngest_MalformedDumpAborts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin := buildBinary(t)
	dir, _ := createDumpFixture(t)
	badPath := filepath.Join(dir, "bad.lsif")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"id":1,"type":"vertex","label":"document"}`+"\n"), 0o644))

	stdout, err := runCLI(t, bin, dir, "ingest", badPath)
	require.Error(t, err, "malformed dump should exit non-zero")

	result := parseEnvelope(t, stdout)
	assert.Equal(t, "ingest", result["command"])
	assert.NotEmpty(t, result["error"])

	results := result["results"].([]any)
	require.Len(t, results, 1)
	entry := results[0].(map[string]any)
	assert.Contains(t, entry["error"], "malformed element 1")

	// The registry keeps the aborted row; the graph keeps nothing.
	db := openDB(t, filepath.Join(dir, ".trellis", "index.db"))
	assert.Equal(t, 1, countRows(t, db, "SELECT COUNT(*) FROM indexes WHERE state = 'aborted'"))
	assert.Equal(t, 0, countRows(t, db, "SELECT COUNT(*) FROM vertices"))
}

func TestIndexes_ListsSealed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin, dir, indexID := ingestFixture(t)

	stdout, err := runCLI(t, bin, dir, "indexes")
	require.NoError(t, err)

	result := parseEnvelope(t, stdout)
	assert.Equal(t, "indexes", result["command"])
	assert.EqualValues(t, 1, result["total_count"])

	results := result["results"].([]any)
	require.Len(t, results, 1)
	entry := results[0].(map[string]any)
	assert.Equal(t, indexID, entry["id"])
	assert.Equal(t, "sealed", entry["state"])
	assert.Equal(t, "example/demo", entry["repo"])
	assert.Equal(t, "lsif-go", entry["tool"])
	assert.EqualValues(t, 10, entry["vertices"])
}

func TestQuery_Definition(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin, dir, indexID := ingestFixture(t)

	stdout, err := runCLI(t, bin, dir, "query", "definition", "--index", indexID, "file:///project/main.go", "2", "10")
	require.NoError(t, err, "query failed: %s", string(stdout))

	result := parseEnvelope(t, stdout)
	assert.Equal(t, "definition", result["command"])
	assert.Empty(t, result["error"])

	results, ok := result["results"].([]any)
	require.True(t, ok, "results should be an array")
	require.Len(t, results, 1)
	loc := results[0].(map[string]any)
	assert.Equal(t, "file:///project/person.go", loc["uri"])
	assert.EqualValues(t, 0, loc["start_line"])
	assert.EqualValues(t, 5, loc["start_char"])
}

func TestQuery_Hover_TextFormat(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin, dir, indexID := ingestFixture(t)

	stdout, err := runCLI(t, bin, dir, "--format", "text", "query", "hover", "--index", indexID, "file:///project/person.go", "0", "7")
	require.NoError(t, err)
	assert.Equal(t, "func NewPerson(name string) *Person\n", string(stdout))
}

func TestQuery_UnknownIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin, dir, _ := ingestFixture(t)

	stdout, err := runCLI(t, bin, dir, "query", "definition", "--index", "no-such-index", "file:///project/main.go", "2", "10")
	require.Error(t, err, "unknown index should exit non-zero")

	result := parseEnvelope(t, stdout)
	assert.Equal(t, "definition", result["command"])
	assert.Contains(t, result["error"], "index not found")
}

func TestStats_PerLabelCounts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin, dir, indexID := ingestFixture(t)

	stdout, err := runCLI(t, bin, dir, "stats", indexID)
	require.NoError(t, err)

	result := parseEnvelope(t, stdout)
	stats := result["results"].(map[string]any)
	assert.Equal(t, indexID, stats["index_id"])
	assert.EqualValues(t, 10, stats["vertex_total"])
	assert.EqualValues(t, 11, stats["edge_total"])

	vertices := stats["vertices"].(map[string]any)
	assert.EqualValues(t, 2, vertices["document"])
	assert.EqualValues(t, 2, vertices["range"])
}

func TestDelete_RemovesIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	bin, dir, indexID := ingestFixture(t)

	stdout, err := runCLI(t, bin, dir, "delete", indexID)
	require.NoError(t, err, "delete failed: %s", string(stdout))

	stdout, err = runCLI(t, bin, dir, "indexes")
	require.NoError(t, err)
	result := parseEnvelope(t, stdout)
	assert.EqualValues(t, 0, result["total_count"])

	// Deleting again reports not found.
	stdout, err = runCLI(t, bin, dir, "delete", indexID)
	require.Error(t, err)
	result = parseEnvelope(t, stdout)
	assert.Contains(t, result["error"], "index not found")
}
