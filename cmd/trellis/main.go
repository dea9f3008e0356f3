package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/trellis"
)

var (
	flagDB      string
	flagFormat  string
	flagVerbose bool
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "trellis",
	Short:         "Graph-backed code intelligence index",
	Long:          "Trellis ingests LSIF-style graph element dumps into a SQLite database and answers definition, references, hover, and symbol search queries against sealed indexes.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .trellis/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "log ingestion progress to stderr")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(indexesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(queryCmd)
}

// engineOptions builds the Engine options shared by all commands.
func engineOptions() []trellis.Option {
	var opts []trellis.Option
	if flagVerbose {
		opts = append(opts, trellis.WithLogger(trellis.NewTextLogger(slog.LevelDebug)))
	}
	return opts
}

// openEngine opens the Engine against an existing database, erroring when no
// database has been created yet.
func openEngine() (*trellis.Engine, error) {
	dbPath, err := databasePath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'trellis ingest' first)", dbPath)
	}
	return trellis.New(dbPath, engineOptions()...)
}

// createEngine opens the Engine, creating the database directory if needed.
func createEngine() (*trellis.Engine, error) {
	dbPath, err := databasePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
	}
	return trellis.New(dbPath, engineOptions()...)
}

func databasePath() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	return resolveDBPath(findRepoRoot(cwd)), nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from the --db flag or the default.
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		if filepath.IsAbs(flagDB) {
			return flagDB
		}
		return filepath.Join(repoRoot, flagDB)
	}
	return filepath.Join(repoRoot, ".trellis", "index.db")
}
