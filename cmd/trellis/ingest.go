package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/trellis"
)

var (
	flagRepo string
	flagRev  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dump>...",
	Short: "Ingest dump files, one fresh index per dump",
	Long:  "Loads newline-delimited graph element dumps (plain, gzip, or zstd) into the database. Each dump seals into its own index; a bad dump aborts only its own index.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&flagRepo, "repo", "", "repository name to record on the indexes")
	ingestCmd.Flags().StringVar(&flagRev, "rev", "", "revision to record on the indexes")
}

func runIngest(cmd *cobra.Command, args []string) error {
	engine, err := createEngine()
	if err != nil {
		return outputError("ingest", err)
	}
	defer engine.Close()

	meta := trellis.IndexMeta{Repo: flagRepo, Rev: flagRev}
	results, ingestErr := engine.IngestPaths(context.Background(), args, meta)

	cliResults := make([]CLIIngest, len(results))
	sealed := 0
	for i, r := range results {
		cliResults[i] = CLIIngest{Path: r.Path, IndexID: r.IndexID}
		if r.Err != nil {
			cliResults[i].Error = r.Err.Error()
		} else {
			sealed++
		}
	}

	result := CLIResult{
		Command:    "ingest",
		Results:    cliResults,
		TotalCount: &sealed,
	}
	if ingestErr != nil {
		result.Error = ingestErr.Error()
	}
	if err := outputResult(result); err != nil {
		return err
	}
	if ingestErr != nil {
		// Envelope already carries the details.
		errorHandled = true
		return ingestErr
	}
	return nil
}

var indexesCmd = &cobra.Command{
	Use:   "indexes",
	Short: "List all indexes and their states",
	Args:  cobra.NoArgs,
	RunE:  runIndexes,
}

func runIndexes(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return outputError("indexes", err)
	}
	defer engine.Close()

	infos, err := engine.Indexes()
	if err != nil {
		return outputError("indexes", err)
	}

	cliIndexes := make([]CLIIndex, len(infos))
	for i, info := range infos {
		cliIndexes[i] = indexToCLI(info)
	}

	count := len(cliIndexes)
	return outputResult(CLIResult{
		Command:    "indexes",
		Results:    cliIndexes,
		TotalCount: &count,
	})
}

var statsCmd = &cobra.Command{
	Use:   "stats <index-id>",
	Short: "Show per-label graph counts for an index",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return outputError("stats", err)
	}
	defer engine.Close()

	stats, err := engine.IndexStats(args[0])
	if err != nil {
		return outputError("stats", err)
	}

	one := 1
	return outputResult(CLIResult{
		Command:    "stats",
		Results:    statsToCLI(stats),
		TotalCount: &one,
	})
}

var deleteCmd = &cobra.Command{
	Use:   "delete <index-id>",
	Short: "Delete an index and all of its graph data",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	engine, err := openEngine()
	if err != nil {
		return outputError("delete", err)
	}
	defer engine.Close()

	if err := engine.DeleteIndex(context.Background(), args[0]); err != nil {
		return outputError("delete", err)
	}

	one := 1
	return outputResult(CLIResult{
		Command:    "delete",
		Results:    CLIDeleted{IndexID: args[0]},
		TotalCount: &one,
	})
}

// indexToCLI converts an IndexInfo to its CLI representation.
func indexToCLI(info *trellis.IndexInfo) CLIIndex {
	ci := CLIIndex{
		ID:          info.ID,
		State:       info.State,
		Repo:        info.Repo,
		Rev:         info.Rev,
		ProjectRoot: info.ProjectRoot,
		Tool:        info.ToolName,
		ToolVersion: info.ToolVersion,
		Vertices:    info.VertexCount,
		Edges:       info.EdgeCount,
		CreatedAt:   info.CreatedAt.Format(time.RFC3339),
	}
	if info.SealedAt != nil {
		sealedAt := info.SealedAt.Format(time.RFC3339)
		ci.SealedAt = &sealedAt
	}
	return ci
}

// statsToCLI converts IndexStats to its CLI representation.
func statsToCLI(stats *trellis.IndexStats) CLIStats {
	cs := CLIStats{
		IndexID:  stats.IndexID,
		State:    stats.State,
		Vertices: stats.Vertices,
		Edges:    stats.Edges,
	}
	for _, n := range stats.Vertices {
		cs.VertexTotal += n
	}
	for _, n := range stats.Edges {
		cs.EdgeTotal += n
	}
	return cs
}

// notFoundHint rewrites ErrIndexNotFound with a pointer at the indexes
// command, which is the usual next step.
func notFoundHint(err error) error {
	if errors.Is(err, trellis.ErrIndexNotFound) {
		return fmt.Errorf("%w (run 'trellis indexes' to list sealed indexes)", err)
	}
	return err
}
