package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
)

// formatLocationsText formats CLILocation results as "uri:line:character" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.URI, loc.StartLine, loc.StartChar)
	}
}

// formatHoverText prints hover markup, or a placeholder when there is none.
func formatHoverText(w io.Writer, hover CLIHover) {
	if hover.Contents == "" {
		fmt.Fprintln(w, "(no hover)")
		return
	}
	fmt.Fprintln(w, hover.Contents)
}

// formatSymbolMatchesText formats CLISymbolMatch results as aligned columns.
func formatSymbolMatchesText(w io.Writer, matches []CLISymbolMatch) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTIFIER\tSCHEME\tKIND\tSCORE")
	for _, m := range matches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", m.Identifier, m.Scheme, m.Kind, m.Score)
	}
	tw.Flush()
}

// formatIndexesText formats CLIIndex results as aligned columns.
func formatIndexesText(w io.Writer, indexes []CLIIndex) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tREPO\tREV\tVERTICES\tEDGES\tCREATED")
	for _, idx := range indexes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			idx.ID, idx.State, idx.Repo, idx.Rev, idx.Vertices, idx.Edges, idx.CreatedAt)
	}
	tw.Flush()
}

// formatStatsText formats CLIStats as readable text.
func formatStatsText(w io.Writer, stats CLIStats) {
	fmt.Fprintf(w, "Index: %s (%s)\n", stats.IndexID, stats.State)
	fmt.Fprintf(w, "Vertices: %d\n", stats.VertexTotal)
	for _, label := range sortedKeys(stats.Vertices) {
		fmt.Fprintf(w, "  %s: %d\n", label, stats.Vertices[label])
	}
	fmt.Fprintf(w, "Edges: %d\n", stats.EdgeTotal)
	for _, label := range sortedKeys(stats.Edges) {
		fmt.Fprintf(w, "  %s: %d\n", label, stats.Edges[label])
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// formatIngestText formats CLIIngest results, one dump per line.
func formatIngestText(w io.Writer, results []CLIIngest) {
	for _, r := range results {
		if r.Error != "" {
			fmt.Fprintf(w, "%s: failed: %s\n", r.Path, r.Error)
			continue
		}
		fmt.Fprintf(w, "%s: sealed index %s\n", r.Path, r.IndexID)
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type. It writes to os.Stdout.
func outputResultText(result CLIResult) error {
	w := io.Writer(os.Stdout)

	switch v := result.Results.(type) {
	case []CLILocation:
		formatLocationsText(w, v)
	case CLIHover:
		formatHoverText(w, v)
	case []CLISymbolMatch:
		formatSymbolMatchesText(w, v)
	case []CLIIndex:
		formatIndexesText(w, v)
	case CLIStats:
		formatStatsText(w, v)
	case []CLIIngest:
		formatIngestText(w, v)
	case CLIDeleted:
		fmt.Fprintf(w, "Deleted index %s\n", v.IndexID)
	case nil:
		// No output for nil results.
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
