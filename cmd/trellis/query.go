package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/trellis"
)

var (
	flagIndex       string
	flagIncludeDecl bool
	flagLimit       int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a sealed index",
	Long:  "Run queries against one sealed index, named with --index. All line and character numbers are 0-based.",
}

func init() {
	queryCmd.PersistentFlags().StringVar(&flagIndex, "index", "", "index identifier to query (required)")

	queryCmd.AddCommand(definitionCmd)
	queryCmd.AddCommand(referencesCmd)
	queryCmd.AddCommand(hoverCmd)
	queryCmd.AddCommand(searchCmd)
}

// --- Helpers ---

// requireIndex validates that --index was provided.
func requireIndex() (string, error) {
	if flagIndex == "" {
		return "", fmt.Errorf("--index is required (run 'trellis indexes' to list sealed indexes)")
	}
	return flagIndex, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// parsePositionArgs parses the shared <uri> <line> <character> argument triple.
func parsePositionArgs(args []string) (uri string, line, character int, err error) {
	uri = args[0]
	line, err = parseIntArg(args[1], "line")
	if err != nil {
		return "", 0, 0, err
	}
	character, err = parseIntArg(args[2], "character")
	if err != nil {
		return "", 0, 0, err
	}
	return uri, line, character, nil
}

// outputResult marshals a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(result)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}

// locationToCLI flattens a trellis.Location for the envelope.
func locationToCLI(loc trellis.Location) CLILocation {
	return CLILocation{
		URI:       loc.URI,
		StartLine: loc.Range.Start.Line,
		StartChar: loc.Range.Start.Character,
		EndLine:   loc.Range.End.Line,
		EndChar:   loc.Range.End.Character,
	}
}

func locationsToCLI(locs []trellis.Location) []CLILocation {
	cliLocs := make([]CLILocation, len(locs))
	for i, loc := range locs {
		cliLocs[i] = locationToCLI(loc)
	}
	return cliLocs
}

// --- Position-Based Commands ---

var definitionCmd = &cobra.Command{
	Use:   "definition <uri> <line> <character>",
	Short: "Find the definition of the symbol at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runDefinition,
}

func runDefinition(cmd *cobra.Command, args []string) error {
	indexID, err := requireIndex()
	if err != nil {
		return outputError("definition", err)
	}
	uri, line, character, err := parsePositionArgs(args)
	if err != nil {
		return outputError("definition", err)
	}

	engine, err := openEngine()
	if err != nil {
		return outputError("definition", err)
	}
	defer engine.Close()

	locs, err := engine.Query().DefinitionAt(indexID, uri, line, character)
	if err != nil {
		return outputError("definition", notFoundHint(err))
	}

	cliLocs := locationsToCLI(locs)
	count := len(cliLocs)
	return outputResult(CLIResult{
		Command:    "definition",
		Results:    cliLocs,
		TotalCount: &count,
	})
}

var referencesCmd = &cobra.Command{
	Use:   "references <uri> <line> <character>",
	Short: "Find all references to the symbol at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runReferences,
}

func init() {
	referencesCmd.Flags().BoolVar(&flagIncludeDecl, "include-declaration", false, "include the declaration itself in the results")
}

func runReferences(cmd *cobra.Command, args []string) error {
	indexID, err := requireIndex()
	if err != nil {
		return outputError("references", err)
	}
	uri, line, character, err := parsePositionArgs(args)
	if err != nil {
		return outputError("references", err)
	}

	engine, err := openEngine()
	if err != nil {
		return outputError("references", err)
	}
	defer engine.Close()

	locs, err := engine.Query().ReferencesAt(indexID, uri, line, character, flagIncludeDecl)
	if err != nil {
		return outputError("references", notFoundHint(err))
	}

	cliLocs := locationsToCLI(locs)
	count := len(cliLocs)
	return outputResult(CLIResult{
		Command:    "references",
		Results:    cliLocs,
		TotalCount: &count,
	})
}

var hoverCmd = &cobra.Command{
	Use:   "hover <uri> <line> <character>",
	Short: "Show hover markup for the symbol at a position",
	Args:  cobra.ExactArgs(3),
	RunE:  runHover,
}

func runHover(cmd *cobra.Command, args []string) error {
	indexID, err := requireIndex()
	if err != nil {
		return outputError("hover", err)
	}
	uri, line, character, err := parsePositionArgs(args)
	if err != nil {
		return outputError("hover", err)
	}

	engine, err := openEngine()
	if err != nil {
		return outputError("hover", err)
	}
	defer engine.Close()

	contents, err := engine.Query().HoverAt(indexID, uri, line, character)
	if err != nil {
		return outputError("hover", notFoundHint(err))
	}

	one := 1
	return outputResult(CLIResult{
		Command:    "hover",
		Results:    CLIHover{Contents: contents},
		TotalCount: &one,
	})
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index's symbols by moniker identifier",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&flagLimit, "limit", 50, "maximum matches to return (0 for all)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	indexID, err := requireIndex()
	if err != nil {
		return outputError("search", err)
	}

	engine, err := openEngine()
	if err != nil {
		return outputError("search", err)
	}
	defer engine.Close()

	matches, err := engine.Query().SearchSymbols(indexID, args[0], flagLimit)
	if err != nil {
		return outputError("search", notFoundHint(err))
	}

	cliMatches := make([]CLISymbolMatch, len(matches))
	for i, m := range matches {
		cliMatches[i] = CLISymbolMatch{
			Scheme:     m.Scheme,
			Identifier: m.Identifier,
			Kind:       m.Kind,
			Score:      m.Score,
		}
	}

	count := len(cliMatches)
	return outputResult(CLIResult{
		Command:    "search",
		Results:    cliMatches,
		TotalCount: &count,
	})
}
