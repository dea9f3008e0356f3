package trellis

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// IngestResult reports one dump's outcome from IngestPaths.
type IngestResult struct {
	Path    string
	IndexID string
	Err     error
}

// IngestPaths ingests several dump files concurrently, one fresh index per
// dump, at most WithParallel ingestions in flight. Each dump succeeds or
// fails on its own: a failed dump aborts only its own index, and the
// remaining dumps keep loading.
//
// Results are returned in input order. The returned error is non-nil when
// any dump failed; sealed indexes from the same call stay queryable.
func (e *Engine) IngestPaths(ctx context.Context, paths []string, meta IndexMeta) ([]IngestResult, error) {
	results := make([]IngestResult, len(paths))

	var g errgroup.Group
	g.SetLimit(e.parallel)
	for i, path := range paths {
		i, path := i, path // per-iteration copies; required while go.mod targets go < 1.22
		g.Go(func() error {
			id, err := e.IngestFile(ctx, path, meta)
			results[i] = IngestResult{Path: path, IndexID: id, Err: err}
			if err != nil {
				return fmt.Errorf("ingest %s: %w", path, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		failed := 0
		for _, r := range results {
			if r.Err != nil {
				failed++
			}
		}
		return results, fmt.Errorf("trellis: ingestion had %d error(s): %w", failed, err)
	}
	return results, nil
}
