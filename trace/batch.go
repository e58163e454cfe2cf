package trace

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunAll runs scenarios concurrently, each on its own core, with at most
// parallel scenarios in flight (unbounded when parallel <= 0). Results are
// returned in scenario order. The first run error cancels the remaining
// runs.
func (r *Runner) RunAll(
	ctx context.Context,
	scenarios []*Scenario,
	parallel int,
) ([]*Result, error) {
	results := make([]*Result, len(scenarios))

	g, gctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}

	for i, s := range scenarios {
		g.Go(func() error {
			res, err := r.Run(gctx, s)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
