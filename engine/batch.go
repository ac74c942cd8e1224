package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/meenmo/quantcore/instrument"
	"github.com/meenmo/quantcore/valuation"
)

// PriceAll calculates independent options concurrently and returns their
// values in input order. Shared curves and processes are only read. The first
// failure cancels the remaining work.
func PriceAll(ctx context.Context, vc valuation.Context, options []*instrument.VanillaOption, workers int) ([]float64, error) {
	values := make([]float64, len(options))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, opt := range options {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := opt.NPV(vc)
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}
