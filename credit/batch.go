package credit

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meenmo/quantcore/valuation"
)

// EvaluateTranches computes the expected tranche loss of each basket at d
// concurrently, in input order. Models keep no per-call state, so one model
// serves every basket. The first failure cancels the remaining work.
func EvaluateTranches(ctx context.Context, vc valuation.Context, model LossModel, baskets []*Basket, d time.Time, workers int) ([]float64, error) {
	losses := make([]float64, len(baskets))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, b := range baskets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			l, err := model.ExpectedTrancheLoss(vc, b, d)
			if err != nil {
				return err
			}
			losses[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return losses, nil
}
