package credit

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/meenmo/quantcore/quote"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

const largePoolName = "large_pool"

// largePoolPoints is the number of loss points the distribution is
// tabulated on.
const largePoolPoints = 201

// LargePoolLossModel is the one-factor Gaussian large homogeneous pool
// limit: the pool loses its LGD-weighted average default probability
// conditional on the factor, with no idiosyncratic dispersion.
type LargePoolLossModel struct {
	trancheAnalytics
	correl quote.Quote
	factor *GaussianLatentModel
	opts   options
}

// NewLargePoolLossModel builds the model on an asset correlation quote.
func NewLargePoolLossModel(correl quote.Quote, order int, opts ...Option) (*LargePoolLossModel, error) {
	factor, err := NewHomogeneousGaussianLatentModel(correl, 1, order)
	if err != nil {
		return nil, err
	}
	m := &LargePoolLossModel{correl: correl, factor: factor, opts: newOptions(opts)}
	m.trancheAnalytics = trancheAnalytics{distribution: m.distribution}
	return m, nil
}

func (l *LargePoolLossModel) Name() string { return largePoolName }

// homogeneous collapses the pool to its total loss amount and average
// default probability.
func (l *LargePoolLossModel) homogeneous(vc valuation.Context, b *Basket, d time.Time) (pool, float64, float64, error) {
	if err := l.factor.Validate(); err != nil {
		return pool{}, 0, 0, err
	}
	p, err := b.pool(vc, d)
	if err != nil {
		return pool{}, 0, 0, err
	}
	var total, weighted float64
	for k := range p.live {
		lgd := p.notionals[k] * (1 - p.recoveries[k])
		total += lgd
		weighted += lgd * p.probs[k]
	}
	if total <= utils.Epsilon {
		return p, 0, 0, nil
	}
	return p, total, weighted / total, nil
}

// ExpectedTrancheLoss integrates the clipped conditional pool loss.
func (l *LargePoolLossModel) ExpectedTrancheLoss(vc valuation.Context, b *Basket, d time.Time) (float64, error) {
	p, total, pd, err := l.homogeneous(vc, b, d)
	if err != nil {
		return 0, err
	}
	l.opts.metrics.IncLossModel(largePoolName)
	if total == 0 {
		return 0, nil
	}
	inv := l.factor.DefaultThreshold(pd, 0)
	return l.factor.IntegratedExpectedValue(func(m []float64) float64 {
		return p.trancheLoss(total * l.factor.ConditionalDefaultProbabilityInvP(inv, 0, m))
	}), nil
}

// distribution tabulates the closed-form limiting loss distribution
// P(L <= x) = N((sqrt(1-rho) N^-1(x/total) - N^-1(pd)) / sqrt(rho)).
func (l *LargePoolLossModel) distribution(vc valuation.Context, b *Basket, d time.Time) (pool, Distribution, error) {
	p, total, pd, err := l.homogeneous(vc, b, d)
	if err != nil {
		return pool{}, Distribution{}, err
	}
	l.opts.metrics.IncLossModel(largePoolName)
	if total == 0 || pd <= utils.Epsilon {
		return p, deterministic(), nil
	}
	if pd >= 1-utils.Epsilon {
		return p, Distribution{Losses: []float64{total}, Probabilities: []float64{1}, Cumulative: []float64{1}}, nil
	}
	rho, err := l.correl.Value()
	if err != nil {
		return pool{}, Distribution{}, err
	}

	losses := make([]float64, largePoolPoints)
	cumulative := make([]float64, largePoolPoints)
	inv := distuv.UnitNormal.Quantile(pd)
	for i := range losses {
		x := float64(i) / float64(largePoolPoints-1)
		losses[i] = x * total
		switch {
		case i == largePoolPoints-1:
			cumulative[i] = 1
		case rho <= utils.Epsilon:
			// no factor dispersion: the pool loses pd for sure
			if x >= pd {
				cumulative[i] = 1
			}
		case i == 0:
			cumulative[i] = 0
		default:
			z := (math.Sqrt(1-rho)*distuv.UnitNormal.Quantile(x) - inv) / math.Sqrt(rho)
			cumulative[i] = distuv.UnitNormal.CDF(z)
		}
	}
	probs := make([]float64, largePoolPoints)
	prev := 0.0
	for i, c := range cumulative {
		probs[i] = c - prev
		prev = c
	}
	return p, newDistribution(losses, probs), nil
}
