package credit

import (
	"log/slog"
	"math"
	"time"

	"github.com/meenmo/quantcore/logger"
	"github.com/meenmo/quantcore/metrics"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/valuation"
)

// LossModel prices the tranche of a basket from the unconditional loss
// distribution at a date. Amounts are in notional units and refer to the
// names still alive at the evaluation date.
type LossModel interface {
	Name() string
	ExpectedTrancheLoss(vc valuation.Context, b *Basket, d time.Time) (float64, error)
	LossDistribution(vc valuation.Context, b *Basket, d time.Time) (Distribution, error)
	// Percentile is the tranche loss at the given probability level.
	Percentile(vc valuation.Context, b *Basket, d time.Time, perc float64) (float64, error)
	// ExpectedShortfall is the mean tranche loss beyond the percentile.
	ExpectedShortfall(vc valuation.Context, b *Basket, d time.Time, perc float64) (float64, error)
	// ProbOverLoss is the probability that the pool loss exceeds the given
	// fraction of the tranche width.
	ProbOverLoss(vc valuation.Context, b *Basket, d time.Time, trancheFraction float64) (float64, error)
}

// Distribution is a discrete pool loss distribution with increasing loss
// points. Cumulative is capped at 1.
type Distribution struct {
	Losses        []float64 `json:"losses"`
	Probabilities []float64 `json:"probabilities"`
	Cumulative    []float64 `json:"cumulative"`
}

// newDistribution merges equal loss points and accumulates the masses.
func newDistribution(losses, probs []float64) Distribution {
	var dist Distribution
	var sum float64
	for i, l := range losses {
		sum += probs[i]
		n := len(dist.Losses)
		if n > 0 && l == dist.Losses[n-1] {
			dist.Probabilities[n-1] += probs[i]
			dist.Cumulative[n-1] = math.Min(sum, 1)
			continue
		}
		dist.Losses = append(dist.Losses, l)
		dist.Probabilities = append(dist.Probabilities, probs[i])
		dist.Cumulative = append(dist.Cumulative, math.Min(sum, 1))
	}
	return dist
}

// deterministic is the distribution of a pool with nothing left to lose.
func deterministic() Distribution {
	return Distribution{Losses: []float64{0}, Probabilities: []float64{1}, Cumulative: []float64{1}}
}

// Quantile is the pool loss at probability level perc, interpolating
// linearly between bracketing cumulative points.
func (d Distribution) Quantile(perc float64) float64 {
	n := len(d.Losses)
	if d.Cumulative[0] >= perc || n == 1 {
		return d.Losses[0]
	}
	i := 1
	for i < n-1 && d.Cumulative[i] < perc {
		i++
	}
	if d.Cumulative[i] <= perc {
		return d.Losses[i]
	}
	lo, hi := d.Cumulative[i-1], d.Cumulative[i]
	return d.Losses[i] - (d.Losses[i]-d.Losses[i-1])*(hi-perc)/(hi-lo)
}

// CDF is the probability that the pool loss is at most loss.
func (d Distribution) CDF(loss float64) float64 {
	n := len(d.Losses)
	if loss < d.Losses[0] {
		return 0
	}
	if loss >= d.Losses[n-1] {
		return d.Cumulative[n-1]
	}
	i := 1
	for d.Losses[i] < loss {
		i++
	}
	if d.Losses[i] == loss {
		return d.Cumulative[i]
	}
	w := (loss - d.Losses[i-1]) / (d.Losses[i] - d.Losses[i-1])
	return d.Cumulative[i-1] + w*(d.Cumulative[i]-d.Cumulative[i-1])
}

// expectedTrancheLoss is E[min(max(L - a, 0), d - a)].
func (d Distribution) expectedTrancheLoss(p pool) float64 {
	var sum float64
	for i, l := range d.Losses {
		sum += d.Probabilities[i] * p.trancheLoss(l)
	}
	return sum
}

// expectedShortfall integrates the tranche quantile function above perc
// with the trapezoidal rule and normalizes by the tail mass.
func (d Distribution) expectedShortfall(p pool, perc float64) float64 {
	u0 := perc
	q0 := p.trancheLoss(d.Quantile(perc))
	var sum float64
	for i, c := range d.Cumulative {
		if c <= u0 {
			continue
		}
		qi := p.trancheLoss(d.Losses[i])
		sum += 0.5 * (c - u0) * (q0 + qi)
		u0, q0 = c, qi
	}
	if u0 < 1 {
		sum += (1 - u0) * q0
	}
	return sum / (1 - perc)
}

// Option configures a loss model.
type Option func(*options)

type options struct {
	log     *slog.Logger
	metrics *metrics.Metrics
}

// WithLogger sets the model logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics counts distribution evaluations into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func newOptions(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	o.log = logger.OrDefault(o.log)
	return o
}

// distributionFunc computes the unconditional pool loss distribution.
type distributionFunc func(vc valuation.Context, b *Basket, d time.Time) (pool, Distribution, error)

// trancheAnalytics derives the tranche statistics shared by every model
// from its distribution.
type trancheAnalytics struct {
	distribution distributionFunc
}

func (t trancheAnalytics) LossDistribution(vc valuation.Context, b *Basket, d time.Time) (Distribution, error) {
	_, dist, err := t.distribution(vc, b, d)
	return dist, err
}

func (t trancheAnalytics) Percentile(vc valuation.Context, b *Basket, d time.Time, perc float64) (float64, error) {
	if perc < 0 || perc > 1 {
		return 0, qerr.Invalid("percentile (%g) must be in [0, 1]", perc)
	}
	p, dist, err := t.distribution(vc, b, d)
	if err != nil {
		return 0, err
	}
	return p.trancheLoss(dist.Quantile(perc)), nil
}

func (t trancheAnalytics) ExpectedShortfall(vc valuation.Context, b *Basket, d time.Time, perc float64) (float64, error) {
	if perc < 0 || perc >= 1 {
		return 0, qerr.Invalid("percentile (%g) must be in [0, 1)", perc)
	}
	if err := vc.Validate(); err != nil {
		return 0, err
	}
	if d.Equal(vc.EvaluationDate) {
		return 0, nil
	}
	p, dist, err := t.distribution(vc, b, d)
	if err != nil {
		return 0, err
	}
	return dist.expectedShortfall(p, perc), nil
}

func (t trancheAnalytics) ProbOverLoss(vc valuation.Context, b *Basket, d time.Time, trancheFraction float64) (float64, error) {
	if trancheFraction < 0 || trancheFraction > 1 {
		return 0, qerr.Invalid("tranche fraction (%g) must be in [0, 1]", trancheFraction)
	}
	p, dist, err := t.distribution(vc, b, d)
	if err != nil {
		return 0, err
	}
	loss := p.attach + trancheFraction*(p.detach-p.attach)
	return math.Max(1-dist.CDF(loss), 0), nil
}

// conditionalFunc is a loss distribution on fixed points conditional on
// the market factor. saturated reports a degenerate conditional law.
type conditionalFunc func(m []float64) (probs []float64, saturated bool)

// gridBuilder prepares the loss points of a pool and its conditional
// distribution on them. inv holds the default thresholds of the live names.
type gridBuilder func(p pool, inv []float64) (points []float64, cond conditionalFunc)

// gridModel integrates a conditional distribution on fixed loss points
// over the latent factor.
type gridModel struct {
	trancheAnalytics
	name   string
	latent LatentModel
	build  gridBuilder
	opts   options
}

func newGridModel(name string, latent LatentModel, build gridBuilder, opts []Option) *gridModel {
	g := &gridModel{name: name, latent: latent, build: build, opts: newOptions(opts)}
	g.trancheAnalytics = trancheAnalytics{distribution: g.distribution}
	return g
}

func (g *gridModel) Name() string { return g.name }

func (g *gridModel) distribution(vc valuation.Context, b *Basket, d time.Time) (pool, Distribution, error) {
	if n := g.latent.Size(); n != b.Size() {
		return pool{}, Distribution{}, qerr.Mismatch("latent model names", n, b.Size())
	}
	if v, ok := g.latent.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return pool{}, Distribution{}, err
		}
	}
	p, err := b.pool(vc, d)
	if err != nil {
		return pool{}, Distribution{}, err
	}
	g.opts.metrics.IncLossModel(g.name)
	if len(p.live) == 0 {
		return p, deterministic(), nil
	}

	inv := make([]float64, len(p.live))
	for k, name := range p.live {
		inv[k] = g.latent.DefaultThreshold(p.probs[k], name)
	}
	points, cond := g.build(p, inv)
	saturated := 0
	probs := g.latent.IntegratedExpectedVector(func(m []float64) []float64 {
		v, sat := cond(m)
		if sat {
			saturated++
		}
		return v
	})
	if saturated > 0 {
		g.opts.log.Debug("saturated conditional loss distribution",
			slog.String("model", g.name),
			slog.Int("nodes", saturated),
			slog.Int("names", len(p.live)))
	}
	return p, newDistribution(points, probs), nil
}

// ExpectedTrancheLoss is the expected loss of the tranche at d.
func (g *gridModel) ExpectedTrancheLoss(vc valuation.Context, b *Basket, d time.Time) (float64, error) {
	p, dist, err := g.distribution(vc, b, d)
	if err != nil {
		return 0, err
	}
	return dist.expectedTrancheLoss(p), nil
}

// conditionalPDs evaluates every live name's default probability given m.
func conditionalPDs(lm LatentModel, p pool, inv, m []float64) []float64 {
	pds := make([]float64, len(p.live))
	for k, name := range p.live {
		pds[k] = lm.ConditionalDefaultProbabilityInvP(inv[k], name, m)
	}
	return pds
}

// conditionalLGDs is the loss given default amount of every live name given m.
func conditionalLGDs(lm LatentModel, p pool, m []float64) []float64 {
	lgds := make([]float64, len(p.live))
	for k, name := range p.live {
		lgds[k] = p.notionals[k] * (1 - lm.ConditionalRecovery(p.recoveries[k], name, m))
	}
	return lgds
}
