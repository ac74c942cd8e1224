package bootstrap

import (
	"math"
	"time"

	"github.com/meenmo/quantcore/config"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/valuation"
)

// initialRate is the flat zero rate of a cold start.
const initialRate = 0.05

// GlobalBootstrap solves all pillars at once, minimizing the quote errors
// of the alive helpers together with any additional errors. Pillar zero
// rates are searched in [-MaxRate, MaxRate] through an arctangent map.
type GlobalBootstrap struct {
	opts  options
	curve *PiecewiseCurve
	group *MultiCurve

	alive   []RateHelper
	saved   state
	maxRate float64
	guess   []float64
}

// NewGlobalBootstrap accepts every Option.
func NewGlobalBootstrap(opts ...Option) (*GlobalBootstrap, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return &GlobalBootstrap{opts: o}, nil
}

func (g *GlobalBootstrap) register(c *PiecewiseCurve) error {
	if g.curve != nil {
		return qerr.Invalid("bootstrapper already bound to a curve")
	}
	g.curve = c
	return nil
}

func (g *GlobalBootstrap) calculate(vc valuation.Context) error {
	if g.group != nil {
		return g.group.Recalculate(vc)
	}
	return solve(vc, []Contributor{g}, g.opts, "global bootstrap")
}

// SetupCostFunction lays out the pillars and returns their number. The
// previous calibration seeds the guess when the layout size is unchanged.
func (g *GlobalBootstrap) SetupCostFunction(vc valuation.Context) (int, error) {
	c := g.curve
	g.saved = c.save()
	var additional []time.Time
	if g.opts.additionalDates != nil {
		additional = g.opts.additionalDates()
	}
	alive, err := c.layout(vc, additional)
	if err != nil {
		c.restore(g.saved)
		return 0, err
	}
	g.alive = alive
	g.maxRate = config.GetConfig().Bootstrap.MaxRate

	n := len(c.times) - 1
	warm := c.valid && len(g.saved.logs) == len(c.logs)
	g.guess = make([]float64, n)
	for i := range g.guess {
		t := c.times[i+1]
		z := initialRate
		if warm && t > 0 {
			z = -g.saved.logs[i+1] / t
		}
		g.guess[i] = z
		c.logs[i+1] = -z * t
	}
	c.active = len(c.times)
	return n, nil
}

// Guess returns the unconstrained starting point.
func (g *GlobalBootstrap) Guess() []float64 {
	x := make([]float64, len(g.guess))
	for i, z := range g.guess {
		frac := (z + g.maxRate) / (2 * g.maxRate)
		frac = math.Min(math.Max(frac, 1e-8), 1-1e-8)
		x[i] = math.Tan(frac*math.Pi - math.Pi/2)
	}
	return x
}

// SetCostFunctionArgument maps x onto the pillar zero rates.
func (g *GlobalBootstrap) SetCostFunctionArgument(x []float64) {
	c := g.curve
	for i, v := range x {
		z := (math.Atan(v)+math.Pi/2)/math.Pi*(2*g.maxRate) - g.maxRate
		c.logs[i+1] = -z * c.times[i+1]
	}
}

// EvaluateCostFunction returns the quote errors of the alive helpers
// followed by the additional errors.
func (g *GlobalBootstrap) EvaluateCostFunction(vc valuation.Context) ([]float64, error) {
	out := make([]float64, 0, len(g.alive))
	for _, h := range g.alive {
		e, err := QuoteError(h, g.curve, vc)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if g.opts.additionalErrors != nil {
		out = append(out, g.opts.additionalErrors(g.curve)...)
	}
	return out, nil
}

// SetToValid publishes the solved pillars.
func (g *GlobalBootstrap) SetToValid(vc valuation.Context) { g.curve.publish(vc) }

// Rollback restores the last published calibration.
func (g *GlobalBootstrap) Rollback() { g.curve.restore(g.saved) }
