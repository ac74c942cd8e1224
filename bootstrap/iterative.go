package bootstrap

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/meenmo/quantcore/config"
	"github.com/meenmo/quantcore/logger"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

// minDiscount floors Newton iterates.
const minDiscount = 1e-9

// Iterative solves one pillar per helper in pillar order with a damped
// Newton iteration. While a pillar is solved the curve ends at it.
type Iterative struct {
	opts  options
	curve *PiecewiseCurve
}

// NewIterative accepts WithAccuracy, WithLogger and WithMetrics.
func NewIterative(opts ...Option) (*Iterative, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Iterative{opts: o}, nil
}

func (b *Iterative) register(c *PiecewiseCurve) error {
	if b.curve != nil {
		return qerr.Invalid("bootstrapper already bound to a curve")
	}
	b.curve = c
	return nil
}

func (b *Iterative) calculate(vc valuation.Context) (err error) {
	start := time.Now()
	var iterations int
	defer func() {
		b.opts.metrics.ObserveBootstrap(start, iterations, err)
		if err != nil {
			b.opts.log.Warn("iterative bootstrap failed", "iterations", iterations, "error", err)
		}
	}()

	c := b.curve
	saved := c.save()
	alive, err := c.layout(vc, nil)
	if err != nil {
		c.restore(saved)
		return err
	}
	cfg := config.GetConfig().Bootstrap
	for i, h := range alive {
		pillar := i + 1
		c.active = pillar + 1
		n, err := b.solvePillar(h, pillar, math.Exp(c.logs[i]), vc, cfg)
		iterations += n
		if err != nil {
			c.restore(saved)
			return fmt.Errorf("could not bootstrap the %s alive helper (maturity: %s): %w",
				qerr.Ordinal(pillar), h.PillarDate().Format(utils.DateLayout), err)
		}
	}
	c.publish(vc)
	logger.LogDuration(b.opts.log, start, "iterative bootstrap converged",
		"pillars", len(alive), "iterations", iterations)
	return nil
}

// solvePillar finds the discount factor at pillar i that reprices h.
func (b *Iterative) solvePillar(h RateHelper, i int, guess float64, vc valuation.Context, cfg config.BootstrapConfig) (int, error) {
	c := b.curve
	var evalErr error
	f := func(x float64) float64 {
		c.logs[i] = math.Log(x)
		e, err := QuoteError(h, c, vc)
		if err != nil && evalErr == nil {
			evalErr = err
		}
		return e
	}
	settings := &fd.Settings{Formula: fd.Central}
	for it := 1; it <= cfg.MaxNewtonIterations; it++ {
		fx := f(guess)
		if evalErr != nil {
			return it, evalErr
		}
		if math.Abs(fx) < b.opts.accuracy {
			return it, nil
		}
		deriv := fd.Derivative(f, guess, settings)
		if evalErr != nil {
			return it, evalErr
		}
		if math.IsNaN(deriv) || math.Abs(deriv) < 1e-15 {
			return it, qerr.Numerical("null derivative at discount factor %g", guess)
		}
		delta := fx / deriv
		if limit := cfg.DampingFactor * guess; math.Abs(delta) > limit {
			delta = math.Copysign(limit, delta)
		}
		guess -= delta
		if math.IsNaN(guess) || guess <= minDiscount {
			guess = minDiscount
		}
	}
	return cfg.MaxNewtonIterations, qerr.Numerical("accuracy (%g) not reached after %d iterations",
		b.opts.accuracy, cfg.MaxNewtonIterations)
}
