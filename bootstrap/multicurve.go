package bootstrap

import (
	"fmt"
	"time"

	"github.com/meenmo/quantcore/logger"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/solver"
	"github.com/meenmo/quantcore/valuation"
)

// Contributor is one block of variables and residuals in a global solve.
type Contributor interface {
	// SetupCostFunction prepares a solve and returns the number of variables.
	SetupCostFunction(vc valuation.Context) (int, error)
	// Guess is the starting point in optimizer coordinates.
	Guess() []float64
	SetCostFunctionArgument(x []float64)
	EvaluateCostFunction(vc valuation.Context) ([]float64, error)
	// SetToValid publishes the current argument.
	SetToValid(vc valuation.Context)
	// Rollback discards everything since SetupCostFunction.
	Rollback()
}

// MultiCurve calibrates curves whose helpers read each other in a single
// least-squares problem. Recalculating any member solves for all of them.
type MultiCurve struct {
	opts    options
	members []*GlobalBootstrap
}

// NewMultiCurve takes the optimizer, end criteria, accuracy, logger and
// metrics of the joint solve. Member bootstrappers keep only their
// additional dates and errors.
func NewMultiCurve(opts ...Option) (*MultiCurve, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	return &MultiCurve{opts: o}, nil
}

// Add joins a curve calibrated by a GlobalBootstrap to the group.
func (m *MultiCurve) Add(c *PiecewiseCurve) error {
	g, ok := c.bootstrapper.(*GlobalBootstrap)
	if !ok {
		return qerr.Incompatible("multi-curve members need a global bootstrap")
	}
	if g.group != nil {
		return qerr.Invalid("curve already belongs to a multi-curve")
	}
	g.group = m
	c.group = m
	m.members = append(m.members, g)
	return nil
}

func (m *MultiCurve) contains(c *PiecewiseCurve) bool {
	if m == nil {
		return false
	}
	for _, g := range m.members {
		if g.curve == c {
			return true
		}
	}
	return false
}

// Recalculate solves the group unless every member is up to date.
func (m *MultiCurve) Recalculate(vc valuation.Context) error {
	if err := vc.Validate(); err != nil {
		return err
	}
	if len(m.members) == 0 {
		return qerr.Invalid("no curves in multi-curve")
	}
	fresh := true
	for _, g := range m.members {
		if err := g.curve.refreshDependencies(vc); err != nil {
			return err
		}
		fresh = fresh && g.curve.upToDate(vc)
	}
	if fresh {
		return nil
	}
	cs := make([]Contributor, len(m.members))
	for i, g := range m.members {
		cs[i] = g
	}
	return solve(vc, cs, m.opts, "multi-curve bootstrap")
}

// solve minimizes the stacked residuals of all contributors and publishes
// them together. On failure every contributor rolls back.
func solve(vc valuation.Context, cs []Contributor, o options, what string) (err error) {
	start := time.Now()
	var iterations int
	defer func() {
		o.metrics.ObserveBootstrap(start, iterations, err)
		if err != nil {
			o.log.Warn(what+" failed", "iterations", iterations, "error", err)
		}
	}()

	rollback := func(n int) {
		for _, c := range cs[:n] {
			c.Rollback()
		}
	}
	sizes := make([]int, len(cs))
	for i, c := range cs {
		n, err := c.SetupCostFunction(vc)
		if err != nil {
			rollback(i + 1)
			return err
		}
		sizes[i] = n
	}
	var guess []float64
	for _, c := range cs {
		guess = append(guess, c.Guess()...)
	}

	cost := solver.CostFunc(func(x []float64) ([]float64, error) {
		offset := 0
		for i, c := range cs {
			c.SetCostFunctionArgument(x[offset : offset+sizes[i]])
			offset += sizes[i]
		}
		var r []float64
		for _, c := range cs {
			v, err := c.EvaluateCostFunction(vc)
			if err != nil {
				return nil, err
			}
			r = append(r, v...)
		}
		return r, nil
	})
	problem, err := solver.NewProblem(cost, solver.NoConstraint{}, guess)
	if err != nil {
		rollback(len(cs))
		return err
	}
	res, err := o.optimizer.Minimize(problem, *o.endCriteria)
	iterations = res.Iterations
	if err != nil {
		rollback(len(cs))
		return fmt.Errorf("%s: %w", what, err)
	}
	residuals, err := cost(problem.CurrentValue())
	if err != nil {
		rollback(len(cs))
		return fmt.Errorf("%s: %w", what, err)
	}
	e := solver.RMS(residuals)
	if !(e <= o.accuracy) {
		rollback(len(cs))
		return qerr.Numerical("%s failed, error is %g, accuracy is %g (%s after %d iterations)",
			what, e, o.accuracy, res.Type, res.Iterations)
	}
	for _, c := range cs {
		c.SetToValid(vc)
	}
	logger.LogDuration(o.log, start, what+" converged",
		"curves", len(cs), "variables", len(guess), "iterations", res.Iterations, "error", e)
	return nil
}
