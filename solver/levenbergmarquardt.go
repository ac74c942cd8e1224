package solver

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/meenmo/quantcore/qerr"
)

// maxDamping ends the search once no damped step improves the objective.
const maxDamping = 1e20

// LevenbergMarquardt is a damped Gauss-Newton least-squares solver with a
// forward finite-difference Jacobian.
type LevenbergMarquardt struct {
	// InitialDamping scales the largest diagonal entry of J'J into the
	// first damping factor.
	InitialDamping float64
	// Step is the finite-difference step; zero uses the fd default.
	Step float64
}

// NewLevenbergMarquardt returns the solver with standard settings.
func NewLevenbergMarquardt() *LevenbergMarquardt {
	return &LevenbergMarquardt{InitialDamping: 1e-3}
}

// Minimize runs the damped iteration from the problem's current point.
func (lm *LevenbergMarquardt) Minimize(p *Problem, ec EndCriteria) (Result, error) {
	x := p.CurrentValue()
	n := len(x)
	r, err := p.Values(x)
	if err != nil {
		return Result{}, err
	}
	m := len(r)
	if m == 0 {
		return Result{}, qerr.Invalid("cost function returned no residuals")
	}
	cost := RMS(r)
	p.SetFunctionValue(cost)

	result := func(t EndCriteriaType, it int) (Result, error) {
		return Result{Type: t, Iterations: it, Evaluations: p.FunctionEvaluations(), Value: p.FunctionValue()}, nil
	}
	if ec.checkFunctionAccuracy(cost) {
		return result(StationaryFunctionAccuracy, 0)
	}

	var evalErr error
	residuals := func(y, at []float64) {
		if evalErr != nil {
			return
		}
		v, err := p.Values(at)
		if err != nil {
			evalErr = err
			return
		}
		if len(v) != len(y) {
			evalErr = qerr.Mismatch("residuals", len(v), len(y))
			return
		}
		copy(y, v)
	}

	jac := mat.NewDense(m, n, nil)
	trial := make([]float64, n)
	damping, growth := -1.0, 2.0
	statPoint, statFunc := 0, 0
	for it := 1; ; it++ {
		if ec.checkMaxIterations(it) {
			return result(MaxIterations, it)
		}
		fd.Jacobian(jac, residuals, x, &fd.JacobianSettings{
			Formula:     fd.Forward,
			OriginValue: r,
			Step:        lm.Step,
		})
		if evalErr != nil {
			return Result{}, evalErr
		}

		var grad mat.VecDense
		grad.MulVec(jac.T(), mat.NewVecDense(m, r))
		if ec.checkZeroGradientNorm(floats.Norm(grad.RawVector().Data, math.Inf(1))) {
			return result(ZeroGradientNorm, it)
		}
		var jtj mat.SymDense
		jtj.SymOuterK(1, jac.T())
		if damping < 0 {
			var maxDiag float64
			for i := 0; i < n; i++ {
				maxDiag = math.Max(maxDiag, jtj.At(i, i))
			}
			damping = lm.InitialDamping * math.Max(maxDiag, 1)
		}

		var next []float64
		var nextCost, stepNorm float64
		for next == nil {
			if damping > maxDamping {
				return result(StationaryPoint, it)
			}
			a := mat.NewSymDense(n, nil)
			a.CopySym(&jtj)
			for i := 0; i < n; i++ {
				d := jtj.At(i, i)
				a.SetSym(i, i, d+damping*math.Max(d, 1e-12))
			}
			var chol mat.Cholesky
			var delta mat.VecDense
			if !chol.Factorize(a) || chol.SolveVecTo(&delta, &grad) != nil {
				damping *= growth
				growth *= 2
				continue
			}
			floats.SubTo(trial, x, delta.RawVector().Data)
			if !p.Constraint().Test(trial) {
				damping *= growth
				growth *= 2
				continue
			}
			v, err := p.Values(trial)
			if err != nil {
				return Result{}, err
			}
			if c := RMS(v); c < cost {
				next, nextCost = v, c
				stepNorm = floats.Norm(delta.RawVector().Data, 2)
				continue
			}
			damping *= growth
			growth *= 2
		}

		xNorm := floats.Norm(x, 2)
		copy(x, trial)
		r = next
		prev := cost
		cost = nextCost
		damping /= 3
		growth = 2
		p.SetCurrentValue(x)
		p.SetFunctionValue(cost)

		switch {
		case ec.checkFunctionAccuracy(cost):
			return result(StationaryFunctionAccuracy, it)
		case ec.checkStationaryFunctionValue(prev, cost, &statFunc):
			return result(StationaryFunctionValue, it)
		case ec.checkStationaryPoint(stepNorm, xNorm, &statPoint):
			return result(StationaryPoint, it)
		}
	}
}
