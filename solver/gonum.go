package solver

import (
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// GonumMinimizer runs a gonum optimize method on the sum of squared
// residuals. Method defaults to Nelder-Mead; gradient-based methods get a
// central finite-difference gradient.
type GonumMinimizer struct {
	Method optimize.Method
}

// NewGonumMinimizer wraps method; nil selects Nelder-Mead.
func NewGonumMinimizer(method optimize.Method) *GonumMinimizer {
	return &GonumMinimizer{Method: method}
}

func (g *GonumMinimizer) Minimize(p *Problem, ec EndCriteria) (Result, error) {
	method := g.Method
	if method == nil {
		method = &optimize.NelderMead{}
	}

	var evalErr error
	objective := func(x []float64) float64 {
		if !p.Constraint().Test(x) {
			return 1e100
		}
		v, err := p.Values(x)
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			return 1e100
		}
		return floats.Dot(v, v)
	}
	problem := optimize.Problem{
		Func: objective,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, objective, x, &fd.Settings{Formula: fd.Central})
		},
	}
	settings := &optimize.Settings{
		MajorIterations: ec.MaxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   ec.FunctionEpsilon * ec.FunctionEpsilon,
			Iterations: ec.MaxStationaryStateIterations,
		},
	}

	res, err := optimize.Minimize(problem, p.CurrentValue(), settings, method)
	if evalErr != nil {
		return Result{}, evalErr
	}
	if res == nil {
		return Result{}, err
	}
	p.SetCurrentValue(res.X)
	v, verr := p.Value(res.X)
	if verr != nil {
		return Result{}, verr
	}
	p.SetFunctionValue(v)

	// a method failure still leaves the best location found
	t := statusType(res.Status)
	if ec.checkFunctionAccuracy(v) {
		t = StationaryFunctionAccuracy
	}
	return Result{Type: t, Iterations: res.Stats.MajorIterations, Evaluations: p.FunctionEvaluations(), Value: v}, nil
}

func statusType(s optimize.Status) EndCriteriaType {
	switch s {
	case optimize.GradientThreshold:
		return ZeroGradientNorm
	case optimize.FunctionConvergence:
		return StationaryFunctionValue
	case optimize.FunctionThreshold:
		return StationaryFunctionAccuracy
	case optimize.Success, optimize.MethodConverge, optimize.StepConvergence:
		return StationaryPoint
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit:
		return MaxIterations
	default:
		return Unknown
	}
}
