package solver

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/meenmo/quantcore/qerr"
)

// CostFunction returns the residual vector at x. The objective minimized is
// the root mean square of the residuals.
type CostFunction interface {
	Values(x []float64) ([]float64, error)
}

// CostFunc adapts a function to CostFunction.
type CostFunc func(x []float64) ([]float64, error)

func (f CostFunc) Values(x []float64) ([]float64, error) { return f(x) }

// RMS is the root mean square of v; zero for an empty vector.
func RMS(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(v, v) / float64(len(v)))
}

// Constraint restricts the admissible parameters.
type Constraint interface {
	Test(x []float64) bool
}

// NoConstraint admits everything.
type NoConstraint struct{}

func (NoConstraint) Test([]float64) bool { return true }

// PositiveConstraint admits strictly positive parameters.
type PositiveConstraint struct{}

func (PositiveConstraint) Test(x []float64) bool {
	for _, v := range x {
		if v <= 0 {
			return false
		}
	}
	return true
}

// BoundaryConstraint admits parameters in [Low, High].
type BoundaryConstraint struct {
	Low, High float64
}

func (b BoundaryConstraint) Test(x []float64) bool {
	for _, v := range x {
		if v < b.Low || v > b.High {
			return false
		}
	}
	return true
}

// Problem couples a cost function, a constraint and the current point.
type Problem struct {
	cost        CostFunction
	constraint  Constraint
	current     []float64
	value       float64
	evaluations int
}

// NewProblem starts at a copy of initial.
func NewProblem(cost CostFunction, constraint Constraint, initial []float64) (*Problem, error) {
	if cost == nil {
		return nil, qerr.Invalid("no cost function given")
	}
	if len(initial) == 0 {
		return nil, qerr.Invalid("empty initial guess")
	}
	if constraint == nil {
		constraint = NoConstraint{}
	}
	return &Problem{
		cost:       cost,
		constraint: constraint,
		current:    append([]float64(nil), initial...),
		value:      math.NaN(),
	}, nil
}

// Values evaluates the residuals and counts the call.
func (p *Problem) Values(x []float64) ([]float64, error) {
	p.evaluations++
	return p.cost.Values(x)
}

// Value is the RMS of the residuals at x.
func (p *Problem) Value(x []float64) (float64, error) {
	v, err := p.Values(x)
	if err != nil {
		return math.NaN(), err
	}
	return RMS(v), nil
}

// Constraint returns the admissibility test.
func (p *Problem) Constraint() Constraint { return p.constraint }

// CurrentValue returns a copy of the current point.
func (p *Problem) CurrentValue() []float64 { return append([]float64(nil), p.current...) }

// SetCurrentValue replaces the current point.
func (p *Problem) SetCurrentValue(x []float64) { p.current = append(p.current[:0], x...) }

// FunctionValue is the RMS at the current point as last recorded by an optimizer.
func (p *Problem) FunctionValue() float64 { return p.value }

// SetFunctionValue records the RMS at the current point.
func (p *Problem) SetFunctionValue(v float64) { p.value = v }

// FunctionEvaluations counts cost function calls.
func (p *Problem) FunctionEvaluations() int { return p.evaluations }

// Result summarizes a run.
type Result struct {
	Type        EndCriteriaType
	Iterations  int
	Evaluations int
	Value       float64
}

// Optimizer minimizes the RMS of a problem's residuals, leaving the best
// point found in the problem. Hitting a limit is reported through the
// result type; errors are reserved for failing cost functions.
type Optimizer interface {
	Minimize(p *Problem, ec EndCriteria) (Result, error)
}
