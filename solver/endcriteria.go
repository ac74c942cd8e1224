// Package solver holds the least-squares optimizers used to calibrate
// curves and models, with their stopping rules.
package solver

import (
	"math"

	"github.com/meenmo/quantcore/qerr"
)

// EndCriteriaType records why an optimizer stopped.
type EndCriteriaType int

const (
	None EndCriteriaType = iota
	MaxIterations
	StationaryPoint
	StationaryFunctionValue
	StationaryFunctionAccuracy
	ZeroGradientNorm
	FunctionEpsilonTooSmall
	Unknown
)

func (t EndCriteriaType) String() string {
	switch t {
	case None:
		return "None"
	case MaxIterations:
		return "MaxIterations"
	case StationaryPoint:
		return "StationaryPoint"
	case StationaryFunctionValue:
		return "StationaryFunctionValue"
	case StationaryFunctionAccuracy:
		return "StationaryFunctionAccuracy"
	case ZeroGradientNorm:
		return "ZeroGradientNorm"
	case FunctionEpsilonTooSmall:
		return "FunctionEpsilonTooSmall"
	default:
		return "Unknown"
	}
}

// Succeeded reports a convergence type rather than a limit or failure stop.
func (t EndCriteriaType) Succeeded() bool {
	switch t {
	case StationaryPoint, StationaryFunctionValue, StationaryFunctionAccuracy, ZeroGradientNorm:
		return true
	default:
		return false
	}
}

// EndCriteria bounds an optimization run.
type EndCriteria struct {
	MaxIterations                int
	MaxStationaryStateIterations int
	RootEpsilon                  float64
	FunctionEpsilon              float64
	GradientNormEpsilon          float64
}

// NewEndCriteria validates the limits. A zero gradient epsilon takes the
// function epsilon.
func NewEndCriteria(maxIterations, maxStationary int, rootEps, functionEps, gradientEps float64) (EndCriteria, error) {
	if maxIterations <= 0 {
		return EndCriteria{}, qerr.Invalid("max iterations (%d) must be positive", maxIterations)
	}
	if maxStationary <= 1 || maxStationary > maxIterations {
		return EndCriteria{}, qerr.Invalid("max stationary state iterations (%d) must be in (1, %d]", maxStationary, maxIterations)
	}
	if rootEps <= 0 || functionEps <= 0 || gradientEps < 0 {
		return EndCriteria{}, qerr.Invalid("end criteria tolerances must be positive (root %g, function %g, gradient %g)",
			rootEps, functionEps, gradientEps)
	}
	if gradientEps == 0 {
		gradientEps = functionEps
	}
	return EndCriteria{
		MaxIterations:                maxIterations,
		MaxStationaryStateIterations: maxStationary,
		RootEpsilon:                  rootEps,
		FunctionEpsilon:              functionEps,
		GradientNormEpsilon:          gradientEps,
	}, nil
}

// checkMaxIterations reports the iteration limit is reached.
func (ec EndCriteria) checkMaxIterations(iteration int) bool {
	return iteration >= ec.MaxIterations
}

// checkStationaryPoint reports a step below RootEpsilon relative to x.
func (ec EndCriteria) checkStationaryPoint(step, x float64, stationary *int) bool {
	if step >= ec.RootEpsilon*(x+ec.RootEpsilon) {
		*stationary = 0
		return false
	}
	*stationary++
	return *stationary > ec.MaxStationaryStateIterations
}

// checkStationaryFunctionValue reports successive values closer than FunctionEpsilon.
func (ec EndCriteria) checkStationaryFunctionValue(prev, curr float64, stationary *int) bool {
	if math.Abs(curr-prev) >= ec.FunctionEpsilon {
		*stationary = 0
		return false
	}
	*stationary++
	return *stationary > ec.MaxStationaryStateIterations
}

// checkFunctionAccuracy reports a value below FunctionEpsilon.
func (ec EndCriteria) checkFunctionAccuracy(f float64) bool {
	return f < ec.FunctionEpsilon
}

// checkZeroGradientNorm reports a gradient norm below GradientNormEpsilon.
func (ec EndCriteria) checkZeroGradientNorm(norm float64) bool {
	return norm < ec.GradientNormEpsilon
}
