package solver_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/optimize"

	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/solver"
)

func criteria(t *testing.T, maxIter int) solver.EndCriteria {
	t.Helper()
	ec, err := solver.NewEndCriteria(maxIter, 10, 1e-12, 1e-12, 1e-12)
	require.NoError(t, err)
	return ec
}

var rosenbrock = solver.CostFunc(func(x []float64) ([]float64, error) {
	return []float64{10 * (x[1] - x[0]*x[0]), 1 - x[0]}, nil
})

func TestLevenbergMarquardtRosenbrock(t *testing.T) {
	t.Parallel()

	p, err := solver.NewProblem(rosenbrock, solver.NoConstraint{}, []float64{-1.2, 1})
	require.NoError(t, err)
	res, err := solver.NewLevenbergMarquardt().Minimize(p, criteria(t, 1000))
	require.NoError(t, err)
	assert.True(t, res.Type.Succeeded(), res.Type.String())

	x := p.CurrentValue()
	assert.InDelta(t, 1, x[0], 1e-6)
	assert.InDelta(t, 1, x[1], 1e-6)
	assert.Less(t, p.FunctionValue(), 1e-8)
	assert.Equal(t, p.FunctionEvaluations(), res.Evaluations)
}

func TestLevenbergMarquardtLeastSquares(t *testing.T) {
	t.Parallel()

	ts := []float64{0, 1, 2, 3, 4}
	ys := []float64{1.1, 2.9, 5.2, 6.8, 9.1}
	line := solver.CostFunc(func(x []float64) ([]float64, error) {
		r := make([]float64, len(ts))
		for i := range ts {
			r[i] = ys[i] - (x[0] + x[1]*ts[i])
		}
		return r, nil
	})
	p, err := solver.NewProblem(line, nil, []float64{0, 0})
	require.NoError(t, err)
	res, err := solver.NewLevenbergMarquardt().Minimize(p, criteria(t, 1000))
	require.NoError(t, err)
	assert.True(t, res.Type.Succeeded(), res.Type.String())

	// ordinary least squares
	var tbar, ybar, sxy, sxx float64
	for i := range ts {
		tbar += ts[i] / 5
		ybar += ys[i] / 5
	}
	for i := range ts {
		sxy += (ts[i] - tbar) * (ys[i] - ybar)
		sxx += (ts[i] - tbar) * (ts[i] - tbar)
	}
	b := sxy / sxx
	a := ybar - b*tbar
	x := p.CurrentValue()
	assert.InDelta(t, a, x[0], 1e-6)
	assert.InDelta(t, b, x[1], 1e-6)
}

func TestLevenbergMarquardtMaxIterations(t *testing.T) {
	t.Parallel()

	p, err := solver.NewProblem(rosenbrock, nil, []float64{-1.2, 1})
	require.NoError(t, err)
	ec, err := solver.NewEndCriteria(2, 2, 1e-12, 1e-12, 1e-12)
	require.NoError(t, err)
	res, err := solver.NewLevenbergMarquardt().Minimize(p, ec)
	require.NoError(t, err)
	assert.Equal(t, solver.MaxIterations, res.Type)
	assert.False(t, res.Type.Succeeded())
}

func TestLevenbergMarquardtPropagatesCostErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	calls := 0
	cost := solver.CostFunc(func(x []float64) ([]float64, error) {
		calls++
		if calls > 1 {
			return nil, boom
		}
		return []float64{x[0] - 1}, nil
	})
	p, err := solver.NewProblem(cost, nil, []float64{0})
	require.NoError(t, err)
	_, err = solver.NewLevenbergMarquardt().Minimize(p, criteria(t, 100))
	assert.ErrorIs(t, err, boom)
}

func TestGonumMinimizer(t *testing.T) {
	t.Parallel()

	bowl := solver.CostFunc(func(x []float64) ([]float64, error) {
		return []float64{x[0] - 3, 2 * (x[1] + 1)}, nil
	})
	for _, c := range []struct {
		name   string
		method optimize.Method
		tol    float64
	}{
		{"nelder-mead", nil, 1e-3},
		{"bfgs", &optimize.BFGS{}, 1e-5},
	} {
		p, err := solver.NewProblem(bowl, nil, []float64{0, 0})
		require.NoError(t, err)
		ec, err := solver.NewEndCriteria(1000, 20, 1e-10, 1e-8, 1e-8)
		require.NoError(t, err)
		_, err = solver.NewGonumMinimizer(c.method).Minimize(p, ec)
		require.NoError(t, err, c.name)
		x := p.CurrentValue()
		assert.InDelta(t, 3, x[0], c.tol, c.name)
		assert.InDelta(t, -1, x[1], c.tol, c.name)
	}
}

func TestEndCriteriaValidation(t *testing.T) {
	t.Parallel()

	_, err := solver.NewEndCriteria(0, 10, 1e-8, 1e-8, 1e-8)
	assert.True(t, errors.Is(err, qerr.ErrInvalidArgument))
	_, err = solver.NewEndCriteria(100, 1, 1e-8, 1e-8, 1e-8)
	assert.True(t, errors.Is(err, qerr.ErrInvalidArgument))
	_, err = solver.NewEndCriteria(100, 10, 0, 1e-8, 1e-8)
	assert.True(t, errors.Is(err, qerr.ErrInvalidArgument))

	ec, err := solver.NewEndCriteria(100, 10, 1e-8, 1e-7, 0)
	require.NoError(t, err)
	assert.Equal(t, 1e-7, ec.GradientNormEpsilon)
	assert.Equal(t, "StationaryFunctionAccuracy", solver.StationaryFunctionAccuracy.String())
}

func TestConstraints(t *testing.T) {
	t.Parallel()

	assert.True(t, solver.NoConstraint{}.Test([]float64{-1}))
	assert.True(t, solver.PositiveConstraint{}.Test([]float64{1, 2}))
	assert.False(t, solver.PositiveConstraint{}.Test([]float64{1, 0}))
	b := solver.BoundaryConstraint{Low: -1, High: 1}
	assert.True(t, b.Test([]float64{-1, 0.5, 1}))
	assert.False(t, b.Test([]float64{1.01}))

	_, err := solver.NewProblem(nil, nil, []float64{1})
	assert.Error(t, err)
	_, err = solver.NewProblem(rosenbrock, nil, nil)
	assert.Error(t, err)
	assert.InDelta(t, 3.5355339059327378, solver.RMS([]float64{3, 4}), 1e-15)
	assert.Equal(t, 0.0, solver.RMS(nil))
}
