package bootstrap_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/quantcore/bootstrap"
	"github.com/meenmo/quantcore/index"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/quote"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
)

var stepVols = []float64{0.25, 0.22, 0.20, 0.18}

// swaptions builds one 5Y swaption per expiry, quoted at the volatility a
// model with stepVols implies, using errType and strike (NaN for ATM).
func swaptions(t *testing.T, curve termstructure.YieldCurve, errType bootstrap.CalibrationErrorType, strike float64) []*bootstrap.SwaptionHelper {
	t.Helper()
	idx := index.EuriborSwap(utils.MustPeriod("5Y"), index.Euribor(utils.MustPeriod("6M"), curve), nil)
	var helpers []*bootstrap.SwaptionHelper
	for _, expiry := range []string{"1Y", "2Y", "3Y", "5Y"} {
		atm, err := bootstrap.NewATMSwaptionHelper(quote.NewSimpleQuote(0.2), idx, today, utils.MustPeriod(expiry))
		require.NoError(t, err)
		h, err := bootstrap.NewSwaptionHelper(atm.Quote(), idx, atm.Expiry(), strike, errType)
		require.NoError(t, err)
		helpers = append(helpers, h)
	}
	truth, err := bootstrap.NewPiecewiseVolModel(today, utils.Act365F, helpers, nil, stepVols)
	require.NoError(t, err)
	for _, h := range helpers {
		h.Quote().(*quote.SimpleQuote).SetValue(truth.BlackVol(truth.TimeFromReference(h.Expiry()), 0))
	}
	return helpers
}

func assertVols(t *testing.T, want, got []float64, tol float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], tol, "step %d", i)
	}
}

func TestPiecewiseVolModelVariance(t *testing.T) {
	t.Parallel()

	helpers := swaptions(t, flat(0.03), bootstrap.RelativePriceError, math.NaN())
	m, err := bootstrap.NewPiecewiseVolModel(today, utils.Act365F, helpers, nil, stepVols)
	require.NoError(t, err)
	steps := m.StepDates()
	require.Len(t, steps, 3)
	assert.Equal(t, helpers[0].Expiry(), steps[0])

	t1 := m.TimeFromReference(steps[0])
	t2 := m.TimeFromReference(steps[1])
	assert.InDelta(t, 0.25*0.25*0.5, m.BlackVariance(0.5, 0), 1e-15)
	assert.InDelta(t, 0.25*0.25*t1+0.22*0.22*(t2-t1), m.BlackVariance(t2, 0), 1e-15)
	assert.InDelta(t, 0.25, m.BlackVol(0, 0), 0)
	assert.Zero(t, m.BlackVariance(-1, 0))
	// flat extrapolation of the last step
	far := m.BlackVariance(20, 0) - m.BlackVariance(10, 0)
	assert.InDelta(t, 0.18*0.18*10, far, 1e-12)
}

func TestSwaptionVolCalibrationRoundTrip(t *testing.T) {
	t.Parallel()

	truth := flat(0.03)
	curveHelpers, _ := singleCurve(t, truth)
	curve, err := bootstrap.NewPiecewiseCurve(today, utils.Act365F, curveHelpers)
	require.NoError(t, err)

	helpers := swaptions(t, truth, bootstrap.RelativePriceError, math.NaN())
	idx := index.EuriborSwap(utils.MustPeriod("5Y"), index.Euribor(utils.MustPeriod("6M"), curve), nil)
	// requote the same volatilities off the bootstrapped curve
	for i, h := range helpers {
		rebased, err := bootstrap.NewSwaptionHelper(h.Quote(), idx, h.Expiry(), math.NaN(), bootstrap.RelativePriceError)
		require.NoError(t, err)
		helpers[i] = rebased
	}

	m, err := bootstrap.NewPiecewiseVolModel(today, utils.Act365F, helpers, nil, nil, bootstrap.WithAccuracy(1e-10))
	require.NoError(t, err)
	assertVols(t, []float64{0.2, 0.2, 0.2, 0.2}, m.Volatilities(), 0)

	// the model brings the curve up first
	require.NoError(t, m.Recalculate(vc))
	assert.True(t, curve.Valid())
	assert.True(t, m.Valid())
	assert.Equal(t, uint64(1), m.Version())
	assertVols(t, stepVols, m.Volatilities(), 1e-8)

	errs, err := m.CalibrationErrors()
	require.NoError(t, err)
	for _, e := range errs {
		assert.InDelta(t, 0, e, 1e-10)
	}

	require.NoError(t, m.Recalculate(vc))
	assert.Equal(t, uint64(1), m.Version())

	// a higher short expiry quote lifts the first step only
	q := helpers[0].Quote().(*quote.SimpleQuote)
	old, err := q.Value()
	require.NoError(t, err)
	q.SetValue(old + 0.01)
	require.NoError(t, m.Recalculate(vc))
	assert.Equal(t, uint64(2), m.Version())
	got := m.Volatilities()
	assert.InDelta(t, 0.26, got[0], 1e-8)
	assert.Less(t, got[1], stepVols[1])
}

func TestSwaptionCalibrationErrorTypes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		errType bootstrap.CalibrationErrorType
		strike  float64
	}{
		{"implied vol atm", bootstrap.ImpliedVolError, math.NaN()},
		{"price payer", bootstrap.PriceError, 0.035},
		{"relative price receiver", bootstrap.RelativePriceError, 0.02},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			helpers := swaptions(t, flat(0.03), tc.errType, tc.strike)
			m, err := bootstrap.NewPiecewiseVolModel(today, utils.Act365F, helpers, nil, nil, bootstrap.WithAccuracy(1e-10))
			require.NoError(t, err)
			require.NoError(t, m.Recalculate(vc))
			assertVols(t, stepVols, m.Volatilities(), 1e-7)
		})
	}
	assert.Equal(t, "implied_vol", bootstrap.ImpliedVolError.String())
}

func TestSwaptionCalibrationFixedAndWeighted(t *testing.T) {
	t.Parallel()

	helpers := swaptions(t, flat(0.03), bootstrap.RelativePriceError, math.NaN())
	start := []float64{0.25, 0.2, 0.2, 0.2}
	m, err := bootstrap.NewPiecewiseVolModel(today, utils.Act365F, helpers, nil, start,
		bootstrap.WithAccuracy(1e-10),
		bootstrap.WithFixedParameters([]bool{true, false, false, false}),
		bootstrap.WithWeights([]float64{1, 2, 1, 0.5}))
	require.NoError(t, err)
	require.NoError(t, m.Recalculate(vc))
	assertVols(t, stepVols, m.Volatilities(), 1e-7)

	// a single step fits the average volatility only
	single, err := bootstrap.NewPiecewiseVolModel(today, utils.Act365F, helpers, nil, []float64{0.2, 0.2, 0.2, 0.2},
		bootstrap.WithFixedParameters([]bool{false, true, true, true}))
	require.NoError(t, err)
	err = single.Recalculate(vc)
	require.ErrorIs(t, err, qerr.ErrNumericalFailure)
	assert.ErrorContains(t, err, "volatility calibration failed")
	assert.False(t, single.Valid())
	assertVols(t, []float64{0.2, 0.2, 0.2, 0.2}, single.Volatilities(), 0)
}

func TestSwaptionCalibrationInvalidQuoteKeepsModel(t *testing.T) {
	t.Parallel()

	helpers := swaptions(t, flat(0.03), bootstrap.RelativePriceError, math.NaN())
	m, err := bootstrap.NewPiecewiseVolModel(today, utils.Act365F, helpers, nil, nil, bootstrap.WithAccuracy(1e-10))
	require.NoError(t, err)
	require.NoError(t, m.Recalculate(vc))
	before := m.Volatilities()

	helpers[2].Quote().(*quote.SimpleQuote).Invalidate()
	err = m.Recalculate(vc)
	require.ErrorIs(t, err, qerr.ErrStaleQuote)
	assert.ErrorContains(t, err, "3rd swaption helper (expiry: "+helpers[2].Expiry().Format(utils.DateLayout)+")")
	assert.Equal(t, uint64(1), m.Version())
	assertVols(t, before, m.Volatilities(), 0)
	_, err = m.CalibrationErrors()
	require.NoError(t, err)
}

func TestSwaptionHelperValidation(t *testing.T) {
	t.Parallel()

	truth := flat(0.03)
	idx := index.EuriborSwap(utils.MustPeriod("5Y"), index.Euribor(utils.MustPeriod("6M"), truth), nil)
	expiry := today.AddDate(1, 0, 0)
	q := quote.NewSimpleQuote(0.2)

	_, err := bootstrap.NewSwaptionHelper(nil, idx, expiry, math.NaN(), bootstrap.PriceError)
	assert.ErrorIs(t, err, qerr.ErrInvalidArgument)
	_, err = bootstrap.NewSwaptionHelper(q, nil, expiry, math.NaN(), bootstrap.PriceError)
	assert.ErrorContains(t, err, "no swap index given")
	noCurve := index.EuriborSwap(utils.MustPeriod("5Y"), euribor("6M"), nil)
	_, err = bootstrap.NewSwaptionHelper(q, noCurve, expiry, math.NaN(), bootstrap.PriceError)
	assert.ErrorContains(t, err, "no forecasting curve")
	_, err = bootstrap.NewSwaptionHelper(q, idx, expiry, -0.01, bootstrap.PriceError)
	assert.ErrorIs(t, err, qerr.ErrInvalidArgument)
	_, err = bootstrap.NewSwaptionHelper(q, idx, expiry, math.NaN(), bootstrap.CalibrationErrorType(7))
	assert.ErrorIs(t, err, qerr.ErrInvalidArgument)

	helpers := swaptions(t, truth, bootstrap.PriceError, math.NaN())
	_, err = bootstrap.NewPiecewiseVolModel(today, utils.Act365F, helpers, nil, []float64{0.2})
	assert.ErrorIs(t, err, qerr.ErrConfigurationMismatch)
	_, err = bootstrap.NewPiecewiseVolModel(today, utils.Act365F, helpers, nil, nil, bootstrap.WithWeights([]float64{1}))
	assert.ErrorIs(t, err, qerr.ErrConfigurationMismatch)
	_, err = bootstrap.NewPiecewiseVolModel(today, utils.Act365F, helpers, nil, nil,
		bootstrap.WithFixedParameters([]bool{true, true, true, true}))
	assert.ErrorContains(t, err, "every step volatility is fixed")
	_, err = bootstrap.NewPiecewiseVolModel(today, utils.Act365F, nil, nil, nil)
	assert.ErrorContains(t, err, "no calibration helpers given")
	_, err = bootstrap.NewPiecewiseVolModel(today, utils.Act365F, helpers, []time.Time{today}, nil)
	assert.ErrorContains(t, err, "not increasing")

	m, err := bootstrap.NewPiecewiseVolModel(today, utils.Act365F, helpers, nil, nil)
	require.NoError(t, err)
	_, err = m.CalibrationErrors()
	assert.ErrorContains(t, err, "not calibrated")
}
