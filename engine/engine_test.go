package engine_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/quantcore/black"
	"github.com/meenmo/quantcore/engine"
	"github.com/meenmo/quantcore/instrument"
	"github.com/meenmo/quantcore/logger"
	"github.com/meenmo/quantcore/metrics"
	"github.com/meenmo/quantcore/payoff"
	"github.com/meenmo/quantcore/process"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/quote"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

var today = utils.Date(2025, time.January, 2)

type market struct {
	spot, rate, div, vol *quote.SimpleQuote
	process              *process.BlackScholesMerton
}

func newMarket(t *testing.T) market {
	t.Helper()
	m := market{
		spot: quote.NewSimpleQuote(100),
		rate: quote.NewSimpleQuote(0.05),
		div:  quote.NewSimpleQuote(0.02),
		vol:  quote.NewSimpleQuote(0.25),
	}
	p, err := process.NewBlackScholesMerton(
		m.spot,
		termstructure.NewFlatForward(today, m.div, utils.Act365F),
		termstructure.NewFlatForward(today, m.rate, utils.Act365F),
		termstructure.NewBlackConstantVol(today, m.vol, utils.Act365F),
	)
	require.NoError(t, err)
	m.process = p
	return m
}

func europeanCall(t *testing.T, strike float64, expiry time.Time) *instrument.VanillaOption {
	t.Helper()
	p, err := payoff.NewPlainVanilla(payoff.Call, strike)
	require.NoError(t, err)
	o, err := instrument.NewVanillaOption(p, payoff.NewEuropean(expiry))
	require.NoError(t, err)
	return o
}

func TestAnalyticEuropeanMatchesCalculator(t *testing.T) {
	t.Parallel()

	m := newMarket(t)
	vc := valuation.NewContext(today)
	expiry := today.AddDate(0, 0, 365)
	reg := metrics.New("test")

	opt := europeanCall(t, 105, expiry)
	opt.SetEngine(engine.NewAnalyticEuropean(m.process, engine.WithLogger(logger.Discard()), engine.WithMetrics(reg)))

	npv, err := opt.NPV(vc)
	require.NoError(t, err)

	fwd := 100 * math.Exp(0.03)
	calc, err := black.NewVanilla(payoff.Call, 105, fwd, 0.25, math.Exp(-0.05))
	require.NoError(t, err)
	assert.InDelta(t, calc.Value(), npv, 1e-12)

	res, ok := opt.Results()
	require.True(t, ok)
	delta, _ := calc.Delta(100)
	vega, _ := calc.Vega(1)
	assert.InDelta(t, delta, res.Greeks.Delta, 1e-12)
	assert.InDelta(t, vega, res.Greeks.Vega, 1e-12)
	assert.InDelta(t, fwd, res.Additional["forward"], 1e-10)
	assert.InDelta(t, 0.25, res.Additional["stdDev"], 1e-14)
	assert.InDelta(t, math.Exp(-0.02), res.Additional["dividendDiscount"], 1e-14)
	assert.Equal(t, today, res.ValuationDate)

	// second read is served from the cache
	_, err = opt.NPV(vc)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.EngineCalculations.WithLabelValues("analytic_european")))
}

func TestQuoteChangeInvalidatesCache(t *testing.T) {
	t.Parallel()

	m := newMarket(t)
	vc := valuation.NewContext(today)
	opt := europeanCall(t, 100, today.AddDate(1, 0, 0))
	opt.SetEngine(engine.NewAnalyticEuropean(m.process, engine.WithLogger(logger.Discard())))

	before, err := opt.NPV(vc)
	require.NoError(t, err)

	m.spot.SetValue(110)
	after, err := opt.NPV(vc)
	require.NoError(t, err)
	assert.Greater(t, after, before)

	m.vol.Invalidate()
	_, err = opt.NPV(vc)
	assert.True(t, errors.Is(err, qerr.ErrStaleQuote))

	m.vol.SetValue(0.25)
	later, err := opt.NPV(valuation.NewContext(today.AddDate(0, 1, 0)))
	require.NoError(t, err)
	assert.Less(t, later, after)
}

func TestInvalidRateOrDividendIsStale(t *testing.T) {
	t.Parallel()

	for name, invalidate := range map[string]func(market){
		"rate":     func(m market) { m.rate.Invalidate() },
		"dividend": func(m market) { m.div.Invalidate() },
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			m := newMarket(t)
			opt := europeanCall(t, 100, today.AddDate(1, 0, 0))
			opt.SetEngine(engine.NewAnalyticEuropean(m.process, engine.WithLogger(logger.Discard())))

			invalidate(m)
			_, err := opt.NPV(valuation.NewContext(today))
			require.Error(t, err)
			assert.True(t, errors.Is(err, qerr.ErrStaleQuote), err)
			assert.False(t, errors.Is(err, qerr.ErrInvalidArgument), err)
		})
	}
}

func TestExpiredOptionIsWorthNothing(t *testing.T) {
	t.Parallel()

	opt := europeanCall(t, 50, today)
	// no engine set: an expired option must not need one
	npv, err := opt.NPV(valuation.NewContext(today.AddDate(0, 0, 1)))
	require.NoError(t, err)
	assert.Zero(t, npv)

	live := europeanCall(t, 50, today.AddDate(1, 0, 0))
	_, err = live.NPV(valuation.NewContext(today))
	assert.Error(t, err)
}

func TestRejectsNonEuropeanExercise(t *testing.T) {
	t.Parallel()

	m := newMarket(t)
	p, err := payoff.NewPlainVanilla(payoff.Put, 100)
	require.NoError(t, err)
	ex, err := payoff.NewAmerican(today, today.AddDate(1, 0, 0))
	require.NoError(t, err)
	opt, err := instrument.NewVanillaOption(p, ex)
	require.NoError(t, err)
	opt.SetEngine(engine.NewAnalyticEuropean(m.process, engine.WithLogger(logger.Discard())))

	_, err = opt.NPV(valuation.NewContext(today))
	assert.True(t, errors.Is(err, qerr.ErrIncompatiblePricer))
}

func TestPriceAll(t *testing.T) {
	t.Parallel()

	m := newMarket(t)
	vc := valuation.NewContext(today)
	eng := engine.NewAnalyticEuropean(m.process, engine.WithLogger(logger.Discard()))

	var options []*instrument.VanillaOption
	for _, k := range []float64{80, 90, 100, 110, 120} {
		o := europeanCall(t, k, today.AddDate(2, 0, 0))
		o.SetEngine(eng)
		options = append(options, o)
	}
	values, err := engine.PriceAll(context.Background(), vc, options, 2)
	require.NoError(t, err)
	require.Len(t, values, 5)
	for i := 1; i < len(values); i++ {
		assert.Less(t, values[i], values[i-1])
	}
	for i, o := range options {
		v, err := o.NPV(vc)
		require.NoError(t, err)
		assert.Equal(t, v, values[i])
	}

	options[2].SetEngine(nil)
	_, err = engine.PriceAll(context.Background(), vc, options, 0)
	assert.Error(t, err)
}
