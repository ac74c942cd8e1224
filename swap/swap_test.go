package swap_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/quantcore/index"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/swap"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

const nominal = 10_000_000.0

var (
	today = utils.Date(2025, time.January, 15)
	vc    = valuation.NewContext(today)
)

func terms(curve termstructure.YieldCurve, typ swap.Type, rate, spread float64) swap.Terms {
	return swap.Terms{
		Type:          typ,
		Nominal:       nominal,
		TradeDate:     today,
		Tenor:         utils.MustPeriod("5Y"),
		FixedRate:     rate,
		FixedTenor:    utils.MustPeriod("1Y"),
		FixedDayCount: utils.Thirty360,
		Index:         index.Euribor(utils.MustPeriod("6M"), curve),
		Spread:        spread,
	}
}

func build(t *testing.T, tm swap.Terms) *swap.VanillaSwap {
	t.Helper()
	s, err := tm.Build()
	require.NoError(t, err)
	return s
}

func TestTermsDates(t *testing.T) {
	t.Parallel()

	tm := terms(nil, swap.Payer, 0.03, 0)
	effective, maturity := tm.Dates()
	assert.Equal(t, utils.Date(2025, time.January, 17), effective)
	assert.Equal(t, utils.Date(2030, time.January, 17), maturity)

	tm.ForwardStart = utils.MustPeriod("1Y")
	effective, maturity = tm.Dates()
	assert.Equal(t, utils.Date(2026, time.January, 19), effective)
	assert.Equal(t, utils.Date(2031, time.January, 20), maturity)

	s := build(t, terms(nil, swap.Payer, 0.03, 0))
	assert.Len(t, s.FixedLeg(), 5)
	assert.Len(t, s.FloatingLeg(), 10)
	assert.Equal(t, utils.Date(2030, time.January, 17), s.MaturityDate())
	assert.False(t, s.LatestRelevantDate().Before(s.MaturityDate()))
}

func TestFairRate(t *testing.T) {
	t.Parallel()

	curve := termstructure.NewFlatForwardRate(today, 0.03, utils.Act365F)
	payer := build(t, terms(curve, swap.Payer, 0.04, 0))
	receiver := build(t, terms(curve, swap.Receiver, 0.04, 0))

	fair, err := payer.FairRate(curve, vc)
	require.NoError(t, err)
	assert.InDelta(t, 0.0305, fair, 5e-4)

	zero := build(t, terms(curve, swap.Payer, 0, 0))
	fair0, err := zero.FairRate(curve, vc)
	require.NoError(t, err)
	assert.InDelta(t, fair, fair0, 1e-14)

	// The swap index quotes the same par rate up to forecast period ends.
	idx := index.EuriborSwap(utils.MustPeriod("5Y"), index.Euribor(utils.MustPeriod("6M"), curve), nil)
	indexRate, err := idx.ForwardRate(today)
	require.NoError(t, err)
	assert.InDelta(t, indexRate, fair, 1e-6)

	pay, err := payer.NPV(curve, vc)
	require.NoError(t, err)
	rec, err := receiver.NPV(curve, vc)
	require.NoError(t, err)
	assert.InDelta(t, 0, pay+rec, 1e-6)

	bps, err := payer.FixedLegBPS(curve, vc)
	require.NoError(t, err)
	assert.Greater(t, bps, 0.0)
	assert.InDelta(t, (fair-0.04)*bps/1e-4, pay, 1e-6)

	atPar := build(t, terms(curve, swap.Payer, fair, 0))
	npv, err := atPar.NPV(curve, vc)
	require.NoError(t, err)
	assert.InDelta(t, 0, npv, 1e-6)
}

func TestFairSpread(t *testing.T) {
	t.Parallel()

	forecast := termstructure.NewFlatForwardRate(today, 0.03, utils.Act365F)
	discount := termstructure.NewFlatForwardRate(today, 0.025, utils.Act365F)
	s := build(t, terms(forecast, swap.Receiver, 0.035, 0.001))

	spread, err := s.FairSpread(discount, vc)
	require.NoError(t, err)
	assert.Greater(t, spread, 0.001)

	par := build(t, terms(forecast, swap.Receiver, 0.035, spread))
	pv, err := par.PVByLeg(discount, vc)
	require.NoError(t, err)
	assert.InDelta(t, 0, pv.TotalPV, 1e-6)
	assert.InDelta(t, pv.FixedLegPV, pv.FloatingLegPV, 1e-6)

	fixed, floating, err := par.Cashflows(discount, vc)
	require.NoError(t, err)
	assert.Len(t, fixed, 5)
	assert.Len(t, floating, 10)
	var sum float64
	for _, f := range floating {
		sum += f.PresentValue
	}
	assert.InDelta(t, pv.FloatingLegPV, sum, 1e-9)
}

func TestSwapValidation(t *testing.T) {
	t.Parallel()

	tm := terms(nil, swap.Type(0), 0.03, 0)
	_, err := tm.Build()
	assert.ErrorIs(t, err, qerr.ErrInvalidArgument)

	tm = terms(nil, swap.Payer, 0.03, 0)
	tm.Index = nil
	_, err = tm.Build()
	assert.ErrorContains(t, err, "no index given")

	_, err = swap.NewVanillaSwap(swap.VanillaSwapParams{Type: swap.Payer, Nominal: 1})
	assert.ErrorContains(t, err, "schedules are required")

	// Pricing without a forecast curve surfaces the index error.
	s := build(t, terms(nil, swap.Payer, 0.03, 0))
	_, err = s.NPV(termstructure.NewFlatForwardRate(today, 0.03, utils.Act365F), vc)
	assert.ErrorIs(t, err, qerr.ErrInvalidArgument)
	assert.ErrorContains(t, err, "floating leg")

	assert.Equal(t, "PAY", swap.Payer.String())
	assert.Equal(t, "REC", swap.Receiver.String())
}
