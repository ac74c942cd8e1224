package coupon_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/quantcore/calendar"
	"github.com/meenmo/quantcore/coupon"
	"github.com/meenmo/quantcore/index"
	"github.com/meenmo/quantcore/payoff"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/quote"
	"github.com/meenmo/quantcore/schedule"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

const nominal = 1_000_000.0

var (
	today = utils.Date(2025, time.January, 15)
	vc    = valuation.NewContext(today)
	start = utils.Date(2025, time.January, 17)
)

func flat(rate float64) *termstructure.FlatForward {
	return termstructure.NewFlatForwardRate(today, rate, utils.Act365F)
}

func constVol(v float64) *termstructure.BlackConstantVol {
	return termstructure.NewBlackConstantVol(today, quote.NewSimpleQuote(v), utils.Act365F)
}

func sched(t *testing.T, from, to time.Time, tenor string) *schedule.Schedule {
	t.Helper()
	s, err := schedule.New(schedule.Params{
		Effective:             from,
		Termination:           to,
		Tenor:                 utils.MustPeriod(tenor),
		Calendar:              calendar.TARGET,
		Convention:            calendar.ModifiedFollowing,
		TerminationConvention: calendar.ModifiedFollowing,
		Rule:                  schedule.Forward,
	})
	require.NoError(t, err)
	return s
}

func oneYear(t *testing.T, tenor string) *schedule.Schedule {
	return sched(t, start, utils.Date(2026, time.January, 17), tenor)
}

func coupons(t *testing.T, leg coupon.Leg) []coupon.Coupon {
	t.Helper()
	out := make([]coupon.Coupon, len(leg))
	for i, cf := range leg {
		c, ok := cf.(coupon.Coupon)
		require.True(t, ok)
		out[i] = c
	}
	return out
}

func TestFixedLeg(t *testing.T) {
	t.Parallel()

	curve := flat(0.03)
	leg, err := coupon.FixedLeg{
		LegTerms: coupon.LegTerms{Schedule: oneYear(t, "6M"), Nominals: []float64{nominal}, DayCount: utils.Act360},
		Rates:    []float64{0.05},
	}.Build()
	require.NoError(t, err)
	require.Len(t, leg, 2)

	for _, c := range coupons(t, leg) {
		assert.Equal(t, coupon.Fixed, c.Kind())
		a, err := c.Amount(vc)
		require.NoError(t, err)
		assert.InDelta(t, nominal*0.05*c.AccrualPeriod(), a, 1e-9)
	}

	npv, err := coupon.NPV(leg, curve, vc)
	require.NoError(t, err)
	bps, err := coupon.BPS(leg, curve, vc)
	require.NoError(t, err)
	assert.InDelta(t, npv, bps*0.05/1e-4, 1e-6)

	flows, err := coupon.Flows(leg, curve, vc)
	require.NoError(t, err)
	var pv float64
	for _, f := range flows {
		pv += f.PresentValue
		assert.Equal(t, 0.05, f.Rate)
	}
	assert.InDelta(t, npv, pv, 1e-9)

	// Fixed coupons ignore pricers.
	assert.NoError(t, coupon.SetPricer(leg, &coupon.CMSPricer{}))
}

func TestAccruedAmount(t *testing.T) {
	t.Parallel()

	leg, err := coupon.FixedLeg{
		LegTerms: coupon.LegTerms{Schedule: oneYear(t, "6M"), Nominals: []float64{nominal}, DayCount: utils.Act360},
		Rates:    []float64{0.04},
	}.Build()
	require.NoError(t, err)

	mid := utils.Date(2025, time.March, 18)
	got, err := coupon.AccruedAmount(leg, vc, mid)
	require.NoError(t, err)
	assert.InDelta(t, nominal*0.04*60/360, got, 1e-9)

	got, err = coupon.AccruedAmount(leg, vc, start)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestLegBuilderCounts(t *testing.T) {
	t.Parallel()

	s := oneYear(t, "6M")
	_, err := coupon.FixedLeg{
		LegTerms: coupon.LegTerms{Schedule: s, Nominals: []float64{1, 2, 3}},
		Rates:    []float64{0.01},
	}.Build()
	assert.True(t, errors.Is(err, qerr.ErrConfigurationMismatch))
	assert.ErrorContains(t, err, "too many nominals (3), only 2 required")

	_, err = coupon.FixedLeg{LegTerms: coupon.LegTerms{Schedule: s}, Rates: []float64{0.01}}.Build()
	assert.ErrorContains(t, err, "no notional given")

	_, err = coupon.FixedLeg{
		LegTerms: coupon.LegTerms{Schedule: s, Nominals: []float64{1}},
		Rates:    []float64{0.01, 0.02, 0.03},
	}.Build()
	assert.ErrorContains(t, err, "too many coupon rates (3), only 2 required")

	ibor := index.Euribor(utils.MustPeriod("6M"), flat(0.03))
	_, err = coupon.IborLeg{
		LegTerms:         coupon.LegTerms{Schedule: s, Nominals: []float64{1}},
		FloatingLegTerms: coupon.FloatingLegTerms{Spreads: []float64{0, 0, 0}},
		Index:            ibor,
	}.Build()
	assert.ErrorContains(t, err, "too many spreads (3), only 2 required")

	_, err = coupon.IborLeg{
		LegTerms:       coupon.LegTerms{Schedule: s, Nominals: []float64{1}},
		OptionLegTerms: coupon.OptionLegTerms{Caps: []float64{1, 1, 1}},
		Index:          ibor,
	}.Build()
	assert.True(t, errors.Is(err, qerr.ErrConfigurationMismatch))

	_, err = coupon.IborLeg{
		LegTerms: coupon.LegTerms{Schedule: s, Nominals: []float64{1}},
		Index:    ibor,
		FloatingLegTerms: coupon.FloatingLegTerms{Gearings: []float64{0}},
	}.Build()
	assert.ErrorContains(t, err, "null gearing not allowed")
}

func TestIborLegSingleCurve(t *testing.T) {
	t.Parallel()

	curve := flat(0.03)
	s := oneYear(t, "6M")
	leg, err := coupon.IborLeg{
		LegTerms: coupon.LegTerms{Schedule: s, Nominals: []float64{nominal}},
		Index:    index.Euribor(utils.MustPeriod("6M"), curve),
	}.Build()
	require.NoError(t, err)

	cs := coupons(t, leg)
	assert.Equal(t, coupon.Ibor, cs[0].Kind())
	assert.Equal(t, utils.Act360, cs[0].DayCount())

	// Forecast periods match the accrual periods, so the leg telescopes.
	npv, err := coupon.NPV(leg, curve, vc)
	require.NoError(t, err)
	want := nominal * (curve.DiscountAt(s.StartDate()) - curve.DiscountAt(s.EndDate()))
	assert.InDelta(t, want, npv, 1e-6)

	// A spread adds its annuity.
	spreadLeg, err := coupon.IborLeg{
		LegTerms:         coupon.LegTerms{Schedule: s, Nominals: []float64{nominal}},
		FloatingLegTerms: coupon.FloatingLegTerms{Spreads: []float64{0.01}},
		Index:            index.Euribor(utils.MustPeriod("6M"), curve),
	}.Build()
	require.NoError(t, err)
	spreadNPV, err := coupon.NPV(spreadLeg, curve, vc)
	require.NoError(t, err)
	bps, err := coupon.BPS(spreadLeg, curve, vc)
	require.NoError(t, err)
	assert.InDelta(t, npv+100*bps, spreadNPV, 1e-6)
}

func TestMissingPastFixing(t *testing.T) {
	t.Parallel()

	ibor, err := index.NewIborIndex("COUPONTEST6M", utils.MustPeriod("6M"), 2, calendar.TARGET,
		calendar.ModifiedFollowing, false, utils.Act360, flat(0.03))
	require.NoError(t, err)
	defer index.ClearFixings(ibor.Name)

	s := sched(t, utils.Date(2024, time.October, 17), utils.Date(2025, time.October, 17), "6M")
	leg, err := coupon.IborLeg{
		LegTerms: coupon.LegTerms{Schedule: s, Nominals: []float64{nominal}},
		Index:    ibor,
	}.Build()
	require.NoError(t, err)

	_, err = coupon.NPV(leg, flat(0.03), vc)
	assert.True(t, errors.Is(err, qerr.ErrStaleQuote))

	require.NoError(t, ibor.AddFixing(utils.Date(2024, time.October, 15), 0.035))
	first := coupons(t, leg)[0]
	r, err := first.Rate(vc)
	require.NoError(t, err)
	assert.Equal(t, 0.035, r)
	_, err = coupon.NPV(leg, flat(0.03), vc)
	assert.NoError(t, err)
}

func TestPricerDispatch(t *testing.T) {
	t.Parallel()

	curve := flat(0.03)
	s := oneYear(t, "6M")
	ibor := index.Euribor(utils.MustPeriod("6M"), curve)

	iborLeg, err := coupon.IborLeg{LegTerms: coupon.LegTerms{Schedule: s, Nominals: []float64{1}}, Index: ibor}.Build()
	require.NoError(t, err)
	err = coupon.SetPricer(iborLeg, &coupon.CMSPricer{})
	assert.True(t, errors.Is(err, qerr.ErrIncompatiblePricer))
	assert.ErrorContains(t, err, "pricer not compatible with ibor coupon")

	capped, err := coupon.IborLeg{
		LegTerms:       coupon.LegTerms{Schedule: s, Nominals: []float64{1}},
		OptionLegTerms: coupon.OptionLegTerms{Caps: []float64{0.05}},
		Index:          ibor,
	}.Build()
	require.NoError(t, err)
	assert.Equal(t, coupon.CappedFlooredIbor, coupons(t, capped)[0].Kind())
	assert.ErrorContains(t, coupon.SetPricer(capped, coupon.NewAveragingPricer()),
		"pricer not compatible with capped/floored ibor coupon")

	swapIdx := index.EuriborSwap(utils.MustPeriod("5Y"), ibor, nil)
	cmsLeg, err := coupon.CmsLeg{LegTerms: coupon.LegTerms{Schedule: s, Nominals: []float64{1}}, Index: swapIdx}.Build()
	require.NoError(t, err)
	_, err = coupon.NPV(cmsLeg, curve, vc)
	assert.True(t, errors.Is(err, qerr.ErrIncompatiblePricer))
	assert.ErrorContains(t, err, "pricer not set")
	assert.ErrorContains(t, coupon.SetPricer(cmsLeg, &coupon.BlackIborPricer{}), "pricer not compatible with cms coupon")
	require.NoError(t, coupon.SetPricer(cmsLeg, &coupon.CMSPricer{Vol: constVol(0.2)}))
	_, err = coupon.NPV(cmsLeg, curve, vc)
	assert.NoError(t, err)

	sub, err := coupon.SubPeriodsLeg{
		LegTerms: coupon.LegTerms{Schedule: s, Nominals: []float64{1}},
		Index:    index.Euribor(utils.MustPeriod("3M"), curve),
	}.Build()
	require.NoError(t, err)
	assert.ErrorContains(t, coupon.SetPricer(sub, &coupon.BlackIborPricer{}), "pricer not compatible with sub-periods coupon")
	assert.NoError(t, coupon.SetPricer(sub, coupon.NewCompoundingPricer()))
	assert.Equal(t, coupon.PricerCompoundingSubPeriods, coupon.NewCompoundingPricer().Kind())

	assert.Error(t, coupon.SetPricer(iborLeg, nil))
}

func TestCappedFlooredIbor(t *testing.T) {
	t.Parallel()

	curve := flat(0.03)
	s := oneYear(t, "6M")
	build := func(opts coupon.OptionLegTerms, fl coupon.FloatingLegTerms, vol float64) []coupon.Coupon {
		leg, err := coupon.IborLeg{
			LegTerms:         coupon.LegTerms{Schedule: s, Nominals: []float64{nominal}},
			FloatingLegTerms: fl,
			OptionLegTerms:   opts,
			Index:            index.Euribor(utils.MustPeriod("6M"), curve),
		}.Build()
		require.NoError(t, err)
		require.NoError(t, coupon.SetPricer(leg, &coupon.BlackIborPricer{Vol: constVol(vol)}))
		return coupons(t, leg)
	}
	plain := build(coupon.OptionLegTerms{}, coupon.FloatingLegTerms{}, 0)

	// Zero volatility: bounds act on the forecast fixing.
	capped := build(coupon.OptionLegTerms{Caps: []float64{0.02}}, coupon.FloatingLegTerms{}, 0)
	floored := build(coupon.OptionLegTerms{Floors: []float64{0.05}}, coupon.FloatingLegTerms{}, 0)
	for i := range plain {
		f, err := plain[i].Rate(vc)
		require.NoError(t, err)
		require.Greater(t, f, 0.02)

		r, err := capped[i].Rate(vc)
		require.NoError(t, err)
		assert.InDelta(t, 0.02, r, 1e-14)

		r, err = floored[i].Rate(vc)
		require.NoError(t, err)
		assert.InDelta(t, 0.05, r, 1e-14)
	}

	// A collar with equal bounds pins the rate whatever the volatility.
	collar := build(coupon.OptionLegTerms{Caps: []float64{0.035}, Floors: []float64{0.035}}, coupon.FloatingLegTerms{}, 0.2)
	for _, c := range collar {
		r, err := c.Rate(vc)
		require.NoError(t, err)
		assert.InDelta(t, 0.035, r, 1e-12)
	}

	// With volatility a cap is worth something even out of the money.
	otm := build(coupon.OptionLegTerms{Caps: []float64{0.04}}, coupon.FloatingLegTerms{}, 0.3)
	f, err := plain[1].Rate(vc)
	require.NoError(t, err)
	r, err := otm[1].Rate(vc)
	require.NoError(t, err)
	assert.Less(t, r, f)

	// Negative gearing: a floor on the coupon is a cap on the index.
	inverse := build(coupon.OptionLegTerms{Floors: []float64{0.03}},
		coupon.FloatingLegTerms{Gearings: []float64{-1}, Spreads: []float64{0.05}}, 0)
	for _, c := range inverse {
		r, err := c.Rate(vc)
		require.NoError(t, err)
		assert.InDelta(t, 0.03, r, 1e-14)
	}

	u, err := coupon.NewIborCoupon(coupon.Period{Payment: start.AddDate(1, 0, 0), Nominal: 1, Start: start, End: start.AddDate(1, 0, 0), DayCount: utils.Act360},
		index.Euribor(utils.MustPeriod("6M"), curve), coupon.FloatingTerms{FixingDays: 2, Gearing: 1})
	require.NoError(t, err)
	lo, hi := 0.05, 0.01
	_, err = coupon.NewCappedFlooredIborCoupon(u, &hi, &lo)
	assert.ErrorContains(t, err, "cap level (0.01) less than floor level (0.05)")
}

func TestDigitalIbor(t *testing.T) {
	t.Parallel()

	curve := flat(0.03)
	s := oneYear(t, "6M")
	build := func(d coupon.DigitalTerms) []coupon.Coupon {
		leg, err := coupon.IborLeg{
			LegTerms:       coupon.LegTerms{Schedule: s, Nominals: []float64{nominal}},
			OptionLegTerms: coupon.OptionLegTerms{Digital: &d},
			Index:          index.Euribor(utils.MustPeriod("6M"), curve),
		}.Build()
		require.NoError(t, err)
		require.NoError(t, coupon.SetPricer(leg, &coupon.BlackIborPricer{Vol: constVol(0)}))
		return coupons(t, leg)
	}
	callStrike, putStrike, cash := 0.01, 0.05, 0.005

	cashCall := build(coupon.DigitalTerms{CallStrike: &callStrike, LongCall: true, CashRate: &cash})
	assetPut := build(coupon.DigitalTerms{PutStrike: &putStrike, LongPut: true})
	shortCall := build(coupon.DigitalTerms{CallStrike: &callStrike, CashRate: &cash})
	for i := range cashCall {
		assert.Equal(t, coupon.DigitalIbor, cashCall[i].Kind())
		f, err := cashCall[i].(*coupon.DigitalIborCoupon).IndexFixing(vc)
		require.NoError(t, err)

		r, err := cashCall[i].Rate(vc)
		require.NoError(t, err)
		assert.InDelta(t, f+cash, r, 1e-14)

		r, err = assetPut[i].Rate(vc)
		require.NoError(t, err)
		assert.InDelta(t, 2*f, r, 1e-14)

		r, err = shortCall[i].Rate(vc)
		require.NoError(t, err)
		assert.InDelta(t, f-cash, r, 1e-14)
	}

	_, err := coupon.NewDigitalIborCoupon(cashCall[0].(*coupon.DigitalIborCoupon).IborCoupon, coupon.DigitalTerms{})
	assert.Error(t, err)
}

func TestInArrears(t *testing.T) {
	t.Parallel()

	curve := flat(0.03)
	s := oneYear(t, "6M")
	leg, err := coupon.IborLeg{
		LegTerms:         coupon.LegTerms{Schedule: s, Nominals: []float64{nominal}},
		FloatingLegTerms: coupon.FloatingLegTerms{InArrears: true},
		Index:            index.Euribor(utils.MustPeriod("6M"), curve),
	}.Build()
	require.NoError(t, err)
	c := coupons(t, leg)[1].(*coupon.IborCoupon)
	assert.Equal(t, calendar.AddBusinessDays(calendar.TARGET, c.AccrualEndDate(), -2), c.FixingDate())

	_, err = c.Rate(vc)
	assert.ErrorContains(t, err, "missing optionlet volatility")

	require.NoError(t, coupon.SetPricer(leg, &coupon.BlackIborPricer{Vol: constVol(0.25)}))
	f, err := c.IndexFixing(vc)
	require.NoError(t, err)
	r, err := c.Rate(vc)
	require.NoError(t, err)
	assert.Greater(t, r, f)
	assert.Less(t, r-f, 1e-4)
}

func TestCmsHullConvexity(t *testing.T) {
	t.Parallel()

	curve := flat(0.03)
	vol := constVol(0.2)
	swapIdx := index.EuriborSwap(utils.MustPeriod("5Y"), index.Euribor(utils.MustPeriod("6M"), curve), nil)
	leg, err := coupon.CmsLeg{
		LegTerms: coupon.LegTerms{Schedule: sched(t, start, utils.Date(2027, time.January, 18), "1Y"), Nominals: []float64{nominal}},
		Index:    swapIdx,
	}.Build()
	require.NoError(t, err)
	require.NoError(t, coupon.SetPricer(leg, &coupon.CMSPricer{Vol: vol}))
	cs := coupons(t, leg)

	// Fixed today: no adjustment.
	first := cs[0].(*coupon.CmsCoupon)
	s0, err := swapIdx.ForwardRate(first.FixingDate())
	require.NoError(t, err)
	r0, err := first.Rate(vc)
	require.NoError(t, err)
	assert.Equal(t, s0, r0)

	second := cs[1].(*coupon.CmsCoupon)
	fixingDate := second.FixingDate()
	s, err := swapIdx.ForwardRate(fixingDate)
	require.NoError(t, err)
	fixed, err := swapIdx.FixedSchedule(fixingDate)
	require.NoError(t, err)
	n := fixed.Len() - 1
	v := 1 / (1 + s)
	var g1, g2 float64
	for i := 1; i <= n; i++ {
		fi := float64(i)
		g1 -= s * fi * math.Pow(v, fi+1)
		g2 += s * fi * (fi + 1) * math.Pow(v, fi+2)
	}
	fn := float64(n)
	g1 -= fn * math.Pow(v, fn+1)
	g2 += fn * (fn + 1) * math.Pow(v, fn+2)
	variance := vol.BlackVariance(vol.TimeFromReference(fixingDate), s)
	want := -0.5 * s * s * variance * g2 / g1

	r, err := second.Rate(vc)
	require.NoError(t, err)
	assert.Greater(t, r-s, 0.0)
	assert.InEpsilon(t, want, r-s, 1e-5)
}

func TestCappedFlooredAndDigitalCms(t *testing.T) {
	t.Parallel()

	curve := flat(0.03)
	swapIdx := index.EuriborSwap(utils.MustPeriod("5Y"), index.Euribor(utils.MustPeriod("6M"), curve), nil)
	s := sched(t, start, utils.Date(2027, time.January, 18), "1Y")
	pricer := &coupon.CMSPricer{Vol: constVol(0.2)}

	collar, err := coupon.CmsLeg{
		LegTerms:       coupon.LegTerms{Schedule: s, Nominals: []float64{nominal}},
		OptionLegTerms: coupon.OptionLegTerms{Caps: []float64{0.03}, Floors: []float64{0.03}},
		Index:          swapIdx,
	}.Build()
	require.NoError(t, err)
	require.NoError(t, coupon.SetPricer(collar, pricer))
	for _, c := range coupons(t, collar) {
		assert.Equal(t, coupon.CappedFlooredCMS, c.Kind())
		r, err := c.Rate(vc)
		require.NoError(t, err)
		assert.InDelta(t, 0.03, r, 1e-12)
	}

	strike, cash := 0.001, 0.01
	digital, err := coupon.CmsLeg{
		LegTerms:       coupon.LegTerms{Schedule: s, Nominals: []float64{nominal}},
		OptionLegTerms: coupon.OptionLegTerms{Digital: &coupon.DigitalTerms{CallStrike: &strike, LongCall: true, CashRate: &cash}},
		Index:          swapIdx,
	}.Build()
	require.NoError(t, err)
	require.NoError(t, coupon.SetPricer(digital, pricer))
	plain, err := coupon.CmsLeg{LegTerms: coupon.LegTerms{Schedule: s, Nominals: []float64{nominal}}, Index: swapIdx}.Build()
	require.NoError(t, err)
	require.NoError(t, coupon.SetPricer(plain, pricer))
	for i, c := range coupons(t, digital) {
		assert.Equal(t, coupon.DigitalCMS, c.Kind())
		r, err := c.Rate(vc)
		require.NoError(t, err)
		p, err := coupons(t, plain)[i].Rate(vc)
		require.NoError(t, err)
		// Deep in the money: the digital almost surely pays.
		assert.InDelta(t, p+cash, r, 1e-8)
	}
}

func TestCmsSpread(t *testing.T) {
	t.Parallel()

	curve := flat(0.03)
	ibor := index.Euribor(utils.MustPeriod("6M"), curve)
	long := index.EuriborSwap(utils.MustPeriod("10Y"), ibor, nil)
	short := index.EuriborSwap(utils.MustPeriod("2Y"), ibor, nil)
	leg, err := coupon.CmsLeg{
		LegTerms:         coupon.LegTerms{Schedule: sched(t, start, utils.Date(2027, time.January, 18), "1Y"), Nominals: []float64{nominal}},
		FloatingLegTerms: coupon.FloatingLegTerms{Spreads: []float64{0.001}},
		Index:            long,
		SpreadIndex:      short,
	}.Build()
	require.NoError(t, err)
	cs := coupons(t, leg)
	assert.Equal(t, coupon.CMSSpread, cs[0].Kind())

	cms := &coupon.CMSPricer{Vol: constVol(0.2)}
	assert.ErrorContains(t, coupon.SetPricer(leg, cms), "pricer not compatible with cms spread coupon")
	_, err = coupon.NewCMSSpreadPricer(cms, 1.5)
	assert.Error(t, err)
	pricer, err := coupon.NewCMSSpreadPricer(cms, 0.8)
	require.NoError(t, err)
	require.NoError(t, coupon.SetPricer(leg, pricer))

	// Fixed today: the plain rate difference.
	first := cs[0].(*coupon.CmsSpreadCoupon)
	s1, err := long.ForwardRate(first.FixingDate())
	require.NoError(t, err)
	s2, err := short.ForwardRate(first.FixingDate())
	require.NoError(t, err)
	r, err := first.Rate(vc)
	require.NoError(t, err)
	assert.InDelta(t, s1-s2+0.001, r, 1e-14)

	second := cs[1].(*coupon.CmsSpreadCoupon)
	r, err = second.Rate(vc)
	require.NoError(t, err)
	call, err := pricer.SpreadOptionRate(vc, second, payoff.Call, 0.002)
	require.NoError(t, err)
	put, err := pricer.SpreadOptionRate(vc, second, payoff.Put, 0.002)
	require.NoError(t, err)
	assert.InDelta(t, r-0.001-0.002, call-put, 1e-13)
	assert.Greater(t, call, 0.0)
	assert.Greater(t, put, 0.0)

	perfect, err := coupon.NewCMSSpreadPricer(cms, 1)
	require.NoError(t, err)
	callPerfect, err := perfect.SpreadOptionRate(vc, second, payoff.Call, 0.002)
	require.NoError(t, err)
	assert.Less(t, callPerfect, call)
}

func TestSubPeriods(t *testing.T) {
	t.Parallel()

	curve := flat(0.03)
	s := oneYear(t, "3M")
	require.Equal(t, 5, s.Len())
	build := func(p coupon.Pricer) coupon.Leg {
		leg, err := coupon.SubPeriodsLeg{
			LegTerms:        coupon.LegTerms{Schedule: s, Nominals: []float64{nominal}},
			Index:           index.Euribor(utils.MustPeriod("3M"), curve),
			ResetsPerCoupon: 2,
		}.Build()
		require.NoError(t, err)
		require.Len(t, leg, 2)
		require.NoError(t, coupon.SetPricer(leg, p))
		return leg
	}

	compounding := build(coupon.NewCompoundingPricer())
	for _, c := range coupons(t, compounding) {
		sub := c.(*coupon.SubPeriodsCoupon)
		assert.Len(t, sub.FixingDates(), 2)
		a, err := c.Amount(vc)
		require.NoError(t, err)
		growth := curve.DiscountAt(c.AccrualStartDate()) / curve.DiscountAt(c.AccrualEndDate())
		assert.InDelta(t, nominal*(growth-1), a, 1e-6)
	}
	npv, err := coupon.NPV(compounding, curve, vc)
	require.NoError(t, err)
	assert.InDelta(t, nominal*(curve.DiscountAt(s.StartDate())-curve.DiscountAt(s.EndDate())), npv, 1e-6)

	averaging := build(coupon.NewAveragingPricer())
	for i, c := range coupons(t, averaging) {
		avg, err := c.Rate(vc)
		require.NoError(t, err)
		comp, err := coupons(t, compounding)[i].Rate(vc)
		require.NoError(t, err)
		assert.Less(t, avg, comp)
		assert.InDelta(t, comp, avg, 2e-4)
	}

	_, err = coupon.SubPeriodsLeg{
		LegTerms:        coupon.LegTerms{Schedule: s, Nominals: []float64{nominal}},
		Index:           index.Euribor(utils.MustPeriod("3M"), curve),
		ResetsPerCoupon: 3,
	}.Build()
	assert.True(t, errors.Is(err, qerr.ErrConfigurationMismatch))
}

func TestSubPeriodsNullAccrual(t *testing.T) {
	t.Parallel()

	from, to := utils.Date(2025, time.January, 30), utils.Date(2025, time.January, 31)
	c, err := coupon.NewSubPeriodsCoupon(
		coupon.Period{Payment: to, Nominal: nominal, Start: from, End: to, DayCount: utils.Thirty360},
		index.Euribor(utils.MustPeriod("3M"), flat(0.03)),
		coupon.FloatingTerms{FixingDays: 2, Gearing: 1},
		[]time.Time{from, to}, 0)
	require.NoError(t, err)
	require.NoError(t, coupon.SetPricer(coupon.Leg{c}, coupon.NewAveragingPricer()))
	_, err = c.Rate(vc)
	assert.True(t, errors.Is(err, qerr.ErrNumericalFailure))
	assert.ErrorContains(t, err, "null accrual period")
}

func TestRangeAccrual(t *testing.T) {
	t.Parallel()

	curve := flat(0.03)
	s := oneYear(t, "6M")
	build := func(lower, upper, vol float64) []coupon.Coupon {
		leg, err := coupon.RangeAccrualLeg{
			LegTerms:         coupon.LegTerms{Schedule: s, Nominals: []float64{nominal}},
			FloatingLegTerms: coupon.FloatingLegTerms{Spreads: []float64{0.001}},
			Index:            index.Euribor(utils.MustPeriod("6M"), curve),
			LowerTriggers:    []float64{lower},
			UpperTriggers:    []float64{upper},
		}.Build()
		require.NoError(t, err)
		require.NoError(t, coupon.SetPricer(leg, &coupon.RangeAccrualPricer{Vol: constVol(vol)}))
		return coupons(t, leg)
	}

	inside := build(0.02, 0.04, 0)
	below := build(0, 0.01, 0)
	wide := build(0, 1, 0.2)
	narrow := build(0.029, 0.033, 0.2)
	for i, c := range inside {
		ra := c.(*coupon.RangeAccrualCoupon)
		assert.Greater(t, len(ra.ObservationDates()), 20)
		l, err := ra.Index().Fixing(vc, ra.FixingDate())
		require.NoError(t, err)

		r, err := c.Rate(vc)
		require.NoError(t, err)
		assert.InDelta(t, l+0.001, r, 1e-14)

		r, err = below[i].Rate(vc)
		require.NoError(t, err)
		assert.InDelta(t, 0.001, r, 1e-14)

		r, err = wide[i].Rate(vc)
		require.NoError(t, err)
		assert.InDelta(t, l+0.001, r, 1e-12)

		r, err = narrow[i].Rate(vc)
		require.NoError(t, err)
		assert.Greater(t, r, 0.001)
		assert.Less(t, r, l+0.001)
	}

	_, err := coupon.RangeAccrualLeg{
		LegTerms:      coupon.LegTerms{Schedule: s, Nominals: []float64{nominal}},
		Index:         index.Euribor(utils.MustPeriod("6M"), curve),
		LowerTriggers: []float64{0.04},
		UpperTriggers: []float64{0.02},
	}.Build()
	assert.ErrorContains(t, err, "lower trigger (0.04) must be below upper trigger (0.02)")
}

func TestKindNames(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "capped/floored cms", coupon.CappedFlooredCMS.String())
	assert.Equal(t, "range accrual", coupon.RangeAccrual.String())
	assert.Equal(t, "black ibor", coupon.PricerBlackIbor.String())
}
