package coupon

import (
	"fmt"
	"math"
	"time"

	"github.com/meenmo/quantcore/calendar"
	"github.com/meenmo/quantcore/index"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/schedule"
	"github.com/meenmo/quantcore/utils"
)

// get returns v[i], the last element past the end, or def for an empty v.
func get[T any](v []T, i int, def T) T {
	switch {
	case len(v) == 0:
		return def
	case i < len(v):
		return v[i]
	default:
		return v[len(v)-1]
	}
}

func checkCount[T any](what string, v []T, n int) error {
	if len(v) > n {
		return qerr.TooMany(what, len(v), n)
	}
	return nil
}

// optional turns a NaN or missing entry into nil.
func optional(v []float64, i int) *float64 {
	x := get(v, i, math.NaN())
	if math.IsNaN(x) {
		return nil
	}
	return &x
}

// LegTerms are the schedule, nominal and payment terms shared by every leg
// builder. Per-coupon arrays shorter than the schedule repeat their last
// element.
type LegTerms struct {
	Schedule          *schedule.Schedule
	Nominals          []float64
	DayCount          utils.DayCount
	PaymentConvention calendar.Convention
	PaymentLag        int
	PaymentCalendar   calendar.ID
}

func (t LegTerms) validate(n int) error {
	if t.Schedule == nil {
		return qerr.Invalid("no schedule given")
	}
	if len(t.Nominals) == 0 {
		return qerr.Invalid("no notional given")
	}
	return checkCount("nominals", t.Nominals, n)
}

func (t LegTerms) paymentDate(end time.Time) time.Time {
	cal := t.PaymentCalendar
	if cal == "" {
		cal = t.Schedule.Calendar()
	}
	if t.PaymentLag != 0 {
		return calendar.AddBusinessDays(cal, calendar.Adjust(cal, end, t.PaymentConvention), t.PaymentLag)
	}
	return calendar.Adjust(cal, end, t.PaymentConvention)
}

func (t LegTerms) period(i int, start, end time.Time, dc utils.DayCount) Period {
	return Period{
		Payment:  t.paymentDate(end),
		Nominal:  get(t.Nominals, i, 0),
		Start:    start,
		End:      end,
		DayCount: dc,
	}
}

func (t LegTerms) dayCount(def utils.DayCount) utils.DayCount {
	if t.DayCount == "" {
		return def
	}
	return t.DayCount
}

// FixedLeg builds fixed rate coupons.
type FixedLeg struct {
	LegTerms
	Rates []float64
}

func (b FixedLeg) Build() (Leg, error) {
	if b.Schedule == nil {
		return nil, qerr.Invalid("no schedule given")
	}
	periods := b.Schedule.Periods()
	n := len(periods)
	if err := b.validate(n); err != nil {
		return nil, err
	}
	if len(b.Rates) == 0 {
		return nil, qerr.Invalid("no coupon rates given")
	}
	if err := checkCount("coupon rates", b.Rates, n); err != nil {
		return nil, err
	}
	dc := b.dayCount(utils.Thirty360)
	leg := make(Leg, 0, n)
	for i, p := range periods {
		c, err := NewFixedRateCoupon(b.period(i, p.Start, p.End, dc), get(b.Rates, i, 0))
		if err != nil {
			return nil, fmt.Errorf("fixed coupon %d: %w", i+1, err)
		}
		leg = append(leg, c)
	}
	return leg, nil
}

// FloatingLegTerms are the per-coupon floating terms.
type FloatingLegTerms struct {
	FixingDays []int
	Gearings   []float64
	Spreads    []float64
	InArrears  bool
}

func (f FloatingLegTerms) check(n int) error {
	if err := checkCount("fixing days", f.FixingDays, n); err != nil {
		return err
	}
	if err := checkCount("gearings", f.Gearings, n); err != nil {
		return err
	}
	return checkCount("spreads", f.Spreads, n)
}

func (f FloatingLegTerms) terms(i, fixingDays int) FloatingTerms {
	return FloatingTerms{
		FixingDays: get(f.FixingDays, i, fixingDays),
		Gearing:    get(f.Gearings, i, 1),
		Spread:     get(f.Spreads, i, 0),
		InArrears:  f.InArrears,
	}
}

// OptionLegTerms are the per-coupon caps and floors, or digital terms.
// A NaN cap or floor leaves that coupon unbounded on that side.
type OptionLegTerms struct {
	Caps    []float64
	Floors  []float64
	Digital *DigitalTerms
}

func (o OptionLegTerms) check(n int) error {
	if err := checkCount("caps", o.Caps, n); err != nil {
		return err
	}
	if err := checkCount("floors", o.Floors, n); err != nil {
		return err
	}
	if o.Digital != nil && (len(o.Caps) > 0 || len(o.Floors) > 0) {
		return qerr.Invalid("digital and capped/floored terms are exclusive")
	}
	return nil
}

// IborLeg builds Ibor coupons, capped/floored or digital when option terms
// are given. The leg comes with a BlackIborPricer without volatility.
type IborLeg struct {
	LegTerms
	FloatingLegTerms
	OptionLegTerms
	Index *index.IborIndex
}

func (b IborLeg) Build() (Leg, error) {
	if b.Schedule == nil {
		return nil, qerr.Invalid("no schedule given")
	}
	if b.Index == nil {
		return nil, qerr.Invalid("no index given")
	}
	periods := b.Schedule.Periods()
	n := len(periods)
	if err := b.validate(n); err != nil {
		return nil, err
	}
	if err := b.FloatingLegTerms.check(n); err != nil {
		return nil, err
	}
	if err := b.OptionLegTerms.check(n); err != nil {
		return nil, err
	}
	dc := b.dayCount(b.Index.DayCount)
	leg := make(Leg, 0, n)
	for i, p := range periods {
		c, err := b.coupon(i, b.period(i, p.Start, p.End, dc))
		if err != nil {
			return nil, fmt.Errorf("ibor coupon %d: %w", i+1, err)
		}
		leg = append(leg, c)
	}
	if err := SetPricer(leg, &BlackIborPricer{}); err != nil {
		return nil, err
	}
	return leg, nil
}

func (b IborLeg) coupon(i int, p Period) (Coupon, error) {
	u, err := NewIborCoupon(p, b.Index, b.terms(i, b.Index.FixingDays))
	if err != nil {
		return nil, err
	}
	if b.Digital != nil {
		return NewDigitalIborCoupon(u, *b.Digital)
	}
	cap, floor := optional(b.Caps, i), optional(b.Floors, i)
	if cap == nil && floor == nil {
		return u, nil
	}
	return NewCappedFlooredIborCoupon(u, cap, floor)
}

// CmsLeg builds CMS coupons, or CMS spread coupons when SpreadIndex is set.
// No pricer is attached.
type CmsLeg struct {
	LegTerms
	FloatingLegTerms
	OptionLegTerms
	Index       *index.SwapIndex
	SpreadIndex *index.SwapIndex
}

func (b CmsLeg) Build() (Leg, error) {
	if b.Schedule == nil {
		return nil, qerr.Invalid("no schedule given")
	}
	if b.Index == nil {
		return nil, qerr.Invalid("no index given")
	}
	periods := b.Schedule.Periods()
	n := len(periods)
	if err := b.validate(n); err != nil {
		return nil, err
	}
	if err := b.FloatingLegTerms.check(n); err != nil {
		return nil, err
	}
	if err := b.OptionLegTerms.check(n); err != nil {
		return nil, err
	}
	if b.SpreadIndex != nil && (b.Digital != nil || len(b.Caps) > 0 || len(b.Floors) > 0) {
		return nil, qerr.Invalid("cms spread legs take no option terms")
	}
	dc := b.dayCount(b.Index.Ibor.DayCount)
	leg := make(Leg, 0, n)
	for i, p := range periods {
		c, err := b.coupon(i, b.period(i, p.Start, p.End, dc))
		if err != nil {
			return nil, fmt.Errorf("cms coupon %d: %w", i+1, err)
		}
		leg = append(leg, c)
	}
	return leg, nil
}

func (b CmsLeg) coupon(i int, p Period) (Coupon, error) {
	t := b.terms(i, b.Index.Ibor.FixingDays)
	if b.SpreadIndex != nil {
		return NewCmsSpreadCoupon(p, b.Index, b.SpreadIndex, t)
	}
	u, err := NewCmsCoupon(p, b.Index, t)
	if err != nil {
		return nil, err
	}
	if b.Digital != nil {
		return NewDigitalCmsCoupon(u, *b.Digital)
	}
	cap, floor := optional(b.Caps, i), optional(b.Floors, i)
	if cap == nil && floor == nil {
		return u, nil
	}
	return NewCappedFlooredCmsCoupon(u, cap, floor)
}

// SubPeriodsLeg builds coupons that average or compound several resets.
// With ResetsPerCoupon > 0 the schedule lists every reset date and each
// coupon spans ResetsPerCoupon of its periods; with zero, each schedule
// period is one coupon split by the index tenor.
type SubPeriodsLeg struct {
	LegTerms
	FloatingLegTerms
	Index           *index.IborIndex
	ResetsPerCoupon int
	RateSpreads     []float64
}

func (b SubPeriodsLeg) Build() (Leg, error) {
	if b.Schedule == nil {
		return nil, qerr.Invalid("no schedule given")
	}
	if b.Index == nil {
		return nil, qerr.Invalid("no index given")
	}
	if b.ResetsPerCoupon < 0 {
		return nil, qerr.Invalid("negative resets per coupon (%d)", b.ResetsPerCoupon)
	}
	dates := b.Schedule.Dates()
	step := b.ResetsPerCoupon
	if step == 0 {
		step = 1
	}
	if (len(dates)-1)%step != 0 {
		return nil, fmt.Errorf("%w: %d schedule periods are not a multiple of %d resets per coupon",
			qerr.ErrConfigurationMismatch, len(dates)-1, step)
	}
	n := (len(dates) - 1) / step
	if err := b.validate(n); err != nil {
		return nil, err
	}
	if err := b.FloatingLegTerms.check(n); err != nil {
		return nil, err
	}
	if err := checkCount("rate spreads", b.RateSpreads, n); err != nil {
		return nil, err
	}
	dc := b.dayCount(b.Index.DayCount)
	leg := make(Leg, 0, n)
	for i := 0; i < n; i++ {
		start, end := dates[i*step], dates[(i+1)*step]
		var valueDates []time.Time
		if b.ResetsPerCoupon > 0 {
			valueDates = dates[i*step : (i+1)*step+1]
		}
		c, err := NewSubPeriodsCoupon(b.period(i, start, end, dc), b.Index, b.terms(i, b.Index.FixingDays),
			valueDates, get(b.RateSpreads, i, 0))
		if err != nil {
			return nil, fmt.Errorf("sub-periods coupon %d: %w", i+1, err)
		}
		leg = append(leg, c)
	}
	return leg, nil
}

// RangeAccrualLeg builds range accrual coupons observed every
// ObservationTenor (weekly when unset).
type RangeAccrualLeg struct {
	LegTerms
	FloatingLegTerms
	Index                 *index.IborIndex
	LowerTriggers         []float64
	UpperTriggers         []float64
	ObservationTenor      utils.Period
	ObservationConvention calendar.Convention
}

func (b RangeAccrualLeg) Build() (Leg, error) {
	if b.Schedule == nil {
		return nil, qerr.Invalid("no schedule given")
	}
	if b.Index == nil {
		return nil, qerr.Invalid("no index given")
	}
	periods := b.Schedule.Periods()
	n := len(periods)
	if err := b.validate(n); err != nil {
		return nil, err
	}
	if err := b.FloatingLegTerms.check(n); err != nil {
		return nil, err
	}
	if len(b.LowerTriggers) == 0 || len(b.UpperTriggers) == 0 {
		return nil, qerr.Invalid("no triggers given")
	}
	if err := checkCount("lower triggers", b.LowerTriggers, n); err != nil {
		return nil, err
	}
	if err := checkCount("upper triggers", b.UpperTriggers, n); err != nil {
		return nil, err
	}
	dc := b.dayCount(b.Index.DayCount)
	leg := make(Leg, 0, n)
	for i, p := range periods {
		obs, err := b.observations(p.Start, p.End)
		if err != nil {
			return nil, fmt.Errorf("range accrual coupon %d: %w", i+1, err)
		}
		c, err := NewRangeAccrualCoupon(b.period(i, p.Start, p.End, dc), b.Index, b.terms(i, b.Index.FixingDays),
			obs, get(b.LowerTriggers, i, 0), get(b.UpperTriggers, i, 0))
		if err != nil {
			return nil, fmt.Errorf("range accrual coupon %d: %w", i+1, err)
		}
		leg = append(leg, c)
	}
	return leg, nil
}

// observations rolls forward from start. Day tenors step in business days.
func (b RangeAccrualLeg) observations(start, end time.Time) (*schedule.Schedule, error) {
	tenor := b.ObservationTenor
	if tenor.IsZero() {
		tenor = utils.Period{N: 1, Unit: utils.UnitWeeks}
	}
	cal := b.Index.Calendar
	if tenor.Unit != utils.UnitDays {
		return schedule.New(schedule.Params{
			Effective:             start,
			Termination:           end,
			Tenor:                 tenor,
			Calendar:              cal,
			Convention:            b.ObservationConvention,
			TerminationConvention: calendar.Unadjusted,
			Rule:                  schedule.Forward,
		})
	}
	if tenor.N <= 0 {
		return nil, qerr.Invalid("observation tenor (%s) must be positive", tenor)
	}
	dates := []time.Time{start}
	for d := calendar.AddBusinessDays(cal, start, tenor.N); d.Before(end); d = calendar.AddBusinessDays(cal, d, tenor.N) {
		dates = append(dates, d)
	}
	return schedule.FromDates(append(dates, end), cal, b.ObservationConvention)
}
