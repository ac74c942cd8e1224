package index

import (
	"time"

	"github.com/meenmo/quantcore/calendar"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/schedule"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

// SwapIndex is the par rate of a spot-starting fixed-vs-Ibor swap.
// The floating leg follows the Ibor index. Discounting uses Discount when
// set and the Ibor forecasting curve otherwise.
type SwapIndex struct {
	Name          Name
	Tenor         utils.Period
	FixedTenor    utils.Period
	FixedDayCount utils.DayCount
	Ibor          *IborIndex
	Discount      termstructure.YieldCurve
}

// NewSwapIndex validates the tenors.
func NewSwapIndex(name Name, tenor, fixedTenor utils.Period, fixedDC utils.DayCount,
	ibor *IborIndex, discount termstructure.YieldCurve) (*SwapIndex, error) {
	if ibor == nil {
		return nil, qerr.Invalid("swap index %s needs an ibor index", name)
	}
	if tenor.N <= 0 || fixedTenor.N <= 0 {
		return nil, qerr.Invalid("swap index %s: non-positive tenor (%s, %s)", name, tenor, fixedTenor)
	}
	if name == "" {
		name = Name("SWAP" + tenor.String() + "-" + string(ibor.Name))
	}
	return &SwapIndex{
		Name:          name,
		Tenor:         tenor,
		FixedTenor:    fixedTenor,
		FixedDayCount: fixedDC,
		Ibor:          ibor,
		Discount:      discount,
	}, nil
}

// EuriborSwap is the annual 30/360 fixed vs Euribor swap rate.
func EuriborSwap(tenor utils.Period, ibor *IborIndex, discount termstructure.YieldCurve) *SwapIndex {
	return &SwapIndex{
		Name:          Name("EURSWAP" + tenor.String()),
		Tenor:         tenor,
		FixedTenor:    utils.Period{N: 1, Unit: utils.UnitYears},
		FixedDayCount: utils.Thirty360,
		Ibor:          ibor,
		Discount:      discount,
	}
}

// WithForecast returns a copy whose Ibor leg forecasts off curve.
func (s *SwapIndex) WithForecast(curve termstructure.YieldCurve) *SwapIndex {
	c := *s
	c.Ibor = s.Ibor.WithForecast(curve)
	return &c
}

// Version tracks both curves.
func (s *SwapIndex) Version() uint64 {
	v := s.Ibor.Version()
	if s.Discount != nil {
		v += s.Discount.Version()
	}
	return v
}

// FixingDate is the fixing date for a swap starting at valueDate.
func (s *SwapIndex) FixingDate(valueDate time.Time) time.Time { return s.Ibor.FixingDate(valueDate) }

func (s *SwapIndex) discountCurve() termstructure.YieldCurve {
	if s.Discount != nil {
		return s.Discount
	}
	return s.Ibor.ForecastCurve()
}

// FixedSchedule is the fixed-leg schedule of the swap fixed on fixingDate.
func (s *SwapIndex) FixedSchedule(fixingDate time.Time) (*schedule.Schedule, error) {
	start := s.Ibor.ValueDate(fixingDate)
	return schedule.New(schedule.Params{
		Effective:             start,
		Termination:           calendar.Advance(s.Ibor.Calendar, start, s.Tenor, s.Ibor.Convention, s.Ibor.EndOfMonth),
		Tenor:                 s.FixedTenor,
		Calendar:              s.Ibor.Calendar,
		Convention:            s.Ibor.Convention,
		TerminationConvention: s.Ibor.Convention,
		Rule:                  schedule.Backward,
		EndOfMonth:            s.Ibor.EndOfMonth,
	})
}

func (s *SwapIndex) floatSchedule(fixingDate time.Time) (*schedule.Schedule, error) {
	start := s.Ibor.ValueDate(fixingDate)
	return schedule.New(schedule.Params{
		Effective:             start,
		Termination:           calendar.Advance(s.Ibor.Calendar, start, s.Tenor, s.Ibor.Convention, s.Ibor.EndOfMonth),
		Tenor:                 s.Ibor.Tenor,
		Calendar:              s.Ibor.Calendar,
		Convention:            s.Ibor.Convention,
		TerminationConvention: s.Ibor.Convention,
		Rule:                  schedule.Backward,
		EndOfMonth:            s.Ibor.EndOfMonth,
	})
}

// Annuity is the fixed-leg basis point value per unit notional.
func (s *SwapIndex) Annuity(fixingDate time.Time) (float64, error) {
	disc := s.discountCurve()
	if disc == nil {
		return 0, qerr.Invalid("null term structure set to %s", s.Name)
	}
	fixed, err := s.FixedSchedule(fixingDate)
	if err != nil {
		return 0, err
	}
	var annuity float64
	for _, p := range fixed.Periods() {
		annuity += utils.YearFraction(p.Start, p.End, s.FixedDayCount) * disc.DiscountAt(p.End)
	}
	return annuity, nil
}

// ForwardRate is the par swap rate for the swap fixed on fixingDate.
func (s *SwapIndex) ForwardRate(fixingDate time.Time) (float64, error) {
	annuity, err := s.Annuity(fixingDate)
	if err != nil {
		return 0, err
	}
	if annuity <= 0 {
		return 0, qerr.Numerical("non-positive annuity (%g) for %s", annuity, s.Name)
	}
	float, err := s.floatSchedule(fixingDate)
	if err != nil {
		return 0, err
	}
	disc := s.discountCurve()
	var floatPV float64
	for _, p := range float.Periods() {
		fwd, err := s.Ibor.Forecast(p.Start, p.End)
		if err != nil {
			return 0, err
		}
		floatPV += fwd * utils.YearFraction(p.Start, p.End, s.Ibor.DayCount) * disc.DiscountAt(p.End)
	}
	return floatPV / annuity, nil
}

// Fixing returns the stored fixing for past dates and the forward swap
// rate otherwise.
func (s *SwapIndex) Fixing(vc valuation.Context, fixingDate time.Time) (float64, error) {
	if !s.Ibor.IsValidFixingDate(fixingDate) {
		return 0, qerr.Invalid("fixing date %s is not valid for %s", fixingDate.Format(utils.DateLayout), s.Name)
	}
	if !fixingDate.After(vc.EvaluationDate) {
		if v, ok := fixings.get(s.Name, fixingDate); ok {
			return v, nil
		}
		if fixingDate.Before(vc.EvaluationDate) {
			return 0, qerr.Stale("missing %s fixing for %s", s.Name, fixingDate.Format(utils.DateLayout))
		}
	}
	return s.ForwardRate(fixingDate)
}

// AddFixing stores a past fixing.
func (s *SwapIndex) AddFixing(d time.Time, v float64) error {
	if !s.Ibor.IsValidFixingDate(d) {
		return qerr.Invalid("invalid fixing date %s for %s", d.Format(utils.DateLayout), s.Name)
	}
	fixings.add(s.Name, d, v)
	return nil
}
