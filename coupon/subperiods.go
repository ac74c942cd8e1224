package coupon

import (
	"time"

	"github.com/meenmo/quantcore/calendar"
	"github.com/meenmo/quantcore/index"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/schedule"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

// SubPeriodsCoupon accrues over several index resets, averaged or
// compounded by its pricer.
type SubPeriodsCoupon struct {
	floatingBase
	index      *index.IborIndex
	valueDates []time.Time
	rateSpread float64
	pricer     *SubPeriodsPricer
}

// NewSubPeriodsCoupon splits the accrual period at valueDates, which must
// start at the accrual start and end at the accrual end. With no value
// dates the period is split by the index tenor. rateSpread is added to each
// fixing; t.Spread is added to the resulting rate.
func NewSubPeriodsCoupon(p Period, idx *index.IborIndex, t FloatingTerms,
	valueDates []time.Time, rateSpread float64) (*SubPeriodsCoupon, error) {
	if idx == nil {
		return nil, qerr.Invalid("no index given")
	}
	fb, err := newFloatingBase(p, t)
	if err != nil {
		return nil, err
	}
	if len(valueDates) == 0 {
		s, err := schedule.New(schedule.Params{
			Effective:             p.Start,
			Termination:           p.End,
			Tenor:                 idx.Tenor,
			Calendar:              idx.Calendar,
			Convention:            idx.Convention,
			TerminationConvention: idx.Convention,
			Rule:                  schedule.Forward,
		})
		if err != nil {
			return nil, err
		}
		valueDates = s.Dates()
		valueDates[0], valueDates[len(valueDates)-1] = p.Start, p.End
	} else {
		valueDates = append([]time.Time(nil), valueDates...)
	}
	if len(valueDates) < 2 {
		return nil, qerr.Invalid("sub-period coupon needs at least 2 value dates, got %d", len(valueDates))
	}
	if !valueDates[0].Equal(p.Start) || !valueDates[len(valueDates)-1].Equal(p.End) {
		return nil, qerr.Invalid("value dates must span the accrual period %s to %s",
			p.Start.Format(utils.DateLayout), p.End.Format(utils.DateLayout))
	}
	for i := 1; i < len(valueDates); i++ {
		if !valueDates[i].After(valueDates[i-1]) {
			return nil, qerr.Invalid("value dates must be strictly increasing (%s after %s)",
				valueDates[i].Format(utils.DateLayout), valueDates[i-1].Format(utils.DateLayout))
		}
	}
	return &SubPeriodsCoupon{floatingBase: fb, index: idx, valueDates: valueDates, rateSpread: rateSpread}, nil
}

func (c *SubPeriodsCoupon) Kind() Kind { return SubPeriods }

// Index is the reset index.
func (c *SubPeriodsCoupon) Index() *index.IborIndex { return c.index }

// RateSpread is added to every fixing.
func (c *SubPeriodsCoupon) RateSpread() float64 { return c.rateSpread }

// ValueDates returns the sub-period boundaries.
func (c *SubPeriodsCoupon) ValueDates() []time.Time {
	return append([]time.Time(nil), c.valueDates...)
}

// FixingDates are the reset dates of each sub-period.
func (c *SubPeriodsCoupon) FixingDates() []time.Time {
	out := make([]time.Time, len(c.valueDates)-1)
	for i := range out {
		out[i] = calendar.AddBusinessDays(c.index.Calendar, c.valueDates[i], -c.terms.FixingDays)
	}
	return out
}

// SubPeriodFractions are the index year fractions of each sub-period.
func (c *SubPeriodsCoupon) SubPeriodFractions() []float64 {
	out := make([]float64, len(c.valueDates)-1)
	for i := range out {
		out[i] = utils.YearFraction(c.valueDates[i], c.valueDates[i+1], c.index.DayCount)
	}
	return out
}

func (c *SubPeriodsCoupon) Rate(vc valuation.Context) (float64, error) {
	if c.pricer == nil {
		return 0, errPricerNotSet
	}
	return c.pricer.swapletRate(vc, c)
}

func (c *SubPeriodsCoupon) Amount(vc valuation.Context) (float64, error) { return amount(c, vc) }

func (c *SubPeriodsCoupon) AccruedAmount(vc valuation.Context, d time.Time) (float64, error) {
	return accrued(c, &c.couponBase, vc, d)
}
