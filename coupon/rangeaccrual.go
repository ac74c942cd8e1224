package coupon

import (
	"time"

	"github.com/meenmo/quantcore/index"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/schedule"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

// RangeAccrualCoupon pays gearing * fixing * (fraction of observations with
// the index inside [lower, upper]) + spread.
type RangeAccrualCoupon struct {
	floatingBase
	index        *index.IborIndex
	observations []time.Time
	lower, upper float64
	pricer       *RangeAccrualPricer
}

// NewRangeAccrualCoupon takes an observation schedule spanning the accrual
// period; its inner dates are the observation dates.
func NewRangeAccrualCoupon(p Period, idx *index.IborIndex, t FloatingTerms,
	observations *schedule.Schedule, lower, upper float64) (*RangeAccrualCoupon, error) {
	if idx == nil {
		return nil, qerr.Invalid("no index given")
	}
	fb, err := newFloatingBase(p, t)
	if err != nil {
		return nil, err
	}
	if observations == nil {
		return nil, qerr.Invalid("no observation schedule given")
	}
	if !observations.StartDate().Equal(p.Start) {
		return nil, qerr.Invalid("incompatible start date: observations start %s, accrual starts %s",
			observations.StartDate().Format(utils.DateLayout), p.Start.Format(utils.DateLayout))
	}
	if !observations.EndDate().Equal(p.End) {
		return nil, qerr.Invalid("incompatible end date: observations end %s, accrual ends %s",
			observations.EndDate().Format(utils.DateLayout), p.End.Format(utils.DateLayout))
	}
	dates := observations.Dates()
	if len(dates) < 3 {
		return nil, qerr.Invalid("no observation dates between %s and %s",
			p.Start.Format(utils.DateLayout), p.End.Format(utils.DateLayout))
	}
	if !(lower < upper) {
		return nil, qerr.Invalid("lower trigger (%g) must be below upper trigger (%g)", lower, upper)
	}
	return &RangeAccrualCoupon{
		floatingBase: fb,
		index:        idx,
		observations: dates[1 : len(dates)-1],
		lower:        lower,
		upper:        upper,
	}, nil
}

func (c *RangeAccrualCoupon) Kind() Kind { return RangeAccrual }

// Index is the observed index.
func (c *RangeAccrualCoupon) Index() *index.IborIndex { return c.index }

// ObservationDates are the dates the index is checked against the range.
func (c *RangeAccrualCoupon) ObservationDates() []time.Time {
	out := make([]time.Time, len(c.observations))
	copy(out, c.observations)
	return out
}

// Triggers returns the range bounds.
func (c *RangeAccrualCoupon) Triggers() (lower, upper float64) { return c.lower, c.upper }

// FixingDate fixes the accruing rate.
func (c *RangeAccrualCoupon) FixingDate() time.Time { return c.fixingDate(c.index.Calendar) }

func (c *RangeAccrualCoupon) Rate(vc valuation.Context) (float64, error) {
	if c.pricer == nil {
		return 0, errPricerNotSet
	}
	return c.pricer.swapletRate(vc, c)
}

func (c *RangeAccrualCoupon) Amount(vc valuation.Context) (float64, error) { return amount(c, vc) }

func (c *RangeAccrualCoupon) AccruedAmount(vc valuation.Context, d time.Time) (float64, error) {
	return accrued(c, &c.couponBase, vc, d)
}
