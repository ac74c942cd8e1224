// Package termstructure holds the curves instruments are priced off:
// discount curves, Black volatilities and default-probability curves.
package termstructure

import (
	"math"
	"time"

	"github.com/meenmo/quantcore/utils"
)

// dt is the step used for instantaneous rates at t = 0 and for
// degenerate forward intervals.
const dt = 1e-4

// YieldCurve is a discount curve anchored at a reference date.
type YieldCurve interface {
	ReferenceDate() time.Time
	TimeFromReference(d time.Time) float64
	Discount(t float64) float64
	DiscountAt(d time.Time) float64
	ZeroRate(t float64) float64
	ForwardRate(t1, t2 float64) float64
	Version() uint64
}

// Axis maps dates to curve times. Curves embed it.
type Axis struct {
	Reference time.Time
	DayCount  utils.DayCount
}

// ReferenceDate is the date at which t = 0.
func (a Axis) ReferenceDate() time.Time { return a.Reference }

// TimeFromReference is the year fraction from the reference date to d.
func (a Axis) TimeFromReference(d time.Time) float64 {
	return utils.YearFraction(a.Reference, d, a.DayCount)
}

// ContinuousZero converts a discount factor at t to a continuously
// compounded zero rate.
func ContinuousZero(discount func(float64) float64, t float64) float64 {
	if t < dt {
		t = dt
	}
	return -math.Log(discount(t)) / t
}

// ContinuousForward is the continuously compounded forward between t1 and t2.
func ContinuousForward(discount func(float64) float64, t1, t2 float64) float64 {
	if t2-t1 < dt {
		t2 = t1 + dt
	}
	return math.Log(discount(t1)/discount(t2)) / (t2 - t1)
}

// SimpleForward is the simply compounded forward rate for accrual tau.
func SimpleForward(c YieldCurve, start, end time.Time, tau float64) float64 {
	return (c.DiscountAt(start)/c.DiscountAt(end) - 1.0) / tau
}
