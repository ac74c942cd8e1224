package termstructure

import (
	"math"
	"time"

	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/utils"
)

// InterpolatedDiscountCurve interpolates log discount factors linearly in
// time between pillars. Beyond the last pillar the last segment's forward
// rate is held flat.
type InterpolatedDiscountCurve struct {
	Axis
	dates []time.Time
	times []float64
	logs  []float64
}

// NewInterpolatedDiscountCurve validates pillars and discount factors.
// When the first pillar is after the reference date, a unit discount at the
// reference date is prepended.
func NewInterpolatedDiscountCurve(ref time.Time, dates []time.Time, dfs []float64, dc utils.DayCount) (*InterpolatedDiscountCurve, error) {
	if len(dates) != len(dfs) {
		return nil, qerr.Mismatch("discount factors", len(dfs), len(dates))
	}
	if len(dates) == 0 {
		return nil, qerr.Invalid("no pillar dates given")
	}
	c := &InterpolatedDiscountCurve{Axis: Axis{Reference: ref, DayCount: dc}}
	if dates[0].After(ref) {
		c.dates = append(c.dates, ref)
		c.times = append(c.times, 0)
		c.logs = append(c.logs, 0)
	} else if dates[0].Before(ref) {
		return nil, qerr.Invalid("first pillar (%s) before reference date (%s)",
			dates[0].Format(utils.DateLayout), ref.Format(utils.DateLayout))
	}
	for i, d := range dates {
		if dfs[i] <= 0 {
			return nil, qerr.Invalid("non-positive discount factor (%g) at %s", dfs[i], d.Format(utils.DateLayout))
		}
		if n := len(c.dates); n > 0 && !d.After(c.dates[n-1]) {
			return nil, qerr.Invalid("pillar dates must be strictly increasing (%s)", d.Format(utils.DateLayout))
		}
		c.dates = append(c.dates, d)
		c.times = append(c.times, c.TimeFromReference(d))
		c.logs = append(c.logs, math.Log(dfs[i]))
	}
	return c, nil
}

// Discount log-linearly interpolates between the bracketing pillars.
func (c *InterpolatedDiscountCurve) Discount(t float64) float64 {
	return math.Exp(LogLinear(c.times, c.logs, t))
}

func (c *InterpolatedDiscountCurve) DiscountAt(d time.Time) float64 {
	return c.Discount(c.TimeFromReference(d))
}

func (c *InterpolatedDiscountCurve) ZeroRate(t float64) float64 {
	return ContinuousZero(c.Discount, t)
}

func (c *InterpolatedDiscountCurve) ForwardRate(t1, t2 float64) float64 {
	return ContinuousForward(c.Discount, t1, t2)
}

// Version is constant; the curve is immutable.
func (c *InterpolatedDiscountCurve) Version() uint64 { return 0 }

// Dates returns the pillar dates.
func (c *InterpolatedDiscountCurve) Dates() []time.Time {
	out := make([]time.Time, len(c.dates))
	copy(out, c.dates)
	return out
}

// LogLinear linearly interpolates ys (log discounts) at t, extrapolating
// with the boundary segment. A single pillar is a flat zero curve.
func LogLinear(times, ys []float64, t float64) float64 {
	if len(times) == 1 {
		if times[0] == 0 {
			return ys[0]
		}
		return ys[0] * t / times[0]
	}
	i := utils.BracketTimes(times, t)
	t1, t2 := times[i], times[i+1]
	return ys[i] + (ys[i+1]-ys[i])/(t2-t1)*(t-t1)
}
