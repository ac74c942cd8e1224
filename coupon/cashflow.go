// Package coupon builds coupon legs and prices them. Floating coupons get
// their rate from a pricer attached with SetPricer; the pricer must match
// the coupon kind.
package coupon

import (
	"time"

	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

// CashFlow is a single payment.
type CashFlow interface {
	Date() time.Time
	Amount(vc valuation.Context) (float64, error)
	HasOccurred(vc valuation.Context) bool
}

// Coupon is a cash flow accruing a rate over a period.
type Coupon interface {
	CashFlow
	Kind() Kind
	Nominal() float64
	AccrualStartDate() time.Time
	AccrualEndDate() time.Time
	AccrualPeriod() float64
	DayCount() utils.DayCount
	Rate(vc valuation.Context) (float64, error)
	AccruedAmount(vc valuation.Context, d time.Time) (float64, error)
}

// Leg is an ordered sequence of cash flows.
type Leg []CashFlow

// Kind tags the concrete coupon type.
type Kind int

const (
	Fixed Kind = iota
	Ibor
	CMS
	CMSSpread
	CappedFlooredIbor
	CappedFlooredCMS
	DigitalIbor
	DigitalCMS
	RangeAccrual
	SubPeriods
)

func (k Kind) String() string {
	switch k {
	case Fixed:
		return "fixed rate"
	case Ibor:
		return "ibor"
	case CMS:
		return "cms"
	case CMSSpread:
		return "cms spread"
	case CappedFlooredIbor:
		return "capped/floored ibor"
	case CappedFlooredCMS:
		return "capped/floored cms"
	case DigitalIbor:
		return "digital ibor"
	case DigitalCMS:
		return "digital cms"
	case RangeAccrual:
		return "range accrual"
	case SubPeriods:
		return "sub-periods"
	default:
		return "unknown"
	}
}

// Period carries the dates and nominal shared by every coupon.
type Period struct {
	Payment  time.Time
	Nominal  float64
	Start    time.Time
	End      time.Time
	DayCount utils.DayCount
}

func (p Period) validate() error {
	if !p.End.After(p.Start) {
		return qerr.Invalid("accrual end (%s) must be after accrual start (%s)",
			p.End.Format(utils.DateLayout), p.Start.Format(utils.DateLayout))
	}
	if p.Payment.IsZero() {
		return qerr.Invalid("payment date not set")
	}
	return nil
}

type couponBase struct {
	period Period
}

func (c *couponBase) Date() time.Time { return c.period.Payment }

func (c *couponBase) Nominal() float64 { return c.period.Nominal }

func (c *couponBase) AccrualStartDate() time.Time { return c.period.Start }

func (c *couponBase) AccrualEndDate() time.Time { return c.period.End }

func (c *couponBase) DayCount() utils.DayCount { return c.period.DayCount }

func (c *couponBase) AccrualPeriod() float64 {
	return utils.YearFraction(c.period.Start, c.period.End, c.period.DayCount)
}

func (c *couponBase) HasOccurred(vc valuation.Context) bool {
	return vc.HasOccurred(c.period.Payment)
}

// accruedPeriod is the accrued fraction at d, zero outside the accrual window.
func (c *couponBase) accruedPeriod(d time.Time) float64 {
	p := c.period
	if !d.After(p.Start) || d.After(p.Payment) {
		return 0
	}
	end := d
	if end.After(p.End) {
		end = p.End
	}
	return utils.YearFraction(p.Start, end, p.DayCount)
}

func amount(c Coupon, vc valuation.Context) (float64, error) {
	r, err := c.Rate(vc)
	if err != nil {
		return 0, err
	}
	return r * c.Nominal() * c.AccrualPeriod(), nil
}

func accrued(c Coupon, b *couponBase, vc valuation.Context, d time.Time) (float64, error) {
	tau := b.accruedPeriod(d)
	if tau == 0 {
		return 0, nil
	}
	r, err := c.Rate(vc)
	if err != nil {
		return 0, err
	}
	return r * c.Nominal() * tau, nil
}

// SimpleCashFlow pays a fixed amount, e.g. a notional exchange.
type SimpleCashFlow struct {
	Payment time.Time
	Value   float64
}

func (s SimpleCashFlow) Date() time.Time { return s.Payment }

func (s SimpleCashFlow) Amount(valuation.Context) (float64, error) { return s.Value, nil }

func (s SimpleCashFlow) HasOccurred(vc valuation.Context) bool { return vc.HasOccurred(s.Payment) }

// FixedRateCoupon accrues a constant simple rate.
type FixedRateCoupon struct {
	couponBase
	rate float64
}

// NewFixedRateCoupon builds a fixed coupon.
func NewFixedRateCoupon(p Period, rate float64) (*FixedRateCoupon, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &FixedRateCoupon{couponBase: couponBase{period: p}, rate: rate}, nil
}

func (c *FixedRateCoupon) Kind() Kind { return Fixed }

func (c *FixedRateCoupon) Rate(valuation.Context) (float64, error) { return c.rate, nil }

func (c *FixedRateCoupon) Amount(vc valuation.Context) (float64, error) { return amount(c, vc) }

func (c *FixedRateCoupon) AccruedAmount(vc valuation.Context, d time.Time) (float64, error) {
	return accrued(c, &c.couponBase, vc, d)
}
