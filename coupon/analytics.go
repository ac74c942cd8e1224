package coupon

import (
	"fmt"
	"time"

	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

const basisPoint = 1.0e-4

// NPV discounts the amounts of all cash flows still to be paid.
func NPV(leg Leg, discount termstructure.YieldCurve, vc valuation.Context) (float64, error) {
	if discount == nil {
		return 0, qerr.Invalid("no discount curve given")
	}
	var npv float64
	for i, cf := range leg {
		if cf.HasOccurred(vc) {
			continue
		}
		a, err := cf.Amount(vc)
		if err != nil {
			return 0, fmt.Errorf("cash flow %d (%s): %w", i+1, cf.Date().Format(utils.DateLayout), err)
		}
		npv += a * discount.DiscountAt(cf.Date())
	}
	return npv, nil
}

// BPS is the value change of the leg for a one basis point rate shift on
// every remaining coupon.
func BPS(leg Leg, discount termstructure.YieldCurve, vc valuation.Context) (float64, error) {
	if discount == nil {
		return 0, qerr.Invalid("no discount curve given")
	}
	var bps float64
	for _, cf := range leg {
		c, ok := cf.(Coupon)
		if !ok || cf.HasOccurred(vc) {
			continue
		}
		bps += c.Nominal() * c.AccrualPeriod() * discount.DiscountAt(c.Date())
	}
	return bps * basisPoint, nil
}

// AccruedAmount sums the interest accrued at d on coupons not yet paid.
func AccruedAmount(leg Leg, vc valuation.Context, d time.Time) (float64, error) {
	var total float64
	for _, cf := range leg {
		c, ok := cf.(Coupon)
		if !ok {
			continue
		}
		a, err := c.AccruedAmount(vc, d)
		if err != nil {
			return 0, err
		}
		total += a
	}
	return total, nil
}

// Flow is one row of a leg's cash flow table.
type Flow struct {
	PayDate      time.Time `json:"pay_date"`
	StartDate    time.Time `json:"start_date,omitempty"`
	EndDate      time.Time `json:"end_date,omitempty"`
	Nominal      float64   `json:"nominal,omitempty"`
	Rate         float64   `json:"rate,omitempty"`
	Amount       float64   `json:"amount"`
	Discount     float64   `json:"discount"`
	PresentValue float64   `json:"present_value"`
}

// Flows tabulates the remaining cash flows.
func Flows(leg Leg, discount termstructure.YieldCurve, vc valuation.Context) ([]Flow, error) {
	if discount == nil {
		return nil, qerr.Invalid("no discount curve given")
	}
	out := make([]Flow, 0, len(leg))
	for _, cf := range leg {
		if cf.HasOccurred(vc) {
			continue
		}
		a, err := cf.Amount(vc)
		if err != nil {
			return nil, err
		}
		f := Flow{PayDate: cf.Date(), Amount: a, Discount: discount.DiscountAt(cf.Date())}
		f.PresentValue = f.Amount * f.Discount
		if c, ok := cf.(Coupon); ok {
			f.StartDate, f.EndDate, f.Nominal = c.AccrualStartDate(), c.AccrualEndDate(), c.Nominal()
			if f.Rate, err = c.Rate(vc); err != nil {
				return nil, err
			}
		}
		out = append(out, f)
	}
	return out, nil
}
