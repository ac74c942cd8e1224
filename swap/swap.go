// Package swap prices vanilla fixed-for-floating interest rate swaps whose
// legs are built from coupon schedules.
package swap

import (
	"fmt"
	"time"

	"github.com/meenmo/quantcore/calendar"
	"github.com/meenmo/quantcore/coupon"
	"github.com/meenmo/quantcore/index"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/schedule"
	"github.com/meenmo/quantcore/utils"
)

// VanillaSwapParams defines a fixed-for-Ibor swap.
//
// FloatDayCount defaults to the index day count. PaymentConvention applies
// to both legs.
type VanillaSwapParams struct {
	Type    Type
	Nominal float64

	FixedSchedule *schedule.Schedule
	FixedRate     float64
	FixedDayCount utils.DayCount

	FloatSchedule *schedule.Schedule
	Index         *index.IborIndex
	Spread        float64
	FloatDayCount utils.DayCount

	PaymentConvention calendar.Convention
}

// VanillaSwap is a built swap. Legs are fixed at construction; curves are
// supplied at valuation.
type VanillaSwap struct {
	VanillaSwapParams
	fixed    coupon.Leg
	floating coupon.Leg
}

// NewVanillaSwap builds both legs.
func NewVanillaSwap(p VanillaSwapParams) (*VanillaSwap, error) {
	if err := p.Type.validate(); err != nil {
		return nil, err
	}
	if p.Nominal == 0 {
		return nil, qerr.Invalid("nominal is required")
	}
	if p.FixedSchedule == nil || p.FloatSchedule == nil {
		return nil, qerr.Invalid("fixed and floating schedules are required")
	}
	if p.Index == nil {
		return nil, qerr.Invalid("no index given")
	}

	fixed, err := coupon.FixedLeg{
		LegTerms: coupon.LegTerms{
			Schedule:          p.FixedSchedule,
			Nominals:          []float64{p.Nominal},
			DayCount:          p.FixedDayCount,
			PaymentConvention: p.PaymentConvention,
		},
		Rates: []float64{p.FixedRate},
	}.Build()
	if err != nil {
		return nil, fmt.Errorf("fixed leg: %w", err)
	}
	floating, err := coupon.IborLeg{
		LegTerms: coupon.LegTerms{
			Schedule:          p.FloatSchedule,
			Nominals:          []float64{p.Nominal},
			DayCount:          p.FloatDayCount,
			PaymentConvention: p.PaymentConvention,
		},
		FloatingLegTerms: coupon.FloatingLegTerms{Spreads: []float64{p.Spread}},
		Index:            p.Index,
	}.Build()
	if err != nil {
		return nil, fmt.Errorf("floating leg: %w", err)
	}
	return &VanillaSwap{VanillaSwapParams: p, fixed: fixed, floating: floating}, nil
}

// FixedLeg returns the fixed coupons.
func (s *VanillaSwap) FixedLeg() coupon.Leg { return s.fixed }

// FloatingLeg returns the Ibor coupons.
func (s *VanillaSwap) FloatingLeg() coupon.Leg { return s.floating }

// MaturityDate is the last payment date of either leg.
func (s *VanillaSwap) MaturityDate() time.Time {
	d := s.fixed[len(s.fixed)-1].Date()
	if f := s.floating[len(s.floating)-1].Date(); f.After(d) {
		return f
	}
	return d
}

// LatestRelevantDate extends MaturityDate to the end of the last index
// forecast period, the last date a curve must cover to price the swap.
func (s *VanillaSwap) LatestRelevantDate() time.Time {
	latest := s.MaturityDate()
	for _, cf := range s.floating {
		c, ok := cf.(*coupon.IborCoupon)
		if !ok {
			continue
		}
		if end := s.Index.MaturityDate(s.Index.ValueDate(c.FixingDate())); end.After(latest) {
			latest = end
		}
	}
	return latest
}
