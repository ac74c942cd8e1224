package swap

import (
	"fmt"

	"github.com/meenmo/quantcore/coupon"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/valuation"
)

const basisPoint = 1.0e-4

// PVByLeg discounts both legs. TotalPV is floating minus fixed for a payer
// and the reverse for a receiver.
func (s *VanillaSwap) PVByLeg(discount termstructure.YieldCurve, vc valuation.Context) (PV, error) {
	fixed, err := coupon.NPV(s.fixed, discount, vc)
	if err != nil {
		return PV{}, fmt.Errorf("fixed leg: %w", err)
	}
	floating, err := coupon.NPV(s.floating, discount, vc)
	if err != nil {
		return PV{}, fmt.Errorf("floating leg: %w", err)
	}
	return PV{
		FixedLegPV:    fixed,
		FloatingLegPV: floating,
		TotalPV:       float64(s.Type) * (floating - fixed),
	}, nil
}

// NPV is the holder's present value.
func (s *VanillaSwap) NPV(discount termstructure.YieldCurve, vc valuation.Context) (float64, error) {
	pv, err := s.PVByLeg(discount, vc)
	if err != nil {
		return 0, err
	}
	return pv.TotalPV, nil
}

// FixedLegBPS is the unsigned value of one basis point on the fixed rate.
func (s *VanillaSwap) FixedLegBPS(discount termstructure.YieldCurve, vc valuation.Context) (float64, error) {
	return coupon.BPS(s.fixed, discount, vc)
}

// FloatingLegBPS is the unsigned value of one basis point of spread.
func (s *VanillaSwap) FloatingLegBPS(discount termstructure.YieldCurve, vc valuation.Context) (float64, error) {
	return coupon.BPS(s.floating, discount, vc)
}

// FairRate is the fixed rate that sets the NPV to zero.
func (s *VanillaSwap) FairRate(discount termstructure.YieldCurve, vc valuation.Context) (float64, error) {
	pv, err := s.PVByLeg(discount, vc)
	if err != nil {
		return 0, err
	}
	bps, err := s.FixedLegBPS(discount, vc)
	if err != nil {
		return 0, err
	}
	if bps == 0 {
		return 0, qerr.Numerical("null fixed leg BPS")
	}
	return s.FixedRate + (pv.FloatingLegPV-pv.FixedLegPV)/(bps/basisPoint), nil
}

// FairSpread is the floating spread that sets the NPV to zero.
func (s *VanillaSwap) FairSpread(discount termstructure.YieldCurve, vc valuation.Context) (float64, error) {
	pv, err := s.PVByLeg(discount, vc)
	if err != nil {
		return 0, err
	}
	bps, err := s.FloatingLegBPS(discount, vc)
	if err != nil {
		return 0, err
	}
	if bps == 0 {
		return 0, qerr.Numerical("null floating leg BPS")
	}
	return s.Spread - (pv.FloatingLegPV-pv.FixedLegPV)/(bps/basisPoint), nil
}

// Cashflows tabulates the remaining flows of both legs.
func (s *VanillaSwap) Cashflows(discount termstructure.YieldCurve, vc valuation.Context) (fixed, floating []coupon.Flow, err error) {
	if fixed, err = coupon.Flows(s.fixed, discount, vc); err != nil {
		return nil, nil, fmt.Errorf("fixed leg: %w", err)
	}
	if floating, err = coupon.Flows(s.floating, discount, vc); err != nil {
		return nil, nil, fmt.Errorf("floating leg: %w", err)
	}
	return fixed, floating, nil
}
