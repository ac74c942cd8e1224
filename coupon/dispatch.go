package coupon

import (
	"github.com/meenmo/quantcore/qerr"
)

type iborBased interface{ iborCoupon() *IborCoupon }

type cmsBased interface{ cmsCoupon() *CmsCoupon }

func incompatible(k Kind) error {
	return qerr.Incompatible("pricer not compatible with %s coupon", k)
}

// SetPricer attaches p to every coupon of leg. Fixed coupons and plain cash
// flows ignore it; any other coupon must accept p's kind.
func SetPricer(leg Leg, p Pricer) error {
	if p == nil {
		return qerr.Invalid("no pricer given")
	}
	for _, cf := range leg {
		c, ok := cf.(Coupon)
		if !ok {
			continue
		}
		if err := setPricer(c, p); err != nil {
			return err
		}
	}
	return nil
}

func setPricer(c Coupon, p Pricer) error {
	k := c.Kind()
	switch k {
	case Fixed:
		return nil
	case Ibor, CappedFlooredIbor, DigitalIbor:
		bp, ok := p.(*BlackIborPricer)
		u, isIbor := c.(iborBased)
		if !ok || !isIbor {
			return incompatible(k)
		}
		u.iborCoupon().pricer = bp
	case CMS, CappedFlooredCMS, DigitalCMS:
		cp, ok := p.(*CMSPricer)
		u, isCms := c.(cmsBased)
		if !ok || !isCms {
			return incompatible(k)
		}
		u.cmsCoupon().pricer = cp
	case CMSSpread:
		sp, ok := p.(*CMSSpreadPricer)
		u, isSpread := c.(*CmsSpreadCoupon)
		if !ok || !isSpread {
			return incompatible(k)
		}
		u.pricer = sp
	case RangeAccrual:
		rp, ok := p.(*RangeAccrualPricer)
		u, isRange := c.(*RangeAccrualCoupon)
		if !ok || !isRange {
			return incompatible(k)
		}
		u.pricer = rp
	case SubPeriods:
		sp, ok := p.(*SubPeriodsPricer)
		u, isSub := c.(*SubPeriodsCoupon)
		if !ok || !isSub {
			return incompatible(k)
		}
		u.pricer = sp
	default:
		return incompatible(k)
	}
	return nil
}
