package coupon

import (
	"time"

	"github.com/meenmo/quantcore/calendar"
	"github.com/meenmo/quantcore/index"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/valuation"
)

// FloatingTerms are the fixing and payoff terms of a floating coupon:
// rate = Gearing * fixing + Spread.
type FloatingTerms struct {
	FixingDays int
	Gearing    float64
	Spread     float64
	InArrears  bool
}

func (t FloatingTerms) validate() error {
	if t.Gearing == 0 {
		return qerr.Invalid("null gearing not allowed")
	}
	if t.FixingDays < 0 {
		return qerr.Invalid("negative fixing days (%d)", t.FixingDays)
	}
	return nil
}

type floatingBase struct {
	couponBase
	terms FloatingTerms
}

func newFloatingBase(p Period, t FloatingTerms) (floatingBase, error) {
	if err := p.validate(); err != nil {
		return floatingBase{}, err
	}
	if err := t.validate(); err != nil {
		return floatingBase{}, err
	}
	return floatingBase{couponBase: couponBase{period: p}, terms: t}, nil
}

func (f *floatingBase) Gearing() float64 { return f.terms.Gearing }

func (f *floatingBase) Spread() float64 { return f.terms.Spread }

func (f *floatingBase) IsInArrears() bool { return f.terms.InArrears }

func (f *floatingBase) FixingDays() int { return f.terms.FixingDays }

// fixingDate counts fixing days back from the accrual start, or from the
// accrual end for in-arrears fixings.
func (f *floatingBase) fixingDate(cal calendar.ID) time.Time {
	ref := f.period.Start
	if f.terms.InArrears {
		ref = f.period.End
	}
	return calendar.AddBusinessDays(cal, ref, -f.terms.FixingDays)
}

var errPricerNotSet = qerr.Incompatible("pricer not set")

// IborCoupon pays gearing * ibor fixing + spread.
type IborCoupon struct {
	floatingBase
	index  *index.IborIndex
	pricer *BlackIborPricer
}

// NewIborCoupon builds an Ibor coupon without a pricer.
func NewIborCoupon(p Period, idx *index.IborIndex, t FloatingTerms) (*IborCoupon, error) {
	if idx == nil {
		return nil, qerr.Invalid("no index given")
	}
	fb, err := newFloatingBase(p, t)
	if err != nil {
		return nil, err
	}
	return &IborCoupon{floatingBase: fb, index: idx}, nil
}

func (c *IborCoupon) Kind() Kind { return Ibor }

// Index is the fixing index.
func (c *IborCoupon) Index() *index.IborIndex { return c.index }

// FixingDate is the date the index is observed.
func (c *IborCoupon) FixingDate() time.Time { return c.fixingDate(c.index.Calendar) }

// IndexFixing is the past or forecast index fixing.
func (c *IborCoupon) IndexFixing(vc valuation.Context) (float64, error) {
	return c.index.Fixing(vc, c.FixingDate())
}

func (c *IborCoupon) iborCoupon() *IborCoupon { return c }

func (c *IborCoupon) swapletRate(vc valuation.Context) (float64, error) {
	if c.pricer == nil {
		return 0, errPricerNotSet
	}
	return c.pricer.swapletRate(vc, c)
}

func (c *IborCoupon) optionletInputs(vc valuation.Context, strike float64) (optionletInputs, error) {
	if c.pricer == nil {
		return optionletInputs{}, errPricerNotSet
	}
	return c.pricer.optionletInputs(vc, c, strike)
}

func (c *IborCoupon) Rate(vc valuation.Context) (float64, error) { return c.swapletRate(vc) }

func (c *IborCoupon) Amount(vc valuation.Context) (float64, error) { return amount(c, vc) }

func (c *IborCoupon) AccruedAmount(vc valuation.Context, d time.Time) (float64, error) {
	return accrued(c, &c.couponBase, vc, d)
}

// CmsCoupon pays gearing * swap rate + spread.
type CmsCoupon struct {
	floatingBase
	index  *index.SwapIndex
	pricer *CMSPricer
}

// NewCmsCoupon builds a CMS coupon without a pricer.
func NewCmsCoupon(p Period, idx *index.SwapIndex, t FloatingTerms) (*CmsCoupon, error) {
	if idx == nil {
		return nil, qerr.Invalid("no index given")
	}
	fb, err := newFloatingBase(p, t)
	if err != nil {
		return nil, err
	}
	return &CmsCoupon{floatingBase: fb, index: idx}, nil
}

func (c *CmsCoupon) Kind() Kind { return CMS }

// Index is the swap index.
func (c *CmsCoupon) Index() *index.SwapIndex { return c.index }

// FixingDate is the date the swap rate is observed.
func (c *CmsCoupon) FixingDate() time.Time { return c.fixingDate(c.index.Ibor.Calendar) }

// IndexFixing is the past fixing or the forward swap rate.
func (c *CmsCoupon) IndexFixing(vc valuation.Context) (float64, error) {
	return c.index.Fixing(vc, c.FixingDate())
}

func (c *CmsCoupon) cmsCoupon() *CmsCoupon { return c }

func (c *CmsCoupon) swapletRate(vc valuation.Context) (float64, error) {
	if c.pricer == nil {
		return 0, errPricerNotSet
	}
	adj, err := c.pricer.adjustedRate(vc, c.index, c.FixingDate())
	if err != nil {
		return 0, err
	}
	return c.terms.Gearing*adj + c.terms.Spread, nil
}

func (c *CmsCoupon) optionletInputs(vc valuation.Context, strike float64) (optionletInputs, error) {
	if c.pricer == nil {
		return optionletInputs{}, errPricerNotSet
	}
	return c.pricer.optionletInputs(vc, c.index, c.FixingDate(), strike)
}

func (c *CmsCoupon) Rate(vc valuation.Context) (float64, error) { return c.swapletRate(vc) }

func (c *CmsCoupon) Amount(vc valuation.Context) (float64, error) { return amount(c, vc) }

func (c *CmsCoupon) AccruedAmount(vc valuation.Context, d time.Time) (float64, error) {
	return accrued(c, &c.couponBase, vc, d)
}

// CmsSpreadCoupon pays gearing * (first swap rate - second swap rate) + spread.
type CmsSpreadCoupon struct {
	floatingBase
	first, second *index.SwapIndex
	pricer        *CMSSpreadPricer
}

// NewCmsSpreadCoupon builds a CMS spread coupon without a pricer.
func NewCmsSpreadCoupon(p Period, first, second *index.SwapIndex, t FloatingTerms) (*CmsSpreadCoupon, error) {
	if first == nil || second == nil {
		return nil, qerr.Invalid("cms spread coupon needs two swap indexes")
	}
	if first.Ibor.Calendar != second.Ibor.Calendar {
		return nil, qerr.Invalid("swap indexes %s and %s fix on different calendars", first.Name, second.Name)
	}
	fb, err := newFloatingBase(p, t)
	if err != nil {
		return nil, err
	}
	return &CmsSpreadCoupon{floatingBase: fb, first: first, second: second}, nil
}

func (c *CmsSpreadCoupon) Kind() Kind { return CMSSpread }

// Indexes returns both swap indexes.
func (c *CmsSpreadCoupon) Indexes() (*index.SwapIndex, *index.SwapIndex) { return c.first, c.second }

// FixingDate is the date both swap rates are observed.
func (c *CmsSpreadCoupon) FixingDate() time.Time { return c.fixingDate(c.first.Ibor.Calendar) }

func (c *CmsSpreadCoupon) Rate(vc valuation.Context) (float64, error) {
	if c.pricer == nil {
		return 0, errPricerNotSet
	}
	return c.pricer.swapletRate(vc, c)
}

func (c *CmsSpreadCoupon) Amount(vc valuation.Context) (float64, error) { return amount(c, vc) }

func (c *CmsSpreadCoupon) AccruedAmount(vc valuation.Context, d time.Time) (float64, error) {
	return accrued(c, &c.couponBase, vc, d)
}
