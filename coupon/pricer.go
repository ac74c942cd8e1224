package coupon

import (
	"math"
	"time"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/meenmo/quantcore/index"
	"github.com/meenmo/quantcore/payoff"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

// PricerKind tags the pricer family.
type PricerKind int

const (
	PricerBlackIbor PricerKind = iota
	PricerCMS
	PricerCMSSpread
	PricerRangeAccrual
	PricerAveragingSubPeriods
	PricerCompoundingSubPeriods
)

func (k PricerKind) String() string {
	switch k {
	case PricerBlackIbor:
		return "black ibor"
	case PricerCMS:
		return "cms"
	case PricerCMSSpread:
		return "cms spread"
	case PricerRangeAccrual:
		return "range accrual"
	case PricerAveragingSubPeriods:
		return "averaging sub-periods"
	case PricerCompoundingSubPeriods:
		return "compounding sub-periods"
	default:
		return "unknown"
	}
}

// Pricer computes floating coupon rates. Attach with SetPricer.
type Pricer interface {
	Kind() PricerKind
}

// variance reads a Black variance, failing on a missing surface or an
// invalid quote behind it.
func variance(vol termstructure.BlackVolCurve, what string, fixingDate time.Time, strike float64) (float64, error) {
	if vol == nil {
		return 0, qerr.Invalid("missing %s volatility", what)
	}
	v := vol.BlackVariance(vol.TimeFromReference(fixingDate), strike)
	if math.IsNaN(v) {
		return 0, qerr.Stale("invalid %s volatility at %s", what, fixingDate.Format(utils.DateLayout))
	}
	return v, nil
}

// BlackIborPricer prices Ibor coupons and their optionlets under Black.
// Vol is only needed for optionlets and in-arrears fixings.
type BlackIborPricer struct {
	Vol termstructure.BlackVolCurve
}

func (p *BlackIborPricer) Kind() PricerKind { return PricerBlackIbor }

func (p *BlackIborPricer) swapletRate(vc valuation.Context, c *IborCoupon) (float64, error) {
	f, err := p.adjustedFixing(vc, c)
	if err != nil {
		return 0, err
	}
	return c.terms.Gearing*f + c.terms.Spread, nil
}

// adjustedFixing adds the in-arrears convexity adjustment
// F^2 * var * tau / (1 + F * tau) to future in-arrears fixings.
func (p *BlackIborPricer) adjustedFixing(vc valuation.Context, c *IborCoupon) (float64, error) {
	f, err := c.IndexFixing(vc)
	if err != nil {
		return 0, err
	}
	fixingDate := c.FixingDate()
	if !c.terms.InArrears || !fixingDate.After(vc.EvaluationDate) {
		return f, nil
	}
	v, err := variance(p.Vol, "optionlet", fixingDate, f)
	if err != nil {
		return 0, err
	}
	start := c.index.ValueDate(fixingDate)
	tau := utils.YearFraction(start, c.index.MaturityDate(start), c.index.DayCount)
	return f + f*f*v*tau/(1+f*tau), nil
}

func (p *BlackIborPricer) optionletInputs(vc valuation.Context, c *IborCoupon, strike float64) (optionletInputs, error) {
	fixingDate := c.FixingDate()
	if !fixingDate.After(vc.EvaluationDate) {
		f, err := c.IndexFixing(vc)
		return optionletInputs{forward: f, fixed: true}, err
	}
	f, err := p.adjustedFixing(vc, c)
	if err != nil {
		return optionletInputs{}, err
	}
	v, err := variance(p.Vol, "optionlet", fixingDate, strike)
	if err != nil {
		return optionletInputs{}, err
	}
	return optionletInputs{forward: f, stdDev: math.Sqrt(v)}, nil
}

// CMSPricer adjusts forward swap rates for convexity with Hull's
// bond-price approximation:
//
//	adj = -1/2 * S^2 * sigma^2 * T * G''(S) / G'(S)
//
// where G is the price of the underlying swap's fixed leg, paying S,
// as a function of its yield.
type CMSPricer struct {
	Vol termstructure.BlackVolCurve
}

func (p *CMSPricer) Kind() PricerKind { return PricerCMS }

func (p *CMSPricer) adjustedRate(vc valuation.Context, idx *index.SwapIndex, fixingDate time.Time) (float64, error) {
	s, err := idx.Fixing(vc, fixingDate)
	if err != nil {
		return 0, err
	}
	if !fixingDate.After(vc.EvaluationDate) {
		return s, nil
	}
	v, err := variance(p.Vol, "swaption", fixingDate, s)
	if err != nil {
		return 0, err
	}
	adj, err := hullConvexity(idx, fixingDate, s, v)
	if err != nil {
		return 0, err
	}
	return s + adj, nil
}

// hullConvexity takes the total Black variance sigma^2 * T.
func hullConvexity(idx *index.SwapIndex, fixingDate time.Time, s, totalVar float64) (float64, error) {
	fixed, err := idx.FixedSchedule(fixingDate)
	if err != nil {
		return 0, err
	}
	n := fixed.Len() - 1
	q := 1 / idx.FixedTenor.Years()
	if m := idx.FixedTenor.Months(); m > 0 {
		q = 12 / float64(m)
	}
	g := func(y float64) float64 {
		v := 1 / (1 + y/q)
		price, df := 0.0, 1.0
		for i := 0; i < n; i++ {
			df *= v
			price += s / q * df
		}
		return price + df
	}
	d1 := fd.Derivative(g, s, &fd.Settings{Formula: fd.Central})
	d2 := fd.Derivative(g, s, &fd.Settings{Formula: fd.Central2nd})
	if d1 == 0 || math.IsNaN(d1) {
		return 0, qerr.Numerical("null bond price derivative at swap rate %g", s)
	}
	return -0.5 * s * s * totalVar * d2 / d1, nil
}

func (p *CMSPricer) optionletInputs(vc valuation.Context, idx *index.SwapIndex, fixingDate time.Time, strike float64) (optionletInputs, error) {
	if !fixingDate.After(vc.EvaluationDate) {
		s, err := idx.Fixing(vc, fixingDate)
		return optionletInputs{forward: s, fixed: true}, err
	}
	s, err := p.adjustedRate(vc, idx, fixingDate)
	if err != nil {
		return optionletInputs{}, err
	}
	v, err := variance(p.Vol, "swaption", fixingDate, strike)
	if err != nil {
		return optionletInputs{}, err
	}
	return optionletInputs{forward: s, stdDev: math.Sqrt(v)}, nil
}

// CMSSpreadPricer prices the spread of two convexity-adjusted swap rates.
// Correlation enters spread options only.
type CMSSpreadPricer struct {
	CMS         *CMSPricer
	Correlation float64
}

// NewCMSSpreadPricer checks the correlation bounds.
func NewCMSSpreadPricer(cms *CMSPricer, correlation float64) (*CMSSpreadPricer, error) {
	if cms == nil {
		return nil, qerr.Invalid("no cms pricer given")
	}
	if !(correlation >= -1 && correlation <= 1) {
		return nil, qerr.Invalid("correlation (%g) out of [-1, 1]", correlation)
	}
	return &CMSSpreadPricer{CMS: cms, Correlation: correlation}, nil
}

func (p *CMSSpreadPricer) Kind() PricerKind { return PricerCMSSpread }

func (p *CMSSpreadPricer) rates(vc valuation.Context, c *CmsSpreadCoupon) (float64, float64, error) {
	if p.CMS == nil {
		return 0, 0, qerr.Invalid("no cms pricer given")
	}
	fixingDate := c.FixingDate()
	r1, err := p.CMS.adjustedRate(vc, c.first, fixingDate)
	if err != nil {
		return 0, 0, err
	}
	r2, err := p.CMS.adjustedRate(vc, c.second, fixingDate)
	if err != nil {
		return 0, 0, err
	}
	return r1, r2, nil
}

func (p *CMSSpreadPricer) swapletRate(vc valuation.Context, c *CmsSpreadCoupon) (float64, error) {
	r1, r2, err := p.rates(vc, c)
	if err != nil {
		return 0, err
	}
	return c.terms.Gearing*(r1-r2) + c.terms.Spread, nil
}

// SpreadOptionRate is the undiscounted value of an option on the rate
// spread, using a normal spread with volatility
// sqrt((s1 r1)^2 + (s2 r2)^2 - 2 rho s1 s2 r1 r2).
func (p *CMSSpreadPricer) SpreadOptionRate(vc valuation.Context, c *CmsSpreadCoupon, typ payoff.OptionType, strike float64) (float64, error) {
	r1, r2, err := p.rates(vc, c)
	if err != nil {
		return 0, err
	}
	w := float64(typ)
	fwd := r1 - r2
	fixingDate := c.FixingDate()
	if !fixingDate.After(vc.EvaluationDate) {
		return math.Max(w*(fwd-strike), 0), nil
	}
	v1, err := variance(p.CMS.Vol, "swaption", fixingDate, r1)
	if err != nil {
		return 0, err
	}
	v2, err := variance(p.CMS.Vol, "swaption", fixingDate, r2)
	if err != nil {
		return 0, err
	}
	a, b := r1*math.Sqrt(v1), r2*math.Sqrt(v2)
	std := math.Sqrt(math.Max(a*a+b*b-2*p.Correlation*a*b, 0))
	if std == 0 {
		return math.Max(w*(fwd-strike), 0), nil
	}
	d := (fwd - strike) / std
	return w*(fwd-strike)*distuv.UnitNormal.CDF(w*d) + std*distuv.UnitNormal.Prob(d), nil
}

// RangeAccrualPricer values each observation as a pair of Black digitals
// on the forecast fixing.
type RangeAccrualPricer struct {
	Vol termstructure.BlackVolCurve
}

func (p *RangeAccrualPricer) Kind() PricerKind { return PricerRangeAccrual }

// InRangeFraction is the expected fraction of observations with the index
// inside the range.
func (p *RangeAccrualPricer) InRangeFraction(vc valuation.Context, c *RangeAccrualCoupon) (float64, error) {
	var sum float64
	for _, d := range c.observations {
		if !d.After(vc.EvaluationDate) {
			f, err := c.index.Fixing(vc, d)
			if err != nil {
				return 0, err
			}
			if f >= c.lower && f <= c.upper {
				sum++
			}
			continue
		}
		f, err := c.index.ForecastFixing(d)
		if err != nil {
			return 0, err
		}
		above := func(k float64) (float64, error) {
			v, err := variance(p.Vol, "optionlet", d, k)
			if err != nil {
				return 0, err
			}
			in := optionletInputs{forward: f, stdDev: math.Sqrt(v)}
			return optionletRate(in, payoff.Striked{Kind: payoff.CashOrNothing, Type: payoff.Call, Strike: k, CashPayoff: 1})
		}
		lo, err := above(c.lower)
		if err != nil {
			return 0, err
		}
		hi, err := above(c.upper)
		if err != nil {
			return 0, err
		}
		sum += lo - hi
	}
	return sum / float64(len(c.observations)), nil
}

func (p *RangeAccrualPricer) swapletRate(vc valuation.Context, c *RangeAccrualCoupon) (float64, error) {
	l, err := c.index.Fixing(vc, c.FixingDate())
	if err != nil {
		return 0, err
	}
	frac, err := p.InRangeFraction(vc, c)
	if err != nil {
		return 0, err
	}
	return c.terms.Gearing*l*frac + c.terms.Spread, nil
}

// SubPeriodsPricer averages or compounds the sub-period fixings of a
// SubPeriodsCoupon.
type SubPeriodsPricer struct {
	compounding bool
}

// NewAveragingPricer returns sum(f_i tau_i) / tau.
func NewAveragingPricer() *SubPeriodsPricer { return &SubPeriodsPricer{} }

// NewCompoundingPricer returns (prod(1 + f_i tau_i) - 1) / tau.
func NewCompoundingPricer() *SubPeriodsPricer { return &SubPeriodsPricer{compounding: true} }

func (p *SubPeriodsPricer) Kind() PricerKind {
	if p.compounding {
		return PricerCompoundingSubPeriods
	}
	return PricerAveragingSubPeriods
}

func (p *SubPeriodsPricer) swapletRate(vc valuation.Context, c *SubPeriodsCoupon) (float64, error) {
	accrual := c.AccrualPeriod()
	if accrual == 0 {
		return 0, qerr.Numerical("null accrual period")
	}
	dts := c.SubPeriodFractions()
	var rate float64
	if p.compounding {
		rate = 1
	}
	for i, d := range c.FixingDates() {
		f, err := c.index.Fixing(vc, d)
		if err != nil {
			return 0, err
		}
		f += c.rateSpread
		if p.compounding {
			rate *= 1 + f*dts[i]
		} else {
			rate += f * dts[i]
		}
	}
	if p.compounding {
		rate--
	}
	return c.terms.Gearing*rate/accrual + c.terms.Spread, nil
}
