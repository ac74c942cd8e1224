package coupon

import (
	"time"

	"github.com/meenmo/quantcore/black"
	"github.com/meenmo/quantcore/payoff"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/valuation"
)

// optionletInputs are the lognormal terms of an option on an index rate.
// A fixed rate is already known and pays its intrinsic value.
type optionletInputs struct {
	forward float64
	stdDev  float64
	fixed   bool
}

// optionable is a floating coupon whose index rate can carry embedded options.
type optionable interface {
	Gearing() float64
	Spread() float64
	swapletRate(vc valuation.Context) (float64, error)
	optionletInputs(vc valuation.Context, strike float64) (optionletInputs, error)
}

// optionletRate is the undiscounted value of p on the index rate.
func optionletRate(in optionletInputs, p payoff.Striked) (float64, error) {
	if in.fixed {
		return p.Value(in.forward), nil
	}
	if p.Strike <= 0 {
		// A lognormal rate always finishes above a non-positive strike.
		if p.Type == payoff.Put {
			return 0, nil
		}
		switch p.Kind {
		case payoff.CashOrNothing:
			return p.CashPayoff, nil
		case payoff.AssetOrNothing:
			return in.forward, nil
		default:
			return in.forward - p.Strike, nil
		}
	}
	c, err := black.New(p, in.forward, in.stdDev, 1)
	if err != nil {
		return 0, err
	}
	return c.Value(), nil
}

// capFloor bounds the coupon rate. For a negative gearing a bound on the
// coupon is the opposite bound on the index, so cap and floor swap.
type capFloor struct {
	cap, floor *float64
}

func newCapFloor(gearing float64, cap, floor *float64) (capFloor, error) {
	if cap == nil && floor == nil {
		return capFloor{}, qerr.Invalid("neither cap nor floor given")
	}
	if cap != nil && floor != nil && *cap < *floor {
		return capFloor{}, qerr.Invalid("cap level (%g) less than floor level (%g)", *cap, *floor)
	}
	if gearing < 0 {
		cap, floor = floor, cap
	}
	return capFloor{cap: cap, floor: floor}, nil
}

// rate is swaplet + floorlet - caplet, with optionlets struck on the index
// at (bound - spread) / gearing.
func (b capFloor) rate(vc valuation.Context, u optionable) (float64, error) {
	swaplet, err := u.swapletRate(vc)
	if err != nil {
		return 0, err
	}
	g, s := u.Gearing(), u.Spread()
	optionlet := func(typ payoff.OptionType, bound float64) (float64, error) {
		k := (bound - s) / g
		in, err := u.optionletInputs(vc, k)
		if err != nil {
			return 0, err
		}
		v, err := optionletRate(in, payoff.Striked{Kind: payoff.PlainVanilla, Type: typ, Strike: k})
		if err != nil {
			return 0, err
		}
		return g * v, nil
	}
	var floorlet, caplet float64
	if b.floor != nil {
		if floorlet, err = optionlet(payoff.Put, *b.floor); err != nil {
			return 0, err
		}
	}
	if b.cap != nil {
		if caplet, err = optionlet(payoff.Call, *b.cap); err != nil {
			return 0, err
		}
	}
	return swaplet + floorlet - caplet, nil
}

// CappedFlooredIborCoupon is an Ibor coupon whose rate is bounded.
type CappedFlooredIborCoupon struct {
	*IborCoupon
	bounds capFloor
}

// NewCappedFlooredIborCoupon bounds underlying; either bound may be nil.
func NewCappedFlooredIborCoupon(underlying *IborCoupon, cap, floor *float64) (*CappedFlooredIborCoupon, error) {
	if underlying == nil {
		return nil, qerr.Invalid("no underlying coupon given")
	}
	b, err := newCapFloor(underlying.Gearing(), cap, floor)
	if err != nil {
		return nil, err
	}
	return &CappedFlooredIborCoupon{IborCoupon: underlying, bounds: b}, nil
}

func (c *CappedFlooredIborCoupon) Kind() Kind { return CappedFlooredIbor }

func (c *CappedFlooredIborCoupon) Rate(vc valuation.Context) (float64, error) {
	return c.bounds.rate(vc, c.IborCoupon)
}

func (c *CappedFlooredIborCoupon) Amount(vc valuation.Context) (float64, error) { return amount(c, vc) }

func (c *CappedFlooredIborCoupon) AccruedAmount(vc valuation.Context, d time.Time) (float64, error) {
	return accrued(c, &c.couponBase, vc, d)
}

// CappedFlooredCmsCoupon is a CMS coupon whose rate is bounded.
type CappedFlooredCmsCoupon struct {
	*CmsCoupon
	bounds capFloor
}

// NewCappedFlooredCmsCoupon bounds underlying; either bound may be nil.
func NewCappedFlooredCmsCoupon(underlying *CmsCoupon, cap, floor *float64) (*CappedFlooredCmsCoupon, error) {
	if underlying == nil {
		return nil, qerr.Invalid("no underlying coupon given")
	}
	b, err := newCapFloor(underlying.Gearing(), cap, floor)
	if err != nil {
		return nil, err
	}
	return &CappedFlooredCmsCoupon{CmsCoupon: underlying, bounds: b}, nil
}

func (c *CappedFlooredCmsCoupon) Kind() Kind { return CappedFlooredCMS }

func (c *CappedFlooredCmsCoupon) Rate(vc valuation.Context) (float64, error) {
	return c.bounds.rate(vc, c.CmsCoupon)
}

func (c *CappedFlooredCmsCoupon) Amount(vc valuation.Context) (float64, error) { return amount(c, vc) }

func (c *CappedFlooredCmsCoupon) AccruedAmount(vc valuation.Context, d time.Time) (float64, error) {
	return accrued(c, &c.couponBase, vc, d)
}

// DigitalTerms describe the digital options embedded in a coupon. Strikes
// and payouts apply to the index rate. A nil strike leaves that side out;
// a nil CashRate pays the index rate itself (asset-or-nothing).
type DigitalTerms struct {
	CallStrike *float64
	PutStrike  *float64
	LongCall   bool
	LongPut    bool
	CashRate   *float64
}

func (d DigitalTerms) validate() error {
	if d.CallStrike == nil && d.PutStrike == nil {
		return qerr.Invalid("digital coupon needs a call or a put strike")
	}
	if d.CallStrike != nil && d.PutStrike != nil && *d.CallStrike < *d.PutStrike {
		return qerr.Invalid("call strike (%g) below put strike (%g)", *d.CallStrike, *d.PutStrike)
	}
	return nil
}

func (d DigitalTerms) payoff(typ payoff.OptionType, strike float64) payoff.Striked {
	if d.CashRate != nil {
		return payoff.Striked{Kind: payoff.CashOrNothing, Type: typ, Strike: strike, CashPayoff: *d.CashRate}
	}
	return payoff.Striked{Kind: payoff.AssetOrNothing, Type: typ, Strike: strike}
}

func position(long bool) float64 {
	if long {
		return 1
	}
	return -1
}

func (d DigitalTerms) rate(vc valuation.Context, u optionable) (float64, error) {
	r, err := u.swapletRate(vc)
	if err != nil {
		return 0, err
	}
	legs := []struct {
		strike *float64
		typ    payoff.OptionType
		long   bool
	}{
		{d.CallStrike, payoff.Call, d.LongCall},
		{d.PutStrike, payoff.Put, d.LongPut},
	}
	for _, l := range legs {
		if l.strike == nil {
			continue
		}
		in, err := u.optionletInputs(vc, *l.strike)
		if err != nil {
			return 0, err
		}
		v, err := optionletRate(in, d.payoff(l.typ, *l.strike))
		if err != nil {
			return 0, err
		}
		r += position(l.long) * v
	}
	return r, nil
}

// DigitalIborCoupon is an Ibor coupon plus digital options on the fixing.
type DigitalIborCoupon struct {
	*IborCoupon
	digital DigitalTerms
}

// NewDigitalIborCoupon attaches digital terms to underlying.
func NewDigitalIborCoupon(underlying *IborCoupon, terms DigitalTerms) (*DigitalIborCoupon, error) {
	if underlying == nil {
		return nil, qerr.Invalid("no underlying coupon given")
	}
	if err := terms.validate(); err != nil {
		return nil, err
	}
	return &DigitalIborCoupon{IborCoupon: underlying, digital: terms}, nil
}

func (c *DigitalIborCoupon) Kind() Kind { return DigitalIbor }

func (c *DigitalIborCoupon) Rate(vc valuation.Context) (float64, error) {
	return c.digital.rate(vc, c.IborCoupon)
}

func (c *DigitalIborCoupon) Amount(vc valuation.Context) (float64, error) { return amount(c, vc) }

func (c *DigitalIborCoupon) AccruedAmount(vc valuation.Context, d time.Time) (float64, error) {
	return accrued(c, &c.couponBase, vc, d)
}

// DigitalCmsCoupon is a CMS coupon plus digital options on the swap rate.
type DigitalCmsCoupon struct {
	*CmsCoupon
	digital DigitalTerms
}

// NewDigitalCmsCoupon attaches digital terms to underlying.
func NewDigitalCmsCoupon(underlying *CmsCoupon, terms DigitalTerms) (*DigitalCmsCoupon, error) {
	if underlying == nil {
		return nil, qerr.Invalid("no underlying coupon given")
	}
	if err := terms.validate(); err != nil {
		return nil, err
	}
	return &DigitalCmsCoupon{CmsCoupon: underlying, digital: terms}, nil
}

func (c *DigitalCmsCoupon) Kind() Kind { return DigitalCMS }

func (c *DigitalCmsCoupon) Rate(vc valuation.Context) (float64, error) {
	return c.digital.rate(vc, c.CmsCoupon)
}

func (c *DigitalCmsCoupon) Amount(vc valuation.Context) (float64, error) { return amount(c, vc) }

func (c *DigitalCmsCoupon) AccruedAmount(vc valuation.Context, d time.Time) (float64, error) {
	return accrued(c, &c.couponBase, vc, d)
}
