// Package process holds the stochastic processes engines price under.
package process

import (
	"math"
	"time"

	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/quote"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
)

// BlackScholesMerton is geometric Brownian motion with continuous dividend
// yield: dS/S = (r - q) dt + sigma dW.
type BlackScholesMerton struct {
	Spot     quote.Quote
	Dividend termstructure.YieldCurve
	RiskFree termstructure.YieldCurve
	Vol      termstructure.BlackVolCurve
}

// NewBlackScholesMerton checks every component is present.
func NewBlackScholesMerton(spot quote.Quote, dividend, riskFree termstructure.YieldCurve, vol termstructure.BlackVolCurve) (*BlackScholesMerton, error) {
	if spot == nil || dividend == nil || riskFree == nil || vol == nil {
		return nil, qerr.Invalid("black-scholes-merton process needs spot, dividend, risk-free and volatility")
	}
	return &BlackScholesMerton{Spot: spot, Dividend: dividend, RiskFree: riskFree, Vol: vol}, nil
}

// SpotValue reads the spot quote.
func (p *BlackScholesMerton) SpotValue() (float64, error) {
	s, err := p.Spot.Value()
	if err != nil {
		return 0, err
	}
	if s <= 0 {
		return 0, qerr.Invalid("negative or null underlying given (%g)", s)
	}
	return s, nil
}

// Forward is S * Dq(t) / Dr(t) for the date d.
func (p *BlackScholesMerton) Forward(d time.Time) (float64, error) {
	s, err := p.SpotValue()
	if err != nil {
		return 0, err
	}
	fwd := s * p.Dividend.DiscountAt(d) / p.RiskFree.DiscountAt(d)
	if math.IsNaN(fwd) {
		return 0, qerr.Stale("forward at %s depends on an invalid quote", d.Format(utils.DateLayout))
	}
	return fwd, nil
}

// StdDev is sqrt(variance) to the date d at the given strike.
func (p *BlackScholesMerton) StdDev(d time.Time, strike float64) (float64, error) {
	t := p.Vol.TimeFromReference(d)
	v := p.Vol.BlackVariance(t, strike)
	if math.IsNaN(v) {
		return 0, qerr.Stale("volatility at %s depends on an invalid quote", d.Format(utils.DateLayout))
	}
	if v < 0 {
		return 0, qerr.Invalid("negative variance (%g)", v)
	}
	return math.Sqrt(v), nil
}

// Version changes whenever any input changes.
func (p *BlackScholesMerton) Version() uint64 {
	return quote.Fingerprint(p.Spot, p.Dividend, p.RiskFree, p.Vol)
}
