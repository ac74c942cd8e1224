// Package black prices striked payoffs in closed form under the Black
// (lognormal forward) model and returns their sensitivities.
package black

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/meenmo/quantcore/payoff"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/utils"
)

// atmDensity is n(0), used at zero volatility when the forward sits on
// the strike.
var atmDensity = distuv.UnitNormal.Prob(0)

// Calculator holds the Black terms for one payoff:
// value = discount * (forward*alpha + x*beta).
type Calculator struct {
	typ      payoff.OptionType
	strike   float64
	forward  float64
	stdDev   float64
	discount float64
	variance float64

	d1, d2          float64
	cumD1, cumD2    float64
	nD1, nD2        float64
	alpha, beta     float64
	dAlphaDd1       float64
	dBetaDd2        float64
	x               float64
	dxDstrike, dxDs float64
}

// New builds a calculator for a striked payoff with total standard
// deviation stdDev = sigma*sqrt(T).
func New(p payoff.Striked, forward, stdDev, discount float64) (*Calculator, error) {
	if p.Type != payoff.Call && p.Type != payoff.Put {
		return nil, qerr.Invalid("invalid option type")
	}
	c := &Calculator{
		typ:      p.Type,
		strike:   p.Strike,
		forward:  forward,
		stdDev:   stdDev,
		discount: discount,
		variance: stdDev * stdDev,
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.initialize(p)
	return c, nil
}

// NewVanilla builds a calculator for a plain vanilla payoff.
func NewVanilla(typ payoff.OptionType, strike, forward, stdDev, discount float64) (*Calculator, error) {
	if typ != payoff.Call && typ != payoff.Put {
		return nil, qerr.Invalid("invalid option type")
	}
	return New(payoff.Striked{Kind: payoff.PlainVanilla, Type: typ, Strike: strike}, forward, stdDev, discount)
}

// Formula is the undiscounted-input shortcut returning only the value.
func Formula(typ payoff.OptionType, strike, forward, stdDev, discount float64) (float64, error) {
	c, err := NewVanilla(typ, strike, forward, stdDev, discount)
	if err != nil {
		return 0, err
	}
	return c.Value(), nil
}

func (c *Calculator) validate() error {
	switch {
	case !(c.strike >= 0):
		return qerr.Invalid("strike (%g) must be non-negative", c.strike)
	case !(c.forward > 0):
		return qerr.Invalid("forward (%g) must be positive", c.forward)
	case !(c.stdDev >= 0):
		return qerr.Invalid("stdDev (%g) must be non-negative", c.stdDev)
	case !(c.discount > 0):
		return qerr.Invalid("discount (%g) must be positive", c.discount)
	}
	return nil
}

func (c *Calculator) initialize(p payoff.Striked) {
	if c.stdDev >= utils.Epsilon {
		if isClose(c.strike, 0) {
			c.d1, c.d2 = math.MaxFloat64, math.MaxFloat64
			c.cumD1, c.cumD2 = 1, 1
			c.nD1, c.nD2 = 0, 0
		} else {
			c.d1 = math.Log(c.forward/c.strike)/c.stdDev + 0.5*c.stdDev
			c.d2 = c.d1 - c.stdDev
			c.cumD1 = distuv.UnitNormal.CDF(c.d1)
			c.cumD2 = distuv.UnitNormal.CDF(c.d2)
			c.nD1 = distuv.UnitNormal.Prob(c.d1)
			c.nD2 = distuv.UnitNormal.Prob(c.d2)
		}
	} else {
		switch {
		case isClose(c.forward, c.strike):
			c.d1, c.d2 = 0, 0
			c.cumD1, c.cumD2 = 0.5, 0.5
			c.nD1, c.nD2 = atmDensity, atmDensity
		case c.forward > c.strike:
			c.d1, c.d2 = math.MaxFloat64, math.MaxFloat64
			c.cumD1, c.cumD2 = 1, 1
			c.nD1, c.nD2 = 0, 0
		default:
			c.d1, c.d2 = -math.MaxFloat64, -math.MaxFloat64
			c.cumD1, c.cumD2 = 0, 0
			c.nD1, c.nD2 = 0, 0
		}
	}

	c.x = c.strike
	c.dxDstrike = 1
	c.dxDs = 0

	if c.typ == payoff.Call {
		c.alpha = c.cumD1
		c.dAlphaDd1 = c.nD1
		c.beta = -c.cumD2
		c.dBetaDd2 = -c.nD2
	} else {
		c.alpha = -1 + c.cumD1
		c.dAlphaDd1 = c.nD1
		c.beta = 1 - c.cumD2
		c.dBetaDd2 = -c.nD2
	}

	switch p.Kind {
	case payoff.CashOrNothing:
		c.alpha, c.dAlphaDd1 = 0, 0
		c.x = p.CashPayoff
		c.dxDstrike = 0
		if c.typ == payoff.Call {
			c.beta = c.cumD2
			c.dBetaDd2 = c.nD2
		} else {
			c.beta = 1 - c.cumD2
			c.dBetaDd2 = -c.nD2
		}
	case payoff.AssetOrNothing:
		c.beta, c.dBetaDd2 = 0, 0
		if c.typ == payoff.Call {
			c.alpha = c.cumD1
			c.dAlphaDd1 = c.nD1
		} else {
			c.alpha = 1 - c.cumD1
			c.dAlphaDd1 = -c.nD1
		}
	case payoff.Gap:
		c.x = p.SecondStrike
		c.dxDstrike = 0
	}
}

func (c *Calculator) zeroVol() bool { return c.stdDev <= utils.Epsilon }

// direction is the zero-volatility exercise indicator: 1 when exercise is
// certain, 0.5 at the money, 0 otherwise, signed by option type.
func (c *Calculator) direction() float64 {
	call := c.typ == payoff.Call
	switch {
	case isClose(c.forward, c.strike):
		if call {
			return 0.5
		}
		return -0.5
	case c.forward > c.strike:
		if call {
			return 1
		}
		return 0
	default:
		if call {
			return 0
		}
		return -1
	}
}

// Value is the discounted option price.
func (c *Calculator) Value() float64 {
	return c.discount * (c.forward*c.alpha + c.x*c.beta)
}

// DeltaForward is the sensitivity to the forward.
func (c *Calculator) DeltaForward() float64 {
	if c.zeroVol() {
		return c.discount * c.direction()
	}
	temp := c.stdDev * c.forward
	dAlphaDf := c.dAlphaDd1 / temp
	dBetaDf := c.dBetaDd2 / temp
	return c.discount * (dAlphaDf*c.forward + c.alpha + dBetaDf*c.x)
}

// Delta is the sensitivity to spot, with dF/dS = F/S.
func (c *Calculator) Delta(spot float64) (float64, error) {
	if !(spot > 0) {
		return 0, qerr.Invalid("positive spot value required: %g not allowed", spot)
	}
	dfDs := c.forward / spot
	if c.zeroVol() {
		return c.discount * c.direction() * dfDs, nil
	}
	temp := c.stdDev * spot
	dAlphaDs := c.dAlphaDd1 / temp
	dBetaDs := c.dBetaDd2 / temp
	return c.discount * (dAlphaDs*c.forward + c.alpha*dfDs + dBetaDs*c.x + c.beta*c.dxDs), nil
}

// ElasticityForward is DeltaForward/Value*F, saturating when the value vanishes.
func (c *Calculator) ElasticityForward() float64 {
	return elasticity(c.Value(), c.DeltaForward(), c.forward)
}

// Elasticity is Delta/Value*S, saturating when the value vanishes.
func (c *Calculator) Elasticity(spot float64) (float64, error) {
	del, err := c.Delta(spot)
	if err != nil {
		return 0, err
	}
	return elasticity(c.Value(), del, spot), nil
}

func elasticity(val, del, level float64) float64 {
	switch {
	case val > utils.Epsilon:
		return del / val * level
	case math.Abs(del) < utils.Epsilon:
		return 0
	case del > 0:
		return math.MaxFloat64
	default:
		return -math.MaxFloat64
	}
}

// GammaForward is the second derivative with respect to the forward.
func (c *Calculator) GammaForward() float64 {
	if c.zeroVol() {
		return 0
	}
	temp := c.stdDev * c.forward
	dAlphaDf := c.dAlphaDd1 / temp
	dBetaDf := c.dBetaDd2 / temp
	d2AlphaDf2 := -dAlphaDf / c.forward * (1 + c.d1/c.stdDev)
	d2BetaDf2 := -dBetaDf / c.forward * (1 + c.d2/c.stdDev)
	return c.discount * (d2AlphaDf2*c.forward + 2*dAlphaDf + d2BetaDf2*c.x)
}

// Gamma is the second derivative with respect to spot.
func (c *Calculator) Gamma(spot float64) (float64, error) {
	if !(spot > 0) {
		return 0, qerr.Invalid("positive spot value required: %g not allowed", spot)
	}
	if c.zeroVol() {
		return 0, nil
	}
	dfDs := c.forward / spot
	temp := c.stdDev * spot
	dAlphaDs := c.dAlphaDd1 / temp
	dBetaDs := c.dBetaDd2 / temp
	d2AlphaDs2 := -dAlphaDs / spot * (1 + c.d1/c.stdDev)
	d2BetaDs2 := -dBetaDs / spot * (1 + c.d2/c.stdDev)
	return c.discount * (d2AlphaDs2*c.forward + 2*dAlphaDs*dfDs + d2BetaDs2*c.x + 2*dBetaDs*c.dxDs), nil
}

// Theta is the time decay implied by the Black-Scholes PDE.
func (c *Calculator) Theta(spot, maturity float64) (float64, error) {
	if !(maturity >= 0) {
		return 0, qerr.Invalid("maturity (%g) must be non-negative", maturity)
	}
	if isClose(maturity, 0) {
		return 0, nil
	}
	del, err := c.Delta(spot)
	if err != nil {
		return 0, err
	}
	gam, err := c.Gamma(spot)
	if err != nil {
		return 0, err
	}
	return -(math.Log(c.discount)*c.Value() +
		math.Log(c.forward/spot)*spot*del +
		0.5*c.variance*spot*spot*gam) / maturity, nil
}

// ThetaPerDay is Theta scaled to one calendar day.
func (c *Calculator) ThetaPerDay(spot, maturity float64) (float64, error) {
	th, err := c.Theta(spot, maturity)
	return th / 365.0, err
}

// Vega is the sensitivity to volatility (not to stdDev).
func (c *Calculator) Vega(maturity float64) (float64, error) {
	if !(maturity >= 0) {
		return 0, qerr.Invalid("negative maturity not allowed")
	}
	if c.zeroVol() {
		return 0, nil
	}
	temp := math.Log(c.strike/c.forward) / c.variance
	dAlphaDsigma := c.dAlphaDd1 * (temp + 0.5)
	dBetaDsigma := c.dBetaDd2 * (temp - 0.5)
	return c.discount * math.Sqrt(maturity) * (dAlphaDsigma*c.forward + dBetaDsigma*c.x), nil
}

// Rho is the sensitivity to the risk-free rate, holding spot fixed.
func (c *Calculator) Rho(maturity float64) (float64, error) {
	if !(maturity >= 0) {
		return 0, qerr.Invalid("negative maturity not allowed")
	}
	if c.zeroVol() {
		return maturity * (c.DeltaForward()*c.forward - c.Value()), nil
	}
	dAlphaDr := c.dAlphaDd1 / c.stdDev
	dBetaDr := c.dBetaDd2 / c.stdDev
	temp := dAlphaDr*c.forward + c.alpha*c.forward + dBetaDr*c.x
	return maturity * (c.discount*temp - c.Value()), nil
}

// DividendRho is the sensitivity to the dividend yield.
func (c *Calculator) DividendRho(maturity float64) (float64, error) {
	if !(maturity >= 0) {
		return 0, qerr.Invalid("negative maturity not allowed")
	}
	if c.zeroVol() {
		deltaFwd := c.DeltaForward() / c.discount
		return -maturity * c.discount * deltaFwd * c.forward, nil
	}
	dAlphaDq := -c.dAlphaDd1 / c.stdDev
	dBetaDq := -c.dBetaDd2 / c.stdDev
	temp := dAlphaDq*c.forward - c.alpha*c.forward + dBetaDq*c.x
	return maturity * c.discount * temp, nil
}

// StrikeSensitivity is the first derivative with respect to the strike.
func (c *Calculator) StrikeSensitivity() float64 {
	if c.zeroVol() {
		// -N(d2) for calls, N(-d2) for puts at their limits
		return -c.discount * c.direction()
	}
	temp := c.stdDev * c.strike
	dAlphaDk := -c.dAlphaDd1 / temp
	dBetaDk := -c.dBetaDd2 / temp
	return c.discount * (dAlphaDk*c.forward + dBetaDk*c.x + c.beta*c.dxDstrike)
}

// StrikeGamma is the second derivative with respect to the strike.
func (c *Calculator) StrikeGamma() float64 {
	if c.zeroVol() {
		return 0
	}
	temp := c.stdDev * c.strike
	dAlphaDk := -c.dAlphaDd1 / temp
	dBetaDk := -c.dBetaDd2 / temp
	d2AlphaDk2 := -dAlphaDk / c.strike * (1 - c.d1/c.stdDev)
	d2BetaDk2 := -dBetaDk / c.strike * (1 - c.d2/c.stdDev)
	return c.discount * (d2AlphaDk2*c.forward + d2BetaDk2*c.x + 2*dBetaDk*c.dxDstrike)
}

// Vanna is the sensitivity of vega to spot.
func (c *Calculator) Vanna(spot, maturity float64) (float64, error) {
	if !(spot > 0) {
		return 0, qerr.Invalid("positive spot value required: %g not allowed", spot)
	}
	vega, err := c.Vega(maturity)
	if err != nil || c.zeroVol() {
		return 0, err
	}
	return -c.d2 / (spot * c.stdDev) * vega, nil
}

// Volga is the sensitivity of vega to volatility.
func (c *Calculator) Volga(maturity float64) (float64, error) {
	vega, err := c.Vega(maturity)
	if err != nil || c.zeroVol() {
		return 0, err
	}
	return vega * c.d1 * c.d2 / c.stdDev, nil
}

// ITMCashProbability is N(d2).
func (c *Calculator) ITMCashProbability() float64 { return c.cumD2 }

// ITMAssetProbability is N(d1).
func (c *Calculator) ITMAssetProbability() float64 { return c.cumD1 }

// Alpha is the forward weight in value = discount * (forward*alpha + x*beta).
func (c *Calculator) Alpha() float64 { return c.alpha }

// Beta is the cash weight in value = discount * (forward*alpha + x*beta).
func (c *Calculator) Beta() float64 { return c.beta }

// D1 is ln(F/K)/stdDev + stdDev/2, saturated to +-MaxFloat64 when the
// strike is zero or the volatility vanishes off the money.
func (c *Calculator) D1() float64 { return c.d1 }

// D2 is D1 - stdDev, saturated like D1.
func (c *Calculator) D2() float64 { return c.d2 }

// isClose compares within 42 ulps, the tolerance used throughout.
func isClose(x, y float64) bool {
	if x == y {
		return true
	}
	diff := math.Abs(x - y)
	tol := 42 * utils.Epsilon
	if x == 0 || y == 0 {
		return diff < tol*tol
	}
	return diff <= tol*math.Abs(x) && diff <= tol*math.Abs(y)
}
