// Package engine holds pricing engines for the instrument package.
package engine

import (
	"log/slog"
	"math"

	"github.com/meenmo/quantcore/black"
	"github.com/meenmo/quantcore/instrument"
	"github.com/meenmo/quantcore/logger"
	"github.com/meenmo/quantcore/metrics"
	"github.com/meenmo/quantcore/payoff"
	"github.com/meenmo/quantcore/process"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

const analyticEuropeanName = "analytic_european"

// AnalyticEuropean prices European striked payoffs with the Black calculator.
type AnalyticEuropean struct {
	process *process.BlackScholesMerton
	log     *slog.Logger
	metrics *metrics.Metrics
}

// Option configures an engine.
type Option func(*AnalyticEuropean)

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *AnalyticEuropean) { e.log = l }
}

// WithMetrics records calculations into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *AnalyticEuropean) { e.metrics = m }
}

// NewAnalyticEuropean builds the engine over a process.
func NewAnalyticEuropean(p *process.BlackScholesMerton, opts ...Option) *AnalyticEuropean {
	e := &AnalyticEuropean{process: p}
	for _, o := range opts {
		o(e)
	}
	e.log = logger.OrDefault(e.log)
	return e
}

func (e *AnalyticEuropean) Name() string { return analyticEuropeanName }

func (e *AnalyticEuropean) Version() uint64 { return e.process.Version() }

// Calculate fills value, greeks and the forward/stdDev/discount side results.
func (e *AnalyticEuropean) Calculate(vc valuation.Context, args instrument.OptionArguments) (instrument.Results, error) {
	if args.Exercise.Kind != payoff.European {
		return instrument.Results{}, qerr.Incompatible("not an European option (%s exercise)", args.Exercise.Kind)
	}
	e.metrics.IncEngine(analyticEuropeanName)

	expiry := args.Exercise.LastDate()
	p := e.process
	spot, err := p.SpotValue()
	if err != nil {
		return instrument.Results{}, err
	}
	stdDev, err := p.StdDev(expiry, args.Payoff.Strike)
	if err != nil {
		return instrument.Results{}, err
	}
	forward, err := p.Forward(expiry)
	if err != nil {
		return instrument.Results{}, err
	}
	dividendDiscount := p.Dividend.DiscountAt(expiry)
	riskFreeDiscount := p.RiskFree.DiscountAt(expiry)
	if math.IsNaN(riskFreeDiscount) {
		return instrument.Results{}, qerr.Stale("risk-free discount at %s depends on an invalid quote",
			expiry.Format(utils.DateLayout))
	}

	calc, err := black.New(args.Payoff, forward, stdDev, riskFreeDiscount)
	if err != nil {
		return instrument.Results{}, err
	}

	var g instrument.Greeks
	g.DeltaForward = calc.DeltaForward()
	g.StrikeSensitivity = calc.StrikeSensitivity()
	g.StrikeGamma = calc.StrikeGamma()
	g.ITMCashProbability = calc.ITMCashProbability()
	if g.Delta, err = calc.Delta(spot); err != nil {
		return instrument.Results{}, err
	}
	if g.Gamma, err = calc.Gamma(spot); err != nil {
		return instrument.Results{}, err
	}
	if g.Elasticity, err = calc.Elasticity(spot); err != nil {
		return instrument.Results{}, err
	}

	// rates and volatility may use different day counters
	tRate := p.RiskFree.TimeFromReference(expiry)
	tDiv := p.Dividend.TimeFromReference(expiry)
	tVol := p.Vol.TimeFromReference(expiry)

	if g.Vega, err = calc.Vega(tVol); err != nil {
		return instrument.Results{}, err
	}
	if g.Vanna, err = calc.Vanna(spot, tVol); err != nil {
		return instrument.Results{}, err
	}
	if g.Volga, err = calc.Volga(tVol); err != nil {
		return instrument.Results{}, err
	}
	if g.Rho, err = calc.Rho(tRate); err != nil {
		return instrument.Results{}, err
	}
	if g.DividendRho, err = calc.DividendRho(tDiv); err != nil {
		return instrument.Results{}, err
	}
	if g.Theta, err = calc.Theta(spot, tRate); err != nil {
		return instrument.Results{}, err
	}
	g.ThetaPerDay = g.Theta / 365.0

	e.log.Debug("analytic european priced",
		slog.String("payoff", args.Payoff.Name()),
		slog.Float64("forward", forward),
		slog.Float64("stdDev", stdDev),
		slog.Float64("value", calc.Value()))

	return instrument.Results{
		Value:  calc.Value(),
		Greeks: g,
		Additional: map[string]float64{
			"spot":             spot,
			"forward":          forward,
			"stdDev":           stdDev,
			"discount":         riskFreeDiscount,
			"dividendDiscount": dividendDiscount,
			"strike":           args.Payoff.Strike,
		},
	}, nil
}
