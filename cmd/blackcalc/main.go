package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/meenmo/quantcore/black"
	"github.com/meenmo/quantcore/internal/cli"
	"github.com/meenmo/quantcore/payoff"
)

// PricingInput is one Black calculation. OptionType is call or put; Payoff
// is vanilla (default), cash, asset or gap. StdDev is the total standard
// deviation σ√T and Discount the discount factor to the payment date.
// Spot enables the spot Greeks and Maturity the time Greeks.
type PricingInput struct {
	TaskID string `json:"task_id,omitempty"`

	OptionType   string  `json:"option_type"`
	Payoff       string  `json:"payoff,omitempty"`
	Strike       float64 `json:"strike"`
	CashPayoff   float64 `json:"cash_payoff,omitempty"`
	SecondStrike float64 `json:"second_strike,omitempty"`

	Forward  float64 `json:"forward"`
	StdDev   float64 `json:"std_dev"`
	Discount float64 `json:"discount"`
	Spot     float64 `json:"spot,omitempty"`
	Maturity float64 `json:"maturity,omitempty"`
}

type PricingOutput struct {
	TaskID string `json:"task_id,omitempty"`

	Value               float64 `json:"value"`
	DeltaForward        float64 `json:"delta_forward"`
	GammaForward        float64 `json:"gamma_forward"`
	ElasticityForward   float64 `json:"elasticity_forward"`
	ITMCashProbability  float64 `json:"itm_cash_probability"`
	ITMAssetProbability float64 `json:"itm_asset_probability"`
	StrikeSensitivity   float64 `json:"strike_sensitivity"`
	StrikeGamma         float64 `json:"strike_gamma"`

	Delta      *float64 `json:"delta,omitempty"`
	Gamma      *float64 `json:"gamma,omitempty"`
	Elasticity *float64 `json:"elasticity,omitempty"`

	Theta       *float64 `json:"theta,omitempty"`
	ThetaPerDay *float64 `json:"theta_per_day,omitempty"`
	Vega        *float64 `json:"vega,omitempty"`
	Rho         *float64 `json:"rho,omitempty"`
	DividendRho *float64 `json:"dividend_rho,omitempty"`
	Vanna       *float64 `json:"vanna,omitempty"`
	Volga       *float64 `json:"volga,omitempty"`

	Error string `json:"error,omitempty"`
}

var driver = cli.Driver[PricingInput, PricingOutput]{
	Name:    "blackcalc",
	Summary: "Read JSON input, evaluate the Black formula and its Greeks, output JSON to stdout.",
	Example: `  {"option_type": "call", "strike": 100, "forward": 105, "std_dev": 0.2,
   "discount": 0.97, "spot": 102, "maturity": 1.0}`,
	Calc: calculate,
	Fail: func(in PricingInput, err error) PricingOutput {
		return PricingOutput{TaskID: in.TaskID, Error: err.Error()}
	},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return driver.Run(args, stdin, stdout, stderr)
}

func buildPayoff(in PricingInput) (payoff.Striked, error) {
	typ, err := payoff.ParseOptionType(in.OptionType)
	if err != nil {
		return payoff.Striked{}, err
	}
	switch strings.ToLower(strings.TrimSpace(in.Payoff)) {
	case "", "vanilla":
		return payoff.NewPlainVanilla(typ, in.Strike)
	case "cash", "cash_or_nothing":
		return payoff.NewCashOrNothing(typ, in.Strike, in.CashPayoff)
	case "asset", "asset_or_nothing":
		return payoff.NewAssetOrNothing(typ, in.Strike)
	case "gap":
		return payoff.NewGap(typ, in.Strike, in.SecondStrike)
	default:
		return payoff.Striked{}, fmt.Errorf("unknown payoff %q (must be vanilla, cash, asset or gap)", in.Payoff)
	}
}

func calculate(env cli.Env, in PricingInput) (PricingOutput, error) {
	p, err := buildPayoff(in)
	if err != nil {
		return PricingOutput{}, err
	}
	c, err := black.New(p, in.Forward, in.StdDev, in.Discount)
	if err != nil {
		return PricingOutput{}, err
	}

	out := PricingOutput{
		TaskID:              in.TaskID,
		Value:               env.Round(c.Value()),
		DeltaForward:        env.Round(c.DeltaForward()),
		GammaForward:        env.Round(c.GammaForward()),
		ElasticityForward:   env.Round(c.ElasticityForward()),
		ITMCashProbability:  env.Round(c.ITMCashProbability()),
		ITMAssetProbability: env.Round(c.ITMAssetProbability()),
		StrikeSensitivity:   env.Round(c.StrikeSensitivity()),
		StrikeGamma:         env.Round(c.StrikeGamma()),
	}
	greek := func(dst **float64, v float64, err error) error {
		if err != nil {
			return err
		}
		r := env.Round(v)
		*dst = &r
		return nil
	}

	if in.Spot > 0 {
		d, err := c.Delta(in.Spot)
		if err := greek(&out.Delta, d, err); err != nil {
			return PricingOutput{}, fmt.Errorf("delta: %w", err)
		}
		g, err := c.Gamma(in.Spot)
		if err := greek(&out.Gamma, g, err); err != nil {
			return PricingOutput{}, fmt.Errorf("gamma: %w", err)
		}
		e, err := c.Elasticity(in.Spot)
		if err := greek(&out.Elasticity, e, err); err != nil {
			return PricingOutput{}, fmt.Errorf("elasticity: %w", err)
		}
	}
	if in.Maturity > 0 {
		v, err := c.Vega(in.Maturity)
		if err := greek(&out.Vega, v, err); err != nil {
			return PricingOutput{}, fmt.Errorf("vega: %w", err)
		}
		r, err := c.Rho(in.Maturity)
		if err := greek(&out.Rho, r, err); err != nil {
			return PricingOutput{}, fmt.Errorf("rho: %w", err)
		}
		q, err := c.DividendRho(in.Maturity)
		if err := greek(&out.DividendRho, q, err); err != nil {
			return PricingOutput{}, fmt.Errorf("dividend rho: %w", err)
		}
		vv, err := c.Volga(in.Maturity)
		if err := greek(&out.Volga, vv, err); err != nil {
			return PricingOutput{}, fmt.Errorf("volga: %w", err)
		}
	}
	if in.Spot > 0 && in.Maturity > 0 {
		th, err := c.Theta(in.Spot, in.Maturity)
		if err := greek(&out.Theta, th, err); err != nil {
			return PricingOutput{}, fmt.Errorf("theta: %w", err)
		}
		td, err := c.ThetaPerDay(in.Spot, in.Maturity)
		if err := greek(&out.ThetaPerDay, td, err); err != nil {
			return PricingOutput{}, fmt.Errorf("theta per day: %w", err)
		}
		va, err := c.Vanna(in.Spot, in.Maturity)
		if err := greek(&out.Vanna, va, err); err != nil {
			return PricingOutput{}, fmt.Errorf("vanna: %w", err)
		}
	}
	return out, nil
}
