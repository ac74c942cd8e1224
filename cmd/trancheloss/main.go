package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/meenmo/quantcore/credit"
	"github.com/meenmo/quantcore/internal/cli"
	"github.com/meenmo/quantcore/quote"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

// Name is one basket constituent. A flat hazard rate is used when given,
// otherwise DefaultProbability is the cumulative probability at the horizon.
type Name struct {
	Name               string  `json:"name"`
	Notional           float64 `json:"notional"`
	Recovery           float64 `json:"recovery"`
	HazardRate         float64 `json:"hazard_rate,omitempty"`
	DefaultProbability float64 `json:"default_probability,omitempty"`
	// DefaultDate marks the name as already defaulted.
	DefaultDate string `json:"default_date,omitempty"`
}

// Tranche is an attachment/detachment pair as fractions of the pool.
type Tranche struct {
	Attachment float64 `json:"attachment"`
	Detachment float64 `json:"detachment"`
}

// PricingInput describes a pool, the loss model and the tranches to
// evaluate at the horizon date. Model is binomial, recursive or large_pool.
type PricingInput struct {
	TaskID string `json:"task_id,omitempty"`

	ValuationDate string    `json:"valuation_date"`
	HorizonDate   string    `json:"horizon_date"`
	Model         string    `json:"model"`
	Correlation   float64   `json:"correlation"`
	Names         []Name    `json:"names"`
	Tranches      []Tranche `json:"tranches"`

	// QuadratureOrder and Buckets override the configured credit settings.
	QuadratureOrder int `json:"quadrature_order,omitempty"`
	Buckets         int `json:"buckets,omitempty"`

	// Percentile drives the percentile and expected shortfall of the
	// first tranche; zero skips them.
	Percentile          float64 `json:"percentile,omitempty"`
	IncludeDistribution bool    `json:"include_distribution,omitempty"`

	// TrancheFraction asks for the probability that the first tranche
	// loses more than this fraction of its width.
	TrancheFraction float64 `json:"tranche_fraction,omitempty"`
}

type TrancheOutput struct {
	Attachment          float64 `json:"attachment"`
	Detachment          float64 `json:"detachment"`
	ExpectedTrancheLoss float64 `json:"expected_tranche_loss"`
}

type PricingOutput struct {
	TaskID string `json:"task_id,omitempty"`

	Model             string          `json:"model"`
	RemainingNotional float64         `json:"remaining_notional"`
	SettledLoss       float64         `json:"settled_loss"`
	Tranches          []TrancheOutput `json:"tranches"`

	PercentileLoss    *float64             `json:"percentile_loss,omitempty"`
	ExpectedShortfall *float64             `json:"expected_shortfall,omitempty"`
	ProbOverLoss      *float64             `json:"prob_over_loss,omitempty"`
	Distribution      *credit.Distribution `json:"distribution,omitempty"`

	Error string `json:"error,omitempty"`
}

var driver = cli.Driver[PricingInput, PricingOutput]{
	Name:    "trancheloss",
	Summary: "Read JSON input, compute expected tranche losses under a Gaussian latent model, output JSON to stdout.",
	Example: `  {"valuation_date": "2025-01-15", "horizon_date": "2030-01-15", "model": "binomial",
   "correlation": 0.3, "percentile": 0.99,
   "names": [{"name": "A", "notional": 100, "recovery": 0.4, "hazard_rate": 0.02}, ...],
   "tranches": [{"attachment": 0, "detachment": 0.03}, {"attachment": 0.03, "detachment": 0.07}]}`,
	Calc: calculate,
	Fail: func(in PricingInput, err error) PricingOutput {
		return PricingOutput{TaskID: in.TaskID, Model: in.Model, Error: err.Error()}
	},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return driver.Run(args, stdin, stdout, stderr)
}

func parseDate(field, s string) (time.Time, error) {
	d, err := utils.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return d, nil
}

func buildModel(env cli.Env, in PricingInput) (credit.LossModel, error) {
	order := env.Config.Credit.QuadratureOrder
	if in.QuadratureOrder > 0 {
		order = in.QuadratureOrder
	}
	buckets := env.Config.Credit.RecursiveBuckets
	if in.Buckets > 0 {
		buckets = in.Buckets
	}
	opts := []credit.Option{credit.WithLogger(env.Log), credit.WithMetrics(env.Metrics)}
	correl := quote.NewSimpleQuote(in.Correlation)

	switch strings.ToLower(strings.TrimSpace(in.Model)) {
	case "large_pool", "largepool":
		m, err := credit.NewLargePoolLossModel(correl, order, opts...)
		if err != nil {
			return nil, err
		}
		return m, nil
	case "binomial", "recursive":
		latent, err := credit.NewHomogeneousGaussianLatentModel(correl, len(in.Names), order)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(strings.TrimSpace(in.Model), "binomial") {
			return credit.NewBinomialLossModel(latent, opts...), nil
		}
		return credit.NewRecursiveLossModel(latent, buckets, opts...), nil
	default:
		return nil, fmt.Errorf("unknown model %q (must be binomial, recursive or large_pool)", in.Model)
	}
}

// buildBaskets returns one basket per tranche over the same names.
func buildBaskets(in PricingInput, today, horizon time.Time) ([]*credit.Basket, error) {
	if len(in.Names) == 0 {
		return nil, fmt.Errorf("names is required")
	}
	if len(in.Tranches) == 0 {
		return nil, fmt.Errorf("tranches is required")
	}
	names := make([]string, len(in.Names))
	notionals := make([]float64, len(in.Names))
	recoveries := make([]float64, len(in.Names))
	curves := make([]termstructure.DefaultCurve, len(in.Names))
	for i, n := range in.Names {
		names[i], notionals[i], recoveries[i] = n.Name, n.Notional, n.Recovery
		if n.HazardRate > 0 {
			curves[i] = termstructure.NewFlatHazardRate(today, quote.NewSimpleQuote(n.HazardRate), utils.Act365F)
			continue
		}
		c, err := termstructure.NewFlatHazardRateFromProbability(today, horizon, n.DefaultProbability, utils.Act365F)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.Name, err)
		}
		curves[i] = c
	}

	baskets := make([]*credit.Basket, len(in.Tranches))
	for j, tr := range in.Tranches {
		b, err := credit.NewBasket(names, notionals, curves, recoveries, tr.Attachment, tr.Detachment)
		if err != nil {
			return nil, fmt.Errorf("tranche %d: %w", j+1, err)
		}
		for i, n := range in.Names {
			if n.DefaultDate == "" {
				continue
			}
			d, err := parseDate("default_date", n.DefaultDate)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", n.Name, err)
			}
			if err := b.MarkDefault(i, d); err != nil {
				return nil, err
			}
		}
		baskets[j] = b
	}
	return baskets, nil
}

func calculate(env cli.Env, in PricingInput) (PricingOutput, error) {
	today, err := parseDate("valuation_date", in.ValuationDate)
	if err != nil {
		return PricingOutput{}, err
	}
	horizon, err := parseDate("horizon_date", in.HorizonDate)
	if err != nil {
		return PricingOutput{}, err
	}
	vc := valuation.NewContext(today)

	baskets, err := buildBaskets(in, today, horizon)
	if err != nil {
		return PricingOutput{}, err
	}
	model, err := buildModel(env, in)
	if err != nil {
		return PricingOutput{}, err
	}

	start := time.Now()
	losses, err := credit.EvaluateTranches(context.Background(), vc, model, baskets, horizon, 0)
	if err != nil {
		return PricingOutput{}, err
	}
	env.Log.Debug("tranches evaluated", "model", model.Name(), "tranches", len(baskets),
		"elapsed", time.Since(start))

	first := baskets[0]
	out := PricingOutput{
		TaskID:            in.TaskID,
		Model:             model.Name(),
		RemainingNotional: env.Round(first.RemainingNotional(horizon)),
		SettledLoss:       env.Round(first.SettledLoss(horizon)),
		Tranches:          make([]TrancheOutput, len(baskets)),
	}
	for j, b := range baskets {
		out.Tranches[j] = TrancheOutput{
			Attachment:          b.AttachmentRatio(),
			Detachment:          b.DetachmentRatio(),
			ExpectedTrancheLoss: env.Round(losses[j]),
		}
	}

	if in.Percentile > 0 {
		p, err := model.Percentile(vc, first, horizon, in.Percentile)
		if err != nil {
			return PricingOutput{}, fmt.Errorf("percentile: %w", err)
		}
		es, err := model.ExpectedShortfall(vc, first, horizon, in.Percentile)
		if err != nil {
			return PricingOutput{}, fmt.Errorf("expected shortfall: %w", err)
		}
		p, es = env.Round(p), env.Round(es)
		out.PercentileLoss, out.ExpectedShortfall = &p, &es
	}
	if in.TrancheFraction > 0 {
		p, err := model.ProbOverLoss(vc, first, horizon, in.TrancheFraction)
		if err != nil {
			return PricingOutput{}, fmt.Errorf("probability over loss: %w", err)
		}
		p = env.Round(p)
		out.ProbOverLoss = &p
	}
	if in.IncludeDistribution {
		dist, err := model.LossDistribution(vc, first, horizon)
		if err != nil {
			return PricingOutput{}, fmt.Errorf("loss distribution: %w", err)
		}
		out.Distribution = &dist
	}
	return out, nil
}
