package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/meenmo/quantcore/bootstrap"
	"github.com/meenmo/quantcore/index"
	"github.com/meenmo/quantcore/internal/cli"
	"github.com/meenmo/quantcore/quote"
	"github.com/meenmo/quantcore/swap"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

// Instrument is one market quote. Rates are in percent. Tenor is the
// deposit or swap length; Period is an FRA such as "6x12".
type Instrument struct {
	Tenor  string  `json:"tenor,omitempty"`
	Period string  `json:"period,omitempty"`
	Rate   float64 `json:"rate"`
}

// Swaption is one Black swaption volatility quote in percent on a swap of
// the given tenor against the curve index. Strike is in percent; zero is at
// the money.
type Swaption struct {
	Expiry string  `json:"expiry"`
	Tenor  string  `json:"tenor"`
	Vol    float64 `json:"vol"`
	Strike float64 `json:"strike,omitempty"`
}

// PricingInput describes the quotes of a Euribor curve. Index names the
// swap floating index (default EURIBOR6M). When OISSwaps is set, those
// swaps build a separate discount curve on the ESTR12M proxy index and the
// Euribor swaps are discounted on it. Method is iterative (default), global
// or multi_curve; multi_curve solves both curves jointly. Swaptions, when
// given, calibrate a piecewise-constant volatility with one step per
// distinct expiry on the fitted curves.
type PricingInput struct {
	TaskID string `json:"task_id,omitempty"`

	ValuationDate string  `json:"valuation_date"`
	Method        string  `json:"method,omitempty"`
	Index         string  `json:"index,omitempty"`
	FixedTenor    string  `json:"fixed_tenor,omitempty"`
	FixedDayCount string  `json:"fixed_day_count,omitempty"`
	CurveDayCount string  `json:"curve_day_count,omitempty"`
	Accuracy      float64 `json:"accuracy,omitempty"`

	Deposits []Instrument `json:"deposits,omitempty"`
	FRAs     []Instrument `json:"fras,omitempty"`
	Swaps    []Instrument `json:"swaps,omitempty"`
	OISSwaps []Instrument `json:"ois_swaps,omitempty"`

	Swaptions []Swaption `json:"swaptions,omitempty"`

	// Dates are extra dates to report discount factors and zero rates at.
	Dates []string `json:"dates,omitempty"`
}

type Point struct {
	Date           string  `json:"date"`
	DiscountFactor float64 `json:"discount_factor"`
	ZeroRate       float64 `json:"zero_rate"`
}

type CurveOutput struct {
	Pillars   []Point `json:"pillars"`
	Requested []Point `json:"requested,omitempty"`
}

// VolStep is the instantaneous volatility (percent) up to Until; the last
// step has no end.
type VolStep struct {
	Until string  `json:"until,omitempty"`
	Vol   float64 `json:"vol"`
}

type SwaptionFit struct {
	Expiry    string  `json:"expiry"`
	Tenor     string  `json:"tenor"`
	MarketVol float64 `json:"market_vol"`
	ModelVol  float64 `json:"model_vol"`
}

type VolOutput struct {
	Steps     []VolStep     `json:"steps"`
	Swaptions []SwaptionFit `json:"swaptions"`
}

type PricingOutput struct {
	TaskID string `json:"task_id,omitempty"`

	Method     string       `json:"method"`
	Forecast   *CurveOutput `json:"forecast_curve,omitempty"`
	Discount   *CurveOutput `json:"discount_curve,omitempty"`
	Volatility *VolOutput   `json:"volatility,omitempty"`

	Error string `json:"error,omitempty"`
}

var driver = cli.Driver[PricingInput, PricingOutput]{
	Name:    "curvefit",
	Summary: "Read JSON input, bootstrap Euribor (and optional OIS discount) curves, output JSON to stdout.",
	Example: `  {"valuation_date": "2025-01-15", "method": "global", "index": "EURIBOR6M",
   "deposits": [{"tenor": "6M", "rate": 2.65}],
   "fras": [{"period": "6x12", "rate": 2.40}],
   "swaps": [{"tenor": "2Y", "rate": 2.35}, {"tenor": "5Y", "rate": 2.45}, {"tenor": "10Y", "rate": 2.60}],
   "ois_swaps": [{"tenor": "1Y", "rate": 2.20}, {"tenor": "5Y", "rate": 2.25}, {"tenor": "10Y", "rate": 2.40}],
   "dates": ["2027-06-30"]}`,
	Calc: calculate,
	Fail: func(in PricingInput, err error) PricingOutput {
		return PricingOutput{TaskID: in.TaskID, Method: in.Method, Error: err.Error()}
	},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return driver.Run(args, stdin, stdout, stderr)
}

func withDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

// parseFRA reads "6x12" as months to start and months to end.
func parseFRA(s string) (int, int, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid FRA period %q (want e.g. 6x12)", s)
	}
	start, err1 := strconv.Atoi(parts[0])
	end, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || end <= start {
		return 0, 0, fmt.Errorf("invalid FRA period %q (want e.g. 6x12)", s)
	}
	return start, end, nil
}

func percentQuote(rate float64) quote.Quote {
	return quote.NewSimpleQuote(rate / 100)
}

type market struct {
	today      time.Time
	ibor       *index.IborIndex
	fixedTenor utils.Period
	fixedDC    utils.DayCount
	curveDC    utils.DayCount
}

func (m market) swapHelpers(quotes []Instrument, idx *index.IborIndex, discount termstructure.YieldCurve) ([]bootstrap.RateHelper, error) {
	var hs []bootstrap.RateHelper
	for _, q := range quotes {
		tenor, err := utils.ParsePeriod(q.Tenor)
		if err != nil {
			return nil, fmt.Errorf("swap %q: %w", q.Tenor, err)
		}
		h, err := bootstrap.NewSwapHelper(percentQuote(q.Rate), swap.Terms{
			Type:          swap.Payer,
			Nominal:       1,
			TradeDate:     m.today,
			Tenor:         tenor,
			FixedTenor:    m.fixedTenor,
			FixedDayCount: m.fixedDC,
			Index:         idx,
		}, discount)
		if err != nil {
			return nil, fmt.Errorf("swap %s: %w", q.Tenor, err)
		}
		hs = append(hs, h)
	}
	return hs, nil
}

func (m market) forecastHelpers(in PricingInput, discount termstructure.YieldCurve) ([]bootstrap.RateHelper, error) {
	var hs []bootstrap.RateHelper
	for _, q := range in.Deposits {
		tenor, err := utils.ParsePeriod(q.Tenor)
		if err != nil {
			return nil, fmt.Errorf("deposit %q: %w", q.Tenor, err)
		}
		h, err := bootstrap.NewDepositHelper(percentQuote(q.Rate), index.Euribor(tenor, nil), m.today)
		if err != nil {
			return nil, fmt.Errorf("deposit %s: %w", q.Tenor, err)
		}
		hs = append(hs, h)
	}
	for _, q := range in.FRAs {
		start, end, err := parseFRA(q.Period)
		if err != nil {
			return nil, err
		}
		idx := index.Euribor(utils.Period{N: end - start, Unit: utils.UnitMonths}, nil)
		h, err := bootstrap.NewFRAHelper(percentQuote(q.Rate), start, idx, m.today)
		if err != nil {
			return nil, fmt.Errorf("FRA %s: %w", q.Period, err)
		}
		hs = append(hs, h)
	}
	swaps, err := m.swapHelpers(in.Swaps, m.ibor, discount)
	if err != nil {
		return nil, err
	}
	return append(hs, swaps...), nil
}

// curveOptions returns a fresh bootstrapper option per curve since a
// bootstrapper serves one curve.
func curveOptions(env cli.Env, method string, accuracy float64) (func() (bootstrap.CurveOption, error), error) {
	opts := []bootstrap.Option{bootstrap.WithLogger(env.Log), bootstrap.WithMetrics(env.Metrics)}
	if accuracy > 0 {
		opts = append(opts, bootstrap.WithAccuracy(accuracy))
	}
	switch method {
	case "iterative":
		return func() (bootstrap.CurveOption, error) {
			b, err := bootstrap.NewIterative(opts...)
			if err != nil {
				return nil, err
			}
			return bootstrap.WithBootstrapper(b), nil
		}, nil
	case "global", "multi_curve":
		return func() (bootstrap.CurveOption, error) {
			g, err := bootstrap.NewGlobalBootstrap(opts...)
			if err != nil {
				return nil, err
			}
			return bootstrap.WithBootstrapper(g), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown method %q (must be iterative, global or multi_curve)", method)
	}
}

func calculate(env cli.Env, in PricingInput) (PricingOutput, error) {
	today, err := utils.ParseDate(strings.TrimSpace(in.ValuationDate))
	if err != nil {
		return PricingOutput{}, fmt.Errorf("invalid valuation_date: %w", err)
	}
	method := strings.ToLower(withDefault(in.Method, "iterative"))
	if method == "multi_curve" && len(in.OISSwaps) == 0 {
		return PricingOutput{}, fmt.Errorf("multi_curve needs ois_swaps")
	}
	ibor, err := index.Lookup(withDefault(in.Index, string(index.EURIBOR6M)), nil)
	if err != nil {
		return PricingOutput{}, err
	}
	fixedTenor, err := utils.ParsePeriod(withDefault(in.FixedTenor, "1Y"))
	if err != nil {
		return PricingOutput{}, fmt.Errorf("invalid fixed_tenor: %w", err)
	}
	requested := make([]time.Time, len(in.Dates))
	for i, s := range in.Dates {
		if requested[i], err = utils.ParseDate(strings.TrimSpace(s)); err != nil {
			return PricingOutput{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
	}
	m := market{
		today:      today,
		ibor:       ibor,
		fixedTenor: fixedTenor,
		fixedDC:    utils.DayCount(withDefault(in.FixedDayCount, string(utils.Thirty360))),
		curveDC:    utils.DayCount(withDefault(in.CurveDayCount, string(utils.Act365F))),
	}
	newOption, err := curveOptions(env, method, in.Accuracy)
	if err != nil {
		return PricingOutput{}, err
	}
	vc := valuation.NewContext(today)

	var disc *bootstrap.PiecewiseCurve
	var discount termstructure.YieldCurve
	if len(in.OISSwaps) > 0 {
		ois, err := index.Lookup(string(index.ESTR12M), nil)
		if err != nil {
			return PricingOutput{}, err
		}
		hs, err := m.swapHelpers(in.OISSwaps, ois, nil)
		if err != nil {
			return PricingOutput{}, err
		}
		opt, err := newOption()
		if err != nil {
			return PricingOutput{}, err
		}
		if disc, err = bootstrap.NewPiecewiseCurve(today, m.curveDC, hs, opt); err != nil {
			return PricingOutput{}, fmt.Errorf("discount curve: %w", err)
		}
		discount = disc
	}

	hs, err := m.forecastHelpers(in, discount)
	if err != nil {
		return PricingOutput{}, err
	}
	opt, err := newOption()
	if err != nil {
		return PricingOutput{}, err
	}
	fcst, err := bootstrap.NewPiecewiseCurve(today, m.curveDC, hs, opt)
	if err != nil {
		return PricingOutput{}, fmt.Errorf("forecast curve: %w", err)
	}

	start := time.Now()
	if method == "multi_curve" {
		group, err := bootstrap.NewMultiCurve(bootstrap.WithLogger(env.Log), bootstrap.WithMetrics(env.Metrics),
			bootstrap.WithAccuracy(accuracyOr(in.Accuracy, env.Config.Bootstrap.Accuracy)))
		if err != nil {
			return PricingOutput{}, err
		}
		for _, c := range []*bootstrap.PiecewiseCurve{disc, fcst} {
			if err := group.Add(c); err != nil {
				return PricingOutput{}, err
			}
		}
	}
	if err := fcst.Recalculate(vc); err != nil {
		return PricingOutput{}, fmt.Errorf("forecast curve: %w", err)
	}
	env.Log.Debug("curves fitted", "method", method, "dual", disc != nil, "elapsed", time.Since(start))

	out := PricingOutput{TaskID: in.TaskID, Method: method}
	out.Forecast = report(env, fcst, requested)
	if disc != nil {
		if err := disc.Recalculate(vc); err != nil {
			return PricingOutput{}, fmt.Errorf("discount curve: %w", err)
		}
		out.Discount = report(env, disc, requested)
	}
	if len(in.Swaptions) > 0 {
		if out.Volatility, err = m.calibrateVols(env, vc, in, fcst, discount); err != nil {
			return PricingOutput{}, err
		}
	}
	return out, nil
}

// calibrateVols fits step volatilities to the swaptions, struck on swap
// indexes forecasting off fcst and discounting like the curve swaps.
func (m market) calibrateVols(env cli.Env, vc valuation.Context, in PricingInput,
	fcst, discount termstructure.YieldCurve) (*VolOutput, error) {
	helpers := make([]*bootstrap.SwaptionHelper, len(in.Swaptions))
	for i, sw := range in.Swaptions {
		expiry, err := utils.ParsePeriod(sw.Expiry)
		if err != nil {
			return nil, fmt.Errorf("swaption %d expiry: %w", i+1, err)
		}
		tenor, err := utils.ParsePeriod(sw.Tenor)
		if err != nil {
			return nil, fmt.Errorf("swaption %d tenor: %w", i+1, err)
		}
		idx, err := index.NewSwapIndex("", tenor, m.fixedTenor, m.fixedDC, m.ibor.WithForecast(fcst), discount)
		if err != nil {
			return nil, fmt.Errorf("swaption %d: %w", i+1, err)
		}
		atm, err := bootstrap.NewATMSwaptionHelper(percentQuote(sw.Vol), idx, m.today, expiry)
		if err != nil {
			return nil, fmt.Errorf("swaption %d: %w", i+1, err)
		}
		helpers[i] = atm
		if sw.Strike != 0 {
			if helpers[i], err = bootstrap.NewSwaptionHelper(atm.Quote(), idx, atm.Expiry(), sw.Strike/100,
				bootstrap.RelativePriceError); err != nil {
				return nil, fmt.Errorf("swaption %d: %w", i+1, err)
			}
		}
	}

	model, err := bootstrap.NewPiecewiseVolModel(m.today, m.curveDC, helpers, nil, nil,
		bootstrap.WithLogger(env.Log), bootstrap.WithMetrics(env.Metrics),
		bootstrap.WithAccuracy(accuracyOr(in.Accuracy, env.Config.Bootstrap.Accuracy)))
	if err != nil {
		return nil, fmt.Errorf("swaptions: %w", err)
	}
	if err := model.Recalculate(vc); err != nil {
		return nil, fmt.Errorf("swaptions: %w", err)
	}

	out := &VolOutput{}
	steps, vols := model.StepDates(), model.Volatilities()
	for i, v := range vols {
		st := VolStep{Vol: env.Round(v * 100)}
		if i < len(steps) {
			st.Until = steps[i].Format(utils.DateLayout)
		}
		out.Steps = append(out.Steps, st)
	}
	for i, h := range helpers {
		t := model.TimeFromReference(h.Expiry())
		out.Swaptions = append(out.Swaptions, SwaptionFit{
			Expiry:    in.Swaptions[i].Expiry,
			Tenor:     in.Swaptions[i].Tenor,
			MarketVol: in.Swaptions[i].Vol,
			ModelVol:  env.Round(model.BlackVol(t, 0) * 100),
		})
	}
	return out, nil
}

func accuracyOr(acc, def float64) float64 {
	if acc > 0 {
		return acc
	}
	return def
}

func point(env cli.Env, c *bootstrap.PiecewiseCurve, d time.Time) Point {
	t := c.TimeFromReference(d)
	return Point{
		Date:           d.Format(utils.DateLayout),
		DiscountFactor: env.Round(c.Discount(t)),
		ZeroRate:       env.Round(c.ZeroRate(t) * 100),
	}
}

func report(env cli.Env, c *bootstrap.PiecewiseCurve, requested []time.Time) *CurveOutput {
	out := &CurveOutput{}
	for _, d := range c.Dates()[1:] {
		out.Pillars = append(out.Pillars, point(env, c, d))
	}
	for _, d := range requested {
		out.Requested = append(out.Requested, point(env, c, d))
	}
	return out
}
