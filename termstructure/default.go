package termstructure

import (
	"math"
	"time"

	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/quote"
	"github.com/meenmo/quantcore/utils"
)

// DefaultCurve gives the probability that an issuer survives to t.
type DefaultCurve interface {
	ReferenceDate() time.Time
	TimeFromReference(d time.Time) float64
	SurvivalProbability(t float64) float64
	DefaultProbability(t float64) float64
	DefaultProbabilityAt(d time.Time) float64
	Version() uint64
}

// FlatHazardRate is a default curve with constant hazard intensity.
type FlatHazardRate struct {
	Axis
	hazard quote.Quote
}

// NewFlatHazardRate builds a constant-intensity curve.
func NewFlatHazardRate(ref time.Time, hazard quote.Quote, dc utils.DayCount) *FlatHazardRate {
	return &FlatHazardRate{Axis: Axis{Reference: ref, DayCount: dc}, hazard: hazard}
}

// NewFlatHazardRateFromProbability picks the hazard rate giving default
// probability pd at horizon.
func NewFlatHazardRateFromProbability(ref, horizon time.Time, pd float64, dc utils.DayCount) (*FlatHazardRate, error) {
	if pd < 0 || pd >= 1 {
		return nil, qerr.Invalid("default probability (%g) must be in [0, 1)", pd)
	}
	t := utils.YearFraction(ref, horizon, dc)
	if t <= 0 {
		return nil, qerr.Invalid("horizon (%s) must be after reference date", horizon.Format(utils.DateLayout))
	}
	return NewFlatHazardRate(ref, quote.NewSimpleQuote(-math.Log(1-pd)/t), dc), nil
}

func (f *FlatHazardRate) SurvivalProbability(t float64) float64 {
	h, err := f.hazard.Value()
	if err != nil {
		return math.NaN()
	}
	if t <= 0 {
		return 1
	}
	return math.Exp(-h * t)
}

func (f *FlatHazardRate) DefaultProbability(t float64) float64 {
	return 1 - f.SurvivalProbability(t)
}

func (f *FlatHazardRate) DefaultProbabilityAt(d time.Time) float64 {
	return f.DefaultProbability(f.TimeFromReference(d))
}

func (f *FlatHazardRate) Version() uint64 { return f.hazard.Version() }

// InterpolatedSurvivalCurve interpolates log survival probabilities
// linearly, i.e. piecewise-constant hazard between pillars.
type InterpolatedSurvivalCurve struct {
	Axis
	times []float64
	logs  []float64
}

// NewInterpolatedSurvivalCurve validates non-increasing survival probabilities.
func NewInterpolatedSurvivalCurve(ref time.Time, dates []time.Time, probs []float64, dc utils.DayCount) (*InterpolatedSurvivalCurve, error) {
	if len(dates) != len(probs) {
		return nil, qerr.Mismatch("survival probabilities", len(probs), len(dates))
	}
	c := &InterpolatedSurvivalCurve{Axis: Axis{Reference: ref, DayCount: dc}, times: []float64{0}, logs: []float64{0}}
	prev := 1.0
	for i, d := range dates {
		t := c.TimeFromReference(d)
		if t <= c.times[len(c.times)-1] {
			return nil, qerr.Invalid("survival pillar dates must be strictly increasing after the reference date (%s)", d.Format(utils.DateLayout))
		}
		if probs[i] <= 0 || probs[i] > prev {
			return nil, qerr.Invalid("survival probability (%g) at %s must be positive and non-increasing", probs[i], d.Format(utils.DateLayout))
		}
		prev = probs[i]
		c.times = append(c.times, t)
		c.logs = append(c.logs, math.Log(probs[i]))
	}
	return c, nil
}

func (c *InterpolatedSurvivalCurve) SurvivalProbability(t float64) float64 {
	if t <= 0 {
		return 1
	}
	return math.Exp(LogLinear(c.times, c.logs, t))
}

func (c *InterpolatedSurvivalCurve) DefaultProbability(t float64) float64 {
	return 1 - c.SurvivalProbability(t)
}

func (c *InterpolatedSurvivalCurve) DefaultProbabilityAt(d time.Time) float64 {
	return c.DefaultProbability(c.TimeFromReference(d))
}

func (c *InterpolatedSurvivalCurve) Version() uint64 { return 0 }
