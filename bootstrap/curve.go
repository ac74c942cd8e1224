// Package bootstrap calibrates discount curves to market quotes, one pillar
// at a time or globally, and jointly across curves that depend on each other.
package bootstrap

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/quote"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

// Bootstrapper fills the pillars of a PiecewiseCurve. An instance serves a
// single curve.
type Bootstrapper interface {
	register(c *PiecewiseCurve) error
	calculate(vc valuation.Context) error
}

// PiecewiseCurve interpolates log discount factors linearly between
// pillars placed at the helpers' pillar dates.
//
// Recalculate is the only mutating call. It publishes a new version on
// success and leaves the last good curve in place on failure. Reads must
// not run concurrently with Recalculate.
type PiecewiseCurve struct {
	termstructure.Axis
	helpers      []RateHelper
	bootstrapper Bootstrapper
	moving       bool
	group        *MultiCurve

	dates  []time.Time
	times  []float64
	logs   []float64
	active int

	valid       bool
	version     uint64
	evalDate    time.Time
	fingerprint uint64
}

// CurveOption configures a PiecewiseCurve.
type CurveOption func(*PiecewiseCurve)

// WithBootstrapper replaces the default iterative bootstrap.
func WithBootstrapper(b Bootstrapper) CurveOption {
	return func(c *PiecewiseCurve) { c.bootstrapper = b }
}

// WithMovingReference moves the reference date to the evaluation date on
// every recalculation.
func WithMovingReference() CurveOption {
	return func(c *PiecewiseCurve) { c.moving = true }
}

// NewPiecewiseCurve binds the helpers to a new curve. Nothing is computed
// until Recalculate.
func NewPiecewiseCurve(ref time.Time, dc utils.DayCount, helpers []RateHelper, opts ...CurveOption) (*PiecewiseCurve, error) {
	if len(helpers) == 0 {
		return nil, qerr.Invalid("no bootstrap helpers given")
	}
	for i, h := range helpers {
		if h == nil {
			return nil, qerr.Invalid("%s helper is nil", qerr.Ordinal(i+1))
		}
	}
	c := &PiecewiseCurve{
		Axis:    termstructure.Axis{Reference: ref, DayCount: dc},
		helpers: append([]RateHelper(nil), helpers...),
	}
	for _, opt := range opts {
		opt(c)
	}
	if ref.IsZero() && !c.moving {
		return nil, qerr.Invalid("reference date is required")
	}
	if c.bootstrapper == nil {
		b, err := NewIterative()
		if err != nil {
			return nil, err
		}
		c.bootstrapper = b
	}
	if err := c.bootstrapper.register(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Discount is NaN until the first successful recalculation.
func (c *PiecewiseCurve) Discount(t float64) float64 {
	if c.active == 0 {
		return math.NaN()
	}
	return math.Exp(termstructure.LogLinear(c.times[:c.active], c.logs[:c.active], t))
}

func (c *PiecewiseCurve) DiscountAt(d time.Time) float64 {
	return c.Discount(c.TimeFromReference(d))
}

func (c *PiecewiseCurve) ZeroRate(t float64) float64 {
	return termstructure.ContinuousZero(c.Discount, t)
}

func (c *PiecewiseCurve) ForwardRate(t1, t2 float64) float64 {
	return termstructure.ContinuousForward(c.Discount, t1, t2)
}

// Version increases with every published calibration.
func (c *PiecewiseCurve) Version() uint64 { return c.version }

// Valid reports whether a calibration has been published.
func (c *PiecewiseCurve) Valid() bool { return c.valid }

// Dates returns the pillar dates, reference date first.
func (c *PiecewiseCurve) Dates() []time.Time {
	return append([]time.Time(nil), c.dates[:c.active]...)
}

// Times returns the pillar times.
func (c *PiecewiseCurve) Times() []float64 {
	return append([]float64(nil), c.times[:c.active]...)
}

// Data returns the pillar discount factors.
func (c *PiecewiseCurve) Data() []float64 {
	out := make([]float64, c.active)
	for i := range out {
		out[i] = math.Exp(c.logs[i])
	}
	return out
}

// Recalculate calibrates the curve unless the evaluation date, the quotes
// and the curves the helpers read are unchanged since the last success.
// Members of a MultiCurve recalculate the whole group.
func (c *PiecewiseCurve) Recalculate(vc valuation.Context) error {
	if c.group != nil {
		return c.group.Recalculate(vc)
	}
	if err := vc.Validate(); err != nil {
		return err
	}
	if err := c.refreshDependencies(vc); err != nil {
		return err
	}
	if c.upToDate(vc) {
		return nil
	}
	return c.bootstrapper.calculate(vc)
}

func (c *PiecewiseCurve) upToDate(vc valuation.Context) bool {
	return c.valid && c.evalDate.Equal(vc.EvaluationDate) && c.fingerprint == c.dependencyFingerprint()
}

// external lists the curves read by the helpers that are neither this
// curve nor calibrated with it.
func (c *PiecewiseCurve) external() []termstructure.YieldCurve {
	var out []termstructure.YieldCurve
	for _, h := range c.helpers {
		d, ok := h.(dependent)
		if !ok {
			continue
		}
		for _, y := range d.dependencies() {
			if pc, ok := y.(*PiecewiseCurve); ok && (pc == c || c.group.contains(pc)) {
				continue
			}
			out = append(out, y)
		}
	}
	return out
}

// refreshDependencies recalculates the piecewise curves the helpers read.
// Curves reading each other must be calibrated jointly through a MultiCurve.
func (c *PiecewiseCurve) refreshDependencies(vc valuation.Context) error {
	for _, y := range c.external() {
		pc, ok := y.(*PiecewiseCurve)
		if !ok {
			continue
		}
		if err := pc.Recalculate(vc); err != nil {
			return fmt.Errorf("dependent curve: %w", err)
		}
	}
	return nil
}

func (c *PiecewiseCurve) dependencyFingerprint() uint64 {
	deps := make([]quote.Versioned, 0, len(c.helpers))
	for _, h := range c.helpers {
		deps = append(deps, h.Quote())
	}
	for _, y := range c.external() {
		deps = append(deps, y)
	}
	return quote.Fingerprint(deps...)
}

// layout sorts the helpers by pillar, drops the expired ones and places
// the pillars. Pillar values are left for the bootstrapper to fill.
func (c *PiecewiseCurve) layout(vc valuation.Context, additional []time.Time) ([]RateHelper, error) {
	if c.moving {
		c.Reference = vc.EvaluationDate
	}
	sorted := append([]RateHelper(nil), c.helpers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PillarDate().Before(sorted[j].PillarDate())
	})
	first := 0
	for first < len(sorted) && !sorted[first].PillarDate().After(c.Reference) {
		first++
	}
	alive := sorted[first:]

	dates := make([]time.Time, 0, len(alive)+len(additional)+1)
	dates = append(dates, c.Reference)
	for _, h := range alive {
		dates = append(dates, h.PillarDate())
	}
	for _, d := range additional {
		if d.After(c.Reference) {
			dates = append(dates, d)
		}
	}
	extra := len(dates) - 1 - len(alive)
	if len(dates) < 2 {
		return nil, qerr.Invalid("not enough alive instruments (%d) + additional dates (%d) = %d provided, 1 required",
			len(alive), extra, len(alive)+extra)
	}
	utils.SortDates(dates[1:])
	for i := 1; i < len(dates); i++ {
		if dates[i].Equal(dates[i-1]) {
			return nil, qerr.Invalid("duplicate dates among alive instruments and additional dates (%s)",
				dates[i].Format(utils.DateLayout))
		}
	}
	for j := first; j < len(sorted); j++ {
		if !sorted[j].Quote().IsValid() {
			return nil, qerr.Stale("%s helper (maturity: %s) has an invalid quote",
				qerr.Ordinal(j-first+1), sorted[j].PillarDate().Format(utils.DateLayout))
		}
	}

	c.dates = dates
	c.times = make([]float64, len(dates))
	for i, d := range dates {
		c.times[i] = c.TimeFromReference(d)
	}
	c.logs = make([]float64, len(dates))
	c.active = 1
	return alive, nil
}

// state is a published calibration kept for rollback.
type state struct {
	reference time.Time
	dates     []time.Time
	times     []float64
	logs      []float64
	active    int
}

func (c *PiecewiseCurve) save() state {
	return state{reference: c.Reference, dates: c.dates, times: c.times, logs: c.logs, active: c.active}
}

func (c *PiecewiseCurve) restore(s state) {
	c.Reference, c.dates, c.times, c.logs, c.active = s.reference, s.dates, s.times, s.logs, s.active
}

// publish marks the filled pillars as the current calibration.
func (c *PiecewiseCurve) publish(vc valuation.Context) {
	c.active = len(c.times)
	c.valid = true
	c.version++
	c.evalDate = vc.EvaluationDate
	c.fingerprint = c.dependencyFingerprint()
}
