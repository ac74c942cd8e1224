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

// defaultVol seeds step volatilities that were not given.
const defaultVol = 0.2

var (
	_ termstructure.BlackVolCurve = (*PiecewiseVolModel)(nil)
	_ Contributor                 = (*PiecewiseVolModel)(nil)
)

// PiecewiseVolModel is a Black volatility term structure whose
// instantaneous volatility is constant between step dates: sigma[0] up to
// the first step, sigma[i] between steps i-1 and i, and the last value
// beyond the last step. Its parameter vector is calibrated to swaption
// helpers in one least-squares solve.
//
// Recalculate is the only mutating call; reads must not run concurrently
// with it.
type PiecewiseVolModel struct {
	termstructure.Axis
	helpers []*SwaptionHelper
	weights []float64
	steps   []time.Time
	opts    options

	times       []float64
	vols        []float64
	free        []int
	points      []swaptionPoint
	saved       []float64
	savedPoints []swaptionPoint

	valid       bool
	version     uint64
	evalDate    time.Time
	fingerprint uint64
}

// NewPiecewiseVolModel binds the helpers to a model with the given step
// dates and starting volatilities. Without steps, every distinct helper
// expiry but the last becomes a step. Without vols, every step starts at
// 20%.
func NewPiecewiseVolModel(ref time.Time, dc utils.DayCount, helpers []*SwaptionHelper,
	steps []time.Time, vols []float64, opts ...Option) (*PiecewiseVolModel, error) {
	if ref.IsZero() {
		return nil, qerr.Invalid("reference date is required")
	}
	if len(helpers) == 0 {
		return nil, qerr.Invalid("no calibration helpers given")
	}
	for i, h := range helpers {
		if h == nil {
			return nil, qerr.Invalid("%s helper is nil", qerr.Ordinal(i+1))
		}
	}
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	if o.weights != nil && len(o.weights) != len(helpers) {
		return nil, qerr.Mismatch("calibration weights", len(o.weights), len(helpers))
	}
	order := make([]int, len(helpers))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return helpers[order[i]].Expiry().Before(helpers[order[j]].Expiry())
	})
	m := &PiecewiseVolModel{
		Axis:    termstructure.Axis{Reference: ref, DayCount: dc},
		helpers: make([]*SwaptionHelper, len(helpers)),
		weights: make([]float64, len(helpers)),
		opts:    o,
	}
	for i, k := range order {
		m.helpers[i] = helpers[k]
		m.weights[i] = 1
		if o.weights != nil {
			if !(o.weights[k] >= 0) {
				return nil, qerr.Invalid("%s calibration weight (%g) must be non-negative", qerr.Ordinal(k+1), o.weights[k])
			}
			m.weights[i] = o.weights[k]
		}
	}

	if steps == nil {
		for _, h := range m.helpers {
			if n := len(steps); n == 0 || h.Expiry().After(steps[n-1]) {
				steps = append(steps, h.Expiry())
			}
		}
		steps = steps[:len(steps)-1]
	}
	m.steps = append([]time.Time(nil), steps...)
	m.times = make([]float64, len(steps))
	for i, d := range m.steps {
		m.times[i] = m.TimeFromReference(d)
		if m.times[i] <= 0 || (i > 0 && m.times[i] <= m.times[i-1]) {
			return nil, qerr.Invalid("%s step date %s is not increasing after the reference date",
				qerr.Ordinal(i+1), d.Format(utils.DateLayout))
		}
	}

	n := len(steps) + 1
	switch {
	case vols == nil:
		m.vols = make([]float64, n)
		for i := range m.vols {
			m.vols[i] = defaultVol
		}
	case len(vols) != n:
		return nil, qerr.Mismatch("step volatilities", len(vols), n)
	default:
		for i, v := range vols {
			if !(v > 0) {
				return nil, qerr.Invalid("%s step volatility (%g) must be positive", qerr.Ordinal(i+1), v)
			}
		}
		m.vols = append([]float64(nil), vols...)
	}

	if o.fixed != nil && len(o.fixed) != n {
		return nil, qerr.Mismatch("fixed parameter flags", len(o.fixed), n)
	}
	for i := 0; i < n; i++ {
		if o.fixed == nil || !o.fixed[i] {
			m.free = append(m.free, i)
		}
	}
	if len(m.free) == 0 {
		return nil, qerr.Invalid("every step volatility is fixed")
	}
	return m, nil
}

// Volatilities returns the step volatilities.
func (m *PiecewiseVolModel) Volatilities() []float64 { return append([]float64(nil), m.vols...) }

// StepDates returns the dates the volatility changes at.
func (m *PiecewiseVolModel) StepDates() []time.Time { return append([]time.Time(nil), m.steps...) }

// Helpers returns the helpers sorted by expiry.
func (m *PiecewiseVolModel) Helpers() []*SwaptionHelper {
	return append([]*SwaptionHelper(nil), m.helpers...)
}

// Version increases with every published calibration.
func (m *PiecewiseVolModel) Version() uint64 { return m.version }

// Valid reports whether a calibration has been published.
func (m *PiecewiseVolModel) Valid() bool { return m.valid }

// BlackVariance integrates sigma^2 from the reference date to t.
func (m *PiecewiseVolModel) BlackVariance(t, _ float64) float64 {
	if t <= 0 {
		return 0
	}
	var v, prev float64
	for i, s := range m.vols {
		end := math.Inf(1)
		if i < len(m.times) {
			end = m.times[i]
		}
		if t <= end {
			return v + s*s*(t-prev)
		}
		v += s * s * (end - prev)
		prev = end
	}
	return v
}

// BlackVol is the root mean square volatility to t.
func (m *PiecewiseVolModel) BlackVol(t, strike float64) float64 {
	if t <= 0 {
		return m.vols[0]
	}
	return math.Sqrt(m.BlackVariance(t, strike) / t)
}

// CalibrationErrors evaluates every helper against the current parameters,
// in expiry order.
func (m *PiecewiseVolModel) CalibrationErrors() ([]float64, error) {
	if !m.valid {
		return nil, qerr.Invalid("volatility model is not calibrated")
	}
	out := make([]float64, len(m.points))
	for i, p := range m.points {
		e, err := p.calibrationError(m.BlackVariance(p.t, p.strike))
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// Recalculate brings the curves the helpers read up to date and
// recalibrates when a quote, a curve or the evaluation date changed. The
// last good calibration survives a failure.
func (m *PiecewiseVolModel) Recalculate(vc valuation.Context) error {
	if err := vc.Validate(); err != nil {
		return err
	}
	for _, h := range m.helpers {
		for _, y := range h.dependencies() {
			pc, ok := y.(*PiecewiseCurve)
			if !ok {
				continue
			}
			if err := pc.Recalculate(vc); err != nil {
				return fmt.Errorf("swaption curve: %w", err)
			}
		}
	}
	if m.valid && m.evalDate.Equal(vc.EvaluationDate) && m.fingerprint == m.dependencyFingerprint() {
		return nil
	}
	return solve(vc, []Contributor{m}, m.opts, "volatility calibration")
}

func (m *PiecewiseVolModel) dependencyFingerprint() uint64 {
	deps := make([]quote.Versioned, 0, 2*len(m.helpers))
	for _, h := range m.helpers {
		deps = append(deps, h.Quote(), h.Index())
	}
	return quote.Fingerprint(deps...)
}

// SetupCostFunction evaluates the helpers on the current curves and
// returns the number of free volatilities.
func (m *PiecewiseVolModel) SetupCostFunction(vc valuation.Context) (int, error) {
	m.saved = append(m.saved[:0], m.vols...)
	m.savedPoints = m.points
	points := make([]swaptionPoint, len(m.helpers))
	for i, h := range m.helpers {
		if !h.Quote().IsValid() {
			return 0, qerr.Stale("%s swaption helper (expiry: %s) has an invalid quote",
				qerr.Ordinal(i+1), h.Expiry().Format(utils.DateLayout))
		}
		p, err := h.point(m.TimeFromReference(h.Expiry()))
		if err != nil {
			return 0, fmt.Errorf("%s swaption helper: %w", qerr.Ordinal(i+1), err)
		}
		points[i] = p
	}
	m.points = points
	return len(m.free), nil
}

// Guess starts from the current volatilities in log coordinates.
func (m *PiecewiseVolModel) Guess() []float64 {
	x := make([]float64, len(m.free))
	for k, i := range m.free {
		x[k] = math.Log(m.vols[i])
	}
	return x
}

// SetCostFunctionArgument maps x onto the free volatilities.
func (m *PiecewiseVolModel) SetCostFunctionArgument(x []float64) {
	for k, i := range m.free {
		m.vols[i] = math.Exp(x[k])
	}
}

// EvaluateCostFunction returns the weighted calibration errors.
func (m *PiecewiseVolModel) EvaluateCostFunction(vc valuation.Context) ([]float64, error) {
	out := make([]float64, len(m.points))
	for i, p := range m.points {
		e, err := p.calibrationError(m.BlackVariance(p.t, p.strike))
		if err != nil {
			return nil, err
		}
		out[i] = e * math.Sqrt(m.weights[i])
	}
	return out, nil
}

// SetToValid publishes the solved volatilities.
func (m *PiecewiseVolModel) SetToValid(vc valuation.Context) {
	m.valid = true
	m.version++
	m.evalDate = vc.EvaluationDate
	m.fingerprint = m.dependencyFingerprint()
}

// Rollback restores the last published volatilities.
func (m *PiecewiseVolModel) Rollback() {
	if m.saved != nil {
		m.vols = append(m.vols[:0], m.saved...)
	}
	m.points = m.savedPoints
}
