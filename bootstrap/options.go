package bootstrap

import (
	"log/slog"
	"time"

	"github.com/meenmo/quantcore/config"
	"github.com/meenmo/quantcore/logger"
	"github.com/meenmo/quantcore/metrics"
	"github.com/meenmo/quantcore/solver"
)

// Option configures a bootstrapper or a MultiCurve.
type Option func(*options)

type options struct {
	optimizer        solver.Optimizer
	endCriteria      *solver.EndCriteria
	accuracy         float64
	additionalDates  func() []time.Time
	additionalErrors func(*PiecewiseCurve) []float64
	weights          []float64
	fixed            []bool
	log              *slog.Logger
	metrics          *metrics.Metrics
}

// WithOptimizer replaces Levenberg-Marquardt in global solves.
func WithOptimizer(o solver.Optimizer) Option {
	return func(opts *options) { opts.optimizer = o }
}

// WithEndCriteria replaces the configured end criteria of global solves.
func WithEndCriteria(ec solver.EndCriteria) Option {
	return func(opts *options) { opts.endCriteria = &ec }
}

// WithAccuracy sets the required quote error. For a global solve it bounds
// the RMS of all residuals.
func WithAccuracy(acc float64) Option {
	return func(opts *options) { opts.accuracy = acc }
}

// WithAdditionalDates adds pillars without a helper of their own. Global
// bootstrap only.
func WithAdditionalDates(f func() []time.Time) Option {
	return func(opts *options) { opts.additionalDates = f }
}

// WithAdditionalErrors appends residuals computed from the curve under
// calibration, typically to constrain the additional pillars. Global
// bootstrap only.
func WithAdditionalErrors(f func(*PiecewiseCurve) []float64) Option {
	return func(opts *options) { opts.additionalErrors = f }
}

// WithWeights scales each squared calibration error, in helper order.
// Volatility calibration only.
func WithWeights(w []float64) Option {
	return func(opts *options) { opts.weights = append([]float64(nil), w...) }
}

// WithFixedParameters keeps the flagged step volatilities at their
// starting values. Volatility calibration only.
func WithFixedParameters(fixed []bool) Option {
	return func(opts *options) { opts.fixed = append([]bool(nil), fixed...) }
}

// WithLogger sets the logger; the process logger is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(opts *options) { opts.log = l }
}

// WithMetrics records calibration runs.
func WithMetrics(m *metrics.Metrics) Option {
	return func(opts *options) { opts.metrics = m }
}

func newOptions(opts []Option) (options, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	cfg := config.GetConfig().Bootstrap
	if o.accuracy == 0 {
		o.accuracy = cfg.Accuracy
	}
	if o.optimizer == nil {
		o.optimizer = solver.NewLevenbergMarquardt()
	}
	if o.endCriteria == nil {
		eps := func(v, def float64) float64 {
			if v == 0 {
				return def
			}
			return v
		}
		// An absolute gradient test must not stop the solve before the
		// residuals reach the accuracy.
		ec, err := solver.NewEndCriteria(cfg.MaxIterations, cfg.MaxStationaryStateIterations,
			eps(cfg.RootEpsilon, o.accuracy), eps(cfg.FunctionEpsilon, o.accuracy),
			eps(cfg.GradientNormEpsilon, o.accuracy*o.accuracy))
		if err != nil {
			return options{}, err
		}
		o.endCriteria = &ec
	}
	o.log = logger.OrDefault(o.log)
	return o, nil
}
