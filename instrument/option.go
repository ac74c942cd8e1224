package instrument

import (
	"github.com/meenmo/quantcore/payoff"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/valuation"
)

// OptionArguments is what an option engine reads.
type OptionArguments struct {
	Payoff   payoff.Striked
	Exercise payoff.Exercise
}

// OptionEngine prices options. Version fingerprints the engine's market
// inputs so that cached results go stale when they change.
type OptionEngine interface {
	Name() string
	Calculate(vc valuation.Context, args OptionArguments) (Results, error)
	Version() uint64
}

// VanillaOption is a single-asset option with a replaceable engine.
type VanillaOption struct {
	Lazy
	args   OptionArguments
	engine OptionEngine
}

// NewVanillaOption requires at least one exercise date.
func NewVanillaOption(p payoff.Striked, ex payoff.Exercise) (*VanillaOption, error) {
	if len(ex.Dates) == 0 {
		return nil, qerr.Invalid("no exercise date given")
	}
	return &VanillaOption{args: OptionArguments{Payoff: p, Exercise: ex}}, nil
}

// Arguments returns the payoff and exercise.
func (o *VanillaOption) Arguments() OptionArguments { return o.args }

// SetEngine replaces the engine and drops cached results.
func (o *VanillaOption) SetEngine(e OptionEngine) {
	o.engine = e
	o.Reset()
}

// IsExpired reports whether the last exercise date has passed.
func (o *VanillaOption) IsExpired(vc valuation.Context) bool {
	return vc.HasOccurred(o.args.Exercise.LastDate())
}

// Calculate refreshes the cache. Expired options report zero without
// calling the engine.
func (o *VanillaOption) Calculate(vc valuation.Context) error {
	if err := vc.Validate(); err != nil {
		return err
	}
	if o.IsExpired(vc) {
		return o.Lazy.Calculate(vc, 0, func() (Results, error) { return Results{}, nil })
	}
	if o.engine == nil {
		return qerr.Invalid("null pricing engine")
	}
	return o.Lazy.Calculate(vc, o.engine.Version()+1, func() (Results, error) {
		return o.engine.Calculate(vc, o.args)
	})
}

// NPV calculates if needed and returns the value.
func (o *VanillaOption) NPV(vc valuation.Context) (float64, error) {
	if err := o.Calculate(vc); err != nil {
		return 0, err
	}
	r, _ := o.Results()
	return r.Value, nil
}
