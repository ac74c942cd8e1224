package termstructure

import (
	"math"
	"time"

	"github.com/meenmo/quantcore/quote"
	"github.com/meenmo/quantcore/utils"
)

// FlatForward is a curve with a single continuously compounded rate.
// Discount returns NaN while the rate quote is invalid.
type FlatForward struct {
	Axis
	rate quote.Quote
}

// NewFlatForward builds a flat curve off a rate quote.
func NewFlatForward(ref time.Time, rate quote.Quote, dc utils.DayCount) *FlatForward {
	return &FlatForward{Axis: Axis{Reference: ref, DayCount: dc}, rate: rate}
}

// NewFlatForwardRate builds a flat curve off a fixed rate.
func NewFlatForwardRate(ref time.Time, rate float64, dc utils.DayCount) *FlatForward {
	return NewFlatForward(ref, quote.NewSimpleQuote(rate), dc)
}

func (f *FlatForward) Discount(t float64) float64 {
	r, err := f.rate.Value()
	if err != nil {
		return math.NaN()
	}
	return math.Exp(-r * t)
}

func (f *FlatForward) DiscountAt(d time.Time) float64 {
	return f.Discount(f.TimeFromReference(d))
}

func (f *FlatForward) ZeroRate(t float64) float64 {
	return ContinuousZero(f.Discount, t)
}

func (f *FlatForward) ForwardRate(t1, t2 float64) float64 {
	return ContinuousForward(f.Discount, t1, t2)
}

func (f *FlatForward) Version() uint64 { return f.rate.Version() }
