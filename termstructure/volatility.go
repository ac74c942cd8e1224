package termstructure

import (
	"math"
	"time"

	"github.com/meenmo/quantcore/quote"
	"github.com/meenmo/quantcore/utils"
)

// BlackVolCurve is a Black volatility term structure.
type BlackVolCurve interface {
	ReferenceDate() time.Time
	TimeFromReference(d time.Time) float64
	BlackVol(t, strike float64) float64
	BlackVariance(t, strike float64) float64
	Version() uint64
}

// BlackConstantVol has the same volatility for every maturity and strike.
type BlackConstantVol struct {
	Axis
	vol quote.Quote
}

// NewBlackConstantVol builds a flat surface off a volatility quote.
func NewBlackConstantVol(ref time.Time, vol quote.Quote, dc utils.DayCount) *BlackConstantVol {
	return &BlackConstantVol{Axis: Axis{Reference: ref, DayCount: dc}, vol: vol}
}

// BlackVol returns NaN while the volatility quote is invalid.
func (b *BlackConstantVol) BlackVol(_, _ float64) float64 {
	v, err := b.vol.Value()
	if err != nil {
		return math.NaN()
	}
	return v
}

func (b *BlackConstantVol) BlackVariance(t, strike float64) float64 {
	v := b.BlackVol(t, strike)
	return v * v * t
}

func (b *BlackConstantVol) Version() uint64 { return b.vol.Version() }
