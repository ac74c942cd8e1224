// Package instrument implements lazily-calculated instruments whose results
// are cached until the evaluation date or one of their inputs changes.
package instrument

import (
	"maps"
	"sync"
	"time"

	"github.com/meenmo/quantcore/valuation"
)

// Greeks are the sensitivities an engine may fill. Unset greeks are zero.
type Greeks struct {
	Delta              float64 `json:"delta"`
	DeltaForward       float64 `json:"deltaForward"`
	Gamma              float64 `json:"gamma"`
	Theta              float64 `json:"theta"`
	ThetaPerDay        float64 `json:"thetaPerDay"`
	Vega               float64 `json:"vega"`
	Rho                float64 `json:"rho"`
	DividendRho        float64 `json:"dividendRho"`
	Vanna              float64 `json:"vanna"`
	Volga              float64 `json:"volga"`
	StrikeSensitivity  float64 `json:"strikeSensitivity"`
	StrikeGamma        float64 `json:"strikeGamma"`
	Elasticity         float64 `json:"elasticity"`
	ITMCashProbability float64 `json:"itmCashProbability"`
}

// Results is what a calculation produces.
type Results struct {
	Value         float64            `json:"value"`
	ErrorEstimate float64            `json:"errorEstimate"`
	Greeks        Greeks             `json:"greeks"`
	Additional    map[string]float64 `json:"additional,omitempty"`
	ValuationDate time.Time          `json:"valuationDate"`
}

func (r Results) clone() Results {
	r.Additional = maps.Clone(r.Additional)
	return r
}

// Lazy is the two-phase cache shared by instruments: Calculate is the only
// mutation, Results is a pure read.
type Lazy struct {
	mu          sync.Mutex
	computed    bool
	date        time.Time
	fingerprint uint64
	results     Results
}

// Calculate runs compute iff nothing was computed yet, the evaluation date
// moved, or the dependency fingerprint changed. A failed run leaves the
// cache empty.
func (l *Lazy) Calculate(vc valuation.Context, fingerprint uint64, compute func() (Results, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.computed && l.date.Equal(vc.EvaluationDate) && l.fingerprint == fingerprint {
		return nil
	}
	l.computed = false
	res, err := compute()
	if err != nil {
		return err
	}
	res.ValuationDate = vc.EvaluationDate
	l.results = res
	l.date = vc.EvaluationDate
	l.fingerprint = fingerprint
	l.computed = true
	return nil
}

// Results returns the cached results and whether any exist.
func (l *Lazy) Results() (Results, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.results.clone(), l.computed
}

// Reset forces the next Calculate to recompute.
func (l *Lazy) Reset() {
	l.mu.Lock()
	l.computed = false
	l.mu.Unlock()
}
