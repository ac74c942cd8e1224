package credit

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/meenmo/quantcore/utils"
)

const binomialName = "binomial"

// BinomialLossModel approximates the conditional loss distribution of a
// heterogeneous pool by a binomial law on n+1 equally spaced loss points,
// adjusted to match the conditional mean and variance of the pool.
type BinomialLossModel struct {
	*gridModel
}

// NewBinomialLossModel builds the model over a latent model.
func NewBinomialLossModel(latent LatentModel, opts ...Option) *BinomialLossModel {
	m := &BinomialLossModel{}
	m.gridModel = newGridModel(binomialName, latent, m.grid, opts)
	return m
}

func (b *BinomialLossModel) grid(p pool, inv []float64) ([]float64, conditionalFunc) {
	lm := b.latent
	n := len(p.live)

	// average loss fraction per name and unit of live notional
	aveLossFrct := lm.IntegratedExpectedValue(func(m []float64) float64 {
		return floats.Sum(conditionalLGDs(lm, p, m)) / (float64(n) * p.notional)
	})
	points := make([]float64, n+1)
	for i := range points {
		points[i] = float64(i) * aveLossFrct * p.notional
	}

	return points, func(m []float64) ([]float64, bool) {
		return binomialDensity(conditionalPDs(lm, p, inv, m), conditionalLGDs(lm, p, m))
	}
}

// binomialDensity is the adjusted binomial density over 0..n defaults for
// conditional default probabilities pds and loss amounts lgds.
func binomialDensity(pds, lgds []float64) ([]float64, bool) {
	n := len(pds)
	nf := float64(n)
	density := make([]float64, n+1)

	avgLgd := floats.Sum(lgds) / nf
	avgProb := 0.0
	if avgLgd > utils.Epsilon {
		avgProb = floats.Dot(pds, lgds) / (avgLgd * nf)
	}
	switch {
	case avgProb >= 1-utils.Epsilon:
		density[n] = 1
		return density, true
	case avgProb <= utils.Epsilon:
		density[0] = 1
		return density, true
	}

	m := avgProb * nf
	floorAve := math.Min(nf-1, math.Floor(m))
	ceilAve := floorAve + 1

	varianceBinom := avgProb * (1 - avgProb) / nf
	var variance float64
	for i, p := range pds {
		variance += p * (1 - p) * lgds[i] * lgds[i]
	}
	variance /= nf * nf * avgLgd * avgLgd

	sumAves := -math.Pow(ceilAve-m, 2) - (math.Pow(floorAve-m, 2)-math.Pow(ceilAve, 2))*(ceilAve-m)
	alpha := (variance*nf + sumAves) / (varianceBinom*nf + sumAves)

	// log-space pmf keeps (1-p)^n from underflowing in large pools
	lp, lq := math.Log(avgProb), math.Log1p(-avgProb)
	lgn, _ := math.Lgamma(nf + 1)
	for i := 0; i <= n; i++ {
		lgi, _ := math.Lgamma(float64(i) + 1)
		lgni, _ := math.Lgamma(nf - float64(i) + 1)
		density[i] = alpha * math.Exp(lgn-lgi-lgni+float64(i)*lp+(nf-float64(i))*lq)
	}
	eps := (1 - alpha) * (ceilAve - m)
	density[int(floorAve)] += eps
	density[int(ceilAve)] += 1 - alpha - eps
	return density, false
}
