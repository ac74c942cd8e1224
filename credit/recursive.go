package credit

import "math"

const recursiveName = "recursive"

// RecursiveLossModel builds the exact conditional loss distribution of the
// pool on a loss-unit grid by convolving names one at a time. The unit is
// the smallest positive loss given default divided by buckets; every name's
// loss is rounded to a whole number of units.
type RecursiveLossModel struct {
	*gridModel
	buckets int
}

// NewRecursiveLossModel builds the model over a latent model with the given
// number of sub-buckets per smallest loss (at least 1).
func NewRecursiveLossModel(latent LatentModel, buckets int, opts ...Option) *RecursiveLossModel {
	if buckets < 1 {
		buckets = 1
	}
	m := &RecursiveLossModel{buckets: buckets}
	m.gridModel = newGridModel(recursiveName, latent, m.grid, opts)
	return m
}

// Buckets is the number of sub-buckets per smallest loss.
func (r *RecursiveLossModel) Buckets() int { return r.buckets }

// lossUnits returns the loss unit and each name's loss in units.
func (r *RecursiveLossModel) lossUnits(p pool) (float64, []int) {
	unit := math.Inf(1)
	for k := range p.live {
		if lgd := p.notionals[k] * (1 - p.recoveries[k]); lgd > 0 {
			unit = math.Min(unit, lgd)
		}
	}
	weights := make([]int, len(p.live))
	if math.IsInf(unit, 1) {
		return 0, weights
	}
	unit /= float64(r.buckets)
	for k := range p.live {
		weights[k] = int(math.Floor(p.notionals[k]*(1-p.recoveries[k])/unit + 0.5))
	}
	return unit, weights
}

func (r *RecursiveLossModel) grid(p pool, inv []float64) ([]float64, conditionalFunc) {
	lm := r.latent
	unit, weights := r.lossUnits(p)
	size := 1
	for _, w := range weights {
		size += w
	}
	points := make([]float64, size)
	for j := range points {
		points[j] = float64(j) * unit
	}

	return points, func(m []float64) ([]float64, bool) {
		dist := make([]float64, size)
		dist[0] = 1
		top := 0
		for k, name := range p.live {
			w := weights[k]
			if w == 0 {
				continue
			}
			pd := lm.ConditionalDefaultProbabilityInvP(inv[k], name, m)
			top += w
			for j := top; j >= w; j-- {
				dist[j] = dist[j]*(1-pd) + dist[j-w]*pd
			}
			for j := w - 1; j >= 0; j-- {
				dist[j] *= 1 - pd
			}
		}
		return dist, false
	}
}
