package credit

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/quote"
	"github.com/meenmo/quantcore/utils"
)

// LatentModel is a factor copula: name i defaults by t when
// Y_i = sum_k a_ik M_k + sqrt(1 - sum_k a_ik^2) Z_i falls below
// InverseCumulativeY(P_i(t)).
type LatentModel interface {
	NumFactors() int
	Size() int
	InverseCumulativeY(p float64, name int) float64
	// DefaultThreshold is the threshold the loss models condition on; it
	// may differ from InverseCumulativeY to absorb integration error.
	DefaultThreshold(p float64, name int) float64
	ConditionalDefaultProbabilityInvP(invP float64, name int, m []float64) float64
	// ConditionalRecovery is the recovery of name given the factor;
	// constant-loss models return recovery unchanged.
	ConditionalRecovery(recovery float64, name int, m []float64) float64
	IntegratedExpectedValue(f func(m []float64) float64) float64
	IntegratedExpectedVector(f func(m []float64) []float64) []float64
}

// GaussianLatentModel is the Gaussian factor copula with constant recoveries,
// integrated with a tensor-product Gauss-Hermite rule.
type GaussianLatentModel struct {
	loadings [][]float64
	idio     []float64
	factors  int

	// homogeneous single-factor model driven by a correlation quote
	correl quote.Quote
	size   int

	nodes   []float64
	weights []float64
}

// NewGaussianLatentModel takes one row of factor loadings per name.
// Each row must have the same length and sum of squares below one.
func NewGaussianLatentModel(loadings [][]float64, order int) (*GaussianLatentModel, error) {
	if len(loadings) == 0 || len(loadings[0]) == 0 {
		return nil, qerr.Invalid("no factor loadings given")
	}
	k := len(loadings[0])
	m := &GaussianLatentModel{factors: k, size: len(loadings)}
	for i, row := range loadings {
		if len(row) != k {
			return nil, qerr.Mismatch("factor loadings for name "+qerr.Ordinal(i+1), len(row), k)
		}
		var ss float64
		for _, a := range row {
			ss += a * a
		}
		if ss >= 1 {
			return nil, qerr.Invalid("%s name loadings have squared norm %g, must be below 1", qerr.Ordinal(i+1), ss)
		}
		m.loadings = append(m.loadings, append([]float64(nil), row...))
		m.idio = append(m.idio, math.Sqrt(1-ss))
	}
	if err := m.setOrder(order); err != nil {
		return nil, err
	}
	return m, nil
}

// NewHomogeneousGaussianLatentModel is the one-factor model where every
// pair of names has asset correlation correl; loadings are sqrt(correl).
func NewHomogeneousGaussianLatentModel(correl quote.Quote, size, order int) (*GaussianLatentModel, error) {
	if size <= 0 {
		return nil, qerr.Invalid("basket size (%d) must be positive", size)
	}
	m := &GaussianLatentModel{factors: 1, correl: correl, size: size}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := m.setOrder(order); err != nil {
		return nil, err
	}
	return m, nil
}

func (g *GaussianLatentModel) setOrder(order int) error {
	if order < 2 {
		return qerr.Invalid("quadrature order (%d) must be at least 2", order)
	}
	g.nodes = make([]float64, order)
	g.weights = make([]float64, order)
	quad.Hermite{}.FixedLocations(g.nodes, g.weights, math.Inf(-1), math.Inf(1))
	// rescale from the e^{-x^2} weight to the standard normal density
	var sum float64
	for _, w := range g.weights {
		sum += w
	}
	for i := range g.nodes {
		g.nodes[i] *= math.Sqrt2
		g.weights[i] /= sum
	}
	return nil
}

// Validate checks that a quote-driven correlation is usable.
func (g *GaussianLatentModel) Validate() error {
	if g.correl == nil {
		return nil
	}
	rho, err := g.correl.Value()
	if err != nil {
		return err
	}
	if rho < 0 || rho >= 1 {
		return qerr.Invalid("correlation (%g) must be in [0, 1)", rho)
	}
	return nil
}

func (g *GaussianLatentModel) NumFactors() int { return g.factors }

func (g *GaussianLatentModel) Size() int { return g.size }

// loading returns the factor loadings and idiosyncratic weight of name.
func (g *GaussianLatentModel) loading(name int) ([]float64, float64) {
	if g.correl != nil {
		rho, err := g.correl.Value()
		if err != nil {
			return []float64{math.NaN()}, math.NaN()
		}
		return []float64{math.Sqrt(rho)}, math.Sqrt(1 - rho)
	}
	return g.loadings[name], g.idio[name]
}

// InverseCumulativeY is the default threshold; Y_i is standard normal.
func (g *GaussianLatentModel) InverseCumulativeY(p float64, _ int) float64 {
	return distuv.UnitNormal.Quantile(p)
}

// thresholdIterations caps the bisection in DefaultThreshold.
const thresholdIterations = 200

// DefaultThreshold is the threshold x for which the quadrature average of
// the conditional default probability equals p exactly, so that expected
// pool losses do not depend on the correlation.
//
// At high correlation the conditional probability approaches a step in the
// factor that a fixed Gauss-Hermite rule integrates poorly (64 nodes lose
// about 8% of the expected loss at rho = 0.99 with the plain quantile).
// Calibrating the threshold restores the first moment; tail measures of the
// loss distribution keep the discretization error of the rule, so raise the
// order when correlations approach one.
func (g *GaussianLatentModel) DefaultThreshold(p float64, name int) float64 {
	x := g.InverseCumulativeY(p, name)
	if p <= 0 || p >= 1 || math.IsNaN(x) {
		return x
	}
	gap := func(x float64) float64 {
		return g.IntegratedExpectedValue(func(m []float64) float64 {
			return g.ConditionalDefaultProbabilityInvP(x, name, m)
		}) - p
	}
	lo, hi := x, x
	for step := 0.5; gap(lo) > 0; step *= 2 {
		lo -= step
	}
	for step := 0.5; gap(hi) < 0; step *= 2 {
		hi += step
	}
	for i := 0; i < thresholdIterations && hi-lo > utils.Epsilon*(1+math.Abs(lo)); i++ {
		mid := lo + (hi-lo)/2
		if mid == lo || mid == hi {
			break
		}
		if gap(mid) < 0 {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo + (hi-lo)/2
}

// ConditionalDefaultProbabilityInvP is Phi((invP - a.m) / sqrt(1 - a.a)).
func (g *GaussianLatentModel) ConditionalDefaultProbabilityInvP(invP float64, name int, m []float64) float64 {
	a, idio := g.loading(name)
	var sumMs float64
	for k, ak := range a {
		sumMs += ak * m[k]
	}
	return distuv.UnitNormal.CDF((invP - sumMs) / idio)
}

// ConditionalDefaultProbability is the conditional probability given the
// unconditional one.
func (g *GaussianLatentModel) ConditionalDefaultProbability(p float64, name int, m []float64) float64 {
	return g.ConditionalDefaultProbabilityInvP(g.InverseCumulativeY(p, name), name, m)
}

func (g *GaussianLatentModel) ConditionalRecovery(recovery float64, _ int, _ []float64) float64 {
	return recovery
}

// forEachNode visits every tensor-product quadrature node with its weight.
func (g *GaussianLatentModel) forEachNode(visit func(m []float64, w float64)) {
	n := len(g.nodes)
	idx := make([]int, g.factors)
	m := make([]float64, g.factors)
	for {
		w := 1.0
		for k, i := range idx {
			m[k] = g.nodes[i]
			w *= g.weights[i]
		}
		visit(m, w)
		k := 0
		for ; k < g.factors; k++ {
			idx[k]++
			if idx[k] < n {
				break
			}
			idx[k] = 0
		}
		if k == g.factors {
			return
		}
	}
}

// IntegratedExpectedValue is E[f(M)] over the market factors.
func (g *GaussianLatentModel) IntegratedExpectedValue(f func(m []float64) float64) float64 {
	var sum float64
	g.forEachNode(func(m []float64, w float64) {
		sum += w * f(m)
	})
	return sum
}

// IntegratedExpectedVector is E[f(M)] element-wise. Every call of f must
// return a slice of the same length.
func (g *GaussianLatentModel) IntegratedExpectedVector(f func(m []float64) []float64) []float64 {
	var sum []float64
	g.forEachNode(func(m []float64, w float64) {
		v := f(m)
		if sum == nil {
			sum = make([]float64, len(v))
		}
		for i, x := range v {
			sum[i] += w * x
		}
	})
	return sum
}

// ProbOfDefault integrates the conditional probability back; it recovers p
// up to quadrature error.
func (g *GaussianLatentModel) ProbOfDefault(p float64, name int) float64 {
	inv := g.InverseCumulativeY(p, name)
	return g.IntegratedExpectedValue(func(m []float64) float64 {
		return g.ConditionalDefaultProbabilityInvP(inv, name, m)
	})
}

// DefaultCorrelation is the correlation of the default indicators of two
// names with default probabilities pi and pj.
func (g *GaussianLatentModel) DefaultCorrelation(pi, pj float64, i, j int) float64 {
	if i == j {
		return 1
	}
	invI := g.InverseCumulativeY(pi, i)
	invJ := g.InverseCumulativeY(pj, j)
	joint := g.IntegratedExpectedValue(func(m []float64) float64 {
		return g.ConditionalDefaultProbabilityInvP(invI, i, m) * g.ConditionalDefaultProbabilityInvP(invJ, j, m)
	})
	return (joint - pi*pj) / math.Sqrt(pi*(1-pi)*pj*(1-pj))
}

// Correlation is the latent-variable correlation matrix implied by the
// loadings. It fails when the matrix is not positive definite.
func (g *GaussianLatentModel) Correlation() (*mat.SymDense, error) {
	n := g.size
	c := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		ai, _ := g.loading(i)
		c.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			aj, _ := g.loading(j)
			var s float64
			for k := range ai {
				s += ai[k] * aj[k]
			}
			c.SetSym(i, j, s)
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(c); !ok {
		return nil, qerr.Numerical("latent correlation matrix is not positive definite")
	}
	return c, nil
}
