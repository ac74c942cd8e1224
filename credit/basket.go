// Package credit models the loss distribution of a basket of defaultable
// names conditional on a latent market factor.
package credit

import (
	"math"
	"sync"
	"time"

	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/termstructure"
	"github.com/meenmo/quantcore/utils"
	"github.com/meenmo/quantcore/valuation"
)

// Basket is a pool of names and the tranche written on it. Attachment and
// detachment are fractions of the total notional.
type Basket struct {
	names      []string
	notionals  []float64
	curves     []termstructure.DefaultCurve
	recoveries []float64
	attach     float64
	detach     float64

	mu       sync.RWMutex
	defaults map[int]time.Time
}

// NewBasket checks that every per-name array has one entry per name and
// that 0 <= attach < detach <= 1.
func NewBasket(names []string, notionals []float64, curves []termstructure.DefaultCurve,
	recoveries []float64, attach, detach float64) (*Basket, error) {
	n := len(names)
	if n == 0 {
		return nil, qerr.Invalid("empty basket")
	}
	if len(notionals) != n {
		return nil, qerr.Mismatch("notionals", len(notionals), n)
	}
	if len(curves) != n {
		return nil, qerr.Mismatch("default curves", len(curves), n)
	}
	if len(recoveries) != n {
		return nil, qerr.Mismatch("recoveries", len(recoveries), n)
	}
	if !(attach >= 0 && attach < detach && detach <= 1) {
		return nil, qerr.Invalid("tranche attachment (%g) and detachment (%g) must satisfy 0 <= a < d <= 1", attach, detach)
	}
	for i := range names {
		if notionals[i] < 0 {
			return nil, qerr.Invalid("negative notional (%g) for %s", notionals[i], names[i])
		}
		if recoveries[i] < 0 || recoveries[i] > 1 {
			return nil, qerr.Invalid("recovery (%g) for %s must be in [0, 1]", recoveries[i], names[i])
		}
		if curves[i] == nil {
			return nil, qerr.Invalid("no default curve for %s", names[i])
		}
	}
	return &Basket{
		names:      append([]string(nil), names...),
		notionals:  append([]float64(nil), notionals...),
		curves:     append([]termstructure.DefaultCurve(nil), curves...),
		recoveries: append([]float64(nil), recoveries...),
		attach:     attach,
		detach:     detach,
		defaults:   make(map[int]time.Time),
	}, nil
}

// Size is the number of names, defaulted or not.
func (b *Basket) Size() int { return len(b.names) }

// Names returns the name identifiers.
func (b *Basket) Names() []string { return append([]string(nil), b.names...) }

// Recoveries returns the recovery rates.
func (b *Basket) Recoveries() []float64 { return append([]float64(nil), b.recoveries...) }

// TotalNotional sums every notional.
func (b *Basket) TotalNotional() float64 {
	var s float64
	for _, n := range b.notionals {
		s += n
	}
	return s
}

// AttachmentRatio is the tranche attachment as a fraction of the pool.
func (b *Basket) AttachmentRatio() float64 { return b.attach }

// DetachmentRatio is the tranche detachment as a fraction of the pool.
func (b *Basket) DetachmentRatio() float64 { return b.detach }

// AttachmentAmount is the attachment in notional units.
func (b *Basket) AttachmentAmount() float64 { return b.attach * b.TotalNotional() }

// DetachmentAmount is the detachment in notional units.
func (b *Basket) DetachmentAmount() float64 { return b.detach * b.TotalNotional() }

// MarkDefault records a realized default.
func (b *Basket) MarkDefault(name int, date time.Time) error {
	if name < 0 || name >= len(b.names) {
		return qerr.Invalid("name index %d out of range [0, %d)", name, len(b.names))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if prev, ok := b.defaults[name]; ok {
		return qerr.Invalid("%s already defaulted on %s", b.names[name], prev.Format(utils.DateLayout))
	}
	b.defaults[name] = date
	return nil
}

func (b *Basket) defaultedBy(name int, d time.Time) bool {
	when, ok := b.defaults[name]
	return ok && !when.After(d)
}

// LiveList returns the indices of names not defaulted on or before d.
func (b *Basket) LiveList(d time.Time) []int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	live := make([]int, 0, len(b.names))
	for i := range b.names {
		if !b.defaultedBy(i, d) {
			live = append(live, i)
		}
	}
	return live
}

// SettledLoss is the realized loss from defaults on or before d.
func (b *Basket) SettledLoss(d time.Time) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var loss float64
	for i := range b.names {
		if b.defaultedBy(i, d) {
			loss += b.notionals[i] * (1 - b.recoveries[i])
		}
	}
	return loss
}

// RemainingNotional sums the notionals of names alive at d.
func (b *Basket) RemainingNotional(d time.Time) float64 {
	var s float64
	for _, i := range b.LiveList(d) {
		s += b.notionals[i]
	}
	return s
}

// RemainingAttachmentAmount is the tranche attachment left after realized losses.
func (b *Basket) RemainingAttachmentAmount(d time.Time) float64 {
	return math.Max(b.AttachmentAmount()-b.SettledLoss(d), 0)
}

// RemainingDetachmentAmount is the tranche detachment left after realized losses.
func (b *Basket) RemainingDetachmentAmount(d time.Time) float64 {
	return math.Max(b.DetachmentAmount()-b.SettledLoss(d), 0)
}

// pool is the view of a basket a loss model works on: names alive at the
// evaluation date with their default probabilities to the target date.
type pool struct {
	live       []int
	notionals  []float64
	probs      []float64
	recoveries []float64
	attach     float64
	detach     float64
	notional   float64
}

func (b *Basket) pool(vc valuation.Context, d time.Time) (pool, error) {
	if err := vc.Validate(); err != nil {
		return pool{}, err
	}
	if d.Before(vc.EvaluationDate) {
		return pool{}, qerr.Invalid("loss date (%s) before evaluation date (%s)",
			d.Format(utils.DateLayout), vc.EvaluationDate.Format(utils.DateLayout))
	}
	p := pool{
		live:   b.LiveList(vc.EvaluationDate),
		attach: b.RemainingAttachmentAmount(vc.EvaluationDate),
		detach: b.RemainingDetachmentAmount(vc.EvaluationDate),
	}
	for _, i := range p.live {
		pd := b.curves[i].DefaultProbabilityAt(d)
		if math.IsNaN(pd) {
			return pool{}, qerr.Stale("default curve for %s has an invalid quote", b.names[i])
		}
		p.notionals = append(p.notionals, b.notionals[i])
		p.probs = append(p.probs, pd)
		p.recoveries = append(p.recoveries, b.recoveries[i])
		p.notional += b.notionals[i]
	}
	return p, nil
}

// trancheLoss clips a pool loss to the tranche.
func (p pool) trancheLoss(loss float64) float64 {
	return math.Min(math.Max(loss-p.attach, 0), p.detach-p.attach)
}
