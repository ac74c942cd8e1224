package quote

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/meenmo/quantcore/qerr"
)

// Versioned is anything whose state changes are tracked by a counter.
type Versioned interface {
	Version() uint64
}

// Quote is an observable scalar market value.
type Quote interface {
	Versioned
	Value() (float64, error)
	IsValid() bool
}

// SimpleQuote is a settable quote. A quote built without a value is invalid
// until SetValue is called.
type SimpleQuote struct {
	mu      sync.RWMutex
	value   float64
	valid   bool
	version atomic.Uint64
}

// NewSimpleQuote returns a valid quote holding v.
func NewSimpleQuote(v float64) *SimpleQuote {
	q := &SimpleQuote{}
	q.SetValue(v)
	return q
}

// Value returns the current value or ErrStaleQuote when invalid.
func (q *SimpleQuote) Value() (float64, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.valid {
		return 0, qerr.Stale("invalid simple quote: no value available")
	}
	return q.value, nil
}

// IsValid reports whether a value is available.
func (q *SimpleQuote) IsValid() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.valid
}

// SetValue stores v and returns the difference to the previous value.
// A NaN marks the quote invalid.
func (q *SimpleQuote) SetValue(v float64) float64 {
	q.mu.Lock()
	diff := v - q.value
	q.value = v
	q.valid = !math.IsNaN(v)
	q.mu.Unlock()
	q.version.Add(1)
	return diff
}

// Invalidate drops the value; subsequent reads fail.
func (q *SimpleQuote) Invalidate() {
	q.mu.Lock()
	q.valid = false
	q.mu.Unlock()
	q.version.Add(1)
}

// Version is bumped on every mutation.
func (q *SimpleQuote) Version() uint64 {
	return q.version.Load()
}

// Fingerprint sums the versions of deps. Nil entries are skipped.
// A dependent caches the fingerprint it computed against and recalculates
// when it changes.
func Fingerprint(deps ...Versioned) uint64 {
	var sum uint64
	for _, d := range deps {
		if d == nil {
			continue
		}
		sum += d.Version()
	}
	return sum
}

// Values reads every quote, failing on the first invalid one.
func Values(qs []Quote) ([]float64, error) {
	out := make([]float64, len(qs))
	for i, q := range qs {
		v, err := q.Value()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
