package quote_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/quote"
)

func TestSimpleQuoteLifecycle(t *testing.T) {
	t.Parallel()

	q := quote.NewSimpleQuote(0.03)
	v, err := q.Value()
	require.NoError(t, err)
	assert.Equal(t, 0.03, v)
	v0 := q.Version()

	assert.InDelta(t, 0.01, q.SetValue(0.04), 1e-15)
	assert.Greater(t, q.Version(), v0)

	q.Invalidate()
	assert.False(t, q.IsValid())
	_, err = q.Value()
	assert.True(t, errors.Is(err, qerr.ErrStaleQuote))

	q.SetValue(math.NaN())
	assert.False(t, q.IsValid())

	empty := &quote.SimpleQuote{}
	_, err = empty.Value()
	assert.True(t, errors.Is(err, qerr.ErrStaleQuote))
}

func TestFingerprintTracksAnyDependency(t *testing.T) {
	t.Parallel()

	a := quote.NewSimpleQuote(1)
	b := quote.NewSimpleQuote(2)
	fp := quote.Fingerprint(a, b, nil)

	b.SetValue(3)
	assert.NotEqual(t, fp, quote.Fingerprint(a, b, nil))
}

func TestValues(t *testing.T) {
	t.Parallel()

	a := quote.NewSimpleQuote(1)
	b := quote.NewSimpleQuote(2)
	got, err := quote.Values([]quote.Quote{a, b})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, got)

	b.Invalidate()
	_, err = quote.Values([]quote.Quote{a, b})
	assert.Error(t, err)
}
