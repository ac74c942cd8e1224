package payoff_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/quantcore/payoff"
	"github.com/meenmo/quantcore/qerr"
	"github.com/meenmo/quantcore/utils"
)

func TestPayoffValues(t *testing.T) {
	t.Parallel()

	call, err := payoff.NewPlainVanilla(payoff.Call, 100)
	require.NoError(t, err)
	put, err := payoff.NewPlainVanilla(payoff.Put, 100)
	require.NoError(t, err)
	cash, err := payoff.NewCashOrNothing(payoff.Call, 100, 10)
	require.NoError(t, err)
	asset, err := payoff.NewAssetOrNothing(payoff.Put, 100)
	require.NoError(t, err)
	gap, err := payoff.NewGap(payoff.Call, 100, 90)
	require.NoError(t, err)

	cases := []struct {
		p     payoff.Striked
		price float64
		want  float64
	}{
		{call, 110, 10},
		{call, 90, 0},
		{put, 90, 10},
		{put, 110, 0},
		{cash, 101, 10},
		{cash, 99, 0},
		{asset, 95, 95},
		{asset, 105, 0},
		{gap, 105, 15},
		{gap, 95, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.p.Value(c.price), c.p.Name())
	}
	assert.Equal(t, "Vanilla Call 100", call.Name())
}

func TestPayoffValidation(t *testing.T) {
	t.Parallel()

	_, err := payoff.NewPlainVanilla(payoff.Call, -1)
	assert.True(t, errors.Is(err, qerr.ErrInvalidArgument))
	_, err = payoff.NewPlainVanilla(payoff.OptionType(0), 1)
	assert.Error(t, err)

	typ, err := payoff.ParseOptionType("put")
	require.NoError(t, err)
	assert.Equal(t, payoff.Put, typ)
	_, err = payoff.ParseOptionType("straddle")
	assert.Error(t, err)
}

func TestExercise(t *testing.T) {
	t.Parallel()

	d1 := utils.Date(2025, time.June, 1)
	d2 := utils.Date(2025, time.December, 1)

	b, err := payoff.NewBermudan([]time.Time{d2, d1})
	require.NoError(t, err)
	assert.Equal(t, d2, b.LastDate())
	assert.Equal(t, d1, b.Dates[0])

	_, err = payoff.NewAmerican(d2, d1)
	assert.Error(t, err)
	_, err = payoff.NewBermudan(nil)
	assert.Error(t, err)

	assert.Equal(t, payoff.European, payoff.NewEuropean(d1).Kind)
}
