package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runJSON(t *testing.T, input string) (int, []PricingOutput) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run([]string{"--log-level", "error"}, strings.NewReader(input), &stdout, &stderr)
	var out []PricingOutput
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out), stdout.String())
	return code, out
}

func TestPutCallParity(t *testing.T) {
	t.Parallel()

	code, out := runJSON(t, `[
		{"task_id": "c", "option_type": "call", "strike": 100, "forward": 105, "std_dev": 0.2, "discount": 0.97},
		{"task_id": "p", "option_type": "put", "strike": 100, "forward": 105, "std_dev": 0.2, "discount": 0.97}
	]`)
	require.Equal(t, 0, code)
	require.Len(t, out, 2)
	call, put := out[0], out[1]
	assert.Equal(t, "c", call.TaskID)
	assert.InDelta(t, 0.97*5, call.Value-put.Value, 1e-9)
	assert.InDelta(t, 0.97, call.DeltaForward-put.DeltaForward, 1e-9)
	assert.InDelta(t, call.GammaForward, put.GammaForward, 1e-9)
	assert.Nil(t, call.Delta)
	assert.Nil(t, call.Vega)
}

func TestATMValue(t *testing.T) {
	t.Parallel()

	// F(2N(s/2)-1) at the money.
	code, out := runJSON(t, `[{"option_type": "call", "strike": 100, "forward": 100, "std_dev": 0.2, "discount": 1}]`)
	require.Equal(t, 0, code)
	assert.InDelta(t, 7.9655674554, out[0].Value, 1e-8)
}

func TestSpotAndTimeGreeks(t *testing.T) {
	t.Parallel()

	code, out := runJSON(t, `[{"option_type": "call", "strike": 100, "forward": 105, "std_dev": 0.2,
		"discount": 0.97, "spot": 102, "maturity": 1}]`)
	require.Equal(t, 0, code)
	o := out[0]
	for name, g := range map[string]*float64{
		"delta": o.Delta, "gamma": o.Gamma, "elasticity": o.Elasticity,
		"vega": o.Vega, "rho": o.Rho, "dividend rho": o.DividendRho, "volga": o.Volga,
		"theta": o.Theta, "theta per day": o.ThetaPerDay, "vanna": o.Vanna,
	} {
		assert.NotNil(t, g, name)
	}
	assert.Greater(t, *o.Delta, 0.0)
	assert.Greater(t, *o.Vega, 0.0)
	assert.InDelta(t, *o.Theta/365, *o.ThetaPerDay, 1e-9)
}

func TestDigitalPayoffs(t *testing.T) {
	t.Parallel()

	code, out := runJSON(t, `[
		{"option_type": "call", "payoff": "cash", "strike": 100, "cash_payoff": 10, "forward": 100, "std_dev": 0.2, "discount": 1},
		{"option_type": "call", "payoff": "asset", "strike": 100, "forward": 100, "std_dev": 0.2, "discount": 1},
		{"option_type": "call", "strike": 100, "forward": 100, "std_dev": 0.2, "discount": 1}
	]`)
	require.Equal(t, 0, code)
	cash, asset, vanilla := out[0].Value, out[1].Value, out[2].Value
	assert.InDelta(t, 10*out[2].ITMCashProbability, cash, 1e-9)
	assert.InDelta(t, vanilla, asset-100*out[2].ITMCashProbability, 1e-8)
}

func TestInvalidInputs(t *testing.T) {
	t.Parallel()

	code, out := runJSON(t, `[
		{"task_id": "bad-type", "option_type": "straddle", "strike": 100, "forward": 100, "std_dev": 0.2, "discount": 1},
		{"task_id": "bad-payoff", "option_type": "call", "payoff": "barrier", "strike": 100, "forward": 100, "std_dev": 0.2, "discount": 1},
		{"task_id": "bad-stddev", "option_type": "call", "strike": 100, "forward": 100, "std_dev": -0.2, "discount": 1}
	]`)
	assert.Equal(t, 1, code)
	require.Len(t, out, 3)
	for _, o := range out {
		assert.NotEmpty(t, o.Error, o.TaskID)
		assert.Zero(t, o.Value)
	}
	assert.Contains(t, out[1].Error, "unknown payoff")
}
