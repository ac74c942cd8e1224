package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quotes = `"index": "euribor6m",
	"deposits": [{"tenor": "6M", "rate": 2.65}],
	"fras": [{"period": "6x12", "rate": 2.40}],
	"swaps": [{"tenor": "2Y", "rate": 2.35}, {"tenor": "5Y", "rate": 2.45}, {"tenor": "10Y", "rate": 2.60}],
	"dates": ["2027-06-30", "2033-01-17"]`

const oisQuotes = `, "ois_swaps": [{"tenor": "1Y", "rate": 2.20}, {"tenor": "5Y", "rate": 2.25}, {"tenor": "10Y", "rate": 2.40}]`

func input(method, extra string) string {
	return fmt.Sprintf(`{"task_id": %q, "valuation_date": "2025-01-15", "method": %q, %s%s}`, method, method, quotes, extra)
}

func runJSON(t *testing.T, inputs ...string) (int, []PricingOutput) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run([]string{"--log-level", "error"}, strings.NewReader("["+strings.Join(inputs, ",")+"]"), &stdout, &stderr)
	var out []PricingOutput
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out), stdout.String())
	return code, out
}

func assertSameCurve(t *testing.T, want, got *CurveOutput, tol float64) {
	t.Helper()
	require.NotNil(t, want)
	require.NotNil(t, got)
	require.Len(t, got.Pillars, len(want.Pillars))
	for i := range want.Pillars {
		assert.Equal(t, want.Pillars[i].Date, got.Pillars[i].Date)
		assert.InDelta(t, want.Pillars[i].DiscountFactor, got.Pillars[i].DiscountFactor, tol, want.Pillars[i].Date)
	}
	for i := range want.Requested {
		assert.InDelta(t, want.Requested[i].DiscountFactor, got.Requested[i].DiscountFactor, tol, want.Requested[i].Date)
	}
}

func TestSingleCurveMethodsAgree(t *testing.T) {
	t.Parallel()

	code, out := runJSON(t, input("iterative", ""), input("global", ""))
	require.Equal(t, 0, code, out)
	iter, global := out[0], out[1]
	require.Empty(t, iter.Error)
	assert.Nil(t, iter.Discount)

	fc := iter.Forecast
	require.Len(t, fc.Pillars, 5)
	require.Len(t, fc.Requested, 2)
	assert.Equal(t, "2027-06-30", fc.Requested[0].Date)
	prev := 1.0
	for _, p := range fc.Pillars {
		assert.Less(t, p.DiscountFactor, prev, p.Date)
		assert.InDelta(t, 2.5, p.ZeroRate, 0.5, p.Date)
		prev = p.DiscountFactor
	}
	assertSameCurve(t, fc, global.Forecast, 1e-8)
}

func TestDualCurve(t *testing.T) {
	t.Parallel()

	code, out := runJSON(t, input("global", oisQuotes), input("multi_curve", oisQuotes), input("iterative", oisQuotes))
	require.Equal(t, 0, code, out)
	seq, joint, iter := out[0], out[1], out[2]
	require.NotNil(t, seq.Discount)
	assert.Len(t, seq.Discount.Pillars, 3)

	assertSameCurve(t, seq.Discount, joint.Discount, 1e-8)
	assertSameCurve(t, seq.Forecast, joint.Forecast, 1e-8)
	assertSameCurve(t, seq.Forecast, iter.Forecast, 1e-8)

	// Discounting on the lower OIS curve moves the swap pillars.
	_, single := runJSON(t, input("global", ""))
	assert.NotEqual(t, single[0].Forecast.Pillars[4].DiscountFactor, seq.Forecast.Pillars[4].DiscountFactor)
}

func TestInvalidInputs(t *testing.T) {
	t.Parallel()

	code, out := runJSON(t,
		input("newton", ""),
		`{"valuation_date": "2025-01-15", "index": "LIBOR3M", "swaps": [{"tenor": "5Y", "rate": 2}]}`,
		input("multi_curve", ""),
		`{"valuation_date": "2025-01-15", "fras": [{"period": "12x6", "rate": 2}]}`,
		`{"valuation_date": "2025-01-15", "swaps": [{"tenor": "5Y", "rate": 2}, {"tenor": "5Y", "rate": 2.1}]}`,
		`{"valuation_date": "2025-01-15"}`,
	)
	assert.Equal(t, 1, code)
	require.Len(t, out, 6)
	assert.Contains(t, out[0].Error, "unknown method")
	assert.Contains(t, out[1].Error, `unknown index "LIBOR3M"`)
	assert.Contains(t, out[2].Error, "multi_curve needs ois_swaps")
	assert.Contains(t, out[3].Error, "invalid FRA period")
	assert.Contains(t, out[4].Error, "duplicate dates")
	assert.Contains(t, out[5].Error, "no bootstrap helpers given")
}

const swaptionQuotes = `, "swaptions": [
	{"expiry": "1Y", "tenor": "5Y", "vol": 25},
	{"expiry": "5Y", "tenor": "5Y", "vol": 23},
	{"expiry": "2Y", "tenor": "5Y", "vol": 24},
	{"expiry": "3Y", "tenor": "5Y", "vol": 23.5, "strike": 3}]`

func TestSwaptionVolatilities(t *testing.T) {
	t.Parallel()

	code, out := runJSON(t, input("iterative", swaptionQuotes), input("global", oisQuotes+swaptionQuotes),
		input("iterative", `, "swaptions": [{"expiry": "1Y", "vol": 25}]`))
	assert.Equal(t, 1, code)
	require.Len(t, out, 3)
	for _, o := range out[:2] {
		require.Empty(t, o.Error)
		vol := o.Volatility
		require.NotNil(t, vol)
		require.Len(t, vol.Steps, 4)
		assert.InDelta(t, 25, vol.Steps[0].Vol, 1e-6)
		assert.NotEmpty(t, vol.Steps[2].Until)
		assert.Empty(t, vol.Steps[3].Until)
		require.Len(t, vol.Swaptions, 4)
		assert.Equal(t, "5Y", vol.Swaptions[1].Expiry)
		for _, s := range vol.Swaptions {
			assert.InDelta(t, s.MarketVol, s.ModelVol, 1e-6, s.Expiry)
		}
	}
	assert.Nil(t, out[2].Volatility)
	assert.Contains(t, out[2].Error, "swaption 1 tenor")

	_, plain := runJSON(t, input("iterative", ""))
	assert.Nil(t, plain[0].Volatility)
}
