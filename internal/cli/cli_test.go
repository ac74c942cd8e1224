package cli_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meenmo/quantcore/internal/cli"
)

type square struct {
	X float64 `json:"x"`
}

type squared struct {
	Y     float64 `json:"y"`
	Error string  `json:"error,omitempty"`
}

var squarer = cli.Driver[square, squared]{
	Name:    "square",
	Summary: "Squares x.",
	Example: `  {"x": 2}`,
	Calc: func(env cli.Env, in square) (squared, error) {
		if in.X < 0 {
			return squared{}, errors.New("x must be non-negative")
		}
		return squared{Y: env.Round(in.X * in.X)}, nil
	},
	Fail: func(_ square, err error) squared {
		return squared{Error: err.Error()}
	},
}

func runSquare(t *testing.T, input string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := squarer.Run(append([]string{"--log-level", "error"}, args...), strings.NewReader(input), &stdout, &stderr)
	return code, strings.TrimSpace(stdout.String()), stderr.String()
}

func TestRunSingleAndArray(t *testing.T) {
	t.Parallel()

	code, out, _ := runSquare(t, `{"x": 1.5}`)
	require.Equal(t, 0, code)
	assert.JSONEq(t, `{"y": 2.25}`, out)

	code, out, _ = runSquare(t, `[{"x": 1}, {"x": -1}, {"x": 3}]`)
	require.Equal(t, 1, code)
	var got []squared
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 3)
	assert.Equal(t, 1.0, got[0].Y)
	assert.Equal(t, "x must be non-negative", got[1].Error)
	assert.Equal(t, 9.0, got[2].Y)
}

func TestRunDecimals(t *testing.T) {
	t.Parallel()

	code, out, _ := runSquare(t, `{"x": 1.23456}`, "--decimals", "3")
	require.Equal(t, 0, code)
	assert.JSONEq(t, `{"y": 1.524}`, out)

	code, out, _ = runSquare(t, `{"x": 1}`, "--decimals=-1")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "decimals must be non-negative")
}

func TestRunInputFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"x": 4}`), 0o600))
	code, out, _ := runSquare(t, `ignored`, "--input", path)
	require.Equal(t, 0, code)
	assert.JSONEq(t, `{"y": 16}`, out)

	code, out, _ = runSquare(t, "", "--input", filepath.Join(t.TempDir(), "missing.json"))
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "failed to read input")
}

func TestRunBadInput(t *testing.T) {
	t.Parallel()

	for name, input := range map[string]string{
		"empty":       "  ",
		"empty array": "[]",
		"malformed":   `{"x": `,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			code, out, _ := runSquare(t, input)
			assert.Equal(t, 1, code)
			assert.Contains(t, out, "failed to parse JSON input")
		})
	}
}

func TestRunHelp(t *testing.T) {
	t.Parallel()

	code, out, errOut := runSquare(t, "", "--help")
	assert.Equal(t, 0, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "Squares x.")
	assert.Contains(t, errOut, "--decimals")
	assert.Contains(t, errOut, `{"x": 2}`)

	code, _, _ = runSquare(t, "", "--no-such-flag")
	assert.Equal(t, 2, code)
}

func TestRunConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "quant.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bootstrap:\n  accuracy: -1\n"), 0o600))
	code, out, _ := runSquare(t, `{"x": 1}`, "--config", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "failed to load configuration")
}

func TestEnvRound(t *testing.T) {
	t.Parallel()

	env := cli.Env{Decimals: 2}
	assert.Equal(t, 1.24, env.Round(1.235))
	assert.Equal(t, -1.24, env.Round(-1.235))
	assert.True(t, math.IsNaN(env.Round(math.NaN())))
	assert.True(t, math.IsInf(env.Round(math.Inf(1)), 1))
}
