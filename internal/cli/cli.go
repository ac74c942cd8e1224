// Package cli holds the JSON-in / JSON-out plumbing shared by the drivers.
//
// A driver reads one JSON object, or an array of them, from -input or stdin
// and writes the matching result (or array of results) to stdout. A result
// that failed carries an "error" field and the process exits 1.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/meenmo/quantcore/config"
	"github.com/meenmo/quantcore/logger"
	"github.com/meenmo/quantcore/metrics"
	"github.com/meenmo/quantcore/utils"
)

// Env is the process setup handed to every calculation.
type Env struct {
	Config   config.Config
	Decimals int32
	Log      *slog.Logger
	Metrics  *metrics.Metrics
}

// Round rounds half away from zero to the configured decimals. Non-finite
// values pass through.
func (e Env) Round(x float64) float64 {
	return utils.RoundTo(x, e.Decimals)
}

// Driver describes one command.
type Driver[In, Out any] struct {
	Name    string
	Summary string
	Example string
	Calc    func(Env, In) (Out, error)
	// Fail builds the result reported for an input that failed.
	Fail func(In, error) Out
}

type errorOutput struct {
	Error string `json:"error"`
}

// Run parses args, evaluates every input and returns the exit code.
func (d Driver[In, Out]) Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet(d.Name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.String("input", "", "JSON input path (optional; if set, ignores stdin)")
	fs.String("config", "", "configuration file (yaml, toml or json)")
	fs.Int32("decimals", 10, "decimal places of numeric output")
	fs.String("log-level", "info", "debug, info, warn or error")
	help := fs.BoolP("help", "h", false, "Show help")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *help {
		d.usage(stderr, fs)
		return 0
	}

	path, _ := fs.GetString("input")
	path = strings.TrimSpace(path)
	if path == "" {
		if f, ok := stdin.(*os.File); ok {
			if stat, err := f.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) != 0 {
				d.usage(stderr, fs)
				return 2
			}
		}
	}

	env, err := loadEnv(fs)
	if err != nil {
		return writeError(stdout, fmt.Sprintf("failed to load configuration: %v", err))
	}
	raw, err := readInput(stdin, path)
	if err != nil {
		return writeError(stdout, fmt.Sprintf("failed to read input: %v", err))
	}
	inputs, isArray, err := parseInputs[In](raw)
	if err != nil {
		return writeError(stdout, fmt.Sprintf("failed to parse JSON input: %v", err))
	}

	failed := false
	outputs := make([]Out, 0, len(inputs))
	for _, in := range inputs {
		out, err := d.Calc(env, in)
		if err != nil {
			failed = true
			env.Log.Debug("calculation failed", "driver", d.Name, "error", err)
			out = d.Fail(in, err)
		}
		outputs = append(outputs, out)
	}

	var body []byte
	if isArray {
		body, err = json.Marshal(outputs)
	} else {
		body, err = json.Marshal(outputs[0])
	}
	if err != nil {
		return writeError(stdout, fmt.Sprintf("failed to encode output: %v", err))
	}
	fmt.Fprintln(stdout, string(body))
	if failed {
		return 1
	}
	return 0
}

func (d Driver[In, Out]) usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s < input.json\n", d.Name)
	fmt.Fprintf(w, "  %s --input /path/to/input.json\n", d.Name)
	fmt.Fprintln(w)
	fmt.Fprintln(w, d.Summary)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprint(w, fs.FlagUsages())
	if d.Example != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Example input:")
		fmt.Fprintln(w, d.Example)
	}
}

// loadEnv layers the config file, QUANT_ environment variables and flags.
func loadEnv(fs *pflag.FlagSet) (Env, error) {
	v := config.NewViper()
	if err := v.BindPFlag("logger.level", fs.Lookup("log-level")); err != nil {
		return Env{}, err
	}
	if err := v.BindPFlag("output.decimals", fs.Lookup("decimals")); err != nil {
		return Env{}, err
	}
	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Env{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	cfg, err := config.FromViper(v)
	if err != nil {
		return Env{}, err
	}
	config.SetConfig(cfg)

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return Env{}, err
	}
	logger.Set(log)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}
	decimals := v.GetInt32("output.decimals")
	if decimals < 0 {
		return Env{}, fmt.Errorf("decimals must be non-negative, got %d", decimals)
	}
	return Env{Config: cfg, Decimals: decimals, Log: log, Metrics: m}, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path != "" {
		return os.ReadFile(path)
	}
	return io.ReadAll(stdin)
}

func parseInputs[In any](raw []byte) ([]In, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("empty input")
	}
	if trimmed[0] == '[' {
		var inputs []In
		if err := json.Unmarshal(trimmed, &inputs); err != nil {
			return nil, true, err
		}
		if len(inputs) == 0 {
			return nil, true, fmt.Errorf("empty input array")
		}
		return inputs, true, nil
	}
	var input In
	if err := json.Unmarshal(trimmed, &input); err != nil {
		return nil, false, err
	}
	return []In{input}, false, nil
}

func writeError(stdout io.Writer, msg string) int {
	body, _ := json.Marshal(errorOutput{Error: msg})
	fmt.Fprintln(stdout, string(body))
	return 1
}
