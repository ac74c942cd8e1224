package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/meenmo/quantcore/logger"
)

// Config holds solver, credit, logging and metrics parameters.
type Config struct {
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Credit    CreditConfig    `mapstructure:"credit"`
	Logger    logger.Config   `mapstructure:"logger"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// BootstrapConfig controls curve calibration.
type BootstrapConfig struct {
	// Accuracy is the RMS quote error a global bootstrap must reach.
	Accuracy float64 `mapstructure:"accuracy"`

	// MaxIterations bounds optimizer iterations.
	MaxIterations int `mapstructure:"max_iterations"`

	// MaxStationaryStateIterations bounds iterations without improvement.
	MaxStationaryStateIterations int `mapstructure:"max_stationary_state_iterations"`

	// RootEpsilon, FunctionEpsilon and GradientNormEpsilon feed the end criteria.
	// Zero means Accuracy for the first two and Accuracy squared for the
	// gradient norm.
	RootEpsilon         float64 `mapstructure:"root_epsilon"`
	FunctionEpsilon     float64 `mapstructure:"function_epsilon"`
	GradientNormEpsilon float64 `mapstructure:"gradient_norm_epsilon"`

	// MaxRate bounds the continuously compounded zero rate at each pillar,
	// giving the discount-factor search interval [exp(-MaxRate t), exp(MaxRate t)].
	MaxRate float64 `mapstructure:"max_rate"`

	// MaxNewtonIterations bounds the per-pillar solve of the iterative bootstrap.
	MaxNewtonIterations int `mapstructure:"max_newton_iterations"`

	// DampingFactor limits the iterative Newton step to DampingFactor * guess.
	DampingFactor float64 `mapstructure:"damping_factor"`
}

// CreditConfig controls the latent-factor loss models.
type CreditConfig struct {
	// QuadratureOrder is the Gauss-Hermite order per market factor.
	QuadratureOrder int `mapstructure:"quadrature_order"`

	// RecursiveBuckets splits the smallest loss-given-default into this many loss units.
	RecursiveBuckets int `mapstructure:"recursive_buckets"`
}

// MetricsConfig toggles prometheus collectors.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Default returns production defaults.
func Default() Config {
	return Config{
		Bootstrap: BootstrapConfig{
			Accuracy:                     1e-12,
			MaxIterations:                1000,
			MaxStationaryStateIterations: 10,
			MaxRate:                      1.0,
			MaxNewtonIterations:          100,
			DampingFactor:                0.5,
		},
		Credit: CreditConfig{
			QuadratureOrder:  64,
			RecursiveBuckets: 1,
		},
		Logger: logger.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "quantcore",
		},
	}
}

// Validate rejects settings the solvers cannot run with.
func (c Config) Validate() error {
	if c.Bootstrap.Accuracy <= 0 {
		return fmt.Errorf("bootstrap.accuracy must be positive, got %g", c.Bootstrap.Accuracy)
	}
	if c.Bootstrap.MaxIterations <= 0 {
		return fmt.Errorf("bootstrap.max_iterations must be positive, got %d", c.Bootstrap.MaxIterations)
	}
	if c.Bootstrap.MaxStationaryStateIterations <= 0 {
		return fmt.Errorf("bootstrap.max_stationary_state_iterations must be positive, got %d", c.Bootstrap.MaxStationaryStateIterations)
	}
	if c.Bootstrap.MaxRate <= 0 {
		return fmt.Errorf("bootstrap.max_rate must be positive, got %g", c.Bootstrap.MaxRate)
	}
	if c.Bootstrap.DampingFactor <= 0 || c.Bootstrap.DampingFactor > 1 {
		return fmt.Errorf("bootstrap.damping_factor must be in (0, 1], got %g", c.Bootstrap.DampingFactor)
	}
	if c.Credit.QuadratureOrder < 2 {
		return fmt.Errorf("credit.quadrature_order must be at least 2, got %d", c.Credit.QuadratureOrder)
	}
	if c.Credit.RecursiveBuckets < 1 {
		return fmt.Errorf("credit.recursive_buckets must be at least 1, got %d", c.Credit.RecursiveBuckets)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("bootstrap.accuracy", d.Bootstrap.Accuracy)
	v.SetDefault("bootstrap.max_iterations", d.Bootstrap.MaxIterations)
	v.SetDefault("bootstrap.max_stationary_state_iterations", d.Bootstrap.MaxStationaryStateIterations)
	v.SetDefault("bootstrap.root_epsilon", d.Bootstrap.RootEpsilon)
	v.SetDefault("bootstrap.function_epsilon", d.Bootstrap.FunctionEpsilon)
	v.SetDefault("bootstrap.gradient_norm_epsilon", d.Bootstrap.GradientNormEpsilon)
	v.SetDefault("bootstrap.max_rate", d.Bootstrap.MaxRate)
	v.SetDefault("bootstrap.max_newton_iterations", d.Bootstrap.MaxNewtonIterations)
	v.SetDefault("bootstrap.damping_factor", d.Bootstrap.DampingFactor)

	v.SetDefault("credit.quadrature_order", d.Credit.QuadratureOrder)
	v.SetDefault("credit.recursive_buckets", d.Credit.RecursiveBuckets)

	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.format", d.Logger.Format)
	v.SetDefault("logger.output", d.Logger.Output)
	v.SetDefault("logger.file_path", d.Logger.FilePath)
	v.SetDefault("logger.max_size", d.Logger.MaxSize)
	v.SetDefault("logger.max_backups", d.Logger.MaxBackups)
	v.SetDefault("logger.max_age", d.Logger.MaxAge)
	v.SetDefault("logger.compress", d.Logger.Compress)
	v.SetDefault("logger.with_caller", d.Logger.WithCaller)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.namespace", d.Metrics.Namespace)
}

// NewViper returns a viper instance carrying defaults and QUANT_ environment overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("QUANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (yaml, toml or json by extension) over the defaults.
// An empty path yields defaults plus environment overrides.
func Load(path string) (Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates a populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

var (
	mu  sync.RWMutex
	cfg = Default()
)

// SetConfig replaces the active configuration.
func SetConfig(c Config) {
	mu.Lock()
	cfg = c
	mu.Unlock()
}

// GetConfig returns the active configuration.
func GetConfig() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}
