package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the benchmark settings.
type Config struct {
	Device    DeviceConfig
	Suite     SuiteConfig
	Tolerance float64
	Verbose   bool
}

// DeviceConfig configures the CPU device.
type DeviceConfig struct {
	Workers      int
	MaxGroupSize int `mapstructure:"max_group_size"`
}

// SuiteConfig sizes the validation runs.
type SuiteConfig struct {
	// Elements is the length of the arithmetic arrays.
	Elements int
	Width    int
	Height   int
	MaxIter  int `mapstructure:"max_iter"`
	Bailout  float64
	// Path is "paired" or "bits".
	Path string
}

// Load reads configuration from defaults, an optional TOML file and the
// environment, in increasing order of precedence. Env var overrides use
// prefix DSBENCH_. An explicit path must exist; otherwise DSBENCH_CONFIG or
// ~/.config/dsbench/config.toml is used if present.
func Load(path string, overrides map[string]any) (Config, error) {
	v := viper.New()

	v.SetDefault("device.workers", 0)
	v.SetDefault("device.max_group_size", 256)
	v.SetDefault("suite.elements", 200000)
	v.SetDefault("suite.width", 256)
	v.SetDefault("suite.height", 256)
	v.SetDefault("suite.max_iter", 500)
	v.SetDefault("suite.bailout", 4.0)
	v.SetDefault("suite.path", "paired")
	v.SetDefault("tolerance", 1e-3)
	v.SetDefault("verbose", false)

	v.SetConfigType("toml")

	explicit := path != ""
	if !explicit {
		path = os.Getenv("DSBENCH_CONFIG")
		explicit = path != ""
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "dsbench"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("DSBENCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil && explicit {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	for key, val := range overrides {
		v.Set(key, val)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Suite.Elements <= 0 || c.Suite.Width <= 0 || c.Suite.Height <= 0 {
		return Config{}, fmt.Errorf("suite sizes must be positive")
	}
	if c.Suite.MaxIter < 0 || c.Suite.MaxIter > math.MaxInt32 {
		return Config{}, fmt.Errorf("max_iter %d out of range [0, %d]", c.Suite.MaxIter, math.MaxInt32)
	}
	return c, nil
}
