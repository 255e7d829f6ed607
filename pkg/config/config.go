// Package config provides configuration loading and management for radiocube.
// Values are layered: built-in defaults, then an optional YAML file, then
// RADIOCUBE_* environment variables, then command-line flags.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"radiocube/internal/models"
)

// EnvPrefix is the prefix of environment variables that override the
// configuration, e.g. RADIOCUBE_BASELINE_ORDER=2.
const EnvPrefix = "RADIOCUBE_"

// DefaultFileName is the configuration file looked for in the working
// directory when no path is given.
const DefaultFileName = "radiocube.yml"

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// Workers specifies how many goroutines to use for per-pixel work
		Workers int `yaml:"workers" koanf:"workers"`

		// KMS reports velocities in km/s instead of m/s
		KMS bool `yaml:"kms" koanf:"kms"`

		// CosDec applies the cos(dec) correction in sky coordinates
		CosDec bool `yaml:"cos_dec" koanf:"cos_dec"`

		// Layout is the storage order of input cubes (vxy, vyx, xyv, yxv)
		Layout string `yaml:"layout" koanf:"layout"`
	} `yaml:"processing" koanf:"processing"`

	// Spectral axis preparation
	Transpose struct {
		// SmoothFactor regrids the spectral axis by this factor; 0 or 1 skips it
		SmoothFactor float64 `yaml:"smooth_factor" koanf:"smooth_factor"`

		// Method is the regridding interpolant (linear, monotone)
		Method string `yaml:"method" koanf:"method"`

		// Hanning is the window length of an optional spectral smoothing; 0 skips it
		Hanning int `yaml:"hanning" koanf:"hanning"`
	} `yaml:"transpose" koanf:"transpose"`

	// Baseline fitting parameters
	Baseline struct {
		// Enabled controls whether the pipeline fits baselines
		Enabled bool `yaml:"enabled" koanf:"enabled"`

		// Order is the polynomial order
		Order int `yaml:"order" koanf:"order"`

		// Windows are the emission-free [lower, upper] ranges
		Windows [][]float64 `yaml:"windows" koanf:"windows"`

		// Channel interprets Windows as channel indices instead of velocities
		Channel bool `yaml:"channel" koanf:"channel"`
	} `yaml:"baseline" koanf:"baseline"`

	// Moment map parameters
	Moment struct {
		// Orders lists the moments to compute (0, 1, 2)
		Orders []int `yaml:"orders" koanf:"orders"`

		// Lower and Upper bound the integration range
		Lower float64 `yaml:"lower" koanf:"lower"`
		Upper float64 `yaml:"upper" koanf:"upper"`

		// Channel interprets the range as channel indices
		Channel bool `yaml:"channel" koanf:"channel"`

		// DontBlank keeps blank samples as they are
		DontBlank bool `yaml:"dont_blank" koanf:"dont_blank"`

		// RMSWindows are the line ranges left out of the noise map of moment 0
		RMSWindows [][]float64 `yaml:"rms_windows" koanf:"rms_windows"`
	} `yaml:"moment" koanf:"moment"`

	// Spectrum and position-velocity extraction parameters
	Extraction struct {
		// GaussWidth is the half width of the spatial Gaussian kernel in pixels
		GaussWidth int `yaml:"gauss_width" koanf:"gauss_width"`

		// BlurWidth is the half width used when smoothing maps
		BlurWidth int `yaml:"blur_width" koanf:"blur_width"`
	} `yaml:"extraction" koanf:"extraction"`

	// Output parameters
	Output struct {
		// Dir is where the pipeline writes its products
		Dir string `yaml:"dir" koanf:"dir"`

		// SaveIntermediaryResults determines whether to save intermediary processing results
		SaveIntermediaryResults bool `yaml:"save_intermediary_results" koanf:"save_intermediary_results"`

		// QuickLook writes PNG/JPEG previews next to the FITS products
		QuickLook bool `yaml:"quicklook" koanf:"quicklook"`

		// Format is the quick-look image format (png, jpeg)
		Format string `yaml:"format" koanf:"format"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose" koanf:"verbose"`
	} `yaml:"output" koanf:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.Workers = runtime.NumCPU()
	cfg.Processing.KMS = true
	cfg.Processing.CosDec = false
	cfg.Processing.Layout = string(models.LayoutXYV)

	cfg.Transpose.SmoothFactor = 0
	cfg.Transpose.Method = "linear"
	cfg.Transpose.Hanning = 0

	cfg.Baseline.Enabled = true
	cfg.Baseline.Order = 1
	cfg.Baseline.Windows = [][]float64{{-60, -20}, {20, 60}}
	cfg.Baseline.Channel = false

	cfg.Moment.Orders = []int{0, 1, 2}
	cfg.Moment.Lower = -20
	cfg.Moment.Upper = 20
	cfg.Moment.Channel = false
	cfg.Moment.DontBlank = false
	cfg.Moment.RMSWindows = [][]float64{{-20, 20}}

	cfg.Extraction.GaussWidth = 2
	cfg.Extraction.BlurWidth = 2

	cfg.Output.Dir = "output"
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.QuickLook = true
	cfg.Output.Format = "png"
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file on top of the defaults.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	return Load(configPath, nil, nil)
}

// Load layers the defaults, the YAML file at configPath (skipped when it
// does not exist), RADIOCUBE_* environment variables and the flags of fs
// that appear in flagKeys. flagKeys maps a flag name to its dotted
// configuration key; flags left at their default never override a value
// from an earlier layer.
func Load(configPath string, fs *pflag.FlagSet, flagKeys map[string]string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := k.Load(file.Provider(configPath), kyaml.Parser()); err != nil {
				return nil, fmt.Errorf("error parsing config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	if fs != nil && len(flagKeys) > 0 {
		p := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(p, nil); err != nil {
			return nil, fmt.Errorf("error loading flags: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps RADIOCUBE_BASELINE_ORDER to baseline.order. Section names
// are single words, so only the first underscore separates the section.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(s, "_", ".", 1)
}

// Validate checks the values that cannot be defaulted sensibly.
func (c *Config) Validate() error {
	if c.Processing.Workers < 0 {
		return models.InvalidArgf("processing.workers", "must not be negative, got %d", c.Processing.Workers)
	}
	if _, err := models.ParseLayout(c.Processing.Layout); err != nil {
		return err
	}
	if c.Transpose.SmoothFactor < 0 {
		return models.InvalidArgf("transpose.smooth_factor", "must not be negative, got %g", c.Transpose.SmoothFactor)
	}
	if _, err := Windows(c.Baseline.Windows); err != nil {
		return fmt.Errorf("baseline.windows: %w", err)
	}
	if _, err := Windows(c.Moment.RMSWindows); err != nil {
		return fmt.Errorf("moment.rms_windows: %w", err)
	}
	for _, o := range c.Moment.Orders {
		if o < 0 || o > 2 {
			return models.InvalidArgf("moment.orders", "%d should be one of 0, 1 or 2", o)
		}
	}
	switch strings.ToLower(c.Output.Format) {
	case "png", "jpeg", "jpg":
	default:
		return models.InvalidArgf("output.format", "%q should be png or jpeg", c.Output.Format)
	}
	return nil
}

// Windows converts [lower, upper] pairs into windows.
func Windows(pairs [][]float64) ([]models.Window, error) {
	windows := make([]models.Window, 0, len(pairs))
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, models.InvalidArgf("windows", "entry %d has %d values, want [lower, upper]", i, len(p))
		}
		windows = append(windows, models.Window{Lower: p[0], Upper: p[1]}.Normalized())
	}
	return windows, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Print writes cfg as YAML.
func Print(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
