// Package config loads run settings from an optional YAML file, an optional
// .env file and defaults, and validates them before anything is fetched.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/contactkeval/iv-surface/internal/pricing"
)

// ErrInvalidConfig wraps every parse or validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds every setting of an analysis run.
type Config struct {
	Ticker           string  `yaml:"ticker" validate:"required"`                                                    // e.g. "AAPL"
	RiskFreeRate     float64 `yaml:"risk_free_rate" validate:"gte=0,lte=1"`                                         // annualised, continuous
	OptionType       string  `yaml:"option_type" validate:"oneof=call put"`                                         // type the views are built from
	MaxExpirations   int     `yaml:"max_expirations" validate:"min=1,max=10"`                                       // nearest expirations to load
	Provider         string  `yaml:"provider" validate:"oneof=synthetic massive polygon csv"`                       // market data source
	DataDir          string  `yaml:"data_dir,omitempty" validate:"required_if=Provider csv"`                        // csv provider input dir
	ReportDir        string  `yaml:"report_dir,omitempty"`                                                          // output directory
	Workers          int     `yaml:"workers,omitempty" validate:"gte=0,lte=64"`                                     // 0 or 1 = sequential
	FailureThreshold float64 `yaml:"failure_threshold,omitempty" validate:"gte=0,lte=1"`                            // degraded batch threshold, 0 = default
	Verbosity        int     `yaml:"verbosity,omitempty" validate:"gte=0,lte=3"`                                    // 0=errors,1=info,2=debug,3=trace
	Filter           string  `yaml:"filter,omitempty"`                                                              // govaluate row filter
	Views            string  `yaml:"views,omitempty"`                                                               // comma separated, "" = all
	HeatmapExpiry    string  `yaml:"heatmap_expiry,omitempty" validate:"omitempty,datetime=2006-01-02"`             // matched with HeatmapMatch
	HeatmapMatch     string  `yaml:"heatmap_match,omitempty" validate:"omitempty,oneof=exact nearest higher lower"` // "" = nearest
	Seed             int64   `yaml:"seed,omitempty"`                                                                // synthetic provider seed
	Port             string  `yaml:"port,omitempty"`                                                                // serve listen address
}

// Default returns the settings used when nothing else is given.
func Default() Config {
	return Config{
		Ticker:         "AAPL",
		RiskFreeRate:   0.01,
		OptionType:     "call",
		MaxExpirations: 3,
		Provider:       "synthetic",
		ReportDir:      "out",
		Workers:        1,
		Verbosity:      1,
		Port:           ":8080",
	}
}

// Load reads a YAML file over Default and validates the result. An empty
// path returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnv loads each existing .env file into the process environment.
// Missing files are skipped; variables already set are not overridden.
func LoadEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s file: %v", p, err)
		}
	}
	return nil
}

// Normalize canonicalises case and whitespace of the free-text fields.
func (c *Config) Normalize() {
	c.Ticker = strings.ToUpper(strings.TrimSpace(c.Ticker))
	c.OptionType = strings.ToLower(strings.TrimSpace(c.OptionType))
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.HeatmapMatch = strings.ToLower(strings.TrimSpace(c.HeatmapMatch))
}

var validate = validator.New()

// Validate checks every field constraint and wraps failures in ErrInvalidConfig.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Type returns OptionType parsed.
func (c Config) Type() (pricing.OptionType, error) {
	return pricing.ParseOptionType(c.OptionType)
}
