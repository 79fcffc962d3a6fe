// Package config provides configuration loading and management for lunarterrain.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores bounds how many images are reconstructed concurrently
		NumCores int `yaml:"numCores"`

		// NormalizeHistogram enables histogram equalization before gradient extraction
		NormalizeHistogram bool `yaml:"normalizeHistogram"`

		// Denoise enables the median blur before gradient extraction
		Denoise bool `yaml:"denoise"`

		// MedianKernel is the side of the square median window
		MedianKernel int `yaml:"medianKernel"`

		// MaxDimension down-scales inputs whose longest side exceeds it (0 disables)
		MaxDimension int `yaml:"maxDimension"`

		// Exaggeration selects ExaggerationFactor over BaseScale for the final heights
		Exaggeration       bool    `yaml:"exaggeration"`
		ExaggerationFactor float64 `yaml:"exaggerationFactor"`
		BaseScale          float64 `yaml:"baseScale"`

		// FlatEpsilon is the dynamic range below which a surface is treated as flat
		FlatEpsilon float64 `yaml:"flatEpsilon"`
	} `yaml:"processing"`

	// Hazard classification parameters
	Hazard struct {
		// SafePercentile and ModeratePercentile split the slope distribution into tiers
		SafePercentile     float64 `yaml:"safePercentile"`
		ModeratePercentile float64 `yaml:"moderatePercentile"`

		// MinZoneArea is the smallest Safe region, in cells, reported as a landing zone
		MinZoneArea int `yaml:"minZoneArea"`
	} `yaml:"hazard"`

	// Path planner parameters
	Planner struct {
		// MaxSlopeDegrees is the default traversable slope bound
		MaxSlopeDegrees float64 `yaml:"maxSlopeDegrees"`

		// StepX and StepY are the horizontal grid spacings used for local slope
		StepX float64 `yaml:"stepX"`
		StepY float64 `yaml:"stepY"`

		// ElevationPenalty weights |Δelevation| in the move cost
		ElevationPenalty float64 `yaml:"elevationPenalty"`
	} `yaml:"planner"`

	// Output parameters
	Output struct {
		// SaveIntermediaryResults determines whether to save intermediary processing results
		SaveIntermediaryResults bool `yaml:"saveIntermediaryResults"`

		// IntermediaryDir is where intermediary images are written
		IntermediaryDir string `yaml:"intermediaryDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Storage parameters
	Storage struct {
		// DatabasePath is the SQLite file holding reconstruction sessions
		DatabasePath string `yaml:"databasePath"`
	} `yaml:"storage"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.NormalizeHistogram = true
	cfg.Processing.Denoise = true
	cfg.Processing.MedianKernel = 5
	cfg.Processing.MaxDimension = 0
	cfg.Processing.Exaggeration = true
	cfg.Processing.ExaggerationFactor = 200.0
	cfg.Processing.BaseScale = 50.0
	cfg.Processing.FlatEpsilon = 1e-6

	// Set default hazard parameters
	cfg.Hazard.SafePercentile = 33
	cfg.Hazard.ModeratePercentile = 66
	cfg.Hazard.MinZoneArea = 500

	// Set default planner parameters
	cfg.Planner.MaxSlopeDegrees = 25
	cfg.Planner.StepX = 1
	cfg.Planner.StepY = 1
	cfg.Planner.ElevationPenalty = 0.5

	// Set default output parameters
	cfg.Output.SaveIntermediaryResults = false
	cfg.Output.IntermediaryDir = "intermediary_results"
	cfg.Output.Verbose = true

	cfg.Storage.DatabasePath = "lunarterrain.db"

	return cfg
}

// ExaggerationScale returns the multiplier applied to the normalized surface
func (c *Config) ExaggerationScale() float64 {
	if c.Processing.Exaggeration {
		return c.Processing.ExaggerationFactor
	}
	return c.Processing.BaseScale
}

// Validate checks the configuration for values the pipeline cannot work with
func (c *Config) Validate() error {
	h := c.Hazard
	if h.SafePercentile <= 0 || h.SafePercentile >= 100 {
		return fmt.Errorf("hazard.safePercentile must be in (0,100), got %g", h.SafePercentile)
	}
	if h.ModeratePercentile <= h.SafePercentile || h.ModeratePercentile >= 100 {
		return fmt.Errorf("hazard.moderatePercentile must be in (safePercentile,100), got %g", h.ModeratePercentile)
	}
	if h.MinZoneArea <= 0 {
		return fmt.Errorf("hazard.minZoneArea must be positive, got %d", h.MinZoneArea)
	}

	p := c.Planner
	if p.MaxSlopeDegrees <= 0 || p.MaxSlopeDegrees > 90 {
		return fmt.Errorf("planner.maxSlopeDegrees must be in (0,90], got %g", p.MaxSlopeDegrees)
	}
	if p.StepX <= 0 || p.StepY <= 0 {
		return fmt.Errorf("planner steps must be positive, got %g,%g", p.StepX, p.StepY)
	}
	if p.ElevationPenalty < 0 {
		return fmt.Errorf("planner.elevationPenalty must be non-negative, got %g", p.ElevationPenalty)
	}

	if c.Processing.Denoise {
		k := c.Processing.MedianKernel
		if k < 3 || k%2 == 0 {
			return fmt.Errorf("processing.medianKernel must be odd and >= 3, got %d", k)
		}
	}
	if c.Processing.MaxDimension < 0 {
		return fmt.Errorf("processing.maxDimension must be non-negative, got %d", c.Processing.MaxDimension)
	}
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("processing.numCores must be at least 1, got %d", c.Processing.NumCores)
	}

	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
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

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
