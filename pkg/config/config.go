// Package config provides configuration loading and management for microtexture.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Analysis parameters
	Analysis struct {
		// MinMTRSize is the smallest region area in um^2 that counts as an MTR
		MinMTRSize float64 `yaml:"minMTRSize"`

		// StressAxis is the loading direction: "100", "010" or "001"
		StressAxis string `yaml:"stressAxis"`

		// SaveImages controls whether the annotated PNG images are written
		SaveImages bool `yaml:"saveImages"`
	} `yaml:"analysis"`

	// Cleanup thresholds substituted into the DREAM3D pipeline template
	Cleanup struct {
		// .ang inputs
		CIMaskThreshold      float64 `yaml:"ciMaskThreshold"`
		IQMaskThreshold      float64 `yaml:"iqMaskThreshold"`
		CIPrimaryThreshold   float64 `yaml:"ciPrimaryThreshold"`
		CISecondaryThreshold float64 `yaml:"ciSecondaryThreshold"`

		// .ctf inputs
		ErrorMaskThreshold   int     `yaml:"errorMaskThreshold"`
		BCPrimaryThreshold   float64 `yaml:"bcPrimaryThreshold"`
		BCSecondaryThreshold float64 `yaml:"bcSecondaryThreshold"`

		// CAxisMisalignment is the segmentation tolerance in degrees
		CAxisMisalignment int `yaml:"caxisMisalignment"`
	} `yaml:"cleanup"`

	// DREAM3D execution
	Pipeline struct {
		// Template is the pipeline template path; {EXT} and {ext} are replaced
		// by the input file extension
		Template string `yaml:"template"`

		// Runner is the path of the PipelineRunner executable
		Runner string `yaml:"runner"`

		// TimeoutSeconds bounds a single PipelineRunner invocation
		TimeoutSeconds int `yaml:"timeoutSeconds"`
	} `yaml:"pipeline"`

	// Output parameters
	Output struct {
		// Dir is the results directory; {basename} is replaced by the input
		// file name without extension
		Dir string `yaml:"dir"`

		// Overwrite allows writing into a non-empty results directory
		Overwrite bool `yaml:"overwrite"`
	} `yaml:"output"`

	// Logging parameters
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Analysis.MinMTRSize = 10000
	cfg.Analysis.StressAxis = "001"
	cfg.Analysis.SaveImages = true

	// Defaults for GOOD data: CI > 0.05 and IQ > 20000 (.ang), error == 1 (.ctf)
	cfg.Cleanup.CIMaskThreshold = 0.05
	cfg.Cleanup.IQMaskThreshold = 20000
	cfg.Cleanup.CIPrimaryThreshold = 0.05
	cfg.Cleanup.CISecondaryThreshold = 0.10
	cfg.Cleanup.ErrorMaskThreshold = 1
	cfg.Cleanup.BCPrimaryThreshold = 30
	cfg.Cleanup.BCSecondaryThreshold = 50
	cfg.Cleanup.CAxisMisalignment = 20

	cfg.Pipeline.Template = "templates/MTR_{EXT}.json.tmpl"
	cfg.Pipeline.Runner = "PipelineRunner"
	cfg.Pipeline.TimeoutSeconds = 120

	cfg.Output.Dir = "{basename}"
	cfg.Output.Overwrite = false

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the values the analysis cannot run without.
func (c *Config) Validate() error {
	var errs []error
	switch c.Analysis.StressAxis {
	case "100", "010", "001":
	default:
		errs = append(errs, fmt.Errorf("analysis.stressAxis must be 100, 010 or 001, got %q", c.Analysis.StressAxis))
	}
	if !(c.Analysis.MinMTRSize > 0) {
		errs = append(errs, fmt.Errorf("analysis.minMTRSize must be positive, got %v", c.Analysis.MinMTRSize))
	}
	if c.Pipeline.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.timeoutSeconds must be positive, got %d", c.Pipeline.TimeoutSeconds))
	}
	return errors.Join(errs...)
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
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
