// Package config loads roi-export settings from a YAML file and the
// environment. Flags are applied on top by the command line.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFileName is the name of the exported table when none is configured.
const DefaultFileName = "Batch_ROI_Export.csv"

// Config represents the roi-export configuration.
type Config struct {
	// Catalog selects where images, ROIs and statistics come from.
	Catalog struct {
		// BaseURL of the catalog JSON API.
		BaseURL string `yaml:"baseURL"`

		// Token is sent as a bearer token.
		Token string `yaml:"token,omitempty"`

		// Fixture is a YAML catalog file used instead of the API.
		Fixture string `yaml:"fixture,omitempty"`

		// PlanesDir enables local statistics from plane rasters.
		PlanesDir string `yaml:"planesDir,omitempty"`

		// PlaneLayout is the raster path template below PlanesDir.
		PlaneLayout string `yaml:"planeLayout,omitempty"`
	} `yaml:"catalog"`

	// Export parameters.
	Export struct {
		// DataType is "Image" or "Dataset".
		DataType string `yaml:"dataType"`

		IDs []int64 `yaml:"ids"`

		// Channels are 1-based.
		Channels []int `yaml:"channels"`

		AllPlanes bool   `yaml:"allPlanes"`
		FileName  string `yaml:"fileName"`
	} `yaml:"export"`

	// Output side files. Empty disables each.
	Output struct {
		LogFile string `yaml:"logFile,omitempty"`
		Report  string `yaml:"report,omitempty"`
		SQLite  string `yaml:"sqlite,omitempty"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Export.DataType = "Image"
	cfg.Export.Channels = []int{1}
	cfg.Export.AllPlanes = false
	cfg.Export.FileName = DefaultFileName

	return cfg
}

// LoadConfig loads configuration from a YAML file on top of the defaults.
// A missing file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if configPath == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
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

// CreateDefaultConfigFile creates a default configuration file at the specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// LoadDotEnv loads variables from the given .env files (".env" when none)
// into the process environment. Variables already set are kept and missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("error loading %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides the configuration with the ROI_EXPORT_* environment
// variables that are set.
func (cfg *Config) ApplyEnv() {
	cfg.Catalog.BaseURL = getEnv("ROI_EXPORT_URL", cfg.Catalog.BaseURL)
	cfg.Catalog.Token = getEnv("ROI_EXPORT_TOKEN", cfg.Catalog.Token)
	cfg.Catalog.Fixture = getEnv("ROI_EXPORT_FIXTURE", cfg.Catalog.Fixture)
	cfg.Catalog.PlanesDir = getEnv("ROI_EXPORT_PLANES_DIR", cfg.Catalog.PlanesDir)
	cfg.Catalog.PlaneLayout = getEnv("ROI_EXPORT_PLANE_LAYOUT", cfg.Catalog.PlaneLayout)
	cfg.Export.AllPlanes = getEnvAsBool("ROI_EXPORT_ALL_PLANES", cfg.Export.AllPlanes)
	cfg.Output.SQLite = getEnv("ROI_EXPORT_SQLITE", cfg.Output.SQLite)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
