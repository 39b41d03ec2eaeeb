package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/menta2k/plant-splitter/internal/logging"
	"github.com/menta2k/plant-splitter/pkg/imageio"
	"github.com/menta2k/plant-splitter/pkg/processing"
)

// Config holds the application configuration
type Config struct {
	Classifier ClassifierConfig `json:"classifier"`
	Mask       MaskConfig       `json:"mask"`
	Filter     FilterConfig     `json:"filter"`
	Cluster    ClusterConfig    `json:"cluster"`
	Output     OutputConfig     `json:"output"`
	Audit      AuditConfig      `json:"audit"`
	Log        LogConfig        `json:"log"`
	Workers    int              `json:"workers"`
}

// ClassifierConfig holds configuration for pixel classification
type ClassifierConfig struct {
	// Path is the naive Bayes PDF table
	Path       string `json:"path"`
	PlantClass string `json:"plant_class"`
}

// MaskConfig holds configuration for mask smoothing
type MaskConfig struct {
	KernelSize int `json:"kernel_size"`
}

// FilterConfig holds configuration for object size filtering
type FilterConfig struct {
	// MinSize is the boundary point count an object must exceed
	MinSize int `json:"min_size"`
}

// ClusterConfig holds the grid layout of the cluster partition
type ClusterConfig struct {
	Rows int `json:"rows"`
	// Cols of zero means one column per object
	Cols int `json:"cols"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Dir      string `json:"dir"`
	Format   string `json:"format"`
	Quality  int    `json:"quality"`
	Lossless bool   `json:"lossless"`
	// LazyCrop keeps crops as views over the source until they are encoded
	LazyCrop bool `json:"lazy_crop"`
}

// AuditConfig holds configuration for the audit side outputs
type AuditConfig struct {
	Dir   string `json:"dir"`
	Debug bool   `json:"debug"`
}

// LogConfig holds configuration for logging
type LogConfig struct {
	Level string `json:"level"`
	File  string `json:"file"`
	JSON  bool   `json:"json"`
}

var outputFormats = []string{"png", "jpg", "jpeg", "webp"}

// Default returns a configuration with default values
func Default() *Config {
	pc := processing.DefaultConfig()
	return &Config{
		Classifier: ClassifierConfig{
			PlantClass: "plant",
		},
		Mask: MaskConfig{
			KernelSize: pc.KernelSize,
		},
		Filter: FilterConfig{
			MinSize: pc.MinSize,
		},
		Cluster: ClusterConfig{
			Rows: pc.Rows,
			Cols: pc.Cols,
		},
		Output: OutputConfig{
			Dir:     pc.OutDir,
			Format:  pc.Format,
			Quality: imageio.DefaultConfig().Quality,
		},
		Audit: AuditConfig{
			Dir: pc.AuditDir,
		},
		Log: LogConfig{
			Level: "info",
		},
		Workers: 1,
	}
}

// LoadFromFile loads configuration from a JSON file. Missing keys keep
// their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Classifier.Path == "" {
		return fmt.Errorf("classifier.path is required")
	}

	if c.Classifier.PlantClass == "" {
		return fmt.Errorf("classifier.plant_class cannot be empty")
	}

	if c.Mask.KernelSize < 1 {
		return fmt.Errorf("mask.kernel_size must be positive")
	}

	if c.Filter.MinSize < 1 {
		return fmt.Errorf("filter.min_size must be positive")
	}

	if c.Cluster.Rows < 1 {
		return fmt.Errorf("cluster.rows must be positive")
	}

	if c.Cluster.Cols < 0 {
		return fmt.Errorf("cluster.cols cannot be negative")
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir cannot be empty")
	}

	if !isOutputFormat(c.Output.Format) {
		return fmt.Errorf("output.format must be one of %s", strings.Join(outputFormats, ", "))
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}

	return nil
}

// Processing converts the configuration into pipeline settings
func (c *Config) Processing() processing.Config {
	return processing.Config{
		KernelSize: c.Mask.KernelSize,
		MinSize:    c.Filter.MinSize,
		OutDir:     c.Output.Dir,
		AuditDir:   c.Audit.Dir,
		Format:     strings.ToLower(c.Output.Format),
		Debug:      c.Audit.Debug,
		Rows:       c.Cluster.Rows,
		Cols:       c.Cluster.Cols,
		LazyCrop:   c.Output.LazyCrop,
	}
}

// ImageIO converts the configuration into codec settings
func (c *Config) ImageIO() imageio.Config {
	io := imageio.DefaultConfig()
	io.Quality = c.Output.Quality
	io.Lossless = c.Output.Lossless
	return io
}

// Logging converts the configuration into logger options
func (c *Config) Logging() logging.Options {
	return logging.Options{
		Level: c.Log.Level,
		File:  c.Log.File,
		JSON:  c.Log.JSON,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "plant-splitter", "config.json")
}

func isOutputFormat(format string) bool {
	for _, f := range outputFormats {
		if strings.EqualFold(format, f) {
			return true
		}
	}
	return false
}
