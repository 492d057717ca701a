package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/menta2k/image-annotator/pkg/detection"
	"github.com/menta2k/image-annotator/pkg/drag"
	"github.com/menta2k/image-annotator/pkg/geometry"
	"github.com/menta2k/image-annotator/pkg/interaction"
	"github.com/menta2k/image-annotator/pkg/layout"
	"github.com/menta2k/image-annotator/pkg/measure"
)

// Config holds the application configuration
type Config struct {
	Layout      LayoutConfig      `json:"layout" toml:"layout"`
	Label       measure.Style     `json:"label" toml:"label"`
	Interaction InteractionConfig `json:"interaction" toml:"interaction"`
	Vision      VisionConfig      `json:"vision" toml:"vision"`
	Translation TranslationConfig `json:"translation" toml:"translation"`
	Output      OutputConfig      `json:"output" toml:"output"`
}

// LayoutConfig holds the placement parameters and the image fit mode
type LayoutConfig struct {
	Fit string `json:"fit" toml:"fit"`
	layout.Config
}

// InteractionConfig holds gesture timings in milliseconds
type InteractionConfig struct {
	DoubleClickMs  int     `json:"double_click_ms" toml:"double_click_ms"`
	FlipDwellMs    int     `json:"flip_dwell_ms" toml:"flip_dwell_ms"`
	DeadZonePx     float64 `json:"dead_zone_px" toml:"dead_zone_px"`
	ClickMaxHoldMs int     `json:"click_max_hold_ms" toml:"click_max_hold_ms"`
}

// VisionConfig selects where detections come from
type VisionConfig struct {
	Backend string `json:"backend" toml:"backend"` // file, ollama or llamacpp
	URL     string `json:"url" toml:"url"`
	Model   string `json:"model" toml:"model"`
	MaxDim  int    `json:"max_dim" toml:"max_dim"`
	Quality int    `json:"quality" toml:"quality"`
	detection.Options
}

// TranslationConfig points at translations for the back faces
type TranslationConfig struct {
	File     string `json:"file" toml:"file"`
	Endpoint string `json:"endpoint" toml:"endpoint"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	DefaultFormat string `json:"default_format" toml:"default_format"`
	OutputDir     string `json:"output_dir" toml:"output_dir"`
	Suffix        string `json:"suffix" toml:"suffix"`
	Quality       int    `json:"quality" toml:"quality"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Layout: LayoutConfig{
			Fit:    geometry.FitContain.String(),
			Config: layout.DefaultConfig(),
		},
		Label: measure.DefaultStyle(),
		Interaction: InteractionConfig{
			DoubleClickMs:  200,
			FlipDwellMs:    1500,
			DeadZonePx:     4,
			ClickMaxHoldMs: 200,
		},
		Vision: VisionConfig{
			Backend: "file",
			URL:     "http://localhost:11434",
			Model:   "llava",
			MaxDim:  1024,
			Quality: 85,
			Options: detection.DefaultOptions(),
		},
		Output: OutputConfig{
			DefaultFormat: "png",
			OutputDir:     "./output",
			Suffix:        "_annotated",
			Quality:       90,
		},
	}
}

// LoadFromFile loads configuration from a JSON or TOML file, chosen by
// extension. Missing keys keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isTOML(filename) {
		if _, err := toml.Decode(string(data), config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile saves configuration as JSON or TOML, chosen by extension
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	defer f.Close()

	if isTOML(filename) {
		err = toml.NewEncoder(f).Encode(c)
	} else {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		err = enc.Encode(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return nil
}

func isTOML(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".toml")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := geometry.ParseFit(c.Layout.Fit); err != nil {
		return fmt.Errorf("layout.fit: %w", err)
	}
	if c.Layout.MarginPx < 0 {
		return fmt.Errorf("layout.margin_px must not be negative")
	}
	if c.Layout.Solver.MaxOverlap < 0 || c.Layout.Solver.MaxOverlap > 100 {
		return fmt.Errorf("layout.solver.max_overlap must be between 0 and 100")
	}
	if c.Layout.Solver.TargetOverlap < 0 || c.Layout.Solver.TargetOverlap > 100 {
		return fmt.Errorf("layout.solver.target_overlap must be between 0 and 100")
	}
	if c.Layout.Sampler.Attempts < 1 {
		return fmt.Errorf("layout.sampler.attempts must be positive")
	}

	if c.Label.FontSize <= 0 {
		return fmt.Errorf("label.font_size must be positive")
	}
	if c.Label.PaddingX < 0 || c.Label.PaddingY < 0 {
		return fmt.Errorf("label padding must not be negative")
	}

	if c.Interaction.DoubleClickMs < 1 || c.Interaction.FlipDwellMs < 1 || c.Interaction.ClickMaxHoldMs < 1 {
		return fmt.Errorf("interaction timings must be positive")
	}

	switch c.Vision.Backend {
	case "file", "ollama", "llamacpp":
	default:
		return fmt.Errorf("vision.backend %q is not one of file, ollama, llamacpp", c.Vision.Backend)
	}
	if c.Vision.MinConfidence < 0 || c.Vision.MinConfidence > 1 {
		return fmt.Errorf("vision.min_confidence must be between 0 and 1")
	}
	if c.Vision.Quality < 1 || c.Vision.Quality > 100 {
		return fmt.Errorf("vision.quality must be between 1 and 100")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}
	return nil
}

// Fit returns the parsed fit mode
func (c *Config) Fit() geometry.Fit {
	fit, _ := geometry.ParseFit(c.Layout.Fit)
	return fit
}

// InteractionTimings returns the dispatcher configuration
func (c *Config) InteractionTimings() interaction.Config {
	return interaction.Config{
		DoubleClickWindow: time.Duration(c.Interaction.DoubleClickMs) * time.Millisecond,
		FlipDwell:         time.Duration(c.Interaction.FlipDwellMs) * time.Millisecond,
	}
}

// DragThresholds returns the drag controller configuration
func (c *Config) DragThresholds() drag.Config {
	return drag.Config{
		DeadZonePx:   c.Interaction.DeadZonePx,
		ClickMaxHold: time.Duration(c.Interaction.ClickMaxHoldMs) * time.Millisecond,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "image-annotator", "config.json")
}
