package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config holds the application configuration
type Config struct {
	Export   ExportConfig   `json:"export"`
	Vision   VisionConfig   `json:"vision"`
	Viewport ViewportConfig `json:"viewport"`
	Debug    DebugConfig    `json:"debug"`
}

// ExportConfig controls how cropped images are written
type ExportConfig struct {
	Format    string `json:"format"`
	Quality   int    `json:"quality"`
	Lossless  bool   `json:"lossless"`
	OutputDir string `json:"output_dir"`
	Prefix    string `json:"prefix"`
	Suffix    string `json:"suffix"`
}

// VisionConfig selects the vision model used for crop suggestions. The
// "local" backend needs no server and ignores the model settings.
type VisionConfig struct {
	Backend        string `json:"backend"`
	URL            string `json:"url"`
	Model          string `json:"model"`
	SendFormat     string `json:"send_format"`
	SendSize       int    `json:"send_size"`
	SendQuality    int    `json:"send_quality"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ViewportConfig bounds the zoom of the simulated image view
type ViewportConfig struct {
	MinZoom float64 `json:"min_zoom"`
	MaxZoom float64 `json:"max_zoom"`
}

// DebugConfig controls debug overlay output
type DebugConfig struct {
	Overlay bool   `json:"overlay"`
	Format  string `json:"format"`
	Quality int    `json:"quality"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			Format:    "jpg",
			Quality:   90,
			OutputDir: "./output",
			Suffix:    "_cropped",
		},
		Vision: VisionConfig{
			Backend:        "llamacpp",
			Model:          "openbmb/minicpm-v4.5",
			SendFormat:     "jpg",
			SendSize:       1536,
			SendQuality:    85,
			TimeoutSeconds: 300,
		},
		Viewport: ViewportConfig{
			MinZoom: 1.0,
			MaxZoom: 3.0,
		},
		Debug: DebugConfig{
			Format:  "png",
			Quality: 92,
		},
	}
}

// VisionURL returns the configured server URL or the backend's default
func (c *Config) VisionURL() string {
	if c.Vision.URL != "" {
		return c.Vision.URL
	}
	switch c.Vision.Backend {
	case "ollama":
		return "http://localhost:11434/api/chat"
	default:
		return "http://localhost:8080"
	}
}

// LoadFromFile loads configuration from a JSON file. Missing fields keep
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
	if !oneOf(c.Export.Format, "jpg", "jpeg", "png", "webp") {
		return fmt.Errorf("export.format must be one of jpg, png, webp")
	}

	if c.Export.Quality < 1 || c.Export.Quality > 100 {
		return fmt.Errorf("export.quality must be between 1 and 100")
	}

	if !oneOf(c.Vision.Backend, "ollama", "llamacpp", "local") {
		return fmt.Errorf("vision.backend must be ollama, llamacpp or local")
	}

	if !oneOf(c.Vision.SendFormat, "jpg", "jpeg", "png") {
		return fmt.Errorf("vision.send_format must be jpg or png")
	}

	if c.Vision.SendSize < 0 {
		return fmt.Errorf("vision.send_size must not be negative")
	}

	if c.Vision.SendQuality < 1 || c.Vision.SendQuality > 100 {
		return fmt.Errorf("vision.send_quality must be between 1 and 100")
	}

	if c.Vision.TimeoutSeconds < 0 {
		return fmt.Errorf("vision.timeout_seconds must not be negative")
	}

	if c.Viewport.MinZoom <= 0 || c.Viewport.MaxZoom < c.Viewport.MinZoom {
		return fmt.Errorf("viewport zoom range must satisfy 0 < min_zoom <= max_zoom")
	}

	if c.Debug.Quality < 1 || c.Debug.Quality > 100 {
		return fmt.Errorf("debug.quality must be between 1 and 100")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "photocrop", "config.json")
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if strings.EqualFold(v, o) {
			return true
		}
	}
	return false
}
