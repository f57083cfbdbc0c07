package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// maxFrameRate caps the viewer frame loop rate.
const maxFrameRate = 240

// Config holds backend, viewer, output and logging settings.
type Config struct {
	// Backend
	BackendURL     string   `json:"backend_url" yaml:"backend_url"`
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout"`
	RateLimit      float64  `json:"rate_limit" yaml:"rate_limit"` // requests/s, 0 = unlimited
	RateBurst      int      `json:"rate_burst" yaml:"rate_burst"`

	// Rendering
	RenderWorkers int `json:"render_workers" yaml:"render_workers"`
	ViewerWidth   int `json:"viewer_width" yaml:"viewer_width"`
	ViewerHeight  int `json:"viewer_height" yaml:"viewer_height"`
	FrameRate     int `json:"frame_rate" yaml:"frame_rate"`
	Supersample   int `json:"supersample" yaml:"supersample"`
	ThumbnailSize int `json:"thumbnail_size" yaml:"thumbnail_size"`

	// Output
	SnapshotDir string `json:"snapshot_dir" yaml:"snapshot_dir"`

	// Logging
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
	LogFile   string `json:"log_file" yaml:"log_file"`

	MetricsNamespace string `json:"metrics_namespace" yaml:"metrics_namespace"`
}

// Duration is a time.Duration written as "30s" in config files.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return d.set(v)
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var v any
	if err := n.Decode(&v); err != nil {
		return err
	}
	return d.set(v)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) set(v any) error {
	switch x := v.(type) {
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", x, err)
		}
		*d = Duration(parsed)
	case float64:
		*d = Duration(x * float64(time.Second))
	case int:
		*d = Duration(time.Duration(x) * time.Second)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// Load reads a config file. ".yaml" and ".yml" files are parsed as YAML,
// anything else as JSON. Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	BackendURL  string
	Timeout     time.Duration
	Workers     int
	SnapshotDir string
	LogLevel    string
	LogFormat   string
}

// Resolve applies flag overrides, then fills empty fields with defaults.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.BackendURL != "" {
		c.BackendURL = flags.BackendURL
	}
	if flags.Timeout > 0 {
		c.RequestTimeout = Duration(flags.Timeout)
	}
	if flags.Workers > 0 {
		c.RenderWorkers = flags.Workers
	}
	if flags.SnapshotDir != "" {
		c.SnapshotDir = flags.SnapshotDir
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
	if flags.LogFormat != "" {
		c.LogFormat = flags.LogFormat
	}

	if c.BackendURL == "" {
		c.BackendURL = "http://localhost:8000"
	}
	c.BackendURL = strings.TrimRight(c.BackendURL, "/")
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = Duration(60 * time.Second)
	}
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 1
	}

	// Defaults for render settings
	if c.RenderWorkers <= 0 {
		c.RenderWorkers = runtime.NumCPU()
	}
	if c.ViewerWidth <= 0 {
		c.ViewerWidth = 400
	}
	if c.ViewerHeight <= 0 {
		c.ViewerHeight = 300
	}
	if c.FrameRate <= 0 {
		c.FrameRate = 30
	}
	if c.FrameRate > maxFrameRate {
		c.FrameRate = maxFrameRate
	}
	if c.Supersample <= 0 {
		c.Supersample = 2
	}
	if c.ThumbnailSize <= 0 {
		c.ThumbnailSize = 256
	}

	if c.SnapshotDir != "" && !filepath.IsAbs(c.SnapshotDir) {
		if abs, err := filepath.Abs(c.SnapshotDir); err == nil {
			c.SnapshotDir = abs
		}
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.MetricsNamespace == "" {
		c.MetricsNamespace = "asset_studio"
	}
}
