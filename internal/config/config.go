// Package config loads and watches the personlens YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration. Zero values are filled from Default
// when loading.
type Config struct {
	// Source is the video loaded at startup. Empty means none.
	Source   string         `yaml:"source"`
	Mode     string         `yaml:"mode"`
	Sampling SamplingConfig `yaml:"sampling"`
	Detector DetectorConfig `yaml:"detector"`
	Playback PlaybackConfig `yaml:"playback"`
	Display  DisplayConfig  `yaml:"display"`
	Store    StoreConfig    `yaml:"store"`

	path string
}

// SamplingConfig controls which frames go through detection.
type SamplingConfig struct {
	SkipEvery    int `yaml:"skip_every"`
	TargetWidth  int `yaml:"target_width"`
	TargetHeight int `yaml:"target_height"`
}

// DetectorConfig selects and tunes the detection backend.
type DetectorConfig struct {
	// Backend is one of onnx, subprocess or mock.
	Backend         string  `yaml:"backend"`
	Model           string  `yaml:"model"`
	Script          string  `yaml:"script"`
	Python          string  `yaml:"python"`
	ClassOfInterest int     `yaml:"class_of_interest"`
	Confidence      float32 `yaml:"confidence"`
	NMS             float32 `yaml:"nms"`
	InputSize       int     `yaml:"input_size"`
}

// PlaybackConfig holds session behaviour.
type PlaybackConfig struct {
	// OnEnd is stop or loop.
	OnEnd string `yaml:"on_end"`
}

// DisplayConfig selects where frames go.
type DisplayConfig struct {
	// Sink is one of window, web, console or headless.
	Sink      string `yaml:"sink"`
	Addr      string `yaml:"addr"`
	Tray      bool   `yaml:"tray"`
	ShowCount bool   `yaml:"show_count"`
}

// StoreConfig locates the settings database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Valid values for enumerated keys.
var (
	Backends   = []string{"onnx", "subprocess", "mock"}
	Sinks      = []string{"window", "web", "console", "headless"}
	EndActions = []string{"stop", "loop"}
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mode: "Ellipse",
		Sampling: SamplingConfig{
			SkipEvery:    3,
			TargetWidth:  900,
			TargetHeight: 750,
		},
		Detector: DetectorConfig{
			Backend:         "onnx",
			Model:           "models/yolov8n.onnx",
			ClassOfInterest: 0,
			Confidence:      0.25,
			NMS:             0.45,
			InputSize:       640,
		},
		Playback: PlaybackConfig{OnEnd: "stop"},
		Display: DisplayConfig{
			Sink:      "window",
			Addr:      ":8080",
			ShowCount: true,
		},
		Store: StoreConfig{Path: DefaultStorePath()},
	}
}

// DefaultPath returns ~/.personlens/config.yaml.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".personlens", "config.yaml")
}

// DefaultStorePath returns ~/.personlens/personlens.db.
func DefaultStorePath() string {
	return filepath.Join(homeDir(), ".personlens", "personlens.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults restores defaults for keys that were present but zeroed.
func (c *Config) setDefaults() {
	def := Default()
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.Sampling.SkipEvery == 0 {
		c.Sampling.SkipEvery = def.Sampling.SkipEvery
	}
	if c.Sampling.TargetWidth == 0 {
		c.Sampling.TargetWidth = def.Sampling.TargetWidth
	}
	if c.Sampling.TargetHeight == 0 {
		c.Sampling.TargetHeight = def.Sampling.TargetHeight
	}
	if c.Detector.Backend == "" {
		c.Detector.Backend = def.Detector.Backend
	}
	if c.Detector.InputSize == 0 {
		c.Detector.InputSize = def.Detector.InputSize
	}
	if c.Playback.OnEnd == "" {
		c.Playback.OnEnd = def.Playback.OnEnd
	}
	if c.Display.Sink == "" {
		c.Display.Sink = def.Display.Sink
	}
	if c.Display.Addr == "" {
		c.Display.Addr = def.Display.Addr
	}
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
}

// Validate lowercases the enumerated keys, then checks value ranges and
// that each enumerated key holds a known value.
func (c *Config) Validate() error {
	c.normalize()

	if c.Sampling.SkipEvery <= 0 {
		return fmt.Errorf("sampling.skip_every must be positive, got %d", c.Sampling.SkipEvery)
	}
	if c.Sampling.TargetWidth <= 0 || c.Sampling.TargetHeight <= 0 {
		return fmt.Errorf("sampling target size must be positive, got %dx%d",
			c.Sampling.TargetWidth, c.Sampling.TargetHeight)
	}
	if c.Detector.Confidence < 0 || c.Detector.Confidence > 1 {
		return fmt.Errorf("detector.confidence must be within [0,1], got %v", c.Detector.Confidence)
	}
	if c.Detector.NMS < 0 || c.Detector.NMS > 1 {
		return fmt.Errorf("detector.nms must be within [0,1], got %v", c.Detector.NMS)
	}
	if c.Detector.ClassOfInterest < 0 {
		return fmt.Errorf("detector.class_of_interest must not be negative")
	}
	if err := oneOf("detector.backend", c.Detector.Backend, Backends); err != nil {
		return err
	}
	if err := oneOf("playback.on_end", c.Playback.OnEnd, EndActions); err != nil {
		return err
	}
	return oneOf("display.sink", c.Display.Sink, Sinks)
}

func (c *Config) normalize() {
	c.Detector.Backend = strings.ToLower(strings.TrimSpace(c.Detector.Backend))
	c.Playback.OnEnd = strings.ToLower(strings.TrimSpace(c.Playback.OnEnd))
	c.Display.Sink = strings.ToLower(strings.TrimSpace(c.Display.Sink))
}

func oneOf(key, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// SetPath changes where Save writes.
func (c *Config) SetPath(path string) {
	c.path = path
}

// Save writes the config atomically to its path.
func (c *Config) Save() error {
	if c.path == "" {
		return errors.New("config has no path")
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := "# personlens configuration\n\n"
	data = append([]byte(header), data...)

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Atomic write
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Rename(tmpPath, c.path)
}
