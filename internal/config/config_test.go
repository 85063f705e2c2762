package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
source: "/videos/walk.mp4"
mode: "Trace"
sampling:
  skip_every: 5
detector:
  backend: "subprocess"
  confidence: 0.4
playback:
  on_end: "loop"
display:
  sink: "web"
  addr: ":9090"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Source != "/videos/walk.mp4" {
		t.Errorf("Expected source '/videos/walk.mp4', got '%s'", cfg.Source)
	}
	if cfg.Mode != "Trace" {
		t.Errorf("Expected mode 'Trace', got '%s'", cfg.Mode)
	}
	if cfg.Sampling.SkipEvery != 5 {
		t.Errorf("Expected skip_every 5, got %d", cfg.Sampling.SkipEvery)
	}
	if cfg.Sampling.TargetWidth != 900 || cfg.Sampling.TargetHeight != 750 {
		t.Errorf("Expected default target size 900x750, got %dx%d", cfg.Sampling.TargetWidth, cfg.Sampling.TargetHeight)
	}
	if cfg.Detector.Backend != "subprocess" {
		t.Errorf("Expected backend 'subprocess', got '%s'", cfg.Detector.Backend)
	}
	if cfg.Detector.NMS != 0.45 {
		t.Errorf("Expected default nms 0.45, got %v", cfg.Detector.NMS)
	}
	if cfg.Playback.OnEnd != "loop" {
		t.Errorf("Expected on_end 'loop', got '%s'", cfg.Playback.OnEnd)
	}
	if cfg.Display.Addr != ":9090" {
		t.Errorf("Expected addr ':9090', got '%s'", cfg.Display.Addr)
	}
	if cfg.Path() != configPath {
		t.Errorf("Expected path %s, got %s", configPath, cfg.Path())
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	def := Default()
	if cfg.Mode != def.Mode || cfg.Sampling != def.Sampling || cfg.Playback != def.Playback {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
	if cfg.Path() != path {
		t.Errorf("Expected path to be kept for Save")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("sampling: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoadNormalizesEnumCase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "detector:\n  backend: ONNX\nplayback:\n  on_end: Loop\ndisplay:\n  sink: \" Web \"\n"
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Detector.Backend != "onnx" {
		t.Errorf("Detector.Backend = %q, want %q", cfg.Detector.Backend, "onnx")
	}
	if cfg.Playback.OnEnd != "loop" {
		t.Errorf("Playback.OnEnd = %q, want %q", cfg.Playback.OnEnd, "loop")
	}
	if cfg.Display.Sink != "web" {
		t.Errorf("Display.Sink = %q, want %q", cfg.Display.Sink, "web")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"negative skip", func(c *Config) { c.Sampling.SkipEvery = -1 }, "skip_every"},
		{"zero target", func(c *Config) { c.Sampling.TargetWidth = 0 }, "target size"},
		{"confidence range", func(c *Config) { c.Detector.Confidence = 1.5 }, "confidence"},
		{"unknown backend", func(c *Config) { c.Detector.Backend = "tpu" }, "detector.backend"},
		{"unknown sink", func(c *Config) { c.Display.Sink = "printer" }, "display.sink"},
		{"unknown end action", func(c *Config) { c.Playback.OnEnd = "rewind" }, "playback.on_end"},
		{"case insensitive", func(c *Config) { c.Display.Sink = "Console" }, ""},
	}

	t.Run("lowercases overrides", func(t *testing.T) {
		cfg := Default()
		cfg.Detector.Backend = "SubProcess"
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		if cfg.Detector.Backend != "subprocess" {
			t.Errorf("Detector.Backend = %q, want %q", cfg.Detector.Backend, "subprocess")
		}
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.SetPath(path)
	cfg.Source = "/videos/a.mp4"
	cfg.Mode = "HeatMap"
	cfg.Display.Tray = true

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file should be renamed away")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Source != cfg.Source || loaded.Mode != cfg.Mode || !loaded.Display.Tray {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestSaveWithoutPath(t *testing.T) {
	if err := Default().Save(); err == nil {
		t.Error("Expected error when saving without a path")
	}
}
