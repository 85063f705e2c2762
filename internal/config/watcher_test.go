package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mode: Box\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, logs.NewTestingLog(t))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	changed := make(chan *Config, 4)
	w.OnChange(func(c *Config) { changed <- c })

	// Several quick writes collapse into few reloads, the last one wins
	for _, mode := range []string{"Mask", "Trace", "Blur"} {
		if err := os.WriteFile(path, []byte("mode: "+mode+"\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Mode == "Blur" {
				return
			}
		case <-deadline:
			t.Fatal("watcher did not deliver the final config")
		}
	}
}

func TestWatcherCreatesMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "first-run", "config.yaml")

	w, err := NewWatcher(path, logs.NewTestingLog(t))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	changed := make(chan *Config, 4)
	w.OnChange(func(c *Config) { changed <- c })

	if err := os.WriteFile(path, []byte("mode: Trace\n"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Mode == "Trace" {
				return
			}
		case <-deadline:
			t.Fatal("watcher did not pick up a config written after start")
		}
	}
}

func TestWatcherIgnoresInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mode: Box\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, logs.NewTestingLog(t))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	changed := make(chan *Config, 4)
	w.OnChange(func(c *Config) { changed <- c })

	if err := os.WriteFile(path, []byte("sampling:\n  skip_every: -2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changed:
		t.Errorf("invalid config should not be delivered, got %+v", c)
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcherClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	w, err := NewWatcher(path, logs.NewTestingLog(t))
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
