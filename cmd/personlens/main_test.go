package main

import "testing"

func TestStartupMode(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		last       string
		fromFlag   bool
		want       string
	}{
		{"flag wins over last", "Blur", "Trace", true, "Blur"},
		{"config file wins over last", "Pixelate", "Trace", false, "Pixelate"},
		{"default config restores last", "Ellipse", "Trace", false, "Trace"},
		{"default config in other case", "ellipse", "Trace", false, "Trace"},
		{"nothing stored", "Ellipse", "", false, "Ellipse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := startupMode(tt.configured, tt.last, tt.fromFlag); got != tt.want {
				t.Errorf("startupMode(%q, %q, %v) = %q, want %q", tt.configured, tt.last, tt.fromFlag, got, tt.want)
			}
		})
	}
}
