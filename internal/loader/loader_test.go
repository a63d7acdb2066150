package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xtxerr/orbitd/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_DefaultsSurviveEmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, "# empty\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Window.Size.Duration() != 60*time.Second {
		t.Errorf("expected default window size 60s, got %v", cfg.Window.Size.Duration())
	}
	if cfg.Window.AllowedLateness.Duration() != 10*time.Second {
		t.Errorf("expected default lateness 10s, got %v", cfg.Window.AllowedLateness.Duration())
	}
	if cfg.Reference.Latitude != 48.8566 {
		t.Errorf("expected Paris reference latitude, got %v", cfg.Reference.Latitude)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestLoad_OverridesAndDurationForms(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
source:
  interval: 2s
  duration: 120
window:
  size: 30s
  allowed_lateness: 5
reference:
  latitude: 51.5074
  longitude: -0.1278
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Source.Interval.Duration() != 2*time.Second {
		t.Errorf("interval: got %v", cfg.Source.Interval.Duration())
	}
	// Plain numbers parse as seconds.
	if cfg.Source.Duration.Duration() != 120*time.Second {
		t.Errorf("duration: got %v", cfg.Source.Duration.Duration())
	}
	if cfg.Window.Size.Duration() != 30*time.Second {
		t.Errorf("window size: got %v", cfg.Window.Size.Duration())
	}
	if cfg.Window.AllowedLateness.Duration() != 5*time.Second {
		t.Errorf("lateness: got %v", cfg.Window.AllowedLateness.Duration())
	}
	if cfg.Reference.Longitude != -0.1278 {
		t.Errorf("reference longitude: got %v", cfg.Reference.Longitude)
	}

	// Untouched sections keep their defaults.
	if cfg.Source.MaxRetries != 3 {
		t.Errorf("max retries default lost: %d", cfg.Source.MaxRetries)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("ORBITD_TEST_DATA_DIR", "/tmp/orbitd-test")

	cfg, err := Load(writeConfig(t, `
output:
  data_dir: ${ORBITD_TEST_DATA_DIR}
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Output.DataDir != "/tmp/orbitd-test" {
		t.Errorf("env not expanded: %q", cfg.Output.DataDir)
	}
	if got := cfg.SpoolDir(); got != filepath.Join("/tmp/orbitd-test", "spool") {
		t.Errorf("spool dir: %q", got)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero window size", func(c *Config) { c.Window.Size = 0 }},
		{"fractional window size", func(c *Config) { c.Window.Size = Duration(1500 * time.Millisecond) }},
		{"negative lateness", func(c *Config) { c.Window.AllowedLateness = Duration(-time.Second) }},
		{"latitude out of range", func(c *Config) { c.Reference.Latitude = 91 }},
		{"longitude out of range", func(c *Config) { c.Reference.Longitude = -181 }},
		{"zero poll interval", func(c *Config) { c.Source.Interval = 0 }},
		{"zero retries", func(c *Config) { c.Source.MaxRetries = 0 }},
		{"bad percentile accuracy", func(c *Config) { c.Window.Percentiles.Accuracy = 0.9 }},
		{"empty data dir", func(c *Config) { c.Output.DataDir = "" }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.IsValidation(err) {
				t.Errorf("expected a validation error, got %v", err)
			}
		})
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Window.Size = 0
	cfg.Reference.Latitude = 100
	cfg.Source.Interval = 0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}

	var verrs *errors.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs.Errors) != 3 {
		t.Errorf("expected 3 collected errors, got %d", len(verrs.Errors))
	}
}
