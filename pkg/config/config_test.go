package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"

	"radiocube/internal/models"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "radiocube.yml")
	cfg := DefaultConfig()
	cfg.Baseline.Order = 3
	cfg.Baseline.Windows = [][]float64{{-100, -40}}
	cfg.Moment.Orders = []int{0}
	cfg.Output.Dir = "products"
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radiocube.yml")
	yml := "baseline:\n  order: 2\nextraction:\n  gauss_width: 4\noutput:\n  dir: fromfile\n"
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	t.Setenv("RADIOCUBE_EXTRACTION_GAUSS_WIDTH", "5")
	t.Setenv("RADIOCUBE_OUTPUT_DIR", "fromenv")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("out", "flagdefault", "")
	fs.Int("order", 9, "")
	if err := fs.Parse([]string{"--out", "fromflag"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	keys := map[string]string{"out": "output.dir", "order": "baseline.order"}

	cfg, err := Load(path, fs, keys)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Baseline.Order != 2 {
		t.Errorf("file value should survive an unset flag, got order %d", cfg.Baseline.Order)
	}
	if cfg.Extraction.GaussWidth != 5 {
		t.Errorf("environment should override the file, got gauss width %d", cfg.Extraction.GaussWidth)
	}
	if cfg.Output.Dir != "fromflag" {
		t.Errorf("flag should override the environment, got dir %q", cfg.Output.Dir)
	}
	if cfg.Moment.Upper != 20 {
		t.Errorf("untouched values keep their defaults, got upper %g", cfg.Moment.Upper)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"layout", func(c *Config) { c.Processing.Layout = "vvv" }},
		{"workers", func(c *Config) { c.Processing.Workers = -1 }},
		{"window", func(c *Config) { c.Baseline.Windows = [][]float64{{1, 2, 3}} }},
		{"order", func(c *Config) { c.Moment.Orders = []int{0, 3} }},
		{"format", func(c *Config) { c.Output.Format = "gif" }},
		{"factor", func(c *Config) { c.Transpose.SmoothFactor = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, models.ErrInvalidArgument) {
				t.Errorf("expected invalid argument, got %v", err)
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestWindows(t *testing.T) {
	got, err := Windows([][]float64{{5, -5}, {10, 20}})
	if err != nil {
		t.Fatalf("Windows failed: %v", err)
	}
	want := []models.Window{{Lower: -5, Upper: 5}, {Lower: 10, Upper: 20}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("windows mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvKey(t *testing.T) {
	for in, want := range map[string]string{
		"RADIOCUBE_BASELINE_ORDER":                    "baseline.order",
		"RADIOCUBE_MOMENT_RMS_WINDOWS":                "moment.rms_windows",
		"RADIOCUBE_OUTPUT_SAVE_INTERMEDIARY_RESULTS": "output.save_intermediary_results",
	} {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	if err := Print(&buf, DefaultConfig()); err != nil {
		t.Fatalf("Print failed: %v", err)
	}
	for _, s := range []string{"processing:", "gauss_width: 2", "rms_windows:"} {
		if !strings.Contains(buf.String(), s) {
			t.Errorf("printed config lacks %q:\n%s", s, buf.String())
		}
	}
}
