package main

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"radiocube/internal/models"
)

func TestCommandFlagsOverrideConfig(t *testing.T) {
	cmd := newCommand("test", "", 1)
	cmd.fs.Int("order", 1, "")
	cmd.bind("order", "baseline.order")
	cmd.fs.Float64Slice("windows", nil, "")

	missing := filepath.Join(t.TempDir(), "none.yml")
	cfg, files := cmd.parse([]string{"--config", missing, "--order", "3", "--windows", "-50,-30,30,50", "cube.fits"})
	if cfg.Baseline.Order != 3 {
		t.Errorf("expected order 3 from the flag, got %d", cfg.Baseline.Order)
	}
	if diff := cmp.Diff([]string{"cube.fits"}, files); diff != "" {
		t.Errorf("positional arguments mismatch (-want +got):\n%s", diff)
	}

	got := cmd.windowsFlag("windows", cfg.Baseline.Windows)
	want := []models.Window{{Lower: -50, Upper: -30}, {Lower: 30, Upper: 50}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("windows mismatch (-want +got):\n%s", diff)
	}
}

func TestWindowsFlagFallsBackToConfig(t *testing.T) {
	cmd := newCommand("test", "", 0)
	cmd.fs.Float64Slice("windows", nil, "")
	cfg, _ := cmd.parse([]string{"--config", filepath.Join(t.TempDir(), "none.yml")})

	got := cmd.windowsFlag("windows", cfg.Baseline.Windows)
	want := []models.Window{{Lower: -60, Upper: -20}, {Lower: 20, Upper: 60}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("windows mismatch (-want +got):\n%s", diff)
	}
}
