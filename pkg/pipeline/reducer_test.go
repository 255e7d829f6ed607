package pipeline

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"radiocube/internal/models"
	"radiocube/pkg/config"
	"radiocube/pkg/fitsfile"
)

// lineCube builds an xyv cube with 41 channels from -100 to 100 km/s.
// Every spectrum holds a linear baseline plus a Gaussian line of width
// 5 km/s at 0 km/s whose peak is 1 + x + y.
func lineCube(t *testing.T) *models.Cube {
	t.Helper()
	c, err := models.NewCube([]models.Axis{
		{Type: "RA---GLS", RefPixel: 1, RefValue: 83.8, Step: -0.01, Length: 4},
		{Type: "DEC--GLS", RefPixel: 1, RefValue: -5.4, Step: 0.01, Length: 3},
		{Type: "VELO-LSR", RefPixel: 1, RefValue: -100000, Step: 5000, Length: 41},
	})
	if err != nil {
		t.Fatalf("NewCube failed: %v", err)
	}
	c.Unit = "K"
	vel := c.Axes[2].Values(true)
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			peak := 1 + float64(x+y)
			for k, v := range vel {
				c.Set(x, y, k, 0.5+0.01*v+peak*math.Exp(-v*v/50))
			}
		}
	}
	return c
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Processing.Workers = 2
	cfg.Output.Dir = t.TempDir()
	cfg.Output.Verbose = false
	cfg.Moment.Orders = []int{0, 1}
	cfg.Baseline.Windows = [][]float64{{-100, -40}, {40, 100}}
	return cfg
}

func TestProcessCube(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.SaveIntermediaryResults = true
	c := lineCube(t)
	orig := append([]float64(nil), c.Data...)

	r := NewReducer(cfg)
	if err := r.ProcessCube(c, "orion"); err != nil {
		t.Fatalf("ProcessCube failed: %v", err)
	}

	for i := range orig {
		if c.Data[i] != orig[i] {
			t.Fatalf("input cube was modified at sample %d", i)
		}
	}

	reduced := r.Cube()
	if reduced.Axes[0].Type != "VELO-LSR" || reduced.Axes[0].Length != 41 {
		t.Fatalf("expected a spectral-first cube, got axes %+v", reduced.Axes)
	}
	// The baseline is gone outside the line
	for pix := 0; pix < 12; pix++ {
		if v := reduced.Data[pix*41]; math.Abs(v) > 1e-9 {
			t.Errorf("pixel %d: residual %g at the first channel", pix, v)
		}
	}

	m0, ok := r.Moment(0)
	if !ok {
		t.Fatalf("moment 0 missing")
	}
	// Sum of the line over -20..20 km/s at 5 km/s steps
	var unit float64
	for _, v := range []float64{-20, -15, -10, -5, 0, 5, 10, 15, 20} {
		unit += 5 * math.Exp(-v*v/50)
	}
	for x := 0; x < 4; x++ {
		for y := 0; y < 3; y++ {
			want := (1 + float64(x+y)) * unit
			if got := m0.Map.At(x, y, 0); math.Abs(got-want) > 1e-6 {
				t.Errorf("mom0 (%d,%d): expected %f, got %f", x, y, want, got)
			}
		}
	}
	if m0.RMS == nil {
		t.Errorf("expected an RMS map for moment 0")
	}

	m1, _ := r.Moment(1)
	for i, v := range m1.Map.Data {
		if math.Abs(v) > 1e-6 {
			t.Errorf("mom1 pixel %d: expected 0, got %g", i, v)
		}
	}

	s := r.GetSummary()
	if s.Degenerate != 0 || s.BaselineChannels != 26 {
		t.Errorf("unexpected baseline summary %+v", s)
	}
	if len(s.Stats) != 4 {
		t.Errorf("expected sigma, mom0, mom0_rms and mom1 stats, got %d", len(s.Stats))
	}
	for _, name := range []string{"orion_reduced.fits", "orion_sigma.fits", "orion_mom0.fits", "orion_mom0_rms.fits", "orion_mom1.fits", "orion_mom0.png", "intermediary/orion_01_transposed.fits"} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name)); err != nil {
			t.Errorf("expected product %s: %v", name, err)
		}
	}
}

func TestProcessCubeKeepsBlanks(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.QuickLook = false
	cfg.Moment.Orders = []int{0}
	c := lineCube(t)
	c.SetBlank(-999)
	c.Set(0, 0, 0, -999)
	c.Set(0, 0, 20, -999)

	r := NewReducer(cfg)
	if err := r.ProcessCube(c, "blanked"); err != nil {
		t.Fatalf("ProcessCube failed: %v", err)
	}
	reduced := r.Cube()
	if !reduced.IsBlank(reduced.At(0, 0, 0)) || !reduced.IsBlank(reduced.At(20, 0, 0)) {
		t.Errorf("blank samples lost their sentinel: %g, %g", reduced.At(0, 0, 0), reduced.At(20, 0, 0))
	}
	if v := reduced.At(1, 0, 0); math.Abs(v) > 1e-9 {
		t.Errorf("baseline of the blanked pixel was not removed, residual %g", v)
	}

	var unit float64
	for _, v := range []float64{-20, -15, -10, -5, 5, 10, 15, 20} {
		unit += 5 * math.Exp(-v*v/50)
	}
	m0, _ := r.Moment(0)
	// The blank at 0 km/s counts as zero
	if got := m0.Map.At(0, 0, 0); math.Abs(got-unit) > 1e-6 {
		t.Errorf("mom0 of the blanked pixel: expected %f, got %f", unit, got)
	}
}

func TestProcessFromFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.QuickLook = false
	cfg.Baseline.Enabled = false
	cfg.Moment.Orders = []int{0}
	cfg.Moment.RMSWindows = nil

	input := filepath.Join(t.TempDir(), "cube.fits")
	if err := fitsfile.Write(input, lineCube(t)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	r := NewReducer(cfg)
	if err := r.Process(input); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	m0, err := fitsfile.Read(filepath.Join(cfg.Output.Dir, "cube_mom0.fits"))
	if err != nil {
		t.Fatalf("reading moment map failed: %v", err)
	}
	if m0.Rank() != 2 || m0.Unit != "K.km/s" {
		t.Errorf("unexpected moment map rank %d unit %q", m0.Rank(), m0.Unit)
	}
	if _, ok := m0.Keyword("MOMENT"); !ok {
		t.Errorf("expected MOMENT keyword in the written map")
	}
}

func TestProcessRejectsWrongLayout(t *testing.T) {
	cfg := testConfig(t)
	cfg.Processing.Layout = "vxy"
	err := NewReducer(cfg).ProcessCube(lineCube(t), "bad")
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected invalid argument for a mislabelled layout, got %v", err)
	}
}

func TestStats(t *testing.T) {
	m, _ := models.FromArray([]float64{4, 1, math.NaN(), 3, -99, 2}, []models.Axis{{Length: 3}, {Length: 2}})
	m.SetBlank(-99)
	s := Stats("map", m)
	if s.Valid != 4 || s.Min != 1 || s.Max != 4 || s.Mean != 2.5 {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.Median != 2 {
		t.Errorf("expected empirical median 2, got %f", s.Median)
	}

	empty, _ := models.FromArray([]float64{math.NaN()}, []models.Axis{{Length: 1}, {Length: 1}})
	if s := Stats("empty", empty); s.Valid != 0 || !math.IsNaN(s.Mean) {
		t.Errorf("expected no valid pixels, got %+v", s)
	}
}
