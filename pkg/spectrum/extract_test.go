package spectrum

import (
	"errors"
	"math"
	"testing"

	"radiocube/internal/models"
)

func vxyAxes(nv, nx, ny int) []models.Axis {
	return []models.Axis{
		{Type: "VELO-LSR", RefPixel: 1, RefValue: -5000, Step: 1000, Length: nv},
		{Type: "RA---GLS", RefPixel: 1, RefValue: 10, Step: -0.01, Length: nx},
		{Type: "DEC--GLS", RefPixel: 1, RefValue: 20, Step: 0.01, Length: ny},
	}
}

func uniformCube(t *testing.T, nv, nx, ny int, value float64) *models.Cube {
	t.Helper()
	c, err := models.NewCube(vxyAxes(nv, nx, ny))
	if err != nil {
		t.Fatalf("NewCube failed: %v", err)
	}
	for i := range c.Data {
		c.Data[i] = value
	}
	return c
}

func TestExtractUniformCube(t *testing.T) {
	c := uniformCube(t, 6, 10, 8, 2.5)
	w := 2
	// Exactly w pixels from the left and bottom edges
	for _, p := range [][2]float64{{2, 2}, {7, 5}, {4.3, 3.6}} {
		spec, err := Extract(c, p[0], p[1], w)
		if err != nil {
			t.Fatalf("Extract at %v failed: %v", p, err)
		}
		if spec.Rank() != 1 || spec.Axes[0].Length != 6 || spec.Axes[0].Type != "VELO-LSR" {
			t.Fatalf("unexpected result axes %+v", spec.Axes)
		}
		for v, got := range spec.Data {
			if math.Abs(got-2.5) > 1e-12 {
				t.Errorf("at %v channel %d: expected 2.5, got %f", p, v, got)
			}
		}
	}
}

func TestExtractWeightsNeighbours(t *testing.T) {
	c := uniformCube(t, 3, 9, 9, 0)
	// A single bright pixel next to the centre
	for v := 0; v < 3; v++ {
		c.Set(v, 5, 4, 1)
	}
	s, err := NewSampler(c, 2)
	if err != nil {
		t.Fatalf("NewSampler failed: %v", err)
	}
	dst := make([]float64, 3)
	if err := s.At(4, 4, dst); err != nil {
		t.Fatalf("At failed: %v", err)
	}
	want := s.kernel.At(1, 0) / s.ksum
	for v := range dst {
		if math.Abs(dst[v]-want) > 1e-12 {
			t.Errorf("channel %d: expected %g, got %g", v, want, dst[v])
		}
	}
}

func TestExtractTruncatedFootprintReadsNearestPixel(t *testing.T) {
	c := uniformCube(t, 4, 6, 6, 0)
	for v := 0; v < 4; v++ {
		c.Set(v, 1, 0, float64(v+1))
	}
	spec, err := Extract(c, 0.8, 0.2, 2)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	for v, got := range spec.Data {
		if got != float64(v+1) {
			t.Errorf("channel %d: expected %d, got %f", v, v+1, got)
		}
	}

	// The last row rounds past the edge and is clamped
	for v := 0; v < 4; v++ {
		c.Set(v, 5, 5, 9)
	}
	spec, _ = Extract(c, 5.7, 5.9, 1)
	if spec.Data[0] != 9 {
		t.Errorf("expected the edge pixel, got %f", spec.Data[0])
	}
}

func TestExtractFullKernelAtUpperEdge(t *testing.T) {
	c := uniformCube(t, 2, 6, 6, 0)
	for v := 0; v < 2; v++ {
		c.Set(v, 5, 3, 1)
	}
	s, err := NewSampler(c, 2)
	if err != nil {
		t.Fatalf("NewSampler failed: %v", err)
	}
	// Columns 1..5 fit inside the cube, so the kernel is not truncated
	if _, _, _, _, truncated := s.Footprint(3, 3); truncated {
		t.Fatalf("footprint at the upper edge should be complete")
	}
	dst := make([]float64, 2)
	if err := s.At(3, 3, dst); err != nil {
		t.Fatalf("At failed: %v", err)
	}
	want := s.kernel.At(2, 0) / s.ksum
	for v := range dst {
		if math.Abs(dst[v]-want) > 1e-12 {
			t.Errorf("channel %d: expected the weighted edge pixel %g, got %g", v, want, dst[v])
		}
	}

	if _, _, _, _, truncated := s.Footprint(3.6, 3); !truncated {
		t.Errorf("footprint one pixel further should be truncated")
	}
}

func TestExtractErrors(t *testing.T) {
	c := uniformCube(t, 4, 6, 5, 1)
	tests := []struct {
		name   string
		x, y   float64
		width  int
		errArg string
	}{
		{"x below", -0.5, 1, 2, "x0"},
		{"x above", 6, 1, 2, "x0"},
		{"y above", 1, 5, 2, "y0"},
		{"zero width", 1, 1, 0, "gauss_width"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(c, tt.x, tt.y, tt.width)
			var argErr *models.ArgumentError
			if !errors.As(err, &argErr) || argErr.Arg != tt.errArg {
				t.Errorf("expected argument error on %s, got %v", tt.errArg, err)
			}
		})
	}

	xyv, _ := models.NewCube([]models.Axis{{Type: "RA---SIN", Length: 2}, {Type: "DEC--SIN", Length: 2}, {Type: "VELO-LSR", Length: 3}})
	if _, err := Extract(xyv, 0, 0, 1); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected xyv cube to be rejected, got %v", err)
	}
}

func TestExtractHistory(t *testing.T) {
	c := uniformCube(t, 2, 5, 5, 1)
	c.AddHistory("read from disk")
	spec, _ := Extract(c, 2, 2, 2)
	if len(spec.History) != 2 || spec.History[1] != "Extracted spectrum at (2, 2) with gauss_width=2" {
		t.Errorf("unexpected history %q", spec.History)
	}
}
