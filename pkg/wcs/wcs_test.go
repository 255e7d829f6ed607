package wcs

import (
	"errors"
	"math"
	"testing"

	"radiocube/internal/models"
)

func testAxes() []models.Axis {
	return []models.Axis{
		{Type: "VELO-LSR", RefPixel: 1, RefValue: 0, Step: 1000, Length: 8},
		{Type: "RA---GLS", RefPixel: 10, RefValue: 83.8, Step: -0.01, Length: 20},
		{Type: "DEC--GLS", RefPixel: 5, RefValue: 60, Step: 0.01, Length: 10},
	}
}

func TestPixelToWorld(t *testing.T) {
	tr, err := FromAxes(testAxes(), false)
	if err != nil {
		t.Fatalf("FromAxes failed: %v", err)
	}
	if tr.LonIndex != 1 || tr.LatIndex != 2 {
		t.Fatalf("unexpected axis indices %d, %d", tr.LonIndex, tr.LatIndex)
	}
	ra, dec, err := tr.PixelToWorld(10, 5)
	if err != nil || ra != 83.8 || dec != 60 {
		t.Errorf("reference pixel should map to reference values, got (%f, %f, %v)", ra, dec, err)
	}
	ra, dec, _ = tr.PixelToWorld(12, 7)
	if math.Abs(ra-83.78) > 1e-12 || math.Abs(dec-60.02) > 1e-12 {
		t.Errorf("got (%f, %f)", ra, dec)
	}

	// With the cosine correction the RA offset is stretched by 1/cos(dec)
	tr.CosDec = true
	ra, dec, _ = tr.PixelToWorld(12, 5)
	want := 83.8 - 0.02/math.Cos(60*math.Pi/180)
	if math.Abs(ra-want) > 1e-12 || dec != 60 {
		t.Errorf("cosdec: expected ra %f, got %f", want, ra)
	}
}

func TestWorldToPixelRoundTrip(t *testing.T) {
	for _, cosDec := range []bool{false, true} {
		tr, _ := FromAxes(testAxes(), cosDec)
		for _, p := range [][2]float64{{1, 1}, {3.5, 7.25}, {20, 10}} {
			ra, dec, err := tr.PixelToWorld(p[0], p[1])
			if err != nil {
				t.Fatalf("PixelToWorld: %v", err)
			}
			x, y, err := tr.WorldToPixel(ra, dec)
			if err != nil {
				t.Fatalf("WorldToPixel: %v", err)
			}
			if math.Abs(x-p[0]) > 1e-9 || math.Abs(y-p[1]) > 1e-9 {
				t.Errorf("cosdec=%v: round trip of %v gave (%f, %f)", cosDec, p, x, y)
			}
		}
	}
	tr, _ := FromAxes(testAxes(), false)
	x0, y0, _ := tr.WorldToPixel0(83.8, 60)
	if x0 != 9 || y0 != 4 {
		t.Errorf("0-based reference pixel should be (9, 4), got (%f, %f)", x0, y0)
	}
}

func TestMissingAxes(t *testing.T) {
	axes := testAxes()
	axes[2].Type = "FREQ"
	if _, err := FromAxes(axes, false); !errors.Is(err, models.ErrMissingMetadata) {
		t.Errorf("expected missing metadata, got %v", err)
	}
}

func TestPoleFailure(t *testing.T) {
	axes := []models.Axis{
		{Type: "RA---SIN", RefPixel: 1, RefValue: 0, Step: 1, Length: 2},
		{Type: "DEC--SIN", RefPixel: 1, RefValue: 90, Step: 0, Length: 2},
	}
	tr, _ := FromAxes(axes, true)
	// cos(90 degrees) is ~6e-17 in floating point
	if _, _, err := tr.PixelToWorld(2, 1); !errors.Is(err, models.ErrNumericalFailure) {
		t.Errorf("expected numerical failure at the pole, got %v", err)
	}
}
