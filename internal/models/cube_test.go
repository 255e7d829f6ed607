package models

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestAxisValues verifies the linear axis vector and the km/s conversion
func TestAxisValues(t *testing.T) {
	axis := Axis{Type: "RA---GLS", RefPixel: 1, RefValue: 0, Step: 2, Length: 5}
	if diff := cmp.Diff([]float64{0, 2, 4, 6, 8}, axis.Values(true)); diff != "" {
		t.Errorf("non-velocity axis values mismatch (-want +got):\n%s", diff)
	}

	axis.Type = "VELO-LSR"
	if diff := cmp.Diff([]float64{0, 0.002, 0.004, 0.006, 0.008}, axis.Values(true)); diff != "" {
		t.Errorf("velocity axis in km/s mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0, 2, 4, 6, 8}, axis.Values(false)); diff != "" {
		t.Errorf("velocity axis in m/s mismatch (-want +got):\n%s", diff)
	}

	// Reference pixel in the middle of the axis
	axis = Axis{Type: "VELOCITY", RefPixel: 3, RefValue: 10000, Step: -500, Length: 4}
	want := []float64{11, 10.5, 10, 9.5}
	got := axis.Values(true)
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("value %d: expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestAxisTypes(t *testing.T) {
	tests := []struct {
		ctype         string
		vel, lon, lat bool
	}{
		{"VELO-LSR", true, false, false},
		{"VRAD", true, false, false},
		{"RA---SIN", false, true, false},
		{"DEC--SIN", false, false, true},
		{"GLON-CAR", false, true, false},
		{"GLAT-CAR", false, false, true},
		{"FREQ", false, false, false},
	}
	for _, tt := range tests {
		a := Axis{Type: tt.ctype}
		if a.IsVelocity() != tt.vel || a.IsLongitude() != tt.lon || a.IsLatitude() != tt.lat {
			t.Errorf("%s: got vel=%v lon=%v lat=%v", tt.ctype, a.IsVelocity(), a.IsLongitude(), a.IsLatitude())
		}
	}
}

func TestCubeAxisValuesOutOfRange(t *testing.T) {
	c, err := NewCube([]Axis{{Length: 2}, {Length: 3}, {Length: 4}})
	if err != nil {
		t.Fatalf("NewCube failed: %v", err)
	}
	if _, err := c.AxisValues(3, true); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
	if _, err := c.AxisValues(-1, true); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestFromArray(t *testing.T) {
	axes := []Axis{{Length: 2}, {Length: 3}}
	if _, err := FromArray(make([]float64, 5), axes); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected length mismatch error, got %v", err)
	}
	c, err := FromArray([]float64{0, 1, 2, 3, 4, 5}, axes)
	if err != nil {
		t.Fatalf("FromArray failed: %v", err)
	}
	// First axis varies fastest
	if got := c.At(1, 2, 0); got != 5 {
		t.Errorf("expected 5 at (1,2), got %f", got)
	}
	if got := c.At(0, 1, 0); got != 2 {
		t.Errorf("expected 2 at (0,1), got %f", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	c, _ := NewCube([]Axis{{Length: 2}, {Length: 2}, {Length: 2}})
	c.SetBlank(-999)
	c.SetKeyword("MOMENT", 0, "")
	c.AddHistory("original")

	d := c.Clone()
	d.Data[0] = 42
	d.Axes[0].Step = 7
	*d.Blank = 1
	d.History[0] = "changed"

	if c.Data[0] != 0 || c.Axes[0].Step != 0 || *c.Blank != -999 || c.History[0] != "original" {
		t.Errorf("clone shares storage with the original")
	}
}

func TestChannelMask(t *testing.T) {
	axis := Axis{Type: "VELO-LSR", RefPixel: 1, RefValue: 0, Step: 1000, Length: 10}

	// Reversed bounds are normalized and overlapping windows are unioned
	mask := ChannelMask(axis, []Window{{Lower: 3, Upper: 1}, {Lower: 2, Upper: 4}, {Lower: 8, Upper: 9}}, true, true)
	want := []bool{false, true, true, true, true, false, false, false, true, true}
	if diff := cmp.Diff(want, mask); diff != "" {
		t.Errorf("channel mask mismatch (-want +got):\n%s", diff)
	}
	if CountTrue(mask) != 6 {
		t.Errorf("expected 6 channels, got %d", CountTrue(mask))
	}

	// Velocity windows in km/s
	mask = ChannelMask(axis, []Window{{Lower: 6.5, Upper: 4.5}}, false, true)
	want = []bool{false, false, false, false, false, true, true, false, false, false}
	if diff := cmp.Diff(want, mask); diff != "" {
		t.Errorf("velocity mask mismatch (-want +got):\n%s", diff)
	}
}

func TestParseLayout(t *testing.T) {
	for _, l := range Layouts {
		got, err := ParseLayout(string(l))
		if err != nil || got != l {
			t.Errorf("ParseLayout(%q) = %q, %v", l, got, err)
		}
	}
	if _, err := ParseLayout("vvx"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
	if LayoutXYV.SpectralIndex() != 2 || !LayoutVYX.SpectralFirst() {
		t.Errorf("unexpected spectral index")
	}
}

func TestRequireSpectralFirst(t *testing.T) {
	c, _ := NewCube([]Axis{{Type: "RA---SIN", Length: 2}, {Type: "DEC--SIN", Length: 2}, {Type: "VELO-LSR", Length: 3}})
	if err := c.RequireSpectralFirst(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected xyv cube to be rejected, got %v", err)
	}
	c, _ = NewCube([]Axis{{Type: "VELO-LSR", Length: 3}, {Type: "RA---SIN", Length: 2}, {Type: "DEC--SIN", Length: 2}})
	if err := c.RequireSpectralFirst(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestArgumentError(t *testing.T) {
	err := InvalidArgf("order", "must be non-negative, got %d", -1)
	if got := err.Error(); got != "order: must be non-negative, got -1" {
		t.Errorf("unexpected message %q", got)
	}
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected errors.Is to match ErrInvalidArgument")
	}
	var ae *ArgumentError
	if !errors.As(err, &ae) || ae.Arg != "order" {
		t.Errorf("expected an ArgumentError for order, got %v", err)
	}
}
