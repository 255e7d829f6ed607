package clip

import (
	"errors"
	"math"
	"testing"

	"radiocube/internal/models"
)

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestNearVerticalLine(t *testing.T) {
	r := Rect{Left: 0, Right: 180, Bottom: 0, Top: 150}
	p1, p2, err := Line(r, models.Point2D{X: 75, Y: 80}, -89.9999999)
	if err != nil {
		t.Fatalf("Line failed: %v", err)
	}
	if !near(p1.X, 75, 1e-3) || !near(p2.X, 75, 1e-3) {
		t.Errorf("expected x close to 75, got %f and %f", p1.X, p2.X)
	}
	// Negative slope: the line enters at the top and leaves at the bottom
	if !near(p1.Y, 150, 1e-3) || !near(p2.Y, 0, 1e-3) {
		t.Errorf("expected y at 150 and 0, got %f and %f", p1.Y, p2.Y)
	}
}

func TestLine(t *testing.T) {
	r := Rect{Left: 0, Right: 10, Bottom: 0, Top: 10}
	tests := []struct {
		name   string
		p      models.Point2D
		angle  float64
		p1, p2 models.Point2D
	}{
		{"horizontal", models.Point2D{X: 3, Y: 4}, 0, models.Point2D{X: 0, Y: 4}, models.Point2D{X: 10, Y: 4}},
		{"diagonal", models.Point2D{X: 5, Y: 5}, 45, models.Point2D{X: 0, Y: 0}, models.Point2D{X: 10, Y: 10}},
		{"anti-diagonal", models.Point2D{X: 5, Y: 5}, 135, models.Point2D{X: 0, Y: 10}, models.Point2D{X: 10, Y: 0}},
		{"vertical up", models.Point2D{X: 2, Y: 5}, 90, models.Point2D{X: 2, Y: 0}, models.Point2D{X: 2, Y: 10}},
		{"vertical down", models.Point2D{X: 2, Y: 5}, -90, models.Point2D{X: 2, Y: 10}, models.Point2D{X: 2, Y: 0}},
		{"shallow", models.Point2D{X: 0, Y: 2}, math.Atan(0.5) * 180 / math.Pi, models.Point2D{X: 0, Y: 2}, models.Point2D{X: 10, Y: 7}},
		{"steep exits through top", models.Point2D{X: 1, Y: 0}, math.Atan(2) * 180 / math.Pi, models.Point2D{X: 1, Y: 0}, models.Point2D{X: 6, Y: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p1, p2, err := Line(r, tt.p, tt.angle)
			if err != nil {
				t.Fatalf("Line failed: %v", err)
			}
			if !near(p1.X, tt.p1.X, 1e-9) || !near(p1.Y, tt.p1.Y, 1e-9) {
				t.Errorf("entry: expected %+v, got %+v", tt.p1, p1)
			}
			if !near(p2.X, tt.p2.X, 1e-9) || !near(p2.Y, tt.p2.Y, 1e-9) {
				t.Errorf("exit: expected %+v, got %+v", tt.p2, p2)
			}
		})
	}
}

func TestLineMissesRectangle(t *testing.T) {
	r := Rect{Left: 0, Right: 10, Bottom: 0, Top: 10}
	misses := []struct {
		p     models.Point2D
		angle float64
	}{
		{models.Point2D{X: 5, Y: 20}, 0},
		{models.Point2D{X: -5, Y: 5}, 90},
		{models.Point2D{X: 20, Y: 0}, 45},
	}
	for _, m := range misses {
		if _, _, err := Line(r, m.p, m.angle); !errors.Is(err, models.ErrInvalidArgument) {
			t.Errorf("line through %+v at %g: expected invalid argument, got %v", m.p, m.angle, err)
		}
	}
	if _, _, err := Line(Rect{Left: 5, Right: 5, Top: 1}, models.Point2D{}, 0); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("expected degenerate rectangle to fail, got %v", err)
	}
}
