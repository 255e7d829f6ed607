// Package clip finds where an infinite line crosses an axis-aligned
// rectangle using Liang-Barsky parametric clipping.
package clip

import (
	"math"

	"radiocube/internal/models"
)

// parallel is the parameter returned for an edge parallel to the tested
// coordinate. It lies outside [0, 1] so that edge never narrows the range.
const parallel = 10.0

// verticalSlope is the |tan(angle)| above which a line is clipped as an
// exact vertical.
const verticalSlope = 1e10

// Rect is an axis-aligned rectangle in pixel coordinates.
type Rect struct {
	Left, Right, Bottom, Top float64
}

// Contains reports whether p lies in r, allowing tol of slack.
func (r Rect) Contains(p models.Point2D, tol float64) bool {
	return p.X >= r.Left-tol && p.X <= r.Right+tol && p.Y >= r.Bottom-tol && p.Y <= r.Top+tol
}

// edge is one half-plane constraint: the coordinate (0 = x, 1 = y), the
// boundary value and the outward normal along that coordinate.
type edge struct {
	coord  int
	value  float64
	normal float64
}

// Line returns the entry and exit points of the line through p at
// angleDeg (measured from the x axis) against r. The points are ordered
// along the direction of increasing x, or for a vertical line along the
// direction the angle points to.
//
// A line that does not cross r is an invalid argument.
func Line(r Rect, p models.Point2D, angleDeg float64) (models.Point2D, models.Point2D, error) {
	if r.Right <= r.Left || r.Top < r.Bottom {
		return models.Point2D{}, models.Point2D{}, models.InvalidArgf("rect", "degenerate rectangle %+v", r)
	}

	m := math.Tan(angleDeg * math.Pi / 180)
	var p1, p2 [2]float64
	vertical := math.Abs(m) > verticalSlope || math.IsInf(m, 0)
	if vertical {
		span := (r.Top - r.Bottom) + math.Abs(p.Y-r.Bottom) + math.Abs(p.Y-r.Top) + 1
		dir := 1.0
		if m < 0 {
			dir = -1
		}
		p1 = [2]float64{p.X, p.Y - dir*span}
		p2 = [2]float64{p.X, p.Y + dir*span}
	} else {
		// Far-extended endpoints, one horizontal span either side of p
		span := r.Right - r.Left
		p1 = [2]float64{p.X - span, m*(-span) + p.Y}
		p2 = [2]float64{p.X + span, m*span + p.Y}
	}

	tmin, tmax := 0.0, 1.0
	var entering, exiting *edge
	dir := [2]float64{p2[0] - p1[0], p2[1] - p1[1]}
	edges := []edge{
		{coord: 0, value: r.Left, normal: -1},
		{coord: 0, value: r.Right, normal: 1},
		{coord: 1, value: r.Bottom, normal: -1},
		{coord: 1, value: r.Top, normal: 1},
	}
	for i := range edges {
		e := &edges[i]
		t := paramAt(p1[e.coord], p2[e.coord], e.value)
		if t < tmin || t > tmax {
			continue
		}
		if dir[e.coord]*e.normal < 0 {
			tmin, entering = t, e
		} else {
			tmax, exiting = t, e
		}
	}

	entry := [2]float64{p1[0] + dir[0]*tmin, p1[1] + dir[1]*tmin}
	exit := [2]float64{p1[0] + dir[0]*tmax, p1[1] + dir[1]*tmax}
	// Points found on an edge lie exactly on it
	if entering != nil {
		entry[entering.coord] = entering.value
	}
	if exiting != nil {
		exit[exiting.coord] = exiting.value
	}
	p1out := models.Point2D{X: entry[0], Y: entry[1]}
	p2out := models.Point2D{X: exit[0], Y: exit[1]}

	// Rounding grows with the slope because the endpoints are far away in y
	slope := math.Abs(m)
	if vertical {
		slope = 0
	}
	tol := 1e-9 + 1e-14*(1+slope)*math.Max(r.Right-r.Left, r.Top-r.Bottom)
	if tmin > tmax || !r.Contains(p1out, tol) || !r.Contains(p2out, tol) {
		return models.Point2D{}, models.Point2D{}, models.InvalidArgf("line",
			"line through (%g, %g) at %g degrees does not cross the rectangle", p.X, p.Y, angleDeg)
	}
	return p1out, p2out, nil
}

func paramAt(a, b, boundary float64) float64 {
	if b-a == 0 {
		return parallel
	}
	return (boundary - a) / (b - a)
}
