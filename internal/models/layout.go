package models

import (
	"math"
	"strings"
)

// Point2D is a 0-based, possibly fractional, pixel position on the two
// spatial axes of a cube.
type Point2D struct {
	X, Y float64
}

// Distance returns the Euclidean distance between p and q.
func (p Point2D) Distance(q Point2D) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Layout names the storage order of a cube's axes, axis 1 first:
// 'v' is the spectral axis, 'x' and 'y' the two spatial axes.
type Layout string

// The four recognized layouts.
const (
	LayoutVXY Layout = "vxy"
	LayoutVYX Layout = "vyx"
	LayoutXYV Layout = "xyv"
	LayoutYXV Layout = "yxv"
)

// Layouts lists every recognized layout.
var Layouts = []Layout{LayoutVXY, LayoutVYX, LayoutXYV, LayoutYXV}

// ParseLayout validates a layout name.
func ParseLayout(s string) (Layout, error) {
	l := Layout(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Layouts {
		if l == known {
			return l, nil
		}
	}
	return "", InvalidArgf("layout", "%q should be one of xyv, yxv, vxy or vyx", s)
}

// SpectralIndex returns the 0-based position of the spectral axis.
func (l Layout) SpectralIndex() int {
	return strings.IndexByte(string(l), 'v')
}

// SpectralFirst reports whether the spectral axis is axis 1.
func (l Layout) SpectralFirst() bool {
	return l.SpectralIndex() == 0
}
