// Package models defines the cube data model shared by every reduction
// package: the sample array, its per-axis calibration, windows, points
// and storage layouts.
package models

import (
	"fmt"
	"math"
)

// Keyword is a provenance field recorded on a derived cube (MOMENT, VMIN, ...).
type Keyword struct {
	Name    string
	Value   interface{}
	Comment string
}

// Cube is an N-dimensional (1 to 3) array of samples together with the
// calibration of each axis. Data is stored flat with the first axis
// varying fastest, which is the FITS on-disk order:
//
//	index = i0 + n0*(i1 + n1*i2)
//
// A spectral-first ("vxy") cube therefore stores each spectrum contiguously.
type Cube struct {
	// Data holds the samples, len(Data) == product of the axis lengths.
	Data []float64

	// Axes holds one calibration per dimension, axis 1 first.
	Axes []Axis

	// Blank is the invalid-data sentinel (BLANK), nil when not set.
	Blank *float64

	// Unit is the brightness unit (BUNIT).
	Unit string

	// Keywords are extra scalar fields recorded for provenance.
	Keywords []Keyword

	// History holds human-readable audit notes.
	History []string
}

// NewCube allocates a zero-filled cube for the given axes.
func NewCube(axes []Axis) (*Cube, error) {
	n, err := sizeOf(axes)
	if err != nil {
		return nil, err
	}
	return &Cube{
		Data: make([]float64, n),
		Axes: copyAxes(axes),
	}, nil
}

// FromArray wraps an existing flat array and its axis metadata. The
// array is used as-is, not copied.
func FromArray(data []float64, axes []Axis) (*Cube, error) {
	n, err := sizeOf(axes)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, InvalidArgf("data", "length %d does not match axes (%d samples)", len(data), n)
	}
	return &Cube{Data: data, Axes: copyAxes(axes)}, nil
}

func sizeOf(axes []Axis) (int, error) {
	if len(axes) == 0 || len(axes) > 3 {
		return 0, InvalidArgf("axes", "rank %d not supported (want 1 to 3)", len(axes))
	}
	n := 1
	for i, a := range axes {
		if a.Length <= 0 {
			return 0, InvalidArgf("axes", "axis %d has non-positive length %d", i+1, a.Length)
		}
		n *= a.Length
	}
	return n, nil
}

func copyAxes(axes []Axis) []Axis {
	out := make([]Axis, len(axes))
	copy(out, axes)
	return out
}

// Rank returns the number of axes.
func (c *Cube) Rank() int { return len(c.Axes) }

// Shape returns the axis lengths, axis 1 first.
func (c *Cube) Shape() []int {
	shape := make([]int, len(c.Axes))
	for i, a := range c.Axes {
		shape[i] = a.Length
	}
	return shape
}

// Validate checks that the array and the axis metadata agree.
func (c *Cube) Validate() error {
	n, err := sizeOf(c.Axes)
	if err != nil {
		return err
	}
	if len(c.Data) != n {
		return InvalidArgf("cube", "data length %d does not match axes (%d samples)", len(c.Data), n)
	}
	return nil
}

// Index returns the flat offset of a 3D sample.
func (c *Cube) Index(i0, i1, i2 int) int {
	n0 := c.Axes[0].Length
	n1 := 1
	if len(c.Axes) > 1 {
		n1 = c.Axes[1].Length
	}
	return i0 + n0*(i1+n1*i2)
}

// At returns the sample at (i0, i1, i2). Unused trailing indices must be 0.
func (c *Cube) At(i0, i1, i2 int) float64 {
	return c.Data[c.Index(i0, i1, i2)]
}

// Set stores v at (i0, i1, i2).
func (c *Cube) Set(i0, i1, i2 int, v float64) {
	c.Data[c.Index(i0, i1, i2)] = v
}

// AxisValues returns the world coordinates along axis k (0-based).
func (c *Cube) AxisValues(k int, kms bool) ([]float64, error) {
	if k < 0 || k >= len(c.Axes) {
		return nil, InvalidArgf("axis", "axis index %d out of range [0, %d)", k, len(c.Axes))
	}
	return c.Axes[k].Values(kms), nil
}

// Clone returns a deep copy of the cube.
func (c *Cube) Clone() *Cube {
	out := &Cube{
		Data:     make([]float64, len(c.Data)),
		Axes:     copyAxes(c.Axes),
		Unit:     c.Unit,
		Keywords: make([]Keyword, len(c.Keywords)),
		History:  make([]string, len(c.History)),
	}
	copy(out.Data, c.Data)
	copy(out.Keywords, c.Keywords)
	copy(out.History, c.History)
	if c.Blank != nil {
		b := *c.Blank
		out.Blank = &b
	}
	return out
}

// Derive returns a new zero-filled cube with the given axes that inherits
// the unit, blank, keywords and history of c.
func (c *Cube) Derive(axes []Axis) (*Cube, error) {
	out, err := NewCube(axes)
	if err != nil {
		return nil, err
	}
	out.Unit = c.Unit
	out.Keywords = append([]Keyword(nil), c.Keywords...)
	out.History = append([]string(nil), c.History...)
	if c.Blank != nil {
		b := *c.Blank
		out.Blank = &b
	}
	return out, nil
}

// SetBlank sets the blank sentinel.
func (c *Cube) SetBlank(v float64) {
	c.Blank = &v
}

// IsBlank reports whether v equals the blank sentinel.
func (c *Cube) IsBlank(v float64) bool {
	if c.Blank == nil {
		return false
	}
	if math.IsNaN(*c.Blank) {
		return math.IsNaN(v)
	}
	return v == *c.Blank
}

// SetKeyword adds or replaces a provenance keyword.
func (c *Cube) SetKeyword(name string, value interface{}, comment string) {
	for i := range c.Keywords {
		if c.Keywords[i].Name == name {
			c.Keywords[i] = Keyword{Name: name, Value: value, Comment: comment}
			return
		}
	}
	c.Keywords = append(c.Keywords, Keyword{Name: name, Value: value, Comment: comment})
}

// Keyword returns the keyword with the given name.
func (c *Cube) Keyword(name string) (Keyword, bool) {
	for _, k := range c.Keywords {
		if k.Name == name {
			return k, true
		}
	}
	return Keyword{}, false
}

// AddHistory appends a formatted audit note.
func (c *Cube) AddHistory(format string, args ...interface{}) {
	c.History = append(c.History, fmt.Sprintf(format, args...))
}

// RequireSpectralFirst checks that c is a 3D cube whose first axis is the
// spectral axis, the layout the extraction and reduction routines work on.
func (c *Cube) RequireSpectralFirst() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Axes) != 3 {
		return InvalidArgf("cube", "expected a 3D cube, got rank %d", len(c.Axes))
	}
	if !c.Axes[0].IsVelocity() && c.Axes[2].IsVelocity() {
		return InvalidArgf("cube", "spectral axis is last (%q); transpose to vxy first", c.Axes[2].Type)
	}
	return nil
}

// SpatialAxes returns copies of axes 2 and 3 of a spectral-first cube,
// which become axes 1 and 2 of derived maps.
func (c *Cube) SpatialAxes() []Axis {
	return []Axis{c.Axes[1], c.Axes[2]}
}
