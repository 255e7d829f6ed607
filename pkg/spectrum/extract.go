// Package spectrum extracts single spectra from spectral-first cubes by
// Gaussian-weighted averaging of the spatial neighbourhood around a
// possibly fractional pixel position.
package spectrum

import (
	"math"

	"radiocube/internal/models"
	"radiocube/pkg/smooth"
)

// Sampler reads Gaussian-weighted spectra out of one cube. It holds no
// mutable state and is safe for concurrent use.
type Sampler struct {
	cube   *models.Cube
	kernel smooth.Kernel
	ksum   float64
}

// NewSampler checks that c is spectral-first and builds the weighting
// kernel of the given half width.
func NewSampler(c *models.Cube, halfWidth int) (*Sampler, error) {
	if err := c.RequireSpectralFirst(); err != nil {
		return nil, err
	}
	k, err := smooth.GaussKernel(halfWidth)
	if err != nil {
		return nil, err
	}
	return &Sampler{cube: c, kernel: k, ksum: k.Sum()}, nil
}

// HalfWidth returns the kernel half width.
func (s *Sampler) HalfWidth() int { return s.kernel.HalfX }

// Footprint returns the kernel footprint [xmin, xmax) x [ymin, ymax)
// around (x0, y0) clamped to the spatial extent of the cube, and whether
// the clamp cut anything off.
func (s *Sampler) Footprint(x0, y0 float64) (xmin, xmax, ymin, ymax int, truncated bool) {
	nx, ny := s.cube.Axes[1].Length, s.cube.Axes[2].Length
	xmin, xmax = clampRange(int(math.Round(x0))-s.kernel.HalfX, s.kernel.Width(), nx)
	ymin, ymax = clampRange(int(math.Round(y0))-s.kernel.HalfY, s.kernel.Height(), ny)
	truncated = xmax-xmin != s.kernel.Width() || ymax-ymin != s.kernel.Height()
	return xmin, xmax, ymin, ymax, truncated
}

func clampRange(lo, width, n int) (int, int) {
	hi := lo + width
	if lo < 0 {
		lo = 0
	}
	if hi > n {
		hi = n
	}
	return lo, hi
}

// At writes the spectrum at (x0, y0) into dst, which must hold one value
// per channel. When the kernel footprint is cut by the cube edge the
// nearest pixel is read directly instead of averaging.
func (s *Sampler) At(x0, y0 float64, dst []float64) error {
	c := s.cube
	nv, nx, ny := c.Axes[0].Length, c.Axes[1].Length, c.Axes[2].Length
	if x0 < 0 || x0 >= float64(nx) {
		return models.InvalidArgf("x0", "x0=%g is out of bounds of x-limits: (0, %d)", x0, nx)
	}
	if y0 < 0 || y0 >= float64(ny) {
		return models.InvalidArgf("y0", "y0=%g is out of bounds of y-limits: (0, %d)", y0, ny)
	}
	if len(dst) != nv {
		return models.InvalidArgf("dst", "length %d does not match %d channels", len(dst), nv)
	}

	xmin, xmax, ymin, ymax, truncated := s.Footprint(x0, y0)
	if truncated {
		ix := nearest(x0, nx)
		iy := nearest(y0, ny)
		copy(dst, c.Data[c.Index(0, ix, iy):c.Index(0, ix, iy)+nv])
		return nil
	}

	for v := range dst {
		dst[v] = 0
	}
	for y := ymin; y < ymax; y++ {
		for x := xmin; x < xmax; x++ {
			w := s.kernel.At(x-xmin-s.kernel.HalfX, y-ymin-s.kernel.HalfY)
			spec := c.Data[c.Index(0, x, y) : c.Index(0, x, y)+nv]
			for v, t := range spec {
				dst[v] += w * t
			}
		}
	}
	for v := range dst {
		dst[v] /= s.ksum
	}
	return nil
}

func nearest(p float64, n int) int {
	i := int(math.Round(p))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

// Extract returns the spectrum of a spectral-first cube at the 0-based
// pixel position (x0, y0), weighted by GaussKernel(halfWidth). The result
// keeps only the spectral axis of c.
func Extract(c *models.Cube, x0, y0 float64, halfWidth int) (*models.Cube, error) {
	s, err := NewSampler(c, halfWidth)
	if err != nil {
		return nil, err
	}
	out, err := c.Derive([]models.Axis{c.Axes[0]})
	if err != nil {
		return nil, err
	}
	if err := s.At(x0, y0, out.Data); err != nil {
		return nil, err
	}
	out.AddHistory("Extracted spectrum at (%g, %g) with gauss_width=%d", x0, y0, halfWidth)
	return out, nil
}
