// Package subcube cuts rectangular regions out of 3D cubes.
package subcube

import (
	"radiocube/internal/models"
)

// Full marks a bound that defaults to the edge of its axis.
const Full = -1

// Bounds holds half-open [lower, upper) pixel ranges for axes 1, 2 and
// 3 in that order. A negative lower bound starts at pixel 0; a negative
// upper bound, or one past the end of the axis, stops at the last pixel.
type Bounds [6]int

// All selects the whole cube.
var All = Bounds{Full, Full, Full, Full, Full, Full}

// Resolve clamps the bounds against shape and returns the concrete
// start and stop of each axis.
func (b Bounds) Resolve(shape []int) (lo, hi [3]int, err error) {
	if len(shape) != 3 {
		return lo, hi, models.InvalidArgf("cube", "expected a 3D cube, got rank %d", len(shape))
	}
	for k := 0; k < 3; k++ {
		lo[k], hi[k] = b[2*k], b[2*k+1]
		if lo[k] < 0 {
			lo[k] = 0
		}
		if hi[k] < 0 || hi[k] > shape[k] {
			hi[k] = shape[k]
		}
		if lo[k] >= hi[k] {
			return lo, hi, models.InvalidArgf("bounds", "axis %d range [%d, %d) is empty", k+1, b[2*k], b[2*k+1])
		}
	}
	return lo, hi, nil
}

// Extract copies the region selected by b into a new cube. Every axis
// keeps its calibration: the reference pixel shifts by the lower bound
// so each retained sample has the same world coordinate as before.
func Extract(c *models.Cube, b Bounds) (*models.Cube, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	lo, hi, err := b.Resolve(c.Shape())
	if err != nil {
		return nil, err
	}

	axes := append([]models.Axis(nil), c.Axes...)
	for k := range axes {
		axes[k].Length = hi[k] - lo[k]
		axes[k].RefPixel -= float64(lo[k])
	}
	out, err := c.Derive(axes)
	if err != nil {
		return nil, err
	}

	n0 := axes[0].Length
	for z := lo[2]; z < hi[2]; z++ {
		for y := lo[1]; y < hi[1]; y++ {
			src := c.Index(lo[0], y, z)
			dst := out.Index(0, y-lo[1], z-lo[2])
			copy(out.Data[dst:dst+n0], c.Data[src:src+n0])
		}
	}
	out.AddHistory("Extracted subcube [%d:%d, %d:%d, %d:%d]", lo[0], hi[0], lo[1], hi[1], lo[2], hi[2])
	return out, nil
}
