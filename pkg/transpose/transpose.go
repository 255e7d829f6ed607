// Package transpose reorders the axes of 3D cubes between the spectral-
// first and spectral-last layouts and regrids the spectral axis.
package transpose

import (
	"radiocube/internal/models"
)

// targets is the fixed layout each source layout is transposed into.
var targets = map[models.Layout]models.Layout{
	models.LayoutVXY: models.LayoutXYV,
	models.LayoutVYX: models.LayoutXYV,
	models.LayoutXYV: models.LayoutVXY,
	models.LayoutYXV: models.LayoutVXY,
}

// Target returns the layout Transpose produces from the given layout.
func Target(from models.Layout) (models.Layout, error) {
	to, ok := targets[from]
	if !ok {
		return "", models.InvalidArgf("layout", "%q should be one of xyv, yxv, vxy or vyx", from)
	}
	return to, nil
}

// Transpose converts a cube stored in the from layout into its canonical
// counterpart: spectral-first cubes become xyv, spectral-last cubes vxy.
func Transpose(c *models.Cube, from models.Layout) (*models.Cube, error) {
	to, err := Target(from)
	if err != nil {
		return nil, err
	}
	return Between(c, from, to)
}

// Between permutes the axes of c from one layout to another. The axis
// metadata is permuted identically and the result never shares storage
// with c.
func Between(c *models.Cube, from, to models.Layout) (*models.Cube, error) {
	from, err := models.ParseLayout(string(from))
	if err != nil {
		return nil, err
	}
	to, err = models.ParseLayout(string(to))
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Rank() != 3 {
		return nil, models.InvalidArgf("cube", "expected a 3D cube, got rank %d", c.Rank())
	}
	vi := from.SpectralIndex()
	if !c.Axes[vi].IsVelocity() {
		return nil, models.InvalidArgf("header", "input cube does not have velocity in axis %d (CTYPE%d=%q)", vi+1, vi+1, c.Axes[vi].Type)
	}

	// perm[k] is the source axis that becomes axis k
	var perm [3]int
	for k := 0; k < 3; k++ {
		perm[k] = indexOf(from, to[k])
	}
	axes := make([]models.Axis, 3)
	for k := range axes {
		axes[k] = c.Axes[perm[k]]
	}
	out, err := c.Derive(axes)
	if err != nil {
		return nil, err
	}

	n := c.Shape()
	var src [3]int
	for src[2] = 0; src[2] < n[2]; src[2]++ {
		for src[1] = 0; src[1] < n[1]; src[1]++ {
			for src[0] = 0; src[0] < n[0]; src[0]++ {
				out.Set(src[perm[0]], src[perm[1]], src[perm[2]], c.At(src[0], src[1], src[2]))
			}
		}
	}
	if from != to {
		out.AddHistory("Transposing from %s format to %s format", from, to)
	}
	return out, nil
}

func indexOf(l models.Layout, axis byte) int {
	for i := 0; i < len(l); i++ {
		if l[i] == axis {
			return i
		}
	}
	return -1
}
