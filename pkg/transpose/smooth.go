package transpose

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/interp"

	"radiocube/internal/models"
	"radiocube/internal/workers"
)

// Resampling methods accepted by Smooth.
const (
	MethodLinear   = "linear"
	MethodMonotone = "monotone"
)

// SmoothParams controls the regridding of the spectral axis.
type SmoothParams struct {
	// Factor is the ratio of old to new channel width.
	Factor float64

	// Layout is the current layout of the cube, which locates the
	// spectral axis.
	Layout models.Layout

	// Method is MethodLinear (default) or MethodMonotone.
	Method string

	// Workers is the number of goroutines, 0 for one per CPU.
	Workers int
}

func newPredictor(method string) (interp.FittablePredictor, error) {
	switch strings.ToLower(method) {
	case "", MethodLinear:
		return &interp.PiecewiseLinear{}, nil
	case MethodMonotone:
		return &interp.FritschButland{}, nil
	}
	return nil, models.InvalidArgf("method", "%q should be one of linear or monotone", method)
}

// Smooth regrids the spectral axis of c to round(n/Factor) channels.
// New channel j takes the interpolated value at old channel j*n/n'. The
// channel width grows by Factor and the reference pixel is rescaled with
// it so the world coordinates of the axis are preserved.
func Smooth(c *models.Cube, p SmoothParams) (*models.Cube, error) {
	layout, err := models.ParseLayout(string(p.Layout))
	if err != nil {
		return nil, err
	}
	if _, err := newPredictor(p.Method); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Rank() != 3 {
		return nil, models.InvalidArgf("cube", "expected a 3D cube, got rank %d", c.Rank())
	}
	if p.Factor <= 0 || math.IsNaN(p.Factor) || math.IsInf(p.Factor, 0) {
		return nil, models.InvalidArgf("smooth", "factor must be positive, got %g", p.Factor)
	}
	k := layout.SpectralIndex()
	spec := c.Axes[k]
	if !spec.IsVelocity() {
		return nil, models.InvalidArgf("header", "input cube does not have velocity in axis %d (CTYPE%d=%q)", k+1, k+1, spec.Type)
	}
	n := spec.Length
	nn := int(math.Round(float64(n) / p.Factor))
	if n < 2 {
		return nil, models.InvalidArgf("smooth", "cannot regrid a spectral axis of %d channel", n)
	}
	if nn < 1 {
		return nil, models.InvalidArgf("smooth", "factor %g leaves no channels out of %d", p.Factor, n)
	}

	axes := append([]models.Axis(nil), c.Axes...)
	axes[k].Length = nn
	axes[k].Step = spec.Step * p.Factor
	axes[k].RefPixel = (spec.RefPixel-1)/p.Factor + 1
	out, err := c.Derive(axes)
	if err != nil {
		return nil, err
	}

	shape := c.Shape()
	oldStride := strides(shape)
	newShape := out.Shape()
	newStride := strides(newShape)
	// The two other axes enumerate the spectra
	a, b := otherAxes(k)
	nspec := shape[a] * shape[b]

	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	at := make([]float64, nn)
	for j := range at {
		at[j] = float64(j) * float64(n) / float64(nn)
	}

	err = workers.ForEachChunk(nspec, p.Workers, func(start, end int) error {
		pred, _ := newPredictor(p.Method)
		ys := make([]float64, n)
		for s := start; s < end; s++ {
			ia, ib := s%shape[a], s/shape[a]
			oldBase := ia*oldStride[a] + ib*oldStride[b]
			newBase := ia*newStride[a] + ib*newStride[b]
			for i := range ys {
				ys[i] = c.Data[oldBase+i*oldStride[k]]
			}
			if err := pred.Fit(xs, ys); err != nil {
				return models.NumericalFailuref("regridding spectrum %d: %v", s, err)
			}
			for j, x := range at {
				out.Data[newBase+j*newStride[k]] = pred.Predict(x)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.AddHistory("Smoothing velocity axis by %g", p.Factor)
	return out, nil
}

func strides(shape []int) []int {
	st := make([]int, len(shape))
	acc := 1
	for i, n := range shape {
		st[i] = acc
		acc *= n
	}
	return st
}

func otherAxes(k int) (int, int) {
	switch k {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	}
	return 0, 1
}
