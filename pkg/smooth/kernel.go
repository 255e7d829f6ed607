// Package smooth provides the Gaussian weighting kernel used for spectral
// extraction, Gaussian blurring of 2D maps and windowed smoothing along
// the spectral axis.
package smooth

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"radiocube/internal/models"
)

// Kernel is a normalized 2D weighting grid of (2*HalfX+1) by (2*HalfY+1)
// samples stored with x varying fastest.
type Kernel struct {
	HalfX, HalfY int
	Weights      []float64
}

// Width returns the number of samples along x.
func (k Kernel) Width() int { return 2*k.HalfX + 1 }

// Height returns the number of samples along y.
func (k Kernel) Height() int { return 2*k.HalfY + 1 }

// At returns the weight at offset (dx, dy) from the kernel centre.
func (k Kernel) At(dx, dy int) float64 {
	return k.Weights[(dy+k.HalfY)*k.Width()+dx+k.HalfX]
}

// Sum returns the total weight, 1 up to rounding.
func (k Kernel) Sum() float64 {
	return floats.Sum(k.Weights)
}

// GaussKernel returns the square kernel exp(-(dx²/w + dy²/w)) for offsets
// in [-w, w], divided by its sum.
func GaussKernel(halfWidth int) (Kernel, error) {
	return GaussKernelXY(halfWidth, halfWidth)
}

// GaussKernelXY is GaussKernel with independent half widths along x and y.
func GaussKernelXY(halfX, halfY int) (Kernel, error) {
	if halfX <= 0 {
		return Kernel{}, models.InvalidArgf("gauss_width", "should be positive and non-zero integer, got %d", halfX)
	}
	if halfY <= 0 {
		return Kernel{}, models.InvalidArgf("gauss_width", "should be positive and non-zero integer, got %d", halfY)
	}
	k := Kernel{HalfX: halfX, HalfY: halfY, Weights: make([]float64, (2*halfX+1)*(2*halfY+1))}
	i := 0
	for dy := -halfY; dy <= halfY; dy++ {
		for dx := -halfX; dx <= halfX; dx++ {
			k.Weights[i] = math.Exp(-(float64(dx*dx)/float64(halfX) + float64(dy*dy)/float64(halfY)))
			i++
		}
	}
	floats.Scale(1/floats.Sum(k.Weights), k.Weights)
	return k, nil
}
