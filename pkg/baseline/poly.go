package baseline

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"radiocube/internal/models"
)

// Polynomial is a least-squares polynomial in the scaled variable
// u = (x - Center)/Scale, which keeps the Vandermonde matrix well
// conditioned for long spectra.
type Polynomial struct {
	// Coeffs holds the coefficients in increasing order of power of u.
	Coeffs []float64
	Center float64
	Scale  float64
}

// FitPolynomial fits an ordinary least-squares polynomial of the given
// order to (xs, ys) using a QR factorization.
func FitPolynomial(xs, ys []float64, order int) (Polynomial, error) {
	if order < 0 {
		return Polynomial{}, models.InvalidArgf("order", "polynomial order must be non-negative, got %d", order)
	}
	if len(xs) != len(ys) {
		return Polynomial{}, models.InvalidArgf("xs", "length %d does not match ys length %d", len(xs), len(ys))
	}
	m, n := len(xs), order+1
	if m < n {
		return Polynomial{}, models.NumericalFailuref("%d samples cannot constrain an order %d polynomial", m, order)
	}
	for i := range ys {
		if math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
			return Polynomial{}, models.NumericalFailuref("non-finite sample at x=%g", xs[i])
		}
	}

	lo, hi := floats.Min(xs), floats.Max(xs)
	p := Polynomial{Center: (lo + hi) / 2, Scale: 1}
	if hi > lo {
		p.Scale = (hi - lo) / 2
	}

	a := mat.NewDense(m, n, nil)
	for i, x := range xs {
		u := (x - p.Center) / p.Scale
		pow := 1.0
		for j := 0; j < n; j++ {
			a.Set(i, j, pow)
			pow *= u
		}
	}
	b := mat.NewVecDense(m, append([]float64(nil), ys...))

	var qr mat.QR
	qr.Factorize(a)
	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, b); err != nil {
		return Polynomial{}, models.NumericalFailuref("least squares solve: %v", err)
	}
	p.Coeffs = make([]float64, n)
	for j := range p.Coeffs {
		p.Coeffs[j] = coef.AtVec(j)
	}
	return p, nil
}

// Eval evaluates the polynomial at x.
func (p Polynomial) Eval(x float64) float64 {
	u := (x - p.Center) / p.Scale
	var v float64
	for j := len(p.Coeffs) - 1; j >= 0; j-- {
		v = v*u + p.Coeffs[j]
	}
	return v
}
