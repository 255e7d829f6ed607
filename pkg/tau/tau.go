// Package tau derives the optical depth of a rare isotopologue from the
// ratio of its integrated intensity to that of the abundant one.
//
// For an abundance ratio r and an observed intensity ratio R, the optical
// depth τ of the rare species satisfies
//
//	R = (1 - exp(-r·τ)) / (1 - exp(-τ))
//
// R falls from r in the optically thin limit to 1 when both lines are
// saturated, so only ratios in (1, r) have a positive solution.
package tau

import (
	"math"

	"radiocube/internal/models"
)

// Options controls the Newton iteration.
type Options struct {
	// IsoRatio is the abundance ratio r of the two isotopologues.
	IsoRatio float64

	// MaxIter bounds the number of Newton steps.
	MaxIter int

	// Tol is the convergence tolerance on τ: absolute for Solve,
	// relative for SolveSimple.
	Tol float64

	// Guess is the starting τ.
	Guess float64
}

// DefaultOptions returns the usual 12CO/13CO settings.
func DefaultOptions() Options {
	return Options{IsoRatio: 65, MaxIter: 500, Tol: 1e-6, Guess: 0.04}
}

func (o Options) validate(ratio float64) error {
	if o.IsoRatio <= 1 || math.IsNaN(o.IsoRatio) {
		return models.InvalidArgf("isoratio", "must be greater than 1, got %g", o.IsoRatio)
	}
	if o.MaxIter <= 0 {
		return models.InvalidArgf("niter", "must be positive, got %d", o.MaxIter)
	}
	if !(o.Tol > 0) {
		return models.InvalidArgf("tol", "must be positive, got %g", o.Tol)
	}
	if !(ratio > 1 && ratio < o.IsoRatio) {
		return models.InvalidArgf("ratio", "%g has no positive optical depth for isoratio %g (want 1 < ratio < isoratio)", ratio, o.IsoRatio)
	}
	return nil
}

// Solve finds τ with Newton's method on the rearranged equation
//
//	f(τ) = (1 - R) + R·exp(-τ) - exp(-r·τ) = 0
//
// f vanishes at τ = 0 for every R, so the iteration starts beyond the
// maximum of f to stay clear of that trivial root.
func Solve(ratio float64, o Options) (float64, error) {
	if err := o.validate(ratio); err != nil {
		return 0, err
	}
	R, r := ratio, o.IsoRatio
	f := func(t float64) float64 { return (1 - R) + R*math.Exp(-t) - math.Exp(-r*t) }
	fprime := func(t float64) float64 { return -R*math.Exp(-t) + r*math.Exp(-r*t) }

	guess := o.Guess
	if R/r > 0.8 && guess > 0.01 {
		guess = 0.01
	}
	if peak := math.Log(r/R) / (r - 1); guess <= peak {
		guess = 2 * peak
	}

	t := guess
	for i := 0; i < o.MaxIter; i++ {
		d := fprime(t)
		if d == 0 {
			return 0, models.NumericalFailuref("tau: zero derivative at τ=%g after %d iterations", t, i)
		}
		next := t - f(t)/d
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return 0, models.NumericalFailuref("tau: iteration diverged after %d iterations", i)
		}
		if math.Abs(next-t) <= o.Tol {
			if next <= 0 {
				return 0, models.NumericalFailuref("tau: converged to non-positive τ=%g", next)
			}
			return next, nil
		}
		t = next
	}
	return 0, models.NumericalFailuref("tau: no convergence for ratio %g in %d iterations", ratio, o.MaxIter)
}

// SolveSimple iterates directly on R(τ) - ratio with an analytic
// derivative and a relative stopping test.
func SolveSimple(ratio float64, o Options) (float64, error) {
	if err := o.validate(ratio); err != nil {
		return 0, err
	}
	r := o.IsoRatio
	x := o.Guess
	for i := 0; i < o.MaxIter; i++ {
		a := math.Exp(-r * x)
		b := math.Exp(-(r + 1) * x)
		c := math.Exp(-2 * x)
		d := math.Exp(-x)
		f := (1-a)/(1-d) - ratio
		f1 := (r*a - (r-1)*b - d) / (1 - 2*d + c)
		delta := f / f1
		if math.IsNaN(delta) || math.IsInf(delta, 0) {
			return 0, models.NumericalFailuref("tau: floating point error after %d iterations", i)
		}
		x -= delta
		if math.Abs(delta) <= math.Abs(o.Tol*x) {
			if x <= 0 {
				return 0, models.NumericalFailuref("tau: converged to non-positive τ=%g", x)
			}
			return x, nil
		}
	}
	return 0, models.NumericalFailuref("tau: no convergence for ratio %g in %d iterations", ratio, o.MaxIter)
}
