// Package baseline fits and removes per-pixel polynomial baselines from
// spectral-first cubes.
//
// The fit for each spatial pixel only uses the channels inside the union
// of the baseline windows; the fitted polynomial is then evaluated over
// every channel and, if requested, subtracted from the spectrum in place.
// The residual standard deviation inside the windows is returned as a 2D
// sigma map.
package baseline

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"radiocube/internal/models"
	"radiocube/internal/workers"
)

// Params controls a baseline fit.
type Params struct {
	// Windows are the baseline (line-free) ranges; their union is fitted.
	Windows []models.Window

	// Order is the polynomial order, 0 for a constant offset.
	Order int

	// Subtract removes the fitted polynomial from the cube in place.
	Subtract bool

	// Channel interprets the windows as channel indices instead of
	// velocities.
	Channel bool

	// KMS reads velocity windows in km/s.
	KMS bool

	// Workers is the number of goroutines, 0 for one per CPU.
	Workers int

	// Progress is called as pixel chunks complete. Optional.
	Progress workers.ProgressCallback
}

// Result holds the outputs of Fit.
type Result struct {
	// Cube is the input cube, baseline-subtracted when Params.Subtract is set.
	Cube *models.Cube

	// Sigma is the map of residual standard deviations inside the windows.
	// Pixels whose fit was degenerate hold NaN.
	Sigma *models.Cube

	// Channels is the number of channels inside the window union.
	Channels int

	// Degenerate counts pixels whose fit failed and were left untouched.
	Degenerate int
}

// Fit fits a polynomial baseline to every spectrum of c. With
// p.Subtract the spectra of c are modified in place; c is never modified
// otherwise.
func Fit(c *models.Cube, p Params) (*Result, error) {
	if err := c.RequireSpectralFirst(); err != nil {
		return nil, err
	}
	if p.Order < 0 {
		return nil, models.InvalidArgf("order", "polynomial order must be non-negative, got %d", p.Order)
	}
	if len(p.Windows) == 0 {
		return nil, models.InvalidArgf("windows", "at least one baseline window is required")
	}

	spec := c.Axes[0]
	mask := models.ChannelMask(spec, p.Windows, p.Channel, p.KMS)
	nwin := models.CountTrue(mask)
	if nwin == 0 {
		return nil, models.InvalidArgf("windows", "%s selects no %s", models.FormatWindows(p.Windows), unitsOf(p.Channel))
	}
	xs := make([]float64, 0, nwin)
	for i, in := range mask {
		if in {
			xs = append(xs, float64(i))
		}
	}

	sigma, err := c.Derive(c.SpatialAxes())
	if err != nil {
		return nil, err
	}
	sigma.AddHistory("WINDOW : %s; Window %s LIMITS", models.FormatWindows(p.Windows), models.WindowUnits(p.Channel))

	nv := spec.Length
	npix := c.Axes[1].Length * c.Axes[2].Length
	degenerate := make([]bool, npix)
	progress := workers.NewProgress(npix, "Fitting baselines", p.Progress)

	err = workers.ForEachChunk(npix, p.Workers, func(start, end int) error {
		px := make([]float64, 0, nwin)
		ys := make([]float64, 0, nwin)
		resid := make([]float64, 0, nwin)
		for pix := start; pix < end; pix++ {
			spectrum := c.Data[pix*nv : (pix+1)*nv]
			px, ys = px[:0], ys[:0]
			for _, x := range xs {
				if y := spectrum[int(x)]; !c.IsBlank(y) {
					px = append(px, x)
					ys = append(ys, y)
				}
			}
			poly, err := FitPolynomial(px, ys, p.Order)
			if err != nil {
				sigma.Data[pix] = math.NaN()
				degenerate[pix] = true
				continue
			}
			resid = resid[:0]
			for k, x := range px {
				resid = append(resid, ys[k]-poly.Eval(x))
			}
			sigma.Data[pix] = stat.PopStdDev(resid, nil)
			if p.Subtract {
				// blank samples keep their sentinel
				for v, y := range spectrum {
					if !c.IsBlank(y) {
						spectrum[v] = y - poly.Eval(float64(v))
					}
				}
			}
		}
		progress.Add(end - start)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &Result{Cube: c, Sigma: sigma, Channels: nwin}
	for _, d := range degenerate {
		if d {
			res.Degenerate++
		}
	}
	if p.Subtract {
		c.AddHistory("Subtracted order %d baseline over %s (%s)", p.Order, models.FormatWindows(p.Windows), models.WindowUnits(p.Channel))
	}
	return res, nil
}

func unitsOf(channel bool) string {
	if channel {
		return "channels"
	}
	return "velocities"
}
