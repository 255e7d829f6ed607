package moment

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"radiocube/internal/models"
	"radiocube/internal/workers"
)

// RMSParams selects the channels excluded from a noise estimate.
type RMSParams struct {
	// Windows are the ranges to exclude, typically the emission lines.
	// In Channel mode the upper bound itself is kept.
	Windows []models.Window

	// Channel treats Windows as channel indices instead of velocities.
	Channel bool

	// DontBlank keeps samples equal to the blank value instead of
	// treating them as zero.
	DontBlank bool

	// KMS expresses velocity windows in km/s.
	KMS bool

	// Workers is the number of goroutines, 0 for one per CPU.
	Workers int
}

// RMSMap returns, for every spatial pixel of a spectral-first cube, the
// population standard deviation of the channels outside p.Windows.
func RMSMap(c *models.Cube, p RMSParams) (*models.Cube, error) {
	if err := c.RequireSpectralFirst(); err != nil {
		return nil, err
	}
	if len(p.Windows) == 0 {
		return nil, models.InvalidArgf("window", "at least one exclusion window is required")
	}
	spec := c.Axes[0]
	excluded := exclusionMask(spec, p.Windows, p.Channel, p.KMS)
	var idx []int
	for i, ex := range excluded {
		if !ex {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil, models.InvalidArgf("window", "%s excludes every channel", models.FormatWindows(p.Windows))
	}

	out, err := c.Derive(c.SpatialAxes())
	if err != nil {
		return nil, err
	}
	blank := !p.DontBlank && c.Blank != nil
	nv := spec.Length
	npix := out.Axes[0].Length * out.Axes[1].Length
	err = workers.ForEachChunk(npix, p.Workers, func(start, end int) error {
		vals := make([]float64, len(idx))
		for pix := start; pix < end; pix++ {
			spectrum := c.Data[pix*nv : (pix+1)*nv]
			for k, i := range idx {
				s := spectrum[i]
				if blank && c.IsBlank(s) {
					s = 0
				}
				vals[k] = s
			}
			out.Data[pix] = stat.PopStdDev(vals, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.AddHistory("WINDOW : %s; Window %s LIMITS", models.FormatWindows(p.Windows), models.WindowUnits(p.Channel))
	return out, nil
}

// exclusionMask marks the channels left out of the noise estimate.
// Channel windows are half-open, [Lower, Upper), like a slice of the
// channel range; velocity windows are inclusive.
func exclusionMask(axis models.Axis, windows []models.Window, channel, kms bool) []bool {
	if !channel {
		return models.ChannelMask(axis, windows, false, kms)
	}
	mask := make([]bool, axis.Length)
	for _, w := range windows {
		w = w.Normalized()
		lo := int(math.Max(0, math.Ceil(w.Lower)))
		hi := int(math.Min(float64(axis.Length), math.Ceil(w.Upper)))
		for i := lo; i < hi; i++ {
			mask[i] = true
		}
	}
	return mask
}
