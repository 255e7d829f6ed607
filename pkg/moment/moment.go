// Package moment computes moment maps of spectral-first cubes: the
// integrated intensity (order 0), the intensity-weighted centroid
// velocity (order 1) and the intensity-weighted velocity dispersion
// squared (order 2), plus noise maps from line-free channels.
package moment

import (
	"math"

	"radiocube/internal/models"
	"radiocube/internal/workers"
)

// Params selects the spectral range and the moment order.
type Params struct {
	// Lower and Upper bound the selected range, inclusive. They are
	// channel indices in Channel mode and velocities otherwise; the order
	// of the two does not matter.
	Lower, Upper float64

	// Order is the moment order: 0, 1 or 2.
	Order int

	// Channel treats Lower, Upper and RMSWindows as channel indices.
	Channel bool

	// DontBlank keeps samples equal to the blank value instead of
	// treating them as zero.
	DontBlank bool

	// KMS expresses velocities in km/s.
	KMS bool

	// RMSWindows requests a noise map computed outside these ranges.
	// Only valid for order 0.
	RMSWindows []models.Window

	// Workers is the number of goroutines, 0 for one per CPU.
	Workers int
}

// Result is a moment map with its provenance.
type Result struct {
	// Map is the 2D moment map on the two spatial axes of the cube.
	Map *models.Cube

	// Order is the moment order of Map.
	Order int

	// Channels is the number of channels that were summed.
	Channels int

	// RMS is the noise map of Map, present when RMSWindows was given.
	RMS *models.Cube
}

// Compute reduces c to a moment map. The input cube is never modified.
func Compute(c *models.Cube, p Params) (*Result, error) {
	if p.Order < 0 || p.Order > 2 {
		return nil, models.InvalidArgf("moment", "moment can only be one of 0,1,2, got %d", p.Order)
	}
	if len(p.RMSWindows) > 0 && p.Order != 0 {
		return nil, models.InvalidArgf("rms", "only moment=0 can return an rms image, got moment=%d", p.Order)
	}
	if err := c.RequireSpectralFirst(); err != nil {
		return nil, err
	}

	spec := c.Axes[0]
	sel, lower, upper := selectChannels(spec, p)
	var idx []int
	for i, in := range sel {
		if in {
			idx = append(idx, i)
		}
	}
	n := len(idx)
	if n == 0 {
		return nil, models.InvalidArgf("range", "[%g, %g] selects no %s", lower, upper, unitsOf(p.Channel))
	}

	velax := spec.Values(p.KMS)
	step := math.Abs(spec.StepIn(p.KMS))
	blank := !p.DontBlank && c.Blank != nil

	out, err := c.Derive(c.SpatialAxes())
	if err != nil {
		return nil, err
	}
	nv := spec.Length
	npix := out.Axes[0].Length * out.Axes[1].Length
	err = workers.ForEach(npix, p.Workers, func(pix int) error {
		spectrum := c.Data[pix*nv : (pix+1)*nv]
		var t, tv, tv2 float64
		for _, i := range idx {
			s := spectrum[i]
			if blank && c.IsBlank(s) {
				continue
			}
			v := velax[i]
			t += s
			tv += s * v
			tv2 += s * v * v
		}
		switch p.Order {
		case 0:
			out.Data[pix] = t * step
		case 1:
			out.Data[pix] = tv / t
		case 2:
			m1 := tv / t
			out.Data[pix] = tv2/t - m1*m1
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	units := models.WindowUnits(p.Channel)
	out.Unit = momentUnit(c.Unit, p.Order, p.KMS)
	out.SetKeyword("VMIN", lower, "LOWER "+units+" LIMIT")
	out.SetKeyword("VMAX", upper, "UPPER "+units+" LIMIT")
	out.SetKeyword("MOMENT", p.Order, "Order of Moment")
	out.AddHistory("Moment %d over %s range [%g, %g], N=%d channels", p.Order, units, lower, upper, n)

	res := &Result{Map: out, Order: p.Order, Channels: n}
	if len(p.RMSWindows) > 0 {
		noise, err := RMSMap(c, RMSParams{
			Windows:   p.RMSWindows,
			Channel:   p.Channel,
			DontBlank: p.DontBlank,
			KMS:       p.KMS,
			Workers:   p.Workers,
		})
		if err != nil {
			return nil, err
		}
		scale := step * math.Sqrt(float64(n))
		for i := range noise.Data {
			noise.Data[i] *= scale
		}
		noise.Unit = out.Unit
		noise.Keywords = append([]models.Keyword(nil), out.Keywords...)
		res.RMS = noise
	}
	return res, nil
}

// selectChannels returns the channel mask for the requested range and
// the normalized bounds recorded as provenance.
func selectChannels(spec models.Axis, p Params) ([]bool, float64, float64) {
	w := models.Window{Lower: p.Lower, Upper: p.Upper}.Normalized()
	if p.Channel {
		lo := int(math.Round(w.Lower))
		hi := int(math.Round(w.Upper))
		if lo < 0 {
			lo = 0
		}
		if hi > spec.Length-1 {
			hi = spec.Length - 1
		}
		sel := make([]bool, spec.Length)
		for i := lo; i <= hi; i++ {
			sel[i] = true
		}
		return sel, float64(lo), float64(hi)
	}
	return models.ChannelMask(spec, []models.Window{w}, false, p.KMS), w.Lower, w.Upper
}

func momentUnit(brightness string, order int, kms bool) string {
	vel := "m/s"
	if kms {
		vel = "km/s"
	}
	if order != 0 {
		return vel
	}
	if brightness == "" {
		brightness = "K"
	}
	return brightness + "." + vel
}

func unitsOf(channel bool) string {
	if channel {
		return "channels"
	}
	return "velocities"
}
