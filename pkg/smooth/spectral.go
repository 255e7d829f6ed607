package smooth

import (
	"strings"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"

	"radiocube/internal/models"
	"radiocube/internal/workers"
)

// Window names accepted by Spectrum.
const (
	WindowFlat     = "flat"
	WindowHanning  = "hanning"
	WindowHamming  = "hamming"
	WindowBartlett = "bartlett"
	WindowBlackman = "blackman"
)

var windowFuncs = map[string]func([]float64) []float64{
	WindowFlat:     func(seq []float64) []float64 { return seq },
	WindowHanning:  window.Hann,
	WindowHamming:  window.Hamming,
	WindowBartlett: window.Triangular,
	WindowBlackman: window.Blackman,
}

// Weights returns the normalized smoothing window of the given name and
// length.
func Weights(name string, length int) ([]float64, error) {
	fn, ok := windowFuncs[strings.ToLower(name)]
	if !ok {
		return nil, models.InvalidArgf("window", "%q is not one of flat, hanning, hamming, bartlett, blackman", name)
	}
	w := make([]float64, length)
	for i := range w {
		w[i] = 1
	}
	w = fn(w)
	floats.Scale(1/floats.Sum(w), w)
	return w, nil
}

// Spectrum smooths y with a normalized window of length windowLen. Both
// ends are padded with copies of the signal reflected about the end
// samples so the edges carry no transient. Windows shorter than 3 return
// an unmodified copy.
func Spectrum(y []float64, windowLen int, name string) ([]float64, error) {
	out := make([]float64, len(y))
	copy(out, y)
	if windowLen < 3 {
		return out, nil
	}
	w, err := Weights(name, windowLen)
	if err != nil {
		return nil, err
	}
	n := len(y)
	if n < windowLen {
		return nil, models.InvalidArgf("window_len", "data vector of %d samples needs to be at least window size %d", n, windowLen)
	}

	pad := windowLen - 1
	s := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		s = append(s, 2*y[0]-y[i])
	}
	s = append(s, y...)
	for i := n - 2; i >= n-1-pad; i-- {
		s = append(s, 2*y[n-1]-y[i])
	}

	// Output sample i sits at s[i+pad]; the window is centred on it
	half := (windowLen - 1) / 2
	for i := range out {
		c := i + pad + half
		var acc float64
		for j, wj := range w {
			acc += wj * s[c-j]
		}
		out[i] = acc
	}
	return out, nil
}

// SpectralAxis applies Spectrum to every spectrum of a spectral-first cube
// and returns the smoothed copy.
func SpectralAxis(c *models.Cube, windowLen int, name string, nworkers int) (*models.Cube, error) {
	if err := c.RequireSpectralFirst(); err != nil {
		return nil, err
	}
	if _, err := Weights(name, 3); err != nil {
		return nil, err
	}
	nv := c.Axes[0].Length
	npix := c.Axes[1].Length * c.Axes[2].Length
	out := c.Clone()
	err := workers.ForEach(npix, nworkers, func(p int) error {
		spec := c.Data[p*nv : (p+1)*nv]
		smoothed, err := Spectrum(spec, windowLen, name)
		if err != nil {
			return err
		}
		copy(out.Data[p*nv:(p+1)*nv], smoothed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.AddHistory("Smoothed spectral axis with %s window of length %d", strings.ToLower(name), windowLen)
	return out, nil
}
