// Package posvel builds position-velocity slices by sampling Gaussian-
// weighted spectra at unit-pixel steps along a straight line through a
// spectral-first cube.
package posvel

import (
	"math"

	"radiocube/internal/models"
	"radiocube/internal/workers"
	"radiocube/pkg/clip"
	"radiocube/pkg/spectrum"
	"radiocube/pkg/wcs"
)

// PositionType is the axis type of the distance-along-the-cut axis.
const PositionType = "POSITION"

// Params are the sampling options shared by both cut modes.
type Params struct {
	// HalfWidth is the Gaussian kernel half width of each spectrum.
	HalfWidth int

	// CosDec applies the cos(dec) correction to the recorded longitude.
	CosDec bool

	// Workers is the number of goroutines, 0 for one per CPU.
	Workers int
}

// BetweenPoints samples int(|p2-p1|) spectra from p1 toward p2 at unit
// pixel spacing. The result has the spectral axis of c as axis 1 and the
// position along the cut as axis 2, referenced to the segment midpoint.
func BetweenPoints(c *models.Cube, p1, p2 models.Point2D, p Params) (*models.Cube, error) {
	if err := c.RequireSpectralFirst(); err != nil {
		return nil, err
	}
	nx, ny := c.Axes[1].Length, c.Axes[2].Length
	for _, pt := range []struct {
		name string
		pt   models.Point2D
	}{{"p1", p1}, {"p2", p2}} {
		if pt.pt.X < 0 || pt.pt.X >= float64(nx) || pt.pt.Y < 0 || pt.pt.Y >= float64(ny) {
			return nil, models.InvalidArgf(pt.name, "(%g, %g) lies outside the cube (0..%d, 0..%d)", pt.pt.X, pt.pt.Y, nx, ny)
		}
	}
	out, err := sampleLine(c, p1, p2, p)
	if err != nil {
		return nil, err
	}
	n := out.Axes[1].Length
	mid := models.Point2D{X: (p1.X + p2.X) / 2, Y: (p1.Y + p2.Y) / 2}
	lon, lat, err := worldAt(c, mid, p.CosDec)
	if err != nil {
		return nil, err
	}
	out.Axes[1].RefPixel = float64(n) / 2
	out.Axes[1].RefValue = lon
	out.SetKeyword("PVLON", lon, "Longitude of cut reference")
	out.SetKeyword("PVLAT", lat, "Latitude of cut reference")
	out.AddHistory("Extracted posvel image from (%.1f, %.1f) to (%.1f, %.1f) with gauss_width=%d",
		p1.X, p1.Y, p2.X, p2.Y, p.HalfWidth)
	return out, nil
}

// AtAngle cuts along the line through p1 at angleDeg from the x axis,
// from edge to edge of the spatial extent of c. The position axis is
// referenced to p1.
func AtAngle(c *models.Cube, p1 models.Point2D, angleDeg float64, p Params) (*models.Cube, error) {
	if err := c.RequireSpectralFirst(); err != nil {
		return nil, err
	}
	nx, ny := c.Axes[1].Length, c.Axes[2].Length
	if p1.X < 0 || p1.X > float64(nx-1) || p1.Y < 0 || p1.Y > float64(ny-1) {
		return nil, models.InvalidArgf("p1", "(%g, %g) lies outside the cube (0..%d, 0..%d)", p1.X, p1.Y, nx-1, ny-1)
	}
	rect := clip.Rect{Left: 0, Right: float64(nx - 1), Bottom: 0, Top: float64(ny - 1)}
	lo, hi, err := clip.Line(rect, p1, angleDeg)
	if err != nil {
		return nil, err
	}
	out, err := sampleLine(c, lo, hi, p)
	if err != nil {
		return nil, err
	}
	lon, lat, err := worldAt(c, p1, p.CosDec)
	if err != nil {
		return nil, err
	}
	out.Axes[1].RefPixel = float64(int(lo.Distance(p1)))
	out.Axes[1].RefValue = lon
	out.SetKeyword("PVLON", lon, "Longitude of cut reference")
	out.SetKeyword("PVLAT", lat, "Latitude of cut reference")
	out.AddHistory("Extracted posvel image from (%.1f, %.1f) with angle %.2f with gauss_width=%d",
		p1.X, p1.Y, angleDeg, p.HalfWidth)
	return out, nil
}

// sampleLine fills a (spectral, position) cube with spectra taken at
// unit steps from a toward b.
func sampleLine(c *models.Cube, a, b models.Point2D, p Params) (*models.Cube, error) {
	s, err := spectrum.NewSampler(c, p.HalfWidth)
	if err != nil {
		return nil, err
	}
	d := a.Distance(b)
	n := int(d)
	if n < 1 {
		return nil, models.InvalidArgf("positions", "points (%g, %g) and (%g, %g) are less than one pixel apart", a.X, a.Y, b.X, b.Y)
	}
	ux, uy := (b.X-a.X)/d, (b.Y-a.Y)/d

	nv := c.Axes[0].Length
	nx, ny := c.Axes[1].Length, c.Axes[2].Length
	out, err := c.Derive([]models.Axis{
		c.Axes[0],
		{Type: PositionType, RefPixel: 1, RefValue: 0, Step: 1, Length: n},
	})
	if err != nil {
		return nil, err
	}
	err = workers.ForEach(n, p.Workers, func(i int) error {
		x := clamp(a.X+float64(i)*ux, nx)
		y := clamp(a.Y+float64(i)*uy, ny)
		return s.At(x, y, out.Data[i*nv:(i+1)*nv])
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// clamp keeps a sample coordinate inside [0, n-1] against rounding at
// the clipped edges.
func clamp(v float64, n int) float64 {
	return math.Max(0, math.Min(v, float64(n-1)))
}

// worldAt returns the sky position of a 0-based (x, y) pixel, where x
// runs along axis 2 of the cube and y along axis 3.
func worldAt(c *models.Cube, pt models.Point2D, cosDec bool) (float64, float64, error) {
	tr, err := wcs.New(c, cosDec)
	if err != nil {
		return 0, 0, err
	}
	if tr.LonIndex == 2 {
		return tr.PixelToWorld0(pt.Y, pt.X)
	}
	return tr.PixelToWorld0(pt.X, pt.Y)
}
