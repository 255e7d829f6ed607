// Package wcs converts between pixel positions and sky coordinates for
// the two spatial axes of a cube, using the linear per-axis calibration
// with an optional cos(declination) correction on the longitude axis.
//
// Near the celestial poles cos(dec) approaches zero and the correction
// becomes unstable; only an exactly vanishing cosine is reported.
package wcs

import (
	"math"

	"radiocube/internal/models"
)

// cosEpsilon is the smallest |cos(dec)| the transform divides by.
const cosEpsilon = 1e-15

// Transform maps pixels to world coordinates for one longitude/latitude
// axis pair.
type Transform struct {
	// Lon and Lat are copies of the longitude-like and latitude-like axes.
	Lon models.Axis
	Lat models.Axis

	// LonIndex and LatIndex are the 0-based positions of the axes in the cube.
	LonIndex int
	LatIndex int

	// CosDec enables the cos(declination) correction.
	CosDec bool
}

// New locates the longitude-like (RA, GLON, ELON) and latitude-like
// (DEC, GLAT, ELAT) axes of c.
func New(c *models.Cube, cosDec bool) (*Transform, error) {
	return FromAxes(c.Axes, cosDec)
}

// FromAxes builds a Transform from a bare axis list.
func FromAxes(axes []models.Axis, cosDec bool) (*Transform, error) {
	t := &Transform{LonIndex: -1, LatIndex: -1, CosDec: cosDec}
	for i, a := range axes {
		switch {
		case t.LonIndex < 0 && a.IsLongitude():
			t.Lon, t.LonIndex = a, i
		case t.LatIndex < 0 && a.IsLatitude():
			t.Lat, t.LatIndex = a, i
		}
	}
	if t.LonIndex < 0 {
		return nil, models.MissingMetadataf("no RA-like axis (CTYPE RA, GLON or ELON)")
	}
	if t.LatIndex < 0 {
		return nil, models.MissingMetadataf("no DEC-like axis (CTYPE DEC, GLAT or ELAT)")
	}
	return t, nil
}

// PixelToWorld converts a 1-based FITS pixel position to (ra, dec) in
// the units of the axis calibration (normally degrees).
func (t *Transform) PixelToWorld(x, y float64) (ra, dec float64, err error) {
	dec = t.Lat.RefValue + (y-t.Lat.RefPixel)*t.Lat.Step
	offset := (x - t.Lon.RefPixel) * t.Lon.Step
	if t.CosDec {
		c, err := cosine(dec)
		if err != nil {
			return 0, 0, err
		}
		offset /= c
	}
	return t.Lon.RefValue + offset, dec, nil
}

// PixelToWorld0 is PixelToWorld for 0-based array indices.
func (t *Transform) PixelToWorld0(x, y float64) (ra, dec float64, err error) {
	return t.PixelToWorld(x+1, y+1)
}

// WorldToPixel is the inverse of PixelToWorld and returns 1-based pixels.
func (t *Transform) WorldToPixel(ra, dec float64) (x, y float64, err error) {
	if t.Lon.Step == 0 || t.Lat.Step == 0 {
		return 0, 0, models.NumericalFailuref("zero pixel step on a spatial axis")
	}
	y = t.Lat.RefPixel + (dec-t.Lat.RefValue)/t.Lat.Step
	offset := ra - t.Lon.RefValue
	if t.CosDec {
		c, err := cosine(dec)
		if err != nil {
			return 0, 0, err
		}
		offset *= c
	}
	return t.Lon.RefPixel + offset/t.Lon.Step, y, nil
}

// WorldToPixel0 is WorldToPixel returning 0-based array indices.
func (t *Transform) WorldToPixel0(ra, dec float64) (x, y float64, err error) {
	x, y, err = t.WorldToPixel(ra, dec)
	return x - 1, y - 1, err
}

func cosine(decDeg float64) (float64, error) {
	c := math.Cos(decDeg * math.Pi / 180)
	if math.Abs(c) < cosEpsilon {
		return 0, models.NumericalFailuref("cos(dec) vanishes at dec=%g", decDeg)
	}
	return c, nil
}
