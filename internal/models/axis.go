package models

import "strings"

// Axis holds the linear world-coordinate calibration of one cube axis,
// using the FITS keyword conventions.
type Axis struct {
	// Type is the axis type tag (CTYPE), e.g. "VELO-LSR", "RA---GLS", "DEC--GLS".
	Type string

	// RefPixel is the 1-based reference pixel (CRPIX).
	RefPixel float64

	// RefValue is the world coordinate at RefPixel (CRVAL).
	RefValue float64

	// Step is the world-coordinate increment per pixel (CDELT).
	Step float64

	// Length is the number of samples along the axis (NAXIS).
	Length int

	// Rotation is the axis rotation angle (CROTA). It is carried along
	// when axes are permuted but otherwise unused.
	Rotation float64
}

var velocityPrefixes = []string{"VELO", "VRAD", "VOPT", "FELO"}

// IsVelocity reports whether the axis is a spectral velocity axis.
func (a Axis) IsVelocity() bool {
	t := strings.ToUpper(strings.TrimSpace(a.Type))
	for _, p := range velocityPrefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}

// IsLongitude reports whether the axis is RA-like (RA, GLON, ELON).
func (a Axis) IsLongitude() bool {
	t := strings.ToUpper(strings.TrimSpace(a.Type))
	return strings.HasPrefix(t, "RA") || strings.HasPrefix(t, "GLON") || strings.HasPrefix(t, "ELON")
}

// IsLatitude reports whether the axis is Dec-like (DEC, GLAT, ELAT).
func (a Axis) IsLatitude() bool {
	t := strings.ToUpper(strings.TrimSpace(a.Type))
	return strings.HasPrefix(t, "DEC") || strings.HasPrefix(t, "GLAT") || strings.HasPrefix(t, "ELAT")
}

// Values returns the world coordinate of every sample along the axis:
// RefValue + (i - (RefPixel-1))*Step. Velocity axes are stored in m/s;
// with kms set they are returned in km/s.
func (a Axis) Values(kms bool) []float64 {
	values := make([]float64, a.Length)
	scale := a.unitScale(kms)
	for i := range values {
		values[i] = (a.RefValue + (float64(i)-(a.RefPixel-1))*a.Step) / scale
	}
	return values
}

// StepIn returns Step with the same unit conversion Values applies.
func (a Axis) StepIn(kms bool) float64 {
	return a.Step / a.unitScale(kms)
}

// WorldAt returns the world coordinate at a 0-based, possibly fractional, index.
func (a Axis) WorldAt(index float64) float64 {
	return a.RefValue + (index-(a.RefPixel-1))*a.Step
}

func (a Axis) unitScale(kms bool) float64 {
	if kms && a.IsVelocity() {
		return 1000
	}
	return 1
}
