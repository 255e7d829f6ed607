package smooth

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"radiocube/internal/models"
)

// BlurImage convolves a 2D map with GaussKernelXY(halfX, halfY) and
// returns a new map of the same shape ('same' mode: the centre of the
// full linear convolution). Non-finite samples contribute nothing to
// their neighbours and stay non-finite in the output.
func BlurImage(img *models.Cube, halfX, halfY int) (*models.Cube, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if img.Rank() != 2 {
		return nil, models.InvalidArgf("image", "expected a 2D map, got rank %d", img.Rank())
	}
	k, err := GaussKernelXY(halfX, halfY)
	if err != nil {
		return nil, err
	}

	nx, ny := img.Axes[0].Length, img.Axes[1].Length
	kw, kh := k.Width(), k.Height()
	// Padding to the full convolution size avoids circular wrap-around
	w, h := nx+kw-1, ny+kh-1

	padded := make([]float64, w*h)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			v := img.Data[x+nx*y]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			padded[x+w*y] = v
		}
	}
	kernel := make([]float64, w*h)
	for y := 0; y < kh; y++ {
		copy(kernel[w*y:w*y+kw], k.Weights[kw*y:kw*(y+1)])
	}

	imgSpec := fft2D(padded, w, h)
	kernSpec := fft2D(kernel, w, h)
	for i := range imgSpec {
		imgSpec[i] *= kernSpec[i]
	}
	full := ifft2D(imgSpec, w, h)

	out := img.Clone()
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			i := x + nx*y
			if math.IsNaN(img.Data[i]) || math.IsInf(img.Data[i], 0) {
				continue
			}
			out.Data[i] = full[(x+halfX)+w*(y+halfY)]
		}
	}
	if halfX == halfY {
		out.AddHistory("Smoothed image with gaussian kernel of width %d", halfX)
	} else {
		out.AddHistory("Smoothed image with gaussian kernel of width %d x %d", halfX, halfY)
	}
	return out, nil
}

// fft2D performs a 2D Fast Fourier Transform of a real w by h image
// stored row-major. Rows use the real transform and are expanded to the
// full spectrum by conjugate symmetry; columns use the complex transform.
func fft2D(data []float64, w, h int) []complex128 {
	rowFFT := fourier.NewFFT(w)
	colFFT := fourier.NewCmplxFFT(h)

	result := make([]complex128, w*h)
	rowOutput := make([]complex128, w/2+1)
	for y := 0; y < h; y++ {
		rowFFT.Coefficients(rowOutput, data[y*w:(y+1)*w])
		row := result[y*w : (y+1)*w]
		copy(row, rowOutput)
		// F(n-k) = F*(k)
		for x := len(rowOutput); x < w; x++ {
			c := rowOutput[w-x]
			row[x] = complex(real(c), -imag(c))
		}
	}

	col := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = result[y*w+x]
		}
		colFFT.Coefficients(col, col)
		for y := 0; y < h; y++ {
			result[y*w+x] = col[y]
		}
	}
	return result
}

// ifft2D inverts fft2D, including the 1/(w*h) normalization the gonum
// transforms leave out.
func ifft2D(spec []complex128, w, h int) []float64 {
	rowFFT := fourier.NewFFT(w)
	colFFT := fourier.NewCmplxFFT(h)

	work := make([]complex128, len(spec))
	copy(work, spec)
	col := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = work[y*w+x]
		}
		colFFT.Sequence(col, col)
		for y := 0; y < h; y++ {
			work[y*w+x] = col[y]
		}
	}

	out := make([]float64, w*h)
	norm := 1 / float64(w*h)
	for y := 0; y < h; y++ {
		row := out[y*w : (y+1)*w]
		rowFFT.Sequence(row, work[y*w:y*w+w/2+1])
		for x := range row {
			row[x] *= norm
		}
	}
	return out
}
