// Package visualization renders quick-look images of cubes: single planes,
// channel-map sequences and 2D products such as moment maps.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/gift"
	"gonum.org/v1/gonum/stat"

	"radiocube/internal/models"
)

// Viewer renders planes of a cube as 16-bit grayscale images.
type Viewer struct {
	cube *models.Cube

	// ClipLow and ClipHigh are the percentiles mapped to black and white.
	// Zero values use the full data range.
	ClipLow, ClipHigh float64

	// Zoom enlarges every pixel to Zoom×Zoom screen pixels.
	Zoom int
}

// NewViewer creates a viewer for a 2D or 3D cube.
func NewViewer(c *models.Cube) (*Viewer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Rank() < 2 {
		return nil, models.InvalidArgf("cube", "cannot render a rank %d cube", c.Rank())
	}
	return &Viewer{cube: c, ClipLow: 0.5, ClipHigh: 99.5, Zoom: 1}, nil
}

// Plane returns the 2D samples of c with axis fixed at position, as a
// row-major (width, height) grid. The two remaining axes, in storage
// order, become the image x and y. For a 2D cube axis and position are
// ignored.
func (v *Viewer) Plane(axis, position int) ([]float64, int, int, error) {
	c := v.cube
	shape := c.Shape()
	if c.Rank() == 2 {
		out := append([]float64(nil), c.Data...)
		return out, shape[0], shape[1], nil
	}
	if axis < 0 || axis > 2 {
		return nil, 0, 0, models.InvalidArgf("axis", "%d must be 0, 1 or 2", axis)
	}
	if position < 0 || position >= shape[axis] {
		return nil, 0, 0, models.InvalidArgf("position", "%d exceeds axis %d length %d", position, axis+1, shape[axis])
	}

	var w, h int
	var at func(i, j int) float64
	switch axis {
	case 0:
		w, h = shape[1], shape[2]
		at = func(i, j int) float64 { return c.At(position, i, j) }
	case 1:
		w, h = shape[0], shape[2]
		at = func(i, j int) float64 { return c.At(i, position, j) }
	default:
		w, h = shape[0], shape[1]
		at = func(i, j int) float64 { return c.At(i, j, position) }
	}
	out := make([]float64, w*h)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			out[j*w+i] = at(i, j)
		}
	}
	return out, w, h, nil
}

// ExtractSlice renders the plane at position along axis. Pixel (0, 0) of
// the cube is drawn at the bottom left, following the sky-image convention.
func (v *Viewer) ExtractSlice(axis, position int) (image.Image, error) {
	data, w, h, err := v.Plane(axis, position)
	if err != nil {
		return nil, err
	}
	lo, hi := v.limits(data)

	img := image.NewGray16(image.Rect(0, 0, w, h))
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			img.SetGray16(i, j, color.Gray16{Y: scale(data[j*w+i], lo, hi)})
		}
	}

	filters := []gift.Filter{gift.FlipVertical()}
	if v.Zoom > 1 {
		filters = append(filters, gift.Resize(w*v.Zoom, h*v.Zoom, gift.NearestNeighborResampling))
	}
	g := gift.New(filters...)
	dst := image.NewGray16(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst, nil
}

// limits returns the display range after percentile clipping, ignoring
// blank and non-finite samples.
func (v *Viewer) limits(data []float64) (float64, float64) {
	valid := make([]float64, 0, len(data))
	for _, x := range data {
		if !v.cube.IsBlank(x) && !math.IsNaN(x) && !math.IsInf(x, 0) {
			valid = append(valid, x)
		}
	}
	if len(valid) == 0 {
		return 0, 1
	}
	sort.Float64s(valid)
	lo, hi := valid[0], valid[len(valid)-1]
	if v.ClipHigh > v.ClipLow && v.ClipHigh > 0 {
		lo = stat.Quantile(v.ClipLow/100, stat.Empirical, valid, nil)
		hi = stat.Quantile(v.ClipHigh/100, stat.Empirical, valid, nil)
	}
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

func scale(x, lo, hi float64) uint16 {
	if math.IsNaN(x) {
		return 0
	}
	return uint16(math.Max(0, math.Min(65535, (x-lo)/(hi-lo)*65535)))
}

// SaveSlice saves an extracted slice as PNG or JPEG, chosen by the file
// extension.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
		return models.InvalidArgf("filename", "%q has no .png or .jpg extension", filename)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if ext == ".png" {
		return png.Encode(file, img)
	}
	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence writes every plane along axis to outputDir, e.g. the
// channel maps of a spectral-first cube for axis 0.
func (v *Viewer) SaveSliceSequence(axis int, outputDir, format string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	if v.cube.Rank() != 3 {
		return models.InvalidArgf("cube", "a slice sequence needs a 3D cube, got rank %d", v.cube.Rank())
	}
	if axis < 0 || axis > 2 {
		return models.InvalidArgf("axis", "%d must be 0, 1 or 2", axis)
	}

	for pos := 0; pos < v.cube.Axes[axis].Length; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%d_%03d.%s", axis+1, pos, format))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SaveMap renders a 2D cube, or the first plane of a 3D cube, to filename.
func SaveMap(c *models.Cube, filename string, zoom int) error {
	v, err := NewViewer(c)
	if err != nil {
		return err
	}
	if zoom > 0 {
		v.Zoom = zoom
	}
	img, err := v.ExtractSlice(0, 0)
	if err != nil {
		return err
	}
	return v.SaveSlice(img, filename)
}
