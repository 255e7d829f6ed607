// Package fitsfile reads and writes cubes as FITS primary images.
package fitsfile

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"

	"radiocube/internal/models"
)

// maxAxes is the largest NAXIS accepted on read. A fourth axis is only
// allowed when it is degenerate (length 1), as written by some reduction
// packages for the Stokes parameter.
const maxAxes = 4

// Read loads the first image HDU of the FITS file at path.
func Read(path string) (*models.Cube, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return c, nil
}

// Decode reads a cube from a FITS stream. Integer images are scaled with
// BSCALE and BZERO; the data is always returned as float64.
func Decode(r io.Reader) (*models.Cube, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var img fitsio.Image
	for _, hdu := range f.HDUs() {
		if im, ok := hdu.(fitsio.Image); ok && len(im.Header().Axes()) > 0 {
			img = im
			break
		}
	}
	if img == nil {
		return nil, models.MissingMetadataf("no image HDU with data")
	}
	hdr := img.Header()

	dims := hdr.Axes()
	if len(dims) > maxAxes {
		return nil, models.InvalidArgf("NAXIS", "%d axes not supported", len(dims))
	}
	if len(dims) == maxAxes {
		if dims[3] != 1 {
			return nil, models.InvalidArgf("NAXIS4", "only a degenerate 4th axis is supported, got length %d", dims[3])
		}
		dims = dims[:3]
	}

	axes := make([]models.Axis, len(dims))
	for k := range axes {
		a, err := readAxis(hdr, k+1, dims[k])
		if err != nil {
			return nil, err
		}
		axes[k] = a
	}

	data, err := readData(img, hdr)
	if err != nil {
		return nil, err
	}
	c, err := models.FromArray(data, axes)
	if err != nil {
		return nil, err
	}

	bscale, bzero := 1.0, 0.0
	integer := hdr.Bitpix() > 0
	if integer {
		if v, ok := floatCard(hdr, "BSCALE"); ok {
			bscale = v
		}
		if v, ok := floatCard(hdr, "BZERO"); ok {
			bzero = v
		}
		if bscale != 1 || bzero != 0 {
			for i, v := range c.Data {
				c.Data[i] = bzero + bscale*v
			}
		}
	}
	switch v, ok := floatCard(hdr, "BLANK"); {
	case ok && integer:
		c.SetBlank(bzero + bscale*v)
	case ok:
		c.SetBlank(v)
	case !integer && hasNaN(c.Data):
		// floating-point images mark undefined samples with NaN
		c.SetBlank(math.NaN())
	}
	if card := hdr.Get("BUNIT"); card != nil {
		c.Unit = strings.TrimSpace(fmt.Sprint(card.Value))
	}

	for _, key := range hdr.Keys() {
		if reserved(key) {
			continue
		}
		card := hdr.Get(key)
		v := card.Value
		if s, ok := v.(string); ok {
			v = strings.TrimRight(s, " ")
		}
		c.SetKeyword(key, v, card.Comment)
	}
	c.History = append(c.History, history(hdr)...)
	return c, nil
}

// history returns the HISTORY records of hdr in order. Header.Keys skips
// commentary cards, so they are read from the 80-byte records instead.
func history(hdr *fitsio.Header) []string {
	const line = 80
	text := hdr.Text()
	var notes []string
	for i := 0; i+line <= len(text); i += line {
		rec := text[i : i+line]
		if strings.HasPrefix(rec, "HISTORY ") {
			notes = append(notes, strings.TrimSpace(rec[8:]))
		}
	}
	return notes
}

func hasNaN(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func readAxis(hdr *fitsio.Header, n, length int) (models.Axis, error) {
	a := models.Axis{Length: length}
	card := hdr.Get(fmt.Sprintf("CTYPE%d", n))
	if card == nil {
		return a, models.MissingMetadataf("CTYPE%d", n)
	}
	a.Type = strings.TrimSpace(fmt.Sprint(card.Value))

	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"CRPIX", &a.RefPixel},
		{"CRVAL", &a.RefValue},
		{"CDELT", &a.Step},
	} {
		key := fmt.Sprintf("%s%d", f.key, n)
		v, ok := floatCard(hdr, key)
		if !ok {
			return a, models.MissingMetadataf("%s", key)
		}
		*f.dst = v
	}
	if v, ok := floatCard(hdr, fmt.Sprintf("CROTA%d", n)); ok {
		a.Rotation = v
	}
	return a, nil
}

// readData decodes the pixel array into float64 according to BITPIX.
func readData(img fitsio.Image, hdr *fitsio.Header) ([]float64, error) {
	n := 1
	for _, d := range hdr.Axes() {
		n *= d
	}
	out := make([]float64, n)

	var err error
	switch hdr.Bitpix() {
	case 8:
		raw := make([]uint8, n)
		if err = img.Read(&raw); err == nil {
			for i, v := range raw {
				out[i] = float64(v)
			}
		}
	case 16:
		raw := make([]int16, n)
		if err = img.Read(&raw); err == nil {
			for i, v := range raw {
				out[i] = float64(v)
			}
		}
	case 32:
		raw := make([]int32, n)
		if err = img.Read(&raw); err == nil {
			for i, v := range raw {
				out[i] = float64(v)
			}
		}
	case 64:
		raw := make([]int64, n)
		if err = img.Read(&raw); err == nil {
			for i, v := range raw {
				out[i] = float64(v)
			}
		}
	case -32:
		raw := make([]float32, n)
		if err = img.Read(&raw); err == nil {
			for i, v := range raw {
				out[i] = float64(v)
			}
		}
	case -64:
		err = img.Read(&out)
	default:
		return nil, models.InvalidArgf("BITPIX", "unsupported value %d", hdr.Bitpix())
	}
	if err != nil {
		return nil, fmt.Errorf("decoding image data: %w", err)
	}
	return out, nil
}

// Write stores c at path as a BITPIX -64 primary image, replacing any
// existing file.
func Write(path string, c *models.Cube) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, c); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// Encode writes c as a single-HDU FITS stream with float64 samples.
// Blank samples are stored as NaN and no BLANK card is written. History
// notes longer than one record are split over several HISTORY cards.
func Encode(w io.Writer, c *models.Cube) error {
	if err := c.Validate(); err != nil {
		return err
	}
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}

	img := fitsio.NewImage(-64, c.Shape())
	defer img.Close()
	if err := img.Header().Append(headerCards(c)...); err != nil {
		return err
	}
	if err := img.Write(floatData(c)); err != nil {
		return err
	}
	if err := fits.Write(img); err != nil {
		return err
	}
	return fits.Close()
}

// floatData returns the samples of c with blank samples replaced by NaN,
// since BLANK is only defined for integer images.
func floatData(c *models.Cube) []float64 {
	if c.Blank == nil || math.IsNaN(*c.Blank) {
		return c.Data
	}
	out := make([]float64, len(c.Data))
	for i, v := range c.Data {
		if c.IsBlank(v) {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

func headerCards(c *models.Cube) []fitsio.Card {
	var cards []fitsio.Card
	for k, a := range c.Axes {
		n := k + 1
		cards = append(cards,
			fitsio.Card{Name: fmt.Sprintf("CTYPE%d", n), Value: a.Type},
			fitsio.Card{Name: fmt.Sprintf("CRVAL%d", n), Value: a.RefValue},
			fitsio.Card{Name: fmt.Sprintf("CDELT%d", n), Value: a.Step},
			fitsio.Card{Name: fmt.Sprintf("CRPIX%d", n), Value: a.RefPixel},
			fitsio.Card{Name: fmt.Sprintf("CROTA%d", n), Value: a.Rotation},
		)
	}
	if c.Unit != "" {
		cards = append(cards, fitsio.Card{Name: "BUNIT", Value: c.Unit})
	}
	for _, kw := range c.Keywords {
		if reserved(kw.Name) {
			continue
		}
		cards = append(cards, fitsio.Card{Name: kw.Name, Value: kw.Value, Comment: kw.Comment})
	}
	for _, h := range c.History {
		cards = append(cards, fitsio.Card{Name: "HISTORY", Comment: h})
	}
	return cards
}

var structural = map[string]bool{
	"SIMPLE": true, "BITPIX": true, "NAXIS": true, "EXTEND": true, "END": true,
	"BSCALE": true, "BZERO": true, "BLANK": true, "BUNIT": true,
	"HISTORY": true, "COMMENT": true, "CONTINUE": true, "": true,
	"PCOUNT": true, "GCOUNT": true, "XTENSION": true,
}

var axisPrefixes = []string{"NAXIS", "CTYPE", "CRPIX", "CRVAL", "CDELT", "CROTA"}

// reserved reports whether a keyword is derived from the cube structure
// rather than carried as a provenance keyword.
func reserved(name string) bool {
	if structural[name] {
		return true
	}
	for _, p := range axisPrefixes {
		if strings.HasPrefix(name, p) {
			if _, err := strconv.Atoi(name[len(p):]); err == nil {
				return true
			}
		}
	}
	return false
}

func floatCard(hdr *fitsio.Header, key string) (float64, bool) {
	card := hdr.Get(key)
	if card == nil {
		return 0, false
	}
	return toFloat(card.Value)
}

func toFloat(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}
