// Package pipeline chains the cube operations into the standard reduction
// of a position-position-velocity cube: reorder to spectral-first, regrid
// and smooth the spectral axis, subtract baselines and compute moment maps.
package pipeline

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"radiocube/internal/models"
	"radiocube/pkg/baseline"
	"radiocube/pkg/config"
	"radiocube/pkg/fitsfile"
	"radiocube/pkg/moment"
	"radiocube/pkg/smooth"
	"radiocube/pkg/transpose"
	"radiocube/pkg/visualization"
)

// MapStats summarises the finite, non-blank pixels of a product.
type MapStats struct {
	Name   string
	Valid  int
	Min    float64
	Max    float64
	Mean   float64
	Median float64
}

func (s MapStats) String() string {
	return fmt.Sprintf("%-12s valid=%-6d min=%-12.5g max=%-12.5g mean=%-12.5g median=%.5g",
		s.Name, s.Valid, s.Min, s.Max, s.Mean, s.Median)
}

// Summary describes a completed reduction.
type Summary struct {
	// Shape is the shape of the reduced spectral-first cube.
	Shape []int

	// BaselineChannels is the number of channels inside the baseline windows.
	BaselineChannels int

	// Degenerate counts the spectra whose baseline fit failed.
	Degenerate int

	// Stats holds one entry per written 2D product.
	Stats []MapStats

	// Files lists every file written, in order.
	Files []string
}

// Reducer runs the reduction pipeline.
//
// The reduction consists of several steps:
// 1. Loading the cube
// 2. Reordering it to the spectral-first (vxy) layout
// 3. Regridding and smoothing the spectral axis
// 4. Fitting and subtracting polynomial baselines
// 5. Computing moment maps and their noise maps
// 6. Summarising the products
type Reducer struct {
	cfg *config.Config

	// name is the file stem used for every product
	name string

	cube    *models.Cube
	sigma   *models.Cube
	moments map[int]*moment.Result

	summary Summary
}

// NewReducer creates a reducer for the given configuration.
func NewReducer(cfg *config.Config) *Reducer {
	return &Reducer{cfg: cfg, moments: make(map[int]*moment.Result)}
}

// Process reduces the FITS cube at input and writes the products to the
// configured output directory.
func (r *Reducer) Process(input string) error {
	r.printf("Step 1: Loading cube %s...\n", input)
	c, err := fitsfile.Read(input)
	if err != nil {
		return fmt.Errorf("failed to load cube: %w", err)
	}
	r.printf("Loaded cube with shape %v, axes %s\n", c.Shape(), axisTypes(c))
	return r.ProcessCube(c, strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)))
}

// ProcessCube reduces an in-memory cube, naming the products after name.
func (r *Reducer) ProcessCube(c *models.Cube, name string) error {
	r.name = name
	cfg := r.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Step 2: reorder
	r.printf("Step 2: Reordering %s cube to vxy...\n", cfg.Processing.Layout)
	layout, err := models.ParseLayout(cfg.Processing.Layout)
	if err != nil {
		return err
	}
	cube, err := transpose.Between(c, layout, models.LayoutVXY)
	if err != nil {
		return fmt.Errorf("failed to transpose cube: %w", err)
	}
	r.saveIntermediaryResult("01_transposed", cube)

	// Step 3: spectral axis
	r.printf("Step 3: Preparing the spectral axis...\n")
	if f := cfg.Transpose.SmoothFactor; f > 0 && f != 1 {
		cube, err = transpose.Smooth(cube, transpose.SmoothParams{
			Factor:  f,
			Layout:  models.LayoutVXY,
			Method:  cfg.Transpose.Method,
			Workers: cfg.Processing.Workers,
		})
		if err != nil {
			return fmt.Errorf("failed to regrid spectral axis: %w", err)
		}
		r.printf("Regridded spectral axis by %g to %d channels\n", f, cube.Axes[0].Length)
		r.saveIntermediaryResult("02_regridded", cube)
	}
	if n := cfg.Transpose.Hanning; n >= 3 {
		cube, err = smooth.SpectralAxis(cube, n, smooth.WindowHanning, cfg.Processing.Workers)
		if err != nil {
			return fmt.Errorf("failed to smooth spectra: %w", err)
		}
		r.printf("Hanning smoothed spectra with a %d channel window\n", n)
		r.saveIntermediaryResult("03_smoothed", cube)
	}
	r.cube = cube

	// Step 4: baselines
	if cfg.Baseline.Enabled {
		r.printf("Step 4: Fitting order %d baselines...\n", cfg.Baseline.Order)
		if err := r.fitBaselines(); err != nil {
			return fmt.Errorf("failed to fit baselines: %w", err)
		}
	} else {
		r.printf("Step 4: Baseline fitting disabled\n")
	}
	if err := r.write(r.cube, "reduced"); err != nil {
		return err
	}

	// Step 5: moments
	r.printf("Step 5: Computing moments %v...\n", cfg.Moment.Orders)
	if err := r.computeMoments(); err != nil {
		return fmt.Errorf("failed to compute moments: %w", err)
	}

	// Step 6: summary
	r.printf("Step 6: Summarising products...\n")
	r.summary.Shape = r.cube.Shape()
	if r.sigma != nil {
		r.summary.Stats = append(r.summary.Stats, Stats("sigma", r.sigma))
	}
	orders := make([]int, 0, len(r.moments))
	for o := range r.moments {
		orders = append(orders, o)
	}
	sort.Ints(orders)
	for _, o := range orders {
		res := r.moments[o]
		r.summary.Stats = append(r.summary.Stats, Stats(fmt.Sprintf("mom%d", o), res.Map))
		if res.RMS != nil {
			r.summary.Stats = append(r.summary.Stats, Stats(fmt.Sprintf("mom%d_rms", o), res.RMS))
		}
	}
	for _, s := range r.summary.Stats {
		r.printf("  %s\n", s)
	}
	return nil
}

func (r *Reducer) fitBaselines() error {
	cfg := r.cfg
	windows, err := config.Windows(cfg.Baseline.Windows)
	if err != nil {
		return err
	}
	res, err := baseline.Fit(r.cube, baseline.Params{
		Windows:  windows,
		Order:    cfg.Baseline.Order,
		Subtract: true,
		Channel:  cfg.Baseline.Channel,
		KMS:      cfg.Processing.KMS,
		Workers:  cfg.Processing.Workers,
		Progress: r.progress,
	})
	if err != nil {
		return err
	}
	if cfg.Output.Verbose {
		fmt.Println() // New line after progress
	}
	r.sigma = res.Sigma
	r.summary.BaselineChannels = res.Channels
	r.summary.Degenerate = res.Degenerate
	if res.Degenerate > 0 {
		r.printf("Warning: %d spectra had a degenerate baseline fit\n", res.Degenerate)
	}
	if err := r.write(res.Sigma, "sigma"); err != nil {
		return err
	}
	r.quickLook(res.Sigma, "sigma")
	return nil
}

func (r *Reducer) computeMoments() error {
	cfg := r.cfg
	rmsWindows, err := config.Windows(cfg.Moment.RMSWindows)
	if err != nil {
		return err
	}
	for _, order := range cfg.Moment.Orders {
		p := moment.Params{
			Lower:     cfg.Moment.Lower,
			Upper:     cfg.Moment.Upper,
			Order:     order,
			Channel:   cfg.Moment.Channel,
			DontBlank: cfg.Moment.DontBlank,
			KMS:       cfg.Processing.KMS,
			Workers:   cfg.Processing.Workers,
		}
		if order == 0 {
			p.RMSWindows = rmsWindows
		}
		res, err := moment.Compute(r.cube, p)
		if err != nil {
			return fmt.Errorf("moment %d: %w", order, err)
		}
		r.moments[order] = res
		r.printf("Moment %d summed %d channels\n", order, res.Channels)

		name := fmt.Sprintf("mom%d", order)
		if err := r.write(res.Map, name); err != nil {
			return err
		}
		r.quickLook(res.Map, name)
		if res.RMS != nil {
			if err := r.write(res.RMS, name+"_rms"); err != nil {
				return err
			}
			r.quickLook(res.RMS, name+"_rms")
		}
	}
	return nil
}

// write stores a product as <dir>/<name>_<suffix>.fits.
func (r *Reducer) write(c *models.Cube, suffix string) error {
	path := filepath.Join(r.cfg.Output.Dir, fmt.Sprintf("%s_%s.fits", r.name, suffix))
	if err := fitsfile.Write(path, c); err != nil {
		return fmt.Errorf("failed to write %s: %w", suffix, err)
	}
	r.summary.Files = append(r.summary.Files, path)
	r.printf("Wrote %s\n", path)
	return nil
}

// quickLook renders a 2D product next to its FITS file. Failures are
// reported but never stop the reduction.
func (r *Reducer) quickLook(c *models.Cube, suffix string) {
	if !r.cfg.Output.QuickLook {
		return
	}
	path := filepath.Join(r.cfg.Output.Dir, fmt.Sprintf("%s_%s.%s", r.name, suffix, imageExt(r.cfg.Output.Format)))
	if err := visualization.SaveMap(c, path, zoomFor(c)); err != nil {
		r.printf("Warning: Failed to save quick-look %s: %v\n", path, err)
		return
	}
	r.summary.Files = append(r.summary.Files, path)
}

// saveIntermediaryResult writes a stage cube and, with quick-looks on,
// its channel maps.
func (r *Reducer) saveIntermediaryResult(stage string, c *models.Cube) {
	if !r.cfg.Output.SaveIntermediaryResults {
		return
	}
	stageDir := filepath.Join(r.cfg.Output.Dir, "intermediary")
	if err := os.MkdirAll(stageDir, 0755); err != nil {
		r.printf("Warning: Failed to create intermediary directory: %v\n", err)
		return
	}
	path := filepath.Join(stageDir, fmt.Sprintf("%s_%s.fits", r.name, stage))
	if err := fitsfile.Write(path, c); err != nil {
		r.printf("Warning: Failed to save %s: %v\n", stage, err)
		return
	}
	r.summary.Files = append(r.summary.Files, path)

	if r.cfg.Output.QuickLook {
		v, err := visualization.NewViewer(c)
		if err == nil {
			err = v.SaveSliceSequence(0, filepath.Join(stageDir, stage), imageExt(r.cfg.Output.Format))
		}
		if err != nil {
			r.printf("Warning: Failed to save channel maps of %s: %v\n", stage, err)
		}
	}
}

func (r *Reducer) progress(completed, total int, message string) {
	if !r.cfg.Output.Verbose || total == 0 {
		return
	}
	fmt.Printf("\r%s: %.1f%% complete", message, 100*float64(completed)/float64(total))
}

func (r *Reducer) printf(format string, args ...interface{}) {
	if r.cfg.Output.Verbose {
		fmt.Printf(format, args...)
	}
}

// Cube returns the reduced spectral-first cube.
func (r *Reducer) Cube() *models.Cube { return r.cube }

// Moment returns the moment map of the given order, if it was computed.
func (r *Reducer) Moment(order int) (*moment.Result, bool) {
	res, ok := r.moments[order]
	return res, ok
}

// GetSummary returns the summary of the last reduction.
func (r *Reducer) GetSummary() Summary { return r.summary }

// Stats computes summary statistics over the finite, non-blank pixels
// of c.
func Stats(name string, c *models.Cube) MapStats {
	s := MapStats{Name: name, Min: math.NaN(), Max: math.NaN(), Mean: math.NaN(), Median: math.NaN()}
	valid := make([]float64, 0, len(c.Data))
	for _, v := range c.Data {
		if !c.IsBlank(v) && !math.IsNaN(v) && !math.IsInf(v, 0) {
			valid = append(valid, v)
		}
	}
	s.Valid = len(valid)
	if s.Valid == 0 {
		return s
	}
	sort.Float64s(valid)
	s.Min = floats.Min(valid)
	s.Max = floats.Max(valid)
	s.Mean = stat.Mean(valid, nil)
	s.Median = stat.Quantile(0.5, stat.Empirical, valid, nil)
	return s
}

func axisTypes(c *models.Cube) string {
	types := make([]string, len(c.Axes))
	for i, a := range c.Axes {
		types[i] = a.Type
	}
	return strings.Join(types, ", ")
}

func imageExt(format string) string {
	if strings.EqualFold(format, "jpeg") || strings.EqualFold(format, "jpg") {
		return "jpg"
	}
	return "png"
}

// zoomFor enlarges small maps so quick-looks are at least ~256 pixels wide.
func zoomFor(c *models.Cube) int {
	n := c.Axes[0].Length
	if n >= 256 {
		return 1
	}
	return 256/n + 1
}
