package main

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"radiocube/internal/models"
	"radiocube/pkg/baseline"
	"radiocube/pkg/moment"
	"radiocube/pkg/pipeline"
	"radiocube/pkg/posvel"
	"radiocube/pkg/smooth"
	"radiocube/pkg/spectrum"
	"radiocube/pkg/subcube"
	"radiocube/pkg/tau"
	"radiocube/pkg/transpose"
	"radiocube/pkg/visualization"
	"radiocube/pkg/wcs"
)

func reduce(args []string) {
	cmd := newCommand("reduce", "[flags] <cube.fits>", 1)
	fs := cmd.fs
	fs.String("out", "output", "output directory")
	cmd.bind("out", "output.dir")
	fs.String("layout", string(models.LayoutXYV), "storage order of the input cube")
	cmd.bind("layout", "processing.layout")
	fs.Int("workers", 0, "goroutines for per-pixel work")
	cmd.bind("workers", "processing.workers")
	fs.Float64("smooth-factor", 0, "spectral regridding factor")
	cmd.bind("smooth-factor", "transpose.smooth_factor")
	fs.Int("order", 1, "baseline polynomial order")
	cmd.bind("order", "baseline.order")
	fs.Bool("save-intermediary", false, "save intermediary results")
	cmd.bind("save-intermediary", "output.save_intermediary_results")
	fs.Bool("quiet", false, "only print the summary")
	cfg, files := cmd.parse(args)
	if quiet, _ := fs.GetBool("quiet"); quiet {
		cfg.Output.Verbose = false
	}

	fmt.Println("================================")
	fmt.Println("RADIOCUBE SPECTRAL-LINE CUBE REDUCTION")
	fmt.Println("================================")

	r := pipeline.NewReducer(cfg)
	startTime := time.Now()
	if err := r.Process(files[0]); err != nil {
		log.Fatalf("Reduction failed: %v", err)
	}
	elapsed := time.Since(startTime)

	s := r.GetSummary()
	fmt.Printf("\nReduction completed successfully in %.2f seconds!\n", elapsed.Seconds())
	fmt.Printf("Reduced cube shape: %v\n", s.Shape)
	if cfg.Baseline.Enabled {
		fmt.Printf("Baseline channels: %d, degenerate fits: %d\n", s.BaselineChannels, s.Degenerate)
	}
	fmt.Println("\nProducts:")
	for _, st := range s.Stats {
		fmt.Printf("- %s\n", st)
	}
	fmt.Printf("\n%d files written to %s\n", len(s.Files), cfg.Output.Dir)
}

func transposeCmd(args []string) {
	cmd := newCommand("transpose", "[flags] <in.fits> <out.fits>", 2)
	cmd.fs.String("layout", string(models.LayoutXYV), "storage order of the input cube")
	cmd.bind("layout", "processing.layout")
	to := cmd.fs.String("to", "", "target layout, default the opposite spectral position")
	cfg, files := cmd.parse(args)

	from, err := models.ParseLayout(cfg.Processing.Layout)
	if err != nil {
		log.Fatal(err)
	}
	c := mustRead(files[0])
	var out *models.Cube
	if *to == "" {
		out, err = transpose.Transpose(c, from)
	} else {
		target, perr := models.ParseLayout(*to)
		if perr != nil {
			log.Fatal(perr)
		}
		out, err = transpose.Between(c, from, target)
	}
	if err != nil {
		log.Fatalf("Transpose failed: %v", err)
	}
	mustWrite(files[1], out)
}

func smoothCmd(args []string) {
	cmd := newCommand("smooth", "[flags] <in.fits> <out.fits>", 2)
	cmd.fs.Float64("factor", 2, "ratio of new to old channel width")
	cmd.bind("factor", "transpose.smooth_factor")
	cmd.fs.String("layout", string(models.LayoutVXY), "storage order of the input cube")
	cmd.bind("layout", "processing.layout")
	cmd.fs.String("method", transpose.MethodLinear, "interpolant (linear, monotone)")
	cmd.bind("method", "transpose.method")
	cfg, files := cmd.parse(args)

	factor := cfg.Transpose.SmoothFactor
	if factor == 0 {
		factor, _ = cmd.fs.GetFloat64("factor")
	}
	c := mustRead(files[0])
	out, err := transpose.Smooth(c, transpose.SmoothParams{
		Factor:  factor,
		Layout:  models.Layout(cfg.Processing.Layout),
		Method:  cfg.Transpose.Method,
		Workers: cfg.Processing.Workers,
	})
	if err != nil {
		log.Fatalf("Smoothing failed: %v", err)
	}
	mustWrite(files[1], out)
}

func hanning(args []string) {
	cmd := newCommand("hanning", "[flags] <in-vxy.fits> <out.fits>", 2)
	cmd.fs.Int("window-len", 5, "window length in channels")
	cmd.bind("window-len", "transpose.hanning")
	window := cmd.fs.String("window", smooth.WindowHanning, "window (flat, hanning, hamming, bartlett, blackman)")
	cfg, files := cmd.parse(args)

	// transpose.hanning defaults to off for the pipeline
	windowLen := cfg.Transpose.Hanning
	if windowLen == 0 {
		windowLen, _ = cmd.fs.GetInt("window-len")
	}
	c := mustRead(files[0])
	out, err := smooth.SpectralAxis(c, windowLen, *window, cfg.Processing.Workers)
	if err != nil {
		log.Fatalf("Smoothing failed: %v", err)
	}
	mustWrite(files[1], out)
}

func baselineCmd(args []string) {
	cmd := newCommand("baseline", "[flags] <in-vxy.fits> <out.fits>", 2)
	cmd.fs.Int("order", 1, "polynomial order")
	cmd.bind("order", "baseline.order")
	cmd.fs.Bool("channel", false, "windows are channel indices")
	cmd.bind("channel", "baseline.channel")
	cmd.fs.Float64Slice("windows", nil, "line-free ranges as lower,upper,... pairs")
	sigmaPath := cmd.fs.String("sigma", "", "also write the residual noise map here")
	cfg, files := cmd.parse(args)

	windows := cmd.windowsFlag("windows", cfg.Baseline.Windows)
	c := mustRead(files[0])
	res, err := baseline.Fit(c, baseline.Params{
		Windows:  windows,
		Order:    cfg.Baseline.Order,
		Subtract: true,
		Channel:  cfg.Baseline.Channel,
		KMS:      cfg.Processing.KMS,
		Workers:  cfg.Processing.Workers,
	})
	if err != nil {
		log.Fatalf("Baseline fit failed: %v", err)
	}
	if res.Degenerate > 0 {
		log.Printf("Warning: %d spectra could not be fitted and were left untouched", res.Degenerate)
	}
	fmt.Printf("Fitted %s over %d channels\n", models.FormatWindows(windows), res.Channels)
	mustWrite(files[1], res.Cube)
	if *sigmaPath != "" {
		mustWrite(*sigmaPath, res.Sigma)
	}
}

func momentCmd(args []string) {
	cmd := newCommand("moment", "[flags] <in-vxy.fits> <out.fits>", 2)
	order := cmd.fs.Int("order", 0, "moment order (0, 1, 2)")
	cmd.fs.Float64("lower", -20, "lower bound of the integration range")
	cmd.bind("lower", "moment.lower")
	cmd.fs.Float64("upper", 20, "upper bound of the integration range")
	cmd.bind("upper", "moment.upper")
	cmd.fs.Bool("channel", false, "bounds are channel indices")
	cmd.bind("channel", "moment.channel")
	cmd.fs.Bool("dont-blank", false, "keep blank samples as they are")
	cmd.bind("dont-blank", "moment.dont_blank")
	cmd.fs.Float64Slice("rms-windows", nil, "ranges left out of the noise map as lower,upper,... pairs")
	rmsPath := cmd.fs.String("rms", "", "also write the noise map of a moment 0 map here")
	cfg, files := cmd.parse(args)

	p := moment.Params{
		Lower:     cfg.Moment.Lower,
		Upper:     cfg.Moment.Upper,
		Order:     *order,
		Channel:   cfg.Moment.Channel,
		DontBlank: cfg.Moment.DontBlank,
		KMS:       cfg.Processing.KMS,
		Workers:   cfg.Processing.Workers,
	}
	if *rmsPath != "" {
		p.RMSWindows = cmd.windowsFlag("rms-windows", cfg.Moment.RMSWindows)
	}
	c := mustRead(files[0])
	res, err := moment.Compute(c, p)
	if err != nil {
		log.Fatalf("Moment failed: %v", err)
	}
	fmt.Printf("Moment %d summed %d channels\n", res.Order, res.Channels)
	mustWrite(files[1], res.Map)
	if res.RMS != nil {
		mustWrite(*rmsPath, res.RMS)
	}
}

func rms(args []string) {
	cmd := newCommand("rms", "[flags] <in-vxy.fits> <out.fits>", 2)
	cmd.fs.Float64Slice("windows", nil, "line ranges to exclude as lower,upper,... pairs")
	cmd.fs.Bool("channel", false, "windows are channel indices")
	cmd.bind("channel", "moment.channel")
	cfg, files := cmd.parse(args)

	c := mustRead(files[0])
	out, err := moment.RMSMap(c, moment.RMSParams{
		Windows:   cmd.windowsFlag("windows", cfg.Moment.RMSWindows),
		Channel:   cfg.Moment.Channel,
		DontBlank: cfg.Moment.DontBlank,
		KMS:       cfg.Processing.KMS,
		Workers:   cfg.Processing.Workers,
	})
	if err != nil {
		log.Fatalf("RMS failed: %v", err)
	}
	mustWrite(files[1], out)
}

func spectrumCmd(args []string) {
	cmd := newCommand("spectrum", "[flags] <in-vxy.fits> <out.fits>", 2)
	x := cmd.fs.Float64("x", 0, "0-based pixel x")
	y := cmd.fs.Float64("y", 0, "0-based pixel y")
	cmd.fs.Int("gauss-width", 2, "Gaussian kernel half width in pixels")
	cmd.bind("gauss-width", "extraction.gauss_width")
	cfg, files := cmd.parse(args)

	c := mustRead(files[0])
	out, err := spectrum.Extract(c, *x, *y, cfg.Extraction.GaussWidth)
	if err != nil {
		log.Fatalf("Spectrum extraction failed: %v", err)
	}
	mustWrite(files[1], out)
}

func pv(args []string) {
	cmd := newCommand("pv", "[flags] <in-vxy.fits> <out.fits>", 2)
	x1 := cmd.fs.Float64("x1", 0, "0-based x of the start point")
	y1 := cmd.fs.Float64("y1", 0, "0-based y of the start point")
	x2 := cmd.fs.Float64("x2", 0, "0-based x of the end point")
	y2 := cmd.fs.Float64("y2", 0, "0-based y of the end point")
	cmd.fs.Int("gauss-width", 2, "Gaussian kernel half width in pixels")
	cmd.bind("gauss-width", "extraction.gauss_width")
	cfg, files := cmd.parse(args)

	c := mustRead(files[0])
	out, err := posvel.BetweenPoints(c, models.Point2D{X: *x1, Y: *y1}, models.Point2D{X: *x2, Y: *y2}, pvParams(cfg.Extraction.GaussWidth, cfg.Processing.CosDec, cfg.Processing.Workers))
	if err != nil {
		log.Fatalf("Position-velocity cut failed: %v", err)
	}
	mustWrite(files[1], out)
}

func pvangle(args []string) {
	cmd := newCommand("pvangle", "[flags] <in-vxy.fits> <out.fits>", 2)
	x := cmd.fs.Float64("x", 0, "0-based x of a point on the cut")
	y := cmd.fs.Float64("y", 0, "0-based y of a point on the cut")
	angle := cmd.fs.Float64("angle", 0, "cut angle in degrees from the x axis")
	cmd.fs.Int("gauss-width", 2, "Gaussian kernel half width in pixels")
	cmd.bind("gauss-width", "extraction.gauss_width")
	cfg, files := cmd.parse(args)

	c := mustRead(files[0])
	out, err := posvel.AtAngle(c, models.Point2D{X: *x, Y: *y}, *angle, pvParams(cfg.Extraction.GaussWidth, cfg.Processing.CosDec, cfg.Processing.Workers))
	if err != nil {
		log.Fatalf("Position-velocity cut failed: %v", err)
	}
	mustWrite(files[1], out)
}

func pvParams(width int, cosDec bool, nworkers int) posvel.Params {
	return posvel.Params{HalfWidth: width, CosDec: cosDec, Workers: nworkers}
}

func subcubeCmd(args []string) {
	cmd := newCommand("subcube", "[flags] <in.fits> <out.fits>", 2)
	bounds := cmd.fs.IntSlice("bounds", []int{-1, -1, -1, -1, -1, -1}, "lo1,hi1,lo2,hi2,lo3,hi3 half-open bounds, -1 for the full axis")
	_, files := cmd.parse(args)

	if len(*bounds) != 6 {
		log.Fatalf("--bounds needs 6 values, got %d", len(*bounds))
	}
	var b subcube.Bounds
	copy(b[:], *bounds)
	c := mustRead(files[0])
	out, err := subcube.Extract(c, b)
	if err != nil {
		log.Fatalf("Subcube failed: %v", err)
	}
	mustWrite(files[1], out)
}

func blur(args []string) {
	cmd := newCommand("blur", "[flags] <in-map.fits> <out.fits>", 2)
	cmd.fs.Int("width", 2, "kernel half width in x")
	cmd.bind("width", "extraction.blur_width")
	height := cmd.fs.Int("height", -1, "kernel half width in y, default the x width")
	cfg, files := cmd.parse(args)

	halfY := *height
	if halfY < 0 {
		halfY = cfg.Extraction.BlurWidth
	}
	c := mustRead(files[0])
	out, err := smooth.BlurImage(c, cfg.Extraction.BlurWidth, halfY)
	if err != nil {
		log.Fatalf("Blur failed: %v", err)
	}
	mustWrite(files[1], out)
}

func tauCmd(args []string) {
	cmd := newCommand("tau", "[flags] <abundant.fits> <rare.fits> <out.fits>", 3)
	opts := tau.DefaultOptions()
	cmd.fs.Float64Var(&opts.IsoRatio, "isoratio", opts.IsoRatio, "abundance ratio of the two isotopologues")
	cmd.fs.IntVar(&opts.MaxIter, "max-iter", opts.MaxIter, "maximum solver iterations")
	cmd.fs.Float64Var(&opts.Tol, "tol", opts.Tol, "solver tolerance")
	simple := cmd.fs.Bool("simple", false, "use the fixed-point solver")
	cfg, files := cmd.parse(args)

	abundant := mustRead(files[0])
	rare := mustRead(files[1])
	res, err := tau.Map(abundant, rare, tau.MapParams{Options: opts, Simple: *simple, Workers: cfg.Processing.Workers})
	if err != nil {
		log.Fatalf("Optical depth failed: %v", err)
	}
	if res.Failed > 0 {
		log.Printf("Warning: %d pixels had no solution and were set to NaN", res.Failed)
	}
	mustWrite(files[2], res.Tau)
}

func coords(args []string) {
	cmd := newCommand("coords", "[flags] <in.fits>", 1)
	x := cmd.fs.Float64("x", 1, "1-based pixel x")
	y := cmd.fs.Float64("y", 1, "1-based pixel y")
	ra := cmd.fs.Float64("ra", 0, "longitude")
	dec := cmd.fs.Float64("dec", 0, "latitude")
	world := cmd.fs.Bool("world", false, "convert --ra/--dec to pixels instead")
	cmd.fs.Bool("cosdec", false, "apply the cos(dec) correction")
	cmd.bind("cosdec", "processing.cos_dec")
	cfg, files := cmd.parse(args)

	t, err := wcs.New(mustRead(files[0]), cfg.Processing.CosDec)
	if err != nil {
		log.Fatal(err)
	}
	if *world {
		px, py, err := t.WorldToPixel(*ra, *dec)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%.6f %.6f\n", px, py)
		return
	}
	wx, wy, err := t.PixelToWorld(*x, *y)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%.8f %.8f\n", wx, wy)
}

func quicklook(args []string) {
	cmd := newCommand("quicklook", "[flags] <in.fits> <out.png|out-dir>", 2)
	axis := cmd.fs.Int("axis", 1, "1-based axis held fixed")
	plane := cmd.fs.Int("plane", 0, "0-based position along the axis")
	zoom := cmd.fs.Int("zoom", 1, "pixel magnification")
	all := cmd.fs.Bool("all", false, "write every plane along the axis into the output directory")
	cmd.fs.String("format", "png", "image format of --all sequences")
	cmd.bind("format", "output.format")
	cfg, files := cmd.parse(args)

	v, err := visualization.NewViewer(mustRead(files[0]))
	if err != nil {
		log.Fatal(err)
	}
	v.Zoom = *zoom
	if *all {
		format := strings.ToLower(cfg.Output.Format)
		if format == "jpeg" {
			format = "jpg"
		}
		if err := v.SaveSliceSequence(*axis-1, files[1], format); err != nil {
			log.Fatalf("Failed to save slices: %v", err)
		}
		fmt.Printf("Saved slices to %s\n", files[1])
		return
	}
	img, err := v.ExtractSlice(*axis-1, *plane)
	if err != nil {
		log.Fatal(err)
	}
	if err := v.SaveSlice(img, files[1]); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Saved %s\n", filepath.Clean(files[1]))
}
