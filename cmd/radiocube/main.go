package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"radiocube/internal/models"
	"radiocube/pkg/config"
	"radiocube/pkg/fitsfile"
)

// Version is the version number. Typically injected via ldflags with git build
var Version = "1.0.0"

func root() {
	str := `radiocube reduces radio spectral-line data cubes stored as FITS.

Usage:
	radiocube <command> [flags] <files...>

Commands:
	reduce     transpose, regrid, baseline and moment a cube per the config
	transpose  reorder cube axes between spectral-first and spectral-last
	smooth     regrid the spectral axis by a factor
	hanning    window-smooth every spectrum
	baseline   fit and subtract polynomial baselines
	moment     compute a moment 0/1/2 map
	rms        compute a noise map outside line windows
	spectrum   extract a Gaussian-weighted spectrum
	pv         position-velocity slice between two points
	pvangle    position-velocity slice through a point at an angle
	subcube    cut a region out of a cube
	blur       Gaussian-smooth a 2D map
	tau        optical depth map from two integrated intensity maps
	coords     convert between pixel and sky coordinates
	quicklook  render a plane or map as PNG/JPEG
	mkconf     write the default configuration file
	conf       print the effective configuration
	version    print the version

Every command accepts --config (default radiocube.yml). Configuration
values can also be set with RADIOCUBE_<SECTION>_<KEY> environment
variables, e.g. RADIOCUBE_BASELINE_ORDER=2.`
	fmt.Println(str)
}

var commands = map[string]func(args []string){
	"reduce":    reduce,
	"transpose": transposeCmd,
	"smooth":    smoothCmd,
	"hanning":   hanning,
	"baseline":  baselineCmd,
	"moment":    momentCmd,
	"rms":       rms,
	"spectrum":  spectrumCmd,
	"pv":        pv,
	"pvangle":   pvangle,
	"subcube":   subcubeCmd,
	"blur":      blur,
	"tau":       tauCmd,
	"coords":    coords,
	"quicklook": quicklook,
	"mkconf":    mkconf,
	"conf":      printconf,
	"version":   pversion,
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	cmd := strings.ToLower(args[1])
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		root()
		return
	}
	run, ok := commands[cmd]
	if !ok {
		log.Fatalf("unknown command %q, run radiocube help", args[1])
	}
	run(args[2:])
}

// command is a subcommand flag set whose flags may override
// configuration keys.
type command struct {
	fs      *pflag.FlagSet
	cfgPath *string
	keys    map[string]string
	nargs   int
	usage   string
}

func newCommand(name, usage string, nargs int) *command {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	c := &command{
		fs:      fs,
		cfgPath: fs.String("config", config.DefaultFileName, "configuration file"),
		keys:    make(map[string]string),
		nargs:   nargs,
		usage:   usage,
	}
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: radiocube %s %s\n", name, usage)
		fs.PrintDefaults()
	}
	return c
}

// bind makes the flag override the configuration key when set.
func (c *command) bind(flag, key string) {
	c.keys[flag] = key
}

// parse parses args and loads the layered configuration. It exits when
// the positional arguments do not match.
func (c *command) parse(args []string) (*config.Config, []string) {
	if err := c.fs.Parse(args); err != nil {
		log.Fatal(err)
	}
	if c.nargs >= 0 && c.fs.NArg() != c.nargs {
		c.fs.Usage()
		os.Exit(2)
	}
	cfg, err := config.Load(*c.cfgPath, c.fs, c.keys)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	return cfg, c.fs.Args()
}

// windowsFlag returns the windows given as a flat lower,upper,... list,
// or fallback when the flag was not set.
func (c *command) windowsFlag(name string, fallback [][]float64) []models.Window {
	pairs := fallback
	if f := c.fs.Lookup(name); f != nil && f.Changed {
		vals, err := c.fs.GetFloat64Slice(name)
		if err != nil {
			log.Fatal(err)
		}
		if len(vals)%2 != 0 {
			log.Fatalf("--%s needs lower,upper pairs, got %d values", name, len(vals))
		}
		pairs = nil
		for i := 0; i < len(vals); i += 2 {
			pairs = append(pairs, vals[i:i+2])
		}
	}
	windows, err := config.Windows(pairs)
	if err != nil {
		log.Fatalf("--%s: %v", name, err)
	}
	return windows
}

func mustRead(path string) *models.Cube {
	c, err := fitsfile.Read(path)
	if err != nil {
		log.Fatalf("Failed to load cube: %v", err)
	}
	return c
}

func mustWrite(path string, c *models.Cube) {
	if err := fitsfile.Write(path, c); err != nil {
		log.Fatalf("Failed to write %s: %v", path, err)
	}
	fmt.Printf("Wrote %s\n", path)
}

func mkconf(args []string) {
	path := config.DefaultFileName
	if len(args) > 0 {
		path = args[0]
	}
	if err := config.CreateDefaultConfigFile(path); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Wrote default configuration to %s\n", path)
}

func printconf(args []string) {
	cmd := newCommand("conf", "", 0)
	cfg, _ := cmd.parse(args)
	if err := config.Print(os.Stdout, cfg); err != nil {
		log.Fatal(err)
	}
}

func pversion(args []string) {
	fmt.Printf("radiocube version %v\n", Version)
}
