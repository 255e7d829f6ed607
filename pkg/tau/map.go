package tau

import (
	"math"

	"radiocube/internal/models"
	"radiocube/internal/workers"
)

// MapParams controls Map.
type MapParams struct {
	Options

	// Simple selects SolveSimple instead of Solve.
	Simple bool

	// Workers is the number of goroutines, 0 for one per CPU.
	Workers int
}

// MapResult is an optical depth map and the number of pixels that could
// not be solved.
type MapResult struct {
	Tau    *models.Cube
	Failed int
}

// Map solves for τ at every pixel of two integrated-intensity maps of
// identical shape: abundant holds the main isotopologue, rare the less
// abundant one. Pixels that are blank, have no valid ratio or do not
// converge are set to NaN and counted in Failed.
func Map(abundant, rare *models.Cube, p MapParams) (*MapResult, error) {
	if err := abundant.Validate(); err != nil {
		return nil, err
	}
	if err := rare.Validate(); err != nil {
		return nil, err
	}
	if abundant.Rank() != 2 || rare.Rank() != 2 {
		return nil, models.InvalidArgf("maps", "expected two 2D maps, got ranks %d and %d", abundant.Rank(), rare.Rank())
	}
	if abundant.Axes[0].Length != rare.Axes[0].Length || abundant.Axes[1].Length != rare.Axes[1].Length {
		return nil, models.InvalidArgf("maps", "shapes %v and %v differ", abundant.Shape(), rare.Shape())
	}
	// Reject bad options up front rather than failing every pixel
	if err := p.validate(math.Nextafter(p.IsoRatio, 1)); err != nil {
		return nil, err
	}
	solve := Solve
	if p.Simple {
		solve = SolveSimple
	}

	out, err := abundant.Derive(abundant.Axes)
	if err != nil {
		return nil, err
	}
	out.Unit = ""
	out.Blank = nil

	n := len(out.Data)
	failed := make([]int, n)
	err = workers.ForEachChunk(n, p.Workers, func(start, end int) error {
		for i := start; i < end; i++ {
			a, b := abundant.Data[i], rare.Data[i]
			if abundant.IsBlank(a) || rare.IsBlank(b) || b == 0 {
				out.Data[i] = math.NaN()
				failed[i] = 1
				continue
			}
			t, err := solve(a/b, p.Options)
			if err != nil {
				out.Data[i] = math.NaN()
				failed[i] = 1
				continue
			}
			out.Data[i] = t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &MapResult{Tau: out}
	for _, f := range failed {
		res.Failed += f
	}
	out.SetKeyword("ISORATIO", p.IsoRatio, "Abundance ratio used for tau")
	out.AddHistory("Optical depth with isoratio=%g, %d of %d pixels unsolved", p.IsoRatio, res.Failed, n)
	return res, nil
}
