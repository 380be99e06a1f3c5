package grid

import (
	"github.com/notargets/gotraj/memory"
)

const DefaultMargin = 5

// PointSource supplies the current parcel positions to the planner.
type PointSource interface {
	Len() int
	Point(n int) (x, y, z float32)
}

type PlanOptions struct {
	Margin int // index cells added on every side, DefaultMargin when zero
	// IncludeInvalid lets (-1,-1,-1) mappings take part in the min/max
	// reduction, which widens the lower bounds to the archive edge whenever
	// any parcel is outside.
	IncludeInvalid bool
}

// Summary describes one planning pass for diagnostics.
type Summary struct {
	Points, Invalid                    int
	MinI, MaxI, MinJ, MaxJ, MinK, MaxK int          // relative to the full grid
	Requested                          Bounds       // padded, before clipping
	Outside                            [][3]float32 // first few points outside the domain
}

const maxOutsideReport = 10

/*
Plan computes the minimal index box holding every point located on the full
archive grid, padded by the margin and clipped to limits. The returned grid is
allocated with alloc but not populated. If no point lies inside the domain the
grid is returned unallocated with Valid false and must not be read.
*/
func Plan(full *Grid, pts PointSource, limits Bounds, alloc memory.Allocator,
	opts PlanOptions) (g *Grid, sum Summary, err error) {
	var (
		margin = opts.Margin
	)
	if margin == 0 {
		margin = DefaultMargin
	}
	sum.Points = pts.Len()
	sum.MinI, sum.MinJ, sum.MinK = full.NX+1, full.NY+1, full.NZ+1
	sum.MaxI, sum.MaxJ, sum.MaxK = -1, -1, -1
	for n := 0; n < sum.Points; n++ {
		x, y, z := pts.Point(n)
		i, j, k := full.Locate(x, y, z)
		if i == -1 {
			sum.Invalid++
			if len(sum.Outside) < maxOutsideReport {
				sum.Outside = append(sum.Outside, [3]float32{x, y, z})
			}
			if !opts.IncludeInvalid {
				continue
			}
		}
		sum.MinI, sum.MaxI = min(sum.MinI, i), max(sum.MaxI, i)
		sum.MinJ, sum.MaxJ = min(sum.MinJ, j), max(sum.MaxJ, j)
		sum.MinK, sum.MaxK = min(sum.MinK, k), max(sum.MaxK, k)
	}
	sum.Requested = Bounds{
		X0: full.X0 + sum.MinI - margin, X1: full.X0 + sum.MaxI + margin,
		Y0: full.Y0 + sum.MinJ - margin, Y1: full.Y0 + sum.MaxJ + margin,
		Z0: full.Z0 + sum.MinK - margin, Z1: full.Z0 + sum.MaxK + margin,
	}
	if sum.Invalid == sum.Points {
		g = &Grid{Bounds: sum.Requested, Capability: alloc.Capability()}
		return
	}
	if g, err = New(sum.Requested.Clip(limits), alloc); err != nil {
		return
	}
	g.Valid = true
	return
}
