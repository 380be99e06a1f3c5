package archive

import (
	"fmt"

	"github.com/notargets/gotraj/grid"
)

// rowReader copies stored values lx0..lx1 (inclusive, saved-region indices) of
// one row of a field into dst.
type rowReader func(lz, ly, lx0, lx1 int, dst []float32) error

// span is an inclusive range of global indices.
type span struct{ lo, hi int }

// readSpans returns the global index ranges a subset read covers. Staggered
// reads carry one extra point on each horizontal side and one extra level.
func readSpans(g *grid.Grid, l grid.Layout) (xs, ys, zs span) {
	if l == grid.Staggered {
		return span{g.X0 - 1, g.X1 + 1}, span{g.Y0 - 1, g.Y1 + 1}, span{g.Z0, g.Z1 + 1}
	}
	return span{g.X0, g.X1}, span{g.Y0, g.Y1}, span{g.Z0, g.Z1}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

/*
extract assembles a subset buffer row by row. Global indices outside the saved
region are clamped to the nearest stored point, so the halo of a staggered read
at the edge of the saved region replicates the edge values.
*/
func extract(st *Structure, g *grid.Grid, l grid.Layout, buf []float32, read rowReader) (err error) {
	var (
		mx, my, mz    = g.Dims(l, grid.Read)
		nxs, nys, nzs = st.SavedExtents(l)
		xs, ys, zs    = readSpans(g, l)
		lx0           = clamp(xs.lo-st.SavedX0, 0, nxs-1)
		lx1           = clamp(xs.hi-st.SavedX0, 0, nxs-1)
		lead          = max(0, st.SavedX0-xs.lo)
		width         = lx1 - lx0 + 1
	)
	if len(buf) != mx*my*mz {
		err = fmt.Errorf("%s read buffer holds %d elements, grid %s needs %d",
			l, len(buf), g.Bounds, mx*my*mz)
		return
	}
	for k := 0; k < mz; k++ {
		lz := clamp(zs.lo+k, 0, nzs-1)
		for j := 0; j < my; j++ {
			var (
				ly  = clamp(ys.lo+j-st.SavedY0, 0, nys-1)
				row = buf[grid.P3(0, j, k, mx, my) : grid.P3(0, j, k, mx, my)+mx]
			)
			if err = read(lz, ly, lx0, lx1, row[lead:lead+width]); err != nil {
				return
			}
			for i := 0; i < lead; i++ {
				row[i] = row[lead]
			}
			for i := lead + width; i < mx; i++ {
				row[i] = row[lead+width-1]
			}
		}
	}
	return
}
