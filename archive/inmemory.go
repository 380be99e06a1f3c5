package archive

import (
	"fmt"

	"go.uber.org/atomic"

	"github.com/notargets/gotraj/grid"
)

// InMemory serves an archive held entirely in memory. Fields are indexed by
// time index then name and span the saved region, X fastest.
type InMemory struct {
	St    *Structure
	Data  []map[string][]float32
	Reads atomic.Int64 // ReadField calls
}

func (m *InMemory) QueryStructure(path string) (st *Structure, err error) {
	if m.St == nil {
		err = fmt.Errorf("%w: empty in-memory archive %s", ErrTimeResolution, path)
		return
	}
	if err = m.St.Check(); err != nil {
		return
	}
	st = m.St
	return
}

func (m *InMemory) PopulateGeometry(st *Structure, g *grid.Grid) error {
	return PopulateGeometry(st, g)
}

func (m *InMemory) ReadField(st *Structure, g *grid.Grid, name string, staggered bool, t float64,
	buf []float32) (err error) {
	var (
		idx int
		l   = grid.Centered
	)
	if staggered {
		l = grid.Staggered
	}
	if idx, err = st.TimeIndex(t); err != nil {
		return
	}
	m.Reads.Inc()
	data, ok := m.Data[idx][name]
	nxs, nys, nzs := st.SavedExtents(l)
	if !ok || len(data) != nxs*nys*nzs {
		err = fmt.Errorf("in-memory archive: field %s at time %g has %d values, want %d",
			name, t, len(data), nxs*nys*nzs)
		return
	}
	return extract(st, g, l, buf, func(lz, ly, lx0, lx1 int, dst []float32) error {
		n := grid.P3(lx0, ly, lz, nxs, nys)
		copy(dst, data[n:n+lx1-lx0+1])
		return nil
	})
}
