package archive

import (
	"errors"
	"fmt"
	"sort"

	"github.com/notargets/gotraj/grid"
	"github.com/notargets/gotraj/memory"
)

var ErrTimeResolution = errors.New("time resolution error")

// Reader is the archive access the trajectory pipeline needs. The Structure
// returned by QueryStructure is read-only and is passed back to every call.
type Reader interface {
	QueryStructure(path string) (*Structure, error)
	// ReadField fills buf with the subset of a field at an archive time. The
	// buffer must hold g.Len(layout, grid.Read) elements.
	ReadField(st *Structure, g *grid.Grid, name string, staggered bool, t float64, buf []float32) error
	PopulateGeometry(st *Structure, g *grid.Grid) error
}

// Field names a 3D archive variable and the layout it is stored in.
type Field struct {
	Name   string
	Layout grid.Layout
}

func (f Field) Staggered() bool { return f.Layout == grid.Staggered }

// Fields lists the variables read every window, in gather order.
var Fields = []Field{
	{"u", grid.Staggered},
	{"v", grid.Staggered},
	{"w", grid.Staggered},
	{"khh", grid.Staggered},
	{"kmh", grid.Staggered},
	{"prespert", grid.Centered},
	{"thrhopert", grid.Centered},
	{"rhopert", grid.Centered},
}

func LookupField(name string) (f Field, ok bool) {
	for _, f = range Fields {
		if f.Name == name {
			ok = true
			return
		}
	}
	return
}

/*
Structure describes a whole archive: the global grid, the saved horizontal
region, the node decomposition of the writing model and every available time,
sorted ascending. Coordinate and base state arrays span the full domain.
*/
type Structure struct {
	Path    string    `json:"path"`
	NX      int       `json:"nx"`
	NY      int       `json:"ny"`
	NZ      int       `json:"nz"`
	NodeX   int       `json:"nodex"`
	NodeY   int       `json:"nodey"`
	SavedX0 int       `json:"saved_X0"`
	SavedX1 int       `json:"saved_X1"`
	SavedY0 int       `json:"saved_Y0"`
	SavedY1 int       `json:"saved_Y1"`
	Times   []float64 `json:"times"`
	Files   []string  `json:"files,omitempty"`
	XHFull  []float32 `json:"xhfull"`
	YHFull  []float32 `json:"yhfull"`
	XFFull  []float32 `json:"xffull"`
	YFFull  []float32 `json:"yffull"`
	ZH      []float32 `json:"zh"`
	ZF      []float32 `json:"zf"`
	QV0     []float32 `json:"qv0"`
	TH0     []float32 `json:"th0"`
	RHO0    []float32 `json:"rh0"`
	P0      []float32 `json:"pres0"`
	U0      []float32 `json:"u0"`
	V0      []float32 `json:"v0"`
}

// Limits are the bounds no subset may exceed.
func (st *Structure) Limits() grid.Bounds {
	return grid.Bounds{
		X0: st.SavedX0, X1: st.SavedX1,
		Y0: st.SavedY0, Y1: st.SavedY1,
		Z0: 0, Z1: st.NZ - 1,
	}
}

// SavedExtents returns the stored field dimensions, X fastest.
func (st *Structure) SavedExtents(l grid.Layout) (nx, ny, nz int) {
	nx, ny, nz = st.SavedX1-st.SavedX0+1, st.SavedY1-st.SavedY0+1, st.NZ
	if l == grid.Staggered {
		nz++
	}
	return
}

func (st *Structure) Check() (err error) {
	switch {
	case st.NX < 1 || st.NY < 1 || st.NZ < 2:
		err = fmt.Errorf("archive %s: grid %d x %d x %d is too small", st.Path, st.NX, st.NY, st.NZ)
	case st.SavedX0 < 0 || st.SavedX1 >= st.NX || st.SavedX0 > st.SavedX1 ||
		st.SavedY0 < 0 || st.SavedY1 >= st.NY || st.SavedY0 > st.SavedY1:
		err = fmt.Errorf("archive %s: saved region X[%d,%d] Y[%d,%d] outside grid %d x %d",
			st.Path, st.SavedX0, st.SavedX1, st.SavedY0, st.SavedY1, st.NX, st.NY)
	case len(st.XFFull) != st.NX+1 || len(st.YFFull) != st.NY+1 || len(st.ZF) != st.NZ+1 ||
		len(st.XHFull) != st.NX || len(st.YHFull) != st.NY || len(st.ZH) != st.NZ:
		err = fmt.Errorf("archive %s: coordinate arrays do not match grid %d x %d x %d",
			st.Path, st.NX, st.NY, st.NZ)
	case len(st.Files) != 0 && len(st.Files) != len(st.Times):
		err = fmt.Errorf("archive %s: %d files for %d times", st.Path, len(st.Files), len(st.Times))
	case len(st.Times) == 0:
		err = fmt.Errorf("%w: archive %s holds no times", ErrTimeResolution, st.Path)
	case !sort.Float64sAreSorted(st.Times):
		err = fmt.Errorf("archive %s: times are not sorted", st.Path)
	}
	return
}

// TimeIndex returns the index of an exact archive time.
func (st *Structure) TimeIndex(t float64) (idx int, err error) {
	idx = sort.SearchFloat64s(st.Times, t)
	if idx == len(st.Times) || st.Times[idx] != t {
		err = fmt.Errorf("%w: time %g is not in archive %s", ErrTimeResolution, t, st.Path)
		idx = -1
	}
	return
}

// FullGrid allocates and populates the grid spanning the archive limits, used
// to locate parcels before a subset is chosen.
func FullGrid(r Reader, st *Structure, alloc memory.Allocator) (g *grid.Grid, err error) {
	if g, err = grid.New(st.Limits(), alloc); err != nil {
		return
	}
	if err = r.PopulateGeometry(st, g); err != nil {
		g.Release()
		g = nil
	}
	return
}
