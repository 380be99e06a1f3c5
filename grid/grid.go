package grid

import (
	"errors"
	"fmt"

	"github.com/notargets/gotraj/memory"
)

var ErrDomainSubsetInvalid = errors.New("domain subset invalid")

// Bounds are inclusive global index bounds into the archive grid.
type Bounds struct {
	X0, X1, Y0, Y1, Z0, Z1 int
}

func (b Bounds) Extents() (nx, ny, nz int) {
	return b.X1 - b.X0 + 1, b.Y1 - b.Y0 + 1, b.Z1 - b.Z0 + 1
}

func (b Bounds) Check() (err error) {
	if b.X0 > b.X1 || b.Y0 > b.Y1 || b.Z0 < 0 || b.Z0 > b.Z1 {
		err = fmt.Errorf("malformed bounds X[%d,%d] Y[%d,%d] Z[%d,%d]",
			b.X0, b.X1, b.Y0, b.Y1, b.Z0, b.Z1)
	}
	return
}

// Clip limits b to the inclusive bounds of lim, component-wise.
func (b Bounds) Clip(lim Bounds) Bounds {
	return Bounds{
		X0: max(b.X0, lim.X0), X1: min(b.X1, lim.X1),
		Y0: max(b.Y0, lim.Y0), Y1: min(b.Y1, lim.Y1),
		Z0: max(b.Z0, lim.Z0), Z1: min(b.Z1, lim.Z1),
	}
}

func (b Bounds) String() string {
	return fmt.Sprintf("X[%d,%d] Y[%d,%d] Z[%d,%d]", b.X0, b.X1, b.Y0, b.Y1, b.Z0, b.Z1)
}

type Layout uint8

const (
	Staggered Layout = iota // vector components and turbulence coefficients
	Centered                // scalar perturbation fields
)

func (l Layout) String() string {
	if l == Staggered {
		return "staggered"
	}
	return "centered"
}

type Stage uint8

const (
	Read  Stage = iota // as returned by the archive
	Ghost              // after vertical ghost insertion
)

/*
Grid is a rectangular index-space subset of the archive grid.

X and Y coordinate arrays start at X0 and Y0. The vertical arrays carry a lower
ghost level in front of the physical levels, so ZF[k] is archive face Z0+k-1
and ZH[k] is archive level Z0+k-1. At the surface (Z0 == 0) the ghost level is
a reflection of the first level above the surface.
*/
type Grid struct {
	Bounds
	NX, NY, NZ         int
	XH, YH, ZH         []float32 // cell centers, NX, NY and NZ+1 long
	XF, YF, ZF         []float32 // cell faces, NX+1, NY+1 and NZ+2 long
	UH, VH, MH         []float32 // inverse grid stretching, NX, NY and NZ long
	QV0, TH0, RHO0, P0 []float32 // base state per level Z0..Z1
	U0, V0             []float32
	DX, DY, DZ         float32
	Valid              bool
	Capability         memory.Capability
	buffers            [][]float32
	alloc              memory.Allocator
}

// New allocates the storage of a grid with the given bounds. Coordinates are
// left zero until the archive populates them.
func New(b Bounds, alloc memory.Allocator) (g *Grid, err error) {
	if err = b.Check(); err != nil {
		return
	}
	g = &Grid{
		Bounds:     b,
		alloc:      alloc,
		Capability: alloc.Capability(),
	}
	g.NX, g.NY, g.NZ = b.Extents()
	targets := []*[]float32{
		&g.XH, &g.YH, &g.ZH, &g.XF, &g.YF, &g.ZF, &g.UH, &g.VH, &g.MH,
		&g.QV0, &g.TH0, &g.RHO0, &g.P0, &g.U0, &g.V0,
	}
	sizes := []int{
		g.NX, g.NY, g.NZ + 1, g.NX + 1, g.NY + 1, g.NZ + 2, g.NX, g.NY, g.NZ,
		g.NZ, g.NZ, g.NZ, g.NZ, g.NZ, g.NZ,
	}
	for i, tgt := range targets {
		if *tgt, err = alloc.Float32s(sizes[i]); err != nil {
			g.Release()
			g = nil
			return
		}
		g.buffers = append(g.buffers, *tgt)
	}
	return
}

// Release returns the grid storage to its allocator.
func (g *Grid) Release() {
	if g == nil || g.alloc == nil {
		return
	}
	for _, buf := range g.buffers {
		g.alloc.Release(buf)
	}
	g.buffers = nil
}

// Len returns the element count of a field buffer in the given layout.
func (g *Grid) Len(l Layout, s Stage) int {
	mx, my, mz := g.Dims(l, s)
	return mx * my * mz
}

// Dims returns the buffer dimensions, X fastest.
func (g *Grid) Dims(l Layout, s Stage) (mx, my, mz int) {
	switch l {
	case Staggered:
		mx, my, mz = g.NX+2, g.NY+2, g.NZ+1
	default:
		mx, my, mz = g.NX, g.NY, g.NZ
	}
	if s == Ghost {
		mz++
	}
	return
}

func P3(i, j, k, mx, my int) int {
	return k*mx*my + j*mx + i
}

func P4(i, j, k, t, mx, my, mz int) int {
	return t*mx*my*mz + k*mx*my + j*mx + i
}
