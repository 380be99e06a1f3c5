package stage

import (
	"fmt"

	"github.com/notargets/gotraj/archive"
	"github.com/notargets/gotraj/grid"
	"github.com/notargets/gotraj/memory"
)

func checkLengths(g *grid.Grid, l grid.Layout, in, out []float32) (err error) {
	if len(in) != g.Len(l, grid.Read) || len(out) != g.Len(l, grid.Ghost) {
		err = fmt.Errorf("%s staging of %s: buffers hold %d and %d elements, want %d and %d",
			l, g.Bounds, len(in), len(out), g.Len(l, grid.Read), g.Len(l, grid.Ghost))
	}
	return
}

// Staggered shifts every level up by one and zeroes the ghost level.
func Staggered(g *grid.Grid, in, out []float32) (err error) {
	if err = checkLengths(g, grid.Staggered, in, out); err != nil {
		return
	}
	var (
		mx, my, _ = g.Dims(grid.Staggered, grid.Read)
		plane     = mx * my
	)
	clear(out[:plane])
	copy(out[plane:], in)
	return
}

// Centered shifts every level up by one and fills the ghost level with a copy
// of the first physical level.
func Centered(g *grid.Grid, in, out []float32) (err error) {
	if err = checkLengths(g, grid.Centered, in, out); err != nil {
		return
	}
	var (
		plane = g.NX * g.NY
	)
	copy(out[:plane], in[:plane])
	copy(out[plane:], in)
	return
}

// FieldSet holds the read and staged buffers of every archive field for one
// window, indexed like archive.Fields.
type FieldSet struct {
	Read, Ghost [][]float32
	alloc       memory.Allocator
}

func NewFieldSet(g *grid.Grid, alloc memory.Allocator) (fs *FieldSet, err error) {
	fs = &FieldSet{alloc: alloc}
	for _, f := range archive.Fields {
		var (
			rd, gh []float32
		)
		if rd, err = alloc.Float32s(g.Len(f.Layout, grid.Read)); err != nil {
			fs.Release()
			fs = nil
			return
		}
		fs.Read = append(fs.Read, rd)
		if gh, err = alloc.Float32s(g.Len(f.Layout, grid.Ghost)); err != nil {
			fs.Release()
			fs = nil
			return
		}
		fs.Ghost = append(fs.Ghost, gh)
	}
	return
}

// Stage fills every ghost buffer from its read buffer.
func (fs *FieldSet) Stage(g *grid.Grid) (err error) {
	for n, f := range archive.Fields {
		stager := Centered
		if f.Staggered() {
			stager = Staggered
		}
		if err = stager(g, fs.Read[n], fs.Ghost[n]); err != nil {
			err = fmt.Errorf("field %s: %w", f.Name, err)
			return
		}
	}
	return
}

func (fs *FieldSet) Release() {
	if fs == nil {
		return
	}
	for _, buf := range fs.Read {
		fs.alloc.Release(buf)
	}
	for _, buf := range fs.Ghost {
		fs.alloc.Release(buf)
	}
	fs.Read, fs.Ghost = nil, nil
}
