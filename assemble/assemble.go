package assemble

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/notargets/gotraj/archive"
	"github.com/notargets/gotraj/collective"
	"github.com/notargets/gotraj/grid"
	"github.com/notargets/gotraj/memory"
	"github.com/notargets/gotraj/metrics"
	"github.com/notargets/gotraj/stage"
)

/*
TimeChunk holds every staged field of every rank for one window on the
coordinating rank. Fields is indexed like archive.Fields; field n holds Workers
consecutive slots of Counts[n] elements, slot r coming from rank r.
*/
type TimeChunk struct {
	Workers int
	Counts  []int
	Fields  [][]float32
	alloc   memory.Allocator
}

// Slot returns the staged buffer of a field gathered from one rank.
func (c *TimeChunk) Slot(field, rank int) []float32 {
	if rank < 0 || rank >= c.Workers {
		panic(fmt.Errorf("rank %d outside chunk of %d workers", rank, c.Workers))
	}
	count := c.Counts[field]
	return c.Fields[field][rank*count : (rank+1)*count]
}

func (c *TimeChunk) Field(name string, rank int) []float32 {
	for n, f := range archive.Fields {
		if f.Name == name {
			return c.Slot(n, rank)
		}
	}
	panic(fmt.Errorf("unknown field %q", name))
}

func (c *TimeChunk) Release() {
	if c == nil {
		return
	}
	for _, buf := range c.Fields {
		c.alloc.Release(buf)
	}
	c.Fields = nil
}

// Status is the outcome of gathering one field.
type Status struct {
	Field string
	Err   error
}

/*
Assemble gathers the staged fields of every rank onto the root, one collective
per field in archive.Fields order. Every rank must call it with the same grid
dimensions. The chunk is returned on the root only, and only when every field
arrived. A failed gather aborts the world, so the remaining fields are not
attempted.
*/
func Assemble(comm *collective.Comm, g *grid.Grid, fs *stage.FieldSet,
	alloc memory.Allocator) (chunk *TimeChunk, statuses []Status, err error) {
	var (
		workers = comm.Size()
		c       = &TimeChunk{Workers: workers, alloc: alloc}
	)
	statuses = make([]Status, len(archive.Fields))
	for n, f := range archive.Fields {
		statuses[n].Field = f.Name
		if err != nil {
			statuses[n].Err = fmt.Errorf("%w: %s not gathered after earlier failure",
				collective.ErrCollectiveTransfer, f.Name)
			continue
		}
		var (
			count = g.Len(f.Layout, grid.Ghost)
			dst   []float32
		)
		if comm.IsRoot() {
			if dst, err = alloc.Float32s(count * workers); err != nil {
				comm.World().Abort(err)
				statuses[n].Err = fmt.Errorf("allocating %s: %w", f.Name, err)
				continue
			}
			c.Fields = append(c.Fields, dst)
			c.Counts = append(c.Counts, count)
		}
		if gerr := comm.Gather(fs.Ghost[n], dst, count); gerr != nil {
			statuses[n].Err = fmt.Errorf("gathering %s: %w", f.Name, gerr)
			err = statuses[n].Err
			continue
		}
		if comm.IsRoot() {
			metrics.GatheredBytes.WithLabelValues(f.Name).Add(float64(4 * count * workers))
		}
	}
	err = nil
	for _, s := range statuses {
		err = multierr.Append(err, s.Err)
	}
	if err != nil {
		c.Release()
		return
	}
	if comm.IsRoot() {
		chunk = c
	}
	return
}
