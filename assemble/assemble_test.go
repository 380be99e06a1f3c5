package assemble

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/notargets/gotraj/archive"
	"github.com/notargets/gotraj/collective"
	"github.com/notargets/gotraj/grid"
	"github.com/notargets/gotraj/memory"
	"github.com/notargets/gotraj/stage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type result struct {
	chunk    *TimeChunk
	statuses []Status
	err      error
}

// run assembles on every rank of a fresh world. bounds picks each rank's grid.
func run(t *testing.T, size int, arena *memory.Arena, bounds func(rank int) grid.Bounds) (w *collective.World, results []result) {
	var (
		wg sync.WaitGroup
	)
	w = collective.NewWorld(size)
	results = make([]result, size)
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			alloc := memory.Allocator(memory.NewArena(memory.Host, 0))
			if rank == 0 {
				alloc = arena
			}
			g, err := grid.New(bounds(rank), alloc)
			if !assert.NoError(t, err) {
				return
			}
			defer g.Release()
			fs, err := stage.NewFieldSet(g, alloc)
			if !assert.NoError(t, err) {
				return
			}
			defer fs.Release()
			for n := range fs.Read {
				for i := range fs.Read[n] {
					fs.Read[n][i] = float32(100*rank + n)
				}
			}
			assert.NoError(t, fs.Stage(g))
			res := &results[rank]
			res.chunk, res.statuses, res.err = Assemble(w.Comm(rank), g, fs, alloc)
		}(r)
	}
	wg.Wait()
	return
}

func TestAssemble(t *testing.T) {
	var (
		b     = grid.Bounds{X0: 2, X1: 5, Y0: 0, Y1: 2, Z0: 0, Z1: 3}
		arena = memory.NewArena(memory.HostAndDevice, 0)
	)
	{ // Every rank's staged fields land in its slot
		_, results := run(t, 4, arena, func(int) grid.Bounds { return b })
		g, err := grid.New(b, memory.NewArena(memory.Host, 0))
		require.NoError(t, err)
		for r, res := range results {
			require.NoError(t, res.err, "rank %d", r)
			require.Len(t, res.statuses, len(archive.Fields))
			for n, s := range res.statuses {
				assert.Equal(t, archive.Fields[n].Name, s.Field)
				assert.NoError(t, s.Err)
			}
			if r != 0 {
				assert.Nil(t, res.chunk)
			}
		}
		chunk := results[0].chunk
		require.NotNil(t, chunk)
		assert.Equal(t, 4, chunk.Workers)
		for n, f := range archive.Fields {
			var (
				mx, my, _ = g.Dims(f.Layout, grid.Ghost)
				plane     = mx * my
			)
			assert.Equal(t, g.Len(f.Layout, grid.Ghost), chunk.Counts[n])
			assert.Len(t, chunk.Fields[n], 4*chunk.Counts[n])
			for r := 0; r < 4; r++ {
				slot := chunk.Slot(n, r)
				want := float32(100*r + n)
				if f.Staggered() {
					assert.Equal(t, float32(0), slot[0], f.Name)
				} else {
					assert.Equal(t, want, slot[0], f.Name)
				}
				assert.Equal(t, want, slot[plane], f.Name)
				assert.Equal(t, want, slot[len(slot)-1], f.Name)
			}
		}
		assert.Equal(t, float32(301), chunk.Field("v", 3)[len(chunk.Field("v", 3))-1])
		assert.Panics(t, func() { chunk.Slot(0, 4) })
		chunk.Release()
		assert.Equal(t, int64(0), arena.InUse())
	}
	{ // A rank with a different subset aborts the gather
		w, results := run(t, 3, arena, func(rank int) grid.Bounds {
			if rank == 2 {
				return grid.Bounds{X0: 2, X1: 6, Y0: 0, Y1: 2, Z0: 0, Z1: 3}
			}
			return b
		})
		assert.True(t, errors.Is(results[0].err, collective.ErrCollectiveTransfer))
		assert.Nil(t, results[0].chunk)
		assert.Error(t, results[0].statuses[0].Err)
		assert.True(t, errors.Is(w.Cause(), collective.ErrCollectiveTransfer))
		assert.Equal(t, int64(0), arena.InUse())
	}
}
