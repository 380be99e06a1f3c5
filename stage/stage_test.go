package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gotraj/archive"
	"github.com/notargets/gotraj/grid"
	"github.com/notargets/gotraj/memory"
)

func fill(buf []float32) []float32 {
	for n := range buf {
		buf[n] = float32(n + 1)
	}
	return buf
}

func TestStage(t *testing.T) {
	g, err := grid.New(grid.Bounds{X0: 3, X1: 5, Y0: 1, Y1: 2, Z0: 0, Z1: 3}, memory.NewArena(memory.Host, 0))
	require.NoError(t, err)
	{ // Staggered: ghost level zero, physical levels shifted up
		var (
			mx, my, mz = g.Dims(grid.Staggered, grid.Read)
			plane      = mx * my
			in         = fill(make([]float32, g.Len(grid.Staggered, grid.Read)))
			out        = make([]float32, g.Len(grid.Staggered, grid.Ghost))
		)
		for n := range out {
			out[n] = -1
		}
		require.NoError(t, Staggered(g, in, out))
		assert.Equal(t, make([]float32, plane), out[:plane])
		for k := 0; k < mz; k++ {
			assert.Equal(t, in[k*plane:(k+1)*plane], out[(k+1)*plane:(k+2)*plane], "level %d", k)
		}
	}
	{ // Centered: ghost level replicates the first level
		var (
			mx, my, mz = g.Dims(grid.Centered, grid.Read)
			plane      = mx * my
			in         = fill(make([]float32, g.Len(grid.Centered, grid.Read)))
			out        = make([]float32, g.Len(grid.Centered, grid.Ghost))
		)
		require.NoError(t, Centered(g, in, out))
		assert.Equal(t, in[:plane], out[:plane])
		for k := 0; k < mz; k++ {
			assert.Equal(t, in[k*plane:(k+1)*plane], out[(k+1)*plane:(k+2)*plane], "level %d", k)
		}
	}
	{ // Length mismatches
		in := make([]float32, g.Len(grid.Staggered, grid.Read))
		assert.Error(t, Staggered(g, in, make([]float32, len(in))))
		assert.Error(t, Centered(g, in, make([]float32, g.Len(grid.Centered, grid.Ghost))))
	}
}

func TestFieldSet(t *testing.T) {
	arena := memory.NewArena(memory.HostAndDevice, 0)
	g, err := grid.New(grid.Bounds{X0: 0, X1: 3, Y0: 0, Y1: 3, Z0: 2, Z1: 4}, arena)
	require.NoError(t, err)
	inUse := arena.InUse()
	fs, err := NewFieldSet(g, arena)
	require.NoError(t, err)
	require.Len(t, fs.Read, len(archive.Fields))
	for n, f := range archive.Fields {
		assert.Len(t, fs.Read[n], g.Len(f.Layout, grid.Read), f.Name)
		assert.Len(t, fs.Ghost[n], g.Len(f.Layout, grid.Ghost), f.Name)
		fill(fs.Read[n])
	}
	require.NoError(t, fs.Stage(g))
	assert.Equal(t, float32(0), fs.Ghost[0][0])
	assert.Equal(t, float32(1), fs.Ghost[len(archive.Fields)-1][0])
	assert.Equal(t, 15+2*len(archive.Fields), arena.Mirrored())
	fs.Release()
	assert.Equal(t, inUse, arena.InUse())
	assert.Equal(t, 15, arena.Mirrored())

	limited := memory.NewArena(memory.Host, int64(4*g.Len(grid.Staggered, grid.Ghost)))
	_, err = NewFieldSet(g, limited)
	assert.ErrorIs(t, err, memory.ErrAllocation)
	assert.Equal(t, int64(0), limited.InUse())
}
