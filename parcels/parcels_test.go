package parcels

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gotraj/collective"
	"github.com/notargets/gotraj/memory"
)

func TestSeed(t *testing.T) {
	{ // Two parcels along X
		s, err := New(2, 5, memory.NewArena(memory.Host, 0))
		require.NoError(t, err)
		require.NoError(t, Seed(s, SeedSpec{X0: 0, Y0: 0, Z0: 500, NX: 2, NY: 1, NZ: 1, DX: 100}))
		x, y, z := s.Point(0)
		assert.Equal(t, [3]float32{0, 0, 500}, [3]float32{x, y, z})
		x, y, z = s.Point(1)
		assert.Equal(t, [3]float32{100, 0, 500}, [3]float32{x, y, z})
		for p := 0; p < 2; p++ {
			for tt := 0; tt < 5; tt++ {
				n := s.Idx(p, tt)
				assert.Equal(t, Missing, s.U[n])
				assert.Equal(t, Missing, s.W[n])
				if tt > 0 {
					assert.Equal(t, [3]float32{Missing, Missing, Missing}, [3]float32{s.X[n], s.Y[n], s.Z[n]})
				}
			}
		}
	}
	{ // Z slowest, X fastest
		s, err := New(12, 2, memory.NewArena(memory.Host, 0))
		require.NoError(t, err)
		require.NoError(t, Seed(s, SeedSpec{X0: 10, Y0: 20, Z0: 30, NX: 3, NY: 2, NZ: 2, DX: 1, DY: 2, DZ: 3}))
		x, y, z := s.Point(1)
		assert.Equal(t, [3]float32{11, 20, 30}, [3]float32{x, y, z})
		x, y, z = s.Point(3)
		assert.Equal(t, [3]float32{10, 22, 30}, [3]float32{x, y, z})
		x, y, z = s.Point(11)
		assert.Equal(t, [3]float32{12, 22, 33}, [3]float32{x, y, z})
		assert.Error(t, Seed(s, SeedSpec{NX: 2, NY: 2, NZ: 2}))
	}
	{ // Allocation
		_, err := New(0, 5, memory.NewArena(memory.Host, 0))
		assert.Error(t, err)
		arena := memory.NewArena(memory.Host, 4*6*10-1)
		_, err = New(2, 5, arena)
		assert.ErrorIs(t, err, memory.ErrAllocation)
		assert.Equal(t, int64(0), arena.InUse())
	}
}

func TestCarryOver(t *testing.T) {
	s, err := New(3, 5, memory.NewArena(memory.HostAndDevice, 0))
	require.NoError(t, err)
	require.NoError(t, Seed(s, SeedSpec{NX: 3, NY: 1, NZ: 1, DX: 10}))
	for p := 0; p < 3; p++ {
		for tt := 0; tt < 5; tt++ {
			n := s.Idx(p, tt)
			s.X[n], s.Y[n], s.Z[n] = float32(p*100+tt), float32(p), float32(tt)
			s.U[n], s.V[n], s.W[n] = 1, 2, 3
		}
	}
	s.CarryOver()
	for p := 0; p < 3; p++ {
		x, y, z := s.Point(p)
		assert.Equal(t, [3]float32{float32(p*100 + 4), float32(p), 4}, [3]float32{x, y, z})
		n := s.Idx(p, 0)
		assert.Equal(t, [3]float32{Missing, Missing, Missing}, [3]float32{s.U[n], s.V[n], s.W[n]})
		assert.Equal(t, float32(1), s.U[s.Idx(p, 1)])
	}
}

func TestBroadcast(t *testing.T) {
	var (
		w    = collective.NewWorld(3)
		sets = make([]*Set, 3)
		wg   sync.WaitGroup
	)
	for r := range sets {
		s, err := New(4, 3, memory.NewArena(memory.Host, 0))
		require.NoError(t, err)
		sets[r] = s
	}
	require.NoError(t, Seed(sets[0], SeedSpec{X0: 5, NX: 4, NY: 1, NZ: 1, DX: 1}))
	for r := range sets {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			assert.NoError(t, sets[rank].Broadcast(w.Comm(rank)))
		}(r)
	}
	wg.Wait()
	for r := 1; r < 3; r++ {
		assert.Equal(t, sets[0].X, sets[r].X)
		assert.Equal(t, sets[0].Z, sets[r].Z)
		assert.NotEqual(t, sets[0].U, sets[r].U)
	}
}
