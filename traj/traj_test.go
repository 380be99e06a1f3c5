package traj

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/notargets/gotraj/archive"
	"github.com/notargets/gotraj/collective"
	"github.com/notargets/gotraj/grid"
	"github.com/notargets/gotraj/integrate"
	"github.com/notargets/gotraj/output"
	"github.com/notargets/gotraj/parcels"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testArchive() *archive.InMemory {
	s := archive.Synthetic{
		NX: 40, NY: 40, NZ: 20,
		DX: 100, DY: 100, DZ: 50,
		Times: make([]float64, 21),
		U: 5, V: 2.5, W: 0.5,
	}
	for n := range s.Times {
		s.Times[n] = float64(10 * n)
	}
	return s.InMemory()
}

func testConfig(t *testing.T) *Config {
	return &Config{
		HistPath:  "memory",
		Base:      filepath.Join(t.TempDir(), "traj"),
		Time:      0,
		NTimes:    6,
		Seed:      parcels.SeedSpec{X0: 1000, Y0: 1000, Z0: 200, NX: 2, NY: 2, NZ: 1, DX: 100, DY: 100},
		Direction: 1,
		Workers:   3,
	}
}

func testDeps(r archive.Reader) Deps {
	return Deps{Reader: r, Integrator: &integrate.Euler{Threads: 2}, Writer: output.NewNetCDF(nil)}
}

func TestSchedule(t *testing.T) {
	assert.Equal(t, 111, TimeIndex(100, 1, 3, 2, 4))
	assert.Equal(t, 89, TimeIndex(100, -1, 3, 2, 4))
	assert.Equal(t, 100, TimeIndex(100, 1, 0, 0, 4))
	assert.Equal(t, 3, NumWindows(10, 4))
	assert.Equal(t, 2, NumWindows(8, 4))
	assert.Equal(t, 1, NumWindows(1, 4))
	st := &archive.Structure{Times: make([]float64, 10)}
	assert.NoError(t, checkSchedule(st, 0, 1, 3, 3))
	assert.True(t, errors.Is(checkSchedule(st, 0, 1, 4, 3), archive.ErrTimeResolution))
	assert.True(t, errors.Is(checkSchedule(st, 2, -1, 1, 3), archive.ErrTimeResolution))
	assert.Equal(t, "seeding", Seeding.String())
}

func TestConfig(t *testing.T) {
	cfg := testConfig(t)
	assert.NoError(t, cfg.Check())
	assert.Equal(t, cfg.Base+".nc", cfg.OutputPath())
	err := (&Config{Direction: 2}).Check()
	require.Error(t, err)
	for _, problem := range []string{"archive path", "output base", "steps", "worker", "direction", "seed"} {
		assert.Contains(t, err.Error(), problem)
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	{ // Forward run over two windows
		var (
			cfg   = testConfig(t)
			mem   = testArchive()
			mu    sync.Mutex
			coord []*Coordinator
		)
		err := Launch(ctx, cfg.Workers, func(comm *collective.Comm) (c *Coordinator, err error) {
			c, err = NewCoordinator(cfg, comm, testDeps(mem))
			mu.Lock()
			coord = append(coord, c)
			mu.Unlock()
			return
		})
		require.NoError(t, err)
		for _, c := range coord {
			assert.Equal(t, Steady, c.State)
			assert.Equal(t, 2, c.windows)
		}
		assert.Equal(t, int64(2*cfg.Workers*len(archive.Fields)), mem.Reads.Load())
		tr, err := output.Read(cfg.OutputPath())
		require.NoError(t, err)
		require.Equal(t, 7, tr.Records)
		require.Equal(t, 4, tr.NParcels)
		for rec := 0; rec < tr.Records; rec++ {
			r := float32(rec)
			assert.Equal(t, 1000+50*r, tr.Data["xpos"][rec][0], "record %d", rec)
			assert.Equal(t, 1100+50*r, tr.Data["xpos"][rec][1], "record %d", rec)
			assert.Equal(t, 1100+25*r, tr.Data["ypos"][rec][3], "record %d", rec)
			assert.Equal(t, 200+5*r, tr.Data["zpos"][rec][2], "record %d", rec)
		}
		assert.Equal(t, float32(5), tr.Data["u"][0][0])
		assert.Equal(t, float32(2.5), tr.Data["v"][4][1])
		// window boundary keeps the next window's first sample
		assert.Equal(t, float32(5), tr.Data["u"][3][0])
		assert.Equal(t, parcels.Missing, tr.Data["u"][6][0])
	}
	{ // Backward run from the end of the archive
		cfg := testConfig(t)
		cfg.Time, cfg.Direction, cfg.NTimes = 199, -1, 3
		require.NoError(t, Run(ctx, cfg, testDeps(testArchive())))
		tr, err := output.Read(cfg.OutputPath())
		require.NoError(t, err)
		require.Equal(t, 4, tr.Records)
		assert.Equal(t, float32(1000-150), tr.Data["xpos"][3][0])
		assert.Equal(t, float32(200-15), tr.Data["zpos"][3][0])
	}
}

type failingReader struct {
	*archive.InMemory
	failAt float64
	err    error
}

func (f *failingReader) ReadField(st *archive.Structure, g *grid.Grid, name string, staggered bool,
	t float64, buf []float32) error {
	if t == f.failAt {
		return f.err
	}
	return f.InMemory.ReadField(st, g, name, staggered, t, buf)
}

func TestRunFailures(t *testing.T) {
	ctx := context.Background()
	{ // Start time with no archive time near it
		cfg := testConfig(t)
		cfg.Time, cfg.Tolerance = 1e6, 100
		err := Run(ctx, cfg, testDeps(testArchive()))
		assert.True(t, errors.Is(err, archive.ErrTimeResolution), "%v", err)
	}
	{ // More steps than the archive holds
		cfg := testConfig(t)
		cfg.NTimes = 40
		err := Run(ctx, cfg, testDeps(testArchive()))
		assert.True(t, errors.Is(err, archive.ErrTimeResolution), "%v", err)
	}
	{ // Every parcel outside the domain
		cfg := testConfig(t)
		cfg.Seed.X0 = -5000
		err := Run(ctx, cfg, testDeps(testArchive()))
		assert.True(t, errors.Is(err, grid.ErrDomainSubsetInvalid), "%v", err)
	}
	{ // One rank fails its read, its peers are released from the gather
		var (
			cfg  = testConfig(t)
			boom = errors.New("disk on fire")
		)
		err := Run(ctx, cfg, testDeps(&failingReader{InMemory: testArchive(), failAt: 20, err: boom}))
		assert.True(t, errors.Is(err, boom), "%v", err)
	}
	{ // Memory limit
		cfg := testConfig(t)
		cfg.MemLimit = 1024
		assert.Error(t, Run(ctx, cfg, testDeps(testArchive())))
	}
	{ // World size must match the configuration
		cfg := testConfig(t)
		err := Launch(ctx, 2, func(comm *collective.Comm) (*Coordinator, error) {
			return NewCoordinator(cfg, comm, testDeps(testArchive()))
		})
		assert.Error(t, err)
	}
}
