package traj

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notargets/gotraj/archive"
	"github.com/notargets/gotraj/assemble"
	"github.com/notargets/gotraj/collective"
	"github.com/notargets/gotraj/grid"
	"github.com/notargets/gotraj/integrate"
	"github.com/notargets/gotraj/logging"
	"github.com/notargets/gotraj/memory"
	"github.com/notargets/gotraj/metrics"
	"github.com/notargets/gotraj/output"
	"github.com/notargets/gotraj/parcels"
	"github.com/notargets/gotraj/stage"
	"github.com/notargets/gotraj/utils"
)

// Deps are the pluggable parts of a run. Integrator and Writer are used on the
// coordinating rank only.
type Deps struct {
	Reader     archive.Reader
	Integrator integrate.Integrator
	Writer     output.Writer
}

/*
Coordinator drives the window loop of one rank. Every rank plans the same
subset from the shared parcel positions, reads its own archive instant and
takes part in the gather. The root then integrates, writes, carries the parcels
over and broadcasts their positions for the next window.
*/
type Coordinator struct {
	cfg     *Config
	comm    *collective.Comm
	deps    Deps
	alloc   memory.Allocator
	log     *zap.SugaredLogger
	State   State
	st      *archive.Structure
	full    *grid.Grid
	set     *parcels.Set
	base    int
	windows int
}

func NewCoordinator(cfg *Config, comm *collective.Comm, deps Deps) (c *Coordinator, err error) {
	if err = cfg.Check(); err != nil {
		return
	}
	if comm.Size() != cfg.Workers {
		err = fmt.Errorf("configured for %d workers, world holds %d", cfg.Workers, comm.Size())
		return
	}
	c = &Coordinator{
		cfg:   cfg,
		comm:  comm,
		deps:  deps,
		alloc: memory.ForRank(comm.Rank(), comm.Root(), cfg.MemLimit),
	}
	return
}

// Run executes every window. Buffers are released before it returns.
func (c *Coordinator) Run(ctx context.Context) (err error) {
	c.log = logging.FromContext(ctx).With("rank", c.comm.Rank())
	defer c.release()
	if err = c.startup(); err != nil {
		return
	}
	for w := 0; w < c.windows; w++ {
		if err = c.window(ctx, w); err != nil {
			return
		}
		c.State = Steady
	}
	if c.comm.IsRoot() {
		c.log.Infow("Trajectories complete", "windows", c.windows, "output", c.cfg.OutputPath())
	}
	return
}

func (c *Coordinator) startup() (err error) {
	var (
		workers = c.comm.Size()
	)
	if err = c.comm.Barrier(); err != nil {
		return
	}
	if c.st, err = c.deps.Reader.QueryStructure(c.cfg.HistPath); err != nil {
		return
	}
	if c.base, err = archive.NearestTimeIndex(c.st.Times, c.cfg.Time, c.cfg.tolerance()); err != nil {
		return
	}
	c.windows = NumWindows(c.cfg.NTimes, workers)
	if err = checkSchedule(c.st, c.base, c.cfg.Direction, c.windows, workers); err != nil {
		return
	}
	if c.full, err = archive.FullGrid(c.deps.Reader, c.st, c.alloc); err != nil {
		return
	}
	if c.set, err = parcels.New(c.cfg.Seed.Count(), workers+1, c.alloc); err != nil {
		return
	}
	if c.comm.IsRoot() {
		c.log.Infow("Starting trajectories",
			"archive", c.st.Path, "start", c.st.Times[c.base], "requested", c.cfg.Time,
			"windows", c.windows, "workers", workers, "parcels", c.set.NParcels,
			"allocator", c.alloc.Capability().String())
		if err = c.deps.Writer.Init(c.cfg.OutputPath(), c.set); err != nil {
			return
		}
	}
	return
}

func (c *Coordinator) window(ctx context.Context, w int) (err error) {
	var (
		start   = time.Now()
		workers = c.comm.Size()
		g       *grid.Grid
		sum     grid.Summary
		fs      *stage.FieldSet
		chunk   *assemble.TimeChunk
	)
	if c.State == Seeding {
		if c.comm.IsRoot() {
			if err = parcels.Seed(c.set, c.cfg.Seed); err != nil {
				return
			}
			c.log.Infow("Seeded parcels", "lattice", c.cfg.Seed.String())
		}
		if err = c.set.Broadcast(c.comm); err != nil {
			return
		}
	}
	g, sum, err = grid.Plan(c.full, c.set, c.st.Limits(), c.alloc, grid.PlanOptions{
		Margin:         c.cfg.Margin,
		IncludeInvalid: c.cfg.IncludeInvalid,
	})
	if err != nil {
		return
	}
	defer g.Release()
	if c.comm.IsRoot() {
		metrics.InvalidParcels.Set(float64(sum.Invalid))
		if sum.Invalid > 0 {
			c.log.Warnw("Parcels outside the archive domain", "window", w,
				"invalid", sum.Invalid, "parcels", sum.Points, "examples", sum.Outside)
		}
	}
	if !g.Valid {
		err = fmt.Errorf("window %d: %w: all %d parcels are outside the archive domain",
			w, grid.ErrDomainSubsetInvalid, sum.Points)
		return
	}
	if err = c.deps.Reader.PopulateGeometry(c.st, g); err != nil {
		return
	}
	if fs, err = stage.NewFieldSet(g, c.alloc); err != nil {
		return
	}
	defer fs.Release()
	tm := c.st.Times[TimeIndex(c.base, c.cfg.Direction, c.comm.Rank(), w, workers)]
	c.log.Debugw("Reading window", "window", w, "state", c.State.String(), "time", tm,
		"subset", g.Bounds.String(), "memory", utils.GetMemUsage())
	for n, f := range archive.Fields {
		if err = c.deps.Reader.ReadField(c.st, g, f.Name, f.Staggered(), tm, fs.Read[n]); err != nil {
			err = fmt.Errorf("window %d: reading %s at %g: %w", w, f.Name, tm, err)
			return
		}
	}
	if err = fs.Stage(g); err != nil {
		return
	}
	chunk, statuses, err := assemble.Assemble(c.comm, g, fs, c.alloc)
	if err != nil {
		for _, s := range statuses {
			if s.Err != nil {
				c.log.Errorw("Gather failed", "window", w, "field", s.Field, "error", s.Err)
			}
		}
		return
	}
	if c.comm.IsRoot() {
		err = c.integrate(ctx, w, g, chunk)
		chunk.Release()
		if err != nil {
			return
		}
		nx, ny, nz := g.Extents()
		metrics.SubsetCells.WithLabelValues("x").Set(float64(nx))
		metrics.SubsetCells.WithLabelValues("y").Set(float64(ny))
		metrics.SubsetCells.WithLabelValues("z").Set(float64(nz))
		metrics.WindowsCompleted.Inc()
		metrics.WindowDuration.Observe(time.Since(start).Seconds())
		c.log.Infow("Window complete", "window", w, "of", c.windows, "subset", g.Bounds.String(),
			"elapsed", time.Since(start).String())
	}
	return c.set.Broadcast(c.comm)
}

func (c *Coordinator) integrate(ctx context.Context, w int, g *grid.Grid, chunk *assemble.TimeChunk) (err error) {
	var (
		workers = c.comm.Size()
		req     = &integrate.Request{
			Grid:      g,
			Chunk:     chunk,
			Parcels:   c.set,
			Workers:   workers,
			NTimes:    workers + 1,
			Direction: c.cfg.Direction,
			Times:     windowTimes(c.st, c.base, c.cfg.Direction, w, workers),
		}
	)
	if err = c.deps.Integrator.Integrate(ctx, req); err != nil {
		err = fmt.Errorf("window %d: integrating: %w", w, err)
		return
	}
	if err = c.deps.Writer.AppendWindow(c.cfg.OutputPath(), c.set, w); err != nil {
		err = fmt.Errorf("window %d: writing: %w", w, err)
		return
	}
	c.set.CarryOver()
	return
}

func (c *Coordinator) release() {
	if c.set != nil {
		c.set.Release()
	}
	if c.full != nil {
		c.full.Release()
	}
}
