package integrate

import (
	"context"
	"fmt"
	"runtime"

	"github.com/notargets/gotraj/assemble"
	"github.com/notargets/gotraj/grid"
	"github.com/notargets/gotraj/parcels"
	"github.com/notargets/gotraj/utils"
)

// Request is everything one window of integration sees. Times holds the
// archive time of every slot, NTimes entries.
type Request struct {
	Grid      *grid.Grid
	Chunk     *assemble.TimeChunk
	Parcels   *parcels.Set
	Workers   int
	NTimes    int
	Direction int
	Times     []float64
}

func (r *Request) Check() (err error) {
	switch {
	case r.Grid == nil || !r.Grid.Valid:
		err = fmt.Errorf("integration request without a valid grid")
	case r.Chunk == nil || r.Chunk.Workers != r.Workers:
		err = fmt.Errorf("integration request without a chunk for %d workers", r.Workers)
	case r.NTimes != r.Workers+1 || r.Parcels.NTimes != r.NTimes:
		err = fmt.Errorf("integration request for %d times over %d workers, parcels hold %d times",
			r.NTimes, r.Workers, r.Parcels.NTimes)
	case len(r.Times) != r.NTimes:
		err = fmt.Errorf("integration request carries %d times, want %d", len(r.Times), r.NTimes)
	case r.Direction != 1 && r.Direction != -1:
		err = fmt.Errorf("integration direction must be 1 or -1, have %d", r.Direction)
	}
	return
}

// Integrator fills every time slot after 0 of the parcel set for one window.
// It runs on the coordinating rank only.
type Integrator interface {
	Integrate(ctx context.Context, req *Request) error
}

/*
Euler is a host reference integrator: forward Euler steps between consecutive
archive times using the gathered winds of the earlier time, averaged from the
faces of the cell holding the parcel. Parcels leaving the subset grid, or
starting Missing, stay Missing for the rest of the window.
*/
type Euler struct {
	// Threads shards the parcels, runtime.NumCPU when zero.
	Threads int
}

func (e *Euler) Integrate(ctx context.Context, req *Request) (err error) {
	if err = req.Check(); err != nil {
		return
	}
	if err = ctx.Err(); err != nil {
		return
	}
	var (
		threads = e.Threads
		ps      = req.Parcels
	)
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	threads = min(threads, ps.NParcels)
	utils.NewPartitionMap(threads, ps.NParcels).Each(func(_, pmin, pmax int) {
		for p := pmin; p < pmax; p++ {
			e.track(req, p)
		}
	})
	return
}

func (e *Euler) track(req *Request, p int) {
	var (
		g, ps     = req.Grid, req.Parcels
		mx, my, _ = g.Dims(grid.Staggered, grid.Ghost)
		alive     = true
		n0        = ps.Idx(p, 0)
		x, y, z   = ps.X[n0], ps.Y[n0], ps.Z[n0]
		surface   = g.Z0 == 0
	)
	for t := 0; t < req.NTimes-1; t++ {
		var (
			n    = ps.Idx(p, t)
			next = ps.Idx(p, t+1)
		)
		if alive && x != parcels.Missing {
			i, j, k := g.Locate(x, y, z)
			if i >= 0 {
				var (
					u  = req.Chunk.Field("u", t)
					v  = req.Chunk.Field("v", t)
					w  = req.Chunk.Field("w", t)
					uu = 0.5 * (u[grid.P3(i+1, j+1, k, mx, my)] + u[grid.P3(i+2, j+1, k, mx, my)])
					vv = 0.5 * (v[grid.P3(i+1, j+1, k, mx, my)] + v[grid.P3(i+1, j+2, k, mx, my)])
					ww = 0.5 * (w[grid.P3(i+1, j+1, k, mx, my)] + w[grid.P3(i+1, j+1, k+1, mx, my)])
					dt = float32(req.Times[t+1] - req.Times[t])
				)
				// a NaN wind ends the track like leaving the subset
				if !utils.IsNan([]float32{uu, vv, ww}) {
					ps.U[n], ps.V[n], ps.W[n] = uu, vv, ww
					x, y, z = x+uu*dt, y+vv*dt, z+ww*dt
					if surface && z < g.ZF[1] {
						z = 2*g.ZF[1] - z
					}
					ps.X[next], ps.Y[next], ps.Z[next] = x, y, z
					continue
				}
			}
		}
		alive = false
		ps.U[n], ps.V[n], ps.W[n] = parcels.Missing, parcels.Missing, parcels.Missing
		ps.X[next], ps.Y[next], ps.Z[next] = parcels.Missing, parcels.Missing, parcels.Missing
	}
	last := ps.Idx(p, req.NTimes-1)
	ps.U[last], ps.V[last], ps.W[last] = parcels.Missing, parcels.Missing, parcels.Missing
}
