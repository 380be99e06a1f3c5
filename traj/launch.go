package traj

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/gotraj/collective"
	"github.com/notargets/gotraj/logging"
)

// Builder creates the coordinator of one rank.
type Builder func(comm *collective.Comm) (*Coordinator, error)

/*
Launch runs one coordinator per rank on a shared world and waits for all of
them. The first rank to fail aborts the world, which unblocks every peer
waiting in a collective. The error returned is the one that caused the abort.
*/
func Launch(ctx context.Context, workers int, build Builder) (err error) {
	var (
		world  = collective.NewWorld(workers)
		eg, gc = errgroup.WithContext(ctx)
		log    = logging.FromContext(ctx)
	)
	for r := 0; r < workers; r++ {
		rank := r
		eg.Go(func() (err error) {
			var (
				c *Coordinator
			)
			defer func() {
				if err != nil {
					world.Abort(err)
				}
			}()
			if c, err = build(world.Comm(rank)); err != nil {
				return
			}
			return c.Run(gc)
		})
	}
	err = eg.Wait()
	if cause := world.Cause(); cause != nil {
		err = cause
	}
	if err != nil {
		log.Errorw("Trajectory run failed", "error", err)
	}
	return
}

// Run launches a configured run with one default coordinator per rank.
func Run(ctx context.Context, cfg *Config, deps Deps) error {
	return Launch(ctx, cfg.Workers, func(comm *collective.Comm) (*Coordinator, error) {
		return NewCoordinator(cfg, comm, deps)
	})
}
