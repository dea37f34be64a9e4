package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/specialistvlad/gridbench/internal/config"
	"github.com/specialistvlad/gridbench/internal/transport"
)

// RunLocal runs nProcs ranks as goroutines of this process: rank 0 is the
// manager, the rest are workers connected through in-process channels. The
// first failing rank cancels the others.
func RunLocal(ctx context.Context, d *Driver, nProcs int) error {
	if err := (config.Topology{NProcs: nProcs}).Validate(); err != nil {
		return err
	}
	mgr, workers := transport.NewLocal(nProcs - 1)
	defer mgr.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.Go(ctx, config.Topology{Rank: 0, NProcs: nProcs}, mgr, nil)
	})
	for _, w := range workers {
		g.Go(func() error {
			return d.Go(ctx, config.Topology{Rank: w.Rank(), NProcs: nProcs}, nil, w)
		})
	}
	return g.Wait()
}
