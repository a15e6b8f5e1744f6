package runner

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/AMRKernel/amr"
)

// DefaultTileSize bounds one host tile. Tiles are a cache-locality hint only.
var DefaultTileSize = amr.IntVect{1024, 8, 8}

// HostLauncher runs kernels on worker goroutines, one tile per task.
type HostLauncher struct {
	TileSize amr.IntVect
	Workers  int
}

// NewHostLauncher returns a launcher using workers goroutines per box; a
// non-positive count means runtime.NumCPU().
func NewHostLauncher(tileSize amr.IntVect, workers int) *HostLauncher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &HostLauncher{TileSize: tileSize, Workers: workers}
}

func (h *HostLauncher) Name() string { return "host" }

// ParallelFor visits every (i,j,k,n) of bx exactly once. Tiles are disjoint
// so kernels writing only their own index need no locking.
func (h *HostLauncher) ParallelFor(bx amr.Box, ncomp int, k Kernel) error {
	if err := k.validate(); err != nil {
		return err
	}
	tiles := bx.Tiles(h.TileSize)
	if len(tiles) <= 1 || h.Workers == 1 {
		k.runHost(bx, ncomp)
		return nil
	}
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(h.Workers)
	for _, tile := range tiles {
		g.Go(func() error {
			k.runHost(tile, ncomp)
			return nil
		})
	}
	return g.Wait()
}

// Synchronize is a no-op: ParallelFor returns after every tile has finished.
func (h *HostLauncher) Synchronize() {}

func (h *HostLauncher) Free() {}
