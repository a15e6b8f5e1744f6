// Package runner drives elementwise kernels over the levels and boxes of an
// AMR hierarchy, either on host worker goroutines or as OCCA device launches.
package runner

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/config"
	"github.com/notargets/AMRKernel/utils"
)

// Launcher dispatches one kernel over one box.
type Launcher interface {
	Name() string
	ParallelFor(bx amr.Box, ncomp int, k Kernel) error
	Synchronize()
	Free()
}

// Runner iterates levels coarse to fine and boxes within a level, handing
// each box a scratch arena that is released after the box's barrier.
type Runner struct {
	Launcher Launcher
	log      *zap.Logger
	pool     [][]float64
	live     int
}

// New creates a runner over launcher.
func New(launcher Launcher, logger *zap.Logger) *Runner {
	if launcher == nil {
		panic("runner requires a launcher")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{Launcher: launcher, log: logger}
}

// FromConfig builds a runner from the runner.* keys:
//
//	runner.backend     host | device (default host)
//	runner.device_mode OCCA device properties, e.g. {"mode": "Serial"}
//	runner.tile_size   three ints
//	runner.workers     goroutines per box, 0 = NumCPU
func FromConfig(ns config.Namespace, logger *zap.Logger) (*Runner, error) {
	backend := strings.ToLower(ns.String("backend", "host"))
	switch backend {
	case "host":
		tile := DefaultTileSize
		if ns.Contains("tile_size") {
			ts, err := ns.Ints("tile_size")
			if err != nil {
				return nil, err
			}
			if len(ts) != amr.SpaceDim {
				return nil, fmt.Errorf("%s.tile_size needs %d entries, got %d", ns.Prefix(), amr.SpaceDim, len(ts))
			}
			tile = amr.IntVect{ts[0], ts[1], ts[2]}
		}
		workers, err := ns.Int("workers", 0)
		if err != nil {
			return nil, err
		}
		return New(NewHostLauncher(tile, workers), logger), nil
	case "device":
		mode := ns.String("device_mode", `{"mode": "Serial"}`)
		device, err := utils.CreateDevice(mode)
		if err != nil {
			return nil, err
		}
		dl := NewDeviceLauncher(device, logger)
		dl.ownsDev = true
		return New(dl, logger), nil
	}
	return nil, fmt.Errorf("unknown %s.backend %q (want host or device)", ns.Prefix(), backend)
}

// ForEachLevel calls fn for levels 0..L-1 in order and stops at the first
// error. Finer levels may depend on coarser results of the same pass.
func (r *Runner) ForEachLevel(h *amr.Hierarchy, fn func(lev int, level *amr.Level) error) error {
	for lev := 0; lev < h.NumLevels(); lev++ {
		if err := fn(lev, h.Level(lev)); err != nil {
			return fmt.Errorf("level %d: %w", lev, err)
		}
	}
	return nil
}

// ForEachBox calls fn for every box of ba. After fn returns the launcher is
// synchronized and the box's scratch buffers are released.
func (r *Runner) ForEachBox(ba amr.BoxArray, fn func(b int, bx amr.Box, sc *Scratch) error) error {
	for b, bx := range ba {
		sc := &Scratch{r: r}
		err := fn(b, bx, sc)
		r.Launcher.Synchronize()
		sc.release()
		if err != nil {
			return fmt.Errorf("box %d %v: %w", b, bx, err)
		}
	}
	return nil
}

// ParallelFor forwards to the launcher.
func (r *Runner) ParallelFor(bx amr.Box, ncomp int, k Kernel) error {
	return r.Launcher.ParallelFor(bx, ncomp, k)
}

// LiveScratch returns the number of scratch buffers not yet released.
func (r *Runner) LiveScratch() int { return r.live }

// Free releases the launcher.
func (r *Runner) Free() {
	r.Launcher.Free()
	r.pool = nil
}

func (r *Runner) get(n int) []float64 {
	for i, buf := range r.pool {
		if cap(buf) >= n {
			r.pool = append(r.pool[:i], r.pool[i+1:]...)
			buf = buf[:n]
			clear(buf)
			return buf
		}
	}
	return make([]float64, n)
}

func (r *Runner) put(buf []float64) {
	r.pool = append(r.pool, buf)
}

// Scratch hands out zeroed per-box work arrays.
type Scratch struct {
	r    *Runner
	bufs [][]float64
}

// Alloc returns a zeroed array over bx with ncomp components.
func (s *Scratch) Alloc(bx amr.Box, ncomp int) amr.FArray {
	buf := s.r.get(bx.NumPts() * ncomp)
	s.bufs = append(s.bufs, buf)
	s.r.live++
	return amr.FArray{Box: bx, NComp: ncomp, Data: buf}
}

func (s *Scratch) release() {
	for _, buf := range s.bufs {
		s.r.put(buf)
		s.r.live--
	}
	s.bufs = nil
}
