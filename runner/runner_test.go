package runner

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/config"
	"github.com/notargets/AMRKernel/utils"
)

func TestHostLauncherCoversOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	bx := amr.NewBox(amr.IntVect{-2, 0, 1}, amr.IntVect{9, 6, 4})
	testCases := []struct {
		name    string
		tile    amr.IntVect
		workers int
	}{
		{"single tile", amr.IntVect{0, 0, 0}, 4},
		{"small tiles", amr.IntVect{3, 2, 2}, 4},
		{"one worker", amr.IntVect{3, 2, 2}, 1},
		{"uneven", amr.IntVect{5, 4, 3}, 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			const ncomp = 2
			out := amr.NewFArray(bx, ncomp)
			counts := make([]int32, len(out.Data))
			l := NewHostLauncher(tc.tile, tc.workers)
			err := l.ParallelFor(bx, ncomp, Kernel{
				Name: "count",
				Host: func(i, j, k, n int) {
					atomic.AddInt32(&counts[out.Index(i, j, k, n)], 1)
					out.Set(i, j, k, n, float64(i+j+k+n))
				},
			})
			require.NoError(t, err)
			for idx, c := range counts {
				assert.Equal(t, int32(1), c, "index %d", idx)
			}
			assert.Equal(t, 9.0+6+4+1, out.At(9, 6, 4, 1))
		})
	}
}

func TestKernelValidation(t *testing.T) {
	l := NewHostLauncher(DefaultTileSize, 1)
	bx := amr.NewBox(amr.IntVect{}, amr.IntVect{1, 1, 0})
	assert.Error(t, l.ParallelFor(bx, 1, Kernel{Host: func(i, j, k, n int) {}}))
	assert.Error(t, l.ParallelFor(bx, 1, Kernel{Name: "nohost"}))
}

func TestForEachLevelOrder(t *testing.T) {
	geom := amr.Geometry{
		Domain: amr.NewBox(amr.IntVect{}, amr.IntVect{7, 7, 0}),
		ProbHi: [3]float64{1, 1, 1},
	}
	h := amr.NewHierarchy(geom, amr.IntVect{4, 4, 1}, 2)
	h.AddLevel(amr.BoxArray{amr.NewBox(amr.IntVect{4, 4, 0}, amr.IntVect{11, 11, 1})})
	h.AddLevel(amr.BoxArray{amr.NewBox(amr.IntVect{10, 10, 0}, amr.IntVect{17, 17, 3})})

	r := New(NewHostLauncher(DefaultTileSize, 1), zap.NewNop())
	var order []int
	err := r.ForEachLevel(h, func(lev int, level *amr.Level) error {
		order = append(order, lev)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, order)

	boom := errors.New("boom")
	order = nil
	err = r.ForEachLevel(h, func(lev int, level *amr.Level) error {
		order = append(order, lev)
		if lev == 1 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{0, 1}, order)
}

type countingLauncher struct {
	*HostLauncher
	syncs int
}

func (c *countingLauncher) Synchronize() { c.syncs++ }

func TestForEachBoxScratchLifetime(t *testing.T) {
	ba := amr.ChopDomain(amr.NewBox(amr.IntVect{}, amr.IntVect{7, 3, 0}), amr.IntVect{4, 4, 1})
	cl := &countingLauncher{HostLauncher: NewHostLauncher(DefaultTileSize, 2)}
	r := New(cl, nil)

	var seen []amr.Box
	err := r.ForEachBox(ba, func(b int, bx amr.Box, sc *Scratch) error {
		seen = append(seen, bx)
		work := sc.Alloc(bx.Grow(1), 14)
		assert.Equal(t, bx.Grow(1).NumPts()*14, len(work.Data))
		for _, v := range work.Data {
			assert.Equal(t, 0.0, v)
		}
		work.Data[0] = 42
		sc.Alloc(bx, 1)
		assert.Equal(t, 2, r.LiveScratch())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []amr.Box(ba), seen)
	assert.Equal(t, len(ba), cl.syncs)
	assert.Equal(t, 0, r.LiveScratch())

	t.Run("Error still releases", func(t *testing.T) {
		err := r.ForEachBox(ba, func(b int, bx amr.Box, sc *Scratch) error {
			sc.Alloc(bx, 3)
			return errors.New("bad box")
		})
		assert.Error(t, err)
		assert.Equal(t, 0, r.LiveScratch())
	})
}

func TestFromConfig(t *testing.T) {
	cfg, err := config.FromString("runner.tile_size = 16 4 4\nrunner.workers = 3\n")
	require.NoError(t, err)
	r, err := FromConfig(cfg.Sub("runner"), zap.NewNop())
	require.NoError(t, err)
	hl, ok := r.Launcher.(*HostLauncher)
	require.True(t, ok)
	assert.Equal(t, amr.IntVect{16, 4, 4}, hl.TileSize)
	assert.Equal(t, 3, hl.Workers)

	cfg.Set("runner.backend", "gpu")
	_, err = FromConfig(cfg.Sub("runner"), zap.NewNop())
	assert.Error(t, err)

	cfg.Set("runner.backend", "host")
	cfg.Set("runner.tile_size", "16 4")
	_, err = FromConfig(cfg.Sub("runner"), zap.NewNop())
	assert.Error(t, err)
}

func TestDeviceLauncher(t *testing.T) {
	device := utils.CreateTestDevice()
	defer device.Free()

	dl := NewDeviceLauncher(device, zap.NewNop())
	defer dl.Free()

	bx := amr.NewBox(amr.IntVect{}, amr.IntVect{9, 4, 0})
	const ncomp = 2
	in := make([]float64, bx.NumPts()*ncomp)
	for i := range in {
		in[i] = float64(i)
	}

	t.Run("Device body", func(t *testing.T) {
		out := make([]float64, len(in))
		src := `
@kernel void scale(const int n, const real_t *in, real_t *out, const real_t alpha) {
	for (int b = 0; b < n; b += 32; @outer) {
		for (int i = b; i < b + 32; ++i; @inner) {
			if (i < n) {
				out[i] = alpha*in[i];
			}
		}
	}
}`
		err := dl.ParallelFor(bx, ncomp, Kernel{
			Name:   "scale",
			Host:   func(i, j, k, n int) {},
			Device: &DeviceSpec{Source: src, In: [][]float64{in}, Out: [][]float64{out}, Scalars: []interface{}{2.0}},
		})
		require.NoError(t, err)
		for i := range out {
			assert.InDelta(t, 2*in[i], out[i], 1e-14)
		}
		assert.Len(t, dl.Kernels, 1)
	})

	t.Run("Host fallback", func(t *testing.T) {
		out := amr.NewFArray(bx, ncomp)
		err := dl.ParallelFor(bx, ncomp, Kernel{
			Name: "fallback",
			Host: func(i, j, k, n int) { out.Set(i, j, k, n, 1) },
		})
		require.NoError(t, err)
		for _, v := range out.Data {
			assert.Equal(t, 1.0, v)
		}
	})
}
