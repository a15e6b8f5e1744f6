package amr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoxAlgebra(t *testing.T) {
	b := NewBox(IntVect{0, 0, 0}, IntVect{7, 3, 0})
	assert.Equal(t, 32, b.NumPts())
	assert.Equal(t, 8, b.Length(0))

	g := b.Grow(2)
	assert.Equal(t, IntVect{-2, -2, -2}, g.Lo)
	assert.Equal(t, IntVect{9, 5, 2}, g.Hi)

	fx := b.SurroundingNodes(0)
	assert.Equal(t, 9, fx.Length(0))
	assert.Equal(t, 1, fx.Type[0])
	assert.Equal(t, fx, fx.SurroundingNodes(0))

	r, ok := b.Intersect(NewBox(IntVect{6, 2, 0}, IntVect{10, 10, 0}))
	require.True(t, ok)
	assert.Equal(t, NewBox(IntVect{6, 2, 0}, IntVect{7, 3, 0}), r)

	_, ok = b.Intersect(NewBox(IntVect{8, 0, 0}, IntVect{9, 3, 0}))
	assert.False(t, ok)

	assert.Equal(t, NewBox(IntVect{0, 0, 0}, IntVect{15, 7, 1}), b.Refine(2))
	assert.Equal(t, NewBox(IntVect{-1, -1, -1}, IntVect{4, 2, 0}), b.Grow(1).Coarsen(2))
}

func TestTilesCoverBoxOnce(t *testing.T) {
	b := NewBox(IntVect{-3, 0, 0}, IntVect{12, 9, 4})
	tiles := b.Tiles(IntVect{4, 4, 2})

	seen := make(map[IntVect]int)
	for _, tb := range tiles {
		require.True(t, b.ContainsBox(tb))
		tb.ForEach(func(i, j, k int) { seen[IntVect{i, j, k}]++ })
	}
	assert.Equal(t, b.NumPts(), len(seen))
	for iv, n := range seen {
		if n != 1 {
			t.Fatalf("cell %v visited %d times", iv, n)
		}
	}

	assert.Len(t, b.Tiles(IntVect{}), 1)
}

func TestChopDomain(t *testing.T) {
	domain := NewBox(IntVect{0, 0, 0}, IntVect{31, 15, 7})
	ba := ChopDomain(domain, IntVect{16, 16, 16})
	assert.Len(t, ba, 2)
	assert.Equal(t, domain.NumPts(), ba.NumPts())
}

func TestMultiFabLayout(t *testing.T) {
	ba := BoxArray{
		NewBox(IntVect{0, 0, 0}, IntVect{2, 0, 0}),
		NewBox(IntVect{3, 0, 0}, IntVect{5, 0, 0}),
	}
	mf := NewMultiFab(ba, 2, 1)

	for b := range ba {
		assert.Zero(t, mf.Offsets[b]%CacheLineValues, "box %d offset not aligned", b)
	}
	fab0, fab1 := mf.Fab(0), mf.Fab(1)
	assert.Equal(t, 5*3*3*2, len(fab0.Data))
	fab0.Set(0, 0, 0, 1, 3.5)
	fab1.Set(3, 0, 0, 0, -1)
	assert.Equal(t, 3.5, mf.Fab(0).At(0, 0, 0, 1))
	assert.Equal(t, -1.0, mf.Fab(1).At(3, 0, 0, 0))
	assert.Equal(t, []float64{0, 0, 0, -1, 0, 0}, mf.ValidValues(0))
}

func periodicGeom(n IntVect) Geometry {
	return Geometry{
		Domain:   NewBox(IntVect{}, IntVect{n[0] - 1, n[1] - 1, n[2] - 1}),
		ProbHi:   [SpaceDim]float64{1, 1, 1},
		Periodic: [SpaceDim]bool{true, true, true},
	}
}

func TestFillBoundaryPeriodic(t *testing.T) {
	geom := periodicGeom(IntVect{8, 4, 1})
	ba := ChopDomain(geom.Domain, IntVect{4, 4, 1})
	require.Len(t, ba, 2)

	mf := NewMultiFab(ba, 1, 2)
	mf.ForEachValid(func(_ int, fab FArray, i, j, k int) {
		fab.Set(i, j, k, 0, float64(100*i+j))
	})
	FillBoundary(mf, geom)

	// Box 0 low-x ghosts wrap to the far end of box 1
	fab0 := mf.Fab(0)
	assert.Equal(t, float64(100*7+1), fab0.At(-1, 1, 0, 0))
	assert.Equal(t, float64(100*6+3), fab0.At(-2, 3, 0, 0))
	// Interior neighbor ghosts
	assert.Equal(t, float64(100*4+2), fab0.At(4, 2, 0, 0))
	// y and z wrap onto the same box
	assert.Equal(t, float64(100*2+3), fab0.At(2, -1, 0, 0))
	assert.Equal(t, float64(100*2+0), fab0.At(2, 4, 1, 0))
	// Corner
	assert.Equal(t, float64(100*7+3), fab0.At(-1, -1, -1, 0))
}

func TestFillBoundaryNonPeriodicLeavesGhosts(t *testing.T) {
	geom := periodicGeom(IntVect{4, 4, 1})
	geom.Periodic[0] = false
	mf := NewMultiFab(ChopDomain(geom.Domain, IntVect{4, 4, 1}), 1, 1)
	mf.SetVal(-7)
	mf.ForEachValid(func(_ int, fab FArray, i, j, k int) { fab.Set(i, j, k, 0, 1) })
	FillBoundary(mf, geom)
	assert.Equal(t, -7.0, mf.Fab(0).At(-1, 0, 0, 0))
	assert.Equal(t, 1.0, mf.Fab(0).At(0, -1, 0, 0))
}

func TestCoarseFineFillAndAverageDown(t *testing.T) {
	geom := periodicGeom(IntVect{8, 8, 1})
	h := NewHierarchy(geom, IntVect{8, 8, 8}, 2)
	fine := h.AddLevel(BoxArray{NewBox(IntVect{4, 4, 0}, IntVect{11, 11, 1})})
	require.Equal(t, 2, h.NumLevels())
	assert.Equal(t, NewBox(IntVect{}, IntVect{15, 15, 1}), fine.Geom.Domain)

	cmf := NewMultiFab(h.Level(0).Boxes, 1, 1)
	cmf.ForEachValid(func(_ int, fab FArray, i, j, k int) { fab.Set(i, j, k, 0, float64(10*i+j)) })
	FillBoundary(cmf, h.Level(0).Geom)

	fmf := NewMultiFab(fine.Boxes, 1, 1)
	fmf.ForEachValid(func(_ int, fab FArray, i, j, k int) { fab.Set(i, j, k, 0, 1) })
	FillBoundary(fmf, fine.Geom)
	FillCoarsePatch(fmf, fine.Geom, cmf, 2)

	// Fine ghost (3,5) sits over coarse cell (1,2)
	assert.Equal(t, 12.0, fmf.Fab(0).At(3, 5, 0, 0))
	assert.Equal(t, 1.0, fmf.Fab(0).At(4, 4, 0, 0))

	AverageDown(fmf, cmf, 2)
	assert.Equal(t, 1.0, cmf.Fab(0).At(3, 3, 0, 0))
	assert.Equal(t, 10.0*1+1, cmf.Fab(0).At(1, 1, 0, 0))
}

func TestTagArray(t *testing.T) {
	ba := BoxArray{NewBox(IntVect{}, IntVect{3, 3, 0})}
	ta := NewTagArray(ba, 1)
	ta.Set(0, 2, 1, 0)
	ta.Set(0, -1, 0, 0)
	assert.True(t, ta.IsSet(0, 2, 1, 0))
	assert.False(t, ta.IsSet(0, 1, 1, 0))
	assert.Equal(t, 2, ta.Count())
}
