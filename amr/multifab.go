package amr

import "fmt"

// CacheLineValues is the per-box offset alignment, in float64 values.
const CacheLineValues = 8

// MultiFab stores data over every box of one level.
//
// All boxes live in one contiguous buffer:
//
//	[Box 0 grown region][pad][Box 1 grown region][pad]...[Box N-1 grown region]
//
// Box b's data starts at Data[Offsets[b]]. Within a box the layout is
// component-major, x fastest: idx = ((n*nz + k)*ny + j)*nx + i over the grown box.
type MultiFab struct {
	Boxes   BoxArray
	NComp   int
	NGrow   int
	Data    []float64
	Offsets []int
}

// NewMultiFab allocates a zeroed MultiFab.
func NewMultiFab(ba BoxArray, ncomp, ngrow int) *MultiFab {
	if ncomp < 1 {
		panic(fmt.Sprintf("MultiFab needs at least one component, got %d", ncomp))
	}
	if ngrow < 0 {
		panic(fmt.Sprintf("negative ghost width %d", ngrow))
	}
	offsets, total := alignedOffsets(ba, ncomp, ngrow)
	return &MultiFab{
		Boxes:   ba,
		NComp:   ncomp,
		NGrow:   ngrow,
		Data:    make([]float64, total),
		Offsets: offsets,
	}
}

// alignedOffsets computes per-box starting offsets, each aligned to a cache line.
func alignedOffsets(ba BoxArray, ncomp, ngrow int) ([]int, int) {
	offsets := make([]int, len(ba)+1)
	cur := 0
	for b, bx := range ba {
		if cur%CacheLineValues != 0 {
			cur = ((cur + CacheLineValues - 1) / CacheLineValues) * CacheLineValues
		}
		offsets[b] = cur
		cur += bx.Grow(ngrow).NumPts() * ncomp
	}
	offsets[len(ba)] = cur
	return offsets, cur
}

// NumBoxes returns the number of boxes.
func (mf *MultiFab) NumBoxes() int { return len(mf.Boxes) }

// Fab returns a view of box b's grown region.
func (mf *MultiFab) Fab(b int) FArray {
	gbx := mf.Boxes[b].Grow(mf.NGrow)
	n := gbx.NumPts() * mf.NComp
	return FArray{
		Box:   gbx,
		NComp: mf.NComp,
		Data:  mf.Data[mf.Offsets[b] : mf.Offsets[b]+n],
	}
}

// SetVal sets every value, ghosts included.
func (mf *MultiFab) SetVal(v float64) {
	for i := range mf.Data {
		mf.Data[i] = v
	}
}

// CopyFrom copies all data from src, which must share layout.
func (mf *MultiFab) CopyFrom(src *MultiFab) {
	if len(src.Data) != len(mf.Data) || src.NComp != mf.NComp {
		panic("MultiFab.CopyFrom: layout mismatch")
	}
	copy(mf.Data, src.Data)
}

// ForEachValid visits every valid (non-ghost) point of every box.
func (mf *MultiFab) ForEachValid(fn func(b int, fab FArray, i, j, k int)) {
	for b, bx := range mf.Boxes {
		fab := mf.Fab(b)
		bx.ForEach(func(i, j, k int) { fn(b, fab, i, j, k) })
	}
}

// ValidValues gathers component n over valid points, box by box.
func (mf *MultiFab) ValidValues(n int) []float64 {
	out := make([]float64, 0, mf.Boxes.NumPts())
	mf.ForEachValid(func(_ int, fab FArray, i, j, k int) {
		out = append(out, fab.At(i, j, k, n))
	})
	return out
}

// FArray is a view of one box's data.
type FArray struct {
	Box   Box
	NComp int
	Data  []float64
}

// NewFArray allocates standalone storage over bx.
func NewFArray(bx Box, ncomp int) FArray {
	return FArray{Box: bx, NComp: ncomp, Data: make([]float64, bx.NumPts()*ncomp)}
}

// Index returns the offset of (i,j,k,n) in Data.
func (f FArray) Index(i, j, k, n int) int {
	return n*f.Box.NumPts() + f.Box.Index(i, j, k)
}

// At returns the value at (i,j,k,n).
func (f FArray) At(i, j, k, n int) float64 {
	return f.Data[f.Index(i, j, k, n)]
}

// Set stores v at (i,j,k,n).
func (f FArray) Set(i, j, k, n int, v float64) {
	f.Data[f.Index(i, j, k, n)] = v
}

// Add accumulates v at (i,j,k,n).
func (f FArray) Add(i, j, k, n int, v float64) {
	f.Data[f.Index(i, j, k, n)] += v
}

// Comp returns the contiguous slice holding component n.
func (f FArray) Comp(n int) []float64 {
	np := f.Box.NumPts()
	return f.Data[n*np : (n+1)*np]
}
