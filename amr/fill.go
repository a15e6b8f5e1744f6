package amr

// FillBoundary fills ghost cells of every box from the valid data of
// neighboring boxes on the same level, including periodic images.
// Ghost cells outside a non-periodic domain are left untouched.
func FillBoundary(mf *MultiFab, geom Geometry) {
	if mf.NGrow == 0 {
		return
	}
	shifts := geom.PeriodicShifts(mf.NGrow)
	for b := range mf.Boxes {
		dst := mf.Fab(b)
		for s, sbx := range mf.Boxes {
			src := mf.Fab(s)
			for _, shift := range shifts {
				if s == b && shift == (IntVect{}) {
					continue
				}
				region, ok := dst.Box.Intersect(sbx.Shift(shift))
				if !ok {
					continue
				}
				for n := 0; n < mf.NComp; n++ {
					region.ForEach(func(i, j, k int) {
						dst.Set(i, j, k, n, src.At(i-shift[0], j-shift[1], k-shift[2], n))
					})
				}
			}
		}
	}
}

// FillCoarsePatch fills fine ghost cells that are inside the fine domain but
// not covered by fine boxes, using piecewise-constant interpolation from the
// coarse level. FillBoundary must have been called on both levels first.
func FillCoarsePatch(fine *MultiFab, fineGeom Geometry, coarse *MultiFab, ratio int) {
	for b := range fine.Boxes {
		dst := fine.Fab(b)
		dst.Box.ForEach(func(i, j, k int) {
			if fine.Boxes[b].Contains(i, j, k) {
				return
			}
			iv := fineGeom.Wrap(IntVect{i, j, k})
			if !fineGeom.Domain.Contains(iv[0], iv[1], iv[2]) || fine.Boxes.Contains(iv[0], iv[1], iv[2]) {
				return
			}
			ci := IntVect{floorDiv(iv[0], ratio), floorDiv(iv[1], ratio), floorDiv(iv[2], ratio)}
			for c, cbx := range coarse.Boxes {
				if !cbx.Contains(ci[0], ci[1], ci[2]) {
					continue
				}
				src := coarse.Fab(c)
				for n := 0; n < fine.NComp; n++ {
					dst.Set(i, j, k, n, src.At(ci[0], ci[1], ci[2], n))
				}
				return
			}
		})
	}
}

// AverageDown replaces covered coarse cells with the volume average of the
// fine cells above them.
func AverageDown(fine, coarse *MultiFab, ratio int) {
	inv := 1.0 / float64(ratio*ratio*ratio)
	for _, fbx := range fine.Boxes {
		cfbx := fbx.Coarsen(ratio)
		for c, cbx := range coarse.Boxes {
			region, ok := cbx.Intersect(cfbx)
			if !ok {
				continue
			}
			dst := coarse.Fab(c)
			for n := 0; n < coarse.NComp; n++ {
				region.ForEach(func(i, j, k int) {
					sum := 0.0
					for kk := 0; kk < ratio; kk++ {
						for jj := 0; jj < ratio; jj++ {
							for ii := 0; ii < ratio; ii++ {
								fi, fj, fk := i*ratio+ii, j*ratio+jj, k*ratio+kk
								sum += valueAt(fine, fi, fj, fk, n)
							}
						}
					}
					dst.Set(i, j, k, n, sum*inv)
				})
			}
		}
	}
}

func valueAt(mf *MultiFab, i, j, k, n int) float64 {
	for b, bx := range mf.Boxes {
		if bx.Contains(i, j, k) {
			return mf.Fab(b).At(i, j, k, n)
		}
	}
	return 0
}

// Tag values.
const (
	TagClear int8 = 0
	TagSet   int8 = 1
)

// TagArray holds refinement tags over the (grown) boxes of one level.
type TagArray struct {
	Boxes BoxArray
	NGrow int
	Tags  [][]int8
}

// NewTagArray allocates cleared tags.
func NewTagArray(ba BoxArray, ngrow int) *TagArray {
	ta := &TagArray{Boxes: ba, NGrow: ngrow, Tags: make([][]int8, len(ba))}
	for b, bx := range ba {
		ta.Tags[b] = make([]int8, bx.Grow(ngrow).NumPts())
	}
	return ta
}

// Set marks cell (i,j,k) of box b.
func (ta *TagArray) Set(b, i, j, k int) {
	ta.Tags[b][ta.Boxes[b].Grow(ta.NGrow).Index(i, j, k)] = TagSet
}

// IsSet reports whether cell (i,j,k) of box b is tagged.
func (ta *TagArray) IsSet(b, i, j, k int) bool {
	return ta.Tags[b][ta.Boxes[b].Grow(ta.NGrow).Index(i, j, k)] == TagSet
}

// Count returns the number of tagged cells.
func (ta *TagArray) Count() int {
	n := 0
	for _, tags := range ta.Tags {
		for _, t := range tags {
			if t == TagSet {
				n++
			}
		}
	}
	return n
}
