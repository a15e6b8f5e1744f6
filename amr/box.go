package amr

import "fmt"

// SpaceDim is the number of spatial dimensions. Two-dimensional problems use a
// single cell in z.
const SpaceDim = 3

// IntVect is a point in index space.
type IntVect [SpaceDim]int

// Add returns a+b.
func (a IntVect) Add(b IntVect) IntVect {
	return IntVect{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// Scale returns a*s.
func (a IntVect) Scale(s int) IntVect {
	return IntVect{a[0] * s, a[1] * s, a[2] * s}
}

// Unit returns the unit vector in direction d.
func Unit(d int) IntVect {
	var iv IntVect
	iv[d] = 1
	return iv
}

// Box is a rectangular region of index space, inclusive on both ends.
// Type[d] == 1 marks a box nodal (face-centered) in direction d.
type Box struct {
	Lo, Hi IntVect
	Type   IntVect
}

// NewBox returns a cell-centered box.
func NewBox(lo, hi IntVect) Box {
	return Box{Lo: lo, Hi: hi}
}

func (b Box) String() string {
	return fmt.Sprintf("((%d,%d,%d) (%d,%d,%d) (%d,%d,%d))",
		b.Lo[0], b.Lo[1], b.Lo[2], b.Hi[0], b.Hi[1], b.Hi[2],
		b.Type[0], b.Type[1], b.Type[2])
}

// Ok reports whether the box is non-empty.
func (b Box) Ok() bool {
	return b.Hi[0] >= b.Lo[0] && b.Hi[1] >= b.Lo[1] && b.Hi[2] >= b.Lo[2]
}

// Length returns the number of points in direction d.
func (b Box) Length(d int) int {
	return b.Hi[d] - b.Lo[d] + 1
}

// NumPts returns the number of points in the box.
func (b Box) NumPts() int {
	if !b.Ok() {
		return 0
	}
	return b.Length(0) * b.Length(1) * b.Length(2)
}

// Contains reports whether (i,j,k) lies in the box.
func (b Box) Contains(i, j, k int) bool {
	return i >= b.Lo[0] && i <= b.Hi[0] &&
		j >= b.Lo[1] && j <= b.Hi[1] &&
		k >= b.Lo[2] && k <= b.Hi[2]
}

// ContainsBox reports whether o lies entirely in b.
func (b Box) ContainsBox(o Box) bool {
	return b.Contains(o.Lo[0], o.Lo[1], o.Lo[2]) && b.Contains(o.Hi[0], o.Hi[1], o.Hi[2])
}

// Grow returns the box grown by n in every direction.
func (b Box) Grow(n int) Box {
	for d := 0; d < SpaceDim; d++ {
		b = b.GrowDir(d, n)
	}
	return b
}

// GrowDir returns the box grown by n on both sides of direction d.
func (b Box) GrowDir(d, n int) Box {
	b.Lo[d] -= n
	b.Hi[d] += n
	return b
}

// Shift returns the box translated by s.
func (b Box) Shift(s IntVect) Box {
	b.Lo = b.Lo.Add(s)
	b.Hi = b.Hi.Add(s)
	return b
}

// Intersect returns the overlap of b and o, ok=false when empty.
func (b Box) Intersect(o Box) (Box, bool) {
	r := b
	for d := 0; d < SpaceDim; d++ {
		r.Lo[d] = max(b.Lo[d], o.Lo[d])
		r.Hi[d] = min(b.Hi[d], o.Hi[d])
	}
	return r, r.Ok()
}

// SurroundingNodes returns the face-centered box in direction d: one more
// point than the cell box, nodal in d.
func (b Box) SurroundingNodes(d int) Box {
	if b.Type[d] == 0 {
		b.Hi[d]++
		b.Type[d] = 1
	}
	return b
}

// Refine maps a cell-centered box to the next finer index space.
func (b Box) Refine(r int) Box {
	b.Lo = b.Lo.Scale(r)
	for d := 0; d < SpaceDim; d++ {
		b.Hi[d] = (b.Hi[d]+1)*r - 1
	}
	return b
}

// Coarsen maps a cell-centered box to the next coarser index space.
func (b Box) Coarsen(r int) Box {
	for d := 0; d < SpaceDim; d++ {
		b.Lo[d] = floorDiv(b.Lo[d], r)
		b.Hi[d] = floorDiv(b.Hi[d], r)
	}
	return b
}

// Index returns the linear offset of (i,j,k) in x-fastest order.
func (b Box) Index(i, j, k int) int {
	return ((k-b.Lo[2])*b.Length(1)+(j-b.Lo[1]))*b.Length(0) + (i - b.Lo[0])
}

// Tiles splits the box into sub-boxes no larger than size in each direction.
// A non-positive size component means "do not split".
func (b Box) Tiles(size IntVect) []Box {
	if !b.Ok() {
		return nil
	}
	var nt IntVect
	for d := 0; d < SpaceDim; d++ {
		if size[d] <= 0 || size[d] >= b.Length(d) {
			size[d] = b.Length(d)
		}
		nt[d] = (b.Length(d) + size[d] - 1) / size[d]
	}
	tiles := make([]Box, 0, nt[0]*nt[1]*nt[2])
	for tk := 0; tk < nt[2]; tk++ {
		for tj := 0; tj < nt[1]; tj++ {
			for ti := 0; ti < nt[0]; ti++ {
				t := b
				tid := IntVect{ti, tj, tk}
				for d := 0; d < SpaceDim; d++ {
					t.Lo[d] = b.Lo[d] + tid[d]*size[d]
					t.Hi[d] = min(t.Lo[d]+size[d]-1, b.Hi[d])
				}
				tiles = append(tiles, t)
			}
		}
	}
	return tiles
}

// ForEach visits every point of the box in x-fastest order.
func (b Box) ForEach(fn func(i, j, k int)) {
	for k := b.Lo[2]; k <= b.Hi[2]; k++ {
		for j := b.Lo[1]; j <= b.Hi[1]; j++ {
			for i := b.Lo[0]; i <= b.Hi[0]; i++ {
				fn(i, j, k)
			}
		}
	}
}

// BoxArray is the ordered set of disjoint boxes covering one level.
type BoxArray []Box

// ChopDomain decomposes a domain into boxes of at most maxGridSize cells per
// direction.
func ChopDomain(domain Box, maxGridSize IntVect) BoxArray {
	return BoxArray(domain.Tiles(maxGridSize))
}

// NumPts returns the number of points over all boxes.
func (ba BoxArray) NumPts() int {
	n := 0
	for _, b := range ba {
		n += b.NumPts()
	}
	return n
}

// Contains reports whether any box contains (i,j,k).
func (ba BoxArray) Contains(i, j, k int) bool {
	for _, b := range ba {
		if b.Contains(i, j, k) {
			return true
		}
	}
	return false
}

// SurroundingNodes converts every box to the face-centered box in direction d.
func (ba BoxArray) SurroundingNodes(d int) BoxArray {
	out := make(BoxArray, len(ba))
	for i, b := range ba {
		out[i] = b.SurroundingNodes(d)
	}
	return out
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
