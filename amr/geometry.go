package amr

import "fmt"

// Geometry maps a level's index space to physical coordinates.
type Geometry struct {
	Domain   Box
	ProbLo   [SpaceDim]float64
	ProbHi   [SpaceDim]float64
	Periodic [SpaceDim]bool
}

// CellSize returns the cell width per direction.
func (g Geometry) CellSize() [SpaceDim]float64 {
	var dx [SpaceDim]float64
	for d := 0; d < SpaceDim; d++ {
		dx[d] = (g.ProbHi[d] - g.ProbLo[d]) / float64(g.Domain.Length(d))
	}
	return dx
}

// CellVolume returns the volume of one cell.
func (g Geometry) CellVolume() float64 {
	dx := g.CellSize()
	return dx[0] * dx[1] * dx[2]
}

// CellCenter returns the physical coordinate of cell (i,j,k).
func (g Geometry) CellCenter(i, j, k int) [SpaceDim]float64 {
	dx := g.CellSize()
	idx := IntVect{i, j, k}
	var x [SpaceDim]float64
	for d := 0; d < SpaceDim; d++ {
		x[d] = g.ProbLo[d] + (float64(idx[d]-g.Domain.Lo[d])+0.5)*dx[d]
	}
	return x
}

// Refine returns the geometry of the next finer level.
func (g Geometry) Refine(r int) Geometry {
	g.Domain = g.Domain.Refine(r)
	return g
}

// PeriodicShifts returns every periodic image offset (including zero) that can
// bring a point up to ngrow cells outside the domain back inside it.
func (g Geometry) PeriodicShifts(ngrow int) []IntVect {
	shifts := []IntVect{{}}
	for d := 0; d < SpaceDim; d++ {
		if !g.Periodic[d] {
			continue
		}
		length := g.Domain.Length(d)
		images := (ngrow + length - 1) / length
		n := len(shifts)
		for s := 0; s < n; s++ {
			for m := 1; m <= images; m++ {
				lo, hi := shifts[s], shifts[s]
				lo[d] -= m * length
				hi[d] += m * length
				shifts = append(shifts, lo, hi)
			}
		}
	}
	return shifts
}

// Wrap maps an index into the domain along periodic directions.
func (g Geometry) Wrap(iv IntVect) IntVect {
	for d := 0; d < SpaceDim; d++ {
		if !g.Periodic[d] {
			continue
		}
		n := g.Domain.Length(d)
		iv[d] = g.Domain.Lo[d] + ((iv[d]-g.Domain.Lo[d])%n+n)%n
	}
	return iv
}

// Level is one refinement level: its geometry and the boxes covering it.
type Level struct {
	Geom  Geometry
	Boxes BoxArray
}

// Hierarchy is the ordered set of levels 0..L-1.
type Hierarchy struct {
	RefRatio int
	Levels   []*Level
}

// NewHierarchy builds level 0 by chopping the geometry's domain.
func NewHierarchy(geom Geometry, maxGridSize IntVect, refRatio int) *Hierarchy {
	if !geom.Domain.Ok() {
		panic(fmt.Sprintf("invalid domain %v", geom.Domain))
	}
	if refRatio < 2 {
		refRatio = 2
	}
	return &Hierarchy{
		RefRatio: refRatio,
		Levels: []*Level{{
			Geom:  geom,
			Boxes: ChopDomain(geom.Domain, maxGridSize),
		}},
	}
}

// AddLevel appends a finer level covered by boxes given in its own index
// space. Boxes must lie inside the refined domain.
func (h *Hierarchy) AddLevel(boxes BoxArray) *Level {
	geom := h.Levels[len(h.Levels)-1].Geom.Refine(h.RefRatio)
	for _, b := range boxes {
		if !geom.Domain.ContainsBox(b) {
			panic(fmt.Sprintf("box %v outside level %d domain %v", b, len(h.Levels), geom.Domain))
		}
	}
	lev := &Level{Geom: geom, Boxes: boxes}
	h.Levels = append(h.Levels, lev)
	return lev
}

// NumLevels returns the number of active levels.
func (h *Hierarchy) NumLevels() int { return len(h.Levels) }

// Level returns level lev.
func (h *Hierarchy) Level(lev int) *Level { return h.Levels[lev] }
