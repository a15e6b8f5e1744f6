// Package field holds named data defined over every AMR level.
//
// A Field owns one MultiFab per level and per time state, and a boundary
// record per domain face. Fields are owned by a Repo; operators and models
// keep Handles and resolve them through the repository.
package field

import (
	"fmt"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/gocfd/utils"
)

// State selects one time level of a field.
type State int

const (
	StateNew State = iota
	StateOld
	StateNPH
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateOld:
		return "old"
	case StateNPH:
		return "nph"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Location is where values sit on the grid.
type Location int

const (
	CellCentered Location = iota
	XFace
	YFace
	ZFace
)

// FaceLocation returns the face location normal to direction d.
func FaceLocation(d int) Location { return Location(d + 1) }

// Handle indexes a field in its repository.
type Handle int

// InvalidHandle marks an unset handle.
const InvalidHandle Handle = -1

// Field is named, multi-component, per-level data with time states.
type Field struct {
	name   string
	handle Handle
	ncomp  int
	ngrow  int
	loc    Location
	repo   *Repo

	states map[State][]*amr.MultiFab
	bc     [NumOrientations]BC
	dop    DirichletOp
}

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// Handle returns the field's repository handle.
func (f *Field) Handle() Handle { return f.handle }

// NComp returns the number of components.
func (f *Field) NComp() int { return f.ncomp }

// NGrow returns the ghost width.
func (f *Field) NGrow() int { return f.ngrow }

// Location returns where the field is stored.
func (f *Field) Location() Location { return f.loc }

// HasState reports whether state s is allocated.
func (f *Field) HasState(s State) bool {
	_, ok := f.states[s]
	return ok
}

// Level returns the MultiFab of level lev in state s.
func (f *Field) Level(lev int, s State) *amr.MultiFab {
	mfs, ok := f.states[s]
	if !ok {
		panic(fmt.Sprintf("field %s has no %s state", f.name, s))
	}
	return mfs[lev]
}

// NumLevels returns the number of allocated levels.
func (f *Field) NumLevels() int { return len(f.states[StateNew]) }

// BC returns the boundary record of face ori.
func (f *Field) BC(ori Orientation) BC { return f.bc[ori] }

// SetBC sets the boundary record of face ori. Values must have ncomp entries
// (or none, meaning zero).
func (f *Field) SetBC(ori Orientation, bc BC) {
	if len(bc.Value) != 0 && len(bc.Value) != f.ncomp {
		panic(fmt.Sprintf("field %s: BC value on %s has %d entries, want %d",
			f.name, ori, len(bc.Value), f.ncomp))
	}
	f.bc[ori] = bc
}

// SetDirichletOp installs the operator used on Dirichlet faces in place of the
// constant BC value.
func (f *Field) SetDirichletOp(op DirichletOp) { f.dop = op }

// DirichletOp returns the installed operator, nil for constant fill.
func (f *Field) DirichletOp() DirichletOp { return f.dop }

// SetVal sets every level and state, ghosts included.
func (f *Field) SetVal(v float64) {
	for _, mfs := range f.states {
		for _, mf := range mfs {
			mf.SetVal(v)
		}
	}
}

// AdvanceStates copies New into Old on every level.
func (f *Field) AdvanceStates() {
	if !f.HasState(StateOld) {
		return
	}
	for lev := range f.states[StateNew] {
		f.Level(lev, StateOld).CopyFrom(f.Level(lev, StateNew))
	}
}

// FillPatch fills ghost cells of level lev: same-level and periodic exchange,
// coarse-level interpolation for lev > 0 (coarse must already be filled), then
// physical boundaries.
func (f *Field) FillPatch(lev int, s State, time float64) {
	if f.loc != CellCentered {
		panic(fmt.Sprintf("field %s: FillPatch on face data", f.name))
	}
	mesh := f.repo.mesh
	geom := mesh.Level(lev).Geom
	mf := f.Level(lev, s)
	amr.FillBoundary(mf, geom)
	if lev > 0 {
		amr.FillCoarsePatch(mf, geom, f.Level(lev-1, s), mesh.RefRatio)
	}
	f.FillPhysicalBoundary(lev, s, time)
}

// FillPhysicalBoundary fills ghost cells outside non-periodic domain faces.
// Dirichlet faces take the boundary value (or the DirichletOp value at the
// face center), every other type extrapolates the nearest interior value.
func (f *Field) FillPhysicalBoundary(lev int, s State, time float64) {
	geom := f.repo.mesh.Level(lev).Geom
	domain := geom.Domain
	mf := f.Level(lev, s)
	vals := make([]float64, f.ncomp)

	for b := range mf.Boxes {
		fab := mf.Fab(b)
		for d := 0; d < amr.SpaceDim; d++ {
			if geom.Periodic[d] {
				continue
			}
			for _, high := range []bool{false, true} {
				ori := Ori(d, high)
				bc := f.bc[ori]
				ghost := fab.Box
				edge := domain.Lo[d]
				faceX := geom.ProbLo[d]
				if high {
					ghost.Lo[d] = domain.Hi[d] + 1
					edge = domain.Hi[d]
					faceX = geom.ProbHi[d]
				} else {
					ghost.Hi[d] = domain.Lo[d] - 1
				}
				if !ghost.Ok() {
					continue
				}
				dirichlet := IsDirichlet(bc.Type)
				ghost.ForEach(func(i, j, k int) {
					if dirichlet {
						if f.dop != nil {
							x := geom.CellCenter(i, j, k)
							x[d] = faceX
							f.dop.Value(ori, bc, x, time, vals)
						} else {
							for n := range vals {
								vals[n] = 0
								if len(bc.Value) > 0 {
									vals[n] = bc.Value[n]
								}
							}
						}
						for n := 0; n < f.ncomp; n++ {
							fab.Set(i, j, k, n, vals[n])
						}
						return
					}
					src := amr.IntVect{i, j, k}
					src[d] = edge
					for n := 0; n < f.ncomp; n++ {
						fab.Set(i, j, k, n, fab.At(src[0], src[1], src[2], n))
					}
				})
			}
		}
	}
}

// BCType is a shorthand for f.BC(ori).Type.
func (f *Field) BCType(ori Orientation) utils.BCType { return f.bc[ori].Type }
