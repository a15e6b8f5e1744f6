package field

import (
	"fmt"
	"sort"

	"github.com/notargets/AMRKernel/amr"
)

// Repo owns every field of a simulation.
type Repo struct {
	mesh   *amr.Hierarchy
	fields []*Field
	byName map[string]Handle
}

// NewRepo creates an empty repository over mesh.
func NewRepo(mesh *amr.Hierarchy) *Repo {
	return &Repo{mesh: mesh, byName: make(map[string]Handle)}
}

// Mesh returns the hierarchy the fields are defined on.
func (r *Repo) Mesh() *amr.Hierarchy { return r.mesh }

// Declare creates a field, or returns the existing one when name is already
// declared with the same shape. New is always allocated; extra states are
// added to existing fields on request.
func (r *Repo) Declare(name string, ncomp, ngrow int, loc Location, states ...State) (*Field, error) {
	if h, ok := r.byName[name]; ok {
		f := r.fields[h]
		if f.ncomp != ncomp || f.loc != loc {
			return nil, fmt.Errorf("field %s redeclared with %d components at location %d (have %d at %d)",
				name, ncomp, loc, f.ncomp, f.loc)
		}
		if ngrow > f.ngrow {
			return nil, fmt.Errorf("field %s redeclared with %d ghosts (have %d)", name, ngrow, f.ngrow)
		}
		for _, s := range states {
			if !f.HasState(s) {
				f.states[s] = r.allocate(f)
			}
		}
		return f, nil
	}

	f := &Field{
		name:   name,
		handle: Handle(len(r.fields)),
		ncomp:  ncomp,
		ngrow:  ngrow,
		loc:    loc,
		repo:   r,
		states: make(map[State][]*amr.MultiFab),
	}
	f.states[StateNew] = r.allocate(f)
	for _, s := range states {
		if !f.HasState(s) {
			f.states[s] = r.allocate(f)
		}
	}
	r.fields = append(r.fields, f)
	r.byName[name] = f.handle
	return f, nil
}

func (r *Repo) allocate(f *Field) []*amr.MultiFab {
	mfs := make([]*amr.MultiFab, r.mesh.NumLevels())
	for lev := range mfs {
		mfs[lev] = r.levelData(f, lev)
	}
	return mfs
}

func (r *Repo) levelData(f *Field, lev int) *amr.MultiFab {
	ba := r.mesh.Level(lev).Boxes
	if f.loc != CellCentered {
		ba = ba.SurroundingNodes(int(f.loc) - 1)
	}
	return amr.NewMultiFab(ba, f.ncomp, f.ngrow)
}

// SyncLevels allocates storage for levels added to the mesh after fields
// were declared.
func (r *Repo) SyncLevels() {
	for _, f := range r.fields {
		for s, mfs := range f.states {
			for lev := len(mfs); lev < r.mesh.NumLevels(); lev++ {
				mfs = append(mfs, r.levelData(f, lev))
			}
			f.states[s] = mfs
		}
	}
}

// Get returns the field called name.
func (r *Repo) Get(name string) (*Field, error) {
	h, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("field %s not declared", name)
	}
	return r.fields[h], nil
}

// Contains reports whether name is declared.
func (r *Repo) Contains(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Field resolves a handle.
func (r *Repo) Field(h Handle) *Field {
	if h < 0 || int(h) >= len(r.fields) {
		panic(fmt.Sprintf("invalid field handle %d", h))
	}
	return r.fields[h]
}

// Names returns declared field names in sorted order.
func (r *Repo) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
