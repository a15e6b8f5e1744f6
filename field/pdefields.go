package field

import (
	"fmt"

	"github.com/notargets/AMRKernel/amr"
)

// EquationKind selects operator behavior per equation category.
type EquationKind int

const (
	// ScalarEquation transports one component.
	ScalarEquation EquationKind = iota
	// VectorEquation transports SpaceDim components (momentum).
	VectorEquation
)

func (k EquationKind) String() string {
	if k == VectorEquation {
		return "vector"
	}
	return "scalar"
}

// PDEFields bundles the fields required to evolve one PDE.
type PDEFields struct {
	Name            string
	Kind            EquationKind
	DensityWeighted bool

	DOF     Handle
	Conv    Handle
	Src     Handle
	Density Handle
	UMAC    [amr.SpaceDim]Handle

	repo *Repo
}

// Standard names of the shared transport fields.
const (
	DensityName = "density"
)

// MACName returns the name of the face velocity normal to direction d.
func MACName(d int) string {
	return [amr.SpaceDim]string{"u_mac", "v_mac", "w_mac"}[d]
}

// NewPDEFields declares the convective and source fields of an equation for
// dof, binding the shared density and MAC velocity fields. Kind and component
// count must agree (usage error otherwise).
func NewPDEFields(repo *Repo, name string, dof *Field, kind EquationKind, densityWeighted bool) (*PDEFields, error) {
	switch kind {
	case ScalarEquation:
		if dof.NComp() != 1 {
			panic(fmt.Sprintf("scalar equation %s bound to %d-component field %s", name, dof.NComp(), dof.Name()))
		}
	case VectorEquation:
		if dof.NComp() != amr.SpaceDim {
			panic(fmt.Sprintf("vector equation %s bound to %d-component field %s", name, dof.NComp(), dof.Name()))
		}
	}

	conv, err := repo.Declare("conv_term_"+dof.Name(), dof.NComp(), 0, CellCentered, StateOld)
	if err != nil {
		return nil, fmt.Errorf("equation %s: %w", name, err)
	}
	src, err := repo.Declare(dof.Name()+"_src_term", dof.NComp(), 1, CellCentered)
	if err != nil {
		return nil, fmt.Errorf("equation %s: %w", name, err)
	}
	rho, err := repo.Get(DensityName)
	if err != nil {
		rho, err = repo.Declare(DensityName, 1, dof.NGrow(), CellCentered, StateOld)
	}
	if err != nil {
		return nil, fmt.Errorf("equation %s: %w", name, err)
	}
	pde := &PDEFields{
		Name:            name,
		Kind:            kind,
		DensityWeighted: densityWeighted,
		DOF:             dof.Handle(),
		Conv:            conv.Handle(),
		Src:             src.Handle(),
		Density:         rho.Handle(),
		repo:            repo,
	}
	for d := 0; d < amr.SpaceDim; d++ {
		umac, err := repo.Declare(MACName(d), 1, 0, FaceLocation(d))
		if err != nil {
			return nil, fmt.Errorf("equation %s: %w", name, err)
		}
		pde.UMAC[d] = umac.Handle()
	}
	return pde, nil
}

// Repo returns the owning repository.
func (p *PDEFields) Repo() *Repo { return p.repo }

// Field resolves one of the bundle's handles.
func (p *PDEFields) Field(h Handle) *Field { return p.repo.Field(h) }
