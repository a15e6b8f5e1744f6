// Package godunov computes convective terms of transport equations with an
// unsplit Godunov method and a selectable face reconstruction.
package godunov

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/core"
	"github.com/notargets/AMRKernel/field"
	"github.com/notargets/AMRKernel/runner"
)

// ErrDeprecatedFlag reports incflo.use_ppm or incflo.use_limiter in the input.
var ErrDeprecatedFlag = errors.New("use_ppm and use_limiter are deprecated, use incflo.godunov_type")

// Velocities below this magnitude take the average of both face states.
const smallVel = 1e-10

// Scratch slots per component, over the box grown by one cell.
const (
	slotEdges  = 0 // sm, sp per direction: 0..5
	slotState  = 6 // face state per direction: 6..8
	slotFlux   = 9 // face flux per direction: 9..11
	slotDiv    = 12
	slotAdv    = 13
	numSlots   = 14
	edgeSlotLo = 0
	edgeSlotHi = 1
)

// Advection is the Godunov convective operator of one equation.
type Advection struct {
	sim      *core.Sim
	pde      *field.PDEFields
	scheme   Scheme
	iconserv []bool

	fluxes    [][amr.SpaceDim]*amr.MultiFab
	fluxBoxes []amr.BoxArray
}

// New binds the operator to pde. Configuration:
//
//	incflo.godunov_type     plm | ppm | ppm_nolim | weno, default ppm
//	<eqn>.conservative_form one bool per component, default all true
//
// Unrecognized scheme names fall back to PPM with a warning. The deprecated
// incflo.use_ppm and incflo.use_limiter keys are an error.
func New(sim *core.Sim, pde *field.PDEFields) (*Advection, error) {
	dof := pde.Field(pde.DOF)
	ncomp := dof.NComp()
	if pde.Field(pde.Conv).NComp() != ncomp || pde.Field(pde.Src).NComp() != ncomp {
		panic(fmt.Sprintf("godunov %s: dof, convective and source terms disagree on component count", pde.Name))
	}
	if pde.Field(pde.Density).NComp() != 1 {
		panic(fmt.Sprintf("godunov %s: density must have one component", pde.Name))
	}
	for d := 0; d < amr.SpaceDim; d++ {
		u := pde.Field(pde.UMAC[d])
		if u.NComp() != 1 || u.Location() != field.FaceLocation(d) {
			panic(fmt.Sprintf("godunov %s: %s is not a face velocity normal to direction %d", pde.Name, u.Name(), d))
		}
	}

	incflo := sim.Config.Sub("incflo")
	if incflo.Contains("use_ppm") || incflo.Contains("use_limiter") {
		return nil, fmt.Errorf("godunov %s: %w", pde.Name, ErrDeprecatedFlag)
	}
	name := incflo.String("godunov_type", "")
	scheme, ok := SchemeFromString(name)
	if !ok {
		sim.Logger.Warn("unrecognized godunov_type, using ppm",
			zap.String("equation", pde.Name),
			zap.String("godunov_type", name),
			zap.Strings("valid", []string{"plm", "ppm", "ppm_nolim", "weno"}))
	}

	iconserv, err := sim.Config.Sub(pde.Name).Bools("conservative_form")
	if err != nil {
		return nil, fmt.Errorf("godunov %s: %w", pde.Name, err)
	}
	if iconserv == nil {
		iconserv = make([]bool, ncomp)
		for n := range iconserv {
			iconserv[n] = true
		}
	}
	if len(iconserv) != ncomp {
		return nil, fmt.Errorf("godunov %s: %s.conservative_form has %d entries, want %d",
			pde.Name, pde.Name, len(iconserv), ncomp)
	}

	w := scheme.StencilWidth()
	if dof.NGrow() < w {
		panic(fmt.Sprintf("godunov %s: %s has %d ghost cells, %s needs %d", pde.Name, dof.Name(), dof.NGrow(), scheme, w))
	}
	if pde.DensityWeighted && pde.Field(pde.Density).NGrow() < w {
		panic(fmt.Sprintf("godunov %s: density has %d ghost cells, %s needs %d",
			pde.Name, pde.Field(pde.Density).NGrow(), scheme, w))
	}

	sim.Logger.Debug("godunov advection",
		zap.String("equation", pde.Name),
		zap.Stringer("scheme", scheme),
		zap.Bools("conservative_form", iconserv))
	return &Advection{sim: sim, pde: pde, scheme: scheme, iconserv: iconserv}, nil
}

// Scheme returns the reconstruction in use.
func (a *Advection) Scheme() Scheme { return a.scheme }

// ConservativeForm returns the per-component form flags.
func (a *Advection) ConservativeForm() []bool { return slices.Clone(a.iconserv) }

// Fluxes returns the face fluxes (per unit area) of the last Apply on level
// lev, one face-centered MultiFab per direction.
func (a *Advection) Fluxes(lev int) [amr.SpaceDim]*amr.MultiFab {
	return a.fluxes[lev]
}

func (a *Advection) fluxStorage(lev int, ba amr.BoxArray, ncomp int) [amr.SpaceDim]*amr.MultiFab {
	for len(a.fluxes) <= lev {
		a.fluxes = append(a.fluxes, [amr.SpaceDim]*amr.MultiFab{})
		a.fluxBoxes = append(a.fluxBoxes, nil)
	}
	if a.fluxes[lev][0] == nil || !slices.Equal(a.fluxBoxes[lev], ba) {
		for d := 0; d < amr.SpaceDim; d++ {
			a.fluxes[lev][d] = amr.NewMultiFab(ba.SurroundingNodes(d), ncomp, 0)
		}
		a.fluxBoxes[lev] = slices.Clone(ba)
	}
	return a.fluxes[lev]
}

// Apply writes the convective term of state fstate into the New state of the
// convective-term field on every level. Ghost cells of the transported field
// and density must already be filled; source-term ghosts are filled here,
// coarse levels first.
func (a *Advection) Apply(fstate field.State, dt float64) error {
	sim := a.sim
	dof := a.pde.Field(a.pde.DOF)
	rho := a.pde.Field(a.pde.Density)
	conv := a.pde.Field(a.pde.Conv)
	src := a.pde.Field(a.pde.Src)
	ncomp := dof.NComp()
	w := a.scheme.StencilWidth()

	return sim.Runner.ForEachLevel(sim.Mesh, func(lev int, level *amr.Level) error {
		geom := level.Geom
		dofMF := dof.Level(lev, fstate)
		src.FillPatch(lev, field.StateNew, sim.Time.Time)
		srcMF := src.Level(lev, field.StateNew)
		fluxes := a.fluxStorage(lev, dofMF.Boxes, ncomp)

		return sim.Runner.ForEachBox(dofMF.Boxes, func(b int, bx amr.Box, sc *runner.Scratch) error {
			q := dofMF.Fab(b)
			if a.pde.DensityWeighted {
				weighted := sc.Alloc(bx.Grow(w), ncomp)
				if err := sim.Runner.ParallelFor(weighted.Box, ncomp,
					rhoWeightKernel(rho.Level(lev, fstate).Fab(b), q, weighted)); err != nil {
					return err
				}
				q = weighted
			}
			box := &boxAdvection{
				a:      a,
				bx:     bx,
				geom:   geom,
				ncomp:  ncomp,
				dt:     dt,
				q:      q,
				src:    srcMF.Fab(b),
				conv:   conv.Level(lev, field.StateNew).Fab(b),
				tmp:    sc.Alloc(bx.Grow(1), ncomp*numSlots),
				bcType: dof.BCType,
			}
			for d := 0; d < amr.SpaceDim; d++ {
				box.umac[d] = a.pde.Field(a.pde.UMAC[d]).Level(lev, field.StateNew).Fab(b)
				box.flux[d] = fluxes[d].Fab(b)
			}
			return box.run(sim.Runner)
		})
	})
}

const rhoWeightSource = `
@kernel void godunov_rho_weight(const int n,
                                const real_t *rho,
                                const real_t *dof,
                                real_t *out,
                                const int nx, const int ny, const int nz,
                                const int sr, const int sd) {
	for (int b = 0; b < n; b += 64; @outer) {
		for (int idx = b; idx < b + 64; ++idx; @inner) {
			if (idx < n) {
				const int npts = nx*ny*nz;
				const int c = idx / npts;
				const int p = idx - c*npts;
				const int i = p % nx;
				const int j = (p / nx) % ny;
				const int k = p / (nx*ny);
				const int rx = nx + 2*sr;
				const int ry = ny + 2*sr;
				const int ex = nx + 2*sd;
				const int ey = ny + 2*sd;
				const int ez = nz + 2*sd;
				out[idx] = rho[((k+sr)*ry + (j+sr))*rx + (i+sr)]
				         * dof[c*ex*ey*ez + ((k+sd)*ey + (j+sd))*ex + (i+sd)];
			}
		}
	}
}
`

// rhoWeightKernel fills out = rho * dof over out.Box. All three arrays are
// centered on the same valid box with different ghost widths.
func rhoWeightKernel(rho, dof, out amr.FArray) runner.Kernel {
	sr := (rho.Box.Length(0) - out.Box.Length(0)) / 2
	sd := (dof.Box.Length(0) - out.Box.Length(0)) / 2
	return runner.Kernel{
		Name: "godunov_rho_weight",
		Host: func(i, j, k, n int) {
			out.Set(i, j, k, n, rho.At(i, j, k, 0)*dof.At(i, j, k, n))
		},
		Device: &runner.DeviceSpec{
			Source: rhoWeightSource,
			In:     [][]float64{rho.Data, dof.Data},
			Out:    [][]float64{out.Data},
			Scalars: []interface{}{
				int32(out.Box.Length(0)), int32(out.Box.Length(1)), int32(out.Box.Length(2)),
				int32(sr), int32(sd),
			},
		},
	}
}
