package source

import (
	"fmt"
	"math"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/field"
	"github.com/notargets/AMRKernel/runner"
)

// KsgsS94Src is the production and dissipation of subgrid kinetic energy in
// the one-equation model of Sullivan et al. (1994):
//
//	S_k = (mu_t/rho) |S|^2 - Ceps k^(3/2) / Delta
//
// It binds to a single-component scalar equation whose unknown is k and
// reads mu_turb from the turbulence model.
type KsgsS94Src struct {
	args Args
	Ceps float64
	tke  *field.Field
	vel  *field.Field
	rho  *field.Field
	mu   *field.Field
}

func newKsgsS94Src(a Args) (Term, error) {
	requireKind(a, "KsgsS94Src", field.ScalarEquation)
	tke := a.PDE.Field(a.PDE.DOF)
	if tke.NComp() != 1 {
		panic(fmt.Sprintf("KsgsS94Src: %s has %d components, want 1", tke.Name(), tke.NComp()))
	}
	ceps, err := a.Sim.Config.Sub("KsgsS94Src").Float("Ceps", 0.93)
	if err != nil {
		return nil, err
	}
	vel, err := a.Sim.Repo.Get("velocity")
	if err != nil {
		return nil, fmt.Errorf("KsgsS94Src: %w", err)
	}
	mu, err := a.Sim.Repo.Get("mu_turb")
	if err != nil {
		return nil, fmt.Errorf("KsgsS94Src needs a turbulence model: %w", err)
	}
	return &KsgsS94Src{
		args: a,
		Ceps: ceps,
		tke:  tke,
		vel:  vel,
		rho:  a.PDE.Field(a.PDE.Density),
		mu:   mu,
	}, nil
}

func (ks *KsgsS94Src) Name() string { return "KsgsS94Src" }

// Apply needs the velocity ghost cells of fstate filled.
func (ks *KsgsS94Src) Apply(lev int, fstate field.State, src *amr.MultiFab) error {
	geom := ks.args.Sim.Mesh.Level(lev).Geom
	delta := math.Cbrt(geom.CellVolume())
	tkeMF := ks.tke.Level(lev, stateOf(ks.tke, fstate))
	velMF := ks.vel.Level(lev, stateOf(ks.vel, fstate))
	rhoMF := ks.rho.Level(lev, stateOf(ks.rho, fstate))
	muMF := ks.mu.Level(lev, field.StateNew)
	return forEachBox(ks.args.Sim, "ksgs_s94", src, func(b int, s amr.FArray) runner.ElementFunc {
		tke, vel, rho, mu := tkeMF.Fab(b), velMF.Fab(b), rhoMF.Fab(b), muMF.Fab(b)
		return func(i, j, k, _ int) {
			sr := field.StrainRateMag(field.VelocityGradient(vel, geom, i, j, k))
			kv := math.Max(tke.At(i, j, k, 0), 0)
			prod := mu.At(i, j, k, 0) / rho.At(i, j, k, 0) * sr * sr
			diss := ks.Ceps * math.Sqrt(kv) * kv / delta
			s.Add(i, j, k, 0, prod-diss)
		}
	})
}
