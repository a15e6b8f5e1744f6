// Package source provides the source terms added to the right-hand side of
// transport equations.
package source

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/core"
	"github.com/notargets/AMRKernel/field"
	"github.com/notargets/AMRKernel/registry"
	"github.com/notargets/AMRKernel/runner"
)

// Term adds its contribution to src on level lev. Apply accumulates; the
// caller zeroes src before the first term.
type Term interface {
	Name() string
	Apply(lev int, fstate field.State, src *amr.MultiFab) error
}

// Args are passed to term factories.
type Args struct {
	Sim *core.Sim
	PDE *field.PDEFields
}

// Terms holds the source-term factories.
var Terms = registry.New[Term, Args]("source term")

var registerOnce sync.Once

// RegisterBuiltins adds BodyForce, GravityForcing, BoussinesqBuoyancy,
// ScalarForcing and KsgsS94Src.
func RegisterBuiltins() {
	registerOnce.Do(func() {
		Terms.Register("BodyForce", newBodyForce)
		Terms.Register("GravityForcing", newGravityForcing)
		Terms.Register("BoussinesqBuoyancy", newBoussinesqBuoyancy)
		Terms.Register("ScalarForcing", newScalarForcing)
		Terms.Register("KsgsS94Src", newKsgsS94Src)
	})
}

// CreateAll builds the terms listed in <eqn>.source_terms, in order.
func CreateAll(sim *core.Sim, pde *field.PDEFields) ([]Term, error) {
	names := sim.Config.Sub(pde.Name).Strings("source_terms")
	terms := make([]Term, 0, len(names))
	for _, name := range names {
		t, err := Terms.Create(name, Args{Sim: sim, PDE: pde})
		if err != nil {
			return nil, fmt.Errorf("%s source terms: %w", pde.Name, err)
		}
		terms = append(terms, t)
	}
	if len(terms) > 0 {
		sim.Logger.Info("source terms", zap.String("equation", pde.Name), zap.Strings("terms", names))
	}
	return terms, nil
}

func requireKind(a Args, term string, kind field.EquationKind) {
	if a.PDE.Kind != kind {
		panic(fmt.Sprintf("%s applies to %s equations, %s is a %s equation", term, kind, a.PDE.Name, a.PDE.Kind))
	}
}

func gravity(sim *core.Sim) ([amr.SpaceDim]float64, error) {
	g := [amr.SpaceDim]float64{0, 0, -9.81}
	vals, err := sim.Config.Sub("incflo").Floats("gravity")
	if err != nil || vals == nil {
		return g, err
	}
	if len(vals) != amr.SpaceDim {
		return g, fmt.Errorf("incflo.gravity needs %d entries, got %d", amr.SpaceDim, len(vals))
	}
	copy(g[:], vals)
	return g, nil
}

// stateOf returns s when f carries it, else New.
func stateOf(f *field.Field, s field.State) field.State {
	if f.HasState(s) {
		return s
	}
	return field.StateNew
}

// forEachBox runs a host kernel over the valid boxes of src.
func forEachBox(sim *core.Sim, name string, src *amr.MultiFab, body func(b int, src amr.FArray) runner.ElementFunc) error {
	rn := sim.Runner
	return rn.ForEachBox(src.Boxes, func(b int, bx amr.Box, _ *runner.Scratch) error {
		return rn.ParallelFor(bx, src.NComp, runner.Kernel{Name: name, Host: body(b, src.Fab(b))})
	})
}

// BodyForce adds a constant acceleration to a vector equation.
type BodyForce struct {
	sim       *core.Sim
	Magnitude [amr.SpaceDim]float64
}

func newBodyForce(a Args) (Term, error) {
	requireKind(a, "BodyForce", field.VectorEquation)
	vals, err := a.Sim.Config.Sub("BodyForce").Floats("magnitude")
	if err != nil {
		return nil, err
	}
	if len(vals) != amr.SpaceDim {
		return nil, fmt.Errorf("BodyForce.magnitude needs %d entries, got %d", amr.SpaceDim, len(vals))
	}
	bf := &BodyForce{sim: a.Sim}
	copy(bf.Magnitude[:], vals)
	return bf, nil
}

func (bf *BodyForce) Name() string { return "BodyForce" }

func (bf *BodyForce) Apply(_ int, _ field.State, src *amr.MultiFab) error {
	return forEachBox(bf.sim, "body_force", src, func(_ int, s amr.FArray) runner.ElementFunc {
		return func(i, j, k, n int) { s.Add(i, j, k, n, bf.Magnitude[n]) }
	})
}

// GravityForcing adds g, or the perturbation form (1 - ro_0/rho) g when
// incflo.ro_0 is given.
type GravityForcing struct {
	sim     *core.Sim
	G       [amr.SpaceDim]float64
	Ro0     float64
	perturb bool
	rho     *field.Field
}

func newGravityForcing(a Args) (Term, error) {
	requireKind(a, "GravityForcing", field.VectorEquation)
	g, err := gravity(a.Sim)
	if err != nil {
		return nil, err
	}
	gf := &GravityForcing{sim: a.Sim, G: g, rho: a.PDE.Field(a.PDE.Density)}
	incflo := a.Sim.Config.Sub("incflo")
	if incflo.Contains("ro_0") {
		if gf.Ro0, err = incflo.Float("ro_0", 1); err != nil {
			return nil, err
		}
		gf.perturb = true
	}
	return gf, nil
}

func (gf *GravityForcing) Name() string { return "GravityForcing" }

func (gf *GravityForcing) Apply(lev int, fstate field.State, src *amr.MultiFab) error {
	rhoMF := gf.rho.Level(lev, stateOf(gf.rho, fstate))
	return forEachBox(gf.sim, "gravity_forcing", src, func(b int, s amr.FArray) runner.ElementFunc {
		rho := rhoMF.Fab(b)
		return func(i, j, k, n int) {
			fac := 1.0
			if gf.perturb {
				fac = 1 - gf.Ro0/rho.At(i, j, k, 0)
			}
			s.Add(i, j, k, n, fac*gf.G[n])
		}
	})
}

// BoussinesqBuoyancy adds g beta (T_ref - T) to a vector equation.
type BoussinesqBuoyancy struct {
	sim  *core.Sim
	G    [amr.SpaceDim]float64
	TRef float64
	Beta float64
	temp *field.Field
}

func newBoussinesqBuoyancy(a Args) (Term, error) {
	requireKind(a, "BoussinesqBuoyancy", field.VectorEquation)
	g, err := gravity(a.Sim)
	if err != nil {
		return nil, err
	}
	ns := a.Sim.Config.Sub("BoussinesqBuoyancy")
	tref, err := ns.Float("reference_temperature", 300)
	if err != nil {
		return nil, err
	}
	if tref <= 0 {
		return nil, fmt.Errorf("BoussinesqBuoyancy.reference_temperature must be positive, got %g", tref)
	}
	beta, err := ns.Float("thermal_expansion_coeff", 1/tref)
	if err != nil {
		return nil, err
	}
	temp, err := a.Sim.Repo.Get("temperature")
	if err != nil {
		return nil, fmt.Errorf("BoussinesqBuoyancy: %w", err)
	}
	return &BoussinesqBuoyancy{sim: a.Sim, G: g, TRef: tref, Beta: beta, temp: temp}, nil
}

func (bb *BoussinesqBuoyancy) Name() string { return "BoussinesqBuoyancy" }

func (bb *BoussinesqBuoyancy) Apply(lev int, fstate field.State, src *amr.MultiFab) error {
	tMF := bb.temp.Level(lev, stateOf(bb.temp, fstate))
	return forEachBox(bb.sim, "boussinesq_buoyancy", src, func(b int, s amr.FArray) runner.ElementFunc {
		temp := tMF.Fab(b)
		return func(i, j, k, n int) {
			s.Add(i, j, k, n, bb.G[n]*bb.Beta*(bb.TRef-temp.At(i, j, k, 0)))
		}
	})
}

// ScalarForcing adds a constant rate to a scalar equation.
type ScalarForcing struct {
	sim  *core.Sim
	Rate float64
}

func newScalarForcing(a Args) (Term, error) {
	requireKind(a, "ScalarForcing", field.ScalarEquation)
	rate, err := a.Sim.Config.Sub(a.PDE.Name).Sub("ScalarForcing").Float("rate", 0)
	if err != nil {
		return nil, err
	}
	return &ScalarForcing{sim: a.Sim, Rate: rate}, nil
}

func (sf *ScalarForcing) Name() string { return "ScalarForcing" }

func (sf *ScalarForcing) Apply(_ int, _ field.State, src *amr.MultiFab) error {
	return forEachBox(sf.sim, "scalar_forcing", src, func(_ int, s amr.FArray) runner.ElementFunc {
		return func(i, j, k, n int) { s.Add(i, j, k, n, sf.Rate) }
	})
}
