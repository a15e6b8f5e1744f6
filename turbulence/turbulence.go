// Package turbulence provides the turbulence closures that compute the
// turbulent viscosity field mu_turb.
package turbulence

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/core"
	"github.com/notargets/AMRKernel/field"
	"github.com/notargets/AMRKernel/registry"
	"github.com/notargets/AMRKernel/runner"
)

// MuTurbName is the field every model writes.
const MuTurbName = "mu_turb"

// Model updates the turbulent viscosity from the flow state.
type Model interface {
	Name() string
	Update(fstate field.State) error
	MuTurb() *field.Field
}

// Models holds the turbulence model factories.
var Models = registry.New[Model, *core.Sim]("turbulence model")

var registerOnce sync.Once

// RegisterBuiltins adds Laminar, Constant and Smagorinsky.
func RegisterBuiltins() {
	registerOnce.Do(func() {
		Models.Register("Laminar", newLaminar)
		Models.Register("Constant", newConstant)
		Models.Register("Smagorinsky", newSmagorinsky)
	})
}

// Create builds the model named by turbulence.model, default Laminar.
func Create(sim *core.Sim) (Model, error) {
	name := sim.Config.Sub("turbulence").String("model", "Laminar")
	m, err := Models.Create(name, sim)
	if err != nil {
		return nil, err
	}
	sim.Logger.Info("turbulence model", zap.String("model", m.Name()))
	return m, nil
}

// declareMuTurb declares mu_turb with one ghost cell so face averages can be
// formed at box edges.
func declareMuTurb(sim *core.Sim) (*field.Field, error) {
	return sim.Repo.Declare(MuTurbName, 1, 1, field.CellCentered)
}

// uniform sets mu_turb to a constant on every level.
type uniform struct {
	name  string
	value float64
	mu    *field.Field
}

func (u *uniform) Name() string         { return u.name }
func (u *uniform) MuTurb() *field.Field { return u.mu }

func (u *uniform) Update(field.State) error {
	u.mu.SetVal(u.value)
	return nil
}

func newLaminar(sim *core.Sim) (Model, error) {
	mu, err := declareMuTurb(sim)
	if err != nil {
		return nil, err
	}
	m := &uniform{name: "Laminar", mu: mu}
	return m, m.Update(field.StateNew)
}

func newConstant(sim *core.Sim) (Model, error) {
	nu, err := sim.Config.Sub("Constant").Float("turbulent_viscosity", 0)
	if err != nil {
		return nil, err
	}
	if nu < 0 {
		return nil, fmt.Errorf("Constant.turbulent_viscosity must be non-negative, got %g", nu)
	}
	mu, err := declareMuTurb(sim)
	if err != nil {
		return nil, err
	}
	m := &uniform{name: "Constant", value: nu, mu: mu}
	return m, m.Update(field.StateNew)
}

// Smagorinsky computes mu_t = rho (Cs Delta)^2 |S| with Delta the cube root
// of the cell volume.
type Smagorinsky struct {
	sim *core.Sim
	Cs  float64
	vel *field.Field
	rho *field.Field
	mu  *field.Field
}

func newSmagorinsky(sim *core.Sim) (Model, error) {
	cs, err := sim.Config.Sub("Smagorinsky_coeffs").Float("Cs", 0.135)
	if err != nil {
		return nil, err
	}
	vel, err := sim.Repo.Get("velocity")
	if err != nil {
		return nil, fmt.Errorf("Smagorinsky: %w", err)
	}
	if vel.NComp() != amr.SpaceDim || vel.NGrow() < 1 {
		panic(fmt.Sprintf("Smagorinsky: velocity needs %d components and a ghost cell", amr.SpaceDim))
	}
	rho, err := sim.Repo.Get(field.DensityName)
	if err != nil {
		return nil, fmt.Errorf("Smagorinsky: %w", err)
	}
	mu, err := declareMuTurb(sim)
	if err != nil {
		return nil, err
	}
	return &Smagorinsky{sim: sim, Cs: cs, vel: vel, rho: rho, mu: mu}, nil
}

func (s *Smagorinsky) Name() string         { return "Smagorinsky" }
func (s *Smagorinsky) MuTurb() *field.Field { return s.mu }

// Update needs the velocity ghost cells of fstate filled.
func (s *Smagorinsky) Update(fstate field.State) error {
	rn := s.sim.Runner
	return rn.ForEachLevel(s.sim.Mesh, func(lev int, level *amr.Level) error {
		geom := level.Geom
		delta := math.Cbrt(geom.CellVolume())
		coeff := (s.Cs * delta) * (s.Cs * delta)
		velMF := s.vel.Level(lev, fstate)
		rhoState := fstate
		if !s.rho.HasState(rhoState) {
			rhoState = field.StateNew
		}
		rhoMF := s.rho.Level(lev, rhoState)
		muMF := s.mu.Level(lev, field.StateNew)
		err := rn.ForEachBox(muMF.Boxes, func(b int, bx amr.Box, _ *runner.Scratch) error {
			vel, rho, mu := velMF.Fab(b), rhoMF.Fab(b), muMF.Fab(b)
			return rn.ParallelFor(bx, 1, runner.Kernel{
				Name: "smagorinsky_mu_turb",
				Host: func(i, j, k, _ int) {
					sr := field.StrainRateMag(field.VelocityGradient(vel, geom, i, j, k))
					mu.Set(i, j, k, 0, rho.At(i, j, k, 0)*coeff*sr)
				},
			})
		})
		if err != nil {
			return err
		}
		s.mu.FillPatch(lev, field.StateNew, s.sim.Time.Time)
		return nil
	})
}
