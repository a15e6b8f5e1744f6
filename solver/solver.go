// Package solver assembles the fields, operators and models of an
// incompressible-flow transport run from an inputs file and advances it in
// time.
package solver

import (
	"fmt"

	"github.com/notargets/gocfd/utils"
	"go.uber.org/zap"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/boundary"
	"github.com/notargets/AMRKernel/config"
	"github.com/notargets/AMRKernel/core"
	"github.com/notargets/AMRKernel/field"
	"github.com/notargets/AMRKernel/godunov"
	"github.com/notargets/AMRKernel/postproc"
	"github.com/notargets/AMRKernel/runner"
	"github.com/notargets/AMRKernel/source"
	"github.com/notargets/AMRKernel/tagging"
	"github.com/notargets/AMRKernel/turbulence"
)

// NGhost is the ghost width of transported fields, enough for every scheme.
const NGhost = 3

// VelocityName is the transported cell velocity.
const VelocityName = "velocity"

// Equation is one transport equation with its operators.
type Equation struct {
	PDE     *field.PDEFields
	Adv     *godunov.Advection
	Sources []source.Term

	// Diffusivity is laminar + turbulent * mu_turb.
	laminar   float64
	turbulent float64
}

// Solver owns a simulation and the equations it advances.
type Solver struct {
	Sim        *core.Sim
	Equations  []*Equation
	Turbulence turbulence.Model
	Criteria   []tagging.Criterion
	Post       *postproc.Manager

	vel       *field.Field
	rho       *field.Field
	cells     []*field.Field
	cfl       float64
	regridInt int
	started   bool
	tags      []*amr.TagArray
}

// New builds a solver from cfg. Configuration and model selection errors are
// returned; a nil logger is replaced by a no-op logger.
func New(cfg *config.Config, logger *zap.Logger) (*Solver, error) {
	RegisterBuiltins()
	if logger == nil {
		logger = zap.NewNop()
	}
	mesh, err := meshFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	rn, err := runner.FromConfig(cfg.Sub("runner"), logger)
	if err != nil {
		return nil, err
	}
	sim := core.NewSim(cfg, logger, mesh, rn)
	s := &Solver{Sim: sim}

	if s.cfl, err = cfg.Sub("incflo").Float("cfl", 0.5); err != nil {
		return nil, err
	}
	if s.regridInt, err = cfg.Sub("amr").Int("regrid_int", 0); err != nil {
		return nil, err
	}
	if err := s.declareFields(); err != nil {
		return nil, err
	}
	if err := s.setBoundaries(); err != nil {
		return nil, err
	}
	if err := s.setInitialValues(); err != nil {
		return nil, err
	}
	if s.Turbulence, err = turbulence.Create(sim); err != nil {
		return nil, err
	}
	if err := s.buildEquations(); err != nil {
		return nil, err
	}
	if s.Criteria, err = tagging.CreateAll(sim); err != nil {
		return nil, err
	}
	s.Post = postproc.NewManager(sim)

	level := mesh.Level(0)
	logger.Info("solver ready",
		zap.Stringer("domain", level.Geom.Domain),
		zap.Int("boxes", len(level.Boxes)),
		zap.String("launcher", rn.Launcher.Name()),
		zap.Int("equations", len(s.Equations)))
	return s, nil
}

// Free releases the runner.
func (s *Solver) Free() { s.Sim.Runner.Free() }

func meshFromConfig(cfg *config.Config) (*amr.Hierarchy, error) {
	geo := cfg.Sub("geometry")
	var geom amr.Geometry
	lo, err := vec3(geo, "prob_lo", [3]float64{})
	if err != nil {
		return nil, err
	}
	if !geo.Contains("prob_hi") {
		return nil, fmt.Errorf("geometry.prob_hi is required")
	}
	hi, err := vec3(geo, "prob_hi", [3]float64{})
	if err != nil {
		return nil, err
	}
	geom.ProbLo, geom.ProbHi = lo, hi
	periodic, err := geo.Ints("is_periodic")
	if err != nil {
		return nil, err
	}
	if periodic != nil && len(periodic) != amr.SpaceDim {
		return nil, fmt.Errorf("geometry.is_periodic needs %d entries, got %d", amr.SpaceDim, len(periodic))
	}
	for d := range periodic {
		geom.Periodic[d] = periodic[d] != 0
	}

	am := cfg.Sub("amr")
	ncell, err := am.Ints("n_cell")
	if err != nil {
		return nil, err
	}
	if len(ncell) != amr.SpaceDim {
		return nil, fmt.Errorf("amr.n_cell needs %d entries, got %d", amr.SpaceDim, len(ncell))
	}
	var hiIdx amr.IntVect
	for d := 0; d < amr.SpaceDim; d++ {
		if ncell[d] < 1 {
			return nil, fmt.Errorf("amr.n_cell[%d] = %d must be positive", d, ncell[d])
		}
		if !(geom.ProbLo[d] < geom.ProbHi[d]) {
			return nil, fmt.Errorf("geometry.prob_lo[%d] must be below prob_hi[%d]", d, d)
		}
		hiIdx[d] = ncell[d] - 1
	}
	geom.Domain = amr.NewBox(amr.IntVect{}, hiIdx)

	mgs := amr.IntVect{32, 32, 32}
	sizes, err := am.Ints("max_grid_size")
	if err != nil {
		return nil, err
	}
	switch len(sizes) {
	case 0:
	case 1:
		mgs = amr.IntVect{sizes[0], sizes[0], sizes[0]}
	case amr.SpaceDim:
		mgs = amr.IntVect{sizes[0], sizes[1], sizes[2]}
	default:
		return nil, fmt.Errorf("amr.max_grid_size needs 1 or %d entries, got %d", amr.SpaceDim, len(sizes))
	}
	for d := 0; d < amr.SpaceDim; d++ {
		if mgs[d] < 1 {
			return nil, fmt.Errorf("amr.max_grid_size must be positive")
		}
	}
	ratio, err := am.Int("ref_ratio", 2)
	if err != nil {
		return nil, err
	}
	return amr.NewHierarchy(geom, mgs, ratio), nil
}

func vec3(ns config.Namespace, name string, def [3]float64) ([3]float64, error) {
	vals, err := ns.Floats(name)
	if err != nil || vals == nil {
		return def, err
	}
	if len(vals) != amr.SpaceDim {
		return def, fmt.Errorf("%s.%s needs %d entries, got %d", ns.Prefix(), name, amr.SpaceDim, len(vals))
	}
	return [3]float64{vals[0], vals[1], vals[2]}, nil
}

// declareFields declares density, velocity and the transport.scalars list.
func (s *Solver) declareFields() error {
	repo := s.Sim.Repo
	var err error
	if s.rho, err = repo.Declare(field.DensityName, 1, NGhost, field.CellCentered, field.StateOld); err != nil {
		return err
	}
	if s.vel, err = repo.Declare(VelocityName, amr.SpaceDim, NGhost, field.CellCentered, field.StateOld); err != nil {
		return err
	}
	s.cells = []*field.Field{s.rho, s.vel}
	for _, name := range s.scalarNames() {
		if name == field.DensityName || name == VelocityName {
			return fmt.Errorf("transport.scalars: %q is reserved", name)
		}
		f, err := repo.Declare(name, 1, NGhost, field.CellCentered, field.StateOld)
		if err != nil {
			return err
		}
		s.cells = append(s.cells, f)
	}
	return nil
}

func (s *Solver) scalarNames() []string {
	return s.Sim.Config.Sub("transport").Strings("scalars")
}

// setBoundaries reads <face>.type and <face>.<field> for every face normal to
// a non-periodic direction. Scalars and density without a prescribed value
// extrapolate at Dirichlet faces.
func (s *Solver) setBoundaries() error {
	cfg := s.Sim.Config
	geom := s.Sim.Mesh.Level(0).Geom
	for ori := field.Orientation(0); ori < field.NumOrientations; ori++ {
		ns := cfg.Sub(ori.String())
		if geom.Periodic[ori.Dir()] {
			if ns.Contains("type") {
				return fmt.Errorf("%s.type given for periodic direction %d", ori, ori.Dir())
			}
			continue
		}
		name := ns.String("type", "")
		if name == "" {
			return fmt.Errorf("%s.type is required for non-periodic direction %d", ori, ori.Dir())
		}
		typ, err := field.ParseBCType(name)
		if err != nil {
			return fmt.Errorf("%s.type: %w", ori, err)
		}
		for _, f := range s.cells {
			vals, err := ns.Floats(f.Name())
			if err != nil {
				return err
			}
			if vals != nil && len(vals) != f.NComp() {
				return fmt.Errorf("%s.%s needs %d entries, got %d", ori, f.Name(), f.NComp(), len(vals))
			}
			bc := field.BC{Type: typ, Value: vals}
			if f != s.vel && vals == nil && field.IsDirichlet(typ) {
				bc.Type = utils.BCNeumann
			}
			f.SetBC(ori, bc)
		}
	}

	vns := cfg.Sub(VelocityName)
	inflow := vns.String("inflow_type", boundary.ConstDirichlet)
	wall := vns.String("wall_type", boundary.ConstDirichlet)
	return boundary.Register(s.Sim, s.vel, inflow, wall)
}

// setInitialValues applies the constant initial state:
//
//	incflo.density          default 1
//	incflo.velocity         three reals, default 0
//	<scalar>.initial_value  default 0
func (s *Solver) setInitialValues() error {
	incflo := s.Sim.Config.Sub("incflo")
	rho0, err := incflo.Float("density", 1)
	if err != nil {
		return err
	}
	if rho0 <= 0 {
		return fmt.Errorf("incflo.density must be positive, got %g", rho0)
	}
	s.rho.SetVal(rho0)
	u0, err := vec3(incflo, "velocity", [3]float64{})
	if err != nil {
		return err
	}
	for lev := 0; lev < s.vel.NumLevels(); lev++ {
		for _, st := range []field.State{field.StateNew, field.StateOld} {
			mf := s.vel.Level(lev, st)
			for b := range mf.Boxes {
				fab := mf.Fab(b)
				for n := 0; n < amr.SpaceDim; n++ {
					comp := fab.Comp(n)
					for i := range comp {
						comp[i] = u0[n]
					}
				}
			}
		}
	}
	for _, name := range s.scalarNames() {
		f, _ := s.Sim.Repo.Get(name)
		v, err := s.Sim.Config.Sub(name).Float("initial_value", 0)
		if err != nil {
			return err
		}
		f.SetVal(v)
	}
	return nil
}

// buildEquations binds ICNS to velocity and one density-weighted scalar
// equation to each transported scalar. Diffusivities:
//
//	transport.viscosity          laminar mu, default 0
//	transport.laminar_prandtl    default 0.7
//	transport.turbulent_prandtl  default 1/3
func (s *Solver) buildEquations() error {
	sim := s.Sim
	tr := sim.Config.Sub("transport")
	mu, err := tr.Float("viscosity", 0)
	if err != nil {
		return err
	}
	prl, err := tr.Float("laminar_prandtl", 0.7)
	if err != nil {
		return err
	}
	prt, err := tr.Float("turbulent_prandtl", 1.0/3.0)
	if err != nil {
		return err
	}
	if mu < 0 || prl <= 0 || prt <= 0 {
		return fmt.Errorf("transport: viscosity must be non-negative and Prandtl numbers positive")
	}

	add := func(name string, dof *field.Field, kind field.EquationKind, weighted bool, lam, turb float64) error {
		pde, err := field.NewPDEFields(sim.Repo, name, dof, kind, weighted)
		if err != nil {
			return err
		}
		adv, err := godunov.New(sim, pde)
		if err != nil {
			return err
		}
		terms, err := source.CreateAll(sim, pde)
		if err != nil {
			return err
		}
		s.Equations = append(s.Equations, &Equation{
			PDE: pde, Adv: adv, Sources: terms, laminar: lam, turbulent: turb,
		})
		return nil
	}
	if err := add("ICNS", s.vel, field.VectorEquation, false, mu, 1); err != nil {
		return err
	}
	for _, name := range s.scalarNames() {
		f, _ := sim.Repo.Get(name)
		if err := add(name, f, field.ScalarEquation, true, mu/prl, 1/prt); err != nil {
			return err
		}
	}
	return nil
}
