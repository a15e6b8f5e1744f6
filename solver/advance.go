package solver

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/field"
	"github.com/notargets/AMRKernel/runner"
)

// Advance takes one explicit step of size dt:
//
//  1. copy New into Old and fill Old ghost cells, coarse to fine
//  2. average the cell velocity to the MAC faces
//  3. update the turbulent viscosity
//  4. evaluate source terms, then convective terms, of every equation
//  5. q_new = q_old + dt (conv + src + diff), with conv and diff divided by
//     density for density-weighted equations and diff divided by density
//     always
//  6. average fine levels down onto coarse ones
func (s *Solver) Advance(dt float64) error {
	if !(dt > 0) {
		return fmt.Errorf("time step %g must be positive", dt)
	}
	sim := s.Sim
	for _, f := range s.cells {
		f.AdvanceStates()
	}
	s.fillGhosts(field.StateOld, sim.Time.Time)
	if err := s.computeMAC(field.StateOld); err != nil {
		return fmt.Errorf("MAC velocity: %w", err)
	}
	if err := s.Turbulence.Update(field.StateOld); err != nil {
		return fmt.Errorf("turbulence %s: %w", s.Turbulence.Name(), err)
	}
	for _, eq := range s.Equations {
		if err := s.computeSources(eq, field.StateOld); err != nil {
			return err
		}
	}
	for _, eq := range s.Equations {
		if err := eq.Adv.Apply(field.StateOld, dt); err != nil {
			return fmt.Errorf("%s advection: %w", eq.PDE.Name, err)
		}
	}
	for _, eq := range s.Equations {
		if err := s.update(eq, dt); err != nil {
			return fmt.Errorf("%s update: %w", eq.PDE.Name, err)
		}
	}
	s.averageDown(field.StateNew)
	sim.Time.Advance(dt)
	return nil
}

// ComputeDt returns the step allowed by incflo.cfl for the current velocity
// and diffusivity.
func (s *Solver) ComputeDt() (float64, error) {
	rate := 0.0
	for lev := 0; lev < s.Sim.Mesh.NumLevels(); lev++ {
		geom := s.Sim.Mesh.Level(lev).Geom
		dx := geom.CellSize()
		vel := s.vel.Level(lev, field.StateNew)
		for d := 0; d < amr.SpaceDim; d++ {
			rate = math.Max(rate, floats.Norm(vel.ValidValues(d), math.Inf(1))/dx[d])
		}
		rhoMin := floats.Min(s.rho.Level(lev, field.StateNew).ValidValues(0))
		muMax := floats.Max(s.Turbulence.MuTurb().Level(lev, field.StateNew).ValidValues(0))
		for _, eq := range s.Equations {
			nu := (eq.laminar + eq.turbulent*muMax) / rhoMin
			for d := 0; d < amr.SpaceDim; d++ {
				rate = math.Max(rate, 2*amr.SpaceDim*nu/(dx[d]*dx[d]))
			}
		}
	}
	if rate == 0 {
		return 0, fmt.Errorf("no velocity or diffusivity to set the time step, give a fixed dt")
	}
	return s.cfl / rate, nil
}

// ErrorEst marks cells of level lev for refinement with every configured
// criterion. Ghost cells of levels 0..lev are refilled first.
func (s *Solver) ErrorEst(lev int, tags *amr.TagArray) error {
	time := s.Sim.Time.Time
	for l := 0; l <= lev; l++ {
		for _, f := range s.cells {
			f.FillPatch(l, field.StateNew, time)
		}
	}
	for i, c := range s.Criteria {
		if err := c.Tag(lev, tags, time, tags.NGrow); err != nil {
			return fmt.Errorf("refinement criterion %d: %w", i, err)
		}
	}
	return nil
}

// Evolve initializes post-processing on the first call, then takes nsteps
// steps. A non-positive dt selects ComputeDt every step. Every
// amr.regrid_int steps all levels are tagged.
func (s *Solver) Evolve(nsteps int, dt float64) error {
	log := s.Sim.Logger
	if !s.started {
		if err := s.Post.Initialize(); err != nil {
			return err
		}
		s.started = true
	}
	for n := 0; n < nsteps; n++ {
		step := dt
		if step <= 0 {
			var err error
			if step, err = s.ComputeDt(); err != nil {
				return err
			}
		}
		if err := s.Advance(step); err != nil {
			return fmt.Errorf("step %d: %w", s.Sim.Time.Step+1, err)
		}
		if s.regridInt > 0 && s.Sim.Time.Step%s.regridInt == 0 {
			if err := s.tagLevels(); err != nil {
				return err
			}
		}
		if err := s.Post.PostAdvanceWork(); err != nil {
			return err
		}
		log.Debug("step",
			zap.Int("step", s.Sim.Time.Step),
			zap.Float64("time", s.Sim.Time.Time),
			zap.Float64("dt", step))
	}
	return nil
}

// Tags returns the tag arrays of the last tagging pass, one per level.
func (s *Solver) Tags() []*amr.TagArray { return s.tags }

func (s *Solver) tagLevels() error {
	mesh := s.Sim.Mesh
	s.tags = s.tags[:0]
	for lev := 0; lev < mesh.NumLevels(); lev++ {
		tags := amr.NewTagArray(mesh.Level(lev).Boxes, 0)
		if err := s.ErrorEst(lev, tags); err != nil {
			return err
		}
		s.tags = append(s.tags, tags)
		s.Sim.Logger.Info("tagged cells",
			zap.Int("step", s.Sim.Time.Step),
			zap.Int("level", lev),
			zap.Int("count", tags.Count()))
	}
	return nil
}

func (s *Solver) fillGhosts(st field.State, time float64) {
	for lev := 0; lev < s.Sim.Mesh.NumLevels(); lev++ {
		for _, f := range s.cells {
			f.FillPatch(lev, st, time)
		}
	}
}

func (s *Solver) averageDown(st field.State) {
	mesh := s.Sim.Mesh
	for lev := mesh.NumLevels() - 1; lev > 0; lev-- {
		for _, f := range s.cells {
			amr.AverageDown(f.Level(lev, st), f.Level(lev-1, st), mesh.RefRatio)
		}
	}
}

// computeMAC sets every face velocity to the average of its two cells, or to
// the boundary value on Dirichlet domain faces.
func (s *Solver) computeMAC(st field.State) error {
	sim := s.Sim
	rn := sim.Runner
	return rn.ForEachLevel(sim.Mesh, func(lev int, level *amr.Level) error {
		vel := s.vel.Level(lev, st)
		for d := 0; d < amr.SpaceDim; d++ {
			umac, err := sim.Repo.Get(field.MACName(d))
			if err != nil {
				return err
			}
			mf := umac.Level(lev, field.StateNew)
			err = rn.ForEachBox(mf.Boxes, func(b int, bx amr.Box, _ *runner.Scratch) error {
				return rn.ParallelFor(bx, 1, macKernel(d, level.Geom, s.vel, vel.Fab(b), mf.Fab(b)))
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Solver) computeSources(eq *Equation, st field.State) error {
	src := eq.PDE.Field(eq.PDE.Src)
	return s.Sim.Runner.ForEachLevel(s.Sim.Mesh, func(lev int, _ *amr.Level) error {
		mf := src.Level(lev, field.StateNew)
		mf.SetVal(0)
		for _, term := range eq.Sources {
			if err := term.Apply(lev, st, mf); err != nil {
				return fmt.Errorf("%s source %s: %w", eq.PDE.Name, term.Name(), err)
			}
		}
		return nil
	})
}

func (s *Solver) update(eq *Equation, dt float64) error {
	sim := s.Sim
	rn := sim.Runner
	pde := eq.PDE
	dof := pde.Field(pde.DOF)
	return rn.ForEachLevel(sim.Mesh, func(lev int, level *amr.Level) error {
		qOld := dof.Level(lev, field.StateOld)
		qNew := dof.Level(lev, field.StateNew)
		conv := pde.Field(pde.Conv).Level(lev, field.StateNew)
		src := pde.Field(pde.Src).Level(lev, field.StateNew)
		rho := s.rho.Level(lev, field.StateOld)
		mu := s.Turbulence.MuTurb().Level(lev, field.StateNew)
		return rn.ForEachBox(qNew.Boxes, func(b int, bx amr.Box, _ *runner.Scratch) error {
			k := updateKernel{
				dt:        dt,
				weighted:  pde.DensityWeighted,
				laminar:   eq.laminar,
				turbulent: eq.turbulent,
				dx:        level.Geom.CellSize(),
				qOld:      qOld.Fab(b),
				qNew:      qNew.Fab(b),
				conv:      conv.Fab(b),
				src:       src.Fab(b),
				rho:       rho.Fab(b),
				mu:        mu.Fab(b),
			}
			return rn.ParallelFor(bx, dof.NComp(), runner.Kernel{Name: "explicit_update", Host: k.apply})
		})
	})
}
