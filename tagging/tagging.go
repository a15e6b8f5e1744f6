// Package tagging provides the refinement criteria that mark cells of a level
// for refinement.
package tagging

import (
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/core"
	"github.com/notargets/AMRKernel/field"
	"github.com/notargets/AMRKernel/registry"
	"github.com/notargets/AMRKernel/runner"
)

// Criterion marks cells of one level. Initialize reads the criterion's
// configuration under key, e.g. "tagging.t1".
type Criterion interface {
	Initialize(key string) error
	Tag(lev int, tags *amr.TagArray, time float64, ngrow int) error
}

// Criteria holds the refinement criterion factories.
var Criteria = registry.New[Criterion, *core.Sim]("refinement criterion")

var registerOnce sync.Once

// RegisterBuiltins adds VorticityRefinement and FieldRefinement.
func RegisterBuiltins() {
	registerOnce.Do(func() {
		Criteria.Register("VorticityRefinement", func(sim *core.Sim) (Criterion, error) {
			return &VorticityRefinement{sim: sim}, nil
		})
		Criteria.Register("FieldRefinement", func(sim *core.Sim) (Criterion, error) {
			return &FieldRefinement{sim: sim}, nil
		})
	})
}

// CreateAll builds and initializes the criteria named by tagging.labels, each
// with its type from tagging.<label>.type.
func CreateAll(sim *core.Sim) ([]Criterion, error) {
	ns := sim.Config.Sub("tagging")
	labels := ns.Strings("labels")
	out := make([]Criterion, 0, len(labels))
	for _, label := range labels {
		key := ns.Sub(label)
		typ := key.String("type", "")
		if typ == "" {
			return nil, fmt.Errorf("%s.type is required", key.Prefix())
		}
		c, err := Criteria.Create(typ, sim)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key.Prefix(), err)
		}
		if err := c.Initialize(key.Prefix()); err != nil {
			return nil, fmt.Errorf("%s: %w", key.Prefix(), err)
		}
		sim.Logger.Info("refinement criterion", zap.String("label", label), zap.String("type", typ))
		out = append(out, c)
	}
	return out, nil
}

// Threshold returns the value for level lev. Levels past the end of values
// reuse the last entry.
func Threshold(values []float64, lev int) float64 {
	if lev < len(values) {
		return values[lev]
	}
	return values[len(values)-1]
}

// tagValid sets the tag of every valid cell of level lev where mark is true.
// The tag array must cover the level's boxes.
func tagValid(sim *core.Sim, lev int, tags *amr.TagArray, name string, mark func(b, i, j, k int) bool) error {
	rn := sim.Runner
	return rn.ForEachBox(sim.Mesh.Level(lev).Boxes, func(b int, bx amr.Box, _ *runner.Scratch) error {
		return rn.ParallelFor(bx, 1, runner.Kernel{
			Name: name,
			Host: func(i, j, k, _ int) {
				if mark(b, i, j, k) {
					tags.Set(b, i, j, k)
				}
			},
		})
	})
}

// VorticityRefinement tags cells whose vorticity magnitude exceeds the
// level's threshold. Velocity ghost cells must be filled.
type VorticityRefinement struct {
	sim    *core.Sim
	values []float64
	vel    *field.Field
}

func (v *VorticityRefinement) Initialize(key string) error {
	values, err := v.sim.Config.Sub(key).Floats("values")
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return fmt.Errorf("%s.values is required", key)
	}
	vel, err := v.sim.Repo.Get("velocity")
	if err != nil {
		return err
	}
	v.values, v.vel = values, vel
	return nil
}

func (v *VorticityRefinement) Tag(lev int, tags *amr.TagArray, _ float64, _ int) error {
	thresh := Threshold(v.values, lev)
	geom := v.sim.Mesh.Level(lev).Geom
	velMF := v.vel.Level(lev, field.StateNew)
	return tagValid(v.sim, lev, tags, "vorticity_mag_tag", func(b, i, j, k int) bool {
		return field.VorticityMag(field.VelocityGradient(velMF.Fab(b), geom, i, j, k)) > thresh
	})
}

// FieldRefinement tags cells where any component of a field exceeds
// field_error or its gradient magnitude exceeds grad_error. Either list may
// be omitted.
type FieldRefinement struct {
	sim      *core.Sim
	fld      *field.Field
	fieldErr []float64
	gradErr  []float64
}

func (fr *FieldRefinement) Initialize(key string) error {
	ns := fr.sim.Config.Sub(key)
	name := ns.String("field_name", "")
	if name == "" {
		return fmt.Errorf("%s.field_name is required", key)
	}
	fld, err := fr.sim.Repo.Get(name)
	if err != nil {
		return err
	}
	if fr.fieldErr, err = ns.Floats("field_error"); err != nil {
		return err
	}
	if fr.gradErr, err = ns.Floats("grad_error"); err != nil {
		return err
	}
	if fr.fieldErr == nil && fr.gradErr == nil {
		return fmt.Errorf("%s needs field_error or grad_error", key)
	}
	if fr.gradErr != nil && fld.NGrow() < 1 {
		return fmt.Errorf("%s: grad_error needs ghost cells on %s", key, name)
	}
	fr.fld = fld
	return nil
}

func (fr *FieldRefinement) Tag(lev int, tags *amr.TagArray, _ float64, _ int) error {
	geom := fr.sim.Mesh.Level(lev).Geom
	mf := fr.fld.Level(lev, field.StateNew)
	ncomp := fr.fld.NComp()
	valThresh, gradThresh := math.Inf(1), math.Inf(1)
	if fr.fieldErr != nil {
		valThresh = Threshold(fr.fieldErr, lev)
	}
	if fr.gradErr != nil {
		gradThresh = Threshold(fr.gradErr, lev)
	}
	return tagValid(fr.sim, lev, tags, "field_tag", func(b, i, j, k int) bool {
		fab := mf.Fab(b)
		for n := 0; n < ncomp; n++ {
			if fab.At(i, j, k, n) > valThresh {
				return true
			}
			if fr.gradErr != nil {
				g := field.Gradient(fab, geom, i, j, k, n)
				if floats.Norm(g[:], 2) > gradThresh {
					return true
				}
			}
		}
		return false
	})
}
