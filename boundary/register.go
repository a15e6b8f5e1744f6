package boundary

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/core"
	"github.com/notargets/AMRKernel/field"
	"github.com/notargets/AMRKernel/registry"
)

// ConstDirichlet is the policy that uses the value stored on the field.
const ConstDirichlet = "ConstDirichlet"

// ErrUnsupportedWallBC reports a wall policy other than ConstDirichlet.
var ErrUnsupportedWallBC = errors.New("only ConstDirichlet is supported for wall boundaries")

// ProfileArgs are passed to profile factories.
type ProfileArgs struct {
	Sim   *core.Sim
	Field *field.Field
}

// Profiles holds the inflow profile factories. A nil Profile means the
// constant value stored on the field.
var Profiles = registry.New[Profile, ProfileArgs]("inflow profile")

var registerOnce sync.Once

// RegisterBuiltins adds ConstDirichlet, LinearProfile and PowerLawProfile.
func RegisterBuiltins() {
	registerOnce.Do(func() {
		Profiles.Register(ConstDirichlet, func(ProfileArgs) (Profile, error) { return nil, nil })
		Profiles.Register("LinearProfile", func(a ProfileArgs) (Profile, error) {
			p, err := ParamsFromConfig(a.Sim.Config.Sub(a.Field.Name()).Sub("LinearProfile"), a.Field.NComp())
			if err != nil {
				return nil, err
			}
			return LinearProfile{Params: p}, nil
		})
		Profiles.Register("PowerLawProfile", func(a ProfileArgs) (Profile, error) {
			ns := a.Sim.Config.Sub(a.Field.Name()).Sub("PowerLawProfile")
			p, err := ParamsFromConfig(ns, a.Field.NComp())
			if err != nil {
				return nil, err
			}
			exp, err := ns.Float("exponent", 1.0/7.0)
			if err != nil {
				return nil, err
			}
			return PowerLawProfile{Params: p, Exponent: exp}, nil
		})
	})
}

// DirichletOp fills inflow faces from a profile and every other Dirichlet
// face from the constant value on the field.
type DirichletOp struct {
	Inflow Profile
}

func (op DirichletOp) Value(_ field.Orientation, bc field.BC, x [amr.SpaceDim]float64, _ float64, out []float64) {
	if op.Inflow != nil && field.IsInflow(bc.Type) {
		op.Inflow.Value(x, out)
		return
	}
	for n := range out {
		out[n] = 0
		if len(bc.Value) > 0 {
			out[n] = bc.Value[n]
		}
	}
}

// Register installs the Dirichlet operator for fld selected by the inflow
// and wall policy names. The default ConstDirichlet pair installs nothing.
func Register(sim *core.Sim, fld *field.Field, inflow, wall string) error {
	if inflow == ConstDirichlet && wall == ConstDirichlet {
		return nil
	}
	if wall != ConstDirichlet {
		return fmt.Errorf("%s boundary: wall %q: %w", fld.Name(), wall, ErrUnsupportedWallBC)
	}
	profile, err := Profiles.Create(inflow, ProfileArgs{Sim: sim, Field: fld})
	if err != nil {
		return fmt.Errorf("%s boundary: %w", fld.Name(), err)
	}
	fld.SetDirichletOp(DirichletOp{Inflow: profile})
	sim.Logger.Info("registered inflow profile",
		zap.String("field", fld.Name()), zap.String("inflow", inflow), zap.String("wall", wall))
	return nil
}
