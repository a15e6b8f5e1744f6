package boundary

import (
	"testing"

	"github.com/notargets/gocfd/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/config"
	"github.com/notargets/AMRKernel/core"
	"github.com/notargets/AMRKernel/field"
	"github.com/notargets/AMRKernel/registry"
)

func at(z float64) [3]float64 { return [3]float64{0.3, 0.7, z} }

func TestLinearProfile(t *testing.T) {
	lp := LinearProfile{Params{Axis: 2, ZMin: 0, ZMax: 10, Floor: []float64{1}, Ceiling: []float64{3}}}
	require.NoError(t, lp.Validate(1))

	out := make([]float64, 1)
	testCases := []struct {
		z, want float64
	}{
		{-1, 1},
		{11, 3},
		{5, 2},
		{0, 1},
		{10, 3},
	}
	for _, tc := range testCases {
		lp.Value(at(tc.z), out)
		assert.InDelta(t, tc.want, out[0], 1e-14, "z=%g", tc.z)
	}

	// no jump against floor and ceiling
	lp.Value(at(1e-9), out)
	assert.InDelta(t, 1, out[0], 1e-8)
	lp.Value(at(10-1e-9), out)
	assert.InDelta(t, 3, out[0], 1e-8)
}

func TestPowerLawProfile(t *testing.T) {
	pp := PowerLawProfile{
		Params:   Params{Axis: 2, ZMin: 0, ZMax: 100, Floor: []float64{0, 0, 0}, Ceiling: []float64{8, 4, 0}},
		Exponent: 0.5,
	}
	out := make([]float64, 3)
	pp.Value(at(25), out)
	assert.InDeltaSlice(t, []float64{4, 2, 0}, out, 1e-12)
	pp.Value(at(-5), out)
	assert.InDeltaSlice(t, []float64{0, 0, 0}, out, 1e-12)
	pp.Value(at(100), out)
	assert.InDeltaSlice(t, []float64{8, 4, 0}, out, 1e-12)
	pp.Value(at(500), out)
	assert.InDeltaSlice(t, []float64{8, 4, 0}, out, 1e-12)
}

func TestParamsValidate(t *testing.T) {
	testCases := []struct {
		name string
		p    Params
	}{
		{"Inverted interval", Params{Axis: 2, ZMin: 5, ZMax: 5, Floor: []float64{1}, Ceiling: []float64{2}}},
		{"Short floor", Params{Axis: 2, ZMin: 0, ZMax: 1, Floor: nil, Ceiling: []float64{2}}},
		{"Bad axis", Params{Axis: 3, ZMin: 0, ZMax: 1, Floor: []float64{1}, Ceiling: []float64{2}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.p.Validate(1))
		})
	}
}

const inputs = `
velocity.LinearProfile.direction = 2
velocity.LinearProfile.start = 0.0
velocity.LinearProfile.end = 4.0
velocity.LinearProfile.start_val = 0.0 0.0 0.0
velocity.LinearProfile.end_val = 8.0 0.0 0.0
velocity.PowerLawProfile.start = 0.0
velocity.PowerLawProfile.end = 4.0
velocity.PowerLawProfile.start_val = 0.0 0.0 0.0
velocity.PowerLawProfile.end_val = 8.0 0.0 0.0
velocity.PowerLawProfile.exponent = 0.5
`

func newVelocity(t *testing.T) (*core.Sim, *field.Field) {
	t.Helper()
	RegisterBuiltins()
	cfg, err := config.FromString(inputs)
	require.NoError(t, err)
	geom := amr.Geometry{
		Domain:   amr.NewBox(amr.IntVect{}, amr.IntVect{3, 1, 3}),
		ProbHi:   [3]float64{4, 2, 4},
		Periodic: [3]bool{false, true, false},
	}
	sim := core.NewSim(cfg, nil, amr.NewHierarchy(geom, amr.IntVect{8, 8, 8}, 2), nil)
	vel, err := sim.Repo.Declare("velocity", 3, 1, field.CellCentered)
	require.NoError(t, err)
	vel.SetBC(field.XLo, field.BC{Type: utils.BCMassFlowInlet, Value: []float64{1, 0, 0}})
	vel.SetBC(field.ZLo, field.BC{Type: utils.BCWall})
	vel.SetBC(field.ZHi, field.BC{Type: utils.BCMovingWall, Value: []float64{2, 0, 0}})
	return sim, vel
}

func TestRegister(t *testing.T) {
	t.Run("Default pair registers nothing", func(t *testing.T) {
		sim, vel := newVelocity(t)
		require.NoError(t, Register(sim, vel, ConstDirichlet, ConstDirichlet))
		assert.Nil(t, vel.DirichletOp())
	})

	t.Run("Linear inflow with constant wall", func(t *testing.T) {
		sim, vel := newVelocity(t)
		require.NoError(t, Register(sim, vel, "LinearProfile", ConstDirichlet))
		require.NotNil(t, vel.DirichletOp())

		vel.FillPatch(0, field.StateNew, 0)
		fab := vel.Level(0, field.StateNew).Fab(0)
		// inflow ghost at z = 1.5 takes the profile, walls keep their constants
		assert.InDelta(t, 3.0, fab.At(-1, 0, 1, 0), 1e-12)
		assert.InDelta(t, 0.0, fab.At(1, 0, -1, 0), 1e-12)
		assert.InDelta(t, 2.0, fab.At(1, 0, 4, 0), 1e-12)
	})

	t.Run("Power law inflow", func(t *testing.T) {
		sim, vel := newVelocity(t)
		require.NoError(t, Register(sim, vel, "PowerLawProfile", ConstDirichlet))
		out := make([]float64, 3)
		vel.DirichletOp().Value(field.XLo, vel.BC(field.XLo), [3]float64{0, 0, 1}, 0, out)
		assert.InDeltaSlice(t, []float64{4, 0, 0}, out, 1e-12)
	})

	t.Run("Profiled wall aborts", func(t *testing.T) {
		sim, vel := newVelocity(t)
		err := Register(sim, vel, "LinearProfile", "LinearProfile")
		assert.ErrorIs(t, err, ErrUnsupportedWallBC)
		assert.Nil(t, vel.DirichletOp())
	})

	t.Run("Unknown inflow aborts", func(t *testing.T) {
		sim, vel := newVelocity(t)
		err := Register(sim, vel, "bogus", ConstDirichlet)
		require.ErrorIs(t, err, registry.ErrUnknownVariant)
		var uv *registry.UnknownVariantError
		require.ErrorAs(t, err, &uv)
		assert.Equal(t, []string{"ConstDirichlet", "LinearProfile", "PowerLawProfile"}, uv.Registered)
	})

	t.Run("Bad parameters", func(t *testing.T) {
		sim, vel := newVelocity(t)
		sim.Config.Set("velocity.LinearProfile.end_val", "8.0")
		assert.Error(t, Register(sim, vel, "LinearProfile", ConstDirichlet))
	})
}
