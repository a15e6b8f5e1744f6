package godunov

import (
	"math"
	"testing"

	"github.com/notargets/gocfd/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/config"
	"github.com/notargets/AMRKernel/core"
	"github.com/notargets/AMRKernel/field"
)

var allSchemes = []Scheme{PLM, PPM, PPMNoLim, WENO}

type fixture struct {
	sim *core.Sim
	pde *field.PDEFields
	dof *field.Field
	rho *field.Field
}

func newFixture(t *testing.T, inputs string, logger *zap.Logger, n amr.IntVect, periodic [3]bool, weighted bool) *fixture {
	t.Helper()
	cfg, err := config.FromString(inputs)
	require.NoError(t, err)
	geom := amr.Geometry{
		Domain:   amr.NewBox(amr.IntVect{}, amr.IntVect{n[0] - 1, n[1] - 1, n[2] - 1}),
		ProbHi:   [3]float64{float64(n[0]), float64(n[1]), float64(n[2])},
		Periodic: periodic,
	}
	mesh := amr.NewHierarchy(geom, amr.IntVect{4, 4, 4}, 2)
	sim := core.NewSim(cfg, logger, mesh, nil)
	rho, err := sim.Repo.Declare(field.DensityName, 1, 3, field.CellCentered, field.StateOld)
	require.NoError(t, err)
	rho.SetVal(1)
	dof, err := sim.Repo.Declare("temperature", 1, 3, field.CellCentered, field.StateOld)
	require.NoError(t, err)
	pde, err := field.NewPDEFields(sim.Repo, "temperature", dof, field.ScalarEquation, weighted)
	require.NoError(t, err)
	return &fixture{sim: sim, pde: pde, dof: dof, rho: rho}
}

func (f *fixture) setUMAC(u [3]float64) {
	for d := 0; d < amr.SpaceDim; d++ {
		f.pde.Field(f.pde.UMAC[d]).SetVal(u[d])
	}
}

func (f *fixture) setDOF(fn func(i, j, k int) float64) {
	mf := f.dof.Level(0, field.StateNew)
	mf.ForEachValid(func(_ int, fab amr.FArray, i, j, k int) {
		fab.Set(i, j, k, 0, fn(i, j, k))
	})
	f.dof.FillPatch(0, field.StateNew, 0)
}

func (f *fixture) convIntegral() float64 {
	vol := f.sim.Mesh.Level(0).Geom.CellVolume()
	sum := 0.0
	for _, v := range f.pde.Field(f.pde.Conv).Level(0, field.StateNew).ValidValues(0) {
		sum += v * vol
	}
	return sum
}

// netBoundaryFlux integrates outgoing flux over the domain faces.
func netBoundaryFlux(adv *Advection, geom amr.Geometry) float64 {
	dx := geom.CellSize()
	dom := geom.Domain
	net := 0.0
	for d, mf := range adv.Fluxes(0) {
		area := dx[0] * dx[1] * dx[2] / dx[d]
		mf.ForEachValid(func(_ int, fab amr.FArray, i, j, k int) {
			f := amr.IntVect{i, j, k}[d]
			switch f {
			case dom.Lo[d]:
				net -= fab.At(i, j, k, 0) * area
			case dom.Hi[d] + 1:
				net += fab.At(i, j, k, 0) * area
			}
		})
	}
	return net
}

func TestSchemeFromString(t *testing.T) {
	testCases := []struct {
		in   string
		want Scheme
		ok   bool
	}{
		{"plm", PLM, true},
		{"PPM", PPM, true},
		{"Ppm_NoLim", PPMNoLim, true},
		{" weno ", WENO, true},
		{"bogus", PPM, false},
		{"", PPM, false},
	}
	for _, tc := range testCases {
		got, ok := SchemeFromString(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
	}
	assert.Equal(t, 2, PLM.StencilWidth())
	assert.Equal(t, 3, PPM.StencilWidth())
	assert.Equal(t, 3, WENO.StencilWidth())
	assert.Equal(t, "ppm_nolim", PPMNoLim.String())
}

func TestNewSchemeSelection(t *testing.T) {
	periodic := [3]bool{true, true, true}
	n := amr.IntVect{4, 4, 4}
	testCases := []struct {
		name     string
		inputs   string
		want     Scheme
		warnings int
	}{
		{"Upper case", "incflo.godunov_type = PPM\n", PPM, 0},
		{"Weno", "incflo.godunov_type = weno\n", WENO, 0},
		{"Plm", "incflo.godunov_type = plm\n", PLM, 0},
		{"Bogus falls back", "incflo.godunov_type = bogus\n", PPM, 1},
		{"Absent falls back", "", PPM, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			obs, logs := observer.New(zapcore.WarnLevel)
			f := newFixture(t, tc.inputs, zap.New(obs), n, periodic, false)
			adv, err := New(f.sim, f.pde)
			require.NoError(t, err)
			assert.Equal(t, tc.want, adv.Scheme())
			assert.Equal(t, tc.warnings, logs.Len())
			assert.Equal(t, []bool{true}, adv.ConservativeForm())
		})
	}

	t.Run("Deprecated flags", func(t *testing.T) {
		for _, inputs := range []string{
			"incflo.use_ppm = true\n",
			"incflo.godunov_type = plm\nincflo.use_limiter = false\n",
		} {
			f := newFixture(t, inputs, zap.NewNop(), n, periodic, false)
			_, err := New(f.sim, f.pde)
			assert.ErrorIs(t, err, ErrDeprecatedFlag)
		}
	})

	t.Run("Conservative form length", func(t *testing.T) {
		f := newFixture(t, "temperature.conservative_form = true false\n", zap.NewNop(), n, periodic, false)
		_, err := New(f.sim, f.pde)
		assert.Error(t, err)
	})

	t.Run("Too few ghost cells", func(t *testing.T) {
		f := newFixture(t, "", zap.NewNop(), n, periodic, false)
		thin, err := f.sim.Repo.Declare("thin", 1, 1, field.CellCentered)
		require.NoError(t, err)
		pde, err := field.NewPDEFields(f.sim.Repo, "thin", thin, field.ScalarEquation, false)
		require.NoError(t, err)
		assert.Panics(t, func() { _, _ = New(f.sim, pde) })
	})
}

func TestPeriodicConservation(t *testing.T) {
	n := amr.IntVect{8, 8, 4}
	for _, scheme := range allSchemes {
		t.Run(scheme.String(), func(t *testing.T) {
			f := newFixture(t, "incflo.godunov_type = "+scheme.String()+"\n", zap.NewNop(), n,
				[3]bool{true, true, true}, false)
			f.setUMAC([3]float64{1, 1, 1})
			f.setDOF(func(i, j, k int) float64 {
				v := math.Sin(2*math.Pi*float64(i)/8) + 0.5*math.Cos(2*math.Pi*float64(j)/8)
				if i >= 3 && i <= 5 && k < 2 {
					v += 2
				}
				return v
			})
			adv, err := New(f.sim, f.pde)
			require.NoError(t, err)
			require.NoError(t, adv.Apply(field.StateNew, 0.4))

			integral := f.convIntegral()
			geom := f.sim.Mesh.Level(0).Geom
			assert.InDelta(t, -netBoundaryFlux(adv, geom), integral, 1e-10)
			assert.InDelta(t, 0, integral, 1e-10)
			assert.Equal(t, 0, f.sim.Runner.LiveScratch())
		})
	}
}

func TestDonorFluxAtDomainFaces(t *testing.T) {
	n := amr.IntVect{8, 2, 1}
	for _, scheme := range allSchemes {
		t.Run(scheme.String(), func(t *testing.T) {
			f := newFixture(t, "incflo.godunov_type = "+scheme.String()+"\n", zap.NewNop(), n,
				[3]bool{false, true, true}, false)
			f.dof.SetBC(field.XLo, field.BC{Type: utils.BCInflow, Value: []float64{5}})
			f.dof.SetBC(field.XHi, field.BC{Type: utils.BCOutflow})
			f.setUMAC([3]float64{1, 0, 0})
			f.setDOF(func(i, j, k int) float64 { return float64(i * i) })

			adv, err := New(f.sim, f.pde)
			require.NoError(t, err)
			require.NoError(t, adv.Apply(field.StateNew, 0.1))

			fx := adv.Fluxes(0)[0]
			for b := range fx.Boxes {
				fab := fx.Fab(b)
				fx.Boxes[b].ForEach(func(i, j, k int) {
					switch i {
					case 0:
						assert.Equal(t, 5.0, fab.At(i, j, k, 0))
					case 8:
						assert.Equal(t, 49.0, fab.At(i, j, k, 0))
					}
				})
			}
			assert.InDelta(t, -(2*49.0 - 2*5.0), f.convIntegral(), 1e-10)
		})
	}
}

func TestAdvectiveMatchesConservative(t *testing.T) {
	n := amr.IntVect{8, 8, 1}
	periodic := [3]bool{true, true, true}
	profile := func(i, j, k int) float64 {
		return math.Sin(2*math.Pi*float64(i)/8) * math.Cos(2*math.Pi*float64(j)/8)
	}
	for _, scheme := range allSchemes {
		t.Run(scheme.String(), func(t *testing.T) {
			base := "incflo.godunov_type = " + scheme.String() + "\n"
			cons := newFixture(t, base, zap.NewNop(), n, periodic, false)
			advf := newFixture(t, base+"temperature.conservative_form = false\n", zap.NewNop(), n, periodic, false)
			for _, f := range []*fixture{cons, advf} {
				f.setUMAC([3]float64{1, -0.5, 0})
				f.setDOF(profile)
				op, err := New(f.sim, f.pde)
				require.NoError(t, err)
				require.NoError(t, op.Apply(field.StateNew, 0.25))
			}
			a := cons.pde.Field(cons.pde.Conv).Level(0, field.StateNew).ValidValues(0)
			b := advf.pde.Field(advf.pde.Conv).Level(0, field.StateNew).ValidValues(0)
			require.Equal(t, len(a), len(b))
			for i := range a {
				assert.InDelta(t, a[i], b[i], 1e-12)
			}
		})
	}
}

func TestDensityWeighted(t *testing.T) {
	n := amr.IntVect{8, 4, 4}
	for _, scheme := range allSchemes {
		t.Run(scheme.String(), func(t *testing.T) {
			f := newFixture(t, "incflo.godunov_type = "+scheme.String()+"\n", zap.NewNop(), n,
				[3]bool{true, true, true}, true)
			f.rho.SetVal(2)
			f.setUMAC([3]float64{0.5, 0, 0})
			f.setDOF(func(i, j, k int) float64 { return 3 })

			adv, err := New(f.sim, f.pde)
			require.NoError(t, err)
			require.NoError(t, adv.Apply(field.StateNew, 0.1))

			for _, v := range adv.Fluxes(0)[0].ValidValues(0) {
				assert.InDelta(t, 0.5*6, v, 1e-12)
			}
			for _, v := range f.pde.Field(f.pde.Conv).Level(0, field.StateNew).ValidValues(0) {
				assert.InDelta(t, 0, v, 1e-12)
			}
		})
	}
}

func TestSourceTermPredictor(t *testing.T) {
	n := amr.IntVect{4, 4, 4}
	f := newFixture(t, "incflo.godunov_type = ppm\n", zap.NewNop(), n, [3]bool{true, true, true}, false)
	f.setUMAC([3]float64{1, 0, 0})
	f.setDOF(func(i, j, k int) float64 { return 1 })
	f.pde.Field(f.pde.Src).Level(0, field.StateNew).SetVal(2)

	adv, err := New(f.sim, f.pde)
	require.NoError(t, err)
	const dt = 0.5
	require.NoError(t, adv.Apply(field.StateNew, dt))
	for _, v := range adv.Fluxes(0)[0].ValidValues(0) {
		assert.InDelta(t, 1+0.5*dt*2, v, 1e-12)
	}
}

func TestSourceTermPredictorAtCoarseFineInterface(t *testing.T) {
	cfg, err := config.FromString("incflo.godunov_type = ppm\n")
	require.NoError(t, err)
	geom := amr.Geometry{
		Domain:   amr.NewBox(amr.IntVect{}, amr.IntVect{7, 3, 3}),
		ProbHi:   [3]float64{8, 4, 4},
		Periodic: [3]bool{true, true, true},
	}
	mesh := amr.NewHierarchy(geom, amr.IntVect{4, 4, 4}, 2)
	mesh.AddLevel(amr.BoxArray{amr.NewBox(amr.IntVect{4, 0, 0}, amr.IntVect{11, 7, 7})})
	sim := core.NewSim(cfg, zap.NewNop(), mesh, nil)
	rho, err := sim.Repo.Declare(field.DensityName, 1, 3, field.CellCentered, field.StateOld)
	require.NoError(t, err)
	rho.SetVal(1)
	dof, err := sim.Repo.Declare("temperature", 1, 3, field.CellCentered, field.StateOld)
	require.NoError(t, err)
	dof.SetVal(1)
	pde, err := field.NewPDEFields(sim.Repo, "temperature", dof, field.ScalarEquation, false)
	require.NoError(t, err)
	pde.Field(pde.UMAC[0]).SetVal(1)

	// both levels carry src = 2 in their valid cells only
	src := pde.Field(pde.Src)
	for lev := 0; lev < mesh.NumLevels(); lev++ {
		mf := src.Level(lev, field.StateNew)
		mf.SetVal(0)
		mf.ForEachValid(func(_ int, fab amr.FArray, i, j, k int) { fab.Set(i, j, k, 0, 2) })
	}

	adv, err := New(sim, pde)
	require.NoError(t, err)
	const dt = 0.5
	require.NoError(t, adv.Apply(field.StateNew, dt))

	// the face at i = 4 takes its upwind state from a coarse-filled ghost
	fine := adv.Fluxes(1)[0]
	fine.ForEachValid(func(_ int, fab amr.FArray, i, j, k int) {
		assert.InDelta(t, 1+0.5*dt*2, fab.At(i, j, k, 0), 1e-12, "face (%d,%d,%d)", i, j, k)
	})
}
