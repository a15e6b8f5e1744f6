package postproc

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/notargets/AMRKernel/core"
	"github.com/notargets/AMRKernel/field"
)

// sampler holds the options shared by the diagnostics:
//
//	<label>.fields           field names, default velocity
//	<label>.output_frequency steps between evaluations, default 1
type sampler struct {
	sim    *core.Sim
	label  string
	freq   int
	fields []*field.Field
}

func newSampler(a Args, defaultFields ...string) (sampler, error) {
	ns := a.Sim.Config.Sub(a.Label)
	s := sampler{sim: a.Sim, label: a.Label}
	var err error
	if s.freq, err = ns.Int("output_frequency", 1); err != nil {
		return s, err
	}
	if s.freq < 1 {
		return s, fmt.Errorf("%s.output_frequency must be positive, got %d", a.Label, s.freq)
	}
	names := ns.Strings("fields")
	if names == nil {
		names = defaultFields
	}
	for _, name := range names {
		f, err := a.Sim.Repo.Get(name)
		if err != nil {
			return s, fmt.Errorf("%s: %w", a.Label, err)
		}
		s.fields = append(s.fields, f)
	}
	return s, nil
}

func (s sampler) due() bool { return s.sim.Time.Step%s.freq == 0 }

// values returns the level-0 valid values of component n. Fine data is
// expected to have been averaged down.
func (s sampler) values(f *field.Field, n int) []float64 {
	return f.Level(0, field.StateNew).ValidValues(n)
}

// Norm is the result of one field component.
type Norm struct {
	Field string
	Comp  int
	L2    float64
	Max   float64
}

// FieldNorms logs the volume-weighted L2 norm and the max norm of every
// component of the configured fields.
type FieldNorms struct {
	sampler
	norms []Norm
}

func newFieldNorms(a Args) (Module, error) {
	s, err := newSampler(a, "velocity")
	if err != nil {
		return nil, err
	}
	return &FieldNorms{sampler: s}, nil
}

func (fn *FieldNorms) Initialize() error { return nil }

func (fn *FieldNorms) PostAdvanceWork() error {
	if !fn.due() {
		return nil
	}
	vol := fn.sim.Mesh.Level(0).Geom.CellVolume()
	fn.norms = fn.norms[:0]
	for _, f := range fn.fields {
		for n := 0; n < f.NComp(); n++ {
			vals := fn.values(f, n)
			nm := Norm{
				Field: f.Name(),
				Comp:  n,
				L2:    floats.Norm(vals, 2) * math.Sqrt(vol),
				Max:   floats.Norm(vals, math.Inf(1)),
			}
			fn.norms = append(fn.norms, nm)
			fn.sim.Logger.Info("field norms",
				zap.String("label", fn.label),
				zap.Int("step", fn.sim.Time.Step),
				zap.Float64("time", fn.sim.Time.Time),
				zap.String("field", nm.Field),
				zap.Int("comp", n),
				zap.Float64("l2", nm.L2),
				zap.Float64("max", nm.Max))
		}
	}
	return nil
}

// Norms returns the results of the last evaluation.
func (fn *FieldNorms) Norms() []Norm { return fn.norms }

// Integral is the conservation record of one field component.
type Integral struct {
	Field   string
	Comp    int
	Initial float64
	Current float64
	Mean    float64
	// Drift is (Current-Initial)/|Initial|, or the absolute change when the
	// initial integral is zero.
	Drift float64
}

// Conservation tracks the volume integral of every component of the
// configured fields against its value at initialization.
type Conservation struct {
	sampler
	results []Integral
}

func newConservation(a Args) (Module, error) {
	s, err := newSampler(a, "velocity")
	if err != nil {
		return nil, err
	}
	return &Conservation{sampler: s}, nil
}

func (c *Conservation) Initialize() error {
	vol := c.sim.Mesh.Level(0).Geom.CellVolume()
	c.results = c.results[:0]
	for _, f := range c.fields {
		for n := 0; n < f.NComp(); n++ {
			total := floats.Sum(c.values(f, n)) * vol
			c.results = append(c.results, Integral{Field: f.Name(), Comp: n, Initial: total})
		}
	}
	return nil
}

func (c *Conservation) PostAdvanceWork() error {
	if !c.due() {
		return nil
	}
	vol := c.sim.Mesh.Level(0).Geom.CellVolume()
	i := 0
	for _, f := range c.fields {
		for n := 0; n < f.NComp(); n++ {
			vals := c.values(f, n)
			r := &c.results[i]
			r.Current = floats.Sum(vals) * vol
			r.Mean = stat.Mean(vals, nil)
			r.Drift = r.Current - r.Initial
			if r.Initial != 0 {
				r.Drift /= math.Abs(r.Initial)
			}
			c.sim.Logger.Info("conservation",
				zap.String("label", c.label),
				zap.Int("step", c.sim.Time.Step),
				zap.String("field", r.Field),
				zap.Int("comp", n),
				zap.Float64("integral", r.Current),
				zap.Float64("mean", r.Mean),
				zap.Float64("drift", r.Drift))
			i++
		}
	}
	return nil
}

// Results returns one record per field component.
func (c *Conservation) Results() []Integral { return c.results }
