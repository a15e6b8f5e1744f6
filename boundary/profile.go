// Package boundary provides inflow profiles evaluated at domain faces and the
// operator that composes them with constant wall values.
package boundary

import (
	"fmt"
	"math"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/config"
)

// Profile computes a per-component Dirichlet value from a face-center
// coordinate. Implementations are pure.
type Profile interface {
	Value(x [amr.SpaceDim]float64, out []float64)
}

// Params parameterize a height profile along one axis.
type Params struct {
	Axis    int
	ZMin    float64
	ZMax    float64
	Floor   []float64
	Ceiling []float64
}

// Validate checks the invariants for an ncomp-component field.
func (p Params) Validate(ncomp int) error {
	if p.Axis < 0 || p.Axis >= amr.SpaceDim {
		return fmt.Errorf("profile direction %d out of range", p.Axis)
	}
	if !(p.ZMin < p.ZMax) {
		return fmt.Errorf("profile start %g must be below end %g", p.ZMin, p.ZMax)
	}
	if len(p.Floor) != ncomp || len(p.Ceiling) != ncomp {
		return fmt.Errorf("profile needs %d start and end values, got %d and %d",
			ncomp, len(p.Floor), len(p.Ceiling))
	}
	return nil
}

// eta returns the normalized height clamped to [0, 1].
func (p Params) eta(z float64) float64 {
	switch {
	case z < p.ZMin:
		return 0
	case z > p.ZMax:
		return 1
	}
	return (z - p.ZMin) / (p.ZMax - p.ZMin)
}

// ParamsFromConfig reads direction, start, end, start_val and end_val.
func ParamsFromConfig(ns config.Namespace, ncomp int) (Params, error) {
	var p Params
	var err error
	if p.Axis, err = ns.Int("direction", 2); err != nil {
		return p, err
	}
	if p.ZMin, err = ns.Float("start", 0); err != nil {
		return p, err
	}
	if p.ZMax, err = ns.Float("end", 1); err != nil {
		return p, err
	}
	if p.Floor, err = ns.Floats("start_val"); err != nil {
		return p, err
	}
	if p.Ceiling, err = ns.Floats("end_val"); err != nil {
		return p, err
	}
	if err = p.Validate(ncomp); err != nil {
		return p, fmt.Errorf("%s: %w", ns.Prefix(), err)
	}
	return p, nil
}

// LinearProfile interpolates linearly between floor and ceiling.
type LinearProfile struct {
	Params
}

func (lp LinearProfile) Value(x [amr.SpaceDim]float64, out []float64) {
	eta := lp.eta(x[lp.Axis])
	for n := range out {
		out[n] = lp.Floor[n] + (lp.Ceiling[n]-lp.Floor[n])*eta
	}
}

// PowerLawProfile follows floor + (ceiling-floor)*eta^Exponent.
type PowerLawProfile struct {
	Params
	Exponent float64
}

func (pp PowerLawProfile) Value(x [amr.SpaceDim]float64, out []float64) {
	eta := math.Pow(pp.eta(x[pp.Axis]), pp.Exponent)
	for n := range out {
		out[n] = pp.Floor[n] + (pp.Ceiling[n]-pp.Floor[n])*eta
	}
}
