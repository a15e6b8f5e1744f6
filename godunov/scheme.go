package godunov

import (
	"fmt"
	"math"
	"strings"
)

// Scheme selects the face reconstruction.
type Scheme int

const (
	PLM Scheme = iota
	PPM
	PPMNoLim
	WENO
)

var schemeNames = map[string]Scheme{
	"plm":       PLM,
	"ppm":       PPM,
	"ppm_nolim": PPMNoLim,
	"weno":      WENO,
}

// SchemeFromString parses a scheme name, ignoring case. ok is false for
// unrecognized names, in which case PPM is returned.
func SchemeFromString(s string) (Scheme, bool) {
	sc, ok := schemeNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return PPM, false
	}
	return sc, true
}

func (s Scheme) String() string {
	switch s {
	case PLM:
		return "plm"
	case PPM:
		return "ppm"
	case PPMNoLim:
		return "ppm_nolim"
	case WENO:
		return "weno"
	}
	return fmt.Sprintf("Scheme(%d)", int(s))
}

// StencilWidth is the number of ghost cells the scheme reads beyond a box.
func (s Scheme) StencilWidth() int {
	if s == PLM {
		return 2
	}
	return 3
}

// halfWidth is the reach of one cell's reconstruction.
func (s Scheme) halfWidth() int { return s.StencilWidth() - 1 }

// edges reconstructs the left (sm) and right (sp) edge values of the center
// cell v[2]. Only v[2-halfWidth..2+halfWidth] are read.
func (s Scheme) edges(v *[5]float64) (sm, sp float64) {
	switch s {
	case PLM:
		dq := mcSlope(v[1], v[2], v[3])
		return v[2] - 0.5*dq, v[2] + 0.5*dq
	case PPMNoLim:
		sp = 7.0/12.0*(v[2]+v[3]) - 1.0/12.0*(v[1]+v[4])
		sm = 7.0/12.0*(v[1]+v[2]) - 1.0/12.0*(v[0]+v[3])
		return sm, sp
	case WENO:
		sp = wenoZ(v[0], v[1], v[2], v[3], v[4])
		sm = wenoZ(v[4], v[3], v[2], v[1], v[0])
		return sm, sp
	}
	sm = ppmEdge(v[0], v[1], v[2], v[3])
	sp = ppmEdge(v[1], v[2], v[3], v[4])
	return ppmLimit(v[2], sm, sp)
}

// curvature returns the parabola coefficient of the cell; zero for the
// linear reconstruction.
func (s Scheme) curvature(q, sm, sp float64) float64 {
	if s == PLM {
		return 0
	}
	return 6*q - 3*(sm+sp)
}

// traceHi predicts the right-edge value averaged over the domain of dependence
// of a face crossed with CFL number sigma >= 0 in half a step.
func traceHi(sm, sp, q6, sigma float64) float64 {
	return sp - 0.5*sigma*(sp-sm-(1-2*sigma/3)*q6)
}

// traceLo is traceHi for the left edge.
func traceLo(sm, sp, q6, sigma float64) float64 {
	return sm + 0.5*sigma*(sp-sm+(1-2*sigma/3)*q6)
}

// mcSlope is the monotonized-central limited slope of b.
func mcSlope(a, b, c float64) float64 {
	dl := b - a
	dr := c - b
	if dl*dr <= 0 {
		return 0
	}
	dc := 0.5 * (dl + dr)
	lim := 2 * math.Min(math.Abs(dl), math.Abs(dr))
	return math.Copysign(math.Min(lim, math.Abs(dc)), dc)
}

// ppmEdge interpolates the edge between b and c and bounds it by them.
func ppmEdge(a, b, c, d float64) float64 {
	e := 0.5*(b+c) - (mcSlope(b, c, d)-mcSlope(a, b, c))/6
	lo, hi := math.Min(b, c), math.Max(b, c)
	return math.Max(lo, math.Min(hi, e))
}

// ppmLimit applies the Colella-Woodward monotonicity constraint.
func ppmLimit(q, sm, sp float64) (float64, float64) {
	switch {
	case (sp-q)*(q-sm) <= 0:
		return q, q
	case math.Abs(sp-q) >= 2*math.Abs(sm-q):
		sp = 3*q - 2*sm
	case math.Abs(sm-q) >= 2*math.Abs(sp-q):
		sm = 3*q - 2*sp
	}
	return sm, sp
}

const wenoEps = 1e-6

// wenoZ returns the fifth-order WENO-Z value at the right edge of v3.
func wenoZ(v1, v2, v3, v4, v5 float64) float64 {
	b1 := 13.0/12.0*sq(v1-2*v2+v3) + 0.25*sq(v1-4*v2+3*v3)
	b2 := 13.0/12.0*sq(v2-2*v3+v4) + 0.25*sq(v2-v4)
	b3 := 13.0/12.0*sq(v3-2*v4+v5) + 0.25*sq(3*v3-4*v4+v5)
	tau := math.Abs(b1 - b3)

	a1 := 0.1 * (1 + sq(tau/(b1+wenoEps)))
	a2 := 0.6 * (1 + sq(tau/(b2+wenoEps)))
	a3 := 0.3 * (1 + sq(tau/(b3+wenoEps)))

	p1 := (2*v1 - 7*v2 + 11*v3) / 6
	p2 := (-v2 + 5*v3 + 2*v4) / 6
	p3 := (2*v3 + 5*v4 - v5) / 6
	return (a1*p1 + a2*p2 + a3*p3) / (a1 + a2 + a3)
}

func sq(x float64) float64 { return x * x }
