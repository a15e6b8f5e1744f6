package field

import (
	"math"

	"github.com/notargets/AMRKernel/amr"
)

// Gradient returns the gradient of component n at cell (i,j,k): central
// differences in the interior, one-sided next to non-periodic domain faces.
// Ghost cells one deep must be filled.
func Gradient(fab amr.FArray, geom amr.Geometry, i, j, k, n int) [amr.SpaceDim]float64 {
	dx := geom.CellSize()
	dom := geom.Domain
	iv := amr.IntVect{i, j, k}
	var g [amr.SpaceDim]float64
	for d := 0; d < amr.SpaceDim; d++ {
		e := amr.Unit(d)
		lo, hi := 1, 1
		if !geom.Periodic[d] {
			if iv[d] <= dom.Lo[d] {
				lo = 0
			}
			if iv[d] >= dom.Hi[d] {
				hi = 0
			}
		}
		if lo+hi == 0 {
			continue
		}
		qp := fab.At(i+hi*e[0], j+hi*e[1], k+hi*e[2], n)
		qm := fab.At(i-lo*e[0], j-lo*e[1], k-lo*e[2], n)
		g[d] = (qp - qm) / (float64(lo+hi) * dx[d])
	}
	return g
}

// VelocityGradient returns g[a][b] = d u_a / d x_b.
func VelocityGradient(vel amr.FArray, geom amr.Geometry, i, j, k int) [amr.SpaceDim][amr.SpaceDim]float64 {
	var g [amr.SpaceDim][amr.SpaceDim]float64
	for a := 0; a < amr.SpaceDim; a++ {
		g[a] = Gradient(vel, geom, i, j, k, a)
	}
	return g
}

// VorticityMag returns |curl u|.
func VorticityMag(g [amr.SpaceDim][amr.SpaceDim]float64) float64 {
	wx := g[2][1] - g[1][2]
	wy := g[0][2] - g[2][0]
	wz := g[1][0] - g[0][1]
	return math.Sqrt(wx*wx + wy*wy + wz*wz)
}

// StrainRateMag returns sqrt(2 S_ij S_ij).
func StrainRateMag(g [amr.SpaceDim][amr.SpaceDim]float64) float64 {
	sum := 0.0
	for a := 0; a < amr.SpaceDim; a++ {
		for b := 0; b < amr.SpaceDim; b++ {
			s := 0.5 * (g[a][b] + g[b][a])
			sum += s * s
		}
	}
	return math.Sqrt(2 * sum)
}
