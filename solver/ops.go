package solver

import (
	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/field"
	"github.com/notargets/AMRKernel/runner"
)

func macKernel(d int, geom amr.Geometry, vel *field.Field, cell, face amr.FArray) runner.Kernel {
	dom := geom.Domain
	e := amr.Unit(d)
	loDirichlet := !geom.Periodic[d] && field.IsDirichlet(vel.BCType(field.Ori(d, false)))
	hiDirichlet := !geom.Periodic[d] && field.IsDirichlet(vel.BCType(field.Ori(d, true)))
	return runner.Kernel{
		Name: "mac_velocity",
		Host: func(i, j, k, _ int) {
			iv := amr.IntVect{i, j, k}
			uL := cell.At(i-e[0], j-e[1], k-e[2], d)
			uR := cell.At(i, j, k, d)
			switch {
			case loDirichlet && iv[d] == dom.Lo[d]:
				face.Set(i, j, k, 0, uL)
			case hiDirichlet && iv[d] == dom.Hi[d]+1:
				face.Set(i, j, k, 0, uR)
			default:
				face.Set(i, j, k, 0, 0.5*(uL+uR))
			}
		},
	}
}

// updateKernel is the explicit update of one box. The diffusive term is
// div((laminar + turbulent mu_t) grad q) with face coefficients averaged
// from the neighboring cells.
type updateKernel struct {
	dt        float64
	weighted  bool
	laminar   float64
	turbulent float64
	dx        [amr.SpaceDim]float64

	qOld, qNew amr.FArray
	conv, src  amr.FArray
	rho, mu    amr.FArray
}

func (u updateKernel) coeff(i, j, k int) float64 {
	return u.laminar + u.turbulent*u.mu.At(i, j, k, 0)
}

func (u updateKernel) apply(i, j, k, n int) {
	q := u.qOld.At(i, j, k, n)
	kc := u.coeff(i, j, k)
	diff := 0.0
	if u.laminar != 0 || u.turbulent != 0 {
		for d := 0; d < amr.SpaceDim; d++ {
			e := amr.Unit(d)
			ip, jp, kp := i+e[0], j+e[1], k+e[2]
			im, jm, km := i-e[0], j-e[1], k-e[2]
			kHi := 0.5 * (kc + u.coeff(ip, jp, kp))
			kLo := 0.5 * (kc + u.coeff(im, jm, km))
			fHi := kHi * (u.qOld.At(ip, jp, kp, n) - q)
			fLo := kLo * (q - u.qOld.At(im, jm, km, n))
			diff += (fHi - fLo) / (u.dx[d] * u.dx[d])
		}
	}
	rho := u.rho.At(i, j, k, 0)
	conv := u.conv.At(i, j, k, n)
	if u.weighted {
		conv /= rho
	}
	u.qNew.Set(i, j, k, n, q+u.dt*(conv+u.src.At(i, j, k, n)+diff/rho))
}
