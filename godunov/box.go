package godunov

import (
	"fmt"

	"github.com/notargets/gocfd/utils"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/field"
	"github.com/notargets/AMRKernel/runner"
)

// boxAdvection is the per-box work of one Apply.
type boxAdvection struct {
	a     *Advection
	bx    amr.Box
	geom  amr.Geometry
	ncomp int
	dt    float64

	q    amr.FArray // cell data, possibly density weighted
	src  amr.FArray
	conv amr.FArray
	tmp  amr.FArray // ncomp*numSlots over bx grown by one
	umac [amr.SpaceDim]amr.FArray
	flux [amr.SpaceDim]amr.FArray

	bcType func(field.Orientation) utils.BCType
}

func (ba *boxAdvection) slot(s, n int) int { return s*ba.ncomp + n }

func (ba *boxAdvection) run(r *runner.Runner) error {
	for d := 0; d < amr.SpaceDim; d++ {
		if err := r.ParallelFor(ba.bx.GrowDir(d, 1), ba.ncomp, ba.edgeKernel(d)); err != nil {
			return err
		}
	}
	for d := 0; d < amr.SpaceDim; d++ {
		if err := r.ParallelFor(ba.bx.SurroundingNodes(d), ba.ncomp, ba.faceKernel(d)); err != nil {
			return err
		}
	}
	return r.ParallelFor(ba.bx, ba.ncomp, ba.convKernel())
}

// edgeKernel reconstructs sm and sp of every cell in direction d. Cells whose
// stencil reaches past a non-periodic domain face are held constant.
func (ba *boxAdvection) edgeKernel(d int) runner.Kernel {
	scheme := ba.a.scheme
	hw := scheme.halfWidth()
	dom := ba.geom.Domain
	periodic := ba.geom.Periodic[d]
	e := amr.Unit(d)
	return runner.Kernel{
		Name: fmt.Sprintf("godunov_edges_%d", d),
		Host: func(i, j, k, n int) {
			iv := amr.IntVect{i, j, k}
			qc := ba.q.At(i, j, k, n)
			sm, sp := qc, qc
			if periodic || (iv[d]-hw >= dom.Lo[d] && iv[d]+hw <= dom.Hi[d]) {
				var v [5]float64
				for o := -hw; o <= hw; o++ {
					v[2+o] = ba.q.At(i+o*e[0], j+o*e[1], k+o*e[2], n)
				}
				sm, sp = scheme.edges(&v)
			}
			ba.tmp.Set(i, j, k, ba.slot(slotEdges+2*d+edgeSlotLo, n), sm)
			ba.tmp.Set(i, j, k, ba.slot(slotEdges+2*d+edgeSlotHi, n), sp)
		},
	}
}

// faceKernel predicts both face states to the half step, selects the upwind
// one and stores the state and the flux of every face normal to d.
func (ba *boxAdvection) faceKernel(d int) runner.Kernel {
	scheme := ba.a.scheme
	dom := ba.geom.Domain
	periodic := ba.geom.Periodic[d]
	lo := ba.bcType(field.Ori(d, false))
	hi := ba.bcType(field.Ori(d, true))
	dtdx := ba.dt / ba.geom.CellSize()[d]
	halfDt := 0.5 * ba.dt
	e := amr.Unit(d)
	return runner.Kernel{
		Name: fmt.Sprintf("godunov_faces_%d", d),
		Host: func(i, j, k, n int) {
			il, jl, kl := i-e[0], j-e[1], k-e[2]
			u := ba.umac[d].At(i, j, k, 0)

			qL := ba.q.At(il, jl, kl, n)
			smL := ba.tmp.At(il, jl, kl, ba.slot(slotEdges+2*d+edgeSlotLo, n))
			spL := ba.tmp.At(il, jl, kl, ba.slot(slotEdges+2*d+edgeSlotHi, n))
			stL := traceHi(smL, spL, scheme.curvature(qL, smL, spL), max(u, 0)*dtdx) +
				halfDt*ba.src.At(il, jl, kl, n)

			qR := ba.q.At(i, j, k, n)
			smR := ba.tmp.At(i, j, k, ba.slot(slotEdges+2*d+edgeSlotLo, n))
			spR := ba.tmp.At(i, j, k, ba.slot(slotEdges+2*d+edgeSlotHi, n))
			stR := traceLo(smR, spR, scheme.curvature(qR, smR, spR), max(-u, 0)*dtdx) +
				halfDt*ba.src.At(i, j, k, n)

			f := amr.IntVect{i, j, k}[d]
			var st float64
			switch {
			case !periodic && f == dom.Lo[d]:
				st = stR
				if field.IsDirichlet(lo) {
					st = qL
				}
			case !periodic && f == dom.Hi[d]+1:
				st = stL
				if field.IsDirichlet(hi) {
					st = qR
				}
			case u > smallVel:
				st = stL
			case u < -smallVel:
				st = stR
			default:
				st = 0.5 * (stL + stR)
			}
			fx := u * st
			ba.tmp.Set(i, j, k, ba.slot(slotState+d, n), st)
			ba.tmp.Set(i, j, k, ba.slot(slotFlux+d, n), fx)
			ba.flux[d].Set(i, j, k, n, fx)
		},
	}
}

// convKernel writes -(div F) for conservative components and
// -(div F - q div u) = -u.grad q for advective ones.
func (ba *boxAdvection) convKernel() runner.Kernel {
	dx := ba.geom.CellSize()
	iconserv := ba.a.iconserv
	return runner.Kernel{
		Name: "godunov_conv",
		Host: func(i, j, k, n int) {
			div, adv := 0.0, 0.0
			for d := 0; d < amr.SpaceDim; d++ {
				e := amr.Unit(d)
				ih, jh, kh := i+e[0], j+e[1], k+e[2]
				fL := ba.tmp.At(i, j, k, ba.slot(slotFlux+d, n))
				fR := ba.tmp.At(ih, jh, kh, ba.slot(slotFlux+d, n))
				sL := ba.tmp.At(i, j, k, ba.slot(slotState+d, n))
				sR := ba.tmp.At(ih, jh, kh, ba.slot(slotState+d, n))
				uL := ba.umac[d].At(i, j, k, 0)
				uR := ba.umac[d].At(ih, jh, kh, 0)
				div += (fR - fL) / dx[d]
				adv += 0.5 * (uL + uR) * (sR - sL) / dx[d]
			}
			ba.tmp.Set(i, j, k, ba.slot(slotDiv, n), div)
			ba.tmp.Set(i, j, k, ba.slot(slotAdv, n), adv)
			if iconserv[n] {
				ba.conv.Set(i, j, k, n, -div)
			} else {
				ba.conv.Set(i, j, k, n, -adv)
			}
		},
	}
}
