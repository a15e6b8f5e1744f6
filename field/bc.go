package field

import (
	"fmt"
	"strings"

	"github.com/notargets/gocfd/utils"
)

// Orientation identifies one face of the domain: direction and side.
type Orientation int

const (
	XLo Orientation = iota
	YLo
	ZLo
	XHi
	YHi
	ZHi
	NumOrientations
)

var orientationNames = [NumOrientations]string{"xlo", "ylo", "zlo", "xhi", "yhi", "zhi"}

// Ori returns the orientation for direction d and side.
func Ori(d int, high bool) Orientation {
	if high {
		return Orientation(d + 3)
	}
	return Orientation(d)
}

// Dir returns the normal direction.
func (o Orientation) Dir() int { return int(o) % 3 }

// IsHigh reports whether the face is on the high side.
func (o Orientation) IsHigh() bool { return o >= XHi }

func (o Orientation) String() string {
	if o < 0 || o >= NumOrientations {
		return fmt.Sprintf("Orientation(%d)", int(o))
	}
	return orientationNames[o]
}

// BC is the boundary-condition record of one domain face.
type BC struct {
	Type  utils.BCType
	Value []float64
}

// bcAliases holds the input-file spellings of incompressible-flow decks that
// gocfd does not know. They are looked up before utils.BCNameMap.
var bcAliases = map[string]utils.BCType{
	"mass_inflow":      utils.BCMassFlowInlet,
	"pressure_inflow":  utils.BCInflow,
	"pressure_outflow": utils.BCPressureOutlet,
	"no_slip_wall":     utils.BCWall,
	"zero_gradient":    utils.BCNeumann,
	"fixed_gradient":   utils.BCNeumann,
}

// ParseBCType converts a configured boundary name. Unlike utils.ParseBCName it
// does not default unknown names to a wall.
func ParseBCType(name string) (utils.BCType, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if bc, ok := bcAliases[key]; ok {
		return bc, nil
	}
	if _, ok := utils.BCNameMap[key]; !ok {
		return utils.BCNone, fmt.Errorf("unknown boundary type %q", name)
	}
	return utils.ParseBCName(key), nil
}

// IsDirichlet reports whether the face value is prescribed: ghost cells hold
// the boundary value and advective fluxes use it directly.
func IsDirichlet(t utils.BCType) bool {
	switch t {
	case utils.BCInflow, utils.BCVelocityInlet, utils.BCMassFlowInlet,
		utils.BCDirichlet, utils.BCWall, utils.BCMovingWall, utils.BCIsothermal:
		return true
	}
	return false
}

// IsInflow reports whether the face admits a profiled inflow.
func IsInflow(t utils.BCType) bool {
	switch t {
	case utils.BCInflow, utils.BCVelocityInlet, utils.BCMassFlowInlet:
		return true
	}
	return false
}

// DirichletOp computes prescribed boundary values at a face-center coordinate.
type DirichletOp interface {
	Value(ori Orientation, bc BC, x [3]float64, time float64, out []float64)
}
