package runner

import (
	"fmt"
	"strings"

	"github.com/notargets/AMRKernel/amr"
)

// ElementFunc is the body of an elementwise kernel, called once per
// (i,j,k,component) of the launch box.
type ElementFunc func(i, j, k, n int)

// Kernel is one elementwise operation. Host is always required; Device is an
// optional OKL body used by device launchers.
type Kernel struct {
	Name   string
	Host   ElementFunc
	Device *DeviceSpec
}

// DeviceSpec is the immutable parameter set of a device launch. The kernel
// named after Kernel.Name receives its arguments in a fixed order:
//
//	const int n, In[0..], Out[0..], Scalars[0..]
//
// where n is the flat index range (points * components). Out slices are
// copied back to the host after the launch barrier.
type DeviceSpec struct {
	Source  string
	In      [][]float64
	Out     [][]float64
	Scalars []interface{}
}

// Preamble returns the type definitions prepended to every device kernel.
func Preamble() string {
	var sb strings.Builder
	sb.WriteString("typedef double real_t;\n")
	sb.WriteString("typedef int int_t;\n")
	sb.WriteString("#define REAL_ZERO 0.0\n")
	sb.WriteString("#define REAL_ONE 1.0\n")
	sb.WriteString(fmt.Sprintf("#define SPACEDIM %d\n", amr.SpaceDim))
	sb.WriteString("\n")
	return sb.String()
}

func (k Kernel) validate() error {
	if k.Name == "" {
		return fmt.Errorf("kernel has no name")
	}
	if k.Host == nil {
		return fmt.Errorf("kernel %s has no host body", k.Name)
	}
	return nil
}

// runHost executes the host body over bx, component-major.
func (k Kernel) runHost(bx amr.Box, ncomp int) {
	for n := 0; n < ncomp; n++ {
		bx.ForEach(func(i, j, kk int) { k.Host(i, j, kk, n) })
	}
}
