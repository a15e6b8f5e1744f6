package solver

import (
	"sync"

	"github.com/notargets/AMRKernel/boundary"
	"github.com/notargets/AMRKernel/postproc"
	"github.com/notargets/AMRKernel/source"
	"github.com/notargets/AMRKernel/tagging"
	"github.com/notargets/AMRKernel/turbulence"
)

var registerOnce sync.Once

// RegisterBuiltins populates every model registry in a fixed order and seals
// them. It must run before the first lookup; later calls are no-ops.
func RegisterBuiltins() {
	registerOnce.Do(func() {
		boundary.RegisterBuiltins()
		turbulence.RegisterBuiltins()
		source.RegisterBuiltins()
		tagging.RegisterBuiltins()
		postproc.RegisterBuiltins()

		boundary.Profiles.Seal()
		turbulence.Models.Seal()
		source.Terms.Seal()
		tagging.Criteria.Seal()
		postproc.Modules.Seal()
	})
}

// Capabilities returns the registered names per model capability, in
// registration order of the capabilities.
func Capabilities() []Capability {
	RegisterBuiltins()
	return []Capability{
		{Name: boundary.Profiles.Capability(), Variants: boundary.Profiles.Names()},
		{Name: turbulence.Models.Capability(), Variants: turbulence.Models.Names()},
		{Name: source.Terms.Capability(), Variants: source.Terms.Names()},
		{Name: tagging.Criteria.Capability(), Variants: tagging.Criteria.Names()},
		{Name: postproc.Modules.Capability(), Variants: postproc.Modules.Names()},
	}
}

// Capability lists the variants of one registry.
type Capability struct {
	Name     string
	Variants []string
}
