// Package postproc runs the post-processing modules named in the input file
// after every time step.
package postproc

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/notargets/AMRKernel/core"
	"github.com/notargets/AMRKernel/registry"
)

// Module is one post-processing task.
type Module interface {
	Initialize() error
	PostAdvanceWork() error
}

// Args are passed to module factories. Label is the module's input namespace.
type Args struct {
	Sim   *core.Sim
	Label string
}

// Modules holds the post-processing factories.
var Modules = registry.New[Module, Args]("post-processing")

var registerOnce sync.Once

// RegisterBuiltins adds FieldNorms and Conservation.
func RegisterBuiltins() {
	registerOnce.Do(func() {
		Modules.Register("FieldNorms", newFieldNorms)
		Modules.Register("Conservation", newConservation)
	})
}

// Manager owns the modules listed in incflo.post_processing.
type Manager struct {
	sim     *core.Sim
	labels  []string
	modules []Module
}

// NewManager returns an empty manager.
func NewManager(sim *core.Sim) *Manager {
	return &Manager{sim: sim}
}

// Initialize creates every module listed in incflo.post_processing (or the
// older io.post_processing) using <label>.type, initializes them in order and
// runs one PostAdvanceWork pass.
func (m *Manager) Initialize() error {
	m.labels = m.sim.Config.Sub("incflo").Strings("post_processing")
	if m.labels == nil {
		m.labels = m.sim.Config.Sub("io").Strings("post_processing")
	}
	m.modules = make([]Module, 0, len(m.labels))
	for _, label := range m.labels {
		typ := m.sim.Config.Sub(label).String("type", "")
		if typ == "" {
			return fmt.Errorf("post-processing %s: %s.type is required", label, label)
		}
		mod, err := Modules.Create(typ, Args{Sim: m.sim, Label: label})
		if err != nil {
			return fmt.Errorf("post-processing %s: %w", label, err)
		}
		m.modules = append(m.modules, mod)
		m.sim.Logger.Info("post-processing module", zap.String("label", label), zap.String("type", typ))
	}
	for _, mod := range m.modules {
		if err := mod.Initialize(); err != nil {
			return err
		}
	}
	return m.PostAdvanceWork()
}

// PostAdvanceWork runs every module once, in order. The first error is
// returned as is.
func (m *Manager) PostAdvanceWork() error {
	for _, mod := range m.modules {
		if err := mod.PostAdvanceWork(); err != nil {
			return err
		}
	}
	return nil
}

// Labels returns the module labels in execution order.
func (m *Manager) Labels() []string { return m.labels }

// Module returns the module created for label, or nil.
func (m *Manager) Module(label string) Module {
	for i, l := range m.labels {
		if l == label && i < len(m.modules) {
			return m.modules[i]
		}
	}
	return nil
}
