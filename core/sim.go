// Package core holds the simulation context handed to every model created
// through a registry.
package core

import (
	"go.uber.org/zap"

	"github.com/notargets/AMRKernel/amr"
	"github.com/notargets/AMRKernel/config"
	"github.com/notargets/AMRKernel/field"
	"github.com/notargets/AMRKernel/runner"
)

// SimTime tracks the time integration state.
type SimTime struct {
	Time   float64
	DeltaT float64
	Step   int
}

// Advance moves to the next step.
func (t *SimTime) Advance(dt float64) {
	t.DeltaT = dt
	t.Time += dt
	t.Step++
}

// Sim bundles the collaborators a model binds to at construction.
type Sim struct {
	Config *config.Config
	Logger *zap.Logger
	Mesh   *amr.Hierarchy
	Repo   *field.Repo
	Runner *runner.Runner
	Time   *SimTime
}

// NewSim wires a context over mesh. A nil logger is replaced by a no-op
// logger and a nil runner by a single-worker host runner.
func NewSim(cfg *config.Config, logger *zap.Logger, mesh *amr.Hierarchy, rn *runner.Runner) *Sim {
	if cfg == nil {
		cfg = config.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if rn == nil {
		rn = runner.New(runner.NewHostLauncher(runner.DefaultTileSize, 1), logger)
	}
	return &Sim{
		Config: cfg,
		Logger: logger,
		Mesh:   mesh,
		Repo:   field.NewRepo(mesh),
		Runner: rn,
		Time:   &SimTime{},
	}
}
