// Command amrkernel runs transport simulations described by an AMReX-style
// inputs file.
package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/notargets/AMRKernel/config"
	"github.com/notargets/AMRKernel/solver"
)

var (
	inputsFile string
	nsteps     int
	dt         float64
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "amrkernel",
		Short:        "block-structured AMR transport kernels",
		SilenceUsage: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "advance a simulation",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVarP(&inputsFile, "inputs", "i", "inputs", "inputs file")
	runCmd.Flags().IntVar(&nsteps, "steps", 10, "number of time steps")
	runCmd.Flags().Float64Var(&dt, "dt", 0, "fixed time step, 0 uses incflo.cfl")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list registered models",
		Args:  cobra.NoArgs,
		RunE:  listModels,
	}

	rootCmd.AddCommand(runCmd, listCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(inputsFile)
	if err != nil {
		logger.Fatal("reading inputs", zap.String("file", inputsFile), zap.Error(err))
	}
	s, err := solver.New(cfg, logger)
	if err != nil {
		logger.Fatal("setting up solver", zap.Error(err))
	}
	defer s.Free()

	if err := s.Evolve(nsteps, dt); err != nil {
		logger.Fatal("time integration", zap.Error(err))
	}
	logger.Info("run complete",
		zap.Int("steps", s.Sim.Time.Step),
		zap.Float64("time", s.Sim.Time.Time))
	return nil
}

func listModels(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CAPABILITY\tVARIANTS")
	for _, c := range solver.Capabilities() {
		fmt.Fprintf(w, "%s\t%s\n", c.Name, strings.Join(c.Variants, ", "))
	}
	return w.Flush()
}
