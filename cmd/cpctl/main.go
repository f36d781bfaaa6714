package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load(".env")

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cpctl",
		Short: "Conformal prediction experiments and prediction API",
		Long: `Run inductive, transductive and multi-probabilistic conformal predictors on
seeded synthetic data or a CSV/XLSX file, report validity and efficiency
measures, and serve calibrated predictors over HTTP.

Engine settings come from CP_* environment variables (optionally from .env).`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newExperimentCmd("icc", "Inductive conformal classifier", runICC),
		newExperimentCmd("tcc", "Transductive conformal classifier", runTCC),
		newExperimentCmd("mpc", "Multi-probabilistic classifier over an inductive classifier", runMPC),
		newExperimentCmd("icr", "Inductive conformal regressor", runICR),
		newServeCmd(),
		newSnapshotsCmd(),
	)
	return rootCmd
}
