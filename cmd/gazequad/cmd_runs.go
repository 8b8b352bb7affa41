package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gazelab/gazequad/internal/results"
	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs <experiment-dir>",
	Short: "List the recorded runs of an experiment, best first",
	Long: `Reads results.db of an experiment, e.g.

  gazequad runs gaze_3m_7d_14hr_5min`,
	Args: cobra.ExactArgs(1),
	RunE: runRuns,
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var path = filepath.Join(cfg.LogDir, args[0], results.DBName)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no results for experiment %s: %w", args[0], err)
	}
	store, err := results.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := store.List(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printResults(cmd.OutOrStdout(), res)
}
