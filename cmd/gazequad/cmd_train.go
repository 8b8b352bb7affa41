package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/gazelab/gazequad/internal/config"
	"github.com/gazelab/gazequad/internal/results"
	"github.com/gazelab/gazequad/internal/sweep"
	"github.com/spf13/cobra"
)

var (
	epochs       int
	batchSize    int
	threads      int
	seed         int64
	learningRate float64
	optimizer    string
	parallel     int
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train one model with the configured parameters",
	Long: `Trains a single run with the train section of the config file. The
hyperparams section is ignored; use sweep to train every combination.

Each training thread keeps its own copy of the weight deltas, about 400 MB
for the default topology, so memory grows linearly with --threads.`,
	Args: cobra.NoArgs,
	RunE: runTrain,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Train one model per hyperparameter combination",
	Long: `Enumerates every combination of the hyperparams section, shuffles the
runs and trains them. Results are written to results.db in the experiment
log directory and printed best first.

Each training thread keeps its own copy of the weight deltas, about 400 MB
for the default topology, so memory grows with --threads times --parallel.`,
	Args: cobra.NoArgs,
	RunE: runSweepCmd,
}

func init() {
	for _, cmd := range []*cobra.Command{trainCmd, sweepCmd} {
		cmd.Flags().IntVar(&epochs, "epochs", 0, "Number of epochs")
		cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Mini-batch size")
		cmd.Flags().IntVar(&threads, "threads", 0, "Number of training threads per run (default: min(CPUs, 4))")
		cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for run order, init and shuffling")
		cmd.Flags().Float64Var(&learningRate, "learning-rate", 0, "Optimizer learning rate")
		cmd.Flags().StringVar(&optimizer, "optimizer", "", "Optimizer: rmsprop or adam")
	}
	sweepCmd.Flags().IntVar(&parallel, "parallel", 1, "Number of runs trained at the same time")
}

// applyTrainFlags overrides the config's training parameters with the
// flags set on cmd.
func applyTrainFlags(cmd *cobra.Command, cfg *config.Config) {
	var flags = cmd.Flags()
	if flags.Changed("epochs") {
		cfg.Train.Epochs = epochs
	}
	if flags.Changed("batch-size") {
		cfg.Train.BatchSize = batchSize
	}
	if flags.Changed("threads") {
		cfg.Train.Threads = threads
	}
	if flags.Changed("seed") {
		cfg.Train.Seed = seed
	}
	if flags.Changed("learning-rate") {
		cfg.Train.LearningRate = learningRate
	}
	if flags.Changed("optimizer") {
		cfg.Train.Optimizer = optimizer
	}
}

func prepareExperiment(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	applyTrainFlags(cmd, cfg)
	if err := cfg.BuildDatasetConfig(); err != nil {
		return nil, err
	}
	if err := cfg.BuildExperimentConfig(time.Now()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg, err := prepareExperiment(cmd)
	if err != nil {
		return err
	}
	cfg.BuildHyperparameterConfig(nil)
	return runSweep(cmd, cfg, 1)
}

func runSweepCmd(cmd *cobra.Command, args []string) error {
	cfg, err := prepareExperiment(cmd)
	if err != nil {
		return err
	}
	return runSweep(cmd, cfg, parallel)
}

func runSweep(cmd *cobra.Command, cfg *config.Config, parallel int) error {
	var runner = &sweep.Runner{
		Config:   cfg,
		Logger:   logger,
		Metrics:  startMetrics(cmd.Context()),
		Parallel: parallel,
		Verbose:  verbose,
	}
	res, err := runner.Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "experiment %s\n", cfg.ExperimentDir)
	return printResults(cmd.OutOrStdout(), res)
}

func printResults(w io.Writer, res []results.RunResult) error {
	var tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tERROR\tCOST\tBEST EPOCH\tCHECKPOINT")
	for _, r := range res {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%d/%d\t%s\n",
			r.RunName, r.ValidationErr, r.ValidationCost, r.BestEpoch, r.Epochs, r.Checkpoint)
	}
	return tw.Flush()
}
