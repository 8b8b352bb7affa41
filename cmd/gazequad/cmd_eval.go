package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/gazelab/gazequad/internal/dataset"
	"github.com/gazelab/gazequad/internal/gaze"
	"github.com/gazelab/gazequad/internal/train"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	evalData       string
	evalThreads    int
	evalMaxSamples int
)

var evalCmd = &cobra.Command{
	Use:   "eval <checkpoint>",
	Short: "Measure a checkpoint's error on a labelled dataset",
	Args:  cobra.ExactArgs(1),
	RunE:  runEval,
}

var predictCmd = &cobra.Command{
	Use:   "predict <checkpoint> <image>...",
	Short: "Print the predicted quadrant of images",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runPredict,
}

func init() {
	evalCmd.Flags().StringVar(&evalData, "data", "", "Dataset folder (default: the configured dataset)")
	evalCmd.Flags().IntVar(&evalThreads, "threads", 0, "Number of decode and evaluation threads (default: all CPUs)")
	evalCmd.Flags().IntVar(&evalMaxSamples, "max-samples", 0, "Evaluate at most this many images")
}

func runEval(cmd *cobra.Command, args []string) error {
	model, err := gaze.Load(args[0])
	if err != nil {
		return err
	}
	var folder = evalData
	if folder == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.BuildDatasetConfig(); err != nil {
			return err
		}
		folder = cfg.DatasetPath
	}

	var threads = evalThreads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	var loader = &dataset.Loader{
		Shape:      model.Topology().Input,
		Threads:    threads,
		MaxSamples: evalMaxSamples,
		Logger:     logger,
	}
	samples, err := loader.Load(cmd.Context(), folder)
	if err != nil {
		return err
	}
	var eval = train.Evaluate(model, samples, threads)
	logger.Info("Evaluated checkpoint",
		zap.String("checkpoint", args[0]),
		zap.Int("samples", eval.Samples))
	fmt.Fprintf(cmd.OutOrStdout(), "samples %d cost %.4f error %.4f\n", eval.Samples, eval.Cost, eval.Error)
	return nil
}

func runPredict(cmd *cobra.Command, args []string) error {
	model, err := gaze.Load(args[0])
	if err != nil {
		return err
	}
	var shape = model.Topology().Input
	for _, path := range args[1:] {
		input, err := dataset.DecodeFile(path, shape)
		if err != nil {
			return err
		}
		var probs = model.Predict(input)
		var quadrant = gaze.Quadrant(model.Classify(input))
		var sb strings.Builder
		for i, p := range probs {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%s=%.3f", gaze.Quadrant(i), p)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", path, quadrant, sb.String())
	}
	return nil
}
