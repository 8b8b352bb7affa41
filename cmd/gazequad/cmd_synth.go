package main

import (
	"fmt"
	"math/rand"

	"github.com/gazelab/gazequad/internal/dataset"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	synthCount int
	synthSeed  int64
	synthOut   string
)

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Write a synthetic quadrant dataset",
	Long: `Draws a bright blob in a random quadrant of a noisy image for every
sample and writes the images in the dataset layout. Useful as a smoke
test before real webcam data is collected.`,
	Args: cobra.NoArgs,
	RunE: runSynth,
}

func init() {
	synthCmd.Flags().IntVar(&synthCount, "count", 400, "Number of images")
	synthCmd.Flags().Int64Var(&synthSeed, "seed", 1, "Random seed")
	synthCmd.Flags().StringVar(&synthOut, "out", "", "Output folder (default: the configured dataset)")
}

func runSynth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	var out = synthOut
	if out == "" {
		if err := cfg.BuildDatasetConfig(); err != nil {
			return err
		}
		out = cfg.DatasetPath
	}
	var shape = cfg.ImageShape()
	var samples = dataset.Synthetic(rand.New(rand.NewSource(synthSeed)), synthCount, shape)
	if err := dataset.WriteImages(out, samples, shape); err != nil {
		return err
	}
	total, err := dataset.CountImages(out)
	if err != nil {
		return err
	}
	logger.Info("Wrote synthetic dataset",
		zap.String("folder", out),
		zap.Int("images", len(samples)),
		zap.Int("total", total),
		zap.Stringer("shape", shape))
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d images to %s, %d in total\n", len(samples), out, total)
	return nil
}
