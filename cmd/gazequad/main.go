package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gazelab/gazequad/internal/config"
	"github.com/gazelab/gazequad/internal/logging"
	"github.com/gazelab/gazequad/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath     string
	rootDir        string
	datasetName    string
	experimentName string
	verbose        bool
	logFormat      string
	metricsAddr    string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gazequad",
	Short: "Train and sweep webcam gaze quadrant classifiers",
	Long: `gazequad trains a small convolutional network that predicts which screen
quadrant a person looks at, and runs hyperparameter sweeps over it.

Datasets live under <root>/local/data/<dataset>/<quadrant>/, experiment
logs under <root>/local/logs and checkpoints under <root>/local/models.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose, logFormat)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Experiment YAML file")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Project root when no config file is given (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&datasetName, "dataset", "", "Dataset name, overrides the config file")
	rootCmd.PersistentFlags().StringVar(&experimentName, "experiment", "", "Experiment name, overrides the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log encoding: console or json")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(evalCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(synthCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads --config, or the defaults rooted at --root, and applies
// the global overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, err
		}
	} else {
		var root = rootDir
		if root == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			root = wd
		}
		cfg = config.New(root)
	}
	if datasetName != "" {
		cfg.DatasetName = datasetName
	}
	if experimentName != "" {
		cfg.ExperimentName = experimentName
	}
	cfg.SetLogger(logger)
	return cfg, nil
}

// startMetrics registers the training collectors and, with --metrics-addr,
// serves them until ctx is done.
func startMetrics(ctx context.Context) *metrics.Training {
	var reg = prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var m = metrics.NewTraining(reg)
	if metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, metricsAddr, reg, logger); err != nil {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}
	return m
}
