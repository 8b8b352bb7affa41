// Package sweep trains one model per hyperparameter combination of an
// experiment and records how each run did.
package sweep

import (
	"context"
	"math/rand"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gazelab/gazequad/internal/config"
	"github.com/gazelab/gazequad/internal/dataset"
	"github.com/gazelab/gazequad/internal/gaze"
	"github.com/gazelab/gazequad/internal/logging"
	"github.com/gazelab/gazequad/internal/metrics"
	"github.com/gazelab/gazequad/internal/ml"
	"github.com/gazelab/gazequad/internal/results"
	"github.com/gazelab/gazequad/internal/train"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	RunLogName       = "train.log"
	defaultCacheSize = 1 << 16
)

type Runner struct {
	// Config must have its dataset and experiment paths built.
	Config *config.Config
	// Loader is copied per run with the run's image shape. Nil loads with
	// a fresh decode cache shared by all runs.
	Loader *dataset.Loader
	// Store receives every finished run. Nil opens LogPath/results.db for
	// the duration of Run.
	Store    *results.Store
	Logger   *zap.Logger
	Metrics  *metrics.Training
	Parallel int
	Verbose  bool
}

// Run trains all runs of the experiment and returns their results, best
// validation error first. The first failing run cancels the rest.
func (r *Runner) Run(ctx context.Context) (res []results.RunResult, err error) {
	var cfg = r.Config
	var logger = logging.OrNop(r.Logger)
	if err := cfg.Check("dataset_path", "log_path", "checkpoint_path", "model_name"); err != nil {
		return nil, err
	}
	if cfg.NumRuns == 0 {
		if err := cfg.GenerateRuns(nil); err != nil {
			return nil, err
		}
	}

	var experimentID = uuid.NewString()
	manifest, err := cfg.WriteManifest(experimentID, time.Now())
	if err != nil {
		return nil, err
	}
	logger.Info("Sweep started",
		zap.String("experiment", cfg.ExperimentDir),
		zap.String("experiment_id", experimentID),
		zap.Int("runs", cfg.NumRuns),
		zap.String("manifest", manifest))

	var store = r.Store
	if store == nil {
		store, err = results.Open(filepath.Join(cfg.LogPath, results.DBName))
		if err != nil {
			return nil, err
		}
		defer func() {
			err = multierr.Append(err, store.Close())
		}()
	}

	var loader = r.Loader
	if loader == nil {
		cache, err := dataset.NewCache(defaultCacheSize)
		if err != nil {
			return nil, err
		}
		loader = &dataset.Loader{Cache: cache}
	}

	var parallel = max(r.Parallel, 1)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	var mu sync.Mutex
	for idx := 0; idx < cfg.NumRuns; idx++ {
		idx := idx
		g.Go(func() error {
			var job = &run{
				runner:       r,
				experimentID: experimentID,
				loader:       *loader,
				logger:       logger,
			}
			result, err := job.execute(ctx, idx)
			r.Metrics.RunDone(err)
			if err != nil {
				return err
			}
			if err := store.Record(ctx, result); err != nil {
				return err
			}
			mu.Lock()
			res = append(res, result)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	SortBest(res)
	if len(res) != 0 {
		logger.Info("Sweep finished",
			zap.String("best_run", res[0].RunName),
			zap.Float64("best_error", res[0].ValidationErr))
	}
	return res, nil
}

// SortBest orders results by validation error, then cost, then name.
func SortBest(res []results.RunResult) {
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].ValidationErr != res[j].ValidationErr {
			return res[i].ValidationErr < res[j].ValidationErr
		}
		if res[i].ValidationCost != res[j].ValidationCost {
			return res[i].ValidationCost < res[j].ValidationCost
		}
		return res[i].RunName < res[j].RunName
	})
}

type run struct {
	runner       *Runner
	experimentID string
	loader       dataset.Loader
	logger       *zap.Logger
}

func (j *run) execute(ctx context.Context, idx int) (results.RunResult, error) {
	cfg, err := j.runner.Config.RunConfig(idx)
	if err != nil {
		return results.RunResult{}, err
	}
	var name = cfg.RunName()
	logger, closeLog, err := logging.WithFile(j.logger, filepath.Join(cfg.RunLogPath, RunLogName), j.runner.Verbose)
	if err != nil {
		return results.RunResult{}, err
	}
	defer closeLog()
	logger = logger.With(zap.Int("run_index", idx))
	cfg.SetLogger(logger)

	logger.Info("Run started",
		zap.String("run", name),
		zap.Stringers("hyperparams", cfg.RunHyperparams))

	j.loader.Shape = cfg.ImageShape()
	j.loader.Threads = cfg.Train.Threads
	j.loader.Logger = logger
	samples, err := j.loader.Load(ctx, cfg.DatasetPath)
	if err != nil {
		return results.RunResult{}, err
	}

	var rnd = rand.New(rand.NewSource(cfg.Train.Seed))
	dataset.Shuffle(rnd, samples)
	training, validation := dataset.Split(samples, cfg.Train.ValidationFraction)

	model, err := gaze.NewModel(cfg.Topology(), rnd)
	if err != nil {
		return results.RunResult{}, err
	}
	opt, err := ml.NewOptimizer(cfg.Train.Optimizer, cfg.Train.LearningRate)
	if err != nil {
		return results.RunResult{}, err
	}

	trained, err := train.Train(ctx, training, validation, model, train.Options{
		Epochs:         cfg.Train.Epochs,
		BatchSize:      cfg.Train.BatchSize,
		Threads:        cfg.Train.Threads,
		Seed:           cfg.Train.Seed,
		Optimizer:      opt,
		WeightDecay:    cfg.Train.WeightDecay,
		CheckpointPath: cfg.RunCheckpointPath,
		RunName:        name,
		Logger:         logger,
		Metrics:        j.runner.Metrics,
	})
	if err != nil {
		return results.RunResult{}, err
	}

	var values = make(map[string]any, len(cfg.RunHyperparams))
	for _, p := range cfg.RunHyperparams {
		values[p.Name] = p.Value
	}
	return results.RunResult{
		Experiment:     cfg.ExperimentDir,
		ExperimentID:   j.experimentID,
		RunIndex:       idx,
		RunName:        name,
		Params:         values,
		BestEpoch:      trained.BestEpoch,
		Epochs:         trained.Epochs,
		ValidationErr:  trained.BestError,
		ValidationCost: trained.BestCost,
		Checkpoint:     trained.Checkpoint,
		Finished:       time.Now(),
	}, nil
}
