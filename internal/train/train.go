package train

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gazelab/gazequad/internal/gaze"
	"github.com/gazelab/gazequad/internal/metrics"
	"github.com/gazelab/gazequad/internal/ml"
	"go.uber.org/zap"
)

type Options struct {
	Epochs      int
	BatchSize   int
	Threads     int
	Seed        int64
	Optimizer   ml.IOptimizer
	WeightDecay float64
	// CheckpointPath receives a checkpoint whenever validation error
	// improves. Empty disables checkpoints.
	CheckpointPath string
	RunName        string
	Logger         *zap.Logger
	Metrics        *metrics.Training
}

type Result struct {
	Epochs     int
	BestEpoch  int
	BestError  float64
	BestCost   float64
	TrainCost  float64
	Checkpoint string
}

// Train fits mainModel with mini-batch gradient descent. Each batch is
// spread over Threads model copies sharing weights; their gradients are
// merged into mainModel before the optimizer step. Without validation
// samples the training set is evaluated instead.
func Train(
	ctx context.Context,
	training []gaze.Sample,
	validation []gaze.Sample,
	mainModel *gaze.Model,
	opts Options,
) (Result, error) {
	var logger = opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("run", opts.RunName))
	if len(training) == 0 {
		return Result{}, fmt.Errorf("no training samples")
	}
	if opts.Optimizer == nil {
		opts.Optimizer = ml.NewRMSProp(ml.DefaultLearningRate)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = len(training)
	}
	if len(validation) == 0 {
		validation = training
	}
	if opts.CheckpointPath != "" {
		if err := os.MkdirAll(opts.CheckpointPath, os.ModePerm); err != nil {
			return Result{}, err
		}
	}

	logger.Info("Train started",
		zap.Int("training", len(training)),
		zap.Int("validation", len(validation)),
		zap.Int("epochs", opts.Epochs),
		zap.Int("batch_size", opts.BatchSize),
		zap.Int("threads", opts.Threads))
	defer logger.Info("Train finished")

	// the caller's slice order is left alone
	training = append([]gaze.Sample(nil), training...)
	var models = threadModels(mainModel, opts.Threads)
	var rnd = rand.New(rand.NewSource(opts.Seed))
	var res Result

	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		shuffle(rnd, training)
		var epochCost float64
		for i := 0; i < len(training); i += opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			var batch = training[i:min(i+opts.BatchSize, len(training))]
			epochCost += trainBatch(batch, models)
			applyGradients(models, opts.Optimizer, 1/float64(len(batch)), opts.WeightDecay)
		}
		res.Epochs = epoch
		res.TrainCost = epochCost / float64(len(training))

		var eval = evaluate(validation, models)
		logger.Info("Finished epoch",
			zap.Int("epoch", epoch),
			zap.Float64("train_cost", res.TrainCost),
			zap.Float64("validation_cost", eval.Cost),
			zap.Float64("validation_error", eval.Error))
		opts.Metrics.EpochDone(opts.RunName, len(training), eval.Error, eval.Cost)

		if res.BestEpoch == 0 ||
			eval.Error < res.BestError ||
			eval.Error == res.BestError && eval.Cost < res.BestCost {
			res.BestEpoch = epoch
			res.BestError = eval.Error
			res.BestCost = eval.Cost
			if opts.CheckpointPath != "" {
				var path = buildNetPath(opts.CheckpointPath, epoch, eval.Error)
				if err := mainModel.Save(path); err != nil {
					return res, err
				}
				res.Checkpoint = path
				logger.Debug("Stored network", zap.String("path", path))
			}
		} else {
			logger.Debug("No improvement",
				zap.Int("best_epoch", res.BestEpoch),
				zap.Float64("best_error", res.BestError))
		}
	}

	return res, nil
}

func shuffle(rnd *rand.Rand, training []gaze.Sample) {
	rnd.Shuffle(len(training), func(i, j int) {
		training[i], training[j] = training[j], training[i]
	})
}

func trainBatch(samples []gaze.Sample, models []*gaze.Model) float64 {
	var index int32 = -1
	var wg = &sync.WaitGroup{}
	var totalCost float64
	var mu = &sync.Mutex{}
	for i := range models {
		wg.Add(1)
		go func(m *gaze.Model) {
			defer wg.Done()
			var localCost float64
			for {
				var i = int(atomic.AddInt32(&index, 1))
				if i >= len(samples) {
					break
				}
				localCost += m.Train(&samples[i])
			}
			mu.Lock()
			totalCost += localCost
			mu.Unlock()
		}(models[i])
	}
	wg.Wait()
	return totalCost
}

func applyGradients(models []*gaze.Model, opt ml.IOptimizer, scale, l2 float64) {
	for i := 1; i < len(models); i++ {
		models[i].AddGradients(models[0])
	}
	models[0].ApplyGradients(opt, scale, l2)
}

func buildNetPath(netFolderPath string, epoch int, validationError float64) string {
	var valErrInt = int(100000 * validationError)
	return filepath.Join(netFolderPath, fmt.Sprintf("n-%02d-%v.nn.zst", epoch, valErrInt))
}
