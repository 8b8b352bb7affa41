package sweep

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/gazelab/gazequad/internal/config"
	"github.com/gazelab/gazequad/internal/dataset"
	"github.com/gazelab/gazequad/internal/gaze"
	"github.com/gazelab/gazequad/internal/metrics"
	"github.com/gazelab/gazequad/internal/results"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newSweepConfig(t *testing.T) *config.Config {
	t.Helper()
	var c = config.New(t.TempDir())
	c.DatasetName = "synthetic"
	c.ExperimentName = "sweep"
	c.ImageWidth = 8
	c.ImageHeight = 8
	c.Train.ConvFilters = []int{4}
	c.Train.HiddenUnits = []int{8}
	c.Train.Epochs = 2
	c.Train.BatchSize = 10
	c.Train.Threads = 2
	c.Train.Seed = 3
	c.Train.ValidationFraction = 0.25
	require.NoError(t, c.BuildDatasetConfig())
	require.NoError(t, c.BuildExperimentConfig(time.Date(2026, time.October, 18, 9, 30, 0, 0, time.UTC)))

	var samples = dataset.Synthetic(rand.New(rand.NewSource(5)), 40, c.ImageShape())
	require.NoError(t, dataset.WriteImages(c.DatasetPath, samples, c.ImageShape()))
	return c
}

func TestRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	var c = newSweepConfig(t)
	require.NoError(t, c.Hyperparams.Add("learning_rate", 0.01, 0.001))
	require.NoError(t, c.Hyperparams.Add("optimizer", "adam"))

	var reg = prometheus.NewRegistry()
	var m = metrics.NewTraining(reg)
	var runner = &Runner{Config: c, Metrics: m, Parallel: 2}
	res, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.LessOrEqual(t, res[0].ValidationErr, res[1].ValidationErr)

	var names = map[string]bool{}
	for _, r := range res {
		names[r.RunName] = true
		assert.Equal(t, "sweep_10m_18d_9hr_30min", r.Experiment)
		assert.Equal(t, res[0].ExperimentID, r.ExperimentID)
		assert.Equal(t, 2, r.Epochs)
		assert.Equal(t, "adam", r.Params["optimizer"])
		assert.FileExists(t, r.Checkpoint)
		assert.FileExists(t, filepath.Join(c.LogPath, r.RunName, RunLogName))

		model, err := gaze.Load(r.Checkpoint)
		require.NoError(t, err)
		assert.Equal(t, c.Topology(), model.Topology())
	}
	assert.True(t, names["gazenet_learning_rate_0.01_optimizer_adam"])
	assert.True(t, names["gazenet_learning_rate_0.001_optimizer_adam"])
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsCompleted))

	manifest, err := config.ReadManifest(filepath.Join(c.LogPath, config.ManifestName))
	require.NoError(t, err)
	assert.Equal(t, res[0].ExperimentID, manifest.ExperimentID)
	assert.Len(t, manifest.Runs, 2)

	store, err := results.Open(filepath.Join(c.LogPath, results.DBName))
	require.NoError(t, err)
	defer store.Close()
	best, err := store.Best(context.Background(), c.ExperimentDir)
	require.NoError(t, err)
	assert.Equal(t, res[0].RunName, best.RunName)
}

func TestRunWithoutHyperparams(t *testing.T) {
	defer goleak.VerifyNone(t)

	var c = newSweepConfig(t)
	store, err := results.Open(filepath.Join(t.TempDir(), results.DBName))
	require.NoError(t, err)
	defer store.Close()

	var runner = &Runner{Config: c, Store: store}
	res, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "gazenet", res[0].RunName)
	assert.Empty(t, res[0].Params)

	list, err := store.List(context.Background(), c.ExperimentDir)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRunFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	var c = newSweepConfig(t)
	require.NoError(t, c.Hyperparams.Add("optimizer", "sgd"))

	var reg = prometheus.NewRegistry()
	var m = metrics.NewTraining(reg)
	_, err := (&Runner{Config: c, Metrics: m}).Run(context.Background())
	assert.ErrorContains(t, err, "sgd")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsFailed))
}

func TestRunRequiresPaths(t *testing.T) {
	var c = config.New(t.TempDir())
	_, err := (&Runner{Config: c}).Run(context.Background())
	assert.ErrorIs(t, err, config.ErrMissingProperty)
}

func TestSortBest(t *testing.T) {
	var res = []results.RunResult{
		{RunName: "c", ValidationErr: 0.2, ValidationCost: 1},
		{RunName: "b", ValidationErr: 0.1, ValidationCost: 2},
		{RunName: "a", ValidationErr: 0.1, ValidationCost: 2},
		{RunName: "d", ValidationErr: 0.1, ValidationCost: 1},
	}
	SortBest(res)
	var names []string
	for _, r := range res {
		names = append(names, r.RunName)
	}
	assert.Equal(t, []string{"d", "a", "b", "c"}, names)
}
