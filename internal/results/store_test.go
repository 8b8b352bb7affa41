package results

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), DBName))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestRecordAndList(t *testing.T) {
	var s = openStore(t)
	var ctx = context.Background()
	var finished = time.Date(2026, time.March, 7, 14, 5, 0, 0, time.UTC)

	var runs = []RunResult{
		{Experiment: "gaze_3m_7d_14hr_5min", ExperimentID: "id-1", RunIndex: 0, RunName: "gazenet_learning_rate_0.1",
			Params: map[string]any{"learning_rate": 0.1}, BestEpoch: 3, Epochs: 5, ValidationErr: 0.3, ValidationCost: 0.9, Finished: finished},
		{Experiment: "gaze_3m_7d_14hr_5min", ExperimentID: "id-1", RunIndex: 1, RunName: "gazenet_learning_rate_0.01",
			Params: map[string]any{"learning_rate": 0.01}, BestEpoch: 5, Epochs: 5, ValidationErr: 0.1, ValidationCost: 0.4,
			Checkpoint: "/models/n-05-10000.nn.zst", Finished: finished},
		{Experiment: "other", ExperimentID: "id-2", RunIndex: 0, RunName: "gazenet",
			Params: map[string]any{}, BestEpoch: 1, Epochs: 1, ValidationErr: 0.05, Finished: finished},
	}
	for _, r := range runs {
		require.NoError(t, s.Record(ctx, r))
	}

	list, err := s.List(ctx, "gaze_3m_7d_14hr_5min")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "gazenet_learning_rate_0.01", list[0].RunName)
	assert.Equal(t, map[string]any{"learning_rate": 0.01}, list[0].Params)
	assert.Equal(t, "/models/n-05-10000.nn.zst", list[0].Checkpoint)
	assert.True(t, finished.Equal(list[0].Finished))

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "other", all[0].Experiment)

	best, err := s.Best(ctx, "gaze_3m_7d_14hr_5min")
	require.NoError(t, err)
	assert.Equal(t, 1, best.RunIndex)
}

func TestRecordReplacesRun(t *testing.T) {
	var s = openStore(t)
	var ctx = context.Background()
	var r = RunResult{Experiment: "e", ExperimentID: "id", RunName: "gazenet", ValidationErr: 0.5, Finished: time.Now()}
	require.NoError(t, s.Record(ctx, r))
	r.ValidationErr = 0.25
	require.NoError(t, s.Record(ctx, r))

	list, err := s.List(ctx, "e")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 0.25, list[0].ValidationErr)
}

func TestBestNotFound(t *testing.T) {
	var s = openStore(t)
	_, err := s.Best(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReopen(t *testing.T) {
	var path = filepath.Join(t.TempDir(), DBName)
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), RunResult{Experiment: "e", ExperimentID: "id", RunName: "r", Finished: time.Now()}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	list, err := s.List(context.Background(), "e")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
