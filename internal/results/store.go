// Package results records the outcome of every sweep run in SQLite.
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const DBName = "results.db"

var ErrNotFound = errors.New("no results")

type RunResult struct {
	Experiment     string
	ExperimentID   string
	RunIndex       int
	RunName        string
	Params         map[string]any
	BestEpoch      int
	Epochs         int
	ValidationErr  float64
	ValidationCost float64
	Checkpoint     string
	Finished       time.Time
}

type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	experiment      TEXT NOT NULL,
	experiment_id   TEXT NOT NULL,
	run_index       INTEGER NOT NULL,
	run_name        TEXT NOT NULL,
	params          TEXT NOT NULL,
	best_epoch      INTEGER NOT NULL,
	epochs          INTEGER NOT NULL,
	validation_err  REAL NOT NULL,
	validation_cost REAL NOT NULL,
	checkpoint      TEXT NOT NULL,
	finished        TEXT NOT NULL,
	PRIMARY KEY (experiment_id, run_name)
);
CREATE INDEX IF NOT EXISTS runs_experiment ON runs (experiment, validation_err);
`

// Open opens or creates the results database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	// sweeps record from several goroutines; sqlite wants one writer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create results schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts r, replacing an earlier result of the same run.
func (s *Store) Record(ctx context.Context, r RunResult) error {
	params, err := json.Marshal(r.Params)
	if err != nil {
		return fmt.Errorf("encode params of %s: %w", r.RunName, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO runs (
	experiment, experiment_id, run_index, run_name, params,
	best_epoch, epochs, validation_err, validation_cost, checkpoint, finished
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Experiment, r.ExperimentID, r.RunIndex, r.RunName, string(params),
		r.BestEpoch, r.Epochs, r.ValidationErr, r.ValidationCost, r.Checkpoint,
		r.Finished.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record %s: %w", r.RunName, err)
	}
	return nil
}

// List returns the results of an experiment, best validation error first.
// An empty experiment lists every result.
func (s *Store) List(ctx context.Context, experiment string) ([]RunResult, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT experiment, experiment_id, run_index, run_name, params,
	best_epoch, epochs, validation_err, validation_cost, checkpoint, finished
FROM runs
WHERE ? = '' OR experiment = ?
ORDER BY validation_err, validation_cost, run_name`, experiment, experiment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []RunResult
	for rows.Next() {
		var r RunResult
		var params, finished string
		if err := rows.Scan(&r.Experiment, &r.ExperimentID, &r.RunIndex, &r.RunName, &params,
			&r.BestEpoch, &r.Epochs, &r.ValidationErr, &r.ValidationCost, &r.Checkpoint, &finished); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(params), &r.Params); err != nil {
			return nil, fmt.Errorf("decode params of %s: %w", r.RunName, err)
		}
		r.Finished, err = time.Parse(time.RFC3339Nano, finished)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *Store) Best(ctx context.Context, experiment string) (RunResult, error) {
	res, err := s.List(ctx, experiment)
	if err != nil {
		return RunResult{}, err
	}
	if len(res) == 0 {
		return RunResult{}, fmt.Errorf("%w for %q", ErrNotFound, experiment)
	}
	return res[0], nil
}
