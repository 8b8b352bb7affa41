package config

import "fmt"

// Check reports ErrMissingProperty for the first listed property that is
// not set yet.
func (c *Config) Check(props ...string) error {
	for _, prop := range props {
		var ok bool
		switch prop {
		case "dataset_name":
			ok = c.DatasetName != ""
		case "dataset_path":
			ok = c.DatasetPath != ""
		case "experiment_name":
			ok = c.ExperimentName != ""
		case "model_name":
			ok = c.ModelName != ""
		case "log_path":
			ok = c.LogPath != ""
		case "checkpoint_path":
			ok = c.CheckpointPath != ""
		case "run_log_path":
			ok = c.RunLogPath != ""
		case "run_checkpoint_path":
			ok = c.RunCheckpointPath != ""
		case "hyperparams":
			ok = c.Hyperparams.Len() != 0
		case "runs":
			ok = c.NumRuns != 0
		default:
			return fmt.Errorf("unknown config property %q", prop)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrMissingProperty, prop)
		}
	}
	return nil
}
