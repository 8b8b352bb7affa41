package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const ManifestName = "sweep.yaml"

// Manifest records the order in which a sweep executes its runs.
type Manifest struct {
	Experiment   string        `yaml:"experiment"`
	ExperimentID string        `yaml:"experiment_id"`
	ModelName    string        `yaml:"model_name"`
	Created      time.Time     `yaml:"created"`
	Hyperparams  Hyperparams   `yaml:"hyperparams"`
	Runs         []ManifestRun `yaml:"runs"`
}

type ManifestRun struct {
	Index  int     `yaml:"index"`
	Name   string  `yaml:"name"`
	Params []Param `yaml:"params"`
}

func (c *Config) Manifest(experimentID string, created time.Time) (*Manifest, error) {
	var m = &Manifest{
		Experiment:   c.ExperimentDir,
		ExperimentID: experimentID,
		ModelName:    c.ModelName,
		Created:      created,
		Hyperparams:  c.Hyperparams.clone(),
	}
	for i := range c.Runs {
		params, err := c.RunParams(i)
		if err != nil {
			return nil, err
		}
		m.Runs = append(m.Runs, ManifestRun{
			Index:  i,
			Name:   RunName(c.ModelName, params),
			Params: params,
		})
	}
	return m, nil
}

// WriteManifest stores the manifest as LogPath/sweep.yaml.
func (c *Config) WriteManifest(experimentID string, created time.Time) (string, error) {
	if err := c.Check("log_path", "runs"); err != nil {
		return "", err
	}
	m, err := c.Manifest(experimentID, created)
	if err != nil {
		return "", err
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", err
	}
	var path = filepath.Join(c.LogPath, ManifestName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &m, nil
}
