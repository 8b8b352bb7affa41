// Package config holds the experiment configuration: directory layout,
// image geometry, training parameters and the hyperparameter sweep.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gazelab/gazequad/internal/gaze"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// MaxDefaultThreads caps the default training thread count. Every thread
// holds a full set of delta matrices, about 400 MB for the default topology.
const MaxDefaultThreads = 4

var (
	ErrMissingProperty = errors.New("missing config property")
	ErrRunIndex        = errors.New("run index out of range")
	ErrDuplicateName   = errors.New("duplicate hyperparameter")
	ErrDuplicateValue  = errors.New("duplicate hyperparameter value")
	ErrEmptyAxis       = errors.New("hyperparameter has no values")
)

// TrainParams are the training settings a sweep may override.
type TrainParams struct {
	LearningRate       float64 `yaml:"learning_rate"`
	Optimizer          string  `yaml:"optimizer"`
	WeightDecay        float64 `yaml:"weight_decay"`
	BatchSize          int     `yaml:"batch_size"`
	Epochs             int     `yaml:"epochs"`
	Threads            int     `yaml:"threads"`
	Seed               int64   `yaml:"seed"`
	ValidationFraction float64 `yaml:"validation_fraction"`
	ConvFilters        []int   `yaml:"conv_filters,flow"`
	KernelSize         int     `yaml:"kernel_size"`
	PoolSize           int     `yaml:"pool_size"`
	HiddenUnits        []int   `yaml:"hidden_units,flow"`
}

type Config struct {
	// Root directory of the project. Local directories hold datasets,
	// logs and saved models.
	RootDir  string `yaml:"root_dir"`
	DataDir  string `yaml:"data_dir"`
	LogDir   string `yaml:"log_dir"`
	ModelDir string `yaml:"model_dir"`

	ImageWidth         int `yaml:"image_width"`
	ImageHeight        int `yaml:"image_height"`
	ImageChannelsInput int `yaml:"image_channels_input"`
	// Grayscale images are quicker, and color does not matter for gaze.
	Grayscale bool `yaml:"grayscale"`

	DatasetName    string `yaml:"dataset_name"`
	ExperimentName string `yaml:"experiment_name"`
	ModelName      string `yaml:"model_name"`

	Train       TrainParams `yaml:"train"`
	Hyperparams Hyperparams `yaml:"hyperparams"`

	DatasetPath    string `yaml:"-"`
	ExperimentDir  string `yaml:"-"`
	LogPath        string `yaml:"-"`
	CheckpointPath string `yaml:"-"`

	// Runs holds one value index per hyperparameter for every run,
	// in execution order.
	Runs              [][]int `yaml:"-"`
	NumRuns           int     `yaml:"-"`
	RunIndex          int     `yaml:"-"`
	RunHyperparams    []Param `yaml:"-"`
	RunLogPath        string  `yaml:"-"`
	RunCheckpointPath string  `yaml:"-"`

	logger *zap.Logger
}

// Default returns the configuration defaults without any directories.
func Default() *Config {
	return &Config{
		ImageWidth:         128,
		ImageHeight:        96,
		ImageChannelsInput: 3,
		Grayscale:          true,
		ModelName:          "gazenet",
		Train: TrainParams{
			LearningRate:       0.03,
			Optimizer:          "rmsprop",
			WeightDecay:        1e-4,
			BatchSize:          100,
			Epochs:             10,
			Threads:            min(runtime.NumCPU(), MaxDefaultThreads),
			ValidationFraction: 0.2,
			ConvFilters:        []int{32, 32, 64},
			KernelSize:         3,
			PoolSize:           2,
			HiddenUnits:        []int{256, 128},
		},
		RunIndex: -1,
		logger:   zap.NewNop(),
	}
}

// New returns the defaults rooted at rootDir.
func New(rootDir string) *Config {
	var c = Default()
	c.RootDir = rootDir
	c.resolveDirs()
	return c
}

// Load reads a YAML experiment file. A relative or missing root_dir is
// resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c = Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if !filepath.IsAbs(c.RootDir) {
		c.RootDir = filepath.Join(filepath.Dir(path), c.RootDir)
	}
	c.resolveDirs()
	return c, nil
}

func (c *Config) resolveDirs() {
	if c.DataDir == "" {
		c.DataDir = filepath.Join(c.RootDir, "local", "data")
	}
	if c.LogDir == "" {
		c.LogDir = filepath.Join(c.RootDir, "local", "logs")
	}
	if c.ModelDir == "" {
		c.ModelDir = filepath.Join(c.RootDir, "local", "models")
	}
}

func (c *Config) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c.logger = logger
}

func (c *Config) Logger() *zap.Logger {
	if c.logger == nil {
		return zap.NewNop()
	}
	return c.logger
}

func (c *Config) ImageChannels() int {
	if c.Grayscale {
		return 1
	}
	return c.ImageChannelsInput
}

func (c *Config) ImageShape() gaze.Shape {
	return gaze.Shape{
		Height:   c.ImageHeight,
		Width:    c.ImageWidth,
		Channels: c.ImageChannels(),
	}
}

// Topology is the network described by the current training parameters.
func (c *Config) Topology() gaze.Topology {
	return gaze.Topology{
		Input:       c.ImageShape(),
		ConvFilters: append([]int(nil), c.Train.ConvFilters...),
		KernelSize:  c.Train.KernelSize,
		PoolSize:    c.Train.PoolSize,
		Hidden:      append([]int(nil), c.Train.HiddenUnits...),
		Classes:     gaze.QuadrantCount,
	}
}

func (c *Config) BuildDatasetConfig() error {
	if err := c.Check("dataset_name"); err != nil {
		return err
	}
	c.DatasetPath = filepath.Join(c.DataDir, c.DatasetName)
	return nil
}

// ExperimentDirName is <name>_<month>m_<day>d_<hour>hr_<minute>min.
func ExperimentDirName(name string, t time.Time) string {
	return fmt.Sprintf("%s_%dm_%dd_%dhr_%dmin", name, int(t.Month()), t.Day(), t.Hour(), t.Minute())
}

// BuildExperimentConfig creates the experiment log and checkpoint directories.
func (c *Config) BuildExperimentConfig(now time.Time) error {
	if err := c.Check("experiment_name"); err != nil {
		return err
	}
	c.ExperimentDir = ExperimentDirName(c.ExperimentName, now)
	c.LogPath = filepath.Join(c.LogDir, c.ExperimentDir)
	c.CheckpointPath = filepath.Join(c.ModelDir, c.ExperimentDir)
	if err := makePaths(c.LogPath, c.CheckpointPath); err != nil {
		return err
	}
	c.Logger().Info("Created log and checkpoint directories",
		zap.String("experiment", c.ExperimentDir),
		zap.String("log_path", c.LogPath),
		zap.String("checkpoint_path", c.CheckpointPath))
	return nil
}

// BuildHyperparameterConfig resets the sweep. A non-nil parent experiment
// lends its log and checkpoint paths.
func (c *Config) BuildHyperparameterConfig(parent *Config) {
	c.Hyperparams = Hyperparams{}
	c.Runs = nil
	c.NumRuns = 0
	c.RunIndex = -1
	c.RunHyperparams = nil
	c.RunLogPath = ""
	c.RunCheckpointPath = ""
	if parent != nil {
		c.ExperimentDir = parent.ExperimentDir
		c.LogPath = parent.LogPath
		c.CheckpointPath = parent.CheckpointPath
	}
}

// Clone returns a deep copy sharing only the logger.
func (c *Config) Clone() *Config {
	var res = *c
	res.Train.ConvFilters = append([]int(nil), c.Train.ConvFilters...)
	res.Train.HiddenUnits = append([]int(nil), c.Train.HiddenUnits...)
	res.Hyperparams = c.Hyperparams.clone()
	if c.Runs != nil {
		res.Runs = make([][]int, len(c.Runs))
		for i, run := range c.Runs {
			res.Runs[i] = append([]int(nil), run...)
		}
	}
	res.RunHyperparams = append([]Param(nil), c.RunHyperparams...)
	return &res
}

func makePaths(paths ...string) error {
	var err error
	for _, path := range paths {
		err = multierr.Append(err, os.MkdirAll(path, os.ModePerm))
	}
	return err
}
