package config

import (
	"fmt"
	"math/rand"
	"path/filepath"

	"go.uber.org/zap"
)

type setter func(c *Config, v any) error

func floatSetter(field func(c *Config) *float64) setter {
	return func(c *Config, v any) error {
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func intSetter(field func(c *Config) *int) setter {
	return func(c *Config, v any) error {
		n, err := toInt(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func intsSetter(field func(c *Config) *[]int) setter {
	return func(c *Config, v any) error {
		n, err := toInts(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

// setters maps hyperparameter names onto typed config fields.
// Names not listed here are only reachable through Value.
var setters = map[string]setter{
	"learning_rate":       floatSetter(func(c *Config) *float64 { return &c.Train.LearningRate }),
	"weight_decay":        floatSetter(func(c *Config) *float64 { return &c.Train.WeightDecay }),
	"validation_fraction": floatSetter(func(c *Config) *float64 { return &c.Train.ValidationFraction }),
	"batch_size":          intSetter(func(c *Config) *int { return &c.Train.BatchSize }),
	"epochs":              intSetter(func(c *Config) *int { return &c.Train.Epochs }),
	"threads":             intSetter(func(c *Config) *int { return &c.Train.Threads }),
	"kernel_size":         intSetter(func(c *Config) *int { return &c.Train.KernelSize }),
	"pool_size":           intSetter(func(c *Config) *int { return &c.Train.PoolSize }),
	"image_width":         intSetter(func(c *Config) *int { return &c.ImageWidth }),
	"image_height":        intSetter(func(c *Config) *int { return &c.ImageHeight }),
	"conv_filters":        intsSetter(func(c *Config) *[]int { return &c.Train.ConvFilters }),
	"hidden_units":        intsSetter(func(c *Config) *[]int { return &c.Train.HiddenUnits }),
	"seed": func(c *Config, v any) error {
		n, err := toInt(v)
		if err != nil {
			return err
		}
		c.Train.Seed = int64(n)
		return nil
	},
	"optimizer": func(c *Config, v any) error {
		s, err := toString(v)
		if err != nil {
			return err
		}
		c.Train.Optimizer = s
		return nil
	},
	"grayscale": func(c *Config, v any) error {
		b, err := toBool(v)
		if err != nil {
			return err
		}
		c.Grayscale = b
		return nil
	},
}

// GenerateRuns enumerates every combination of hyperparameter values and
// shuffles them, so runs are not executed in grid order. A nil rnd is
// seeded from Train.Seed.
func (c *Config) GenerateRuns(rnd *rand.Rand) error {
	for _, axis := range c.Hyperparams.axes {
		var seen = make(map[string]bool, len(axis.Values))
		for _, v := range axis.Values {
			var s = FormatValue(v)
			if seen[s] {
				return fmt.Errorf("%w: %s=%s", ErrDuplicateValue, axis.Name, s)
			}
			seen[s] = true
		}
	}
	var runs = product(c.Hyperparams.axes)
	// values distinct per axis can still join into the same run name
	var names = make(map[string]bool, len(runs))
	for _, run := range runs {
		var params = make([]Param, len(run))
		for i, axis := range c.Hyperparams.axes {
			params[i] = Param{Name: axis.Name, Value: axis.Values[run[i]]}
		}
		var name = RunName(c.ModelName, params)
		if names[name] {
			return fmt.Errorf("%w: run name %s used by more than one run", ErrDuplicateValue, name)
		}
		names[name] = true
	}

	if rnd == nil {
		rnd = rand.New(rand.NewSource(c.Train.Seed))
	}
	rnd.Shuffle(len(runs), func(i, j int) {
		runs[i], runs[j] = runs[j], runs[i]
	})

	c.Runs = runs
	c.NumRuns = len(runs)
	return nil
}

// product lists value indexes of every combination of axes, last axis
// varying fastest.
func product(axes []Axis) [][]int {
	var runs = [][]int{{}}
	for _, axis := range axes {
		var next = make([][]int, 0, len(runs)*len(axis.Values))
		for _, prefix := range runs {
			for i := range axis.Values {
				var run = make([]int, len(prefix), len(prefix)+1)
				copy(run, prefix)
				next = append(next, append(run, i))
			}
		}
		runs = next
	}
	return runs
}

// RunParams resolves run idx into its (name, value) pairs in axis order.
func (c *Config) RunParams(idx int) ([]Param, error) {
	if idx < 0 || idx >= len(c.Runs) {
		return nil, fmt.Errorf("%w: %d of %d", ErrRunIndex, idx, len(c.Runs))
	}
	var permutation = c.Runs[idx]
	var res = make([]Param, len(c.Hyperparams.axes))
	for i, axis := range c.Hyperparams.axes {
		res[i] = Param{Name: axis.Name, Value: axis.Values[permutation[i]]}
	}
	return res, nil
}

// SetHyperparams selects run idx and applies its values to the config.
func (c *Config) SetHyperparams(idx int) error {
	params, err := c.RunParams(idx)
	if err != nil {
		return err
	}
	for _, p := range params {
		if set, ok := setters[p.Name]; ok {
			if err := set(c, p.Value); err != nil {
				return fmt.Errorf("hyperparameter %s: %w", p.Name, err)
			}
		}
	}
	c.RunIndex = idx
	c.RunHyperparams = params
	return nil
}

// Value returns the current run's value for a hyperparameter.
func (c *Config) Value(name string) (any, bool) {
	for _, p := range c.RunHyperparams {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// RunName is the model name followed by _<name>_<value> for every
// hyperparameter of the run.
func RunName(modelName string, params []Param) string {
	var name = modelName
	for _, p := range params {
		name += fmt.Sprintf("_%s_%s", p.Name, FormatValue(p.Value))
	}
	return name
}

func (c *Config) RunName() string {
	return RunName(c.ModelName, c.RunHyperparams)
}

func (c *Config) CreateRunDirectories() error {
	if err := c.Check("model_name", "log_path", "checkpoint_path"); err != nil {
		return err
	}
	var name = c.RunName()
	c.RunLogPath = filepath.Join(c.LogPath, name)
	c.RunCheckpointPath = filepath.Join(c.CheckpointPath, name)
	if err := makePaths(c.RunLogPath, c.RunCheckpointPath); err != nil {
		return err
	}
	c.Logger().Debug("Created run directories",
		zap.String("run", name),
		zap.Int("index", c.RunIndex))
	return nil
}

func (c *Config) PrepareRun(idx int) error {
	if err := c.SetHyperparams(idx); err != nil {
		return err
	}
	return c.CreateRunDirectories()
}

// RunConfig returns an independent copy prepared for run idx, leaving the
// receiver untouched.
func (c *Config) RunConfig(idx int) (*Config, error) {
	var res = c.Clone()
	if err := res.PrepareRun(idx); err != nil {
		return nil, err
	}
	return res, nil
}
