// Package config loads and validates training configuration.
//
// A configuration file is JSON or YAML, chosen by extension. Unknown fields
// are rejected. Defaults are applied after decoding, then environment
// overrides, then validation.
package config

import (
	"github.com/born-ml/neuralnet/internal/optim"
)

// Config is the complete training configuration.
type Config struct {
	Data       DataConfig       `json:"data" yaml:"data"`
	Training   TrainingConfig   `json:"training" yaml:"training"`
	Checkpoint CheckpointConfig `json:"checkpoint" yaml:"checkpoint"`
	Monitor    MonitorConfig    `json:"monitor" yaml:"monitor"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// DataConfig controls the data pipeline.
type DataConfig struct {
	Path         string `json:"path" yaml:"path"`
	LabelColumn  *int   `json:"label_column,omitempty" yaml:"label_column,omitempty"` // negative counts from the end; default -1
	Shuffle      bool   `json:"shuffle" yaml:"shuffle"`
	NumCached    int    `json:"num_cached" yaml:"num_cached"`
	Augmentation bool   `json:"augmentation" yaml:"augmentation"`
	Infinite     bool   `json:"infinite" yaml:"infinite"`
}

// TrainingConfig holds the loop and optimizer settings.
type TrainingConfig struct {
	BatchSize       int             `json:"batch_size" yaml:"batch_size"`
	NEpochs         int             `json:"n_epochs" yaml:"n_epochs"`
	CheckpointEpoch int             `json:"checkpoint_epoch" yaml:"checkpoint_epoch"`
	Seed            int64           `json:"seed" yaml:"seed"`
	Hidden          []int           `json:"hidden" yaml:"hidden"`
	Activation      string          `json:"activation" yaml:"activation"`
	Loss            string          `json:"loss" yaml:"loss"`
	Optimizer       OptimizerConfig `json:"optimizer" yaml:"optimizer"`
	Anneal          *optim.Schedule `json:"anneal,omitempty" yaml:"anneal,omitempty"`
}

// OptimizerConfig selects and tunes the optimizer.
type OptimizerConfig struct {
	Kind     string  `json:"kind" yaml:"kind"`
	LR       float32 `json:"lr" yaml:"lr"`
	Momentum float32 `json:"momentum" yaml:"momentum"`
	Beta1    float32 `json:"beta1" yaml:"beta1"`
	Beta2    float32 `json:"beta2" yaml:"beta2"`
	Epsilon  float32 `json:"epsilon" yaml:"epsilon"`
	Rho      float32 `json:"rho" yaml:"rho"`
	Gamma    float32 `json:"gamma" yaml:"gamma"`
	Nesterov bool    `json:"nesterov" yaml:"nesterov"`
}

// Optim converts the section to the optimizer factory's config.
func (o OptimizerConfig) Optim() optim.Config {
	return optim.Config{
		LR:       o.LR,
		Momentum: o.Momentum,
		Beta1:    o.Beta1,
		Beta2:    o.Beta2,
		Epsilon:  o.Epsilon,
		Rho:      o.Rho,
		Gamma:    o.Gamma,
		Nesterov: o.Nesterov,
	}
}

// CheckpointConfig controls periodic checkpoints.
type CheckpointConfig struct {
	Dir   string `json:"dir" yaml:"dir"`
	Every int    `json:"every" yaml:"every"` // epochs between checkpoints, 0 disables
	Keep  int    `json:"keep" yaml:"keep"`   // newest files kept, 0 keeps all
}

// MonitorConfig controls metric history and the HTTP endpoint.
type MonitorConfig struct {
	DB     string `json:"db" yaml:"db"`         // SQLite path, empty keeps history in memory
	Listen string `json:"listen" yaml:"listen"` // e.g. ":9090", empty disables HTTP
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

// Default values.
const (
	DefaultNumCached  = 10
	DefaultOptimizer  = "adam"
	DefaultActivation = "relu"
	DefaultLoss       = "mse"
	DefaultLogLevel   = "info"
)

// applyDefaults fills zero values.
func applyDefaults(cfg *Config) {
	if cfg.Data.NumCached == 0 {
		cfg.Data.NumCached = DefaultNumCached
	}
	if cfg.Data.LabelColumn == nil {
		last := -1
		cfg.Data.LabelColumn = &last
	}
	if cfg.Training.Optimizer.Kind == "" {
		cfg.Training.Optimizer.Kind = DefaultOptimizer
	}
	if cfg.Training.Activation == "" {
		cfg.Training.Activation = DefaultActivation
	}
	if cfg.Training.Loss == "" {
		cfg.Training.Loss = DefaultLoss
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}
