package config

import (
	"os"
	"strconv"

	"github.com/born-ml/neuralnet/internal/log"
)

// Environment variables that override file values.
const (
	EnvBatchSize = "NEURALNET_BATCH_SIZE"
	EnvNEpochs   = "NEURALNET_N_EPOCHS"
	EnvLR        = "NEURALNET_LR"
	EnvLogLevel  = "NEURALNET_LOG_LEVEL"
)

// applyEnv overrides cfg from the environment. Malformed values are logged
// and ignored.
func applyEnv(cfg *Config) {
	cfg.Training.BatchSize = parseInt(EnvBatchSize, cfg.Training.BatchSize)
	cfg.Training.NEpochs = parseInt(EnvNEpochs, cfg.Training.NEpochs)
	cfg.Training.Optimizer.LR = float32(parseFloat(EnvLR, float64(cfg.Training.Optimizer.LR)))
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		cfg.Log.Level = v
	}
}

// parseInt reads an integer from key or returns current.
func parseInt(key string, current int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return current
	}
	logger := log.WithComponent("config")
	i, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn().
			Str("event", "config.env_invalid").
			Str("key", key).
			Str("value", v).
			Int("current", current).
			Msg("invalid integer in environment variable, keeping file value")
		return current
	}
	logger.Debug().
		Str("key", key).
		Int("value", i).
		Str("source", "environment").
		Msg("using environment variable")
	return i
}

// parseFloat reads a float from key or returns current.
func parseFloat(key string, current float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return current
	}
	logger := log.WithComponent("config")
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		logger.Warn().
			Str("event", "config.env_invalid").
			Str("key", key).
			Str("value", v).
			Float64("current", current).
			Msg("invalid float in environment variable, keeping file value")
		return current
	}
	logger.Debug().
		Str("key", key).
		Float64("value", f).
		Str("source", "environment").
		Msg("using environment variable")
	return f
}
