package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
data:
  path: train.csv
  shuffle: true
training:
  batch_size: 32
  n_epochs: 5
  hidden: [16, 8]
  optimizer:
    kind: momentum
    lr: 0.01
    momentum: 0.9
  anneal:
    method: step
    step: 100
checkpoint:
  dir: ckpt
  every: 1
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", validYAML))
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Training.BatchSize)
	assert.Equal(t, 5, cfg.Training.NEpochs)
	assert.Equal(t, []int{16, 8}, cfg.Training.Hidden)
	assert.Equal(t, "momentum", cfg.Training.Optimizer.Kind)
	assert.InDelta(t, 0.9, cfg.Training.Optimizer.Momentum, 1e-7)
	require.NotNil(t, cfg.Training.Anneal)
	assert.Equal(t, 100, cfg.Training.Anneal.Step)

	// Defaults
	assert.Equal(t, DefaultNumCached, cfg.Data.NumCached)
	assert.Equal(t, -1, *cfg.Data.LabelColumn)
	assert.Equal(t, DefaultActivation, cfg.Training.Activation)
	assert.Equal(t, DefaultLoss, cfg.Training.Loss)
	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"data": {"path": "x.csv", "num_cached": 3, "label_column": 0},
		"training": {"batch_size": 4, "n_epochs": 2, "optimizer": {"kind": "sgd", "lr": 0.1}}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Data.NumCached)
	assert.Equal(t, 0, *cfg.Data.LabelColumn)
	assert.Equal(t, "sgd", cfg.Training.Optimizer.Kind)
}

func TestOptimizerConfig_Optim(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml",
		"training:\n  batch_size: 2\n  n_epochs: 1\n  optimizer:\n    kind: momentum\n    lr: 0.05\n    momentum: 0.8\n    nesterov: true\n"))
	require.NoError(t, err)

	oc := cfg.Training.Optimizer.Optim()
	assert.True(t, oc.Nesterov)
	assert.InDelta(t, 0.05, oc.LR, 1e-7)
	assert.InDelta(t, 0.8, oc.Momentum, 1e-7)
}

func TestLoad_UnknownFieldsRejected(t *testing.T) {
	_, err := Load(writeFile(t, "config.yaml", "training:\n  batch_size: 1\n  n_epochs: 1\n  bogus: 1\n"))
	require.ErrorIs(t, err, ErrDecode)

	_, err = Load(writeFile(t, "config.json", `{"training": {"batch_size": 1, "n_epochs": 1}, "extra": true}`))
	require.ErrorIs(t, err, ErrDecode)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "config.toml", "x = 1"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_ValidationListsEveryField(t *testing.T) {
	_, err := Load(writeFile(t, "config.yaml", "training:\n  optimizer:\n    kind: lbfgs\n"))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.Contains(t, fields, "training.batch_size")
	assert.Contains(t, fields, "training.n_epochs")
	assert.Contains(t, fields, "training.optimizer.kind")
}

func TestValidate_Anneal(t *testing.T) {
	cfg, err := LoadFile(writeFile(t, "config.yaml", validYAML))
	require.NoError(t, err)
	applyDefaults(&cfg)
	cfg.Training.Anneal.Step = 0

	var verr *ValidationError
	require.ErrorAs(t, Validate(cfg), &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "training.anneal", verr.Fields[0].Field)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvBatchSize, "64")
	t.Setenv(EnvNEpochs, "not-a-number")
	t.Setenv(EnvLR, "0.5")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load(writeFile(t, "config.yaml", validYAML))
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Training.BatchSize)
	assert.Equal(t, 5, cfg.Training.NEpochs, "malformed value keeps the file setting")
	assert.InDelta(t, 0.5, cfg.Training.Optimizer.LR, 1e-7)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestHolder_Reload(t *testing.T) {
	path := writeFile(t, "config.yaml", validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	h := NewHolder(cfg, path)
	ch := make(chan Config, 1)
	h.Subscribe(ch)

	require.NoError(t, os.WriteFile(path, []byte(validYAML+"log:\n  level: warn\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))
	assert.Equal(t, "warn", h.Get().Log.Level)
	assert.Equal(t, "warn", (<-ch).Log.Level)

	// An invalid file leaves the current configuration in place.
	require.NoError(t, os.WriteFile(path, []byte("training: [\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))
	assert.Equal(t, "warn", h.Get().Log.Level)
}

func TestHolder_WatchReloadsOnWrite(t *testing.T) {
	path := writeFile(t, "config.yaml", validYAML)
	cfg, err := Load(path)
	require.NoError(t, err)

	h := NewHolder(cfg, path)
	h.SetDebounce(10 * time.Millisecond)
	ch := make(chan Config, 4)
	h.Subscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.Watch(ctx))

	updated := validYAML + "log:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	select {
	case got := <-ch:
		assert.Equal(t, "error", got.Log.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded after file write")
	}
}

func TestHolder_WatchWithoutPath(t *testing.T) {
	h := NewHolder(Config{}, "")
	require.NoError(t, h.Watch(context.Background()))
}
