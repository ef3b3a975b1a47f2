package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/neuralnet/internal/checkpoint"
	"github.com/born-ml/neuralnet/internal/data"
	"github.com/born-ml/neuralnet/internal/serialization"
	"github.com/born-ml/neuralnet/internal/tensor"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_Dispatch(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "neuralnet "+version)
	assert.Contains(t, out, "format v2")

	code, _, errOut := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "Usage:")

	code, _, errOut = runCLI(t, "serve")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "serve"`)

	code, _, errOut = runCLI(t, "train")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "requires -config")

	code, _, errOut = runCLI(t, "inspect")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "exactly one file")

	code, _, errOut = runCLI(t, "train", "-config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "error:")
}

const regressionConfig = `
data:
  path: train.csv
  shuffle: true
training:
  batch_size: 4
  n_epochs: %d
  checkpoint_epoch: %d
  seed: 3
  hidden: [4]
  activation: tanh
  optimizer:
    kind: adam
    lr: 0.01
checkpoint:
  dir: ckpt
  every: 1
  keep: 2
monitor:
  db: history.db
log:
  level: error
`

func TestTrain_RegressionAndResume(t *testing.T) {
	dir := t.TempDir()
	var csv strings.Builder
	csv.WriteString("a,b,y\n")
	for i := range 20 {
		a, b := float32(i)/20, float32(20-i)/40
		fmt.Fprintf(&csv, "%g,%g,%g\n", a, b, a+b)
	}
	writeFile(t, dir, "train.csv", csv.String())
	cfgPath := writeFile(t, dir, "config.yaml", fmt.Sprintf(regressionConfig, 3, 0))
	out := filepath.Join(dir, "model.born")

	code, _, errOut := runCLI(t, "train", "-config", cfgPath, "-out", out)
	require.Equal(t, 0, code, errOut)

	ckpts := checkpoint.Manager{Dir: filepath.Join(dir, "ckpt")}
	entries, err := ckpts.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].Epoch)
	assert.Equal(t, 3, entries[1].Epoch)

	_, h, err := serialization.ReadFile(out, serialization.ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "mlp", h.ModelType)
	require.NotNil(t, h.Checkpoint)
	assert.Equal(t, 3, h.Checkpoint.Epoch)
	assert.Equal(t, int64(15), h.Checkpoint.Step)
	assert.Equal(t, "tanh", h.Metadata["activation"])
	assert.Equal(t, []string{"0.weight", "0.bias", "2.weight", "2.bias"}, h.Checkpoint.Params)

	code, stdout, errOut := runCLI(t, "inspect", out)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, stdout, "model:    mlp")
	assert.Contains(t, stdout, "epoch:    3 (step 15")
	assert.Contains(t, stdout, "0.weight")

	// Continue the same run for one more epoch.
	writeFile(t, dir, "config.yaml", fmt.Sprintf(regressionConfig, 4, 3))
	code, _, errOut = runCLI(t, "train", "-config", cfgPath, "-out", out)
	require.Equal(t, 0, code, errOut)

	entries, err = ckpts.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 4, entries[1].Epoch)

	_, h2, err := serialization.ReadFile(out, serialization.ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, h.Checkpoint.RunID, h2.Checkpoint.RunID)
	assert.Equal(t, 4, h2.Checkpoint.Epoch)
	assert.Equal(t, int64(20), h2.Checkpoint.Step)
}

func TestTrain_ResumeWithoutCheckpoint(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "train.csv", "1,2,3\n2,3,5\n3,4,7\n4,5,9\n")
	cfgPath := writeFile(t, dir, "config.yaml", fmt.Sprintf(regressionConfig, 4, 2))

	code, _, errOut := runCLI(t, "train", "-config", cfgPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "resume from epoch 2")
	assert.Contains(t, errOut, checkpoint.ErrNoCheckpoint.Error())
}

func TestTrain_Classification(t *testing.T) {
	dir := t.TempDir()
	n := 24
	x := tensor.Zeros(tensor.Shape{n, 2})
	y := tensor.Zeros(tensor.Shape{n})
	for i := range n {
		class := i % 3
		x.Set(float32(class), i, 0)
		x.Set(float32(i%2), i, 1)
		y.Set(float32(class), i)
	}
	require.NoError(t, data.SaveTensors(filepath.Join(dir, "train.born"), x, y))
	cfgPath := writeFile(t, dir, "config.json", `{
  "data": {"path": "train.born"},
  "training": {
    "batch_size": 6, "n_epochs": 2, "seed": 5, "hidden": [8],
    "loss": "softmax_cross_entropy",
    "optimizer": {"kind": "momentum", "lr": 0.05}
  },
  "log": {"level": "error"}
}`)
	out := filepath.Join(dir, "model.born")

	code, _, errOut := runCLI(t, "train", "-config", cfgPath, "-out", out)
	require.Equal(t, 0, code, errOut)

	sd, h, err := serialization.ReadFile(out, serialization.ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, "3", h.Metadata["outputs"])
	assert.Equal(t, tensor.Shape{3, 8}, sd["2.weight"].Shape())
}

func TestClassCount(t *testing.T) {
	labels, err := tensor.FromSlice([]float32{0, 2, 1, 2}, tensor.Shape{4})
	require.NoError(t, err)
	n, err := classCount(labels)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, bad := range [][]float32{{0, 0}, {0, 1.5}, {-1, 1}} {
		labels, err := tensor.FromSlice(bad, tensor.Shape{len(bad)})
		require.NoError(t, err)
		_, err = classCount(labels)
		require.ErrorIs(t, err, data.ErrDataset, "%v", bad)
	}
}
