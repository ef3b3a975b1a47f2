package trainer

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/born-ml/neuralnet/internal/checkpoint"
	"github.com/born-ml/neuralnet/internal/config"
	"github.com/born-ml/neuralnet/internal/data"
	"github.com/born-ml/neuralnet/internal/monitor"
	"github.com/born-ml/neuralnet/internal/nn"
	"github.com/born-ml/neuralnet/internal/optim"
	"github.com/born-ml/neuralnet/internal/tensor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// line returns n samples of y = 2x + 1 with x evenly spread over [-1, 1].
func line(n int) []*tensor.Tensor {
	x := tensor.Zeros(tensor.Shape{n, 1})
	y := tensor.Zeros(tensor.Shape{n})
	for i := range n {
		v := -1 + 2*float32(i)/float32(n-1)
		x.Set(v, i, 0)
		y.Set(2*v+1, i)
	}
	return []*tensor.Tensor{x, y}
}

type fixture struct {
	model *nn.Base
	opt   optim.Optimizer
	data  *data.Manager
}

func newFixture(t *testing.T, epochs, start int, lr float32) fixture {
	t.Helper()
	model, err := nn.NewMLP(1, nil, 1, "relu", rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	opt, err := optim.New("adam", model.Parameters(), optim.Config{LR: lr})
	require.NoError(t, err)
	dm, err := data.New(line(16), nil, data.Options{
		BatchSize:  4,
		NEpochs:    epochs,
		Shuffle:    true,
		Seed:       7,
		StartEpoch: start,
	})
	require.NoError(t, err)
	return fixture{model: model, opt: opt, data: dm}
}

func newMonitor(t *testing.T) *monitor.Monitor {
	t.Helper()
	mon, err := monitor.New(context.Background(), monitor.Options{
		RunID: "run",
		DB:    filepath.Join(t.TempDir(), "history.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mon.Close() })
	return mon
}

func TestRun_Incomplete(t *testing.T) {
	f := newFixture(t, 1, 0, 0.01)
	cases := map[string]Trainer{
		"model":     {Loss: nn.MSE, Optimizer: f.opt, Data: f.data},
		"loss":      {Model: f.model, Optimizer: f.opt, Data: f.data},
		"optimizer": {Model: f.model, Loss: nn.MSE, Data: f.data},
		"data":      {Model: f.model, Loss: nn.MSE, Optimizer: f.opt},
	}
	for name, tr := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tr.Run(context.Background())
			require.ErrorIs(t, err, ErrIncomplete)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestRun_FitsLine(t *testing.T) {
	f := newFixture(t, 60, 0, 0.05)
	mon := newMonitor(t)
	tr := &Trainer{Model: f.model, Loss: nn.MSE, Optimizer: f.opt, Data: f.data, Monitor: mon}

	res, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 60, res.Epochs)
	assert.Equal(t, 60*4, res.Iterations)
	assert.Less(t, res.Loss, 0.05)
	assert.Equal(t, 60*4, mon.Iteration())

	hist, err := mon.History(context.Background(), "loss")
	require.NoError(t, err)
	require.Len(t, hist, 60*4)
	assert.Less(t, hist[len(hist)-1].Value, hist[0].Value)

	lr, ok := mon.Last("lr")
	require.True(t, ok)
	assert.InDelta(t, 0.05, lr, 1e-6)
}

func TestRun_Annealer(t *testing.T) {
	f := newFixture(t, 2, 0, 0.1)
	ann, err := optim.NewAnnealer(f.opt, optim.Schedule{Method: optim.StepDecay, Step: 4, Decay: 0.5})
	require.NoError(t, err)
	tr := &Trainer{Model: f.model, Loss: nn.MSE, Optimizer: f.opt, Data: f.data, Annealer: ann}

	_, err = tr.Run(context.Background())
	require.NoError(t, err)
	// Last iteration is 7: 0.1 * 0.5^(7/4).
	assert.InDelta(t, 0.05, f.opt.LR(), 1e-6)
	assert.InDelta(t, 0.1, ann.Base(), 1e-6)
}

func TestRun_Metrics(t *testing.T) {
	f := newFixture(t, 1, 0, 0.01)
	mon := newMonitor(t)
	var calls int
	tr := &Trainer{
		Model: f.model, Loss: nn.MSE, Optimizer: f.opt, Data: f.data, Monitor: mon,
		Metrics: map[string]Metric{
			"batch": func(pred, target *tensor.Tensor) float32 {
				calls++
				assert.Equal(t, tensor.Shape{4, 1}, pred.Shape())
				assert.Equal(t, tensor.Shape{4, 1}, target.Shape())
				return float32(pred.Shape()[0])
			},
		},
	}
	_, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	v, ok := mon.Last("batch")
	require.True(t, ok)
	assert.InDelta(t, 4, v, 0)
}

func TestRun_Diverged(t *testing.T) {
	f := newFixture(t, 1, 0, 0.01)
	nan := func(pred, _ *tensor.Tensor) (float32, *tensor.Tensor) {
		return float32(math.NaN()), tensor.Zeros(pred.Shape())
	}
	tr := &Trainer{Model: f.model, Loss: nan, Optimizer: f.opt, Data: f.data}
	res, err := tr.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "diverged at iteration 0")
	assert.Zero(t, res.Iterations)
}

func TestRun_Cancelled(t *testing.T) {
	f := newFixture(t, 1000, 0, 0.01)
	ctx, cancel := context.WithCancel(context.Background())
	var n int
	slow := func(pred, target *tensor.Tensor) (float32, *tensor.Tensor) {
		n++
		if n == 3 {
			cancel()
		}
		return nn.MSE(pred, target)
	}
	tr := &Trainer{Model: f.model, Loss: slow, Optimizer: f.opt, Data: f.data}
	_, err := tr.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, n, 1000*4)
}

func TestRun_CheckpointsAndResume(t *testing.T) {
	dir := t.TempDir()
	ckpts := &checkpoint.Manager{Dir: dir}

	f := newFixture(t, 4, 0, 0.05)
	tr := &Trainer{
		Model: f.model, Loss: nn.MSE, Optimizer: f.opt, Data: f.data,
		Checkpoints: ckpts, CheckpointEvery: 2,
	}
	res, err := tr.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	entries, err := ckpts.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].Epoch)
	assert.Equal(t, 4, entries[1].Epoch)

	// Resume after epoch 2 into a fresh model and finish the remaining epochs.
	g := newFixture(t, 4, 2, 0.05)
	mon := newMonitor(t)
	resumed := &Trainer{
		Model: g.model, Loss: nn.MSE, Optimizer: g.opt, Data: g.data,
		Monitor: mon, Checkpoints: ckpts,
	}
	st, err := resumed.Resume(2)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Epoch)
	assert.Equal(t, int64(8), st.Step)
	assert.Equal(t, res.RunID, resumed.RunID)
	assert.Equal(t, 8, mon.Iteration())

	out, err := resumed.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, out.Epochs)
	assert.Equal(t, 8, out.Iterations)
	assert.Equal(t, 16, mon.Iteration())

	_, err = resumed.Resume(3)
	require.ErrorIs(t, err, checkpoint.ErrNoCheckpoint)
}

func TestResume_WithoutCheckpoints(t *testing.T) {
	f := newFixture(t, 1, 0, 0.01)
	tr := &Trainer{Model: f.model, Loss: nn.MSE, Optimizer: f.opt, Data: f.data}
	_, err := tr.Resume(1)
	require.ErrorIs(t, err, ErrIncomplete)
}

func TestRun_HotLearningRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	write := func(lr string) {
		assert.NoError(t, os.WriteFile(path, []byte("training:\n  batch_size: 4\n  n_epochs: 2\n  optimizer:\n    kind: adam\n    lr: "+lr+"\n"), 0o600))
	}
	write("0.01")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	holder := config.NewHolder(cfg, path)

	f := newFixture(t, 2, 0, 0.01)
	mon := newMonitor(t)
	var once sync.Once
	tr := &Trainer{
		Model: f.model, Loss: nn.MSE, Optimizer: f.opt, Data: f.data, Monitor: mon, Config: holder,
		Metrics: map[string]Metric{
			"reload": func(_, _ *tensor.Tensor) float32 {
				once.Do(func() {
					write("0.002")
					assert.NoError(t, holder.Reload(context.Background()))
				})
				return 0
			},
		},
	}
	_, err = tr.Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.002, f.opt.LR(), 1e-7)
	lr, ok := mon.Last("lr")
	require.True(t, ok)
	assert.InDelta(t, 0.002, lr, 1e-7)
}
