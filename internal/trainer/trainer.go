// Package trainer runs the minibatch training loop.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/born-ml/neuralnet/internal/checkpoint"
	"github.com/born-ml/neuralnet/internal/config"
	"github.com/born-ml/neuralnet/internal/data"
	"github.com/born-ml/neuralnet/internal/log"
	"github.com/born-ml/neuralnet/internal/monitor"
	"github.com/born-ml/neuralnet/internal/nn"
	"github.com/born-ml/neuralnet/internal/optim"
	"github.com/born-ml/neuralnet/internal/tensor"
)

// ErrIncomplete is returned when a required Trainer field is missing.
var ErrIncomplete = errors.New("trainer is missing a component")

// Metric scores a batch prediction against its targets.
type Metric func(prediction, target *tensor.Tensor) float32

// Trainer wires a model to its data, optimizer and bookkeeping.
// Model, Loss, Optimizer and Data are required; the rest are optional.
type Trainer struct {
	Model     nn.Model
	Loss      nn.Loss
	Optimizer optim.Optimizer
	Data      *data.Manager

	// Metrics are evaluated on every batch and plotted by name.
	Metrics map[string]Metric
	Monitor *monitor.Monitor
	// Checkpoints receives a checkpoint every CheckpointEvery epochs.
	Checkpoints     *checkpoint.Manager
	CheckpointEvery int
	Annealer        *optim.Annealer
	// Config, when set, is watched for learning rate changes.
	Config *config.Holder
	RunID  string
}

// Result summarizes a run.
type Result struct {
	RunID      string
	Epochs     int     // epochs completed by this run
	Iterations int     // batches processed by this run
	Loss       float64 // mean loss of the last completed epoch
}

func (t *Trainer) validate() error {
	switch {
	case t.Model == nil:
		return fmt.Errorf("%w: model", ErrIncomplete)
	case t.Loss == nil:
		return fmt.Errorf("%w: loss", ErrIncomplete)
	case t.Optimizer == nil:
		return fmt.Errorf("%w: optimizer", ErrIncomplete)
	case t.Data == nil:
		return fmt.Errorf("%w: data", ErrIncomplete)
	}
	return nil
}

// Resume restores model and optimizer from the checkpoint written after
// epoch and adopts its run ID. The data manager must have been created
// with the same start epoch.
func (t *Trainer) Resume(epoch int) (checkpoint.State, error) {
	if t.Checkpoints == nil {
		return checkpoint.State{}, fmt.Errorf("%w: checkpoints (needed to resume)", ErrIncomplete)
	}
	entry, err := t.Checkpoints.Find(epoch)
	if err != nil {
		return checkpoint.State{}, err
	}
	st, err := checkpoint.Load(entry.Path, t.Model, t.Optimizer)
	if err != nil {
		return checkpoint.State{}, err
	}
	if st.RunID != "" {
		t.RunID = st.RunID
	}
	if t.Monitor != nil {
		t.Monitor.SetIteration(int(st.Step))
	}
	return st, nil
}

// Run trains until the data manager is exhausted, fn returns an error, or
// ctx is cancelled. Per batch it anneals the learning rate, runs forward
// and backward passes, steps the optimizer and records the loss.
func (t *Trainer) Run(ctx context.Context) (Result, error) {
	if err := t.validate(); err != nil {
		return Result{}, err
	}
	logger := log.WithComponent("trainer")
	if t.RunID != "" {
		logger = logger.With().Str("run_id", t.RunID).Logger()
	}

	var updates chan config.Config
	if t.Config != nil {
		updates = make(chan config.Config, 1)
		t.Config.Subscribe(updates)
	}

	nb := t.Data.BatchesPerEpoch()
	res := Result{RunID: t.RunID}
	var (
		epochLoss  float64
		epochStart = time.Now()
	)

	logger.Info().
		Str("event", "trainer.start").
		Str("model", t.Model.Name()).
		Str("optimizer", t.Optimizer.Name()).
		Int("start_epoch", t.Data.Epoch()).
		Int("batches_per_epoch", nb).
		Msg("training started")

	err := t.Data.Run(ctx, func(ctx context.Context, it int, batch []*tensor.Tensor) error {
		if len(batch) < 2 {
			return fmt.Errorf("trainer: batch needs inputs and targets, got %d tensors", len(batch))
		}
		t.applyUpdates(updates, logger)

		lr := t.Optimizer.LR()
		if t.Annealer != nil {
			lr = t.Annealer.Anneal(it)
		}

		loss, pred, target := t.step(batch[0], batch[1])
		if math.IsNaN(float64(loss)) || math.IsInf(float64(loss), 0) {
			return fmt.Errorf("trainer: loss diverged at iteration %d", it)
		}
		epochLoss += float64(loss)
		res.Iterations++

		if t.Monitor != nil {
			t.Monitor.Plot("loss", float64(loss))
			t.Monitor.Plot("lr", float64(lr))
			for name, m := range t.Metrics {
				t.Monitor.Plot(name, float64(m(pred, target)))
			}
			if _, err := t.Monitor.Tick(ctx); err != nil {
				return err
			}
		}

		if it%nb != nb-1 {
			return nil
		}
		epoch := it/nb + 1
		res.Epochs++
		res.Loss = epochLoss / float64(nb)
		logger.Info().
			Str("event", "trainer.epoch_done").
			Int("epoch", epoch).
			Float64("loss", res.Loss).
			Float32("lr", lr).
			Dur("took", time.Since(epochStart)).
			Msg("epoch finished")
		epochLoss, epochStart = 0, time.Now()

		if t.Checkpoints != nil && t.CheckpointEvery > 0 && epoch%t.CheckpointEvery == 0 {
			st, err := t.Checkpoints.Save(t.Model, t.Optimizer, checkpoint.State{
				RunID: t.RunID,
				Epoch: epoch,
				Step:  int64(it + 1),
				Loss:  res.Loss,
			})
			if err != nil {
				return err
			}
			t.RunID, res.RunID = st.RunID, st.RunID
		}
		return nil
	})

	ev := logger.Info()
	if err != nil {
		ev = logger.Warn().Err(err)
	}
	ev.Str("event", "trainer.stop").
		Int("epochs", res.Epochs).
		Int("iterations", res.Iterations).
		Float64("loss", res.Loss).
		Msg("training stopped")
	return res, err
}

// step runs one forward/backward/update cycle and returns the loss with the
// prediction and the (possibly reshaped) target.
func (t *Trainer) step(x, y *tensor.Tensor) (float32, *tensor.Tensor, *tensor.Tensor) {
	pred := t.Model.Forward(x)
	// Regression targets come as [B]; a single-output model predicts [B, 1].
	if y.Dims() == 1 && pred.Dims() == 2 && pred.Shape()[1] == 1 {
		y = y.Reshape(-1, 1)
	}
	loss, grad := t.Loss(pred, y)
	t.Model.Backward(grad)
	t.Optimizer.Step(optim.GradientsOf(t.Model.Parameters()))
	t.Model.ZeroGrad()
	return loss, pred, y
}

// applyUpdates adopts a learning rate from the latest reloaded config.
func (t *Trainer) applyUpdates(updates <-chan config.Config, logger zerolog.Logger) {
	if updates == nil {
		return
	}
	select {
	case cfg := <-updates:
		lr := cfg.Training.Optimizer.LR
		if lr <= 0 {
			return
		}
		old := t.Optimizer.LR()
		if t.Annealer != nil {
			old = t.Annealer.Base()
			t.Annealer.SetBase(lr)
		} else {
			t.Optimizer.SetLR(lr)
		}
		if old != lr {
			logger.Info().
				Str("event", "trainer.lr_changed").
				Float32("old", old).
				Float32("new", lr).
				Msg("learning rate updated from config")
		}
	default:
	}
}
