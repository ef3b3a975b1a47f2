// Package checkpoint saves and restores training state as .born files.
//
// A checkpoint holds the model state dict under its own keys ("0.weight",
// ...) and the optimizer state under the "optimizer." prefix, together with
// the epoch, step, loss and run ID in the file header.
package checkpoint

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/born-ml/neuralnet/internal/log"
	"github.com/born-ml/neuralnet/internal/nn"
	"github.com/born-ml/neuralnet/internal/optim"
	"github.com/born-ml/neuralnet/internal/serialization"
	"github.com/born-ml/neuralnet/internal/tensor"
)

// OptimizerPrefix namespaces optimizer tensors inside a checkpoint.
const OptimizerPrefix = "optimizer."

// Errors returned by checkpoint operations.
var (
	ErrNoCheckpoint = errors.New("no checkpoint found")
	ErrValueCount   = errors.New("value count mismatch")
)

// State is the training progress stored alongside the tensors.
type State struct {
	RunID    string
	Epoch    int
	Step     int64
	Loss     float64
	Metadata map[string]string
}

// keyed models report their state dict keys in parameter order.
type keyed interface {
	Keys() []string
}

// Save writes model and (optionally) opt to path atomically. An empty
// RunID is replaced with a fresh UUID; the state actually written is
// returned.
func Save(path string, model nn.Model, opt optim.Optimizer, st State) (State, error) {
	if st.RunID == "" {
		st.RunID = uuid.NewString()
	}

	stateDict := make(map[string]*tensor.Tensor)
	for k, v := range model.StateDict() {
		stateDict[k] = v
	}
	meta := &serialization.CheckpointMeta{
		RunID: st.RunID,
		Epoch: st.Epoch,
		Step:  st.Step,
		Loss:  st.Loss,
	}
	if k, ok := model.(keyed); ok {
		meta.Params = k.Keys()
	}
	if opt != nil {
		for k, v := range opt.StateDict() {
			stateDict[OptimizerPrefix+k] = v
		}
		meta.Optimizer = opt.Name()
		meta.LR = opt.LR()
	}

	header := serialization.Header{
		ModelType:  model.Name(),
		Metadata:   st.Metadata,
		Checkpoint: meta,
	}
	if err := serialization.WriteFile(path, stateDict, header); err != nil {
		return st, fmt.Errorf("save checkpoint: %w", err)
	}

	logger := log.WithComponent("checkpoint")
	logger.Info().
		Str("event", "checkpoint.saved").
		Str("path", path).
		Str("run_id", st.RunID).
		Int("epoch", st.Epoch).
		Int64("step", st.Step).
		Float64("loss", st.Loss).
		Msg("checkpoint saved")
	return st, nil
}

// Load restores model and opt from path and returns the stored state.
//
// A nil opt skips the optimizer tensors. When the file was written by a
// different optimizer its state is ignored with a warning and only the
// model is restored. Otherwise the saved learning rate is restored too. If
// the optimizer state is rejected the model is rolled back.
func Load(path string, model nn.Model, opt optim.Optimizer) (State, error) {
	stateDict, header, err := serialization.ReadFile(path, serialization.ReaderOptions{})
	if err != nil {
		return State{}, fmt.Errorf("load checkpoint: %w", err)
	}
	logger := log.WithComponent("checkpoint")

	modelState, optState := split(stateDict)
	if header.ModelType != "" && header.ModelType != model.Name() {
		logger.Warn().
			Str("event", "checkpoint.model_mismatch").
			Str("file", header.ModelType).
			Str("model", model.Name()).
			Msg("checkpoint was written by a different model")
	}
	previous := snapshot(model)
	if err := model.LoadStateDict(modelState); err != nil {
		return State{}, fmt.Errorf("load checkpoint %s: %w", path, err)
	}

	st := State{Metadata: header.Metadata}
	if cp := header.Checkpoint; cp != nil {
		st.RunID, st.Epoch, st.Step, st.Loss = cp.RunID, cp.Epoch, cp.Step, cp.Loss

		if opt != nil && len(optState) > 0 {
			if cp.Optimizer != "" && cp.Optimizer != opt.Name() {
				logger.Warn().
					Str("event", "checkpoint.optimizer_mismatch").
					Str("file", cp.Optimizer).
					Str("optimizer", opt.Name()).
					Msg("ignoring optimizer state")
			} else {
				if err := opt.LoadStateDict(optState); err != nil {
					if rerr := model.LoadStateDict(previous); rerr != nil {
						err = errors.Join(err, rerr)
					}
					return State{}, fmt.Errorf("load checkpoint %s: %w", path, err)
				}
				if cp.LR > 0 {
					opt.SetLR(cp.LR)
				}
			}
		}
	}

	logger.Info().
		Str("event", "checkpoint.loaded").
		Str("path", path).
		Str("run_id", st.RunID).
		Int("epoch", st.Epoch).
		Msg("checkpoint loaded")
	return st, nil
}

// snapshot deep-copies the model's current state dict.
func snapshot(model nn.Model) map[string]*tensor.Tensor {
	stateDict := model.StateDict()
	copies := make(map[string]*tensor.Tensor, len(stateDict))
	for k, v := range stateDict {
		copies[k] = v.Clone()
	}
	return copies
}

// split separates model tensors from prefixed optimizer tensors.
func split(stateDict map[string]*tensor.Tensor) (model, opt map[string]*tensor.Tensor) {
	model = make(map[string]*tensor.Tensor)
	opt = make(map[string]*tensor.Tensor)
	for k, v := range stateDict {
		if name, ok := strings.CutPrefix(k, OptimizerPrefix); ok {
			opt[name] = v
			continue
		}
		model[k] = v
	}
	return model, opt
}

// Values reads the model tensors of a checkpoint in parameter order.
// Files without a recorded order fall back to nn.SortedKeys.
func Values(path string) ([]*tensor.Tensor, error) {
	stateDict, header, err := serialization.ReadFile(path, serialization.ReaderOptions{})
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	model, _ := split(stateDict)
	keys := nn.SortedKeys(model)
	if cp := header.Checkpoint; cp != nil && len(cp.Params) > 0 {
		keys = cp.Params
	}
	values := make([]*tensor.Tensor, len(keys))
	for i, k := range keys {
		v, ok := model[k]
		if !ok {
			return nil, fmt.Errorf("%s: %w: %s", path, nn.ErrMissingParameter, k)
		}
		values[i] = v
	}
	return values, nil
}

// LoadBatch reads the values of several checkpoints, concatenates them in
// the order given, and assigns the result to params. It is the way to
// assemble one model from separately trained parts.
func LoadBatch(paths []string, params []*nn.Parameter) error {
	var values []*tensor.Tensor
	for _, path := range paths {
		v, err := Values(path)
		if err != nil {
			return err
		}
		values = append(values, v...)
	}
	if len(values) != len(params) {
		return fmt.Errorf("%w: %d files hold %d values for %d parameters",
			ErrValueCount, len(paths), len(values), len(params))
	}
	pairs := make([]Pair, len(params))
	for i, p := range params {
		pairs[i] = Pair{Param: p, Value: values[i]}
	}
	return BatchSetValue(pairs)
}

// Pair binds a parameter to the value it should take.
type Pair struct {
	Param *nn.Parameter
	Value *tensor.Tensor
}

// BatchSetValue assigns every pair. All shapes are checked before any
// parameter is written.
func BatchSetValue(pairs []Pair) error {
	params := make([]*nn.Parameter, len(pairs))
	values := make([]*tensor.Tensor, len(pairs))
	for i, p := range pairs {
		params[i], values[i] = p.Param, p.Value
	}
	return nn.SetValues(params, values)
}
