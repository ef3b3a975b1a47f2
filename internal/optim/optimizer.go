// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD with optional classic or Nesterov momentum
//   - AdaGrad, AdaDelta and RMSprop
//   - Adam, AdaMax, NAdam and AMSGrad
//   - Schedule / Annealer: learning-rate annealing
//
// Example usage:
//
//	opt := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001})
//
//	for epoch := range epochs {
//	    out := model.Forward(x)
//	    loss, grad := nn.MSE(out, y)
//	    model.Backward(grad)
//
//	    opt.Step(optim.GradientsOf(model.Parameters()))
//	    opt.ZeroGrad()
//	}
package optim

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/neuralnet/internal/nn"
	"github.com/born-ml/neuralnet/internal/tensor"
)

// ErrStateShape is returned when a loaded state buffer does not match its parameter.
var ErrStateShape = errors.New("optimizer state shape mismatch")

// Gradients maps a parameter value tensor to its gradient.
type Gradients map[*tensor.Tensor]*tensor.Tensor

// GradientsOf collects the accumulated gradients of params.
// Parameters without a gradient are left out.
func GradientsOf(params []*nn.Parameter) Gradients {
	grads := make(Gradients, len(params))
	for _, p := range params {
		if g := p.Grad(); g != nil {
			grads[p.Tensor()] = g
		}
	}
	return grads
}

// Optimizer is the base interface for all optimization algorithms.
//
// Optimizers update model parameters based on computed gradients to
// minimize the loss function during training.
type Optimizer interface {
	// Step applies gradient updates to all parameters in place.
	// Parameters missing from grads are skipped.
	Step(grads Gradients)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// LR returns the current learning rate.
	LR() float32

	// SetLR changes the learning rate used by subsequent steps.
	SetLR(lr float32)

	// Reset zeroes every state buffer and the time step.
	Reset()

	// Name returns the algorithm name as accepted by New.
	Name() string

	// StateDict exports the state buffers, keyed "<buffer>.<param index>",
	// plus the step counter under "t".
	StateDict() map[string]*tensor.Tensor

	// LoadStateDict restores state exported by StateDict.
	LoadStateDict(stateDict map[string]*tensor.Tensor) error
}

// base carries what every optimizer shares: the parameters, the learning
// rate, the step counter and named per-parameter state buffers.
type base struct {
	name    string
	params  []*nn.Parameter
	lr      float32
	t       int
	buffers []string
	state   map[string][]*tensor.Tensor // buffer name -> per parameter, nil until first step
}

func newBase(name string, params []*nn.Parameter, lr float32, buffers ...string) base {
	b := base{
		name:    name,
		params:  params,
		lr:      lr,
		buffers: buffers,
		state:   make(map[string][]*tensor.Tensor, len(buffers)),
	}
	for _, buf := range buffers {
		b.state[buf] = make([]*tensor.Tensor, len(params))
	}
	return b
}

// update is called once per parameter with a gradient. bufs holds the
// parameter's state buffers in the order they were declared.
type update func(p, g []float32, bufs [][]float32)

// apply runs fn for every parameter that has a gradient, allocating its
// state buffers on first use. Panics on a gradient of the wrong shape.
func (b *base) apply(grads Gradients, fn update) {
	bufs := make([][]float32, len(b.buffers))
	for i, param := range b.params {
		grad, ok := grads[param.Tensor()]
		if !ok || grad == nil {
			continue
		}
		if !grad.Shape().Equal(param.Tensor().Shape()) {
			panic(fmt.Sprintf("%s: gradient shape %v does not match parameter %q %v",
				b.name, grad.Shape(), param.Name(), param.Tensor().Shape()))
		}
		for j, name := range b.buffers {
			buf := b.state[name][i]
			if buf == nil {
				buf = tensor.ZerosLike(param.Tensor())
				b.state[name][i] = buf
			}
			bufs[j] = buf.Data()
		}
		fn(param.Tensor().Data(), grad.Data(), bufs)
	}
}

// ZeroGrad clears gradients for all parameters.
func (b *base) ZeroGrad() {
	for _, param := range b.params {
		param.ZeroGrad()
	}
}

// LR returns the current learning rate.
func (b *base) LR() float32 {
	return b.lr
}

// SetLR sets the learning rate.
func (b *base) SetLR(lr float32) {
	b.lr = lr
}

// Name returns the algorithm name.
func (b *base) Name() string {
	return b.name
}

// Timestep returns the number of steps taken since creation or Reset.
func (b *base) Timestep() int {
	return b.t
}

// Reset zeroes the state buffers and the step counter.
func (b *base) Reset() {
	b.t = 0
	for _, bufs := range b.state {
		for _, buf := range bufs {
			if buf != nil {
				buf.Fill(0)
			}
		}
	}
}

// StateDict exports allocated buffers and the step counter.
//
// State keys: "{buffer}.{param_index}" -> buffer tensor, "t" -> scalar.
func (b *base) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)
	for name, bufs := range b.state {
		for i, buf := range bufs {
			if buf == nil {
				continue // No state yet (parameter hasn't been updated)
			}
			stateDict[name+"."+strconv.Itoa(i)] = buf.Clone()
		}
	}
	stateDict["t"] = tensor.Scalar(float32(b.t))
	return stateDict
}

// LoadStateDict restores buffers exported by StateDict.
//
// Buffers absent from stateDict are reset to be lazily allocated. Unknown
// keys are ignored so that a model state dict can be passed alongside.
func (b *base) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	for key, value := range stateDict {
		name, idx, ok := strings.Cut(key, ".")
		if _, known := b.state[name]; !ok || !known {
			continue
		}
		i, err := strconv.Atoi(idx)
		if err != nil || i < 0 || i >= len(b.params) {
			return fmt.Errorf("%s: invalid state key %q", b.name, key)
		}
		if !value.Shape().Equal(b.params[i].Tensor().Shape()) {
			return fmt.Errorf("%w: %s for parameter %d: expected %v, got %v",
				ErrStateShape, name, i, b.params[i].Tensor().Shape(), value.Shape())
		}
	}

	for name := range b.state {
		bufs := make([]*tensor.Tensor, len(b.params))
		for i := range b.params {
			if value, ok := stateDict[name+"."+strconv.Itoa(i)]; ok {
				bufs[i] = value.Clone()
			}
		}
		b.state[name] = bufs
	}
	if t, ok := stateDict["t"]; ok {
		b.t = int(t.Item())
	}
	return nil
}
