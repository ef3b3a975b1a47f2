package nn

import (
	"fmt"

	"github.com/born-ml/neuralnet/internal/tensor"
)

// Parameter is a named tensor owned by a layer and updated in place by an
// optimizer. Layers add to its gradient during Backward; the model clears
// it with ZeroGrad after each step.
type Parameter struct {
	name   string
	tensor *tensor.Tensor
	grad   *tensor.Tensor // nil until the first Backward
}

// NewParameter wraps t under name. The value is not copied.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the name given at construction ("weight", "bias", ...).
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the live value.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the accumulated gradient, or nil before any backward pass.
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// SetGrad replaces the gradient.
func (p *Parameter) SetGrad(grad *tensor.Tensor) {
	p.grad = grad
}

// AccumulateGrad adds g to the stored gradient, allocating it on first use.
// Panics if g's shape differs from the parameter's.
func (p *Parameter) AccumulateGrad(g *tensor.Tensor) {
	if !g.Shape().Equal(p.tensor.Shape()) {
		panic(fmt.Sprintf("parameter %q: gradient shape %v, want %v", p.name, g.Shape(), p.tensor.Shape()))
	}
	if p.grad == nil {
		p.grad = g.Clone()
		return
	}
	dst := p.grad.Data()
	for i, v := range g.Data() {
		dst[i] += v
	}
}

// ZeroGrad drops the accumulated gradient.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
