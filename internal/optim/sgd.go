package optim

import (
	"github.com/born-ml/neuralnet/internal/nn"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Classic momentum:
//
//	velocity = momentum * velocity - lr * gradient
//	param = param + velocity
//
// Nesterov momentum, evaluated at the current parameters:
//
//	velocity = momentum * velocity - lr * gradient
//	param = param + momentum * velocity - lr * gradient
//
// Example:
//
//	optimizer := optim.NewSGD(model.Parameters(), optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
type SGD struct {
	base
	momentum float32
	nesterov bool
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float32 // Learning rate (default: 0.001)
	Momentum float32 // Momentum factor (default: 0.0, range: [0, 1))
	Nesterov bool    // Use Nesterov momentum (requires Momentum > 0)
}

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 1e-3
	}

	name := "sgd"
	var buffers []string
	if config.Momentum != 0 {
		name = "momentum"
		if config.Nesterov {
			name = "nesterov"
		}
		buffers = []string{"velocity"}
	}

	return &SGD{
		base:     newBase(name, params, config.LR, buffers...),
		momentum: config.Momentum,
		nesterov: config.Nesterov && config.Momentum != 0,
	}
}

// Step performs a single optimization step.
func (s *SGD) Step(grads Gradients) {
	s.t++
	lr, mu := s.lr, s.momentum

	switch {
	case mu == 0:
		s.apply(grads, func(p, g []float32, _ [][]float32) {
			for i := range p {
				p[i] -= lr * g[i]
			}
		})
	case s.nesterov:
		s.apply(grads, func(p, g []float32, bufs [][]float32) {
			v := bufs[0]
			for i := range p {
				v[i] = mu*v[i] - lr*g[i]
				p[i] += mu*v[i] - lr*g[i]
			}
		})
	default:
		s.apply(grads, func(p, g []float32, bufs [][]float32) {
			v := bufs[0]
			for i := range p {
				v[i] = mu*v[i] - lr*g[i]
				p[i] += v[i]
			}
		})
	}
}

// Momentum returns the momentum factor.
func (s *SGD) Momentum() float32 {
	return s.momentum
}
