package optim

import (
	"math"

	"github.com/born-ml/neuralnet/internal/nn"
)

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}

// AdaGrad scales each step by the root of the accumulated squared gradients.
//
//	accum = accum + gradient²
//	param = param - lr * gradient / sqrt(accum + eps)
type AdaGrad struct {
	base
	eps float32
}

// AdaGradConfig holds configuration for AdaGrad.
type AdaGradConfig struct {
	LR  float32 // Learning rate (default: 0.01)
	Eps float32 // Term for numerical stability (default: 1e-6)
}

// NewAdaGrad creates a new AdaGrad optimizer.
func NewAdaGrad(params []*nn.Parameter, config AdaGradConfig) *AdaGrad {
	if config.LR == 0 {
		config.LR = 0.01
	}
	if config.Eps == 0 {
		config.Eps = 1e-6
	}
	return &AdaGrad{
		base: newBase("adagrad", params, config.LR, "accum"),
		eps:  config.Eps,
	}
}

// Step performs a single optimization step.
func (a *AdaGrad) Step(grads Gradients) {
	a.t++
	lr, eps := a.lr, a.eps
	a.apply(grads, func(p, g []float32, bufs [][]float32) {
		acc := bufs[0]
		for i := range p {
			acc[i] += g[i] * g[i]
			p[i] -= lr * g[i] / sqrt32(acc[i]+eps)
		}
	})
}

// AdaDelta adapts the step size from running averages of squared gradients
// and squared updates. It has no learning rate.
//
//	delta = sqrt(Edelta² + eps) / sqrt(Eg² + eps) * gradient
//	param = param - delta
//	Edelta² = rho * Edelta² + (1-rho) * delta²
//	Eg² = rho * Eg² + (1-rho) * gradient²
//
// Reference: "ADADELTA: An Adaptive Learning Rate Method" (Zeiler, 2012)
type AdaDelta struct {
	base
	rho float32
	eps float32
}

// AdaDeltaConfig holds configuration for AdaDelta.
type AdaDeltaConfig struct {
	Rho float32 // Decay rate (default: 0.95)
	Eps float32 // Term for numerical stability (default: 1e-6)
}

// NewAdaDelta creates a new AdaDelta optimizer. Its learning rate is reported as 0.
func NewAdaDelta(params []*nn.Parameter, config AdaDeltaConfig) *AdaDelta {
	if config.Rho == 0 {
		config.Rho = 0.95
	}
	if config.Eps == 0 {
		config.Eps = 1e-6
	}
	return &AdaDelta{
		base: newBase("adadelta", params, 0, "grad_sq", "delta_sq"),
		rho:  config.Rho,
		eps:  config.Eps,
	}
}

// Step performs a single optimization step.
//
// The step uses the squared-gradient average from before this step, matching
// the simultaneous-update formulation.
func (a *AdaDelta) Step(grads Gradients) {
	a.t++
	rho, eps := a.rho, a.eps
	a.apply(grads, func(p, g []float32, bufs [][]float32) {
		eg2, ed2 := bufs[0], bufs[1]
		for i := range p {
			delta := sqrt32(ed2[i]+eps) / sqrt32(eg2[i]+eps) * g[i]
			p[i] -= delta
			ed2[i] = rho*ed2[i] + (1-rho)*delta*delta
			eg2[i] = rho*eg2[i] + (1-rho)*g[i]*g[i]
		}
	})
}

// SetLR is a no-op: AdaDelta has no learning rate.
func (a *AdaDelta) SetLR(float32) {}

// RMSprop divides the gradient by a running average of its magnitude.
//
//	param = param - lr * gradient / sqrt(s + eps)
//	s = gamma * s + (1-gamma) * gradient²
//
// The step uses s from before the current gradient is folded in.
type RMSprop struct {
	base
	gamma float32
	eps   float32
}

// RMSpropConfig holds configuration for RMSprop.
type RMSpropConfig struct {
	LR    float32 // Learning rate (default: 0.001)
	Gamma float32 // Decay rate (default: 0.9)
	Eps   float32 // Term for numerical stability (default: 1e-6)
}

// NewRMSprop creates a new RMSprop optimizer.
func NewRMSprop(params []*nn.Parameter, config RMSpropConfig) *RMSprop {
	if config.LR == 0 {
		config.LR = 1e-3
	}
	if config.Gamma == 0 {
		config.Gamma = 0.9
	}
	if config.Eps == 0 {
		config.Eps = 1e-6
	}
	return &RMSprop{
		base:  newBase("rmsprop", params, config.LR, "grad_sq"),
		gamma: config.Gamma,
		eps:   config.Eps,
	}
}

// Step performs a single optimization step.
func (r *RMSprop) Step(grads Gradients) {
	r.t++
	lr, gamma, eps := r.lr, r.gamma, r.eps
	r.apply(grads, func(p, g []float32, bufs [][]float32) {
		s := bufs[0]
		for i := range p {
			p[i] -= lr * g[i] / sqrt32(s[i]+eps)
			s[i] = gamma*s[i] + (1-gamma)*g[i]*g[i]
		}
	})
}
