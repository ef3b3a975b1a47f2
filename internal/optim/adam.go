package optim

import (
	"math"

	"github.com/born-ml/neuralnet/internal/nn"
	"github.com/born-ml/neuralnet/internal/tensor"
)

// pow32 returns b^t for the bias corrections.
func pow32(b float32, t int) float32 {
	return float32(math.Pow(float64(b), float64(t)))
}

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Adam combines ideas from RMSprop and momentum:
//   - Maintains exponential moving averages of gradients (first moment)
//   - Maintains exponential moving averages of squared gradients (second moment)
//   - Folds both bias corrections into the step size
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²
//	a_t = lr * sqrt(1 - beta2^t) / (1 - beta1^t)
//	param = param - a_t * m_t / (sqrt(v_t) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
//
// Example:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{
//	    LR:    0.001,
//	    Betas: [2]float32{0.9, 0.999},
//	    Eps:   1e-8,
//	})
type Adam struct {
	base
	beta1 float32
	beta2 float32
	eps   float32
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float32    // Term for numerical stability (default: 1e-8)
}

func (c *AdamConfig) defaults(lr, beta1, beta2 float32) {
	if c.LR == 0 {
		c.LR = lr
	}
	if c.Betas[0] == 0 {
		c.Betas[0] = beta1
	}
	if c.Betas[1] == 0 {
		c.Betas[1] = beta2
	}
	if c.Eps == 0 {
		c.Eps = 1e-8
	}
}

// NewAdam creates a new Adam optimizer.
//
// Default hyperparameters:
//   - LR: 0.001
//   - Beta1: 0.9
//   - Beta2: 0.999
//   - Eps: 1e-8
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	config.defaults(1e-3, 0.9, 0.999)
	return &Adam{
		base:  newBase("adam", params, config.LR, "m", "v"),
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
	}
}

// Step performs a single optimization step using Adam algorithm.
func (a *Adam) Step(grads Gradients) {
	a.t++
	b1, b2, eps := a.beta1, a.beta2, a.eps
	at := a.lr * sqrt32(1-pow32(b2, a.t)) / (1 - pow32(b1, a.t))

	a.apply(grads, func(p, g []float32, bufs [][]float32) {
		m, v := bufs[0], bufs[1]
		for i := range p {
			m[i] = b1*m[i] + (1-b1)*g[i]
			v[i] = b2*v[i] + (1-b2)*g[i]*g[i]
			p[i] -= at * m[i] / (sqrt32(v[i]) + eps)
		}
	})
}

// AdaMax is the infinity-norm variant of Adam.
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	u_t = max(beta2 * u_{t-1}, |gradient|)
//	param = param - lr / (1 - beta1^t) * m_t / (u_t + eps)
type AdaMax struct {
	base
	beta1 float32
	beta2 float32
	eps   float32
}

// NewAdaMax creates a new AdaMax optimizer. Defaults: LR 0.002, Betas [0.9, 0.999], Eps 1e-8.
func NewAdaMax(params []*nn.Parameter, config AdamConfig) *AdaMax {
	config.defaults(2e-3, 0.9, 0.999)
	return &AdaMax{
		base:  newBase("adamax", params, config.LR, "m", "u"),
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
	}
}

// Step performs a single optimization step.
func (a *AdaMax) Step(grads Gradients) {
	a.t++
	b1, b2, eps := a.beta1, a.beta2, a.eps
	at := a.lr / (1 - pow32(b1, a.t))

	a.apply(grads, func(p, g []float32, bufs [][]float32) {
		m, u := bufs[0], bufs[1]
		for i := range p {
			m[i] = b1*m[i] + (1-b1)*g[i]
			u[i] = max(b2*u[i], float32(math.Abs(float64(g[i]))))
			p[i] -= at * m[i] / (u[i] + eps)
		}
	})
}

// MomentumSchedule returns the effective beta1 at step t.
type MomentumSchedule func(beta1 float32, t int) float32

// DozatSchedule is the NAdam momentum warm-up beta1 * (1 - 0.5 * 0.96^(t/250)).
func DozatSchedule(beta1 float32, t int) float32 {
	return beta1 * float32(1-0.5*math.Pow(0.96, float64(t)/250))
}

// NAdam is Adam with Nesterov momentum.
//
//	beta1_t = schedule(beta1, t), prod_t = prod_{t-1} * beta1_t
//	g_hat = gradient / (1 - prod_t)
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	m_hat = m_t / (1 - prod_t * beta1_{t+1})
//	n_t = beta2 * n_{t-1} + (1-beta2) * gradient²
//	n_hat = n_t / (1 - beta2^t)
//	m_bar = (1-beta1) * g_hat + beta1_{t+1} * m_hat
//	param = param - lr * m_bar / (sqrt(n_hat) + eps)
//
// Reference: "Incorporating Nesterov Momentum into Adam" (Dozat, 2016)
type NAdam struct {
	base
	beta1    float32
	beta2    float32
	eps      float32
	schedule MomentumSchedule
	prod     float32 // running product of beta1_t
}

// NAdamConfig holds configuration for NAdam.
type NAdamConfig struct {
	LR       float32          // Learning rate (default: 0.001)
	Betas    [2]float32       // (default: [0.99, 0.999])
	Eps      float32          // (default: 1e-8)
	Schedule MomentumSchedule // beta1 warm-up (default: DozatSchedule)
}

// NewNAdam creates a new NAdam optimizer.
func NewNAdam(params []*nn.Parameter, config NAdamConfig) *NAdam {
	ac := AdamConfig{LR: config.LR, Betas: config.Betas, Eps: config.Eps}
	ac.defaults(1e-3, 0.99, 0.999)
	if config.Schedule == nil {
		config.Schedule = DozatSchedule
	}
	return &NAdam{
		base:     newBase("nadam", params, ac.LR, "m", "n"),
		beta1:    ac.Betas[0],
		beta2:    ac.Betas[1],
		eps:      ac.Eps,
		schedule: config.Schedule,
		prod:     1,
	}
}

// Step performs a single optimization step.
func (a *NAdam) Step(grads Gradients) {
	a.t++
	b1, b2, eps, lr := a.beta1, a.beta2, a.eps, a.lr
	b1t := a.schedule(b1, a.t)
	b1next := a.schedule(b1, a.t+1)
	a.prod *= b1t
	prod := a.prod
	bc2 := 1 - pow32(b2, a.t)

	a.apply(grads, func(p, g []float32, bufs [][]float32) {
		m, n := bufs[0], bufs[1]
		for i := range p {
			gHat := g[i] / (1 - prod)
			m[i] = b1*m[i] + (1-b1)*g[i]
			mHat := m[i] / (1 - prod*b1next)
			n[i] = b2*n[i] + (1-b2)*g[i]*g[i]
			nHat := n[i] / bc2
			mBar := (1-b1)*gHat + b1next*mHat
			p[i] -= lr * mBar / (sqrt32(nHat) + eps)
		}
	})
}

// Reset zeroes the state, the step counter and the momentum product.
func (a *NAdam) Reset() {
	a.base.Reset()
	a.prod = 1
}

// LRDecay maps the base learning rate and step to the effective rate.
type LRDecay func(lr float32, t int) float32

// AMSGrad is Adam with a non-decreasing second-moment estimate.
//
//	v_hat = max(v_hat, v_t)
//	a_t = decay(lr, t) * sqrt(1 - beta2^t) / (1 - beta1^t)
//	param = param - a_t * m_t / (sqrt(v_hat) + eps)
//
// Reference: "On the Convergence of Adam and Beyond" (Reddi et al., 2018)
type AMSGrad struct {
	base
	beta1 float32
	beta2 float32
	eps   float32
	decay LRDecay
}

// AMSGradConfig holds configuration for AMSGrad.
type AMSGradConfig struct {
	LR    float32    // Learning rate (default: 0.001)
	Betas [2]float32 // (default: [0.9, 0.99])
	Eps   float32    // (default: 1e-8)
	Decay LRDecay    // Optional learning-rate decay (default: constant)
}

// NewAMSGrad creates a new AMSGrad optimizer.
func NewAMSGrad(params []*nn.Parameter, config AMSGradConfig) *AMSGrad {
	ac := AdamConfig{LR: config.LR, Betas: config.Betas, Eps: config.Eps}
	ac.defaults(1e-3, 0.9, 0.99)
	if config.Decay == nil {
		config.Decay = func(lr float32, _ int) float32 { return lr }
	}
	return &AMSGrad{
		base:  newBase("amsgrad", params, ac.LR, "m", "v", "v_hat"),
		beta1: ac.Betas[0],
		beta2: ac.Betas[1],
		eps:   ac.Eps,
		decay: config.Decay,
	}
}

// Step performs a single optimization step.
func (a *AMSGrad) Step(grads Gradients) {
	a.t++
	b1, b2, eps := a.beta1, a.beta2, a.eps
	at := a.decay(a.lr, a.t) * sqrt32(1-pow32(b2, a.t)) / (1 - pow32(b1, a.t))

	a.apply(grads, func(p, g []float32, bufs [][]float32) {
		m, v, vHat := bufs[0], bufs[1], bufs[2]
		for i := range p {
			m[i] = b1*m[i] + (1-b1)*g[i]
			v[i] = b2*v[i] + (1-b2)*g[i]*g[i]
			vHat[i] = max(vHat[i], v[i])
			p[i] -= at * m[i] / (sqrt32(vHat[i]) + eps)
		}
	})
}

// StateDict adds the momentum product to the shared state.
func (a *NAdam) StateDict() map[string]*tensor.Tensor {
	stateDict := a.base.StateDict()
	stateDict["beta1_prod"] = tensor.Scalar(a.prod)
	return stateDict
}

// LoadStateDict restores state exported by StateDict.
func (a *NAdam) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	if err := a.base.LoadStateDict(stateDict); err != nil {
		return err
	}
	a.prod = 1
	if prod, ok := stateDict["beta1_prod"]; ok {
		a.prod = prod.Item()
	}
	return nil
}
