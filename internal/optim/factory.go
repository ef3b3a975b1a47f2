package optim

import (
	"errors"
	"fmt"

	"github.com/born-ml/neuralnet/internal/log"
	"github.com/born-ml/neuralnet/internal/nn"
)

// ErrUnknownOptimizer is returned by New for an unrecognized kind.
var ErrUnknownOptimizer = errors.New("unknown optimizer")

// Kinds lists the optimizer names accepted by New.
var Kinds = []string{"sgd", "momentum", "nesterov", "adagrad", "adadelta", "rmsprop", "adam", "adamax", "nadam", "amsgrad"}

// Config is the union of hyperparameters understood by New. Zero values
// select each algorithm's defaults.
type Config struct {
	LR       float32
	Momentum float32 // momentum and nesterov (default: 0.95)
	Beta1    float32
	Beta2    float32
	Epsilon  float32
	Rho      float32 // adadelta
	Gamma    float32 // rmsprop
	Nesterov bool    // turns "momentum" into "nesterov"
}

// New builds the optimizer named kind over params and logs its settings.
func New(kind string, params []*nn.Parameter, cfg Config) (Optimizer, error) {
	betas := [2]float32{cfg.Beta1, cfg.Beta2}

	var opt Optimizer
	switch kind {
	case "sgd":
		opt = NewSGD(params, SGDConfig{LR: cfg.LR})
	case "momentum", "nesterov":
		mu := cfg.Momentum
		if mu == 0 {
			mu = 0.95
		}
		opt = NewSGD(params, SGDConfig{LR: cfg.LR, Momentum: mu, Nesterov: kind == "nesterov" || cfg.Nesterov})
	case "adagrad":
		opt = NewAdaGrad(params, AdaGradConfig{LR: cfg.LR, Eps: cfg.Epsilon})
	case "adadelta":
		opt = NewAdaDelta(params, AdaDeltaConfig{Rho: cfg.Rho, Eps: cfg.Epsilon})
	case "rmsprop":
		opt = NewRMSprop(params, RMSpropConfig{LR: cfg.LR, Gamma: cfg.Gamma, Eps: cfg.Epsilon})
	case "adam":
		opt = NewAdam(params, AdamConfig{LR: cfg.LR, Betas: betas, Eps: cfg.Epsilon})
	case "adamax":
		opt = NewAdaMax(params, AdamConfig{LR: cfg.LR, Betas: betas, Eps: cfg.Epsilon})
	case "nadam":
		opt = NewNAdam(params, NAdamConfig{LR: cfg.LR, Betas: betas, Eps: cfg.Epsilon})
	case "amsgrad":
		opt = NewAMSGrad(params, AMSGradConfig{LR: cfg.LR, Betas: betas, Eps: cfg.Epsilon})
	default:
		return nil, fmt.Errorf("%w: %q (want one of %v)", ErrUnknownOptimizer, kind, Kinds)
	}

	logger := log.WithComponent("optim")
	logger.Info().
		Str("event", "optim.created").
		Str("optimizer", opt.Name()).
		Float32("lr", opt.LR()).
		Float32("momentum", cfg.Momentum).
		Float32("beta1", cfg.Beta1).
		Float32("beta2", cfg.Beta2).
		Int("params", len(params)).
		Msg("optimizer ready")
	return opt, nil
}
