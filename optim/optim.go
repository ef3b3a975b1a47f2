// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/neuralnet/internal/optim"
	"github.com/born-ml/neuralnet/nn"
)

// Optimizer is the interface every algorithm implements.
type Optimizer = optim.Optimizer

// Gradients maps parameter tensors to their gradients.
type Gradients = optim.Gradients

// GradientsOf collects the accumulated gradients of params.
func GradientsOf(params []*nn.Parameter) Gradients {
	return optim.GradientsOf(params)
}

// Config is the union of hyperparameters understood by New.
type Config = optim.Config

// Kinds lists the optimizer names accepted by New.
var Kinds = optim.Kinds

// Errors.
var (
	ErrUnknownOptimizer = optim.ErrUnknownOptimizer
	ErrStateShape       = optim.ErrStateShape
	ErrUnknownSchedule  = optim.ErrUnknownSchedule
	ErrScheduleConfig   = optim.ErrScheduleConfig
)

// New builds the optimizer named kind over params.
func New(kind string, params []*nn.Parameter, cfg Config) (Optimizer, error) {
	return optim.New(kind, params, cfg)
}

// SGD

// SGD is stochastic gradient descent with optional (Nesterov) momentum.
type SGD = optim.SGD

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// NewSGD creates an SGD optimizer.
//
// Example:
//
//	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.01, Momentum: 0.9})
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	return optim.NewSGD(params, config)
}

// Adaptive methods

// AdaGrad scales each step by the accumulated squared gradients.
type AdaGrad = optim.AdaGrad

// AdaGradConfig configures AdaGrad.
type AdaGradConfig = optim.AdaGradConfig

// NewAdaGrad creates an AdaGrad optimizer.
func NewAdaGrad(params []*nn.Parameter, config AdaGradConfig) *AdaGrad {
	return optim.NewAdaGrad(params, config)
}

// AdaDelta adapts step sizes without a learning rate.
type AdaDelta = optim.AdaDelta

// AdaDeltaConfig configures AdaDelta.
type AdaDeltaConfig = optim.AdaDeltaConfig

// NewAdaDelta creates an AdaDelta optimizer.
func NewAdaDelta(params []*nn.Parameter, config AdaDeltaConfig) *AdaDelta {
	return optim.NewAdaDelta(params, config)
}

// RMSprop divides by a running average of squared gradients.
type RMSprop = optim.RMSprop

// RMSpropConfig configures RMSprop.
type RMSpropConfig = optim.RMSpropConfig

// NewRMSprop creates an RMSprop optimizer.
func NewRMSprop(params []*nn.Parameter, config RMSpropConfig) *RMSprop {
	return optim.NewRMSprop(params, config)
}

// Adam family

// Adam is adaptive moment estimation with bias correction.
type Adam = optim.Adam

// AdamConfig configures Adam and AdaMax.
type AdamConfig = optim.AdamConfig

// NewAdam creates an Adam optimizer.
//
// Example:
//
//	opt := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 1e-3})
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	return optim.NewAdam(params, config)
}

// AdaMax is Adam with the infinity norm.
type AdaMax = optim.AdaMax

// NewAdaMax creates an AdaMax optimizer.
func NewAdaMax(params []*nn.Parameter, config AdamConfig) *AdaMax {
	return optim.NewAdaMax(params, config)
}

// NAdam is Adam with Nesterov momentum.
type NAdam = optim.NAdam

// NAdamConfig configures NAdam.
type NAdamConfig = optim.NAdamConfig

// MomentumSchedule warms up beta1 for NAdam.
type MomentumSchedule = optim.MomentumSchedule

// DozatSchedule is the default NAdam momentum schedule.
func DozatSchedule(beta1 float32, t int) float32 { return optim.DozatSchedule(beta1, t) }

// NewNAdam creates an NAdam optimizer.
func NewNAdam(params []*nn.Parameter, config NAdamConfig) *NAdam {
	return optim.NewNAdam(params, config)
}

// AMSGrad keeps the maximum of past second moments.
type AMSGrad = optim.AMSGrad

// AMSGradConfig configures AMSGrad.
type AMSGradConfig = optim.AMSGradConfig

// LRDecay adjusts AMSGrad's learning rate per step.
type LRDecay = optim.LRDecay

// NewAMSGrad creates an AMSGrad optimizer.
func NewAMSGrad(params []*nn.Parameter, config AMSGradConfig) *AMSGrad {
	return optim.NewAMSGrad(params, config)
}

// Schedules

// Schedule describes how the learning rate decays with the iteration count.
type Schedule = optim.Schedule

// Annealer applies a Schedule to an optimizer.
type Annealer = optim.Annealer

// Annealing methods.
const (
	HalfLife    = optim.HalfLife
	StepDecay   = optim.StepDecay
	Exponential = optim.Exponential
	Inverse     = optim.Inverse
)

// NewAnnealer validates schedule and captures opt's current rate as the base.
func NewAnnealer(opt Optimizer, schedule Schedule) (*Annealer, error) {
	return optim.NewAnnealer(opt, schedule)
}
