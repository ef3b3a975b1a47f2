// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the Model contract, layers, activations and losses.
//
// # Models
//
// A model is an ordered list of layers that own named parameters. User
// networks embed Base and register their layers:
//
//	type Regressor struct {
//	    nn.Base
//	}
//
//	func NewRegressor(rng *rand.Rand) *Regressor {
//	    r := &Regressor{}
//	    r.Init("regressor",
//	        nn.NewLinear(8, 32, rng),
//	        nn.MustActivation("tanh"),
//	        nn.NewLinear(32, 1, rng),
//	    )
//	    return r
//	}
//
// Base supplies Forward, Backward, Parameters, ZeroGrad and a state dict
// keyed "<layer index>.<parameter name>" ("0.weight", "2.bias").
//
// # Training Step
//
// Gradients come from each layer's Backward; there is no graph recording:
//
//	pred := model.Forward(x)
//	loss, grad := nn.MSE(pred, y)
//	model.Backward(grad)
//	opt.Step(optim.GradientsOf(model.Parameters()))
//	model.ZeroGrad()
//
// # Activations
//
// Activations are looked up by name (see ActivationNames): linear, relu,
// lrelu, prelu, elu, selu, sigmoid, tanh, ramp, swish, sin, cos, softmax
// and maxout.
//
//	act, err := nn.NewActivation("lrelu", nn.WithAlpha(0.1))
//
// # Losses
//
// MSE for regression, SoftmaxCrossEntropy with integer labels for
// classification. Both return the mean loss and its gradient.
package nn
