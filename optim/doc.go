// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers and learning-rate schedules used to
// train neuralnet models.
//
// # Overview
//
// Every optimizer updates parameters in place from a Gradients map built by
// GradientsOf:
//
//	opt, err := optim.New("adam", model.Parameters(), optim.Config{LR: 1e-3})
//	...
//	model.Backward(grad)
//	opt.Step(optim.GradientsOf(model.Parameters()))
//	model.ZeroGrad()
//
// Kinds lists the names New accepts: sgd, momentum, nesterov, adagrad,
// adadelta, rmsprop, adam, adamax, nadam and amsgrad. The typed constructors
// (NewSGD, NewAdam, ...) expose each algorithm's own settings.
//
// # Learning Rate Schedules
//
// An Annealer applies a Schedule to an optimizer on every iteration:
//
//	ann, err := optim.NewAnnealer(opt, optim.Schedule{Method: optim.StepDecay, Step: 1000})
//	for it := range iters {
//	    ann.Anneal(it)
//	    ...
//	}
//
// # Checkpointing
//
// StateDict and LoadStateDict export and restore the per-parameter buffers
// and the step counter, so training can resume exactly.
package optim
