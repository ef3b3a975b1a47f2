// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/neuralnet/internal/nn"
	"github.com/born-ml/neuralnet/tensor"
)

// Model is the contract every network satisfies. Embed Base to get it.
type Model = nn.Model

// Base is an ordered stack of layers implementing Model.
type Base = nn.Base

// Module maps an input forward and owns zero or more parameters.
type Module = nn.Module

// Trainable is a Module that can also propagate gradients backward.
type Trainable = nn.Trainable

// Parameter is a named tensor with an accumulated gradient.
type Parameter = nn.Parameter

// NewParameter creates a parameter with a zero gradient.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// Sequential returns a Base named "sequential" holding layers.
//
// Example:
//
//	rng := rand.New(rand.NewSource(1))
//	model := nn.Sequential(
//	    nn.NewLinear(784, 128, rng),
//	    nn.MustActivation("relu"),
//	    nn.NewLinear(128, 10, rng),
//	)
func Sequential(layers ...Module) *Base {
	return nn.Sequential(layers...)
}

// NewMLP builds a multilayer perceptron: one Linear layer plus activation per
// hidden size, then a Linear output layer.
func NewMLP(in int, hidden []int, out int, activation string, rng *rand.Rand) (*Base, error) {
	return nn.NewMLP(in, hidden, out, activation, rng)
}

// Errors returned when restoring model state.
var (
	ErrMissingParameter = nn.ErrMissingParameter
	ErrParameterShape   = nn.ErrParameterShape
	ErrParameterCount   = nn.ErrParameterCount
)

// SetValues assigns values to params in order, checking shapes.
func SetValues(params []*Parameter, values []*tensor.Tensor) error {
	return nn.SetValues(params, values)
}

// SortedKeys returns the state dict keys ordered by layer index, then name.
func SortedKeys(stateDict map[string]*tensor.Tensor) []string {
	return nn.SortedKeys(stateDict)
}

// Layers

// Linear is a fully connected layer y = x·Wᵀ + b.
type Linear = nn.Linear

// NewLinear creates a linear layer with Xavier-initialized weights.
func NewLinear(inFeatures, outFeatures int, rng *rand.Rand) *Linear {
	return nn.NewLinear(inFeatures, outFeatures, rng)
}

// Xavier samples a uniform Glorot initialization.
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	return nn.Xavier(fanIn, fanOut, shape, rng)
}

// Activations

// Activation is an element-wise (or maxout) nonlinearity layer.
type Activation = nn.Activation

// ActivationOption tunes an activation.
type ActivationOption = nn.ActivationOption

// NewActivation returns the activation registered under name.
//
// Example:
//
//	elu, err := nn.NewActivation("elu", nn.WithAlpha(0.5))
func NewActivation(name string, opts ...ActivationOption) (*Activation, error) {
	return nn.NewActivation(name, opts...)
}

// MustActivation is NewActivation that panics on an unknown name.
func MustActivation(name string, opts ...ActivationOption) *Activation {
	return nn.MustActivation(name, opts...)
}

// ActivationNames lists the registered activation names.
func ActivationNames() []string { return nn.ActivationNames() }

// WithAlpha sets the negative slope for lrelu, elu and selu.
func WithAlpha(alpha float32) ActivationOption { return nn.WithAlpha(alpha) }

// WithLambda sets the selu scale.
func WithLambda(lambda float32) ActivationOption { return nn.WithLambda(lambda) }

// WithMaxoutSize sets the maxout pool size.
func WithMaxoutSize(size int) ActivationOption { return nn.WithMaxoutSize(size) }

// WithSlope gives prelu a trainable slope.
func WithSlope(slope *Parameter) ActivationOption { return nn.WithSlope(slope) }

// Losses

// Loss returns the mean loss and its gradient with respect to prediction.
type Loss = nn.Loss

// ErrUnknownLoss is returned by LossByName.
var ErrUnknownLoss = nn.ErrUnknownLoss

// MSE is the mean squared error.
func MSE(prediction, target *tensor.Tensor) (float32, *tensor.Tensor) {
	return nn.MSE(prediction, target)
}

// SoftmaxCrossEntropy is the mean cross-entropy of softmax(logits) against
// integer class labels.
func SoftmaxCrossEntropy(logits, labels *tensor.Tensor) (float32, *tensor.Tensor) {
	return nn.SoftmaxCrossEntropy(logits, labels)
}

// Accuracy is the fraction of rows whose arg-max matches the label.
func Accuracy(logits, labels *tensor.Tensor) float32 {
	return nn.Accuracy(logits, labels)
}

// LossByName returns "mse" or "softmax_cross_entropy".
func LossByName(name string) (Loss, error) { return nn.LossByName(name) }

// Helpers

// OneHot encodes integer labels as rows of a [len(labels), dim] matrix.
func OneHot(labels *tensor.Tensor, dim int) *tensor.Tensor { return nn.OneHot(labels, dim) }

// LpNormalize returns v / (‖v‖p + eps).
func LpNormalize(v *tensor.Tensor, p float64, eps float32) *tensor.Tensor {
	return nn.LpNormalize(v, p, eps)
}

// SpectralNormalize divides w by its largest singular value in place and
// returns the updated power-iteration vector.
func SpectralNormalize(w, u *tensor.Tensor, rng *rand.Rand) *tensor.Tensor {
	return nn.SpectralNormalize(w, u, rng)
}

// StepFunc is one step of a recurrence for Unroll.
type StepFunc = nn.StepFunc

// Unroll applies fn over the leading dimension of sequences.
func Unroll(fn StepFunc, sequences, init []*tensor.Tensor, steps int, backwards bool) []*tensor.Tensor {
	return nn.Unroll(fn, sequences, init, steps, backwards)
}
