// Package nn implements the model contract and neural network building blocks.
//
// This package provides:
//   - Module / Trainable: forward and backward contracts for layers
//   - Base: the embeddable model every user network builds on
//   - Linear and activation layers with hand-written gradients
//   - Activation registry (relu, lrelu, selu, maxout, prelu, ...)
//   - Losses: MSE and softmax cross-entropy
//   - Norm utilities: Lp norms, spectral normalization, one-hot encoding
package nn

import (
	"github.com/born-ml/neuralnet/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all trainable parameters
type Module interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor) *tensor.Tensor

	// Parameters returns all trainable parameters of this module.
	// Returns an empty slice for modules without trainable parameters.
	Parameters() []*Parameter
}

// Trainable is a Module that can propagate gradients.
//
// Backward receives dLoss/dOutput for the most recent Forward call,
// accumulates parameter gradients and returns dLoss/dInput.
type Trainable interface {
	Module
	Backward(gradOutput *tensor.Tensor) *tensor.Tensor
}
