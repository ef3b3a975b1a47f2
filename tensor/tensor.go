// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/born-ml/neuralnet/internal/parallel"
	"github.com/born-ml/neuralnet/internal/tensor"
)

// Tensor is a dense row-major float32 array.
type Tensor = tensor.Tensor

// Shape lists the size of each dimension.
type Shape = tensor.Shape

// ParallelConfig controls how element-wise kernels are split across goroutines.
type ParallelConfig = parallel.Config

// Errors returned by constructors.
var (
	ErrInvalidShape  = tensor.ErrInvalidShape
	ErrShapeMismatch = tensor.ErrShapeMismatch
)

// FromSlice wraps data (without copying) in a tensor of the given shape.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// MustFromSlice is FromSlice that panics on error.
func MustFromSlice(data []float32, shape Shape) *Tensor {
	return tensor.MustFromSlice(data, shape)
}

// Zeros returns a zero-filled tensor.
func Zeros(shape Shape) *Tensor { return tensor.Zeros(shape) }

// ZerosLike returns a zero-filled tensor shaped like t.
func ZerosLike(t *Tensor) *Tensor { return tensor.ZerosLike(t) }

// Ones returns a tensor filled with 1.
func Ones(shape Shape) *Tensor { return tensor.Ones(shape) }

// Full returns a tensor filled with value.
func Full(shape Shape, value float32) *Tensor { return tensor.Full(shape, value) }

// Scalar returns a 0-dimensional tensor.
func Scalar(v float32) *Tensor { return tensor.Scalar(v) }

// Randn returns standard normal samples drawn from rng.
func Randn(shape Shape, rng *rand.Rand) *Tensor { return tensor.Randn(shape, rng) }

// Rand returns uniform samples in [0, 1) drawn from rng.
func Rand(shape Shape, rng *rand.Rand) *Tensor { return tensor.Rand(shape, rng) }

// Arange returns [0, 1, ..., n-1].
func Arange(n int) *Tensor { return tensor.Arange(n) }

// Linspace returns num evenly spaced values from start to stop inclusive.
func Linspace(start, stop float32, num int) *Tensor { return tensor.Linspace(start, stop, num) }

// Concat joins tensors along dim.
func Concat(dim int, ts ...*Tensor) *Tensor { return tensor.Concat(dim, ts...) }

// BroadcastShapes returns the shape a and b broadcast to.
func BroadcastShapes(a, b Shape) (Shape, bool, error) { return tensor.BroadcastShapes(a, b) }

// SetParallel overrides the parallel configuration used by tensor kernels.
func SetParallel(cfg ParallelConfig) { tensor.SetParallel(cfg) }

// DefaultParallel returns the configuration used at startup.
func DefaultParallel() ParallelConfig { return parallel.DefaultConfig() }
