// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense float32 array used by every neuralnet
// package.
//
// Tensors are row-major and always contiguous. Arithmetic broadcasts like
// NumPy and panics on incompatible shapes; constructors that take external
// input return errors instead.
//
// # Basic Usage
//
//	x := tensor.MustFromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	w := tensor.Ones(tensor.Shape{3, 1})
//	y := x.MatMul(w) // [[6] [15]]
//
// Reshape and Flatten share the buffer of their receiver. Transpose, Slice,
// Concat and the arithmetic operations return fresh tensors.
//
// # Parallelism
//
// Large element-wise kernels are split across goroutines. SetParallel tunes
// or disables this:
//
//	tensor.SetParallel(tensor.ParallelConfig{Enabled: false})
package tensor
