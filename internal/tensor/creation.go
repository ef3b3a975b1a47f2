package tensor

import (
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
// Panics if the shape is invalid.
//
// Example:
//
//	t := tensor.Zeros(tensor.Shape{3, 4})
func Zeros(shape Shape) *Tensor {
	if err := shape.Validate(); err != nil {
		panic(err)
	}
	return newTensor(make([]float32, shape.NumElements()), shape)
}

// ZerosLike creates a zero tensor with t's shape.
func ZerosLike(t *Tensor) *Tensor {
	return Zeros(t.shape)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape) *Tensor {
	return Full(shape, 1)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full(tensor.Shape{3, 3}, 3.14)
func Full(shape Shape, value float32) *Tensor {
	t := Zeros(shape)
	t.Fill(value)
	return t
}

// Scalar creates a 0-D tensor.
func Scalar(v float32) *Tensor {
	return newTensor([]float32{v}, Shape{})
}

// Randn creates a tensor with values from N(0, 1) drawn from rng.
// A nil rng uses the package-level math/rand source.
func Randn(shape Shape, rng *rand.Rand) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		if rng != nil {
			t.data[i] = float32(rng.NormFloat64())
		} else {
			t.data[i] = float32(rand.NormFloat64()) //nolint:gosec // G404: statistical use
		}
	}
	return t
}

// Rand creates a tensor with values uniformly distributed in [0, 1).
func Rand(shape Shape, rng *rand.Rand) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		if rng != nil {
			t.data[i] = rng.Float32()
		} else {
			t.data[i] = rand.Float32() //nolint:gosec // G404: statistical use
		}
	}
	return t
}

// Arange returns [0, 1, ..., n-1].
func Arange(n int) *Tensor {
	t := Zeros(Shape{n})
	for i := range t.data {
		t.data[i] = float32(i)
	}
	return t
}

// Linspace returns num evenly spaced values over [start, stop].
// With num == 1 the result is [start].
func Linspace(start, stop float32, num int) *Tensor {
	t := Zeros(Shape{num})
	if num == 1 {
		t.data[0] = start
		return t
	}
	step := (stop - start) / float32(num-1)
	for i := range t.data {
		t.data[i] = start + float32(i)*step
	}
	return t
}
