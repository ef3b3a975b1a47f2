package tensor

import (
	"fmt"
	"math"

	"github.com/born-ml/neuralnet/internal/parallel"
)

// binaryOp applies f element-wise with NumPy broadcasting.
// Panics if shapes are not broadcast-compatible.
func binaryOp(a, b *Tensor, f func(x, y float32) float32) *Tensor {
	outShape, needsBroadcast, err := BroadcastShapes(a.shape, b.shape)
	if err != nil {
		panic(err.Error())
	}
	out := Zeros(outShape)

	if !needsBroadcast {
		parallel.Range(len(out.data), func(s, e int) {
			for i := s; i < e; i++ {
				out.data[i] = f(a.data[i], b.data[i])
			}
		}, kernels)
		return out
	}

	// Scalar fast path
	if len(b.data) == 1 {
		y := b.data[0]
		parallel.Range(len(out.data), func(s, e int) {
			for i := s; i < e; i++ {
				out.data[i] = f(a.data[i%len(a.data)], y)
			}
		}, kernels)
		return out
	}

	aStrides := broadcastStrides(a.shape, outShape)
	bStrides := broadcastStrides(b.shape, outShape)
	outStrides := outShape.ComputeStrides()
	parallel.Range(len(out.data), func(s, e int) {
		for i := s; i < e; i++ {
			ai, bi, rem := 0, 0, i
			for d, st := range outStrides {
				idx := rem / st
				rem %= st
				ai += idx * aStrides[d]
				bi += idx * bStrides[d]
			}
			out.data[i] = f(a.data[ai], b.data[bi])
		}
	}, kernels)
	return out
}

// Add returns t + other with broadcasting.
func (t *Tensor) Add(other *Tensor) *Tensor {
	return binaryOp(t, other, func(x, y float32) float32 { return x + y })
}

// Sub returns t - other with broadcasting.
func (t *Tensor) Sub(other *Tensor) *Tensor {
	return binaryOp(t, other, func(x, y float32) float32 { return x - y })
}

// Mul returns t * other (element-wise) with broadcasting.
func (t *Tensor) Mul(other *Tensor) *Tensor {
	return binaryOp(t, other, func(x, y float32) float32 { return x * y })
}

// Div returns t / other (element-wise) with broadcasting.
func (t *Tensor) Div(other *Tensor) *Tensor {
	return binaryOp(t, other, func(x, y float32) float32 { return x / y })
}

// Maximum returns the element-wise maximum with broadcasting.
func (t *Tensor) Maximum(other *Tensor) *Tensor {
	return binaryOp(t, other, func(x, y float32) float32 { return max(x, y) })
}

// Apply returns f applied to every element.
func (t *Tensor) Apply(f func(float32) float32) *Tensor {
	out := ZerosLike(t)
	parallel.Range(len(t.data), func(s, e int) {
		for i := s; i < e; i++ {
			out.data[i] = f(t.data[i])
		}
	}, kernels)
	return out
}

// Scale returns t * s.
func (t *Tensor) Scale(s float32) *Tensor {
	return t.Apply(func(x float32) float32 { return x * s })
}

// AddScalar returns t + s.
func (t *Tensor) AddScalar(s float32) *Tensor {
	return t.Apply(func(x float32) float32 { return x + s })
}

// Pow returns t raised element-wise to p.
func (t *Tensor) Pow(p float64) *Tensor {
	if p == 2 {
		return t.Apply(func(x float32) float32 { return x * x })
	}
	return t.Apply(func(x float32) float32 { return float32(math.Pow(float64(x), p)) })
}

// Sum returns the sum of all elements, accumulated in float64.
func (t *Tensor) Sum() float32 {
	var acc float64
	for _, v := range t.data {
		acc += float64(v)
	}
	return float32(acc)
}

// Mean returns the arithmetic mean of all elements.
func (t *Tensor) Mean() float32 {
	return t.Sum() / float32(len(t.data))
}

// Max returns the largest element.
func (t *Tensor) Max() float32 {
	m := float32(math.Inf(-1))
	for _, v := range t.data {
		m = max(m, v)
	}
	return m
}

// SumDim sums along dim. With keepDim the reduced dimension stays as size 1.
func (t *Tensor) SumDim(dim int, keepDim bool) *Tensor {
	outer, inner := t.split(dim)
	size := t.shape[dim]

	outShape := t.shape.Clone()
	outShape[dim] = 1
	out := Zeros(outShape)
	for o := 0; o < outer; o++ {
		for k := 0; k < size; k++ {
			row := t.data[(o*size+k)*inner : (o*size+k+1)*inner]
			dst := out.data[o*inner : (o+1)*inner]
			for i, v := range row {
				dst[i] += v
			}
		}
	}
	if keepDim {
		return out
	}
	squeezed := append(Shape(nil), t.shape[:dim]...)
	squeezed = append(squeezed, t.shape[dim+1:]...)
	return newTensor(out.data, squeezed)
}

// MatMul performs 2-D matrix multiplication: [M, K] @ [K, N] -> [M, N].
func (t *Tensor) MatMul(other *Tensor) *Tensor {
	if len(t.shape) != 2 || len(other.shape) != 2 {
		panic(fmt.Sprintf("MatMul: expected 2-D tensors, got %v and %v", t.shape, other.shape))
	}
	m, k := t.shape[0], t.shape[1]
	if other.shape[0] != k {
		panic(fmt.Sprintf("MatMul: inner dimensions differ: %v @ %v", t.shape, other.shape))
	}
	n := other.shape[1]
	out := Zeros(Shape{m, n})

	// i-k-j order keeps the inner loop on contiguous rows.
	parallel.Range(m, func(s, e int) {
		for i := s; i < e; i++ {
			dst := out.data[i*n : (i+1)*n]
			for kk := 0; kk < k; kk++ {
				a := t.data[i*k+kk]
				row := other.data[kk*n : (kk+1)*n]
				for j, b := range row {
					dst[j] += a * b
				}
			}
		}
	}, parallel.Config{Enabled: kernels.Enabled, NumWorkers: kernels.NumWorkers, MinChunkSize: 16})
	return out
}

// AllClose reports whether every element of t and other differs by at most tol.
// Shapes must be equal.
func (t *Tensor) AllClose(other *Tensor, tol float32) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	for i, v := range t.data {
		d := v - other.data[i]
		if d > tol || d < -tol {
			return false
		}
	}
	return true
}
