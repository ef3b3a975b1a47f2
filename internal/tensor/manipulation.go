package tensor

import (
	"fmt"
)

// Reshape returns a tensor sharing t's data with a new shape.
// One dimension may be -1 and is inferred. Panics on incompatible shapes.
func (t *Tensor) Reshape(dims ...int) *Tensor {
	shape, err := Shape(dims).resolve(len(t.data))
	if err != nil {
		panic(fmt.Sprintf("Reshape: %v", err))
	}
	return newTensor(t.data, shape)
}

// Flatten collapses every dimension from startDim onward into one.
// Flatten(1) on [N, C, H, W] gives [N, C*H*W].
func (t *Tensor) Flatten(startDim int) *Tensor {
	if startDim < 0 || startDim >= len(t.shape) {
		panic(fmt.Sprintf("Flatten: startDim %d out of range for %v", startDim, t.shape))
	}
	dims := append([]int(nil), t.shape[:startDim]...)
	dims = append(dims, -1)
	return t.Reshape(dims...)
}

// Transpose permutes dimensions. Without axes the order is reversed.
// The result is a contiguous copy.
func (t *Tensor) Transpose(axes ...int) *Tensor {
	n := len(t.shape)
	if len(axes) == 0 {
		axes = make([]int, n)
		for i := range axes {
			axes[i] = n - 1 - i
		}
	}
	if len(axes) != n {
		panic(fmt.Sprintf("Transpose: got %d axes for %d-D tensor", len(axes), n))
	}
	seen := make([]bool, n)
	outShape := make(Shape, n)
	inStrides := make([]int, n)
	for i, a := range axes {
		if a < 0 || a >= n || seen[a] {
			panic(fmt.Sprintf("Transpose: axes %v are not a permutation", axes))
		}
		seen[a] = true
		outShape[i] = t.shape[a]
		inStrides[i] = t.stride[a]
	}

	out := Zeros(outShape)
	if n == 0 {
		out.data[0] = t.data[0]
		return out
	}
	idx := make([]int, n)
	src := 0
	for o := range out.data {
		out.data[o] = t.data[src]
		for d := n - 1; d >= 0; d-- {
			idx[d]++
			src += inStrides[d]
			if idx[d] < outShape[d] {
				break
			}
			src -= inStrides[d] * outShape[d]
			idx[d] = 0
		}
	}
	return out
}

// split returns the products of dimensions before and after dim.
func (t *Tensor) split(dim int) (outer, inner int) {
	if dim < 0 || dim >= len(t.shape) {
		panic(fmt.Sprintf("dimension %d out of range for %v", dim, t.shape))
	}
	outer, inner = 1, 1
	for _, d := range t.shape[:dim] {
		outer *= d
	}
	for _, d := range t.shape[dim+1:] {
		inner *= d
	}
	return outer, inner
}

// Concat joins tensors along dim. All other dimensions must agree.
func Concat(dim int, ts ...*Tensor) *Tensor {
	if len(ts) == 0 {
		panic("Concat: no tensors")
	}
	first := ts[0]
	outShape := first.shape.Clone()
	outShape[dim] = 0
	for _, t := range ts {
		if len(t.shape) != len(first.shape) {
			panic(fmt.Sprintf("Concat: rank mismatch %v vs %v", t.shape, first.shape))
		}
		for i := range t.shape {
			if i != dim && t.shape[i] != first.shape[i] {
				panic(fmt.Sprintf("Concat: shape mismatch %v vs %v on dimension %d", t.shape, first.shape, i))
			}
		}
		outShape[dim] += t.shape[dim]
	}

	out := Zeros(outShape)
	outer, inner := first.split(dim)
	pos := 0
	for o := 0; o < outer; o++ {
		for _, t := range ts {
			n := t.shape[dim] * inner
			copy(out.data[pos:pos+n], t.data[o*n:(o+1)*n])
			pos += n
		}
	}
	return out
}

// Repeat repeats each element n times along dim, like numpy.repeat.
func (t *Tensor) Repeat(dim, n int) *Tensor {
	if n < 1 {
		panic(fmt.Sprintf("Repeat: n must be >= 1, got %d", n))
	}
	outer, inner := t.split(dim)
	size := t.shape[dim]
	outShape := t.shape.Clone()
	outShape[dim] = size * n
	out := Zeros(outShape)

	pos := 0
	for o := 0; o < outer; o++ {
		for k := 0; k < size; k++ {
			row := t.data[(o*size+k)*inner : (o*size+k+1)*inner]
			for r := 0; r < n; r++ {
				copy(out.data[pos:pos+inner], row)
				pos += inner
			}
		}
	}
	return out
}

// Slice copies the range [start, end) of dim.
func (t *Tensor) Slice(dim, start, end int) *Tensor {
	outer, inner := t.split(dim)
	size := t.shape[dim]
	if start < 0 || end > size || start >= end {
		panic(fmt.Sprintf("Slice: invalid range [%d, %d) for dimension of size %d", start, end, size))
	}
	outShape := t.shape.Clone()
	outShape[dim] = end - start
	out := Zeros(outShape)

	n := (end - start) * inner
	for o := 0; o < outer; o++ {
		src := (o*size + start) * inner
		copy(out.data[o*n:(o+1)*n], t.data[src:src+n])
	}
	return out
}

// Index gathers the given positions of dim, in order. Positions may repeat.
func (t *Tensor) Index(dim int, indices []int) *Tensor {
	outer, inner := t.split(dim)
	size := t.shape[dim]
	outShape := t.shape.Clone()
	outShape[dim] = len(indices)
	out := Zeros(outShape)

	pos := 0
	for o := 0; o < outer; o++ {
		for _, k := range indices {
			if k < 0 || k >= size {
				panic(fmt.Sprintf("Index: position %d out of range for dimension of size %d", k, size))
			}
			src := (o*size + k) * inner
			copy(out.data[pos:pos+inner], t.data[src:src+inner])
			pos += inner
		}
	}
	return out
}
