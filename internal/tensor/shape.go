package tensor

import (
	"fmt"
	"slices"
)

// Shape lists the size of each dimension, outermost first. An empty
// Shape is a scalar.
type Shape []int

// NumElements returns the product of the dimensions (1 for a scalar).
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate rejects zero and negative dimensions.
func (s Shape) Validate() error {
	if i := slices.IndexFunc(s, func(d int) bool { return d <= 0 }); i >= 0 {
		return fmt.Errorf("%w: dimension %d of %v is not positive", ErrInvalidShape, i, s)
	}
	return nil
}

// Equal reports whether both shapes have the same dimensions.
func (s Shape) Equal(other Shape) bool { return slices.Equal(s, other) }

// Clone returns an independent copy.
func (s Shape) Clone() Shape { return append(Shape{}, s...) }

// ComputeStrides returns row-major element strides: the last dimension has
// stride 1 and each earlier one the product of the sizes after it.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	step := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = step
		step *= s[i]
	}
	return strides
}

// resolve replaces a single -1 dimension so the shape holds n elements.
func (s Shape) resolve(n int) (Shape, error) {
	out := s.Clone()
	infer := -1
	known := 1
	for i, d := range out {
		switch {
		case d == -1:
			if infer >= 0 {
				return nil, fmt.Errorf("%w: more than one -1 in %v", ErrInvalidShape, s)
			}
			infer = i
		case d <= 0:
			return nil, fmt.Errorf("%w: dimension %d is %d", ErrInvalidShape, i, d)
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if known == 0 || n%known != 0 {
			return nil, fmt.Errorf("%w: cannot infer -1 in %v for %d elements", ErrInvalidShape, s, n)
		}
		out[infer] = n / known
	}
	if out.NumElements() != n {
		return nil, fmt.Errorf("%w: %v holds %d elements, need %d", ErrShapeMismatch, out, out.NumElements(), n)
	}
	return out, nil
}

// BroadcastShapes aligns a and b from the right and combines each pair of
// dimensions: equal sizes are kept, a size of 1 stretches to the other, and
// missing leading dimensions count as 1. The flag reports whether either
// operand has to be stretched.
//
//	[3 1] + [3 5] -> [3 5], true
//	[5]   + [3 5] -> [3 5], true
//	[3 5] + [3 5] -> [3 5], false
//	[3 4] + [3 5] -> ErrShapeMismatch
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	n := max(len(a), len(b))
	out := make(Shape, n)
	stretched := len(a) != len(b)
	dim := func(s Shape, i int) int {
		if j := i - (n - len(s)); j >= 0 {
			return s[j]
		}
		return 1
	}
	for i := range n {
		da, db := dim(a, i), dim(b, i)
		switch {
		case da == db:
			out[i] = da
		case da == 1 || db == 1:
			out[i] = max(da, db)
			stretched = true
		default:
			return nil, false, fmt.Errorf("%w: cannot broadcast %v with %v at dimension %d (%d vs %d)",
				ErrShapeMismatch, a, b, i, da, db)
		}
	}
	return out, stretched, nil
}

// broadcastStrides returns strides for reading src as if it had shape out.
// Broadcast dimensions get stride 0.
func broadcastStrides(src, out Shape) []int {
	srcStrides := src.ComputeStrides()
	strides := make([]int, len(out))
	offset := len(out) - len(src)
	for i := range out {
		j := i - offset
		if j < 0 || src[j] == 1 {
			continue
		}
		strides[i] = srcStrides[j]
	}
	return strides
}
