package vision

import (
	"fmt"

	"github.com/born-ml/neuralnet/internal/tensor"
)

// PointOp maps every pixel of image [H, W] through a lookup table sampled
// at origin, origin+increment, ... with linear interpolation between
// entries. Values outside the table use the first or last segment.
func PointOp(image, lut *tensor.Tensor, origin, increment float32) (*tensor.Tensor, error) {
	if image.Dims() != 2 {
		return nil, fmt.Errorf("%w: image must be 2D, got %dD", ErrRank, image.Dims())
	}
	if lut.Dims() != 1 || lut.NumElements() < 2 {
		return nil, fmt.Errorf("%w: lookup table must be 1D with at least 2 entries, got %v", ErrShape, lut.Shape())
	}
	if increment == 0 {
		return nil, fmt.Errorf("%w: increment must be non-zero", ErrShape)
	}
	table := lut.Data()
	last := len(table) - 2
	return image.Apply(func(v float32) float32 {
		pos := (v - origin) / increment
		idx := min(max(int(pos), 0), last)
		return table[idx] + (table[idx+1]-table[idx])*(pos-float32(idx))
	}), nil
}

// LagrangeInterpolation evaluates at u the Lagrange polynomial of degree
// order through the points (x[i], y[i]), i <= order.
func LagrangeInterpolation(x, y []float32, u *tensor.Tensor, order int) (*tensor.Tensor, error) {
	if order < 0 || len(x) <= order || len(y) <= order {
		return nil, fmt.Errorf("%w: order %d needs %d points, got x=%d y=%d", ErrShape, order, order+1, len(x), len(y))
	}
	coef := make([]float32, order+1)
	for i := range coef {
		den := float32(1)
		for j := 0; j <= order; j++ {
			if j != i {
				den *= x[i] - x[j]
			}
		}
		if den == 0 {
			return nil, fmt.Errorf("%w: duplicate abscissa %v", ErrShape, x[i])
		}
		coef[i] = y[i] / den
	}
	return u.Apply(func(v float32) float32 {
		var sum float32
		for i, a := range coef {
			term := a
			for j := 0; j <= order; j++ {
				if j != i {
					term *= v - x[j]
				}
			}
			sum += term
		}
		return sum
	}), nil
}
