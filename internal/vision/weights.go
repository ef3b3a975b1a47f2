package vision

import (
	"fmt"

	"github.com/born-ml/neuralnet/internal/tensor"
)

// DataFormat is the memory order of a feature map.
type DataFormat string

// Feature map layouts.
const (
	ChannelsFirst DataFormat = "channels_first" // C, H, W
	ChannelsLast  DataFormat = "channels_last"  // H, W, C
)

// ConvertDenseWeights reorders the rows of a dense kernel [D, units] that
// follows a flattened feature map, so that a model trained on one layout
// can be loaded into the other. fm is the previous feature map shape in the
// target layout; target names that layout.
func ConvertDenseWeights(weights *tensor.Tensor, fm [3]int, target DataFormat) (*tensor.Tensor, error) {
	if weights.Dims() != 2 {
		return nil, fmt.Errorf("%w: dense weights must be 2D, got %dD", ErrRank, weights.Dims())
	}
	d := fm[0] * fm[1] * fm[2]
	if weights.Shape()[0] != d {
		return nil, fmt.Errorf("%w: %d rows for a %v feature map of %d values", ErrShape, weights.Shape()[0], fm, d)
	}

	var src []int
	var perm []int
	switch target {
	case ChannelsFirst:
		c, h, w := fm[0], fm[1], fm[2]
		src, perm = []int{h, w, c}, []int{2, 0, 1}
	case ChannelsLast:
		h, w, c := fm[0], fm[1], fm[2]
		src, perm = []int{c, h, w}, []int{1, 2, 0}
	default:
		return nil, fmt.Errorf("%w: target must be %q or %q, got %q", ErrShape, ChannelsFirst, ChannelsLast, string(target))
	}

	// Columns are contiguous after transposing to [units, D].
	cols := weights.Transpose()
	units := cols.Shape()[0]
	out := tensor.Zeros(tensor.Shape{units, d})
	for i := range units {
		col := cols.Slice(0, i, i+1).Reshape(src...).Transpose(perm...)
		copy(out.Data()[i*d:], col.Data())
	}
	return out.Transpose(), nil
}
