// Package vision holds image utilities for NCHW tensors: colour space
// conversion, resampling, padding, filter kernels and image preparation.
package vision

import (
	"errors"
	"fmt"

	"github.com/born-ml/neuralnet/internal/tensor"
)

// Errors returned by vision functions.
var (
	ErrRank       = errors.New("unexpected tensor rank")
	ErrShape      = errors.New("unexpected tensor shape")
	ErrBorderMode = errors.New("unknown border mode")
	ErrKernel     = errors.New("invalid kernel specification")
	ErrColorOrder = errors.New("unknown colour order")
)

func require4D(x *tensor.Tensor) error {
	if x.Dims() != 4 {
		return fmt.Errorf("%w: input images must have four dimensions, not %d", ErrRank, x.Dims())
	}
	return nil
}

func requireRGB(img *tensor.Tensor) (n, h, w int, err error) {
	if err := require4D(img); err != nil {
		return 0, 0, 0, err
	}
	s := img.Shape()
	if s[1] < 3 {
		return 0, 0, 0, fmt.Errorf("%w: need at least 3 channels, got %v", ErrShape, s)
	}
	return s[0], s[2], s[3], nil
}

// mix3 builds an [N, len(rows), H, W] tensor where output channel k is
// rows[k][3] + rows[k][0]*c0 + rows[k][1]*c1 + rows[k][2]*c2.
func mix3(img *tensor.Tensor, rows [][4]float32) (*tensor.Tensor, error) {
	n, h, w, err := requireRGB(img)
	if err != nil {
		return nil, err
	}
	c := img.Shape()[1]
	plane := h * w
	src := img.Data()
	out := tensor.Zeros(tensor.Shape{n, len(rows), h, w})
	dst := out.Data()
	for b := range n {
		in := src[b*c*plane:]
		for k, r := range rows {
			o := dst[(b*len(rows)+k)*plane:]
			for p := range plane {
				o[p] = r[3] + r[0]*in[p] + r[1]*in[plane+p] + r[2]*in[2*plane+p]
			}
		}
	}
	return out, nil
}

// RGBToGray converts [N, 3, H, W] RGB to [N, 1, H, W] luma.
func RGBToGray(img *tensor.Tensor) (*tensor.Tensor, error) {
	return mix3(img, [][4]float32{{.299, .587, .114, 0}})
}

// RGBToYCbCr converts RGB in [0, 255] to YCbCr.
func RGBToYCbCr(img *tensor.Tensor) (*tensor.Tensor, error) {
	return mix3(img, [][4]float32{
		{.299, .587, .114, 0},
		{-.169, -.331, .5, 128},
		{.5, -.419, -.081, 128},
	})
}

// YCbCrToRGB is the inverse of RGBToYCbCr.
func YCbCrToRGB(img *tensor.Tensor) (*tensor.Tensor, error) {
	// R = Y + 1.4(Cr-128), G = Y - .343(Cb-128) - .711(Cr-128), B = Y + 1.765(Cb-128)
	return mix3(img, [][4]float32{
		{1, 0, 1.4, -1.4 * 128},
		{1, -.343, -.711, (.343 + .711) * 128},
		{1, 1.765, 0, -1.765 * 128},
	})
}
