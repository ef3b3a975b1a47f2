package vision

import (
	"fmt"

	"github.com/born-ml/neuralnet/internal/tensor"
)

// remap builds [N, C, outH, outW] from x [N, C, H, W] by reading
// x[..., row(i), col(j)] for every output position.
func remap(x *tensor.Tensor, outH, outW int, row, col func(int) int) *tensor.Tensor {
	s := x.Shape()
	nc, h, w := s[0]*s[1], s[2], s[3]
	src := x.Data()
	out := tensor.Zeros(tensor.Shape{s[0], s[1], outH, outW})
	dst := out.Data()
	rows := make([]int, outH)
	for i := range rows {
		rows[i] = row(i)
	}
	cols := make([]int, outW)
	for j := range cols {
		cols[j] = col(j)
	}
	for p := range nc {
		in := src[p*h*w:]
		o := dst[p*outH*outW:]
		for i, r := range rows {
			for j, c := range cols {
				o[i*outW+j] = in[r*w+c]
			}
		}
	}
	return out
}

// ReplicationPad pads the last two dimensions of x [N, C, H, W] by
// repeating the edge pixels.
func ReplicationPad(x *tensor.Tensor, left, right, top, bottom int) (*tensor.Tensor, error) {
	if err := require4D(x); err != nil {
		return nil, err
	}
	if left < 0 || right < 0 || top < 0 || bottom < 0 {
		return nil, fmt.Errorf("%w: negative padding (%d, %d, %d, %d)", ErrShape, left, right, top, bottom)
	}
	h, w := x.Shape()[2], x.Shape()[3]
	clamp := func(v, n int) int { return min(max(v, 0), n-1) }
	return remap(x, h+top+bottom, w+left+right,
		func(i int) int { return clamp(i-top, h) },
		func(j int) int { return clamp(j-left, w) },
	), nil
}

// ReflectPad pads the last two dimensions of x [N, C, H, W] symmetrically
// by ph rows and pw columns, reflecting about the edge pixels (the edge
// itself is not repeated). Padding must be smaller than the dimension.
func ReflectPad(x *tensor.Tensor, ph, pw int) (*tensor.Tensor, error) {
	if err := require4D(x); err != nil {
		return nil, err
	}
	h, w := x.Shape()[2], x.Shape()[3]
	if ph < 0 || pw < 0 || ph >= h || pw >= w {
		return nil, fmt.Errorf("%w: reflect padding (%d, %d) must be in [0, size) for %v", ErrShape, ph, pw, x.Shape())
	}
	reflect := func(v, n int) int {
		if v < 0 {
			return -v
		}
		if v >= n {
			return 2*(n-1) - v
		}
		return v
	}
	return remap(x, h+2*ph, w+2*pw,
		func(i int) int { return reflect(i-ph, h) },
		func(j int) int { return reflect(j-pw, w) },
	), nil
}

// PadToMultiple zero-pads an [H, W, ...] image so that H and W become the
// next multiples of mulH and mulW. The original is centred.
func PadToMultiple(img *tensor.Tensor, mulH, mulW int) (*tensor.Tensor, error) {
	if img.Dims() < 2 {
		return nil, fmt.Errorf("%w: need at least 2 dimensions, got %d", ErrRank, img.Dims())
	}
	if mulH <= 0 || mulW <= 0 {
		return nil, fmt.Errorf("%w: multiples must be positive, got (%d, %d)", ErrShape, mulH, mulW)
	}
	s := img.Shape()
	h, w := s[0], s[1]
	hNew := (h + mulH - 1) / mulH * mulH
	wNew := (w + mulW - 1) / mulW * mulW

	outShape := s.Clone()
	outShape[0], outShape[1] = hNew, wNew
	out := tensor.Zeros(outShape)
	inner := s.NumElements() / (h * w)
	y0, x0 := (hNew-h)/2, (wNew-w)/2
	for i := range h {
		dst := out.Data()[((y0+i)*wNew+x0)*inner:]
		copy(dst[:w*inner], img.Data()[i*w*inner:(i+1)*w*inner])
	}
	return out, nil
}

// Unpad crops the centred [h, w] region of img, undoing PadToMultiple.
func Unpad(img *tensor.Tensor, h, w int) (*tensor.Tensor, error) {
	if img.Dims() < 2 {
		return nil, fmt.Errorf("%w: need at least 2 dimensions, got %d", ErrRank, img.Dims())
	}
	s := img.Shape()
	if h <= 0 || w <= 0 || h > s[0] || w > s[1] {
		return nil, fmt.Errorf("%w: cannot crop %dx%d from %v", ErrShape, h, w, s)
	}
	y0, x0 := (s[0]-h)/2, (s[1]-w)/2
	return img.Slice(0, y0, y0+h).Slice(1, x0, x0+w), nil
}

// Unpool upsamples x [N, C, H, W] by repeating every pixel sh times
// vertically and sw times horizontally.
func Unpool(x *tensor.Tensor, sh, sw int) (*tensor.Tensor, error) {
	if err := require4D(x); err != nil {
		return nil, err
	}
	if sh < 1 || sw < 1 {
		return nil, fmt.Errorf("%w: unpool factors must be >= 1, got (%d, %d)", ErrShape, sh, sw)
	}
	return x.Repeat(2, sh).Repeat(3, sw), nil
}

// DepthToSpace rearranges [N, C*r*r, H, W] into [N, C, H*r, W*r]
// (pixel shuffle).
func DepthToSpace(x *tensor.Tensor, r int) (*tensor.Tensor, error) {
	if err := require4D(x); err != nil {
		return nil, err
	}
	s := x.Shape()
	if r < 1 || s[1]%(r*r) != 0 {
		return nil, fmt.Errorf("%w: %d channels are not divisible by %d", ErrShape, s[1], r*r)
	}
	n, oc, h, w := s[0], s[1]/(r*r), s[2], s[3]
	z := x.Reshape(n, oc, r, r, h, w).Transpose(0, 1, 4, 2, 5, 3)
	return z.Reshape(n, oc, h*r, w*r), nil
}
