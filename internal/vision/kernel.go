package vision

import (
	"fmt"
	"math"

	"github.com/born-ml/neuralnet/internal/tensor"
)

// KernelType names a resampling kernel.
type KernelType string

// Kernel types accepted by Kernel.
const (
	Lanczos KernelType = "lanczos"
	Gauss   KernelType = "gauss"
	Box     KernelType = "box"
)

// KernelOptions describes a 2-D resampling kernel.
type KernelOptions struct {
	Type    KernelType
	Factor  float64 // downsampling factor (lanczos)
	Phase   float64 // 0 or 0.5
	Width   int
	Support float64 // lanczos
	Sigma   float64 // gauss
}

// Kernel builds the kernel described by opts, normalized to sum to 1.
//
// Half-phase kernels (Phase == 0.5) other than box are Width-1 wide. Box
// kernels must be half-phase, gauss kernels must not be, lanczos needs a
// Support and gauss a Sigma.
func Kernel(opts KernelOptions) (*tensor.Tensor, error) {
	size := opts.Width
	if opts.Phase == 0.5 && opts.Type != Box {
		size--
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: width %d gives an empty kernel", ErrKernel, opts.Width)
	}
	k := make([]float64, size*size)
	center := (float64(opts.Width) + 1) / 2

	switch opts.Type {
	case Box:
		if opts.Phase != 0.5 {
			return nil, fmt.Errorf("%w: box filter is always half-phased", ErrKernel)
		}
		for i := range k {
			k[i] = 1 / float64(opts.Width*opts.Width)
		}
	case Gauss:
		if opts.Sigma == 0 {
			return nil, fmt.Errorf("%w: sigma is not specified", ErrKernel)
		}
		if opts.Phase == 0.5 {
			return nil, fmt.Errorf("%w: phase 1/2 for gauss not implemented", ErrKernel)
		}
		sq := opts.Sigma * opts.Sigma
		for i := range size {
			for j := range size {
				di := (float64(i+1) - center) / 2
				dj := (float64(j+1) - center) / 2
				k[i*size+j] = math.Exp(-(di*di+dj*dj)/(2*sq)) / (2 * math.Pi * sq)
			}
		}
	case Lanczos:
		if opts.Support == 0 {
			return nil, fmt.Errorf("%w: support is not specified", ErrKernel)
		}
		if opts.Factor == 0 {
			return nil, fmt.Errorf("%w: factor is not specified", ErrKernel)
		}
		offset := 0.0
		if opts.Phase == 0.5 {
			offset = 0.5
		}
		lobe := func(d float64) float64 {
			if d == 0 {
				return 1
			}
			return opts.Support * math.Sin(math.Pi*d) * math.Sin(math.Pi*d/opts.Support) / (math.Pi * math.Pi * d * d)
		}
		for i := range size {
			for j := range size {
				di := math.Abs(float64(i+1)+offset-center) / opts.Factor
				dj := math.Abs(float64(j+1)+offset-center) / opts.Factor
				k[i*size+j] = lobe(di) * lobe(dj)
			}
		}
	default:
		return nil, fmt.Errorf("%w: unknown type %q (want lanczos, gauss or box)", ErrKernel, string(opts.Type))
	}
	return normalized(k, size), nil
}

func normalized(k []float64, size int) *tensor.Tensor {
	var sum float64
	for _, v := range k {
		sum += v
	}
	out := tensor.Zeros(tensor.Shape{size, size})
	for i, v := range k {
		out.Data()[i] = float32(v / sum)
	}
	return out
}

// grid calls f for every (x, y) offset of a size×size kernel centred the
// way numpy's mgrid[-size//2+1 : size//2+1] is.
func grid(size int, f func(x, y float64) float64) *tensor.Tensor {
	start := -((size + 1) / 2) + 1 // floor(-size/2) + 1
	out := tensor.Zeros(tensor.Shape{size, size})
	for i := range size {
		for j := range size {
			out.Data()[i*size+j] = float32(f(float64(start+i), float64(start+j)))
		}
	}
	return out
}

// Gaussian2 returns the circularly symmetric Gaussian
// exp(-(x²+y²)/2σ²) / 2πσ² sampled on a size×size grid. It is not
// renormalized.
func Gaussian2(size int, sigma float64) *tensor.Tensor {
	a := 1 / (2 * math.Pi * sigma * sigma)
	return grid(size, func(x, y float64) float64 {
		return a * math.Exp(-(x*x/(2*sigma*sigma) + y*y/(2*sigma*sigma)))
	})
}

// LaplacianOfGaussian samples the Laplacian of a Gaussian on a size×size grid.
func LaplacianOfGaussian(size int, sigma float64) *tensor.Tensor {
	s2 := sigma * sigma
	return grid(size, func(x, y float64) float64 {
		r2 := x*x + y*y
		return 1 / (2 * math.Pi * s2 * s2) * ((r2 - 2*s2) / s2) * math.Exp(-r2/(2*s2))
	})
}

// FSpecialGauss returns a size×size Gaussian normalized to sum to 1, like
// MATLAB's fspecial('gaussian').
func FSpecialGauss(size int, sigma float64) *tensor.Tensor {
	g := grid(size, func(x, y float64) float64 {
		return math.Exp(-(x*x + y*y) / (2 * sigma * sigma))
	})
	return g.Scale(1 / g.Sum())
}

// KernelMode selects how KernelTensor spreads a 2-D kernel over channels.
type KernelMode string

// Kernel tensor modes.
const (
	// Each filters every channel independently (diagonal kernel).
	Each KernelMode = "each"
	// All sums the filtered input channels into every output channel.
	All KernelMode = "all"
)

// KernelTensor lifts a 2-D kernel k [kh, kw] into a convolution kernel
// [out, in, kh, kw].
func KernelTensor(out, in int, k *tensor.Tensor, mode KernelMode) (*tensor.Tensor, error) {
	if k.Dims() != 2 {
		return nil, fmt.Errorf("%w: kernel must be a 2D filter, got %dD", ErrRank, k.Dims())
	}
	if out <= 0 || in <= 0 {
		return nil, fmt.Errorf("%w: kernel shape (%d, %d) must be positive", ErrShape, out, in)
	}
	kh, kw := k.Shape()[0], k.Shape()[1]
	area := kh * kw
	kern := tensor.Zeros(tensor.Shape{out, in, kh, kw})
	switch mode {
	case Each:
		if out != in {
			return nil, fmt.Errorf("%w: kernel shape values must be the same for %q, got (%d, %d)", ErrShape, Each, out, in)
		}
		for i := range out {
			copy(kern.Data()[(i*in+i)*area:], k.Data())
		}
	case All:
		for i := range out * in {
			copy(kern.Data()[i*area:], k.Data())
		}
	default:
		return nil, fmt.Errorf("%w: mode must be %q or %q, got %q", ErrKernel, Each, All, string(mode))
	}
	return kern, nil
}

// Conv2DSame convolves x [N, C, H, W] with k [O, C, kh, kw] using zero
// padding of kh/2 and kw/2 ("half" mode). The kernel is flipped, making
// this a true convolution. Odd kernels keep the spatial size.
func Conv2DSame(x, k *tensor.Tensor) (*tensor.Tensor, error) {
	if err := require4D(x); err != nil {
		return nil, err
	}
	if k.Dims() != 4 {
		return nil, fmt.Errorf("%w: kernel must be 4D, got %dD", ErrRank, k.Dims())
	}
	xs, ks := x.Shape(), k.Shape()
	if xs[1] != ks[1] {
		return nil, fmt.Errorf("%w: input has %d channels, kernel expects %d", ErrShape, xs[1], ks[1])
	}
	n, c, h, w := xs[0], xs[1], xs[2], xs[3]
	o, kh, kw := ks[0], ks[2], ks[3]
	ph, pw := kh/2, kw/2
	oh, ow := h+2*ph-kh+1, w+2*pw-kw+1

	src, kd := x.Data(), k.Data()
	out := tensor.Zeros(tensor.Shape{n, o, oh, ow})
	dst := out.Data()
	for b := range n {
		for oc := range o {
			plane := dst[(b*o+oc)*oh*ow:]
			for ic := range c {
				in := src[(b*c+ic)*h*w:]
				ker := kd[(oc*c+ic)*kh*kw:]
				for i := range oh {
					for j := range ow {
						var acc float32
						for u := range kh {
							r := i + u - ph
							if r < 0 || r >= h {
								continue
							}
							for v := range kw {
								col := j + v - pw
								if col < 0 || col >= w {
									continue
								}
								acc += in[r*w+col] * ker[(kh-1-u)*kw+(kw-1-v)]
							}
						}
						plane[i*ow+j] += acc
					}
				}
			}
		}
	}
	return out, nil
}

// DifferenceOfGaussian returns x*G(σ2) - x*G(σ1) computed channel by
// channel for x [N, depth, H, W].
func DifferenceOfGaussian(x *tensor.Tensor, depth, size int, sigma1, sigma2 float64) (*tensor.Tensor, error) {
	k1, err := KernelTensor(depth, depth, Gaussian2(size, sigma1), Each)
	if err != nil {
		return nil, err
	}
	k2, err := KernelTensor(depth, depth, Gaussian2(size, sigma2), Each)
	if err != nil {
		return nil, err
	}
	x1, err := Conv2DSame(x, k1)
	if err != nil {
		return nil, err
	}
	x2, err := Conv2DSame(x, k2)
	if err != nil {
		return nil, err
	}
	return x2.Sub(x1), nil
}
