package vision

import (
	"fmt"
	"math"

	"github.com/born-ml/neuralnet/internal/tensor"
)

// BorderMode selects how samples outside the image are resolved.
type BorderMode string

// Border modes accepted by InterpolateBilinear and TransformAffine.
const (
	BorderNearest BorderMode = "nearest" // clamp to the edge
	BorderMirror  BorderMode = "mirror"  // reflect about the edge pixel
	BorderWrap    BorderMode = "wrap"    // periodic
)

// resolve maps a possibly out-of-range integer coordinate into [0, size).
func (m BorderMode) resolve(v float64, size int) (int, error) {
	fs := float64(size)
	switch m {
	case BorderNearest:
		return int(math.Min(math.Max(v, 0), fs-1)), nil
	case BorderMirror:
		period := 2 * (fs - 1)
		if period == 0 {
			return 0, nil
		}
		return int(math.Min(floorMod(v, period), floorMod(-v, period))), nil
	case BorderWrap:
		return int(floorMod(v, fs)), nil
	}
	return 0, fmt.Errorf("%w: %q (want nearest, mirror or wrap)", ErrBorderMode, string(m))
}

func floorMod(a, b float64) float64 {
	return a - b*math.Floor(a/b)
}

// Meshgrid returns the [3, h*w] sampling grid: normalized x coordinates in
// [-1, 1] varying along width, y coordinates varying along height, and a
// row of ones.
func Meshgrid(h, w int) *tensor.Tensor {
	xs := tensor.Linspace(-1, 1, w).Data()
	ys := tensor.Linspace(-1, 1, h).Data()
	grid := tensor.Zeros(tensor.Shape{3, h * w})
	g := grid.Data()
	for i := range h {
		for j := range w {
			p := i*w + j
			g[p] = xs[j]
			g[h*w+p] = ys[i]
			g[2*h*w+p] = 1
		}
	}
	return grid
}

// InterpolateBilinear samples im [N, C, H, W] at the normalized coordinates
// x, y (in [-1, 1], N*outH*outW values each, image-major) and returns
// [N, C, outH, outW].
func InterpolateBilinear(im, x, y *tensor.Tensor, outH, outW int, border BorderMode) (*tensor.Tensor, error) {
	if im.Dims() != 4 {
		return nil, fmt.Errorf("%w: im should be a 4D image, got %dD", ErrRank, im.Dims())
	}
	s := im.Shape()
	n, c, h, w := s[0], s[1], s[2], s[3]
	points := outH * outW
	if x.NumElements() != n*points || y.NumElements() != n*points {
		return nil, fmt.Errorf("%w: need %d coordinates, got x=%d y=%d",
			ErrShape, n*points, x.NumElements(), y.NumElements())
	}
	if _, err := border.resolve(0, 1); err != nil {
		return nil, err
	}

	src := im.Data()
	xd, yd := x.Data(), y.Data()
	out := tensor.Zeros(tensor.Shape{n, c, outH, outW})
	dst := out.Data()
	plane := h * w
	for p := range n * points {
		b, q := p/points, p%points
		fx := (float64(xd[p]) + 1) / 2 * float64(w-1)
		fy := (float64(yd[p]) + 1) / 2 * float64(h-1)
		x0f, y0f := math.Floor(fx), math.Floor(fy)
		x1f, y1f := x0f+1, y0f+1

		x0, _ := border.resolve(x0f, w)
		x1, _ := border.resolve(x1f, w)
		y0, _ := border.resolve(y0f, h)
		y1, _ := border.resolve(y1f, h)

		wa := float32((x1f - fx) * (y1f - fy))
		wb := float32((x1f - fx) * (1 - (y1f - fy)))
		wc := float32((1 - (x1f - fx)) * (y1f - fy))
		wd := float32((1 - (x1f - fx)) * (1 - (y1f - fy)))

		for ch := range c {
			img := src[(b*c+ch)*plane:]
			dst[(b*c+ch)*points+q] = wa*img[y0*w+x0] + wb*img[y1*w+x0] + wc*img[y0*w+x1] + wd*img[y1*w+x1]
		}
	}
	return out, nil
}

// TransformAffine warps im [N, C, H, W] with per-image affine matrices theta
// ([N, 6] or [N, 2, 3]) mapping output grid coordinates to input ones. The
// output is downsampled by the integer factors ds.
func TransformAffine(theta, im *tensor.Tensor, ds [2]int, border BorderMode) (*tensor.Tensor, error) {
	if err := require4D(im); err != nil {
		return nil, err
	}
	if ds[0] <= 0 || ds[1] <= 0 {
		return nil, fmt.Errorf("%w: downsample factors must be positive, got %v", ErrShape, ds)
	}
	s := im.Shape()
	n := s[0]
	if theta.NumElements() != n*6 {
		return nil, fmt.Errorf("%w: theta needs %d values for %d images, got %v", ErrShape, n*6, n, theta.Shape())
	}
	hOut, wOut := s[2]/ds[0], s[3]/ds[1]
	if hOut == 0 || wOut == 0 {
		return nil, fmt.Errorf("%w: downsampling %v by %v leaves no pixels", ErrShape, s, ds)
	}

	points := hOut * wOut
	grid := Meshgrid(hOut, wOut).Data()
	xs := tensor.Zeros(tensor.Shape{n * points})
	ys := tensor.Zeros(tensor.Shape{n * points})
	th := theta.Data()
	for b := range n {
		t := th[b*6 : b*6+6]
		for p := range points {
			gx, gy, g1 := grid[p], grid[points+p], grid[2*points+p]
			xs.Data()[b*points+p] = t[0]*gx + t[1]*gy + t[2]*g1
			ys.Data()[b*points+p] = t[3]*gx + t[4]*gy + t[5]*g1
		}
	}
	return InterpolateBilinear(im, xs, ys, hOut, wOut, border)
}
