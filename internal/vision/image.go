package vision

import (
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoding
	_ "image/png"  // register PNG decoding
	"os"

	"golang.org/x/image/draw"

	"github.com/born-ml/neuralnet/internal/tensor"
)

// CropSize is the side of the square crop PrepImage produces.
const CropSize = 224

// ColorOrder is the channel order PrepImage emits.
type ColorOrder string

// Channel orders accepted by PrepImage.
const (
	BGR ColorOrder = "bgr"
	RGB ColorOrder = "rgb"
)

// resize scales src to w×h with the given interpolator.
func resize(src image.Image, w, h int, interp draw.Interpolator) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	interp.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// crop copies the w×h region of src starting at (x0, y0).
func crop(src *image.RGBA, x0, y0, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Copy(dst, image.Point{}, src, image.Rect(x0, y0, x0+w, y0+h), draw.Src, nil)
	return dst
}

// CropCenter scales img so its short side equals short, then cuts the
// centred cropW×cropH region.
func CropCenter(img image.Image, short, cropH, cropW int) (*image.RGBA, error) {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	if h == 0 || w == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrShape)
	}
	scale := float64(short) / float64(min(h, w))
	newH, newW := short, int(scale*float64(w)+0.5)
	if h >= w {
		newH, newW = int(scale*float64(h)+0.5), short
	}
	if cropH > newH || cropW > newW {
		return nil, fmt.Errorf("%w: crop %dx%d exceeds resized %dx%d", ErrShape, cropH, cropW, newH, newW)
	}
	scaled := resize(img, newW, newH, draw.BiLinear)
	y0 := int(float64(newH-cropH) * 0.5)
	x0 := int(float64(newW-cropW) * 0.5)
	return crop(scaled, x0, y0, cropW, cropH), nil
}

// PrepImage decodes the PNG or JPEG at path, scales its short side to
// short with bicubic interpolation, crops the centred 224×224 square and
// subtracts the per-channel mean. mean is given in BGR order. The result is
// the raw crop and a [1, 3, 224, 224] tensor whose channels follow order.
func PrepImage(path string, mean [3]float32, order ColorOrder, short int) (*image.RGBA, *tensor.Tensor, error) {
	if order != BGR && order != RGB {
		return nil, nil, fmt.Errorf("%w: %q", ErrColorOrder, string(order))
	}
	if short < CropSize {
		return nil, nil, fmt.Errorf("%w: short side %d is smaller than the %d crop", ErrShape, short, CropSize)
	}
	f, err := os.Open(path) //nolint:gosec // G304: image paths are user-provided by design
	if err != nil {
		return nil, nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = f.Close() }()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", path, err)
	}

	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	newH, newW := short, w*short/h
	if h >= w {
		newH, newW = h*short/w, short
	}
	scaled := resize(img, newW, newH, draw.CatmullRom)
	raw := crop(scaled, newW/2-CropSize/2, newH/2-CropSize/2, CropSize, CropSize)
	return raw, ToTensor(raw, mean, order), nil
}

// ToTensor converts img to a [1, 3, H, W] float tensor in the given channel
// order after subtracting mean (BGR order).
func ToTensor(img *image.RGBA, mean [3]float32, order ColorOrder) *tensor.Tensor {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	plane := h * w
	out := tensor.Zeros(tensor.Shape{1, 3, h, w})
	d := out.Data()
	for y := range h {
		for x := range w {
			o := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			r, g, bl := float32(img.Pix[o]), float32(img.Pix[o+1]), float32(img.Pix[o+2])
			p := y*w + x
			if order == BGR {
				d[p], d[plane+p], d[2*plane+p] = bl-mean[0], g-mean[1], r-mean[2]
			} else {
				d[p], d[plane+p], d[2*plane+p] = r-mean[2], g-mean[1], bl-mean[0]
			}
		}
	}
	return out
}
