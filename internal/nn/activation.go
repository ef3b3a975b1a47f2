package nn

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/born-ml/neuralnet/internal/tensor"
)

// Errors returned by the activation registry.
var (
	ErrUnknownActivation = errors.New("unknown activation")
	ErrMissingAlpha      = errors.New("prelu requires a trainable alpha")
)

// activationConfig carries the keyword arguments accepted by activations.
type activationConfig struct {
	alpha      float32
	alphaSet   bool
	lambda     float32
	lambdaSet  bool
	maxoutSize int
	slope      *Parameter
}

// ActivationOption configures an activation.
type ActivationOption func(*activationConfig)

// WithAlpha sets the negative slope for lrelu, elu and selu.
func WithAlpha(alpha float32) ActivationOption {
	return func(c *activationConfig) {
		c.alpha = alpha
		c.alphaSet = true
	}
}

// WithLambda sets the output scale of selu.
func WithLambda(lambda float32) ActivationOption {
	return func(c *activationConfig) {
		c.lambda = lambda
		c.lambdaSet = true
	}
}

// WithMaxoutSize sets the number of features pooled by maxout.
func WithMaxoutSize(size int) ActivationOption {
	return func(c *activationConfig) {
		c.maxoutSize = size
	}
}

// WithSlope supplies the trainable scalar slope used by prelu.
func WithSlope(slope *Parameter) ActivationOption {
	return func(c *activationConfig) {
		c.slope = slope
	}
}

// pointwise is an element-wise activation with its derivative expressed in
// terms of the input x and output y.
type pointwise struct {
	f  func(x float32) float32
	df func(x, y float32) float32
}

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

func elu(x, alpha float32) float32 {
	if x > 0 {
		return x
	}
	return alpha * float32(math.Expm1(float64(x)))
}

func leaky(slope float32) pointwise {
	return pointwise{
		f: func(x float32) float32 {
			if x > 0 {
				return x
			}
			return slope * x
		},
		df: func(x, _ float32) float32 {
			if x > 0 {
				return 1
			}
			return slope
		},
	}
}

// builders maps activation names to constructors of their pointwise form.
// softmax, maxout and prelu are handled separately.
var builders = map[string]func(c activationConfig) pointwise{
	"linear": func(activationConfig) pointwise {
		return pointwise{
			f:  func(x float32) float32 { return x },
			df: func(_, _ float32) float32 { return 1 },
		}
	},
	"relu": func(activationConfig) pointwise {
		return leaky(0)
	},
	"lrelu": func(c activationConfig) pointwise {
		alpha := float32(0.2)
		if c.alphaSet {
			alpha = c.alpha
		}
		return leaky(alpha)
	},
	"sigmoid": func(activationConfig) pointwise {
		return pointwise{
			f:  sigmoid,
			df: func(_, y float32) float32 { return y * (1 - y) },
		}
	},
	"tanh": func(activationConfig) pointwise {
		return pointwise{
			f:  func(x float32) float32 { return float32(math.Tanh(float64(x))) },
			df: func(_, y float32) float32 { return 1 - y*y },
		}
	},
	"elu": func(c activationConfig) pointwise {
		alpha := float32(1)
		if c.alphaSet {
			alpha = c.alpha
		}
		return pointwise{
			f: func(x float32) float32 { return elu(x, alpha) },
			df: func(x, y float32) float32 {
				if x > 0 {
					return 1
				}
				return y + alpha
			},
		}
	},
	"selu": func(c activationConfig) pointwise {
		lambda, alpha := float32(1.0507), float32(1.6733)
		if c.lambdaSet {
			lambda = c.lambda
		}
		if c.alphaSet {
			alpha = c.alpha
		}
		return pointwise{
			f: func(x float32) float32 { return lambda * elu(x, alpha) },
			df: func(x, _ float32) float32 {
				if x > 0 {
					return lambda
				}
				return lambda * alpha * float32(math.Exp(float64(x)))
			},
		}
	},
	"ramp": func(activationConfig) pointwise {
		return pointwise{
			f: func(x float32) float32 { return min(max(x, 0), 1) },
			df: func(x, _ float32) float32 {
				if x > 0 && x < 1 {
					return 1
				}
				return 0
			},
		}
	},
	"swish": func(activationConfig) pointwise {
		return pointwise{
			f: func(x float32) float32 { return x * sigmoid(x) },
			df: func(x, y float32) float32 {
				s := sigmoid(x)
				return y + s*(1-y)
			},
		}
	},
	"sin": func(activationConfig) pointwise {
		return pointwise{
			f:  func(x float32) float32 { return float32(math.Sin(float64(x))) },
			df: func(x, _ float32) float32 { return float32(math.Cos(float64(x))) },
		}
	},
	"cos": func(activationConfig) pointwise {
		return pointwise{
			f:  func(x float32) float32 { return float32(math.Cos(float64(x))) },
			df: func(x, _ float32) float32 { return -float32(math.Sin(float64(x))) },
		}
	},
}

// ActivationNames lists every registered activation, sorted.
func ActivationNames() []string {
	names := make([]string, 0, len(builders)+3)
	for name := range builders {
		names = append(names, name)
	}
	names = append(names, "maxout", "prelu", "softmax")
	sort.Strings(names)
	return names
}

// Activation is a parameter-free (or, for prelu, single-parameter) layer
// applying a named nonlinearity.
type Activation struct {
	name       string
	point      pointwise
	maxoutSize int
	slope      *Parameter

	input  *tensor.Tensor
	output *tensor.Tensor
	argmax []int
}

// NewActivation looks up an activation by name.
//
// Defaults: lrelu alpha 0.2, elu alpha 1, selu lambda 1.0507 and alpha 1.6733,
// maxout size 4. prelu requires WithSlope.
func NewActivation(name string, opts ...ActivationOption) (*Activation, error) {
	cfg := activationConfig{maxoutSize: 4}
	for _, opt := range opts {
		opt(&cfg)
	}

	a := &Activation{name: name}
	switch name {
	case "softmax":
	case "maxout":
		if cfg.maxoutSize < 1 {
			return nil, fmt.Errorf("maxout: size must be positive, got %d", cfg.maxoutSize)
		}
		a.maxoutSize = cfg.maxoutSize
	case "prelu":
		if cfg.slope == nil || cfg.slope.Tensor().NumElements() != 1 {
			return nil, ErrMissingAlpha
		}
		a.slope = cfg.slope
	default:
		build, ok := builders[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownActivation, name)
		}
		a.point = build(cfg)
	}
	return a, nil
}

// MustActivation is NewActivation that panics on error.
func MustActivation(name string, opts ...ActivationOption) *Activation {
	a, err := NewActivation(name, opts...)
	if err != nil {
		panic(err)
	}
	return a
}

// Name returns the activation name.
func (a *Activation) Name() string {
	return a.name
}

// Forward applies the activation.
func (a *Activation) Forward(input *tensor.Tensor) *tensor.Tensor {
	a.input = input
	switch a.name {
	case "softmax":
		a.output = Softmax(input)
	case "maxout":
		a.output, a.argmax = maxout(input, a.maxoutSize)
	case "prelu":
		a.output = leaky(a.slope.Tensor().Item()).apply(input)
	default:
		a.output = a.point.apply(input)
	}
	return a.output
}

// Backward returns dLoss/dInput. For prelu the slope gradient is accumulated.
func (a *Activation) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	if a.input == nil {
		panic(fmt.Sprintf("%s.Backward: called before Forward", a.name))
	}
	switch a.name {
	case "softmax":
		return softmaxBackward(a.output, gradOutput)
	case "maxout":
		grad := tensor.ZerosLike(a.input)
		gd, dst := gradOutput.Data(), grad.Data()
		for i, src := range a.argmax {
			dst[src] += gd[i]
		}
		return grad
	case "prelu":
		slope := a.slope.Tensor().Item()
		var dSlope float32
		x, g := a.input.Data(), gradOutput.Data()
		for i, v := range x {
			if v <= 0 {
				dSlope += g[i] * v
			}
		}
		a.slope.AccumulateGrad(tensor.MustFromSlice([]float32{dSlope}, a.slope.Tensor().Shape()))
		return leaky(slope).backward(a.input, a.output, gradOutput)
	default:
		return a.point.backward(a.input, a.output, gradOutput)
	}
}

// Parameters returns the prelu slope, or nothing.
func (a *Activation) Parameters() []*Parameter {
	if a.slope != nil {
		return []*Parameter{a.slope}
	}
	return nil
}

func (p pointwise) apply(x *tensor.Tensor) *tensor.Tensor {
	return x.Apply(p.f)
}

func (p pointwise) backward(x, y, g *tensor.Tensor) *tensor.Tensor {
	out := tensor.ZerosLike(x)
	xd, yd, gd, od := x.Data(), y.Data(), g.Data(), out.Data()
	for i := range od {
		od[i] = gd[i] * p.df(xd[i], yd[i])
	}
	return out
}

// Apply evaluates a named activation without keeping layer state.
func Apply(name string, x *tensor.Tensor, opts ...ActivationOption) (*tensor.Tensor, error) {
	a, err := NewActivation(name, opts...)
	if err != nil {
		return nil, err
	}
	return a.Forward(x), nil
}

// ReLU returns max(0, x).
func ReLU(x *tensor.Tensor) *tensor.Tensor { return leaky(0).apply(x) }

// LeakyReLU returns x for x > 0 and alpha*x otherwise.
func LeakyReLU(x *tensor.Tensor, alpha float32) *tensor.Tensor { return leaky(alpha).apply(x) }

// Sigmoid returns 1/(1+exp(-x)).
func Sigmoid(x *tensor.Tensor) *tensor.Tensor { return x.Apply(sigmoid) }

// Softmax normalizes the last dimension of x into probabilities.
// The maximum is subtracted per row for numerical stability.
func Softmax(x *tensor.Tensor) *tensor.Tensor {
	shape := x.Shape()
	if len(shape) == 0 {
		panic("Softmax: scalar input")
	}
	cols := shape[len(shape)-1]
	out := tensor.ZerosLike(x)
	src, dst := x.Data(), out.Data()
	for r := 0; r < len(src)/cols; r++ {
		row := src[r*cols : (r+1)*cols]
		res := dst[r*cols : (r+1)*cols]
		m := row[0]
		for _, v := range row[1:] {
			m = max(m, v)
		}
		var sum float64
		for i, v := range row {
			e := math.Exp(float64(v - m))
			res[i] = float32(e)
			sum += e
		}
		for i := range res {
			res[i] = float32(float64(res[i]) / sum)
		}
	}
	return out
}

func softmaxBackward(y, g *tensor.Tensor) *tensor.Tensor {
	shape := y.Shape()
	cols := shape[len(shape)-1]
	out := tensor.ZerosLike(y)
	yd, gd, od := y.Data(), g.Data(), out.Data()
	for r := 0; r < len(yd)/cols; r++ {
		var dot float32
		for i := r * cols; i < (r+1)*cols; i++ {
			dot += yd[i] * gd[i]
		}
		for i := r * cols; i < (r+1)*cols; i++ {
			od[i] = yd[i] * (gd[i] - dot)
		}
	}
	return out
}

// Maxout takes the element-wise maximum of the strided feature slices
// x[:, i::size] for i in [0, size). Output feature j is the maximum of input
// features j*size .. j*size+size-1. The feature count must be divisible by size.
func Maxout(x *tensor.Tensor, size int) *tensor.Tensor {
	out, _ := maxout(x, size)
	return out
}

// maxout returns the pooled tensor and, for every output element, the flat
// index of the input element that produced it.
func maxout(x *tensor.Tensor, size int) (*tensor.Tensor, []int) {
	shape := x.Shape()
	if len(shape) < 2 {
		panic(fmt.Sprintf("Maxout: expected at least 2-D input, got %v", shape))
	}
	features := shape[1]
	if features%size != 0 {
		panic(fmt.Sprintf("Maxout: %d features not divisible by size %d", features, size))
	}
	groups := features / size
	inner := 1
	for _, d := range shape[2:] {
		inner *= d
	}

	outShape := shape.Clone()
	outShape[1] = groups
	out := tensor.Zeros(outShape)
	argmax := make([]int, out.NumElements())
	src, dst := x.Data(), out.Data()
	for n := 0; n < shape[0]; n++ {
		for j := 0; j < groups; j++ {
			for k := 0; k < inner; k++ {
				o := (n*groups+j)*inner + k
				best := -1
				for i := 0; i < size; i++ {
					idx := (n*features+j*size+i)*inner + k
					if best < 0 || src[idx] > src[best] {
						best = idx
					}
				}
				dst[o] = src[best]
				argmax[o] = best
			}
		}
	}
	return out, argmax
}
