package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/neuralnet/internal/tensor"
)

// OneHot encodes integer labels as rows of a [len(labels), dim] matrix.
// Panics if a label is outside [0, dim).
func OneHot(labels *tensor.Tensor, dim int) *tensor.Tensor {
	n := labels.NumElements()
	out := tensor.Zeros(tensor.Shape{n, dim})
	data := out.Data()
	for i, l := range labels.Data() {
		c := int(l)
		if c < 0 || c >= dim {
			panic(fmt.Sprintf("OneHot: label %d out of range [0, %d)", c, dim))
		}
		data[i*dim+c] = 1
	}
	return out
}

// LpNorm returns (Σ v^p)^(1/p) over all elements.
//
// Elements are raised to p without taking absolute values, so odd p on
// signed input behaves like the plain power sum.
func LpNorm(v *tensor.Tensor, p float64) float32 {
	var acc float64
	for _, x := range v.Data() {
		acc += math.Pow(float64(x), p)
	}
	return float32(math.Pow(acc, 1/p))
}

// LpNormalize returns v / (‖v‖p + eps).
func LpNormalize(v *tensor.Tensor, p float64, eps float32) *tensor.Tensor {
	return v.Scale(1 / (LpNorm(v, p) + eps))
}

// flatten2 views W as a matrix [W.shape[0], rest].
func flatten2(w *tensor.Tensor) *tensor.Tensor {
	if w.Dims() == 2 {
		return w
	}
	if w.Dims() < 2 {
		panic(fmt.Sprintf("expected at least 2-D weight, got %v", w.Shape()))
	}
	return w.Flatten(1)
}

// NewPowerVector returns a random [1, rows] vector for power iteration on W.
func NewPowerVector(w *tensor.Tensor, rng *rand.Rand) *tensor.Tensor {
	return tensor.Randn(tensor.Shape{1, w.Shape()[0]}, rng)
}

// MaxSingularValue estimates the largest singular value of W with iters
// rounds of power iteration starting from u ([1, rows]).
//
// W with more than two dimensions is flattened to [rows, rest]. Returns
// sigma together with the refined left and right vectors.
func MaxSingularValue(w, u *tensor.Tensor, iters int) (sigma float32, uOut, vOut *tensor.Tensor) {
	w2 := flatten2(w)
	if iters < 1 {
		iters = 1
	}
	uOut = u
	for range iters {
		vOut = LpNormalize(uOut.MatMul(w2), 2, 1e-12)
		uOut = LpNormalize(vOut.MatMul(w2.Transpose()), 2, 1e-12)
	}
	sigma = uOut.MatMul(w2).MatMul(vOut.Transpose()).Sum()
	return sigma, uOut, vOut
}

// SpectralNormalize divides W by its largest singular value in place and
// returns the updated power-iteration vector. A nil u starts from a random
// vector drawn from rng.
func SpectralNormalize(w, u *tensor.Tensor, rng *rand.Rand) *tensor.Tensor {
	if u == nil {
		u = NewPowerVector(w, rng)
	}
	sigma, uNext, _ := MaxSingularValue(w, u, 1)
	scale := 1 / (sigma + 1e-12)
	data := w.Data()
	for i := range data {
		data[i] *= scale
	}
	return uNext
}

// StepFunc computes one step of an unrolled recurrence.
//
// It receives the current slice of every sequence, the previous outputs and
// the non-sequence arguments, and returns the new outputs.
type StepFunc func(inputs, previous []*tensor.Tensor) []*tensor.Tensor

// Unroll runs fn for steps iterations, slicing every sequence along its first
// dimension, and returns the per-step outputs stacked along a new leading
// dimension. With backwards the sequences are consumed last to first, and
// outputs are stored in processing order.
//
// previous starts as init; a nil entry in init marks an output that is not
// fed back (its previous value stays nil).
func Unroll(fn StepFunc, sequences, init []*tensor.Tensor, steps int, backwards bool) []*tensor.Tensor {
	for _, s := range sequences {
		if s.Shape()[0] < steps {
			panic(fmt.Sprintf("Unroll: sequence of length %d shorter than %d steps", s.Shape()[0], steps))
		}
	}

	previous := append([]*tensor.Tensor(nil), init...)
	var history [][]*tensor.Tensor
	for i := range steps {
		t := i
		if backwards {
			t = steps - 1 - i
		}
		inputs := make([]*tensor.Tensor, len(sequences))
		for j, s := range sequences {
			step := s.Slice(0, t, t+1)
			inputs[j] = step.Reshape(s.Shape()[1:]...)
		}
		outputs := fn(inputs, previous)
		history = append(history, outputs)
		for j := range outputs {
			if j < len(init) && init[j] != nil {
				previous[j] = outputs[j]
			}
		}
	}
	if len(history) == 0 {
		return nil
	}

	stacked := make([]*tensor.Tensor, len(history[0]))
	for j := range stacked {
		parts := make([]*tensor.Tensor, len(history))
		for i, outs := range history {
			shape := append(tensor.Shape{1}, outs[j].Shape()...)
			parts[i] = outs[j].Reshape(shape...)
		}
		stacked[j] = tensor.Concat(0, parts...)
	}
	return stacked
}
