package nn_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/neuralnet/internal/nn"
	"github.com/born-ml/neuralnet/internal/tensor"
)

func TestOneHot(t *testing.T) {
	out := nn.OneHot(tensor.MustFromSlice([]float32{2, 0}, tensor.Shape{2}), 3)
	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.Equal(t, []float32{0, 0, 1, 1, 0, 0}, out.Data())
	assert.Panics(t, func() { nn.OneHot(tensor.MustFromSlice([]float32{3}, tensor.Shape{1}), 3) })
}

func TestLpNorm(t *testing.T) {
	v := tensor.MustFromSlice([]float32{3, 4}, tensor.Shape{2})
	assert.InDelta(t, 5, nn.LpNorm(v, 2), 1e-6)
	assert.InDelta(t, 7, nn.LpNorm(v, 1), 1e-6)

	n := nn.LpNormalize(v, 2, 1e-12)
	assert.InDelta(t, 0.6, n.Data()[0], 1e-6)
	assert.InDelta(t, 0.8, n.Data()[1], 1e-6)
}

func TestMaxSingularValue(t *testing.T) {
	// Singular values of diag(3, 1) are 3 and 1.
	w := tensor.MustFromSlice([]float32{3, 0, 0, 1}, tensor.Shape{2, 2})
	u := tensor.MustFromSlice([]float32{1, 1}, tensor.Shape{1, 2})

	sigma, uOut, vOut := nn.MaxSingularValue(w, u, 20)
	assert.InDelta(t, 3, sigma, 1e-3)
	assert.Equal(t, tensor.Shape{1, 2}, uOut.Shape())
	assert.Equal(t, tensor.Shape{1, 2}, vOut.Shape())
}

func TestMaxSingularValue_FlattensConvKernels(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	w := tensor.Randn(tensor.Shape{4, 2, 3, 3}, rng)
	sigma, _, vOut := nn.MaxSingularValue(w, nn.NewPowerVector(w, rng), 3)
	assert.Greater(t, sigma, float32(0))
	assert.Equal(t, tensor.Shape{1, 18}, vOut.Shape())
}

func TestSpectralNormalize(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	w := tensor.Randn(tensor.Shape{6, 4}, rng)
	var u *tensor.Tensor
	for range 30 {
		u = nn.SpectralNormalize(w, u, rng)
	}
	sigma, _, _ := nn.MaxSingularValue(w, u, 30)
	assert.InDelta(t, 1, sigma, 1e-2)
}

func TestUnroll_Cumsum(t *testing.T) {
	seq := tensor.MustFromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4, 1})
	step := func(inputs, previous []*tensor.Tensor) []*tensor.Tensor {
		return []*tensor.Tensor{inputs[0].Add(previous[0])}
	}

	out := nn.Unroll(step, []*tensor.Tensor{seq}, []*tensor.Tensor{tensor.Zeros(tensor.Shape{1})}, 4, false)
	require.Len(t, out, 1)
	assert.Equal(t, tensor.Shape{4, 1}, out[0].Shape())
	assert.Equal(t, []float32{1, 3, 6, 10}, out[0].Data())

	back := nn.Unroll(step, []*tensor.Tensor{seq}, []*tensor.Tensor{tensor.Zeros(tensor.Shape{1})}, 4, true)
	assert.Equal(t, []float32{4, 7, 9, 10}, back[0].Data())
}

func TestXavier_Bounds(t *testing.T) {
	w := nn.Xavier(10, 20, tensor.Shape{20, 10}, rand.New(rand.NewSource(1)))
	bound := float32(math.Sqrt(6.0 / 30))
	for _, v := range w.Data() {
		assert.LessOrEqual(t, v, bound)
		assert.GreaterOrEqual(t, v, -bound)
	}
}
