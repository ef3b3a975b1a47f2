package nn_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/neuralnet/internal/nn"
	"github.com/born-ml/neuralnet/internal/tensor"
)

func TestNewMLP(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m, err := nn.NewMLP(3, []int{8, 4}, 2, "relu", rng)
	require.NoError(t, err)
	assert.Equal(t, "mlp", m.Name())
	assert.Equal(t, 5, m.Len())
	assert.Equal(t, []string{"0.weight", "0.bias", "2.weight", "2.bias", "4.weight", "4.bias"}, m.Keys())

	out := m.Forward(tensor.Ones(tensor.Shape{5, 3}))
	assert.True(t, out.Shape().Equal(tensor.Shape{5, 2}))
}

func TestNewMLP_SpecialActivations(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	m, err := nn.NewMLP(3, []int{8}, 1, "maxout", rng)
	require.NoError(t, err)
	out := m.Forward(tensor.Ones(tensor.Shape{2, 3}))
	assert.True(t, out.Shape().Equal(tensor.Shape{2, 1}))

	m, err = nn.NewMLP(3, []int{4, 4}, 1, "prelu", rng)
	require.NoError(t, err)
	assert.Contains(t, m.Keys(), "1.alpha")
	assert.Contains(t, m.Keys(), "3.alpha")

	_, err = nn.NewMLP(3, []int{6}, 1, "maxout", rng)
	require.Error(t, err)
	_, err = nn.NewMLP(3, []int{4}, 1, "gelu", rng)
	require.ErrorIs(t, err, nn.ErrUnknownActivation)
	_, err = nn.NewMLP(0, nil, 1, "relu", rng)
	require.Error(t, err)
}

func TestLossByName(t *testing.T) {
	for _, name := range []string{"mse", "softmax_cross_entropy"} {
		loss, err := nn.LossByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, loss)
	}
	_, err := nn.LossByName("hinge")
	require.ErrorIs(t, err, nn.ErrUnknownLoss)
}
