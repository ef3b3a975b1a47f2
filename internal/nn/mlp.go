package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/neuralnet/internal/tensor"
)

// mlpMaxoutSize is the pool size used when an MLP is built with maxout.
const mlpMaxoutSize = 4

// NewMLP builds a multi-layer perceptron named "mlp": one Linear layer per
// entry of hidden, each followed by the named activation, and a final
// Linear layer with out features.
//
// prelu layers get their own slope initialized to 0.25. maxout pools groups
// of four units, so hidden sizes must be multiples of four and the next
// layer sees a quarter of them.
func NewMLP(in int, hidden []int, out int, activation string, rng *rand.Rand) (*Base, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("mlp: feature counts must be positive, got in=%d out=%d", in, out)
	}
	m := &Base{}
	m.Init("mlp")
	prev := in
	for i, h := range hidden {
		if h <= 0 {
			return nil, fmt.Errorf("mlp: hidden layer %d has %d units", i, h)
		}
		var opts []ActivationOption
		next := h
		switch activation {
		case "prelu":
			opts = append(opts, WithSlope(NewParameter("alpha", tensor.Scalar(0.25))))
		case "maxout":
			if h%mlpMaxoutSize != 0 {
				return nil, fmt.Errorf("mlp: maxout needs hidden sizes divisible by %d, layer %d has %d",
					mlpMaxoutSize, i, h)
			}
			opts = append(opts, WithMaxoutSize(mlpMaxoutSize))
			next = h / mlpMaxoutSize
		}
		act, err := NewActivation(activation, opts...)
		if err != nil {
			return nil, err
		}
		m.Add(NewLinear(prev, h, rng))
		m.Add(act)
		prev = next
	}
	m.Add(NewLinear(prev, out, rng))
	return m, nil
}
