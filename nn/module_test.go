// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"math/rand"
	"testing"

	"github.com/born-ml/neuralnet/nn"
	"github.com/born-ml/neuralnet/optim"
	"github.com/born-ml/neuralnet/tensor"
)

type regressor struct {
	nn.Base
}

func newRegressor(rng *rand.Rand) *regressor {
	r := &regressor{}
	r.Init("regressor",
		nn.NewLinear(3, 4, rng),
		nn.MustActivation("tanh"),
		nn.NewLinear(4, 1, rng),
	)
	return r
}

// TestModelContract checks that an embedding struct satisfies Model.
func TestModelContract(t *testing.T) {
	var m nn.Model = newRegressor(rand.New(rand.NewSource(1)))

	if m.Name() != "regressor" {
		t.Errorf("Name() = %q, want regressor", m.Name())
	}
	if got := len(m.Parameters()); got != 4 {
		t.Fatalf("Parameters() has %d entries, want 4", got)
	}

	want := []string{"0.bias", "0.weight", "2.bias", "2.weight"}
	got := nn.SortedKeys(m.StateDict())
	if len(got) != len(want) {
		t.Fatalf("state dict keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("key %d = %q, want %q", i, got[i], want[i])
		}
	}

	out := m.Forward(tensor.Zeros(tensor.Shape{5, 3}))
	if !out.Shape().Equal(tensor.Shape{5, 1}) {
		t.Errorf("Forward shape = %v, want [5 1]", out.Shape())
	}
}

func TestStateDictTransfer(t *testing.T) {
	src := newRegressor(rand.New(rand.NewSource(1)))
	dst := newRegressor(rand.New(rand.NewSource(2)))
	if err := dst.LoadStateDict(src.StateDict()); err != nil {
		t.Fatalf("LoadStateDict: %v", err)
	}
	x := tensor.Randn(tensor.Shape{2, 3}, rand.New(rand.NewSource(3)))
	a, b := src.Forward(x).Data(), dst.Forward(x).Data()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("outputs differ after LoadStateDict: %v vs %v", a, b)
		}
	}

	small := nn.Sequential(nn.NewLinear(3, 2, rand.New(rand.NewSource(1))))
	if err := dst.LoadStateDict(small.StateDict()); err == nil {
		t.Error("LoadStateDict accepted a state dict from a different architecture")
	}
}

func TestTrainingStepReducesLoss(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	model := newRegressor(rng)
	opt, err := optim.New("sgd", model.Parameters(), optim.Config{LR: 0.1})
	if err != nil {
		t.Fatal(err)
	}

	x := tensor.Randn(tensor.Shape{16, 3}, rng)
	y := x.SumDim(1, true)

	first, _ := nn.MSE(model.Forward(x), y)
	var last float32
	for range 50 {
		pred := model.Forward(x)
		loss, grad := nn.MSE(pred, y)
		last = loss
		model.Backward(grad)
		opt.Step(optim.GradientsOf(model.Parameters()))
		model.ZeroGrad()
	}
	if last >= first {
		t.Errorf("loss did not decrease: first %v, last %v", first, last)
	}
}

func TestLookups(t *testing.T) {
	if _, err := nn.NewActivation("nope"); err == nil {
		t.Error("NewActivation accepted an unknown name")
	}
	if _, err := nn.LossByName("hinge"); err == nil {
		t.Error("LossByName accepted an unknown name")
	}
	if _, err := nn.NewMLP(2, []int{6}, 1, "maxout", rand.New(rand.NewSource(1))); err == nil {
		t.Error("NewMLP accepted a maxout layer of 6 units")
	}
}
