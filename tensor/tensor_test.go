// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/born-ml/neuralnet/tensor"
)

// TestPublicAPI checks the re-exported constructors against the internal types.
func TestPublicAPI(t *testing.T) {
	x := tensor.MustFromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	y := x.MatMul(tensor.Ones(tensor.Shape{3, 1}))
	if !y.Shape().Equal(tensor.Shape{2, 1}) {
		t.Fatalf("MatMul shape = %v, want [2 1]", y.Shape())
	}
	if y.At(0, 0) != 6 || y.At(1, 0) != 15 {
		t.Errorf("MatMul = %v, want [6 15]", y.Data())
	}

	if _, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{2, 2}); err == nil {
		t.Error("FromSlice accepted 3 values for a 2x2 shape")
	}

	c := tensor.Concat(0, tensor.Zeros(tensor.Shape{1, 2}), tensor.Full(tensor.Shape{2, 2}, 7))
	if got := c.Sum(); got != 28 {
		t.Errorf("Concat sum = %v, want 28", got)
	}
	if got := tensor.Linspace(0, 1, 5).At(2); got != 0.5 {
		t.Errorf("Linspace midpoint = %v, want 0.5", got)
	}
}

func TestBroadcastShapes(t *testing.T) {
	out, _, err := tensor.BroadcastShapes(tensor.Shape{4, 1}, tensor.Shape{3})
	if err != nil {
		t.Fatalf("BroadcastShapes: %v", err)
	}
	if !out.Equal(tensor.Shape{4, 3}) {
		t.Errorf("BroadcastShapes = %v, want [4 3]", out)
	}
	if _, _, err := tensor.BroadcastShapes(tensor.Shape{2}, tensor.Shape{3}); err == nil {
		t.Error("BroadcastShapes accepted [2] and [3]")
	}
}

func TestSetParallel(t *testing.T) {
	defer tensor.SetParallel(tensor.DefaultParallel())
	tensor.SetParallel(tensor.ParallelConfig{Enabled: false, NumWorkers: 1, MinChunkSize: 1})
	a := tensor.Full(tensor.Shape{10000}, 2)
	if got := a.Add(a).Mean(); got != 4 {
		t.Errorf("Mean = %v, want 4", got)
	}
}
