package nn

import (
	"errors"
	"fmt"
	"math"

	"github.com/born-ml/neuralnet/internal/tensor"
)

// Loss computes a scalar loss and its gradient with respect to the prediction.
type Loss func(prediction, target *tensor.Tensor) (float32, *tensor.Tensor)

// MSE computes Mean Squared Error loss.
//
// Loss = mean((prediction - target)²), gradient = 2(prediction - target)/n.
//
// Example:
//
//	loss, grad := nn.MSE(model.Forward(x), y)
//	model.Backward(grad)
func MSE(prediction, target *tensor.Tensor) (float32, *tensor.Tensor) {
	if !prediction.Shape().Equal(target.Shape()) {
		panic(fmt.Sprintf("MSE: prediction %v and target %v must have the same shape",
			prediction.Shape(), target.Shape()))
	}
	diff := prediction.Sub(target)
	n := float32(diff.NumElements())
	return diff.Pow(2).Sum() / n, diff.Scale(2 / n)
}

// SoftmaxCrossEntropy computes the mean cross-entropy between softmax(logits)
// and integer class labels.
//
// logits has shape [batch, classes]; labels has shape [batch] and holds class
// indices. The gradient is (softmax(logits) - onehot(labels)) / batch.
func SoftmaxCrossEntropy(logits, labels *tensor.Tensor) (float32, *tensor.Tensor) {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("SoftmaxCrossEntropy: expected 2D logits [batch, classes], got %v", shape))
	}
	batch, classes := shape[0], shape[1]
	if labels.NumElements() != batch {
		panic(fmt.Sprintf("SoftmaxCrossEntropy: %d labels for batch of %d", labels.NumElements(), batch))
	}

	probs := Softmax(logits)
	grad := probs.Clone()
	pd, gd := probs.Data(), grad.Data()

	var loss float64
	for i, l := range labels.Data() {
		c := int(l)
		if c < 0 || c >= classes {
			panic(fmt.Sprintf("SoftmaxCrossEntropy: label %d out of range [0, %d)", c, classes))
		}
		loss -= math.Log(max(float64(pd[i*classes+c]), 1e-12))
		gd[i*classes+c]--
	}
	return float32(loss / float64(batch)), grad.Scale(1 / float32(batch))
}

// Accuracy returns the fraction of rows whose arg-max matches the label.
func Accuracy(logits, labels *tensor.Tensor) float32 {
	shape := logits.Shape()
	classes := shape[len(shape)-1]
	data := logits.Data()
	correct := 0
	for i, l := range labels.Data() {
		row := data[i*classes : (i+1)*classes]
		best := 0
		for j, v := range row {
			if v > row[best] {
				best = j
			}
		}
		if best == int(l) {
			correct++
		}
	}
	return float32(correct) / float32(labels.NumElements())
}

// ErrUnknownLoss is returned by LossByName for an unrecognized name.
var ErrUnknownLoss = errors.New("unknown loss")

// LossByName returns the loss registered as name: "mse" or
// "softmax_cross_entropy".
func LossByName(name string) (Loss, error) {
	switch name {
	case "mse":
		return MSE, nil
	case "softmax_cross_entropy":
		return SoftmaxCrossEntropy, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLoss, name)
}
