package nn

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/born-ml/neuralnet/internal/tensor"
)

// Errors returned when restoring model state.
var (
	ErrMissingParameter = errors.New("missing parameter")
	ErrParameterShape   = errors.New("parameter shape mismatch")
	ErrParameterCount   = errors.New("parameter count mismatch")
)

// Model is the contract every network satisfies.
//
// User networks embed Base and register their layers in order:
//
//	type Classifier struct {
//	    nn.Base
//	}
//
//	func NewClassifier(rng *rand.Rand) *Classifier {
//	    c := &Classifier{}
//	    c.Init("classifier",
//	        nn.NewLinear(784, 128, rng),
//	        nn.MustActivation("relu"),
//	        nn.NewLinear(128, 10, rng),
//	    )
//	    return c
//	}
type Model interface {
	Trainable
	Name() string
	StateDict() map[string]*tensor.Tensor
	LoadStateDict(stateDict map[string]*tensor.Tensor) error
	ZeroGrad()
}

// Base is an ordered stack of layers implementing Model.
//
// Forward feeds the input through every layer in order; Backward walks them
// in reverse. Parameter names in StateDict are prefixed with the layer index
// ("0.weight", "2.bias") so that identical layers do not collide.
type Base struct {
	name   string
	layers []Module
}

// Sequential returns a Base named "sequential" holding layers.
func Sequential(layers ...Module) *Base {
	b := &Base{}
	b.Init("sequential", layers...)
	return b
}

// Init names the model and registers its layers. It replaces any earlier layers.
func (b *Base) Init(name string, layers ...Module) {
	b.name = name
	b.layers = append([]Module(nil), layers...)
}

// Add appends a layer.
func (b *Base) Add(layer Module) {
	b.layers = append(b.layers, layer)
}

// Name returns the model name.
func (b *Base) Name() string {
	return b.name
}

// Layers returns the registered layers in order.
func (b *Base) Layers() []Module {
	return b.layers
}

// Len returns the number of layers.
func (b *Base) Len() int {
	return len(b.layers)
}

// Forward applies every layer in sequence.
func (b *Base) Forward(input *tensor.Tensor) *tensor.Tensor {
	output := input
	for _, layer := range b.layers {
		output = layer.Forward(output)
	}
	return output
}

// Backward propagates gradOutput through the layers in reverse order.
// Panics if a layer does not implement Trainable.
func (b *Base) Backward(gradOutput *tensor.Tensor) *tensor.Tensor {
	grad := gradOutput
	for i := len(b.layers) - 1; i >= 0; i-- {
		layer, ok := b.layers[i].(Trainable)
		if !ok {
			panic(fmt.Sprintf("%s: layer %d (%T) does not support Backward", b.name, i, b.layers[i]))
		}
		grad = layer.Backward(grad)
	}
	return grad
}

// Parameters returns all trainable parameters in layer order.
func (b *Base) Parameters() []*Parameter {
	var params []*Parameter
	for _, layer := range b.layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}

// ZeroGrad clears every parameter gradient.
func (b *Base) ZeroGrad() {
	for _, p := range b.Parameters() {
		p.ZeroGrad()
	}
}

// StateDict returns parameter tensors keyed by "<layer index>.<name>".
// Tensors are shared, not copied.
func (b *Base) StateDict() map[string]*tensor.Tensor {
	stateDict := make(map[string]*tensor.Tensor)
	for i, layer := range b.layers {
		for _, p := range layer.Parameters() {
			stateDict[strconv.Itoa(i)+"."+p.Name()] = p.Tensor()
		}
	}
	return stateDict
}

// Keys returns the StateDict keys in parameter order.
func (b *Base) Keys() []string {
	var keys []string
	for i, layer := range b.layers {
		for _, p := range layer.Parameters() {
			keys = append(keys, strconv.Itoa(i)+"."+p.Name())
		}
	}
	return keys
}

// LoadStateDict copies values from stateDict into the model's parameters.
// Every parameter must be present with a matching shape; extra keys are
// ignored. Nothing is written unless every parameter matches.
func (b *Base) LoadStateDict(stateDict map[string]*tensor.Tensor) error {
	keys := b.Keys()
	params := b.Parameters()
	values := make([]*tensor.Tensor, len(keys))
	for i, key := range keys {
		src, ok := stateDict[key]
		if !ok {
			return fmt.Errorf("%s: %w: %s", b.name, ErrMissingParameter, key)
		}
		if !params[i].Tensor().Shape().Equal(src.Shape()) {
			return fmt.Errorf("%s: %w: %s has shape %v, value has %v",
				b.name, ErrParameterShape, key, params[i].Tensor().Shape(), src.Shape())
		}
		values[i] = src
	}
	return SetValues(params, values)
}

// Values returns deep copies of all parameter values in layer order.
func (b *Base) Values() []*tensor.Tensor {
	params := b.Parameters()
	values := make([]*tensor.Tensor, len(params))
	for i, p := range params {
		values[i] = p.Tensor().Clone()
	}
	return values
}

// SetValues assigns values to the parameters in layer order.
// The count and every shape must match.
func (b *Base) SetValues(values []*tensor.Tensor) error {
	return SetValues(b.Parameters(), values)
}

// SetValues assigns values to params pairwise. Nothing is written unless
// every pair matches.
func SetValues(params []*Parameter, values []*tensor.Tensor) error {
	if len(params) != len(values) {
		return fmt.Errorf("%w: %d parameters, %d values", ErrParameterCount, len(params), len(values))
	}
	for i, p := range params {
		if !p.Tensor().Shape().Equal(values[i].Shape()) {
			return fmt.Errorf("%w: %s has shape %v, value has %v",
				ErrParameterShape, p.Name(), p.Tensor().Shape(), values[i].Shape())
		}
	}
	for i, p := range params {
		copy(p.Tensor().Data(), values[i].Data())
	}
	return nil
}

// SortedKeys returns the state dict keys ordered by layer index, then name.
func SortedKeys(stateDict map[string]*tensor.Tensor) []string {
	keys := make([]string, 0, len(stateDict))
	for k := range stateDict {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, ni := splitKey(keys[i])
		lj, nj := splitKey(keys[j])
		if li != lj {
			return li < lj
		}
		return ni < nj
	})
	return keys
}

// splitKey parses "<index>.<name>"; keys without a numeric prefix sort last.
func splitKey(key string) (int, string) {
	prefix, rest, ok := strings.Cut(key, ".")
	if !ok {
		return int(^uint(0) >> 1), key
	}
	idx, err := strconv.Atoi(prefix)
	if err != nil {
		return int(^uint(0) >> 1), key
	}
	return idx, rest
}
