package nn

import (
	"fmt"

	"github.com/born-ml/emov2/internal/tensor"
)

// LayerNorm2d applies layer normalization across the channel dimension of an
// NCHW tensor: each spatial position is normalized over its C values
// independently. Statistics are always computed from the input, so the layer
// behaves identically in training and evaluation mode.
type LayerNorm2d[B tensor.Backend] struct {
	numFeatures int
	eps         float32

	weight *Parameter[B] // scale (gamma) [C]
	bias   *Parameter[B] // shift (beta) [C]
}

// NewLayerNorm2d creates a channel-wise layer normalization with scale 1 and
// shift 0.
func NewLayerNorm2d[B tensor.Backend](numFeatures int, backend B) *LayerNorm2d[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("layernorm2d: invalid feature count %d", numFeatures))
	}
	shape := tensor.Shape{numFeatures}
	return &LayerNorm2d[B]{
		numFeatures: numFeatures,
		eps:         1e-6,
		weight:      NewParameter("weight", Ones(shape, backend)),
		bias:        NewParameter("bias", Zeros(shape, backend)),
	}
}

// Forward normalizes each spatial position across channels.
//
// Input/output: [N, C, H, W] with C == numFeatures.
func (ln *LayerNorm2d[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != ln.numFeatures {
		panic(fmt.Sprintf("layernorm2d: expected [N,%d,H,W] input, got %v", ln.numFeatures, shape))
	}

	mean := input.MeanDim(1, true)
	centered := input.Sub(mean)
	variance := centered.Mul(centered).MeanDim(1, true)
	normed := centered.Mul(variance.AddScalar(ln.eps).Rsqrt())

	gamma := ln.weight.Tensor().Reshape(1, ln.numFeatures, 1, 1)
	beta := ln.bias.Tensor().Reshape(1, ln.numFeatures, 1, 1)
	return normed.Mul(gamma).Add(beta)
}

// Parameters returns the scale and shift.
func (ln *LayerNorm2d[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{ln.weight, ln.bias}
}

// StateDict returns the layer's parameters keyed "weight" and "bias".
func (ln *LayerNorm2d[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"weight": ln.weight.Tensor().Raw(),
		"bias":   ln.bias.Tensor().Raw(),
	}
}

// LoadStateDict copies matching entries into the layer's parameters.
func (ln *LayerNorm2d[B]) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	if src, ok := sd["weight"]; ok {
		if err := copyInto("layernorm2d.weight", ln.weight.Tensor().Raw(), src); err != nil {
			return err
		}
	}
	if src, ok := sd["bias"]; ok {
		if err := copyInto("layernorm2d.bias", ln.bias.Tensor().Raw(), src); err != nil {
			return err
		}
	}
	return nil
}
