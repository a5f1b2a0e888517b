package nn

import (
	"fmt"

	"github.com/born-ml/emov2/internal/tensor"
)

// LayerScale2D multiplies each channel of an NCHW tensor by a learned
// per-channel scale, initialized to a small constant so residual branches
// start near-identity.
type LayerScale2D[B tensor.Backend] struct {
	dim     int
	gamma   *Parameter[B]
	backend B
}

// NewLayerScale2D creates a per-channel scale over dim channels with every
// scale initialized to initValue.
func NewLayerScale2D[B tensor.Backend](dim int, initValue float32, backend B) *LayerScale2D[B] {
	gamma := tensor.Full[float32](tensor.Shape{dim}, initValue, backend)
	return &LayerScale2D[B]{
		dim:     dim,
		gamma:   NewParameter("gamma", gamma),
		backend: backend,
	}
}

// Forward scales input channels. Input must be 4D [batch, dim, height, width].
func (l *LayerScale2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 || shape[1] != l.dim {
		panic(fmt.Sprintf("layerscale: expected input [batch, %d, h, w], got %v", l.dim, shape))
	}
	gamma := l.gamma.Tensor().Reshape(1, l.dim, 1, 1)
	return input.Mul(gamma)
}

// Parameters returns the scale parameter.
func (l *LayerScale2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.gamma}
}

// StateDict returns the scale under the key "gamma".
func (l *LayerScale2D[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{
		"gamma": l.gamma.Tensor().Raw(),
	}
}

// LoadStateDict loads the scale parameter.
func (l *LayerScale2D[B]) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	src, ok := sd["gamma"]
	if !ok {
		return fmt.Errorf("layerscale: missing key %q", "gamma")
	}
	return copyInto("gamma", l.gamma.Tensor().Raw(), src)
}
