package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/emov2/internal/tensor"
)

// DropPath implements stochastic depth: during training it drops the entire
// residual branch with probability p, independently per sample, and scales
// surviving samples by 1/(1-p). In evaluation mode it is the identity.
type DropPath[B tensor.Backend] struct {
	p        float32
	training bool
}

// NewDropPath creates a stochastic depth module with drop probability p in [0, 1).
func NewDropPath[B tensor.Backend](p float32) *DropPath[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("droppath: invalid probability %v", p))
	}
	return &DropPath[B]{p: p, training: true}
}

// SetTraining switches between stochastic (training) and identity (evaluation).
func (d *DropPath[B]) SetTraining(training bool) {
	d.training = training
}

// Forward applies per-sample branch dropping. The first dimension of the
// input is treated as the batch dimension.
func (d *DropPath[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.p == 0 {
		return input
	}
	shape := input.Shape()
	batch := shape[0]
	perSample := input.NumElements() / batch

	out := input.Clone()
	data := out.Data()
	scale := 1.0 / (1.0 - d.p)
	for b := 0; b < batch; b++ {
		sample := data[b*perSample : (b+1)*perSample]
		if rand.Float32() < d.p {
			for i := range sample {
				sample[i] = 0
			}
		} else {
			for i := range sample {
				sample[i] *= scale
			}
		}
	}
	return out
}

// Parameters returns nil (no trainable parameters).
func (d *DropPath[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty state dict.
func (d *DropPath[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (d *DropPath[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
