package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/emov2/internal/tensor"
)

// Dropout randomly zeroes elements with probability p during training,
// scaling survivors by 1/(1-p). Identity in evaluation mode or with p=0.
type Dropout[B tensor.Backend] struct {
	p        float32
	training bool
}

// NewDropout creates a dropout module with drop probability p in [0, 1).
func NewDropout[B tensor.Backend](p float32) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("dropout: invalid probability %v", p))
	}
	return &Dropout[B]{p: p, training: true}
}

// SetTraining switches between dropping (training) and identity (evaluation).
func (d *Dropout[B]) SetTraining(training bool) {
	d.training = training
}

// Forward applies dropout.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.p == 0 {
		return input
	}
	out := input.Clone()
	data := out.Data()
	scale := 1.0 / (1.0 - d.p)
	for i := range data {
		if rand.Float32() < d.p {
			data[i] = 0
		} else {
			data[i] *= scale
		}
	}
	return out
}

// Parameters returns nil (no trainable parameters).
func (d *Dropout[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty state dict.
func (d *Dropout[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (d *Dropout[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
