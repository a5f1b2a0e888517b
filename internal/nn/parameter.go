package nn

import (
	"github.com/born-ml/emov2/internal/tensor"
)

// Parameter represents a learnable parameter.
//
// Parameters are tensors that take part in gradient computation during
// training. Freezing a backbone stage clears the requires-grad flag on its
// parameters; a surrounding training framework consults the flag when
// deciding what to update.
type Parameter[B tensor.Backend] struct {
	name         string
	tensor       *tensor.Tensor[float32, B]
	grad         *tensor.Tensor[float32, B]
	requiresGrad bool
}

// NewParameter creates a new trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:         name,
		tensor:       t,
		requiresGrad: true,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// RequiresGrad reports whether the parameter is trainable.
func (p *Parameter[B]) RequiresGrad() bool {
	return p.requiresGrad
}

// SetRequiresGrad marks the parameter trainable or frozen.
func (p *Parameter[B]) SetRequiresGrad(requires bool) {
	p.requiresGrad = requires
}

// Grad returns the gradient tensor, or nil before any backward pass.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}
