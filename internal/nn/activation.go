package nn

import (
	"github.com/born-ml/emov2/internal/tensor"
)

// Activation backends are optional backend capabilities, discovered via
// interface assertion so the tensor.Backend interface stays minimal.

// ReLUBackend is a backend that supports the ReLU activation.
type ReLUBackend interface {
	ReLU(*tensor.RawTensor) *tensor.RawTensor
}

// SiLUBackend is a backend that supports the SiLU (sigmoid-linear-unit) activation.
type SiLUBackend interface {
	SiLU(*tensor.RawTensor) *tensor.RawTensor
}

// GELUBackend is a backend that supports the GELU activation.
type GELUBackend interface {
	GELU(*tensor.RawTensor) *tensor.RawTensor
}

// ReLU applies f(x) = max(0, x) element-wise.
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies the activation.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if ab, ok := any(backend).(ReLUBackend); ok {
		return tensor.New[float32, B](ab.ReLU(input.Raw()), backend)
	}
	panic("ReLU: backend must implement ReLU operation")
}

// Parameters returns nil (no trainable parameters).
func (r *ReLU[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty state dict.
func (r *ReLU[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (r *ReLU[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

// SiLU applies f(x) = x * sigmoid(x) element-wise.
type SiLU[B tensor.Backend] struct{}

// NewSiLU creates a new SiLU activation module.
func NewSiLU[B tensor.Backend]() *SiLU[B] {
	return &SiLU[B]{}
}

// Forward applies the activation.
func (s *SiLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if ab, ok := any(backend).(SiLUBackend); ok {
		return tensor.New[float32, B](ab.SiLU(input.Raw()), backend)
	}
	panic("SiLU: backend must implement SiLU operation")
}

// Parameters returns nil (no trainable parameters).
func (s *SiLU[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty state dict.
func (s *SiLU[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (s *SiLU[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

// GELU applies the Gaussian error linear unit (tanh approximation) element-wise.
type GELU[B tensor.Backend] struct{}

// NewGELU creates a new GELU activation module.
func NewGELU[B tensor.Backend]() *GELU[B] {
	return &GELU[B]{}
}

// Forward applies the activation.
func (g *GELU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	if ab, ok := any(backend).(GELUBackend); ok {
		return tensor.New[float32, B](ab.GELU(input.Raw()), backend)
	}
	panic("GELU: backend must implement GELU operation")
}

// Parameters returns nil (no trainable parameters).
func (g *GELU[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty state dict.
func (g *GELU[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (g *GELU[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }

// Identity passes its input through unchanged. Used wherever a configuration
// disables a norm, activation, or scaling slot.
type Identity[B tensor.Backend] struct{}

// NewIdentity creates a new identity module.
func NewIdentity[B tensor.Backend]() *Identity[B] {
	return &Identity[B]{}
}

// Forward returns the input unchanged.
func (id *Identity[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input
}

// Parameters returns nil (no trainable parameters).
func (id *Identity[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty state dict.
func (id *Identity[B]) StateDict() map[string]*tensor.RawTensor {
	return map[string]*tensor.RawTensor{}
}

// LoadStateDict is a no-op.
func (id *Identity[B]) LoadStateDict(map[string]*tensor.RawTensor) error { return nil }
