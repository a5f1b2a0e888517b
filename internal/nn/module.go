// Package nn implements the neural network layers the backbone is built from:
// grouped convolution, batch/layer normalization, activations, dropout,
// stochastic depth, layer scaling, and the conv-norm-act composite.
package nn

import (
	"fmt"

	"github.com/born-ml/emov2/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every module must implement:
//   - Forward: compute output from input
//   - Parameters: return all trainable parameters
//   - StateDict / LoadStateDict: export and import parameters by name
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module, including
	// nested module parameters. Modules without parameters return nil.
	Parameters() []*Parameter[B]

	// StateDict returns a map of parameter (and buffer) names to raw tensors.
	// The returned tensors alias the module's storage.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict copies matching entries into the module's parameters.
	// Returns an error if a present entry has a mismatched shape.
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}

// Trainable is implemented by modules whose forward pass depends on
// training vs evaluation mode (dropout, stochastic depth, batch norm).
type Trainable interface {
	SetTraining(training bool)
}

// NormEvaler is implemented by modules that contain batch normalization and
// can force it into evaluation behavior independently of the module's
// overall training mode. Used for stage freezing and the norm-eval option.
type NormEvaler interface {
	EvalNorms()
}

// Prefixed returns a new state dict with every key prefixed by "prefix.".
func Prefixed(prefix string, sd map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor, len(sd))
	for k, v := range sd {
		out[prefix+"."+k] = v
	}
	return out
}

// Unprefixed extracts the entries under "prefix." with the prefix stripped.
func Unprefixed(prefix string, sd map[string]*tensor.RawTensor) map[string]*tensor.RawTensor {
	out := make(map[string]*tensor.RawTensor)
	p := prefix + "."
	for k, v := range sd {
		if len(k) > len(p) && k[:len(p)] == p {
			out[k[len(p):]] = v
		}
	}
	return out
}

// copyInto copies src data into dst, requiring identical shapes.
func copyInto(name string, dst, src *tensor.RawTensor) error {
	if !dst.Shape().Equal(src.Shape()) {
		return fmt.Errorf("%s: shape mismatch %v != %v", name, dst.Shape(), src.Shape())
	}
	if src.DType() != tensor.Float32 {
		return fmt.Errorf("%s: expected float32 entry, got %s", name, src.DType())
	}
	copy(dst.AsFloat32(), src.AsFloat32())
	return nil
}
