package nn

import (
	"fmt"

	"github.com/born-ml/emov2/internal/tensor"
)

// Normalization and activation tags accepted by NewNorm and NewAct.
const (
	NormBatch = "bn_2d"
	NormLayer = "ln_2d"
	NormNone  = "none"

	ActSiLU = "silu"
	ActGELU = "gelu"
	ActReLU = "relu"
	ActNone = "none"
)

// NewNorm builds a normalization module over dim channels from its tag.
// Panics on an unknown tag: an unresolvable norm name is a configuration
// error, not a runtime condition.
func NewNorm[B tensor.Backend](tag string, dim int, backend B) Module[B] {
	switch tag {
	case NormBatch:
		return NewBatchNorm2d(dim, backend)
	case NormLayer:
		return NewLayerNorm2d(dim, backend)
	case NormNone:
		return NewIdentity[B]()
	default:
		panic(fmt.Sprintf("nn: unknown normalization %q", tag))
	}
}

// NewAct builds an activation module from its tag. Panics on an unknown tag.
func NewAct[B tensor.Backend](tag string) Module[B] {
	switch tag {
	case ActSiLU:
		return NewSiLU[B]()
	case ActGELU:
		return NewGELU[B]()
	case ActReLU:
		return NewReLU[B]()
	case ActNone:
		return NewIdentity[B]()
	default:
		panic(fmt.Sprintf("nn: unknown activation %q", tag))
	}
}
