package cpu

import (
	"fmt"

	"github.com/born-ml/emov2/internal/tensor"
)

// MulScalar multiplies every element by a scalar.
func (cpu *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat32("mulscalar", scalar)
	return cpu.unaryOp("mulscalar", x, func(v float32) float32 { return v * s })
}

// AddScalar adds a scalar to every element.
func (cpu *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat32("addscalar", scalar)
	return cpu.unaryOp("addscalar", x, func(v float32) float32 { return v + s })
}

// toFloat32 converts a supported scalar value to float32.
func toFloat32(op string, scalar any) float32 {
	switch v := scalar.(type) {
	case float32:
		return v
	case float64:
		return float32(v)
	case int:
		return float32(v)
	default:
		panic(fmt.Sprintf("%s: unsupported scalar type %T", op, scalar))
	}
}
