package cpu

import (
	"math"

	"github.com/born-ml/emov2/internal/tensor"
)

// Rsqrt computes the element-wise reciprocal square root.
func (cpu *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("rsqrt", x, func(v float32) float32 {
		return float32(1.0 / math.Sqrt(float64(v)))
	})
}

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("relu", x, func(v float32) float32 {
		if v < 0 {
			return 0
		}
		return v
	})
}

// Sigmoid applies 1/(1+exp(-x)) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("sigmoid", x, sigmoid)
}

// SiLU applies x*sigmoid(x) element-wise.
func (cpu *CPUBackend) SiLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unaryOp("silu", x, func(v float32) float32 {
		return v * sigmoid(v)
	})
}

// GELU applies the Gaussian error linear unit (tanh approximation)
// element-wise.
func (cpu *CPUBackend) GELU(x *tensor.RawTensor) *tensor.RawTensor {
	sqrt2OverPi := float32(math.Sqrt(2.0 / math.Pi))
	return cpu.unaryOp("gelu", x, func(v float32) float32 {
		inner := sqrt2OverPi * (v + 0.044715*v*v*v)
		return 0.5 * v * (1.0 + float32(math.Tanh(float64(inner))))
	})
}

func sigmoid(v float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(float64(-v))))
}

// unaryOp applies op to every element.
func (cpu *CPUBackend) unaryOp(name string, x *tensor.RawTensor, op func(float32) float32) *tensor.RawTensor {
	requireFloat32(name, x)
	result := newFloat32(cpu.device, x.Shape())
	in, out := x.AsFloat32(), result.AsFloat32()
	for i := range out {
		out[i] = op(in[i])
	}
	return result
}
