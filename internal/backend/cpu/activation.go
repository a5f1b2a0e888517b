package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/emov2/internal/parallel"
	"github.com/born-ml/emov2/internal/tensor"
)

// Softmax normalizes along the given dimension with the max-subtraction trick
// for numerical stability. Negative dims count from the end.
func (cpu *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("softmax", x)
	shape := x.Shape()
	nd := len(shape)
	if dim < 0 {
		dim += nd
	}
	if dim < 0 || dim >= nd {
		panic(fmt.Sprintf("softmax: dim out of range for shape %v", shape))
	}

	// View the tensor as [outer, n, inner] with n the softmax axis.
	n := shape[dim]
	inner := 1
	for i := dim + 1; i < nd; i++ {
		inner *= shape[i]
	}
	outer := x.NumElements() / (n * inner)

	result := newFloat32(cpu.device, shape)
	in, out := x.AsFloat32(), result.AsFloat32()

	parallel.For(outer*inner, cpu.par, func(k int) {
		o, i := k/inner, k%inner
		base := o*n*inner + i

		maxVal := in[base]
		for j := 1; j < n; j++ {
			if v := in[base+j*inner]; v > maxVal {
				maxVal = v
			}
		}

		var sum float32
		for j := 0; j < n; j++ {
			e := float32(math.Exp(float64(in[base+j*inner] - maxVal)))
			out[base+j*inner] = e
			sum += e
		}
		for j := 0; j < n; j++ {
			out[base+j*inner] /= sum
		}
	})
	return result
}
