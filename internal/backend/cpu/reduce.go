package cpu

import (
	"fmt"

	"github.com/born-ml/emov2/internal/tensor"
)

// MeanDim averages along a dimension. With keepDim the reduced dimension
// stays as size 1, otherwise it is removed.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	requireFloat32("meandim", x)
	shape := x.Shape()
	nd := len(shape)
	if dim < 0 {
		dim += nd
	}
	if dim < 0 || dim >= nd {
		panic(fmt.Sprintf("meandim: dim out of range for shape %v", shape))
	}

	n := shape[dim]
	inner := 1
	for i := dim + 1; i < nd; i++ {
		inner *= shape[i]
	}
	outer := x.NumElements() / (n * inner)

	outShape := make(tensor.Shape, 0, nd)
	for i, d := range shape {
		switch {
		case i != dim:
			outShape = append(outShape, d)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}
	if len(outShape) == 0 {
		outShape = tensor.Shape{1}
	}

	result := newFloat32(cpu.device, outShape)
	in, out := x.AsFloat32(), result.AsFloat32()

	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			var sum float32
			base := o*n*inner + i
			for j := 0; j < n; j++ {
				sum += in[base+j*inner]
			}
			out[o*inner+i] = sum / float32(n)
		}
	}
	return result
}
