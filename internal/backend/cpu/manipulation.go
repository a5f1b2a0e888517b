package cpu

import (
	"fmt"

	"github.com/born-ml/emov2/internal/tensor"
)

// Reshape returns a view of the tensor under a new shape.
// The element count must match; the data buffer is shared.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result, err := t.WithShape(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return result
}

// Transpose permutes the tensor's dimensions and materializes the result
// contiguously: result dim i holds input dim axes[i]. With no axes, all
// dimensions are reversed.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	requireFloat32("transpose", t)
	shape := t.Shape()
	nd := len(shape)

	if len(axes) == 0 {
		axes = make([]int, nd)
		for i := range axes {
			axes[i] = nd - 1 - i
		}
	}
	if len(axes) != nd {
		panic(fmt.Sprintf("transpose: got %d axes for %dD tensor", len(axes), nd))
	}
	seen := make([]bool, nd)
	outShape := make(tensor.Shape, nd)
	for i, ax := range axes {
		if ax < 0 || ax >= nd || seen[ax] {
			panic(fmt.Sprintf("transpose: invalid axes %v for shape %v", axes, shape))
		}
		seen[ax] = true
		outShape[i] = shape[ax]
	}

	result := newFloat32(cpu.device, outShape)
	in, out := t.AsFloat32(), result.AsFloat32()
	inStrides := shape.ComputeStrides()
	outStrides := outShape.ComputeStrides()

	for flat := range out {
		rem, src := flat, 0
		for d, stride := range outStrides {
			idx := rem / stride
			rem -= idx * stride
			src += idx * inStrides[axes[d]]
		}
		out[flat] = in[src]
	}
	return result
}

// Pad2D zero-pads the bottom and right spatial edges of an NCHW tensor.
// Zero padding amounts return the input unchanged.
func (cpu *CPUBackend) Pad2D(t *tensor.RawTensor, padBottom, padRight int) *tensor.RawTensor {
	requireFloat32("pad2d", t)
	shape := t.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("pad2d: expected 4D [N,C,H,W] tensor, got %v", shape))
	}
	if padBottom < 0 || padRight < 0 {
		panic(fmt.Sprintf("pad2d: negative padding (%d, %d)", padBottom, padRight))
	}
	if padBottom == 0 && padRight == 0 {
		return t
	}

	n, c, h, w := shape[0], shape[1], shape[2], shape[3]
	outH, outW := h+padBottom, w+padRight

	result := newFloat32(cpu.device, tensor.Shape{n, c, outH, outW})
	in, out := t.AsFloat32(), result.AsFloat32()
	for plane := 0; plane < n*c; plane++ {
		for y := 0; y < h; y++ {
			copy(out[(plane*outH+y)*outW:(plane*outH+y)*outW+w], in[(plane*h+y)*w:(plane*h+y+1)*w])
		}
	}
	return result
}

// Narrow returns elements [start, start+length) along dim as a contiguous copy.
func (cpu *CPUBackend) Narrow(t *tensor.RawTensor, dim, start, length int) *tensor.RawTensor {
	requireFloat32("narrow", t)
	shape := t.Shape()
	if dim < 0 {
		dim += len(shape)
	}
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("narrow: dim out of range for shape %v", shape))
	}
	if start < 0 || length <= 0 || start+length > shape[dim] {
		panic(fmt.Sprintf("narrow: range [%d, %d) out of bounds for dim %d of shape %v", start, start+length, dim, shape))
	}

	outShape := shape.Clone()
	outShape[dim] = length

	// The tensor decomposes into outer blocks, each holding shape[dim] rows
	// of inner contiguous elements.
	inner := 1
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	outer := t.NumElements() / (inner * shape[dim])

	result := newFloat32(cpu.device, outShape)
	in, out := t.AsFloat32(), result.AsFloat32()
	for o := 0; o < outer; o++ {
		src := (o*shape[dim] + start) * inner
		dst := o * length * inner
		copy(out[dst:dst+length*inner], in[src:src+length*inner])
	}
	return result
}
