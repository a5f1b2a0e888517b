package cpu

import (
	"fmt"

	"github.com/born-ml/emov2/internal/parallel"
	"github.com/born-ml/emov2/internal/tensor"
)

// Conv2D performs grouped 2D convolution using the im2col algorithm.
//
// Input shape:  [N, C_in, H, W]
// Kernel shape: [C_out, C_in/groups, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// where
//
//	H_out = (H + 2*padding - K_h)/stride + 1
//	W_out = (W + 2*padding - K_w)/stride + 1
//
// groups=1 is a dense convolution; groups=C_in with C_out=C_in is a depthwise
// convolution. Each (batch, group) pair lowers its input patches to a column
// matrix and runs one GEMM against the flattened kernel slice.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	requireFloat32("conv2d", input)
	requireFloat32("conv2d", kernel)

	inShape, kShape := input.Shape(), kernel.Shape()
	if len(inShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %v", inShape))
	}
	if len(kShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in/groups,K_h,K_w], got %v", kShape))
	}
	if stride <= 0 || padding < 0 || groups <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride=%d padding=%d groups=%d", stride, padding, groups))
	}

	n, cIn, h, w := inShape[0], inShape[1], inShape[2], inShape[3]
	cOut, cInK, kh, kw := kShape[0], kShape[1], kShape[2], kShape[3]

	if cIn%groups != 0 || cOut%groups != 0 {
		panic(fmt.Sprintf("conv2d: channels (in=%d, out=%d) not divisible by groups=%d", cIn, cOut, groups))
	}
	inPerGroup := cIn / groups
	outPerGroup := cOut / groups
	if cInK != inPerGroup {
		panic(fmt.Sprintf("conv2d: kernel channels %d != input channels per group %d", cInK, inPerGroup))
	}

	outH := (h+2*padding-kh)/stride + 1
	outW := (w+2*padding-kw)/stride + 1
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("conv2d: kernel %dx%d does not fit input %dx%d with padding %d", kh, kw, h, w, padding))
	}

	result := newFloat32(cpu.device, tensor.Shape{n, cOut, outH, outW})
	inData, kData, out := input.AsFloat32(), kernel.AsFloat32(), result.AsFloat32()

	colRows := inPerGroup * kh * kw
	colCols := outH * outW
	kernelGroupSize := outPerGroup * colRows

	parallel.For(n*groups, cpu.par, func(idx int) {
		b, g := idx/groups, idx%groups

		cols := make([]float32, colRows*colCols)
		im2col(inData[(b*cIn+g*inPerGroup)*h*w:], cols, inPerGroup, h, w, kh, kw, stride, padding, outH, outW)

		gemm(outPerGroup, colCols, colRows,
			kData[g*kernelGroupSize:(g+1)*kernelGroupSize],
			cols,
			out[(b*cOut+g*outPerGroup)*colCols:(b*cOut+(g+1)*outPerGroup)*colCols])
	})
	return result
}

// im2col lowers input patches to a [C*K_h*K_w, outH*outW] column matrix.
// Out-of-bounds taps read as zero (implicit zero padding).
func im2col(in, cols []float32, c, h, w, kh, kw, stride, padding, outH, outW int) {
	row := 0
	for ch := 0; ch < c; ch++ {
		for ky := 0; ky < kh; ky++ {
			for kx := 0; kx < kw; kx++ {
				base := row * outH * outW
				for oy := 0; oy < outH; oy++ {
					iy := oy*stride + ky - padding
					if iy < 0 || iy >= h {
						continue // cols is zero-initialized
					}
					for ox := 0; ox < outW; ox++ {
						ix := ox*stride + kx - padding
						if ix < 0 || ix >= w {
							continue
						}
						cols[base+oy*outW+ox] = in[(ch*h+iy)*w+ix]
					}
				}
				row++
			}
		}
	}
}
