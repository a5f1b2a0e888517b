package cpu

import (
	"fmt"

	"github.com/born-ml/emov2/internal/parallel"
	"github.com/born-ml/emov2/internal/tensor"
)

// BatchMatMul performs batched matrix multiplication over the last two axes.
//
// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
//
// Each batch entry is an independent GEMM; batches run in parallel.
func (cpu *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("batchmatmul", a)
	requireFloat32("batchmatmul", b)

	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != len(bShape) || (len(aShape) != 3 && len(aShape) != 4) {
		panic(fmt.Sprintf("batchmatmul: expected matching 3D or 4D tensors, got %v @ %v", aShape, bShape))
	}

	nd := len(aShape)
	m, k := aShape[nd-2], aShape[nd-1]
	k2, n := bShape[nd-2], bShape[nd-1]
	if k != k2 {
		panic(fmt.Sprintf("batchmatmul: inner dimensions do not match: %v @ %v", aShape, bShape))
	}

	batch := 1
	outShape := make(tensor.Shape, nd)
	for i := 0; i < nd-2; i++ {
		if aShape[i] != bShape[i] {
			panic(fmt.Sprintf("batchmatmul: batch dimensions do not match: %v @ %v", aShape, bShape))
		}
		batch *= aShape[i]
		outShape[i] = aShape[i]
	}
	outShape[nd-2], outShape[nd-1] = m, n

	result := newFloat32(cpu.device, outShape)
	aData, bData, out := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()

	parallel.For(batch, cpu.par, func(i int) {
		gemm(m, n, k,
			aData[i*m*k:(i+1)*m*k],
			bData[i*k*n:(i+1)*k*n],
			out[i*m*n:(i+1)*m*n])
	})
	return result
}
