// Package cpu implements the CPU compute backend. Matrix products go through
// gonum's BLAS; everything else is plain Go with chunked goroutine parallelism.
package cpu

import (
	"fmt"

	"github.com/born-ml/emov2/internal/parallel"
	"github.com/born-ml/emov2/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub performs element-wise subtraction with broadcasting.
func (cpu *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul performs element-wise multiplication with broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binaryOp("mul", a, b, func(x, y float32) float32 { return x * y })
}

// binaryOp applies op element-wise, broadcasting b against a where needed.
func (cpu *CPUBackend) binaryOp(name string, a, b *tensor.RawTensor, op func(x, y float32) float32) *tensor.RawTensor {
	requireFloat32(name, a)
	requireFloat32(name, b)

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result := newFloat32(cpu.device, outShape)
	out := result.AsFloat32()
	aData := a.AsFloat32()
	bData := b.AsFloat32()

	if !needsBroadcast {
		for i := range out {
			out[i] = op(aData[i], bData[i])
		}
		return result
	}

	// Broadcast path: map each output index back to source indices.
	aIndex := broadcastIndexer(outShape, a.Shape())
	bIndex := broadcastIndexer(outShape, b.Shape())
	for i := range out {
		out[i] = op(aData[aIndex(i)], bData[bIndex(i)])
	}
	return result
}

// broadcastIndexer returns a function mapping a flat index in outShape to the
// corresponding flat index in srcShape under broadcasting rules.
func broadcastIndexer(outShape, srcShape tensor.Shape) func(int) int {
	outStrides := outShape.ComputeStrides()
	srcStrides := srcShape.ComputeStrides()
	offset := len(outShape) - len(srcShape)

	return func(flat int) int {
		src := 0
		for d, stride := range outStrides {
			idx := flat / stride
			flat -= idx * stride
			sd := d - offset
			if sd >= 0 && srcShape[sd] != 1 {
				src += idx * srcStrides[sd]
			}
		}
		return src
	}
}

// requireFloat32 panics unless the tensor holds float32 data.
func requireFloat32(op string, t *tensor.RawTensor) {
	if t.DType() != tensor.Float32 {
		panic(fmt.Sprintf("%s: only float32 tensors are supported, got %s", op, t.DType()))
	}
}

// newFloat32 allocates a float32 result tensor, panicking on invalid shapes
// (precondition violations, not recoverable errors).
func newFloat32(device tensor.Device, shape tensor.Shape) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, tensor.Float32, device)
	if err != nil {
		panic(fmt.Sprintf("cpu: failed to allocate result tensor: %v", err))
	}
	return result
}
