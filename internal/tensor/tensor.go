package tensor

import "fmt"

// Tensor is a generic type-safe tensor.
//
// T is the element type (float32 for all backbone computation).
// B is the backend implementation.
//
// Tensor wraps a RawTensor together with the backend that produced it, so
// operator methods can dispatch without threading a backend argument through
// every call site.
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
}

// New creates a tensor from a raw tensor.
//
// This is a low-level constructor; most callers should use creation functions
// like Zeros, Ones, or FromSlice instead.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	var dummy T
	if raw.DType() != inferDataType(dummy) {
		panic(fmt.Sprintf("tensor: raw dtype %s does not match element type", raw.DType()))
	}
	return &Tensor[T, B]{raw: raw, backend: b}
}

// Shape returns the tensor's shape.
func (t *Tensor[T, B]) Shape() Shape {
	return t.raw.Shape()
}

// NumElements returns the total number of elements.
func (t *Tensor[T, B]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
func (t *Tensor[T, B]) Raw() *RawTensor {
	return t.raw
}

// Backend returns the backend this tensor is bound to.
func (t *Tensor[T, B]) Backend() B {
	return t.backend
}

// Data returns the tensor's elements as a flat float32 slice.
// Panics for non-float32 tensors.
func (t *Tensor[T, B]) Data() []float32 {
	return t.raw.AsFloat32()
}

// Clone returns a deep copy of the tensor.
func (t *Tensor[T, B]) Clone() *Tensor[T, B] {
	return New[T, B](t.raw.Clone(), t.backend)
}

// String returns a short description of the tensor.
func (t *Tensor[T, B]) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, backend=%s)", t.Shape(), t.raw.DType(), t.backend.Name())
}
