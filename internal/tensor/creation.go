package tensor

import (
	"fmt"
	"math/rand"
)

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(fmt.Sprintf("zeros: %v", err))
	}
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return Full[T, B](shape, 1, b)
}

// Full creates a tensor filled with a specific value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	switch any(value).(type) {
	case float32:
		data := t.raw.AsFloat32()
		v := float32(value)
		for i := range data {
			data[i] = v
		}
	case float64:
		data := t.raw.AsFloat64()
		v := float64(value)
		for i := range data {
			data[i] = v
		}
	}
	return t
}

// Randn creates a tensor filled with random values from N(0, 1).
func Randn[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	t := Zeros[T, B](shape, b)
	var dummy T
	if inferDataType(dummy) == Float32 {
		data := t.raw.AsFloat32()
		for i := range data {
			//nolint:gosec // math/rand is fine for weight initialization
			data[i] = float32(rand.NormFloat64())
		}
	} else {
		data := t.raw.AsFloat64()
		for i := range data {
			//nolint:gosec // math/rand is fine for weight initialization
			data[i] = rand.NormFloat64()
		}
	}
	return t
}

// FromSlice creates a tensor from a Go slice. The slice length must match the
// shape's element count; data is copied.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("fromslice: data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	t := Zeros[T, B](shape, b)
	switch src := any(data).(type) {
	case []float32:
		copy(t.raw.AsFloat32(), src)
	case []float64:
		copy(t.raw.AsFloat64(), src)
	}
	return t, nil
}
