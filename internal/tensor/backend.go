package tensor

// Backend defines the interface that compute backends must implement.
// The operation set is scoped to what a convolutional/attention backbone
// needs for its forward pass; any internal parallelism is the backend's
// concern, callers see pure tensor-in/tensor-out functions.
type Backend interface {
	// Element-wise binary operations with NumPy-style broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MatMul performs 2D matrix multiplication: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// BatchMatMul performs batched matrix multiplication for 3D/4D tensors.
	// For 3D: [B, M, K] @ [B, K, N] -> [B, M, N]
	// For 4D: [B, H, M, K] @ [B, H, K, N] -> [B, H, M, N]
	BatchMatMul(a, b *RawTensor) *RawTensor

	// Conv2D performs grouped 2D convolution.
	// Input [N, C_in, H, W], kernel [C_out, C_in/groups, K_h, K_w].
	Conv2D(input, kernel *RawTensor, stride, padding, groups int) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Pad2D zero-pads the bottom and right spatial edges of an NCHW tensor.
	Pad2D(t *RawTensor, padBottom, padRight int) *RawTensor

	// Narrow returns elements [start, start+length) along dim as a contiguous copy.
	Narrow(t *RawTensor, dim, start, length int) *RawTensor

	// Scalar operations.
	MulScalar(x *RawTensor, scalar any) *RawTensor
	AddScalar(x *RawTensor, scalar any) *RawTensor

	// Rsqrt computes the element-wise reciprocal square root.
	Rsqrt(x *RawTensor) *RawTensor

	// Softmax normalizes along the given dimension (negative dims count from the end).
	Softmax(x *RawTensor, dim int) *RawTensor

	// MeanDim averages along a dimension. With keepDim the reduced dimension
	// stays as size 1, otherwise it is removed.
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Metadata.
	Name() string
	Device() Device
}
