package emov2

import (
	"github.com/born-ml/emov2/internal/tensor"
)

// padToWindows zero-pads the bottom and right edges of an NCHW map so both
// spatial sizes are multiples of the window size, and returns the padded map
// with the window counts along each axis. windowSize <= 0 treats the whole
// map as a single window.
func padToWindows[B tensor.Backend](x *tensor.Tensor[float32, B], windowSize int) (*tensor.Tensor[float32, B], int, int) {
	shape := x.Shape()
	h, w := shape[2], shape[3]

	wsH, wsW := windowSize, windowSize
	if windowSize <= 0 {
		wsH, wsW = h, w
	}
	padB := (wsH - h%wsH) % wsH
	padR := (wsW - w%wsW) % wsW
	if padB > 0 || padR > 0 {
		x = x.Pad2D(padB, padR)
	}
	return x, (h + padB) / wsH, (w + padR) / wsW
}

// partitionRemote tiles an NCHW map into n1*n2 windows of strided pixels:
// within a window, neighbors are n1 (or n2) pixels apart in the source map.
// The window index folds into the batch dimension.
// (B, C, h1*n1, w1*n2) -> (B*n1*n2, C, h1, w1) with h = p*n1 + i.
func partitionRemote[B tensor.Backend](x *tensor.Tensor[float32, B], n1, n2 int) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	b, c, h, w := shape[0], shape[1], shape[2], shape[3]
	h1, w1 := h/n1, w/n2
	return x.Reshape(b, c, h1, n1, w1, n2).
		Transpose(0, 3, 5, 1, 2, 4).
		Reshape(b*n1*n2, c, h1, w1)
}

// mergeRemote inverts partitionRemote.
func mergeRemote[B tensor.Backend](x *tensor.Tensor[float32, B], n1, n2 int) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	bn, c, h1, w1 := shape[0], shape[1], shape[2], shape[3]
	b := bn / (n1 * n2)
	return x.Reshape(b, n1, n2, c, h1, w1).
		Transpose(0, 3, 4, 1, 5, 2).
		Reshape(b, c, h1*n1, w1*n2)
}

// partitionClose tiles an NCHW map into n1*n2 contiguous windows.
// (B, C, n1*h1, n2*w1) -> (B*n1*n2, C, h1, w1) with h = i*h1 + p.
func partitionClose[B tensor.Backend](x *tensor.Tensor[float32, B], n1, n2 int) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	b, c, h, w := shape[0], shape[1], shape[2], shape[3]
	h1, w1 := h/n1, w/n2
	return x.Reshape(b, c, n1, h1, n2, w1).
		Transpose(0, 2, 4, 1, 3, 5).
		Reshape(b*n1*n2, c, h1, w1)
}

// mergeClose inverts partitionClose.
func mergeClose[B tensor.Backend](x *tensor.Tensor[float32, B], n1, n2 int) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	bn, c, h1, w1 := shape[0], shape[1], shape[2], shape[3]
	b := bn / (n1 * n2)
	return x.Reshape(b, n1, n2, c, h1, w1).
		Transpose(0, 3, 1, 4, 2, 5).
		Reshape(b, c, h1*n1, w1*n2)
}

// cropTo trims an NCHW map back to the given spatial size after window
// padding. Returns the input unchanged when nothing was padded.
func cropTo[B tensor.Backend](x *tensor.Tensor[float32, B], h, w int) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if shape[2] == h && shape[3] == w {
		return x
	}
	return x.Narrow(2, 0, h).Narrow(3, 0, w)
}
