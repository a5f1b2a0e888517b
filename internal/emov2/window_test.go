package emov2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/emov2/internal/backend/cpu"
	"github.com/born-ml/emov2/internal/tensor"
)

func sequential(t *testing.T, backend *cpu.CPUBackend, shape tensor.Shape) *tensor.Tensor[float32, *cpu.CPUBackend] {
	t.Helper()
	data := make([]float32, shape.NumElements())
	for i := range data {
		data[i] = float32(i)
	}
	x, err := tensor.FromSlice(data, shape, backend)
	require.NoError(t, err)
	return x
}

// TestPartitionRemote_Strided tests that remote windows gather strided pixels.
func TestPartitionRemote_Strided(t *testing.T) {
	backend := cpu.New()
	// 4x4 map, window size 2: n1 = n2 = 2.
	x := sequential(t, backend, tensor.Shape{1, 1, 4, 4})

	tiles := partitionRemote(x, 2, 2)

	require.True(t, tiles.Shape().Equal(tensor.Shape{4, 1, 2, 2}))
	// First window holds pixels (0,0), (0,2), (2,0), (2,2): neighbors two
	// apart in the source map.
	assert.Equal(t, []float32{0, 2, 8, 10}, tiles.Data()[:4])
}

// TestPartitionClose_Contiguous tests that close windows are contiguous tiles.
func TestPartitionClose_Contiguous(t *testing.T) {
	backend := cpu.New()
	x := sequential(t, backend, tensor.Shape{1, 1, 4, 4})

	tiles := partitionClose(x, 2, 2)

	require.True(t, tiles.Shape().Equal(tensor.Shape{4, 1, 2, 2}))
	// First window is the top-left 2x2 tile.
	assert.Equal(t, []float32{0, 1, 4, 5}, tiles.Data()[:4])
}

// TestWindowRoundTrip tests that merge inverts partition for both tilings.
func TestWindowRoundTrip(t *testing.T) {
	backend := cpu.New()
	x := sequential(t, backend, tensor.Shape{2, 3, 6, 8})

	viaRemote := mergeRemote(partitionRemote(x, 3, 2), 3, 2)
	viaClose := mergeClose(partitionClose(x, 3, 2), 3, 2)

	require.True(t, viaRemote.Shape().Equal(x.Shape()))
	require.True(t, viaClose.Shape().Equal(x.Shape()))
	for i := range x.Data() {
		assert.Equal(t, x.Data()[i], viaRemote.Data()[i], "remote mismatch at %d", i)
		assert.Equal(t, x.Data()[i], viaClose.Data()[i], "close mismatch at %d", i)
	}
}

// TestPadToWindows tests the padding formula and window counts.
func TestPadToWindows(t *testing.T) {
	backend := cpu.New()

	x := tensor.Ones[float32](tensor.Shape{1, 1, 13, 9}, backend)
	padded, n1, n2 := padToWindows(x, 7)

	assert.True(t, padded.Shape().Equal(tensor.Shape{1, 1, 14, 14}), "got %v", padded.Shape())
	assert.Equal(t, 2, n1)
	assert.Equal(t, 2, n2)

	// already aligned: no copy, no padding
	aligned := tensor.Ones[float32](tensor.Shape{1, 1, 14, 14}, backend)
	padded, n1, n2 = padToWindows(aligned, 7)
	assert.Equal(t, aligned, padded)
	assert.Equal(t, 2, n1)
	assert.Equal(t, 2, n2)
}

// TestPadToWindows_WholeMap tests that a non-positive window size treats the
// map as one window.
func TestPadToWindows_WholeMap(t *testing.T) {
	backend := cpu.New()

	x := tensor.Ones[float32](tensor.Shape{1, 1, 11, 5}, backend)
	padded, n1, n2 := padToWindows(x, 0)

	assert.Equal(t, x, padded)
	assert.Equal(t, 1, n1)
	assert.Equal(t, 1, n2)
}

// TestCropTo tests cropping back after padding.
func TestCropTo(t *testing.T) {
	backend := cpu.New()
	x := sequential(t, backend, tensor.Shape{1, 2, 3, 3})

	padded := x.Pad2D(2, 1)
	cropped := cropTo(padded, 3, 3)

	require.True(t, cropped.Shape().Equal(x.Shape()))
	for i := range x.Data() {
		assert.Equal(t, x.Data()[i], cropped.Data()[i])
	}
}
