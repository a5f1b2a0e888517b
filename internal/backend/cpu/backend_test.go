package cpu

import (
	"math"
	"testing"

	"github.com/born-ml/emov2/internal/tensor"
)

// TestMatMul_KnownValues tests 2D matrix multiplication against hand-computed values.
func TestMatMul_KnownValues(t *testing.T) {
	backend := New()

	a, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	b, err := tensor.FromSlice([]float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	c := a.MatMul(b)

	expected := []float32{58, 64, 139, 154}
	if !c.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("Output shape: expected [2 2], got %v", c.Shape())
	}
	for i, want := range expected {
		if got := c.Data()[i]; got != want {
			t.Errorf("c[%d]: expected %v, got %v", i, want, got)
		}
	}
}

// TestBatchMatMul_4D tests batched matmul over the two leading dimensions.
func TestBatchMatMul_4D(t *testing.T) {
	backend := New()

	a := tensor.Ones[float32](tensor.Shape{2, 3, 4, 5}, backend)
	b := tensor.Ones[float32](tensor.Shape{2, 3, 5, 6}, backend)

	c := a.BatchMatMul(b)

	if !c.Shape().Equal(tensor.Shape{2, 3, 4, 6}) {
		t.Fatalf("Output shape: expected [2 3 4 6], got %v", c.Shape())
	}
	// Every entry is a dot product of two all-ones length-5 vectors.
	for i, v := range c.Data() {
		if v != 5 {
			t.Fatalf("c[%d]: expected 5, got %v", i, v)
		}
	}
}

// TestConv2D_KnownValues tests convolution with an all-ones 2x2 kernel.
func TestConv2D_KnownValues(t *testing.T) {
	backend := New()

	input, err := tensor.FromSlice(
		[]float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.Shape{1, 1, 3, 3}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	kernel, err := tensor.FromSlice(
		[]float32{1, 1, 1, 1}, tensor.Shape{1, 1, 2, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	out := tensor.New[float32](backend.Conv2D(input.Raw(), kernel.Raw(), 1, 0, 1), backend)

	if !out.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("Output shape: expected [1 1 2 2], got %v", out.Shape())
	}
	expected := []float32{12, 16, 24, 28}
	for i, want := range expected {
		if got := out.Data()[i]; got != want {
			t.Errorf("out[%d]: expected %v, got %v", i, want, got)
		}
	}
}

// TestConv2D_Depthwise tests grouped convolution with groups == channels.
func TestConv2D_Depthwise(t *testing.T) {
	backend := New()

	input, err := tensor.FromSlice(
		[]float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{1, 2, 2, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	// 1x1 depthwise kernel: channel 0 scaled by 2, channel 1 by 3.
	kernel, err := tensor.FromSlice([]float32{2, 3}, tensor.Shape{2, 1, 1, 1}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	out := tensor.New[float32](backend.Conv2D(input.Raw(), kernel.Raw(), 1, 0, 2), backend)

	expected := []float32{2, 4, 6, 8, 15, 18, 21, 24}
	for i, want := range expected {
		if got := out.Data()[i]; got != want {
			t.Errorf("out[%d]: expected %v, got %v", i, want, got)
		}
	}
}

// TestConv2D_StridePadding tests output geometry with stride 2 and padding 1.
func TestConv2D_StridePadding(t *testing.T) {
	backend := New()

	input := tensor.Ones[float32](tensor.Shape{1, 3, 8, 8}, backend)
	kernel := tensor.Ones[float32](tensor.Shape{16, 3, 3, 3}, backend)

	out := tensor.New[float32](backend.Conv2D(input.Raw(), kernel.Raw(), 2, 1, 1), backend)

	// out = (8 + 2*1 - 3)/2 + 1 = 4
	if !out.Shape().Equal(tensor.Shape{1, 16, 4, 4}) {
		t.Fatalf("Output shape: expected [1 16 4 4], got %v", out.Shape())
	}
	// Interior positions see the full 3x3x3 kernel over all-ones input.
	inner := out.Data()[1*4+1] // position (1, 1) of channel 0
	if inner != 27 {
		t.Errorf("Interior value: expected 27, got %v", inner)
	}
}

// TestTranspose_Roundtrip tests that a permutation and its inverse restore the data.
func TestTranspose_Roundtrip(t *testing.T) {
	backend := New()

	x := tensor.Randn[float32](tensor.Shape{2, 3, 4, 5}, backend)
	y := x.Transpose(0, 2, 3, 1).Transpose(0, 3, 1, 2)

	if !y.Shape().Equal(x.Shape()) {
		t.Fatalf("Roundtrip shape: expected %v, got %v", x.Shape(), y.Shape())
	}
	for i := range x.Data() {
		if x.Data()[i] != y.Data()[i] {
			t.Fatalf("Roundtrip data mismatch at %d", i)
		}
	}
}

// TestTranspose_2D tests a plain 2D transpose against known values.
func TestTranspose_2D(t *testing.T) {
	backend := New()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	y := x.Transpose(1, 0)

	expected := []float32{1, 4, 2, 5, 3, 6}
	for i, want := range expected {
		if got := y.Data()[i]; got != want {
			t.Errorf("y[%d]: expected %v, got %v", i, want, got)
		}
	}
}

// TestPad2D tests bottom/right zero padding.
func TestPad2D(t *testing.T) {
	backend := New()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	y := x.Pad2D(1, 2)

	if !y.Shape().Equal(tensor.Shape{1, 1, 3, 4}) {
		t.Fatalf("Padded shape: expected [1 1 3 4], got %v", y.Shape())
	}
	expected := []float32{
		1, 2, 0, 0,
		3, 4, 0, 0,
		0, 0, 0, 0,
	}
	for i, want := range expected {
		if got := y.Data()[i]; got != want {
			t.Errorf("y[%d]: expected %v, got %v", i, want, got)
		}
	}
}

// TestNarrow tests slicing along the channel dimension.
func TestNarrow(t *testing.T) {
	backend := New()

	x, err := tensor.FromSlice(
		[]float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{1, 4, 1, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	y := x.Narrow(1, 1, 2)

	if !y.Shape().Equal(tensor.Shape{1, 2, 1, 2}) {
		t.Fatalf("Narrowed shape: expected [1 2 1 2], got %v", y.Shape())
	}
	expected := []float32{3, 4, 5, 6}
	for i, want := range expected {
		if got := y.Data()[i]; got != want {
			t.Errorf("y[%d]: expected %v, got %v", i, want, got)
		}
	}
}

// TestSoftmax_RowsSumToOne tests row normalization over the last dimension.
func TestSoftmax_RowsSumToOne(t *testing.T) {
	backend := New()

	x := tensor.Randn[float32](tensor.Shape{4, 7}, backend)
	y := x.Softmax(-1)

	for r := 0; r < 4; r++ {
		var sum float64
		for c := 0; c < 7; c++ {
			sum += float64(y.Data()[r*7+c])
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Errorf("Row %d: expected sum 1, got %v", r, sum)
		}
	}
}

// TestBroadcastAdd tests channel-wise bias broadcasting.
func TestBroadcastAdd(t *testing.T) {
	backend := New()

	x := tensor.Zeros[float32](tensor.Shape{1, 2, 2, 2}, backend)
	bias, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{1, 2, 1, 1}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	y := x.Add(bias)

	expected := []float32{1, 1, 1, 1, 2, 2, 2, 2}
	for i, want := range expected {
		if got := y.Data()[i]; got != want {
			t.Errorf("y[%d]: expected %v, got %v", i, want, got)
		}
	}
}

// TestMeanDim_ChannelAverage tests averaging over the channel axis of an
// NCHW tensor, the reduction layer normalization relies on.
func TestMeanDim_ChannelAverage(t *testing.T) {
	backend := New()

	x, err := tensor.FromSlice([]float32{
		1, 2, 3, 4, // channel 0
		5, 6, 7, 8, // channel 1
	}, tensor.Shape{1, 2, 2, 2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	y := x.MeanDim(1, true)

	if !y.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("Expected shape (1,1,2,2), got %v", y.Shape())
	}
	expected := []float32{3, 4, 5, 6}
	for i, want := range expected {
		if got := y.Data()[i]; got != want {
			t.Errorf("y[%d]: expected %v, got %v", i, want, got)
		}
	}

	dropped := x.MeanDim(1, false)
	if !dropped.Shape().Equal(tensor.Shape{1, 2, 2}) {
		t.Errorf("Expected shape (1,2,2), got %v", dropped.Shape())
	}
}

// TestRsqrt_KnownValues tests the reciprocal square root.
func TestRsqrt_KnownValues(t *testing.T) {
	backend := New()

	x, err := tensor.FromSlice([]float32{1, 4, 16, 0.25}, tensor.Shape{4}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}

	y := x.Rsqrt()

	expected := []float32{1, 0.5, 0.25, 2}
	for i, want := range expected {
		if got := y.Data()[i]; math.Abs(float64(got-want)) > 1e-6 {
			t.Errorf("y[%d]: expected %v, got %v", i, want, got)
		}
	}
}
