package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/emov2/internal/backend/cpu"
	"github.com/born-ml/emov2/internal/tensor"
)

// TestConvNormAct_Stride2Halves tests that stride 2 halves the spatial size.
func TestConvNormAct_Stride2Halves(t *testing.T) {
	backend := cpu.New()
	m := NewConvNormAct(ConvNormActConfig{
		DimIn: 3, DimOut: 16, KernelSize: 3, Stride: 2,
		Bias: true, NormLayer: NormBatch, ActLayer: ActSiLU,
	}, backend)

	x := tensor.Randn[float32](tensor.Shape{1, 3, 32, 32}, backend)
	y := m.Forward(x)

	assert.True(t, y.Shape().Equal(tensor.Shape{1, 16, 16, 16}), "got %v", y.Shape())
}

// TestConvNormAct_Stride1Preserves tests same-size output at stride 1 for
// odd kernels.
func TestConvNormAct_Stride1Preserves(t *testing.T) {
	backend := cpu.New()
	for _, ks := range []int{1, 3, 5, 7} {
		m := NewConvNormAct(ConvNormActConfig{
			DimIn: 4, DimOut: 4, KernelSize: ks,
			NormLayer: NormNone, ActLayer: ActNone,
		}, backend)

		x := tensor.Randn[float32](tensor.Shape{1, 4, 14, 14}, backend)
		y := m.Forward(x)

		assert.True(t, y.Shape().Equal(x.Shape()), "kernel %d: got %v", ks, y.Shape())
	}
}

// TestConvNormAct_StateDictRoundTrip tests export/import through prefixed keys.
func TestConvNormAct_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	src := NewConvNormAct(ConvNormActConfig{
		DimIn: 2, DimOut: 4, KernelSize: 3, Bias: true,
		NormLayer: NormBatch, ActLayer: ActSiLU,
	}, backend)
	dst := NewConvNormAct(ConvNormActConfig{
		DimIn: 2, DimOut: 4, KernelSize: 3, Bias: true,
		NormLayer: NormBatch, ActLayer: ActSiLU,
	}, backend)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	src.SetTraining(false)
	dst.SetTraining(false)
	x := tensor.Randn[float32](tensor.Shape{1, 2, 8, 8}, backend)
	ySrc := src.Forward(x)
	yDst := dst.Forward(x)

	for i := range ySrc.Data() {
		assert.Equal(t, ySrc.Data()[i], yDst.Data()[i])
	}
}

// TestConvNormAct_StateDictKeys tests the exported key layout.
func TestConvNormAct_StateDictKeys(t *testing.T) {
	backend := cpu.New()
	m := NewConvNormAct(ConvNormActConfig{
		DimIn: 2, DimOut: 2, KernelSize: 1, Bias: true,
		NormLayer: NormBatch, ActLayer: ActNone,
	}, backend)

	sd := m.StateDict()
	for _, key := range []string{
		"conv.weight", "conv.bias",
		"norm.weight", "norm.bias", "norm.running_mean", "norm.running_var",
	} {
		_, ok := sd[key]
		assert.True(t, ok, "missing key %s", key)
	}
}
