package emov2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/emov2/internal/backend/cpu"
	"github.com/born-ml/emov2/internal/tensor"
)

func blockConfig() BlockConfig {
	return BlockConfig{
		DimIn: 32, DimOut: 32, NormIn: true, HasSkip: true,
		ExpRatio: 2, NormLayer: "bn_2d", ActLayer: "silu",
		DWKernel: 3, Stride: 1, DimHead: 16, WindowSize: 4,
		Ops: []OpKind{OpConv}, ConvKS: 1, ConvGroups: 1,
		QKVBias: true, LSValue: 1e-6,
	}
}

// TestInvertedResidual_PreservesShape tests the stride-1 residual path.
func TestInvertedResidual_PreservesShape(t *testing.T) {
	backend := cpu.New()
	blk := NewInvertedResidual(blockConfig(), backend)

	require.True(t, blk.HasSkip())

	x := tensor.Randn[float32](tensor.Shape{2, 32, 8, 8}, backend)
	y := blk.Forward(x)
	assert.True(t, y.Shape().Equal(x.Shape()), "got %v", y.Shape())
}

// TestInvertedResidual_SkipRules tests that the shortcut is forced off on
// stride or channel mismatch.
func TestInvertedResidual_SkipRules(t *testing.T) {
	backend := cpu.New()

	strided := blockConfig()
	strided.Stride = 2
	assert.False(t, NewInvertedResidual(strided, backend).HasSkip())

	widened := blockConfig()
	widened.DimOut = 64
	assert.False(t, NewInvertedResidual(widened, backend).HasSkip())

	disabled := blockConfig()
	disabled.HasSkip = false
	assert.False(t, NewInvertedResidual(disabled, backend).HasSkip())
}

// TestInvertedResidual_Downsamples tests the stride-2 block geometry.
func TestInvertedResidual_Downsamples(t *testing.T) {
	backend := cpu.New()
	cfg := blockConfig()
	cfg.Stride = 2
	cfg.DimOut = 64
	blk := NewInvertedResidual(cfg, backend)

	x := tensor.Randn[float32](tensor.Shape{1, 32, 16, 16}, backend)
	y := blk.Forward(x)
	assert.True(t, y.Shape().Equal(tensor.Shape{1, 64, 8, 8}), "got %v", y.Shape())
}

// TestInvertedResidual_NearIdentityAtInit tests that layer scaling keeps a
// fresh residual block close to the identity.
func TestInvertedResidual_NearIdentityAtInit(t *testing.T) {
	backend := cpu.New()
	blk := NewInvertedResidual(blockConfig(), backend)
	blk.SetTraining(false)

	x := tensor.Randn[float32](tensor.Shape{1, 32, 8, 8}, backend)
	y := blk.Forward(x)

	for i := range x.Data() {
		assert.InDelta(t, x.Data()[i], y.Data()[i], 1e-2)
	}
}

// TestInvertedResidual_NoLocalConvKeepsInnerSkip tests that a disabled
// depthwise kernel leaves an identity in the local-mixing slot, so the inner
// shortcut doubles the expansion output. With identity expansion and
// projection weights an all-ones input yields shortcut + proj(2x) = 3.
func TestInvertedResidual_NoLocalConvKeepsInnerSkip(t *testing.T) {
	backend := cpu.New()
	dim := 8
	cfg := BlockConfig{
		DimIn: dim, DimOut: dim, HasSkip: true,
		ExpRatio: 1, ActLayer: "none", DWKernel: 0, Stride: 1,
		Ops: []OpKind{OpConv}, ConvKS: 1, ConvGroups: 1,
	}
	blk := NewInvertedResidual(cfg, backend)
	blk.SetTraining(false)
	require.True(t, blk.HasSkip())

	sd := blk.StateDict()
	for _, key := range []string{"eops.0.conv.weight", "proj.conv.weight"} {
		w := sd[key].AsFloat32()
		for i := range w {
			w[i] = 0
		}
		for i := 0; i < dim; i++ {
			w[i*dim+i] = 1
		}
	}

	x := tensor.Full[float32](tensor.Shape{1, dim, 4, 4}, 1, backend)
	y := blk.Forward(x)
	require.True(t, y.Shape().Equal(x.Shape()), "got %v", y.Shape())
	for i, v := range y.Data() {
		assert.InDelta(t, float32(3), v, 1e-6, "element %d", i)
	}
}

// TestInvertedResidual_MultipleOps tests summed mixed operators.
func TestInvertedResidual_MultipleOps(t *testing.T) {
	backend := cpu.New()
	cfg := blockConfig()
	cfg.Ops = []OpKind{OpConv, OpAttnRemote}
	blk := NewInvertedResidual(cfg, backend)

	x := tensor.Randn[float32](tensor.Shape{1, 32, 8, 8}, backend)
	y := blk.Forward(x)
	assert.True(t, y.Shape().Equal(x.Shape()), "got %v", y.Shape())
}

// TestInvertedResidual_StateDictRoundTrip tests weight export/import between
// identically configured blocks.
func TestInvertedResidual_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()
	cfg := blockConfig()
	cfg.Ops = []OpKind{OpAttnClose}
	src := NewInvertedResidual(cfg, backend)
	dst := NewInvertedResidual(cfg, backend)

	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	src.SetTraining(false)
	dst.SetTraining(false)
	x := tensor.Randn[float32](tensor.Shape{1, 32, 8, 8}, backend)
	ySrc := src.Forward(x)
	yDst := dst.Forward(x)

	for i := range ySrc.Data() {
		assert.Equal(t, ySrc.Data()[i], yDst.Data()[i])
	}
}
