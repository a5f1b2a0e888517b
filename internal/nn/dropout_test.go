package nn

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/emov2/internal/backend/cpu"
	"github.com/born-ml/emov2/internal/tensor"
)

// TestDropout_EvalIsIdentity tests that evaluation mode passes input through.
func TestDropout_EvalIsIdentity(t *testing.T) {
	backend := cpu.New()
	drop := NewDropout[*cpu.CPUBackend](0.5)
	drop.SetTraining(false)

	x := tensor.Randn[float32](tensor.Shape{4, 4}, backend)
	y := drop.Forward(x)

	assert.Equal(t, x, y)
}

// TestDropout_ZeroProbIsIdentity tests p=0 in training mode.
func TestDropout_ZeroProbIsIdentity(t *testing.T) {
	backend := cpu.New()
	drop := NewDropout[*cpu.CPUBackend](0)

	x := tensor.Randn[float32](tensor.Shape{4, 4}, backend)
	y := drop.Forward(x)

	assert.Equal(t, x, y)
}

// TestDropout_TrainingZeroesAndScales tests that survivors are scaled by
// 1/(1-p) and some elements are zeroed for a large enough input.
func TestDropout_TrainingZeroesAndScales(t *testing.T) {
	backend := cpu.New()
	drop := NewDropout[*cpu.CPUBackend](0.5)

	x := tensor.Ones[float32](tensor.Shape{64, 64}, backend)
	y := drop.Forward(x)

	zeros, scaled := 0, 0
	for _, v := range y.Data() {
		switch v {
		case 0:
			zeros++
		case 2:
			scaled++
		default:
			t.Fatalf("unexpected value %v", v)
		}
	}
	assert.Greater(t, zeros, 0)
	assert.Greater(t, scaled, 0)
}

// TestDropPath_EvalIsIdentity tests that evaluation mode passes input through.
func TestDropPath_EvalIsIdentity(t *testing.T) {
	backend := cpu.New()
	dp := NewDropPath[*cpu.CPUBackend](0.3)
	dp.SetTraining(false)

	x := tensor.Randn[float32](tensor.Shape{2, 3, 4, 4}, backend)
	y := dp.Forward(x)

	assert.Equal(t, x, y)
}

// TestDropPath_PerSample tests that each sample is either fully dropped or
// fully scaled.
func TestDropPath_PerSample(t *testing.T) {
	backend := cpu.New()
	dp := NewDropPath[*cpu.CPUBackend](0.5)

	x := tensor.Ones[float32](tensor.Shape{32, 2, 2, 2}, backend)
	y := dp.Forward(x)

	perSample := 8
	for b := 0; b < 32; b++ {
		first := y.Data()[b*perSample]
		assert.Contains(t, []float32{0, 2}, first)
		for i := 1; i < perSample; i++ {
			assert.Equal(t, first, y.Data()[b*perSample+i], "sample %d not uniform", b)
		}
	}
}

// TestFactory_UnknownTagsPanic tests that unresolvable tags are fatal.
func TestFactory_UnknownTagsPanic(t *testing.T) {
	backend := cpu.New()

	assert.Panics(t, func() { NewNorm("group_norm", 8, backend) })
	assert.Panics(t, func() { NewAct[*cpu.CPUBackend]("mish") })
}

// TestFactory_KnownTags tests tag resolution.
func TestFactory_KnownTags(t *testing.T) {
	backend := cpu.New()

	assert.IsType(t, &BatchNorm2d[*cpu.CPUBackend]{}, NewNorm(NormBatch, 8, backend))
	assert.IsType(t, &LayerNorm2d[*cpu.CPUBackend]{}, NewNorm(NormLayer, 8, backend))
	assert.IsType(t, &Identity[*cpu.CPUBackend]{}, NewNorm(NormNone, 8, backend))
	assert.IsType(t, &SiLU[*cpu.CPUBackend]{}, NewAct[*cpu.CPUBackend](ActSiLU))
	assert.IsType(t, &GELU[*cpu.CPUBackend]{}, NewAct[*cpu.CPUBackend](ActGELU))
}
