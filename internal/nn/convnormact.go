package nn

import (
	"github.com/born-ml/emov2/internal/tensor"
)

// ConvNormAct is the convolution / normalization / activation composite used
// throughout the backbone. Padding is derived from the kernel and stride so
// that stride 1 preserves the spatial size and stride 2 halves it (rounding
// up). With skip enabled and matching geometry the conv path becomes a
// residual branch with optional stochastic depth.
type ConvNormAct[B tensor.Backend] struct {
	conv     *Conv2D[B]
	norm     Module[B]
	act      Module[B]
	dropPath *DropPath[B]
	hasSkip  bool
}

// ConvNormActConfig describes one conv-norm-act composite.
type ConvNormActConfig struct {
	DimIn      int
	DimOut     int
	KernelSize int
	Stride     int
	Groups     int
	Bias       bool
	Skip       bool
	NormLayer  string
	ActLayer   string
	DropPath   float32
}

// NewConvNormAct builds the composite from its configuration.
func NewConvNormAct[B tensor.Backend](cfg ConvNormActConfig, backend B) *ConvNormAct[B] {
	if cfg.Stride == 0 {
		cfg.Stride = 1
	}
	if cfg.Groups == 0 {
		cfg.Groups = 1
	}
	padding := (cfg.KernelSize - cfg.Stride + 1) / 2
	if padding < 0 {
		padding = 0
	}

	var dropPath *DropPath[B]
	hasSkip := cfg.Skip && cfg.DimIn == cfg.DimOut && cfg.Stride == 1
	if hasSkip && cfg.DropPath > 0 {
		dropPath = NewDropPath[B](cfg.DropPath)
	}

	return &ConvNormAct[B]{
		conv:     NewConv2D(cfg.DimIn, cfg.DimOut, cfg.KernelSize, cfg.Stride, padding, cfg.Groups, cfg.Bias, backend),
		norm:     NewNorm(cfg.NormLayer, cfg.DimOut, backend),
		act:      NewAct[B](cfg.ActLayer),
		dropPath: dropPath,
		hasSkip:  hasSkip,
	}
}

// Forward applies conv, norm, and activation, plus the residual shortcut when
// skip is enabled.
func (m *ConvNormAct[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	x := m.conv.Forward(input)
	x = m.norm.Forward(x)
	x = m.act.Forward(x)
	if m.hasSkip {
		if m.dropPath != nil {
			x = m.dropPath.Forward(x)
		}
		x = x.Add(input)
	}
	return x
}

// SetTraining propagates the training mode to norm and stochastic depth.
func (m *ConvNormAct[B]) SetTraining(training bool) {
	if t, ok := m.norm.(Trainable); ok {
		t.SetTraining(training)
	}
	if m.dropPath != nil {
		m.dropPath.SetTraining(training)
	}
}

// EvalNorms forces any contained batch normalization into evaluation behavior.
func (m *ConvNormAct[B]) EvalNorms() {
	if bn, ok := m.norm.(*BatchNorm2d[B]); ok {
		bn.SetTraining(false)
	}
}

// SanitizeNorms replaces non-finite running statistics in any contained
// batch normalization.
func (m *ConvNormAct[B]) SanitizeNorms() {
	if bn, ok := m.norm.(*BatchNorm2d[B]); ok {
		bn.SanitizeRunningStats()
	}
}

// Parameters returns conv, norm, and activation parameters.
func (m *ConvNormAct[B]) Parameters() []*Parameter[B] {
	params := m.conv.Parameters()
	params = append(params, m.norm.Parameters()...)
	params = append(params, m.act.Parameters()...)
	return params
}

// StateDict exports parameters under the "conv" and "norm" prefixes.
func (m *ConvNormAct[B]) StateDict() map[string]*tensor.RawTensor {
	sd := Prefixed("conv", m.conv.StateDict())
	for k, v := range Prefixed("norm", m.norm.StateDict()) {
		sd[k] = v
	}
	return sd
}

// LoadStateDict loads conv and norm parameters from their prefixed entries.
func (m *ConvNormAct[B]) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	if err := m.conv.LoadStateDict(Unprefixed("conv", sd)); err != nil {
		return err
	}
	return m.norm.LoadStateDict(Unprefixed("norm", sd))
}

// Conv returns the underlying convolution layer.
func (m *ConvNormAct[B]) Conv() *Conv2D[B] { return m.conv }
