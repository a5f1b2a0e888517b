package emov2

import (
	"fmt"
	"strconv"

	"github.com/born-ml/emov2/internal/nn"
	"github.com/born-ml/emov2/internal/tensor"
)

// BlockConfig describes one inverted residual block.
type BlockConfig struct {
	DimIn  int
	DimOut int
	// NormIn applies the configured norm before the expansion; identity otherwise.
	NormIn bool
	// HasSkip requests residual shortcuts; honored only when DimIn == DimOut
	// and Stride == 1.
	HasSkip   bool
	ExpRatio  float32
	NormLayer string
	ActLayer  string
	// DWKernel is the depthwise local-mixing kernel; <= 0 disables local mixing.
	DWKernel   int
	Stride     int
	DimHead    int
	WindowSize int
	// Ops lists the expansion operators; their outputs are summed.
	Ops        []OpKind
	ConvKS     int
	ConvGroups int
	QKVBias    bool
	AttnDrop   float32
	Drop       float32
	DropPath   float32
	VGroup     bool
	AttnPre    bool
	LSValue    float32
}

// InvertedResidual is the iiRMB block: pre-norm, a summed set of expansion
// operators (convolution and/or windowed attention) widening DimIn to
// DimIn*ExpRatio, depthwise local mixing carrying the block stride, a 1x1
// projection back to DimOut, layer scaling, and stochastic depth around the
// residual shortcut.
type InvertedResidual[B tensor.Backend] struct {
	dimIn   int
	dimOut  int
	dimMid  int
	stride  int
	hasSkip bool

	norm      nn.Module[B]
	ops       []nn.Module[B]
	convLocal *nn.ConvNormAct[B]
	projDrop  *nn.Dropout[B]
	proj      *nn.ConvNormAct[B]
	ls        *nn.LayerScale2D[B]
	dropPath  *nn.DropPath[B]
}

// NewInvertedResidual builds an iiRMB block from its configuration.
func NewInvertedResidual[B tensor.Backend](cfg BlockConfig, backend B) *InvertedResidual[B] {
	if len(cfg.Ops) == 0 {
		panic("block: at least one expansion operator required")
	}
	if cfg.Stride == 0 {
		cfg.Stride = 1
	}
	dimMid := int(float32(cfg.DimIn) * cfg.ExpRatio)

	blk := &InvertedResidual[B]{
		dimIn:   cfg.DimIn,
		dimOut:  cfg.DimOut,
		dimMid:  dimMid,
		stride:  cfg.Stride,
		hasSkip: cfg.HasSkip && cfg.DimIn == cfg.DimOut && cfg.Stride == 1,
	}

	if cfg.NormIn {
		blk.norm = nn.NewNorm(cfg.NormLayer, cfg.DimIn, backend)
	} else {
		blk.norm = nn.NewIdentity[B]()
	}

	for _, kind := range cfg.Ops {
		var op nn.Module[B]
		if kind == OpConv {
			op = nn.NewConvNormAct(nn.ConvNormActConfig{
				DimIn: cfg.DimIn, DimOut: dimMid, KernelSize: cfg.ConvKS,
				Groups: cfg.ConvGroups, Bias: cfg.QKVBias,
				NormLayer: nn.NormNone, ActLayer: cfg.ActLayer,
			}, backend)
		} else {
			op = NewWindowAttention(kind, AttentionConfig{
				DimIn: cfg.DimIn, DimMid: dimMid, ActLayer: cfg.ActLayer,
				DimHead: cfg.DimHead, WindowSize: cfg.WindowSize,
				QKVBias: cfg.QKVBias, AttnDrop: cfg.AttnDrop,
				VGroup: cfg.VGroup, AttnPre: cfg.AttnPre,
			}, backend)
		}
		blk.ops = append(blk.ops, op)
	}

	if cfg.DWKernel > 0 {
		blk.convLocal = nn.NewConvNormAct(nn.ConvNormActConfig{
			DimIn: dimMid, DimOut: dimMid, KernelSize: cfg.DWKernel,
			Stride: cfg.Stride, Groups: dimMid,
			NormLayer: nn.NormBatch, ActLayer: nn.ActSiLU,
		}, backend)
	}

	blk.projDrop = nn.NewDropout[B](cfg.Drop)
	blk.proj = nn.NewConvNormAct(nn.ConvNormActConfig{
		DimIn: dimMid, DimOut: cfg.DimOut, KernelSize: 1,
		NormLayer: nn.NormNone, ActLayer: nn.ActNone,
	}, backend)
	if cfg.LSValue > 0 {
		blk.ls = nn.NewLayerScale2D(cfg.DimOut, cfg.LSValue, backend)
	}
	if cfg.DropPath > 0 {
		blk.dropPath = nn.NewDropPath[B](cfg.DropPath)
	}
	return blk
}

// HasSkip reports whether the block adds residual shortcuts.
func (b *InvertedResidual[B]) HasSkip() bool { return b.hasSkip }

// Forward runs the block on an NCHW input with DimIn channels.
func (b *InvertedResidual[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 || shape[1] != b.dimIn {
		panic(fmt.Sprintf("block: expected input [batch, %d, h, w], got %v", b.dimIn, shape))
	}
	shortcut := x
	x = b.norm.Forward(x)

	out := b.ops[0].Forward(x)
	for _, op := range b.ops[1:] {
		out = out.Add(op.Forward(x))
	}

	if b.convLocal != nil {
		local := b.convLocal.Forward(out)
		if b.hasSkip {
			out = out.Add(local)
		} else {
			out = local
		}
	} else if b.hasSkip {
		// local mixing disabled: the inner shortcut still adds the identity
		out = out.Add(out)
	}

	out = b.projDrop.Forward(out)
	out = b.proj.Forward(out)
	if b.ls != nil {
		out = b.ls.Forward(out)
	}

	if b.hasSkip {
		if b.dropPath != nil {
			out = b.dropPath.Forward(out)
		}
		out = shortcut.Add(out)
	}
	return out
}

// SetTraining propagates training mode to every stateful submodule.
func (b *InvertedResidual[B]) SetTraining(training bool) {
	if t, ok := b.norm.(nn.Trainable); ok {
		t.SetTraining(training)
	}
	for _, op := range b.ops {
		if t, ok := op.(nn.Trainable); ok {
			t.SetTraining(training)
		}
	}
	if b.convLocal != nil {
		b.convLocal.SetTraining(training)
	}
	b.projDrop.SetTraining(training)
	if b.dropPath != nil {
		b.dropPath.SetTraining(training)
	}
}

// EvalNorms forces every contained batch norm into evaluation behavior.
func (b *InvertedResidual[B]) EvalNorms() {
	if bn, ok := b.norm.(*nn.BatchNorm2d[B]); ok {
		bn.SetTraining(false)
	}
	if b.convLocal != nil {
		b.convLocal.EvalNorms()
	}
}

// SanitizeNorms replaces non-finite batch norm running statistics in every
// contained batch norm.
func (b *InvertedResidual[B]) SanitizeNorms() {
	if bn, ok := b.norm.(*nn.BatchNorm2d[B]); ok {
		bn.SanitizeRunningStats()
	}
	if b.convLocal != nil {
		b.convLocal.SanitizeNorms()
	}
}

// Parameters returns the parameters of all submodules.
func (b *InvertedResidual[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, b.norm.Parameters()...)
	for _, op := range b.ops {
		params = append(params, op.Parameters()...)
	}
	if b.convLocal != nil {
		params = append(params, b.convLocal.Parameters()...)
	}
	params = append(params, b.proj.Parameters()...)
	if b.ls != nil {
		params = append(params, b.ls.Parameters()...)
	}
	return params
}

// StateDict exports submodules under "norm", "eops.N", "conv_local", "proj",
// and "ls" prefixes.
func (b *InvertedResidual[B]) StateDict() map[string]*tensor.RawTensor {
	sd := nn.Prefixed("norm", b.norm.StateDict())
	for i, op := range b.ops {
		for k, v := range nn.Prefixed("eops."+strconv.Itoa(i), op.StateDict()) {
			sd[k] = v
		}
	}
	if b.convLocal != nil {
		for k, v := range nn.Prefixed("conv_local", b.convLocal.StateDict()) {
			sd[k] = v
		}
	}
	for k, v := range nn.Prefixed("proj", b.proj.StateDict()) {
		sd[k] = v
	}
	if b.ls != nil {
		for k, v := range nn.Prefixed("ls", b.ls.StateDict()) {
			sd[k] = v
		}
	}
	return sd
}

// LoadStateDict loads all submodule parameters.
func (b *InvertedResidual[B]) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	if err := b.norm.LoadStateDict(nn.Unprefixed("norm", sd)); err != nil {
		return err
	}
	for i, op := range b.ops {
		if err := op.LoadStateDict(nn.Unprefixed("eops."+strconv.Itoa(i), sd)); err != nil {
			return err
		}
	}
	if b.convLocal != nil {
		if err := b.convLocal.LoadStateDict(nn.Unprefixed("conv_local", sd)); err != nil {
			return err
		}
	}
	if err := b.proj.LoadStateDict(nn.Unprefixed("proj", sd)); err != nil {
		return err
	}
	if b.ls != nil {
		return b.ls.LoadStateDict(nn.Unprefixed("ls", sd))
	}
	return nil
}
