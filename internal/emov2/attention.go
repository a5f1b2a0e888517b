package emov2

import (
	"fmt"
	"math"

	"github.com/born-ml/emov2/internal/nn"
	"github.com/born-ml/emov2/internal/tensor"
)

// AttentionConfig describes one windowed self-attention operator.
type AttentionConfig struct {
	DimIn      int
	DimMid     int
	ActLayer   string
	DimHead    int
	WindowSize int
	QKVBias    bool
	AttnDrop   float32
	// VGroup groups the value projection per head.
	VGroup bool
	// AttnPre attends the raw tile before the value projection instead of
	// after it.
	AttnPre bool
}

// WindowAttention is efficient windowed multi-head self-attention. The kind
// selects the window tiling: remote (strided), close (contiguous), or hybrid
// (both tilings of one shared query/key projection, summed).
//
// Queries and keys come from a fused 1x1 projection over the input channels;
// values from a separate 1x1 projection to the expansion width.
type WindowAttention[B tensor.Backend] struct {
	kind       OpKind
	dimIn      int
	dimMid     int
	dimHead    int
	numHead    int
	windowSize int
	scale      float32
	attnPre    bool

	qk       *nn.ConvNormAct[B]
	v        *nn.ConvNormAct[B]
	attnDrop *nn.Dropout[B]
}

// NewWindowAttention builds a windowed attention operator of the given kind.
func NewWindowAttention[B tensor.Backend](kind OpKind, cfg AttentionConfig, backend B) *WindowAttention[B] {
	if kind != OpAttnRemote && kind != OpAttnClose && kind != OpAttnHybrid {
		panic(fmt.Sprintf("attention: invalid operator kind %s", kind))
	}
	if cfg.DimHead <= 0 || cfg.DimIn%cfg.DimHead != 0 {
		panic(fmt.Sprintf("attention: dim %d not divisible by head size %d", cfg.DimIn, cfg.DimHead))
	}
	numHead := cfg.DimIn / cfg.DimHead
	if cfg.DimMid%numHead != 0 {
		panic(fmt.Sprintf("attention: expansion dim %d not divisible by %d heads", cfg.DimMid, numHead))
	}

	vGroups := 1
	if cfg.VGroup {
		vGroups = numHead
	}

	return &WindowAttention[B]{
		kind:       kind,
		dimIn:      cfg.DimIn,
		dimMid:     cfg.DimMid,
		dimHead:    cfg.DimHead,
		numHead:    numHead,
		windowSize: cfg.WindowSize,
		scale:      float32(1 / math.Sqrt(float64(cfg.DimHead))),
		attnPre:    cfg.AttnPre,
		qk: nn.NewConvNormAct(nn.ConvNormActConfig{
			DimIn: cfg.DimIn, DimOut: cfg.DimIn * 2, KernelSize: 1,
			Bias: cfg.QKVBias, NormLayer: nn.NormNone, ActLayer: nn.ActNone,
		}, backend),
		v: nn.NewConvNormAct(nn.ConvNormActConfig{
			DimIn: cfg.DimIn, DimOut: cfg.DimMid, KernelSize: 1, Groups: vGroups,
			Bias: cfg.QKVBias, NormLayer: nn.NormNone, ActLayer: cfg.ActLayer,
		}, backend),
		attnDrop: nn.NewDropout[B](cfg.AttnDrop),
	}
}

// Forward computes windowed attention over an NCHW input with dimIn channels
// and returns a map with dimMid channels at the same spatial size.
func (a *WindowAttention[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 || shape[1] != a.dimIn {
		panic(fmt.Sprintf("attention: expected input [batch, %d, h, w], got %v", a.dimIn, shape))
	}
	h, w := shape[2], shape[3]

	padded, n1, n2 := padToWindows(x, a.windowSize)

	var out *tensor.Tensor[float32, B]
	switch a.kind {
	case OpAttnRemote:
		out = mergeRemote(a.attendTiles(partitionRemote(padded, n1, n2)), n1, n2)
	case OpAttnClose:
		out = mergeClose(a.attendTiles(partitionClose(padded, n1, n2)), n1, n2)
	default:
		out = a.forwardHybrid(padded, n1, n2)
	}
	return cropTo(out, h, w)
}

// attendTiles runs single-tiling attention over a batch of windows.
func (a *WindowAttention[B]) attendTiles(tiles *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := tiles.Shape()
	th, tw := shape[2], shape[3]
	attn := a.attentionMap(a.qk.Forward(tiles))

	if a.attnPre {
		heads := toHeads(tiles, a.numHead)
		spa := fromHeads(attn.BatchMatMul(heads), th, tw)
		return a.v.Forward(spa)
	}
	v := toHeads(a.v.Forward(tiles), a.numHead)
	return fromHeads(attn.BatchMatMul(v), th, tw)
}

// forwardHybrid partitions one shared query/key projection both ways, runs
// independent attention per tiling, and sums the merged branch outputs. With
// attnPre the value projection is shared and applied once after the sum.
func (a *WindowAttention[B]) forwardHybrid(x *tensor.Tensor[float32, B], n1, n2 int) *tensor.Tensor[float32, B] {
	qk := a.qk.Forward(x)
	attnRemote := a.attentionMap(partitionRemote(qk, n1, n2))
	attnClose := a.attentionMap(partitionClose(qk, n1, n2))

	xRemote := partitionRemote(x, n1, n2)
	ts := xRemote.Shape()
	th, tw := ts[2], ts[3]

	if a.attnPre {
		spaRemote := fromHeads(attnRemote.BatchMatMul(toHeads(xRemote, a.numHead)), th, tw)
		spaClose := fromHeads(attnClose.BatchMatMul(toHeads(partitionClose(x, n1, n2), a.numHead)), th, tw)
		// both branches un-tile through the strided inverse before the
		// shared value projection
		sum := mergeRemote(spaRemote, n1, n2).Add(mergeRemote(spaClose, n1, n2))
		return a.v.Forward(sum)
	}

	v := a.v.Forward(x)
	spaRemote := fromHeads(attnRemote.BatchMatMul(toHeads(partitionRemote(v, n1, n2), a.numHead)), th, tw)
	spaClose := fromHeads(attnClose.BatchMatMul(toHeads(partitionClose(v, n1, n2), a.numHead)), th, tw)
	return mergeRemote(spaRemote, n1, n2).Add(mergeClose(spaClose, n1, n2))
}

// attentionMap splits a fused query/key projection, forms per-head scaled
// dot-product scores, and row-normalizes them over the key axis.
// Input (b, 2*dimIn, h, w); output (b, heads, h*w, h*w).
func (a *WindowAttention[B]) attentionMap(qk *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	q := toHeads(qk.Narrow(1, 0, a.dimIn), a.numHead)
	k := toHeads(qk.Narrow(1, a.dimIn, a.dimIn), a.numHead).Transpose(0, 1, 3, 2)
	attn := q.BatchMatMul(k).MulScalar(a.scale).Softmax(-1)
	return a.attnDrop.Forward(attn)
}

// toHeads reshapes (b, heads*dh, h, w) into token form (b, heads, h*w, dh).
func toHeads[B tensor.Backend](x *tensor.Tensor[float32, B], numHead int) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	b, c, h, w := shape[0], shape[1], shape[2], shape[3]
	return x.Reshape(b, numHead, c/numHead, h*w).Transpose(0, 1, 3, 2)
}

// fromHeads inverts toHeads back to (b, heads*dh, h, w).
func fromHeads[B tensor.Backend](x *tensor.Tensor[float32, B], h, w int) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	b, heads, dh := shape[0], shape[1], shape[3]
	return x.Transpose(0, 1, 3, 2).Reshape(b, heads*dh, h, w)
}

// SetTraining propagates training mode to attention dropout.
func (a *WindowAttention[B]) SetTraining(training bool) {
	a.attnDrop.SetTraining(training)
}

// Parameters returns the projection parameters.
func (a *WindowAttention[B]) Parameters() []*nn.Parameter[B] {
	return append(a.qk.Parameters(), a.v.Parameters()...)
}

// StateDict exports the projections under the "qk" and "v" prefixes.
func (a *WindowAttention[B]) StateDict() map[string]*tensor.RawTensor {
	sd := nn.Prefixed("qk", a.qk.StateDict())
	for k, v := range nn.Prefixed("v", a.v.StateDict()) {
		sd[k] = v
	}
	return sd
}

// LoadStateDict loads the projection parameters.
func (a *WindowAttention[B]) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	if err := a.qk.LoadStateDict(nn.Unprefixed("qk", sd)); err != nil {
		return err
	}
	return a.v.LoadStateDict(nn.Unprefixed("v", sd))
}
