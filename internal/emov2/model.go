package emov2

import (
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/born-ml/emov2/internal/nn"
	"github.com/born-ml/emov2/internal/serialization"
	"github.com/born-ml/emov2/internal/tensor"
)

// segment is a runnable backbone element: a stem convolution or a residual
// block. Segments carry train-mode state and contain batch norm.
type segment[B tensor.Backend] interface {
	nn.Module[B]
	SetTraining(training bool)
	EvalNorms()
	SanitizeNorms()
}

// Backbone is the EMOv2 feature extractor: a 3-layer convolutional stem and
// four stages of inverted residual blocks. Segment 0 is the stem; segments
// 1..4 are the stages. Forward returns the feature maps of the segments
// selected by Config.OutIndices, in the listed order.
type Backbone[B tensor.Backend] struct {
	cfg      Config
	backend  B
	segments [numStages + 1][]segment[B]

	frozenStages int
	normEval     bool
	training     bool
	logger       zerolog.Logger
}

// New builds a backbone from the configuration. Invalid configurations panic:
// a backbone that cannot be constructed is a programming error, not a runtime
// condition.
func New[B tensor.Backend](cfg Config, backend B) *Backbone[B] {
	if err := cfg.Validate(); err != nil {
		panic(err.Error())
	}

	m := &Backbone[B]{
		cfg:          cfg,
		backend:      backend,
		frozenStages: cfg.FrozenStages,
		normEval:     cfg.NormEval,
		training:     true,
		logger:       zerolog.Nop(),
	}

	dimStem := cfg.EmbedDims[0] / 2
	m.segments[0] = []segment[B]{
		nn.NewConvNormAct(nn.ConvNormActConfig{
			DimIn: cfg.DimIn, DimOut: dimStem, KernelSize: 3, Stride: 2,
			Bias: true, NormLayer: nn.NormBatch, ActLayer: nn.ActSiLU,
		}, backend),
		nn.NewConvNormAct(nn.ConvNormActConfig{
			DimIn: dimStem, DimOut: dimStem, KernelSize: 3, Groups: dimStem,
			NormLayer: nn.NormBatch, ActLayer: nn.ActSiLU,
		}, backend),
		nn.NewConvNormAct(nn.ConvNormActConfig{
			DimIn: dimStem, DimOut: dimStem, KernelSize: 1,
			NormLayer: nn.NormNone, ActLayer: nn.ActNone,
		}, backend),
	}

	totalDepth := 0
	for _, d := range cfg.Depths {
		totalDepth += d
	}
	dpr := dropPathRates(cfg.DropPath, totalDepth)

	dimPre := dimStem
	blockIdx := 0
	for i := 0; i < numStages; i++ {
		blocks := make([]segment[B], 0, cfg.Depths[i])
		for j := 0; j < cfg.Depths[i]; j++ {
			blkCfg := BlockConfig{
				DimIn: dimPre, DimOut: cfg.EmbedDims[i], NormIn: true,
				NormLayer: cfg.NormLayers[i], ActLayer: cfg.ActLayers[i],
				DimHead: cfg.DimHeads[i], WindowSize: cfg.WindowSizes[i],
				QKVBias: cfg.QKVBias, AttnDrop: cfg.AttnDrop, Drop: cfg.Drop,
				DropPath: dpr[blockIdx], VGroup: cfg.VGroup,
				AttnPre: cfg.AttnPre, LSValue: cfg.LSValue,
			}
			if j == 0 {
				// downsampling block: plain convolution expansion at twice
				// the expansion ratio
				blkCfg.Stride = 2
				blkCfg.HasSkip = false
				blkCfg.Ops = []OpKind{OpConv}
				blkCfg.ExpRatio = cfg.ExpRatios[i] * 2
				blkCfg.ConvKS = 1
				blkCfg.ConvGroups = 1
				blkCfg.DWKernel = cfg.DWKernels[i]
				if blkCfg.DWKernel <= 0 {
					blkCfg.DWKernel = 5
				}
			} else {
				blkCfg.Stride = 1
				blkCfg.HasSkip = true
				blkCfg.Ops = cfg.HybridOps[i]
				blkCfg.ExpRatio = cfg.ExpRatios[i]
				blkCfg.ConvKS = cfg.ConvKS[i]
				blkCfg.ConvGroups = cfg.ConvGroups[i]
				blkCfg.DWKernel = cfg.DWKernels[i]
			}
			blocks = append(blocks, NewInvertedResidual(blkCfg, backend))
			dimPre = cfg.EmbedDims[i]
			blockIdx++
		}
		m.segments[i+1] = blocks
	}

	m.applyFreeze()
	return m
}

// dropPathRates spreads the terminal stochastic depth rate linearly over the
// blocks.
func dropPathRates(terminal float32, n int) []float32 {
	rates := make([]float32, n)
	if n == 1 {
		rates[0] = terminal
		return rates
	}
	for i := range rates {
		rates[i] = terminal * float32(i) / float32(n-1)
	}
	return rates
}

// SetLogger attaches a logger for checkpoint-merge and build diagnostics.
func (m *Backbone[B]) SetLogger(logger zerolog.Logger) {
	m.logger = logger
}

// Config returns the configuration the backbone was built with.
func (m *Backbone[B]) Config() Config {
	return m.cfg
}

// Forward runs the stem and all four stages on an NCHW image batch and
// returns the feature maps selected by OutIndices, in the listed order.
func (m *Backbone[B]) Forward(x *tensor.Tensor[float32, B]) []*tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 || shape[1] != m.cfg.DimIn {
		panic(fmt.Sprintf("backbone: expected input [batch, %d, h, w], got %v", m.cfg.DimIn, shape))
	}

	features := make([]*tensor.Tensor[float32, B], 0, numStages+1)
	for _, seg := range m.segments {
		for _, blk := range seg {
			x = blk.Forward(x)
		}
		features = append(features, x)
	}

	out := make([]*tensor.Tensor[float32, B], 0, len(m.cfg.OutIndices))
	for _, idx := range m.cfg.OutIndices {
		out = append(out, features[idx])
	}
	return out
}

// Freeze freezes segments 0..k: their parameters stop requiring gradients and
// their norm layers are held in evaluation behavior. k = -1 unfreezes
// everything except what SetTraining re-applies.
func (m *Backbone[B]) Freeze(k int) {
	if k < -1 || k > numStages {
		panic(fmt.Sprintf("backbone: frozen stage %d out of range [-1, %d]", k, numStages))
	}
	m.frozenStages = k
	m.applyFreeze()
}

// FrozenStages returns the index of the last frozen segment, -1 when none.
func (m *Backbone[B]) FrozenStages() int {
	return m.frozenStages
}

func (m *Backbone[B]) applyFreeze() {
	for i := 0; i <= m.frozenStages; i++ {
		for _, blk := range m.segments[i] {
			for _, p := range blk.Parameters() {
				p.SetRequiresGrad(false)
			}
			blk.SetTraining(false)
			blk.EvalNorms()
		}
	}
}

// SetTraining switches the whole model between training and evaluation mode,
// keeping frozen segments in evaluation and, with NormEval, holding every
// batch norm in evaluation even while training.
func (m *Backbone[B]) SetTraining(training bool) {
	m.training = training
	for _, seg := range m.segments {
		for _, blk := range seg {
			blk.SetTraining(training)
		}
	}
	m.applyFreeze()
	if training && m.normEval {
		for _, seg := range m.segments {
			for _, blk := range seg {
				blk.EvalNorms()
			}
		}
	}
}

// Training reports whether the model is in training mode.
func (m *Backbone[B]) Training() bool {
	return m.training
}

// SanitizeNorm replaces non-finite batch norm running statistics across the
// whole model: NaN becomes 0, +Inf becomes 1, -Inf becomes -1.
func (m *Backbone[B]) SanitizeNorm() {
	for _, seg := range m.segments {
		for _, blk := range seg {
			blk.SanitizeNorms()
		}
	}
}

// Parameters returns every parameter of the model.
func (m *Backbone[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, seg := range m.segments {
		for _, blk := range seg {
			params = append(params, blk.Parameters()...)
		}
	}
	return params
}

// NumParameters returns the total element count of all parameters.
func (m *Backbone[B]) NumParameters() int {
	total := 0
	for _, p := range m.Parameters() {
		total += p.Tensor().NumElements()
	}
	return total
}

// StateDict exports all parameters under "stageS.J."-prefixed names, where S
// is the segment index (0 the stem) and J the block index within it.
func (m *Backbone[B]) StateDict() map[string]*tensor.RawTensor {
	sd := make(map[string]*tensor.RawTensor)
	for i, seg := range m.segments {
		for j, blk := range seg {
			prefix := "stage" + strconv.Itoa(i) + "." + strconv.Itoa(j)
			for k, v := range nn.Prefixed(prefix, blk.StateDict()) {
				sd[k] = v
			}
		}
	}
	return sd
}

// LoadStateDict strictly loads a complete state dict; any missing or
// mismatched entry fails the whole load.
func (m *Backbone[B]) LoadStateDict(sd map[string]*tensor.RawTensor) error {
	for i, seg := range m.segments {
		for j, blk := range seg {
			prefix := "stage" + strconv.Itoa(i) + "." + strconv.Itoa(j)
			if err := blk.LoadStateDict(nn.Unprefixed(prefix, sd)); err != nil {
				return fmt.Errorf("%s: %w", prefix, err)
			}
		}
	}
	return nil
}

// LoadPretrained reads a SafeTensors checkpoint and merges it by name:
// entries whose name or shape does not match the model are skipped and
// logged. An unreadable or malformed file returns an error.
func (m *Backbone[B]) LoadPretrained(path string) error {
	loaded, _, err := serialization.ReadSafeTensors(path, m.backend.Device())
	if err != nil {
		return fmt.Errorf("load pretrained: %w", err)
	}

	own := m.StateDict()
	merged, skipped := 0, 0
	for name, src := range loaded {
		dst, ok := own[name]
		if !ok {
			m.logger.Warn().Str("tensor", name).Msg("checkpoint entry not in model, skipped")
			skipped++
			continue
		}
		if !dst.Shape().Equal(src.Shape()) {
			m.logger.Warn().
				Str("tensor", name).
				Str("checkpoint_shape", fmt.Sprintf("%v", src.Shape())).
				Str("model_shape", fmt.Sprintf("%v", dst.Shape())).
				Msg("shape mismatch, skipped")
			skipped++
			continue
		}
		copy(dst.Data(), src.Data())
		merged++
	}

	m.logger.Info().
		Str("path", path).
		Int("merged", merged).
		Int("skipped", skipped).
		Msg("loaded pretrained checkpoint")
	return nil
}
