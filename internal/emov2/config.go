package emov2

import "fmt"

// numStages is the number of downsampling stages after the stem.
const numStages = 4

// Config describes an EMOv2 backbone variant. Per-stage slices must all have
// numStages entries.
type Config struct {
	// DimIn is the number of input image channels.
	DimIn int
	// NumClasses is carried for classifier fine-tuning bookkeeping and must
	// be positive even though the backbone itself has no head.
	NumClasses int
	// ImgSize is the nominal square input resolution.
	ImgSize int

	Depths      []int
	EmbedDims   []int
	ExpRatios   []float32
	NormLayers  []string
	ActLayers   []string
	DWKernels   []int
	DimHeads    []int
	WindowSizes []int
	// HybridOps lists, per stage, the expansion operators of the non-downsampling
	// blocks. Downsampling blocks always use a single convolution.
	HybridOps  [][]OpKind
	ConvKS     []int
	ConvGroups []int

	QKVBias  bool
	AttnDrop float32
	Drop     float32
	DropPath float32
	VGroup   bool
	AttnPre  bool
	LSValue  float32

	// OutIndices selects which segment outputs Forward returns; 0 is the
	// stem, 1..4 the stages. Order is preserved.
	OutIndices []int
	// FrozenStages freezes segments 0..FrozenStages; -1 freezes nothing.
	FrozenStages int
	// NormEval forces all batch norm into evaluation behavior while training.
	NormEval bool
}

// DefaultConfig returns the detection backbone configuration: four stages of
// depths 1/2/4/2, convolution expansion in the first two stages and remote
// windowed attention in the last two.
func DefaultConfig() Config {
	return Config{
		DimIn:        3,
		NumClasses:   1000,
		ImgSize:      224,
		Depths:       []int{1, 2, 4, 2},
		EmbedDims:    []int{64, 128, 256, 512},
		ExpRatios:    []float32{4, 4, 4, 4},
		NormLayers:   []string{"bn_2d", "bn_2d", "ln_2d", "ln_2d"},
		ActLayers:    []string{"silu", "silu", "gelu", "gelu"},
		DWKernels:    []int{3, 3, 5, 5},
		DimHeads:     []int{32, 32, 32, 32},
		WindowSizes:  []int{7, 7, 7, 7},
		HybridOps:    [][]OpKind{{OpConv}, {OpConv}, {OpAttnRemote}, {OpAttnRemote}},
		ConvKS:       []int{1, 1, 1, 1},
		ConvGroups:   []int{1, 1, 1, 1},
		QKVBias:      true,
		LSValue:      1e-6,
		OutIndices:   []int{1, 2, 3, 4},
		FrozenStages: -1,
	}
}

// Validate checks the configuration for construction-time errors.
func (c Config) Validate() error {
	if c.DimIn <= 0 {
		return fmt.Errorf("config: DimIn must be positive, got %d", c.DimIn)
	}
	if c.NumClasses <= 0 {
		return fmt.Errorf("config: NumClasses must be positive, got %d", c.NumClasses)
	}
	perStage := map[string]int{
		"Depths":      len(c.Depths),
		"EmbedDims":   len(c.EmbedDims),
		"ExpRatios":   len(c.ExpRatios),
		"NormLayers":  len(c.NormLayers),
		"ActLayers":   len(c.ActLayers),
		"DWKernels":   len(c.DWKernels),
		"DimHeads":    len(c.DimHeads),
		"WindowSizes": len(c.WindowSizes),
		"HybridOps":   len(c.HybridOps),
		"ConvKS":      len(c.ConvKS),
		"ConvGroups":  len(c.ConvGroups),
	}
	for name, n := range perStage {
		if n != numStages {
			return fmt.Errorf("config: %s must have %d entries, got %d", name, numStages, n)
		}
	}
	for i := 0; i < numStages; i++ {
		if c.Depths[i] <= 0 {
			return fmt.Errorf("config: stage %d depth must be positive, got %d", i, c.Depths[i])
		}
		if c.EmbedDims[i]%c.DimHeads[i] != 0 {
			return fmt.Errorf("config: stage %d dim %d not divisible by head size %d",
				i, c.EmbedDims[i], c.DimHeads[i])
		}
	}
	if c.EmbedDims[0]%2 != 0 {
		return fmt.Errorf("config: EmbedDims[0] must be even for the stem, got %d", c.EmbedDims[0])
	}
	for _, idx := range c.OutIndices {
		if idx < 0 || idx > numStages {
			return fmt.Errorf("config: output index %d out of range [0, %d]", idx, numStages)
		}
	}
	if c.FrozenStages < -1 || c.FrozenStages > numStages {
		return fmt.Errorf("config: FrozenStages %d out of range [-1, %d]", c.FrozenStages, numStages)
	}
	return nil
}
